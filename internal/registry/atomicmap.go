// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package registry

import (
	"sync"
	"sync/atomic"

	"github.com/Lyn-liyuan/sonicrabMQ/internal/store"
)

// brokerMap is a copy-on-write thread-safe map of pointers to store.Store:
// reads hit an atomic.Value snapshot, writes swap in a fresh copy under mu.
type brokerMap struct {
	mu  sync.Mutex
	val atomic.Value
}

type brokerMapValue map[string]*store.Store

func newBrokerMap() *brokerMap {
	bm := &brokerMap{}
	bm.val.Store(make(brokerMapValue))
	return bm
}

func (bm *brokerMap) Get(key string) (*store.Store, bool) {
	v, ok := bm.val.Load().(brokerMapValue)[key]
	return v, ok
}

func (bm *brokerMap) GetAll() brokerMapValue {
	return bm.val.Load().(brokerMapValue)
}

func (bm *brokerMap) Len() int {
	return len(bm.val.Load().(brokerMapValue))
}

func (bm *brokerMap) Set(key string, value *store.Store) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	m1 := bm.val.Load().(brokerMapValue)
	m2 := make(brokerMapValue, len(m1)+1)
	for k, v := range m1 {
		m2[k] = v
	}
	m2[key] = value
	bm.val.Store(m2)
}

func (bm *brokerMap) Delete(key string) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	m1 := bm.val.Load().(brokerMapValue)
	if _, ok := m1[key]; !ok {
		return
	}

	m2 := make(brokerMapValue, len(m1)-1)
	for k, v := range m1 {
		if k != key {
			m2[k] = v
		}
	}
	bm.val.Store(m2)
}
