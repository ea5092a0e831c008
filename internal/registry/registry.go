// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package registry tracks the set of brokers (per-name segment stores)
// a server instance serves, lazily creating a broker's on-disk
// directory and store on first PUSH (PULL never creates one), eagerly rehydrating any
// broker directories already present under the data root at startup,
// and rejecting new brokers once broker_limit is reached.
package registry

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/Lyn-liyuan/sonicrabMQ/internal/store"
)

// ErrBrokerLimitReached is returned by GetOrCreate when creating a new
// broker would exceed the configured limit.
var ErrBrokerLimitReached = errors.New("registry: broker limit reached")

// Registry owns every broker's store for one server process.
type Registry struct {
	dataDir  string
	limit    int
	storeCfg store.Config

	createMu sync.Mutex // serializes GetOrCreate's check-then-create
	brokers  *brokerMap
}

// Open creates the data root if needed and rehydrates every existing
// broker subdirectory found inside it.
func Open(dataDir string, limit int, storeCfg store.Config) (*Registry, error) {
	fi, err := os.Stat(dataDir)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("registry: create data dir: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("registry: stat data dir: %w", err)
	} else if !fi.IsDir() {
		return nil, fmt.Errorf("registry: %s is not a directory", dataDir)
	}

	r := &Registry{
		dataDir:  dataDir,
		limit:    limit,
		storeCfg: storeCfg,
		brokers:  newBrokerMap(),
	}

	if err := r.loadExisting(); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *Registry) loadExisting() error {
	entries, err := os.ReadDir(r.dataDir)
	if err != nil {
		return fmt.Errorf("registry: read data dir: %w", err)
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}

		name := e.Name()
		path := filepath.Join(r.dataDir, name)

		s, err := store.Open(path, r.storeCfg)
		if err != nil {
			log.Printf("alert: broker rehydration failed name=%s: %s", name, err)
			continue
		}

		r.brokers.Set(name, s)
	}

	return nil
}

// Get returns an existing broker's store by name.
func (r *Registry) Get(name string) (*store.Store, bool) {
	return r.brokers.Get(name)
}

// GetOrCreate returns the named broker's store, creating its
// directory and store on first use. Creation fails with
// ErrBrokerLimitReached once the registry already holds limit brokers.
func (r *Registry) GetOrCreate(name string) (*store.Store, error) {
	if s, ok := r.brokers.Get(name); ok {
		return s, nil
	}

	r.createMu.Lock()
	defer r.createMu.Unlock()

	// re-check: another goroutine may have created it while we waited
	if s, ok := r.brokers.Get(name); ok {
		return s, nil
	}

	if r.limit > 0 && r.brokers.Len() >= r.limit {
		return nil, ErrBrokerLimitReached
	}

	path := filepath.Join(r.dataDir, name)
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("registry: create broker dir %q: %w", name, err)
	}

	s, err := store.Open(path, r.storeCfg)
	if err != nil {
		return nil, fmt.Errorf("registry: open broker %q: %w", name, err)
	}

	r.brokers.Set(name, s)
	return s, nil
}

// List returns the names of every known broker.
func (r *Registry) List() []string {
	m := r.brokers.GetAll()
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	return names
}

// Len returns the number of brokers currently registered.
func (r *Registry) Len() int {
	return r.brokers.Len()
}

// Close closes every broker's store.
func (r *Registry) Close() error {
	var firstErr error
	for name, s := range r.brokers.GetAll() {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("registry: close broker %q: %w", name, err)
		}
	}
	return firstErr
}
