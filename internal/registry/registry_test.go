// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package registry

import (
	"errors"
	"testing"

	"github.com/Lyn-liyuan/sonicrabMQ/internal/store"
)

func testStoreConfig() store.Config {
	return store.Config{MaxFileSize: 1 << 20, PullMaxLimit: 1 << 20, CacheLimit: 4}
}

func TestGetOrCreateLazilyCreatesBrokerDir(t *testing.T) {
	dir := t.TempDir()

	r, err := Open(dir, 0, testStoreConfig())
	if err != nil {
		t.Fatalf("Open: %s", err)
	}
	defer r.Close()

	if _, ok := r.Get("orders"); ok {
		t.Fatalf("expected no broker named orders yet")
	}

	s, err := r.GetOrCreate("orders")
	if err != nil {
		t.Fatalf("GetOrCreate: %s", err)
	}

	if _, err := s.Append([]byte("hi")); err != nil {
		t.Fatalf("Append: %s", err)
	}

	again, err := r.GetOrCreate("orders")
	if err != nil {
		t.Fatalf("GetOrCreate (again): %s", err)
	}
	if again != s {
		t.Fatalf("GetOrCreate returned a different store for an existing broker")
	}
}

func TestGetOrCreateEnforcesBrokerLimit(t *testing.T) {
	dir := t.TempDir()

	r, err := Open(dir, 1, testStoreConfig())
	if err != nil {
		t.Fatalf("Open: %s", err)
	}
	defer r.Close()

	if _, err := r.GetOrCreate("a"); err != nil {
		t.Fatalf("GetOrCreate(a): %s", err)
	}

	_, err = r.GetOrCreate("b")
	if !errors.Is(err, ErrBrokerLimitReached) {
		t.Fatalf("GetOrCreate(b) err = %v, want ErrBrokerLimitReached", err)
	}
}

func TestOpenRehydratesExistingBrokers(t *testing.T) {
	dir := t.TempDir()

	r1, err := Open(dir, 0, testStoreConfig())
	if err != nil {
		t.Fatalf("Open: %s", err)
	}

	s, err := r1.GetOrCreate("events")
	if err != nil {
		t.Fatalf("GetOrCreate: %s", err)
	}
	if _, err := s.Append([]byte("payload")); err != nil {
		t.Fatalf("Append: %s", err)
	}
	if err := r1.Close(); err != nil {
		t.Fatalf("Close: %s", err)
	}

	r2, err := Open(dir, 0, testStoreConfig())
	if err != nil {
		t.Fatalf("reopen: %s", err)
	}
	defer r2.Close()

	rehydrated, ok := r2.Get("events")
	if !ok {
		t.Fatalf("expected events broker to be rehydrated on Open")
	}
	if rehydrated.Position() != 1 {
		t.Fatalf("rehydrated Position() = %d, want 1", rehydrated.Position())
	}

	names := r2.List()
	if len(names) != 1 || names[0] != "events" {
		t.Fatalf("List() = %v, want [events]", names)
	}
}
