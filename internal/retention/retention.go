// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package retention implements the background sweeper that trims
// each broker directory down to its most recent segment files, run
// on a ticker loop.
package retention

import (
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Sweeper periodically trims every broker directory under root down
// to maxFiles most-recent `.data`/`.index` files, sorted by filename
// (which sorts by zero-padded base_offset). It never touches the
// active segment because the active segment's files always sort last.
type Sweeper struct {
	root     string
	maxFiles int
}

// New returns a Sweeper over root, keeping maxFiles files per broker
// directory.
func New(root string, maxFiles int) *Sweeper {
	return &Sweeper{root: root, maxFiles: maxFiles}
}

// Run starts the periodic sweep on a ticker and blocks until stop is
// closed.
func (sw *Sweeper) Run(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			sw.sweepOnce()
		}
	}
}

func (sw *Sweeper) sweepOnce() {
	entries, err := os.ReadDir(sw.root)
	if err != nil {
		log.Printf("error: retention: read root %q: %s", sw.root, err)
		return
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}

		dir := filepath.Join(sw.root, e.Name())
		if err := sw.sweepDir(dir); err != nil {
			log.Printf("error: retention: sweep %q: %s", dir, err)
		}
	}
}

// sweepDir applies retention to a single broker directory. It is
// idempotent: running it twice in a row with the same maxFiles leaves
// the directory unchanged the second time (invariant 7).
func (sw *Sweeper) sweepDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".data") || strings.HasSuffix(name, ".index") {
			files = append(files, name)
		}
	}

	sort.Strings(files)

	if len(files) <= sw.maxFiles {
		return nil
	}

	toDelete := files[:len(files)-sw.maxFiles]
	for _, name := range toDelete {
		path := filepath.Join(dir, name)
		if err := os.Remove(path); err != nil {
			log.Printf("error: retention: remove %q: %s", path, err)
			continue
		}
		log.Printf("info: retention: deleted %q", path)
	}

	return nil
}
