// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package retention

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatalf("write %q: %s", path, err)
	}
}

func listNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %s", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestSweepDirKeepsOnlyMostRecentFiles(t *testing.T) {
	root := t.TempDir()
	broker := filepath.Join(root, "t1")
	if err := os.Mkdir(broker, 0755); err != nil {
		t.Fatal(err)
	}

	bases := []string{"000000000000", "000000000001", "000000000002"}
	for _, b := range bases {
		touch(t, filepath.Join(broker, b+".data"))
		touch(t, filepath.Join(broker, b+".index"))
	}

	sw := New(root, 2) // keep only the 2 most-recent files (1 segment pair's worth)
	if err := sw.sweepDir(broker); err != nil {
		t.Fatalf("sweepDir: %s", err)
	}

	names := listNames(t, broker)
	if len(names) != 2 {
		t.Fatalf("after sweep, files = %v, want 2 entries", names)
	}
	for _, n := range names {
		if n != "000000000002.data" && n != "000000000002.index" {
			t.Fatalf("unexpected surviving file %q", n)
		}
	}
}

func TestSweepDirIsIdempotent(t *testing.T) {
	root := t.TempDir()
	broker := filepath.Join(root, "t1")
	if err := os.Mkdir(broker, 0755); err != nil {
		t.Fatal(err)
	}

	for _, b := range []string{"000000000000", "000000000001"} {
		touch(t, filepath.Join(broker, b+".data"))
		touch(t, filepath.Join(broker, b+".index"))
	}

	sw := New(root, 2)
	if err := sw.sweepDir(broker); err != nil {
		t.Fatalf("sweepDir (1st): %s", err)
	}
	first := listNames(t, broker)

	if err := sw.sweepDir(broker); err != nil {
		t.Fatalf("sweepDir (2nd): %s", err)
	}
	second := listNames(t, broker)

	if len(first) != len(second) {
		t.Fatalf("sweep not idempotent: first=%v second=%v", first, second)
	}
}

func TestSweepDirNeverDeletesBelowMaxFiles(t *testing.T) {
	root := t.TempDir()
	broker := filepath.Join(root, "t1")
	if err := os.Mkdir(broker, 0755); err != nil {
		t.Fatal(err)
	}

	touch(t, filepath.Join(broker, "000000000000.data"))
	touch(t, filepath.Join(broker, "000000000000.index"))

	sw := New(root, 10)
	if err := sw.sweepDir(broker); err != nil {
		t.Fatalf("sweepDir: %s", err)
	}

	if names := listNames(t, broker); len(names) != 2 {
		t.Fatalf("files = %v, want untouched 2 entries", names)
	}
}
