// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package store

import "errors"

var (
	// ErrIndexNotMatched is returned when a PULL offset falls below the
	// oldest sealed segment still held in the cache; evicted segments
	// are not re-opened from disk on demand.
	ErrIndexNotMatched = errors.New("store: index not matched")

	// ErrInvalidDir is returned when the broker directory can't be read.
	ErrInvalidDir = errors.New("store: invalid broker directory")

	// ErrCorruptSegment names a segment whose on-disk state can't be
	// reconciled. No function in this package returns it: recovery
	// takes the first all-zero index slot as the end of the log and
	// does not validate segment contents.
	ErrCorruptSegment = errors.New("store: corrupt segment")
)
