// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package store

import (
	"fmt"
	"net"
	"os"
)

// locate resolves a logical offset to the data file, byte start and
// record length holding it, searching the active segment first and
// then the sealed cache for the largest base <= offset.
func (s *Store) locate(offset uint64) (data *os.File, start uint64, size uint32, err error) {
	if offset >= s.activeBase && offset < s.position {
		slot := int64(offset - s.activeBase)
		if (slot+1)*indexEntrySize > s.indexCap {
			return nil, 0, 0, fmt.Errorf("store: %w", ErrIndexNotMatched)
		}

		st, sz := readSlot(s.activeIndex, slot)
		return s.activeData, st, sz, nil
	}

	// largest sealed base <= offset; s.sealed is kept ascending by base
	for i := len(s.sealed) - 1; i >= 0; i-- {
		seg := s.sealed[i]
		if seg.base > offset {
			continue
		}

		slot := int64(offset - seg.base)
		if (slot+1)*indexEntrySize > int64(len(seg.index)) {
			return nil, 0, 0, fmt.Errorf("store: %w", ErrIndexNotMatched)
		}

		st, sz := readSlot(seg.index, slot)
		return seg.dataFile, st, sz, nil
	}

	return nil, 0, 0, fmt.Errorf("store: %w", ErrIndexNotMatched)
}

// ReadFrom streams the record at offset through EOF of its segment's
// data file directly onto conn, honoring the pull-limit policy: if
// more than pullMaxLimit bytes remain to EOF, only the requested
// record's bytes are sent; otherwise the whole tail is sent. A
// requested offset of 0 when the store already holds records is
// resolved to position-1 (the latest record) per the wire protocol's
// zero-means-latest convention.
//
// It returns the number of bytes written to conn.
func (s *Store) ReadFrom(conn net.Conn, offset uint64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if offset == 0 && s.position > 0 {
		offset = s.position - 1
	}

	data, start, size, err := s.locate(offset)
	if err != nil {
		return 0, err
	}

	fi, err := data.Stat()
	if err != nil {
		return 0, fmt.Errorf("store: stat segment for read: %w", err)
	}

	eof := fi.Size()
	remaining := eof - int64(start)
	n := remaining
	if remaining > s.pullMaxLimit {
		n = int64(size)
	}

	return sendFile(conn, data, int64(start), n)
}
