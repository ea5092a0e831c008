// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

//go:build !linux

package store

import (
	"io"
	"net"
	"os"
)

// sendFile is the portable fallback for platforms without sendfile(2)
// support wired up; it still respects the (offset, n) byte range, just
// by copying through a userspace buffer instead of the zero-copy path.
func sendFile(conn net.Conn, src *os.File, offset, n int64) (int64, error) {
	return io.Copy(conn, io.NewSectionReader(src, offset, n))
}
