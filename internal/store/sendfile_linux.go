// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

//go:build linux

package store

import (
	"io"
	"net"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// sendFile copies n bytes starting at offset in src directly to conn
// via the sendfile(2) syscall, without ever copying the data into a
// userspace buffer. conn's raw fd is driven through syscall.RawConn.Write
// so the runtime's network poller still owns the socket: every EAGAIN
// deschedules the goroutine until the fd is writable again rather than
// spinning or blocking the OS thread.
func sendFile(conn net.Conn, src *os.File, offset, n int64) (int64, error) {
	syscallConn, ok := conn.(syscall.Conn)
	if !ok {
		return sendFileFallback(conn, src, offset, n)
	}

	raw, err := syscallConn.SyscallConn()
	if err != nil {
		return 0, err
	}

	srcFd := int(src.Fd())
	remaining := n
	off := offset
	var werr error

	err = raw.Write(func(fd uintptr) bool {
		for remaining > 0 {
			sent, e := unix.Sendfile(int(fd), srcFd, &off, int(remaining))
			if sent > 0 {
				remaining -= int64(sent)
			}

			if e == unix.EAGAIN {
				// let the poller wait for writability and retry us
				return false
			}
			if e != nil {
				werr = e
				return true
			}
			if sent == 0 {
				// source exhausted before remaining reached zero
				return true
			}
		}
		return true
	})

	if werr != nil {
		return n - remaining, werr
	}
	if err != nil {
		return n - remaining, err
	}

	return n - remaining, nil
}

func sendFileFallback(conn net.Conn, src *os.File, offset, n int64) (int64, error) {
	return io.Copy(conn, io.NewSectionReader(src, offset, n))
}
