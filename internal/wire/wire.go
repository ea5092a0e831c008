// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package wire implements the broker's length-prefixed binary request
// protocol: every request and non-streamed response is a 4-byte
// big-endian length prefix followed by that many body bytes.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

var enc = binary.BigEndian

const (
	// CmdPush is the ASCII command name for publishing a record.
	CmdPush = "PUSH"
	// CmdPull is the ASCII command name for reading records back.
	CmdPull = "PULL"
)

// Response bodies for PUSH, sent as a single framed reply.
const (
	RespOK         = "OK"
	RespNoBroker   = "NO_BROKER"
	RespAuthFailed = "Server authentication failed."
)

// ZeroSentinel is the 4-byte all-zero length marker that terminates
// every PULL response stream.
var ZeroSentinel = [4]byte{0, 0, 0, 0}

// MaxFrameSize bounds how large a single framed request body may be,
// guarding the handler against a hostile or corrupt length prefix
// requesting an unbounded in-memory read.
const MaxFrameSize = 64 * 1024 * 1024

// ReadFrame reads one length-prefixed frame from r and returns its body.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}

	n := enc.Uint32(lenBuf[:])
	if n > MaxFrameSize {
		return nil, fmt.Errorf("wire: frame length %d exceeds max %d", n, MaxFrameSize)
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}

	return body, nil
}

// WriteFrame writes body to w prefixed by its big-endian u32 length.
func WriteFrame(w io.Writer, body []byte) error {
	var lenBuf [4]byte
	enc.PutUint32(lenBuf[:], uint32(len(body)))

	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}

	_, err := w.Write(body)
	return err
}

// WriteZeroSentinel writes the 4-byte zero length marker that ends a
// PULL response stream.
func WriteZeroSentinel(w io.Writer) error {
	_, err := w.Write(ZeroSentinel[:])
	return err
}
