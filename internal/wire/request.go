// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package wire

import (
	"encoding/binary"
	"fmt"
)

// Request is one decoded request body: key_len/key, cmd_len/cmd,
// broker_len/broker, then a command-specific trailer (the PUSH
// payload bytes, or the PULL u64 offset).
type Request struct {
	Key     string
	Cmd     string
	Broker  string
	Payload []byte // set when Cmd == CmdPush
	Offset  uint64 // set when Cmd == CmdPull
}

// ParseRequest decodes a request's framed body per the wire layout in
// the protocol spec: key, cmd, broker are each a u16 length followed
// by that many bytes; PUSH's trailer is the remaining bytes verbatim,
// PULL's trailer is a single big-endian u64 offset.
func ParseRequest(body []byte) (Request, error) {
	var req Request

	key, rest, err := readLPString(body)
	if err != nil {
		return req, fmt.Errorf("wire: key: %w", err)
	}
	req.Key = key

	cmd, rest, err := readLPString(rest)
	if err != nil {
		return req, fmt.Errorf("wire: cmd: %w", err)
	}
	req.Cmd = cmd

	broker, rest, err := readLPString(rest)
	if err != nil {
		return req, fmt.Errorf("wire: broker: %w", err)
	}
	req.Broker = broker

	switch req.Cmd {
	case CmdPush:
		req.Payload = rest
	case CmdPull:
		if len(rest) != 8 {
			return req, fmt.Errorf("wire: PULL trailer must be 8 bytes, got %d", len(rest))
		}
		req.Offset = binary.BigEndian.Uint64(rest)
	default:
		return req, fmt.Errorf("wire: unknown command %q", req.Cmd)
	}

	return req, nil
}

func readLPString(b []byte) (s string, rest []byte, err error) {
	if len(b) < 2 {
		return "", nil, fmt.Errorf("truncated length prefix")
	}

	n := int(binary.BigEndian.Uint16(b[0:2]))
	b = b[2:]

	if len(b) < n {
		return "", nil, fmt.Errorf("truncated field: want %d bytes, have %d", n, len(b))
	}

	return string(b[:n]), b[n:], nil
}

// Encode serializes key, cmd, broker and trailer into the wire request body layout; used
// by the client library to build requests.
func Encode(key, cmd, broker string, trailer []byte) []byte {
	body := make([]byte, 0, 2+len(key)+2+len(cmd)+2+len(broker)+len(trailer))
	body = appendLPString(body, key)
	body = appendLPString(body, cmd)
	body = appendLPString(body, broker)
	body = append(body, trailer...)
	return body
}

func appendLPString(b []byte, s string) []byte {
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(s)))
	b = append(b, lenBuf[:]...)
	return append(b, s...)
}

// EncodeOffset renders a PULL offset trailer.
func EncodeOffset(offset uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], offset)
	return b[:]
}
