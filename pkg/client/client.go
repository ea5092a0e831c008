// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package client is a small Go client for the broker's TCP wire
// protocol: a single Client wrapping one connection, with focused
// Push/Pull methods.
package client

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/Lyn-liyuan/sonicrabMQ/internal/wire"
)

// ErrAuthFailed is returned when the server rejects the client's key.
var ErrAuthFailed = errors.New("client: server authentication failed")

// ErrNoBroker is returned by Push when the server's registry has no
// room for the requested broker. A Pull on a broker the server does not
// know ends in an I/O error instead, because the server closes the
// connection.
var ErrNoBroker = errors.New("client: broker unavailable")

// Client is a small stateful wrapper around one TCP connection to a
// broker server, authenticated with a single shared key.
type Client struct {
	addr string
	key  string

	mu   sync.Mutex
	conn net.Conn
	r    *bufio.Reader
}

// New returns a Client that will lazily dial addr on first use.
func New(addr, key string) *Client {
	return &Client{addr: addr, key: key}
}

func (c *Client) ensureConn() error {
	if c.conn != nil {
		return nil
	}

	conn, err := net.DialTimeout("tcp", c.addr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("client: dial %s: %w", c.addr, err)
	}

	c.conn = conn
	c.r = bufio.NewReader(conn)
	return nil
}

// Close closes the underlying connection, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.r = nil
	return err
}

// Push appends payload as the next record on broker.
func (c *Client) Push(broker string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureConn(); err != nil {
		return err
	}

	body := wire.Encode(c.key, wire.CmdPush, broker, payload)
	if err := wire.WriteFrame(c.conn, body); err != nil {
		c.dropConn()
		return fmt.Errorf("client: push: %w", err)
	}

	resp, err := wire.ReadFrame(c.r)
	if err != nil {
		c.dropConn()
		return fmt.Errorf("client: push response: %w", err)
	}

	switch string(resp) {
	case wire.RespOK:
		return nil
	case wire.RespNoBroker:
		return ErrNoBroker
	case wire.RespAuthFailed:
		c.dropConn()
		return ErrAuthFailed
	default:
		return fmt.Errorf("client: unexpected push response %q", resp)
	}
}

// Record is one decoded record read back from a PULL response.
type Record struct {
	Offset  uint64
	Payload []byte
}

// Pull requests every record from offset through the end of the
// segment holding it, per the server's zero-copy read path; when more
// than the server's pull_max_limit bytes remain from that record to the
// end of the segment, only the record at offset comes back. Passing
// offset 0 when the broker already holds records asks for the latest
// single record (the protocol's zero-means-latest convention).
func (c *Client) Pull(broker string, offset uint64) ([]Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureConn(); err != nil {
		return nil, err
	}

	body := wire.Encode(c.key, wire.CmdPull, broker, wire.EncodeOffset(offset))
	if err := wire.WriteFrame(c.conn, body); err != nil {
		c.dropConn()
		return nil, fmt.Errorf("client: pull: %w", err)
	}

	records, err := readRecordStream(c.r)
	if err != nil {
		c.dropConn()
		return nil, fmt.Errorf("client: pull response: %w", err)
	}

	return records, nil
}

// readRecordStream reads raw 12-byte-headered records off r until it
// hits the 4-byte zero sentinel that ends a PULL response. The server
// closes the connection outright instead of replying when the broker
// is unknown, which surfaces here as an I/O error from readFull.
func readRecordStream(r *bufio.Reader) ([]Record, error) {
	var records []Record

	for {
		var lenBuf [4]byte
		if _, err := readFull(r, lenBuf[:]); err != nil {
			return nil, err
		}

		n := binary.BigEndian.Uint32(lenBuf[:])
		if n == 0 {
			return records, nil
		}

		var offBuf [8]byte
		if _, err := readFull(r, offBuf[:]); err != nil {
			return nil, err
		}

		payload := make([]byte, n)
		if _, err := readFull(r, payload); err != nil {
			return nil, err
		}

		records = append(records, Record{
			Offset:  binary.BigEndian.Uint64(offBuf[:]),
			Payload: payload,
		})
	}
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (c *Client) dropConn() {
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = nil
	c.r = nil
}
