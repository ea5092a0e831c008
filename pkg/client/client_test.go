// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package client

import (
	"net"
	"testing"

	"github.com/Lyn-liyuan/sonicrabMQ/internal/wire"
)

// fakeServer is a minimal stand-in for the broker server, just enough
// to exercise Client.Push and Client.Pull against canned wire traffic.
func fakeServer(t *testing.T, handle func(net.Conn)) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %s", err)
	}

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}()

	t.Cleanup(func() { _ = ln.Close() })
	return ln.Addr().String()
}

func TestPushSendsFramedRequestAndParsesOK(t *testing.T) {
	var gotReq wire.Request

	addr := fakeServer(t, func(conn net.Conn) {
		body, err := wire.ReadFrame(conn)
		if err != nil {
			t.Errorf("server ReadFrame: %s", err)
			return
		}

		req, err := wire.ParseRequest(body)
		if err != nil {
			t.Errorf("server ParseRequest: %s", err)
			return
		}
		gotReq = req

		if err := wire.WriteFrame(conn, []byte(wire.RespOK)); err != nil {
			t.Errorf("server WriteFrame: %s", err)
		}
	})

	c := New(addr, "s3cr3t")
	defer c.Close()

	if err := c.Push("t1", []byte("hello")); err != nil {
		t.Fatalf("Push: %s", err)
	}

	if gotReq.Key != "s3cr3t" || gotReq.Cmd != wire.CmdPush || gotReq.Broker != "t1" {
		t.Fatalf("unexpected request observed by server: %+v", gotReq)
	}
	if string(gotReq.Payload) != "hello" {
		t.Fatalf("payload = %q, want %q", gotReq.Payload, "hello")
	}
}

func TestPushAuthFailure(t *testing.T) {
	addr := fakeServer(t, func(conn net.Conn) {
		if _, err := wire.ReadFrame(conn); err != nil {
			return
		}
		_ = wire.WriteFrame(conn, []byte(wire.RespAuthFailed))
	})

	c := New(addr, "wrong")
	defer c.Close()

	err := c.Push("t1", []byte("hello"))
	if err != ErrAuthFailed {
		t.Fatalf("Push err = %v, want ErrAuthFailed", err)
	}
}

func TestPullParsesRecordStream(t *testing.T) {
	addr := fakeServer(t, func(conn net.Conn) {
		if _, err := wire.ReadFrame(conn); err != nil {
			t.Errorf("server ReadFrame: %s", err)
			return
		}

		// raw record stream: one 12-byte header + payload, then the
		// zero sentinel, unframed exactly as the wire protocol specifies.
		var hdr [12]byte
		hdr[3] = 3 // payload length = 3
		hdr[11] = 7 // logical offset = 7
		if _, err := conn.Write(hdr[:]); err != nil {
			t.Errorf("write header: %s", err)
			return
		}
		if _, err := conn.Write([]byte("ccc")); err != nil {
			t.Errorf("write payload: %s", err)
			return
		}
		if err := wire.WriteZeroSentinel(conn); err != nil {
			t.Errorf("write sentinel: %s", err)
		}
	})

	c := New(addr, "s3cr3t")
	defer c.Close()

	records, err := c.Pull("t1", 7)
	if err != nil {
		t.Fatalf("Pull: %s", err)
	}

	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Offset != 7 {
		t.Fatalf("Offset = %d, want 7", records[0].Offset)
	}
	if string(records[0].Payload) != "ccc" {
		t.Fatalf("Payload = %q, want %q", records[0].Payload, "ccc")
	}
}
