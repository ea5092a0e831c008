// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package wire

import (
	"bytes"
	"testing"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, []byte("hello")); err != nil {
		t.Fatalf("WriteFrame: %s", err)
	}

	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %s", err)
	}
	if string(got) != "hello" {
		t.Fatalf("ReadFrame = %q, want %q", got, "hello")
	}
}

func TestParseRequestPush(t *testing.T) {
	body := Encode("s3cr3t", CmdPush, "t1", []byte("payload"))

	req, err := ParseRequest(body)
	if err != nil {
		t.Fatalf("ParseRequest: %s", err)
	}

	if req.Key != "s3cr3t" || req.Cmd != CmdPush || req.Broker != "t1" {
		t.Fatalf("unexpected request: %+v", req)
	}
	if string(req.Payload) != "payload" {
		t.Fatalf("Payload = %q, want %q", req.Payload, "payload")
	}
}

func TestParseRequestPull(t *testing.T) {
	body := Encode("s3cr3t", CmdPull, "t1", EncodeOffset(42))

	req, err := ParseRequest(body)
	if err != nil {
		t.Fatalf("ParseRequest: %s", err)
	}

	if req.Offset != 42 {
		t.Fatalf("Offset = %d, want 42", req.Offset)
	}
}

func TestParseRequestRejectsUnknownCommand(t *testing.T) {
	body := Encode("s3cr3t", "WAT", "t1", nil)

	if _, err := ParseRequest(body); err == nil {
		t.Fatalf("expected error for unknown command")
	}
}

func TestParseRequestRejectsTruncatedPullOffset(t *testing.T) {
	body := Encode("s3cr3t", CmdPull, "t1", []byte{1, 2, 3})

	if _, err := ParseRequest(body); err == nil {
		t.Fatalf("expected error for truncated PULL offset")
	}
}
