package buffer

import (
	"bytes"
	"testing"
)

func TestBufferAppendUntilFull(t *testing.T) {
	buf := New(8)
	defer buf.Release()

	if n := buf.Append([]byte("hello")); n != 5 {
		t.Fatalf("expected 5 bytes appended, got %d", n)
	}
	if n := buf.Append([]byte("world")); n != 3 {
		t.Fatalf("expected 3 bytes appended, got %d", n)
	}
	if !buf.Full() {
		t.Fatalf("expected buffer to be full")
	}
	if got := string(buf.Readable()); got != "hellowor" {
		t.Fatalf("unexpected contents %q", got)
	}
}

func TestBufferConsumeRewinds(t *testing.T) {
	buf := New(8)
	defer buf.Release()

	buf.Append([]byte("abcdefgh"))
	buf.Consume(3)
	if got := string(buf.Readable()); got != "defgh" {
		t.Fatalf("unexpected contents %q", got)
	}
	if buf.Free() != 0 {
		t.Fatalf("expected no free space while data remains, got %d", buf.Free())
	}

	buf.Consume(5)
	if buf.Len() != 0 {
		t.Fatalf("expected empty buffer, got %d", buf.Len())
	}
	if len(buf.Writable()) != 8 {
		t.Fatalf("expected full capacity to be writable after drain, got %d", len(buf.Writable()))
	}
}

func TestBufferCommitAndRead(t *testing.T) {
	buf := New(16)
	defer buf.Release()

	w := buf.Writable()
	n := copy(w, "line\r\nrest")
	buf.Commit(n)

	out := make([]byte, 4)
	if got := buf.Read(out); got != 4 || !bytes.Equal(out, []byte("line")) {
		t.Fatalf("unexpected read %d %q", got, out)
	}
	if got := string(buf.Readable()); got != "\r\nrest" {
		t.Fatalf("unexpected remainder %q", got)
	}
}

func TestBufferCommitOutOfRangePanics(t *testing.T) {
	buf := New(4)
	defer buf.Release()

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on oversized commit")
		}
	}()
	buf.Commit(5)
}

func TestBufferReleaseIdempotent(t *testing.T) {
	buf := New(0)
	if buf.Cap() == 0 {
		t.Fatalf("expected default capacity")
	}
	buf.Release()
	buf.Release()
	if buf.Cap() != 0 || buf.Readable() != nil {
		t.Fatalf("expected released buffer to be empty")
	}
}
