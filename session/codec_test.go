package session

import (
	"bufio"
	"encoding/binary"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestFrameRoundTrip asserts testable property 7: for a file of length L,
// the on-wire bytes after "INSTREAM\n" are BE32(L) || bytes(file) || BE32(0).
func TestFrameRoundTrip(t *testing.T) {
	content := []byte("the quick brown fox jumps over the lazy dog")
	path := filepath.Join(t.TempDir(), "payload")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write payload: %v", err)
	}

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	codec := NewCodec(client)
	done := make(chan error, 1)
	go func() { done <- codec.SendFileInstream(path, 5*time.Second) }()

	reader := bufio.NewReader(server)
	var lenBuf [4]byte
	if _, err := io.ReadFull(reader, lenBuf[:]); err != nil {
		t.Fatalf("read length prefix: %v", err)
	}
	if got := binary.BigEndian.Uint32(lenBuf[:]); got != uint32(len(content)) {
		t.Fatalf("length prefix = %d, want %d", got, len(content))
	}

	got := make([]byte, len(content))
	if _, err := io.ReadFull(reader, got); err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(got) != string(content) {
		t.Fatalf("body = %q, want %q", got, content)
	}

	var terminator [4]byte
	if _, err := io.ReadFull(reader, terminator[:]); err != nil {
		t.Fatalf("read terminator: %v", err)
	}
	if binary.BigEndian.Uint32(terminator[:]) != 0 {
		t.Fatalf("expected zero-length terminator chunk")
	}

	if err := <-done; err != nil {
		t.Fatalf("SendFileInstream: %v", err)
	}
}

// TestReplyStrip asserts testable property 8: an id-and-stream-prefixed
// reply line is parsed into its numeric id and bare text.
func TestReplyStrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	codec := NewCodec(client)
	go func() {
		server.Write([]byte("42: stream: Eicar-Test-Signature FOUND\n"))
	}()

	id, text, err := codec.ReadReply(5 * time.Second)
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if id != 42 {
		t.Fatalf("id = %d, want 42", id)
	}
	if text != "Eicar-Test-Signature FOUND" {
		t.Fatalf("text = %q, want %q", text, "Eicar-Test-Signature FOUND")
	}
}

// TestTimeoutClearedAfterSuccess asserts testable property 6: a deadline
// set for one call does not leak into the next, blocking one that should
// succeed without racing a stale deadline.
func TestTimeoutClearedAfterSuccess(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	codec := NewCodec(client)
	first := make(chan error, 1)
	go func() { first <- codec.SendCommand("PING", 50*time.Millisecond) }()
	if _, err := io.ReadAll(io.LimitReader(server, 6)); err != nil {
		t.Fatalf("drain command: %v", err)
	}
	if err := <-first; err != nil {
		t.Fatalf("send command: %v", err)
	}

	// Sleep past the first call's deadline, then perform a second call on
	// the same codec; it must still succeed, so nothing left behind by the
	// first call (its deadline or a broken-stream flag) carries over.
	time.Sleep(100 * time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- codec.SendCommand("PING", 5*time.Second) }()

	buf := make([]byte, 6)
	if _, err := io.ReadFull(server, buf); err != nil {
		t.Fatalf("read second command: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("second send command: %v", err)
	}
}
