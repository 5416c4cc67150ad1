package session

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strings"
	"testing"
)

// fakeDaemonOpts scripts the minimal subset of the clamd IDSESSION protocol
// our Session needs: VERSION, PING and one INSTREAM upload. IDSESSION and
// END get no reply, matching the real daemon (and matching that
// StartSession/EndSession never call ReadReply).
type fakeDaemonOpts struct {
	versionReply    string
	pingReply       string
	instreamReply   string
	closeOnInstream bool
}

func startFakeDaemon(t *testing.T, opts fakeDaemonOpts) string {
	t.Helper()

	if opts.versionReply == "" {
		opts.versionReply = "ClamAV 1.2.0/27000/Mon Jan  1 00:00:00 2026"
	}
	if opts.pingReply == "" {
		opts.pingReply = "PONG"
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		serveFakeDaemon(conn, opts)
	}()

	return ln.Addr().String()
}

func serveFakeDaemon(conn net.Conn, opts fakeDaemonOpts) {
	reader := bufio.NewReader(conn)
	id := 1

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
		cmd = strings.TrimPrefix(cmd, "n")

		switch cmd {
		case "IDSESSION":
			// no reply
		case "VERSION":
			fmt.Fprintf(conn, "%d: %s\n", id, opts.versionReply)
			id++
		case "PING":
			fmt.Fprintf(conn, "%d: %s\n", id, opts.pingReply)
			id++
		case "END":
			return
		case "INSTREAM":
			if !drainInstream(reader) {
				return
			}
			if opts.closeOnInstream {
				return
			}
			fmt.Fprintf(conn, "%d: stream: %s\n", id, opts.instreamReply)
			id++
		default:
			// ignore unrecognized commands
		}
	}
}

// drainInstream reads chunks until the zero-length terminator, returning
// false if the stream failed before the terminator arrived.
func drainInstream(r *bufio.Reader) bool {
	for {
		var lenBuf [4]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			return false
		}
		n := binary.BigEndian.Uint32(lenBuf[:])
		if n == 0 {
			return true
		}
		if _, err := io.CopyN(io.Discard, r, int64(n)); err != nil {
			return false
		}
	}
}
