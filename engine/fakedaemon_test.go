package engine

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strings"
	"sync/atomic"
	"testing"
)

// fakeDaemonOpts scripts the minimal IDSESSION protocol Init, ThreadInit and
// TestFile drive: VERSION, PING, and INSTREAM uploads. Unlike the session
// package's fake (which serves exactly one connection, matching a single
// Session test), this one accepts connections in a loop for the lifetime of
// the listener since Init's bootstrap handshake and every ThreadInit each
// open their own connection.
type fakeDaemonOpts struct {
	versionReply  string
	pingReply     string
	instreamReply string
}

func startFakeDaemon(t *testing.T, opts fakeDaemonOpts) string {
	t.Helper()

	if opts.versionReply == "" {
		opts.versionReply = "ClamAV 1.2.0/27000/Mon Jan  1 00:00:00 2026"
	}
	if opts.pingReply == "" {
		opts.pingReply = "PONG"
	}
	if opts.instreamReply == "" {
		opts.instreamReply = "OK"
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	var closed atomic.Bool
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			if closed.Load() {
				conn.Close()
				return
			}
			go serveFakeDaemon(conn, opts)
		}
	}()
	t.Cleanup(func() { closed.Store(true) })

	return ln.Addr().String()
}

func serveFakeDaemon(conn net.Conn, opts fakeDaemonOpts) {
	defer conn.Close()
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
			fmt.Fprintf(conn, "%d: stream: %s\n", id, opts.instreamReply)
			id++
		default:
			// ignore unrecognized commands
		}
	}
}

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
