// The MIT License (MIT)
//
// Copyright (c) 2024 clamavguard authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package session implements one persistent IDSESSION connection to a
// ClamAV-compatible daemon: the wire codec, the scan/ping/version
// operations, the registry that keep-alive sweeps, and the keep-alive
// scheduler itself.
package session

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	streamReplyPrefix = "stream: "

	// connFailedMsg is reported when the stream was healthy when the read
	// began but failed during or after it (EOF, reset).
	connFailedMsg = "Connection to ClamAV Server has failed."
	// connErrorMsg is reported when the stream was already broken before
	// the call was made.
	connErrorMsg = "An error has occurred. Check your connection."
)

// errBroken marks a Codec whose underlying stream has already failed once;
// mirrors ClamPlugin.cpp's SyncStream distinguishing "stream not good at
// entry" from "stream failed during this call".
var errBroken = errors.New("session: stream is broken")

// Codec frames outgoing commands and INSTREAM uploads on an
// already-connected stream, and parses the daemon's newline-terminated
// textual replies. It is not safe for concurrent use; callers serialize
// access (Session does this with its own mutex).
type Codec struct {
	conn   net.Conn
	reader *bufio.Reader
	broken bool
}

// NewCodec wraps an already-connected stream.
func NewCodec(conn net.Conn) *Codec {
	return &Codec{conn: conn, reader: bufio.NewReader(conn)}
}

// SendCommand writes "n" + text + "\n" to the stream. There is no
// user-space buffering to flush: each Write reaches the socket directly.
func (c *Codec) SendCommand(text string, timeout time.Duration) error {
	if c.broken {
		return errBroken
	}
	return c.withDeadline(timeout, func() error {
		if _, err := fmt.Fprintf(c.conn, "n%s\n", text); err != nil {
			c.broken = true
			return errors.Wrapf(err, "send command %q", text)
		}
		return nil
	})
}

// SendFileInstream uploads path as a single length-prefixed INSTREAM chunk
// terminated by a zero-length chunk. It must be called only after
// "INSTREAM" has already been sent with SendCommand. The stat used to
// determine the chunk length does not follow symlinks, matching the
// original plugin's use of lstat(2) rather than stat(2).
func (c *Codec) SendFileInstream(path string, timeout time.Duration) error {
	if c.broken {
		return errBroken
	}
	return c.withDeadline(timeout, func() error {
		fi, err := os.Lstat(path)
		if err != nil {
			return errors.Wrap(err, "stat file")
		}

		f, err := os.Open(path)
		if err != nil {
			return errors.Wrap(err, "open file")
		}
		defer f.Close()

		var header [4]byte
		binary.BigEndian.PutUint32(header[:], uint32(fi.Size()))
		if _, err := c.conn.Write(header[:]); err != nil {
			c.broken = true
			return errors.Wrap(err, "write chunk header")
		}
		if _, err := io.Copy(c.conn, f); err != nil {
			c.broken = true
			return errors.Wrap(err, "write chunk body")
		}

		var terminator [4]byte
		if _, err := c.conn.Write(terminator[:]); err != nil {
			c.broken = true
			return errors.Wrap(err, "write instream terminator")
		}
		return nil
	})
}

// ReadReply reads one newline-terminated reply, strips the leading
// "<id>: " prefix added by IDSESSION and the further "stream: " prefix
// added to scan replies. id is zero when no numeric prefix was present.
//
// On failure text is set to one of two fixed diagnostic strings rather
// than whatever partial data was read, matching the source: connErrorMsg
// if the stream was already broken on entry, connFailedMsg if it failed
// servicing this read.
func (c *Codec) ReadReply(timeout time.Duration) (id uint32, text string, err error) {
	if c.broken {
		return 0, connErrorMsg, errBroken
	}

	err = c.withDeadline(timeout, func() error {
		line, rerr := c.reader.ReadString('\n')
		if rerr != nil {
			c.broken = true
			text = connFailedMsg
			return errors.Wrap(rerr, "read reply")
		}

		line = strings.TrimSpace(line)
		if idx := strings.Index(line, ": "); idx >= 0 {
			if n, perr := strconv.ParseUint(line[:idx], 10, 32); perr == nil {
				id = uint32(n)
				line = line[idx+2:]
			}
		}
		if strings.HasPrefix(line, streamReplyPrefix) {
			line = line[len(streamReplyPrefix):]
		}
		text = line
		return nil
	})
	return id, text, err
}

func (c *Codec) withDeadline(timeout time.Duration, fn func() error) error {
	if err := c.conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return errors.Wrap(err, "set deadline")
	}
	defer c.conn.SetDeadline(time.Time{})
	return fn()
}
