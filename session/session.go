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

package session

import (
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Endpoint is a resolved daemon address: a bare IP string and a port
// string, assembled once by the engine after name resolution.
type Endpoint struct {
	IP   string
	Port string
}

func (e Endpoint) String() string {
	return net.JoinHostPort(e.IP, e.Port)
}

// Session owns one TCP connection to the daemon in IDSESSION mode, plus the
// mutex that keeps scan and keep-alive traffic from interleaving on the
// wire. While a Session is registered with a Registry its connection must
// stay open and in IDSESSION mode; once unregistered it must never be
// reused.
type Session struct {
	mu      sync.Mutex
	conn    net.Conn
	codec   *Codec
	timeout time.Duration
}

// New constructs a Session with no connection yet; call Connect before any
// other method.
func New(timeout time.Duration) *Session {
	return &Session{timeout: timeout}
}

// Connect opens a TCP connection to endpoint under the session's timeout.
func (s *Session) Connect(endpoint Endpoint) error {
	conn, err := net.DialTimeout("tcp", endpoint.String(), s.timeout)
	if err != nil {
		return errors.Wrapf(err, "connect to %s", endpoint)
	}
	s.conn = conn
	s.codec = NewCodec(conn)
	return nil
}

// Close releases the underlying connection without sending END. Callers
// that want a clean daemon-side teardown should call EndSession first.
func (s *Session) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// StartSession sends IDSESSION, putting the connection into id-prefixed
// reply mode.
func (s *Session) StartSession() error {
	return s.codec.SendCommand("IDSESSION", s.timeout)
}

// EndSession sends END, leaving IDSESSION mode. The connection is still
// open afterward; callers close it separately.
func (s *Session) EndSession() error {
	return s.codec.SendCommand("END", s.timeout)
}

// GetVersion sends VERSION and reads the reply into version.
//
// Contract subtlety preserved from the source plugin: if the send itself
// fails, GetVersion still reports success with version set to "unknown";
// only a read failure is reported as an error. This is what lets Init treat
// a daemon that never answers VERSION (too old or unreachable) as fatal at
// the bootstrap handshake, while a failed send alone is not.
func (s *Session) GetVersion() (version string, err error) {
	if sendErr := s.codec.SendCommand("VERSION", s.timeout); sendErr != nil {
		return "unknown", nil
	}
	_, text, err := s.codec.ReadReply(s.timeout)
	if err != nil {
		return "", errors.Wrap(err, "read version reply")
	}
	return text, nil
}

// Ping attempts a non-blocking acquire of the session's mutex. If a scan is
// in progress the mutex is held and Ping returns success without sending
// anything, so keep-alive never competes with live scan traffic. Otherwise
// it sends PING and succeeds iff the reply is exactly "PONG".
func (s *Session) Ping() error {
	if !s.mu.TryLock() {
		return nil
	}
	defer s.mu.Unlock()

	if err := s.codec.SendCommand("PING", s.timeout); err != nil {
		return errors.Wrap(err, "send ping")
	}
	_, text, err := s.codec.ReadReply(s.timeout)
	if err != nil {
		return errors.Wrap(err, "read ping reply")
	}
	if text != "PONG" {
		return errors.Errorf("unexpected ping reply %q", text)
	}
	return nil
}

// Scan takes the session's mutex exclusively, uploads path via INSTREAM and
// classifies the daemon's reply.
func (s *Session) Scan(path string) (Verdict, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.codec.SendCommand("INSTREAM", s.timeout); err != nil {
		return VerdictError, "Cannot send stream to the ClamAV Server while processing scan of :" + path
	}
	if err := s.codec.SendFileInstream(path, s.timeout); err != nil {
		return VerdictError, "Cannot send file to the ClamAV Server: " + path
	}
	_, text, err := s.codec.ReadReply(s.timeout)
	return ClassifyReply(text, err)
}
