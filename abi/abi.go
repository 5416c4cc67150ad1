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

// Package abi realizes the thin slice of the host-plugin vtable boundary
// the core scanning engine needs a home against: integer result codes, the
// process-wide fixed-size error buffer, and static plugin-info. The rest of
// the real ABI — the C calling convention, the dynamic-loader entry point,
// config get/set/free — is a named collaborator, not reimplemented here.
package abi

import (
	"sync"

	"github.com/kerio-oss/clamavguard/engine"
	"github.com/kerio-oss/clamavguard/session"
)

// maxString is the host ABI's fixed error-buffer size (MAX_STRING in
// avCommon.c).
const maxString = 512

// ResultCode is the host-visible integer a scan collapses to. Values are
// fixed by the host ABI and must never be renumbered.
type ResultCode int

const (
	Failed     ResultCode = 0
	OK         ResultCode = 1
	VirusFound ResultCode = 2
	// VirusCured is never emitted by this engine; the original plugin
	// never emitted it either. Kept only so the numbering matches the
	// host's vtable exactly.
	VirusCured ResultCode = 3
	Impossible ResultCode = 4
	Error      ResultCode = 5
)

func (r ResultCode) String() string {
	switch r {
	case Failed:
		return "FAILED"
	case OK:
		return "OK"
	case VirusFound:
		return "VIRUS_FOUND"
	case VirusCured:
		return "VIRUS_CURED"
	case Impossible:
		return "IMPOSSIBLE"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// fromVerdict maps the session package's Verdict onto the host's
// ResultCode. The two enumerations are deliberately kept separate: Verdict
// is an internal classification with room for descriptive text attached,
// ResultCode is the frozen wire value the host switches on.
func fromVerdict(v session.Verdict) ResultCode {
	switch v {
	case session.VerdictOK:
		return OK
	case session.VerdictVirusFound:
		return VirusFound
	case session.VerdictImpossible:
		return Impossible
	case session.VerdictFailed:
		return Failed
	default:
		return Error
	}
}

// Info is the static plugin-info the host's getPluginInfo vtable slot
// copies out, grounded on avApi.h's avir_plugin_info shape (name,
// description) plus the API version get_plugin_extended_iface reports.
type Info struct {
	Name        string
	Description string
	APIVersion  uint
}

// PluginInfo is the fixed identity this plugin reports to a host.
var PluginInfo = Info{
	Name:        "ClamAvGuard",
	Description: "Streams files to a ClamAV-compatible daemon over TCP for on-access scanning",
	APIVersion:  2,
}

// Handle is the opaque per-worker token ThreadInit hands back, mirroring
// the host ABI's void* context parameter.
type Handle struct {
	ctx *engine.ThreadContext
}

// Plugin wraps one engine.Engine with the process-wide fixed-size error
// buffer the host ABI expects at getErrorMessage. The core engine never
// touches the buffer directly; it returns typed errors and Plugin
// stringifies and truncates them in here, per the design note carried over
// from the source plugin's global errorMessage[MAX_STRING].
type Plugin struct {
	engine *engine.Engine

	mu     sync.Mutex
	errBuf string
}

// New builds a Plugin around a fresh engine.Engine using log as the
// variadic log sink the host ABI supplies.
func New(log engine.LogFunc) *Plugin {
	return &Plugin{engine: engine.New(engine.NewLogger(log))}
}

// Info returns this plugin's static identity.
func (p *Plugin) Info() Info { return PluginInfo }

// Engine exposes the wrapped engine.Engine for host harnesses that need its
// counters (a stats logger, a SIGUSR1 diagnostic dump) without going
// through the ResultCode-shaped vtable methods.
func (p *Plugin) Engine() *engine.Engine { return p.engine }

// LastError returns the most recently recorded Init/connect-class error
// message, truncated to the host ABI's 512-byte buffer. Empty if nothing
// has failed yet.
func (p *Plugin) LastError() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.errBuf
}

func (p *Plugin) setError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		p.errBuf = ""
		return
	}
	msg := err.Error()
	if ie, ok := err.(*engine.InitError); ok {
		msg = ie.Message()
	}
	p.errBuf = truncateCString(msg, maxString)
}

// truncateCString mimics strncpy-then-NUL-terminate: it clamps s to at most
// limit-1 bytes, reserving room for the C string's trailing NUL the host
// buffer still implies even though Go strings carry no terminator of their
// own. Grounded on avCommon.c's getErrorMessage/getPluginInfo, both of
// which strncpy into a fixed buffer and then force the final byte to zero.
func truncateCString(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if len(s) > limit-1 {
		return s[:limit-1]
	}
	return s
}

// Init resolves and connects to the configured daemon, arming the engine's
// keep-alive scheduler on success. Any failure is recorded into the error
// buffer and reported as Error, matching the host ABI's single fatal
// result code for an init failure.
func (p *Plugin) Init(opts map[string]string) ResultCode {
	if err := p.engine.Init(opts); err != nil {
		p.setError(err)
		return Error
	}
	p.setError(nil)
	return OK
}

// Close tears the engine down, draining in-flight scans first.
func (p *Plugin) Close() ResultCode {
	if err := p.engine.Close(); err != nil {
		p.setError(err)
		return Error
	}
	return OK
}

// ThreadInit opens a per-worker session and returns its opaque handle.
func (p *Plugin) ThreadInit() (*Handle, ResultCode) {
	ctx, err := p.engine.ThreadInit()
	if err != nil {
		p.setError(err)
		return nil, Error
	}
	return &Handle{ctx: ctx}, OK
}

// ThreadClose releases a handle obtained from ThreadInit.
func (p *Plugin) ThreadClose(h *Handle) ResultCode {
	if h == nil {
		return OK
	}
	if err := p.engine.ThreadClose(h.ctx); err != nil {
		p.setError(err)
		return Error
	}
	return OK
}

// TestFile scans filename using h and returns the host-visible result code
// plus descriptive text, matching the out_result/out_text pair of the
// source plugin's testFile.
func (p *Plugin) TestFile(h *Handle, filename string) (ResultCode, string) {
	var ctx *engine.ThreadContext
	if h != nil {
		ctx = h.ctx
	}
	verdict, text := p.engine.TestFile(ctx, filename)
	return fromVerdict(verdict), truncateCString(text, maxString)
}
