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

import "time"

// KeepAlivePeriod is how many one-second ticks pass between keep-alive
// sweeps of the registry.
const KeepAlivePeriod = 60

// KeepAlive periodically pings every session in a Registry so idle
// connections aren't reaped by the daemon.
type KeepAlive struct {
	registry *Registry
	logf     func(format string, args ...interface{})

	// period and tick let tests run the scheduler at a sub-second cadence;
	// production code leaves them zero and gets KeepAlivePeriod/1s.
	period int
	tick   time.Duration
}

// NewKeepAlive builds a scheduler over registry. logf receives a formatted
// warning line for each ping failure; it may be nil to discard them.
func NewKeepAlive(registry *Registry, logf func(format string, args ...interface{})) *KeepAlive {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &KeepAlive{registry: registry, logf: logf}
}

// Run sleeps in one-second increments, sweeping the registry every
// KeepAlivePeriod ticks, until closing reports true. It returns when
// closing first reports true, so callers can run it in its own goroutine
// and join on return.
//
// An empty registry at the moment the countdown reaches zero does NOT
// reset the countdown: the scheduler keeps re-checking every subsequent
// tick until the registry is non-empty, at which point it fires
// immediately and only then resets to KeepAlivePeriod. This means a
// session registered right after an idle period can be pinged well inside
// of 60 seconds. This is preserved from the original plugin rather than
// "fixed", per the design notes around this tradeoff.
func (k *KeepAlive) Run(closing func() bool) {
	period := k.period
	if period == 0 {
		period = KeepAlivePeriod
	}
	tick := k.tick
	if tick == 0 {
		tick = time.Second
	}

	countdown := period
	for {
		if closing() {
			return
		}
		time.Sleep(tick)
		if countdown > 0 {
			countdown--
		}
		if countdown != 0 {
			continue
		}

		sessions := k.registry.Snapshot()
		if len(sessions) == 0 {
			continue
		}
		for _, s := range sessions {
			// A failed ping is only logged: the session stays registered and
			// is pinged again next sweep, so a transient daemon hiccup does
			// not stop keep-alive for a live worker. Only ThreadClose
			// unregisters a session.
			if err := s.Ping(); err != nil {
				k.logf("keep-alive ping failed: %v", err)
			}
		}
		countdown = period
	}
}
