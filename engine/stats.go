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

package engine

import (
	"encoding/csv"
	"fmt"
	"os"
	"time"
)

// StatsSnapshot is one row of periodic engine telemetry.
type StatsSnapshot struct {
	RunningThreads     int64
	RegisteredSessions int
	State              State
}

// RunStatsLogger appends a StatsSnapshot row to path every interval, until
// stop is closed. It reopens the file on every tick rather than holding a
// handle for the process lifetime, the same shape as the teacher's
// SnmpLogger, so external rotation (logrotate copytruncate) needs no
// coordination with this goroutine.
func RunStatsLogger(path string, interval time.Duration, snapshot func() StatsSnapshot, logf func(format string, args ...interface{}), stop <-chan struct{}) {
	if path == "" || interval <= 0 {
		return
	}
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := appendStatsRow(path, snapshot()); err != nil {
				logf("failed to write stats row: %v", err)
			}
		}
	}
}

func appendStatsRow(path string, s StatsSnapshot) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if fi.Size() == 0 {
		if err := w.Write([]string{"unix_time", "running_threads", "registered_sessions", "state"}); err != nil {
			return err
		}
	}

	row := []string{
		fmt.Sprint(time.Now().Unix()),
		fmt.Sprint(s.RunningThreads),
		fmt.Sprint(s.RegisteredSessions),
		s.State.String(),
	}
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
