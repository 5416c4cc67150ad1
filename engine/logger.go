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

import "fmt"

// LogFunc is the shape of the variadic logging callback a host supplies;
// it receives one already-formatted line per call.
type LogFunc func(line string)

// Logger fans formatted lines out to a host-supplied LogFunc, tagging each
// with one of the four prefixes the host-plugin ABI recognizes. Debug
// lines are tagged "External_plugin: " rather than left unprefixed, the
// same as the source's logDebug.
type Logger struct {
	out LogFunc
}

// NewLogger wraps out. A nil out discards everything, which is convenient
// for tests that don't care about log output.
func NewLogger(out LogFunc) *Logger {
	if out == nil {
		out = func(string) {}
	}
	return &Logger{out: out}
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.out("External_plugin: " + fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.out("WRN: " + fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.out("ERR: " + fmt.Sprintf(format, args...))
}

func (l *Logger) Secf(format string, args ...interface{}) {
	l.out("SEC: " + fmt.Sprintf(format, args...))
}
