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

import "github.com/pkg/errors"

// InitError is returned by Init and ThreadInit. Message is the short,
// host-facing string meant for the 512-byte global error buffer the abi
// package owns; the wrapped cause (if any) carries the full chain for
// anyone calling Error() or formatting with "%+v".
type InitError struct {
	message string
	cause   error
}

func wrapInitError(message string, cause error) *InitError {
	return &InitError{message: message, cause: errors.WithStack(cause)}
}

func (e *InitError) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

func (e *InitError) Unwrap() error { return e.cause }

// Message is the string the spec's global error buffer should receive —
// no Go error-wrapping punctuation, just what the source would have put in
// errorMessage.
func (e *InitError) Message() string { return e.message }

// ErrAlreadyInitialized is the cause wrapped into the *InitError Init
// returns when called while the engine is not in Closed or Failed state;
// callers can recover it with errors.Is.
var ErrAlreadyInitialized = errors.New("the ClamAV plugin has already been initialized")
