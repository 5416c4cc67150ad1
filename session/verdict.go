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

import "strings"

// Verdict is the outcome of a single scan against the daemon.
type Verdict int

const (
	// VerdictOK means the file is clean.
	VerdictOK Verdict = iota
	// VerdictVirusFound means a signature matched.
	VerdictVirusFound
	// VerdictImpossible means the file could not be scanned for a reason
	// that isn't a daemon malfunction (encrypted, broken archive, ...).
	VerdictImpossible
	// VerdictFailed means the daemon returned an explicit error, or a
	// precondition on the local file failed.
	VerdictFailed
	// VerdictError means the transport failed or the daemon did not
	// respond; callers should treat this as fatal to the session.
	VerdictError
)

func (v Verdict) String() string {
	switch v {
	case VerdictOK:
		return "OK"
	case VerdictVirusFound:
		return "VIRUS_FOUND"
	case VerdictImpossible:
		return "IMPOSSIBLE"
	case VerdictFailed:
		return "FAILED"
	case VerdictError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// impossibleSignatures lists the signature prefixes that indicate the file
// could not be scanned rather than that it is infected. Matching is by
// prefix, not substring: "Heuristics.Encrypted.ZIP" matches
// "Heuristics.Encrypted" but "FooHeuristics.Encrypted" would not.
var impossibleSignatures = []string{"Encrypted", "Broken", "Heuristics.Encrypted"}

// ClassifyReply turns the (already id/stream:-stripped) reply text from a
// scan into a Verdict and the text the host should see. readErr is the
// error returned by Codec.ReadReply, if any; text is whatever ReadReply
// returned alongside it (either the parsed reply or one of its two fixed
// diagnostic strings).
func ClassifyReply(text string, readErr error) (Verdict, string) {
	if readErr != nil {
		if text != "" {
			return VerdictError, "Scanning failed - The file cannot be scanned. Response: " + text + "."
		}
		return VerdictError, "Scanning failed - The file cannot be scanned. Scanner did not respond."
	}

	if text == "" {
		return VerdictError, "Scanning failed - The file cannot be scanned. Scanner did not respond."
	}

	if text == "OK" {
		return VerdictOK, "Clean"
	}

	lastSpace := strings.LastIndex(text, " ")
	if lastSpace == -1 {
		// No trailing word to classify on. The source leaves its result
		// variable at its default (an internal-error sentinel) in this
		// case; preserved here rather than guessing at a better message.
		return VerdictError, "Internal error"
	}

	signature := text[:lastSpace]
	lastWord := text[lastSpace+1:]

	if lastWord != "FOUND" {
		return VerdictFailed, "Scanning failed - ClamAV Server returns error: " + signature
	}

	for _, prefix := range impossibleSignatures {
		if strings.HasPrefix(signature, prefix) {
			return VerdictImpossible, signature
		}
	}
	return VerdictVirusFound, signature
}
