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

// State is one point in the engine's lifecycle. Transitions are monotone
// except into Failed, which is reachable from any non-Closed state.
//
// The source plugin's state enum also carries Updating and Reloading
// values that are never entered; they are omitted here rather than kept
// around as dead cases.
type State int32

const (
	Closed State = iota
	Initializing
	Running
	Closing
	Failed
)

func (s State) String() string {
	switch s {
	case Closed:
		return "Closed"
	case Initializing:
		return "Initializing"
	case Running:
		return "Running"
	case Closing:
		return "Closing"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}
