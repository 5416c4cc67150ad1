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
	"strconv"
	"strings"
)

const (
	// DefaultPort is used when the host's configuration omits Port.
	DefaultPort = "3310"

	minStartupTimeoutSeconds = 10
	maxStartupTimeoutSeconds = 100
)

// Config is the fixed set of options the engine recognizes. It is loaded
// from a host-supplied name/value mapping (mirroring the plugin ABI's
// avir_plugin_config array); names outside this set are ignored.
type Config struct {
	// Address is the daemon host to resolve and connect to. There is no
	// default: an empty Address fails Init at the resolve step.
	Address string
	// Port is the daemon's TCP port, defaulting to DefaultPort.
	Port string
	// StartupTimeoutSeconds bounds every blocking I/O call a session
	// makes, clamped to [10, 100].
	StartupTimeoutSeconds int
}

// LoadConfig reads the known keys ("Address", "Port", "StartupTimeout") out
// of opts, case-insensitively, and applies the documented defaults and
// clamps. Unknown keys are ignored.
func LoadConfig(opts map[string]string) Config {
	cfg := Config{Port: DefaultPort}

	for name, value := range opts {
		switch strings.ToLower(name) {
		case "address":
			cfg.Address = value
		case "port":
			cfg.Port = value
		case "startuptimeout":
			if n, err := strconv.Atoi(value); err == nil {
				cfg.StartupTimeoutSeconds = n
			}
		}
	}

	if cfg.StartupTimeoutSeconds < minStartupTimeoutSeconds {
		cfg.StartupTimeoutSeconds = minStartupTimeoutSeconds
	}
	if cfg.StartupTimeoutSeconds > maxStartupTimeoutSeconds {
		cfg.StartupTimeoutSeconds = maxStartupTimeoutSeconds
	}
	return cfg
}
