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

package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli"

	"github.com/kerio-oss/clamavguard/abi"
	"github.com/kerio-oss/clamavguard/engine"
)

// VERSION is injected by buildflags.
var VERSION = "SELFBUILD"

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	myApp := cli.NewApp()
	myApp.Name = "clamavguard-host"
	myApp.Usage = "standalone harness around the clamavguard scanning engine"
	myApp.Version = VERSION
	myApp.Flags = []cli.Flag{
		cli.StringFlag{Name: "address, a", Value: "127.0.0.1", Usage: "ClamAV daemon host or IP"},
		cli.StringFlag{Name: "port, p", Value: engine.DefaultPort, Usage: "ClamAV daemon port"},
		cli.IntFlag{Name: "startup-timeout", Value: 10, Usage: "seconds allowed for connecting and the bootstrap handshake"},
		cli.StringFlag{Name: "config, c", Value: "", Usage: "config from JSON file, overrides the flags above"},
		cli.StringFlag{Name: "log", Value: "", Usage: "log file to append to, default goes to stderr"},
		cli.StringFlag{Name: "stats", Value: "", Usage: "CSV file to periodically append engine counters to"},
		cli.IntFlag{Name: "stats-period", Value: 60, Usage: "seconds between stats rows"},
	}
	myApp.Commands = []cli.Command{
		{
			Name:      "scan",
			Usage:     "scan a single file and print the verdict",
			ArgsUsage: "<path>",
			Action:    runScan,
		},
		{
			Name:  "serve",
			Usage: "keep the engine initialized and idle until terminated",
			Action: runServe,
		},
	}
	if err := myApp.Run(os.Args); err != nil {
		log.Fatalf("%+v", err)
	}
}

func loadConfig(c *cli.Context) Config {
	cfg := Config{
		Address:        c.GlobalString("address"),
		Port:           c.GlobalString("port"),
		StartupTimeout: c.GlobalInt("startup-timeout"),
		Log:            c.GlobalString("log"),
		Stats:          c.GlobalString("stats"),
		StatsPeriod:    c.GlobalInt("stats-period"),
	}
	if path := c.GlobalString("config"); path != "" {
		if err := parseJSONConfig(&cfg, path); err != nil {
			log.Fatalf("%+v", err)
		}
	}
	if cfg.Log != "" {
		f, err := os.OpenFile(cfg.Log, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
		if err != nil {
			log.Fatalf("%+v", err)
		}
		log.SetOutput(f)
	}
	return cfg
}

func newPlugin(cfg Config) *abi.Plugin {
	p := abi.New(func(line string) { log.Println(line) })
	code := p.Init(map[string]string{
		"Address":        cfg.Address,
		"Port":           cfg.Port,
		"StartupTimeout": fmt.Sprint(cfg.StartupTimeout),
	})
	if code != abi.OK {
		log.Fatalf("init failed: %s", p.LastError())
	}
	return p
}

func runScan(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.NewExitError("usage: clamavguard-host scan <path>", 2)
	}
	path := c.Args().First()
	cfg := loadConfig(c)

	p := newPlugin(cfg)
	defer p.Close()

	handle, code := p.ThreadInit()
	if code != abi.OK {
		return cli.NewExitError(p.LastError(), 1)
	}
	defer p.ThreadClose(handle)

	result, text := p.TestFile(handle, path)
	printVerdict(result, text)

	if result == abi.VirusFound || result == abi.Error {
		return cli.NewExitError("", 1)
	}
	return nil
}

func runServe(c *cli.Context) error {
	cfg := loadConfig(c)
	p := newPlugin(cfg)

	stop := make(chan struct{})
	if cfg.Stats != "" {
		period := time.Duration(cfg.StatsPeriod) * time.Second
		go engine.RunStatsLogger(cfg.Stats, period, p.Engine().Snapshot, func(f string, a ...interface{}) {
			log.Printf(f, a...)
		}, stop)
	}

	go watchSignals(p.Engine())

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	log.Println("clamavguard-host serving, address:", cfg.Address, "port:", cfg.Port)
	<-sigs

	close(stop)
	log.Println("shutting down")
	if code := p.Close(); code != abi.OK {
		log.Printf("close reported an error: %s", p.LastError())
	}
	return nil
}

func printVerdict(result abi.ResultCode, text string) {
	switch result {
	case abi.OK:
		color.Green("OK: %s", text)
	case abi.VirusFound:
		color.Red("VIRUS_FOUND: %s", text)
	case abi.Impossible:
		color.Yellow("IMPOSSIBLE: %s", text)
	default:
		color.Red("%s: %s", result, text)
	}
}
