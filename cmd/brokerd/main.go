// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Command brokerd runs the message broker server. Its flags are
// -loglevel/-debug, -config (path of the config file, config.toml in
// the working directory by default) and -sweep_interval (retention
// sweeper period); all other server settings come from the config file.
package main

import (
	"flag"
	"log"
	"net"
	"time"

	"comail.io/go/colog"

	"github.com/Lyn-liyuan/sonicrabMQ/internal/config"
	"github.com/Lyn-liyuan/sonicrabMQ/internal/registry"
	"github.com/Lyn-liyuan/sonicrabMQ/internal/retention"
	"github.com/Lyn-liyuan/sonicrabMQ/internal/server"
	"github.com/Lyn-liyuan/sonicrabMQ/internal/store"
)

var (
	debug         = flag.Bool("debug", false, "Start on debug mode")
	logLevel      = flag.String("loglevel", "info", "Logging level")
	configPath    = flag.String("config", "config.toml", "Path to the config.toml file")
	sweepInterval = flag.Duration("sweep_interval", 30*time.Second, "Interval at which the retention sweeper runs")
)

func main() {
	flag.Parse()
	colog.Register()

	ll, err := colog.ParseLevel(*logLevel)
	fatalOn(err)
	colog.SetMinLevel(ll)

	if *debug {
		colog.SetFlags(log.LstdFlags | log.Lshortfile)
		colog.SetMinLevel(colog.LTrace)
	}

	cfg, err := config.Load(*configPath)
	fatalOn(err)

	storage, err := cfg.ParsedStorage()
	fatalOn(err)

	reg, err := registry.Open(cfg.Server.Path, int(cfg.Server.BrokerLimit), store.Config{
		MaxFileSize:  storage.MaxFileSize,
		PullMaxLimit: storage.PullMaxLimit,
		CacheLimit:   storage.CacheLimit,
	})
	fatalOn(err)

	stopSweep := make(chan struct{})
	sweeper := retention.New(cfg.Server.Path, cacheFilesPerBroker(storage.CacheLimit))
	go sweeper.Run(*sweepInterval, stopSweep)

	ln, err := net.Listen("tcp", cfg.Addr())
	fatalOn(err)

	log.Printf("info: listening on %q", cfg.Addr())
	log.Printf("info: data dir on %q", cfg.Server.Path)

	srv := server.New(ln, reg, cfg.Server.Authorization)
	log.Fatalf("alert: %s\n", srv.Serve())
}

// cacheFilesPerBroker converts the segment cache_limit (a count of
// sealed segments kept mmapped) into the file count the sweeper keeps
// on disk per broker: one sealed segment is a .data/.index pair, plus
// the always-live active segment's own pair.
func cacheFilesPerBroker(cacheLimit int) int {
	return (cacheLimit + 1) * 2
}

func fatalOn(err error) {
	if err != nil {
		log.Fatalf("alert: %s\n", err)
	}
}
