// SPDX-License-Identifier: MIT
//
// Copyright © 2018 Kent Gibson <warthog618@gmail.com>.

// httpget attaches to GPRS and prints the JSON returned by an HTTP GET.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/warthog618/sim900/at"
	"github.com/warthog618/sim900/config"
	"github.com/warthog618/sim900/serial"
	"github.com/warthog618/sim900/sim900"
	"github.com/warthog618/sim900/trace"
	"go.uber.org/zap"
)

func main() {
	cfgPath := flag.String("c", "", "path to config file")
	verbose := flag.Bool("v", false, "log modem interactions")
	flag.Parse()
	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			log.Fatal(err)
		}
	}
	url := cfg.HTTP.URL
	if flag.NArg() > 0 {
		url = flag.Arg(0)
	}
	l := zap.NewNop()
	var p at.Port = serial.New(serial.WithPort(cfg.Modem.Device), serial.WithBaud(cfg.Modem.Baud))
	if *verbose {
		var err error
		if l, err = zap.NewDevelopment(); err != nil {
			log.Fatal(err)
		}
		p = trace.New(p, trace.WithLogger(l.Sugar()))
	}
	m := sim900.New(p, sim900.WithTiming(cfg.Timing()), sim900.WithLogger(l))
	if err := m.Open(); err != nil {
		log.Fatal(err)
	}
	defer m.Close()

	ctx := context.Background()
	if err := m.SetGPRS(ctx, cfg.HTTP.APN); err != nil {
		log.Println(err)
		return
	}
	rsp, err := m.GetData(ctx, url)
	if err != nil {
		log.Println(err)
		return
	}
	fmt.Println(rsp)
}
