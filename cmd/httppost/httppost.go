// SPDX-License-Identifier: MIT
//
// Copyright © 2018 Kent Gibson <warthog618@gmail.com>.

// httppost attaches to GPRS and POSTs a JSON document to a server.
package main

import (
	"context"
	"encoding/json"
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
	url := flag.String("url", "", "server URL, overriding the config")
	msg := flag.String("m", `{"device":"sim900"}`, "JSON document to send")
	verbose := flag.Bool("v", false, "log modem interactions")
	flag.Parse()
	if !json.Valid([]byte(*msg)) {
		log.Fatalf("invalid JSON: %s", *msg)
	}
	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			log.Fatal(err)
		}
	}
	if *url != "" {
		cfg.HTTP.URL = *url
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
	if err := m.PostData(ctx, *msg, cfg.HTTP.URL); err != nil {
		log.Println(err)
		return
	}
	fmt.Println("sent")
}
