// SPDX-License-Identifier: MIT
//
// Copyright © 2018 Kent Gibson <warthog618@gmail.com>.

// sim900http checks the modem, attaches to GPRS, then POSTs a sample reading
// to a server and GETs a response from it.
//
// This serves as an example of the complete sequence of operations, as well
// as a test that the library works with the modem.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"

	"github.com/warthog618/sim900/at"
	"github.com/warthog618/sim900/config"
	"github.com/warthog618/sim900/serial"
	"github.com/warthog618/sim900/sim900"
	"github.com/warthog618/sim900/trace"
	"go.uber.org/zap"
)

var version = "undefined"

func main() {
	cfgPath := flag.String("c", "", "path to config file")
	dev := flag.String("d", config.DefaultDevice, "path to modem device")
	baud := flag.Int("b", config.DefaultBaud, "baud rate")
	apn := flag.String("apn", config.DefaultAPN, "GPRS access point name")
	url := flag.String("url", config.DefaultURL, "server URL")
	verbose := flag.Bool("v", false, "log modem interactions")
	vsn := flag.Bool("version", false, "report version and exit")
	flag.Parse()
	if *vsn {
		fmt.Printf("%s %s\n", os.Args[0], version)
		os.Exit(0)
	}
	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "d":
			cfg.Modem.Device = *dev
		case "b":
			cfg.Modem.Baud = *baud
		case "apn":
			cfg.HTTP.APN = *apn
		case "url":
			cfg.HTTP.URL = *url
		}
	})
	log := newLogger(*verbose)
	defer log.Sync()

	var p at.Port = serial.New(serial.WithPort(cfg.Modem.Device), serial.WithBaud(cfg.Modem.Baud))
	if *verbose {
		p = trace.New(p)
	}
	m := sim900.New(p, sim900.WithTiming(cfg.Timing()), sim900.WithLogger(log))
	defer m.Close()

	if err := m.Open(); err != nil {
		fmt.Println("Serial port error:", err)
		return
	}
	fmt.Println("Serial port opened.")

	ctx := context.Background()
	if ok, err := m.IsConnected(ctx); ok {
		fmt.Println("SIM900 is connected.")
	} else {
		fmt.Println("SIM900 not found.", errString(err))
	}

	q, err := m.SignalQuality(ctx)
	if err != nil {
		fmt.Println("Signal quality error:", err)
	} else {
		fmt.Printf("Signal quality is %d.\n", q)
	}

	if err := m.SetGPRS(ctx, cfg.HTTP.APN); err != nil {
		fmt.Println("Fail to set GPRS mode:", err)
	} else {
		fmt.Println("GPRS mode set.")
	}

	data, _ := json.Marshal(map[string]interface{}{
		"device": "sim900",
		"data":   1000 + rand.Intn(8000),
	})
	if err := m.PostData(ctx, string(data), cfg.HTTP.URL); err != nil {
		fmt.Println("HTTP POST error:", err)
	} else {
		fmt.Println("HTTP POST success.")
	}

	rsp, err := m.GetData(ctx, cfg.HTTP.URL)
	if err != nil {
		fmt.Println("HTTP GET error:", err)
		return
	}
	fmt.Println(rsp)
}

func newLogger(verbose bool) *zap.Logger {
	var log *zap.Logger
	var err error
	if verbose {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(log)
	return log
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
