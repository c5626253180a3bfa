// SPDX-License-Identifier: MIT
//
// Copyright © 2018 Kent Gibson <warthog618@gmail.com>.

// modeminfo collects and displays information related to the modem and its
// current state.
//
// This serves as an example of how interact with a modem, as well as
// providing information which may be useful for debugging.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/warthog618/sim900/at"
	"github.com/warthog618/sim900/serial"
	"github.com/warthog618/sim900/sim900"
	"github.com/warthog618/sim900/trace"
	"go.uber.org/zap"
)

var version = "undefined"

func main() {
	dev := flag.String("d", "/dev/ttyUSB0", "path to modem device")
	baud := flag.Int("b", 9600, "baud rate")
	verbose := flag.Bool("v", false, "log modem interactions")
	vsn := flag.Bool("version", false, "report version and exit")
	flag.Parse()
	if *vsn {
		fmt.Printf("%s %s\n", os.Args[0], version)
		os.Exit(0)
	}
	options := []sim900.Option{}
	var p at.Port = serial.New(serial.WithPort(*dev), serial.WithBaud(*baud))
	if *verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			log.Fatal(err)
		}
		defer l.Sync()
		p = trace.New(p, trace.WithLogger(l.Sugar()))
		options = append(options, sim900.WithLogger(l))
	}
	m := sim900.New(p, options...)
	if err := m.Open(); err != nil {
		log.Println(err)
		return
	}
	defer m.Close()

	ctx := context.Background()
	ok, err := m.IsConnected(ctx)
	if err != nil {
		log.Println(err)
		return
	}
	fmt.Println("connected:", ok)
	if !ok {
		return
	}
	q, err := m.SignalQuality(ctx)
	report("signal quality", q, err)
	d, err := m.Date(ctx)
	report("date", d, err)
	h, err := m.Hour(ctx)
	report("hour", h, err)
}

func report(name string, v interface{}, err error) {
	if err != nil {
		fmt.Printf("%s: %s\n", name, err)
		return
	}
	fmt.Printf("%s: %v\n", name, v)
}
