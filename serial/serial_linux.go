// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

//go:build linux
// +build linux

package serial

var defaultConfig = Config{
	port:        "/dev/ttyUSB0",
	baud:        9600,
	readTimeout: defaultReadTimeout,
}
