// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

// Package serial provides a serial port which provides the at.Port
// interface, and so the connection between the sim900 package and the
// physical modem.
package serial

import (
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/tarm/serial"
)

const defaultReadTimeout = 100 * time.Millisecond

// Config contains the configuration of the serial port.
type Config struct {
	port string
	baud int
	// the time a read waits for data before returning empty
	readTimeout time.Duration
}

// Option modifies the Config used by New.
type Option func(*Config)

// WithPort sets the device path of the serial port.
//
// The default is platform specific, /dev/ttyUSB0 on Linux.
func WithPort(port string) Option {
	return func(c *Config) {
		c.port = port
	}
}

// WithBaud sets the baud rate of the serial port.
//
// The default is 9600.
func WithBaud(baud int) Option {
	return func(c *Config) {
		c.baud = baud
	}
}

// WithReadTimeout sets the time a read waits for data to arrive.
//
// The default is 100msec. Posix platforms have a resolution of 100msec.
func WithReadTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.readTimeout = d
	}
}

// Port is a serial port to a modem.
//
// The port is configured by New and opened by Open.
// It is not safe for concurrent use.
type Port struct {
	cfg Config
	p   *serial.Port
}

// New creates a serial port.
//
// The port is not opened until Open is called.
func New(options ...Option) *Port {
	cfg := defaultConfig
	for _, option := range options {
		option(&cfg)
	}
	return &Port{cfg: cfg}
}

// Name returns the device path of the port.
func (p *Port) Name() string {
	return p.cfg.port
}

// Baud returns the baud rate of the port.
func (p *Port) Baud() int {
	return p.cfg.baud
}

// Open opens the port.
//
// Opening an open port has no effect.
func (p *Port) Open() error {
	if p.p != nil {
		return nil
	}
	if p.cfg.readTimeout <= 0 {
		// a zero timeout would block reads indefinitely
		return &PortError{Port: p.cfg.port, Err: ErrInvalidReadTimeout}
	}
	sp, err := serial.OpenPort(&serial.Config{
		Name:        p.cfg.port,
		Baud:        p.cfg.baud,
		ReadTimeout: p.cfg.readTimeout,
	})
	if err != nil {
		return &PortError{Port: p.cfg.port, Err: err}
	}
	p.p = sp
	return nil
}

// Close closes the port.
//
// Closing a port that is not open has no effect.
func (p *Port) Close() error {
	if p.p == nil {
		return nil
	}
	err := p.p.Close()
	p.p = nil
	return err
}

// Write writes the bytes to the port.
func (p *Port) Write(b []byte) (int, error) {
	if p.p == nil {
		return 0, ErrNotOpen
	}
	return p.p.Write(b)
}

// ReadAvailable returns the bytes received by the port that have not already
// been read.
//
// It returns once no data arrives within the read timeout, so may return
// an empty slice.
func (p *Port) ReadAvailable() ([]byte, error) {
	if p.p == nil {
		return nil, ErrNotOpen
	}
	var rx []byte
	buf := make([]byte, 256)
	for {
		n, err := p.p.Read(buf)
		rx = append(rx, buf[:n]...)
		if err == io.EOF || (err == nil && n == 0) {
			return rx, nil
		}
		if err != nil {
			return rx, err
		}
	}
}

// PortError indicates the port could not be opened.
type PortError struct {
	Port string
	Err  error
}

func (e *PortError) Error() string {
	return "open " + e.Port + ": " + e.Err.Error()
}

// Unwrap returns the underlying cause.
func (e *PortError) Unwrap() error {
	return e.Err
}

var (
	// ErrNotOpen indicates the port must be opened before use.
	ErrNotOpen = errors.New("port not open")

	// ErrInvalidReadTimeout indicates the read timeout is not positive.
	ErrInvalidReadTimeout = errors.New("read timeout must be positive")
)
