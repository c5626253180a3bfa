// SPDX-License-Identifier: MIT
//
// Copyright © 2018 Kent Gibson <warthog618@gmail.com>.

// Package trace provides a decorator for a modem port that logs all reads
// and writes.
package trace

import (
	"go.uber.org/zap"
)

// Port is the connection to the modem being traced.
type Port interface {
	Open() error
	Close() error
	Write(p []byte) (int, error)
	ReadAvailable() ([]byte, error)
}

// Trace is a trace log on a Port.
//
// All reads and writes are written to the logger.
type Trace struct {
	p    Port
	l    Logger
	wfmt string
	rfmt string
}

// Logger defines the interface used to log trace messages.
//
// It is satisfied by *zap.SugaredLogger.
type Logger interface {
	Infof(template string, args ...interface{})
}

// Option modifies a Trace object created by New.
type Option func(*Trace)

// New creates a new trace on the Port.
func New(p Port, options ...Option) *Trace {
	t := &Trace{
		p:    p,
		wfmt: "w: %q",
		rfmt: "r: %q",
	}
	for _, option := range options {
		option(t)
	}
	if t.l == nil {
		t.l = zap.S()
	}
	return t
}

// WithReadFormat sets the format used for read logs.
func WithReadFormat(format string) Option {
	return func(t *Trace) {
		t.rfmt = format
	}
}

// WithWriteFormat sets the format used for write logs.
func WithWriteFormat(format string) Option {
	return func(t *Trace) {
		t.wfmt = format
	}
}

// WithLogger specifies the logger to be used to log trace messages.
//
// By default traces are logged to the global zap logger.
func WithLogger(l Logger) Option {
	return func(t *Trace) {
		t.l = l
	}
}

// Open opens the traced port.
func (t *Trace) Open() error {
	return t.p.Open()
}

// Close closes the traced port.
func (t *Trace) Close() error {
	return t.p.Close()
}

// ReadAvailable reads from the traced port, logging any data read.
func (t *Trace) ReadAvailable() ([]byte, error) {
	b, err := t.p.ReadAvailable()
	if len(b) > 0 {
		t.l.Infof(t.rfmt, b)
	}
	return b, err
}

func (t *Trace) Write(p []byte) (n int, err error) {
	n, err = t.p.Write(p)
	if n > 0 {
		t.l.Infof(t.wfmt, p[:n])
	}
	return n, err
}
