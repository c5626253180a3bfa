// SPDX-License-Identifier: MIT
//
// Copyright © 2018 Kent Gibson <warthog618@gmail.com>.

// Package at provides a low level driver for AT modems that do not signal
// command completion reliably.
//
// Commands are written to the modem, followed by a fixed wait standing in for
// the modem's processing time, after which whatever the modem has emitted is
// read back in one piece.
package at

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Port is the byte level connection to the modem.
//
// ReadAvailable must return immediately with whatever has been received,
// which may be nothing.
type Port interface {
	Open() error
	Close() error
	Write(p []byte) (int, error)
	ReadAvailable() ([]byte, error)
}

// Sleeper waits for the duration d, or until the ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// AT represents a modem that can be driven using AT commands.
//
// The AT owns the Port for its lifetime. Commands may only be issued while
// the Port is open, and only from one goroutine at a time.
type AT struct {
	// the underlying modem
	port Port

	// true between a successful Open and the following Close
	open bool

	// the wait between writing to and reading from the modem
	sleep Sleeper

	log *zap.Logger
}

// Option is a construction option for an AT.
type Option func(*AT)

// New creates a new AT modem on the port.
//
// The port is not opened until Open is called.
func New(port Port, options ...Option) *AT {
	a := &AT{
		port:  port,
		sleep: Sleep,
		log:   zap.NewNop(),
	}
	for _, option := range options {
		option(a)
	}
	return a
}

// WithSleeper replaces the wait performed between commands.
//
// The default is Sleep.
func WithSleeper(s Sleeper) Option {
	return func(a *AT) {
		a.sleep = s
	}
}

// WithLogger specifies the logger used to log commands issued to the modem.
//
// By default nothing is logged.
func WithLogger(l *zap.Logger) Option {
	return func(a *AT) {
		a.log = l
	}
}

// Sleep blocks for the duration d, returning early with the ctx error if the
// ctx is done first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Open opens the underlying port.
func (a *AT) Open() error {
	if err := a.port.Open(); err != nil {
		return err
	}
	a.open = true
	return nil
}

// Close releases the underlying port.
//
// Close may be called at any time, including when the port was never opened
// or failed to open. Errors are logged but not returned.
func (a *AT) Close() error {
	if err := a.port.Close(); err != nil {
		a.log.Warn("close failed", zap.Error(err))
	}
	a.open = false
	return nil
}

// IsOpen returns true if the port is open.
func (a *AT) IsOpen() bool {
	return a.open
}

// Wait blocks for the duration d.
func (a *AT) Wait(ctx context.Context, d time.Duration) error {
	return a.sleep(ctx, d)
}

// Command writes the command to the modem then waits for the duration d.
//
// The command should NOT include the AT prefix, nor the <CR> suffix which
// are automatically added.
func (a *AT) Command(ctx context.Context, cmd string, d time.Duration) error {
	if err := a.write([]byte("AT" + cmd + "\r")); err != nil {
		return errors.Wrapf(err, "AT%s", cmd)
	}
	a.log.Debug("command", zap.String("cmd", "AT"+cmd), zap.Duration("wait", d))
	return a.sleep(ctx, d)
}

// Raw writes data to the modem, unmodified, then waits for the duration d.
//
// This is used for payloads following a command, such as that of
// AT+HTTPDATA.
func (a *AT) Raw(ctx context.Context, data []byte, d time.Duration) error {
	if err := a.write(data); err != nil {
		return errors.Wrap(err, "raw write")
	}
	a.log.Debug("raw", zap.Int("len", len(data)), zap.Duration("wait", d))
	return a.sleep(ctx, d)
}

// Read returns everything received from the modem since the previous Read.
//
// Invalid UTF-8 sequences are replaced with the Unicode replacement
// character, so they never match a pattern.
func (a *AT) Read() (string, error) {
	if !a.open {
		return "", ErrClosed
	}
	b, err := a.port.ReadAvailable()
	if err != nil {
		return "", errors.Wrap(err, "read")
	}
	a.log.Debug("read", zap.Int("len", len(b)))
	return strings.ToValidUTF8(string(b), "\uFFFD"), nil
}

// Exchange issues the command, waits for the duration d, then returns the
// response read from the modem.
func (a *AT) Exchange(ctx context.Context, cmd string, d time.Duration) (string, error) {
	if err := a.Command(ctx, cmd, d); err != nil {
		return "", err
	}
	return a.Read()
}

func (a *AT) write(p []byte) error {
	if !a.open {
		return ErrClosed
	}
	_, err := a.port.Write(p)
	return err
}

// CMEError indicates a CME Error was returned by the modem.
//
// The value is the error value, in string form, which may be the numeric or
// textual, depending on the modem configuration.
type CMEError string

// CMSError indicates a CMS Error was returned by the modem.
//
// The value is the error value, in string form, which may be the numeric or
// textual, depending on the modem configuration.
type CMSError string

func (e CMEError) Error() string {
	return string("CME Error: " + e)
}

func (e CMSError) Error() string {
	return string("CMS Error: " + e)
}

var (
	// ErrClosed indicates an operation cannot be performed as the port is
	// not open.
	ErrClosed = errors.New("closed")

	// ErrError indicates the modem returned a generic AT ERROR in response to
	// an operation.
	ErrError = errors.New("ERROR")
)

// ResponseError returns the error corresponding to the first error result
// code in the response, or nil if the response contains none.
func ResponseError(rsp string) error {
	for _, line := range strings.Split(rsp, "\n") {
		if err := newError(strings.TrimSpace(line)); err != nil {
			return err
		}
	}
	return nil
}

// newError parses a line and creates an error corresponding to the content.
func newError(line string) error {
	var err error
	switch {
	case strings.HasPrefix(line, "ERROR"):
		err = ErrError
	case strings.HasPrefix(line, "+CMS ERROR:"):
		err = CMSError(strings.TrimSpace(line[11:]))
	case strings.HasPrefix(line, "+CME ERROR:"):
		err = CMEError(strings.TrimSpace(line[11:]))
	}
	return err
}
