// Package sim900 drives a SIM900 modem to attach to GPRS and perform HTTP
// requests using the modem's built in HTTP client.
//
// The modem is driven by writing a command, waiting a fixed time, then
// reading whatever the modem has returned. The waits are set by the Timing.
package sim900

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/warthog618/sim900/at"
	"github.com/warthog618/sim900/info"
	"go.uber.org/zap"
)

// SIM900 decorates the AT modem with SIM900 specific functionality.
//
// A SIM900 is not safe for concurrent use.
type SIM900 struct {
	*at.AT
	timing      Timing
	log         *zap.Logger
	sleep       at.Sleeper
	bearerCheck bool

	// set by a successful SetGPRS, cleared by Open, Close and any SetGPRS
	bearer bool
}

// Option is a construction option for a SIM900.
type Option func(*SIM900)

// New creates a new SIM900 modem on the port.
func New(port at.Port, options ...Option) *SIM900 {
	s := &SIM900{
		timing:      DefaultTiming(),
		log:         zap.NewNop(),
		sleep:       at.Sleep,
		bearerCheck: true,
	}
	for _, option := range options {
		option(s)
	}
	s.AT = at.New(port, at.WithSleeper(s.sleep), at.WithLogger(s.log))
	return s
}

// WithTiming sets the waits between commands.
//
// The default is DefaultTiming.
func WithTiming(t Timing) Option {
	return func(s *SIM900) {
		s.timing = t
	}
}

// WithLogger specifies the logger used to log modem operations.
//
// By default nothing is logged.
func WithLogger(l *zap.Logger) Option {
	return func(s *SIM900) {
		s.log = l
	}
}

// WithSleeper replaces the wait between commands.
//
// The default is at.Sleep.
func WithSleeper(sl at.Sleeper) Option {
	return func(s *SIM900) {
		s.sleep = sl
	}
}

// WithBearerCheck controls whether HTTP operations require a successful
// SetGPRS beforehand.
//
// The default is true. Disable it if the bearer is opened by other means.
func WithBearerCheck(check bool) Option {
	return func(s *SIM900) {
		s.bearerCheck = check
	}
}

// Open opens the port to the modem.
func (s *SIM900) Open() error {
	s.bearer = false
	if err := s.AT.Open(); err != nil {
		s.log.Warn("open failed", zap.Error(err))
		return err
	}
	return nil
}

// Close closes the port to the modem.
//
// It is safe to call Close at any time, and more than once.
func (s *SIM900) Close() error {
	s.bearer = false
	return s.AT.Close()
}

// IsConnected returns true if the modem responds to AT with OK.
//
// It makes up to Timing.Retries attempts, returning on the first success.
// An error is only returned if the modem cannot be written to or read from,
// or the ctx is done.
func (s *SIM900) IsConnected(ctx context.Context) (bool, error) {
	for attempt := 1; attempt <= s.timing.Retries; attempt++ {
		rsp, err := s.Exchange(ctx, "", s.timing.Step)
		if err != nil {
			return false, err
		}
		if info.OK(rsp) {
			return true, nil
		}
		s.log.Debug("no response to AT", zap.Int("attempt", attempt))
	}
	s.log.Warn("modem not responding", zap.Int("attempts", s.timing.Retries))
	return false, nil
}

// SetGPRS configures and opens the GPRS bearer using the apn.
//
// The bearer is first closed, then configured and reopened. If any command
// fails the remaining commands are not issued, and the preceding commands
// are not undone. The returned error is then a *StepError.
func (s *SIM900) SetGPRS(ctx context.Context, apn string) error {
	s.bearer = false
	if err := checkParam("APN", apn); err != nil {
		return err
	}
	if !s.IsOpen() {
		return at.ErrClosed
	}
	if err := s.Wait(ctx, s.timing.Settle); err != nil {
		return err
	}
	cmds := []string{
		"+SAPBR=0,1",
		`+SAPBR=3,1,"CONTYPE","GPRS"`,
		`+SAPBR=3,1,"APN","` + apn + `"`,
		"+SAPBR=1,1",
	}
	for i, cmd := range cmds {
		if err := s.command(ctx, i+1, cmd); err != nil {
			s.log.Warn("GPRS setup failed", zap.Error(err))
			return err
		}
	}
	s.bearer = true
	s.log.Info("GPRS bearer open", zap.String("apn", apn))
	return nil
}

// PostData sends the JSON data to the url using HTTP POST.
//
// Success is only determined by the status reported by the modem, which
// must be 200. A different status is returned as an HTTPStatusError, and
// no status at all as ErrNoHTTPStatus.
func (s *SIM900) PostData(ctx context.Context, data, url string) error {
	if err := s.checkHTTP(url); err != nil {
		return err
	}
	if err := checkPayload(data); err != nil {
		return err
	}
	t := s.timing
	if err := s.Wait(ctx, t.Step); err != nil {
		return err
	}
	steps := []step{
		{cmd: "+HTTPINIT", wait: t.Step},
		{cmd: `+HTTPPARA="CID",1`, wait: t.Step},
		{cmd: `+HTTPPARA="URL","` + url + `"`, wait: t.Step},
		{cmd: `+HTTPPARA="CONTENT","application/json"`, wait: t.Step},
		{cmd: fmt.Sprintf("+HTTPDATA=%d,%d", len(data), t.HTTPData.Milliseconds()), wait: t.Step},
		{raw: []byte(data), wait: t.Step},
		{cmd: "+HTTPACTION=1", wait: t.PostAction},
		{cmd: "+HTTPREAD", wait: t.Step},
		{cmd: "+HTTPTERM", wait: t.Step},
	}
	rsp, err := s.run(ctx, steps)
	if err != nil {
		return err
	}
	code, ok := info.HTTPStatus(rsp)
	if !ok {
		s.log.Warn("POST failed", zap.String("url", url), zap.Error(ErrNoHTTPStatus))
		return ErrNoHTTPStatus
	}
	if code != 200 {
		s.log.Warn("POST failed", zap.String("url", url), zap.Int("status", code))
		return HTTPStatusError{Code: code}
	}
	s.log.Info("POST complete", zap.String("url", url), zap.Int("len", len(data)))
	return nil
}

// GetData requests the url using HTTP GET and returns the JSON payload of the
// response.
//
// If the response contains no JSON object ErrNoPayload is returned.
func (s *SIM900) GetData(ctx context.Context, url string) (string, error) {
	if err := s.checkHTTP(url); err != nil {
		return "", err
	}
	t := s.timing
	steps := []step{
		{cmd: "+HTTPINIT", wait: t.Step},
		{cmd: `+HTTPPARA="CID",1`, wait: t.Step},
		{cmd: `+HTTPPARA="URL","` + url + `"`, wait: t.Step},
		{cmd: "+HTTPACTION=0", wait: t.GetAction},
		{cmd: "+HTTPREAD", wait: t.GetRead},
		{cmd: "+HTTPTERM", wait: t.Step},
	}
	rsp, err := s.run(ctx, steps)
	if err != nil {
		return "", err
	}
	data, ok := info.JSON(rsp)
	if !ok {
		s.log.Warn("GET failed", zap.String("url", url), zap.Error(ErrNoPayload))
		return "", ErrNoPayload
	}
	s.log.Info("GET complete", zap.String("url", url), zap.Int("len", len(data)))
	return data, nil
}

// SignalQuality returns the RSSI reported by AT+CSQ.
//
// If the modem does not respond with OK the quality is reported as 0.
func (s *SIM900) SignalQuality(ctx context.Context) (int, error) {
	rsp, err := s.Exchange(ctx, "+CSQ", s.timing.Step)
	if err != nil {
		return 0, err
	}
	if !info.OK(rsp) {
		return 0, nil
	}
	q, _ := info.SignalQuality(rsp)
	return q, nil
}

// Date returns the date from the modem clock, in yy/MM/dd form.
func (s *SIM900) Date(ctx context.Context) (string, error) {
	return s.timestamp(ctx, info.Date)
}

// Hour returns the time from the modem clock, in hh:mm:ss form.
func (s *SIM900) Hour(ctx context.Context) (string, error) {
	return s.timestamp(ctx, info.Time)
}

func (s *SIM900) timestamp(ctx context.Context, field func(string) (string, bool)) (string, error) {
	rsp, err := s.Exchange(ctx, "+CCLK?", s.timing.Step)
	if err != nil {
		return "", err
	}
	if !info.OK(rsp) {
		return "", noOK("+CCLK?", rsp)
	}
	v, ok := field(rsp)
	if !ok {
		return "", ErrNoTimestamp
	}
	return v, nil
}

// checkHTTP ensures an HTTP operation may be attempted on the url.
func (s *SIM900) checkHTTP(url string) error {
	if err := checkParam("URL", url); err != nil {
		return err
	}
	if !s.IsOpen() {
		return at.ErrClosed
	}
	if s.bearerCheck && !s.bearer {
		return ErrNoBearer
	}
	return nil
}

// command issues the command and requires an OK in response.
func (s *SIM900) command(ctx context.Context, n int, cmd string) error {
	rsp, err := s.Exchange(ctx, cmd, s.timing.Step)
	if err != nil {
		return &StepError{Step: n, Cmd: cmd, Err: err}
	}
	if !info.OK(rsp) {
		return &StepError{Step: n, Cmd: cmd, Err: ErrNoOK, Result: at.ResponseError(rsp)}
	}
	return nil
}

// step is one write in an HTTP sequence, being either a command or raw data.
type step struct {
	cmd  string
	raw  []byte
	wait time.Duration
}

// run issues the steps without checking intermediate responses, then returns
// everything the modem returned in the course of the sequence.
func (s *SIM900) run(ctx context.Context, steps []step) (string, error) {
	for i, st := range steps {
		var err error
		if st.raw != nil {
			err = s.Raw(ctx, st.raw, st.wait)
		} else {
			err = s.Command(ctx, st.cmd, st.wait)
		}
		if err != nil {
			return "", errors.Wrapf(err, "step %d", i+1)
		}
	}
	return s.Read()
}

// noOK returns ErrNoOK, decorated with the modem error result, if any.
func noOK(cmd, rsp string) error {
	if rerr := at.ResponseError(rsp); rerr != nil {
		return errors.Wrapf(ErrNoOK, "AT%s returned %s", cmd, rerr)
	}
	return errors.Wrapf(ErrNoOK, "AT%s", cmd)
}
