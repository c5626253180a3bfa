//  Test suite for the SIM900 module.
//
//  Note that these tests provide a mockPort which does not attempt to emulate
//  a SIM900, but which returns the responses required to exercise sim900.go

package sim900_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/sim900/at"
	"github.com/warthog618/sim900/sim900"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	ok  = "\r\nOK\r\n"
	sec = time.Second
)

// gprsCmds are the commands issued by SetGPRS with the "internet" APN.
var gprsCmds = []string{
	"AT+SAPBR=0,1\r",
	"AT+SAPBR=3,1,\"CONTYPE\",\"GPRS\"\r",
	"AT+SAPBR=3,1,\"APN\",\"internet\"\r",
	"AT+SAPBR=1,1\r",
}

func gprsOK() map[string][]string {
	cmdSet := map[string][]string{}
	for _, cmd := range gprsCmds {
		cmdSet[cmd] = []string{ok}
	}
	return cmdSet
}

func setupModem(t *testing.T, cmdSet map[string][]string, options ...sim900.Option) (*sim900.SIM900, *mockPort, *recorder) {
	t.Helper()
	mp := &mockPort{cmdSet: cmdSet}
	r := &recorder{}
	options = append([]sim900.Option{
		sim900.WithSleeper(r.sleep),
		sim900.WithLogger(zaptest.NewLogger(t)),
	}, options...)
	s := sim900.New(mp, options...)
	require.NotNil(t, s)
	require.Nil(t, s.Open())
	return s, mp, r
}

// attach opens the bearer then forgets the traffic involved.
func attach(t *testing.T, s *sim900.SIM900, mp *mockPort, r *recorder) {
	t.Helper()
	require.Nil(t, s.SetGPRS(context.Background(), "internet"))
	mp.writes = nil
	mp.reads = 0
	r.waits = nil
}

func TestNew(t *testing.T) {
	mp := &mockPort{}
	s := sim900.New(mp)
	require.NotNil(t, s)
	assert.False(t, s.IsOpen())
	assert.False(t, mp.opened)
}

func TestOpenClose(t *testing.T) {
	mp := &mockPort{openErr: errors.New("permission denied")}
	s := sim900.New(mp, sim900.WithLogger(zap.NewNop()))
	err := s.Open()
	assert.EqualError(t, err, "permission denied")
	assert.False(t, s.IsOpen())
	// close after failed open
	assert.Nil(t, s.Close())

	mp.openErr = nil
	require.Nil(t, s.Open())
	assert.True(t, s.IsOpen())
	assert.Nil(t, s.Close())
	assert.Nil(t, s.Close())
	assert.False(t, s.IsOpen())
}

func TestClosed(t *testing.T) {
	mp := &mockPort{}
	r := &recorder{}
	s := sim900.New(mp, sim900.WithSleeper(r.sleep), sim900.WithBearerCheck(false))
	ctx := context.Background()

	_, err := s.IsConnected(ctx)
	assert.True(t, errors.Is(err, at.ErrClosed))
	err = s.SetGPRS(ctx, "internet")
	assert.True(t, errors.Is(err, at.ErrClosed))
	err = s.PostData(ctx, "{}", "host/api")
	assert.True(t, errors.Is(err, at.ErrClosed))
	_, err = s.GetData(ctx, "host/api")
	assert.True(t, errors.Is(err, at.ErrClosed))
	_, err = s.SignalQuality(ctx)
	assert.True(t, errors.Is(err, at.ErrClosed))
	_, err = s.Date(ctx)
	assert.True(t, errors.Is(err, at.ErrClosed))
	_, err = s.Hour(ctx)
	assert.True(t, errors.Is(err, at.ErrClosed))
	assert.Empty(t, mp.writes)
	assert.Empty(t, r.waits)
}

func TestIsConnected(t *testing.T) {
	tenth := make([]string, 10)
	tenth[9] = ok
	patterns := []struct {
		name   string
		rsps   []string
		cycles int
		ok     bool
	}{
		{"first", []string{ok}, 1, true},
		{"tenth", tenth, 10, true},
		{"never", []string{"\r\nERROR\r\n"}, 10, false},
		{"silent", nil, 10, false},
	}
	for _, p := range patterns {
		f := func(t *testing.T) {
			s, mp, r := setupModem(t, map[string][]string{"AT\r": p.rsps})
			c, err := s.IsConnected(context.Background())
			require.Nil(t, err)
			assert.Equal(t, p.ok, c)
			assert.Len(t, mp.writes, p.cycles)
			assert.Equal(t, p.cycles, mp.reads)
			assert.Len(t, r.waits, p.cycles)
			for _, w := range r.waits {
				assert.Equal(t, sec, w)
			}
		}
		t.Run(p.name, f)
	}
}

func TestIsConnectedRetries(t *testing.T) {
	timing := sim900.DefaultTiming()
	timing.Retries = 3
	s, mp, _ := setupModem(t, nil, sim900.WithTiming(timing))
	c, err := s.IsConnected(context.Background())
	require.Nil(t, err)
	assert.False(t, c)
	assert.Len(t, mp.writes, 3)
}

func TestIsConnectedWriteError(t *testing.T) {
	s, mp, _ := setupModem(t, nil)
	mp.writeErr = errors.New("unplugged")
	c, err := s.IsConnected(context.Background())
	assert.False(t, c)
	assert.EqualError(t, err, "AT: unplugged")
}

func TestSetGPRS(t *testing.T) {
	s, mp, r := setupModem(t, gprsOK())
	err := s.SetGPRS(context.Background(), "internet")
	require.Nil(t, err)
	assert.Equal(t, gprsCmds, mp.writes)
	assert.Equal(t, 4, mp.reads)
	assert.Equal(t, []time.Duration{2 * sec, sec, sec, sec, sec}, r.waits)
}

func TestSetGPRSFailure(t *testing.T) {
	patterns := []struct {
		name   string
		step   int
		rsp    string
		result error
	}{
		{"reset", 1, "", nil},
		{"contype", 2, "\r\nERROR\r\n", at.ErrError},
		{"apn", 3, "\r\n+CME ERROR: 3\r\n", at.CMEError("3")},
		{"open", 4, "NOOK", nil},
	}
	for _, p := range patterns {
		f := func(t *testing.T) {
			cmdSet := gprsOK()
			cmdSet[gprsCmds[p.step-1]] = []string{p.rsp}
			s, mp, _ := setupModem(t, cmdSet)
			err := s.SetGPRS(context.Background(), "internet")
			require.NotNil(t, err)
			var se *sim900.StepError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, p.step, se.Step)
			assert.Equal(t, gprsCmds[p.step-1], "AT"+se.Cmd+"\r")
			assert.True(t, errors.Is(err, sim900.ErrNoOK))
			if p.result != nil {
				assert.True(t, errors.Is(err, p.result))
			}
			assert.Equal(t, se.Result, p.result)
			// later steps are not attempted
			assert.Equal(t, gprsCmds[:p.step], mp.writes)
		}
		t.Run(p.name, f)
	}
}

func TestSetGPRSInvalidAPN(t *testing.T) {
	patterns := []string{
		"",
		`my"apn`,
		"apn\r",
		"apn\x7f",
	}
	for _, apn := range patterns {
		f := func(t *testing.T) {
			s, mp, r := setupModem(t, gprsOK())
			err := s.SetGPRS(context.Background(), apn)
			assert.True(t, errors.Is(err, sim900.ErrInvalidArgument))
			assert.Empty(t, mp.writes)
			assert.Empty(t, r.waits)
		}
		t.Run(apn, f)
	}
}

func TestSetGPRSCancelled(t *testing.T) {
	s, mp, _ := setupModem(t, gprsOK())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.SetGPRS(ctx, "internet")
	assert.Equal(t, context.Canceled, err)
	assert.Empty(t, mp.writes)
}

const (
	postData = `{"device":"sim900","data":4321}`
	postURL  = "0.0.0.0:0000/api"
)

var postCmds = []string{
	"AT+HTTPINIT\r",
	"AT+HTTPPARA=\"CID\",1\r",
	"AT+HTTPPARA=\"URL\",\"0.0.0.0:0000/api\"\r",
	"AT+HTTPPARA=\"CONTENT\",\"application/json\"\r",
	"AT+HTTPDATA=31,10000\r",
	postData,
	"AT+HTTPACTION=1\r",
	"AT+HTTPREAD\r",
	"AT+HTTPTERM\r",
}

func TestPostData(t *testing.T) {
	patterns := []struct {
		name string
		rsp  string
		err  error
	}{
		{"200", "\r\nOK\r\n\r\n+HTTPACTION:1,200,18\r\n", nil},
		{"404", "\r\nOK\r\n\r\n+HTTPACTION:1,404,9\r\n", sim900.HTTPStatusError{Code: 404}},
		{"no status", "\r\nOK\r\n", sim900.ErrNoHTTPStatus},
		{"get status", "\r\nOK\r\n\r\n+HTTPACTION:0,200,18\r\n", sim900.ErrNoHTTPStatus},
	}
	for _, p := range patterns {
		f := func(t *testing.T) {
			cmdSet := gprsOK()
			for _, cmd := range postCmds {
				cmdSet[cmd] = []string{ok}
			}
			cmdSet["AT+HTTPACTION=1\r"] = []string{p.rsp}
			cmdSet[postData] = []string{"\r\nDOWNLOAD\r\n"}
			s, mp, r := setupModem(t, cmdSet)
			attach(t, s, mp, r)
			err := s.PostData(context.Background(), postData, postURL)
			assert.Equal(t, p.err, err)
			assert.Equal(t, postCmds, mp.writes)
			// only the final response is read
			assert.Equal(t, 1, mp.reads)
			assert.Equal(t,
				[]time.Duration{sec, sec, sec, sec, sec, sec, sec, 500 * time.Millisecond, sec, sec},
				r.waits)
		}
		t.Run(p.name, f)
	}
}

func TestPostDataRejected(t *testing.T) {
	patterns := []struct {
		name string
		data string
		url  string
		err  error
	}{
		{"quoted url", postData, `host/"api"`, sim900.ErrInvalidArgument},
		{"url newline", postData, "host/api\n", sim900.ErrInvalidArgument},
		{"empty url", postData, "", sim900.ErrInvalidArgument},
		{"empty data", "", postURL, sim900.ErrInvalidArgument},
		{"ctrl-z data", "{\x1a}", postURL, sim900.ErrInvalidArgument},
		{"large data", string(make([]byte, 319489)), postURL, sim900.ErrInvalidArgument},
	}
	for _, p := range patterns {
		f := func(t *testing.T) {
			s, mp, r := setupModem(t, gprsOK())
			attach(t, s, mp, r)
			err := s.PostData(context.Background(), p.data, p.url)
			assert.True(t, errors.Is(err, p.err))
			assert.Empty(t, mp.writes)
			assert.Empty(t, r.waits)
		}
		t.Run(p.name, f)
	}
}

func TestBearer(t *testing.T) {
	ctx := context.Background()
	cmdSet := gprsOK()
	cmdSet["AT+HTTPACTION=1\r"] = []string{"+HTTPACTION:1,200,2\r\n"}

	// never attached
	s, mp, _ := setupModem(t, cmdSet)
	err := s.PostData(ctx, postData, postURL)
	assert.Equal(t, sim900.ErrNoBearer, err)
	_, err = s.GetData(ctx, postURL)
	assert.Equal(t, sim900.ErrNoBearer, err)
	assert.Empty(t, mp.writes)

	// attached
	require.Nil(t, s.SetGPRS(ctx, "internet"))
	assert.Nil(t, s.PostData(ctx, postData, postURL))

	// failed attach clears the bearer
	cmdSet[gprsCmds[3]] = []string{"\r\nERROR\r\n"}
	assert.NotNil(t, s.SetGPRS(ctx, "internet"))
	err = s.PostData(ctx, postData, postURL)
	assert.Equal(t, sim900.ErrNoBearer, err)

	// reopen clears the bearer
	cmdSet[gprsCmds[3]] = []string{ok}
	require.Nil(t, s.SetGPRS(ctx, "internet"))
	require.Nil(t, s.Close())
	require.Nil(t, s.Open())
	err = s.PostData(ctx, postData, postURL)
	assert.Equal(t, sim900.ErrNoBearer, err)

	// check disabled
	s, _, _ = setupModem(t, cmdSet, sim900.WithBearerCheck(false))
	assert.Nil(t, s.PostData(ctx, postData, postURL))
}

func TestPostDataWriteError(t *testing.T) {
	s, mp, r := setupModem(t, gprsOK())
	attach(t, s, mp, r)
	mp.writeErr = errors.New("unplugged")
	err := s.PostData(context.Background(), postData, postURL)
	assert.EqualError(t, err, "step 1: AT+HTTPINIT: unplugged")
	assert.Equal(t, 0, mp.reads)
}

var getCmds = []string{
	"AT+HTTPINIT\r",
	"AT+HTTPPARA=\"CID\",1\r",
	"AT+HTTPPARA=\"URL\",\"0.0.0.0:0000/api\"\r",
	"AT+HTTPACTION=0\r",
	"AT+HTTPREAD\r",
	"AT+HTTPTERM\r",
}

func TestGetData(t *testing.T) {
	patterns := []struct {
		name string
		rsp  string
		data string
		err  error
	}{
		{
			"payload",
			"\r\n+HTTPREAD: 25\r\n{\"device\":\"x\",\"data\":123}\r\nOK\r\n",
			`{"device":"x","data":123}`,
			nil,
		},
		{
			"no payload",
			"\r\n+HTTPREAD: 0\r\nOK\r\n",
			"",
			sim900.ErrNoPayload,
		},
	}
	for _, p := range patterns {
		f := func(t *testing.T) {
			cmdSet := gprsOK()
			for _, cmd := range getCmds {
				cmdSet[cmd] = []string{ok}
			}
			cmdSet["AT+HTTPACTION=0\r"] = []string{"\r\nOK\r\n\r\n+HTTPACTION:0,200,25\r\n"}
			cmdSet["AT+HTTPREAD\r"] = []string{p.rsp}
			s, mp, r := setupModem(t, cmdSet)
			attach(t, s, mp, r)
			data, err := s.GetData(context.Background(), postURL)
			assert.Equal(t, p.err, err)
			assert.Equal(t, p.data, data)
			assert.Equal(t, getCmds, mp.writes)
			assert.Equal(t, 1, mp.reads)
			assert.Equal(t, []time.Duration{sec, sec, sec, 2 * sec, 2 * sec, sec}, r.waits)
		}
		t.Run(p.name, f)
	}
}

func TestGetDataCancelled(t *testing.T) {
	s, mp, r := setupModem(t, gprsOK())
	attach(t, s, mp, r)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.GetData(ctx, postURL)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Len(t, mp.writes, 1)
}

func TestSignalQuality(t *testing.T) {
	patterns := []struct {
		name string
		rsp  string
		q    int
	}{
		{"ok", "\r\n+CSQ: 23,0\r\n\r\nOK\r\n", 23},
		{"no signal", "\r\n+CSQ: 99,0\r\n\r\nOK\r\n", 99},
		{"no OK", "\r\n+CSQ: 23,0\r\n", 0},
		{"garbage", "12,34 ERROR", 0},
		{"OK without value", "\r\nOK\r\n", 0},
	}
	for _, p := range patterns {
		f := func(t *testing.T) {
			s, mp, r := setupModem(t, map[string][]string{"AT+CSQ\r": {p.rsp}})
			q, err := s.SignalQuality(context.Background())
			require.Nil(t, err)
			assert.Equal(t, p.q, q)
			assert.Equal(t, []string{"AT+CSQ\r"}, mp.writes)
			assert.Equal(t, []time.Duration{sec}, r.waits)
		}
		t.Run(p.name, f)
	}
}

func TestTimestamp(t *testing.T) {
	patterns := []struct {
		name string
		rsp  string
		date string
		hour string
		err  error
	}{
		{
			"ok",
			"\r\n+CCLK: \"26/10/17,09:41:07-12\"\r\n\r\nOK\r\n",
			"26/10/17",
			"09:41:07",
			nil,
		},
		{
			"no OK",
			"\r\n+CCLK: \"26/10/17,09:41:07-12\"\r\n",
			"",
			"",
			sim900.ErrNoOK,
		},
		{
			"error",
			"\r\n+CME ERROR: 100\r\n",
			"",
			"",
			sim900.ErrNoOK,
		},
		{
			"no timestamp",
			"\r\nOK\r\n",
			"",
			"",
			sim900.ErrNoTimestamp,
		},
	}
	for _, p := range patterns {
		f := func(t *testing.T) {
			s, mp, _ := setupModem(t, map[string][]string{"AT+CCLK?\r": {p.rsp, p.rsp}})
			date, err := s.Date(context.Background())
			assert.True(t, errors.Is(err, p.err) || err == p.err)
			assert.Equal(t, p.date, date)
			hour, err := s.Hour(context.Background())
			assert.True(t, errors.Is(err, p.err) || err == p.err)
			assert.Equal(t, p.hour, hour)
			assert.Equal(t, []string{"AT+CCLK?\r", "AT+CCLK?\r"}, mp.writes)
		}
		t.Run(p.name, f)
	}
}

func TestErrors(t *testing.T) {
	assert.Equal(t, "HTTP status 404", sim900.HTTPStatusError{Code: 404}.Error())
	se := &sim900.StepError{Step: 2, Cmd: "+SAPBR=1,1", Err: sim900.ErrNoOK}
	assert.Equal(t, "step 2 AT+SAPBR=1,1: no OK from modem", se.Error())
	se.Result = at.ErrError
	assert.Equal(t, "step 2 AT+SAPBR=1,1: no OK from modem (ERROR)", se.Error())
}

type recorder struct {
	waits []time.Duration
}

func (r *recorder) sleep(ctx context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return ctx.Err()
}

type mockPort struct {
	// responses queued in rx when the key is written, one per write.
	cmdSet   map[string][]string
	openErr  error
	writeErr error
	opened   bool
	writes   []string
	reads    int
	// The buffer emulating characters emitted by the modem.
	rx bytes.Buffer
}

func (m *mockPort) Open() error {
	if m.openErr != nil {
		return m.openErr
	}
	m.opened = true
	return nil
}

func (m *mockPort) Close() error {
	m.opened = false
	return nil
}

func (m *mockPort) Write(p []byte) (int, error) {
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	m.writes = append(m.writes, string(p))
	if v := m.cmdSet[string(p)]; len(v) > 0 {
		m.rx.WriteString(v[0])
		if len(v) > 1 {
			m.cmdSet[string(p)] = v[1:]
		}
	}
	return len(p), nil
}

func (m *mockPort) ReadAvailable() ([]byte, error) {
	m.reads++
	b := append([]byte(nil), m.rx.Bytes()...)
	m.rx.Reset()
	return b, nil
}
