package sim900

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNoOK indicates the modem did not return OK in response to a
	// command within the wait allowed.
	ErrNoOK = errors.New("no OK from modem")

	// ErrNoHTTPStatus indicates the modem did not report the status of an
	// HTTP POST.
	ErrNoHTTPStatus = errors.New("no HTTP status in response")

	// ErrNoPayload indicates the response to an HTTP GET contained no JSON
	// payload.
	ErrNoPayload = errors.New("no payload in response")

	// ErrNoTimestamp indicates the +CCLK response did not contain the
	// requested field.
	ErrNoTimestamp = errors.New("no timestamp in response")

	// ErrNoBearer indicates an HTTP operation was attempted before the GPRS
	// bearer was opened by SetGPRS.
	ErrNoBearer = errors.New("GPRS bearer not open")

	// ErrInvalidArgument indicates a parameter cannot be safely placed in an
	// AT command.
	ErrInvalidArgument = errors.New("invalid argument")
)

// HTTPStatusError indicates an HTTP request completed with a status other
// than 200.
type HTTPStatusError struct {
	Code int
}

func (e HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP status %d", e.Code)
}

// StepError indicates which command of a sequence failed.
//
// Commands preceding the failed command are not undone.
type StepError struct {
	// Step is the 1 based position of the command in the sequence.
	Step int

	// Cmd is the command, without the AT prefix.
	Cmd string

	// Err is ErrNoOK, or the error writing to or reading from the modem.
	Err error

	// Result is the error result code returned by the modem, if any.
	Result error
}

func (e *StepError) Error() string {
	msg := fmt.Sprintf("step %d AT%s: %s", e.Step, e.Cmd, e.Err)
	if e.Result != nil {
		msg += " (" + e.Result.Error() + ")"
	}
	return msg
}

// Unwrap returns the errors underlying the failure.
func (e *StepError) Unwrap() []error {
	if e.Result == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Result}
}
