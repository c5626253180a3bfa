package sim900

import "time"

// Timing contains the waits between writing to the modem and reading its
// response.
//
// The modem does not reliably signal completion, so each wait must cover the
// time the modem takes to process the preceding command.
type Timing struct {
	// Settle precedes the first command of SetGPRS.
	Settle time.Duration

	// Step follows most commands.
	Step time.Duration

	// PostAction follows AT+HTTPACTION=1.
	PostAction time.Duration

	// GetAction follows AT+HTTPACTION=0.
	GetAction time.Duration

	// GetRead follows the AT+HTTPREAD of a GET.
	GetRead time.Duration

	// HTTPData is the time the modem allows for the POST payload to be
	// written after AT+HTTPDATA.
	HTTPData time.Duration

	// Retries is the number of attempts made by IsConnected.
	Retries int
}

// DefaultTiming returns the timing suited to a SIM900 at 9600 baud.
func DefaultTiming() Timing {
	return Timing{
		Settle:     2 * time.Second,
		Step:       time.Second,
		PostAction: 500 * time.Millisecond,
		GetAction:  2 * time.Second,
		GetRead:    2 * time.Second,
		HTTPData:   10 * time.Second,
		Retries:    10,
	}
}
