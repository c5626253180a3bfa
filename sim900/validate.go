package sim900

import (
	"strings"

	"github.com/pkg/errors"
)

// maxPayload is the largest payload accepted by AT+HTTPDATA.
const maxPayload = 319488

// checkParam ensures the value can be placed between double quotes in an AT
// command.
func checkParam(name, value string) error {
	if value == "" {
		return errors.Wrapf(ErrInvalidArgument, "%s is empty", name)
	}
	for _, r := range value {
		if r == '"' {
			return errors.Wrapf(ErrInvalidArgument, "%s contains a quote", name)
		}
		if r < 0x20 || r == 0x7f {
			return errors.Wrapf(ErrInvalidArgument, "%s contains control character %#02x", name, r)
		}
	}
	return nil
}

// checkPayload ensures the data can be written following AT+HTTPDATA.
func checkPayload(data string) error {
	switch {
	case data == "":
		return errors.Wrap(ErrInvalidArgument, "payload is empty")
	case len(data) > maxPayload:
		return errors.Wrapf(ErrInvalidArgument, "payload exceeds %d bytes", maxPayload)
	case strings.ContainsAny(data, "\x1a\x1b"):
		return errors.Wrap(ErrInvalidArgument, "payload contains an escape character")
	}
	return nil
}
