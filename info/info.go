// Package info provides functions to extract values from the text returned
// by the modem in response to AT commands.
//
// Each function examines the whole response and reports the first match
// only. The absence of a match is reported by the second return value.
package info

import (
	"regexp"
	"strconv"
)

var (
	okRe         = regexp.MustCompile(`\bOK\b`)
	httpStatusRe = regexp.MustCompile(`\+HTTPACTION:1,(\d{3}),`)
	jsonRe       = regexp.MustCompile(`\{.+\}`)
	dateRe       = regexp.MustCompile(`"(\d{2}/\d{1,2}/\d{1,2}),`)
	timeRe       = regexp.MustCompile(`,(\d{1,2}:\d{1,2}:\d{1,2})-`)
	signalRe     = regexp.MustCompile(`\b(\d{1,2}),`)
)

// OK returns true if the response contains the OK result code as a word.
func OK(rsp string) bool {
	return okRe.MatchString(rsp)
}

// HTTPStatus returns the status code from a +HTTPACTION:1 (POST) indication.
func HTTPStatus(rsp string) (int, bool) {
	m := httpStatusRe.FindStringSubmatch(rsp)
	if m == nil {
		return 0, false
	}
	code, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return code, true
}

// JSON returns the span from the first '{' to the last '}' on the same line.
func JSON(rsp string) (string, bool) {
	m := jsonRe.FindString(rsp)
	return m, m != ""
}

// Date returns the yy/MM/dd date from a quoted timestamp, such as that
// returned by +CCLK?.
func Date(rsp string) (string, bool) {
	return submatch(dateRe, rsp)
}

// Time returns the hh:mm:ss time from a timestamp with a negative timezone
// offset, such as that returned by +CCLK?.
func Time(rsp string) (string, bool) {
	return submatch(timeRe, rsp)
}

// SignalQuality returns the first one or two digit number followed by a
// comma, which in a +CSQ response is the RSSI.
func SignalQuality(rsp string) (int, bool) {
	s, ok := submatch(signalRe, rsp)
	if !ok {
		return 0, false
	}
	q, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return q, true
}

func submatch(re *regexp.Regexp, rsp string) (string, bool) {
	m := re.FindStringSubmatch(rsp)
	if m == nil {
		return "", false
	}
	return m[1], true
}
