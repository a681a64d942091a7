// internal/smtp/error.go
package smtp

import (
	"errors"
	"fmt"
)

// Stage identifies the protocol stage a delivery attempt failed at.
type Stage string

const (
	StageConnect  Stage = "connect"
	StageGreeting Stage = "greeting"
	StageEHLO     Stage = "ehlo"
	StageStartTLS Stage = "starttls"
	StageAuth     Stage = "auth"
	StageMailFrom Stage = "mail-from"
	StageRcptTo   Stage = "rcpt-to"
	StageData     Stage = "data-start"
	StageTransmit Stage = "transmit"
)

// StageError is the terminal failure of an SMTP session. It carries the
// stage that aborted the session and, when the failure was an unexpected
// reply, the code and raw server text.
type StageError struct {
	Stage    Stage
	Code     int    // reply code, 0 when the failure was not a reply
	Response string // raw server response text, if any
	Err      error  // underlying I/O or TLS error, if any
}

func (e *StageError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("smtp %s: unexpected response %d %s", e.Stage, e.Code, e.Response)
	}
	if e.Err != nil {
		return fmt.Sprintf("smtp %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("smtp %s failed", e.Stage)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// StageOf extracts the failing stage from err, or "" if err does not
// wrap a StageError.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// ErrPlaintextAuth is returned when credentials would be sent over a
// connection that is neither implicit-TLS nor upgraded via STARTTLS.
var ErrPlaintextAuth = errors.New("refusing AUTH LOGIN over a plaintext connection")
