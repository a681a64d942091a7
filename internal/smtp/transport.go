// Package smtp implements a from-scratch SMTP submission client. It
// drives one message transmission as a strict command/response state
// machine over a raw socket: greeting, EHLO, optional STARTTLS upgrade,
// AUTH LOGIN, envelope commands, and dot-stuffed DATA framing. It never
// retries; retry policy belongs to the caller.
package smtp

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net"
	"time"
)

// TLSMode selects how the connection to the server is secured. The two
// supported modes are exhaustive: there is no plaintext submission path.
type TLSMode int

const (
	// ModeStartTLS connects in plaintext and upgrades with an explicit
	// STARTTLS before credentials are sent (submission port 587).
	ModeStartTLS TLSMode = iota
	// ModeImplicitTLS wraps the connection in TLS from the first byte
	// (legacy SMTPS port 465).
	ModeImplicitTLS
)

// ModeForPort maps a server port to its TLS mode. Port 465 implies
// implicit TLS; every other port gets the STARTTLS upgrade.
func ModeForPort(port int) TLSMode {
	if port == 465 {
		return ModeImplicitTLS
	}
	return ModeStartTLS
}

// DefaultTimeout bounds each protocol stage (dial, reply read, body
// write) so a hung server cannot pin a delivery goroutine forever.
const DefaultTimeout = 30 * time.Second

// Config holds everything needed to open an authenticated session.
type Config struct {
	Host      string
	Port      int
	Username  string
	Password  string
	LocalName string        // EHLO identity; defaults to "localhost"
	Timeout   time.Duration // per-stage deadline; defaults to DefaultTimeout
	TLSConfig *tls.Config   // optional override, used by tests
}

// Transport executes single-shot SMTP transactions against one server.
type Transport struct {
	config Config
	mode   TLSMode
}

// NewTransport creates a Transport for the given server configuration.
func NewTransport(config Config) *Transport {
	if config.LocalName == "" {
		config.LocalName = "localhost"
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	return &Transport{config: config, mode: ModeForPort(config.Port)}
}

// session is the live protocol state for one connection. It moves
// strictly forward through the stages; the first unexpected reply or
// I/O error abandons it.
type session struct {
	conn    *conn
	tls     bool
	timeout time.Duration
}

// Send executes exactly one message transmission: it opens a fresh
// connection, walks the full protocol exchange, transmits msg, and
// closes the connection regardless of outcome. The returned error, if
// any, is a *StageError naming the stage that aborted the session.
func (t *Transport) Send(ctx context.Context, from, to string, msg []byte) error {
	s, err := t.connect(ctx)
	if err != nil {
		return err
	}
	defer s.conn.close()

	if _, err := s.expect(StageGreeting, 220); err != nil {
		return err
	}
	if err := s.hello(t.config.LocalName); err != nil {
		return err
	}
	if !s.tls {
		if err := s.startTLS(ctx, t.tlsConfig()); err != nil {
			return err
		}
		// RFC 3207: the session state resets after the handshake.
		if err := s.hello(t.config.LocalName); err != nil {
			return err
		}
	}
	if err := s.authLogin(t.config.Username, t.config.Password); err != nil {
		return err
	}
	if err := s.cmd(StageMailFrom, fmt.Sprintf("MAIL FROM:<%s>", from), 250); err != nil {
		return err
	}
	if err := s.cmd(StageRcptTo, fmt.Sprintf("RCPT TO:<%s>", to), 250, 251); err != nil {
		return err
	}
	if err := s.cmd(StageData, "DATA", 354); err != nil {
		return err
	}
	if err := s.transmit(msg); err != nil {
		return err
	}

	// QUIT is a courtesy; the message is already committed.
	s.conn.setDeadline(s.timeout)
	s.conn.writeLine("QUIT")
	s.conn.readReply()
	return nil
}

// connect opens the TCP connection, TLS-wrapped from the start when the
// port calls for implicit TLS.
func (t *Transport) connect(ctx context.Context) (*session, error) {
	addr := net.JoinHostPort(t.config.Host, fmt.Sprintf("%d", t.config.Port))
	dialer := &net.Dialer{Timeout: t.config.Timeout}

	var nc net.Conn
	var err error
	var secured bool
	switch t.mode {
	case ModeImplicitTLS:
		td := &tls.Dialer{NetDialer: dialer, Config: t.tlsConfig()}
		nc, err = td.DialContext(ctx, "tcp", addr)
		secured = true
	default:
		nc, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, &StageError{Stage: StageConnect, Err: err}
	}
	return &session{conn: newConn(nc), tls: secured, timeout: t.config.Timeout}, nil
}

func (t *Transport) tlsConfig() *tls.Config {
	if t.config.TLSConfig != nil {
		return t.config.TLSConfig
	}
	return &tls.Config{ServerName: t.config.Host}
}

// hello sends EHLO and expects 250, which may span multiple lines.
func (s *session) hello(localName string) error {
	return s.cmd(StageEHLO, "EHLO "+localName, 250)
}

// startTLS upgrades the plaintext connection in place.
func (s *session) startTLS(ctx context.Context, cfg *tls.Config) error {
	if err := s.cmd(StageStartTLS, "STARTTLS", 220); err != nil {
		return err
	}
	tc := tls.Client(s.conn.nc, cfg)
	hctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := tc.HandshakeContext(hctx); err != nil {
		return &StageError{Stage: StageStartTLS, Err: err}
	}
	s.conn.upgrade(tc)
	s.tls = true
	return nil
}

// authLogin runs the AUTH LOGIN exchange: two 334 continuations carrying
// the base64 username and password prompts, then 235. Credentials are
// only base64-encoded, so the session must already be on TLS.
func (s *session) authLogin(username, password string) error {
	if !s.tls {
		return &StageError{Stage: StageAuth, Err: ErrPlaintextAuth}
	}
	if err := s.cmd(StageAuth, "AUTH LOGIN", 334); err != nil {
		return err
	}
	if err := s.cmd(StageAuth, base64.StdEncoding.EncodeToString([]byte(username)), 334); err != nil {
		return err
	}
	return s.cmd(StageAuth, base64.StdEncoding.EncodeToString([]byte(password)), 235)
}

// transmit writes the message through the dot-stuffing writer, sends the
// end-of-data marker, and expects the final 250 accept.
func (s *session) transmit(msg []byte) error {
	s.conn.setDeadline(s.timeout)
	dw := newDotWriter(s.conn.w)
	if _, err := dw.Write(msg); err != nil {
		return &StageError{Stage: StageTransmit, Err: err}
	}
	if err := dw.Close(); err != nil {
		return &StageError{Stage: StageTransmit, Err: err}
	}
	_, err := s.expect(StageTransmit, 250)
	return err
}

// cmd writes one command line and checks the reply against the codes
// allowed at this stage.
func (s *session) cmd(stage Stage, line string, allowed ...int) error {
	s.conn.setDeadline(s.timeout)
	if err := s.conn.writeLine(line); err != nil {
		return &StageError{Stage: stage, Err: err}
	}
	_, err := s.expect(stage, allowed...)
	return err
}

// expect reads one reply and aborts the session unless its code is in
// the allowed set for the current stage.
func (s *session) expect(stage Stage, allowed ...int) (reply, error) {
	s.conn.setDeadline(s.timeout)
	r, err := s.conn.readReply()
	if err != nil {
		return reply{}, &StageError{Stage: stage, Err: err}
	}
	for _, code := range allowed {
		if r.code == code {
			return r, nil
		}
	}
	return reply{}, &StageError{Stage: stage, Code: r.code, Response: r.text()}
}
