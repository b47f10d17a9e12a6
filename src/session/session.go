package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"alert-bridge/src/protocol"
	"alert-bridge/src/transport"
)

// Session speaks the terminal's request/response protocol. Every call
// runs on a dedicated connection: open, send one frame, wait for
// exactly one reply, close.
type Session struct {
	connector *transport.Connector
	token     string
	version   string
}

func New(connector *transport.Connector, token, version string) *Session {
	return &Session{
		connector: connector,
		token:     token,
		version:   version,
	}
}

// AuthOutcome is the result of the startup handshake. A transport
// fault or a non-OK reply both come back as Authenticated=false; the
// handshake never returns an error that could abort startup.
type AuthOutcome struct {
	Authenticated bool
	Response      protocol.Response
	Err           error
}

// Authenticate performs the one-time version/auth handshake.
func (s *Session) Authenticate(ctx context.Context) AuthOutcome {
	req := protocol.NewAuthRequest(s.version, s.token)

	log.Info().
		Str("request", string(req.Request)).
		Str("version", req.Version).
		Msg("Sending authentication request")

	resp, err := s.exchange(ctx, req)
	if err != nil {
		log.Warn().
			Err(err).
			Msg("Authentication exchange failed")
		return AuthOutcome{Err: err}
	}

	if !resp.OK() {
		log.Warn().
			Str("status", resp.Status()).
			Msg("Authentication rejected by terminal")
		return AuthOutcome{Response: resp}
	}

	log.Info().Msg("Authentication success")
	return AuthOutcome{Authenticated: true, Response: resp}
}

// Call delivers one command and returns the terminal's reply. A
// *transport.Fault is returned for connection, timeout, and
// malformed-reply failures so the retry layer can classify them.
func (s *Session) Call(ctx context.Context, command any) (protocol.Response, error) {
	return s.exchange(ctx, command)
}

func (s *Session) exchange(ctx context.Context, payload any) (protocol.Response, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	conn, err := s.connector.Dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := conn.Send(data); err != nil {
		return nil, err
	}

	reply, err := conn.Receive()
	if err != nil {
		return nil, err
	}

	resp, err := protocol.ParseResponse(reply)
	if err != nil {
		// edge case: a reply we cannot parse counts as a receive fault,
		// retryable like any other broken exchange
		return nil, &transport.Fault{Phase: transport.PhaseReceive, Err: err}
	}

	return resp, nil
}
