package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// FaultPhase tells whether a transport fault happened before the
// request frame was fully sent or while waiting for the reply. The
// retry policy treats both the same; the phase only feeds logs.
type FaultPhase string

const (
	PhaseSend    FaultPhase = "send"
	PhaseReceive FaultPhase = "receive"
)

type Fault struct {
	Phase FaultPhase
	Err   error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("transport fault (%s): %v", f.Phase, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// Connector opens one WebSocket connection per request/response
// exchange. Connections are never pooled or reused.
type Connector struct {
	url         string
	insecure    bool
	dialTimeout time.Duration
	ioTimeout   time.Duration
}

func NewConnector(url string, insecure bool, dialTimeout, ioTimeout time.Duration) *Connector {
	return &Connector{
		url:         url,
		insecure:    insecure,
		dialTimeout: dialTimeout,
		ioTimeout:   ioTimeout,
	}
}

// Insecure reports whether peer certificate verification is disabled.
func (c *Connector) Insecure() bool {
	return c.insecure
}

// Dial opens a fresh connection. Any handshake failure is a send-phase
// fault: nothing has been delivered to the terminal yet.
func (c *Connector) Dial(ctx context.Context) (*Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: c.dialTimeout,
	}
	if c.insecure {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	ws, resp, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, &Fault{Phase: PhaseSend, Err: err}
	}

	return &Conn{ws: ws, ioTimeout: c.ioTimeout}, nil
}

// Conn is a single-exchange connection: one Send, one Receive, then
// Close. Close is safe on every exit path.
type Conn struct {
	ws        *websocket.Conn
	ioTimeout time.Duration
}

func (c *Conn) Send(data []byte) error {
	if c.ioTimeout > 0 {
		c.ws.SetWriteDeadline(time.Now().Add(c.ioTimeout))
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return &Fault{Phase: PhaseSend, Err: err}
	}
	return nil
}

func (c *Conn) Receive() ([]byte, error) {
	if c.ioTimeout > 0 {
		c.ws.SetReadDeadline(time.Now().Add(c.ioTimeout))
	}
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, &Fault{Phase: PhaseReceive, Err: err}
	}
	return data, nil
}

func (c *Conn) Close() error {
	return c.ws.Close()
}
