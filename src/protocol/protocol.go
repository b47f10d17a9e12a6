package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

type RequestKind string

const (
	RequestVersion    RequestKind = "version"
	RequestPlaceOrder RequestKind = "place_order"
)

type Side string

const (
	SideBuy  Side = "B"
	SideSell Side = "S"
)

const (
	OrderTypeMarket = "MKT"
	TimeInForceDay  = "DAY"
	ConfirmOff      = "OFF"
	StatusOK        = "OK"
)

// AuthRequest is the one-time version/auth handshake sent right after
// a connection is opened. The credential appears only here, never on
// order commands.
type AuthRequest struct {
	Request RequestKind `json:"RQT"`
	Version string      `json:"VN"`
	Token   string      `json:"TK"`
}

func NewAuthRequest(version, token string) AuthRequest {
	return AuthRequest{
		Request: RequestVersion,
		Version: version,
		Token:   token,
	}
}

// OrderCommand carries a single order intent using the terminal's
// field codes. Constructed once per alert and never mutated.
type OrderCommand struct {
	Request     RequestKind `json:"RQT"`
	Provider    string      `json:"PV"`
	Account     string      `json:"AC"`
	Side        Side        `json:"SD"`
	Quantity    string      `json:"QT"`
	Instrument  string      `json:"INS"`
	OrderType   string      `json:"TP"`
	Price       string      `json:"PR"`
	LimitPrice  string      `json:"LM"`
	TimeInForce string      `json:"LF"`
	Confirm     string      `json:"CNF"`
}

// Response is one reply frame from the terminal. Unknown keys are
// retained but otherwise ignored; only RES is interpreted.
type Response map[string]any

func (r Response) Status() string {
	s, _ := r["RES"].(string)
	return s
}

func (r Response) OK() bool {
	return r.Status() == StatusOK
}

// ParseResponse decodes a reply frame. Replies that are not a JSON
// object are rejected; extra fields beyond RES are tolerated.
func ParseResponse(data []byte) (Response, error) {
	var r Response
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("malformed reply: %w", err)
	}
	if r == nil {
		return nil, fmt.Errorf("malformed reply: not a JSON object")
	}
	return r, nil
}

// NormalizeCredential keeps only the decimal digits of a raw token,
// in their original order. The terminal issues tokens with decorative
// separators that must be stripped before use.
func NormalizeCredential(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
