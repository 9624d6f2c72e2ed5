package ws

import "errors"

// Handshake headers sent by the gateway when it dials in.
const (
	HeaderClientRole = "X-Client-Role"
	HeaderSelfID     = "X-Self-ID"
	HeaderAuth       = "Authorization"
	QueryToken       = "access_token"

	// RoleUniversal carries events and call replies on one socket. It is
	// the only role served.
	RoleUniversal = "universal"
)

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrUnsupportedRole = errors.New("unsupported client role")
	ErrBadSelfID       = errors.New("missing or invalid self id")
	ErrSendBufferFull  = errors.New("send buffer full")
	ErrConnClosed      = errors.New("connection closed")
)

// Handshake is what the gateway told us about itself before the upgrade.
type Handshake struct {
	Role   string
	SelfID int64
}
