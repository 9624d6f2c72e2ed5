package ws

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Authenticate validates the handshake headers of an incoming gateway
// connection. An empty token disables the token check.
func Authenticate(r *http.Request, token string) (Handshake, error) {
	role := strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderClientRole)))
	if role != RoleUniversal {
		return Handshake{}, fmt.Errorf("%w: %q", ErrUnsupportedRole, r.Header.Get(HeaderClientRole))
	}

	selfID, err := strconv.ParseInt(strings.TrimSpace(r.Header.Get(HeaderSelfID)), 10, 64)
	if err != nil || selfID <= 0 {
		return Handshake{}, fmt.Errorf("%w: %q", ErrBadSelfID, r.Header.Get(HeaderSelfID))
	}

	if token != "" {
		got := requestToken(r)
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			return Handshake{}, fmt.Errorf("%w: bad access token", ErrUnauthorized)
		}
	}

	return Handshake{Role: role, SelfID: selfID}, nil
}

// requestToken accepts "Bearer <t>", "Token <t>" or the access_token query
// parameter.
func requestToken(r *http.Request) string {
	if h := strings.TrimSpace(r.Header.Get(HeaderAuth)); h != "" {
		scheme, value, ok := strings.Cut(h, " ")
		if ok && (strings.EqualFold(scheme, "Bearer") || strings.EqualFold(scheme, "Token")) {
			return strings.TrimSpace(value)
		}
		return ""
	}
	return r.URL.Query().Get(QueryToken)
}
