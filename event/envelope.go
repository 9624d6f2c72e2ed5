package event

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Envelope is the type-peek for every inbound frame. Frames without a
// post_type are replies to outbound calls.
type Envelope struct {
	PostType      string          `json:"post_type"`
	MetaEventType string          `json:"meta_event_type,omitempty"`
	SubType       string          `json:"sub_type,omitempty"`
	Echo          json.RawMessage `json:"echo,omitempty"`
}

func Peek(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode frame: %w", err)
	}
	return env, nil
}

func (e Envelope) IsEvent() bool {
	return e.PostType != ""
}

// Tag returns the correlation tag carried in echo, or 0 when it is absent
// or not an integer.
func (e Envelope) Tag() int64 {
	if len(e.Echo) == 0 {
		return 0
	}
	var n int64
	if err := json.Unmarshal(e.Echo, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(e.Echo, &s); err == nil {
		if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return n
		}
	}
	return 0
}
