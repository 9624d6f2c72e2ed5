// Package event models the frames pushed by the chat gateway: message
// events, connection lifecycle notices and the message content segments
// they carry.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type Kind int

const (
	KindOther Kind = iota
	KindMessage
	KindConnected
)

func (k Kind) String() string {
	switch k {
	case KindMessage:
		return "message"
	case KindConnected:
		return "connected"
	default:
		return "other"
	}
}

// Event is the tagged union of decoded gateway events.
type Event interface {
	Kind() Kind
}

// Connected is the lifecycle notice sent once the gateway has attached.
type Connected struct {
	SelfID int64
	Time   time.Time
}

func (*Connected) Kind() Kind { return KindConnected }

// Other is any event kind the runtime does not route (heartbeats, notices,
// requests).
type Other struct {
	PostType string
	SubType  string
}

func (*Other) Kind() Kind { return KindOther }

var ErrUnsupportedFormat = errors.New("unsupported message format")

// Decode builds the event described by a frame already peeked into env.
func Decode(env Envelope, raw []byte) (Event, error) {
	switch env.PostType {
	case "message":
		return DecodeMessage(raw)
	case "meta_event":
		if env.MetaEventType == "lifecycle" && env.SubType == "connect" {
			var lc struct {
				SelfID int64 `json:"self_id"`
				Time   int64 `json:"time"`
			}
			if err := json.Unmarshal(raw, &lc); err != nil {
				return nil, fmt.Errorf("decode lifecycle event: %w", err)
			}
			return &Connected{SelfID: lc.SelfID, Time: unixTime(lc.Time)}, nil
		}
	}
	return &Other{PostType: env.PostType, SubType: env.SubType}, nil
}

func unixTime(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}
