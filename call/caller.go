// Package call turns the single duplex gateway connection into independent
// request/response calls correlated by an integer tag.
package call

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Transport sends one outbound frame. ws.Conn satisfies it.
type Transport interface {
	SendJSON(v any) error
}

// Request is the outbound call frame.
type Request struct {
	Action string `json:"action"`
	Params any    `json:"params"`
	Echo   int64  `json:"echo"`
}

// Reply is the gateway's answer to a Request.
type Reply struct {
	Status  string          `json:"status"`
	Retcode int             `json:"retcode"`
	Message string          `json:"message,omitempty"`
	Wording string          `json:"wording,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (r Reply) Failed() bool {
	return r.Status == "failed"
}

// FailedError is returned when the gateway answers with a failure status.
type FailedError struct {
	Action  string
	Retcode int
	Message string
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("call %s failed (retcode %d): %s", e.Action, e.Retcode, e.Message)
}

const maxTagAttempts = 8

type Caller struct {
	seq   *Sequence
	store *Store
	tr    Transport
	log   *slog.Logger
}

func NewCaller(tr Transport, seq *Sequence, store *Store, log *slog.Logger) *Caller {
	if seq == nil {
		seq = &Sequence{}
	}
	if store == nil {
		store = NewStore()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Caller{seq: seq, store: store, tr: tr, log: log}
}

func (c *Caller) Store() *Store { return c.store }

// Call issues action and waits up to timeout for its reply. It returns the
// reply's data field, which some actions leave empty.
func (c *Caller) Call(ctx context.Context, action string, params any, timeout time.Duration) (json.RawMessage, error) {
	if params == nil {
		params = map[string]any{}
	}

	tag, err := c.begin()
	if err != nil {
		return nil, err
	}

	if err := c.tr.SendJSON(Request{Action: action, Params: params, Echo: tag}); err != nil {
		c.store.Cancel(tag)
		return nil, fmt.Errorf("send %s: %w", action, err)
	}

	reply, err := c.store.Await(ctx, tag, timeout)
	if err != nil {
		if errors.Is(err, ErrCallTimeout) {
			c.log.Warn("call timed out", "action", action, "echo", tag, "timeout", timeout)
		}
		return nil, fmt.Errorf("%s: %w", action, err)
	}
	if reply.Failed() {
		msg := reply.Message
		if msg == "" {
			msg = reply.Wording
		}
		return nil, &FailedError{Action: action, Retcode: reply.Retcode, Message: msg}
	}
	return reply.Data, nil
}

// Deliver routes a raw reply frame to the call waiting on tag. Replies
// nobody waits for are dropped.
func (c *Caller) Deliver(tag int64, raw []byte) bool {
	if tag == 0 {
		c.log.Debug("reply without echo dropped")
		return false
	}
	var reply Reply
	if err := json.Unmarshal(raw, &reply); err != nil {
		c.log.Warn("undecodable reply dropped", "echo", tag, "err", err)
		return false
	}
	if !c.store.Resolve(tag, reply) {
		c.log.Debug("late or unmatched reply dropped", "echo", tag)
		return false
	}
	return true
}

func (c *Caller) begin() (int64, error) {
	var err error
	for i := 0; i < maxTagAttempts; i++ {
		tag := c.seq.Next()
		if err = c.store.Begin(tag); err == nil {
			return tag, nil
		}
		c.log.Error("correlation tag collision", "echo", tag)
	}
	return 0, err
}
