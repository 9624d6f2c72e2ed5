package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/nicebartender/botgate/call"
	"github.com/nicebartender/botgate/conversation"
	"github.com/nicebartender/botgate/event"
)

const fileNotice = "Sending file..."

// Context is what a handler gets: the message, the parsed command and a
// way back to the gateway connection the message came from.
type Context struct {
	*event.Message
	// Command and Alias are empty for generic handlers.
	Command string
	Alias   string
	// Args is the text after the command alias, or the whole plain text
	// for generic handlers.
	Args string

	session *Session
}

func (c *Context) Session() *Session    { return c.session }
func (c *Context) Bot() *Bot            { return c.session.bot }
func (c *Context) Caller() *call.Caller { return c.session.caller }

type sendOptions struct {
	reply   bool
	mention bool
}

type SendOption func(*sendOptions)

// NoReply sends without quoting the triggering message.
func NoReply() SendOption { return func(o *sendOptions) { o.reply = false } }

// NoMention sends without mentioning the sender in groups.
func NoMention() SendOption { return func(o *sendOptions) { o.mention = false } }

// Send answers in the message's position. content is a string, a Segment
// or a Chain. By default the answer quotes the message and, in groups,
// mentions the sender. Files travel alone and are announced first; a chain
// that already starts with a reply keeps its own.
func (c *Context) Send(ctx context.Context, content any, opts ...SendOption) (int64, error) {
	chain, err := toChain(content)
	if err != nil {
		return 0, err
	}

	o := sendOptions{reply: true, mention: true}
	for _, opt := range opts {
		opt(&o)
	}

	if len(chain) > 0 {
		switch chain[0].Type {
		case event.SegmentFile:
			o.reply, o.mention = false, false
			c.session.wg.Add(1)
			go func() {
				defer c.session.wg.Done()
				if _, err := c.Send(ctx, fileNotice); err != nil {
					c.session.log.Warn("file notice failed", "err", err)
				}
			}()
		case event.SegmentReply:
			o.reply = false
		}
	}

	out := make(event.Chain, 0, len(chain)+3)
	if o.reply {
		out = append(out, event.Reply(c.MessageID))
	}
	if o.mention && !c.Sender.Private() {
		out = append(out, event.At(c.Sender.UserID), event.Text(" "))
	}
	out = append(out, chain...)

	return c.session.caller.SendMessage(ctx, c.Position(), out)
}

// Sendf sends formatted text with the default options.
func (c *Context) Sendf(ctx context.Context, format string, args ...any) error {
	_, err := c.Send(ctx, fmt.Sprintf(format, args...))
	return err
}

// Expect suspends until a message matching match arrives, or fails with
// conversation.ErrResponseTimeout. The matched message is not dispatched
// anywhere else.
func (c *Context) Expect(ctx context.Context, match conversation.Predicate, timeout time.Duration) (*Context, error) {
	m, err := c.session.bot.waiters.Expect(ctx, match, timeout)
	if err != nil {
		return nil, err
	}
	return c.follow(m), nil
}

// Prompt asks question and waits for the sender's next message. The waiter
// is registered before the question leaves so a fast answer is not missed.
func (c *Context) Prompt(ctx context.Context, question string, timeout time.Duration) (*Context, error) {
	waiters := c.session.bot.waiters
	h := waiters.Register(event.SameSender(c.Message))
	if _, err := c.Send(ctx, question); err != nil {
		if m, pending := waiters.Withdraw(h); !pending && m != nil {
			// The answer beat the failed question; let it be dispatched.
			origin := c.session.origin(m)
			origin.log.Warn("prompt failed after capturing an answer, dispatching it", "message_id", m.MessageID, "err", err)
			origin.route(m)
		}
		return nil, err
	}
	m, err := waiters.Wait(ctx, h, timeout)
	if err != nil {
		return nil, err
	}
	return c.follow(m), nil
}

// Recall deletes the triggering message.
func (c *Context) Recall(ctx context.Context) error {
	return c.session.caller.DeleteMessage(ctx, c.MessageID)
}

// follow wraps a captured message. Replies to it go out on the connection
// it arrived on.
func (c *Context) follow(m *event.Message) *Context {
	return &Context{Message: m, Command: c.Command, Alias: c.Alias, Args: m.Text, session: c.session.origin(m)}
}

func toChain(content any) (event.Chain, error) {
	switch v := content.(type) {
	case string:
		return event.Chain{event.Text(v)}, nil
	case event.Segment:
		return event.Chain{v}, nil
	case event.Chain:
		return v, nil
	case []event.Segment:
		return event.Chain(v), nil
	default:
		return nil, fmt.Errorf("cannot send %T", content)
	}
}
