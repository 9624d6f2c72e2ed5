package bot

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nicebartender/botgate/call"
	"github.com/nicebartender/botgate/event"
)

// Result is what the dispatcher did with one inbound frame.
type Result int

const (
	Ignored   Result = iota // undecodable frame, unrouted event kind or unmatched reply
	Replied                 // reply delivered to a pending call
	Connected               // lifecycle connect, connection handlers started
	Captured                // message claimed by a conversation waiter
	Handled                 // message dispatched to a command
	Unhandled               // message passed to the generic handlers
)

func (r Result) String() string {
	switch r {
	case Replied:
		return "replied"
	case Connected:
		return "connected"
	case Captured:
		return "captured"
	case Handled:
		return "handled"
	case Unhandled:
		return "unhandled"
	default:
		return "ignored"
	}
}

const (
	OutcomeOK    = "ok"
	OutcomeHint  = "hint"
	OutcomeError = "error"
)

// Session is one gateway connection serving a bot. HandleFrame must be
// called from a single goroutine in arrival order; handlers run on their
// own goroutines.
type Session struct {
	ID     string
	SelfID int64

	bot    *Bot
	caller *call.Caller
	ctx    context.Context
	log    *slog.Logger
	wg     sync.WaitGroup
}

// Attach starts a session over tr. ctx bounds the handlers it spawns and
// must outlive the connection: a conversation started on one connection
// may be answered on another.
func (b *Bot) Attach(ctx context.Context, id string, selfID int64, tr call.Transport) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	log := b.log.With("conn", id, "self_id", selfID)
	return &Session{
		ID:     id,
		SelfID: selfID,
		bot:    b,
		caller: call.NewCaller(tr, &call.Sequence{}, call.NewStore(), log),
		ctx:    ctx,
		log:    log,
	}
}

func (s *Session) Bot() *Bot            { return s.bot }
func (s *Session) Caller() *call.Caller { return s.caller }
func (s *Session) Logger() *slog.Logger { return s.log }

// HandleFrame routes one inbound frame.
func (s *Session) HandleFrame(raw []byte) Result {
	env, err := event.Peek(raw)
	if err != nil {
		s.log.Warn("invalid frame", "err", err)
		return Ignored
	}

	if !env.IsEvent() {
		if s.caller.Deliver(env.Tag(), raw) {
			return Replied
		}
		return Ignored
	}

	ev, err := event.Decode(env, raw)
	if err != nil {
		s.log.Warn("event dropped", "post_type", env.PostType, "err", err)
		return Ignored
	}

	switch e := ev.(type) {
	case *event.Connected:
		s.connected(e)
		return Connected
	case *event.Message:
		return s.dispatch(e)
	default:
		return Ignored
	}
}

func (s *Session) connected(e *event.Connected) {
	s.log.Info("gateway connected", "self_id", e.SelfID)
	for _, h := range s.bot.connectHandlers() {
		h := h
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("connect handler panicked", "panic", r, "stack", string(debug.Stack()))
				}
			}()
			if err := h(s.ctx, s); err != nil {
				s.log.Error("connect handler failed", "err", err)
			}
		}()
	}
}

func (s *Session) dispatch(m *event.Message) Result {
	b := s.bot
	s.log.Info("message received", "message_id", m.MessageID, "sender", m.Sender.String(), "message", m.Chain.String())

	if b.recorder != nil {
		ctx, cancel := context.WithTimeout(s.ctx, b.recordTO)
		err := b.recorder.RecordMessage(ctx, b.name, m)
		cancel()
		if err != nil {
			s.log.Warn("record message failed", "message_id", m.MessageID, "err", err)
		}
	}

	return s.route(m)
}

// route hands m to the first taker: a waiter, a permitted command, or
// else every generic handler.
func (s *Session) route(m *event.Message) Result {
	b := s.bot

	b.origins.Store(m, s)
	if b.waiters.Offer(m) {
		s.log.Info("message captured", "message_id", m.MessageID)
		return Captured
	}
	b.origins.Delete(m)

	if match, ok := b.aliases.Lookup(b.markers, m.Text); ok {
		cmd := b.command(match.Name)
		if cmd != nil && cmd.Permission.Check(m.Sender) {
			c := &Context{Message: m, Command: cmd.Name, Alias: match.Alias, Args: match.Args, session: s}
			s.spawn(cmd.Name, c, cmd.Handler)
			return Handled
		}
		s.log.Debug("command denied", "command", match.Name, "user_id", m.Sender.UserID)
	}

	for _, h := range b.messageHandlers() {
		s.spawn("", &Context{Message: m, Args: m.Text, session: s}, h)
	}
	return Unhandled
}

// origin returns the session a captured message arrived on, or s when
// nobody recorded one.
func (s *Session) origin(m *event.Message) *Session {
	if v, ok := s.bot.origins.LoadAndDelete(m); ok {
		return v.(*Session)
	}
	return s
}

// spawn runs h on its own goroutine. name is the command name, empty for
// generic handlers.
func (s *Session) spawn(name string, c *Context, h Handler) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		start := time.Now()
		outcome := s.invoke(name, c, h)
		if name == "" || s.bot.recorder == nil {
			return
		}
		if err := s.bot.recorder.RecordInvocation(s.ctx, s.bot.name, name, c.Message, outcome, time.Since(start)); err != nil {
			s.log.Warn("record invocation failed", "command", name, "err", err)
		}
	}()
}

// invoke runs h and turns its failure into a reply. Only commands answer
// with the apology; a failing generic handler is just logged.
func (s *Session) invoke(name string, c *Context, h Handler) (outcome string) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("handler panicked", "command", name, "panic", r, "stack", string(debug.Stack()))
			if name != "" {
				s.reply(c, s.bot.apology)
			}
			outcome = OutcomeError
		}
	}()

	err := h(s.ctx, c)
	if err == nil {
		return OutcomeOK
	}

	var hint *Hint
	if errors.As(err, &hint) {
		s.reply(c, hint.Text)
		return OutcomeHint
	}

	if s.ctx.Err() != nil && errors.Is(err, s.ctx.Err()) {
		s.log.Info("handler stopped by shutdown", "command", name, "message_id", c.MessageID)
		return OutcomeError
	}

	s.log.Error("handler failed", "command", name, "message_id", c.MessageID, "err", err)
	if name != "" {
		s.reply(c, s.bot.apology)
	}
	return OutcomeError
}

func (s *Session) reply(c *Context, text string) {
	if _, err := c.Send(s.ctx, text); err != nil {
		s.log.Warn("reply failed", "err", err)
	}
}

// Close fails every call still waiting for a reply. Running handlers are
// left alone; their next call fails fast.
func (s *Session) Close() {
	n := s.caller.Store().Fail(call.ErrClosed)
	s.log.Info("session closed", "failed_calls", n)
}

// Wait blocks until every handler spawned by the session has returned.
func (s *Session) Wait() {
	s.wg.Wait()
}
