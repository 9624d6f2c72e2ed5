// Package bot is the runtime of one chat bot: its command registrations,
// generic handlers and pending conversations, and the dispatcher that
// routes every frame of a gateway connection.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nicebartender/botgate/command"
	"github.com/nicebartender/botgate/conversation"
	"github.com/nicebartender/botgate/event"
	"github.com/nicebartender/botgate/perm"
)

const (
	DefaultApology       = "Something unexpected went wrong, please contact the bot admin."
	DefaultRecordTimeout = 2 * time.Second
)

// Handler runs a command or a generic message handler.
type Handler func(ctx context.Context, c *Context) error

// ConnectHandler runs when the gateway reports that it has attached.
type ConnectHandler func(ctx context.Context, s *Session) error

type Command struct {
	Name       string
	Aliases    []string
	Help       string
	Permission perm.Policy
	Handler    Handler
}

// Recorder persists message history. db.DB implements it.
type Recorder interface {
	RecordMessage(ctx context.Context, bot string, m *event.Message) error
	RecordInvocation(ctx context.Context, bot, command string, m *event.Message, outcome string, took time.Duration) error
}

type Options struct {
	Name     string
	Endpoint string
	Markers  command.Markers
	// Names is shared between bots whose canonical command names must not
	// collide. Nil gives the bot a set of its own.
	Names    *command.Names
	Recorder Recorder
	// RecordTimeout bounds the history write done for every inbound
	// message. Zero means DefaultRecordTimeout.
	RecordTimeout time.Duration
	Logger        *slog.Logger
	Apology       string
}

// Bot is one bot scope.
type Bot struct {
	name     string
	endpoint string
	markers  command.Markers
	names    *command.Names
	aliases  command.Table
	waiters  *conversation.Set
	recorder Recorder
	recordTO time.Duration
	log      *slog.Logger
	apology  string

	// origins maps a message offered to the waiters to the session it
	// arrived on, until a conversation picks it up.
	origins sync.Map

	mu        sync.RWMutex
	commands  map[string]*Command
	order     []string
	onMessage []Handler
	onConnect []ConnectHandler
}

func New(opts Options) *Bot {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("bot", opts.Name)
	names := opts.Names
	if names == nil {
		names = command.NewNames()
	}
	apology := opts.Apology
	if apology == "" {
		apology = DefaultApology
	}
	recordTO := opts.RecordTimeout
	if recordTO <= 0 {
		recordTO = DefaultRecordTimeout
	}
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = "/"
	}
	return &Bot{
		name:     opts.Name,
		endpoint: endpoint,
		markers:  opts.Markers,
		names:    names,
		waiters:  conversation.NewSet(log),
		recorder: opts.Recorder,
		recordTO: recordTO,
		log:      log,
		apology:  apology,
		commands: make(map[string]*Command),
	}
}

func (b *Bot) Name() string               { return b.name }
func (b *Bot) Endpoint() string           { return b.endpoint }
func (b *Bot) Markers() command.Markers   { return b.markers }
func (b *Bot) Waiters() *conversation.Set { return b.waiters }
func (b *Bot) Logger() *slog.Logger       { return b.log }

// SetRecorder must be called before the bot starts serving.
func (b *Bot) SetRecorder(r Recorder) { b.recorder = r }

func (b *Bot) command(name string) *Command {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.commands[name]
}

func (b *Bot) messageHandlers() []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.onMessage
}

func (b *Bot) connectHandlers() []ConnectHandler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.onConnect
}

var errInvalidCommand = errors.New("invalid command")

// Register adds cmd under its canonical name and all its aliases. Either
// everything is registered or nothing is.
func (b *Bot) Register(cmd Command) error {
	if cmd.Name == "" || cmd.Handler == nil {
		return fmt.Errorf("%w: name and handler are required", errInvalidCommand)
	}
	aliases := command.Normalize(cmd.Name, cmd.Aliases)

	if owner, ok := b.names.Owner(cmd.Name); ok {
		return fmt.Errorf("%w: %q (bot %s)", command.ErrDuplicateCommand, cmd.Name, owner)
	}
	if err := b.aliases.Check(cmd.Name, aliases); err != nil {
		return err
	}
	if err := b.names.Claim(cmd.Name, b.name); err != nil {
		return err
	}
	if err := b.aliases.Add(cmd.Name, aliases); err != nil {
		b.names.Release(cmd.Name, b.name)
		return err
	}

	cmd.Aliases = aliases
	b.mu.Lock()
	b.commands[cmd.Name] = &cmd
	b.order = append(b.order, cmd.Name)
	b.mu.Unlock()

	b.log.Info("command registered", "command", cmd.Name, "aliases", aliases)
	return nil
}

// MustRegister is Register for static command tables.
func (b *Bot) MustRegister(cmd Command) {
	if err := b.Register(cmd); err != nil {
		panic(err)
	}
}

// OnMessage adds a handler for messages that are neither captured nor
// commands.
func (b *Bot) OnMessage(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onMessage = append(b.onMessage, h)
}

func (b *Bot) OnConnect(h ConnectHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onConnect = append(b.onConnect, h)
}

// Commands returns the registered commands in registration order.
func (b *Bot) Commands() []Command {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Command, 0, len(b.order))
	for _, name := range b.order {
		cmd := *b.commands[name]
		cmd.Aliases = b.aliases.Aliases(name)
		out = append(out, cmd)
	}
	return out
}
