package plugins

import (
	"context"
	"fmt"

	"github.com/nicebartender/botgate/bot"
	"github.com/nicebartender/botgate/perm"
)

// Quote repeats the message the command replies to, with its author.
func Quote(b *bot.Bot, _ Options) error {
	return b.Register(bot.Command{
		Name:    "quote",
		Aliases: []string{"q"},
		Help:    "reply to a message with this to quote it",
		Handler: func(ctx context.Context, c *bot.Context) error {
			id, ok := c.Chain.ReplyID()
			if !ok {
				return bot.Hintf("Reply to the message you want quoted.")
			}
			quoted, err := c.Caller().GetMessage(ctx, id)
			if err != nil {
				return fmt.Errorf("get message %d: %w", id, err)
			}
			name := quoted.Sender.Card
			if name == "" {
				name = quoted.Sender.Nickname
			}
			return c.Sendf(ctx, "%s: %s", name, quoted.Text)
		},
	})
}

// Recall deletes the message the command replies to. Admins only.
func Recall(b *bot.Bot, opts Options) error {
	if len(opts.Admins) == 0 {
		return fmt.Errorf("recall needs at least one admin")
	}
	return b.Register(bot.Command{
		Name:       "recall",
		Aliases:    []string{"rm"},
		Help:       "reply to a message with this to delete it",
		Permission: perm.Users(opts.Admins...),
		Handler: func(ctx context.Context, c *bot.Context) error {
			id, ok := c.Chain.ReplyID()
			if !ok {
				return bot.Hintf("Reply to the message you want deleted.")
			}
			if err := c.Caller().DeleteMessage(ctx, id); err != nil {
				return fmt.Errorf("delete message %d: %w", id, err)
			}
			warn(c.Session().Logger(), "recall command message", c.Recall(ctx))
			return nil
		},
	})
}
