package plugins

import (
	"context"

	"github.com/nicebartender/botgate/bot"
	"github.com/nicebartender/botgate/perm"
)

const (
	DefaultReply      = "What is it?"
	DefaultRepeatRate = 0.08
)

// Chat handles ordinary messages: it answers messages addressed to the bot
// and now and then repeats what others say. With CommonGroups set it only
// speaks in those groups.
func Chat(b *bot.Bot, opts Options) error {
	where := perm.Any()
	if len(opts.CommonGroups) > 0 {
		where = perm.Groups(opts.CommonGroups...)
	}
	reply := opts.Reply
	if reply == "" {
		reply = DefaultReply
	}
	rate := opts.RepeatRate
	if rate < 0 || rate > 1 {
		rate = DefaultRepeatRate
	}

	b.OnMessage(func(ctx context.Context, c *bot.Context) error {
		if !where.Check(c.Sender) {
			return nil
		}
		if c.ToMe() {
			_, err := c.Send(ctx, reply)
			return err
		}
		if c.Text != "" && opts.roll() < rate {
			_, err := c.Send(ctx, c.Text, bot.NoReply(), bot.NoMention())
			return err
		}
		return nil
	})
	return nil
}
