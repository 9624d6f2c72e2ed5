package plugins

import (
	"context"

	"github.com/nicebartender/botgate/bot"
)

func Echo(b *bot.Bot, _ Options) error {
	return b.Register(bot.Command{
		Name:    "echo",
		Aliases: []string{"say"},
		Help:    "repeat the text after the command",
		Handler: func(ctx context.Context, c *bot.Context) error {
			if c.Args == "" {
				return bot.Hintf("Nothing to echo.")
			}
			_, err := c.Send(ctx, c.Args, bot.NoReply(), bot.NoMention())
			return err
		},
	})
}
