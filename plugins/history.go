package plugins

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/nicebartender/botgate/bot"
	"github.com/nicebartender/botgate/db"
)

const historyDefault = 10

func History(b *bot.Bot, opts Options) error {
	if opts.DB == nil {
		return ErrNeedsDB
	}
	return b.Register(bot.Command{
		Name:    "history",
		Help:    "show recent messages here: history [count]",
		Handler: func(ctx context.Context, c *bot.Context) error {
			n := historyDefault
			if arg := strings.TrimSpace(c.Args); arg != "" {
				v, err := strconv.Atoi(arg)
				if err != nil || v <= 0 {
					return bot.Hintf("Count must be a positive number.")
				}
				if v >= db.MaxHistory {
					return bot.Hintf("At most %d messages.", db.MaxHistory-1)
				}
				n = v
			}

			msgs, err := opts.DB.RecentMessages(ctx, b.Name(), c.Position(), n+1)
			if err != nil {
				return err
			}
			// The history command itself is the newest row.
			if len(msgs) > 0 && msgs[len(msgs)-1].MessageID == c.MessageID {
				msgs = msgs[:len(msgs)-1]
			}
			if len(msgs) == 0 {
				return bot.Hintf("Nothing recorded yet.")
			}

			var sb strings.Builder
			for i, m := range msgs {
				if i > 0 {
					sb.WriteByte('\n')
				}
				fmt.Fprintf(&sb, "[%s] %s: %s", m.CreatedAt.Local().Format("15:04"), m.Nickname, m.Content)
			}
			_, err = c.Send(ctx, sb.String(), bot.NoMention())
			return err
		},
	})
}

func Stats(b *bot.Bot, opts Options) error {
	if opts.DB == nil {
		return ErrNeedsDB
	}
	return b.Register(bot.Command{
		Name:    "stats",
		Help:    "command usage counts",
		Handler: func(ctx context.Context, c *bot.Context) error {
			stats, err := opts.DB.CommandStats(ctx, b.Name())
			if err != nil {
				return err
			}
			if len(stats) == 0 {
				return bot.Hintf("No commands run yet.")
			}
			var sb strings.Builder
			for i, s := range stats {
				if i > 0 {
					sb.WriteByte('\n')
				}
				fmt.Fprintf(&sb, "%s: %d runs, %d errors", s.Command, s.Runs, s.Errors)
			}
			_, err = c.Send(ctx, sb.String(), bot.NoMention())
			return err
		},
	})
}
