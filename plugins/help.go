package plugins

import (
	"context"
	"fmt"
	"strings"

	"github.com/nicebartender/botgate/bot"
)

func Help(b *bot.Bot, _ Options) error {
	return b.Register(bot.Command{
		Name:    "help",
		Aliases: []string{"h"},
		Help:    "list commands, or describe one: help <command>",
		Handler: func(ctx context.Context, c *bot.Context) error {
			marker := ""
			if m := b.Markers(); len(m) > 0 {
				marker = m[0]
			}

			if name := strings.TrimSpace(c.Args); name != "" {
				for _, cmd := range b.Commands() {
					if cmd.Name == name {
						return c.Sendf(ctx, "%s%s (%s): %s", marker, cmd.Name, strings.Join(cmd.Aliases, ", "), cmd.Help)
					}
				}
				return bot.Hintf("No command named %q.", name)
			}

			var sb strings.Builder
			sb.WriteString("Commands:")
			for _, cmd := range b.Commands() {
				fmt.Fprintf(&sb, "\n%s%s  %s", marker, cmd.Name, cmd.Help)
			}
			_, err := c.Send(ctx, sb.String())
			return err
		},
	})
}
