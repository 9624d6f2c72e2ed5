package plugins

import (
	"context"
	"errors"
	"fmt"

	"github.com/nicebartender/botgate/bot"
	"github.com/nicebartender/botgate/conversation"
)

// File asks for a file and reports where the gateway stored it.
func File(b *bot.Bot, opts Options) error {
	return b.Register(bot.Command{
		Name:    "file",
		Help:    "upload a file and get its local path",
		Handler: func(ctx context.Context, c *bot.Context) error {
			next, err := c.Prompt(ctx, "Send the file now.", opts.timeout())
			if errors.Is(err, conversation.ErrResponseTimeout) {
				return bot.Hintf("No file received.")
			}
			if err != nil {
				return err
			}

			id, ok := next.Chain.FileID()
			if !ok {
				return bot.Hintf("That's not a file.")
			}
			path, err := c.Caller().GetFile(ctx, id)
			if err != nil {
				return fmt.Errorf("get file %s: %w", id, err)
			}
			return next.Sendf(ctx, "Saved to %s", path)
		},
	})
}
