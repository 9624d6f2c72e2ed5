package plugins

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/nicebartender/botgate/bot"
	"github.com/nicebartender/botgate/conversation"
)

const (
	guessMax   = 100
	guessTries = 7
)

// Guess is a number guessing game played over several messages.
func Guess(b *bot.Bot, opts Options) error {
	return b.Register(bot.Command{
		Name:    "guess",
		Help:    "guess a number between 1 and 100",
		Handler: func(ctx context.Context, c *bot.Context) error {
			secret := opts.pick(guessMax) + 1
			next, err := c.Prompt(ctx, "I'm thinking of a number between 1 and 100. Your guess?", opts.timeout())

			for try := 1; ; try++ {
				if errors.Is(err, conversation.ErrResponseTimeout) {
					return bot.Hintf("Time's up, it was %d.", secret)
				}
				if err != nil {
					return err
				}

				n, convErr := strconv.Atoi(strings.TrimSpace(next.Text))
				var reply string
				switch {
				case convErr != nil:
					reply = "That's not a number."
				case n == secret:
					return next.Sendf(ctx, "Correct, %d tries.", try)
				case try >= guessTries:
					return bot.Hintf("Out of tries, it was %d.", secret)
				case n < secret:
					reply = "Higher."
				default:
					reply = "Lower."
				}

				next, err = next.Prompt(ctx, reply, opts.timeout())
			}
		},
	})
}
