// Package plugins is the static catalog of plugins a bot can load by name.
package plugins

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/nicebartender/botgate/bot"
	"github.com/nicebartender/botgate/db"
)

// Options carries the settings plugins read from the bot's config.
type Options struct {
	Admins       []int64
	CommonGroups []int64
	RepeatRate   float64
	Reply        string
	DB           *db.DB
	// Timeout bounds every wait for a user's answer. Zero means 30s.
	Timeout time.Duration

	// Roll and Pick default to math/rand.
	Roll func() float64
	Pick func(n int) int
}

func (o Options) roll() float64 {
	if o.Roll != nil {
		return o.Roll()
	}
	return rand.Float64()
}

func (o Options) timeout() time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	return defaultTimeout
}

func (o Options) pick(n int) int {
	if o.Pick != nil {
		return o.Pick(n)
	}
	return rand.IntN(n)
}

const defaultTimeout = 30 * time.Second

// Plugin installs commands or handlers on b.
type Plugin func(b *bot.Bot, opts Options) error

var ErrNeedsDB = errors.New("plugin needs a database")

var catalog = map[string]Plugin{
	"help":    Help,
	"echo":    Echo,
	"guess":   Guess,
	"quote":   Quote,
	"recall":  Recall,
	"file":    File,
	"history": History,
	"stats":   Stats,
	"chat":    Chat,
}

// Names lists every plugin in the catalog.
func Names() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load installs the named plugins in order. A plugin that fails is logged
// and skipped; the rest still load. It returns the names that loaded.
func Load(b *bot.Bot, names []string, opts Options) []string {
	log := b.Logger()
	var loaded []string
	for _, name := range names {
		if err := load(b, name, opts); err != nil {
			log.Error("plugin failed to load", "plugin", name, "err", err)
			continue
		}
		log.Info("plugin loaded", "plugin", name)
		loaded = append(loaded, name)
	}
	return loaded
}

func load(b *bot.Bot, name string, opts Options) (err error) {
	p, ok := catalog[name]
	if !ok {
		return fmt.Errorf("unknown plugin %q", name)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plugin panicked: %v", r)
		}
	}()
	return p(b, opts)
}

func warn(log *slog.Logger, what string, err error) {
	if err != nil {
		log.Warn(what, "err", err)
	}
}
