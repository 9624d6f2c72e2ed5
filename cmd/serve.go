package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nicebartender/botgate/bot"
	"github.com/nicebartender/botgate/command"
	"github.com/nicebartender/botgate/db"
	"github.com/nicebartender/botgate/plugins"
	"github.com/nicebartender/botgate/server"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Accept gateway connections and run the configured bots",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadConfig(viper.New(), *configPath)
			if err != nil {
				return err
			}
			slog.SetDefault(newLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg Config) error {
	database, err := db.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer database.Close()

	srv, err := server.New(buildBots(cfg, database)...)
	if err != nil {
		return err
	}

	slog.Info("botgate starting", "version", Version, "addr", cfg.Listen)
	return srv.Run(ctx, cfg.Listen)
}

// buildBots creates every configured bot and loads its plugins. Unless
// commands are isolated, all bots share one set of canonical names.
func buildBots(cfg Config, database *db.DB) []server.Endpoint {
	var shared *command.Names
	if !cfg.IsolateCommands {
		shared = command.NewNames()
	}

	endpoints := make([]server.Endpoint, 0, len(cfg.Bots))
	for _, bc := range cfg.Bots {
		b := bot.New(bot.Options{
			Name:     bc.Name,
			Endpoint: bc.Endpoint,
			Markers:  command.NewMarkers(bc.Markers(cfg.CommandStart)),
			Names:    shared,
			Recorder: recorder(database),
		})
		loaded := plugins.Load(b, bc.Plugins, plugins.Options{
			Admins:       bc.Admins,
			CommonGroups: bc.CommonGroups,
			RepeatRate:   cfg.RepeatRate,
			Reply:        bc.Reply,
			DB:           database,
		})
		if len(loaded) < len(bc.Plugins) {
			slog.Warn("some plugins were skipped", "bot", bc.Name, "loaded", loaded, "configured", bc.Plugins)
		}
		endpoints = append(endpoints, server.Endpoint{Bot: b, Token: bc.AccessToken})
	}
	return endpoints
}

func recorder(database *db.DB) bot.Recorder {
	if database == nil {
		return nil
	}
	return database
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

