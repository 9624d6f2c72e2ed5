package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/nicebartender/botgate/plugins"
	"github.com/nicebartender/botgate/server"
)

const (
	configName = "botgate"
	configType = "toml"
	envPrefix  = "BOTGATE"
)

type Config struct {
	Listen          string      `mapstructure:"listen" toml:"listen"`
	DB              string      `mapstructure:"db" toml:"db"`
	LogLevel        string      `mapstructure:"log_level" toml:"log_level"`
	LogFormat       string      `mapstructure:"log_format" toml:"log_format"`
	CommandStart    []string    `mapstructure:"command_start" toml:"command_start"`
	RepeatRate      float64     `mapstructure:"repeat_rate" toml:"repeat_rate"`
	IsolateCommands bool        `mapstructure:"isolate_commands" toml:"isolate_commands"`
	Bots            []BotConfig `mapstructure:"bots" toml:"bots"`
}

type BotConfig struct {
	Name        string `mapstructure:"name" toml:"name"`
	Endpoint    string `mapstructure:"endpoint" toml:"endpoint"`
	AccessToken string `mapstructure:"access_token" toml:"access_token,omitempty"`
	// CommandStart overrides the global list when set.
	CommandStart []string `mapstructure:"command_start" toml:"command_start,omitempty"`
	Plugins      []string `mapstructure:"plugins" toml:"plugins"`
	CommonGroups []int64  `mapstructure:"common_groups" toml:"common_groups,omitempty"`
	Admins       []int64  `mapstructure:"admins" toml:"admins,omitempty"`
	Reply        string   `mapstructure:"reply" toml:"reply,omitempty"`
}

func (b BotConfig) Markers(global []string) []string {
	if b.CommandStart != nil {
		return b.CommandStart
	}
	return global
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", "127.0.0.1:8082")
	v.SetDefault("db", "botgate.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("command_start", []string{"/"})
	v.SetDefault("repeat_rate", plugins.DefaultRepeatRate)
	v.SetDefault("isolate_commands", false)
}

// LoadConfig reads path, or botgate.toml from the working directory or
// $HOME/.config/botgate when path is empty. BOTGATE_* variables override
// top-level keys.
func LoadConfig(v *viper.Viper, path string) (Config, error) {
	if v == nil {
		v = viper.New()
	}
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/botgate")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if len(c.Bots) == 0 {
		return errors.New("config: no bots configured")
	}
	if c.RepeatRate < 0 || c.RepeatRate > 1 {
		return fmt.Errorf("config: repeat_rate %v is not within [0, 1]", c.RepeatRate)
	}

	known := make(map[string]bool)
	for _, name := range plugins.Names() {
		known[name] = true
	}
	names := make(map[string]bool)
	endpoints := make(map[string]string)
	for i, b := range c.Bots {
		if b.Name == "" {
			return fmt.Errorf("config: bots[%d] has no name", i)
		}
		if names[b.Name] {
			return fmt.Errorf("config: bot name %q used twice", b.Name)
		}
		names[b.Name] = true

		endpoint := b.Endpoint
		if endpoint == "" {
			endpoint = "/"
		}
		if err := server.ValidEndpoint(endpoint); err != nil {
			return fmt.Errorf("config: bot %s: %w", b.Name, err)
		}
		if other, ok := endpoints[endpoint]; ok {
			return fmt.Errorf("config: bots %s and %s share endpoint %s", other, b.Name, endpoint)
		}
		endpoints[endpoint] = b.Name

		for _, p := range b.Plugins {
			if !known[p] {
				return fmt.Errorf("config: bot %s: unknown plugin %q", b.Name, p)
			}
		}
	}
	return nil
}

func exampleConfig() Config {
	return Config{
		Listen:       "127.0.0.1:8082",
		DB:           "botgate.db",
		LogLevel:     "info",
		LogFormat:    "text",
		CommandStart: []string{"/", "!"},
		RepeatRate:   plugins.DefaultRepeatRate,
		Bots: []BotConfig{{
			Name:         "main",
			Endpoint:     "/",
			AccessToken:  "change-me",
			Plugins:      []string{"help", "echo", "guess", "quote", "history", "stats", "chat"},
			CommonGroups: []int64{},
			Reply:        plugins.DefaultReply,
		}},
	}
}
