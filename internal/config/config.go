// Package config loads server settings from flags, environment, an optional
// .env file and an optional TOML config file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/eliyamlevy/MAOnline/internal/game"
	"github.com/joho/godotenv"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment variables: MAO_PORT, MAO_GAME_TURN_TIMEOUT, ...
const EnvPrefix = "MAO"

// Config is the fully resolved server configuration.
type Config struct {
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	Password      string        `mapstructure:"password"` // Password of the default game.
	DrainInterval time.Duration `mapstructure:"drain_interval"`

	Log   LogConfig       `mapstructure:"log"`
	Redis RedisConfig     `mapstructure:"redis"`
	Rules RulesConfig     `mapstructure:"rules"`
	Game  game.HouseRules `mapstructure:"game"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" or "json".
}

// RedisConfig enables the action historian when URL is set.
type RedisConfig struct {
	URL string `mapstructure:"url"`
	Key string `mapstructure:"key"`
}

type RulesConfig struct {
	Script               string `mapstructure:"script"` // Lua effect script; empty uses the standard rules.
	PenalizeInvalidMoves bool   `mapstructure:"penalize_invalid_moves"`
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// SetDefaults registers every key so environment overrides reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8000)
	v.SetDefault("password", "")
	v.SetDefault("drain_interval", 100*time.Millisecond)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.key", "mao:game_actions")

	v.SetDefault("rules.script", "")
	v.SetDefault("rules.penalize_invalid_moves", false)

	hr := game.DefaultHouseRules()
	v.SetDefault("game.turn_timeout", hr.TurnTimeoutSec)
	v.SetDefault("game.typing_phrase", hr.TypingPhrase)
	v.SetDefault("game.typing_limit", hr.TypingTimeLimitSec)
	v.SetDefault("game.hand_size", hr.HandSize)
	v.SetDefault("game.forfeit_after", hr.ForfeitAfterMissedTurns)
	v.SetDefault("game.max_players", hr.MaxPlayers)
}

// LoadDotEnv exports the variables in each existing file. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Load resolves the configuration held by v. With an empty cfgFile it looks
// for .maoserver(.toml) in the working directory, the home directory and
// /etc/maonline, and carries on without one.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigType("toml")
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath("/etc/maonline")
		v.SetConfigName(".maoserver")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.DrainInterval <= 0 {
		errs = append(errs, fmt.Errorf("drain_interval must be positive, got %s", c.DrainInterval))
	}
	if c.Game.TurnTimeoutSec <= 0 {
		errs = append(errs, fmt.Errorf("game.turn_timeout must be positive, got %d", c.Game.TurnTimeoutSec))
	}
	if c.Game.TypingTimeLimitSec <= 0 {
		errs = append(errs, fmt.Errorf("game.typing_limit must be positive, got %d", c.Game.TypingTimeLimitSec))
	}
	if strings.TrimSpace(c.Game.TypingPhrase) == "" {
		errs = append(errs, errors.New("game.typing_phrase is empty"))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format %q is not text or json", c.Log.Format))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
