package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eliyamlevy/MAOnline/internal/cache"
	"github.com/eliyamlevy/MAOnline/internal/config"
	"github.com/eliyamlevy/MAOnline/internal/game"
	"github.com/eliyamlevy/MAOnline/internal/registry"
	"github.com/eliyamlevy/MAOnline/internal/rules"
	"github.com/eliyamlevy/MAOnline/internal/server"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	v       = viper.New()
)

var rootCmd = &cobra.Command{
	Use:          "maoserver",
	Short:        "Authoritative Mao card game server",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(".env"); err != nil {
			return err
		}
		cfg, err := config.Load(v, cfgFile)
		if err != nil {
			return err
		}
		log, err := cfg.Log.NewLogger(os.Stderr)
		if err != nil {
			return err
		}
		if used := v.ConfigFileUsed(); used != "" {
			log.WithField("file", used).Info("Using config file.")
		}

		ctx, cancel := context.WithCancel(SignalContext(context.Background()))
		defer cancel()
		return run(ctx, cfg, log)
	},
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&cfgFile, "config", "", "config file (default is ./.maoserver.toml, $HOME/.maoserver.toml or /etc/maonline/.maoserver.toml)")
	f.String("host", "0.0.0.0", "listen host")
	f.Int("port", 8000, "listen port")
	f.String("password", "", "password for the default game")
	f.Int("turn-timeout", game.DefaultTurnTimeoutSec, "seconds a player has to act")
	f.String("redis-url", "", "redis URL for the game action history; empty disables it")
	f.String("rules-script", "", "Lua script overriding card effects")
	f.Bool("penalize-invalid-moves", false, "draw a penalty card after an illegal play")
	f.String("log-level", "info", "log level")

	for key, flag := range map[string]string{
		"host":                         "host",
		"port":                         "port",
		"password":                     "password",
		"game.turn_timeout":            "turn-timeout",
		"redis.url":                    "redis-url",
		"rules.script":                 "rules-script",
		"rules.penalize_invalid_moves": "penalize-invalid-moves",
		"log.level":                    "log-level",
	} {
		if err := v.BindPFlag(key, f.Lookup(flag)); err != nil {
			panic(err)
		}
	}
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	var opts []game.Option

	if cfg.Redis.URL != "" {
		hist, err := cache.Connect(ctx, cfg.Redis.URL, cfg.Redis.Key)
		if err != nil {
			return err
		}
		defer hist.Close()
		opts = append(opts, game.WithPublisher(hist))
		log.WithField("key", cfg.Redis.Key).Info("Recording game actions to redis.")
	}

	if cfg.Rules.Script != "" {
		resolver, err := rules.LoadLuaResolver(cfg.Rules.Script)
		if err != nil {
			return err
		}
		defer resolver.Close()
		opts = append(opts, game.WithEffectResolver(resolver))
		log.WithField("script", cfg.Rules.Script).Info("Loaded card effect script.")
	}

	reg := registry.New(registry.Config{HouseRules: cfg.Game, GameOptions: opts}, log)
	var err error
	if cfg.Password != "" {
		_, err = reg.CreateGame(cfg.Password, cfg.Game.TurnTimeoutSec)
	} else {
		_, err = reg.GetOrCreateDefault()
	}
	if err != nil {
		return fmt.Errorf("creating default game: %w", err)
	}

	srv := server.New(reg, server.Options{
		DrainInterval:        cfg.DrainInterval,
		PenalizeInvalidMoves: cfg.Rules.PenalizeInvalidMoves,
	}, log)
	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() { _ = srv.Run(ctx) }()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("Server shutdown failed.")
		}
	}()

	log.WithField("addr", cfg.Addr()).Info("Listening.")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info("Server stopped.")
	return nil
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigs
		signal.Stop(sigs)
		cancel()
	}()
	return ctx
}
