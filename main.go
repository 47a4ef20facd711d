package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/briefwire/briefwire/internal/aggregator"
	"github.com/briefwire/briefwire/internal/cache"
	"github.com/briefwire/briefwire/internal/config"
	"github.com/briefwire/briefwire/internal/telegram"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fallback := zerolog.New(os.Stderr).With().Timestamp().Logger()
		fallback.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := newLogger(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cacheLayer := cache.New(cfg.CacheRetention)
	defer cacheLayer.Close()

	var bot *telegram.Bot
	if cfg.TelegramToken != "" {
		bot, err = telegram.NewBot(cfg.TelegramToken, cfg.TelegramChatID, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to start telegram bot")
		}
	}

	app := aggregator.New(cfg, cacheLayer, bot, logger)

	logger.Info().Str("port", cfg.ServerPort).Msg("starting briefwire")
	if err := app.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("aggregator stopped with error")
	}
	logger.Info().Msg("briefwire stopped gracefully")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out io.Writer = os.Stderr
	if cfg.LogPretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
