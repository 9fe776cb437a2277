// Command bot runs the Discord reminder bot: the gateway session serving the
// slash commands, the reminder dispatcher, and the ops HTTP server.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/jmhodges/clock"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-discord-bot/internal/config"
	"github.com/tbourn/go-discord-bot/internal/discord"
	httpapi "github.com/tbourn/go-discord-bot/internal/http"
	"github.com/tbourn/go-discord-bot/internal/http/handlers"
	"github.com/tbourn/go-discord-bot/internal/observability"
	"github.com/tbourn/go-discord-bot/internal/ratelimit"
	"github.com/tbourn/go-discord-bot/internal/repo"
	"github.com/tbourn/go-discord-bot/internal/scheduler"
	"github.com/tbourn/go-discord-bot/internal/services"
	"github.com/tbourn/go-discord-bot/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// A missing .env is normal in production.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("invalid configuration")
	}
	logger := sysutil.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogPretty)

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("bot stopped")
	}
}

func run(cfg config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version, logger)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			logger.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	loc, err := cfg.Reminder.Location()
	if err != nil {
		return err
	}
	clk := clock.New()

	backend, err := repo.Open(ctx, cfg.Storage, clk, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Warn().Err(err).Msg("close storage")
		}
	}()

	reminders := services.NewReminderService(backend.Reminders, clk, loc, logger)
	reminders.PageSize = cfg.Reminder.PageSize
	reminders.MaxTextRunes = cfg.Reminder.MaxTextRunes
	gifs := services.NewGifService(backend.Gifs, logger)

	router := discord.NewRouter(reminders, gifs,
		ratelimit.New(cfg.Discord.CommandRPS, cfg.Discord.CommandBurst),
		cfg.Reminder.PageSize, logger)
	bot, err := discord.New(cfg.Discord, router, logger)
	if err != nil {
		return err
	}

	dispatcher := scheduler.NewDispatcher(backend.Reminders, discord.NewDMNotifier(bot.Session), clk, loc, logger)
	dispatcher.Interval = cfg.Reminder.TickInterval
	dispatcher.DeliveryTimeout = cfg.Reminder.DeliveryTimeout

	var srv *http.Server
	if cfg.HTTPEnabled {
		srv = newServer(cfg, httpapi.Deps{
			API:   handlers.New(reminders, gifs, cfg.Reminder.PageSize),
			Store: backend.Reminders,
		})
	}

	// A gateway failure stops the dispatcher and the HTTP server too.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	botErr := make(chan error, 1)
	go func() {
		botErr <- bot.Run(ctx)
		cancel()
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = dispatcher.Run(ctx)
	}()

	if srv != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info().Str("addr", srv.Addr).Msg("http server starting")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("http server")
				cancel()
			}
		}()
	}

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	if srv != nil {
		sctx, scancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		if err := srv.Shutdown(sctx); err != nil {
			logger.Error().Err(err).Msg("http shutdown")
		}
		scancel()
	}
	wg.Wait()
	return <-botErr
}

func newServer(cfg config.Config, deps httpapi.Deps) *http.Server {
	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, deps, cfg)

	return &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    1 << 20,
	}
}
