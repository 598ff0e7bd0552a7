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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"threadbot/config"
	"threadbot/discord"
	"threadbot/logger"
	"threadbot/metrics"
	"threadbot/scheduler"
	"threadbot/settings"
	"threadbot/terminal"
	"threadbot/thread"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}

	// the terminal owns stdout, so logs go to stderr
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return err
	}
	log.Info().Msg("Initializing...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := settings.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("unable to get database connection: %w", err)
	}
	defer db.Close()

	store, err := settings.NewStore(db, logger.Component(log, "settings"))
	if err != nil {
		return err
	}
	err = store.ApplyDefaults(settings.Values{
		Credential:  cfg.OpenAIKey,
		AssistantID: cfg.AssistantID,
		ThreadID:    cfg.ThreadID,
	})
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m := metrics.New(reg)
	if cfg.MetricsAddr != "" {
		server := serveMetrics(cfg.MetricsAddr, reg, log)
		defer server.Close()
	}

	orchestrator := thread.New(
		store,
		thread.NewOpenAIFactory(cfg.BaseURL, cfg.AssistantVersion, nil),
		thread.WithLogger(logger.Component(log, "thread")),
		thread.WithMetrics(m),
		thread.WithPollInterval(cfg.PollInterval),
	)

	if cfg.RefreshInterval > 0 {
		s, err := scheduler.New(logger.Component(log, "scheduler"))
		if err != nil {
			return fmt.Errorf("could not create scheduler: %w", err)
		}
		defer s.Shutdown()

		err = s.AddRefreshJob(cfg.RefreshInterval, func() {
			refresh(ctx, orchestrator, log)
		})
		if err != nil {
			return err
		}
		s.Start()
	}

	if cfg.DiscordEnabled() {
		session, err := discord.NewDiscordBot(cfg.DiscordToken)
		if err != nil {
			return err
		}
		bot := discord.NewBot(
			session,
			orchestrator,
			store,
			cfg.DiscordChannelID,
			logger.Component(log, "discord"),
		)
		return bot.Run(ctx)
	}

	term := terminal.New(os.Stdin, os.Stdout, orchestrator, store, logger.Component(log, "terminal"))
	if err := term.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// refresh reloads the thread in the background. Incomplete settings are not
// an error here, the user simply has not configured anything yet.
func refresh(ctx context.Context, orchestrator *thread.Orchestrator, log zerolog.Logger) {
	err := orchestrator.LoadMessages(ctx)
	if err != nil && !errors.Is(err, thread.ErrNotInitialized) {
		log.Warn().Err(err).Msg("background refresh failed")
	}
}

func serveMetrics(addr string, reg *prometheus.Registry, log zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", addr).Msg("serving metrics")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()
	return server
}
