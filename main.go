package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"license-watch-go/api"
	"license-watch-go/api/websocket"
	"license-watch-go/batch"
	"license-watch-go/browser"
	"license-watch-go/config"
	"license-watch-go/db"
	"license-watch-go/notify"
	"license-watch-go/scrapers"
	"license-watch-go/scrapers/captcha"
	"license-watch-go/tlsclient"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg := config.MustLoad()

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	} else {
		log.Warn().Str("level", cfg.LogLevel).Msg("unknown log level, using info")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer database.Close()

	if err := database.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("schema setup failed")
	}

	sessions := browser.NewManager(cfg.Headless)
	tlsSessions := tlsclient.New(30).NewSession
	solver := captcha.New(cfg.CapSolverAPIKey, tlsSessions)

	registry := scrapers.NewRegistry(sessions, tlsSessions, solver, cfg.ScrapeRatePerMinute)
	log.Info().Strs("jurisdictions", registry.Supported()).Msg("verification registry ready")

	hub := websocket.NewHub()
	go hub.Run(ctx)

	runner := batch.NewRunner(batch.Deps{
		Roster:        database,
		Tasks:         database,
		Verifications: database,
		Jobs:          database,
		Enrollments:   database,
		Catalog:       database,
		Verifier:      registry,
		Events:        hub,
	}, batch.Config{
		PageSize:      cfg.SweepPageSize,
		Workers:       cfg.SweepWorkers,
		LookupTimeout: time.Duration(cfg.LookupTimeoutSeconds) * time.Second,
	})

	server := api.NewServer(cfg, database, registry, runner, hub)
	go server.Start(ctx)

	discord := notify.NewDiscordNotifier(cfg.DiscordWebhookURL)
	email := notify.NewEmailNotifier(cfg.ResendAPIKey, cfg.EmailFrom, cfg.EmailFromName, cfg.AlertEmail)

	go runSweeps(ctx, cfg, runner, discord, email)

	<-ctx.Done()
	log.Info().Msg("shutting down")
}

// runSweeps runs the periodic verification sweep. A panic in one cycle
// is logged and the schedule continues.
func runSweeps(ctx context.Context, cfg *config.Config, runner *batch.Runner, discord *notify.DiscordNotifier, email *notify.EmailNotifier) {
	interval := time.Duration(cfg.SweepIntervalHours) * time.Hour
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Msg("sweep scheduler started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runSweep(ctx, runner, discord, email)
		}
	}
}

func runSweep(ctx context.Context, runner *batch.Runner, discord *notify.DiscordNotifier, email *notify.EmailNotifier) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("sweep cycle panicked")
		}
	}()

	job, err := runner.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msg("scheduled sweep failed")
	}
	if job == nil {
		return
	}

	if err := discord.JobSummary(job); err != nil {
		log.Warn().Err(err).Msg("discord summary failed")
	}
	if err := email.FailureDigest(job); err != nil {
		log.Warn().Err(err).Msg("failure digest failed")
	}
}
