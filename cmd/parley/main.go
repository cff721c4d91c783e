package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nidhogg/parley/internal/api"
	"github.com/nidhogg/parley/internal/calendar"
	"github.com/nidhogg/parley/internal/config"
	"github.com/nidhogg/parley/internal/negotiation"
	"github.com/nidhogg/parley/internal/notify"
	"github.com/nidhogg/parley/internal/scheduling"
	pgstore "github.com/nidhogg/parley/internal/store"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	logger.Info("Starting Parley...")

	// Load configuration
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/parley.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}
	logger.Info("Config loaded", zap.String("path", cfgPath))

	// Initialize PostgreSQL store
	var store *pgstore.Store
	if cfg.Database.Postgres.DSN != "" {
		ps, pgErr := pgstore.New(cfg.Database.Postgres.DSN, logger)
		if pgErr != nil {
			logger.Warn("PostgreSQL unavailable, running without persistence", zap.Error(pgErr))
		} else {
			if mErr := ps.Migrate(context.Background(), "migrations"); mErr != nil {
				logger.Fatal("migration failed", zap.Error(mErr))
			}
			store = ps
		}
	}

	// Initialize event stream
	var events *notify.EventStream
	if cfg.Database.Redis.URL != "" {
		es, esErr := notify.NewEventStream(cfg.Database.Redis.URL, logger)
		if esErr != nil {
			logger.Warn("Redis unavailable, running without event stream", zap.Error(esErr))
		} else {
			events = es
		}
	}

	// Initialize announcement fanout
	fanout := notify.NewFanout(logger)
	if cfg.Notify.Slack.Enabled && cfg.Notify.Slack.BotToken != "" {
		fanout.Register(notify.NewSlackAnnouncer(cfg.Notify.Slack.BotToken, cfg.Notify.Slack.Channel, logger))
	}
	if cfg.Notify.Discord.Enabled && cfg.Notify.Discord.BotToken != "" {
		da, daErr := notify.NewDiscordAnnouncer(cfg.Notify.Discord.BotToken, cfg.Notify.Discord.ChannelID, logger)
		if daErr != nil {
			logger.Warn("Discord unavailable", zap.Error(daErr))
		} else {
			fanout.Register(da)
		}
	}

	// Build the party roster from config
	parties := make([]scheduling.Party, 0, len(cfg.Parties))
	for _, pc := range cfg.Parties {
		prof, lookErr := cfg.Party(pc)
		if lookErr != nil {
			logger.Fatal("unknown profile", zap.String("party", pc.ID), zap.Error(lookErr))
		}
		parties = append(parties, scheduling.Party{
			ID:       pc.ID,
			Name:     pc.Name,
			AgentRef: pc.AgentRef,
			Profile:  prof,
		})
	}
	logger.Info("Party roster loaded", zap.Int("parties", len(parties)))

	// Wire the scheduling core. Without Postgres the calendar is empty but
	// the search and negotiation endpoints still answer.
	schedCfg := scheduling.Config{
		BusinessOpen:     cfg.Scheduling.BusinessOpen,
		BusinessClose:    cfg.Scheduling.BusinessClose,
		GranularityMin:   cfg.Scheduling.GranularityMin,
		TopN:             cfg.Scheduling.TopN,
		SoftPenalty:      cfg.Scheduling.SoftPenalty,
		AllowedDurations: cfg.Scheduling.AllowedDurations,
	}
	schedCfg.ValidFrom, _ = cfg.ValidFrom()
	schedCfg.ValidUntil, _ = cfg.ValidUntil()

	var query scheduling.CalendarQuery = emptyCalendar{}
	if store != nil {
		query = store
	}
	searcher := scheduling.NewSearcher(query, schedCfg, logger)
	engine := negotiation.NewEngine(searcher, query,
		cfg.Scheduling.MaxRounds, cfg.Scheduling.CounterLookaheadDays, logger)

	var persistence api.Persistence
	if store != nil {
		persistence = store
	}
	handler := api.NewHandler(searcher, engine, persistence, parties,
		cfg.Scheduling.SearchHorizonDays, events, fanout, logger)

	// Start server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("Parley listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down Parley...")
	srv.Shutdown(context.Background())
	if events != nil {
		events.Close()
	}
	if store != nil {
		store.Close()
	}
}

// emptyCalendar answers conflict queries when no store is configured.
type emptyCalendar struct{}

func (emptyCalendar) CheckConflicts(context.Context, string, time.Time, time.Time) ([]calendar.Block, error) {
	return nil, nil
}
