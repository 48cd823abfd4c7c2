package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"agrismart-bot/api/internal/config"
	"agrismart-bot/api/internal/discovery"
	"agrismart-bot/api/internal/events"
	"agrismart-bot/api/internal/httpserver"
	"agrismart-bot/api/internal/logging"
	"agrismart-bot/api/internal/predict"
	"agrismart-bot/api/internal/session"
	"agrismart-bot/api/internal/store"
	"agrismart-bot/api/internal/telegram"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("bot stopped", zap.Error(err))
	}
	logger.Info("bot stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	checks := map[string]httpserver.Check{}

	// --- Postgres (form drafts) ---
	var drafts session.DraftStore
	if dsn := strings.TrimSpace(cfg.Database.URL); dsn != "" {
		db, err := store.Open(ctx, dsn)
		if err != nil {
			return err
		}
		defer db.Close()
		repo := store.NewDraftRepo(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return err
		}
		logger.Info("db connected", zap.String("dsn", store.SafeDSNSummary(dsn)))
		drafts = repo
		checks["db"] = pingDB(db)
	}

	// --- NATS (lifecycle events) ---
	var pub events.Publisher = events.Nop{}
	if url := strings.TrimSpace(cfg.NATS.URL); url != "" {
		np, err := events.Connect(url, cfg.NATS.Subject, logger)
		if err != nil {
			return err
		}
		pub = np
		checks["nats"] = func(context.Context) error {
			if !np.Connected() {
				return errors.New("disconnected")
			}
			return nil
		}
	}
	defer func() { _ = pub.Close() }()

	// --- Prediction service ---
	var resolver predict.Resolver = predict.StaticResolver(cfg.Prediction.BaseURL)
	if svc := strings.TrimSpace(cfg.Prediction.ConsulService); svc != "" {
		client, err := discovery.Connect(cfg.Consul.Address, logger)
		if err != nil {
			logger.Warn("consul unavailable, using static prediction address",
				zap.String("base_url", cfg.Prediction.BaseURL), zap.Error(err))
		} else {
			resolver = discovery.NewConsulResolver(client.Health(), svc, resolver, logger)
		}
	}
	predictor := predict.NewClient(resolver, cfg.Prediction.Timeout, logger)

	sessions := session.NewManager(session.Deps{
		Transport: predictor,
		Events:    pub,
		Drafts:    drafts,
		Logger:    logger,
	})

	// --- Telegram bot ---
	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return err
	}
	logger.Info("authorized on telegram", zap.String("username", bot.Self.UserName))

	router := &telegram.Router{
		Bot:      bot,
		Sessions: sessions,
		Service:  predictor,
		Logger:   logger,
	}
	defer router.Wait()

	addr := "0.0.0.0:" + cfg.HTTP.Port
	opts := httpserver.Options{Logger: logger, Checks: checks}

	if webhookURL := strings.TrimSpace(cfg.Telegram.WebhookURL); webhookURL != "" {
		secret := shortHash(cfg.Telegram.Token)
		public := strings.TrimRight(webhookURL, "/") + "/webhook/" + secret
		wh, err := tgbotapi.NewWebhook(public)
		if err != nil {
			return err
		}
		wh.DropPendingUpdates = true
		if _, err := bot.Request(wh); err != nil {
			return err
		}
		opts.WebhookSecret = secret
		opts.Webhook = router.WebhookHandler()
		logger.Info("webhook mode", zap.String("addr", addr))
		return httpserver.Serve(ctx, addr, httpserver.NewRouter(opts), logger)
	}

	go func() {
		if err := httpserver.Serve(ctx, addr, httpserver.NewRouter(opts), logger); err != nil {
			logger.Error("http server failed", zap.Error(err))
		}
	}()
	logger.Info("polling mode")
	runPolling(ctx, bot, logger, func(upd tgbotapi.Update) {
		router.HandleUpdate(ctx, upd)
	})
	return nil
}

func pingDB(db *sql.DB) httpserver.Check {
	return func(ctx context.Context) error { return db.PingContext(ctx) }
}
