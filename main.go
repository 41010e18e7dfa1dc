package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"sendloop/config"
	"sendloop/mailer"
	"sendloop/middleware"
	"sendloop/queue"
	"sendloop/routes"
	"sendloop/worker"
)

// Queue names. Payloads are versioned by shape, not by name, so these
// must stay stable across deploys.
const (
	campaignQueueName = "campaign-send"
	sequenceQueueName = "sequence-step"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	if config.AppConfig.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.AppConfig.SentryDSN,
			Environment: config.AppConfig.Environment,
		}); err != nil {
			logger.Fatalf("Failed to initialize Sentry: %v", err)
		}
	}

	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := config.ConnectRedis(); err != nil {
		logger.Fatalf("Failed to connect to Redis: %v", err)
	}

	// Provider registry, seeded with the default account from config
	providers := mailer.NewProviderStore(mailer.VerifyProvider, logger)
	if err := providers.Seed(defaultProvider()); err != nil {
		logger.Fatalf("Failed to seed default provider: %v", err)
	}
	smtpMailer := mailer.NewSMTPMailer(providers, logger)

	// Durable queues and their consumers
	campaignQueue := queue.New(config.Redis, campaignQueueName, logger, queue.DefaultConfig())
	sequenceQueue := queue.New(config.Redis, sequenceQueueName, logger, queue.DefaultConfig())

	campaignWorker := worker.NewCampaignWorker(config.DB, smtpMailer, logger)
	sequenceWorker := worker.NewSequenceWorker(config.DB, smtpMailer, sequenceQueue, logger)

	campaignConsumer := queue.NewConsumer(campaignQueue, campaignWorker.Handle)
	sequenceConsumer := queue.NewConsumer(sequenceQueue, sequenceWorker.Handle)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go campaignConsumer.Start(ctx)
	go sequenceConsumer.Start(ctx)

	replyWorker := worker.NewReplyWorker(config.DB, providers, logger)
	go replyWorker.Start(ctx)

	// HTTP surface
	app := fiber.New()
	app.Use(middleware.CORS())

	routes.SetupRoutes(app, routes.Deps{
		DB:            config.DB,
		Logger:        logger,
		Providers:     providers,
		CampaignQueue: campaignQueue,
		SequenceQueue: sequenceQueue,
	})

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Info("Shutting down")
		cancel()
		campaignConsumer.Stop()
		sequenceConsumer.Stop()
		_ = app.Shutdown()
	}()

	logger.Infof("Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}

// defaultProvider maps the config-sourced SMTP credentials into the
// registry's fallback account.
func defaultProvider() mailer.Provider {
	smtp := config.AppConfig.DefaultSMTP
	return mailer.Provider{
		Name:         mailer.DefaultProviderName,
		Type:         mailer.ProviderTypeSMTP,
		FromEmail:    smtp.FromEmail,
		FromName:     smtp.FromName,
		SMTPHost:     smtp.Host,
		SMTPPort:     smtp.Port,
		Secure:       smtp.Secure,
		Username:     smtp.Username,
		Password:     smtp.Password,
		IMAPHost:     smtp.IMAPHost,
		IMAPPort:     smtp.IMAPPort,
		IMAPUsername: smtp.Username,
		IMAPPassword: smtp.Password,
	}
}
