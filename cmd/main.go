package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mandate-reconciler/internal/clients"
	"mandate-reconciler/internal/config"
	"mandate-reconciler/internal/repository"
	"mandate-reconciler/internal/service"
	"mandate-reconciler/internal/transport/queue"
	"mandate-reconciler/internal/transport/rest"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using system env or defaults")
	}

	// top-level context which we can cancel on shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := config.Load()

	db := mustInitPostgres(ctx, cfg.Postgres)
	defer db.Close()

	queueClient := mustInitQueue(cfg)
	defer queueClient.Close()

	var archiver queue.Archiver
	if cfg.Archive.Enabled {
		archiveClient, err := clients.NewArchiveClient(clients.ArchiveConfig{
			Endpoint:        cfg.Archive.Endpoint,
			AccessKeyID:     cfg.Archive.AccessKeyID,
			SecretAccessKey: cfg.Archive.SecretAccessKey,
			Bucket:          cfg.Archive.Bucket,
			UseSSL:          cfg.Archive.UseSSL,
			Region:          cfg.Archive.Region,
			Prefix:          cfg.Archive.Prefix,
		})
		if err != nil {
			log.Fatalf("archive init error: %v", err)
		}
		archiver = archiveClient
	}

	svc := cfg.Services
	identityClient := clients.NewIdentityClient(svc.IdentityURL, svc.HTTPTimeout)
	pricingClient := clients.NewPricingClient(svc.OrchestratorURL, svc.AppName, svc.HTTPTimeout)
	mandateClient := clients.NewMandateClient(svc.OrchestratorURL, svc.HTTPTimeout)
	planClient := clients.NewPaymentPlanClient(svc.PaymentURL, svc.HTTPTimeout)
	eventBus := clients.NewEventBusClient(svc.EventBusURL, svc.AppName, svc.HTTPTimeout)

	auditRepo := repository.NewAuditRepository(db)

	reconciler := service.NewReconciler(planClient, identityClient, pricingClient, mandateClient, eventBus, auditRepo)
	dispatcher := queue.NewDispatcher(reconciler)
	consumer := queue.NewConsumer(queueClient, dispatcher, archiver, queue.ConsumerConfig{
		BatchSize:    cfg.Queue.BatchSize,
		PollInterval: cfg.Queue.PollInterval,
		RequeueDelay: cfg.Queue.RequeueDelay,
	})

	go consumer.Run(ctx)
	log.Printf("consumer polling %q every %s (batch %d)", cfg.Queue.Key, cfg.Queue.PollInterval, cfg.Queue.BatchSize)

	handler := rest.NewHandler(queueClient, auditRepo)
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.InitRouter(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Printf("HTTP server listening on :%s\n", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			srvErr <- err
			return
		}
		srvErr <- nil
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-srvErr:
		if err != nil {
			log.Fatalf("HTTP server error: %v", err)
		}
	case sig := <-stop:
		log.Printf("Shutdown signal received: %v", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server Shutdown error: %v", err)
		}

		// stop the consumer; an in-flight batch finishes or re-queues
		cancel()

		queueClient.Close()
		_ = db.Close()

		log.Println("Shutdown complete")
	}
}

func mustInitPostgres(ctx context.Context, cfg config.PostgresConfig) *sql.DB {
	db, err := repository.NewPostgresConnection(repository.ConnectionInfo{
		Host:     cfg.Host,
		Port:     cfg.Port,
		User:     cfg.User,
		Password: cfg.Password,
		DBName:   cfg.DBName,
		SSLMode:  cfg.SSLMode,
	})
	if err != nil {
		log.Fatalf("postgres init error: %v", err)
	}
	if err := repository.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("postgres schema error: %v", err)
	}
	return db
}

func mustInitQueue(cfg config.AppConfig) *clients.QueueClient {
	client, err := clients.NewQueueClient(clients.QueueConfig{
		Addr:          cfg.Redis.Addr,
		Password:      cfg.Redis.Password,
		DB:            cfg.Redis.DB,
		MaxRetries:    cfg.Redis.MaxRetries,
		DialTimeout:   time.Duration(cfg.Redis.DialTimeout) * time.Second,
		Timeout:       time.Duration(cfg.Redis.Timeout) * time.Second,
		Key:           cfg.Queue.Key,
		DeadLetterKey: cfg.Queue.DeadLetterKey,
	})
	if err != nil {
		log.Fatalf("queue init error: %v", err)
	}
	return client
}
