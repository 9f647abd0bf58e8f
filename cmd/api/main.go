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

	"golang.org/x/sync/errgroup"

	"pocketledger/internal/amqp"
	"pocketledger/internal/blob"
	"pocketledger/internal/clock"
	"pocketledger/internal/config"
	"pocketledger/internal/database"
	"pocketledger/internal/logger"
	"pocketledger/internal/middleware"
	"pocketledger/internal/realtime"
	"pocketledger/internal/server"
	"pocketledger/internal/services"
	"pocketledger/internal/session"
	"pocketledger/internal/validator"
)

// @title           PocketLedger API
// @version         1.0
// @description     Monthly budget books with running totals and live updates.
// @termsOfService  http://swagger.io/terms/

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

const shutdownTimeout = 30 * time.Second

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Create database manager
	dbManager, err := database.NewManager(database.NewConfig(appConfig))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer dbManager.Close()

	// Run migrations
	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	validator.Register()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := clock.SystemClock{}
	hub := realtime.NewHub()

	// Avatar storage
	var (
		blobs   blob.Store
		blobDir string
	)
	if appConfig.GCSBucket != "" {
		gcs, err := blob.NewGCSStore(ctx, appConfig.GCSBucket, appConfig.GCSCredentialsFile)
		if err != nil {
			return fmt.Errorf("failed to create GCS blob store: %w", err)
		}
		blobs = gcs
		log.Infof("Storing avatars in gs://%s", appConfig.GCSBucket)
	} else {
		fs, err := blob.NewFSStore(appConfig.BlobDir, appConfig.BlobBaseURL)
		if err != nil {
			return fmt.Errorf("failed to create blob store: %w", err)
		}
		blobs = fs
		blobDir = fs.Dir()
		log.Infof("Storing avatars in %s", blobDir)
	}

	// Initialize services
	db := dbManager.DB()
	userService := services.NewUserService(db, blobs, clk, appConfig.MaxAvatarBytes)
	bookService := services.NewBookService(db, hub, clk)
	ledgerService := services.NewLedgerService(db, hub, clk)
	auditService := services.NewAuditService(db)
	sessions := session.NewRegistry(bookService, ledgerService)
	defer sessions.CloseAll()

	router := server.NewRouter(server.Deps{
		Users:          userService,
		Books:          bookService,
		Ledger:         ledgerService,
		Audit:          auditService,
		Sessions:       sessions,
		Tokens:         middleware.NewTokens(appConfig.JWTSecret, appConfig.JWTExpirationDur, clk),
		Clock:          clk,
		MaxAvatarBytes: appConfig.MaxAvatarBytes,
		BlobDir:        blobDir,
	})

	srv := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}

	g, gctx := errgroup.WithContext(ctx)

	if appConfig.AMQPURL != "" {
		dial := func() (*amqp.Client, error) {
			client, err := amqp.NewClient(appConfig.AMQPURL, appConfig.AMQPExchange, appConfig.InstanceID)
			if err != nil {
				return nil, err
			}
			hub.SetRelay(client)
			return client, nil
		}
		client, err := dial()
		if err != nil {
			return fmt.Errorf("failed to connect to AMQP: %w", err)
		}
		log.Infof("Relaying changes through exchange %s as %s", appConfig.AMQPExchange, appConfig.InstanceID)

		g.Go(func() error {
			defer hub.SetRelay(nil)
			err := amqp.ConsumeWithRetry(gctx, client, amqp.ResyncOnDial(hub, dial), amqp.PeerHandler(hub, appConfig.InstanceID))
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		log.Infof("Starting PocketLedger server on port %s", appConfig.Port)
		log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server")

		// Ending sessions closes open streams so Shutdown does not wait on them.
		sessions.CloseAll()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("Server stopped gracefully")
	return nil
}
