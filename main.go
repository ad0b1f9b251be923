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

	"github.com/Jwl06/civicledger360/analysis"
	"github.com/Jwl06/civicledger360/chain"
	"github.com/Jwl06/civicledger360/config"
	"github.com/Jwl06/civicledger360/evidence"
	"github.com/Jwl06/civicledger360/handlers"
	"github.com/Jwl06/civicledger360/logging"
	"github.com/Jwl06/civicledger360/natsserver"
	"github.com/Jwl06/civicledger360/reconcile"
	"github.com/Jwl06/civicledger360/services"
	"github.com/Jwl06/civicledger360/store"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, dotenv, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Options{
		Level:      cfg.LogLevel,
		Production: cfg.Production(),
		File:       cfg.LogFile,
	})
	defer logger.Sync()

	if !dotenv {
		logger.Info("No .env file found, using environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	st, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// Embedded NATS carries violation events to the websocket feed
	natsCfg := natsserver.DefaultConfig()
	natsCfg.Port = cfg.NATSPort
	natsServer, err := natsserver.New(natsCfg, logger)
	if err != nil {
		return fmt.Errorf("failed to start NATS server: %w", err)
	}
	defer natsServer.Shutdown()
	logger.Info("NATS server started", zap.String("url", natsServer.Address()))

	feedHub := services.NewFeedHub(natsServer.Conn(), logger)
	if err := feedHub.Start(); err != nil {
		return fmt.Errorf("failed to start feed hub: %w", err)
	}
	defer feedHub.Stop()

	storage, uploadsDir, err := openEvidenceStorage(ctx, cfg)
	if err != nil {
		return err
	}
	evidenceService := evidence.NewService(storage, cfg.MaxUploadBytes, logger)

	opts := []services.Option{
		services.WithEvidence(evidenceService),
		services.WithPublisher(natsServer),
	}

	var chainSource reconcile.PendingSource
	if cfg.ChainEnabled() {
		chainClient, err := chain.Dial(ctx, chain.Config{
			RPCURL:          cfg.ChainRPCURL,
			ContractAddress: cfg.ContractAddress,
			PrivateKey:      cfg.ChainPrivateKey,
			ChainID:         cfg.ChainID,
			CacheTTL:        cfg.ChainCacheTTL,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to chain: %w", err)
		}
		defer chainClient.Close()
		opts = append(opts, services.WithChain(chainClient))
		chainSource = chainClient
		logger.Info("Chain client ready", zap.String("contract", cfg.ContractAddress))
	}

	violationService := services.NewViolationService(st, analysis.NewRandomClassifier(), logger, opts...)
	vehicleService := services.NewVehicleService(st, logger)

	poller := reconcile.NewPoller(reconcile.StoreSource{Store: st}, chainSource, cfg.PollInterval, cfg.PollTimeout, logger)
	poller.Start()
	defer poller.Stop()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), logging.GinLogger(logger))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", logging.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{logging.RequestIDHeader}
	router.Use(cors.New(corsConfig))

	if uploadsDir != "" {
		logger.Info("Serving uploads", zap.String("dir", uploadsDir))
		router.Static("/uploads", uploadsDir)
	}

	handlers.New(handlers.Deps{
		Violations: violationService,
		Vehicles:   vehicleService,
		Evidence:   evidenceService,
		Poller:     poller,
		Feed:       feedHub,
		Logger:     logger,
	}).RegisterRoutes(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server running", zap.String("url", cfg.PublicBaseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(cfg config.Config, logger *zap.Logger) (store.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, records are kept in memory only")
		return store.NewMemoryStore(), func() {}, nil
	}
	gs, err := store.OpenPostgres(cfg.DatabaseURL, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return gs, func() {
		if err := gs.Close(); err != nil {
			logger.Warn("failed to close database", zap.Error(err))
		}
	}, nil
}

// openEvidenceStorage returns the local directory to serve when evidence is kept on disk.
func openEvidenceStorage(ctx context.Context, cfg config.Config) (evidence.Storage, string, error) {
	if cfg.S3Bucket != "" {
		s3Storage, err := evidence.NewS3Storage(ctx, evidence.S3Config{
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Region:          cfg.AWSRegion,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKey,
			SecretAccessKey: cfg.AWSSecretKey,
		})
		if err != nil {
			return nil, "", fmt.Errorf("failed to configure S3 storage: %w", err)
		}
		return s3Storage, "", nil
	}

	local, err := evidence.NewLocalStorage(cfg.UploadDir, cfg.PublicBaseURL+"/uploads")
	if err != nil {
		return nil, "", err
	}
	return local, local.Dir(), nil
}
