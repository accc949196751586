package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/bytevault/bytevault/internal/auth"
	"github.com/bytevault/bytevault/internal/conf"
	"github.com/bytevault/bytevault/internal/pkg/database"
	"github.com/bytevault/bytevault/internal/pkg/logger"
	pkgredis "github.com/bytevault/bytevault/internal/pkg/redis"
	"github.com/bytevault/bytevault/internal/pkg/workerpool"
	"github.com/bytevault/bytevault/internal/server"
	"github.com/bytevault/bytevault/internal/storage/biz"
	"github.com/bytevault/bytevault/internal/storage/data"
	"github.com/bytevault/bytevault/internal/storage/driver"
	"github.com/bytevault/bytevault/internal/storage/probe"
	"github.com/bytevault/bytevault/internal/storage/queue"
	"github.com/bytevault/bytevault/internal/storage/service"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "server exited with error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	config, err := conf.LoadConfig(configPath)
	if err != nil {
		return err
	}

	if err := logger.InitGlobal(&config.Log); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.L()
	defer log.Sync()

	db, err := database.New(&config.Database, log)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.AutoMigrate(data.Models()...); err != nil {
		return err
	}

	redisClient, err := pkgredis.New(&config.Redis, log)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	pool, err := workerpool.New(&config.Pool, log.Logger)
	if err != nil {
		return err
	}
	defer pool.Shutdown()

	// Repositories
	fileRepo := data.NewFileRepo(db)
	instanceRepo := data.NewFileInstanceRepo(db)
	locationRepo := data.NewFileLocationRepo(db)
	bucketRepo := data.NewBucketRepo(db)
	dimensionRepo := data.NewDimensionRepo(db)
	transactor := data.NewTransactor(db)

	references := make([]data.ReferenceTable, len(config.Storage.References))
	for i, ref := range config.Storage.References {
		references[i] = data.ReferenceTable{Table: ref.Table, Column: ref.Column}
	}
	referenceProbe := data.NewTableProbe(db, references, log)

	// Storage plumbing
	drivers := driver.NewFactory(log.Logger)
	redundancy := biz.NewRedundancy(bucketRepo, drivers, log.Logger)
	taskQueue := queue.NewRedisQueue(redisClient, log.Logger)

	// Use cases
	fileUC := biz.NewFileUseCase(fileRepo, instanceRepo, locationRepo, bucketRepo, redundancy, transactor, log.Logger)
	ingestUC := biz.NewIngestUseCase(fileRepo, instanceRepo, locationRepo, redundancy, transactor, taskQueue, database.IsDuplicateKeyError, log.Logger)
	bucketUC := biz.NewBucketUseCase(bucketRepo, locationRepo, log.Logger)
	dimensionUC := biz.NewDimensionUseCase(dimensionRepo, log.Logger)
	orphanUC := biz.NewOrphanUseCase(fileRepo, referenceProbe, taskQueue, fileUC, log.Logger)
	variantUC := biz.NewVariantUseCase(
		fileRepo, instanceRepo, locationRepo, dimensionRepo,
		redundancy, transactor,
		probe.NewProber(log.Logger), probe.NewRenderer(log.Logger),
		pool, config.Storage.DefaultRedundancy, log.Logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if config.Storage.SeedDimensions {
		if err := dimensionUC.SeedDefaults(ctx); err != nil {
			return fmt.Errorf("failed to seed dimensions: %w", err)
		}
	}

	// Background workers
	worker := queue.NewWorker(redisClient, log.Logger, config.Worker.Count)
	worker.Register(biz.TaskTypeVariants, func(ctx context.Context, task *biz.Task) error {
		return variantUC.Process(ctx, task.Payload["file_id"])
	})
	worker.Register(biz.TaskTypeReclaim, func(ctx context.Context, task *biz.Task) error {
		return orphanUC.Reclaim(ctx, task.Payload["file_id"])
	})
	if err := worker.Start(ctx); err != nil {
		return err
	}
	defer worker.Stop()

	// HTTP surface
	jwtManager := auth.NewJWTManager(config.Auth.JWTSecret, config.Auth.JWTIssuer)
	fileService := service.NewFileService(ingestUC, fileUC, log)
	adminService := service.NewAdminService(bucketUC, dimensionUC, orphanUC, taskQueue, log)
	httpServer := server.NewHTTPServer(config, log, jwtManager, fileService, adminService)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", zap.Error(err))
	}
	cancel()

	log.Info("server stopped")
	return nil
}
