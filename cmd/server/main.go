package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lk2023060901/cloud-drive-backend/internal/conf"
	"github.com/lk2023060901/cloud-drive-backend/internal/data"
	"github.com/lk2023060901/cloud-drive-backend/internal/drive/biz"
	drivedata "github.com/lk2023060901/cloud-drive-backend/internal/drive/data"
	"github.com/lk2023060901/cloud-drive-backend/internal/drive/enrich"
	"github.com/lk2023060901/cloud-drive-backend/internal/drive/service"
	"github.com/lk2023060901/cloud-drive-backend/internal/drive/storage"
	"github.com/lk2023060901/cloud-drive-backend/internal/pkg/logger"
	"github.com/lk2023060901/cloud-drive-backend/internal/pkg/workerpool"
	"github.com/lk2023060901/cloud-drive-backend/internal/server"
	"go.uber.org/zap"
)

var (
	configFile = flag.String("config", "config.yaml", "config file path")
)

// statsCacheTTL 存储总览缓存有效期
const statsCacheTTL = 30 * time.Second

func main() {
	flag.Parse()

	// Load configuration
	config, err := conf.LoadConfig(*configFile)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger with config
	logConfig := &logger.Config{
		Level:            config.Log.Level,
		Format:           config.Log.Format,
		Output:           config.Log.Output,
		EnableCaller:     config.Log.EnableCaller,
		EnableStacktrace: config.Log.EnableStacktrace,
		File: logger.FileConfig{
			Filename:   config.Log.File.Filename,
			MaxSize:    config.Log.File.MaxSize,
			MaxAge:     config.Log.File.MaxAge,
			MaxBackups: config.Log.File.MaxBackups,
			Compress:   config.Log.File.Compress,
		},
	}

	log, err := logger.New(logConfig)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	// Initialize global logger
	if err := logger.InitGlobal(logConfig); err != nil {
		log.Fatal("failed to initialize global logger", zap.Error(err))
	}

	log.Info("config loaded successfully")

	// Initialize data layer
	d, cleanup, err := data.NewData(config, log)
	if err != nil {
		log.Fatal("failed to initialize data layer", zap.Error(err))
	}
	defer cleanup()

	// Initialize storage
	blobStore, err := storage.NewLocalStore(config.Storage.Root, log)
	if err != nil {
		log.Fatal("failed to initialize blob store", zap.Error(err))
	}

	// Initialize repositories
	fileRepo := drivedata.NewFileRepo(d.DB, log)
	statsCache := drivedata.NewStatsCache(d.RedisClient, statsCacheTTL)

	// Initialize enricher
	var geocoder enrich.ReverseGeocoder
	if config.Geocode.APIKey != "" {
		geocoder = enrich.NewGeocoder(config.Geocode.BaseURL, config.Geocode.APIKey, config.Geocode.Timeout)
	} else {
		log.Warn("geocode api key not configured, photo locations will be Unknown")
	}
	enricher := enrich.NewEnricher(geocoder, config.Upload.ExifTimeout, config.Geocode.Timeout, log)

	// Initialize use cases
	locks := biz.NewPathLocker()
	fileUseCase := biz.NewFileUseCase(fileRepo, blobStore, enricher, statsCache, locks, config.Storage.QuotaKB, log)
	folderUseCase := biz.NewFolderUseCase(fileRepo, blobStore, statsCache, locks, log)

	// Initialize upload worker pool
	uploadPool, err := workerpool.New(&workerpool.Config{Workers: config.Upload.PoolSize}, log.Logger)
	if err != nil {
		log.Fatal("failed to initialize upload pool", zap.Error(err))
	}
	defer uploadPool.Shutdown()

	// Initialize services
	fileService := service.NewFileService(fileUseCase, uploadPool, log.Logger)
	folderService := service.NewFolderService(folderUseCase, log.Logger)

	// Initialize HTTP server
	httpServer := server.NewHTTPServer(config, log, d.DB, fileService, folderService)

	// Start server
	go func() {
		if err := httpServer.Start(); err != nil {
			log.Fatal("failed to start HTTP server", zap.Error(err))
		}
	}()

	log.Info("server started",
		zap.String("host", config.Server.Host),
		zap.Int("port", config.Server.Port),
		zap.String("storage_root", config.Storage.Root))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Stop(ctx); err != nil {
		log.Error("failed to stop HTTP server gracefully", zap.Error(err))
	}

	log.Info("server exited")
}
