package data

import (
	"context"
	"fmt"

	"github.com/lk2023060901/cloud-drive-backend/internal/conf"
	drivedata "github.com/lk2023060901/cloud-drive-backend/internal/drive/data"
	"github.com/lk2023060901/cloud-drive-backend/internal/pkg/database"
	"github.com/lk2023060901/cloud-drive-backend/internal/pkg/logger"
	"github.com/redis/go-redis/v9"
)

type Data struct {
	DB          *database.DB
	RedisClient *redis.Client
	Logger      *logger.Logger
}

func NewData(config *conf.Config, log *logger.Logger) (*Data, func(), error) {
	// Initialize PostgreSQL
	dbConfig := database.DefaultConfig()
	dbConfig.Host = config.Database.Host
	dbConfig.Port = config.Database.Port
	dbConfig.User = config.Database.User
	dbConfig.Password = config.Database.Password
	dbConfig.DBName = config.Database.DBName
	dbConfig.SSLMode = config.Database.SSLMode
	dbConfig.AutoMigrate = true

	db, err := database.New(dbConfig, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init database: %w", err)
	}

	if err := db.AutoMigrate(&drivedata.FilePO{}); err != nil {
		db.Close()
		return nil, nil, err
	}

	// Initialize Redis
	redisClient := initRedis(config)
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	d := &Data{
		DB:          db,
		RedisClient: redisClient,
		Logger:      log,
	}

	cleanup := func() {
		log.Info("cleaning up data resources")
		db.Close()
		redisClient.Close()
	}

	return d, cleanup, nil
}

func initRedis(config *conf.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Redis.Host, config.Redis.Port),
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
	})
}
