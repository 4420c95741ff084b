// Package bootstrap wires configuration, infrastructure connections and
// the vector store into one App handed to the HTTP layer.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"lexrag/internal/ai"
	"lexrag/internal/config"
	"lexrag/internal/model"
	"lexrag/internal/pkg/logger"
	mysqlClient "lexrag/internal/platform/mysql"
	rabbitmqClient "lexrag/internal/platform/rabbitmq"
	redisClient "lexrag/internal/platform/redis"
	"lexrag/internal/repository"
	"lexrag/internal/vectorstore"
	"lexrag/internal/worker"
)

type App struct {
	Config        *config.Config
	Logger        *zap.Logger
	MySQL         *gorm.DB
	Redis         *redis.Client
	MQConn        *amqp.Connection
	MessageWorker *worker.MessagePersistWorker
	LLMClient     *ai.OpenAICompatibleClient
	Store         vectorstore.Store

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, err
	}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(
		&model.User{},
		&model.Conversation{},
		&model.Message{},
		&model.Document{},
		&model.Chunk{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	messageRepo := repository.NewMessageRepository(mysqlDB)
	messageWorker := worker.NewMessagePersistWorker(mqConn, messageRepo, cfg.RabbitMQ.MessagePersistQueue, log)
	if err := messageWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start message worker failed: %w", err)
	}

	if err := os.MkdirAll(cfg.Upload.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir failed: %w", err)
	}

	llmClient := ai.NewOpenAICompatibleClient()
	embedder := ai.NewEmbeddingService(llmClient, ai.EmbeddingConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.EmbeddingModel,
	})
	store, err := vectorstore.New(cfg.VectorStore.Backend, embedder, repository.NewChunkRepository(mysqlDB))
	if err != nil {
		return nil, err
	}

	log.Info("application bootstrapped",
		zap.String("env", cfg.App.Env),
		zap.String("vector_store", store.Backend()),
		zap.String("embedding_model", cfg.LLM.EmbeddingModel))

	return &App{
		Config:        cfg,
		Logger:        log,
		MySQL:         mysqlDB,
		Redis:         redisCli,
		MQConn:        mqConn,
		MessageWorker: messageWorker,
		LLMClient:     llmClient,
		Store:         store,
		StartedAt:     time.Now(),
	}, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MessageWorker != nil {
		a.MessageWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	return closeErr
}
