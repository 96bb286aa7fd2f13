package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"founderos-api/internal/ai"
	"founderos-api/internal/app"
	"founderos-api/internal/cache"
	"founderos-api/internal/chunker"
	"founderos-api/internal/config"
	"founderos-api/internal/model"
	postgresClient "founderos-api/internal/platform/postgres"
	rabbitmqClient "founderos-api/internal/platform/rabbitmq"
	redisClient "founderos-api/internal/platform/redis"
	"founderos-api/internal/repository"
	"founderos-api/internal/storage"
	"founderos-api/internal/tokenizer"
	"founderos-api/internal/worker"
)

type App struct {
	Config   *config.Config
	Postgres *gorm.DB
	Redis    *redis.Client
	MQConn   *amqp.Connection

	DocumentService *app.DocumentService
	ChatService     *app.ChatService
	ImportService   *app.ImportService
	DocumentWorker  *worker.DocumentProcessWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	db, err := postgresClient.New(ctx, cfg.PostgresDSN())
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(
		&model.Document{},
		&model.DocumentChunk{},
		&model.Conversation{},
		&model.Message{},
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

	tok, err := tokenizer.New()
	if err != nil {
		return nil, err
	}

	aiClient := ai.NewClient(ai.Config{
		BaseURL:            cfg.OpenAI.BaseURL,
		APIKey:             cfg.OpenAI.APIKey,
		ChatModel:          cfg.OpenAI.ChatModel,
		EmbeddingModel:     cfg.OpenAI.EmbeddingModel,
		EmbeddingDimension: cfg.OpenAI.EmbeddingDimension,
		EmbeddingBatchSize: cfg.OpenAI.EmbeddingBatchSize,
	})

	documentRepo := repository.NewDocumentRepository(db)
	chunkRepo := repository.NewChunkRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	fileStore := storage.NewFileStore(cfg.Uploads.Dir)
	publisher := rabbitmqClient.NewDocumentPublisher(mqConn, cfg.RabbitMQ.DocumentProcessQueue)
	historyCache := cache.NewHistoryCache(
		redisCli,
		time.Duration(cfg.Redis.HistoryTTLSeconds)*time.Second,
		time.Duration(cfg.Redis.HistoryDirtyTTLSeconds)*time.Second,
	)

	documentService := app.NewDocumentService(
		documentRepo,
		chunkRepo,
		fileStore,
		publisher,
		aiClient,
		chunker.New(tok),
		cfg.Uploads.MaxSizeBytes,
		cfg.Chunking.TargetTokens,
		cfg.Chunking.OverlapTokens,
	)
	chatService := app.NewChatService(
		conversationRepo,
		messageRepo,
		chunkRepo,
		aiClient,
		aiClient,
		historyCache,
		cfg.Retrieval.TopK,
	)
	importService := app.NewImportService(aiClient)

	documentWorker := worker.NewDocumentProcessWorker(mqConn, documentService, cfg.RabbitMQ.DocumentProcessQueue)
	if err := documentWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start document worker failed: %w", err)
	}

	return &App{
		Config:          cfg,
		Postgres:        db,
		Redis:           redisCli,
		MQConn:          mqConn,
		DocumentService: documentService,
		ChatService:     chatService,
		ImportService:   importService,
		DocumentWorker:  documentWorker,
		StartedAt:       time.Now(),
	}, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.DocumentWorker != nil {
		a.DocumentWorker.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Postgres != nil {
		sqlDB, err := a.Postgres.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
