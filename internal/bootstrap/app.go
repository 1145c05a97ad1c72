package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	milvusclient "github.com/milvus-io/milvus-sdk-go/v2/client"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"studybot/internal/ai"
	"studybot/internal/app"
	"studybot/internal/cache"
	"studybot/internal/config"
	"studybot/internal/flashcard"
	"studybot/internal/ingestion"
	"studybot/internal/metrics"
	"studybot/internal/model"
	"studybot/internal/pkg/logger"
	"studybot/internal/pkg/pdfextract"
	"studybot/internal/pkg/retry"
	milvusClient "studybot/internal/platform/milvus"
	mysqlClient "studybot/internal/platform/mysql"
	rabbitmqClient "studybot/internal/platform/rabbitmq"
	redisClient "studybot/internal/platform/redis"
	sqliteClient "studybot/internal/platform/sqlite"
	"studybot/internal/query"
	"studybot/internal/repository"
	"studybot/internal/splitter"
	"studybot/internal/vectorstore"
	"studybot/internal/worker"
)

type Services struct {
	Auth         *app.AuthService
	Document     *app.DocumentService
	Query        *app.QueryService
	Chat         *app.ChatService
	FlashCard    *app.FlashCardService
	FlashCardSet *app.FlashCardSetService
}

type App struct {
	Config      *config.Config
	Logger      *zap.Logger
	DB          *gorm.DB
	Redis       *redis.Client
	MQConn      *amqp.Connection
	Milvus      milvusclient.Client
	VectorStore vectorstore.Store
	Services    Services

	publishers []*rabbitmqClient.Publisher
	consumers  []*worker.Consumer

	StartedAt time.Time
}

// New connects every backing service, wires the engines and services, and
// starts the queue consumers. A failure part way closes what was opened.
func New(ctx context.Context) (_ *App, err error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output); err != nil {
		return nil, fmt.Errorf("init logger failed: %w", err)
	}
	metrics.Init()

	a := &App{Config: cfg, Logger: logger.L(), StartedAt: time.Now()}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if a.DB, err = openDatabase(ctx, cfg); err != nil {
		return nil, err
	}
	if err = model.Migrate(a.DB); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	if a.Redis, err = redisClient.New(ctx, redisClient.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, a.Logger); err != nil {
		return nil, err
	}
	if a.MQConn, err = rabbitmqClient.New(ctx, cfg.RabbitMQ.URL, cfg.App.Name, a.Logger); err != nil {
		return nil, err
	}

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = cfg.Retry.MaxAttempts
	retryCfg.InitialDelay = time.Duration(cfg.Retry.InitialDelayMs) * time.Millisecond
	retryCfg.MaxDelay = time.Duration(cfg.Retry.MaxDelayMs) * time.Millisecond
	retryCfg.ShouldRetry = ai.IsTransient
	retryCfg.Logger = a.Logger

	embedder := ai.NewEmbeddingClient(ai.EmbeddingConfig{
		BaseURL:           cfg.Embedding.BaseURL,
		APIKey:            cfg.Embedding.APIKey,
		Model:             cfg.Embedding.Model,
		Dimension:         cfg.Embedding.Dimension,
		BatchSize:         cfg.Embedding.BatchSize,
		Timeout:           time.Duration(cfg.Embedding.TimeoutSeconds) * time.Second,
		RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
		Retry:             retryCfg,
	}, a.Logger.Named("embedding"))
	queryEmbedder := cache.NewCachedEmbedder(
		embedder,
		a.Redis,
		cfg.Embedding.Model,
		time.Duration(cfg.Redis.EmbeddingCacheTTLSeconds)*time.Second,
		a.Logger,
	)

	if err = a.openVectorStore(ctx, queryEmbedder, embedder.Dimensions()); err != nil {
		return nil, err
	}

	llm := ai.NewLLMClient(ai.LLMConfig{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: float32(cfg.LLM.Temperature),
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
		Retry:       retryCfg,
	}, a.Logger.Named("llm"))

	userRepo := repository.NewUserRepository(a.DB)
	docRepo := repository.NewDocumentRepository(a.DB)
	chatRepo := repository.NewChatRepository(a.DB)
	messageRepo := repository.NewMessageRepository(a.DB)
	cardRepo := repository.NewFlashCardRepository(a.DB)
	setRepo := repository.NewFlashCardSetRepository(a.DB)

	pipeline := ingestion.NewPipeline(
		ingestion.LoaderFunc(pdfextract.LoadFile),
		splitter.New(),
		embedder,
		a.VectorStore,
		docRepo,
		a.Logger.Named("ingestion"),
	)
	queryEngine := query.NewEngine(a.VectorStore, llm, a.Logger.Named("query"))
	cardEngine := flashcard.NewEngine(a.VectorStore, llm, a.Logger.Named("flashcard"))

	ingestPublisher := a.publisher(cfg.RabbitMQ.IngestionQueue)
	messagePublisher := a.publisher(cfg.RabbitMQ.MessagePersistQueue)

	historyCache := cache.NewHistoryCache(
		a.Redis,
		time.Duration(cfg.Redis.HistoryTTLSeconds)*time.Second,
		time.Duration(cfg.Redis.HistoryDirtyTTLSeconds)*time.Second,
	)

	a.Services = Services{
		Auth: app.NewAuthService(
			userRepo,
			cfg.Auth.JWTSecret,
			time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute,
			a.Logger,
		),
		Document: app.NewDocumentService(
			docRepo,
			a.VectorStore,
			ingestPublisher,
			cfg.Upload.Dir,
			int64(cfg.Upload.MaxFileSizeMB)<<20,
			a.Logger,
		),
		Query:        app.NewQueryService(queryEngine, a.Logger),
		Chat:         app.NewChatService(chatRepo, messageRepo, messagePublisher, historyCache, queryEngine, cfg.LLM.Model, a.Logger),
		FlashCard:    app.NewFlashCardService(cardRepo, docRepo, cardEngine, a.Logger),
		FlashCardSet: app.NewFlashCardSetService(setRepo, cardRepo, a.Logger),
	}

	if err = a.startConsumer(ctx, cfg.RabbitMQ.IngestionQueue, cfg.RabbitMQ.IngestionConcurrency,
		worker.IngestionHandler(pipeline, a.Logger)); err != nil {
		return nil, err
	}
	if err = a.startConsumer(ctx, cfg.RabbitMQ.MessagePersistQueue, 1,
		worker.MessagePersistHandler(messageRepo, chatRepo)); err != nil {
		return nil, err
	}

	a.Logger.Info("application initialized",
		zap.String("env", cfg.App.Env),
		zap.String("database", cfg.Database.Driver),
		zap.String("vector_store", cfg.VectorStore.Driver),
	)
	return a, nil
}

func openDatabase(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	if cfg.Database.Driver == "sqlite" {
		return sqliteClient.New(ctx, cfg.Database.SQLitePath)
	}
	return mysqlClient.New(ctx, cfg.MySQLDSN(), mysqlClient.DefaultPoolConfig(), logger.L())
}

func (a *App) openVectorStore(ctx context.Context, embedder vectorstore.Embedder, dim int) error {
	cfg := a.Config.VectorStore
	if cfg.Driver == "memory" {
		a.Logger.Warn("using in-memory vector store; vectors are lost on restart")
		a.VectorStore = vectorstore.NewMemory(embedder, dim)
		return nil
	}

	c, err := milvusClient.New(ctx, cfg.Address, cfg.Username, cfg.Password)
	if err != nil {
		return err
	}
	a.Milvus = c

	store := vectorstore.NewMilvus(c, embedder, vectorstore.MilvusConfig{
		Collection:   cfg.Collection,
		Dimension:    dim,
		Timeout:      time.Duration(cfg.TimeoutSeconds) * time.Second,
		PollInterval: time.Duration(cfg.ReadyPollMillis) * time.Millisecond,
		ReadyTimeout: time.Duration(cfg.ReadyTimeoutSeconds) * time.Second,
	}, a.Logger.Named("vectorstore"))
	if err := store.EnsureReady(ctx); err != nil {
		return fmt.Errorf("prepare vector index failed: %w", err)
	}
	a.VectorStore = store
	return nil
}

func (a *App) publisher(queue string) *rabbitmqClient.Publisher {
	p := rabbitmqClient.NewPublisher(a.MQConn, queue)
	a.publishers = append(a.publishers, p)
	return p
}

func (a *App) startConsumer(ctx context.Context, queue string, concurrency int, handler worker.Handler) error {
	c := worker.NewConsumer(a.MQConn, queue, concurrency, handler, a.Logger.Named("worker"))
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("start consumer %s failed: %w", queue, err)
	}
	a.consumers = append(a.consumers, c)
	return nil
}

func (a *App) Close() error {
	var errs []error
	for _, c := range a.consumers {
		c.Close()
	}
	for _, p := range a.publishers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Milvus != nil {
		if err := a.Milvus.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.MQConn != nil && !a.MQConn.IsClosed() {
		if err := a.MQConn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	logger.Sync()
	return errors.Join(errs...)
}
