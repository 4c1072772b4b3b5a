package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"gopherai-chat/internal/ai"
	"gopherai-chat/internal/app"
	"gopherai-chat/internal/cache"
	"gopherai-chat/internal/config"
	"gopherai-chat/internal/conversation"
	"gopherai-chat/internal/metrics"
	"gopherai-chat/internal/model"
	mysqlClient "gopherai-chat/internal/platform/mysql"
	rabbitmqClient "gopherai-chat/internal/platform/rabbitmq"
	redisClient "gopherai-chat/internal/platform/redis"
	sqliteClient "gopherai-chat/internal/platform/sqlite"
	"gopherai-chat/internal/repository"
	"gopherai-chat/internal/store"
	"gopherai-chat/internal/tokenizer"
	"gopherai-chat/internal/worker"
)

type App struct {
	Config        *config.Config
	Logger        *zap.Logger
	DB            *gorm.DB
	Redis         *redis.Client
	Cache         *cache.MessageCache
	MQConn        *amqp.Connection
	MessageWorker *worker.MessagePersistWorker
	Store         conversation.MessageStore
	Registry      *prometheus.Registry
	ChatService   *app.ChatService

	StartedAt time.Time
}

func New(ctx context.Context, logger *zap.Logger) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	return NewWithConfig(ctx, cfg, logger)
}

// NewWithConfig connects the backends cfg asks for and builds the chat
// service on top of them. Resources opened before a failure are released.
func NewWithConfig(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		Config:    cfg,
		Logger:    logger,
		Registry:  prometheus.NewRegistry(),
		StartedAt: time.Now(),
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if err := a.openStore(ctx); err != nil {
		return nil, err
	}

	estimator, err := tokenizer.NewTokenCounter(cfg.LLM.TokenizerModel)
	if err != nil {
		return nil, err
	}

	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a.ChatService, err = app.NewChatService(app.ChatServiceConfig{
		LLM: ai.ChatConfig{
			BaseURL: cfg.LLM.BaseURL,
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
		},
		SystemMessage:  cfg.LLM.SystemMessage,
		ProviderParams: cfg.LLM.Params,
		Budget: conversation.Budget{
			ModelContextSize: cfg.LLM.ModelContextSize,
			ResponseReserve:  cfg.LLM.ResponseReserve,
		},
		MaxWalkSteps: cfg.LLM.MaxWalkSteps,
		Store:        a.Store,
		Estimator:    estimator,
		Timeout:      time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
		Metrics:      metrics.NewRecorder(a.Registry),
		Logger:       logger.Named("chat"),
	})
	if err != nil {
		return nil, fmt.Errorf("create chat service failed: %w", err)
	}

	logger.Info("chat service ready",
		zap.String("store", cfg.Store.Backend),
		zap.String("model", cfg.LLM.Model),
		zap.Int("model_context_size", a.ChatService.Budget().ModelContextSize),
		zap.Int("response_reserve", a.ChatService.Budget().ResponseReserve),
	)
	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	cfg := a.Config
	switch cfg.Store.Backend {
	case "", config.StoreMemory:
		a.Store = conversation.NewMemoryStore()
		return nil
	case config.StoreRedis:
		messageCache, err := a.openCache(ctx)
		if err != nil {
			return err
		}
		a.Store = messageCache
		return nil
	case config.StoreLayered:
	default:
		return fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	messageCache, err := a.openCache(ctx)
	if err != nil {
		return err
	}

	switch cfg.Store.Durable {
	case config.DurableSQLite:
		a.DB, err = sqliteClient.New(ctx, cfg.SQLite.Path)
	case "", config.DurableMySQL:
		a.DB, err = mysqlClient.New(ctx, cfg.MySQLDSN())
	default:
		err = fmt.Errorf("unknown durable store %q", cfg.Store.Durable)
	}
	if err != nil {
		return err
	}
	if err := a.DB.AutoMigrate(&model.Message{}); err != nil {
		return fmt.Errorf("auto migrate tables failed: %w", err)
	}
	messageRepo := repository.NewMessageRepository(a.DB)

	a.MQConn, err = rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return err
	}
	a.MessageWorker = worker.NewMessagePersistWorker(a.MQConn, messageRepo, cfg.RabbitMQ.MessagePersistQueue, a.Logger.Named("worker"))
	if err := a.MessageWorker.Start(ctx); err != nil {
		return fmt.Errorf("start message worker failed: %w", err)
	}

	publisher := rabbitmqClient.NewMessagePublisher(a.MQConn, cfg.RabbitMQ.MessagePersistQueue)
	a.Store = store.NewLayered(messageCache, messageRepo, publisher, a.Logger.Named("store"))
	return nil
}

func (a *App) openCache(ctx context.Context) (*cache.MessageCache, error) {
	cfg := a.Config
	client, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}
	a.Redis = client
	a.Cache = cache.NewMessageCache(client, cfg.Store.Namespace, time.Duration(cfg.Store.TTLSeconds)*time.Second)
	return a.Cache, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.MessageWorker != nil {
		a.MessageWorker.Close()
	}
	if a.MQConn != nil && !a.MQConn.IsClosed() {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
