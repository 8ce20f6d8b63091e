package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"groundedchat/internal/ai"
	appsvc "groundedchat/internal/app"
	"groundedchat/internal/cache"
	"groundedchat/internal/config"
	"groundedchat/internal/history"
	"groundedchat/internal/model"
	"groundedchat/internal/observability"
	"groundedchat/internal/platform/database"
	"groundedchat/internal/platform/logger"
	rabbitmqClient "groundedchat/internal/platform/rabbitmq"
	redisClient "groundedchat/internal/platform/redis"
	"groundedchat/internal/prompt"
	"groundedchat/internal/rag"
	"groundedchat/internal/repository"
	"groundedchat/internal/vectorindex"
)

// Mode selects which dependencies New connects.
type Mode int

const (
	// ModeServer connects everything enabled in config and starts the history worker.
	ModeServer Mode = iota
	// ModeIngest skips redis and the broker; history is written directly.
	ModeIngest
)

type Services struct {
	Auth          *appsvc.AuthService
	Chat          *appsvc.ChatService
	Documents     *appsvc.DocumentService
	Questionnaire *appsvc.QuestionnaireService
}

type App struct {
	Config        *config.Config
	Log           *logger.Logger
	DB            *gorm.DB
	Redis         *redis.Client
	MQConn        *amqp.Connection
	HistoryWorker *history.PersistWorker
	Pipeline      *rag.Pipeline
	Services      Services

	shutdownTracing func(context.Context) error
	StartedAt       time.Time
}

func New(ctx context.Context, mode Mode) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return nil, fmt.Errorf("init logger failed: %w", err)
	}

	a := &App{Config: cfg, Log: log, StartedAt: time.Now()}
	if err := a.init(ctx, mode); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context, mode Mode) error {
	cfg, log := a.Config, a.Log

	shutdown, err := observability.InitTracing(ctx, log, cfg.App, cfg.Tracing)
	if err != nil {
		return err
	}
	a.shutdownTracing = shutdown

	a.DB, err = database.New(ctx, cfg.Database.Driver, cfg.DSN())
	if err != nil {
		return err
	}
	if err := a.DB.AutoMigrate(model.All()...); err != nil {
		return fmt.Errorf("auto migrate tables failed: %w", err)
	}

	userRepo := repository.NewUserRepository(a.DB)
	chatRepo := repository.NewChatRepository(a.DB)
	messageRepo := repository.NewMessageRepository(a.DB)
	historyRepo := repository.NewChatHistoryRepository(a.DB)
	documentRepo := repository.NewDocumentRepository(a.DB)
	chunkRepo := repository.NewChunkRepository(a.DB)
	questionRepo := repository.NewQuestionnaireRepository(a.DB)
	actionRepo := repository.NewSuggestedActionRepository(a.DB)

	if err := appsvc.Seed(ctx, questionRepo, actionRepo); err != nil {
		return err
	}

	index, err := newVectorStore(ctx, cfg, log, chunkRepo)
	if err != nil {
		return err
	}

	registry := prompt.NewRegistry()
	if cfg.Prompts.Dir != "" {
		n, err := registry.LoadDir(cfg.Prompts.Dir)
		if err != nil {
			return fmt.Errorf("load prompt templates failed: %w", err)
		}
		log.Info("prompt templates loaded", "dir", cfg.Prompts.Dir, "count", n)
	}
	templates := rag.Templates{
		Generic:  cfg.Prompts.Generic,
		Fallback: cfg.Prompts.Fallback,
		Grounded: cfg.Prompts.Grounded,
	}
	for _, id := range []string{templates.Generic, templates.Fallback, templates.Grounded} {
		if id != "" && !registry.Has(id) {
			return fmt.Errorf("prompt template %q is not registered", id)
		}
	}

	llmClient := ai.NewOpenAICompatibleClient(time.Duration(cfg.LLM.TimeoutSeconds) * time.Second)
	embedder := ai.NewEmbedder(llmClient, ai.EmbeddingConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.EmbeddingModel,
	})
	generator := ai.NewTemplateGenerator(llmClient, ai.ChatConfig{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Stream:      cfg.LLM.Stream,
	}, registry)

	dbRecorder := history.NewDBRecorder(historyRepo)
	var recorder rag.HistoryRecorder = dbRecorder
	var conversations appsvc.ConversationCache

	if mode == ModeServer {
		if cfg.Redis.Enabled {
			a.Redis, err = redisClient.New(ctx, cfg.Redis)
			if err != nil {
				return err
			}
			conversations = cache.NewConversationStore(a.Redis,
				time.Duration(cfg.Redis.ConversationTTLSeconds)*time.Second, cfg.Redis.ConversationMaxTurns)
		}
		if cfg.RabbitMQ.Enabled {
			a.MQConn, err = rabbitmqClient.New(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.HistoryQueue)
			if err != nil {
				return err
			}
			recorder = history.NewQueueRecorder(a.MQConn, cfg.RabbitMQ.HistoryQueue)
			a.HistoryWorker = history.NewPersistWorker(a.MQConn, dbRecorder, cfg.RabbitMQ.HistoryQueue, log)
			if err := a.HistoryWorker.Start(ctx); err != nil {
				return fmt.Errorf("start history worker failed: %w", err)
			}
		}
	}

	a.Pipeline = rag.NewPipeline(embedder, index, generator, recorder, rag.Config{
		MaxSources:          cfg.RAG.MaxSources,
		SimilarityThreshold: cfg.RAG.SimilarityThreshold,
		Risk:                rag.RiskThresholds{HighMax: cfg.RAG.HighRiskMax, MediumMax: cfg.RAG.MediumRiskMax},
		GenericPatterns:     cfg.RAG.GenericPatterns,
		Templates:           templates,
	}, log)

	a.Services = Services{
		Auth: appsvc.NewAuthService(
			userRepo,
			cfg.Auth.JWTSecret,
			time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute,
		),
		Chat: appsvc.NewChatService(chatRepo, messageRepo, historyRepo, a.Pipeline, conversations,
			cfg.Redis.ConversationMaxTurns, log),
		Documents: appsvc.NewDocumentService(documentRepo, embedder, index, appsvc.DocumentConfig{
			ChunkSize:      cfg.RAG.ChunkSize,
			ChunkOverlap:   cfg.RAG.ChunkOverlap,
			EmbedBatchSize: cfg.RAG.EmbedBatchSize,
		}, log),
		Questionnaire: appsvc.NewQuestionnaireService(questionRepo, actionRepo),
	}

	log.Info("application initialized",
		"db_driver", cfg.Database.Driver,
		"vector_provider", cfg.Vector.Provider,
		"redis", a.Redis != nil,
		"rabbitmq", a.MQConn != nil,
	)
	return nil
}

func newVectorStore(ctx context.Context, cfg *config.Config, log *logger.Logger, chunks *repository.ChunkRepository) (vectorindex.Store, error) {
	if cfg.Vector.Provider != "qdrant" {
		return vectorindex.NewSQLIndex(chunks), nil
	}
	q, err := vectorindex.NewQdrantIndex(log, vectorindex.QdrantConfig{
		URL:        cfg.Vector.QdrantURL,
		APIKey:     cfg.Vector.QdrantAPIKey,
		Collection: cfg.Vector.QdrantCollection,
		Dimension:  cfg.Vector.Dimension,
	})
	if err != nil {
		return nil, err
	}
	if err := q.EnsureCollection(ctx); err != nil {
		return nil, fmt.Errorf("ensure qdrant collection failed: %w", err)
	}
	return q, nil
}

// Close stops the worker before closing the connections it reads from.
func (a *App) Close() error {
	var errs []error
	if a.HistoryWorker != nil {
		a.HistoryWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if a.shutdownTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.shutdownTracing(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
	return errors.Join(errs...)
}
