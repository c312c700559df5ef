package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"pipeline_server/adapter/in/worker"
	"pipeline_server/adapter/out/cache"
	"pipeline_server/adapter/out/index"
	"pipeline_server/adapter/out/mongodb"
	"pipeline_server/adapter/out/persistence"
	"pipeline_server/adapter/out/provider"
	"pipeline_server/config"
	"pipeline_server/core/port/out"
	"pipeline_server/core/service/classification"
	"pipeline_server/core/service/dedup"
	"pipeline_server/core/service/pipeline"
	"pipeline_server/infra/database"
	"pipeline_server/internal/stream"
	"pipeline_server/pkg/logger"
	"pipeline_server/pkg/metrics"
)

// Dependencies holds every wired component. API and worker modes share
// one dependency graph so they never disagree about configuration.
type Dependencies struct {
	Config  *config.Config
	DB      *pgxpool.Pool
	SQLDB   *sqlx.DB
	Redis   *redis.Client
	MongoDB *mongo.Client

	// Storage
	EmailStore    out.EmailStore
	ProcessingLog out.ProcessingLog
	ResultCache   out.ResultCache
	RawArchive    out.RawArchive

	// Providers
	Embedder   out.Embedder
	Classifier out.Classifier

	// Similarity
	Index       out.SimilarityIndex
	DedupEngine *dedup.Engine

	// Pipeline
	Orchestrator *pipeline.Orchestrator

	// Messaging
	Stream   *stream.RedisStream
	Producer out.JobProducer
}

func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg}
	var cleanups []func()

	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	// Database (pgxpool)
	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	deps.DB = db
	cleanups = append(cleanups, func() { db.Close() })

	// Database (sqlx for the row-scanning adapters). Simple protocol
	// keeps prepared statements away from PgBouncer.
	sqlxURL := cfg.DatabaseURL
	if strings.Contains(sqlxURL, "?") {
		sqlxURL += "&default_query_exec_mode=simple_protocol"
	} else {
		sqlxURL += "?default_query_exec_mode=simple_protocol"
	}
	sqlDB, err := sqlx.Connect("pgx", sqlxURL)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to connect via sqlx: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	deps.SQLDB = sqlDB
	cleanups = append(cleanups, func() { sqlDB.Close() })
	metrics.RegisterPool("postgres", sqlDB.DB)

	// Redis (optional: without it there is no queue and no cache,
	// but synchronous processing still works)
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedis(cfg.RedisURL)
		if err != nil {
			logger.WithError(err).Warn("redis connection failed, queue and cache disabled")
		} else {
			deps.Redis = redisClient
			cleanups = append(cleanups, func() { redisClient.Close() })
		}
	}

	// MongoDB (optional raw email archive)
	if cfg.MongoDBURL != "" {
		mongoClient, err := mongodb.NewClient(cfg.MongoDBURL)
		if err != nil {
			logger.WithError(err).Warn("mongodb connection failed, raw archive disabled")
		} else {
			deps.MongoDB = mongoClient
			cleanups = append(cleanups, func() {
				mongoClient.Disconnect(context.Background())
			})

			archive := mongodb.NewRawArchiveAdapter(mongoClient.Database(cfg.MongoDBName))
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := archive.EnsureIndexes(ctx); err != nil {
				logger.WithError(err).Warn("failed to ensure mongodb indexes")
			}
			cancel()
			deps.RawArchive = archive
		}
	}

	// Storage adapters
	deps.EmailStore = persistence.NewEmailAdapter(sqlDB)
	deps.ProcessingLog = persistence.NewProcessingLogAdapter(sqlDB)

	if deps.Redis != nil {
		deps.ResultCache = cache.NewResultCache(deps.Redis, time.Duration(cfg.CacheResultTTLMin)*time.Minute)
	}

	// Providers
	deps.Embedder = provider.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDim)

	switch cfg.ClassifierBackend {
	case "rules":
		deps.Classifier = classification.NewRuleClassifier()
		logger.Info("classifier backend: rules")
	default:
		deps.Classifier = provider.NewLLMClassifier(provider.LLMClassifierConfig{
			APIKey:      cfg.OpenAIAPIKey,
			Model:       cfg.LLMModel,
			MaxTokens:   cfg.LLMMaxTokens,
			Temperature: cfg.LLMTemperature,
			Timeout:     time.Duration(cfg.LLMTimeoutSec) * time.Second,
		})
		logger.Info("classifier backend: llm (%s)", cfg.LLMModel)
	}

	// Similarity index
	switch cfg.IndexBackend {
	case "memory":
		memIdx := index.NewMemoryIndex(cfg.EmbeddingDim)
		deps.Index = memIdx
		if err := hydrateIndex(deps.EmailStore, memIdx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to hydrate similarity index: %w", err)
		}
	default:
		deps.Index = index.NewPgVectorIndex(db, cfg.EmbeddingDim)
	}

	deps.DedupEngine = dedup.NewEngine(deps.Index)

	// Orchestrator
	deps.Orchestrator = pipeline.NewOrchestrator(
		deps.Embedder,
		deps.Classifier,
		deps.DedupEngine,
		deps.EmailStore,
		deps.ProcessingLog,
		deps.ResultCache,
		pipeline.Config{
			DuplicateThreshold: cfg.DuplicateThreshold,
			MinConfidence:      cfg.MinConfidence,
		},
	)

	// Messaging
	if deps.Redis != nil {
		deps.Stream = stream.NewRedisStream(deps.Redis, "pipeline-workers")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		for _, s := range stream.Streams() {
			if err := deps.Stream.CreateGroup(ctx, s); err != nil {
				logger.WithError(err).WithField("stream", s).Warn("failed to create consumer group")
			}
		}
		cancel()
		deps.Producer = stream.NewProducer(deps.Stream)
	}

	logger.Info("dependencies initialized (index=%s, classifier=%s)", cfg.IndexBackend, cfg.ClassifierBackend)
	return deps, cleanup, nil
}

// hydrateIndex loads every stored embedding into a fresh in-process
// index. Runs once at startup; afterwards inserts keep it current.
func hydrateIndex(store out.EmailStore, idx out.SimilarityIndex) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	const batchSize = 500
	loaded := 0
	for offset := 0; ; offset += batchSize {
		records, err := store.ListEmbeddings(ctx, batchSize, offset)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			break
		}
		for _, rec := range records {
			if err := idx.Insert(ctx, rec.EmailID, rec.Vector); err != nil {
				return err
			}
			loaded++
		}
		if len(records) < batchSize {
			break
		}
	}

	logger.Info("similarity index hydrated with %d embeddings", loaded)
	return nil
}

// WorkerHandler builds the job handler for the worker fleet.
func (d *Dependencies) WorkerHandler() *worker.Handler {
	emailProcessor := worker.NewEmailProcessor(d.Orchestrator, d.RawArchive)
	indexProcessor := worker.NewIndexProcessor(d.EmailStore, d.Index)
	return worker.NewHandler(emailProcessor, indexProcessor)
}
