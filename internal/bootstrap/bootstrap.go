package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/grounded-rag/internal/config"
	"github.com/kirillkom/grounded-rag/internal/core/domain"
	"github.com/kirillkom/grounded-rag/internal/core/ports"
	"github.com/kirillkom/grounded-rag/internal/core/usecase"
	"github.com/kirillkom/grounded-rag/internal/infrastructure/chunking"
	"github.com/kirillkom/grounded-rag/internal/infrastructure/lexical"
	"github.com/kirillkom/grounded-rag/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/grounded-rag/internal/infrastructure/llm/openaicompat"
	"github.com/kirillkom/grounded-rag/internal/infrastructure/loader"
	"github.com/kirillkom/grounded-rag/internal/infrastructure/queue/nats"
	"github.com/kirillkom/grounded-rag/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/grounded-rag/internal/infrastructure/rerank/crossencoder"
	"github.com/kirillkom/grounded-rag/internal/infrastructure/resilience"
	"github.com/kirillkom/grounded-rag/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/grounded-rag/internal/infrastructure/vector/memory"
	"github.com/kirillkom/grounded-rag/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/grounded-rag/internal/observability/metrics"
)

const processTimeout = 5 * time.Minute

type App struct {
	Config config.Config
	Logger *slog.Logger

	Registry    *prometheus.Registry
	HTTPMetrics *metrics.HTTPServerMetrics
	Executor    *resilience.Executor

	Queue ports.MessageQueue
	Docs  ports.DocumentRepository

	Corpus  *usecase.CorpusUseCase
	Ingest  *usecase.IngestDocumentUseCase
	Process *usecase.ProcessDocumentUseCase
	Query   *usecase.QueryUseCase

	closeFn func()
}

// New wires every adapter for one process. service labels metrics and logs.
func New(ctx context.Context, cfg config.Config, service string, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	pipelineMetrics := metrics.NewPipelineMetrics(service, registry)
	ingestMetrics := metrics.NewIngestMetrics(service, registry)

	executor := resilience.NewExecutor(
		resilience.FromSettings(cfg.RetryMaxAttempts, cfg.RetryInitialBackoff, cfg.BreakerEnabled),
	).WithLogger(logger)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	docs := postgres.NewDocumentRepository(db)
	chunkStore := postgres.NewChunkRepository(db)
	conversations := postgres.NewConversationRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSIngestSubject, nats.Options{
		CorpusSubject:      cfg.NATSCorpusSubject,
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.Options{
		Timeout:            cfg.CompletionTimeout,
		ResilienceExecutor: executor,
	})
	completer, err := newCompleter(cfg, ollamaClient, executor)
	if err != nil {
		closeAll(queue, db)
		return nil, err
	}
	embedding, localEmbeddings, err := newEmbeddingIndex(cfg, ollamaClient, executor)
	if err != nil {
		closeAll(queue, db)
		return nil, err
	}

	lexicalIndex := lexical.NewBM25Index()
	documentLoader := loader.NewRegistry(loader.Config{
		OCREnabled:    cfg.OCREnabled,
		TesseractPath: cfg.TesseractPath,
	})
	chunker := chunking.NewSentenceChunker(cfg.ChunkSize, cfg.ChunkOverlap)

	corpus := usecase.NewCorpusUseCase(lexicalIndex, embedding, chunkStore, docs, queue, usecase.CorpusConfig{
		Origin:          cfg.ReplicaID,
		LocalEmbeddings: localEmbeddings,
	}, logger)

	retriever := usecase.NewHybridRetriever(lexicalIndex, embedding, usecase.RetrievalConfig{
		TopK:             cfg.TopKRetrieval,
		RRFK:             cfg.RRFK,
		EmbeddingTimeout: cfg.EmbeddingTimeout,
	}, pipelineMetrics, logger).WithCorpusLock(corpus.ReadLocker())
	reranker := usecase.NewReranker(newScorer(cfg, executor), pipelineMetrics, logger)
	generator := usecase.NewVerifiedGenerator(completer, usecase.GenerationConfig{
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		Draft:               domain.CompletionOptions{Temperature: cfg.DraftTemperature, MaxTokens: cfg.DraftMaxTokens},
		Verify:              domain.CompletionOptions{Temperature: cfg.VerifyTemperature, MaxTokens: cfg.VerifyMaxTokens},
		CallTimeout:         cfg.CompletionTimeout,
	}, pipelineMetrics, logger)

	return &App{
		Config: cfg,
		Logger: logger,

		Registry:    registry,
		HTTPMetrics: metrics.NewHTTPServerMetrics(service, registry),
		Executor:    executor,

		Queue: queue,
		Docs:  docs,

		Corpus:  corpus,
		Ingest:  usecase.NewIngestDocumentUseCase(docs, storage, queue, documentLoader),
		Process: usecase.NewProcessDocumentUseCase(docs, storage, documentLoader, chunker, corpus, ingestMetrics, logger),
		Query: usecase.NewQueryUseCase(retriever, reranker, generator, conversations, usecase.QueryConfig{
			TopKRetrieval: cfg.TopKRetrieval,
			TopKRerank:    cfg.TopKRerank,
			HistoryTurns:  cfg.ConversationContextTurns,
		}, pipelineMetrics, logger),

		closeFn: func() { closeAll(queue, db) },
	}, nil
}

func newCompleter(cfg config.Config, client *ollama.Client, executor *resilience.Executor) (ports.CompletionService, error) {
	switch cfg.LLMProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required when LLM_PROVIDER=openai")
		}
		return openaicompat.New(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, openaicompat.Options{
			Timeout:            cfg.CompletionTimeout,
			ResilienceExecutor: executor,
		}), nil
	default:
		return ollama.NewCompleter(client), nil
	}
}

// newEmbeddingIndex reports whether the index lives in this process only, in
// which case corpus events must reach it too.
func newEmbeddingIndex(cfg config.Config, client *ollama.Client, executor *resilience.Executor) (ports.EmbeddingIndex, bool, error) {
	embedder := ollama.NewEmbedder(client)
	switch cfg.EmbeddingBackend {
	case "qdrant":
		qdrantClient := qdrant.NewWithOptions(cfg.QdrantURL, cfg.QdrantCollection, qdrant.Options{
			Timeout:            cfg.EmbeddingTimeout,
			ResilienceExecutor: executor,
		})
		return qdrant.NewIndex(qdrantClient, embedder), false, nil
	case "memory":
		return memory.NewIndex(embedder), true, nil
	case "none":
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("unknown embedding backend %q", cfg.EmbeddingBackend)
	}
}

func newScorer(cfg config.Config, executor *resilience.Executor) ports.RelevanceScorer {
	if cfg.Reranker == "cross-encoder" {
		return crossencoder.New(cfg.RerankerURL, cfg.RerankerModel, crossencoder.Options{
			Timeout:            cfg.RerankerTimeout,
			ResilienceExecutor: executor,
		})
	}
	return usecase.OverlapScorer{}
}

// Warmup builds the in-memory indexes from the chunk store and, when
// ingestDirectory is set, ingests new files from DOCUMENTS_PATH. Directory
// failures are logged per file and never abort startup.
func (a *App) Warmup(ctx context.Context, ingestDirectory bool) error {
	loaded, err := a.Corpus.LoadFromStore(ctx)
	if err != nil {
		return fmt.Errorf("load corpus: %w", err)
	}
	a.Logger.Info("corpus_loaded", "chunks", loaded)

	if !ingestDirectory {
		return nil
	}
	ingested, failed, err := a.Process.IngestDirectory(ctx, a.Config.DocumentsPath)
	if err != nil {
		a.Logger.Error("documents_dir_ingest_failed", "path", a.Config.DocumentsPath, "error", err.Error())
		return nil
	}
	a.Logger.Info("documents_dir_ingested", "path", a.Config.DocumentsPath, "ingested", ingested, "failed", failed)
	return nil
}

// RunConsumers processes queued uploads and mirrors corpus events from other
// replicas until ctx is done.
func (a *App) RunConsumers(ctx context.Context, processUploads bool) error {
	g, gctx := errgroup.WithContext(ctx)
	if processUploads {
		g.Go(func() error {
			return a.Queue.SubscribeDocumentIngested(gctx, func(handlerCtx context.Context, documentID string) error {
				processCtx, cancel := context.WithTimeout(handlerCtx, processTimeout)
				defer cancel()
				return a.Process.ProcessByID(processCtx, documentID)
			})
		})
	}
	g.Go(func() error {
		return a.Queue.SubscribeCorpusEvents(gctx, func(handlerCtx context.Context, event domain.CorpusEvent) error {
			return a.Corpus.ApplyEvent(handlerCtx, event)
		})
	})
	return g.Wait()
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func closeAll(queue *nats.Queue, db *sql.DB) {
	queue.Close()
	_ = db.Close()
}
