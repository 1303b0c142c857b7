// Package app assembles the process: config, backend clients, services,
// handlers and the router, in dependency order.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mindgraph-backend/internal/graph"
	"github.com/yungbote/mindgraph-backend/internal/handlers"
	"github.com/yungbote/mindgraph-backend/internal/observability"
	"github.com/yungbote/mindgraph-backend/internal/platform/logger"
	"github.com/yungbote/mindgraph-backend/internal/platform/neo4jdb"
	"github.com/yungbote/mindgraph-backend/internal/platform/openai"
	"github.com/yungbote/mindgraph-backend/internal/server"
	"github.com/yungbote/mindgraph-backend/internal/services"
	"github.com/yungbote/mindgraph-backend/internal/vector"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	Router   *gin.Engine
	Neo4j    *neo4jdb.Client
	Graph    graph.Store
	Vectors  vector.Store
	Services Services

	otelShutdown func(context.Context) error
}

type Services struct {
	Embedder    services.Embedder
	Extractor   services.Extractor
	Generator   services.Generator
	Registry    *services.SchemaRegistry
	GraphOps    *services.GraphOps
	Retriever   *services.ContextRetriever
	Constructor *services.Constructor
	RAG         *services.RAG
	Users       *services.UserService
}

func New(ctx context.Context) (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	cfg := LoadConfig()

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "mindgraph",
		Environment: cfg.Env,
		Version:     handlers.Version,
	})

	neo4jClient, err := neo4jdb.NewFromEnv(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init neo4j: %w", err)
	}

	graphStore, err := graph.NewNeo4jStore(neo4jClient, log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init graph store: %w", err)
	}
	if err := graphStore.Initialize(ctx); err != nil {
		log.Sync()
		return nil, fmt.Errorf("graph store initialize: %w", err)
	}

	openaiClient, err := openai.NewClient(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init openai: %w", err)
	}

	serviceset, vectorStore, err := wireServices(ctx, log, cfg, neo4jClient, graphStore, openaiClient)
	if err != nil {
		log.Sync()
		return nil, err
	}

	router := server.NewRouter(server.RouterConfig{
		ServiceName:       "mindgraph",
		AllowOrigins:      cfg.AllowOrigins,
		TracingOn:         otelShutdown != nil,
		UserHandler:       handlers.NewUserHandler(log, serviceset.Users),
		IngestHandler:     handlers.NewIngestHandler(log, serviceset.Constructor),
		RAGHandler:        handlers.NewRAGHandler(log, serviceset.RAG, serviceset.Users),
		CustomDataHandler: handlers.NewCustomDataHandler(log, serviceset.GraphOps, serviceset.Users),
	})

	return &App{
		Log:          log,
		Cfg:          cfg,
		Router:       router,
		Neo4j:        neo4jClient,
		Graph:        graphStore,
		Vectors:      vectorStore,
		Services:     serviceset,
		otelShutdown: otelShutdown,
	}, nil
}

func wireServices(
	ctx context.Context,
	log *logger.Logger,
	cfg Config,
	neo4jClient *neo4jdb.Client,
	graphStore graph.Store,
	openaiClient openai.Client,
) (Services, vector.Store, error) {
	embedder, err := services.NewEmbedder(log, openaiClient)
	if err != nil {
		return Services{}, nil, fmt.Errorf("init embedder: %w", err)
	}

	vectorStore, err := wireVectorStore(log, cfg, neo4jClient, graphStore, embedder.Dimension())
	if err != nil {
		return Services{}, nil, err
	}
	if err := vectorStore.Initialize(ctx); err != nil {
		return Services{}, nil, fmt.Errorf("vector store initialize: %w", err)
	}

	extractor, err := services.NewExtractor(log, openaiClient)
	if err != nil {
		return Services{}, nil, fmt.Errorf("init extractor: %w", err)
	}
	generator, err := services.NewGenerator(log, openaiClient)
	if err != nil {
		return Services{}, nil, fmt.Errorf("init generator: %w", err)
	}
	registry, err := services.NewSchemaRegistry(log, graphStore.(graph.SchemaStore))
	if err != nil {
		return Services{}, nil, fmt.Errorf("init schema registry: %w", err)
	}
	graphOps, err := services.NewGraphOps(log, graphStore, vectorStore, embedder)
	if err != nil {
		return Services{}, nil, fmt.Errorf("init graph ops: %w", err)
	}
	retriever, err := services.NewContextRetriever(log, graphStore, graphOps)
	if err != nil {
		return Services{}, nil, fmt.Errorf("init context retriever: %w", err)
	}
	constructor, err := services.NewConstructor(log, graphStore, registry, extractor, retriever, graphOps)
	if err != nil {
		return Services{}, nil, fmt.Errorf("init constructor: %w", err)
	}
	rag, err := services.NewRAG(log, retriever, graphOps, generator)
	if err != nil {
		return Services{}, nil, fmt.Errorf("init rag: %w", err)
	}
	users, err := services.NewUserService(log, graphStore, vectorStore, registry)
	if err != nil {
		return Services{}, nil, fmt.Errorf("init user service: %w", err)
	}

	return Services{
		Embedder:    embedder,
		Extractor:   extractor,
		Generator:   generator,
		Registry:    registry,
		GraphOps:    graphOps,
		Retriever:   retriever,
		Constructor: constructor,
		RAG:         rag,
		Users:       users,
	}, vectorStore, nil
}

func wireVectorStore(
	log *logger.Logger,
	cfg Config,
	neo4jClient *neo4jdb.Client,
	graphStore graph.Store,
	dim int,
) (vector.Store, error) {
	switch cfg.VectorProvider {
	case "", "neo4j":
		return vector.NewNeo4jIndex(neo4jClient, log, dim)
	case "qdrant":
		qcfg, err := vector.QdrantConfigFromEnv(dim)
		if err != nil {
			return nil, fmt.Errorf("init qdrant: %w", err)
		}
		checker := func(ctx context.Context, name, userID string) (bool, error) {
			return graphStore.CheckNodeExists(ctx, name, "", userID)
		}
		return vector.NewQdrantStore(log, qcfg, checker)
	default:
		return nil, fmt.Errorf("unknown VECTOR_PROVIDER %q", cfg.VectorProvider)
	}
}

func (a *App) Run() error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("listening", "addr", a.Cfg.BindAddr)
	return a.Router.Run(a.Cfg.BindAddr)
}

func (a *App) Close(ctx context.Context) {
	if a == nil {
		return
	}
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
	}
	if a.Neo4j != nil {
		if err := a.Neo4j.Close(ctx); err != nil {
			a.Log.Warn("neo4j close failed", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
