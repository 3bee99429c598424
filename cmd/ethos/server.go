package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Modern-Method/Ethos/api"
	"github.com/Modern-Method/Ethos/api/handlers"
	"github.com/Modern-Method/Ethos/config"
	"github.com/Modern-Method/Ethos/internal/database"
	"github.com/Modern-Method/Ethos/internal/metrics"
	"github.com/Modern-Method/Ethos/internal/server"
	"github.com/Modern-Method/Ethos/internal/telemetry"
	"github.com/Modern-Method/Ethos/memory"
	"github.com/Modern-Method/Ethos/memory/embedding"
	"github.com/Modern-Method/Ethos/memory/graph"
	"github.com/Modern-Method/Ethos/socket"
)

// Server wires every component named in the spec's architecture into
// one process: the relational and graph stores, the embedding gateway,
// ingest/retrieval/consolidation, and the socket + HTTP transport
// surfaces they're served behind.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	pool      *database.PoolManager
	graph     graph.Store
	telemetry *telemetry.Providers

	metricsCollector *metrics.Collector

	service       *memory.Service
	socketServer  *socket.Server
	httpManager   *server.Manager
	metricsManager *server.Manager

	socketCtx    context.Context
	socketCancel context.CancelFunc

	rateLimiterCancel context.CancelFunc

	embedderTickerDone chan struct{}

	wg sync.WaitGroup
}

// NewServer wires every dependency but does not start accepting
// connections yet — call Start for that.
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	s := &Server{cfg: cfg, logger: logger}

	otelProviders, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	s.telemetry = otelProviders

	s.metricsCollector = metrics.NewCollector("ethos", logger)

	db, err := openDatabase(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	pool, err := database.NewPoolManager(db, database.PoolConfig{
		MaxOpenConns:        cfg.Store.MaxOpenConns,
		MaxIdleConns:        cfg.Store.MaxIdleConns,
		ConnMaxLifetime:     cfg.Store.ConnMaxLifetime,
		ConnMaxIdleTime:     10 * time.Minute,
		HealthCheckInterval: 30 * time.Second,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init db pool: %w", err)
	}
	s.pool = pool

	store := memory.NewGormStore(pool, logger)

	graphStore, err := graph.NewNeo4jStore(context.Background(), graph.Neo4jConfig{
		URI:      cfg.Graph.URI,
		User:     cfg.Graph.User,
		Password: cfg.Graph.Password,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connect graph store: %w", err)
	}
	s.graph = graphStore

	gateway := buildEmbeddingGateway(cfg.Embedding, logger)

	embedder := memory.NewEmbedder(store, gateway, logger)
	linker := memory.NewLinker(store, graphStore, gateway, logger)
	ltp := memory.NewLTP(store, s.metricsCollector, logger)

	ingester := memory.NewIngester(store, embedder, linker, s.metricsCollector, logger)

	retrievalParams := memory.RetrievalParams{
		AnchorTopK:          cfg.Retrieval.AnchorTopK,
		SpreadingIterations: cfg.Retrieval.SpreadingIterations,
		SpreadingStrength:   cfg.Retrieval.SpreadingDecay,
		MaxCandidateEdges:   cfg.Retrieval.MaxCandidateEdges,
		CosineWeight:        cfg.Retrieval.CosineWeight,
		ActivationWeight:    cfg.Retrieval.ActivationWeight,
		StructuralWeight:    cfg.Retrieval.StructuralWeight,
	}
	retriever := memory.NewRetriever(store, graphStore, gateway, ltp, retrievalParams, s.metricsCollector, logger)

	reviewInbox := memory.NewReviewInbox(cfg.Consolidation.ReviewInboxPath, logger)
	conflictParams := buildConflictParams(cfg.Conflict)
	resolver := memory.NewResolver(store, conflictParams, reviewInbox, logger)

	salienceParams := buildSalienceParams(cfg.Decay)
	decay := memory.NewDecaySweep(store, memory.DecaySweepConfig{
		Params:         salienceParams,
		PruneThreshold: cfg.Decay.TombstoneThreshold,
		Logger:         logger,
		Metrics:        s.metricsCollector,
	})

	consolidator := memory.NewConsolidator(store, resolver, decay, memory.ConsolidationConfig{
		Interval:          cfg.Consolidation.Interval,
		IdleQuietPeriod:   cfg.Consolidation.IdleQuietPeriod,
		IdleMaxCPUPercent: cfg.Consolidation.IdleMaxCPUPercent,
		ConflictParams:    conflictParams,
		DecayParams:       salienceParams,
		PruneThreshold:    cfg.Decay.TombstoneThreshold,
	}, s.metricsCollector, logger)

	s.service = &memory.Service{
		Store:        store,
		Ingester:     ingester,
		Retriever:    retriever,
		Embedder:     embedder,
		Consolidator: consolidator,
		Logger:       logger,
	}

	s.socketServer = socket.NewServer(cfg.Service.SocketAddr, s.service, logger)

	return s, nil
}

// openDatabase selects the GORM dialector named by cfg.Driver. Only
// postgres and sqlite are supported, matching StoreConfig's doc
// comment and internal/migration's dialect set.
func openDatabase(cfg config.StoreConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN())
	case "postgres", "":
		dialector = postgres.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported store driver: %s (supported: postgres, sqlite)", cfg.Driver)
	}
	return gorm.Open(dialector, &gorm.Config{})
}

// buildEmbeddingGateway constructs the provider chain named by
// cfg.Mode: local uses only the deterministic hashing provider (for
// tests/offline use), primary talks to an external HTTP embedding
// service in strict mode, and primary_with_fallback wraps the HTTP
// provider in graceful degradation to a NULL embedding on failure.
func buildEmbeddingGateway(cfg config.EmbeddingConfig, logger *zap.Logger) *embedding.Gateway {
	var provider embedding.Provider
	strict := false

	switch cfg.Mode {
	case "local":
		provider = embedding.NewDeterministicProvider(cfg.Dimensions)
	case "primary":
		provider = embedding.NewHTTPProvider(embedding.HTTPProviderConfig{
			Name:       "primary",
			BaseURL:    cfg.PrimaryBaseURL,
			APIKey:     cfg.PrimaryAPIKey,
			Model:      cfg.PrimaryModel,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.RequestTimeout,
		})
		strict = true
	default: // primary_with_fallback
		primary := embedding.NewHTTPProvider(embedding.HTTPProviderConfig{
			Name:       "primary",
			BaseURL:    cfg.PrimaryBaseURL,
			APIKey:     cfg.PrimaryAPIKey,
			Model:      cfg.PrimaryModel,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.RequestTimeout,
		})
		provider = embedding.NewFallbackWrapper(primary)
	}

	return embedding.NewGateway(embedding.GatewayConfig{
		Provider: provider,
		Policy: embedding.RetryPolicy{
			MaxRetries:   cfg.MaxRetries,
			InitialDelay: cfg.RetryBaseDelay,
			MaxDelay:     cfg.RetryMaxDelay,
			Multiplier:   2.0,
			Jitter:       true,
		},
		RateRPS:   cfg.RateLimitRPS,
		RateBurst: cfg.RateLimitBurst,
		Strict:    strict,
		Logger:    logger,
	})
}

// buildSalienceParams converts config.DecayConfig's duration-based tau
// into the memory package's float-days representation.
func buildSalienceParams(cfg config.DecayConfig) memory.SalienceParams {
	return memory.SalienceParams{
		BaseTau:       cfg.BaseTau.Hours() / 24,
		LTPMultiplier: cfg.LTPBoost,
		Alpha:         cfg.FrequencyAlpha,
		Beta:          cfg.ImportanceBeta,
	}
}

// buildConflictParams maps config.ConflictConfig onto the resolver's
// threshold set. AutoSupersessionConfidence is documented as a
// confidence delta, so it maps directly onto AutoSupersessionDelta;
// RefinementConfidenceBump has no config-level override and keeps its
// literal default.
func buildConflictParams(cfg config.ConflictConfig) memory.ConflictParams {
	params := memory.DefaultConflictParams()
	if cfg.AutoSupersessionConfidence > 0 {
		params.AutoSupersessionDelta = cfg.AutoSupersessionConfidence
	}
	return params
}

// Start launches the socket server, the background consolidation
// loop, the embedder-queue gauge ticker, and the HTTP + metrics
// servers, all non-blocking.
func (s *Server) Start() error {
	s.socketCtx, s.socketCancel = context.WithCancel(context.Background())
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.socketServer.Serve(s.socketCtx); err != nil {
			s.logger.Error("socket server stopped", zap.Error(err))
		}
	}()
	s.logger.Info("socket server started", zap.String("addr", s.cfg.Service.SocketAddr))

	s.service.Consolidator.Start(s.socketCtx)

	s.embedderTickerDone = make(chan struct{})
	s.wg.Add(1)
	go s.runEmbedderGauge()

	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("start http server: %w", err)
	}
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("start metrics server: %w", err)
	}

	s.logger.Info("all servers started",
		zap.String("http_addr", s.cfg.Service.HTTPAddr),
		zap.String("metrics_addr", s.cfg.Service.MetricsAddr),
	)
	return nil
}

func (s *Server) runEmbedderGauge() {
	defer s.wg.Done()
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.metricsCollector.SetEmbedderQueueLength(s.service.Embedder.QueueLen())
		case <-s.embedderTickerDone:
			return
		}
	}
}

func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	healthHandler := &handlers.HealthHandler{Service: s.service, Logger: s.logger}
	versionHandler := handlers.VersionHandler{}
	ingestHandler := &handlers.IngestHandler{Service: s.service, Logger: s.logger}
	searchHandler := &handlers.SearchHandler{Service: s.service, Logger: s.logger}
	consolidateHandler := &handlers.ConsolidateHandler{Service: s.service, Logger: s.logger}
	embedHandler := &handlers.EmbedHandler{Service: s.service, Logger: s.logger}
	getHandler := &handlers.GetHandler{Service: s.service, Logger: s.logger}
	workflowHandler := &handlers.WorkflowHandler{Service: s.service, Logger: s.logger}

	mux.Handle("/health", healthHandler)
	mux.Handle("/version", versionHandler)
	mux.Handle("/ingest", ingestHandler)
	mux.Handle("/search", searchHandler)
	mux.Handle("/consolidate", consolidateHandler)
	mux.Handle("/embed", embedHandler)
	mux.Handle("/get", getHandler)
	mux.Handle("/workflow", workflowHandler)

	rateLimiterCtx, cancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = cancel

	handler := api.Chain(mux,
		api.Recovery(s.logger),
		api.RequestID(),
		api.SecurityHeaders(),
		api.RequestLogger(s.logger),
		api.OTelTracing(),
		api.MetricsMiddleware(s.metricsCollector),
		api.CORS(nil),
		api.RateLimiter(rateLimiterCtx, 50, 100),
	)

	serverConfig := server.Config{
		Addr:            s.cfg.Service.HTTPAddr,
		ReadTimeout:     s.cfg.Service.ReadTimeout,
		WriteTimeout:    s.cfg.Service.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Service.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Service.ShutdownTimeout,
	}
	s.httpManager = server.NewManager(handler, serverConfig, s.logger)
	if err := s.httpManager.Start(); err != nil {
		return err
	}
	s.logger.Info("http server started", zap.String("addr", s.cfg.Service.HTTPAddr))
	return nil
}

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            s.cfg.Service.MetricsAddr,
		ReadTimeout:     s.cfg.Service.ReadTimeout,
		WriteTimeout:    s.cfg.Service.WriteTimeout,
		ShutdownTimeout: s.cfg.Service.ShutdownTimeout,
	}
	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)
	if err := s.metricsManager.Start(); err != nil {
		return err
	}
	s.logger.Info("metrics server started", zap.String("addr", s.cfg.Service.MetricsAddr))
	return nil
}

// WaitForShutdown blocks until SIGINT/SIGTERM or a server-reported
// error, then runs the full shutdown sequence.
func (s *Server) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		s.logger.Info("shutdown signal received")
	case err := <-s.httpManager.Errors():
		if err != nil {
			s.logger.Error("http server error", zap.Error(err))
		}
	case err := <-s.metricsManager.Errors():
		if err != nil {
			s.logger.Error("metrics server error", zap.Error(err))
		}
	}

	s.Shutdown()
}

// Shutdown tears every component down in reverse-dependency order.
func (s *Server) Shutdown() {
	s.logger.Info("starting graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Service.ShutdownTimeout)
	defer cancel()

	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("http server shutdown error", zap.Error(err))
		}
	}
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("metrics server shutdown error", zap.Error(err))
		}
	}

	if s.embedderTickerDone != nil {
		close(s.embedderTickerDone)
	}
	s.service.Consolidator.Stop()
	s.service.Embedder.Stop()

	if s.socketCancel != nil {
		s.socketCancel()
	}
	_ = s.socketServer.Close()

	s.wg.Wait()

	if s.graph != nil {
		if err := s.graph.Close(ctx); err != nil {
			s.logger.Error("graph store close error", zap.Error(err))
		}
	}
	if s.pool != nil {
		if err := s.pool.Close(); err != nil {
			s.logger.Error("db pool close error", zap.Error(err))
		}
	}
	if s.telemetry != nil {
		if err := s.telemetry.Shutdown(ctx); err != nil {
			s.logger.Error("telemetry shutdown error", zap.Error(err))
		}
	}

	s.logger.Info("shutdown complete")
}
