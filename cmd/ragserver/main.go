package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/studyowl/ragserver/internal/chunker"
	"github.com/studyowl/ragserver/internal/config"
	"github.com/studyowl/ragserver/internal/domain"
	"github.com/studyowl/ragserver/internal/extract"
	"github.com/studyowl/ragserver/internal/index"
	logpkg "github.com/studyowl/ragserver/internal/logger"
	"github.com/studyowl/ragserver/internal/metrics"
	"github.com/studyowl/ragserver/internal/repository/embcache"
	chiTransport "github.com/studyowl/ragserver/internal/transport/chi"
	openaiTransport "github.com/studyowl/ragserver/internal/transport/openai"
	"github.com/studyowl/ragserver/internal/transport/youtube"
	channeluc "github.com/studyowl/ragserver/internal/usecase/channel"
	chatuc "github.com/studyowl/ragserver/internal/usecase/chat"
	embeddinguc "github.com/studyowl/ragserver/internal/usecase/embedding"
	healthuc "github.com/studyowl/ragserver/internal/usecase/health"
	ingestuc "github.com/studyowl/ragserver/internal/usecase/ingest"
	libraryuc "github.com/studyowl/ragserver/internal/usecase/library"
	retrievaluc "github.com/studyowl/ragserver/internal/usecase/retrieval"
	videouc "github.com/studyowl/ragserver/internal/usecase/video"
	"github.com/studyowl/ragserver/internal/version"
)

func main() {
	// .env is optional: real deployments pass env vars directly.
	_ = godotenv.Load()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting ragserver API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Bool("whisper_enabled", cfg.Whisper.Enabled),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterIngestMetrics()
	metrics.RegisterCompletionMetrics()

	// The knowledge index lives in process memory: empty at start, gone at
	// shutdown. Everything below feeds or reads this one instance.
	idx := index.New()
	metrics.RegisterIndexSizeGauge(func() float64 { return float64(idx.Len()) })

	// Embedding cache: Redis when configured, in-process map otherwise.
	var (
		cacheStore  embcache.Store
		cachePinger healthuc.CachePinger
	)
	if len(cfg.Cache.Addrs) > 0 {
		redisStore, err := embcache.NewRedisStore(embcache.RedisConfig{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
			TTL:      time.Duration(cfg.Cache.TTLHours) * time.Hour,
		})
		if err != nil {
			logger.Fatal("Failed to create embedding cache store", zap.Error(err))
		}
		defer redisStore.Close()
		cacheStore = redisStore
		cachePinger = redisStore
		logger.Info("Embedding cache backed by Redis", zap.Strings("addrs", cfg.Cache.Addrs))
	} else {
		cacheStore = embcache.NewMemoryStore()
		logger.Info("Embedding cache is in-process")
	}

	// Build embedder chain — composition root
	// Take the first vectorizer config
	var vecCfg config.VectorizerConfig
	var provName string
	for _, vc := range cfg.Embedding.Vectorizers {
		vecCfg = vc
		provName = vc.Provider
		break
	}
	provCfg := cfg.Embedding.Providers[provName]

	if vecCfg.Model == "" {
		def := domain.DefaultVectorConfig()
		vecCfg.Model, vecCfg.Dimensions = def.Model, def.Dimensions
	}
	// Fill dimensions from the model table when the config leaves them unset.
	if vecCfg.Dimensions == 0 {
		if d, ok := domain.ModelDimensions[vecCfg.Model]; ok {
			vecCfg.Dimensions = d
		}
	}

	docEmbedder := buildEmbedder(
		provName, provCfg, vecCfg, vecCfg.DocumentInstruction,
		cacheStore, logger,
	)
	queryEmbedder := buildEmbedder(
		provName, provCfg, vecCfg, vecCfg.QueryInstruction,
		cacheStore, logger,
	)
	logger.Info("Embedders created",
		zap.String("provider", provName),
		zap.String("model", vecCfg.Model),
		zap.Int("dimensions", vecCfg.Dimensions),
	)

	splitter, err := chunker.New(chunker.Config{
		ChunkSize:    cfg.Ingest.ChunkSize,
		Overlap:      cfg.Ingest.ChunkOverlap,
		MinChunkSize: cfg.Ingest.MinChunkSize,
	})
	if err != nil {
		logger.Fatal("Invalid chunking config", zap.Error(err))
	}

	pipeline := ingestuc.NewPipeline(splitter, docEmbedder, idx)

	docSvc := ingestuc.New(pipeline, extract.NewRegistry()).
		WithMaxUploadBytes(int64(cfg.Ingest.MaxUploadMB) << 20)

	ctx := context.Background()
	yt, err := youtube.NewClient(ctx, youtube.ClientConfig{
		APIKey:            cfg.YouTube.APIKey,
		CaptionLang:       cfg.YouTube.CaptionLang,
		RequestsPerSecond: cfg.YouTube.RequestsPerSecond,
		Burst:             cfg.YouTube.Burst,
		Logger:            logger,
	})
	if err != nil {
		logger.Fatal("Failed to create youtube client", zap.Error(err))
	}

	// Whisper path is optional. Pass nil interface values (not typed nil
	// pointers!) so the services' nil checks stay truthful.
	var videoSvc *videouc.Service
	var channelSvc *channeluc.Service
	if cfg.Whisper.Enabled {
		dl := youtube.NewDownloader(logger)
		stt := openaiTransport.NewTranscriber(&openaiTransport.TranscriberConfig{
			APIKey:   cfg.Whisper.APIKey,
			BaseURL:  cfg.Whisper.BaseURL,
			Model:    cfg.Whisper.Model,
			Language: cfg.Whisper.Language,
			Logger:   logger,
		})
		videoSvc = videouc.New(yt, yt, dl, stt, idx, pipeline)
		channelSvc = channeluc.New(yt, yt, dl, stt, idx, pipeline)
	} else {
		videoSvc = videouc.New(yt, yt, nil, nil, idx, pipeline)
		channelSvc = channeluc.New(yt, yt, nil, nil, idx, pipeline)
	}
	channelSvc = channelSvc.WithMaxVideos(cfg.YouTube.MaxChannelVideos)

	retrievalSvc := retrievaluc.New(queryEmbedder, idx).
		WithTopK(cfg.Retrieval.DefaultTopK, cfg.Retrieval.MaxTopK)

	chatClient := openaiTransport.NewChatClient(&openaiTransport.ChatConfig{
		APIKey:      cfg.Chat.APIKey,
		BaseURL:     cfg.Chat.BaseURL,
		Model:       cfg.Chat.Model,
		MaxTokens:   cfg.Chat.MaxTokens,
		Temperature: cfg.Chat.Temperature,
		Logger:      logger,
	})
	chatSvc := chatuc.New(retrievalSvc, chatClient).
		WithMaxHistoryTurns(cfg.Chat.MaxHistoryTurns)
	if cfg.Chat.SystemPrompt != "" {
		chatSvc = chatSvc.WithSystemPrompt(cfg.Chat.SystemPrompt)
	}

	librarySvc := libraryuc.New(idx)
	healthSvc := healthuc.New(cachePinger, newEmbeddingHealthChecker(docEmbedder))

	server := chiTransport.NewServer(
		docSvc, videoSvc, channelSvc, retrievalSvc, chatSvc, librarySvc, healthSvc, logger,
	)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully",
		zap.Int("chunks_indexed", idx.Len()))
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction
func buildEmbedder(
	provName string,
	provCfg config.ProviderConfig,
	vecCfg config.VectorizerConfig,
	instruction string,
	cache embcache.Store,
	logger *zap.Logger,
) domain.Embedder {
	// Base provider (with transport metrics built-in)
	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     provCfg.APIKey,
		BaseURL:    provCfg.BaseURL,
		Model:      vecCfg.Model,
		Dimensions: vecCfg.Dimensions,
		Provider:   provName,
		Logger:     logger,
	})

	// Cached
	var embedder domain.Embedder = base
	if cache != nil {
		embedder = embcache.New(
			base, cache, vecCfg.Model, vecCfg.Dimensions,
			metrics.EmbeddingCacheTotal, logger,
		)
	}

	// Instrumented (logging + batch splitting)
	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, provName, vecCfg.Model, logger)

	// Instruction prefix (outermost — cache key includes instruction)
	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction)
	}

	return embedder
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
