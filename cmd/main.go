package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog/log"

	grpcapi "ai-speech-upload-service/internal/api/grpc"
	"ai-speech-upload-service/internal/app"
	"ai-speech-upload-service/internal/config"
	"ai-speech-upload-service/internal/events"
	httpapi "ai-speech-upload-service/internal/http"
	"ai-speech-upload-service/internal/objectstore"
	objmemory "ai-speech-upload-service/internal/objectstore/memory"
	"ai-speech-upload-service/internal/objectstore/s3store"
	"ai-speech-upload-service/internal/observability"
	"ai-speech-upload-service/internal/observability/logging"
	"ai-speech-upload-service/internal/service/assembly"
	"ai-speech-upload-service/internal/service/ledger"
	"ai-speech-upload-service/internal/service/session"
	"ai-speech-upload-service/internal/service/stt/provider"
	"ai-speech-upload-service/internal/store"
	"ai-speech-upload-service/internal/store/dynamo"
	"ai-speech-upload-service/internal/store/memory"
)

// maxLocalUploadBytes bounds a single chunk PUT to the in-memory object store.
const maxLocalUploadBytes = 32 * 1024 * 1024

func main() {
	cfg := config.Load()
	ctx := context.Background()

	logging.Init(logging.Config{
		Level:      cfg.Observability.LogLevel,
		Format:     cfg.Observability.LogFormat,
		TimeFormat: time.RFC3339,
	})

	sessionStore, chunkStore, err := newStores(ctx, cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create session store")
	}

	objects, uploads, err := newObjectStore(ctx, cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create object store")
	}

	transcriber, err := provider.New(ctx, cfg.STT)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create STT provider")
	}
	if c, ok := transcriber.(io.Closer); ok {
		defer c.Close()
	}

	// Kafka publisher with separate topics for session lifecycle and chunk confirmations
	publisher := events.New(&events.Config{
		Enabled:       cfg.Kafka.Enabled,
		Brokers:       cfg.Kafka.Brokers,
		TopicSessions: cfg.Kafka.TopicSessions,
		TopicChunks:   cfg.Kafka.TopicChunks,
		Principal:     cfg.Kafka.Principal,
	})
	defer publisher.Close()

	sessions := session.NewManager(sessionStore, publisher)
	chunkLedger := ledger.New(sessions, chunkStore, objects, publisher, ledger.Config{
		PresignTTL:    cfg.Storage.PresignTTL,
		VerifyUploads: cfg.Ledger.VerifyUploads,
	})
	coordinator := assembly.NewWithLimits(sessions, chunkLedger, objects, transcriber, assembly.Limits{
		MaxArtifactBytes: cfg.Assembly.MaxArtifactBytes,
		MaxChunks:        cfg.Assembly.MaxChunks,
		Timeout:          cfg.Assembly.Timeout,
	})

	checks := []observability.ReadinessCheck{sessionStore, objects}
	if chunkStore.Name() != sessionStore.Name() {
		checks = append(checks, chunkStore)
	}

	application := app.New(cfg, app.Services{
		Sessions:  sessions,
		Ledger:    chunkLedger,
		Assembly:  coordinator,
		Readiness: checks,
		Uploads:   uploads,
	})
	if err := application.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	// Observability server: /metrics, /healthz, /readyz
	obs := observability.NewServer(cfg.Observability.MetricsAddr, checks...)
	obs.Start()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Service.HTTPPort,
		Handler:           httpapi.NewRouter(application),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("Speech Upload Service HTTP API started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP serve failed")
		}
	}()

	lis, err := net.Listen("tcp", ":"+cfg.Service.GRPCPort)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to listen for gRPC")
	}
	grpcServer := grpcapi.New(checks)
	watchCtx, stopWatch := context.WithCancel(ctx)
	go grpcServer.Watch(watchCtx, grpcapi.DefaultCheckInterval)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatal().Err(err).Msg("gRPC serve failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	stopWatch()
	grpcServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown failed")
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Observability shutdown failed")
	}
	application.Shutdown()
}

// newStores builds the session and chunk stores for the configured backend.
func newStores(ctx context.Context, cfg config.StoreConfig) (store.SessionStore, store.ChunkStore, error) {
	switch cfg.Backend {
	case "", "memory":
		log.Warn().Msg("Using in-memory session store, state is lost on restart")
		s := memory.New()
		return s, s, nil
	case "dynamodb":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, nil, fmt.Errorf("load aws config: %w", err)
		}
		client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
		})
		return dynamo.NewSessionStore(client, cfg.SessionsTable), dynamo.NewChunkStore(client, cfg.ChunksTable), nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// newObjectStore builds the object store. The memory backend also returns
// the handler that accepts uploads on its signed URLs.
func newObjectStore(ctx context.Context, cfg config.StorageConfig) (objectstore.Store, http.Handler, error) {
	switch cfg.Backend {
	case "", "memory":
		log.Warn().Str("baseUrl", cfg.BaseURL).Msg("Using in-memory object store, uploads are served by this process")
		s := objmemory.New(cfg.BaseURL, cfg.SigningKey)
		return s, s.Handler(maxLocalUploadBytes), nil
	case "s3":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, nil, fmt.Errorf("load aws config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
			o.UsePathStyle = cfg.UsePathStyle
		})
		return s3store.New(client, cfg.Bucket), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
