// Command server runs the KYC verification service: the HTTP API, the audit
// persistence worker, and the document retention sweep. main wires
// dependencies from configuration and keeps the lifecycle small; business
// logic lives in the internal service packages.
package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/platform/audit"
	auditmemory "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/platform/audit/store/memory"
	auditpostgres "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/platform/audit/store/postgres"
	auditstream "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/platform/audit/stream"
	auditworker "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/platform/audit/worker"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/platform/middleware/auth"

	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/document/blobstore"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/document/envelope"
	documentmetrics "github.com/ResolveEnterteinment/crypto-stack-sub008/internal/document/metrics"
	documentservice "github.com/ResolveEnterteinment/crypto-stack-sub008/internal/document/service"
	documentstore "github.com/ResolveEnterteinment/crypto-stack-sub008/internal/document/store"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/notification"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/platform/config"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/platform/httpserver"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/platform/logger"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/platform/postgres"
	redisinfra "github.com/ResolveEnterteinment/crypto-stack-sub008/internal/platform/redis"
	s3infra "github.com/ResolveEnterteinment/crypto-stack-sub008/internal/platform/s3"
	snsinfra "github.com/ResolveEnterteinment/crypto-stack-sub008/internal/platform/sns"
	sessionmetrics "github.com/ResolveEnterteinment/crypto-stack-sub008/internal/session/metrics"
	sessionservice "github.com/ResolveEnterteinment/crypto-stack-sub008/internal/session/service"
	sessionstore "github.com/ResolveEnterteinment/crypto-stack-sub008/internal/session/store"
	httptransport "github.com/ResolveEnterteinment/crypto-stack-sub008/internal/transport/http"
	verificationmetrics "github.com/ResolveEnterteinment/crypto-stack-sub008/internal/verification/metrics"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/verification/providers"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/verification/providers/vendora"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/verification/providers/vendorb"
	verificationservice "github.com/ResolveEnterteinment/crypto-stack-sub008/internal/verification/service"
	verificationstore "github.com/ResolveEnterteinment/crypto-stack-sub008/internal/verification/store"
)

const (
	auditInboxSize  = 1024
	purgeInterval   = time.Hour
	shutdownTimeout = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.FromEnv()
	log := logger.New()

	masterKey, err := loadMasterKey(cfg.EncryptionMasterKey, log)
	if err != nil {
		return err
	}
	protector, err := envelope.NewAESProtector(masterKey)
	if err != nil {
		return err
	}

	db, err := postgres.Open(ctx, cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	} else {
		log.Warn("postgres not configured, using in-memory stores")
	}

	auditStore, closeStream, err := buildAuditStore(db, cfg.Kafka, log)
	if err != nil {
		return err
	}
	defer closeStream()
	asyncAudit, worker := auditworker.NewAsync(auditStore, auditInboxSize, log)
	auditor := audit.NewPublisher(asyncAudit)

	registry := providers.NewRegistry()
	if err := registerVendors(registry, cfg.Providers, log); err != nil {
		return err
	}
	router := providers.NewRouter(registry, cfg.Providers.Default, cfg.Providers.DistributeByUser)

	sessionStore, closeSessions, err := buildSessionStore(cfg.Redis, log)
	if err != nil {
		return err
	}
	defer closeSessions()
	sessions := sessionservice.NewService(sessionStore, auditor, sessionmetrics.New(), cfg.Session.Timeout, log)

	verification := verificationservice.NewService(
		buildVerificationStore(db),
		router,
		sessions,
		protector,
		auditor,
		buildNotificationSink(ctx, cfg.SNS, log),
		verificationmetrics.New(),
		log,
	)

	blobs, err := buildBlobStore(ctx, cfg.S3, log)
	if err != nil {
		return err
	}
	documents := documentservice.NewService(
		buildDocumentStore(db), blobs, protector, auditor, documentmetrics.New(), cfg.Document, log)

	handler := httptransport.NewHandler(verification, sessions, documents, log)
	srv := httpserver.New(cfg.Server.Addr,
		httptransport.NewRouter(handler, auth.NewValidator(cfg.Server.JWTSigningKey), log))

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		err := worker.Run(groupCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	group.Go(func() error {
		runRetentionSweep(groupCtx, documents, log)
		return nil
	})

	group.Go(func() error {
		log.Info("starting kyc service", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

// loadMasterKey decodes the configured envelope master key. Without one the
// process generates an ephemeral key so development works out of the box, but
// everything encrypted is unreadable after a restart.
func loadMasterKey(encoded string, log *slog.Logger) ([]byte, error) {
	if encoded == "" {
		log.Warn("no encryption master key configured, generating an ephemeral key")
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate ephemeral master key: %w", err)
		}
		return key, nil
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode encryption master key: %w", err)
	}
	return key, nil
}

// buildAuditStore picks the persistence backend and layers the Kafka mirror
// on top when brokers are configured. The returned close function flushes the
// producer on shutdown.
func buildAuditStore(db *sql.DB, cfg config.KafkaConfig, log *slog.Logger) (audit.Store, func(), error) {
	var store audit.Store
	if db != nil {
		store = auditpostgres.New(db)
	} else {
		store = auditmemory.NewInMemoryStore()
	}

	if len(cfg.Brokers) == 0 {
		return store, func() {}, nil
	}

	client, err := auditstream.NewClient(cfg.Brokers)
	if err != nil {
		return nil, nil, err
	}
	stream := auditstream.New(store, client, cfg.AuditTopic, log)
	closeStream := func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := stream.Close(flushCtx); err != nil {
			log.Error("close audit stream", "error", err)
		}
	}
	log.Info("audit events mirrored to kafka", "topic", cfg.AuditTopic)
	return stream, closeStream, nil
}

// registerVendors registers every adapter whose configuration is complete.
// The default adapter must end up registered.
func registerVendors(registry *providers.Registry, cfg config.ProvidersConfig, log *slog.Logger) error {
	if err := cfg.VendorA.ValidateVendor(vendora.Name); err != nil {
		log.Warn("vendor not registered", "vendor", vendora.Name, "reason", err)
	} else if err := registry.Register(vendora.New(cfg.VendorA, log)); err != nil {
		return err
	}

	if err := cfg.VendorB.ValidateVendor(vendorb.Name); err != nil {
		log.Warn("vendor not registered", "vendor", vendorb.Name, "reason", err)
	} else if err := registry.Register(vendorb.New(cfg.VendorB, log)); err != nil {
		return err
	}

	if _, ok := registry.Get(cfg.Default); !ok {
		return fmt.Errorf("default verification provider %q is not registered", cfg.Default)
	}
	return nil
}

func buildVerificationStore(db *sql.DB) verificationstore.Store {
	if db != nil {
		return verificationstore.NewPostgresStore(db)
	}
	return verificationstore.NewInMemoryStore()
}

func buildDocumentStore(db *sql.DB) documentstore.Store {
	if db != nil {
		return documentstore.NewPostgresStore(db)
	}
	return documentstore.NewInMemoryStore()
}

func buildSessionStore(cfg config.RedisConfig, log *slog.Logger) (sessionstore.Store, func(), error) {
	client, err := redisinfra.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		log.Warn("redis not configured, sessions are in-memory")
		return sessionstore.NewInMemoryStore(), func() {}, nil
	}
	closeClient := func() {
		if err := client.Close(); err != nil {
			log.Error("close redis client", "error", err)
		}
	}
	return sessionstore.NewRedisStore(client.Client), closeClient, nil
}

// buildBlobStore uses S3 when credentials or an endpoint override are
// present; otherwise document ciphertext stays in memory (development only).
func buildBlobStore(ctx context.Context, cfg config.S3Config, log *slog.Logger) (blobstore.BlobStore, error) {
	if cfg.AccessKeyID == "" && cfg.EndpointURL == "" {
		log.Warn("s3 not configured, document blobs are in-memory")
		return blobstore.NewInMemoryStore(), nil
	}
	client, err := s3infra.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return blobstore.NewS3Store(client, cfg.Bucket), nil
}

func buildNotificationSink(ctx context.Context, cfg config.SNSConfig, log *slog.Logger) notification.Sink {
	if cfg.TopicARN == "" {
		log.Warn("sns not configured, notifications go to the log")
		return notification.NewLogSink(log)
	}
	client, err := snsinfra.NewClient(ctx, cfg)
	if err != nil {
		log.Error("sns client unavailable, notifications go to the log", "error", err)
		return notification.NewLogSink(log)
	}
	return notification.NewSNSSink(client, cfg.TopicARN, log)
}

// runRetentionSweep purges documents past the retention window on a fixed
// interval until the context is cancelled.
func runRetentionSweep(ctx context.Context, documents *documentservice.Service, log *slog.Logger) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := documents.PurgeExpired(ctx)
			if err != nil {
				log.Error("document retention sweep failed", "error", err)
				continue
			}
			if purged > 0 {
				log.Info("document retention sweep completed", "purged", purged)
			}
		}
	}
}
