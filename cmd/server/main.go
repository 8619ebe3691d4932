// Command server wires the medchain process: ledger storage, event sinks,
// decision engines, proof anchoring and the HTTP surface. Business logic
// lives in the internal packages; main only assembles and supervises.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"medchain/internal/anchor"
	"medchain/internal/authenticity"
	authmetrics "medchain/internal/authenticity/metrics"
	"medchain/internal/identity/token"
	oraclehandler "medchain/internal/oracle/handler"
	"medchain/internal/platform/config"
	"medchain/internal/platform/httpserver"
	"medchain/internal/platform/logger"
	platmetrics "medchain/internal/platform/metrics"
	platredis "medchain/internal/platform/redis"
	"medchain/internal/ratelimit"
	"medchain/internal/registry"
	"medchain/internal/registry/accesscontrol"
	"medchain/internal/registry/events"
	registryhandler "medchain/internal/registry/handler"
	regmetrics "medchain/internal/registry/metrics"
	regmodels "medchain/internal/registry/models"
	"medchain/internal/registry/store"
	"medchain/internal/shortage"
	shortagemetrics "medchain/internal/shortage/metrics"
	httptransport "medchain/internal/transport/http"
	"medchain/pkg/domain"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ledgerStore, err := openStore(ctx, cfg.Ledger)
	if err != nil {
		return fmt.Errorf("open ledger store: %w", err)
	}
	defer ledgerStore.Close()

	redisClient, err := platredis.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	sink := events.Sink(events.NewLogSink(log))
	var kafkaSink *events.KafkaSink
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaSink, err = events.NewKafkaSink(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		sink = events.NewMultiSink(events.NewLogSink(log), kafkaSink)
	}

	proofSink, err := openProofSink(cfg.Sink, redisClient)
	if err != nil {
		return fmt.Errorf("open proof sink: %w", err)
	}

	owner := domain.Identity(cfg.Server.OwnerIdentity)
	oracleID := domain.Identity(cfg.Server.OracleIdentity)
	roles := accesscontrol.New(owner)
	roles.Grant(oracleID, domain.RoleIssuer)
	roles.Grant(oracleID, domain.RoleOracle)

	ledgerMetrics := regmetrics.New()
	shortageEngine := shortage.NewEngine(shortage.NewHistoryCache(), shortagemetrics.New(), log)
	authEngine := authenticity.NewEngine(authmetrics.New(), log)

	var (
		registryFeature httptransport.Registrar
		anchorRegistry  anchor.Registry
	)
	if cfg.Server.DemoMode {
		demo := registry.NewDemoLedger(ledgerStore, sink, ledgerMetrics)
		registryFeature = registryhandler.NewDemo(demo, log)
		anchorRegistry = demoAnchorAdapter{demo: demo}
		log.Info("running in demo mode: ledger role checks disabled")
	} else {
		ledger := registry.NewLedger(ledgerStore, roles,
			registry.WithSink(sink),
			registry.WithMetrics(ledgerMetrics),
			registry.WithLogger(log),
		)
		registryFeature = registryhandler.New(ledger, log)
		anchorRegistry = ledger
	}

	anchorer := anchor.NewService(anchorRegistry, proofSink,
		anchor.WithSinkTimeout(cfg.Sink.Timeout),
		anchor.WithLogger(log),
	)
	oracleFeature := oraclehandler.New(shortageEngine, authEngine, anchorer, oracleID, log)

	tokens := token.NewService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer)

	buckets := ratelimit.BucketStore(ratelimit.NewMemoryBuckets())
	if redisClient != nil {
		buckets = ratelimit.NewRedisBuckets(redisClient.Client, "ratelimit:")
	}
	limiter := ratelimit.NewLimiter(buckets, cfg.Server.RateLimit, time.Minute, log)

	checks := map[string]func(ctx context.Context) error{}
	if redisClient != nil {
		checks["redis"] = redisClient.Health
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:    log,
		Metrics:   platmetrics.New(),
		Validator: tokens,
		RateLimit: ratelimit.Middleware(limiter, log),
		Features:  []httptransport.Registrar{registryFeature, oracleFeature},
		Checks:    checks,
	})

	srv := httpserver.New(cfg.Server.Addr, router)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	log.Info("medchain started",
		"addr", cfg.Server.Addr,
		"ledger_backend", cfg.Ledger.Backend,
		"demo_mode", cfg.Server.DemoMode,
	)

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	if kafkaSink != nil {
		if err := kafkaSink.Close(shutdownCtx); err != nil {
			log.Warn("kafka sink close failed", "error", err)
		}
	}
	return nil
}

func openStore(ctx context.Context, cfg config.Ledger) (store.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return store.NewMemory(), nil
	case "leveldb":
		return store.OpenLevelDB(cfg.LevelDBPath)
	case "postgres":
		return store.NewPostgres(ctx, cfg.PostgresURL)
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Backend)
	}
}

func openProofSink(cfg config.Sink, redisClient *platredis.Client) (anchor.ObjectSink, error) {
	switch cfg.Backend {
	case "":
		return nil, nil
	case "memory":
		return anchor.NewMemorySink(), nil
	case "redis":
		if redisClient == nil {
			return nil, fmt.Errorf("redis sink selected but MEDCHAIN_REDIS_URL is not set")
		}
		return anchor.NewRedisSink(redisClient.Client, "proof:"), nil
	case "s3":
		client, err := minio.New(cfg.S3Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
			Secure: cfg.S3UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		return anchor.NewS3Sink(client, cfg.S3Bucket), nil
	default:
		return nil, fmt.Errorf("unknown sink backend %q", cfg.Backend)
	}
}

// demoAnchorAdapter lets the oracle anchor through the permission-free
// ledger. Demo shortage alerts are fire-and-forget, so the returned
// prediction record is synthesized rather than read back.
type demoAnchorAdapter struct {
	demo *registry.DemoLedger
}

func (a demoAnchorAdapter) RegisterBatch(ctx context.Context, caller domain.Identity, hash domain.Hash, _ string) (regmodels.DrugBatch, error) {
	return a.demo.RegisterBatch(ctx, caller, hash)
}

func (a demoAnchorAdapter) RecordPrediction(ctx context.Context, caller domain.Identity, hash domain.Hash, drugName, location string, probability uint32) (regmodels.ShortagePrediction, error) {
	if err := a.demo.RecordShortage(ctx, caller, drugName, location, probability); err != nil {
		return regmodels.ShortagePrediction{}, err
	}
	return regmodels.ShortagePrediction{
		Hash:        hash,
		DrugName:    drugName,
		Location:    location,
		Probability: probability,
		Oracle:      caller,
	}, nil
}
