package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/footfallfinder/footfall-analysis-service/internal/app"
	"github.com/footfallfinder/footfall-analysis-service/internal/infra/httpapi"
	"github.com/footfallfinder/footfall-analysis-service/internal/infra/mediatype"
	"github.com/footfallfinder/footfall-analysis-service/internal/infra/metrics"
	miniostorage "github.com/footfallfinder/footfall-analysis-service/internal/infra/minio"
	"github.com/footfallfinder/footfall-analysis-service/internal/infra/postgres"
	"github.com/footfallfinder/footfall-analysis-service/internal/infra/rabbitmq"
	"github.com/footfallfinder/footfall-analysis-service/internal/infra/tracing"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCommand(rt *cliContext) *cobra.Command {
	var withJobs bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, rt, withJobs)
		},
	}

	cmd.Flags().BoolVar(&withJobs, "jobs", false, "Enable the queue-backed /api/v1/jobs endpoints (needs Postgres, MinIO and RabbitMQ)")
	return cmd
}

func serve(ctx context.Context, rt *cliContext, withJobs bool) error {
	cfg, log := rt.cfg, rt.log

	tp, err := tracing.InitTracer(ctx, tracing.Config{
		Endpoint:    cfg.JaegerEndpoint,
		ServiceName: cfg.ServiceName,
		SampleRatio: cfg.TraceSampleRatio,
	})
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(context.Background())
	}

	analyzer, err := app.NewAnalyzer(cfg, log)
	if err != nil {
		return fmt.Errorf("build analysis pipeline: %w", err)
	}

	var jobs *httpapi.JobsBackend
	if withJobs {
		var closeJobs func()
		jobs, closeJobs, err = jobsBackend(ctx, rt)
		if err != nil {
			return err
		}
		defer closeJobs()
	}

	handler := httpapi.NewHandler(analyzer, analyzer.Inflight(), httpapi.NewSessionStore(cfg.SessionTTL), log, httpapi.HandlerConfig{
		MaxUploadBytes: cfg.MaxUploadBytes,
		TempDir:        cfg.TempDir,
		Jobs:           jobs,
	})

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           httpapi.NewRouter(handler, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsSrv := metrics.StartMetricsServer(ctx, cfg.MetricsPort, log)

	errCh := make(chan error, 1)
	go func() {
		log.Info("http api listening", zap.String("addr", srv.Addr), zap.Bool("jobs", jobs != nil))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down http api")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	return srv.Shutdown(shutdownCtx)
}

func jobsBackend(ctx context.Context, rt *cliContext) (*httpapi.JobsBackend, func(), error) {
	cfg, log := rt.cfg, rt.log

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := postgres.RunMigrations(ctx, cfg.DatabaseURL); err != nil {
		log.Warn("migration warning", zap.Error(err))
	}

	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:      cfg.MinIOEndpoint,
		AccessKey:     cfg.MinIOAccessKey,
		SecretKey:     cfg.MinIOSecretKey,
		UseSSL:        cfg.MinIOUseSSL,
		UploadBucket:  cfg.MinIOUploadBucket,
		ArchiveBucket: cfg.MinIOArchiveBucket,
	})
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("create minio storage: %w", err)
	}
	if err := storage.EnsureBuckets(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ensure minio buckets: %w", err)
	}

	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	pub, err := rabbitmq.NewPublisher(conn, cfg.RabbitMQExchange)
	if err != nil {
		conn.Close()
		pool.Close()
		return nil, nil, fmt.Errorf("create rabbitmq publisher: %w", err)
	}
	if err := pub.DeclareTopology(rabbitmq.ConsumerConfig{
		Queue:       cfg.RabbitMQAnalysisQueue,
		Exchange:    cfg.RabbitMQExchange,
		DLQ:         cfg.RabbitMQDLQ,
		StatusQueue: cfg.RabbitMQStatusQueue,
	}); err != nil {
		pub.Close()
		conn.Close()
		pool.Close()
		return nil, nil, err
	}

	closeAll := func() {
		pub.Close()
		conn.Close()
		pool.Close()
	}
	return &httpapi.JobsBackend{
		Checker:    mediatype.NewChecker(cfg.MaxUploadBytes),
		Storage:    storage,
		Repo:       postgres.NewAnalysisRepository(pool),
		Publisher:  rabbitmq.NewAnalysisRequestPublisher(pub),
		MaxRetries: cfg.MaxRetries,
	}, closeAll, nil
}
