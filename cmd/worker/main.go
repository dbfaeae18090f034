package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/footfallfinder/footfall-analysis-service/internal/app"
	"github.com/footfallfinder/footfall-analysis-service/internal/infra/config"
	"github.com/footfallfinder/footfall-analysis-service/internal/infra/email"
	"github.com/footfallfinder/footfall-analysis-service/internal/infra/ffmpeg"
	"github.com/footfallfinder/footfall-analysis-service/internal/infra/metrics"
	miniostorage "github.com/footfallfinder/footfall-analysis-service/internal/infra/minio"
	"github.com/footfallfinder/footfall-analysis-service/internal/infra/postgres"
	"github.com/footfallfinder/footfall-analysis-service/internal/infra/rabbitmq"
	"github.com/footfallfinder/footfall-analysis-service/internal/infra/tracing"
	"github.com/footfallfinder/footfall-analysis-service/internal/usecase"
	"github.com/footfallfinder/footfall-analysis-service/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting footfall analysis worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (non-fatal if the collector is unavailable)
	tp, err := tracing.InitTracer(ctx, tracing.Config{
		Endpoint:    cfg.JaegerEndpoint,
		ServiceName: cfg.ServiceName,
		SampleRatio: cfg.TraceSampleRatio,
	})
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(ctx)
	}

	// Database
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	fatalOnErr(err, "connect to postgres")
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, cfg.DatabaseURL); err != nil {
		log.Warn("migration warning", zap.Error(err))
	}

	// MinIO
	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:      cfg.MinIOEndpoint,
		AccessKey:     cfg.MinIOAccessKey,
		SecretKey:     cfg.MinIOSecretKey,
		UseSSL:        cfg.MinIOUseSSL,
		UploadBucket:  cfg.MinIOUploadBucket,
		ArchiveBucket: cfg.MinIOArchiveBucket,
	})
	fatalOnErr(err, "create minio storage")
	fatalOnErr(storage.EnsureBuckets(ctx), "ensure minio buckets")

	// RabbitMQ publisher connection
	rmqConn, err := amqp.Dial(cfg.RabbitMQURL)
	fatalOnErr(err, "connect to rabbitmq for publisher")
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, cfg.RabbitMQExchange)
	fatalOnErr(err, "create rabbitmq publisher")
	defer pub.Close()

	statusPub := rabbitmq.NewStatusPublisher(pub)
	dlqPub := rabbitmq.NewDLQPublisher(pub, cfg.RabbitMQDLQ)

	// Analysis pipeline
	analyzer, err := app.NewAnalyzer(cfg, log)
	fatalOnErr(err, "build analysis pipeline")

	repo := postgres.NewAnalysisRepository(pool)
	archiver := ffmpeg.NewFrameArchiver()
	notifier := email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, log)

	uc := usecase.NewProcessJobUseCase(
		repo, storage, analyzer, archiver,
		statusPub, dlqPub, notifier,
		log,
		usecase.ProcessJobConfig{
			TempDir:    cfg.TempDir,
			MaxRetries: cfg.MaxRetries,
		},
	)

	metricsSrv := metrics.StartMetricsServer(ctx, cfg.MetricsPort, log)

	// Consumer (worker pool)
	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         cfg.RabbitMQURL,
		Queue:       cfg.RabbitMQAnalysisQueue,
		Exchange:    cfg.RabbitMQExchange,
		DLQ:         cfg.RabbitMQDLQ,
		StatusQueue: cfg.RabbitMQStatusQueue,
		Prefetch:    cfg.RabbitMQPrefetch,
		WorkerCount: cfg.WorkerCount,
		BaseDelayMs: cfg.RetryBaseDelayMs,
	}, uc.Execute, log)
	fatalOnErr(err, "create consumer")

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	log.Info("footfall analysis worker started, consuming messages")

	if err := consumer.Start(ctx); err != nil {
		log.Error("consumer error", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Shutdown(shutdownCtx)

	consumer.Close()
	log.Info("footfall analysis worker stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
