// Command consumer reads raw batch documents from a Kafka topic, runs each
// one through a triage pipeline, and commits the offset once the batch has
// a complete result. Poison batches (invalid JSON, unknown envelope) are
// logged and committed rather than retried forever.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bjaus/triage"
)

type config struct {
	brokers        []string
	topic          string
	groupID        string
	categories     []string
	handlerTimeout time.Duration
	metricsAddr    string
	logLevel       string
	serviceName    string
}

func loadConfig() (*config, error) {
	// .env file is optional
	godotenv.Load()

	cfg := &config{}

	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		return nil, fmt.Errorf("KAFKA_BROKERS is required")
	}
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			cfg.brokers = append(cfg.brokers, b)
		}
	}
	if len(cfg.brokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must contain at least one broker address")
	}

	cfg.topic = os.Getenv("KAFKA_TOPIC")
	if cfg.topic == "" {
		return nil, fmt.Errorf("KAFKA_TOPIC is required")
	}

	cfg.groupID = os.Getenv("KAFKA_GROUP_ID")
	if cfg.groupID == "" {
		cfg.groupID = "triage-consumer"
	}

	for _, c := range strings.Split(os.Getenv("TRIAGE_CATEGORIES"), ",") {
		if c = strings.TrimSpace(c); c != "" {
			cfg.categories = append(cfg.categories, c)
		}
	}

	cfg.handlerTimeout = 30 * time.Second
	if v := os.Getenv("HANDLER_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("HANDLER_TIMEOUT: %w", err)
		}
		cfg.handlerTimeout = d
	}

	cfg.metricsAddr = os.Getenv("METRICS_ADDR")
	if cfg.metricsAddr == "" {
		cfg.metricsAddr = ":9090"
	}

	cfg.logLevel = os.Getenv("LOG_LEVEL")
	if cfg.logLevel == "" {
		cfg.logLevel = "info"
	}

	cfg.serviceName = os.Getenv("SERVICE_NAME")
	if cfg.serviceName == "" {
		cfg.serviceName = "triage-consumer"
	}

	return cfg, nil
}

func newLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	return config.Build()
}

// groupLogger is the default handler: it logs each group it receives.
// Deployments replace this with handlers that call downstream services.
func groupLogger(logger *zap.Logger) triage.Handler {
	return triage.HandlerFunc(func(ctx context.Context, g triage.Group) error {
		for _, rec := range g.Records {
			name, _ := rec.Name()
			logger.Info("Processing record",
				zap.String("category", g.Category),
				zap.String("name", name),
				zap.Any("id", rec[triage.IDKey]),
			)
		}
		return nil
	})
}

func buildPipeline(cfg *config, logger *zap.Logger, metrics *triage.Metrics) (*triage.Pipeline, error) {
	opts := []triage.Option{
		triage.WithZapLogger(logger),
		triage.WithMetrics(metrics),
	}
	for _, category := range cfg.categories {
		handler := triage.Deadline(groupLogger(logger), cfg.handlerTimeout)
		opts = append(opts, triage.WithHandler(category, handler))
	}

	p, err := triage.New(opts...)
	if err != nil {
		return nil, err
	}

	p.AddSource(triage.EventsEnvelope())
	p.AddSource(triage.SNSEnvelope())
	p.AddSource(triage.SQSEnvelope())
	return p, nil
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	metrics := triage.NewMetrics(cfg.serviceName)

	pipeline, err := buildPipeline(cfg, logger, metrics)
	if err != nil {
		logger.Fatal("Failed to build pipeline", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsServer := &http.Server{
		Addr:    cfg.metricsAddr,
		Handler: promhttp.Handler(),
	}
	go func() {
		logger.Info("Metrics endpoint listening", zap.String("addr", cfg.metricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.brokers,
		Topic:          cfg.topic,
		GroupID:        cfg.groupID,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		CommitInterval: 0,    // manual commit only
	})

	logger.Info("Starting consumer",
		zap.Strings("brokers", cfg.brokers),
		zap.String("topic", cfg.topic),
		zap.String("groupID", cfg.groupID),
		zap.Strings("categories", cfg.categories),
	)

	if err := consume(ctx, reader, pipeline, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Consumer stopped with error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Metrics server shutdown failed", zap.Error(err))
	}
	if err := reader.Close(); err != nil {
		logger.Error("Failed to close Kafka reader", zap.Error(err))
	}
	logger.Info("Consumer stopped")
}

func consume(ctx context.Context, reader *kafka.Reader, pipeline *triage.Pipeline, logger *zap.Logger) error {
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			// Network errors are transient; keep fetching.
			logger.Error("Failed to fetch message", zap.Error(err))
			continue
		}

		batchID := uuid.NewString()
		result, err := pipeline.Process(ctx, msg.Value)
		if err != nil {
			// Poison batch: log, commit, move on. Retrying a batch the
			// pipeline cannot decode would loop forever.
			logger.Error("Failed to process batch",
				zap.Error(err),
				zap.String("batchID", batchID),
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
			)
		} else {
			logger.Info("Batch processed",
				zap.String("batchID", batchID),
				zap.Int("groups", len(result.Dispatches)),
				zap.Int("handled", result.Handled()),
				zap.Int("failed", result.Failed()),
				zap.Int("unrouted", result.Unrouted()),
				zap.Int("rejected", len(result.Rejected)),
				zap.Int64("offset", msg.Offset),
			)
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			logger.Error("Failed to commit offset",
				zap.Error(err),
				zap.Int64("offset", msg.Offset),
			)
		}
	}
}
