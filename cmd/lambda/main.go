// Command lambda runs the triage pipeline inside an AWS Lambda function
// triggered by SQS. Each invocation's messages form one batch; records
// that fail or cannot be routed are reported per group, never by failing
// the whole invocation.
package main

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	awslambda "github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/bjaus/triage"
)

var (
	logger   *zap.Logger
	pipeline *triage.Pipeline
)

func init() {
	var err error
	logger, err = zap.NewProduction()
	if err != nil {
		panic("failed to build logger: " + err.Error())
	}

	opts := []triage.Option{triage.WithZapLogger(logger)}
	for _, category := range strings.Split(os.Getenv("TRIAGE_CATEGORIES"), ",") {
		if category = strings.TrimSpace(category); category != "" {
			opts = append(opts, triage.WithHandler(category, logHandler()))
		}
	}

	pipeline, err = triage.New(opts...)
	if err != nil {
		panic("failed to build pipeline: " + err.Error())
	}
}

func logHandler() triage.Handler {
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

func handler(ctx context.Context, event events.SQSEvent) error {
	batch := make([]any, 0, len(event.Records))
	for _, msg := range event.Records {
		var rec map[string]any
		if err := json.Unmarshal([]byte(msg.Body), &rec); err != nil {
			// Not an object: let validation reject it as malformed.
			batch = append(batch, msg.Body)
			continue
		}
		batch = append(batch, rec)
	}

	start := time.Now()
	result := pipeline.Run(ctx, batch)

	logger.Info("Batch processed",
		zap.Int("messages", len(event.Records)),
		zap.Int("groups", len(result.Dispatches)),
		zap.Int("handled", result.Handled()),
		zap.Int("failed", result.Failed()),
		zap.Int("unrouted", result.Unrouted()),
		zap.Int("rejected", len(result.Rejected)),
		zap.Duration("duration", time.Since(start)),
	)

	// Per-group failures are already reported through the result; failing
	// the invocation would retry the entire batch, including the groups
	// that succeeded.
	return nil
}

func main() {
	defer logger.Sync()
	awslambda.Start(handler)
}
