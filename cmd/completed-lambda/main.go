package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/medical-appointments/cmd/mainconfig"
	"github.com/wolfman30/medical-appointments/internal/app/bootstrap"
	"github.com/wolfman30/medical-appointments/internal/batch"
	appconfig "github.com/wolfman30/medical-appointments/internal/config"
	"github.com/wolfman30/medical-appointments/internal/observability/metrics"
	"github.com/wolfman30/medical-appointments/pkg/logging"
)

// Consumes the queue targeted by the EventBridge completion rule and marks
// appointments completed in the status store.
func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel).With("component", "completed-lambda")

	awsCfg, err := mainconfig.LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	pipeline, err := bootstrap.BuildCompletionPipeline(cfg, awsCfg, logger, metrics.NewPipelineMetrics(prometheus.DefaultRegisterer))
	if err != nil {
		logger.Error("failed to build completion consumer", "error", err)
		os.Exit(1)
	}
	defer pipeline.Close()

	lambda.Start(batch.SQSHandler(pipeline.Coordinator, cfg.PartialBatchResponse))
}
