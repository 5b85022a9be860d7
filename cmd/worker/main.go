package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/medical-appointments/cmd/mainconfig"
	"github.com/wolfman30/medical-appointments/internal/app/bootstrap"
	appconfig "github.com/wolfman30/medical-appointments/internal/config"
	"github.com/wolfman30/medical-appointments/internal/observability/metrics"
	"github.com/wolfman30/medical-appointments/internal/worker"
	"github.com/wolfman30/medical-appointments/pkg/logging"
)

// Long-polls SQS outside Lambda. WORKER_MODE selects the pipeline:
// "processor" reads CREATED_QUEUE_URL, "completion" reads COMPLETED_QUEUE_URL.
func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	mode := strings.ToLower(strings.TrimSpace(os.Getenv("WORKER_MODE")))
	if mode == "" {
		mode = "processor"
	}
	logger := logging.New(cfg.LogLevel).With("component", "worker", "mode", mode)

	queueURL := cfg.CreatedQueueURL
	if mode == bootstrap.CompletionSource {
		queueURL = cfg.CompletedQueueURL
	}
	if queueURL == "" {
		logger.Error("worker requires a queue url for its mode")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	pipeline, err := bootstrap.BuildPipeline(ctx, mode, cfg, awsCfg, logger, metrics.NewPipelineMetrics(reg))
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}
	defer pipeline.Close()

	metricsSrv := bootstrap.StartMetricsServer(cfg.MetricsAddr, reg, logger)

	w := worker.New(
		worker.NewSQSQueue(sqs.NewFromConfig(awsCfg), queueURL),
		pipeline.Coordinator,
		logger,
		worker.WithWorkerCount(cfg.WorkerCount),
		worker.WithReceiveWaitSeconds(cfg.ReceiveWaitSeconds),
		worker.WithReceiveBatchSize(cfg.ReceiveBatchSize),
	)
	w.Start(ctx)
	logger.Info("worker started", "queue_url", queueURL)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	waitCh := make(chan struct{})
	go func() {
		w.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("worker stopped")
	case <-doneCtx.Done():
		logger.Error("worker shutdown timed out", "error", doneCtx.Err())
	}

	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(doneCtx)
	}
}
