package bootstrap

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"

	"github.com/wolfman30/medical-appointments/internal/appointment"
	"github.com/wolfman30/medical-appointments/internal/appointments"
	"github.com/wolfman30/medical-appointments/internal/batch"
	"github.com/wolfman30/medical-appointments/internal/completion"
	appconfig "github.com/wolfman30/medical-appointments/internal/config"
	"github.com/wolfman30/medical-appointments/internal/countrydb"
	"github.com/wolfman30/medical-appointments/internal/dedup"
	"github.com/wolfman30/medical-appointments/internal/observability/metrics"
	"github.com/wolfman30/medical-appointments/internal/processor"
	"github.com/wolfman30/medical-appointments/internal/publisher"
	"github.com/wolfman30/medical-appointments/pkg/logging"
)

// ProcessorSource names the batch source for a country processor.
func ProcessorSource(country appointment.Country) string {
	return "processor-" + string(country)
}

// CompletionSource names the batch source for the completion consumer.
const CompletionSource = "completion"

// ProcessorOptions translates config into processor options. A nil guard
// leaves duplicate detection off.
func ProcessorOptions(cfg *appconfig.Config, guard *dedup.Guard) []processor.Option {
	var opts []processor.Option
	if cfg != nil {
		opts = append(opts, processor.WithOperationTimeout(cfg.OperationTimeout))
	}
	if guard != nil {
		opts = append(opts, processor.WithDeduper(guard))
	}
	return opts
}

// Pipeline is a ready coordinator plus the resources it holds.
type Pipeline struct {
	Coordinator *batch.Coordinator
	closers     []func()
}

// Close releases database pools and Redis connections.
func (p *Pipeline) Close() {
	if p == nil {
		return
	}
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
}

// BuildProcessorPipeline wires the country processor for cfg.ProcessorCountry.
func BuildProcessorPipeline(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger, m *metrics.PipelineMetrics) (*Pipeline, error) {
	if err := cfg.ValidateProcessor(); err != nil {
		return nil, err
	}
	country, err := appointment.ParseCountry(cfg.ProcessorCountry)
	if err != nil {
		return nil, err
	}

	registry, err := countrydb.Open(ctx, map[appointment.Country]string{
		country: cfg.CountryDatabaseURL(string(country)),
	}, logger)
	if err != nil {
		return nil, err
	}
	pipeline := &Pipeline{closers: []func(){registry.Close}}

	store, err := registry.Store(country)
	if err != nil {
		pipeline.Close()
		return nil, err
	}

	redisClient := BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		pipeline.closers = append(pipeline.closers, func() { _ = redisClient.Close() })
	}

	notifier := publisher.NewEventBridgePublisher(eventbridge.NewFromConfig(awsCfg), cfg.EventBusName, cfg.EventSource, logger)
	p := processor.New(country, store, notifier, logger, ProcessorOptions(cfg, BuildDeduper(redisClient, cfg))...)

	rejects := BuildRejectArchive(awsCfg, cfg, logger)
	pipeline.Coordinator = batch.New(ProcessorSource(country), p.HandleMessage, logger, CoordinatorOptions(cfg, m, rejects)...)
	logger.Info("processor pipeline ready",
		"country", string(country),
		"dedup", redisClient != nil,
		"reject_archive", rejects.Enabled(),
	)
	return pipeline, nil
}

// BuildCompletionPipeline wires the consumer that marks appointments completed.
func BuildCompletionPipeline(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger, m *metrics.PipelineMetrics) (*Pipeline, error) {
	if err := cfg.ValidateCompletion(); err != nil {
		return nil, err
	}
	repo := appointments.NewDynamoRepository(dynamodb.NewFromConfig(awsCfg), cfg.AppointmentsTable, cfg.InsuredIndexName, logger)
	h := completion.NewHandler(repo, logger, cfg.OperationTimeout)
	rejects := BuildRejectArchive(awsCfg, cfg, logger)
	return &Pipeline{
		Coordinator: batch.New(CompletionSource, h.HandleMessage, logger, CoordinatorOptions(cfg, m, rejects)...),
	}, nil
}

// BuildPipeline picks the processor or completion pipeline by mode.
func BuildPipeline(ctx context.Context, mode string, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger, m *metrics.PipelineMetrics) (*Pipeline, error) {
	switch mode {
	case "processor":
		return BuildProcessorPipeline(ctx, cfg, awsCfg, logger, m)
	case CompletionSource:
		return BuildCompletionPipeline(cfg, awsCfg, logger, m)
	default:
		return nil, fmt.Errorf("bootstrap: unknown pipeline mode %q", mode)
	}
}
