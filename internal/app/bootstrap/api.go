package bootstrap

import (
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/medical-appointments/internal/api/router"
	"github.com/wolfman30/medical-appointments/internal/appointments"
	appconfig "github.com/wolfman30/medical-appointments/internal/config"
	"github.com/wolfman30/medical-appointments/internal/http/handlers"
	"github.com/wolfman30/medical-appointments/internal/publisher"
	"github.com/wolfman30/medical-appointments/pkg/logging"
)

// BuildAPIHandler wires the intake service against DynamoDB and SNS and
// returns the HTTP router. gatherer backs /metrics; nil disables it.
func BuildAPIHandler(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger, gatherer prometheus.Gatherer) http.Handler {
	repo := appointments.NewDynamoRepository(dynamodb.NewFromConfig(awsCfg), cfg.AppointmentsTable, cfg.InsuredIndexName, logger)
	pub := publisher.NewSNSPublisher(sns.NewFromConfig(awsCfg), cfg.CreatedTopicARN, logger)
	svc := appointments.NewService(repo, pub, logger)

	var metricsHandler http.Handler
	if gatherer != nil {
		metricsHandler = promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	}
	return router.New(&router.Config{
		Logger:             logger,
		Appointments:       handlers.NewAppointmentsHandler(svc, logger, cfg.IsProduction()),
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})
}
