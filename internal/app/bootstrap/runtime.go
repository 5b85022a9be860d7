package bootstrap

import (
	"context"
	"crypto/tls"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/medical-appointments/internal/archive"
	"github.com/wolfman30/medical-appointments/internal/batch"
	appconfig "github.com/wolfman30/medical-appointments/internal/config"
	"github.com/wolfman30/medical-appointments/internal/dedup"
	"github.com/wolfman30/medical-appointments/internal/observability/metrics"
	"github.com/wolfman30/medical-appointments/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildDeduper returns the duplicate-delivery guard, or nil without Redis.
func BuildDeduper(redisClient *redis.Client, cfg *appconfig.Config) *dedup.Guard {
	if redisClient == nil || cfg == nil {
		return nil
	}
	return dedup.NewGuard(redisClient, cfg.DedupTTL)
}

// BuildRejectArchive returns the S3 archive for rejected messages, or nil when
// no bucket is configured.
func BuildRejectArchive(awsCfg aws.Config, cfg *appconfig.Config, logger *logging.Logger) *archive.Store {
	if cfg == nil || strings.TrimSpace(cfg.RejectArchiveBucket) == "" {
		return nil
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.AWSEndpointOverride != ""
	})
	return archive.NewStore(client, cfg.RejectArchiveBucket, logger)
}

// CoordinatorOptions translates config into batch options.
func CoordinatorOptions(cfg *appconfig.Config, m *metrics.PipelineMetrics, rejects *archive.Store) []batch.Option {
	opts := []batch.Option{batch.WithMetrics(m)}
	if cfg != nil && cfg.BatchConcurrency > 0 {
		opts = append(opts, batch.WithConcurrency(cfg.BatchConcurrency))
	}
	if rejects.Enabled() {
		opts = append(opts, batch.WithRejectArchive(rejects))
	}
	return opts
}

// StartMetricsServer serves /metrics on addr in the background. It returns
// nil when addr is empty.
func StartMetricsServer(addr string, gatherer prometheus.Gatherer, logger *logging.Logger) *http.Server {
	if strings.TrimSpace(addr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("metrics server listening", "addr", addr)
	return srv
}
