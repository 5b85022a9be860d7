package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Intake / status store
	AppointmentsTable string
	InsuredIndexName  string

	// Event routing
	CreatedTopicARN string
	EventBusName    string
	EventSource     string

	// Country processing
	ProcessorCountry string
	PEDatabaseURL    string
	CLDatabaseURL    string
	OperationTimeout time.Duration

	// Batch consumption
	BatchConcurrency     int
	PartialBatchResponse bool
	CreatedQueueURL      string
	CompletedQueueURL    string
	WorkerCount          int
	ReceiveWaitSeconds   int
	ReceiveBatchSize     int

	// Duplicate-delivery guard
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	DedupTTL      time.Duration

	RejectArchiveBucket string
	MetricsAddr         string
	CORSAllowedOrigins  []string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		AppointmentsTable: getEnv("APPOINTMENTS_TABLE", ""),
		InsuredIndexName:  getEnv("INSURED_INDEX_NAME", "InsuredIdIndex"),

		CreatedTopicARN: getEnv("SNS_TOPIC_ARN", ""),
		EventBusName:    getEnv("EVENT_BUS_NAME", ""),
		EventSource:     getEnv("EVENT_SOURCE", "appointment.service"),

		ProcessorCountry: strings.ToUpper(strings.TrimSpace(getEnv("PROCESSOR_COUNTRY", ""))),
		PEDatabaseURL:    getEnv("RDS_PE_DATABASE_URL", ""),
		CLDatabaseURL:    getEnv("RDS_CL_DATABASE_URL", ""),
		OperationTimeout: getEnvAsDuration("OPERATION_TIMEOUT", 10*time.Second),

		BatchConcurrency:     getEnvAsInt("BATCH_CONCURRENCY", 0),
		PartialBatchResponse: getEnvAsBool("PARTIAL_BATCH_RESPONSE", false),
		CreatedQueueURL:      getEnv("CREATED_QUEUE_URL", ""),
		CompletedQueueURL:    getEnv("COMPLETED_QUEUE_URL", ""),
		WorkerCount:          getEnvAsInt("WORKER_COUNT", 2),
		ReceiveWaitSeconds:   getEnvAsInt("RECEIVE_WAIT_SECONDS", 10),
		ReceiveBatchSize:     getEnvAsInt("RECEIVE_BATCH_SIZE", 10),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		DedupTTL:      getEnvAsDuration("DEDUP_TTL", 24*time.Hour),

		RejectArchiveBucket: getEnv("REJECT_ARCHIVE_BUCKET", ""),
		MetricsAddr:         getEnv("METRICS_ADDR", ""),
		CORSAllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS"),
	}
}

// IsProduction reports whether internal error details must be hidden.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// CountryDatabaseURL returns the DSN for the given country partition.
func (c *Config) CountryDatabaseURL(country string) string {
	switch country {
	case "PE":
		return c.PEDatabaseURL
	case "CL":
		return c.CLDatabaseURL
	default:
		return ""
	}
}

// ValidateAPI checks the settings the intake API needs.
func (c *Config) ValidateAPI() error {
	var missing []string
	if c.AppointmentsTable == "" {
		missing = append(missing, "APPOINTMENTS_TABLE")
	}
	if c.CreatedTopicARN == "" {
		missing = append(missing, "SNS_TOPIC_ARN")
	}
	return missingErr(missing)
}

// ValidateProcessor checks the settings a country processor needs.
func (c *Config) ValidateProcessor() error {
	var missing []string
	if c.ProcessorCountry != "PE" && c.ProcessorCountry != "CL" {
		return fmt.Errorf("config: PROCESSOR_COUNTRY must be PE or CL, got %q", c.ProcessorCountry)
	}
	if c.CountryDatabaseURL(c.ProcessorCountry) == "" {
		missing = append(missing, "RDS_"+c.ProcessorCountry+"_DATABASE_URL")
	}
	if c.EventBusName == "" {
		missing = append(missing, "EVENT_BUS_NAME")
	}
	return missingErr(missing)
}

// ValidateCompletion checks the settings the completion consumer needs.
func (c *Config) ValidateCompletion() error {
	if c.AppointmentsTable == "" {
		return missingErr([]string{"APPOINTMENTS_TABLE"})
	}
	return nil
}

func missingErr(missing []string) error {
	if len(missing) == 0 {
		return nil
	}
	return errors.New("config: missing required environment variables: " + strings.Join(missing, ", "))
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
