// Package config loads the worker process's environment into a single
// immutable WorkerConfig, constructed once at startup and threaded
// explicitly into every component (see spec §9, "Global configuration").
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
)

// WorkerConfig holds every environment-derived setting the worker process
// needs. Field names mirror the environment variables in spec §6.
type WorkerConfig struct {
	DatabaseURL        string        `envconfig:"DATABASE_URL" required:"true"`
	QueueName          string        `envconfig:"VECTORIZE_QUEUE" default:"vectorize_jobs"`
	PollInterval       time.Duration `envconfig:"POLL_INTERVAL" default:"2s"`
	PollIntervalError  time.Duration `envconfig:"POLL_INTERVAL_ERROR" default:"10s"`
	MaxRetries         int           `envconfig:"MAX_RETRIES" default:"2"`
	VisibilityTimeout  time.Duration `envconfig:"VISIBILITY_TIMEOUT" default:"180s"`
	EmbeddingTimeout   time.Duration `envconfig:"EMBEDDING_REQUEST_TIMEOUT" default:"120s"`
	BatchSize          int           `envconfig:"BATCH_SIZE" default:"10000"`
	WorkerConcurrency  int           `envconfig:"WORKER_CONCURRENCY" default:"1"`
	HealthPort         int           `envconfig:"HEALTH_PORT" default:"8080"`

	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	CohereAPIKey        string `envconfig:"CO_API_KEY"`
	VoyageAPIKey        string `envconfig:"VOYAGE_API_KEY"`
	PortkeyAPIKey       string `envconfig:"PORTKEY_API_KEY"`
	PortkeyVirtualKey   string `envconfig:"PORTKEY_VIRTUAL_KEY"`
	TemboAPIKey         string `envconfig:"TEMBO_API_KEY"`
	SentenceTransformersURL string `envconfig:"SENTENCE_TRANSFORMERS_URL" default:"http://localhost:3000/v1"`
	OllamaURL           string `envconfig:"OLLAMA_URL" default:"http://localhost:11434"`
}

// New parses environment variables into a WorkerConfig and validates bounds
// that envconfig cannot express (e.g. worker concurrency is clamped 1-10
// per spec §5).
func New() (*WorkerConfig, error) {
	var cfg WorkerConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate clamps/validates fields envconfig's tags cannot express.
func (c *WorkerConfig) Validate() error {
	if c.WorkerConcurrency < 1 {
		c.WorkerConcurrency = 1
	}
	if c.WorkerConcurrency > 10 {
		c.WorkerConcurrency = 10
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("config: MAX_RETRIES must be >= 0")
	}
	return nil
}

// LogStartup writes a single structured line summarizing the resolved
// configuration, mirroring the teacher's config.New() startup log.
func (c *WorkerConfig) LogStartup(log zerolog.Logger) {
	log.Info().
		Str("queue", c.QueueName).
		Dur("poll_interval", c.PollInterval).
		Dur("poll_interval_error", c.PollIntervalError).
		Int("max_retries", c.MaxRetries).
		Dur("visibility_timeout", c.VisibilityTimeout).
		Int("batch_size", c.BatchSize).
		Int("worker_concurrency", c.WorkerConcurrency).
		Msg("configuration loaded")
}
