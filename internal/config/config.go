// Package config provides configuration management for the literature
// aggregation service.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/litmesh/literature-aggregation-service/internal/domain"
)

// Config holds all configuration for the literature aggregation service.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Pipeline contains search pipeline settings.
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	// Connectors contains per-source connector settings.
	Connectors ConnectorsConfig `mapstructure:"connectors"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Events contains Kafka run-summary publisher settings.
	Events EventsConfig `mapstructure:"events"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// MetricsPort is the metrics server port (default: 9091).
	MetricsPort int `mapstructure:"metrics_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// PipelineConfig holds search pipeline configuration.
type PipelineConfig struct {
	// ConnectorOrder is the ordered list of connector IDs to invoke.
	// Order drives both invocation priority and result reassembly.
	ConnectorOrder []string `mapstructure:"connector_order"`
	// PerConnectorTimeout bounds each connector call (default: 10s).
	PerConnectorTimeout time.Duration `mapstructure:"per_connector_timeout"`
	// MaxResults is the maximum number of ranked works returned per run.
	MaxResults int `mapstructure:"max_results"`
	// Ranker is the ranking strategy name (source_count, citations).
	Ranker string `mapstructure:"ranker"`
}

// ConnectorsConfig holds configuration for all source connectors.
type ConnectorsConfig struct {
	// ArXiv contains arXiv API settings.
	ArXiv ConnectorConfig `mapstructure:"arxiv"`
	// OpenAlex contains OpenAlex API settings.
	OpenAlex ConnectorConfig `mapstructure:"openalex"`
	// PubMed contains PubMed E-utilities settings.
	PubMed ConnectorConfig `mapstructure:"pubmed"`
	// SemanticScholar contains Semantic Scholar Graph API settings.
	SemanticScholar ConnectorConfig `mapstructure:"semantic_scholar"`
	// GitHub contains GitHub search API settings.
	GitHub ConnectorConfig `mapstructure:"github"`
	// Scopus contains Scopus API settings.
	Scopus ConnectorConfig `mapstructure:"scopus"`
}

// ConnectorConfig holds configuration for a single source connector.
type ConnectorConfig struct {
	// Enabled controls whether this connector participates in searches.
	Enabled bool `mapstructure:"enabled"`
	// APIKey is the connector credential, loaded exclusively from its
	// environment variable (PUBMED_API_KEY, SEMANTIC_SCHOLAR_API_KEY,
	// GITHUB_TOKEN, SCOPUS_API_KEY). Never read from config files.
	APIKey string `mapstructure:"-"`
	// BaseURL is the API base URL.
	BaseURL string `mapstructure:"base_url"`
	// Timeout is the HTTP client timeout for this connector.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second without a credential.
	RateLimit float64 `mapstructure:"rate_limit"`
	// AuthenticatedRateLimit is the maximum requests per second when a
	// credential is present. Zero means RateLimit applies either way.
	AuthenticatedRateLimit float64 `mapstructure:"authenticated_rate_limit"`
	// BurstSize is the maximum burst of requests allowed. Zero lets the
	// connector pick its own default from credential presence.
	BurstSize int `mapstructure:"burst_size"`
	// MaxResults is the maximum results fetched per query.
	MaxResults int `mapstructure:"max_results"`
	// RetryMaxAttempts is the number of retries after a failed call.
	// Zero means each connector is invoked at most once per run.
	RetryMaxAttempts int `mapstructure:"retry_max_attempts"`
	// Email identifies the caller to services with a polite pool
	// (OpenAlex). Optional, ignored by other connectors.
	Email string `mapstructure:"email"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr, file path).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
}

// EventsConfig holds Kafka run-summary publisher settings.
type EventsConfig struct {
	// Enabled controls whether run summaries are published.
	Enabled bool `mapstructure:"enabled"`
	// Brokers is the list of Kafka broker addresses.
	Brokers []string `mapstructure:"brokers"`
	// Topic is the Kafka topic to publish run summaries to.
	Topic string `mapstructure:"topic"`
	// ClientID identifies this service to the Kafka cluster.
	ClientID string `mapstructure:"client_id"`
	// BatchSize is the maximum number of messages to batch before sending.
	BatchSize int `mapstructure:"batch_size"`
	// BatchTimeout is the maximum time to wait for a batch to fill before sending.
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// MetricsAddress returns the metrics server address.
func (c *ServerConfig) MetricsAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.MetricsPort)
}

// Order returns the configured connector order as source types.
func (c *PipelineConfig) Order() []domain.SourceType {
	order := make([]domain.SourceType, 0, len(c.ConnectorOrder))
	for _, id := range c.ConnectorOrder {
		order = append(order, domain.SourceType(id))
	}
	return order
}

// ByID returns the configuration for the named connector.
func (c *ConnectorsConfig) ByID(id domain.SourceType) (*ConnectorConfig, bool) {
	switch id {
	case domain.SourceTypeArXiv:
		return &c.ArXiv, true
	case domain.SourceTypeOpenAlex:
		return &c.OpenAlex, true
	case domain.SourceTypePubMed:
		return &c.PubMed, true
	case domain.SourceTypeSemanticScholar:
		return &c.SemanticScholar, true
	case domain.SourceTypeGitHub:
		return &c.GitHub, true
	case domain.SourceTypeScopus:
		return &c.Scopus, true
	}
	return nil, false
}

// EffectiveRateLimit returns the request rate for this connector given
// credential presence. The authenticated limit applies only when a key
// is set and a separate keyed limit is configured.
func (c *ConnectorConfig) EffectiveRateLimit() float64 {
	if c.APIKey != "" && c.AuthenticatedRateLimit > 0 {
		return c.AuthenticatedRateLimit
	}
	return c.RateLimit
}

// Credentials assembles the credential set from the connector API key
// fields. Connectors without a key are simply absent from the set.
func (c *Config) Credentials() domain.CredentialSet {
	return domain.NewCredentialSet(map[domain.SourceType]string{
		domain.SourceTypePubMed:          c.Connectors.PubMed.APIKey,
		domain.SourceTypeSemanticScholar: c.Connectors.SemanticScholar.APIKey,
		domain.SourceTypeGitHub:          c.Connectors.GitHub.APIKey,
		domain.SourceTypeScopus:          c.Connectors.Scopus.APIKey,
	})
}

// Load loads configuration from environment variables and config files.
// When LITAGG_CONFIG_PATH names a file it must exist; otherwise a
// config.yaml is searched for in the usual locations and its absence
// is not an error.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("LITAGG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if present
	v.SetConfigType("yaml")
	if path := os.Getenv("LITAGG_CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/literature-aggregation-service")
	}

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Load secrets exclusively from environment variables.
	// These fields use mapstructure:"-" to prevent loading from config files.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates credential fields exclusively from environment
// variables. These fields are tagged with mapstructure:"-" to prevent
// loading from config files.
func loadSecrets(cfg *Config) {
	cfg.Connectors.PubMed.APIKey = os.Getenv("PUBMED_API_KEY")
	cfg.Connectors.SemanticScholar.APIKey = os.Getenv("SEMANTIC_SCHOLAR_API_KEY")
	cfg.Connectors.GitHub.APIKey = os.Getenv("GITHUB_TOKEN")
	cfg.Connectors.Scopus.APIKey = os.Getenv("SCOPUS_API_KEY")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.metrics_port", 9091)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Pipeline defaults
	v.SetDefault("pipeline.connector_order", []string{
		"pubmed", "arxiv", "openalex", "semantic_scholar", "github", "scopus",
	})
	v.SetDefault("pipeline.per_connector_timeout", "10s")
	v.SetDefault("pipeline.max_results", 25)
	v.SetDefault("pipeline.ranker", "source_count")

	// Connector defaults - arXiv
	// API keys are loaded exclusively from environment variables (see loadSecrets).
	v.SetDefault("connectors.arxiv.enabled", true)
	v.SetDefault("connectors.arxiv.base_url", "https://export.arxiv.org/api")
	v.SetDefault("connectors.arxiv.timeout", "30s")
	v.SetDefault("connectors.arxiv.rate_limit", 3.0) // arXiv recommends max 3 req/sec
	v.SetDefault("connectors.arxiv.authenticated_rate_limit", 0.0)
	v.SetDefault("connectors.arxiv.burst_size", 0)
	v.SetDefault("connectors.arxiv.max_results", 100)
	v.SetDefault("connectors.arxiv.retry_max_attempts", 0)

	// Connector defaults - OpenAlex
	v.SetDefault("connectors.openalex.enabled", true)
	v.SetDefault("connectors.openalex.email", "")
	v.SetDefault("connectors.openalex.base_url", "https://api.openalex.org")
	v.SetDefault("connectors.openalex.timeout", "30s")
	v.SetDefault("connectors.openalex.rate_limit", 10.0)
	v.SetDefault("connectors.openalex.authenticated_rate_limit", 0.0)
	v.SetDefault("connectors.openalex.burst_size", 0)
	v.SetDefault("connectors.openalex.max_results", 25)
	v.SetDefault("connectors.openalex.retry_max_attempts", 0)

	// Connector defaults - PubMed
	v.SetDefault("connectors.pubmed.enabled", true)
	v.SetDefault("connectors.pubmed.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils")
	v.SetDefault("connectors.pubmed.timeout", "30s")
	v.SetDefault("connectors.pubmed.rate_limit", 3.0) // NCBI recommends max 3 req/sec without API key
	v.SetDefault("connectors.pubmed.authenticated_rate_limit", 10.0)
	v.SetDefault("connectors.pubmed.burst_size", 0)
	v.SetDefault("connectors.pubmed.max_results", 100)
	v.SetDefault("connectors.pubmed.retry_max_attempts", 0)

	// Connector defaults - Semantic Scholar
	v.SetDefault("connectors.semantic_scholar.enabled", true)
	v.SetDefault("connectors.semantic_scholar.base_url", "https://api.semanticscholar.org/graph/v1")
	v.SetDefault("connectors.semantic_scholar.timeout", "30s")
	v.SetDefault("connectors.semantic_scholar.rate_limit", 1.0)
	v.SetDefault("connectors.semantic_scholar.authenticated_rate_limit", 10.0)
	v.SetDefault("connectors.semantic_scholar.burst_size", 0)
	v.SetDefault("connectors.semantic_scholar.max_results", 100)
	v.SetDefault("connectors.semantic_scholar.retry_max_attempts", 0)

	// Connector defaults - GitHub
	v.SetDefault("connectors.github.enabled", true)
	v.SetDefault("connectors.github.base_url", "https://api.github.com")
	v.SetDefault("connectors.github.timeout", "30s")
	v.SetDefault("connectors.github.rate_limit", 10.0/60.0) // 10 unauthenticated searches per minute
	v.SetDefault("connectors.github.authenticated_rate_limit", 30.0/60.0)
	v.SetDefault("connectors.github.burst_size", 0)
	v.SetDefault("connectors.github.max_results", 30)
	v.SetDefault("connectors.github.retry_max_attempts", 0)

	// Connector defaults - Scopus
	// Scopus participates only when SCOPUS_API_KEY is set; the planner
	// skips it otherwise.
	v.SetDefault("connectors.scopus.enabled", true)
	v.SetDefault("connectors.scopus.base_url", "https://api.elsevier.com/content")
	v.SetDefault("connectors.scopus.timeout", "30s")
	v.SetDefault("connectors.scopus.rate_limit", 5.0)
	v.SetDefault("connectors.scopus.authenticated_rate_limit", 0.0)
	v.SetDefault("connectors.scopus.burst_size", 0)
	v.SetDefault("connectors.scopus.max_results", 25)
	v.SetDefault("connectors.scopus.retry_max_attempts", 0)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Events defaults
	v.SetDefault("events.enabled", false)
	v.SetDefault("events.brokers", []string{"localhost:9092"})
	v.SetDefault("events.topic", "litagg.run_summaries")
	v.SetDefault("events.client_id", "litagg")
	v.SetDefault("events.batch_size", 100)
	v.SetDefault("events.batch_timeout", "10ms")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	// Validate server ports
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Server.MetricsPort)
	}

	// Validate pipeline config
	if c.Pipeline.PerConnectorTimeout <= 0 {
		return fmt.Errorf("pipeline per_connector_timeout must be positive")
	}
	if c.Pipeline.MaxResults <= 0 {
		return fmt.Errorf("pipeline max_results must be positive")
	}
	if len(c.Pipeline.ConnectorOrder) == 0 {
		return fmt.Errorf("pipeline connector_order must name at least one connector")
	}
	seen := make(map[string]bool, len(c.Pipeline.ConnectorOrder))
	for _, id := range c.Pipeline.ConnectorOrder {
		if !domain.IsValidSourceType(domain.SourceType(id)) {
			return fmt.Errorf("unknown connector in connector_order: %q", id)
		}
		if seen[id] {
			return fmt.Errorf("duplicate connector in connector_order: %q", id)
		}
		seen[id] = true
	}

	// Validate connector config
	for _, id := range domain.AllSourceTypes() {
		cc, _ := c.Connectors.ByID(id)
		if cc.Timeout < 0 {
			return fmt.Errorf("connector %s timeout must not be negative", id)
		}
		if cc.RateLimit < 0 {
			return fmt.Errorf("connector %s rate_limit must not be negative", id)
		}
		if cc.AuthenticatedRateLimit < 0 {
			return fmt.Errorf("connector %s authenticated_rate_limit must not be negative", id)
		}
		if cc.RetryMaxAttempts < 0 {
			return fmt.Errorf("connector %s retry_max_attempts must not be negative", id)
		}
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	// Validate events config
	if c.Events.Enabled && len(c.Events.Brokers) == 0 {
		return fmt.Errorf("events brokers are required when events are enabled")
	}
	if c.Events.Enabled && c.Events.Topic == "" {
		return fmt.Errorf("events topic is required when events are enabled")
	}

	return nil
}
