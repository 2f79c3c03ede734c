// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.campusq/config.yaml or ./config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: provider, completion model, embedder model
//   - Storage: PostgreSQL connection (see storage.go)
//   - Forum: approval threshold for the vote state machine
//   - Chatbot: similarity threshold, retrieval top-K, chat rate limit
//   - Tracing: OTLP exporter settings (see tracing setup in internal/app)
//
// Error handling uses sentinel errors for Go-idiomatic checking with errors.Is().
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidOllamaHost indicates the Ollama host is invalid.
	ErrInvalidOllamaHost = errors.New("invalid Ollama host")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidApprovalThreshold indicates the vote approval threshold is out of range.
	ErrInvalidApprovalThreshold = errors.New("invalid approval threshold")

	// ErrInvalidSimilarityThreshold indicates the retrieval similarity threshold is out of range.
	ErrInvalidSimilarityThreshold = errors.New("invalid similarity threshold")

	// ErrInvalidRetrievalTopK indicates the retrieval top-K is out of range.
	ErrInvalidRetrievalTopK = errors.New("invalid retrieval top-K")

	// ErrInvalidChatRateLimit indicates the chat rate limit is out of range.
	ErrInvalidChatRateLimit = errors.New("invalid chat rate limit")
)

const (
	// DefaultGeminiEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 outputs 3072 dimensions by default, but supports
	// truncation to 768 via OutputDimensionality. Our pgvector schema uses
	// 768 dimensions; see knowledge.VectorDimension.
	DefaultGeminiEmbedderModel = "gemini-embedding-001"

	// DefaultApprovalThreshold is the vote count magnitude at which a
	// pending answer transitions to approved (or disapproved at the
	// negative threshold).
	DefaultApprovalThreshold = 5

	// DefaultSimilarityThreshold is the minimum cosine similarity for a
	// knowledge entry to count as a retrieval match.
	DefaultSimilarityThreshold = 0.50

	// DefaultRetrievalTopK is how many nearest knowledge entries the
	// chatbot considers per query.
	DefaultRetrievalTopK = 3

	// MaxRetrievalTopK bounds retrieval fan-out.
	MaxRetrievalTopK = 10
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Config stores application configuration.
type Config struct {
	// AI provider and model configuration
	Provider      string `mapstructure:"provider" json:"provider"`         // "gemini" (default), "ollama", "openai"
	ModelName     string `mapstructure:"model_name" json:"model_name"`     // completion model for cleaning/synthesis
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`

	// Ollama configuration (only used when provider is "ollama")
	OllamaHost string `mapstructure:"ollama_host" json:"ollama_host"`

	// Storage configuration (see storage.go for DSN/URL helpers)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"-"` // SENSITIVE: never serialized
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Forum configuration
	ApprovalThreshold int `mapstructure:"approval_threshold" json:"approval_threshold"`

	// Chatbot configuration
	SimilarityThreshold float64 `mapstructure:"similarity_threshold" json:"similarity_threshold"`
	RetrievalTopK       int     `mapstructure:"retrieval_top_k" json:"retrieval_top_k"`
	ChatRatePerMinute   int     `mapstructure:"chat_rate_per_minute" json:"chat_rate_per_minute"`

	// HTTP server configuration
	ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`

	// Tracing configuration (OTLP HTTP exporter, disabled when empty)
	TracingEndpoint string `mapstructure:"tracing_endpoint" json:"tracing_endpoint"`
	ServiceName     string `mapstructure:"service_name" json:"service_name"`
	Environment     string `mapstructure:"environment" json:"environment"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".campusq")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing configuration file is not an error; defaults apply.
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL takes priority over individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// AI defaults
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("embedder_model", DefaultGeminiEmbedderModel)
	viper.SetDefault("ollama_host", "http://localhost:11434")

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "campusq")
	viper.SetDefault("postgres_password", "campusq_dev_password")
	viper.SetDefault("postgres_db_name", "campusq")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Forum defaults
	viper.SetDefault("approval_threshold", DefaultApprovalThreshold)

	// Chatbot defaults
	viper.SetDefault("similarity_threshold", DefaultSimilarityThreshold)
	viper.SetDefault("retrieval_top_k", DefaultRetrievalTopK)
	viper.SetDefault("chat_rate_per_minute", 20)

	// Server defaults
	viper.SetDefault("listen_addr", "127.0.0.1:8080")

	// Tracing defaults (disabled unless an endpoint is configured)
	viper.SetDefault("tracing_endpoint", "")
	viper.SetDefault("service_name", "campusq")
	viper.SetDefault("environment", "dev")
}

// bindEnvVariables binds environment variable overrides explicitly.
// GEMINI_API_KEY and OPENAI_API_KEY are read directly by the Genkit plugins,
// not via Viper; Validate() only checks their presence for the selected provider.
func bindEnvVariables() {
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "CAMPUSQ_PROVIDER")
	mustBind("model_name", "CAMPUSQ_MODEL_NAME")
	mustBind("embedder_model", "CAMPUSQ_EMBEDDER_MODEL")
	mustBind("ollama_host", "CAMPUSQ_OLLAMA_HOST")
	mustBind("listen_addr", "CAMPUSQ_LISTEN_ADDR")
	mustBind("approval_threshold", "CAMPUSQ_APPROVAL_THRESHOLD")
	mustBind("similarity_threshold", "CAMPUSQ_SIMILARITY_THRESHOLD")
	mustBind("tracing_endpoint", "CAMPUSQ_TRACING_ENDPOINT")
}
