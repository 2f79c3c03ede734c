package config

import (
	"fmt"
	"os"
	"slices"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// AI provider configuration
	switch c.Provider {
	case ProviderGemini:
		if os.Getenv("GEMINI_API_KEY") == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required for provider %q",
				ErrMissingAPIKey, c.Provider)
		}
	case ProviderOpenAI:
		if os.Getenv("OPENAI_API_KEY") == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY environment variable is required for provider %q",
				ErrMissingAPIKey, c.Provider)
		}
	case ProviderOllama:
		if c.OllamaHost == "" {
			return fmt.Errorf("%w: ollama_host cannot be empty for provider %q",
				ErrInvalidOllamaHost, c.Provider)
		}
	default:
		return fmt.Errorf("%w: %q, must be one of: gemini, openai, ollama",
			ErrInvalidProvider, c.Provider)
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	// Forum configuration
	if c.ApprovalThreshold < 1 || c.ApprovalThreshold > 1000 {
		return fmt.Errorf("%w: must be between 1 and 1000, got %d",
			ErrInvalidApprovalThreshold, c.ApprovalThreshold)
	}

	// Chatbot configuration. Similarity is a cosine score, so the useful
	// range is (0, 1]; 0 would disable the fallback entirely.
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: must be in (0, 1], got %.2f",
			ErrInvalidSimilarityThreshold, c.SimilarityThreshold)
	}
	if c.RetrievalTopK < 1 || c.RetrievalTopK > MaxRetrievalTopK {
		return fmt.Errorf("%w: must be between 1 and %d, got %d",
			ErrInvalidRetrievalTopK, MaxRetrievalTopK, c.RetrievalTopK)
	}
	if c.ChatRatePerMinute < 1 || c.ChatRatePerMinute > 10000 {
		return fmt.Errorf("%w: must be between 1 and 10000, got %d",
			ErrInvalidChatRateLimit, c.ChatRatePerMinute)
	}

	// PostgreSQL configuration
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d",
			ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	// Modern SSL modes only - exclude deprecated allow/prefer (MITM vulnerable).
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	return nil
}
