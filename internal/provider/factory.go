package provider

import (
	"context"
	"os"
	"strconv"

	"github.com/cloudwego/eino/components/model"
)

// ConfigFromEnv builds a provider Config from environment variables.
//
// Environment variables:
//
//	MODEL_PROVIDER    = ollama | openai | azure | bedrock | gemini (default: ollama)
//	MODEL_NAME        = model name or deployment ID (default: llama3 for ollama)
//	MODEL_BASE_URL    = API endpoint override (required for azure)
//	MODEL_API_KEY     = credential for the selected provider
//	AZURE_DEPLOYMENT  = Azure OpenAI deployment name (azure only)
//	AZURE_API_VERSION = Azure OpenAI API version (default: 2024-02-01)
//	MODEL_MAX_TOKENS  = generation cap (default: 2048)
//	MODEL_TEMPERATURE = sampling temperature (default: 0.1)
//
// The low default temperature keeps answers close to the retrieved text.
func ConfigFromEnv() *Config {
	cfg := &Config{
		Backend:         Backend(getEnvOrDefault("MODEL_PROVIDER", string(BackendOllama))),
		Model:           os.Getenv("MODEL_NAME"),
		BaseURL:         os.Getenv("MODEL_BASE_URL"),
		APIKey:          os.Getenv("MODEL_API_KEY"),
		AzureDeployment: os.Getenv("AZURE_DEPLOYMENT"),
		AzureAPIVersion: getEnvOrDefault("AZURE_API_VERSION", "2024-02-01"),
		MaxTokens:       getEnvInt("MODEL_MAX_TOKENS", 2048),
		Temperature:     getEnvFloat32("MODEL_TEMPERATURE", 0.1),
	}
	if cfg.Backend == BackendOllama && cfg.Model == "" {
		cfg.Model = "llama3"
	}
	return cfg
}

// New constructs a chat model from an explicit Config, delegating to the
// appropriate backend factory function. It validates the config first so
// callers get a clear error at startup rather than on the first request.
func New(ctx context.Context, cfg *Config) (model.BaseChatModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case BackendOllama:
		return newOllama(ctx, cfg)
	case BackendOpenAI:
		return newOpenAI(ctx, cfg)
	case BackendAzure:
		return newAzure(ctx, cfg)
	case BackendBedrock:
		return newBedrock(ctx, cfg)
	case BackendGemini:
		return newGemini(ctx, cfg)
	default:
		// Unreachable after Validate, kept for exhaustiveness.
		return nil, cfg.Validate()
	}
}

// NewFromEnv constructs a chat model from environment configuration.
func NewFromEnv(ctx context.Context) (model.BaseChatModel, error) {
	return New(ctx, ConfigFromEnv())
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvFloat32 returns the float32 value of the named environment variable,
// or fallback if the variable is unset, empty, or not parseable.
func getEnvFloat32(key string, fallback float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return fallback
}
