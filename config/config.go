package config

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/3bi-io/nexus-core/utils/env"
)

// GatewayConfig points at one hosted inference service.
type GatewayConfig struct {
	// Base URL of the service. E.g., "https://gateway.example.com"
	BaseUrl string `yaml:"base_url"`

	// API key for the service. Usually supplied via environment variable.
	ApiKey string `yaml:"api_key"`

	// Per-request timeout. E.g., "60s"
	Timeout string `yaml:"timeout"`
}

// LocalRuntimeConfig describes the in-process accelerated runtime.
type LocalRuntimeConfig struct {
	// Whether the deployment's security policy permits low-level runtime
	// access at all. Sandboxed deployments set this to false.
	Allowed bool `yaml:"allowed"`

	// Health endpoint base URL of the runtime. E.g., "http://localhost:11434"
	Url string `yaml:"url"`
}

// ModelsConfig carries the conversational model tiers.
type ModelsConfig struct {
	// Default fast model for the general path.
	Default string `yaml:"default"`

	// High-capability model for complex requests.
	Advanced string `yaml:"advanced"`
}

// Config is the full application configuration.
type Config struct {
	// Port to listen for incoming requests.
	Port int `yaml:"port"`

	// API key callers must present in the Authorization header with the
	// Bearer scheme. Empty disables the check (development only).
	ApiKey string

	// HS256 secret for JWT bearer tokens. Empty disables JWT validation.
	JwtSecret string

	// Valkey endpoint for the durable interaction log. Empty selects the
	// in-memory log. E.g., localhost:6379
	ValkeyEndpoint string `yaml:"valkey_endpoint"`

	// Primary hosted multi-model gateway.
	Gateway GatewayConfig `yaml:"gateway"`

	// Secondary hosted inference service.
	Inference GatewayConfig `yaml:"inference"`

	// Internal collaborator services (coordinator, agents, search, memory,
	// behaviors).
	Collaborators GatewayConfig `yaml:"collaborators"`

	// Local accelerated runtime.
	LocalRuntime LocalRuntimeConfig `yaml:"local_runtime"`

	// Conversational model tiers.
	Models ModelsConfig `yaml:"models"`

	// Base system prompt for the conversational path.
	SystemPrompt string `yaml:"system_prompt"`
}

// LoadConfig reads the YAML file at path, then applies environment variable
// overrides. Environment values precede the values from the file.
func LoadConfig(path string, logger *zap.SugaredLogger) (*Config, error) {
	// Setting default values.
	config := Config{
		Port: 8080,
		Gateway: GatewayConfig{
			BaseUrl: "https://gateway.nexus.internal",
			Timeout: "60s",
		},
		Inference: GatewayConfig{
			BaseUrl: "https://inference.nexus.internal",
			Timeout: "90s",
		},
		Collaborators: GatewayConfig{
			BaseUrl: "http://localhost:9090",
			Timeout: "30s",
		},
		LocalRuntime: LocalRuntimeConfig{
			Allowed: true,
			Url:     "http://localhost:11434",
		},
		Models: ModelsConfig{
			Default:  "openai/gpt-4o-mini",
			Advanced: "anthropic/claude-3.5-sonnet",
		},
	}

	if path != "" {
		logger.Infow("Loading config", "path", path)
		configData, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %v", err)
		}
		if err := yaml.Unmarshal(configData, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %v", err)
		}
	}

	// Overrides config with environment variables.
	// Therefore, the values from the environment variables precede the
	// values from the YAML file.
	config.Port = env.OptionalIntVariable("PORT", config.Port)
	config.ApiKey = env.OptionalStringVariable("NEXUS_API_KEY", config.ApiKey)
	config.JwtSecret = env.OptionalStringVariable("NEXUS_JWT_SECRET", config.JwtSecret)
	config.ValkeyEndpoint = env.OptionalStringVariable("VALKEY_ENDPOINT", config.ValkeyEndpoint)
	config.Gateway.BaseUrl = env.OptionalStringVariable("GATEWAY_BASE_URL", config.Gateway.BaseUrl)
	config.Gateway.ApiKey = env.OptionalStringVariable("GATEWAY_API_KEY", config.Gateway.ApiKey)
	config.Inference.BaseUrl = env.OptionalStringVariable("INFERENCE_BASE_URL", config.Inference.BaseUrl)
	config.Inference.ApiKey = env.OptionalStringVariable("INFERENCE_API_KEY", config.Inference.ApiKey)
	config.Collaborators.BaseUrl = env.OptionalStringVariable("COLLABORATORS_BASE_URL", config.Collaborators.BaseUrl)
	config.Collaborators.ApiKey = env.OptionalStringVariable("COLLABORATORS_API_KEY", config.Collaborators.ApiKey)
	config.LocalRuntime.Url = env.OptionalStringVariable("LOCAL_RUNTIME_URL", config.LocalRuntime.Url)
	config.LocalRuntime.Allowed = env.OptionalBoolVariable("LOCAL_RUNTIME_ALLOWED", config.LocalRuntime.Allowed)
	config.Models.Default = env.OptionalStringVariable("DEFAULT_MODEL", config.Models.Default)
	config.Models.Advanced = env.OptionalStringVariable("ADVANCED_MODEL", config.Models.Advanced)

	return &config, nil
}

// ParseTimeout converts a config timeout string, defaulting on errors.
func ParseTimeout(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
