// Package config holds the process-wide Settings value and its
// construction from environment variables, with an optional YAML overlay
// applied by Load. Settings is built
// once at startup and threaded into every constructor; there is no
// hot-reload or remote config service here.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Settings is the fully-resolved configuration for one agentd process.
type Settings struct {
	Server    ServerConfig
	Postgres  PostgresConfig
	Anthropic AnthropicConfig
	OpenAI    OpenAIConfig
	Agent     AgentConfig
	Artifacts ArtifactsConfig
	Logging   LoggingConfig
	Redis     RedisConfig
}

type ServerConfig struct {
	Addr string
}

type PostgresConfig struct {
	DSN string
}

type AnthropicConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type AgentConfig struct {
	MaxIterations      int
	MaxToolParallelism int
}

type ArtifactsConfig struct {
	Root            string
	SourceCacheRoot string
}

type LoggingConfig struct {
	Level   string
	LogPath string
}

type RedisConfig struct {
	Addr string
}

// FromEnv populates Settings from environment variables, applying the
// defaults a development instance needs. It never reads a config file
// or watches for changes - that machinery is intentionally absent.
func FromEnv() (Settings, error) {
	s := Settings{
		Server: ServerConfig{
			Addr: getenv("EVIDENTIA_ADDR", ":8080"),
		},
		Postgres: PostgresConfig{
			DSN: getenv("EVIDENTIA_POSTGRES_DSN", "postgres://localhost:5432/evidentia?sslmode=disable"),
		},
		Anthropic: AnthropicConfig{
			APIKey:  os.Getenv("ANTHROPIC_API_KEY"),
			Model:   getenv("EVIDENTIA_ANTHROPIC_MODEL", "claude-sonnet-4-5"),
			BaseURL: os.Getenv("ANTHROPIC_BASE_URL"),
		},
		OpenAI: OpenAIConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			Model:   getenv("EVIDENTIA_OPENAI_MODEL", "gpt-4.1"),
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
		},
		Agent: AgentConfig{
			MaxIterations:      getenvInt("EVIDENTIA_MAX_ITERATIONS", 12),
			MaxToolParallelism: getenvInt("EVIDENTIA_MAX_TOOL_PARALLELISM", 4),
		},
		Artifacts: ArtifactsConfig{
			Root:            getenv("EVIDENTIA_ARTIFACT_ROOT", "./data/artifacts"),
			SourceCacheRoot: getenv("EVIDENTIA_SOURCE_CACHE_ROOT", "./data/source_cache"),
		},
		Logging: LoggingConfig{
			Level:   getenv("EVIDENTIA_LOG_LEVEL", "info"),
			LogPath: os.Getenv("EVIDENTIA_LOG_PATH"),
		},
		Redis: RedisConfig{
			Addr: getenv("EVIDENTIA_REDIS_ADDR", "localhost:6379"),
		},
	}
	if s.Agent.MaxIterations < 1 {
		return Settings{}, fmt.Errorf("config: agent.max_iterations must be >= 1, got %d", s.Agent.MaxIterations)
	}
	return s, nil
}

// overlay mirrors the subset of Settings an operator may want to pin in
// a checked-in file rather than the environment - mainly model choice
// and agent limits. Any field left unset in the YAML keeps its FromEnv
// value.
type overlay struct {
	Agent *struct {
		MaxIterations      *int `yaml:"max_iterations"`
		MaxToolParallelism *int `yaml:"max_tool_parallelism"`
	} `yaml:"agent"`
	Anthropic *struct {
		Model *string `yaml:"model"`
	} `yaml:"anthropic"`
	OpenAI *struct {
		Model *string `yaml:"model"`
	} `yaml:"openai"`
	Logging *struct {
		Level *string `yaml:"level"`
	} `yaml:"logging"`
}

// Load builds Settings from the environment and then applies a YAML
// overlay file on top, when path is non-empty. A missing file at path
// is an error; an empty path skips the overlay entirely.
func Load(path string) (Settings, error) {
	s, err := FromEnv()
	if err != nil {
		return Settings{}, err
	}
	if path == "" {
		return s, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("config: read overlay %s: %w", path, err)
	}
	var o overlay
	if err := yaml.Unmarshal(raw, &o); err != nil {
		return Settings{}, fmt.Errorf("config: parse overlay %s: %w", path, err)
	}
	if o.Agent != nil {
		if o.Agent.MaxIterations != nil {
			s.Agent.MaxIterations = *o.Agent.MaxIterations
		}
		if o.Agent.MaxToolParallelism != nil {
			s.Agent.MaxToolParallelism = *o.Agent.MaxToolParallelism
		}
	}
	if o.Anthropic != nil && o.Anthropic.Model != nil {
		s.Anthropic.Model = *o.Anthropic.Model
	}
	if o.OpenAI != nil && o.OpenAI.Model != nil {
		s.OpenAI.Model = *o.OpenAI.Model
	}
	if o.Logging != nil && o.Logging.Level != nil {
		s.Logging.Level = *o.Logging.Level
	}
	if s.Agent.MaxIterations < 1 {
		return Settings{}, fmt.Errorf("config: agent.max_iterations must be >= 1, got %d", s.Agent.MaxIterations)
	}
	return s, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
