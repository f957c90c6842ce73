package nw

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	DefaultProvider       = ProviderOpenAI
	DefaultModel          = "gpt-4o-mini"
	DefaultGeminiModel    = "gemini-2.5-flash"
	DefaultTemperature    = 0.3
	DefaultMaxTokens      = 120
	DefaultTimeoutSeconds = 20

	// environment variable which overrides the api key of settings
	EnvAPIKey = "NEWS_WIDGET_API_KEY"
)

// Settings is the process-wide configuration of dek rewriting.
type Settings struct {
	APIKey         string  `json:"api_key" yaml:"api_key"`
	AIEnabled      bool    `json:"ai_enabled" yaml:"ai_enabled"`
	Provider       string  `json:"provider" yaml:"provider" validate:"omitempty,oneof=openai gemini"`
	Model          string  `json:"model" yaml:"model"`
	Temperature    float64 `json:"temperature" yaml:"temperature" validate:"gte=0,lte=1"`
	MaxTokens      int     `json:"max_tokens" yaml:"max_tokens" validate:"gte=0,lte=4096"`
	BaseURL        string  `json:"base_url,omitempty" yaml:"base_url,omitempty" validate:"omitempty,url"`
	TimeoutSeconds int     `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty" validate:"gte=0,lte=300"`
}

// DefaultSettings returns settings with default values. (AI rewriting is disabled)
func DefaultSettings() Settings {
	return Settings{
		AIEnabled:      false,
		Provider:       DefaultProvider,
		Model:          DefaultModel,
		Temperature:    DefaultTemperature,
		MaxTokens:      DefaultMaxTokens,
		TimeoutSeconds: DefaultTimeoutSeconds,
	}
}

// withDefaults fills empty values with defaults.
func (s Settings) withDefaults() Settings {
	s.APIKey = strings.TrimSpace(s.APIKey)
	s.Provider = strings.ToLower(strings.TrimSpace(s.Provider))
	if s.Provider == "" {
		s.Provider = DefaultProvider
	}
	s.Model = strings.TrimSpace(s.Model)
	if s.Model == "" {
		if s.Provider == ProviderGemini {
			s.Model = DefaultGeminiModel
		} else {
			s.Model = DefaultModel
		}
	}
	if s.MaxTokens <= 0 {
		s.MaxTokens = DefaultMaxTokens
	}
	if s.TimeoutSeconds <= 0 {
		s.TimeoutSeconds = DefaultTimeoutSeconds
	}
	return s
}

// RewriteConfigured returns true if dek rewriting is enabled with an api key.
func (s Settings) RewriteConfigured() bool {
	return s.AIEnabled && strings.TrimSpace(s.APIKey) != ""
}

// Validate validates the settings.
func (s Settings) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

// LoadSettings loads settings from given file.
//
// Files with `.yaml` or `.yml` extensions are read as YAML,
// others as JSON with comments and trailing commas (JWCC).
//
// Missing values are filled with defaults, and the api key is
// overridden with the environment variable `NEWS_WIDGET_API_KEY` if it is set.
func LoadSettings(path string) (settings Settings, err error) {
	var b []byte
	if b, err = os.ReadFile(path); err != nil {
		return Settings{}, fmt.Errorf("failed to read settings file '%s': %w", path, err)
	}

	settings = DefaultSettings()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err = yaml.Unmarshal(b, &settings); err != nil {
			return Settings{}, fmt.Errorf("failed to parse yaml settings '%s': %w", path, err)
		}
	default:
		if b, err = StandardizeJSON(b); err != nil {
			return Settings{}, fmt.Errorf("failed to standardize json settings '%s': %w", path, err)
		}
		if err = json.Unmarshal(b, &settings); err != nil {
			return Settings{}, fmt.Errorf("failed to parse json settings '%s': %w", path, err)
		}
	}

	if key := strings.TrimSpace(os.Getenv(EnvAPIKey)); key != "" {
		settings.APIKey = key
	}

	if err = settings.Validate(); err != nil {
		return Settings{}, err
	}

	return settings.withDefaults(), nil
}
