package completion

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Default model ids per tier. Overridable via Config.Models.
var defaultModels = map[Tier]string{
	TierFast:     "claude-3-5-haiku-latest",
	TierBalanced: "claude-sonnet-4-0",
	TierPowerful: "claude-opus-4-0",
}

const (
	defaultBaseURL   = "https://api.anthropic.com"
	defaultMaxTokens = 4096
	defaultTimeout   = 120 * time.Second

	envAPIKey  = "LOOMGRID_API_KEY"
	envBaseURL = "LOOMGRID_BASE_URL"
)

// ErrNoAPIKey is returned by Resolve when no credential can be found.
var ErrNoAPIKey = errors.New("no completion API key configured")

// Config is everything needed to build an HTTP client. It is resolved
// once per process and passed in explicitly; dispatch logic never reads
// the environment.
type Config struct {
	APIKey    string
	BaseURL   string
	Models    map[Tier]string
	MaxTokens int
	Timeout   time.Duration
}

// Model returns the model id for a tier, falling back to the built-in
// mapping, then to the balanced default.
func (c Config) Model(tier Tier) string {
	if m, ok := c.Models[tier]; ok && m != "" {
		return m
	}
	if m, ok := defaultModels[tier]; ok {
		return m
	}
	return defaultModels[TierBalanced]
}

// Resolve builds a Config from, in order of precedence: the explicit key,
// the process environment, and a .env file loaded from envFile (skipped
// when empty or missing). The resulting config is the single source of
// credential truth for a run.
func Resolve(explicitKey, envFile string) (Config, error) {
	if envFile != "" {
		// Load fills only variables not already set, so the real
		// environment keeps precedence over the file.
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("loading env file %s: %w", envFile, err)
		}
	}

	key := explicitKey
	if key == "" {
		key = os.Getenv(envAPIKey)
	}
	if key == "" {
		return Config{}, fmt.Errorf("%w: set %s or pass -api-key", ErrNoAPIKey, envAPIKey)
	}

	cfg := Config{
		APIKey:    key,
		BaseURL:   defaultBaseURL,
		MaxTokens: defaultMaxTokens,
		Timeout:   defaultTimeout,
	}
	if u := os.Getenv(envBaseURL); u != "" {
		cfg.BaseURL = u
	}
	return cfg, nil
}
