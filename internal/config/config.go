package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Orderings maps the configurable listing orderings to reddit sort names.
var Orderings = map[string]string{
	"recent-hot":   "hot",
	"newest":       "new",
	"top":          "top",
	"rising":       "rising",
	"most-debated": "controversial",
}

// Timeframes maps the configurable timeframes to reddit "t" parameter values.
// The timeframe only applies to the top and most-debated orderings.
var Timeframes = map[string]string{
	"hour":     "hour",
	"day":      "day",
	"week":     "week",
	"month":    "month",
	"year":     "year",
	"all-time": "all",
}

// Config holds all application configuration
type Config struct {
	Reddit     RedditConfig     `toml:"reddit"`
	Enrichment EnrichmentConfig `toml:"enrichment"`
	Pipeline   PipelineConfig   `toml:"pipeline"`
	Output     OutputConfig     `toml:"output"`
	Logging    LoggingConfig    `toml:"logging"`
}

type RedditConfig struct {
	Username     string `toml:"username"`
	Password     string `toml:"password"`
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	UserAgent    string `toml:"user_agent"`

	Subreddits        []string `toml:"subreddits"`
	PostsPerSubreddit int      `toml:"posts_per_subreddit"`
	Ordering          string   `toml:"ordering"`
	Timeframe         string   `toml:"timeframe"`
	CutoffDays        int      `toml:"cutoff_days"`

	// RequireBody drops posts with empty selftext before enrichment.
	RequireBody bool `toml:"require_body"`
}

type EnrichmentConfig struct {
	Provider string `toml:"provider"` // "openai" or "anthropic"
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"` // optional, for OpenAI-compatible endpoints
	Model    string `toml:"model"`
	Schema   string `toml:"schema"` // "v2" (canonical) or "v1" (legacy labels)

	// Pricing per million tokens for the configured model.
	PriceInPerMTok  float64 `toml:"price_in_per_mtok"`
	PriceOutPerMTok float64 `toml:"price_out_per_mtok"`

	// MaxRetries applies to transient (rate-limit) enrichment failures only.
	// With the default 0 any enrichment failure is fatal to the run.
	MaxRetries int `toml:"max_retries"`

	// SkipFailed keeps posts whose enrichment call failed in the batch,
	// flagged with enrichment_error, instead of aborting the run.
	SkipFailed bool `toml:"skip_failed"`

	// RPM caps the rate of LLM calls. 0 disables the limiter.
	RPM int `toml:"rpm"`
}

type PipelineConfig struct {
	// Concurrency bounds how many posts are comment-fetched and enriched
	// in parallel. 1 means strictly sequential.
	Concurrency int `toml:"concurrency"`
}

type OutputConfig struct {
	Dir        string `toml:"dir"`
	CaptureLLM bool   `toml:"capture_llm"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// Default returns a Config with sensible defaults. Credentials and the LLM
// API key have no defaults and must be supplied via the config file or
// environment.
func Default() *Config {
	return &Config{
		Reddit: RedditConfig{
			UserAgent:         "redscout/1.0",
			Subreddits:        []string{},
			PostsPerSubreddit: 25,
			Ordering:          "top",
			Timeframe:         "week",
			CutoffDays:        90,
			RequireBody:       true,
		},
		Enrichment: EnrichmentConfig{
			Provider:        "openai",
			Model:           "gpt-4o-mini",
			Schema:          "v2",
			PriceInPerMTok:  0.15,
			PriceOutPerMTok: 0.60,
			MaxRetries:      0,
			SkipFailed:      false,
			RPM:             0,
		},
		Pipeline: PipelineConfig{
			Concurrency: 1,
		},
		Output: OutputConfig{
			Dir:        "output",
			CaptureLLM: false,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads config from the given path, applies environment overrides for
// secrets, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the config to the given path.
func (c *Config) Save(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}

// applyEnv overrides secrets from environment variables so they can be kept
// out of the config file.
func (c *Config) applyEnv() {
	if v := os.Getenv("REDSCOUT_REDDIT_PASSWORD"); v != "" {
		c.Reddit.Password = v
	}
	if v := os.Getenv("REDSCOUT_REDDIT_CLIENT_SECRET"); v != "" {
		c.Reddit.ClientSecret = v
	}
	if v := os.Getenv("REDSCOUT_LLM_API_KEY"); v != "" {
		c.Enrichment.APIKey = v
	}
}

// Validate checks that required fields are present and enumerations hold
// known values.
func (c *Config) Validate() error {
	if len(c.Reddit.Subreddits) == 0 {
		return fmt.Errorf("config: at least one subreddit is required")
	}
	if c.Reddit.Username == "" || c.Reddit.Password == "" {
		return fmt.Errorf("config: reddit username and password are required")
	}
	if c.Reddit.ClientID == "" || c.Reddit.ClientSecret == "" {
		return fmt.Errorf("config: reddit client_id and client_secret are required")
	}
	if c.Reddit.PostsPerSubreddit < 1 || c.Reddit.PostsPerSubreddit > 100 {
		return fmt.Errorf("config: posts_per_subreddit must be in [1,100], got %d", c.Reddit.PostsPerSubreddit)
	}
	if _, ok := Orderings[c.Reddit.Ordering]; !ok {
		return fmt.Errorf("config: unknown ordering %q", c.Reddit.Ordering)
	}
	if _, ok := Timeframes[c.Reddit.Timeframe]; !ok {
		return fmt.Errorf("config: unknown timeframe %q", c.Reddit.Timeframe)
	}
	if c.Reddit.CutoffDays < 1 {
		return fmt.Errorf("config: cutoff_days must be positive, got %d", c.Reddit.CutoffDays)
	}
	if c.Enrichment.Provider != "openai" && c.Enrichment.Provider != "anthropic" {
		return fmt.Errorf("config: unknown enrichment provider %q", c.Enrichment.Provider)
	}
	if c.Enrichment.APIKey == "" {
		return fmt.Errorf("config: enrichment api_key is required")
	}
	if c.Enrichment.Model == "" {
		return fmt.Errorf("config: enrichment model is required")
	}
	if c.Enrichment.Schema != "v1" && c.Enrichment.Schema != "v2" {
		return fmt.Errorf("config: unknown enrichment schema %q", c.Enrichment.Schema)
	}
	if c.Enrichment.PriceInPerMTok < 0 || c.Enrichment.PriceOutPerMTok < 0 {
		return fmt.Errorf("config: pricing must be non-negative")
	}
	if c.Enrichment.MaxRetries < 0 {
		return fmt.Errorf("config: max_retries must be non-negative, got %d", c.Enrichment.MaxRetries)
	}
	if c.Pipeline.Concurrency < 1 {
		return fmt.Errorf("config: concurrency must be at least 1, got %d", c.Pipeline.Concurrency)
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("config: output dir is required")
	}
	return nil
}
