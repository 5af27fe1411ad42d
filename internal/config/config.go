package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config is the top-level configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Analysis   AnalysisConfig   `yaml:"analysis" mapstructure:"analysis"`
	Tasks      TasksConfig      `yaml:"tasks" mapstructure:"tasks"`
	Zimas      ZimasConfig      `yaml:"zimas" mapstructure:"zimas"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Tavily     TavilyConfig     `yaml:"tavily" mapstructure:"tavily"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	LLM        LLMConfig        `yaml:"llm" mapstructure:"llm"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	OpenRouter OpenRouterConfig `yaml:"openrouter" mapstructure:"openrouter"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Resilience ResilienceConfig `yaml:"resilience" mapstructure:"resilience"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port            int `yaml:"port" mapstructure:"port"`
	SyncTimeoutSecs int `yaml:"sync_timeout_secs" mapstructure:"sync_timeout_secs"`
}

// AnalysisConfig configures admission and the worker pool.
type AnalysisConfig struct {
	MaxActiveTasks int    `yaml:"max_active_tasks" mapstructure:"max_active_tasks"`
	Workers        int    `yaml:"workers" mapstructure:"workers"`
	DefaultDepth   string `yaml:"default_depth" mapstructure:"default_depth"`
}

// TasksConfig configures task retention in the tracker.
type TasksConfig struct {
	RetentionSecs     int `yaml:"retention_secs" mapstructure:"retention_secs"`
	SweepIntervalSecs int `yaml:"sweep_interval_secs" mapstructure:"sweep_interval_secs"`
	MaxAgeMins        int `yaml:"max_age_mins" mapstructure:"max_age_mins"`
}

// ZimasConfig configures the browser-driven property lookup.
type ZimasConfig struct {
	BaseURL         string `yaml:"base_url" mapstructure:"base_url"`
	Headless        bool   `yaml:"headless" mapstructure:"headless"`
	PoolSize        int    `yaml:"pool_size" mapstructure:"pool_size"`
	PageTimeoutSecs int    `yaml:"page_timeout_secs" mapstructure:"page_timeout_secs"`
	SettleMs        int    `yaml:"settle_ms" mapstructure:"settle_ms"`
}

// SearchConfig configures the web search step.
type SearchConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"`
	MaxResults  int     `yaml:"max_results" mapstructure:"max_results"`
	Concurrency int     `yaml:"concurrency" mapstructure:"concurrency"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// TavilyConfig holds Tavily search settings.
type TavilyConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	SearchDepth string `yaml:"search_depth" mapstructure:"search_depth"`
}

// JinaConfig holds Jina search settings.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// LLMConfig selects the synthesis provider.
type LLMConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// OpenRouterConfig holds OpenRouter API settings.
type OpenRouterConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// ResilienceConfig configures retries and circuit breakers for outbound calls.
type ResilienceConfig struct {
	RetryAttempts      int     `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryInitialMs     int     `yaml:"retry_initial_ms" mapstructure:"retry_initial_ms"`
	RetryMaxMs         int     `yaml:"retry_max_ms" mapstructure:"retry_max_ms"`
	RetryMultiplier    float64 `yaml:"retry_multiplier" mapstructure:"retry_multiplier"`
	RetryJitter        float64 `yaml:"retry_jitter" mapstructure:"retry_jitter"`
	CircuitThreshold   int     `yaml:"circuit_threshold" mapstructure:"circuit_threshold"`
	CircuitCooldownSec int     `yaml:"circuit_cooldown_secs" mapstructure:"circuit_cooldown_secs"`
}

// MonitoringConfig configures the task health checker.
type MonitoringConfig struct {
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	MinFinished          int     `yaml:"min_finished" mapstructure:"min_finished"`
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config.yaml and the environment.
func Load() (*Config, error) {
	// A missing .env is fine.
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PROPERTY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.sync_timeout_secs", 300)
	v.SetDefault("analysis.max_active_tasks", 10)
	v.SetDefault("analysis.workers", 10)
	v.SetDefault("analysis.default_depth", "standard")
	v.SetDefault("tasks.retention_secs", 10)
	v.SetDefault("tasks.sweep_interval_secs", 5)
	v.SetDefault("tasks.max_age_mins", 60)
	v.SetDefault("zimas.base_url", "https://zimas.lacity.org/")
	v.SetDefault("zimas.headless", true)
	v.SetDefault("zimas.pool_size", 2)
	v.SetDefault("zimas.page_timeout_secs", 30)
	v.SetDefault("zimas.settle_ms", 2000)
	v.SetDefault("search.provider", "tavily")
	v.SetDefault("search.max_results", 5)
	v.SetDefault("search.concurrency", 3)
	v.SetDefault("search.rate_per_sec", 2.0)
	v.SetDefault("tavily.base_url", "https://api.tavily.com")
	v.SetDefault("tavily.search_depth", "advanced")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("llm.provider", "openrouter")
	v.SetDefault("llm.max_tokens", 3000)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("openrouter.model", "qwen/qwen-2.5-72b-instruct")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar")
	v.SetDefault("resilience.retry_attempts", 3)
	v.SetDefault("resilience.retry_initial_ms", 500)
	v.SetDefault("resilience.retry_max_ms", 10000)
	v.SetDefault("resilience.retry_multiplier", 2.0)
	v.SetDefault("resilience.retry_jitter", 0.25)
	v.SetDefault("resilience.circuit_threshold", 5)
	v.SetDefault("resilience.circuit_cooldown_secs", 30)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.failure_rate_threshold", 0.5)
	v.SetDefault("monitoring.min_finished", 5)
	v.SetDefault("monitoring.lookback_window_hours", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks provider selection, credentials and pool sizes. All
// problems are reported together.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.Analysis.MaxActiveTasks <= 0 {
		errs = append(errs, "analysis.max_active_tasks must be > 0")
	}
	if c.Analysis.Workers <= 0 {
		errs = append(errs, "analysis.workers must be > 0")
	}
	if c.Zimas.PoolSize <= 0 {
		errs = append(errs, "zimas.pool_size must be > 0")
	}
	if c.Search.Concurrency <= 0 {
		errs = append(errs, "search.concurrency must be > 0")
	}

	switch c.Search.Provider {
	case "tavily":
		if c.Tavily.Key == "" {
			errs = append(errs, "tavily.key is required")
		}
	case "jina":
		if c.Jina.Key == "" {
			errs = append(errs, "jina.key is required")
		}
	default:
		errs = append(errs, "search.provider must be tavily or jina, got "+quote(c.Search.Provider))
	}

	switch c.LLM.Provider {
	case "anthropic":
		if c.Anthropic.Key == "" {
			errs = append(errs, "anthropic.key is required")
		}
	case "openrouter":
		if c.OpenRouter.Key == "" {
			errs = append(errs, "openrouter.key is required")
		}
	case "perplexity":
		if c.Perplexity.Key == "" {
			errs = append(errs, "perplexity.key is required")
		}
	default:
		errs = append(errs, "llm.provider must be anthropic, openrouter or perplexity, got "+quote(c.LLM.Provider))
	}

	if t := c.Monitoring.FailureRateThreshold; t < 0 || t > 1 {
		errs = append(errs, "monitoring.failure_rate_threshold must be between 0 and 1")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func quote(s string) string { return `"` + s + `"` }

// SyncTimeout is the blocking analyze deadline.
func (c *Config) SyncTimeout() time.Duration {
	return time.Duration(c.Server.SyncTimeoutSecs) * time.Second
}

// Retention is how long terminal tasks stay visible to status polls.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Tasks.RetentionSecs) * time.Second
}

// SweepInterval is the tracker sweep period.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Tasks.SweepIntervalSecs) * time.Second
}

// MaxTaskAge is the default age for explicit task eviction.
func (c *Config) MaxTaskAge() time.Duration {
	return time.Duration(c.Tasks.MaxAgeMins) * time.Minute
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}

	zap.ReplaceGlobals(logger)
	return nil
}
