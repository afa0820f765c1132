package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the pipeline system
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Search    SearchConfig    `mapstructure:"search"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug             bool          `mapstructure:"debug"`
	LogLevel          string        `mapstructure:"log_level"`
	MaxProcessingTime time.Duration `mapstructure:"max_processing_time"`
	DefaultTimeout    time.Duration `mapstructure:"default_timeout"`
}

// LLMConfig contains generative/embedding provider settings
type LLMConfig struct {
	Provider        string        `mapstructure:"provider"` // openai, local, etc.
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	CompletionModel string        `mapstructure:"completion_model"`
	EmbeddingModel  string        `mapstructure:"embedding_model"`
	Temperature     float64       `mapstructure:"temperature"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	MetricsPort  int    `mapstructure:"metrics_port"`
	CostTracking bool   `mapstructure:"cost_tracking"`
	PeriodicLogs bool   `mapstructure:"periodic_logs"`
	LogFile      string `mapstructure:"log_file"`
}

func (t TelemetryConfig) Validate() error {
	if t.Enabled && t.MetricsPort <= 0 {
		return fmt.Errorf("telemetry.metrics_port must be > 0 when telemetry is enabled")
	}
	return nil
}

// PipelineConfig groups the per-stage pipeline settings
type PipelineConfig struct {
	Grouping  GroupingConfig  `mapstructure:"grouping"`
	Bias      BiasConfig      `mapstructure:"bias"`
	Summarize SummarizeConfig `mapstructure:"summarize"`
	Workers   WorkersConfig   `mapstructure:"workers"`
}

// GroupingConfig controls the embedding-clustering stage
type GroupingConfig struct {
	SimilarityThreshold  float64       `mapstructure:"similarity_threshold"`
	MinArticlesPerGroup  int           `mapstructure:"min_articles_per_group"`
	MaxArticlesPerGroup  int           `mapstructure:"max_articles_per_group"`
	ContentPrefixChars   int           `mapstructure:"content_prefix_chars"`
	EmbeddingCacheExpiry time.Duration `mapstructure:"embedding_cache_expiry"`
}

// BiasConfig controls the bias-scoring stage
type BiasConfig struct {
	RulesFile     string `mapstructure:"rules_file"`
	MinConfidence string `mapstructure:"min_confidence"` // low, medium, high
}

// SummarizeConfig controls the summarization-and-validation stage
type SummarizeConfig struct {
	MinSummaryLength int  `mapstructure:"min_summary_length"`
	MaxSummaryLength int  `mapstructure:"max_summary_length"`
	RequireCitations bool `mapstructure:"require_citations"`
	MaxRetries       int  `mapstructure:"max_retries"`
	ExcerptChars     int  `mapstructure:"excerpt_chars"`
}

// WorkersConfig bounds the parallel fan-out within a run
type WorkersConfig struct {
	ScoringWorkers int `mapstructure:"scoring_workers"`
	SummaryWorkers int `mapstructure:"summary_workers"`
	EmbeddingBatch int `mapstructure:"embedding_batch"`
}

// SourcesConfig contains news source configurations
type SourcesConfig struct {
	NewsAPI        NewsAPIConfig `mapstructure:"newsapi"`
	ExpectedNames  []string      `mapstructure:"expected_names"`
	ExtractContent bool          `mapstructure:"extract_content"`
}

// NewsAPIConfig contains NewsAPI settings
type NewsAPIConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	Endpoint   string        `mapstructure:"endpoint"`
	Query      string        `mapstructure:"query"`
	MaxResults int           `mapstructure:"max_results"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// DSN assembles a connection string, preferring an explicit URL.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DBName, p.SSLMode)
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// SchedulerConfig controls recurring batch execution
type SchedulerConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	CronSpec string        `mapstructure:"cron_spec"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

// SearchConfig controls the summary search index
type SearchConfig struct {
	IndexPath string `mapstructure:"index_path"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("talkless")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("TALKLESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional; defaults plus env cover a bare deployment.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// General defaults
	v.SetDefault("general.debug", false)
	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.max_processing_time", "10m")
	v.SetDefault("general.default_timeout", "30s")

	// LLM defaults
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.completion_model", "gpt-4o-mini")
	v.SetDefault("llm.embedding_model", "text-embedding-3-small")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.timeout", "60s")

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.metrics_port", 9090)
	v.SetDefault("telemetry.cost_tracking", true)
	v.SetDefault("telemetry.periodic_logs", false)

	// Pipeline defaults
	v.SetDefault("pipeline.grouping.similarity_threshold", 0.7)
	v.SetDefault("pipeline.grouping.min_articles_per_group", 2)
	v.SetDefault("pipeline.grouping.max_articles_per_group", 10)
	v.SetDefault("pipeline.grouping.content_prefix_chars", 500)
	v.SetDefault("pipeline.grouping.embedding_cache_expiry", "24h")
	v.SetDefault("pipeline.bias.rules_file", "config/bias_rules.yaml")
	v.SetDefault("pipeline.bias.min_confidence", "low")
	v.SetDefault("pipeline.summarize.min_summary_length", 200)
	v.SetDefault("pipeline.summarize.max_summary_length", 1000)
	v.SetDefault("pipeline.summarize.require_citations", true)
	v.SetDefault("pipeline.summarize.max_retries", 2)
	v.SetDefault("pipeline.summarize.excerpt_chars", 800)
	v.SetDefault("pipeline.workers.scoring_workers", 4)
	v.SetDefault("pipeline.workers.summary_workers", 2)
	v.SetDefault("pipeline.workers.embedding_batch", 64)

	// Sources defaults
	v.SetDefault("sources.newsapi.endpoint", "https://newsapi.org/v2/top-headlines")
	v.SetDefault("sources.newsapi.max_results", 100)
	v.SetDefault("sources.newsapi.timeout", "30s")
	v.SetDefault("sources.extract_content", false)

	// Storage defaults
	v.SetDefault("storage.postgres.host", "localhost")
	v.SetDefault("storage.postgres.port", 5432)
	v.SetDefault("storage.postgres.sslmode", "disable")
	v.SetDefault("storage.postgres.timeout", "5s")
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.timeout", "5s")

	// Scheduler defaults
	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.cron_spec", "0 * * * *")
	v.SetDefault("scheduler.lock_ttl", "2m")

	// Search defaults
	v.SetDefault("search.index_path", "")
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if err := config.Telemetry.Validate(); err != nil {
		return err
	}
	g := config.Pipeline.Grouping
	if g.SimilarityThreshold <= 0 || g.SimilarityThreshold > 1 {
		return fmt.Errorf("pipeline.grouping.similarity_threshold must be in (0, 1]")
	}
	if g.MinArticlesPerGroup < 1 {
		return fmt.Errorf("pipeline.grouping.min_articles_per_group must be >= 1")
	}
	if g.MaxArticlesPerGroup < g.MinArticlesPerGroup {
		return fmt.Errorf("pipeline.grouping.max_articles_per_group must be >= min_articles_per_group")
	}
	switch config.Pipeline.Bias.MinConfidence {
	case "low", "medium", "high":
	default:
		return fmt.Errorf("pipeline.bias.min_confidence must be one of low, medium, high")
	}
	s := config.Pipeline.Summarize
	if s.MinSummaryLength <= 0 || s.MaxSummaryLength < s.MinSummaryLength {
		return fmt.Errorf("pipeline.summarize summary length bounds are inconsistent")
	}
	if s.MaxRetries < 0 {
		return fmt.Errorf("pipeline.summarize.max_retries must be >= 0")
	}
	return nil
}
