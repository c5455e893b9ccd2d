package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Storage backends selectable through DB_TYPE.
const (
	DBTypeSupabase = "supabase"
	DBTypeSQLite   = "sqlite"
)

// LLM providers selectable through LLM_PROVIDER.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

const defaultSQLiteFile = "ideas.db"

type Config struct {
	AppEnv     string `env:"APP_ENV" envDefault:"local"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	DataDir    string `env:"DATA_DIR" envDefault:"data"`
	HealthPort int    `env:"HEALTH_PORT" envDefault:"8080"`

	// Generation backend
	LLMProvider      string        `env:"LLM_PROVIDER" envDefault:"ollama"`
	OllamaURL        string        `env:"OLLAMA_URL" envDefault:"http://localhost:11434"`
	LLMModel         string        `env:"LLM_MODEL" envDefault:"mistral:latest"`
	LLMAPIKey        string        `env:"LLM_API_KEY"`
	LLMBaseURL       string        `env:"LLM_BASE_URL"`
	LLMTemperature   float32       `env:"LLM_TEMPERATURE" envDefault:"0.3"`
	LLMMaxTokens     int           `env:"LLM_MAX_TOKENS" envDefault:"500"`
	LLMTimeout       time.Duration `env:"LLM_TIMEOUT" envDefault:"120s"`
	LLMRateLimitRPS  float64       `env:"LLM_RATE_LIMIT_RPS" envDefault:"1"`
	AnalysisBatch    int           `env:"ANALYSIS_BATCH_SIZE" envDefault:"5"`
	AnalysisDelay    time.Duration `env:"ANALYSIS_DELAY" envDefault:"1s"`
	SimilarityThresh float64       `env:"SIMILARITY_THRESHOLD" envDefault:"0.85"`
	MinScore         int           `env:"MIN_SCORE_THRESHOLD" envDefault:"65"`

	// Storage
	DBType           string `env:"DB_TYPE" envDefault:"supabase"`
	SQLitePath       string `env:"SQLITE_PATH"`
	SupabaseDBURL    string `env:"SUPABASE_DB_URL"`
	DBMaxConnections int32  `env:"DB_MAX_CONNECTIONS" envDefault:"5"`
	RawRetentionDays int    `env:"RAW_RETENTION_DAYS" envDefault:"30"`
	BackupEnabled    bool   `env:"BACKUP_ENABLED" envDefault:"true"`

	// Orchestration
	SourceWorkers int           `env:"SOURCE_WORKERS" envDefault:"3"`
	SourceTimeout time.Duration `env:"SOURCE_TIMEOUT" envDefault:"5m"`
	RunInterval   time.Duration `env:"RUN_INTERVAL" envDefault:"24h"`
	RunAt         []string      `env:"RUN_AT" envSeparator:","`
	RunTimezone   string        `env:"RUN_TIMEZONE" envDefault:"UTC"`

	// Sources
	SourcesDisabled    []string      `env:"SOURCES_DISABLED" envSeparator:","`
	RedditSubreddits   []string      `env:"REDDIT_SUBREDDITS" envSeparator:"," envDefault:"SaaS,microsaas,SomeoneShouldMake,Entrepreneur,startups"`
	RedditTimeFilter   string        `env:"REDDIT_TIME_FILTER" envDefault:"week"`
	RedditLimit        int           `env:"REDDIT_LIMIT" envDefault:"100"`
	RedditBaseURL      string        `env:"REDDIT_BASE_URL" envDefault:"https://www.reddit.com"`
	HNSections         []string      `env:"HN_SECTIONS" envSeparator:"," envDefault:"newest,show"`
	HNMinPoints        int           `env:"HN_MIN_POINTS" envDefault:"5"`
	HNBaseURL          string        `env:"HN_BASE_URL" envDefault:"https://hnrss.org"`
	ProductHuntFeedURL string        `env:"PRODUCTHUNT_FEED_URL" envDefault:"https://www.producthunt.com/feed"`
	ScraperRateLimit   time.Duration `env:"SCRAPER_RATE_LIMIT" envDefault:"1500ms"`
	HuntScreensURL     string        `env:"HUNTSCREENS_URL" envDefault:"https://huntscreens.com/en/products"`
	HuntScreensPages   int           `env:"HUNTSCREENS_PAGES" envDefault:"2"`
	AquaireURL         string        `env:"AQUAIRE_URL" envDefault:"https://aquaire.com/ideas"`
	AquairePages       int           `env:"AQUAIRE_PAGES" envDefault:"2"`
	HTTPUserAgent      string        `env:"HTTP_USER_AGENT" envDefault:"IdeaAggregator/1.0"`
	HTTPTimeout        time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`

	// Notifications
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   int64  `env:"TELEGRAM_CHAT_ID"`
	NotifyMinScore   int    `env:"NOTIFY_MIN_SCORE" envDefault:"80"`
	NotifyLimit      int    `env:"NOTIFY_LIMIT" envDefault:"5"`
}

func Load() (*Config, error) {
	_ = godotenv.Load() //nolint:errcheck // .env file is optional, error is expected when not present

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment config: %w", err)
	}

	cfg.DBType = strings.ToLower(strings.TrimSpace(cfg.DBType))
	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(cfg.LLMProvider))

	return cfg, nil
}

// SQLiteFile returns the embedded database path, defaulting to DATA_DIR/ideas.db.
func (c *Config) SQLiteFile() string {
	if c.SQLitePath != "" {
		return c.SQLitePath
	}

	return filepath.Join(c.DataDir, defaultSQLiteFile)
}

// SourceEnabled reports whether a source was not listed in SOURCES_DISABLED.
// Matching is case-insensitive.
func (c *Config) SourceEnabled(name string) bool {
	for _, disabled := range c.SourcesDisabled {
		if strings.EqualFold(strings.TrimSpace(disabled), name) {
			return false
		}
	}

	return true
}

// TelegramConfigured reports whether both notifier credentials are present.
func (c *Config) TelegramConfigured() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != 0
}
