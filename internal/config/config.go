package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Feed is one RSS subscription. Category, when set, pre-tags every item the
// feed yields.
type Feed struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Category string `yaml:"category,omitempty"`
}

type Config struct {
	NewsAPIKey     string
	NewsAPIBaseURL string
	NewsAPICountry string

	OpenAIAPIKey string
	OpenAIModel  string

	TelegramToken  string
	TelegramChatID int64

	FeedsPath string
	Feeds     []Feed

	FallbackPath string
	ReportPath   string

	EnrichLimit       int
	EnrichConcurrency int
	FeedItemLimit     int
	PageSize          int

	RequestTimeout  time.Duration
	RefreshTimeout  time.Duration
	RefreshSchedule string
	CacheRetention  time.Duration

	ServerPort string
	SiteURL    string
	LogLevel   string
	LogPretty  bool
}

func Load() (*Config, error) {
	cfg := &Config{
		NewsAPIKey:     getEnv("NEWS_API_KEY", ""),
		NewsAPIBaseURL: getEnv("NEWS_API_BASE_URL", "https://newsapi.org/v2"),
		NewsAPICountry: getEnv("NEWS_API_COUNTRY", "us"),

		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o-mini"),

		TelegramToken:  getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID: getEnvAsInt64("TELEGRAM_CHAT_ID", 0),

		FeedsPath:    getEnv("FEEDS_PATH", "configs/feeds.yaml"),
		FallbackPath: getEnv("FALLBACK_PATH", "data/fallback_news.json"),
		ReportPath:   getEnv("REPORT_PATH", ""),

		EnrichLimit:       getEnvAsInt("ENRICH_LIMIT", 15),
		EnrichConcurrency: getEnvAsInt("ENRICH_CONCURRENCY", 5),
		FeedItemLimit:     getEnvAsInt("FEED_ITEM_LIMIT", 10),
		PageSize:          getEnvAsInt("PAGE_SIZE", 50),

		RequestTimeout:  getEnvAsDuration("REQUEST_TIMEOUT", 30*time.Second),
		RefreshTimeout:  getEnvAsDuration("REFRESH_TIMEOUT", 2*time.Minute),
		RefreshSchedule: getEnv("REFRESH_SCHEDULE", ""),
		CacheRetention:  getEnvAsDuration("CACHE_RETENTION", 24*time.Hour),

		ServerPort: getEnv("SERVER_PORT", "8080"),
		SiteURL:    getEnv("SITE_URL", ""),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogPretty:  getEnvAsBool("LOG_PRETTY", false),
	}

	feeds, err := LoadFeeds(cfg.FeedsPath)
	if err != nil {
		return nil, err
	}
	cfg.Feeds = feeds

	return cfg, nil
}

type feedsFile struct {
	Feeds []Feed `yaml:"feeds"`
}

// LoadFeeds reads the YAML feed list. A missing file means no feeds, not an
// error; entries without a URL are skipped.
func LoadFeeds(path string) ([]Feed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read feeds file: %w", err)
	}

	var parsed feedsFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse feeds file %s: %w", path, err)
	}

	var feeds []Feed
	for _, f := range parsed.Feeds {
		if f.URL == "" {
			continue
		}
		feeds = append(feeds, f)
	}
	return feeds, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
