package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	JWT      JWTConfig      `yaml:"jwt"`
	Jira     JiraConfig     `yaml:"jira"`
	Sync     SyncConfig     `yaml:"sync"`
	Redis    RedisConfig    `yaml:"redis"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type ServerConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Mode     string `yaml:"mode"`      // debug, release, test
	LogLevel string `yaml:"log_level"` // debug, info, warn, error
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, mysql, postgres
	DSN    string `yaml:"dsn"`
}

type JWTConfig struct {
	Secret     string `yaml:"secret"`
	ExpireHour int    `yaml:"expire_hour"`
}

// JiraConfig holds credentials and tuning for the issue tracker API.
type JiraConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Email       string        `yaml:"email"`     // for basic auth (Jira Cloud)
	APIToken    string        `yaml:"api_token"` // PAT (bearer) or basic-auth token
	Timeout     time.Duration `yaml:"timeout"`
	RateLimit   float64       `yaml:"rate_limit"` // requests per second
	RateBurst   int           `yaml:"rate_burst"`
	PageSize    int           `yaml:"page_size"`
	StoryPoints string        `yaml:"story_points_field"` // custom field id, e.g. customfield_10016
}

// SyncConfig controls the periodic board synchronization.
type SyncConfig struct {
	Cron           string        `yaml:"cron"`             // full-sync schedule
	MinInterval    time.Duration `yaml:"min_interval"`     // per-board throttle window
	ChangelogBatch int           `yaml:"changelog_batch"`  // issues per changelog batch
	BatchDelay     time.Duration `yaml:"batch_delay"`      // pause between changelog batches
	BoardIDs       []int64       `yaml:"board_ids"`        // empty = all discovered boards
}

// RedisConfig enables the async sync task queue.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// OpenAIConfig enables optional AI sprint summaries. Empty APIKey disables it.
type OpenAIConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// MetricsConfig carries the knobs for the metric engines: the WIP-limit
// keyword table and the flow-efficiency active-time ratio.
type MetricsConfig struct {
	WipLimits       map[string]int `yaml:"wip_limits"`        // column keyword -> limit
	ActiveTimeRatio float64        `yaml:"active_time_ratio"` // fraction of lead time assumed active
	HolidayRegion   string         `yaml:"holiday_region"`    // ISO country code for the business calendar
}

var GlobalConfig *Config

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	var cfg *Config

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg = DefaultConfig()
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}

		var fileCfg Config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, err
		}
		cfg = &fileCfg
	}

	cfg.applyDefaults()
	cfg.overrideFromEnv()
	GlobalConfig = cfg
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:     "0.0.0.0",
			Port:     "8080",
			Mode:     "debug",
			LogLevel: "info",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "sprintlens.db",
		},
		JWT: JWTConfig{
			Secret:     "sprintlens-secret-key-change-in-production",
			ExpireHour: 24,
		},
		Jira: JiraConfig{
			Timeout:     30 * time.Second,
			RateLimit:   5,
			RateBurst:   10,
			PageSize:    50,
			StoryPoints: "customfield_10016",
		},
		Sync: SyncConfig{
			Cron:           "0 * * * *",
			MinInterval:    15 * time.Minute,
			ChangelogBatch: 20,
			BatchDelay:     2 * time.Second,
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			DB:      0,
		},
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
		},
		Metrics: MetricsConfig{
			ActiveTimeRatio: 0.6,
			HolidayRegion:   "US",
		},
	}
}

// applyDefaults fills zero values left by a partially specified yaml file.
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Server.Port == "" {
		c.Server.Port = def.Server.Port
	}
	if c.Server.Mode == "" {
		c.Server.Mode = def.Server.Mode
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = def.Server.LogLevel
	}
	if c.Database.Driver == "" {
		c.Database = def.Database
	}
	if c.JWT.Secret == "" {
		c.JWT.Secret = def.JWT.Secret
	}
	if c.JWT.ExpireHour == 0 {
		c.JWT.ExpireHour = def.JWT.ExpireHour
	}
	if c.Jira.Timeout == 0 {
		c.Jira.Timeout = def.Jira.Timeout
	}
	if c.Jira.RateLimit == 0 {
		c.Jira.RateLimit = def.Jira.RateLimit
	}
	if c.Jira.RateBurst == 0 {
		c.Jira.RateBurst = def.Jira.RateBurst
	}
	if c.Jira.PageSize == 0 {
		c.Jira.PageSize = def.Jira.PageSize
	}
	if c.Jira.StoryPoints == "" {
		c.Jira.StoryPoints = def.Jira.StoryPoints
	}
	if c.Sync.Cron == "" {
		c.Sync.Cron = def.Sync.Cron
	}
	if c.Sync.MinInterval == 0 {
		c.Sync.MinInterval = def.Sync.MinInterval
	}
	if c.Sync.ChangelogBatch == 0 {
		c.Sync.ChangelogBatch = def.Sync.ChangelogBatch
	}
	if c.Sync.BatchDelay == 0 {
		c.Sync.BatchDelay = def.Sync.BatchDelay
	}
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = def.OpenAI.BaseURL
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = def.OpenAI.Model
	}
	if c.Metrics.ActiveTimeRatio == 0 {
		c.Metrics.ActiveTimeRatio = def.Metrics.ActiveTimeRatio
	}
	if c.Metrics.HolidayRegion == "" {
		c.Metrics.HolidayRegion = def.Metrics.HolidayRegion
	}
}

func (c *Config) overrideFromEnv() {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		c.Server.Port = port
	}
	if mode := os.Getenv("SERVER_MODE"); mode != "" {
		c.Server.Mode = mode
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Server.LogLevel = level
	}
	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		c.Database.Driver = driver
	}
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		c.Database.DSN = dsn
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.JWT.Secret = secret
	}
	if baseURL := os.Getenv("JIRA_BASE_URL"); baseURL != "" {
		c.Jira.BaseURL = baseURL
	}
	if email := os.Getenv("JIRA_EMAIL"); email != "" {
		c.Jira.Email = email
	}
	if token := os.Getenv("JIRA_API_TOKEN"); token != "" {
		c.Jira.APIToken = token
	}
	if field := os.Getenv("JIRA_STORY_POINTS_FIELD"); field != "" {
		c.Jira.StoryPoints = field
	}
	if cronSpec := os.Getenv("SYNC_CRON"); cronSpec != "" {
		c.Sync.Cron = cronSpec
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		c.OpenAI.APIKey = apiKey
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		c.OpenAI.Model = model
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c.Redis.Enabled = true
		c.parseRedisURL(redisURL)
	}
}

// parseRedisURL parses a Redis URL of the form redis://:password@host:port/db.
func (c *Config) parseRedisURL(redisURL string) {
	url := strings.TrimPrefix(redisURL, "redis://")

	if atIdx := strings.Index(url, "@"); atIdx != -1 {
		authPart := url[:atIdx]
		url = url[atIdx+1:]
		if colonIdx := strings.Index(authPart, ":"); colonIdx != -1 {
			c.Redis.Password = authPart[colonIdx+1:]
		}
	}

	if slashIdx := strings.LastIndex(url, "/"); slashIdx != -1 {
		dbStr := url[slashIdx+1:]
		url = url[:slashIdx]
		if db, err := strconv.Atoi(dbStr); err == nil {
			c.Redis.DB = db
		}
	}

	c.Redis.Addr = url
}

func (c *Config) Save(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}
