package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Missions MissionsConfig `mapstructure:"missions"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Security SecurityConfig `mapstructure:"security"`
}

type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	Debug    bool   `mapstructure:"debug"`
	AdminKey string `mapstructure:"admin_key"`
}

type DatabaseConfig struct {
	Mode         string        `mapstructure:"mode"` // sqlite | mysql
	SQLitePath   string        `mapstructure:"sqlite_path"`
	MySQLDSN     string        `mapstructure:"mysql_dsn"`
	MySQLMaxOpen int           `mapstructure:"mysql_max_open"`
	MySQLMaxIdle int           `mapstructure:"mysql_max_idle"`
	MySQLMaxLife time.Duration `mapstructure:"mysql_max_life"`
}

type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
}

type MissionsConfig struct {
	// DataDir holds missions.json; resources/ below it holds the bundled default.
	DataDir                   string        `mapstructure:"data_dir"`
	ResetMode                 string        `mapstructure:"reset_mode"` // permap | daily | weekly | monthly | instant
	SweepInterval             time.Duration `mapstructure:"sweep_interval"`
	MinimumPlayers            int           `mapstructure:"minimum_players"`
	AmountNormal              int           `mapstructure:"amount_normal"`
	AmountVip                 int           `mapstructure:"amount_vip"`
	VipFlags                  []string      `mapstructure:"vip_flags"`
	VipNameDomain             string        `mapstructure:"vip_name_domain"`
	AllowProgressDuringWarmup bool          `mapstructure:"allow_progress_during_warmup"`
	EventDebugLogs            bool          `mapstructure:"event_debug_logs"`
}

type WebhookConfig struct {
	URL         string        `mapstructure:"url"` // empty = disabled
	TemplateDir string        `mapstructure:"template_dir"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type SecurityConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	JWTTTL         time.Duration `mapstructure:"jwt_ttl"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	// AllowedOrigins lists the WebSocket origins that are permitted.
	// An empty slice allows all origins (useful for local development only).
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads config from the given YAML file path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/missions.db")
	v.SetDefault("database.mysql_max_open", 50)
	v.SetDefault("database.mysql_max_idle", 10)
	v.SetDefault("database.mysql_max_life", "1h")
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("missions.data_dir", "./data")
	v.SetDefault("missions.reset_mode", "daily")
	v.SetDefault("missions.sweep_interval", "60s")
	v.SetDefault("missions.minimum_players", 4)
	v.SetDefault("missions.amount_normal", 1)
	v.SetDefault("missions.amount_vip", 3)
	v.SetDefault("missions.vip_flags", []string{"@vip"})
	v.SetDefault("missions.allow_progress_during_warmup", false)
	v.SetDefault("missions.event_debug_logs", false)
	v.SetDefault("webhook.template_dir", "./data/discord")
	v.SetDefault("webhook.timeout", "10s")
	v.SetDefault("security.jwt_ttl", "72h")
	v.SetDefault("security.rate_limit_rps", 100)
	v.SetDefault("security.rate_limit_burst", 200)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
