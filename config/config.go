package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Game        GameConfig        `mapstructure:"game"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
	Security    SecurityConfig    `mapstructure:"security"`
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
	LocalPubSubBuf  int           `mapstructure:"local_pubsub_buf"`
}

type GameConfig struct {
	RespawnDelayS int     `mapstructure:"respawn_delay_s"`
	SpawnX        float64 `mapstructure:"spawn_x"`
	SpawnY        float64 `mapstructure:"spawn_y"`
	SpawnZ        float64 `mapstructure:"spawn_z"`
}

type PersistenceConfig struct {
	SaveIntervalS           int `mapstructure:"save_interval_s"`
	ChunkCleanupIntervalS   int `mapstructure:"chunk_cleanup_interval_s"`
	ChunkInactiveMinutes    int `mapstructure:"chunk_inactive_minutes"`
	SessionCleanupIntervalS int `mapstructure:"session_cleanup_interval_s"`
	SessionStaleMinutes     int `mapstructure:"session_stale_minutes"`
	MaintenanceIntervalS    int `mapstructure:"maintenance_interval_s"`
	SessionRetentionDays    int `mapstructure:"session_retention_days"`
	ActivityRetentionDays   int `mapstructure:"activity_retention_days"`
}

type SecurityConfig struct {
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
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
	v.SetDefault("database.sqlite_path", "./data/ironvale.db")
	v.SetDefault("database.mysql_max_open", 50)
	v.SetDefault("database.mysql_max_idle", 10)
	v.SetDefault("database.mysql_max_life", "1h")
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("cache.local_pubsub_buf", 256)
	v.SetDefault("game.respawn_delay_s", 30)
	v.SetDefault("game.spawn_x", 0)
	v.SetDefault("game.spawn_y", 64)
	v.SetDefault("game.spawn_z", 0)
	v.SetDefault("persistence.save_interval_s", 30)
	v.SetDefault("persistence.chunk_cleanup_interval_s", 300)
	v.SetDefault("persistence.chunk_inactive_minutes", 15)
	v.SetDefault("persistence.session_cleanup_interval_s", 600)
	v.SetDefault("persistence.session_stale_minutes", 5)
	v.SetDefault("persistence.maintenance_interval_s", 3600)
	v.SetDefault("persistence.session_retention_days", 7)
	v.SetDefault("persistence.activity_retention_days", 30)
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
