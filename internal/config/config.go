package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	JWT          JWTConfig
	Storage      StorageConfig
	Tracing      TracingConfig `mapstructure:"tracing"`
	Redis        RedisConfig
	Log          LogConfig          `mapstructure:"log"`
	CORS         CORSConfig         `mapstructure:"cors"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	Gamification GamificationConfig `mapstructure:"gamification"`
	Seed         SeedConfig         `mapstructure:"seed"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool   `mapstructure:"-"`
	MigrateOnly  bool   `mapstructure:"-"`
	SeedData     bool   `mapstructure:"-"`
	ConfigFile   string `mapstructure:"-"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type DatabaseConfig struct {
	Driver       string // mysql | sqlite
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	Charset      string
	ParseTime    bool
	SQLitePath   string `mapstructure:"sqlite_path"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	MinioUseSSL   bool   `mapstructure:"minio_use_ssl"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type SeedConfig struct {
	AdminEmail    string `mapstructure:"admin_email"`
	AdminPassword string `mapstructure:"admin_password"`
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// GamificationConfig 积分规则，可在运行时热更新
type GamificationConfig struct {
	LoginPoints          int   `mapstructure:"login_points"`
	StreakBonusPerDay    int   `mapstructure:"streak_bonus_per_day"`
	StreakBonusCap       int   `mapstructure:"streak_bonus_cap"`
	TestPassPercent      int   `mapstructure:"test_pass_percent"`
	TestCompletedPoints  int   `mapstructure:"test_completed_points"`
	TestExcellentPercent int   `mapstructure:"test_excellent_percent"`
	TestExcellentBonus   int   `mapstructure:"test_excellent_bonus"`
	TestPerfectBonus     int   `mapstructure:"test_perfect_bonus"`
	StudyMinutesPerPoint int   `mapstructure:"study_minutes_per_point"`
	StudyDailyCap        int   `mapstructure:"study_daily_cap"`
	CourseCompletion     int   `mapstructure:"course_completion_points"`
	LevelThresholds      []int `mapstructure:"level_thresholds"`
	LeaderboardSize      int   `mapstructure:"leaderboard_size"`
	RecomputeMinutes     int   `mapstructure:"recompute_minutes"`
}

// DefaultGamification 返回默认积分规则
func DefaultGamification() GamificationConfig {
	return GamificationConfig{
		LoginPoints:          10,
		StreakBonusPerDay:    2,
		StreakBonusCap:       20,
		TestPassPercent:      60,
		TestCompletedPoints:  20,
		TestExcellentPercent: 90,
		TestExcellentBonus:   15,
		TestPerfectBonus:     10,
		StudyMinutesPerPoint: 5,
		StudyDailyCap:        60,
		CourseCompletion:     100,
		LevelThresholds:      []int{0, 100, 250, 500, 1000, 2000, 3500, 5500, 8000, 11000},
		LeaderboardSize:      100,
		RecomputeMinutes:     10,
	}
}

// WithDefaults 对未配置的字段填充默认值
func (g GamificationConfig) WithDefaults() GamificationConfig {
	d := DefaultGamification()
	fill := func(v *int, def int) {
		if *v <= 0 {
			*v = def
		}
	}
	fill(&g.LoginPoints, d.LoginPoints)
	fill(&g.StreakBonusPerDay, d.StreakBonusPerDay)
	fill(&g.StreakBonusCap, d.StreakBonusCap)
	fill(&g.TestPassPercent, d.TestPassPercent)
	fill(&g.TestCompletedPoints, d.TestCompletedPoints)
	fill(&g.TestExcellentPercent, d.TestExcellentPercent)
	fill(&g.TestExcellentBonus, d.TestExcellentBonus)
	fill(&g.TestPerfectBonus, d.TestPerfectBonus)
	fill(&g.StudyMinutesPerPoint, d.StudyMinutesPerPoint)
	fill(&g.StudyDailyCap, d.StudyDailyCap)
	fill(&g.CourseCompletion, d.CourseCompletion)
	fill(&g.LeaderboardSize, d.LeaderboardSize)
	fill(&g.RecomputeMinutes, d.RecomputeMinutes)
	if len(g.LevelThresholds) == 0 || g.LevelThresholds[0] != 0 {
		g.LevelThresholds = d.LevelThresholds
	}
	return g
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("LEARNING_PLATFORM")
	v.AutomaticEnv()

	// Database
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_NAME")

	// JWT
	v.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	v.BindEnv("server.mode", "SERVER_MODE")
	v.BindEnv("server.port", "SERVER_PORT")

	// Storage
	v.BindEnv("storage.type", "STORAGE_TYPE")
	v.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	v.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	v.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	v.BindEnv("storage.minio_bucket", "MINIO_BUCKET")

	// Seed
	v.BindEnv("seed.admin_email", "ADMIN_EMAIL")
	v.BindEnv("seed.admin_password", "ADMIN_PASSWORD")

	// Tracing
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.parsetime", true)
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "uploads")
	v.SetDefault("log.file", "logs/app.log")
	v.SetDefault("rate_limit.max_requests", 100000)
	v.SetDefault("rate_limit.window_minutes", 1)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.ConfigFile = v.ConfigFileUsed()
	cfg.JWT.ExpireTime = cfg.JWT.ExpireTime * time.Hour
	cfg.Gamification = cfg.Gamification.WithDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Storage.Type == "local" {
		if _, err := os.Stat(cfg.Storage.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Storage.LocalPath, 0755)
		}
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	// 生产环境校验 JWT Secret 强度
	if c.Server.Mode == "release" && len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(c.JWT.Secret))
	}
	thresholds := c.Gamification.LevelThresholds
	for i := 1; i < len(thresholds); i++ {
		if thresholds[i] <= thresholds[i-1] {
			return fmt.Errorf("gamification.level_thresholds must be strictly ascending, got %v", thresholds)
		}
	}
	return nil
}
