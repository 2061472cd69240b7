package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/yeremiapane/roomturn/models"
	"github.com/yeremiapane/roomturn/utils"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	Port      string
	GinMode   string
	LogLevel  string
	LogFormat string

	DBDriver string
	DBDSN    string
	SeedFile string

	ChannelSecret      string
	ChannelAccessToken string
	LineBaseURL        string
	LineTimeout        time.Duration

	RedisAddr       string
	RedisPassword   string
	ProfileCacheTTL time.Duration

	// RichMenus maps a role menu key to the platform rich menu id.
	RichMenus map[string]string

	CodeSweepSchedule string
	TriggerRatePerSec float64
	TrustedProxies    []string

	// AllowedOrigin is the dashboard origin allowed to use the API and the feed.
	AllowedOrigin string
}

// Load reads .env (when present) and the process environment.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		utils.InfoLogger.Warnf(".env file not found or unreadable: %v", err)
	}

	return Config{
		Port:      getEnv("PORT", "8080"),
		GinMode:   getEnv("GIN_MODE", "debug"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		DBDriver: getEnv("DB_DRIVER", "mysql"),
		DBDSN:    os.Getenv("DB_DSN"),
		SeedFile: os.Getenv("SEED_FILE"),

		ChannelSecret:      os.Getenv("LINE_CHANNEL_SECRET"),
		ChannelAccessToken: os.Getenv("LINE_CHANNEL_ACCESS_TOKEN"),
		LineBaseURL:        getEnv("LINE_API_BASE_URL", "https://api.line.me"),
		LineTimeout:        getDuration("LINE_TIMEOUT", 10*time.Second),

		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		ProfileCacheTTL: getDuration("PROFILE_CACHE_TTL", 6*time.Hour),

		RichMenus: map[string]string{
			models.RoleAdmin.MenuKey():       os.Getenv("RICH_MENU_ADMIN"),
			models.RoleHousekeeper.MenuKey(): os.Getenv("RICH_MENU_HOUSEKEEPER"),
			models.RoleTechnician.MenuKey():  os.Getenv("RICH_MENU_TECHNICIAN"),
		},

		CodeSweepSchedule: getEnv("CODE_SWEEP_SCHEDULE", "@hourly"),
		TriggerRatePerSec: getFloat("TRIGGER_RATE_PER_SEC", 5),
		TrustedProxies:    splitList(os.Getenv("TRUSTED_PROXIES")),
		AllowedOrigin:     os.Getenv("ALLOWED_ORIGIN"),
	}
}

// InitDB opens the configured database. sqlite is used for local runs and tests.
func InitDB(cfg Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}

	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "mysql":
		if cfg.DBDSN == "" {
			return nil, fmt.Errorf("DB_DSN is required for mysql")
		}
		dialector = mysql.Open(cfg.DBDSN)
	case "sqlite":
		dsn := cfg.DBDSN
		if dsn == "" {
			dsn = "roomturn.db"
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.DBDriver == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
	utils.InfoLogger.Infof("Connected to %s database", cfg.DBDriver)
	return db, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		utils.ErrorLogger.Warnf("invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		utils.ErrorLogger.Warnf("invalid %s=%q, using %v", key, v, fallback)
		return fallback
	}
	return f
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
