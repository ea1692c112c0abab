package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Skotchmaster/school_canteen/internal/money"
)

type Config struct {
	ServiceName string
	ServerPort  int
	LogLevel    string

	DBDriver    string
	DatabaseURL string

	JWTAccessSecret  []byte
	JWTRefreshSecret []byte
	AccessTTL        time.Duration
	RefreshTTL       time.Duration

	KafkaBrokers []string

	ESURL      string
	ESUser     string
	ESPassword string
	ESIndex    string

	CacheTTL  time.Duration
	CacheSize int

	MaxTopUp     money.Amount
	RateLimitRPS int

	TelegramToken string

	AdminUsername string
	AdminPassword string

	PromoSweepCron string
	ReindexCron    string
}

// Load reads an optional .env file and then the process environment.
func Load() Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("notice: .env file not found: %v. Using system environment variables", err)
	}

	return Config{
		ServiceName: EnvDefault("SERVICE_NAME", "canteen"),
		ServerPort:  EnvIntDefault("SERVER_PORT", 8080),
		LogLevel:    EnvDefault("LOG_LEVEL", "info"),

		DBDriver:    EnvDefault("DB_DRIVER", "postgres"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		JWTAccessSecret:  []byte(os.Getenv("JWT_SECRET")),
		JWTRefreshSecret: []byte(os.Getenv("JWT_REFRESH_SECRET")),
		AccessTTL:        EnvDurationDefault("ACCESS_TTL", 15*time.Minute),
		RefreshTTL:       EnvDurationDefault("REFRESH_TTL", 7*24*time.Hour),

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),

		ESURL:      os.Getenv("ES_URL"),
		ESUser:     os.Getenv("ES_USER"),
		ESPassword: os.Getenv("ES_PASSWORD"),
		ESIndex:    EnvDefault("ES_INDEX", "meals"),

		CacheTTL:  EnvDurationDefault("CACHE_TTL", 5*time.Minute),
		CacheSize: EnvIntDefault("CACHE_SIZE", 1024),

		MaxTopUp:     EnvAmountDefault("MAX_TOPUP", money.FromUnits(1000)),
		RateLimitRPS: EnvIntDefault("RATE_LIMIT_RPS", 20),

		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),

		AdminUsername: os.Getenv("ADMIN_USERNAME"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),

		PromoSweepCron: EnvDefault("PROMO_SWEEP_CRON", "0 3 * * *"),
		ReindexCron:    EnvDefault("REINDEX_CRON", "*/30 * * * *"),
	}
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func EnvDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func EnvAmountDefault(key string, def money.Amount) money.Amount {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	a, err := money.Parse(v)
	if err != nil || a <= 0 {
		return def
	}
	return a
}
