package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/abbasifarasat36-dev/globaldragon/internal/logger"

	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"

	BalanceSerial   = "serial"
	BalanceSnapshot = "snapshot"
	BalanceAtomic   = "atomic"
)

type Config struct {
	AppEnv  string
	AppPort string

	StoreBackend  string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret string
	JWTTTL    time.Duration

	BalanceMode        string
	AntiCheatThreshold time.Duration
	SeedDefaults       bool

	BotToken         string
	AdminBotEnabled  bool
	AdminTelegramIDs []int64

	KafkaBrokers []string
	KafkaTopic   string

	RateLimitPerMin int
	CORSOrigins     []string

	LogLevel string
	LogJSON  bool
}

func (c *Config) Development() bool { return c.AppEnv == "development" }

// RedisEnabled reports whether any component needs a Redis client.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != "" || c.StoreBackend == StoreRedis
}

// Load reads .env and then the process environment. Missing required
// values are fatal.
func Load() *Config {
	_ = godotenv.Load()
	cfg, problems := fromEnv(os.Getenv)
	for _, p := range problems {
		logger.Fatal(p)
	}
	return cfg
}

// fromEnv builds the config from getenv. Invalid values fall back to the
// default with a warning; the returned problems are fatal.
func fromEnv(getenv func(string) string) (*Config, []string) {
	var problems []string

	cfg := &Config{
		AppEnv:        strDefault(getenv("APP_ENV"), "production"),
		AppPort:       strDefault(getenv("APP_PORT"), "8080"),
		DatabaseURL:   getenv("DATABASE_URL"),
		RedisAddr:     getenv("REDIS_ADDR"),
		RedisPassword: getenv("REDIS_PASSWORD"),
		RedisDB:       intVar(getenv, "REDIS_DB", 0),

		JWTSecret: getenv("JWT_SECRET"),
		JWTTTL:    time.Duration(intVar(getenv, "JWT_TTL_HOURS", 24)) * time.Hour,

		AntiCheatThreshold: time.Duration(intVar(getenv, "ANTI_CHEAT_THRESHOLD_MS", 500)) * time.Millisecond,
		SeedDefaults:       boolVar(getenv, "SEED_DEFAULTS", true),

		BotToken:        getenv("BOT_TOKEN"),
		AdminBotEnabled: boolVar(getenv, "ADMIN_BOT_ENABLED", false),

		KafkaBrokers: list(getenv("KAFKA_BROKERS")),
		KafkaTopic:   strDefault(getenv("KAFKA_TOPIC"), "ledger-events"),

		RateLimitPerMin: intVar(getenv, "RATE_LIMIT_PER_MIN", 60),
		CORSOrigins:     list(getenv("CORS_ORIGINS")),

		LogLevel: strDefault(getenv("LOG_LEVEL"), "info"),
		LogJSON:  boolVar(getenv, "LOG_JSON", false),
	}

	cfg.StoreBackend = oneOf(getenv, "STORE_BACKEND", StoreMemory, StoreMemory, StorePostgres, StoreRedis)
	cfg.BalanceMode = oneOf(getenv, "BALANCE_MODE", BalanceSerial, BalanceSerial, BalanceSnapshot, BalanceAtomic)

	// admin telegram ids, comma separated
	for _, s := range list(getenv("ADMIN_TELEGRAM_IDS")) {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			logger.Warn("ignoring invalid admin telegram id", "value", s)
			continue
		}
		cfg.AdminTelegramIDs = append(cfg.AdminTelegramIDs, id)
	}

	if cfg.JWTSecret == "" {
		if cfg.Development() {
			logger.Warn("JWT_SECRET is not set, using the development secret")
			cfg.JWTSecret = "development-secret"
		} else {
			problems = append(problems, "JWT_SECRET is not set")
		}
	}
	if cfg.StoreBackend == StorePostgres && cfg.DatabaseURL == "" {
		problems = append(problems, "DATABASE_URL is not set")
	}
	if cfg.StoreBackend == StoreRedis && cfg.RedisAddr == "" {
		cfg.RedisAddr = "localhost:6379"
	}
	if cfg.AdminBotEnabled && cfg.BotToken == "" {
		problems = append(problems, "BOT_TOKEN is not set")
	}

	return cfg, problems
}

func strDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}

func intVar(getenv func(string) string, key string, def int) int {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		logger.Warn("invalid config value, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func boolVar(getenv func(string) string, key string, def bool) bool {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logger.Warn("invalid config value, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func oneOf(getenv func(string) string, key, def string, allowed ...string) string {
	v := strings.ToLower(strings.TrimSpace(getenv(key)))
	if v == "" {
		return def
	}
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	logger.Warn("invalid config value, using default", "key", key, "value", v, "default", def)
	return def
}

func list(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
