package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	AllowedOrigin string
	RootDomain    string

	DatabaseURL    string
	MigrateOnStart bool
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	TenantCacheTTL time.Duration

	AuthSecret            string
	AccessTokenTTLMinutes int

	GraceWindowMinutes int
	Currency           string

	LogLevel    string
	LogEncoding string

	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads the environment. A .env file in the working directory is
// applied first when present; real environment variables win over it.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:          getEnv("PORT", "8080"),
		AllowedOrigin: getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		RootDomain:    strings.ToLower(getEnv("ROOT_DOMAIN", "pasarhub.local")),

		DatabaseURL:    os.Getenv("DATABASE_URL"),
		MigrateOnStart: getEnvBool("MIGRATE_ON_START", true),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        getEnvInt("REDIS_DB", 0, 0),
		TenantCacheTTL: time.Duration(getEnvInt("TENANT_CACHE_TTL_SECONDS", 300, 1)) * time.Second,

		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: getEnvInt("ACCESS_TOKEN_TTL_MINUTES", 480, 1),

		GraceWindowMinutes: getEnvInt("ORDER_GRACE_MINUTES", 5, 1),
		Currency:           strings.ToUpper(getEnv("DEFAULT_CURRENCY", "IDR")),

		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogEncoding: getEnv("LOG_ENCODING", "json"),

		KafkaBrokers: getEnvSlice("KAFKA_BROKERS"),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "pasarhub.stock-movements"),
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) GraceWindow() time.Duration {
	return time.Duration(c.GraceWindowMinutes) * time.Minute
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

func getEnv(key string, fallback string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	return val
}

// getEnvInt returns fallback when the value is missing, malformed or below min.
func getEnvInt(key string, fallback int, min int) int {
	parsed, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || parsed < min {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	parsed, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(fallback)))
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvSlice(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
