package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	ServerPort string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	MongoURL   string
	MongoDB    string
	RedisURL   string
	JWTSecret  string
	JWTTTL     time.Duration

	LogLevel  string
	LogFormat string

	UploadsDir     string
	UploadMaxBytes int64

	RateLimitRPS   float64
	RateLimitBurst int

	CORSOrigin  string
	AutoMigrate bool
}

var defaults = map[string]any{
	"server.port":       "8080",
	"db.host":           "localhost",
	"db.port":           "5432",
	"db.user":           "murmur",
	"db.password":       "murmur_dev_password",
	"db.name":           "murmur",
	"mongo.url":         "mongodb://localhost:27017",
	"mongo.database":    "murmur",
	"redis.url":         "localhost:6379",
	"jwt.secret":        "dev-secret-change-me",
	"jwt.ttl":           "168h",
	"log.level":         "info",
	"log.format":        "json",
	"uploads.dir":       "uploads",
	"uploads.max_bytes": 25 << 20,
	"ratelimit.rps":     5.0,
	"ratelimit.burst":   20,
	"cors.origin":       "http://localhost:5173",
	"migrate.auto":      true,
}

// Load reads configuration from (in increasing priority) built-in defaults,
// an optional config.yaml, a .env file and the process environment.
// Keys map to env vars by upper-casing and replacing dots, so db.host is DB_HOST.
func Load() (*Config, error) {
	// .env is optional, real environment variables win over it
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg := &Config{
		ServerPort:     v.GetString("server.port"),
		DBHost:         v.GetString("db.host"),
		DBPort:         v.GetString("db.port"),
		DBUser:         v.GetString("db.user"),
		DBPassword:     v.GetString("db.password"),
		DBName:         v.GetString("db.name"),
		MongoURL:       v.GetString("mongo.url"),
		MongoDB:        v.GetString("mongo.database"),
		RedisURL:       v.GetString("redis.url"),
		JWTSecret:      v.GetString("jwt.secret"),
		JWTTTL:         v.GetDuration("jwt.ttl"),
		LogLevel:       v.GetString("log.level"),
		LogFormat:      v.GetString("log.format"),
		UploadsDir:     v.GetString("uploads.dir"),
		UploadMaxBytes: v.GetInt64("uploads.max_bytes"),
		RateLimitRPS:   v.GetFloat64("ratelimit.rps"),
		RateLimitBurst: v.GetInt("ratelimit.burst"),
		CORSOrigin:     v.GetString("cors.origin"),
		AutoMigrate:    v.GetBool("migrate.auto"),
	}

	if cfg.JWTTTL <= 0 {
		return nil, fmt.Errorf("jwt.ttl must be positive, got %s", cfg.JWTTTL)
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt.secret is required")
	}

	return cfg, nil
}

// PostgresDSN is the pgx connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// MigrateURL is the golang-migrate database URL for the pgx/v5 driver.
func (c *Config) MigrateURL() string {
	return fmt.Sprintf("pgx5://%s:%s@%s:%s/%s?sslmode=disable", c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}
