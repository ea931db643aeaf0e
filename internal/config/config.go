package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string `mapstructure:"ENVIRONMENT"`

	ServerAddr         string        `mapstructure:"SERVER_ADDR"`
	ServerReadTimeout  time.Duration `mapstructure:"SERVER_READ_TIMEOUT"`
	ServerWriteTimeout time.Duration `mapstructure:"SERVER_WRITE_TIMEOUT"`
	ServerH2C          bool          `mapstructure:"SERVER_H2C"`
	CORSAllowedOrigins string        `mapstructure:"CORS_ALLOWED_ORIGINS"`

	DBHost         string `mapstructure:"DB_HOST"`
	DBPort         int    `mapstructure:"DB_PORT"`
	DBUser         string `mapstructure:"DB_USER"`
	DBPassword     string `mapstructure:"DB_PASSWORD"`
	DBName         string `mapstructure:"DB_NAME"`
	DBSSLMode      string `mapstructure:"DB_SSLMODE"`
	DBMaxOpenConns int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns int    `mapstructure:"DB_MAX_IDLE_CONNS"`

	JWTSecret string        `mapstructure:"JWT_SECRET"`
	JWTTTL    time.Duration `mapstructure:"JWT_TTL"`

	LogLevel string `mapstructure:"LOG_LEVEL"`
	LogFile  string `mapstructure:"LOG_FILE"`

	AIProvider       string        `mapstructure:"AI_PROVIDER"`
	AIModel          string        `mapstructure:"AI_MODEL"`
	AIEndpoint       string        `mapstructure:"AI_ENDPOINT"`
	AIRequestTimeout time.Duration `mapstructure:"AI_REQUEST_TIMEOUT"`
}

var defaults = map[string]any{
	"ENVIRONMENT":          "development",
	"SERVER_ADDR":          ":8080",
	"SERVER_READ_TIMEOUT":  "15s",
	"SERVER_WRITE_TIMEOUT": "15s",
	"SERVER_H2C":           false,
	"CORS_ALLOWED_ORIGINS": "*",
	"DB_HOST":              "localhost",
	"DB_PORT":              5432,
	"DB_USER":              "",
	"DB_PASSWORD":          "",
	"DB_NAME":              "",
	"DB_SSLMODE":           "disable",
	"DB_MAX_OPEN_CONNS":    25,
	"DB_MAX_IDLE_CONNS":    10,
	"JWT_SECRET":           "",
	"JWT_TTL":              "720h",
	"LOG_LEVEL":            "info",
	"LOG_FILE":             "",
	"AI_PROVIDER":          "mock",
	"AI_MODEL":             "mock-v1",
	"AI_ENDPOINT":          "http://localhost/mock",
	"AI_REQUEST_TIMEOUT":   "10m",
}

// devSecret is only accepted when ENVIRONMENT=development.
const devSecret = "dev-secret-change-me"

// Load reads configuration from the environment, falling back to an optional
// .env file in dir and then to the defaults above.
func Load(dir string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if dir != "" {
		v.AddConfigPath(dir)
		v.SetConfigName(".env")
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.JWTSecret == "" {
		if !cfg.IsDevelopment() {
			return nil, fmt.Errorf("JWT_SECRET is required when ENVIRONMENT=%s", cfg.Environment)
		}
		cfg.JWTSecret = devSecret
	}

	return &cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

func (c *Config) ConnString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

// AllowedOrigins splits the comma separated CORS_ALLOWED_ORIGINS value.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
