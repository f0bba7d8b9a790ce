package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Environment string `mapstructure:"ENVIRONMENT"`

	// Server
	Port            int           `mapstructure:"PORT"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`

	// Database
	DatabaseDriver string `mapstructure:"DATABASE_DRIVER"`
	DatabaseURL    string `mapstructure:"DATABASE_URL"`

	// Word model
	ModelFile        string `mapstructure:"MODEL_FILE"`
	ModelCacheDir    string `mapstructure:"MODEL_CACHE_DIR"`
	NormalizeVectors bool   `mapstructure:"NORMALIZE_VECTORS"`

	// Game
	GameDuration time.Duration `mapstructure:"GAME_DURATION"`
	WorkerCount  int           `mapstructure:"WORKER_COUNT"`
	WorkerQueue  int           `mapstructure:"WORKER_QUEUE"`

	// Thesaurus
	ThesaurusCachePath    string `mapstructure:"THESAURUS_CACHE_PATH"`
	ThesaurusDefaultCount int    `mapstructure:"THESAURUS_DEFAULT_COUNT"`
	ThesaurusMaxCount     int    `mapstructure:"THESAURUS_MAX_COUNT"`

	// Chat
	BotName     string        `mapstructure:"BOT_NAME"`
	AwakeWindow time.Duration `mapstructure:"AWAKE_WINDOW"`

	// Admin JWT
	AdminJWTSecret     string        `mapstructure:"ADMIN_JWT_SECRET"`
	AdminJWTExpiration time.Duration `mapstructure:"ADMIN_JWT_EXPIRATION"`

	// AWS
	AWSRegion string `mapstructure:"AWS_REGION"`

	// Logging
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
}

var defaults = map[string]any{
	"ENVIRONMENT":             "development",
	"PORT":                    8080,
	"SHUTDOWN_TIMEOUT":        time.Second * 30,
	"DATABASE_DRIVER":         "sqlite3",
	"DATABASE_URL":            "game.db",
	"MODEL_FILE":              "word2vec.bin",
	"MODEL_CACHE_DIR":         ".cache",
	"NORMALIZE_VECTORS":       true,
	"GAME_DURATION":           time.Hour * 24,
	"WORKER_COUNT":            4,
	"WORKER_QUEUE":            64,
	"THESAURUS_CACHE_PATH":    "",
	"THESAURUS_DEFAULT_COUNT": 1,
	"THESAURUS_MAX_COUNT":     50,
	"BOT_NAME":                "cabotin",
	"AWAKE_WINDOW":            time.Second * 15,
	"ADMIN_JWT_SECRET":        "",
	"ADMIN_JWT_EXPIRATION":    time.Hour * 24,
	"AWS_REGION":              "eu-west-1",
	"LOG_LEVEL":               "info",
	"LOG_FORMAT":              "text",
}

// Load reads config.yaml from the working directory or ./config, overlaid by
// the environment (a .env file is loaded into the environment first).
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file path. An empty path searches
// the default locations.
func LoadFile(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables take precedence
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK if we're using env vars
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.ModelFile == "" {
		return fmt.Errorf("MODEL_FILE is required")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	switch c.DatabaseDriver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("DATABASE_DRIVER must be sqlite3 or postgres, got %q", c.DatabaseDriver)
	}
	if c.GameDuration <= 0 {
		return fmt.Errorf("GAME_DURATION must be positive")
	}
	if c.WorkerCount <= 0 {
		return fmt.Errorf("WORKER_COUNT must be positive")
	}
	if c.ThesaurusMaxCount > 0 && c.ThesaurusDefaultCount > c.ThesaurusMaxCount {
		return fmt.Errorf("THESAURUS_DEFAULT_COUNT exceeds THESAURUS_MAX_COUNT")
	}
	return nil
}

// ModelFromS3 reports whether the model file must be fetched from S3 first.
func (c *Config) ModelFromS3() bool {
	return strings.HasPrefix(c.ModelFile, "s3://")
}

// AdminEnabled reports whether the admin endpoints can be served.
func (c *Config) AdminEnabled() bool {
	return c.AdminJWTSecret != ""
}
