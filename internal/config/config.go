package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

type Config struct {
	Backend string `env:"SESSION_BACKEND,default=sql"`
	Table   string `env:"SESSION_TABLE,default=sessions"`

	Driver   string `env:"DB_DRIVER,default=mysql"`
	DSN      string `env:"DB_DSN"`
	User     string `env:"DB_USER"`
	Password string `env:"DB_PASSWORD"`

	SaveMode      string        `env:"SESSION_SAVE_MODE,default=check"`
	CorruptPolicy string        `env:"SESSION_CORRUPT_POLICY,default=fail"`
	TTL           time.Duration `env:"SESSION_TTL,default=1h"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL,default=10m"`
	CookieSecure  bool          `env:"COOKIE_SECURE,default=false"`

	MongoURI    string `env:"MONGO_URI"`
	MongoDBName string `env:"MONGO_DB_NAME"`

	RedisAddr     string `env:"REDIS_ADDR,default=localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	HTTPAddr string `env:"HTTP_ADDR,default=:8082"`
	LogLevel string `env:"LOG_LEVEL,default=info"`
}

// Load reads the env file named by START (if any) and the environment,
// and stops the process when the configuration is unusable.
func Load() Config {
	if file := os.Getenv("START"); file != "" {
		if err := godotenv.Load(file); err != nil {
			log.Fatalf("Env file %s not found", file)
		}
	} else {
		// a missing .env is fine, plain environment variables are enough
		_ = godotenv.Load()
	}

	cfg, err := Parse()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	return cfg
}

func Parse() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.Backend {
	case "sql":
		if c.DSN == "" {
			return errors.New("DB_DSN is not set in environment")
		}
		if c.Driver == "" {
			return errors.New("DB_DRIVER is not set in environment")
		}
	case "mongo":
		if c.MongoURI == "" {
			return errors.New("MONGO_URI is not set in environment")
		}
		if c.MongoDBName == "" {
			return errors.New("MONGO_DB_NAME is not set in environment")
		}
	case "redis":
		if c.RedisAddr == "" {
			return errors.New("REDIS_ADDR is not set in environment")
		}
	default:
		return fmt.Errorf("unknown SESSION_BACKEND %q", c.Backend)
	}

	if c.TTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	if c.SweepInterval < 0 {
		return errors.New("SWEEP_INTERVAL must not be negative")
	}
	return nil
}
