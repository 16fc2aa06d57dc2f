package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	Name     string `yaml:"name"`
	Port     string `yaml:"port"`
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`
}

type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	DBName          string        `yaml:"dbname"`
	SSLMode         string        `yaml:"sslmode"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MigrationsPath  string        `yaml:"migrations_path"`
}

type RedisConfig struct {
	Addr       string        `yaml:"addr"`
	Password   string        `yaml:"password"`
	DB         int           `yaml:"db"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type Config struct {
	App      AppConfig      `yaml:"app"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
}

func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:     "storefront",
			Port:     "8080",
			Env:      "development",
			LogLevel: "info",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            "5432",
			SSLMode:         "disable",
			MaxConns:        10,
			MinConns:        2,
			MaxConnLifetime: 30 * time.Minute,
			MigrationsPath:  "migrations",
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			SessionTTL: 24 * time.Hour,
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_PATH, then envPath (a .env file, optional), then the process
// environment. Later sources win.
func Load(envPath string) (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	if envPath != "" {
		err := godotenv.Load(envPath)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(c); err != nil {
		return fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.App.Name, "APP_NAME")
	setString(&c.App.Port, "APP_PORT")
	setString(&c.App.Env, "APP_ENV")
	setString(&c.App.LogLevel, "LOG_LEVEL")

	setString(&c.Postgres.Host, "DB_HOST")
	setString(&c.Postgres.Port, "DB_PORT")
	setString(&c.Postgres.User, "DB_USER")
	setString(&c.Postgres.Password, "DB_PASSWORD")
	setString(&c.Postgres.DBName, "DB_NAME")
	setString(&c.Postgres.SSLMode, "DB_SSLMODE")
	setString(&c.Postgres.MigrationsPath, "DB_MIGRATIONS_PATH")

	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")

	setString(&c.Auth.JWTSecret, "JWT_SECRET")

	if v, ok := lookup("DB_MAX_CONNS"); ok {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid DB_MAX_CONNS %q: %w", v, err)
		}
		c.Postgres.MaxConns = int32(n)
	}
	if v, ok := lookup("DB_MIN_CONNS"); ok {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid DB_MIN_CONNS %q: %w", v, err)
		}
		c.Postgres.MinConns = int32(n)
	}
	if v, ok := lookup("REDIS_DB"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid REDIS_DB %q: %w", v, err)
		}
		c.Redis.DB = n
	}

	for key, dst := range map[string]*time.Duration{
		"DB_MAX_CONN_LIFETIME": &c.Postgres.MaxConnLifetime,
		"SESSION_TTL":          &c.Redis.SessionTTL,
		"TOKEN_TTL":            &c.Auth.TokenTTL,
	} {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", key, v, err)
			}
			*dst = d
		}
	}
	return nil
}

// Validate reports every missing required value at once.
func (c *Config) Validate() error {
	var missing []string
	required := map[string]string{
		"DB_HOST":     c.Postgres.Host,
		"DB_PORT":     c.Postgres.Port,
		"DB_USER":     c.Postgres.User,
		"DB_PASSWORD": c.Postgres.Password,
		"DB_NAME":     c.Postgres.DBName,
		"JWT_SECRET":  c.Auth.JWTSecret,
	}
	for _, key := range []string{"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "JWT_SECRET"} {
		if required[key] == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required values: %s", strings.Join(missing, ", "))
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("config: TOKEN_TTL must be positive")
	}
	if c.Redis.SessionTTL <= 0 {
		return errors.New("config: SESSION_TTL must be positive")
	}
	return nil
}

// IsProduction reports whether logs should be emitted as JSON.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (p PostgresConfig) ConnString() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}
