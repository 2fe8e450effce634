package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const EnvProduction = "production"

type Config struct {
	RunAddress     string
	DatabaseURI    string
	RedisAddress   string
	LogLevel       string
	SecretKey      string
	Env            string
	TokenTTL       time.Duration
	TokenCookie    string
	SessionCookie  string
	SessionMaxAge  time.Duration
	APIPrefix      string
	PublicRoutes   []string
	IdentityPolicy string
}

var (
	errEmptySecret   = errors.New("config: secret key is empty")
	errBadDuration   = errors.New("config: durations must be positive")
	errBadPrefix     = errors.New("config: api prefix must start with /")
	errUnknownPolicy = errors.New("config: unknown identity policy")
)

func Default() *Config {
	return &Config{
		RunAddress:     "localhost:8080",
		RedisAddress:   "localhost:6379",
		SecretKey:      "secret",
		LogLevel:       "debug",
		Env:            "development",
		TokenTTL:       time.Hour,
		TokenCookie:    "token",
		SessionCookie:  "sid",
		SessionMaxAge:  time.Minute,
		APIPrefix:      "/api",
		PublicRoutes:   []string{"/api/users/sign/up", "/api/users/sign/in", "/api/captcha"},
		IdentityPolicy: "revocation",
	}
}

// Parse builds the process configuration. Later sources win:
// defaults, .env file, command line flags, environment.
func Parse() (*Config, error) {
	// A missing .env is fine, the environment may be set by the runtime.
	_ = godotenv.Load()

	cfg := Default()
	if err := cfg.updateFromFlags(flag.CommandLine, os.Args[1:]); err != nil {
		return nil, err
	}
	if err := cfg.updateFromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) Production() bool {
	return cfg.Env == EnvProduction
}

func (cfg *Config) Validate() error {
	if cfg.SecretKey == "" {
		return errEmptySecret
	}
	if cfg.TokenTTL <= 0 || cfg.SessionMaxAge <= 0 {
		return errBadDuration
	}
	if !strings.HasPrefix(cfg.APIPrefix, "/") {
		return errBadPrefix
	}
	switch cfg.IdentityPolicy {
	case "none", "session", "revocation", "user", "all":
	default:
		return fmt.Errorf("%w: %q", errUnknownPolicy, cfg.IdentityPolicy)
	}
	return nil
}

func (cfg *Config) updateFromFlags(fs *flag.FlagSet, args []string) error {
	flagRunAddress := fs.String("a", cfg.RunAddress, "Server address.")
	flagDatabaseURI := fs.String("d", cfg.DatabaseURI, "Postgres DSN.")
	flagRedisAddress := fs.String("r", cfg.RedisAddress, "Redis address.")
	flagEnv := fs.String("env", cfg.Env, "Environment name, `production` hides error details.")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("config: parse flags: %w", err)
	}

	cfg.RunAddress = *flagRunAddress
	cfg.DatabaseURI = *flagDatabaseURI
	cfg.RedisAddress = *flagRedisAddress
	cfg.Env = *flagEnv
	return nil
}

func (cfg *Config) updateFromEnv() error {
	if addr, ok := os.LookupEnv("RUN_ADDRESS"); ok {
		cfg.RunAddress = addr
	}
	if db, ok := os.LookupEnv("DATABASE_URI"); ok {
		cfg.DatabaseURI = db
	}
	if addr, ok := os.LookupEnv("REDIS_ADDRESS"); ok {
		cfg.RedisAddress = addr
	}
	if secret, ok := os.LookupEnv("SECRET_KEY"); ok {
		cfg.SecretKey = secret
	}
	if lvl, ok := os.LookupEnv("LOG_LEVEL"); ok {
		cfg.LogLevel = lvl
	}
	if env, ok := os.LookupEnv("APP_ENV"); ok {
		cfg.Env = env
	}
	if name, ok := os.LookupEnv("TOKEN_COOKIE"); ok {
		cfg.TokenCookie = name
	}
	if name, ok := os.LookupEnv("SESSION_COOKIE"); ok {
		cfg.SessionCookie = name
	}
	if prefix, ok := os.LookupEnv("API_PREFIX"); ok {
		cfg.APIPrefix = prefix
	}
	if routes, ok := os.LookupEnv("PUBLIC_ROUTES"); ok {
		cfg.PublicRoutes = splitList(routes)
	}
	if policy, ok := os.LookupEnv("IDENTITY_POLICY"); ok {
		cfg.IdentityPolicy = policy
	}
	if ttl, ok := os.LookupEnv("TOKEN_TTL"); ok {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return fmt.Errorf("config: TOKEN_TTL: %w", err)
		}
		cfg.TokenTTL = d
	}
	if maxAge, ok := os.LookupEnv("SESSION_MAX_AGE"); ok {
		d, err := time.ParseDuration(maxAge)
		if err != nil {
			return fmt.Errorf("config: SESSION_MAX_AGE: %w", err)
		}
		cfg.SessionMaxAge = d
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
