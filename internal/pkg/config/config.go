package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port          string `env:"PORT,            default=8080"`
	Env           string `env:"ENV,             default=development"`
	LogLevel      string `env:"LOG_LEVEL,       default=info"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL, default=http://localhost:8080"`
	UserStore     string `env:"USER_STORE,      default=memory"`

	// SeedUsers entries are username:password:role, created at startup when absent.
	SeedUsers []string `env:"SEED_USERS"`

	Auth    AuthConfig
	Session SessionConfig
	Storage StorageConfig
	Mongo   MongoConfig
	Redis   RedisConfig
}

type AuthConfig struct {
	TokenScheme string        `env:"TOKEN_SCHEME, default=opaque"`
	TokenStore  string        `env:"TOKEN_STORE,  default=memory"`
	TokenTTL    time.Duration `env:"TOKEN_TTL,    default=1h"`
	JWTSecret   string        `env:"JWT_SECRET"`
	BcryptCost  int           `env:"BCRYPT_COST,  default=10"`
	// OAuthClients maps client_id to client_secret ("web:s3cret,cli:other").
	OAuthClients map[string]string `env:"OAUTH_CLIENTS"`
	// SweepSchedule is a cron spec for purging expired in-memory tokens.
	SweepSchedule string `env:"TOKEN_SWEEP_SCHEDULE, default=@every 5m"`
}

type SessionConfig struct {
	Enabled     bool          `env:"SESSION_ENABLED,      default=true"`
	Store       string        `env:"SESSION_STORE,        default=memory"`
	IdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT, default=30m"`
	CookieName  string        `env:"SESSION_COOKIE_NAME,  default=upg_session"`
	Secure      bool          `env:"SESSION_COOKIE_SECURE, default=false"`
}

type StorageConfig struct {
	Backend        string `env:"STORAGE_BACKEND,   default=local"`
	LocalDir       string `env:"STORAGE_LOCAL_DIR, default=./uploads"`
	Prefix         string `env:"STORAGE_PREFIX,    default=web-service/"`
	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES,  default=10485760"`

	S3 S3Config
}

type S3Config struct {
	Bucket       string        `env:"S3_BUCKET"`
	Region       string        `env:"S3_REGION,         default=us-east-1"`
	Endpoint     string        `env:"S3_ENDPOINT"`
	AccessKey    string        `env:"S3_ACCESS_KEY"`
	SecretKey    string        `env:"S3_SECRET_KEY"`
	UsePathStyle bool          `env:"S3_USE_PATH_STYLE, default=false"`
	CreateBucket bool          `env:"S3_CREATE_BUCKET,  default=false"`
	PresignTTL   time.Duration `env:"S3_PRESIGN_TTL,    default=15m"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=upload_gateway"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR, default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,   default=0"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFrom reads configuration from an explicit lookuper; used by tests.
func LoadFrom(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("config: failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects unknown backend names and missing required settings.
func (c *Config) Validate() error {
	checks := []struct {
		name, value string
		allowed     []string
	}{
		{"TOKEN_SCHEME", c.Auth.TokenScheme, []string{"opaque", "jwt"}},
		{"TOKEN_STORE", c.Auth.TokenStore, []string{"memory", "redis", "mongo"}},
		{"SESSION_STORE", c.Session.Store, []string{"memory", "redis"}},
		{"STORAGE_BACKEND", c.Storage.Backend, []string{"local", "s3"}},
		{"USER_STORE", c.UserStore, []string{"memory", "mongo"}},
	}
	for _, ch := range checks {
		if !contains(ch.allowed, ch.value) {
			return fmt.Errorf("config: %s must be one of %s, got %q", ch.name, strings.Join(ch.allowed, ", "), ch.value)
		}
	}

	if c.Auth.TokenScheme == "jwt" && c.Auth.JWTSecret == "" {
		return fmt.Errorf("config: JWT_SECRET is required when TOKEN_SCHEME=jwt")
	}
	if c.Storage.Backend == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("config: S3_BUCKET is required when STORAGE_BACKEND=s3")
	}
	for _, entry := range c.SeedUsers {
		if _, err := ParseSeedUser(entry); err != nil {
			return err
		}
	}
	return nil
}

// UsesRedis reports whether any component needs a Redis connection.
func (c *Config) UsesRedis() bool {
	return c.Auth.TokenStore == "redis" || (c.Session.Enabled && c.Session.Store == "redis")
}

// UsesMongo reports whether any component needs a MongoDB connection.
func (c *Config) UsesMongo() bool {
	return c.UserStore == "mongo" || c.Auth.TokenStore == "mongo"
}

// SeedUser is a parsed SEED_USERS entry.
type SeedUser struct {
	Username string
	Password string
	Role     string
}

// ParseSeedUser parses "username:password[:role]"; the role defaults to user.
func ParseSeedUser(entry string) (SeedUser, error) {
	parts := strings.Split(strings.TrimSpace(entry), ":")
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
		return SeedUser{}, fmt.Errorf("config: invalid SEED_USERS entry %q", entry)
	}
	su := SeedUser{Username: parts[0], Password: parts[1], Role: "user"}
	if len(parts) == 3 && parts[2] != "" {
		su.Role = parts[2]
	}
	return su, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
