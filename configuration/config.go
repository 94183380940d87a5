package configuration

import (
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Remote  RemoteConfig
	Console ConsoleConfig
	Session SessionConfig
	Notice  NoticeConfig
	Export  ExportConfig
	Storage StorageConfig
	Log     LogConfig
	App     AppConfig
}

// RemoteConfig describes the retrieval/answer service the console talks to.
type RemoteConfig struct {
	BaseURL    string        `envconfig:"REMOTE_BASE_URL" default:"http://localhost:8000"`
	Timeout    time.Duration `envconfig:"REMOTE_TIMEOUT" default:"0s"`
	MaxResults int           `envconfig:"REMOTE_MAX_RESULTS" default:"5"`
	AIMode     string        `envconfig:"REMOTE_AI_MODE" default:"auto"`
}

type ConsoleConfig struct {
	Port int    `envconfig:"CONSOLE_PORT" default:"8090"`
	Host string `envconfig:"CONSOLE_HOST" default:"127.0.0.1"`
	Mode string `envconfig:"CONSOLE_MODE" default:"release"`
	// AllowedOrigins lists browser origins, besides the console's own
	// loopback address, that may call the operator API.
	AllowedOrigins []string `envconfig:"CONSOLE_ALLOWED_ORIGINS" default:""`
}

type SessionConfig struct {
	StorePath            string `envconfig:"SESSION_STORE_PATH" default:""`
	StorePassphrase      string `envconfig:"SESSION_STORE_PASSPHRASE" default:""`
	ExpireOnUnauthorized bool   `envconfig:"SESSION_EXPIRE_ON_UNAUTHORIZED" default:"true"`
}

type NoticeConfig struct {
	TTL      time.Duration `envconfig:"NOTICE_TTL" default:"2s"`
	Terminal bool          `envconfig:"NOTICE_TERMINAL" default:"true"`
}

type ExportConfig struct {
	Dir        string        `envconfig:"EXPORT_DIR" default:"exports"`
	ConfirmTTL time.Duration `envconfig:"EXPORT_CONFIRM_TTL" default:"1m"`
}

// StorageConfig enables the S3 export sink when Bucket is set.
type StorageConfig struct {
	Endpoint  string `envconfig:"S3_ENDPOINT" default:""`
	Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	Bucket    string `envconfig:"S3_BUCKET" default:""`
	Prefix    string `envconfig:"S3_PREFIX" default:"exports"`
	AccessKey string `envconfig:"S3_ACCESS_KEY" default:""`
	SecretKey string `envconfig:"S3_SECRET_KEY" default:""`
	BaseURL   string `envconfig:"S3_BASE_URL" default:""`
	UsePath   bool   `envconfig:"S3_USE_PATH_STYLE" default:"true"`
}

type LogConfig struct {
	FilePath   string `envconfig:"LOG_FILE_PATH" default:""`
	MaxSizeMB  int    `envconfig:"LOG_MAX_SIZE_MB" default:"10"`
	MaxBackups int    `envconfig:"LOG_MAX_BACKUPS" default:"5"`
}

type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"ragconsole"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
	Environment string `envconfig:"APP_ENV" default:"development"`
}

// Load reads an optional .env file and then the process environment.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		slog.Debug(".env file not found, using process environment")
	}

	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.Remote.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid remote base url: %q", c.Remote.BaseURL)
	}

	if c.Remote.MaxResults < 1 || c.Remote.MaxResults > 50 {
		return fmt.Errorf("invalid max results: %d (1-50)", c.Remote.MaxResults)
	}

	if c.Console.Port < 1 || c.Console.Port > 65535 {
		return fmt.Errorf("invalid console port: %d", c.Console.Port)
	}

	if c.Console.Mode != "debug" && c.Console.Mode != "release" {
		return fmt.Errorf("invalid console mode: %s (use debug or release)", c.Console.Mode)
	}

	for _, origin := range c.Console.AllowedOrigins {
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" || (u.Path != "" && u.Path != "/") {
			return fmt.Errorf("invalid allowed origin: %q (use scheme://host[:port])", origin)
		}
	}

	if c.Notice.TTL <= 0 {
		return fmt.Errorf("notice ttl must be positive: %s", c.Notice.TTL)
	}

	if c.App.Environment != "development" && c.App.Environment != "staging" && c.App.Environment != "production" {
		return fmt.Errorf("invalid environment: %s", c.App.Environment)
	}

	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// S3Enabled reports whether exports go to a bucket instead of the local directory.
func (c *Config) S3Enabled() bool {
	return c.Storage.Bucket != ""
}
