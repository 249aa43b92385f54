package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

// Default values and hard-coded URLs for various configurations.
const (
	DefaultWebPort           = 8193
	DefaultDataDir           = "/data" // Inside the container
	DefaultCtyCharset        = "utf-8"
	DefaultCtyUpdateInterval = 7 * 24 * time.Hour // Weekly
	MinCtyUpdateInterval     = time.Hour
	DefaultDownloadRetries   = 3
)

// DefaultCtyURL is the AD1C country file. It is baked in but can be
// overridden through CTY_URL.
var DefaultCtyURL = "https://www.country-files.com/cty/cty.dat"

// RedisConfig holds configuration for the optional Redis snapshot cache.
type RedisConfig struct {
	Enabled            bool          `env:"REDIS_ENABLED" envDefault:"false"`
	Host               string        `env:"REDIS_HOST"`
	Port               string        `env:"REDIS_PORT" envDefault:"6379"`
	User               string        `env:"REDIS_USER"`
	Password           string        `env:"REDIS_PASSWORD"`
	DB                 int           `env:"REDIS_DB" envDefault:"0"`
	UseTLS             bool          `env:"REDIS_USE_TLS" envDefault:"false"`
	InsecureSkipVerify bool          `env:"REDIS_INSECURE_SKIP_VERIFY" envDefault:"false"`
	CtyExpiry          time.Duration `env:"REDIS_CTY_EXPIRY" envDefault:"24h"`
}

// Config holds all application configuration.
type Config struct {
	WebPort  int    `env:"WEBPORT" envDefault:"8193"`
	BaseURL  string `env:"WEBURL" envDefault:"/"`
	DataDir  string `env:"DATA_DIR" envDefault:"/data"` // Directory for the SQLite snapshot
	LogLevel string `env:"LOG_LEVEL" envDefault:"notice"`

	// Country file sources. CtyFile, when set, wins over every other source.
	CtyFile           string        `env:"CTY_FILE"`
	CtyURL            string        `env:"CTY_URL"`
	CtyCharset        string        `env:"CTY_CHARSET" envDefault:"utf-8"`
	CtyUpdateInterval time.Duration `env:"CTY_UPDATE_INTERVAL" envDefault:"168h"`
	DownloadRetries   int           `env:"CTY_DOWNLOAD_RETRIES" envDefault:"3"`

	Redis RedisConfig
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if cfg.CtyURL == "" {
		cfg.CtyURL = DefaultCtyURL
	}
	if cfg.CtyUpdateInterval < MinCtyUpdateInterval {
		cfg.CtyUpdateInterval = MinCtyUpdateInterval
	}
	if cfg.DownloadRetries < 0 {
		cfg.DownloadRetries = 0
	}

	// Ensure DataDir exists (it's essential for SQLite)
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", cfg.DataDir, err)
	}

	return cfg, nil
}
