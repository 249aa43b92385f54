package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/user00265/hamtools/internal/config"
)

var allKeys = []string{
	"WEBPORT", "WEBURL", "DATA_DIR", "LOG_LEVEL",
	"CTY_FILE", "CTY_URL", "CTY_CHARSET", "CTY_UPDATE_INTERVAL", "CTY_DOWNLOAD_RETRIES",
	"REDIS_ENABLED", "REDIS_HOST", "REDIS_PORT", "REDIS_USER", "REDIS_PASSWORD", "REDIS_DB",
	"REDIS_USE_TLS", "REDIS_INSECURE_SKIP_VERIFY", "REDIS_CTY_EXPIRY",
}

// clearEnvs unsets every variable the config reads; t.Setenv restores
// the previous values when the test ends.
func clearEnvs(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnvs(t)
	tempDir := t.TempDir()
	t.Setenv("DATA_DIR", tempDir)

	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.WebPort != config.DefaultWebPort {
		t.Errorf("Expected WebPort to be %d, got %d", config.DefaultWebPort, cfg.WebPort)
	}
	if cfg.DataDir != tempDir {
		t.Errorf("Expected DataDir to be %s, got %s", tempDir, cfg.DataDir)
	}
	if cfg.CtyURL != config.DefaultCtyURL {
		t.Errorf("Expected CtyURL to be %s, got %s", config.DefaultCtyURL, cfg.CtyURL)
	}
	if cfg.CtyCharset != config.DefaultCtyCharset {
		t.Errorf("Expected CtyCharset to be %s, got %s", config.DefaultCtyCharset, cfg.CtyCharset)
	}
	if cfg.CtyUpdateInterval != config.DefaultCtyUpdateInterval {
		t.Errorf("Expected CtyUpdateInterval to be %s, got %s", config.DefaultCtyUpdateInterval, cfg.CtyUpdateInterval)
	}
	if cfg.DownloadRetries != config.DefaultDownloadRetries {
		t.Errorf("Expected DownloadRetries to be %d, got %d", config.DefaultDownloadRetries, cfg.DownloadRetries)
	}
	if cfg.CtyFile != "" {
		t.Errorf("Expected empty CtyFile, got %q", cfg.CtyFile)
	}

	if cfg.Redis.Enabled {
		t.Error("Expected Redis.Enabled to be false")
	}
	if cfg.Redis.Port != "6379" {
		t.Errorf("Expected Redis.Port to be 6379, got %s", cfg.Redis.Port)
	}
	if cfg.Redis.CtyExpiry != 24*time.Hour {
		t.Errorf("Expected Redis.CtyExpiry to be 24h, got %s", cfg.Redis.CtyExpiry)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	clearEnvs(t)
	dataDir := filepath.Join(t.TempDir(), "nested", "data")
	t.Setenv("DATA_DIR", dataDir)
	t.Setenv("WEBPORT", "9000")
	t.Setenv("CTY_FILE", "/etc/cty.dat")
	t.Setenv("CTY_URL", "http://example.invalid/cty.dat")
	t.Setenv("CTY_CHARSET", "iso-8859-1")
	t.Setenv("CTY_UPDATE_INTERVAL", "48h")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_HOST", "redis.local")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("REDIS_CTY_EXPIRY", "1h")

	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.WebPort != 9000 {
		t.Errorf("WebPort = %d, want 9000", cfg.WebPort)
	}
	if cfg.CtyFile != "/etc/cty.dat" || cfg.CtyURL != "http://example.invalid/cty.dat" {
		t.Errorf("cty sources = %q, %q", cfg.CtyFile, cfg.CtyURL)
	}
	if cfg.CtyCharset != "iso-8859-1" {
		t.Errorf("CtyCharset = %q", cfg.CtyCharset)
	}
	if cfg.CtyUpdateInterval != 48*time.Hour {
		t.Errorf("CtyUpdateInterval = %s, want 48h", cfg.CtyUpdateInterval)
	}
	if !cfg.Redis.Enabled || cfg.Redis.Host != "redis.local" || cfg.Redis.DB != 2 || cfg.Redis.CtyExpiry != time.Hour {
		t.Errorf("Redis = %+v", cfg.Redis)
	}
}

func TestLoadConfig_ClampsInterval(t *testing.T) {
	clearEnvs(t)
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("CTY_UPDATE_INTERVAL", "5m")
	t.Setenv("CTY_DOWNLOAD_RETRIES", "-4")

	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.CtyUpdateInterval != config.MinCtyUpdateInterval {
		t.Errorf("CtyUpdateInterval = %s, want %s", cfg.CtyUpdateInterval, config.MinCtyUpdateInterval)
	}
	if cfg.DownloadRetries != 0 {
		t.Errorf("DownloadRetries = %d, want 0", cfg.DownloadRetries)
	}
}

func TestLoadConfig_InvalidValue(t *testing.T) {
	clearEnvs(t)
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("WEBPORT", "not-a-port")

	if _, err := config.LoadConfig(); err == nil {
		t.Error("LoadConfig succeeded with an invalid WEBPORT")
	}
}
