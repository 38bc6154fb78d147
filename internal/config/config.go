package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/janekbaraniewski/spendboard/internal/core"
)

const (
	DefaultRelayListen       = "127.0.0.1:8787"
	DefaultAppID             = "spendboard"
	DefaultPasswordKeyTTL    = 30
	DefaultTimeoutSeconds    = 20
	DefaultIPEchoTimeoutSecs = 10
)

// EnvConfigPath overrides the config file location.
const EnvConfigPath = "SPENDBOARD_CONFIG"

type StorageConfig struct {
	DBPath string `toml:"db_path"`
}

type SyncConfig struct {
	BaseURL            string `toml:"base_url"`
	AppID              string `toml:"app_id"`
	PasswordKeyTTLDays int    `toml:"password_key_ttl_days"`
	KeyringService     string `toml:"keyring_service"`
}

type RelayConfig struct {
	Listen         string   `toml:"listen"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

type HTTPConfig struct {
	TimeoutSeconds       int `toml:"timeout_seconds"`
	IPEchoTimeoutSeconds int `toml:"ip_echo_timeout_seconds"`
}

// VendorConfig points a vendor at a non-default API host, e.g. a mock or a
// regional endpoint.
type VendorConfig struct {
	BaseURL string `toml:"base_url"`
}

type Config struct {
	Storage StorageConfig           `toml:"storage"`
	Sync    SyncConfig              `toml:"sync"`
	Relay   RelayConfig             `toml:"relay"`
	HTTP    HTTPConfig              `toml:"http"`
	Vendors map[string]VendorConfig `toml:"vendors"`
}

func DefaultConfig() Config {
	return Config{
		Storage: StorageConfig{DBPath: filepath.Join(ConfigDir(), "spendboard.db")},
		Sync: SyncConfig{
			AppID:              DefaultAppID,
			PasswordKeyTTLDays: DefaultPasswordKeyTTL,
			KeyringService:     "spendboard-sync",
		},
		Relay: RelayConfig{
			Listen:         DefaultRelayListen,
			AllowedOrigins: []string{"*"},
		},
		HTTP: HTTPConfig{
			TimeoutSeconds:       DefaultTimeoutSeconds,
			IPEchoTimeoutSeconds: DefaultIPEchoTimeoutSecs,
		},
	}
}

func ConfigDir() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("APPDATA"), "spendboard")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "spendboard")
}

func ConfigPath() string {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p
	}
	return filepath.Join(ConfigDir(), "config.toml")
}

func Load() (Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads path over the defaults. A missing file yields the defaults.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	def := DefaultConfig()
	if strings.TrimSpace(c.Storage.DBPath) == "" {
		c.Storage.DBPath = def.Storage.DBPath
	}
	if expanded, err := ExpandPath(c.Storage.DBPath); err == nil {
		c.Storage.DBPath = expanded
	}
	c.Sync.BaseURL = strings.TrimRight(strings.TrimSpace(c.Sync.BaseURL), "/")
	if c.Sync.AppID == "" {
		c.Sync.AppID = def.Sync.AppID
	}
	if c.Sync.PasswordKeyTTLDays <= 0 {
		c.Sync.PasswordKeyTTLDays = def.Sync.PasswordKeyTTLDays
	}
	if c.Sync.KeyringService == "" {
		c.Sync.KeyringService = def.Sync.KeyringService
	}
	if c.Relay.Listen == "" {
		c.Relay.Listen = def.Relay.Listen
	}
	if len(c.Relay.AllowedOrigins) == 0 {
		c.Relay.AllowedOrigins = def.Relay.AllowedOrigins
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		c.HTTP.TimeoutSeconds = def.HTTP.TimeoutSeconds
	}
	if c.HTTP.IPEchoTimeoutSeconds <= 0 {
		c.HTTP.IPEchoTimeoutSeconds = def.HTTP.IPEchoTimeoutSeconds
	}
}

func (c Config) Timeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

func (c Config) IPEchoTimeout() time.Duration {
	return time.Duration(c.HTTP.IPEchoTimeoutSeconds) * time.Second
}

func (c Config) PasswordKeyTTL() time.Duration {
	return time.Duration(c.Sync.PasswordKeyTTLDays) * 24 * time.Hour
}

// VendorBaseURLs returns the configured API host overrides keyed by vendor.
// Unknown vendor names are ignored.
func (c Config) VendorBaseURLs() map[core.Vendor]string {
	out := make(map[core.Vendor]string, len(c.Vendors))
	for name, vc := range c.Vendors {
		v, ok := core.ParseVendor(name)
		if !ok || strings.TrimSpace(vc.BaseURL) == "" {
			continue
		}
		out[v] = strings.TrimSpace(vc.BaseURL)
	}
	return out
}

// saveMu guards read-modify-write cycles on the config file.
var saveMu sync.Mutex

func Save(cfg Config) error {
	return SaveTo(ConfigPath(), cfg)
}

func SaveTo(path string, cfg Config) error {
	saveMu.Lock()
	defer saveMu.Unlock()
	return writeConfig(path, cfg)
}

// Update applies fn to the config stored at path and writes it back.
func Update(path string, fn func(*Config)) error {
	saveMu.Lock()
	defer saveMu.Unlock()

	cfg, err := LoadFrom(path)
	if err != nil {
		return err
	}
	fn(&cfg)
	return writeConfig(path, cfg)
}

func writeConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// ExpandPath resolves a leading "~" to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		if path == "~" {
			path = home
		} else {
			path = filepath.Join(home, strings.TrimPrefix(path, "~/"))
		}
	}
	return filepath.Clean(path), nil
}
