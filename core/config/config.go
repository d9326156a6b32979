package config

import (
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"ap-tools/core/github"
	"ap-tools/core/logger"
	"ap-tools/core/server"
	"ap-tools/core/storage"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ArchipelagoConfig locates the Archipelago source checkout.
type ArchipelagoConfig struct {
	// Repo is the path to the Archipelago git checkout.
	Repo string `mapstructure:"repo" default:""`
	// Python is the interpreter used to create the repo's venv.
	Python string `mapstructure:"python" default:"python3"`
	// CustomWorlds overrides the directory managed .apworld files live in.
	// Empty means <repo>/custom_worlds.
	CustomWorlds string `mapstructure:"custom_worlds" default:""`
}

// CustomWorldsDir returns the directory managed world files live in.
func (c ArchipelagoConfig) CustomWorldsDir() string {
	if c.CustomWorlds != "" {
		return c.CustomWorlds
	}
	return filepath.Join(c.Repo, "custom_worlds")
}

// VenvDir returns the repo's virtualenv directory.
func (c ArchipelagoConfig) VenvDir() string {
	return filepath.Join(c.Repo, ".venv")
}

// VenvPython returns the interpreter inside the repo's virtualenv.
func (c ArchipelagoConfig) VenvPython() string {
	return filepath.Join(c.VenvDir(), "bin", "python")
}

// WorldsConfig holds settings for the managed world files.
type WorldsConfig struct {
	// Manifest is the ini file that declares which worlds are managed.
	Manifest string `mapstructure:"manifest" default:"config.ini"`
	// CacheTTLSeconds is how long a release listing stays fresh.
	CacheTTLSeconds int `mapstructure:"cache_ttl_seconds" default:"3600"`
	// CheckConcurrency caps how many repos are checked in parallel.
	CheckConcurrency int `mapstructure:"check_concurrency" default:"4"`
}

// CacheTTL returns the release cache freshness window.
func (c WorldsConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// ExposeConfig holds settings for the TCP proxy in front of the server.
type ExposeConfig struct {
	// Upstream is the address of the running Archipelago server.
	Upstream string `mapstructure:"upstream" default:"127.0.0.1:38281"`
	// TLSListen is the TLS listener address. Empty disables TLS.
	TLSListen string `mapstructure:"tls_listen" default:":38282"`
	// PlainListen is the plaintext listener address. Empty disables it.
	PlainListen string `mapstructure:"plain_listen" default:""`
	// CertFile is the PEM certificate for the TLS listener.
	CertFile string `mapstructure:"cert_file" default:""`
	// KeyFile is the PEM private key for the TLS listener.
	KeyFile string `mapstructure:"key_file" default:""`
}

// TrackerConfig holds settings for the tracker's docker compose stack.
type TrackerConfig struct {
	// ComposeFile is the compose file describing the tracker stack.
	ComposeFile string `mapstructure:"compose_file" default:"docker-compose.yml"`
	// Project overrides the compose project name when set.
	Project string `mapstructure:"project" default:""`
}

// Config holds all configuration for the application.
// It is divided into partial configurations for better modularity.
type Config struct {
	// Archipelago locates the Archipelago checkout and its interpreter.
	Archipelago ArchipelagoConfig `mapstructure:"archipelago"`
	// Worlds holds settings for managed .apworld files.
	Worlds WorldsConfig `mapstructure:"worlds"`
	// GitHub holds configuration for the GitHub API client.
	GitHub github.Config `mapstructure:"github"`
	// Status holds configuration for the local status API.
	Status server.Config `mapstructure:"status"`
	// Expose holds configuration for the TCP proxy.
	Expose ExposeConfig `mapstructure:"expose"`
	// Tracker holds configuration for the tracker compose stack.
	Tracker TrackerConfig `mapstructure:"tracker"`
	// Storage holds configuration for the seed archive backend.
	Storage storage.Config `mapstructure:"storage"`
	// Log holds configuration for the logger.
	Log logger.Config `mapstructure:"log"`
}

// LoadConfig loads configuration from environment variables and .env file.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env file if it exists
	envPath := path + "/.env"
	if path == "." {
		envPath = ".env"
	}

	// Ignore error if file doesn't exist (e.g. production)
	_ = godotenv.Overload(envPath)

	v := viper.New()

	// Recursively parse struct tags to set default values
	bindValues(v, Config{}, "")

	// Map environment variables to nested keys (e.g. GITHUB_TOKEN -> github.token)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// bindValues uses reflection to iterate over the struct and set default values in Viper
// based on the 'default' and 'mapstructure' tags.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)

	// If it's a pointer, get the element
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")

		// Skip if no tag
		if tag == "" {
			continue
		}

		// Build the key
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		// If it's a nested struct, recurse
		if field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}

		defaultValue := field.Tag.Get("default")
		// Always set default (even if empty) to register the key for AutomaticEnv
		v.SetDefault(key, defaultValue)
	}
}
