// Package config provides the configuration for the AnyList Daemon.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// AppName is the name of the configuration directory.
	AppName = "anylist-daemon"
	// ConfigFile is the name of the optional YAML configuration file.
	ConfigFile = "config.yaml"
	// EnvFile is the name of the optional dotenv file holding credentials.
	EnvFile = ".env"
	// CredentialsFile is the name of the file the binary server uses to cache
	// the AnyList session.
	CredentialsFile = ".anylist_credentials"
	// DefaultRefreshInterval is the polling interval, in seconds, used when the
	// options do not specify one.
	DefaultRefreshInterval = 30
	// DefaultHTTPAddr is the address of the REST API.
	DefaultHTTPAddr = "127.0.0.1:28598"
)

// Config holds the configuration of the AnyList Daemon.
type Config struct {
	// LockFile holds the path to the lock file used by the daemon to ensure
	// that only a single instance can be running.
	LockFile string `yaml:"lock_file"`
	// SockFile holds the path to the UNIX socket file used for communication
	// between the daemon process and the command processes.
	SockFile string `yaml:"sock_file"`
	// HTTPAddr is the TCP address the REST API listens on.
	HTTPAddr string `yaml:"http_addr"`
	// CredentialsFile is passed to the binary server via --credentials-file.
	CredentialsFile string `yaml:"credentials_file"`
	// Entry holds the connection settings.
	Entry Entry `yaml:"entry"`
	// Options holds the user-tunable settings.
	Options Options `yaml:"options"`
}

// Entry holds the settings that decide how the AnyList server is reached.
// Either ServerAddr is set, or ServerBinary, Email and Password are set and
// the daemon runs the binary server itself.
type Entry struct {
	ServerAddr   string `yaml:"server_addr"`
	ServerBinary string `yaml:"server_binary"`
	Email        string `yaml:"email"`
	Password     string `yaml:"password"` //nolint:gosec // configuration field, not a hardcoded secret
}

// Options holds the settings that may change without reconnecting.
type Options struct {
	// DefaultList is used whenever a caller does not name a list.
	DefaultList string `yaml:"default_list"`
	// RefreshInterval is the polling interval in seconds.
	RefreshInterval int `yaml:"refresh_interval"`
}

// New returns a configuration with default values.
func New() *Config {
	return &Config{
		LockFile:        defaultLockFile(),
		SockFile:        defaultSockFile(),
		HTTPAddr:        DefaultHTTPAddr,
		CredentialsFile: filepath.Join(Dir(), CredentialsFile),
		Options: Options{
			RefreshInterval: DefaultRefreshInterval,
		},
	}
}

// Load reads the YAML file at path on top of the defaults. Environment
// variables referenced as ${VAR} or $VAR are expanded before parsing, so that
// secrets can live in a dotenv file instead of the configuration. A literal
// dollar sign, e.g. in a password, must be written as $$. A missing file is
// not an error when optional is true.
func Load(path string, optional bool) (*Config, error) {
	conf := New()
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided configuration
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return conf, nil
		}
		return nil, fmt.Errorf("cannot load config: %w", err)
	}
	expanded := expandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), conf); err != nil {
		return nil, fmt.Errorf("cannot parse config %s: %w", path, err)
	}
	return conf, nil
}

// expandEnv is os.ExpandEnv except that $$ stands for a single $.
func expandEnv(s string) string {
	return os.Expand(s, func(name string) string {
		if name == "$" {
			return "$"
		}
		return os.Getenv(name)
	})
}

// LoadEnv loads the dotenv file at path into the process environment.
// Variables already set are left alone. A missing file is not an error when
// optional is true.
func LoadEnv(path string, optional bool) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("cannot load env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("cannot load env file %s: %w", path, err)
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Options.RefreshInterval <= 0 {
		return fmt.Errorf("invalid refresh interval: %d", c.Options.RefreshInterval)
	}
	if c.SockFile == "" {
		return errors.New("no socket file configured")
	}
	return nil
}

// RefreshInterval returns the polling interval as a duration.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Options.RefreshInterval) * time.Second
}

// Dir returns the configuration directory. It uses XDG_CONFIG_HOME if set,
// otherwise $HOME/.config.
func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// DefaultConfigFile returns the path of the YAML file read when no explicit
// configuration file is given.
func DefaultConfigFile() string {
	return filepath.Join(Dir(), ConfigFile)
}

// DefaultEnvFile returns the path of the dotenv file read when no explicit
// env file is given.
func DefaultEnvFile() string {
	return filepath.Join(Dir(), EnvFile)
}

func runDir() string {
	switch runtime.GOOS {
	case "windows":
		return os.TempDir()
	default:
		return filepath.Join("/run/user", strconv.Itoa(os.Getuid()))
	}
}

func defaultLockFile() string {
	return filepath.Join(runDir(), "anylist-daemon.lock")
}

func defaultSockFile() string {
	return filepath.Join(runDir(), "anylist-daemon.sock")
}
