package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	RootDir       string `toml:"root_dir"`
	StateDir      string `toml:"state_dir"`
	LogDir        string `toml:"log_dir"`
	RequiredMount string `toml:"required_mount"`
}

// Device describes where the daemon learns its identity and live device state.
type Device struct {
	ID          string `toml:"id"`
	IDPath      string `toml:"id_path"`
	StateSource string `toml:"state_source"`
	StatePath   string `toml:"state_path"`
	OffroadPath string `toml:"offroad_path"`
}

// Uploader contains the loop, gating, and retry knobs.
type Uploader struct {
	AllowSleep            bool   `toml:"allow_sleep"`
	ForceNetworkType      string `toml:"force_network_type"`
	SimulateUpload        bool   `toml:"simulate_upload"`
	AllowFullFidelity     bool   `toml:"allow_full_fidelity"`
	FullFidelityOnMetered bool   `toml:"full_fidelity_on_metered"`
	OffroadSleepSeconds   int    `toml:"offroad_sleep_seconds"`
	OnroadSleepSeconds    int    `toml:"onroad_sleep_seconds"`
	BackoffBaseMillis     int    `toml:"backoff_base_ms"`
	BackoffMaxSeconds     int    `toml:"backoff_max_seconds"`
	PermanentStatusCodes  []int  `toml:"permanent_status_codes"`
	MarkerBackend         string `toml:"marker_backend"`
	ClearLocksOnStart     bool   `toml:"clear_locks_on_start"`
	MaxSessionDepth       int    `toml:"max_session_depth"`
	CPUAffinity           []int  `toml:"cpu_affinity"`
	WatchNetwork          bool   `toml:"watch_network"`
}

// Priority lists the names that place a file in each upload tier.
type Priority struct {
	ImmediateFolders []string `toml:"immediate_folders"`
	ImmediateFiles   []string `toml:"immediate_files"`
	HighFiles        []string `toml:"high_files"`
	NormalFiles      []string `toml:"normal_files"`
}

// Rsync configures the rsync transport.
type Rsync struct {
	Binary      string `toml:"binary"`
	Destination string `toml:"destination"`
	SSHCommand  string `toml:"ssh_command"`
}

// HTTP configures the HTTP PUT transport.
type HTTP struct {
	BaseURL string `toml:"base_url"`
	Token   string `toml:"token"`
}

// GCS configures the Google Cloud Storage transport.
type GCS struct {
	Bucket          string `toml:"bucket"`
	Prefix          string `toml:"prefix"`
	CredentialsFile string `toml:"credentials_file"`
}

// Swift configures the OpenStack Swift transport.
type Swift struct {
	Username  string            `toml:"username"`
	APIKey    string            `toml:"api_key"`
	AuthURL   string            `toml:"auth_url"`
	Domain    string            `toml:"domain"`
	Region    string            `toml:"region"`
	Container string            `toml:"container"`
	ChunkSize datasize.ByteSize `toml:"chunk_size"`
}

// Transport selects and configures the upload backend.
type Transport struct {
	Kind           string `toml:"kind"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	Rsync          Rsync  `toml:"rsync"`
	HTTP           HTTP   `toml:"http"`
	GCS            GCS    `toml:"gcs"`
	Swift          Swift  `toml:"swift"`
}

// Ledger configures the SQLite upload history.
type Ledger struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	FailureStreak  int    `toml:"failure_streak"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for courier.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Device        Device        `toml:"device"`
	Uploader      Uploader      `toml:"uploader"`
	Priority      Priority      `toml:"priority"`
	Transport     Transport     `toml:"transport"`
	Ledger        Ledger        `toml:"ledger"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. Environment
// overrides are applied after the file so deployments can flip debugging
// switches without editing it. The returned config has all path fields
// expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file).DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("courier.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the daemon writes into. The
// session root belongs to the recorder and is never created here.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Ledger.Enabled {
		if err := os.MkdirAll(filepath.Dir(c.Ledger.Path), 0o755); err != nil {
			return fmt.Errorf("create ledger directory: %w", err)
		}
	}
	return nil
}

// LockPath is the single-instance lock file held by a running daemon.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "courierd.lock")
}

// PIDPath records the running daemon's process id.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "courierd.pid")
}

// StatusPath is the JSON status snapshot published after every loop iteration.
func (c *Config) StatusPath() string {
	return filepath.Join(c.Paths.StateDir, "status.json")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
