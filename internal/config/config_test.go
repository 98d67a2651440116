package config_test

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/c2h5oh/datasize"

	"courier/internal/config"
)

func clearCourierEnv(t *testing.T) {
	t.Helper()
	for _, key := range append(config.EnvUsage(), "UPLOADER_SLEEP", "FORCEWIFI", "FAKEUPLOAD") {
		if value, ok := os.LookupEnv(key); ok {
			t.Setenv(key, value)
			os.Unsetenv(key)
		}
	}
}

func TestLoadDefaultsExpandPaths(t *testing.T) {
	clearCourierEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("COURIER_SIMULATE_UPLOAD", "true")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if want := filepath.Join(tempHome, ".local", "state", "courier"); cfg.Paths.StateDir != want {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, want)
	}
	if cfg.Paths.RootDir != "/data/media/0/realdata" {
		t.Fatalf("unexpected root dir: %q", cfg.Paths.RootDir)
	}
	if !cfg.Uploader.SimulateUpload {
		t.Fatal("expected simulate upload from environment")
	}
	if !slices.Equal(cfg.Uploader.PermanentStatusCodes, []int{401, 403, 412}) {
		t.Fatalf("unexpected permanent codes: %v", cfg.Uploader.PermanentStatusCodes)
	}
	if !slices.Equal(cfg.Priority.ImmediateFiles, []string{"qlog", "qcamera.ts"}) {
		t.Fatalf("unexpected immediate files: %v", cfg.Priority.ImmediateFiles)
	}
	if cfg.StatusPath() != filepath.Join(cfg.Paths.StateDir, "status.json") {
		t.Fatalf("unexpected status path %q", cfg.StatusPath())
	}
}

func TestLoadDefaultsRequireDestination(t *testing.T) {
	clearCourierEnv(t)
	t.Setenv("HOME", t.TempDir())

	_, _, _, err := config.Load("")
	if err == nil || !strings.Contains(err.Error(), "transport.rsync.destination") {
		t.Fatalf("expected destination error, got %v", err)
	}
}

func TestSampleConfigLoads(t *testing.T) {
	clearCourierEnv(t)
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected sample to be found at %q, got %q exists=%v", path, resolved, exists)
	}
	if cfg.Transport.Swift.ChunkSize != 512*datasize.MB {
		t.Fatalf("unexpected swift chunk size %s", cfg.Transport.Swift.ChunkSize)
	}
	if cfg.Uploader.OffroadSleepSeconds != 60 || cfg.Uploader.OnroadSleepSeconds != 5 {
		t.Fatalf("unexpected sleep defaults: %+v", cfg.Uploader)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	clearCourierEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "[uploader]\nallow_sleeps = true\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestLegacyEnvironmentSwitches(t *testing.T) {
	clearCourierEnv(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("UPLOADER_SLEEP", "")
	t.Setenv("FORCEWIFI", "1")
	t.Setenv("FAKEUPLOAD", "1")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Uploader.AllowSleep {
		t.Fatal("expected empty UPLOADER_SLEEP to disable sleeping")
	}
	if cfg.Uploader.ForceNetworkType != "wifi" {
		t.Fatalf("expected FORCEWIFI to force wifi, got %q", cfg.Uploader.ForceNetworkType)
	}
	if !cfg.Uploader.SimulateUpload {
		t.Fatal("expected FAKEUPLOAD to enable simulation")
	}
}

func TestCourierEnvironmentOverridesFile(t *testing.T) {
	clearCourierEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "[uploader]\nallow_sleep = true\nsimulate_upload = true\n[device]\nid = \"from-file\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("COURIER_ALLOW_SLEEP", "false")
	t.Setenv("COURIER_DEVICE_ID", "from-env")
	t.Setenv("COURIER_FORCE_NETWORK_TYPE", "Ethernet")

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Uploader.AllowSleep {
		t.Fatal("expected COURIER_ALLOW_SLEEP to win")
	}
	if cfg.Device.ID != "from-env" {
		t.Fatalf("expected env device id, got %q", cfg.Device.ID)
	}
	if cfg.Uploader.ForceNetworkType != "ethernet" {
		t.Fatalf("expected normalized network override, got %q", cfg.Uploader.ForceNetworkType)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{
			name:   "defaults with destination",
			mutate: func(*config.Config) {},
		},
		{
			name:    "bad network override",
			mutate:  func(c *config.Config) { c.Uploader.ForceNetworkType = "satellite" },
			wantErr: "uploader.force_network_type",
		},
		{
			name: "ledger marker without ledger",
			mutate: func(c *config.Config) {
				c.Uploader.MarkerBackend = "ledger"
				c.Ledger.Enabled = false
			},
			wantErr: "requires ledger.enabled",
		},
		{
			name:    "success code listed as permanent",
			mutate:  func(c *config.Config) { c.Uploader.PermanentStatusCodes = []int{200} },
			wantErr: "success status 200",
		},
		{
			name:    "duplicate tier entry",
			mutate:  func(c *config.Config) { c.Priority.HighFiles = []string{"qlog"} },
			wantErr: "already listed",
		},
		{
			name:    "http without url",
			mutate:  func(c *config.Config) { c.Transport.Kind = "http" },
			wantErr: "transport.http.base_url",
		},
		{
			name:    "gcs without bucket",
			mutate:  func(c *config.Config) { c.Transport.Kind = "gcs" },
			wantErr: "transport.gcs.bucket",
		},
		{
			name: "swift chunk too small",
			mutate: func(c *config.Config) {
				c.Transport.Kind = "swift"
				c.Transport.Swift = config.Swift{Username: "u", APIKey: "k", AuthURL: "https://auth", Container: "c", ChunkSize: 10 * datasize.KB}
			},
			wantErr: "chunk_size is too small",
		},
		{
			name:    "unknown transport",
			mutate:  func(c *config.Config) { c.Transport.Kind = "ftp" },
			wantErr: "transport.kind",
		},
		{
			name:    "unknown state source",
			mutate:  func(c *config.Config) { c.Device.StateSource = "modem" },
			wantErr: "device.state_source",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Transport.Rsync.Destination = "host:/srv"
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected valid config, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestEnvUsageListsOverrideKeys(t *testing.T) {
	keys := config.EnvUsage()
	want := []string{
		"COURIER_ROOT_DIR",
		"COURIER_DEVICE_ID",
		"COURIER_ALLOW_SLEEP",
		"COURIER_FORCE_NETWORK_TYPE",
		"COURIER_SIMULATE_UPLOAD",
		"COURIER_TRANSPORT_KIND",
		"COURIER_NTFY_TOPIC",
		"COURIER_LOG_LEVEL",
	}
	if !slices.Equal(keys, want) {
		t.Fatalf("EnvUsage() = %v, want %v", keys, want)
	}
}
