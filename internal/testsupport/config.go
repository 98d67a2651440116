package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"courier/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The session root exists and is empty; uploads are simulated and sleeping is
// disabled unless an option says otherwise.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.RootDir = filepath.Join(base, "realdata")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Device.ID = "test-device"
	cfgVal.Device.IDPath = filepath.Join(base, "params", "DongleId")
	cfgVal.Device.StatePath = filepath.Join(base, "state", "device_state.json")
	cfgVal.Device.OffroadPath = filepath.Join(base, "params", "IsOffroad")
	cfgVal.Uploader.AllowSleep = false
	cfgVal.Uploader.SimulateUpload = true
	cfgVal.Uploader.CPUAffinity = nil
	cfgVal.Uploader.WatchNetwork = false
	cfgVal.Transport.Rsync.Destination = filepath.Join(base, "remote")
	cfgVal.Ledger.Path = filepath.Join(base, "state", "ledger.db")

	if err := os.MkdirAll(cfgVal.Paths.RootDir, 0o755); err != nil {
		t.Fatalf("mkdir root: %v", err)
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithDeviceID overrides the device identity; an empty id clears it.
func WithDeviceID(id string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Device.ID = id
	}
}

// WithMarkerBackend selects the marker store used by the daemon.
func WithMarkerBackend(backend string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Uploader.MarkerBackend = backend
	}
}

// WithRealTransport disables simulation and points the rsync transport at a
// local destination directory.
func WithRealTransport() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Uploader.SimulateUpload = false
		if err := os.MkdirAll(b.cfg.Transport.Rsync.Destination, 0o755); err != nil {
			b.t.Fatalf("mkdir remote: %v", err)
		}
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. Each stub runs script, defaulting to a plain exit 0.
func WithStubbedBinaries(script string, names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"rsync"}
		}
		if script == "" {
			script = "#!/bin/sh\nexit 0\n"
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.RootDir)
}
