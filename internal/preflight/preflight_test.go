package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"courier/internal/config"
	"courier/internal/marker"
	"courier/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckDirectoryReadable_Unconfigured(t *testing.T) {
	if result := CheckDirectoryReadable("root", "  "); result.Passed || result.Detail != "not configured" {
		t.Fatalf("expected unconfigured failure, got %+v", result)
	}
}

func TestCheckMountPoint(t *testing.T) {
	if result := CheckMountPoint("root", "/"); !result.Passed {
		t.Fatalf("expected / to be a mount point, got %s", result.Detail)
	}

	nested := filepath.Join(t.TempDir(), "plain")
	if err := os.Mkdir(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	if result := CheckMountPoint("plain", nested); result.Passed {
		t.Fatalf("expected plain directory to fail, got %s", result.Detail)
	}

	if result := CheckMountPoint("absent", filepath.Join(nested, "missing")); result.Passed {
		t.Fatal("expected missing path to fail")
	}
}

func TestCheckEndpoint_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	result := CheckEndpoint(context.Background(), srv.URL, "good")
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckEndpoint_BadToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	if result := CheckEndpoint(context.Background(), srv.URL, "bad"); result.Passed {
		t.Fatal("expected failure for rejected token")
	}
}

func TestCheckEndpoint_MissingURL(t *testing.T) {
	if result := CheckEndpoint(context.Background(), "", "token"); result.Passed {
		t.Fatal("expected failure for missing URL")
	}
}

func TestCheckTransportBinaries(t *testing.T) {
	cfg := config.Default()
	cfg.Transport.Rsync.Binary = "clearly-not-present-rsync"
	results := CheckTransportBinaries(&cfg)
	if len(results) != 1 || results[0].Passed {
		t.Fatalf("expected a single failing rsync check, got %+v", results)
	}

	cfg.Uploader.SimulateUpload = true
	if results := CheckTransportBinaries(&cfg); len(results) != 0 {
		t.Fatalf("expected no binary checks when simulating, got %+v", results)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_MinimalConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.RootDir = t.TempDir()
	cfg.Paths.StateDir = t.TempDir()
	cfg.Uploader.MarkerBackend = marker.BackendSidecar
	cfg.Uploader.SimulateUpload = true

	results := RunAll(context.Background(), &cfg)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d: %+v", len(results), results)
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}
}

func TestRunAll_IncludesMountAndEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Paths.RootDir = t.TempDir()
	cfg.Paths.StateDir = t.TempDir()
	cfg.Paths.RequiredMount = cfg.Paths.RootDir
	cfg.Uploader.MarkerBackend = marker.BackendSidecar
	cfg.Transport.Kind = "http"
	cfg.Transport.HTTP.BaseURL = srv.URL

	results := RunAll(context.Background(), &cfg)
	names := map[string]Result{}
	for _, r := range results {
		names[r.Name] = r
	}
	if r, ok := names["Upload endpoint"]; !ok || !r.Passed {
		t.Fatalf("expected passing endpoint check, got %+v", results)
	}
	if r, ok := names["Required mount"]; !ok || r.Passed {
		t.Fatalf("expected failing mount check for a temp dir, got %+v", results)
	}
	if len(Failed(results)) != 1 {
		t.Fatalf("expected only the mount check to fail, got %+v", Failed(results))
	}
}

func TestRunAll_RsyncTransportWithBinaries(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithMarkerBackend(marker.BackendSidecar),
		testsupport.WithRealTransport(),
		testsupport.WithStubbedBinaries("", "rsync", "ssh"),
	)
	cfg.Transport.Rsync.SSHCommand = "ssh -o BatchMode=yes"
	if err := os.MkdirAll(cfg.Paths.StateDir, 0o755); err != nil {
		t.Fatalf("mkdir state: %v", err)
	}

	results := RunAll(context.Background(), cfg)
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}
	names := make(map[string]bool, len(results))
	for _, r := range results {
		names[r.Name] = true
	}
	if !names["rsync"] || !names["ssh"] {
		t.Fatalf("expected rsync and ssh checks, got %+v", results)
	}
}
