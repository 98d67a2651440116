package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/ncw/swift/v2"
	"google.golang.org/api/googleapi"

	"courier/internal/config"
	"courier/internal/logging"
	"courier/internal/testsupport"
)

func writeStub(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rsync")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestRsyncArgs(t *testing.T) {
	r := NewRsync(config.Rsync{Destination: "uploads@host:/srv/", SSHCommand: "ssh -i key"}, time.Minute)
	got := r.Args("/data/s1/qlog", "dev/s1/qlog")
	want := []string{"--append", "--mkpath", "-azhP", "-e", "ssh -i key", "/data/s1/qlog", "uploads@host:/srv/dev/s1/qlog"}
	if !slices.Equal(got, want) {
		t.Fatalf("unexpected args:\n got %v\nwant %v", got, want)
	}

	plain := NewRsync(config.Rsync{Destination: "/mnt/remote"}, 0)
	if got := plain.Args("/a", "k"); slices.Contains(got, "-e") {
		t.Fatalf("expected no -e without ssh command, got %v", got)
	}
	if plain.binary != "rsync" {
		t.Fatalf("expected default binary, got %q", plain.binary)
	}
}

func TestRsyncSend(t *testing.T) {
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args")
	stub := writeStub(t, fmt.Sprintf("printf '%%s\\n' \"$@\" > %s\nexit 0\n", argsFile))

	r := NewRsync(config.Rsync{Binary: stub, Destination: "/remote"}, time.Minute)
	code, err := r.Send(context.Background(), "/data/s1/qlog", "dev/s1/qlog")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if code != StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	recorded, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("read args: %v", err)
	}
	if !strings.Contains(string(recorded), "/remote/dev/s1/qlog") {
		t.Fatalf("expected destination in args, got %q", recorded)
	}
}

func TestRsyncSendFailureIncludesStderr(t *testing.T) {
	stub := writeStub(t, "echo 'progress' >&2\necho 'connection refused' >&2\nexit 12\n")
	r := NewRsync(config.Rsync{Binary: stub, Destination: "/remote"}, time.Minute)
	code, err := r.Send(context.Background(), "/data/s1/qlog", "dev/s1/qlog")
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	if code != 0 {
		t.Fatalf("expected no status code on failure, got %d", code)
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("expected stderr tail in error, got %v", err)
	}
}

func TestRsyncSendTimeout(t *testing.T) {
	stub := writeStub(t, "exec sleep 5\n")
	r := NewRsync(config.Rsync{Binary: stub, Destination: "/remote"}, 50*time.Millisecond)
	_, err := r.Send(context.Background(), "/data/s1/qlog", "dev/s1/qlog")
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestHTTPSend(t *testing.T) {
	var gotPath, gotAuth, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		gotPath = r.URL.EscapedPath()
		gotAuth = r.Header.Get("Authorization")
		gotBody = string(body)
		if strings.HasSuffix(r.URL.Path, "refused") {
			w.WriteHeader(http.StatusPreconditionFailed)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	local := filepath.Join(t.TempDir(), "qlog")
	if err := os.WriteFile(local, []byte("payload"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	h := NewHTTP(config.HTTP{BaseURL: srv.URL + "/upload/", Token: "secret"}, time.Minute)
	code, err := h.Send(context.Background(), local, "dev/2024-01-01--00 00/qlog")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}
	if gotPath != "/upload/dev/2024-01-01--00%2000/qlog" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotBody != "payload" {
		t.Fatalf("unexpected body %q", gotBody)
	}

	code, err = h.Send(context.Background(), local, "dev/refused")
	if err != nil {
		t.Fatalf("non-2xx should not be an error: %v", err)
	}
	if code != http.StatusPreconditionFailed {
		t.Fatalf("expected 412, got %d", code)
	}
}

func TestHTTPSendMissingFile(t *testing.T) {
	h := NewHTTP(config.HTTP{BaseURL: "http://127.0.0.1:1"}, time.Second)
	if _, err := h.Send(context.Background(), filepath.Join(t.TempDir(), "absent"), "k"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestStatusFromBackendErrors(t *testing.T) {
	if code, err := statusFromSwiftError(fmt.Errorf("put: %w", &swift.Error{StatusCode: 403, Text: "Forbidden"})); err != nil || code != 403 {
		t.Fatalf("expected 403 from swift error, got %d %v", code, err)
	}
	if code, err := statusFromSwiftError(&swift.Error{StatusCode: 503, Text: "Unavailable"}); err == nil || code != 0 {
		t.Fatalf("expected 5xx swift error to stay an error, got %d %v", code, err)
	}
	if code, err := statusFromGoogleError(&googleapi.Error{Code: 412}); err != nil || code != 412 {
		t.Fatalf("expected 412 from google error, got %d %v", code, err)
	}
	if _, err := statusFromGoogleError(errors.New("network down")); err == nil {
		t.Fatal("expected plain error to stay an error")
	}
}

func TestNewSelectsBackend(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	tr, err := New(context.Background(), cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := tr.(*Simulated); !ok {
		t.Fatalf("expected simulated transport, got %T", tr)
	}
	if code, err := tr.Send(context.Background(), "/x", "k"); err != nil || code != StatusOK {
		t.Fatalf("simulated send = %d %v", code, err)
	}

	cfg.Uploader.SimulateUpload = false
	tr, err = New(context.Background(), cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New rsync: %v", err)
	}
	if _, ok := tr.(*Rsync); !ok {
		t.Fatalf("expected rsync transport, got %T", tr)
	}

	cfg.Transport.Kind = KindHTTP
	cfg.Transport.HTTP.BaseURL = "http://example.invalid"
	tr, err = New(context.Background(), cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New http: %v", err)
	}
	if _, ok := tr.(*HTTP); !ok {
		t.Fatalf("expected http transport, got %T", tr)
	}

	cfg.Transport.Kind = "carrier-pigeon"
	if _, err := New(context.Background(), cfg, logging.NewNop()); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestJoinKey(t *testing.T) {
	if got := joinKey("/prefix/", "/dev/s1/qlog"); got != "prefix/dev/s1/qlog" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := joinKey("", "dev/s1/qlog"); got != "dev/s1/qlog" {
		t.Fatalf("unexpected key %q", got)
	}
}
