package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"courier/internal/config"
	"courier/internal/deps"
	"courier/internal/marker"
)

// CheckEndpoint verifies the HTTP upload endpoint answers and accepts the token.
// Any response other than 401/403 counts as reachable since the base URL
// itself need not serve content.
func CheckEndpoint(ctx context.Context, baseURL, token string) Result {
	const name = "Upload endpoint"

	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodHead, base+"/", nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("request failed (%v)", err)}
	}
	if token = strings.TrimSpace(token); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetError(err)}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return Result{Name: name, Detail: fmt.Sprintf("auth failed (%d)", resp.StatusCode)}
	default:
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("reachable (%d)", resp.StatusCode)}
	}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.W_OK|unix.X_OK, "read/write ok")
}

// CheckDirectoryReadable verifies that the directory exists and can be listed.
func CheckDirectoryReadable(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.X_OK, "read ok")
}

func checkDirectory(name, path string, mode uint32, ok string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, mode); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", path, ok)}
}

// CheckMountPoint verifies that path is the root of a mounted filesystem,
// which guards against uploading from an empty directory left behind when
// the data partition failed to mount.
func CheckMountPoint(name, path string) Result {
	var self, parent unix.Stat_t
	if err := unix.Stat(path, &self); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	clean := filepath.Clean(path)
	if clean == string(filepath.Separator) {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (mounted)", path)}
	}
	if err := unix.Stat(filepath.Dir(clean), &parent); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat parent: %v)", path, err)}
	}
	if self.Dev == parent.Dev && self.Ino != parent.Ino {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not a mount point)", path)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (mounted)", path)}
}

// CheckMarkerSupport verifies that the session root's filesystem stores
// extended attributes.
func CheckMarkerSupport(root string) Result {
	const name = "Upload markers"
	if err := marker.Probe(root); err != nil {
		if errors.Is(err, unix.ENOTSUP) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: xattrs unsupported, use marker_backend = \"sidecar\")", root)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", root, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (xattr ok)", root)}
}

// CheckTransportBinaries reports one result per binary the configured
// transport runs.
func CheckTransportBinaries(cfg *config.Config) []Result {
	statuses := deps.CheckBinaries(deps.TransportRequirements(cfg))
	results := make([]Result, 0, len(statuses))
	for _, s := range statuses {
		r := Result{Name: s.Name, Passed: s.Available || s.Optional, Detail: s.Detail}
		if s.Available {
			r.Detail = s.Path
		}
		results = append(results, r)
	}
	return results
}

func summarizeNetError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "request timed out"
	}
	return err.Error()
}
