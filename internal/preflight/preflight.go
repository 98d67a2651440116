package preflight

import (
	"context"

	"courier/internal/config"
	"courier/internal/marker"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryReadable("Session root", cfg.Paths.RootDir))
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))

	if cfg.Paths.RequiredMount != "" {
		results = append(results, CheckMountPoint("Required mount", cfg.Paths.RequiredMount))
	}

	if cfg.Uploader.MarkerBackend == marker.BackendXattr {
		results = append(results, CheckMarkerSupport(cfg.Paths.RootDir))
	}

	results = append(results, CheckTransportBinaries(cfg)...)

	if !cfg.Uploader.SimulateUpload && cfg.Transport.Kind == "http" {
		results = append(results, CheckEndpoint(ctx, cfg.Transport.HTTP.BaseURL, cfg.Transport.HTTP.Token))
	}

	return results
}

// Failed filters results down to the checks that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
