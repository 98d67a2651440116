package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/c2h5oh/datasize"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateDevice(); err != nil {
		return err
	}
	if err := c.validateUploader(); err != nil {
		return err
	}
	if err := c.validatePriority(); err != nil {
		return err
	}
	if err := c.validateTransport(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.RootDir == "" {
		return errors.New("paths.root_dir must be set")
	}
	if c.Paths.StateDir == "" {
		return errors.New("paths.state_dir must be set")
	}
	return nil
}

func (c *Config) validateDevice() error {
	switch c.Device.StateSource {
	case "file":
		if c.Device.StatePath == "" {
			return errors.New("device.state_path must be set when device.state_source is \"file\"")
		}
	case "interfaces":
	default:
		return fmt.Errorf("device.state_source must be \"file\" or \"interfaces\", got %q", c.Device.StateSource)
	}
	return nil
}

func (c *Config) validateUploader() error {
	switch c.Uploader.ForceNetworkType {
	case "", "wifi", "ethernet", "cellular":
	default:
		return fmt.Errorf("uploader.force_network_type must be one of wifi, ethernet, cellular; got %q", c.Uploader.ForceNetworkType)
	}
	switch c.Uploader.MarkerBackend {
	case "xattr", "sidecar":
	case "ledger":
		if !c.Ledger.Enabled {
			return errors.New("uploader.marker_backend \"ledger\" requires ledger.enabled")
		}
	default:
		return fmt.Errorf("uploader.marker_backend must be one of xattr, sidecar, ledger; got %q", c.Uploader.MarkerBackend)
	}
	if c.Uploader.BackoffBaseMillis > c.Uploader.BackoffMaxSeconds*1000 {
		return errors.New("uploader.backoff_base_ms must not exceed uploader.backoff_max_seconds")
	}
	for _, code := range c.Uploader.PermanentStatusCodes {
		if code < 100 || code > 599 {
			return fmt.Errorf("uploader.permanent_status_codes contains invalid HTTP status %d", code)
		}
		if code == 200 || code == 201 {
			return fmt.Errorf("uploader.permanent_status_codes must not contain success status %d", code)
		}
	}
	for _, cpu := range c.Uploader.CPUAffinity {
		if cpu < 0 {
			return fmt.Errorf("uploader.cpu_affinity contains negative cpu %d", cpu)
		}
	}
	return nil
}

func (c *Config) validatePriority() error {
	seen := make(map[string]string)
	lists := []struct {
		key   string
		names []string
	}{
		{"priority.immediate_files", c.Priority.ImmediateFiles},
		{"priority.high_files", c.Priority.HighFiles},
		{"priority.normal_files", c.Priority.NormalFiles},
	}
	for _, list := range lists {
		for _, name := range list.names {
			if strings.ContainsRune(name, '/') {
				return fmt.Errorf("%s entry %q must be a bare file name", list.key, name)
			}
			if prev, ok := seen[name]; ok {
				return fmt.Errorf("%s entry %q is already listed in %s", list.key, name, prev)
			}
			seen[name] = list.key
		}
	}
	return nil
}

func (c *Config) validateTransport() error {
	if c.Uploader.SimulateUpload {
		return nil
	}
	switch c.Transport.Kind {
	case "rsync":
		if c.Transport.Rsync.Destination == "" {
			return errors.New("transport.rsync.destination must be set when transport.kind is \"rsync\"")
		}
	case "http":
		if c.Transport.HTTP.BaseURL == "" {
			return errors.New("transport.http.base_url must be set when transport.kind is \"http\"")
		}
		parsed, err := url.Parse(c.Transport.HTTP.BaseURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("transport.http.base_url %q is not an absolute URL", c.Transport.HTTP.BaseURL)
		}
	case "gcs":
		if c.Transport.GCS.Bucket == "" {
			return errors.New("transport.gcs.bucket must be set when transport.kind is \"gcs\"")
		}
	case "swift":
		s := c.Transport.Swift
		for key, value := range map[string]string{
			"username":  s.Username,
			"api_key":   s.APIKey,
			"auth_url":  s.AuthURL,
			"container": s.Container,
		} {
			if strings.TrimSpace(value) == "" {
				return fmt.Errorf("transport.swift.%s must be set when transport.kind is \"swift\"", key)
			}
		}
		if s.ChunkSize < datasize.MB {
			return fmt.Errorf("transport.swift.chunk_size is too small (%s), use at least 1MB", s.ChunkSize.HR())
		}
	default:
		return fmt.Errorf("transport.kind must be one of rsync, http, gcs, swift; got %q", c.Transport.Kind)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	return nil
}
