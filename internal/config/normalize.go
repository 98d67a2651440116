package config

import (
	"fmt"
	"slices"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeDevice(); err != nil {
		return err
	}
	c.normalizeUploader()
	c.normalizePriority()
	if err := c.normalizeTransport(); err != nil {
		return err
	}
	if err := c.normalizeLedger(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.RootDir) == "" {
		c.Paths.RootDir = defaultRootDir
	}
	if c.Paths.RootDir, err = expandPath(c.Paths.RootDir); err != nil {
		return fmt.Errorf("paths.root_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.RequiredMount, err = expandPath(strings.TrimSpace(c.Paths.RequiredMount)); err != nil {
		return fmt.Errorf("paths.required_mount: %w", err)
	}
	return nil
}

func (c *Config) normalizeDevice() error {
	var err error
	c.Device.ID = strings.TrimSpace(c.Device.ID)
	if c.Device.IDPath, err = expandPath(strings.TrimSpace(c.Device.IDPath)); err != nil {
		return fmt.Errorf("device.id_path: %w", err)
	}
	c.Device.StateSource = strings.ToLower(strings.TrimSpace(c.Device.StateSource))
	if c.Device.StateSource == "" {
		c.Device.StateSource = defaultStateSource
	}
	if c.Device.StatePath, err = expandPath(strings.TrimSpace(c.Device.StatePath)); err != nil {
		return fmt.Errorf("device.state_path: %w", err)
	}
	if c.Device.OffroadPath, err = expandPath(strings.TrimSpace(c.Device.OffroadPath)); err != nil {
		return fmt.Errorf("device.offroad_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeUploader() {
	c.Uploader.ForceNetworkType = strings.ToLower(strings.TrimSpace(c.Uploader.ForceNetworkType))
	c.Uploader.MarkerBackend = strings.ToLower(strings.TrimSpace(c.Uploader.MarkerBackend))
	if c.Uploader.MarkerBackend == "" {
		c.Uploader.MarkerBackend = defaultMarkerBackend
	}
	if c.Uploader.OffroadSleepSeconds <= 0 {
		c.Uploader.OffroadSleepSeconds = defaultOffroadSleepSeconds
	}
	if c.Uploader.OnroadSleepSeconds <= 0 {
		c.Uploader.OnroadSleepSeconds = defaultOnroadSleepSeconds
	}
	if c.Uploader.BackoffBaseMillis <= 0 {
		c.Uploader.BackoffBaseMillis = defaultBackoffBaseMillis
	}
	if c.Uploader.BackoffMaxSeconds <= 0 {
		c.Uploader.BackoffMaxSeconds = defaultBackoffMaxSeconds
	}
	if c.Uploader.MaxSessionDepth <= 0 {
		c.Uploader.MaxSessionDepth = defaultMaxSessionDepth
	}
	codes := slices.Clone(c.Uploader.PermanentStatusCodes)
	slices.Sort(codes)
	c.Uploader.PermanentStatusCodes = slices.Compact(codes)
}

func (c *Config) normalizePriority() {
	c.Priority.ImmediateFolders = cleanNames(c.Priority.ImmediateFolders)
	c.Priority.ImmediateFiles = cleanNames(c.Priority.ImmediateFiles)
	c.Priority.HighFiles = cleanNames(c.Priority.HighFiles)
	c.Priority.NormalFiles = cleanNames(c.Priority.NormalFiles)
}

func (c *Config) normalizeTransport() error {
	c.Transport.Kind = strings.ToLower(strings.TrimSpace(c.Transport.Kind))
	if c.Transport.Kind == "" {
		c.Transport.Kind = defaultTransportKind
	}
	if c.Transport.TimeoutSeconds <= 0 {
		c.Transport.TimeoutSeconds = defaultTransportTimeout
	}
	c.Transport.Rsync.Binary = strings.TrimSpace(c.Transport.Rsync.Binary)
	if c.Transport.Rsync.Binary == "" {
		c.Transport.Rsync.Binary = defaultRsyncBinary
	}
	c.Transport.Rsync.Destination = strings.TrimSpace(c.Transport.Rsync.Destination)
	c.Transport.HTTP.BaseURL = strings.TrimRight(strings.TrimSpace(c.Transport.HTTP.BaseURL), "/")
	c.Transport.GCS.Bucket = strings.TrimSpace(c.Transport.GCS.Bucket)
	c.Transport.GCS.Prefix = strings.Trim(strings.TrimSpace(c.Transport.GCS.Prefix), "/")
	if c.Transport.GCS.CredentialsFile != "" {
		path, err := expandPath(strings.TrimSpace(c.Transport.GCS.CredentialsFile))
		if err != nil {
			return fmt.Errorf("transport.gcs.credentials_file: %w", err)
		}
		c.Transport.GCS.CredentialsFile = path
	}
	c.Transport.Swift.Container = strings.TrimSpace(c.Transport.Swift.Container)
	if c.Transport.Swift.ChunkSize == 0 {
		c.Transport.Swift.ChunkSize = defaultSwiftChunkSize
	}
	return nil
}

func (c *Config) normalizeLedger() error {
	if strings.TrimSpace(c.Ledger.Path) == "" {
		c.Ledger.Path = defaultLedgerPath
	}
	path, err := expandPath(strings.TrimSpace(c.Ledger.Path))
	if err != nil {
		return fmt.Errorf("ledger.path: %w", err)
	}
	c.Ledger.Path = path
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
	if c.Notifications.FailureStreak <= 0 {
		c.Notifications.FailureStreak = defaultNotifyFailureStreak
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func cleanNames(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
