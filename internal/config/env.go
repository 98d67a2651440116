package config

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "COURIER"

// envOverrides lists the COURIER_* variables that win over the config file.
// Pointer fields stay nil when the variable is unset.
type envOverrides struct {
	RootDir          *string `split_words:"true"`
	DeviceID         *string `split_words:"true"`
	AllowSleep       *bool   `split_words:"true"`
	ForceNetworkType *string `split_words:"true"`
	SimulateUpload   *bool   `split_words:"true"`
	TransportKind    *string `split_words:"true"`
	NtfyTopic        *string `split_words:"true"`
	LogLevel         *string `split_words:"true"`
}

// legacyOverrides are the switches older device images export. Presence is
// what matters for FORCEWIFI and FAKEUPLOAD; UPLOADER_SLEEP disables sleeping
// only when set to an empty string.
type legacyOverrides struct {
	UploaderSleep *string `envconfig:"UPLOADER_SLEEP"`
	ForceWifi     *string `envconfig:"FORCEWIFI"`
	FakeUpload    *string `envconfig:"FAKEUPLOAD"`
}

func (c *Config) applyEnv() error {
	var legacy legacyOverrides
	if err := envconfig.Process("", &legacy); err != nil {
		return fmt.Errorf("legacy environment: %w", err)
	}
	if legacy.UploaderSleep != nil {
		c.Uploader.AllowSleep = *legacy.UploaderSleep != ""
	}
	if legacy.ForceWifi != nil {
		c.Uploader.ForceNetworkType = "wifi"
	}
	if legacy.FakeUpload != nil {
		c.Uploader.SimulateUpload = true
	}

	var env envOverrides
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	if env.RootDir != nil {
		c.Paths.RootDir = *env.RootDir
	}
	if env.DeviceID != nil {
		c.Device.ID = *env.DeviceID
	}
	if env.AllowSleep != nil {
		c.Uploader.AllowSleep = *env.AllowSleep
	}
	if env.ForceNetworkType != nil {
		c.Uploader.ForceNetworkType = *env.ForceNetworkType
	}
	if env.SimulateUpload != nil {
		c.Uploader.SimulateUpload = *env.SimulateUpload
	}
	if env.TransportKind != nil {
		c.Transport.Kind = *env.TransportKind
	}
	if env.NtfyTopic != nil {
		c.Notifications.NtfyTopic = *env.NtfyTopic
	}
	if env.LogLevel != nil {
		c.Logging.Level = strings.TrimSpace(*env.LogLevel)
	}
	return nil
}

// EnvUsage lists the supported COURIER_* override keys for CLI help output.
func EnvUsage() []string {
	var env envOverrides
	var buf bytes.Buffer
	if err := envconfig.Usagef(envPrefix, &env, &buf, envKeysFormat); err != nil {
		return nil
	}
	return strings.Fields(buf.String())
}

const envKeysFormat = "{{range .}}{{.Key}}\n{{end}}"
