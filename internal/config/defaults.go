package config

import "github.com/c2h5oh/datasize"

const (
	defaultConfigPath          = "~/.config/courier/config.toml"
	defaultRootDir             = "/data/media/0/realdata"
	defaultStateDir            = "~/.local/state/courier"
	defaultLogDir              = "~/.local/share/courier/logs"
	defaultDeviceIDPath        = "/data/params/d/DongleId"
	defaultDeviceStatePath     = "/run/courier/device_state.json"
	defaultOffroadPath         = "/data/params/d/IsOffroad"
	defaultStateSource         = "file"
	defaultOffroadSleepSeconds = 60
	defaultOnroadSleepSeconds  = 5
	defaultBackoffBaseMillis   = 100
	defaultBackoffMaxSeconds   = 120
	defaultMarkerBackend       = "xattr"
	defaultMaxSessionDepth     = 2
	defaultTransportKind       = "rsync"
	defaultTransportTimeout    = 300
	defaultRsyncBinary         = "rsync"
	defaultSwiftChunkSize      = 512 * datasize.MB
	defaultLedgerPath          = "~/.local/state/courier/ledger.db"
	defaultNotifyTimeout       = 10
	defaultNotifyFailureStreak = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultLogRetentionDays    = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			RootDir:  defaultRootDir,
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Device: Device{
			IDPath:      defaultDeviceIDPath,
			StateSource: defaultStateSource,
			StatePath:   defaultDeviceStatePath,
			OffroadPath: defaultOffroadPath,
		},
		Uploader: Uploader{
			AllowSleep:            true,
			AllowFullFidelity:     true,
			FullFidelityOnMetered: true,
			OffroadSleepSeconds:   defaultOffroadSleepSeconds,
			OnroadSleepSeconds:    defaultOnroadSleepSeconds,
			BackoffBaseMillis:     defaultBackoffBaseMillis,
			BackoffMaxSeconds:     defaultBackoffMaxSeconds,
			PermanentStatusCodes:  []int{401, 403, 412},
			MarkerBackend:         defaultMarkerBackend,
			ClearLocksOnStart:     true,
			MaxSessionDepth:       defaultMaxSessionDepth,
			CPUAffinity:           []int{0, 1, 2, 3},
			WatchNetwork:          true,
		},
		Priority: Priority{
			ImmediateFolders: []string{"crash/", "boot/"},
			ImmediateFiles:   []string{"qlog", "qcamera.ts"},
			HighFiles:        []string{"rlog"},
			NormalFiles:      []string{"fcamera.hevc", "dcamera.hevc", "ecamera.hevc"},
		},
		Transport: Transport{
			Kind:           defaultTransportKind,
			TimeoutSeconds: defaultTransportTimeout,
			Rsync:          Rsync{Binary: defaultRsyncBinary},
			Swift:          Swift{ChunkSize: defaultSwiftChunkSize},
		},
		Ledger: Ledger{
			Enabled: true,
			Path:    defaultLedgerPath,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			FailureStreak:  defaultNotifyFailureStreak,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
