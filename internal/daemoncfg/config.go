// Package daemoncfg loads the outer AFD daemon configuration: workdir
// layout, tick intervals, and defaults that are not per-directory options.
// This is the ambient configuration layer sitting on top of the
// bespoke per-directory option blocks handled by internal/dirconfig.
package daemoncfg

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// Config is the root of afd.toml.
type Config struct {
	// WorkDir is the root directory holding log/, files/, fifodir/, etc.
	WorkDir string `toml:"work_dir"`

	// FifoDirName is the subdirectory of WorkDir holding the control
	// channel FIFOs.
	FifoDirName string `toml:"fifo_dir"`

	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string `toml:"log_level"`

	// StatTickSeconds is STAT_RESCAN_TIME, the statistics sampler's
	// cadence.
	StatTickSeconds int `toml:"stat_tick_seconds"`

	// ScanTickSeconds drives the directory scanner's poll cadence.
	ScanTickSeconds int `toml:"scan_tick_seconds"`

	// SweepTickSeconds drives the old-file sweeper's coarse cadence.
	SweepTickSeconds int `toml:"sweep_tick_seconds"`

	// TimeJobFairnessCap is MAX_FILES_FOR_TIME_JOBS, the ceiling on how
	// many files a single time-job dispatch round may claim before
	// yielding to other pending work. Configurable with default 800.
	TimeJobFairnessCap int `toml:"time_job_fairness_cap"`

	// DiskFullRescanSeconds is DISK_FULL_RESCAN_TIME.
	DiskFullRescanSeconds int `toml:"disk_full_rescan_seconds"`

	// JobTimeoutSeconds bounds how long the control channel waits for an
	// ACK.
	JobTimeoutSeconds int `toml:"job_timeout_seconds"`

	// PermissionsFile names the users file gating the CLI surface.
	PermissionsFile string `toml:"permissions_file"`
}

// Default returns the built-in defaults, applied before a file is merged
// in, so a partial afd.toml only needs to override what it cares about.
func Default() Config {
	return Config{
		WorkDir:               ".",
		FifoDirName:           "fifodir",
		LogLevel:              "info",
		StatTickSeconds:       5,
		ScanTickSeconds:       1,
		SweepTickSeconds:      300,
		TimeJobFairnessCap:    800,
		DiskFullRescanSeconds: 30,
		JobTimeoutSeconds:     30,
		PermissionsFile:       "etc/afd.users",
	}
}

// Load reads path (TOML) over the defaults. A missing file is not an
// error — the defaults are returned as-is, the same "absence is not
// fatal" posture the per-directory option loader uses.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, errors.Wrapf(err, "reading daemon config %q", path)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parsing daemon config %q", path)
	}
	return cfg, nil
}

// FifoDir returns <workdir>/<fifo_dir>, the control-channel fifo
// directory (relative when WorkDir is relative).
func (c Config) FifoDir() string { return filepath.Join(c.WorkDir, c.FifoDirName) }

// LogDir returns <workdir>/log.
func (c Config) LogDir() string { return filepath.Join(c.WorkDir, "log") }

// FiltersDir returns <workdir>/files/incoming/filters.
func (c Config) FiltersDir() string {
	return filepath.Join(c.WorkDir, "files", "incoming", "filters")
}

// EtcDir returns <workdir>/etc.
func (c Config) EtcDir() string { return filepath.Join(c.WorkDir, "etc") }

// BlockFile returns <workdir>/etc/BLOCK_FILE.
func (c Config) BlockFile() string { return filepath.Join(c.EtcDir(), "BLOCK_FILE") }

// ActiveFile returns <fifodir>/afd_active.
func (c Config) ActiveFile() string { return filepath.Join(c.FifoDir(), "afd_active") }

// StatTick returns StatTickSeconds as a time.Duration.
func (c Config) StatTick() time.Duration { return time.Duration(c.StatTickSeconds) * time.Second }

// ScanTick returns ScanTickSeconds as a time.Duration.
func (c Config) ScanTick() time.Duration { return time.Duration(c.ScanTickSeconds) * time.Second }

// SweepTick returns SweepTickSeconds as a time.Duration.
func (c Config) SweepTick() time.Duration {
	return time.Duration(c.SweepTickSeconds) * time.Second
}

// DiskFullRescan returns DiskFullRescanSeconds as a time.Duration.
func (c Config) DiskFullRescan() time.Duration {
	return time.Duration(c.DiskFullRescanSeconds) * time.Second
}

// JobTimeout returns JobTimeoutSeconds as a time.Duration.
func (c Config) JobTimeout() time.Duration {
	return time.Duration(c.JobTimeoutSeconds) * time.Second
}
