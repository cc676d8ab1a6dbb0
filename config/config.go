// Package config loads the printdesk configuration: a TOML file
// (printdesk.toml) merged with PRINTDESK_* environment variables.
package config

import (
	"time"

	"github.com/kballard/go-shellquote"

	"github.com/caosdev/printdesk/errors"
)

// Config represents the printdesk configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Print    PrintConfig    `mapstructure:"print"`
	Scan     ScanConfig     `mapstructure:"scan"`
	Artifact ArtifactConfig `mapstructure:"artifact"`
}

// ServerConfig configures the printdesk web server
type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	JSONLogs       bool     `mapstructure:"json_logs"`
}

// DefaultServerPort is used when no port is configured.
const DefaultServerPort = 8742

// DefaultReclaimDelaySeconds is how long artifacts survive when no reclaim
// delay is configured.
const DefaultReclaimDelaySeconds = 30

// PrintConfig configures the print job. Command is a single shell-quoted
// string; the uploaded document is fed to the command's stdin.
type PrintConfig struct {
	Command string `mapstructure:"command"` // e.g. `lp -d office_printer -`
	Welcome string `mapstructure:"welcome"` // console announcement before the run
}

// ScanConfig configures the scan job.
type ScanConfig struct {
	Command string `mapstructure:"command"` // shell-quoted scanner pipeline
	Welcome string `mapstructure:"welcome"`
	// Artifact is the file name the scan pipeline is expected to produce,
	// relative to the artifact directory. Empty disables the artifact step.
	Artifact string `mapstructure:"artifact"`
}

// ArtifactConfig configures result artifact handling
type ArtifactConfig struct {
	// Dir is the directory scanned artifacts land in and downloads are
	// served from.
	Dir string `mapstructure:"dir"`
	// ReclaimDelaySeconds is how long an announced artifact survives
	// before deletion. Must comfortably exceed typical download time.
	ReclaimDelaySeconds int `mapstructure:"reclaim_delay_seconds"`
	// RoutePrefix is the URL path prefix artifacts are served under.
	RoutePrefix string `mapstructure:"route_prefix"`
}

// ReclaimDelay returns the artifact reclaim delay as a duration. A
// non-positive configured value falls back to the default.
func (c *Config) ReclaimDelay() time.Duration {
	if c.Artifact.ReclaimDelaySeconds <= 0 {
		return DefaultReclaimDelaySeconds * time.Second
	}
	return time.Duration(c.Artifact.ReclaimDelaySeconds) * time.Second
}

// PrintCommand returns the configured print command as argv.
func (c *Config) PrintCommand() ([]string, error) {
	return splitCommand(c.Print.Command, "print.command")
}

// ScanCommand returns the configured scan command as argv.
func (c *Config) ScanCommand() ([]string, error) {
	return splitCommand(c.Scan.Command, "scan.command")
}

// splitCommand parses a shell-quoted command string into argv.
func splitCommand(command, key string) ([]string, error) {
	if command == "" {
		return nil, errors.Newf("%s is not configured", key)
	}
	argv, err := shellquote.Split(command)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid %s", key)
	}
	if len(argv) == 0 {
		return nil, errors.Newf("%s is empty after parsing", key)
	}
	return argv, nil
}
