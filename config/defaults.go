package config

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.allowed_origins", []string{"http://localhost", "https://localhost"})
	v.SetDefault("server.json_logs", false)

	// Print defaults - document bytes arrive on stdin ("-")
	v.SetDefault("print.command", "lp -d printdesk -")
	v.SetDefault("print.welcome", "Beginning print")

	// Scan defaults - the pipeline is site-specific, so only the trimmings
	// have defaults; scan.command must be configured explicitly
	v.SetDefault("scan.welcome", "Beginning scan")
	v.SetDefault("scan.artifact", "scan.pdf")

	// Artifact defaults
	v.SetDefault("artifact.dir", ".")
	v.SetDefault("artifact.reclaim_delay_seconds", DefaultReclaimDelaySeconds) // longer than a typical download
	v.SetDefault("artifact.route_prefix", "/artifacts/")
}
