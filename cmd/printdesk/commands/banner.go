package commands

import (
	"fmt"

	"github.com/caosdev/printdesk/config"
	"github.com/caosdev/printdesk/internal/version"
)

// printStartupBanner prints the user-friendly startup message
func printStartupBanner(cfg *config.Config, port int) {
	cyan := "\033[36m"
	green := "\033[32m"
	yellow := "\033[33m"
	blue := "\033[34m"
	bold := "\033[1m"
	reset := "\033[0m"

	versionInfo := version.Get()

	fmt.Printf("\n%s%s", cyan, bold)
	fmt.Printf("   ╔══════════════════════════════════════╗\n")
	fmt.Printf("   ║                                      ║\n")
	fmt.Printf("   ║   ▄▄▄▄  ▄▄▄▄  ▄▄ ▄▄  ▄▄ ▄▄▄▄▄▄      ║\n")
	fmt.Printf("   ║   ██ ██ ██ ██ ██ ███ ██   ██        ║\n")
	fmt.Printf("   ║   ████  ████  ██ ██ ███   ██        ║\n")
	fmt.Printf("   ║   ██    ██ ██ ██ ██  ██   ██  desk  ║\n")
	fmt.Printf("   ║                                      ║\n")
	fmt.Printf("   ╚══════════════════════════════════════╝%s\n\n", reset)

	fmt.Printf("%s%s┌─ printdesk Info ─────────────────────────────┐%s\n", green, bold, reset)
	fmt.Printf("%s│%s Version:  %s (commit %s)\n", green, reset, versionInfo.Version, versionInfo.Short())
	fmt.Printf("%s│%s Built:    %s\n", green, reset, versionInfo.BuildTime)
	fmt.Printf("%s│%s Console:  http://localhost:%d\n", green, reset, port)
	if cfg.Scan.Command != "" {
		fmt.Printf("%s│%s Scan:     %s\n", green, reset, cfg.Scan.Command)
	}
	fmt.Printf("%s│%s Print:    %s\n", green, reset, cfg.Print.Command)
	fmt.Printf("%s└──────────────────────────────────────────────┘%s\n", green, reset)

	fmt.Printf("\n%s%s✨ One job at a time, streamed to every open tab%s\n", yellow, bold, reset)
	fmt.Printf("%s💡 Press Ctrl+C to stop%s\n\n", blue, reset)
}
