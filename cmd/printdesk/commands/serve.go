package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/caosdev/printdesk/config"
	"github.com/caosdev/printdesk/errors"
	"github.com/caosdev/printdesk/logger"
	"github.com/caosdev/printdesk/server"
)

// ServeCmd starts the printdesk web console
var ServeCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "Start the printdesk web console server",
	Long:    `Launch the printdesk server. Browsers connect to the console page, watch live output of the running print or scan job, and download scan results while they last.`,
	RunE:    runServe,
}

var (
	servePort       int
	serveConfigPath string
)

func init() {
	ServeCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (overrides config)")
	ServeCmd.Flags().StringVar(&serveConfigPath, "config", "", "Path to a printdesk.toml config file")
}

func runServe(cmd *cobra.Command, args []string) error {
	var cfg *config.Config
	var err error
	if serveConfigPath != "" {
		cfg, err = config.LoadFromFile(serveConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	if cfg.Server.JSONLogs {
		if err := logger.Initialize(true); err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}
	}
	defer logger.Cleanup()

	port := cfg.Server.Port
	if servePort != 0 {
		port = servePort
	}

	printStartupBanner(cfg, port)

	srv := server.New(cfg, logger.Logger.Named("server"))

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(port)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return errors.Wrap(err, "server failed to start")
	case <-sigChan:
		pterm.Info.Println("\nShutting down gracefully (press Ctrl+C again to force)...")

		shutdownDone := make(chan error, 1)
		go func() {
			shutdownDone <- srv.Stop()
		}()

		select {
		case err := <-shutdownDone:
			if err != nil {
				return fmt.Errorf("shutdown error: %w", err)
			}
			pterm.Success.Println("Server stopped cleanly")
			return nil
		case <-sigChan:
			pterm.Warning.Println("\nForce shutdown - exiting immediately")
			os.Exit(1)
			return nil // unreachable
		}
	}
}
