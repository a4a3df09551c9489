package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ess-reader/ess-reader/pkg/client"
	"github.com/ess-reader/ess-reader/pkg/config"
	"github.com/ess-reader/ess-reader/pkg/errdefs"
)

var (
	logLevel   = "info"
	debug      = false
	configPath = config.DefaultPath()
)

var (
	gBasic        = "Basic:"
	gDaemon       = "Daemon:"
	gInstallation = "Installation:"
	commandGroups = []string{
		gBasic,
		gDaemon,
		gInstallation,
	}
)

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	if debug && level < logrus.DebugLevel {
		level = logrus.DebugLevel
	}
	logrus.SetLevel(level)
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.DateTime,
		})
	}

	return nil
}

func handleCmdError(err error) {
	switch {
	case errors.Is(err, client.ErrDaemonNotRunning):
		fmt.Fprintln(os.Stderr, "\nError: ess-reader daemon is not running")
		fmt.Fprintln(os.Stderr, "Is it running with --listen? Is --addr pointing at the right address?")
	case errdefs.IsConfig(err):
		fmt.Fprintf(os.Stderr, "\nCheck %s or the command line flags (see --help).\n", configPath)
	case errdefs.StageOf(err) == errdefs.StageFetch:
		fmt.Fprintln(os.Stderr, "\nThe ESS status page could not be read. Is the IP correct and the device reachable?")
	}
}

func main() {
	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		handleCmdError(err)
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ess-reader",
		Short: "ess-reader reads an ESS status page and forwards the values to a time-series backend",
		Long: `ess-reader reads battery, grid and inverter values from the status page of
an energy storage system and forwards them to InfluxDB, an MQTT broker or
Supabase, once or every 15 seconds.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return setupLogger()
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", "info", "log level (trace, debug, info, warn, error, fatal, panic)")
	globalFlags.BoolVarP(&debug, "debug", "d", false, "debug output, print every reading")
	globalFlags.StringVar(&configPath, "config", configPath, "config file path")

	for _, i := range commandGroups {
		cmd.AddGroup(&cobra.Group{
			ID:    i,
			Title: i,
		})
	}

	cmd.AddCommand(
		NewRunCommand(),
		NewConfigCommand(),
		NewLastCommand(),
		NewVersionCommand(),
		NewInstallCommand(),
		NewUninstallCommand(),
	)

	return cmd
}
