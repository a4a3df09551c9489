package main

import (
	"fmt"
	"os"
	"path/filepath"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ess-reader/ess-reader/pkg/config"
	daemonutils "github.com/ess-reader/ess-reader/pkg/utils/daemon"
)

// NewInstallCommand .
func NewInstallCommand() *cobra.Command {
	var o overrides

	cmd := &cobra.Command{
		Use:     "install",
		Short:   "Install ess-reader as a systemd service",
		GroupID: gInstallation,
		Long: `Install a systemd service running "ess-reader run --cron".

The command line overrides are saved to the config file first, and the service
reads that file. You must run this command as root.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := loadConfig(cmd, &o)
			if err != nil {
				return err
			}
			if err := config.ValidateDevice(conf); err != nil {
				return err
			}
			if err := config.ValidateBackend(conf); err != nil {
				return err
			}

			err = conf.Save()
			if err != nil {
				return pkgerrors.Wrapf(err, "failed to save config")
			}

			absConfig, err := filepath.Abs(configPath)
			if err != nil {
				return err
			}

			err = daemonutils.Install([]string{"run", "--cron", "--config", absConfig, "--log-level", logLevel})
			if err != nil {
				// check if current user is root
				if os.Geteuid() != 0 {
					logrus.Errorf("you must run this command as root")
				}
				return fmt.Errorf("failed to install service: %w", err)
			}

			logrus.Infof("installation succeeded")

			exePath, _ := os.Executable()
			cmd.Printf("systemd will use the current binary (%s) so please make sure you do not move it. Once it is moved or deleted, you will need to run `ess-reader install' again.\n", exePath)

			return nil
		},
	}

	o.addFlags(cmd)

	return cmd
}

// NewUninstallCommand .
func NewUninstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "uninstall",
		Short:   "Stop and remove the systemd service",
		GroupID: gInstallation,
		Long: `Stop the systemd service and remove its unit file. The config file is kept.

You must run this command as root.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := daemonutils.Uninstall(); err != nil {
				return fmt.Errorf("failed to uninstall service: %w", err)
			}
			logrus.Infof("uninstallation succeeded")
			return nil
		},
	}
}
