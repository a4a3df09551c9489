package main

import (
	"encoding/json"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ess-reader/ess-reader/pkg/config"
)

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		Short:   "Show or save the configuration",
		GroupID: gBasic,
	}

	cmd.AddCommand(newConfigShowCommand(), newConfigSaveCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	var (
		o           overrides
		showSecrets bool
		remote      bool
		addr        string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as JSON",
		Long: `Print the effective configuration, i.e. the config file with defaults and
command line overrides applied. Passwords and keys are hidden unless
--show-secrets is given.

With --remote, print the config a running daemon uses instead. Secrets are
always hidden then.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if remote {
				rc, err := daemonClient(addr).GetConfig(cmd.Context())
				if err != nil {
					return err
				}
				return printConfig(cmd, rc)
			}

			conf, err := loadConfig(cmd, &o)
			if err != nil {
				return err
			}

			rc, err := config.NewRawFileConfigFromConfig(conf, showSecrets)
			if err != nil {
				return err
			}
			if err := printConfig(cmd, rc); err != nil {
				return err
			}

			if err := config.ValidateDevice(conf); err != nil {
				logrus.Warn(err)
			} else if err := config.ValidateBackend(conf); err != nil {
				logrus.Warn(err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "print passwords and keys")
	cmd.Flags().BoolVar(&remote, "remote", false, "show the config of the running daemon")
	cmd.Flags().StringVar(&addr, "addr", "", "status API address of the daemon, used with --remote")
	o.addFlags(cmd)

	return cmd
}

func newConfigSaveCommand() *cobra.Command {
	var o overrides

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Write the command line overrides to the config file",
		Example: `  ess-reader config save --ip 192.168.1.50 --db-host http://localhost:8086 --db ess
  ess-reader config save --backend mqtt --mqtt-broker tcp://localhost:1883`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := loadConfig(cmd, &o)
			if err != nil {
				return err
			}

			if err := conf.Save(); err != nil {
				return pkgerrors.Wrapf(err, "failed to save config")
			}
			logrus.Infof("config saved to %s", configPath)
			return nil
		},
	}

	o.addFlags(cmd)

	return cmd
}

func printConfig(cmd *cobra.Command, rc *config.RawFileConfig) error {
	b, err := json.MarshalIndent(rc, "", "  ")
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to encode config")
	}
	cmd.Println(string(b))
	return nil
}
