package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ess-reader/ess-reader/pkg/config"
	"github.com/ess-reader/ess-reader/pkg/daemon"
	"github.com/ess-reader/ess-reader/pkg/ess"
	"github.com/ess-reader/ess-reader/pkg/sink"
	"github.com/ess-reader/ess-reader/pkg/version"
)

func NewRunCommand() *cobra.Command {
	var (
		o         overrides
		cron      bool
		printOnly bool
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Read the ESS and forward the values",
		GroupID: gBasic,
		Long: `Read the ESS status page once and forward the reading to the configured backend.

With --cron, keep reading every 15 seconds until interrupted (SIGINT/SIGTERM).
The reading in progress is always completed before exiting. Any failed reading
or failed forward ends the program with an error.

With --print, readings are printed instead of forwarded, and no backend needs
to be configured.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := loadConfig(cmd, &o)
			if err != nil {
				return err
			}
			logrus.WithFields(conf.LogrusFields()).Debug("config loaded")

			if err := config.ValidateDevice(conf); err != nil {
				return err
			}

			var console []sink.Sink
			if printOnly || debug {
				console = append(console, &consoleSink{w: cmd.OutOrStdout(), asJSON: asJSON})
			}

			// In print mode nothing is forwarded.
			var backend sink.Sink
			if printOnly {
				backend = sink.Multi{}
			}

			if cron {
				logrus.WithFields(logrus.Fields{
					"version": version.Version,
					"commit":  version.GitCommit,
				}).Info("ess-reader starting")
				return daemon.Run(cmd.Context(), daemon.Options{
					Config:  conf,
					Sink:    backend,
					Console: console,
					Listen:  conf.Listen(),
				})
			}

			if backend == nil {
				backend, err = sink.New(conf)
				if err != nil {
					return err
				}
				defer func() {
					if err := sink.Close(backend); err != nil {
						logrus.Warnf("failed to close backend: %v", err)
					}
				}()
			}

			p := &daemon.Poller{
				Assembler: ess.NewAssembler(ess.NewFetcher(conf.IP(), conf.Port())),
				Sink:      append(sink.Multi(console), backend),
			}
			return p.Once(cmd.Context())
		},
	}

	f := cmd.Flags()
	f.BoolVar(&cron, "cron", false, "keep reading every 15 seconds")
	f.BoolVar(&printOnly, "print", false, "print readings instead of forwarding them")
	f.BoolVar(&asJSON, "json", false, "print readings as JSON")
	o.addFlags(cmd)

	return cmd
}
