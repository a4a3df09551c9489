package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ess-reader/ess-reader/pkg/client"
	"github.com/ess-reader/ess-reader/pkg/config"
	"github.com/ess-reader/ess-reader/pkg/daemon"
	"github.com/ess-reader/ess-reader/pkg/events"
	"github.com/ess-reader/ess-reader/pkg/types"
	"github.com/ess-reader/ess-reader/pkg/version"
)

func NewLastCommand() *cobra.Command {
	var (
		addr   string
		asJSON bool
		follow bool
	)

	cmd := &cobra.Command{
		Use:     "last",
		Short:   "Show the last reading of a running daemon",
		GroupID: gDaemon,
		Long: `Show the last reading forwarded by a daemon started with "run --cron --listen".

The address defaults to the listen address in the config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api := daemonClient(addr)
			ctx := cmd.Context()

			if v, err := api.GetVersion(ctx); err == nil && v.Version != version.Version {
				logrus.WithFields(logrus.Fields{
					"clientVersion": version.Version,
					"daemonVersion": v.Version,
				}).Warn("version mismatch between client and daemon")
			}

			out := &consoleSink{w: cmd.OutOrStdout(), asJSON: asJSON}

			r, err := api.GetReading(ctx)
			switch {
			case err == nil:
				if err := out.Send(ctx, r); err != nil {
					return err
				}
			case follow:
				logrus.Debugf("no reading yet: %v", err)
			default:
				return fmt.Errorf("failed to get the last reading: %w", err)
			}

			if h, err := api.GetHealth(ctx); err == nil && !asJSON {
				cmd.Printf("\nPoll loop healthy: %s (%d recent cycles, %d in a row)\n",
					bool2Text(h.Status == daemon.HealthOK), h.Cycles, h.Streak)
			}

			if !follow {
				return nil
			}

			evs, err := api.SubscribeEvents(ctx)
			if err != nil {
				return err
			}
			for ev := range evs {
				if ev.Name != events.Reading {
					logrus.WithField("event", ev.Name).Warn(string(ev.Data))
					continue
				}
				r, err := events.DecodeAs[types.Reading](ev)
				if err != nil {
					logrus.Errorf("failed to decode reading: %v", err)
					continue
				}
				cmd.Println()
				if err := out.Send(ctx, r); err != nil {
					return err
				}
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&addr, "addr", "", fmt.Sprintf("status API address of the daemon (default %s)", client.DefaultAddr))
	f.BoolVar(&asJSON, "json", false, "print as JSON")
	f.BoolVarP(&follow, "follow", "f", false, "keep printing new readings")

	return cmd
}

// daemonClient returns a client for the status API at addr, falling back to
// the listen address of the config file.
func daemonClient(addr string) *client.Client {
	if addr == "" {
		if conf, err := config.NewFile(configPath); err == nil {
			addr = conf.Listen()
		}
	}
	return client.NewClient(addr)
}
