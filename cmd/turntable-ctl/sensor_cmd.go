package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sampleCmd = &cobra.Command{
	Use:   "sample <period_us>",
	Short: "Inject a light sensor period sample",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		us, err := parsePeriod(args[0])
		if err != nil {
			return err
		}
		env, err := newPeriodEvent("fine_speed_sample", us)
		if err != nil {
			return err
		}
		if _, err := sendEvent(socketPath, env); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "ok")
		return nil
	},
}

var tickCmd = &cobra.Command{
	Use:   "tick [period_us]",
	Short: "Inject a hall sensor revolution tick",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var us int64
		if len(args) == 1 {
			var err error
			if us, err = parsePeriod(args[0]); err != nil {
				return err
			}
		}
		env, err := newPeriodEvent("revolution_tick", us)
		if err != nil {
			return err
		}
		if _, err := sendEvent(socketPath, env); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "ok")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print whether ball release is inhibited",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := sendEvent(socketPath, eventEnvelope{Type: "query_inhibited"})
		if err != nil {
			return err
		}
		if resp.Inhibited == nil {
			return fmt.Errorf("daemon response carries no inhibited flag")
		}
		fmt.Fprintln(cmd.OutOrStdout(), statusLine(*resp.Inhibited))
		return nil
	},
}

func statusLine(inhibited bool) string {
	if inhibited {
		return "inhibited"
	}
	return "clear"
}

func init() {
	rootCmd.AddCommand(sampleCmd, tickCmd, statusCmd)
}
