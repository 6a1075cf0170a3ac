package main

import (
	"os"

	"github.com/spf13/cobra"
)

const (
	defaultSocketPath = "/tmp/turntabled.sock"
	defaultStateURL   = "ws://127.0.0.1:3002/ws/state"
)

var (
	socketPath string
	stateURL   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "turntable-ctl",
	Short: "Inject sensor events into turntabled and inspect its release gate.",
	Long: `turntable-ctl talks to the turntabled daemon. Sensor events and gate queries ` +
		`go over the IPC socket; watch follows gate changes on the state websocket.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", defaultSocketPath, "Unix domain socket path")
	rootCmd.PersistentFlags().StringVar(&stateURL, "url", defaultStateURL, "State websocket URL")
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
