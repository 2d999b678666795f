package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile    string
	socketPath string
)

var rootCmd = &cobra.Command{
	Use:   "helmsman",
	Short: "Fleet management and remote deployment over SSH",
	Long: `Helmsman tracks a catalog of remote hosts, manages SSH credentials,
and runs multi-step deployments against them.

Run "helmsman serve" to start the daemon, then drive it with the other
commands.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.helmsman/helmsman.yaml)")
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "", "daemon control socket (default from config)")
}
