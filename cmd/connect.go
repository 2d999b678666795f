package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"helmsman/internal/fleet"
)

var connectCmd = &cobra.Command{
	Use:   "connect <id>",
	Short: "Establish a connection to a host",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		run("connect", map[string]any{"id": args[0]}, func(data json.RawMessage) {
			var h fleet.Host
			if decodeInto(data, &h) {
				green.Printf("✓ %s connected\n", h.ID)
			}
		})
		return nil
	},
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect <id>",
	Short: "Mark a host disconnected",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		run("disconnect", map[string]any{"id": args[0]}, func(json.RawMessage) {
			green.Printf("✓ %s disconnected\n", args[0])
		})
		return nil
	},
}

var testCmd = &cobra.Command{
	Use:   "test <id>",
	Short: "Test connectivity without changing host status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		run("test-connection", map[string]any{"id": args[0]}, func(data json.RawMessage) {
			var res fleet.TestResult
			if !decodeInto(data, &res) {
				return
			}
			if res.Success {
				green.Printf("✓ reachable in %s\n", res.Latency.Round(time.Millisecond))
				if res.OS != "" {
					fmt.Printf("  os:    %s\n", res.OS)
				}
				if res.Shell != "" {
					fmt.Printf("  shell: %s\n", res.Shell)
				}
				fmt.Printf("  auth:  %s\n", res.AuthMethod)
			} else {
				red.Printf("✗ unreachable (%s): %s\n", res.Class, res.Error)
			}
		})
		return nil
	},
}

func init() {
	rootCmd.AddCommand(connectCmd, disconnectCmd, testCmd)
}
