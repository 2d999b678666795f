package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"helmsman/daemon"
	"helmsman/internal/fleet"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon health and fleet totals",
	RunE: func(cmd *cobra.Command, args []string) error {
		run("status", nil, func(data json.RawMessage) {
			var snap daemon.Snapshot
			if !decodeInto(data, &snap) {
				return
			}
			uptime := (time.Duration(snap.UptimeSeconds) * time.Second).String()
			bold.Println("helmsman daemon")
			fmt.Printf("  uptime: %s\n", uptime)
			fmt.Printf("  hosts:  %d", snap.Hosts)
			if n := snap.HostsByStatus[string(fleet.StatusConnected)]; n > 0 {
				green.Printf("  (%d connected)", n)
			}
			fmt.Println()
			if snap.DeploysRunning > 0 {
				yellow.Printf("  deploys running: %d\n", snap.DeploysRunning)
			}
			fmt.Printf("  memory: %.1f%% of %d MB\n", snap.MemoryUsedPct, snap.MemoryTotalMB)
		})
		return nil
	},
}

var logsLines int

var logsCmd = &cobra.Command{
	Use:   "logs <id>",
	Short: "Fetch recent system logs from a host",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		run("host-logs", map[string]any{"id": args[0], "lines": logsLines}, func(data json.RawMessage) {
			var lines []string
			if !decodeInto(data, &lines) {
				return
			}
			for _, line := range lines {
				fmt.Println(line)
			}
		})
		return nil
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics <id>",
	Short: "Fetch a fresh resource snapshot from a host",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		run("host-metrics", map[string]any{"id": args[0]}, func(data json.RawMessage) {
			var m fleet.Metrics
			if !decodeInto(data, &m) {
				return
			}
			fmt.Printf("cpu:    %.1f%%\n", m.CPUPercent)
			fmt.Printf("memory: %.1f%%\n", m.MemoryPercent)
			fmt.Printf("disk:   %.1f%%\n", m.DiskPercent)
			fmt.Printf("load:   %.2f %.2f %.2f\n", m.Load1, m.Load5, m.Load15)
			fmt.Printf("uptime: %s\n", (time.Duration(m.UptimeSeconds) * time.Second).String())
		})
		return nil
	},
}

func init() {
	logsCmd.Flags().IntVar(&logsLines, "lines", 0, "number of lines (default from daemon config)")
	rootCmd.AddCommand(statusCmd, logsCmd, metricsCmd)
}
