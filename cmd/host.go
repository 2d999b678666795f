package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"helmsman/internal/fleet"
)

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Manage the host catalog",
}

var (
	hostAddName    string
	hostAddAddress string
	hostAddPort    int
	hostAddUser    string
	hostAddKeyPath string
	hostAddPrompt  bool
	hostAddTags    []string
)

var hostAddCmd = &cobra.Command{
	Use:   "add <id>",
	Short: "Register a host",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password := ""
		if hostAddPrompt {
			fmt.Fprint(os.Stderr, "SSH password: ")
			raw, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return fmt.Errorf("reading password: %w", err)
			}
			password = string(raw)
		}
		run("add-host", map[string]any{
			"id":       args[0],
			"name":     hostAddName,
			"address":  hostAddAddress,
			"port":     hostAddPort,
			"username": hostAddUser,
			"password": password,
			"key_path": hostAddKeyPath,
			"tags":     hostAddTags,
		}, func(data json.RawMessage) {
			var host fleet.Host
			if decodeInto(data, &host) {
				green.Printf("✓ host %s registered (%s@%s)\n", host.ID, host.Username, host.Addr())
			}
		})
		return nil
	},
}

var hostListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered hosts",
	RunE: func(cmd *cobra.Command, args []string) error {
		run("list-hosts", nil, func(data json.RawMessage) {
			var hosts []fleet.Host
			if !decodeInto(data, &hosts) || len(hosts) == 0 {
				fmt.Println("no hosts registered")
				return
			}
			bold.Printf("%-16s %-24s %-12s %-10s %s\n", "ID", "ADDRESS", "STATUS", "DEPLOY", "TAGS")
			for _, h := range hosts {
				statusLine(h)
			}
		})
		return nil
	},
}

func statusLine(h fleet.Host) {
	status := string(h.Status)
	switch h.Status {
	case fleet.StatusConnected:
		status = green.Sprint(status)
	case fleet.StatusError:
		status = red.Sprint(status)
	case fleet.StatusConnecting:
		status = yellow.Sprint(status)
	}
	fmt.Printf("%-16s %-24s %-21s %-10s %s\n", h.ID, h.Addr(), status, h.Deploy, strings.Join(h.Tags, ","))
}

var hostShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one host in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		run("get-host", map[string]any{"id": args[0]}, func(data json.RawMessage) {
			var h fleet.Host
			if !decodeInto(data, &h) {
				return
			}
			bold.Printf("%s (%s)\n", h.ID, h.Name)
			fmt.Printf("  address:  %s\n", h.Addr())
			fmt.Printf("  username: %s\n", h.Username)
			fmt.Printf("  auth:     %s\n", h.Cred.Method)
			fmt.Printf("  status:   %s\n", h.Status)
			if len(h.Tags) > 0 {
				fmt.Printf("  tags:     %s\n", strings.Join(h.Tags, ", "))
			}
			if !h.LastConnected.IsZero() {
				fmt.Printf("  last connected: %s\n", h.LastConnected.Format(time.RFC3339))
			}
			if h.LastError != "" {
				red.Printf("  last error: %s\n", h.LastError)
			}
			if h.Metrics != nil {
				m := h.Metrics
				fmt.Printf("  cpu %.1f%%  mem %.1f%%  disk %.1f%%  load %.2f/%.2f/%.2f\n",
					m.CPUPercent, m.MemoryPercent, m.DiskPercent, m.Load1, m.Load5, m.Load15)
			}
			if h.LastDeploy != nil {
				d := h.LastDeploy
				verdict := green.Sprint("succeeded")
				if !d.Success {
					verdict = red.Sprint("failed")
				}
				fmt.Printf("  last deploy: %s at %s\n", verdict, d.FinishedAt.Format(time.RFC3339))
			}
			for _, c := range h.PathCandidates {
				fmt.Printf("  path candidate: %s (%s)\n", c.Path, c.Confidence)
			}
		})
		return nil
	},
}

var hostRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a host and purge its cached state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		run("remove-host", map[string]any{"id": args[0]}, func(json.RawMessage) {
			green.Printf("✓ host %s removed\n", args[0])
		})
		return nil
	},
}

var hostTagCmd = &cobra.Command{
	Use:   "tag <id> <tag>...",
	Short: "Replace a host's tags",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		run("set-tags", map[string]any{"id": args[0], "tags": args[1:]}, func(json.RawMessage) {
			green.Printf("✓ tags updated for %s\n", args[0])
		})
		return nil
	},
}

func init() {
	hostAddCmd.Flags().StringVar(&hostAddName, "name", "", "display name (defaults to the id)")
	hostAddCmd.Flags().StringVar(&hostAddAddress, "address", "", "hostname or IP (required)")
	hostAddCmd.Flags().IntVar(&hostAddPort, "port", 22, "SSH port")
	hostAddCmd.Flags().StringVar(&hostAddUser, "user", "", "SSH username (required)")
	hostAddCmd.Flags().StringVar(&hostAddKeyPath, "key", "", "path to an SSH private key")
	hostAddCmd.Flags().BoolVar(&hostAddPrompt, "password", false, "prompt for an SSH password")
	hostAddCmd.Flags().StringSliceVar(&hostAddTags, "tag", nil, "tag (repeatable)")
	hostAddCmd.MarkFlagRequired("address")
	hostAddCmd.MarkFlagRequired("user")

	hostCmd.AddCommand(hostAddCmd, hostListCmd, hostShowCmd, hostRemoveCmd, hostTagCmd)
	rootCmd.AddCommand(hostCmd)
}
