package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"helmsman/internal/fleet"
	"helmsman/internal/remote"
)

var detectPathsCmd = &cobra.Command{
	Use:   "detect-paths <id>",
	Short: "Probe a host for plausible deployment directories",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		run("detect-deploy-paths", map[string]any{"id": args[0]}, func(data json.RawMessage) {
			var cands []fleet.PathCandidate
			if !decodeInto(data, &cands) || len(cands) == 0 {
				fmt.Println("no candidates found")
				return
			}
			for _, c := range cands {
				marker := yellow.Sprint("·")
				if c.Confidence == fleet.ConfidenceExistingRepo {
					marker = green.Sprint("✓")
				}
				fmt.Printf("%s %-32s %-20s %s\n", marker, c.Path, c.Confidence, c.Reason)
			}
		})
		return nil
	},
}

var (
	permOwner     string
	permGroup     string
	permMode      string
	permRecursive bool
)

var permissionsCmd = &cobra.Command{
	Use:   "permissions <id> <path>",
	Short: "Apply ownership and mode on a remote path",
	Long: `Applies chown and chmod steps on the remote path in order, stopping at
the first failure. Steps already applied stay applied; the output names
the step that failed.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		run("setup-permissions", map[string]any{
			"id":        args[0],
			"path":      args[1],
			"owner":     permOwner,
			"group":     permGroup,
			"mode":      permMode,
			"recursive": permRecursive,
		}, func(data json.RawMessage) {
			var res remote.PermResult
			if !decodeInto(data, &res) {
				return
			}
			for _, step := range res.Applied {
				green.Printf("✓ %s\n", step)
			}
			if res.FailedStep != "" {
				red.Printf("✗ %s\n", res.FailedStep)
				if res.Stderr != "" {
					fmt.Fprintln(os.Stderr, res.Stderr)
				}
			}
		})
		return nil
	},
}

var hookFiles []string

var createHooksCmd = &cobra.Command{
	Use:   "create-hooks <id> <repo-path>",
	Short: "Install git hooks into a remote repository",
	Long: `Installs each --hook file as <repo-path>/.git/hooks/<name>, where name
is the file's base name. Hooks install independently: one failure does
not stop the others.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(hookFiles) == 0 {
			return fmt.Errorf("at least one --hook file is required")
		}
		hooks := make([]map[string]string, 0, len(hookFiles))
		for _, file := range hookFiles {
			content, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading hook %s: %w", file, err)
			}
			hooks = append(hooks, map[string]string{
				"name":    filepath.Base(file),
				"content": string(content),
			})
		}
		run("create-git-hooks", map[string]any{
			"id":        args[0],
			"repo_path": args[1],
			"hooks":     hooks,
		}, func(data json.RawMessage) {
			var outcomes []remote.HookOutcome
			if !decodeInto(data, &outcomes) {
				return
			}
			failed := 0
			for _, o := range outcomes {
				if o.Installed {
					green.Printf("✓ %s\n", o.Name)
				} else {
					red.Printf("✗ %s: %s\n", o.Name, o.Error)
					failed++
				}
			}
			if failed > 0 {
				os.Exit(1)
			}
		})
		return nil
	},
}

func init() {
	permissionsCmd.Flags().StringVar(&permOwner, "owner", "", "owner to chown to")
	permissionsCmd.Flags().StringVar(&permGroup, "group", "", "group to chown to (with --owner)")
	permissionsCmd.Flags().StringVar(&permMode, "mode", "", "octal mode to chmod to")
	permissionsCmd.Flags().BoolVar(&permRecursive, "recursive", false, "apply recursively")

	createHooksCmd.Flags().StringSliceVar(&hookFiles, "hook", nil, "hook script file, named after the hook (repeatable)")

	rootCmd.AddCommand(detectPathsCmd, permissionsCmd, createHooksCmd)
}
