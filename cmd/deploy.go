package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"helmsman/internal/fleet"
)

var (
	deployRepoPath string
	deployRepoURL  string
	deployBranch   string
	deployBuild    string
	deployPre      string
	deployPost     string
)

var deployCmd = &cobra.Command{
	Use:   "deploy <id>",
	Short: "Run a deployment against a host",
	Long: `Runs the deployment sequence on the target host: pre-deploy command,
source sync (git fetch or clone), build command, post-deploy command.
The command blocks until the run resolves and prints the transcript.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		yellow.Printf("deploying to %s...\n", args[0])
		run("direct-deploy", map[string]any{
			"id":            args[0],
			"repo_path":     deployRepoPath,
			"repo_url":      deployRepoURL,
			"branch":        deployBranch,
			"build_command": deployBuild,
			"pre_deploy":    deployPre,
			"post_deploy":   deployPost,
		}, printDeployResult)
		return nil
	},
}

func printDeployResult(data json.RawMessage) {
	var res fleet.DeployResult
	if !decodeInto(data, &res) {
		return
	}
	if res.Transcript != "" {
		fmt.Println(res.Transcript)
	}
	elapsed := res.FinishedAt.Sub(res.StartedAt).Round(time.Second)
	if res.Success {
		green.Printf("✓ deploy succeeded in %s\n", elapsed)
	} else {
		red.Printf("✗ deploy failed after %s: %s\n", elapsed, res.Error)
	}
}

var deployStatusCmd = &cobra.Command{
	Use:   "deploy-status <id>",
	Short: "Show a host's deployment state and last result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		run("deploy-status", map[string]any{"id": args[0]}, func(data json.RawMessage) {
			var payload struct {
				State      fleet.DeployState   `json:"state"`
				LastDeploy *fleet.DeployResult `json:"last_deploy"`
			}
			if !decodeInto(data, &payload) {
				return
			}
			fmt.Printf("state: %s\n", payload.State)
			if payload.LastDeploy != nil {
				d := payload.LastDeploy
				verdict := green.Sprint("succeeded")
				if !d.Success {
					verdict = red.Sprint("failed")
				}
				fmt.Printf("last run: %s, finished %s\n", verdict, d.FinishedAt.Format(time.RFC3339))
				if d.Error != "" {
					fmt.Printf("error: %s\n", d.Error)
				}
			}
		})
		return nil
	},
}

func init() {
	deployCmd.Flags().StringVar(&deployRepoPath, "path", "", "deployment directory on the host (required)")
	deployCmd.Flags().StringVar(&deployRepoURL, "repo", "", "git URL to clone when the directory has no checkout")
	deployCmd.Flags().StringVar(&deployBranch, "branch", "", "branch to deploy (default main)")
	deployCmd.Flags().StringVar(&deployBuild, "build", "", "build command to run after sync")
	deployCmd.Flags().StringVar(&deployPre, "pre", "", "command to run before sync")
	deployCmd.Flags().StringVar(&deployPost, "post", "", "command to run after build")
	deployCmd.MarkFlagRequired("path")

	rootCmd.AddCommand(deployCmd, deployStatusCmd)
}
