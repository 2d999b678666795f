package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"helmsman/internal/keys"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage SSH keys",
}

var (
	keyGenAlgo string
	keyGenBits int
)

var keyGenerateCmd = &cobra.Command{
	Use:   "generate <name>",
	Short: "Generate a new SSH keypair",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		run("generate-key", map[string]any{
			"name":      args[0],
			"algorithm": keyGenAlgo,
			"bits":      keyGenBits,
		}, func(data json.RawMessage) {
			var rec keys.Record
			if decodeInto(data, &rec) {
				green.Printf("✓ generated key %s\n", rec.Name)
				fmt.Printf("  fingerprint: %s\n", rec.Fingerprint)
			}
		})
		return nil
	},
}

var keyImportCmd = &cobra.Command{
	Use:   "import <name> <path>",
	Short: "Import an existing private key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		run("import-key", map[string]any{"name": args[0], "path": args[1]}, func(data json.RawMessage) {
			var rec keys.Record
			if decodeInto(data, &rec) {
				green.Printf("✓ imported key %s\n", rec.Name)
				fmt.Printf("  fingerprint: %s\n", rec.Fingerprint)
			}
		})
		return nil
	},
}

var keyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List managed keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		run("list-keys", nil, func(data json.RawMessage) {
			var recs []keys.Record
			if !decodeInto(data, &recs) || len(recs) == 0 {
				fmt.Println("no keys")
				return
			}
			bold.Printf("%-24s %-10s %s\n", "NAME", "ORIGIN", "FINGERPRINT")
			for _, rec := range recs {
				fmt.Printf("%-24s %-10s %s\n", rec.Name, rec.Origin, rec.Fingerprint)
			}
		})
		return nil
	},
}

var keyDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a managed key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		run("delete-key", map[string]any{"name": args[0]}, func(json.RawMessage) {
			green.Printf("✓ key %s deleted\n", args[0])
		})
		return nil
	},
}

func init() {
	keyGenerateCmd.Flags().StringVar(&keyGenAlgo, "algo", "ed25519", "key algorithm (ed25519 or rsa)")
	keyGenerateCmd.Flags().IntVar(&keyGenBits, "bits", 0, "RSA key size (default 4096)")

	keyCmd.AddCommand(keyGenerateCmd, keyImportCmd, keyListCmd, keyDeleteCmd)
	rootCmd.AddCommand(keyCmd)
}
