package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"helmsman/daemon"
	"helmsman/internal/config"
	"helmsman/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the helmsman daemon",
	Long: `Starts the daemon: loads the host catalog, opens the control socket
and the event stream, and begins polling connected hosts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if socketPath != "" {
			cfg.SocketPath = socketPath
		}

		log, closer, err := logger.Setup(logger.Options{
			Level:  cfg.LogLevel,
			Format: cfg.LogFormat,
			File:   cfg.LogFile,
		})
		if err != nil {
			return fmt.Errorf("setting up logging: %w", err)
		}
		if closer != nil {
			defer closer.Close()
		}

		d, err := daemon.New(cfg, log)
		if err != nil {
			return err
		}
		if err := d.Run(context.Background()); err != nil {
			log.Error("daemon exited", "error", err)
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
