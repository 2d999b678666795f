// Package daemon wires the fleet core behind its control boundary: a unix
// socket carrying named commands with a uniform response envelope, plus a
// websocket event stream for change notifications.
package daemon

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"helmsman/internal/config"
	"helmsman/internal/fleet"
	"helmsman/internal/keys"
	"helmsman/internal/sshexec"
	"helmsman/internal/store"
)

// Daemon owns every long-lived component.
type Daemon struct {
	cfg      *config.Config
	log      *slog.Logger
	registry *fleet.Registry
	poller   *fleet.Poller
	server   *SocketServer
	stream   *EventStream
}

// New assembles the daemon from configuration: persistence, secrets, the
// registry and its components, the poller, and the two listeners.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	fileStore := store.NewFileStore(cfg.StateFile)
	state, err := fileStore.Load()
	if err != nil {
		return nil, err
	}

	registry := fleet.NewRegistry(fleet.Config{
		Runner:  sshexec.New(),
		Secrets: store.NewKeyringSecrets(),
		Save: func(hosts []*fleet.Host) error {
			return fileStore.Save(store.State{Hosts: hosts})
		},
		Logger:         logger,
		ConnectTimeout: cfg.ConnectTimeout,
		CommandTimeout: cfg.CommandTimeout,
		DeployTimeout:  cfg.DeployTimeout,
	})
	registry.Restore(state.Hosts)

	keyManager, err := keys.NewManager(cfg.KeyDir)
	if err != nil {
		return nil, err
	}

	handler := NewHandler(registry, keyManager, NewHealth(), logger)
	return &Daemon{
		cfg:      cfg,
		log:      logger.With("component", "daemon"),
		registry: registry,
		poller:   fleet.NewPoller(registry, cfg.PollInterval, cfg.PollLogLines, logger),
		server:   NewSocketServer(cfg.SocketPath, handler, cfg.DeployTimeout, logger),
		stream:   NewEventStream(cfg.SocketPath+".events", registry, logger),
	}, nil
}

// Run serves until SIGINT/SIGTERM or ctx cancellation.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.server.Start(); err != nil {
		return err
	}
	if err := d.stream.Start(); err != nil {
		d.server.Close()
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go d.poller.Run(ctx)
	go d.server.Serve(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sig:
		d.log.Info("shutting down", "signal", s.String())
	case <-ctx.Done():
	}

	cancel()
	d.stream.Close()
	return d.server.Close()
}
