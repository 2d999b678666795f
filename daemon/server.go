package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"
)

// connDeadline bounds one command round trip on the control socket. Long
// operations (deployments) get their own budget: the deadline is extended
// while a command is executing.
const connDeadline = 30 * time.Second

// SocketServer accepts control-boundary connections on a unix socket. One
// JSON command per connection, one envelope back.
type SocketServer struct {
	socketPath string
	handler    *Handler
	limiter    *rate.Limiter
	listener   net.Listener
	log        *slog.Logger

	// commandBudget is how long a single command may run before the
	// connection is abandoned. Deployments are the long pole.
	commandBudget time.Duration
}

func NewSocketServer(socketPath string, handler *Handler, commandBudget time.Duration, logger *slog.Logger) *SocketServer {
	if commandBudget <= 0 {
		commandBudget = 15 * time.Minute
	}
	return &SocketServer{
		socketPath: socketPath,
		handler:    handler,
		// 10 commands per second with a burst of 20 is generous for a
		// human-driven CLI and starves an accidental tight loop.
		limiter:       rate.NewLimiter(rate.Limit(10), 20),
		log:           logger.With("component", "socket"),
		commandBudget: commandBudget,
	}
}

// Start binds the socket with owner-only permissions. Call Serve next.
func (ss *SocketServer) Start() error {
	if err := os.MkdirAll(filepath.Dir(ss.socketPath), 0700); err != nil {
		return fmt.Errorf("creating socket directory: %w", err)
	}
	// A previous unclean shutdown leaves the socket file behind.
	if _, err := os.Stat(ss.socketPath); err == nil {
		os.Remove(ss.socketPath)
	}

	listener, err := net.Listen("unix", ss.socketPath)
	if err != nil {
		return fmt.Errorf("binding control socket: %w", err)
	}
	ss.listener = listener

	if err := os.Chmod(ss.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("restricting socket permissions: %w", err)
	}
	ss.log.Info("control socket listening", "path", ss.socketPath)
	return nil
}

// Serve accepts connections until the listener closes.
func (ss *SocketServer) Serve(ctx context.Context) {
	for {
		conn, err := ss.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			ss.log.Warn("accept failed", "error", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}
		go ss.handleConn(ctx, conn)
	}
}

func (ss *SocketServer) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(connDeadline))

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	if !ss.limiter.Allow() {
		encoder.Encode(Response{Success: false, Error: &ErrorPayload{
			Classification: "validation",
			Message:        "rate limit exceeded",
		}})
		return
	}

	var cmd Command
	if err := decoder.Decode(&cmd); err != nil {
		ss.log.Debug("dropping undecodable request", "error", err)
		return
	}

	// The command may legitimately outlive the read deadline (a deploy
	// holds the connection until it resolves).
	conn.SetDeadline(time.Now().Add(ss.commandBudget))
	ctx, cancel := context.WithTimeout(ctx, ss.commandBudget)
	defer cancel()

	resp := ss.handler.Handle(ctx, cmd)
	if err := encoder.Encode(resp); err != nil {
		ss.log.Debug("response write failed", "type", cmd.Type, "error", err)
	}
}

// Close shuts the listener down and removes the socket file.
func (ss *SocketServer) Close() error {
	var err error
	if ss.listener != nil {
		err = ss.listener.Close()
	}
	os.Remove(ss.socketPath)
	return err
}
