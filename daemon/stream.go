package daemon

import (
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"helmsman/internal/fleet"
)

// EventStream serves registry change notifications over a websocket so
// observers subscribe to state changes instead of polling the catalog. It
// listens on its own unix socket next to the control socket.
type EventStream struct {
	socketPath string
	registry   *fleet.Registry
	upgrader   websocket.Upgrader
	listener   net.Listener
	log        *slog.Logger
}

func NewEventStream(socketPath string, registry *fleet.Registry, logger *slog.Logger) *EventStream {
	return &EventStream{
		socketPath: socketPath,
		registry:   registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The unix socket's file permissions are the access control;
			// there is no cross-origin surface on a local socket.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: logger.With("component", "events"),
	}
}

func (es *EventStream) Start() error {
	if _, err := os.Stat(es.socketPath); err == nil {
		os.Remove(es.socketPath)
	}
	listener, err := net.Listen("unix", es.socketPath)
	if err != nil {
		return err
	}
	if err := os.Chmod(es.socketPath, 0600); err != nil {
		listener.Close()
		return err
	}
	es.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc("/events", es.serveEvents)
	go http.Serve(listener, mux)
	es.log.Info("event stream listening", "path", es.socketPath)
	return nil
}

func (es *EventStream) serveEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := es.upgrader.Upgrade(w, r, nil)
	if err != nil {
		es.log.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events, cancel := es.registry.Subscribe()
	defer cancel()

	// Drain client frames so pings and closes are processed; the stream is
	// one-way otherwise.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case ev, okCh := <-events:
			if !okCh {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}

func (es *EventStream) Close() error {
	var err error
	if es.listener != nil {
		err = es.listener.Close()
	}
	os.Remove(es.socketPath)
	return err
}
