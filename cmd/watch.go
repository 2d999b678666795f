package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"helmsman/internal/fleet"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream fleet events as they happen",
	Long: `Subscribes to the daemon's event stream and prints each change as a
line: host additions and removals, status transitions, deploy starts and
finishes, metric refreshes. Interrupt to stop.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sock, err := resolveSocket()
		if err != nil {
			return err
		}

		// The stream rides a websocket over a unix socket; the URL host is a
		// placeholder since the dialer below pins the address.
		dialer := websocket.Dialer{
			NetDialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				return (&net.Dialer{}).DialContext(ctx, "unix", sock+".events")
			},
			HandshakeTimeout: 5 * time.Second,
		}
		conn, _, err := dialer.Dial("ws://helmsman/events", nil)
		if err != nil {
			return fmt.Errorf("event stream not reachable (is 'helmsman serve' running?): %w", err)
		}
		defer conn.Close()

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sig
			conn.Close()
		}()

		for {
			var ev fleet.Event
			if err := conn.ReadJSON(&ev); err != nil {
				return nil
			}
			printEvent(ev)
		}
	},
}

func printEvent(ev fleet.Event) {
	stamp := ev.At.Format("15:04:05")
	switch ev.Kind {
	case fleet.EventHostAdded:
		green.Printf("%s  %s added\n", stamp, ev.HostID)
	case fleet.EventHostRemoved:
		yellow.Printf("%s  %s removed\n", stamp, ev.HostID)
	case fleet.EventStatusChanged:
		fmt.Printf("%s  %s is now %s\n", stamp, ev.HostID, ev.Status)
	case fleet.EventDeployStarted:
		yellow.Printf("%s  deploy started on %s\n", stamp, ev.HostID)
	case fleet.EventDeployFinished:
		fmt.Printf("%s  deploy on %s: %s\n", stamp, ev.HostID, ev.Message)
	default:
		fmt.Printf("%s  %s %s %s\n", stamp, ev.HostID, ev.Kind, ev.Message)
	}
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
