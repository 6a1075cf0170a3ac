package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow release gate changes on the state websocket",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return watch(ctx, stateURL, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

type wsFrame struct {
	Type string          `json:"type"`
	Ts   time.Time       `json:"ts"`
	Data json.RawMessage `json:"data"`
}

// watch prints one line per frame until ctx is done or the server closes.
func watch(ctx context.Context, url string, out io.Writer) error {
	d := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := d.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", url, err)
	}
	defer conn.Close()

	var writeMu sync.Mutex

	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})
	// The daemon pings every 20s; answer and extend the deadline.
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
	})

	done := make(chan error, 1)
	go func() {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					done <- nil
					return
				}
				done <- err
				return
			}
			line, err := formatFrame(msg)
			if err != nil {
				log.Printf("skipping frame: %v", err)
				continue
			}
			fmt.Fprintln(out, line)
		}
	}()

	select {
	case <-ctx.Done():
		writeMu.Lock()
		err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		writeMu.Unlock()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error closing connection: %v\n", err)
		}
		return nil
	case err := <-done:
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		return nil
	}
}

// formatFrame renders a state websocket frame as a single line.
func formatFrame(msg []byte) (string, error) {
	var f wsFrame
	if err := json.Unmarshal(msg, &f); err != nil {
		return "", fmt.Errorf("decode frame: %w", err)
	}
	ts := f.Ts.Local().Format("15:04:05.000")

	switch f.Type {
	case "state_init":
		var s struct {
			Inhibited       bool   `json:"inhibited"`
			FineSamples     uint64 `json:"fine_samples"`
			RevolutionTicks uint64 `json:"revolution_ticks"`
		}
		if err := json.Unmarshal(f.Data, &s); err != nil {
			return "", fmt.Errorf("decode state_init: %w", err)
		}
		return fmt.Sprintf("%s [INIT] %s (fine_samples=%d revolution_ticks=%d)",
			ts, statusLine(s.Inhibited), s.FineSamples, s.RevolutionTicks), nil

	case "inhibit_changed":
		var c struct {
			Inhibited bool `json:"inhibited"`
		}
		if err := json.Unmarshal(f.Data, &c); err != nil {
			return "", fmt.Errorf("decode inhibit_changed: %w", err)
		}
		return fmt.Sprintf("%s [GATE] %s", ts, statusLine(c.Inhibited)), nil

	default:
		return fmt.Sprintf("%s [%s] %s", ts, f.Type, string(f.Data)), nil
	}
}
