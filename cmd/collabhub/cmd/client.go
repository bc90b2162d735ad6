package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nfrund/collabhub/internal/backoff"
	"github.com/nfrund/collabhub/internal/client"
	"github.com/nfrund/collabhub/internal/config"
	"github.com/nfrund/collabhub/internal/realtime"
	"github.com/spf13/cobra"
)

var (
	clientURL   string
	clientToken string
	clientRoom  string
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Connect to a server and chat in a project room",
	Long: `Connect to a collabhub server, join a project room and send every line
read from stdin as a chat message. Events from the server are printed as
JSON, one per line. The connection is re-established with exponential
backoff after network failures and the room is re-joined.

Example:
  collabhub client --token "$(collabhub token alice)" --room robotics`,
	RunE: runClient,
}

func runClient(cmd *cobra.Command, args []string) error {
	if clientToken == "" {
		return errors.New("--token is required")
	}
	cfg := config.FromEnv()
	rc := cfg.GetReconnect()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	c := client.New(client.Options{
		URL:   clientURL,
		Token: clientToken,
		Policy: backoff.Policy{
			Initial:     rc.Initial,
			Max:         rc.Max,
			Multiplier:  2,
			MaxAttempts: rc.MaxAttempts,
		},
		OnConnect: func(ctx context.Context, c *client.Client) error {
			rooms := c.Rooms()
			if len(rooms) == 0 && clientRoom != "" {
				rooms = []string{clientRoom}
			}
			for _, room := range rooms {
				if err := c.JoinRoom(ctx, room); err != nil {
					return err
				}
			}
			return nil
		},
		OnEvent: func(ev realtime.RawEvent) {
			fmt.Fprintf(out, "%s %s\n", ev.Type, ev.Payload)
		},
		OnStateChange: func(s client.State) {
			slog.Debug("Client state changed", "state", s)
		},
	})

	go func() {
		readLines(ctx, cmd.InOrStdin(), c)
		stop()
	}()

	err := c.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// readLines sends each non-empty line as a chat message until input ends.
func readLines(ctx context.Context, in io.Reader, c *client.Client) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if clientRoom == "" {
			slog.Warn("No --room given, message not sent")
			continue
		}
		if err := c.SendMessage(ctx, clientRoom, line); err != nil {
			slog.Warn("Message not sent", "error", err)
		}
	}
	_ = c.Close()
}

func init() {
	clientCmd.Flags().StringVar(&clientURL, "url", "ws://localhost:8080/ws", "websocket endpoint of the server")
	clientCmd.Flags().StringVar(&clientToken, "token", os.Getenv("COLLABHUB_TOKEN"), "connect token (defaults to $COLLABHUB_TOKEN)")
	clientCmd.Flags().StringVar(&clientRoom, "room", "", "project room to join and post to")
	rootCmd.AddCommand(clientCmd)
}
