package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nfrund/collabhub/internal/app"
	"github.com/nfrund/collabhub/internal/config"
	"github.com/nfrund/collabhub/internal/pubsub"
	"github.com/spf13/cobra"
)

var serveSeed bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and websocket server",
	Long: `Start the server. Configuration comes from the environment and an
optional .env file in the working directory.

Examples:
  # In-memory store with demo users and projects
  JWT_SECRET=dev collabhub serve --seed

  # SurrealDB backend
  STORE_BACKEND=surreal SURREAL_URL=ws://localhost:8000/rpc collabhub serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := app.New(cfg, app.Options{
		Seed:    serveSeed,
		Tracing: pubsub.LoadTracingConfigFromEnv(),
	})
	runErr := a.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		slog.Error("Shutdown incomplete", "error", err)
	}
	return runErr
}

func init() {
	serveCmd.Flags().BoolVar(&serveSeed, "seed", false, "load demo users and projects into the memory store")
	rootCmd.AddCommand(serveCmd)
}
