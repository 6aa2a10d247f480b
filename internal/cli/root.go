// Package cli implements the reportctl command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/arturoeanton/go-commit-reporter/internal/app"
	"github.com/arturoeanton/go-commit-reporter/internal/tracing"
	"github.com/arturoeanton/go-commit-reporter/pkg/config"
)

var (
	outputFormat string
	showTimings  bool
)

var rootCmd = &cobra.Command{
	Use:   "reportctl",
	Short: "Generate commit reports and manage report jobs",
	Long: `reportctl talks to the same report pipeline as the HTTP server.

Configuration is read from the environment (and a .env file when present),
so report, raw and summary hit GitHub and the LLM directly. The jobs
commands operate on the configured queue; use STORAGE_BACKEND=postgres to
share it with a running server.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "table", "output format: table or json")
	rootCmd.PersistentFlags().BoolVar(&showTimings, "timings", false, "print the slowest spans after the command")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// session is one wired pipeline plus the span collector of this invocation.
type session struct {
	app      *app.App
	exporter *tracing.CollectingExporter
	shutdown func(context.Context) error
}

func openSession(ctx context.Context) (*session, error) {
	_ = godotenv.Load()
	cfg := config.Load()
	slog.SetDefault(app.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat))

	exporter, shutdown := tracing.Init(cfg.TracingEnabled || showTimings)
	a, err := app.New(ctx, cfg)
	if err != nil {
		_ = shutdown(ctx)
		return nil, fmt.Errorf("initialize: %w", err)
	}
	return &session{app: a, exporter: exporter, shutdown: shutdown}, nil
}

// close prints timings when requested and releases resources.
func (s *session) close(w io.Writer) {
	if showTimings && s.exporter != nil {
		RenderTimings(w, s.exporter.Timings())
	}
	_ = s.shutdown(context.Background())
	s.app.Close()
}
