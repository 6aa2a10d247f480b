package cli

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/arturoeanton/go-commit-reporter/internal/service"
	"github.com/arturoeanton/go-commit-reporter/pkg/config"
)

var (
	listPage  int
	listLimit int
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and run asynchronous report jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List report jobs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.close(cmd.ErrOrStderr())

		page, err := s.app.Jobs.List(cmd.Context(), listPage, listLimit)
		if err != nil {
			return err
		}
		if outputFormat == "json" {
			return RenderJSON(cmd.OutOrStdout(), page)
		}
		RenderJobs(cmd.OutOrStdout(), page, time.Now())
		return nil
	},
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show one report job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.close(cmd.ErrOrStderr())

		job, err := s.app.Jobs.Status(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if outputFormat == "json" {
			return RenderJSON(cmd.OutOrStdout(), job)
		}
		RenderJob(cmd.OutOrStdout(), job)
		return nil
	},
}

var jobsSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Queue a report job",
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := requestFromFlags(time.Now())
		if err != nil {
			return err
		}
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.close(cmd.ErrOrStderr())
		if err := requireSharedQueue(s.app.Config); err != nil {
			return err
		}

		job, err := s.app.Jobs.Submit(cmd.Context(), req)
		if err != nil {
			return err
		}
		if outputFormat == "json" {
			return RenderJSON(cmd.OutOrStdout(), map[string]string{"jobId": job.ID, "status": string(job.Status)})
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s  queued job %s\n", cyan("reportctl"), job.ID)
		return err
	},
}

var jobsWorkCmd = &cobra.Command{
	Use:   "work",
	Short: "Process queued jobs in the foreground until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.close(cmd.ErrOrStderr())
		if err := requireSharedQueue(s.app.Config); err != nil {
			return err
		}

		go s.app.RunMaintenance(ctx)
		return s.app.Pool.Run(ctx)
	},
}

// requireSharedQueue rejects the in-process queue, whose jobs die with the CLI process.
func requireSharedQueue(cfg *config.Config) error {
	if cfg.StorageBackend != config.StoragePostgres {
		return fmt.Errorf("storage backend %q keeps jobs in process memory; set STORAGE_BACKEND=%s to share the queue with workers",
			cfg.StorageBackend, config.StoragePostgres)
	}
	return nil
}

func init() {
	jobsListCmd.Flags().IntVar(&listPage, "page", 1, "page number, starting at 1")
	jobsListCmd.Flags().IntVar(&listLimit, "limit", service.DefaultPageSize, "jobs per page")

	jobsCmd.AddCommand(jobsListCmd, jobsStatusCmd, jobsSubmitCmd, jobsWorkCmd)
	rootCmd.AddCommand(jobsCmd)
}
