package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/facturia/facturia/cmd/auditctl/cli"
	"github.com/facturia/facturia/internal/app"
	"github.com/facturia/facturia/internal/auditlog"
)

// exitError carries a command's exit code out of cobra.
type exitError struct {
	code int
}

func (e exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if ee, ok := err.(exitError); ok {
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:           "auditctl",
		Short:         "Query the Facturia audit log",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "audit log directory (default: $AUDIT_LOG_DIR or ./storage/logs)")

	auditCLI := func() (*cli.AuditCLI, error) {
		path := dir
		if path == "" {
			path = os.Getenv("AUDIT_LOG_DIR")
		}
		if path == "" {
			path = "./storage/logs"
		}
		analyzer, err := auditlog.NewAnalyzer(path)
		if err != nil {
			return nil, err
		}
		return cli.NewAuditCLI(analyzer, auditlog.NewExporter())
	}

	cmd.AddCommand(newReportCmd(auditCLI))
	cmd.AddCommand(newSuspiciousCmd(auditCLI))
	cmd.AddCommand(newActionsCmd(auditCLI))
	cmd.AddCommand(newHistoryCmd(auditCLI))
	cmd.AddCommand(newRolesCmd())
	cmd.AddCommand(newScanCmd())
	return cmd
}

func exit(code int) error {
	if code == 0 {
		return nil
	}
	return exitError{code: code}
}

func newReportCmd(build func() (*cli.AuditCLI, error)) *cobra.Command {
	var opts cli.ReportOptions
	var format string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Aggregate audit events over a date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := build()
			if err != nil {
				return err
			}
			opts.Format = cli.ReportFormat(format)
			opts.Stdout = cmd.OutOrStdout()
			opts.Stderr = cmd.ErrOrStderr()
			return exit(c.ReportCommand(cmd.Context(), opts))
		},
	}
	cmd.Flags().StringVar(&opts.From, "from", "", "first day (YYYY-MM-DD, default: seven days before --to)")
	cmd.Flags().StringVar(&opts.To, "to", "", "last day (YYYY-MM-DD, default: today)")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text, json, csv or xlsx")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "destination file for csv and xlsx")
	return cmd
}

func newSuspiciousCmd(build func() (*cli.AuditCLI, error)) *cobra.Command {
	var opts cli.SuspiciousOptions
	cmd := &cobra.Command{
		Use:   "suspicious",
		Short: "List IPs with repeated failed attempts (exit 10 when any are found)",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := build()
			if err != nil {
				return err
			}
			opts.Stdout = cmd.OutOrStdout()
			opts.Stderr = cmd.ErrOrStderr()
			return exit(c.SuspiciousCommand(cmd.Context(), opts))
		},
	}
	cmd.Flags().StringVar(&opts.Date, "date", "", "day to inspect (YYYY-MM-DD, default: today)")
	cmd.Flags().BoolVar(&opts.JSONOutput, "json", false, "emit JSON")
	return cmd
}

func newActionsCmd(build func() (*cli.AuditCLI, error)) *cobra.Command {
	var opts cli.EventsOptions
	cmd := &cobra.Command{
		Use:   "actions",
		Short: "Show the actions a user performed on one day",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := build()
			if err != nil {
				return err
			}
			opts.Stdout = cmd.OutOrStdout()
			opts.Stderr = cmd.ErrOrStderr()
			return exit(c.ActionsCommand(cmd.Context(), opts))
		},
	}
	cmd.Flags().Int64Var(&opts.UserID, "user", 0, "acting user id")
	cmd.Flags().StringVar(&opts.Date, "date", "", "day (YYYY-MM-DD, default: today)")
	cmd.Flags().BoolVar(&opts.JSONOutput, "json", false, "emit JSON")
	return cmd
}

func newHistoryCmd(build func() (*cli.AuditCLI, error)) *cobra.Command {
	var opts cli.EventsOptions
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show every change made to a user over a date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := build()
			if err != nil {
				return err
			}
			opts.Stdout = cmd.OutOrStdout()
			opts.Stderr = cmd.ErrOrStderr()
			return exit(c.HistoryCommand(cmd.Context(), opts))
		},
	}
	cmd.Flags().Int64Var(&opts.UserID, "user", 0, "target user id")
	cmd.Flags().StringVar(&opts.From, "from", "", "first day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.To, "to", "", "last day (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&opts.JSONOutput, "json", false, "emit JSON")
	return cmd
}

func newRolesCmd() *cobra.Command {
	var opts cli.RolesOptions
	cmd := &cobra.Command{
		Use:   "roles",
		Short: "Print the role to permission matrix",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Stdout = cmd.OutOrStdout()
			opts.Stderr = cmd.ErrOrStderr()
			return exit(cli.RolesCommand(opts))
		},
	}
	cmd.Flags().BoolVar(&opts.JSONOutput, "json", false, "emit JSON")
	cmd.Flags().StringVar(&opts.Permission, "permission", "", "only list roles granting this permission")
	return cmd
}

func newScanCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Enqueue a suspicious activity scan on the worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			jobsCLI, err := cli.NewJobsCLI(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
			if err != nil {
				return err
			}
			defer jobsCLI.Close()
			info, err := jobsCLI.TriggerSuspiciousScan(cmd.Context(), date)
			if err != nil {
				return err
			}
			stats, err := jobsCLI.InspectQueue(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s (queue %s: %d pending, %d active)\n", info.ID, stats.Queue, stats.Pending, stats.Active)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day to scan (YYYY-MM-DD, default: yesterday)")
	return cmd
}
