package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"focuslog/internal/bootstrap"
	trackeroutadapter "focuslog/internal/modules/tracker/adapter/out"
	"focuslog/internal/platform/config"
	"focuslog/internal/platform/logging"
	"focuslog/internal/ui/theme"
)

var (
	headerStyle = theme.Title
	goodStyle   = theme.Productive
	mutedStyle  = theme.Muted
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "focuslog",
		Short:         "Foreground activity tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "config file path")

	root.AddCommand(newRunCmd(&configPath))
	root.AddCommand(newHeartbeatCmd(&configPath))
	root.AddCommand(newSummaryCmd(&configPath))
	root.AddCommand(newSessionsCmd(&configPath))
	root.AddCommand(newMysteriesCmd(&configPath))
	root.AddCommand(newCurrentCmd(&configPath))
	root.AddCommand(newWatchCmd(&configPath))
	return root
}

// loadApp wires the application. Report commands log nothing unless asked to.
func loadApp(ctx context.Context, configPath string, quiet bool) (*bootstrap.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := logging.Discard()
	if !quiet {
		logger, err = logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			return nil, err
		}
	}
	return bootstrap.New(ctx, cfg, logger, bootstrap.Options{})
}

func newRunCmd(configPath *string) *cobra.Command {
	var noHeartbeat, status bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the tracker and its ingest API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger, err := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			opts := bootstrap.Options{}
			if status {
				opts.Listener = trackeroutadapter.NewConsoleListener(cmd.OutOrStdout())
			}
			app, err := bootstrap.New(ctx, cfg, logger, opts)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()
			return app.Serve(ctx, !noHeartbeat)
		},
	}
	cmd.Flags().BoolVar(&noHeartbeat, "no-heartbeat", false, "rely on an external heartbeat writer")
	cmd.Flags().BoolVar(&status, "status", true, "print a line on every activity change")
	return cmd
}

func newHeartbeatCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "heartbeat",
		Short: "Record one liveness heartbeat now",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(cmd.Context(), *configPath, true)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()
			return app.Heartbeat.Beat(cmd.Context())
		},
	}
}

func newSummaryCmd(configPath *string) *cobra.Command {
	var family, day string
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show hours per activity for a day",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(cmd.Context(), *configPath, true)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()
			rows, err := app.TrackerCLI.Summaries(cmd.Context(), family, dayOrToday(day))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				_, _ = fmt.Fprintln(out, "no activity")
				return nil
			}
			_, _ = fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("%s on %s", family, rows[0].Day)))
			for _, row := range rows {
				name := row.Name
				if row.Productive {
					name = goodStyle.Render(name)
				}
				_, _ = fmt.Fprintf(out, "%7.2fh  %s %s\n", row.HoursSpent, name, mutedStyle.Render(row.Identity))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&family, "family", "program", "program|domain|video")
	cmd.Flags().StringVar(&day, "day", "", "gathering date YYYY-MM-DD (default today)")
	return cmd
}

func newSessionsCmd(configPath *string) *cobra.Command {
	var family, day string
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List session logs for a day",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(cmd.Context(), *configPath, true)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()
			rows, err := app.TrackerCLI.Sessions(cmd.Context(), family, dayOrToday(day))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				_, _ = fmt.Fprintln(out, "no sessions")
				return nil
			}
			for _, row := range rows {
				_, _ = fmt.Fprintf(out, "%s  %s  %6ds  %s %s\n",
					row.StartTime.Format("15:04:05"),
					row.EndLocal,
					row.DurationSeconds,
					row.Name,
					mutedStyle.Render(row.Detail),
				)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&family, "family", "program", "program|domain|video")
	cmd.Flags().StringVar(&day, "day", "", "gathering date YYYY-MM-DD (default today)")
	return cmd
}

func newMysteriesCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "mysteries",
		Short: "List media recorded without a title",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(cmd.Context(), *configPath, true)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()
			rows, err := app.TrackerCLI.Mysteries(cmd.Context())
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no mystery media")
				return nil
			}
			for _, row := range rows {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tlast seen %s\n", row.Platform, row.MediaID, row.LastSeen.Format(time.RFC3339))
			}
			return nil
		},
	}
}

// The live session only exists inside the running tracker, so current asks it over HTTP.
func newCurrentCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "current",
		Short: "Show the activity the running tracker is recording",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			current, err := trackeroutadapter.NewTrackerClient(cfg.ListenAddr, 5*time.Second).Current(cmd.Context())
			if err != nil {
				return err
			}
			if !current.Active {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "idle")
				return nil
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s since %s (%ds recorded)\n",
				headerStyle.Render(current.Kind),
				current.Name,
				current.StartTime.Format("15:04:05"),
				current.RecordedSeconds,
			)
			return nil
		},
	}
}

func newWatchCmd(configPath *string) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Open a live dashboard of the running tracker",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return bootstrap.RunWatch(cfg, interval)
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "refresh interval")
	return cmd
}

func dayOrToday(day string) string {
	if day != "" {
		return day
	}
	return time.Now().Format("2006-01-02")
}
