package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/teemow/agendacal/internal/agenda"
	"github.com/teemow/agendacal/internal/config"
	"github.com/teemow/agendacal/internal/logging"
)

// agendaOptions are the flags of the agenda command.
type agendaOptions struct {
	jsonOutput  bool
	days        int
	startDate   string
	idToken     string
	accessToken string
}

func newAgendaCmd() *cobra.Command {
	var opts agendaOptions

	cmd := &cobra.Command{
		Use:   "agenda",
		Short: "Refresh once and print the agenda",
		Long: `Run a single aggregation and print the window, one block per day.

Without --id-token the window is filled with sample data. The command exits
non-zero when the run fails; the output then shows the last error.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("days") {
				cfg.Window.Days = opts.days
			}
			if cmd.Flags().Changed("start") {
				cfg.Window.StartDate = opts.startDate
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return runAgenda(cmd.Context(), cmd.OutOrStdout(), cfg, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print the snapshot as JSON")
	cmd.Flags().IntVar(&opts.days, "days", agenda.DefaultWindowDays, "Number of days to show")
	cmd.Flags().StringVar(&opts.startDate, "start", "", "First day (YYYY-MM-DD). Default is today.")
	cmd.Flags().StringVar(&opts.idToken, "id-token", os.Getenv("AGENDACAL_ID_TOKEN"), "Identity credential to sign in with. Can also use AGENDACAL_ID_TOKEN env var.")
	cmd.Flags().StringVar(&opts.accessToken, "access-token", os.Getenv("AGENDACAL_ACCESS_TOKEN"), "Calendar bearer token. Can also use AGENDACAL_ACCESS_TOKEN env var.")

	return cmd
}

func runAgenda(ctx context.Context, out io.Writer, cfg *config.Config, opts agendaOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Refresh.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Refresh.Timeout)
		defer cancel()
	}

	logger := logging.NewLogger(os.Stderr, cfg.Log.Format, cfg.Log.Level)

	a, err := newApp(cfg, logger, nil)
	if err != nil {
		return err
	}
	if err := a.signIn(opts.idToken, opts.accessToken); err != nil {
		return fmt.Errorf("sign-in failed: %w", err)
	}

	runErr := a.orchestrator.Refresh(ctx)
	snap := a.orchestrator.Snapshot()

	if opts.jsonOutput {
		if err := writeSnapshotJSON(out, snap); err != nil {
			return err
		}
	} else if err := agenda.RenderText(out, snap); err != nil {
		return err
	}

	if runErr != nil {
		return fmt.Errorf("refresh failed: %w", runErr)
	}
	return nil
}

func writeSnapshotJSON(w io.Writer, snap agenda.Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}
