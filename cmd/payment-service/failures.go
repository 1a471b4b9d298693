package main

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/fuyileeperez18-source/melo-sportt-sub001/internal/config"
	paymentpg "github.com/fuyileeperez18-source/melo-sportt-sub001/internal/payment/infrastructure/postgres"
	"github.com/fuyileeperez18-source/melo-sportt-sub001/pkg/logging"
)

func failuresCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "failures",
		Short: "List webhook deliveries that were acknowledged but not applied",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			var failures []paymentpg.UnresolvedFailure
			err = withFailureLog(cmd.Context(), cfg, func(fl *paymentpg.FailureLog) error {
				var lerr error
				failures, lerr = fl.Unresolved(cmd.Context(), limit)
				return lerr
			})
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tREFERENCE\tEVENT\tSTATUS\tERROR")
			for _, f := range failures {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", f.ID, f.Reference, f.Event, f.Status, f.Err)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum failures to list")
	cmd.AddCommand(resolveFailureCmd())
	return cmd
}

func resolveFailureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <id>",
		Short: "Mark a webhook failure as handled",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid failure id %q: %w", args[0], err)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return withFailureLog(cmd.Context(), cfg, func(fl *paymentpg.FailureLog) error {
				if err := fl.Resolve(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "resolved %d\n", id)
				return nil
			})
		},
	}
}

func withFailureLog(ctx context.Context, cfg *config.Config, fn func(*paymentpg.FailureLog) error) error {
	pool, err := pgxpool.New(ctx, cfg.PGURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	return fn(paymentpg.NewFailureLog(logging.New(cfg.LogLevel), pool))
}
