package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophshare/internal/server/app"
	"github.com/dmitrijs2005/gophshare/internal/server/services"
	"github.com/spf13/cobra"
)

func (c *cli) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and create the storage bucket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Migrate(ctx); err != nil {
					return err
				}
				fmt.Fprintln(c.stdout, successText.Sprint("✓")+" database is up to date")
				return nil
			})
		},
	}
}

func (c *cli) sweepCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired and exhausted files and orphan shares",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				report, err := a.Files.SweepExpired(ctx, limit)
				if err != nil {
					return err
				}
				printSweepReport(c, report)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", services.DefaultSweepLimit, "maximum number of files checked")
	return cmd
}

func printSweepReport(c *cli, r *services.SweepReport) {
	fmt.Fprintln(c.stdout, successText.Sprint("✓")+" sweep finished")
	printField(c.stdout, "checked", r.Checked)
	printField(c.stdout, "deleted", r.Deleted)
	printField(c.stdout, "failed", r.Failed)
	printField(c.stdout, "orphan shares", r.OrphanShares)
}
