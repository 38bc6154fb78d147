package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/spendboard/internal/config"
)

func newRefreshCommand(cfg config.Config, open appFactory) *cobra.Command {
	var noSync bool
	cmd := &cobra.Command{
		Use:   "refresh [id...]",
		Short: "Fetch fresh balances for all accounts or the given ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cfg, open, func(a *app) error {
				ctx := cmd.Context()
				if !noSync {
					a.resumeSync(ctx)
				}

				rng, err := a.settings.UsageRange(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, headerStyle.Render("Refreshing · spend range: "+rng.Label()))

				if len(args) == 0 {
					_, err := a.refresher.RefreshAll(ctx)
					return err
				}
				for _, ref := range args {
					id, err := a.resolveAccountID(ctx, ref)
					if err != nil {
						return err
					}
					if _, err := a.refresher.RefreshOne(ctx, id); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&noSync, "no-sync", false, "skip reconciling with cloud sync first")
	return cmd
}
