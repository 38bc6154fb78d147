package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/spendboard/internal/config"
	"github.com/janekbaraniewski/spendboard/internal/core"
)

func newRangeCommand(cfg config.Config, open appFactory) *cobra.Command {
	return &cobra.Command{
		Use:       "range [1d|3d|7d|1m]",
		Short:     "Show or set the window OpenAI spend is summed over",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"1d", "3d", "7d", "1m"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cfg, open, func(a *app) error {
				ctx := cmd.Context()
				if len(args) == 1 {
					if err := a.settings.SetUsageRange(ctx, core.UsageRange(args[0])); err != nil {
						return err
					}
				}
				rng, err := a.settings.UsageRange(ctx)
				if err != nil {
					return err
				}
				start, end := core.ComputeRangeDates(rng, nowFunc())
				fmt.Fprintf(a.out, "%s (%s) · %s → %s\n", rng, rng.Label(), start, end)
				return nil
			})
		},
	}
}
