package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/spendboard/internal/appupdate"
	"github.com/janekbaraniewski/spendboard/internal/version"
)

func newVersionCommand() *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "spendboard "+version.String())
			if !check {
				return nil
			}

			res, err := appupdate.Check(cmd.Context(), nil, version.Version, "")
			if err != nil {
				return err
			}
			switch {
			case res.CurrentVersion == "":
				fmt.Fprintln(out, mutedStyle.Render("Development build: update check skipped"))
			case res.UpdateAvailable:
				fmt.Fprintln(out, warnStyle.Render(fmt.Sprintf("Update available: %s → %s", res.CurrentVersion, res.LatestVersion)))
			default:
				fmt.Fprintln(out, okStyle.Render("Up to date"))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "check for a newer release")
	return cmd
}
