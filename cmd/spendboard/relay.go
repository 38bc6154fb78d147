package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/spendboard/internal/config"
	"github.com/janekbaraniewski/spendboard/internal/relay"
)

func newRelayCommand(cfg config.Config, open appFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Configure or run the CORS relay vendor calls are routed through",
	}
	cmd.AddCommand(newRelayBaseCommand(cfg, open))
	cmd.AddCommand(newRelayServeCommand(cfg))
	return cmd
}

func newRelayBaseCommand(cfg config.Config, open appFactory) *cobra.Command {
	var unset bool
	cmd := &cobra.Command{
		Use:   "base [url]",
		Short: "Show or set the relay base URL (use {url} as a placeholder for the target)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cfg, open, func(a *app) error {
				ctx := cmd.Context()
				switch {
				case unset:
					if err := a.settings.SetRelayBase(ctx, ""); err != nil {
						return err
					}
				case len(args) == 1:
					if err := a.settings.SetRelayBase(ctx, args[0]); err != nil {
						return err
					}
				}
				base, err := a.settings.RelayBase(ctx)
				if err != nil {
					return err
				}
				if base == "" {
					fmt.Fprintln(a.out, mutedStyle.Render("No relay: vendor APIs are called directly"))
					return nil
				}
				fmt.Fprintln(a.out, base)
				fmt.Fprintln(a.out, mutedStyle.Render("example: "+relay.BuildURL(base, "https://api.openai.com/v1/organization/costs")))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&unset, "unset", false, "remove the relay")
	return cmd
}

func newRelayServeCommand(cfg config.Config) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a local relay that forwards /proxy?url=<target> requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			verbose, _ := cmd.Flags().GetBool("verbose")
			srv := relay.NewServer(relay.Options{
				AllowedOrigins: cfg.Relay.AllowedOrigins,
				Verbose:        verbose,
			})
			fmt.Fprintf(cmd.OutOrStdout(), "Relay listening on http://%s (set it with `spendboard relay base http://%s`)\n", listen, listen)
			return srv.ListenAndServe(ctx, listen)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", cfg.Relay.Listen, "address to listen on")
	return cmd
}
