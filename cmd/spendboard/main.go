package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/spendboard/internal/config"
)

func main() {
	if os.Getenv("SPENDBOARD_DEBUG") != "" {
		log.SetOutput(os.Stderr)
	} else {
		log.SetOutput(io.Discard)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		fmt.Fprintf(os.Stderr, "Config path: %s\n", config.ConfigPath())
		os.Exit(1)
	}

	root := newRootCommand(cfg, func(cfg config.Config) (*app, error) {
		return openApp(cfg, os.Stdout)
	})
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// appFactory opens the application state; tests swap in an in-memory one.
type appFactory func(config.Config) (*app, error)

func newRootCommand(cfg config.Config, open appFactory) *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:          "spendboard",
		Short:        "Track spend and prepaid balance across OpenAI, DeepSeek and Grok accounts.",
		SilenceUsage: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if verbose {
				log.SetOutput(os.Stderr)
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cfg, open, func(a *app) error {
				return a.showAccounts(cmd.Context())
			})
		},
	}
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "log requests and sync decisions to stderr")

	root.AddCommand(newAccountsCommand(cfg, open))
	root.AddCommand(newRefreshCommand(cfg, open))
	root.AddCommand(newRangeCommand(cfg, open))
	root.AddCommand(newRelayCommand(cfg, open))
	root.AddCommand(newSyncCommand(cfg, open))
	root.AddCommand(newVersionCommand())

	return root
}

func withApp(cfg config.Config, open appFactory, fn func(*app) error) error {
	a, err := open(cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
