package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/spendboard/internal/config"
	"github.com/janekbaraniewski/spendboard/internal/core"
)

func newAccountsCommand(cfg config.Config, open appFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "accounts",
		Aliases: []string{"acct"},
		Short:   "Manage tracked vendor accounts",
	}
	cmd.AddCommand(newAccountsListCommand(cfg, open))
	cmd.AddCommand(newAccountsAddCommand(cfg, open))
	cmd.AddCommand(newAccountsRemoveCommand(cfg, open))
	cmd.AddCommand(newAccountsClearCommand(cfg, open))
	return cmd
}

func newAccountsListCommand(cfg config.Config, open appFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show accounts with their last known balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cfg, open, func(a *app) error {
				return a.showAccounts(cmd.Context())
			})
		},
	}
}

func newAccountsAddCommand(cfg config.Config, open appFactory) *cobra.Command {
	var (
		name   string
		vendor string
		key    string
		teamID string
		fetch  bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an OpenAI, DeepSeek or Grok account",
		Example: strings.Join([]string{
			"  spendboard accounts add --name prod --vendor openai --key sk-admin-...",
			"  spendboard accounts add --name grok --vendor grok --key xai-... --team-id 1234",
		}, "\n"),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, ok := core.ParseVendor(strings.ToLower(strings.TrimSpace(vendor)))
			if !ok {
				return fmt.Errorf("unknown vendor %q (want %s)", vendor, strings.Join(lo.Map(core.Vendors, func(v core.Vendor, _ int) string { return string(v) }), ", "))
			}
			return withApp(cfg, open, func(a *app) error {
				ctx := cmd.Context()
				acct, err := a.accounts.Add(ctx, core.Account{Name: name, Vendor: v, Credential: key, TeamID: teamID})
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, okStyle.Render("Added "+acct.Name+" ("+acct.ID+")"))
				if !fetch {
					return nil
				}
				_, err = a.refresher.RefreshOne(ctx, acct.ID)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&vendor, "vendor", string(core.VendorOpenAI), "openai, deepseek or grok")
	cmd.Flags().StringVar(&key, "key", "", "admin key (OpenAI), API key (DeepSeek) or management key (Grok)")
	cmd.Flags().StringVar(&teamID, "team-id", "", "Grok team id")
	cmd.Flags().BoolVar(&fetch, "refresh", true, "fetch the balance right after adding")
	return cmd
}

func newAccountsRemoveCommand(cfg config.Config, open appFactory) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Remove an account by id or unique id prefix",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cfg, open, func(a *app) error {
				ctx := cmd.Context()
				id, err := a.resolveAccountID(ctx, args[0])
				if err != nil {
					return err
				}
				if err := a.accounts.Remove(ctx, id); err != nil {
					return err
				}
				fmt.Fprintln(a.out, "Removed "+id)
				return nil
			})
		},
	}
}

func newAccountsClearCommand(cfg config.Config, open appFactory) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("refusing to remove all accounts without --yes")
			}
			return withApp(cfg, open, func(a *app) error {
				if err := a.accounts.Clear(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(a.out, "All accounts removed")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm removing every account")
	return cmd
}

// resolveAccountID accepts a full id or a prefix that matches exactly one
// account.
func (a *app) resolveAccountID(ctx context.Context, ref string) (string, error) {
	list, err := a.accounts.List(ctx)
	if err != nil {
		return "", err
	}
	if _, ok := lo.Find(list, func(acct core.Account) bool { return acct.ID == ref }); ok {
		return ref, nil
	}
	matches := lo.Filter(list, func(acct core.Account, _ int) bool { return strings.HasPrefix(acct.ID, ref) })
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("account %s: %w", ref, core.ErrNotFound)
	case 1:
		return matches[0].ID, nil
	default:
		return "", fmt.Errorf("account prefix %q is ambiguous (%d matches)", ref, len(matches))
	}
}
