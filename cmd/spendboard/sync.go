package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/janekbaraniewski/spendboard/internal/cloudsync"
	"github.com/janekbaraniewski/spendboard/internal/config"
)

// EnvSyncPassword supplies the sync password non-interactively.
const EnvSyncPassword = "SPENDBOARD_SYNC_PASSWORD"

func newSyncCommand(cfg config.Config, open appFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Mirror accounts and settings to a cloud profile",
	}
	cmd.AddCommand(newSyncRegisterCommand(cfg, open))
	cmd.AddCommand(newSyncLoginCommand(cfg, open))
	cmd.AddCommand(newSyncLogoutCommand(cfg, open))
	cmd.AddCommand(newSyncNowCommand(cfg, open))
	cmd.AddCommand(newSyncStatusCommand(cfg, open))
	return cmd
}

type credentialFlags struct {
	email    string
	password string
}

func (f *credentialFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.email, "email", "", "account email")
	cmd.Flags().StringVar(&f.password, "password", "", "password (or set "+EnvSyncPassword+"; prompted otherwise)")
	_ = cmd.MarkFlagRequired("email")
}

// resolvePassword prefers the flag, then the environment, then one line of
// stdin.
func (f *credentialFlags) resolvePassword(in io.Reader, out io.Writer) (string, error) {
	if f.password != "" {
		return f.password, nil
	}
	if env := os.Getenv(EnvSyncPassword); env != "" {
		return env, nil
	}
	fmt.Fprint(out, "Password: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("reading password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", fmt.Errorf("password is required")
	}
	return line, nil
}

func newSyncRegisterCommand(cfg config.Config, open appFactory) *cobra.Command {
	var creds credentialFlags
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a cloud sync profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cfg, open, func(a *app) error {
				engine, err := a.syncEngine()
				if err != nil {
					return err
				}
				password, err := creds.resolvePassword(cmd.InOrStdin(), a.out)
				if err != nil {
					return err
				}
				if err := engine.Register(cmd.Context(), creds.email, password); err != nil {
					return err
				}
				fmt.Fprintln(a.out, okStyle.Render("Registered "+creds.email+"; run `spendboard sync login` to start syncing"))
				return nil
			})
		},
	}
	creds.bind(cmd)
	return cmd
}

func newSyncLoginCommand(cfg config.Config, open appFactory) *cobra.Command {
	var creds credentialFlags
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and reconcile local state with the cloud profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cfg, open, func(a *app) error {
				engine, err := a.syncEngine()
				if err != nil {
					return err
				}
				password, err := creds.resolvePassword(cmd.InOrStdin(), a.out)
				if err != nil {
					return err
				}
				res, err := engine.Login(cmd.Context(), creds.email, password)
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, okStyle.Render("Signed in as "+creds.email))
				fmt.Fprintln(a.out, describeResult(res))
				return nil
			})
		},
	}
	creds.bind(cmd)
	return cmd
}

func newSyncLogoutCommand(cfg config.Config, open appFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Push pending changes and forget the sync session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cfg, open, func(a *app) error {
				engine, err := a.syncEngine()
				if err != nil {
					return err
				}
				ctx := cmd.Context()
				if _, err := engine.Restore(ctx); err != nil {
					return err
				}
				res, err := engine.Logout(ctx)
				if err != nil {
					return err
				}
				switch {
				case res.UploadErr != nil:
					fmt.Fprintln(a.out, warnStyle.Render("Final upload failed: "+res.UploadErr.Error()))
				case res.Uploaded:
					fmt.Fprintln(a.out, "Uploaded local changes")
				}
				fmt.Fprintln(a.out, okStyle.Render("Signed out"))
				return nil
			})
		},
	}
}

func newSyncNowCommand(cfg config.Config, open appFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "now",
		Short: "Reconcile with the cloud profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cfg, open, func(a *app) error {
				engine, err := a.syncEngine()
				if err != nil {
					return err
				}
				ctx := cmd.Context()
				if _, err := engine.Restore(ctx); err != nil {
					return err
				}
				res, err := engine.Reconcile(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, describeResult(res))
				return nil
			})
		},
	}
}

func newSyncStatusCommand(cfg config.Config, open appFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the sync profile and the last reconciliation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cfg, open, func(a *app) error {
				engine, err := a.syncEngine()
				if err != nil {
					return err
				}
				ctx := cmd.Context()
				if _, err := engine.Restore(ctx); err != nil {
					return err
				}
				st, err := engine.Status(ctx)
				if err != nil {
					return err
				}
				fmt.Fprint(a.out, renderSyncStatus(st))
				return nil
			})
		},
	}
}

func describeResult(res cloudsync.Result) string {
	switch res.Outcome {
	case cloudsync.OutcomeDownload:
		return fmt.Sprintf("Downloaded %d keys from the cloud profile", res.Keys)
	case cloudsync.OutcomeUpload:
		return fmt.Sprintf("Uploaded %d keys to the cloud profile", res.Keys)
	case cloudsync.OutcomeNoData:
		return mutedStyle.Render("Nothing to sync yet")
	default:
		return mutedStyle.Render("Already in sync")
	}
}

func renderSyncStatus(st cloudsync.Status) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Cloud sync"))
	b.WriteString("\n")
	if st.Profile.Email == "" {
		b.WriteString(mutedStyle.Render("Not signed in"))
		b.WriteString("\n")
		return b.String()
	}

	signedIn := errorStyle.Render("signed out")
	if st.Profile.LoggedIn() {
		signedIn = okStyle.Render("signed in")
	}
	fmt.Fprintf(&b, "%s (%s) · %s\n", st.Profile.Email, st.Profile.Apps, signedIn)

	if st.Meta == nil {
		b.WriteString(mutedStyle.Render("Never synced"))
		b.WriteString("\n")
	} else {
		when := time.UnixMilli(st.Meta.LocalTimestamp).Local().Format("2006-01-02 15:04")
		fmt.Fprintf(&b, "Last %s at %s\n", st.Meta.Direction, when)
	}
	if st.LastError != "" {
		b.WriteString(errorStyle.Render(st.LastError))
		b.WriteString("\n")
	}
	return b.String()
}
