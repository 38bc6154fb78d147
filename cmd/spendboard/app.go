package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/janekbaraniewski/spendboard/internal/accounts"
	"github.com/janekbaraniewski/spendboard/internal/cloudsync"
	"github.com/janekbaraniewski/spendboard/internal/config"
	"github.com/janekbaraniewski/spendboard/internal/core"
	"github.com/janekbaraniewski/spendboard/internal/providers"
	"github.com/janekbaraniewski/spendboard/internal/providers/shared"
	"github.com/janekbaraniewski/spendboard/internal/refresh"
	"github.com/janekbaraniewski/spendboard/internal/settings"
	"github.com/janekbaraniewski/spendboard/internal/store"
)

var nowFunc = time.Now

// app bundles the wired components one command invocation works with.
type app struct {
	cfg       config.Config
	store     store.Store
	accounts  *accounts.Repository
	settings  *settings.Settings
	refresher *refresh.Refresher
	sync      *cloudsync.Engine
	out       io.Writer
}

func openApp(cfg config.Config, out io.Writer) (*app, error) {
	s, err := store.OpenSQLite(cfg.Storage.DBPath)
	if err != nil {
		return nil, err
	}
	secrets := cloudsync.NewKeyringSecrets(cfg.Sync.KeyringService, cfg.PasswordKeyTTL())
	return newApp(cfg, s, secrets, out), nil
}

func newApp(cfg config.Config, s store.Store, secrets cloudsync.SecretStore, out io.Writer) *app {
	client := &shared.Client{Timeout: cfg.Timeout()}
	registry := providers.NewRegistry(providers.AllProviders(client, cfg.VendorBaseURLs())...)

	a := &app{
		cfg:      cfg,
		store:    s,
		accounts: accounts.NewRepository(s),
		settings: settings.New(s),
		out:      out,
	}
	a.refresher = refresh.New(a.accounts, a.settings, registry)
	a.refresher.IP = refresh.PublicIP(client, "", cfg.IPEchoTimeout())
	a.refresher.OnUpdate = func(acct core.Account) {
		fmt.Fprintln(a.out, renderAccountLine(acct))
	}

	if cfg.Sync.BaseURL != "" {
		a.sync = cloudsync.NewEngine(s, cloudsync.NewClient(cfg.Sync.BaseURL, client), secrets, cfg.Sync.AppID)
	}
	return a
}

func (a *app) Close() error {
	return a.store.Close()
}

// syncEngine returns the engine or explains how to enable sync.
func (a *app) syncEngine() (*cloudsync.Engine, error) {
	if a.sync == nil {
		return nil, fmt.Errorf("cloud sync is not configured: set [sync] base_url in %s", config.ConfigPath())
	}
	return a.sync, nil
}

// resumeSync re-hydrates a saved session and reconciles, the way a fresh
// start picks up where the last one left off. Failures are reported, never
// fatal.
func (a *app) resumeSync(ctx context.Context) {
	if a.sync == nil {
		return
	}
	ok, err := a.sync.Restore(ctx)
	if err != nil || !ok {
		return
	}
	if _, err := a.sync.Reconcile(ctx); err != nil {
		log.Printf("cli level=warn event=startup_sync_failed err=%v", err)
		fmt.Fprintln(a.out, warnStyle.Render("sync: "+err.Error()))
	}
}

func (a *app) showAccounts(ctx context.Context) error {
	list, err := a.accounts.List(ctx)
	if err != nil {
		return err
	}
	rng, err := a.settings.UsageRange(ctx)
	if err != nil {
		return err
	}
	fmt.Fprint(a.out, renderAccounts(list, rng))
	return nil
}
