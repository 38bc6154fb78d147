// Package refresh fetches balances for stored accounts and writes the outcome
// back onto each account record. Vendor failures never escape: they are
// stored on the account as a short status string.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/janekbaraniewski/spendboard/internal/accounts"
	"github.com/janekbaraniewski/spendboard/internal/core"
	"github.com/janekbaraniewski/spendboard/internal/settings"
)

const corsHint = " • CORS blocked: set a relay with `spendboard relay base <url>`"

// ProviderResolver is satisfied by *providers.Registry.
type ProviderResolver interface {
	ForVendor(core.Vendor) (core.BalanceProvider, error)
}

type Refresher struct {
	accounts  *accounts.Repository
	settings  *settings.Settings
	providers ProviderResolver

	// IP is consulted when a Grok fetch fails. Nil disables the hint.
	IP IPLookup
	// OnUpdate runs after every account write, in refresh order.
	OnUpdate func(core.Account)
	Now      func() time.Time

	locks keyedMutex
}

func New(repo *accounts.Repository, prefs *settings.Settings, resolver ProviderResolver) *Refresher {
	return &Refresher{
		accounts:  repo,
		settings:  prefs,
		providers: resolver,
		Now:       time.Now,
	}
}

// RefreshOne fetches and stores the balance of one account. The returned
// error covers only storage problems and unknown ids; vendor failures end up
// in the account's Error field.
func (r *Refresher) RefreshOne(ctx context.Context, id string) (core.Account, error) {
	acct, _, err := r.refreshOne(ctx, id)
	return acct, err
}

// refreshOne reports removed when the account disappeared while its fetch
// was in flight. The pre-fetch record is returned in that case.
func (r *Refresher) refreshOne(ctx context.Context, id string) (_ core.Account, removed bool, _ error) {
	unlock := r.locks.lock(id)
	defer unlock()

	acct, err := r.accounts.Get(ctx, id)
	if err != nil {
		return core.Account{}, false, err
	}

	relayBase, err := r.settings.RelayBase(ctx)
	if err != nil {
		return core.Account{}, false, err
	}
	rng, err := r.settings.UsageRange(ctx)
	if err != nil {
		return core.Account{}, false, err
	}

	now := r.now()
	bal, fetchErr := r.fetch(ctx, acct, core.FetchRequest{
		Account:   acct,
		RelayBase: relayBase,
		Range:     rng,
		Now:       now,
	})

	var status string
	if fetchErr != nil {
		status = r.describeFailure(ctx, acct, relayBase, fetchErr)
		log.Printf("refresh level=warn event=account_failed id=%s vendor=%s err=%v", acct.ID, acct.Vendor, fetchErr)
	} else {
		log.Printf("refresh level=info event=account_refreshed id=%s vendor=%s partial=%t", acct.ID, acct.Vendor, bal.Partial)
	}

	err = r.accounts.Update(ctx, id, func(a *core.Account) {
		a.LastUpdated = &now
		if fetchErr != nil {
			a.Error = status
			return
		}
		b := bal
		a.Balance = &b
		a.Error = ""
	})
	if err != nil {
		return core.Account{}, false, err
	}

	updated, err := r.accounts.Get(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		log.Printf("refresh level=info event=account_removed_during_refresh id=%s", id)
		return acct, true, nil
	}
	if err != nil {
		return core.Account{}, false, err
	}
	if r.OnUpdate != nil {
		r.OnUpdate(updated)
	}
	return updated, false, nil
}

// RefreshAll refreshes every account one after another, so each result is
// stored and reported before the next fetch starts.
func (r *Refresher) RefreshAll(ctx context.Context) ([]core.Account, error) {
	list, err := r.accounts.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.Account, 0, len(list))
	for _, acct := range list {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		updated, removed, err := r.refreshOne(ctx, acct.ID)
		if errors.Is(err, core.ErrNotFound) {
			continue
		}
		if err != nil {
			return out, fmt.Errorf("refreshing %s: %w", acct.ID, err)
		}
		if removed {
			continue
		}
		out = append(out, updated)
	}
	return out, nil
}

func (r *Refresher) fetch(ctx context.Context, acct core.Account, req core.FetchRequest) (core.Balance, error) {
	provider, err := r.providers.ForVendor(acct.Vendor)
	if err != nil {
		return core.Balance{}, err
	}
	return provider.FetchBalance(ctx, req)
}

func (r *Refresher) describeFailure(ctx context.Context, acct core.Account, relayBase string, err error) string {
	msg := err.Error()
	if relayBase == "" && core.IsTransport(err) {
		msg += corsHint
	}
	if acct.Vendor == core.VendorGrok && r.IP != nil {
		if ip := r.IP(context.WithoutCancel(ctx)); ip != "" {
			msg += " • whitelist IP " + ip
		}
	}
	return msg
}

func (r *Refresher) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}
