// Package accounts owns the persisted account list. Every mutation reads the
// full list, patches it and writes it back.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/janekbaraniewski/spendboard/internal/core"
	"github.com/janekbaraniewski/spendboard/internal/store"
)

type Repository struct {
	store store.Store
	newID func() string

	// mu guards read-modify-write cycles on the account list.
	mu sync.Mutex
}

func NewRepository(s store.Store) *Repository {
	return &Repository{store: s, newID: uuid.NewString}
}

// List returns the stored accounts. A missing or corrupt list reads as empty.
func (r *Repository) List(ctx context.Context) ([]core.Account, error) {
	var list []core.Account
	if _, err := store.GetJSON(ctx, r.store, store.KeyAccounts, &list); err != nil {
		if errors.Is(err, store.ErrCorrupt) {
			log.Printf("accounts level=warn event=corrupt_list err=%v", err)
			return []core.Account{}, nil
		}
		return nil, err
	}
	if list == nil {
		list = []core.Account{}
	}
	return list, nil
}

func (r *Repository) Get(ctx context.Context, id string) (core.Account, error) {
	list, err := r.List(ctx)
	if err != nil {
		return core.Account{}, err
	}
	acct, ok := lo.Find(list, func(a core.Account) bool { return a.ID == id })
	if !ok {
		return core.Account{}, fmt.Errorf("account %s: %w", id, core.ErrNotFound)
	}
	return acct, nil
}

// Add validates and appends a new account, assigning it a fresh id.
func (r *Repository) Add(ctx context.Context, acct core.Account) (core.Account, error) {
	acct.Name = strings.TrimSpace(acct.Name)
	acct.Credential = strings.TrimSpace(acct.Credential)
	acct.TeamID = strings.TrimSpace(acct.TeamID)
	if err := acct.Validate(); err != nil {
		return core.Account{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	list, err := r.List(ctx)
	if err != nil {
		return core.Account{}, err
	}
	acct.ID = r.newID()
	for lo.ContainsBy(list, func(a core.Account) bool { return a.ID == acct.ID }) {
		acct.ID = r.newID()
	}
	acct.LastUpdated = nil
	acct.Balance = nil
	acct.Error = ""

	list = append(list, acct)
	if err := r.save(ctx, list); err != nil {
		return core.Account{}, err
	}
	return acct, nil
}

// Update applies patch to the account with the given id. A missing id is
// not an error: the account may have been removed while a refresh was in
// flight.
func (r *Repository) Update(ctx context.Context, id string, patch func(*core.Account)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list, err := r.List(ctx)
	if err != nil {
		return err
	}
	_, idx, ok := lo.FindIndexOf(list, func(a core.Account) bool { return a.ID == id })
	if !ok {
		return nil
	}
	patch(&list[idx])
	list[idx].ID = id
	return r.save(ctx, list)
}

func (r *Repository) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list, err := r.List(ctx)
	if err != nil {
		return err
	}
	next := lo.Reject(list, func(a core.Account, _ int) bool { return a.ID == id })
	if len(next) == len(list) {
		return fmt.Errorf("account %s: %w", id, core.ErrNotFound)
	}
	return r.save(ctx, next)
}

func (r *Repository) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.save(ctx, []core.Account{})
}

func (r *Repository) save(ctx context.Context, list []core.Account) error {
	if err := store.SetJSON(ctx, r.store, store.KeyAccounts, list); err != nil {
		return fmt.Errorf("saving accounts: %w", err)
	}
	return nil
}
