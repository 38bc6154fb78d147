package cloudsync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/janekbaraniewski/spendboard/internal/core"
	"github.com/janekbaraniewski/spendboard/internal/store"
)

// Engine drives one sync profile through login, reconciliation and logout.
// Operations are serialized.
type Engine struct {
	store   store.Store
	client  *Client
	secrets SecretStore
	apps    string

	Now func() time.Time

	mu      sync.Mutex
	state   State
	lastErr error
}

func NewEngine(s store.Store, client *Client, secrets SecretStore, apps string) *Engine {
	return &Engine{
		store:   s,
		client:  client,
		secrets: secrets,
		apps:    apps,
		Now:     time.Now,
		state:   StateAnonymous,
	}
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Profile returns the stored profile; the zero Profile when none is saved.
func (e *Engine) Profile(ctx context.Context) (Profile, error) {
	var p Profile
	if _, err := store.GetJSON(ctx, e.store, store.KeySyncProfile, &p); err != nil {
		if errors.Is(err, store.ErrCorrupt) {
			log.Printf("cloudsync level=warn event=corrupt_profile err=%v", err)
			return Profile{}, nil
		}
		return Profile{}, err
	}
	return p, nil
}

// Meta returns the last reconciliation record, or nil if none exists.
func (e *Engine) Meta(ctx context.Context) (*Meta, error) {
	var m Meta
	ok, err := store.GetJSON(ctx, e.store, store.KeySyncMeta, &m)
	if err != nil {
		if errors.Is(err, store.ErrCorrupt) {
			return nil, nil
		}
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (e *Engine) Status(ctx context.Context) (Status, error) {
	p, err := e.Profile(ctx)
	if err != nil {
		return Status{}, err
	}
	m, err := e.Meta(ctx)
	if err != nil {
		return Status{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	st := Status{State: e.state, Profile: p, Meta: m}
	if e.lastErr != nil {
		st.LastError = e.lastErr.Error()
	}
	return st, nil
}

// Register creates a remote profile. A password key returned by the server is
// stored on the local profile.
func (e *Engine) Register(ctx context.Context, email, password string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return &core.ValidationError{Field: "email", Message: "email and password are required"}
	}

	resp, err := e.client.Register(ctx, email, password, e.apps)
	if err != nil {
		return e.fail("register", err)
	}
	p := Profile{Email: email, Apps: e.apps, PasswordKey: resp.PasswordKey, Session: resp.Session}
	if err := e.saveProfile(ctx, p); err != nil {
		return err
	}
	log.Printf("cloudsync level=info event=registered email=%s", email)
	return nil
}

// Login authenticates, persists the password key in the profile and the
// secret store, then reconciles.
func (e *Engine) Login(ctx context.Context, email, password string) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Result{}, &core.ValidationError{Field: "email", Message: "email and password are required"}
	}

	e.state = StateLoggingIn
	resp, err := e.client.Login(ctx, email, password, e.apps)
	if err != nil {
		return Result{}, e.fail("login", err)
	}

	p := Profile{Email: email, Apps: e.apps, PasswordKey: resp.PasswordKey, Session: resp.Session}
	if err := e.saveProfile(ctx, p); err != nil {
		return Result{}, e.fail("login", err)
	}
	if err := e.secrets.Save(resp.PasswordKey); err != nil {
		log.Printf("cloudsync level=warn event=secret_save_failed err=%v", err)
	}
	log.Printf("cloudsync level=info event=logged_in email=%s", email)

	return e.reconcile(ctx, p)
}

// Reconcile compares local and remote state and uploads, downloads or does
// nothing.
func (e *Engine) Reconcile(ctx context.Context) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.Profile(ctx)
	if err != nil {
		return Result{}, err
	}
	if !p.LoggedIn() {
		return Result{}, core.ErrNotLoggedIn
	}
	return e.reconcile(ctx, p)
}

func (e *Engine) reconcile(ctx context.Context, p Profile) (Result, error) {
	e.state = StateSyncing

	remote, err := e.client.FetchConfig(ctx, p)
	if err != nil {
		return Result{}, e.fail("fetch", err)
	}
	local, err := BuildSnapshot(ctx, e.store)
	if err != nil {
		return Result{}, e.fail("snapshot", err)
	}
	meta, err := e.Meta(ctx)
	if err != nil {
		return Result{}, e.fail("snapshot", err)
	}

	remoteSnap := snapshotFrom(remote.Data)
	remoteTS := ParseTimestamp(remote.LastSync)
	var localTS int64
	if meta != nil && meta.ServerTimestamp != nil {
		localTS = ParseTimestamp(*meta.ServerTimestamp)
	}

	res := Result{
		Outcome:         decide(local, remoteSnap, localTS, remoteTS),
		RemoteTimestamp: millisToTime(remoteTS),
		LocalTimestamp:  millisToTime(localTS),
	}
	log.Printf("cloudsync level=info event=reconcile outcome=%s local_keys=%d remote_keys=%d local_ts=%d remote_ts=%d",
		res.Outcome, len(local), len(remoteSnap), localTS, remoteTS)

	switch res.Outcome {
	case OutcomeDownload:
		if err := ApplySnapshot(ctx, e.store, remoteSnap); err != nil {
			return Result{}, e.fail("download", err)
		}
		var serverTS *string
		if remoteTS > 0 {
			s := formatTimestamp(remoteTS)
			serverTS = &s
		}
		if err := e.saveMeta(ctx, DirectionDownload, serverTS); err != nil {
			return Result{}, e.fail("download", err)
		}
		res.Keys = len(remoteSnap)
	case OutcomeUpload:
		if err := e.client.PushConfig(ctx, p, local); err != nil {
			return Result{}, e.fail("upload", err)
		}
		now := formatTimestamp(e.now().UnixMilli())
		if err := e.saveMeta(ctx, DirectionUpload, &now); err != nil {
			return Result{}, e.fail("upload", err)
		}
		res.Keys = len(local)
	}

	e.state = StateReconciled
	e.lastErr = nil
	return res, nil
}

// decide picks the reconciliation outcome. Content equality wins over
// timestamps so that a fresh upload never bounces back as a download.
func decide(local, remote Snapshot, localTS, remoteTS int64) Outcome {
	switch {
	case len(remote) > 0 && CanonicalEqual(local, remote):
		return OutcomeNoop
	case len(remote) > 0 && remoteTS > localTS:
		return OutcomeDownload
	case len(local) == 0 && len(remote) > 0:
		return OutcomeDownload
	case len(local) == 0:
		return OutcomeNoData
	default:
		return OutcomeUpload
	}
}

// Logout uploads local changes when they differ from the remote copy, then
// forgets the password key. Upload problems are reported in the result and
// never prevent the logout.
func (e *Engine) Logout(ctx context.Context) (LogoutResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.Profile(ctx)
	if err != nil {
		return LogoutResult{}, err
	}

	var res LogoutResult
	if p.LoggedIn() {
		res = e.flush(ctx, p)
	}

	// Both copies of the password key go, even when one of the writes fails.
	p.PasswordKey = ""
	p.Session = nil
	clearErr := e.secrets.Clear()
	if clearErr != nil {
		log.Printf("cloudsync level=warn event=secret_clear_failed err=%v", clearErr)
	}
	saveErr := e.saveProfile(ctx, p)
	if saveErr != nil {
		log.Printf("cloudsync level=warn event=profile_clear_failed err=%v", saveErr)
	}
	e.state = StateAnonymous
	e.lastErr = nil
	log.Printf("cloudsync level=info event=logged_out email=%s uploaded=%t", p.Email, res.Uploaded)
	return res, errors.Join(clearErr, saveErr)
}

func (e *Engine) flush(ctx context.Context, p Profile) LogoutResult {
	local, err := BuildSnapshot(ctx, e.store)
	if err != nil {
		return LogoutResult{UploadErr: &core.SyncError{Step: "snapshot", Err: err}}
	}
	remote, err := e.client.FetchConfig(ctx, p)
	if err != nil {
		return LogoutResult{UploadErr: &core.SyncError{Step: "fetch", Err: err}}
	}
	if len(local) == 0 || CanonicalEqual(local, snapshotFrom(remote.Data)) {
		return LogoutResult{}
	}
	if err := e.client.PushConfig(ctx, p, local); err != nil {
		return LogoutResult{UploadErr: &core.SyncError{Step: "upload", Err: err}}
	}
	now := formatTimestamp(e.now().UnixMilli())
	if err := e.saveMeta(ctx, DirectionUpload, &now); err != nil {
		log.Printf("cloudsync level=warn event=meta_save_failed err=%v", err)
	}
	return LogoutResult{Uploaded: true}
}

// Restore puts a password key kept in the secret store back onto a profile
// that lost it. It reports whether the profile is signed in afterwards.
func (e *Engine) Restore(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.Profile(ctx)
	if err != nil {
		return false, err
	}
	if p.LoggedIn() {
		return true, nil
	}
	if p.Email == "" {
		return false, nil
	}

	key, err := e.secrets.Load()
	if err != nil {
		log.Printf("cloudsync level=warn event=secret_load_failed err=%v", err)
		return false, nil
	}
	if key == "" {
		return false, nil
	}
	p.PasswordKey = key
	if err := e.saveProfile(ctx, p); err != nil {
		return false, err
	}
	log.Printf("cloudsync level=info event=session_restored email=%s", p.Email)
	return true, nil
}

func (e *Engine) saveProfile(ctx context.Context, p Profile) error {
	if err := store.SetJSON(ctx, e.store, store.KeySyncProfile, p); err != nil {
		return fmt.Errorf("saving sync profile: %w", err)
	}
	return nil
}

func (e *Engine) saveMeta(ctx context.Context, dir Direction, serverTS *string) error {
	return store.SetJSON(ctx, e.store, store.KeySyncMeta, Meta{
		Direction:       dir,
		LocalTimestamp:  e.now().UnixMilli(),
		ServerTimestamp: serverTS,
	})
}

func (e *Engine) fail(step string, err error) error {
	wrapped := &core.SyncError{Step: step, Err: err}
	e.state = StateFailed
	e.lastErr = wrapped
	log.Printf("cloudsync level=warn event=sync_failed step=%s err=%v", step, err)
	return wrapped
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}
