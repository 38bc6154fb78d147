package cloudsync

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/janekbaraniewski/spendboard/internal/core"
	"github.com/janekbaraniewski/spendboard/internal/providers/shared"
	"github.com/janekbaraniewski/spendboard/internal/store"
)

const (
	testApps        = "spendboard"
	testPasswordKey = "pk-123"
)

// fakeBackend is an in-memory profile store speaking the sync protocol.
type fakeBackend struct {
	mu        sync.Mutex
	data      any
	lastSync  any
	pushes    int
	failFetch bool
	failPush  bool
	pushedAt  string
}

func (b *fakeBackend) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/register", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","password_key":"` + testPasswordKey + `"}`))
	})
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "hunter2" || body["apps"] != testApps {
			w.Write([]byte(`{"status":"error","message":"invalid credentials"}`))
			return
		}
		w.Write([]byte(`{"status":"success","password_key":"` + testPasswordKey + `","session":{"token":"abc"}}`))
	})
	mux.HandleFunc("GET /config/app", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.failFetch || r.URL.Query().Get("password_key") != testPasswordKey {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"data": b.data, "last_sync": b.lastSync})
	})
	mux.HandleFunc("POST /config/app", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.failPush {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var body struct {
			PasswordKey string         `json:"password_key"`
			AppData     map[string]any `json:"app_data"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, testPasswordKey, body.PasswordKey)
		b.data = body.AppData
		b.lastSync = b.pushedAt
		b.pushes++
		w.Write([]byte(`{}`))
	})
	return mux
}

func (b *fakeBackend) seed(data, lastSync any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = data
	b.lastSync = lastSync
}

func (b *fakeBackend) fail(fetch, push bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failFetch = fetch
	b.failPush = push
}

func (b *fakeBackend) snapshot() (any, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.data, b.pushes
}

type harness struct {
	engine  *Engine
	store   *store.Memory
	backend *fakeBackend
	secrets *KeyringSecrets
	now     time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	keyring.MockInit()

	h := &harness{
		store:   store.NewMemory(),
		backend: &fakeBackend{pushedAt: "2026-10-17T10:00:05Z"},
		now:     time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC),
	}
	srv := httptest.NewServer(h.backend.handler(t))
	t.Cleanup(srv.Close)

	h.secrets = NewKeyringSecrets("spendboard-sync-test", DefaultSecretTTL)
	h.secrets.Now = func() time.Time { return h.now }
	h.engine = NewEngine(h.store, NewClient(srv.URL, shared.NewClient()), h.secrets, testApps)
	h.engine.Now = func() time.Time { return h.now }
	return h
}

func (h *harness) set(t *testing.T, key store.Key, value string) {
	t.Helper()
	require.NoError(t, h.store.Set(context.Background(), key, value))
}

func (h *harness) signIn(t *testing.T) {
	t.Helper()
	require.NoError(t, store.SetJSON(context.Background(), h.store, store.KeySyncProfile,
		Profile{Email: "me@example.com", Apps: testApps, PasswordKey: testPasswordKey}))
}

func (h *harness) setMeta(t *testing.T, serverTS string) {
	t.Helper()
	require.NoError(t, store.SetJSON(context.Background(), h.store, store.KeySyncMeta,
		Meta{Direction: DirectionUpload, ServerTimestamp: &serverTS}))
}

func (h *harness) local(t *testing.T) Snapshot {
	t.Helper()
	snap, err := BuildSnapshot(context.Background(), h.store)
	require.NoError(t, err)
	return snap
}

func TestLogin_EmptyLocalDownloadsRemote(t *testing.T) {
	h := newHarness(t)
	remote := map[string]any{
		"openai_accounts_v1": []any{map[string]any{"id": "a", "name": "prod", "adminKey": "sk"}},
		"openai_usage_range": "1m",
	}
	h.backend.seed(remote, "2026-10-16T08:00:00Z")

	res, err := h.engine.Login(context.Background(), "me@example.com", "hunter2")
	require.NoError(t, err)

	assert.Equal(t, OutcomeDownload, res.Outcome)
	assert.Equal(t, StateReconciled, h.engine.State())
	assert.True(t, CanonicalEqual(remote, h.local(t)))

	meta, err := h.engine.Meta(context.Background())
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, DirectionDownload, meta.Direction)
	require.NotNil(t, meta.ServerTimestamp)
	assert.Equal(t, "2026-10-16T08:00:00Z", *meta.ServerTimestamp)

	p, err := h.engine.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testPasswordKey, p.PasswordKey)
	assert.JSONEq(t, `{"token":"abc"}`, string(p.Session))

	key, err := h.secrets.Load()
	require.NoError(t, err)
	assert.Equal(t, testPasswordKey, key)
}

func TestLogin_RejectedCredentials(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.Login(context.Background(), "me@example.com", "wrong")
	var se *core.SyncError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "login", se.Step)
	assert.Contains(t, err.Error(), "invalid credentials")
	assert.Equal(t, StateFailed, h.engine.State())

	p, err := h.engine.Profile(context.Background())
	require.NoError(t, err)
	assert.False(t, p.LoggedIn())
}

func TestReconcile_EqualContentIsNoop(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	h.set(t, store.KeyAccounts, `[{"name":"prod","id":"a"}]`)
	h.set(t, store.KeyUsageRange, "7d")
	h.setMeta(t, "2026-10-01T00:00:00Z")
	h.backend.seed(map[string]any{
		"openai_usage_range": "7d",
		"openai_accounts_v1": []any{map[string]any{"id": "a", "name": "prod"}},
	}, "2026-10-17T00:00:00Z")

	res, err := h.engine.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoop, res.Outcome)

	_, pushes := h.backend.snapshot()
	assert.Zero(t, pushes)
}

func TestReconcile_LocalDataRemoteAbsentUploads(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	h.set(t, store.KeyAccounts, `[{"id":"a","name":"prod"}]`)
	h.set(t, store.KeyRelayBase, "http://localhost:8787")
	h.backend.seed(nil, "new-data")

	res, err := h.engine.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpload, res.Outcome)
	assert.Equal(t, 2, res.Keys)

	data, pushes := h.backend.snapshot()
	assert.Equal(t, 1, pushes)
	assert.True(t, CanonicalEqual(h.local(t), data))

	meta, err := h.engine.Meta(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DirectionUpload, meta.Direction)
	assert.Equal(t, h.now.UnixMilli(), ParseTimestamp(*meta.ServerTimestamp))
}

func TestReconcile_RemoteNewerDownloadsAndDropsStaleKeys(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	h.set(t, store.KeyAccounts, `[{"id":"old"}]`)
	h.set(t, store.KeyRelayBase, "http://stale-relay")
	h.setMeta(t, "2026-10-01T00:00:00Z")
	h.backend.seed(map[string]any{"openai_accounts_v1": []any{map[string]any{"id": "new"}}}, float64(time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC).Unix()))

	res, err := h.engine.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeDownload, res.Outcome)

	entries, err := h.store.Entries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"new"}]`, entries[store.KeyAccounts])
	assert.NotContains(t, entries, store.KeyRelayBase)
	assert.Contains(t, entries, store.KeySyncProfile)
}

func TestReconcile_LocalNewerUploads(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	h.set(t, store.KeyUsageRange, "3d")
	h.setMeta(t, "2026-10-16T00:00:00Z")
	h.backend.seed(map[string]any{"openai_usage_range": "7d"}, "2026-10-15T00:00:00Z")

	res, err := h.engine.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpload, res.Outcome)

	data, _ := h.backend.snapshot()
	assert.Equal(t, map[string]any{"openai_usage_range": "3d"}, data)
}

func TestReconcile_NothingAnywhere(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)

	res, err := h.engine.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoData, res.Outcome)

	meta, err := h.engine.Meta(context.Background())
	require.NoError(t, err)
	assert.Nil(t, meta)
	_, pushes := h.backend.snapshot()
	assert.Zero(t, pushes)
}

func TestReconcile_FetchFailureLeavesLocalState(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	h.set(t, store.KeyAccounts, `[{"id":"a"}]`)
	h.backend.fail(true, false)
	before := h.local(t)

	_, err := h.engine.Reconcile(context.Background())
	var se *core.SyncError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "fetch", se.Step)
	assert.Equal(t, http.StatusServiceUnavailable, core.StatusCode(err))
	assert.Equal(t, StateFailed, h.engine.State())
	assert.Equal(t, before, h.local(t))

	st, err := h.engine.Status(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, st.LastError)
}

func TestReconcile_RequiresLogin(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.Reconcile(context.Background())
	assert.True(t, errors.Is(err, core.ErrNotLoggedIn))
}

func TestLogout_UploadsChangesAndForgetsKey(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	require.NoError(t, h.secrets.Save(testPasswordKey))
	h.set(t, store.KeyUsageRange, "1d")
	h.backend.seed(map[string]any{"openai_usage_range": "7d"}, nil)

	res, err := h.engine.Logout(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Uploaded)
	assert.NoError(t, res.UploadErr)

	data, _ := h.backend.snapshot()
	assert.Equal(t, map[string]any{"openai_usage_range": "1d"}, data)

	p, err := h.engine.Profile(context.Background())
	require.NoError(t, err)
	assert.Empty(t, p.PasswordKey)
	assert.Equal(t, "me@example.com", p.Email)
	assert.Equal(t, testApps, p.Apps)
	assert.Equal(t, StateAnonymous, h.engine.State())

	key, err := h.secrets.Load()
	require.NoError(t, err)
	assert.Empty(t, key)
}

func TestLogout_UploadFailureDoesNotBlock(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	h.set(t, store.KeyUsageRange, "1d")
	h.backend.fail(false, true)

	res, err := h.engine.Logout(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Uploaded)
	assert.Error(t, res.UploadErr)

	p, err := h.engine.Profile(context.Background())
	require.NoError(t, err)
	assert.False(t, p.LoggedIn())
}

// profileWriteFailure rejects writes of the sync profile.
type profileWriteFailure struct {
	store.Store
}

func (s profileWriteFailure) Set(ctx context.Context, key store.Key, value string) error {
	if key == store.KeySyncProfile {
		return errors.New("disk full")
	}
	return s.Store.Set(ctx, key, value)
}

func TestLogout_ProfileWriteFailureStillClearsKeyring(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	require.NoError(t, h.secrets.Save(testPasswordKey))
	h.engine.store = profileWriteFailure{Store: h.store}

	_, err := h.engine.Logout(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, StateAnonymous, h.engine.State())

	key, err := h.secrets.Load()
	require.NoError(t, err)
	assert.Empty(t, key)
}

func TestLogout_SkipsUploadWhenEqual(t *testing.T) {
	h := newHarness(t)
	h.signIn(t)
	h.set(t, store.KeyUsageRange, "1d")
	h.backend.seed(map[string]any{"openai_usage_range": "1d"}, nil)

	res, err := h.engine.Logout(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Uploaded)

	_, pushes := h.backend.snapshot()
	assert.Zero(t, pushes)
}

func TestRestore_RehydratesPasswordKey(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, store.SetJSON(context.Background(), h.store, store.KeySyncProfile,
		Profile{Email: "me@example.com", Apps: testApps}))
	require.NoError(t, h.secrets.Save(testPasswordKey))

	ok, err := h.engine.Restore(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	p, err := h.engine.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testPasswordKey, p.PasswordKey)
}

func TestRestore_ExpiredKey(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, store.SetJSON(context.Background(), h.store, store.KeySyncProfile,
		Profile{Email: "me@example.com", Apps: testApps}))
	require.NoError(t, h.secrets.Save(testPasswordKey))
	h.now = h.now.Add(DefaultSecretTTL + time.Minute)

	ok, err := h.engine.Restore(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegister_StoresPasswordKey(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.engine.Register(context.Background(), "me@example.com", "hunter2"))

	p, err := h.engine.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Profile{Email: "me@example.com", Apps: testApps, PasswordKey: testPasswordKey}, p)
}
