// Package cloudsync mirrors the local key-value state to a remote profile
// store keyed by email and app id, resolving differences last-write-wins.
package cloudsync

import (
	"encoding/json"
	"time"
)

// Profile is the signed-in sync identity.
type Profile struct {
	Email       string `json:"email"`
	Apps        string `json:"apps"`
	PasswordKey string `json:"passwordKey,omitempty"`
	// Session is whatever the backend returned at login; it is kept opaque.
	Session json.RawMessage `json:"session,omitempty"`
}

func (p Profile) LoggedIn() bool {
	return p.Email != "" && p.PasswordKey != ""
}

type Direction string

const (
	DirectionUpload   Direction = "upload"
	DirectionDownload Direction = "download"
)

// Meta records the last reconciliation outcome.
type Meta struct {
	Direction       Direction `json:"direction"`
	LocalTimestamp  int64     `json:"localTimestamp"`
	ServerTimestamp *string   `json:"serverTimestamp"`
}

type State string

const (
	StateAnonymous  State = "anonymous"
	StateLoggingIn  State = "logging_in"
	StateSyncing    State = "syncing"
	StateReconciled State = "reconciled"
	StateFailed     State = "failed"
)

type Outcome string

const (
	OutcomeNoop     Outcome = "noop"
	OutcomeDownload Outcome = "download"
	OutcomeUpload   Outcome = "upload"
	OutcomeNoData   Outcome = "no_data"
)

// Result describes one reconciliation.
type Result struct {
	Outcome         Outcome
	Keys            int
	RemoteTimestamp time.Time
	LocalTimestamp  time.Time
}

// LogoutResult reports the best-effort upload performed before signing out.
type LogoutResult struct {
	Uploaded  bool
	UploadErr error
}

// Status is a point-in-time view of the engine for display.
type Status struct {
	State     State
	Profile   Profile
	Meta      *Meta
	LastError string
}
