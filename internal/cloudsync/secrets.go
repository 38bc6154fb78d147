package cloudsync

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/zalando/go-keyring"
)

const (
	DefaultSecretService = "spendboard-sync"
	DefaultSecretTTL     = 30 * 24 * time.Hour

	secretUser = "password_key"
)

// SecretStore keeps the password key outside the main store so a session
// survives restarts independently of the profile.
type SecretStore interface {
	Load() (string, error)
	Save(passwordKey string) error
	Clear() error
}

type storedSecret struct {
	PasswordKey string    `json:"password_key"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// KeyringSecrets stores the password key in the OS keychain with an expiry.
type KeyringSecrets struct {
	Service string
	TTL     time.Duration
	Now     func() time.Time
}

func NewKeyringSecrets(service string, ttl time.Duration) *KeyringSecrets {
	if service == "" {
		service = DefaultSecretService
	}
	if ttl <= 0 {
		ttl = DefaultSecretTTL
	}
	return &KeyringSecrets{Service: service, TTL: ttl, Now: time.Now}
}

// Load returns the stored key, or "" when none is stored or it has expired.
func (k *KeyringSecrets) Load() (string, error) {
	raw, err := keyring.Get(k.Service, secretUser)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading keyring: %w", err)
	}

	var s storedSecret
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		log.Printf("cloudsync level=warn event=secret_corrupt err=%v", err)
		return "", k.Clear()
	}
	if !s.ExpiresAt.After(k.now()) {
		log.Printf("cloudsync level=info event=secret_expired expires_at=%s", s.ExpiresAt.Format(time.RFC3339))
		return "", k.Clear()
	}
	return s.PasswordKey, nil
}

func (k *KeyringSecrets) Save(passwordKey string) error {
	data, err := json.Marshal(storedSecret{PasswordKey: passwordKey, ExpiresAt: k.now().Add(k.TTL)})
	if err != nil {
		return err
	}
	if err := keyring.Set(k.Service, secretUser, string(data)); err != nil {
		return fmt.Errorf("writing keyring: %w", err)
	}
	return nil
}

func (k *KeyringSecrets) Clear() error {
	err := keyring.Delete(k.Service, secretUser)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("clearing keyring: %w", err)
	}
	return nil
}

func (k *KeyringSecrets) now() time.Time {
	if k.Now == nil {
		return time.Now()
	}
	return k.Now()
}
