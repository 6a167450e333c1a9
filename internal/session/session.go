// Package session manages identity mode (guest vs. authenticated) and the
// isolation of local data between the two. Each mode owns its own copies of
// the isolated keys; switching modes backs up the outgoing copies under a
// namespace prefix and restores the incoming ones.
package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/novelshare/novelsync/internal/domain"
	"github.com/novelshare/novelsync/internal/store"
)

// Manager owns mode switching, credential hints, and the cached profile.
type Manager struct {
	store    domain.Store
	identity domain.Identity
	logger   *slog.Logger
}

func New(s domain.Store, identity domain.Identity, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: s, identity: identity, logger: logger}
}

// IsGuest reports whether the client is in guest mode. Unset means guest.
func (m *Manager) IsGuest() bool {
	v, ok := m.store.Get(store.KeyGuestMode)
	if !ok {
		return true
	}
	return v != "false"
}

// SetGuestMode records the current mode flag without moving any data.
func (m *Manager) SetGuestMode(guest bool) {
	if guest {
		m.store.Set(store.KeyGuestMode, "true")
	} else {
		m.store.Set(store.KeyGuestMode, "false")
	}
}

func (m *Manager) namespace() domain.Namespace {
	if m.IsGuest() {
		return domain.NamespaceGuest
	}
	return domain.NamespaceUser
}

// SwitchMode moves the client between guest and authenticated mode: the
// active copies of the isolated keys are backed up under the outgoing
// namespace's prefix, then the incoming namespace's backups are restored. A
// namespace with no backup starts empty.
func (m *Manager) SwitchMode(toGuest bool) {
	from := m.namespace()
	to := domain.NamespaceGuest
	if !toGuest {
		to = domain.NamespaceUser
	}
	if from == to {
		return
	}

	m.backup(from)
	m.restore(to)
	m.SetGuestMode(toGuest)
	m.logger.Info("identity mode switched", "from", from.String(), "to", to.String())
}

// backup copies the active isolated keys under the namespace's prefix.
// An absent active key clears the corresponding backup so stale data from an
// earlier session cannot resurface.
func (m *Manager) backup(ns domain.Namespace) {
	for _, key := range store.IsolatedKeys {
		backupKey := ns.Prefix() + key
		if v, ok := m.store.Get(key); ok {
			m.store.Set(backupKey, v)
		} else {
			m.store.Remove(backupKey)
		}
	}
}

// restore replaces the active isolated keys with the namespace's backups.
func (m *Manager) restore(ns domain.Namespace) {
	for _, key := range store.IsolatedKeys {
		if v, ok := m.store.Get(ns.Prefix() + key); ok {
			m.store.Set(key, v)
		} else {
			m.store.Remove(key)
		}
	}
}

// InitGuestSession starts a pristine guest session: guest data always begins
// empty, and any lingering guest backups are discarded.
func (m *Manager) InitGuestSession() {
	for _, key := range store.IsolatedKeys {
		m.store.Remove(key)
		m.store.Remove(domain.NamespaceGuest.Prefix() + key)
	}
	m.SetGuestMode(true)
	m.logger.Info("guest session initialized")
}

// Logout signs out remotely (best effort), then clears credentials, active
// isolated keys, and both namespaces' backups. The cached profile survives so
// the UI can still show who was last signed in; the next login overwrites it.
func (m *Manager) Logout(ctx context.Context) {
	if m.identity != nil {
		if err := m.identity.SignOut(ctx); err != nil {
			m.logger.Warn("remote sign-out failed", "error", err)
		}
	}

	m.store.Remove(store.KeyCredentials)
	for _, key := range store.IsolatedKeys {
		m.store.Remove(key)
		m.store.Remove(domain.NamespaceGuest.Prefix() + key)
		m.store.Remove(domain.NamespaceUser.Prefix() + key)
	}
	m.SetGuestMode(true)
	m.logger.Info("logged out, local user data cleared")
}

// SaveCredentials stores the sign-in hint shown on the next login screen.
// Never the password.
func (m *Manager) SaveCredentials(email, username string) {
	m.store.SetJSON(store.KeyCredentials, domain.Credentials{
		Email:    email,
		Username: username,
		SavedAt:  time.Now().UnixMilli(),
	})
}

// Credentials returns the saved sign-in hint, if any.
func (m *Manager) Credentials() (domain.Credentials, bool) {
	var creds domain.Credentials
	ok := m.store.GetJSON(store.KeyCredentials, &creds)
	return creds, ok && creds.Email != ""
}

// SaveProfile caches the signed-in user's display snapshot.
func (m *Manager) SaveProfile(p domain.Profile) {
	m.store.SetJSON(store.KeyProfile, p)
}

// Profile returns the cached profile snapshot, if any.
func (m *Manager) Profile() (domain.Profile, bool) {
	var p domain.Profile
	ok := m.store.GetJSON(store.KeyProfile, &p)
	return p, ok && p.ID != ""
}
