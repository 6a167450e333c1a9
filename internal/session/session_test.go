package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novelshare/novelsync/internal/domain"
	nslog "github.com/novelshare/novelsync/internal/log"
	"github.com/novelshare/novelsync/internal/store"
)

func newManager(t *testing.T) (*Manager, *store.Store) {
	t.Helper()
	s, err := store.Open(store.Options{Logger: nslog.NullLogger()})
	require.NoError(t, err)
	return New(s, nil, nslog.NullLogger()), s
}

func TestGuestByDefault(t *testing.T) {
	m, _ := newManager(t)
	assert.True(t, m.IsGuest())

	m.SetGuestMode(false)
	assert.False(t, m.IsGuest())
}

func TestSwitchModeRoundTrip(t *testing.T) {
	m, s := newManager(t)

	guestLib := []domain.LibraryItem{{NovelID: "guest-novel", Title: "Guest pick"}}
	require.True(t, s.SetJSON(store.KeyLibrary, guestLib))

	// guest -> user: user namespace has no backup, so user starts empty
	m.SwitchMode(false)
	assert.False(t, m.IsGuest())
	var items []domain.LibraryItem
	assert.False(t, s.GetJSON(store.KeyLibrary, &items))

	userLib := []domain.LibraryItem{{NovelID: "user-novel", Title: "User pick"}}
	require.True(t, s.SetJSON(store.KeyLibrary, userLib))

	// user -> guest: guest data comes back intact
	m.SwitchMode(true)
	items = nil
	require.True(t, s.GetJSON(store.KeyLibrary, &items))
	assert.Equal(t, guestLib, items)

	// guest -> user again: user data comes back intact
	m.SwitchMode(false)
	items = nil
	require.True(t, s.GetJSON(store.KeyLibrary, &items))
	assert.Equal(t, userLib, items)
}

func TestSwitchModeNoOpWhenSame(t *testing.T) {
	m, s := newManager(t)
	require.True(t, s.SetJSON(store.KeyLibrary, []domain.LibraryItem{{NovelID: "n"}}))

	m.SwitchMode(true) // already guest
	var items []domain.LibraryItem
	require.True(t, s.GetJSON(store.KeyLibrary, &items))
	assert.Len(t, items, 1)
}

func TestInitGuestSessionStartsEmpty(t *testing.T) {
	m, s := newManager(t)
	s.SetJSON(store.KeyLibrary, []domain.LibraryItem{{NovelID: "n"}})
	s.Set(domain.NamespaceGuest.Prefix()+store.KeyLibrary, `[{"novelId":"old-backup"}]`)

	m.InitGuestSession()

	assert.True(t, m.IsGuest())
	var items []domain.LibraryItem
	assert.False(t, s.GetJSON(store.KeyLibrary, &items), "guest sessions always start empty")
	_, ok := s.Get(domain.NamespaceGuest.Prefix() + store.KeyLibrary)
	assert.False(t, ok, "stale guest backups are discarded")
}

func TestLogoutClearsUserDataKeepsProfile(t *testing.T) {
	m, s := newManager(t)
	m.SetGuestMode(false)

	s.SetJSON(store.KeyLibrary, []domain.LibraryItem{{NovelID: "n"}})
	s.SetJSON(store.KeyHistory, []domain.HistoryEntry{{NovelID: "n"}})
	s.Set(domain.NamespaceUser.Prefix()+store.KeyLibrary, `[]`)
	m.SaveCredentials("reader@example.com", "reader")
	m.SaveProfile(domain.Profile{ID: "u1", Username: "reader", Email: "reader@example.com"})

	m.Logout(context.Background())

	assert.True(t, m.IsGuest())
	for _, key := range store.IsolatedKeys {
		_, ok := s.Get(key)
		assert.False(t, ok, "isolated key %s must be cleared", key)
		_, ok = s.Get(domain.NamespaceUser.Prefix() + key)
		assert.False(t, ok, "user backup of %s must be cleared", key)
		_, ok = s.Get(domain.NamespaceGuest.Prefix() + key)
		assert.False(t, ok, "guest backup of %s must be cleared", key)
	}
	_, ok := m.Credentials()
	assert.False(t, ok)

	profile, ok := m.Profile()
	assert.True(t, ok, "profile survives logout")
	assert.Equal(t, "reader", profile.Username)
}

func TestCredentialsRoundTrip(t *testing.T) {
	m, _ := newManager(t)

	_, ok := m.Credentials()
	assert.False(t, ok)

	m.SaveCredentials("reader@example.com", "reader")
	creds, ok := m.Credentials()
	require.True(t, ok)
	assert.Equal(t, "reader@example.com", creds.Email)
	assert.Equal(t, "reader", creds.Username)
	assert.NotZero(t, creds.SavedAt)
}
