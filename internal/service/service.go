// Package service implements the user-facing collection operations on top of
// the local store and the sync engine. Every read is served locally; every
// mutation is applied locally first and then pushed (or queued) through the
// engine, except in guest mode, where mutations stay local.
package service

import (
	"context"
	"log/slog"

	"github.com/novelshare/novelsync/internal/domain"
	"github.com/novelshare/novelsync/internal/session"
	"github.com/novelshare/novelsync/internal/sync"
)

type base struct {
	store    domain.Store
	engine   *sync.Engine
	session  *session.Manager
	identity domain.Identity
	logger   *slog.Logger
}

func newBase(s domain.Store, e *sync.Engine, sess *session.Manager, id domain.Identity, logger *slog.Logger) base {
	if logger == nil {
		logger = slog.Default()
	}
	return base{store: s, engine: e, session: sess, identity: id, logger: logger}
}

// userID resolves the id pushes are scoped to. Empty in guest mode or when
// signed out, which makes the engine skip the push.
func (b *base) userID(ctx context.Context) string {
	if b.session != nil && b.session.IsGuest() {
		return ""
	}
	if b.identity == nil {
		return ""
	}
	user, err := b.identity.CurrentUser(ctx)
	if err != nil || user == nil {
		return ""
	}
	return user.ID
}
