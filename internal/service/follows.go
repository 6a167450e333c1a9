package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/novelshare/novelsync/internal/domain"
	"github.com/novelshare/novelsync/internal/session"
	"github.com/novelshare/novelsync/internal/store"
	"github.com/novelshare/novelsync/internal/sync"
)

// Follows manages the user's followed-author list.
type Follows struct {
	base
}

func NewFollows(s domain.Store, e *sync.Engine, sess *session.Manager, id domain.Identity, logger *slog.Logger) *Follows {
	return &Follows{base: newBase(s, e, sess, id, logger)}
}

// Following returns the local followed-author list.
func (f *Follows) Following() []domain.FollowedAuthor {
	var follows []domain.FollowedAuthor
	f.store.GetJSON(store.KeyFollowing, &follows)
	return follows
}

// IsFollowing reports whether the author is in the local list.
func (f *Follows) IsFollowing(authorID string) bool {
	for _, fa := range f.Following() {
		if fa.AuthorID == authorID {
			return true
		}
	}
	return false
}

// Follow adds an author. Following an already-followed author is a no-op.
func (f *Follows) Follow(ctx context.Context, author domain.FollowedAuthor) sync.PushResult {
	follows := f.Following()
	for _, fa := range follows {
		if fa.AuthorID == author.AuthorID {
			return sync.PushResult{Status: sync.PushSkipped}
		}
	}
	if author.FollowedAt == 0 {
		author.FollowedAt = time.Now().UnixMilli()
	}
	f.store.SetJSON(store.KeyFollowing, append(follows, author))

	return f.engine.PushFollow(ctx, f.userID(ctx), author.AuthorID, "add")
}

// Unfollow removes an author.
func (f *Follows) Unfollow(ctx context.Context, authorID string) sync.PushResult {
	follows := f.Following()
	kept := follows[:0]
	found := false
	for _, fa := range follows {
		if fa.AuthorID == authorID {
			found = true
			continue
		}
		kept = append(kept, fa)
	}
	if !found {
		return sync.PushResult{Status: sync.PushSkipped}
	}
	f.store.SetJSON(store.KeyFollowing, kept)

	return f.engine.PushFollow(ctx, f.userID(ctx), authorID, "remove")
}

// Toggle follows or unfollows the author and reports whether they are now
// followed.
func (f *Follows) Toggle(ctx context.Context, author domain.FollowedAuthor) (following bool, res sync.PushResult) {
	if f.IsFollowing(author.AuthorID) {
		return false, f.Unfollow(ctx, author.AuthorID)
	}
	res = f.Follow(ctx, author)
	return true, res
}
