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

// Ratings manages the user's per-novel ratings, stored locally as a map keyed
// by novel id.
type Ratings struct {
	base
}

func NewRatings(s domain.Store, e *sync.Engine, sess *session.Manager, id domain.Identity, logger *slog.Logger) *Ratings {
	return &Ratings{base: newBase(s, e, sess, id, logger)}
}

func (r *Ratings) load() map[string]domain.Rating {
	ratings := map[string]domain.Rating{}
	r.store.GetJSON(store.KeyRatings, &ratings)
	return ratings
}

// All returns the local ratings map.
func (r *Ratings) All() map[string]domain.Rating {
	return r.load()
}

// Rating returns the user's rating for a novel.
func (r *Ratings) Rating(novelID string) (domain.Rating, bool) {
	rating, ok := r.load()[novelID]
	return rating, ok
}

// Rate stores a rating locally and pushes it. The review text stays local;
// the remote only carries the numeric rating.
func (r *Ratings) Rate(ctx context.Context, novelID string, rating int, review string) sync.PushResult {
	if rating < 1 || rating > 5 {
		return sync.PushResult{Status: sync.PushSkipped}
	}
	ratings := r.load()
	ratings[novelID] = domain.Rating{
		Rating:    rating,
		Review:    review,
		UpdatedAt: time.Now().UnixMilli(),
	}
	r.store.SetJSON(store.KeyRatings, ratings)

	return r.engine.PushRating(ctx, r.userID(ctx), novelID, rating)
}

// Remove drops the local rating for a novel.
func (r *Ratings) Remove(novelID string) {
	ratings := r.load()
	if _, ok := ratings[novelID]; !ok {
		return
	}
	delete(ratings, novelID)
	r.store.SetJSON(store.KeyRatings, ratings)
}
