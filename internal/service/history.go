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

// DefaultHistoryCap bounds the local reading history.
const DefaultHistoryCap = 50

// History manages the local most-recent-first reading history.
type History struct {
	base
	cap int
}

func NewHistory(s domain.Store, e *sync.Engine, sess *session.Manager, id domain.Identity, logger *slog.Logger) *History {
	return &History{base: newBase(s, e, sess, id, logger), cap: DefaultHistoryCap}
}

// Entries returns the history with deleted novels filtered out, healing the
// stored list when the filter removes anything.
func (h *History) Entries() []domain.HistoryEntry {
	var entries []domain.HistoryEntry
	h.store.GetJSON(store.KeyHistory, &entries)

	deleted := store.LoadDeleted(h.store)
	if deleted.Empty() {
		return entries
	}
	kept := entries[:0]
	for _, en := range entries {
		if !deleted.Has(en.NovelID) {
			kept = append(kept, en)
		}
	}
	if len(kept) != len(entries) {
		h.store.SetJSON(store.KeyHistory, kept)
	}
	return kept
}

// Record adds a reading event: any previous entry for the same novel is
// replaced, the new entry goes first, and the list is capped. The novel
// snapshot rides along on the push so the remote join resolves.
func (h *History) Record(ctx context.Context, entry domain.HistoryEntry, novel *domain.Novel) sync.PushResult {
	if entry.Timestamp == 0 {
		entry.Timestamp = time.Now().UnixMilli()
	}

	entries := h.Entries()
	kept := make([]domain.HistoryEntry, 0, len(entries)+1)
	kept = append(kept, entry)
	for _, en := range entries {
		if en.NovelID != entry.NovelID {
			kept = append(kept, en)
		}
	}
	if len(kept) > h.cap {
		kept = kept[:h.cap]
	}
	h.store.SetJSON(store.KeyHistory, kept)

	return h.engine.PushHistory(ctx, h.userID(ctx), entry, novel)
}

// LastRead returns the most recent history entry for a novel.
func (h *History) LastRead(novelID string) (domain.HistoryEntry, bool) {
	for _, en := range h.Entries() {
		if en.NovelID == novelID {
			return en, true
		}
	}
	return domain.HistoryEntry{}, false
}

// Clear wipes the local history and, for a signed-in user, the remote rows.
// A remote failure leaves the local clear in place.
func (h *History) Clear(ctx context.Context) {
	h.store.Remove(store.KeyHistory)
	if userID := h.userID(ctx); userID != "" {
		if err := h.engine.ClearRemoteHistory(ctx, userID); err != nil {
			h.logger.Warn("remote history clear failed", "error", err)
		}
	}
}
