// Package sync reconciles the local store with the remote backend: pull
// reconciliation (library, history, chapters), push-with-queue-fallback for
// user mutations, queue replay on reconnect, and conflict detection.
//
// The remote is the source of truth for membership; local state is the source
// of truth for reading bookkeeping and unpushed drafts. Deleted ids recorded
// locally always win over remote rows that still reference them.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	gosync "sync"
	"sync/atomic"
	"time"

	"github.com/novelshare/novelsync/internal/domain"
	"github.com/novelshare/novelsync/internal/netmon"
	"github.com/novelshare/novelsync/internal/queue"
	"github.com/novelshare/novelsync/internal/remote"
	"github.com/novelshare/novelsync/internal/store"
)

const defaultPullTimeout = 10 * time.Second

// Options configures an Engine.
type Options struct {
	PullTimeout time.Duration // per-pull deadline inside FullSync
	HistoryCap  int           // local history length ceiling
	Logger      *slog.Logger
}

// Engine coordinates all reconciliation between the local store and the
// remote gateway.
type Engine struct {
	store       domain.Store
	gw          remote.Gateway
	queue       *queue.Queue
	monitor     *netmon.Monitor
	logger      *slog.Logger
	pullTimeout time.Duration
	historyCap  int

	replaying atomic.Bool

	mu       gosync.Mutex
	lastSync time.Time
}

// New creates an Engine and hooks queue replay to the monitor's online
// transition.
func New(s domain.Store, gw remote.Gateway, q *queue.Queue, m *netmon.Monitor, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.PullTimeout <= 0 {
		opts.PullTimeout = defaultPullTimeout
	}
	if opts.HistoryCap <= 0 {
		opts.HistoryCap = 50
	}
	e := &Engine{
		store:       s,
		gw:          gw,
		queue:       q,
		monitor:     m,
		logger:      opts.Logger,
		pullTimeout: opts.PullTimeout,
		historyCap:  opts.HistoryCap,
	}
	if m != nil {
		m.OnOnline(func() {
			go e.ProcessQueue(context.Background())
		})
	}
	return e
}

// Queue exposes the pending-operation queue.
func (e *Engine) Queue() *queue.Queue { return e.queue }

// LastSync returns when the last successful full sync finished.
func (e *Engine) LastSync() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSync
}

// SyncLibrary replaces the local library with the remote rows, reconciling as
// it goes: stale rows (their novel no longer exists) are repaired remotely and
// recorded as deleted, locally deleted ids are excluded, and local reading
// bookkeeping is preserved. On remote failure the local library is untouched.
func (e *Engine) SyncLibrary(ctx context.Context, userID string) error {
	var backup []domain.LibraryItem
	e.store.GetJSON(store.KeyLibrary, &backup)

	rows, err := e.gw.UserLibrary(ctx, userID)
	if err != nil {
		return fmt.Errorf("library sync failed: %w", err)
	}

	prevByID := make(map[string]*domain.LibraryItem, len(backup))
	for i := range backup {
		prevByID[backup[i].NovelID] = &backup[i]
	}
	deleted := store.LoadDeleted(e.store)

	var stale []string
	items := make([]domain.LibraryItem, 0, len(rows))
	for _, row := range rows {
		if row.Novel == nil {
			stale = append(stale, row.NovelID)
			continue
		}
		if deleted.Has(row.NovelID) {
			continue
		}
		items = append(items, mergeLibraryRow(row, prevByID[row.NovelID]))
	}

	if len(stale) > 0 {
		e.repairStaleRows(ctx, userID, stale)
	}

	if !e.store.SetJSON(store.KeyLibrary, items) {
		e.store.SetJSON(store.KeyLibrary, backup)
		return fmt.Errorf("library sync failed: could not persist %d items", len(items))
	}
	e.logger.Info("library synced", "items", len(items), "stale_repaired", len(stale))
	return nil
}

// repairStaleRows heals rows whose novel vanished remotely: the dangling rows
// are deleted remotely (best effort), the ids are recorded as deleted so they
// never resurface, and local caches referencing them are purged.
func (e *Engine) repairStaleRows(ctx context.Context, userID string, ids []string) {
	e.logger.Warn("repairing stale library rows", "count", len(ids))
	if err := e.gw.RemoveLibraryRows(ctx, userID, ids); err != nil {
		e.logger.Warn("stale row remote cleanup failed", "error", err)
	}
	store.AddDeleted(e.store, ids...)
	e.purgeLocal(ids)
}

// purgeLocal removes references to the ids from history, ratings, and the
// chapter cache.
func (e *Engine) purgeLocal(ids []string) {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	var history []domain.HistoryEntry
	if e.store.GetJSON(store.KeyHistory, &history) {
		kept := history[:0]
		for _, h := range history {
			if _, gone := drop[h.NovelID]; !gone {
				kept = append(kept, h)
			}
		}
		if len(kept) != len(history) {
			e.store.SetJSON(store.KeyHistory, kept)
		}
	}

	ratings := map[string]domain.Rating{}
	if e.store.GetJSON(store.KeyRatings, &ratings) {
		changed := false
		for id := range drop {
			if _, ok := ratings[id]; ok {
				delete(ratings, id)
				changed = true
			}
		}
		if changed {
			e.store.SetJSON(store.KeyRatings, ratings)
		}
	}

	chapters := map[string][]domain.Chapter{}
	if e.store.GetJSON(store.KeyChapters, &chapters) {
		changed := false
		for id := range drop {
			if _, ok := chapters[id]; ok {
				delete(chapters, id)
				changed = true
			}
		}
		if changed {
			e.store.SetJSON(store.KeyChapters, chapters)
		}
	}
}

// SyncHistory merges remote reading history into the local list. Remote rows
// and local entries are combined most-recent-first, deduplicated per novel,
// and capped. Stale remote rows are skipped; deleted ids are excluded.
func (e *Engine) SyncHistory(ctx context.Context, userID string) error {
	var backup []domain.HistoryEntry
	e.store.GetJSON(store.KeyHistory, &backup)

	rows, err := e.gw.ReadingHistory(ctx, userID, e.historyCap)
	if err != nil {
		return fmt.Errorf("history sync failed: %w", err)
	}
	deleted := store.LoadDeleted(e.store)

	entries := make([]domain.HistoryEntry, 0, len(rows)+len(backup))
	for _, row := range rows {
		if row.Novel == nil || deleted.Has(row.NovelID) {
			continue
		}
		entries = append(entries, domain.HistoryEntry{
			NovelID:      row.NovelID,
			ChapterID:    row.ChapterID,
			NovelTitle:   row.Novel.Title,
			ChapterTitle: row.ChapterTitle,
			CoverImage:   row.Novel.CoverImage,
			Timestamp:    row.ReadAt.UnixMilli(),
		})
	}
	entries = append(entries, backup...)

	merged := dedupHistory(entries, deleted, e.historyCap)
	if !e.store.SetJSON(store.KeyHistory, merged) {
		e.store.SetJSON(store.KeyHistory, backup)
		return fmt.Errorf("history sync failed: could not persist %d entries", len(merged))
	}
	e.logger.Info("history synced", "entries", len(merged))
	return nil
}

// dedupHistory sorts entries most-recent-first, keeps the newest entry per
// novel, drops deleted ids, and caps the result.
func dedupHistory(entries []domain.HistoryEntry, deleted store.DeletedSet, limit int) []domain.HistoryEntry {
	byNovel := make(map[string]domain.HistoryEntry, len(entries))
	for _, en := range entries {
		if en.NovelID == "" || deleted.Has(en.NovelID) {
			continue
		}
		if prev, ok := byNovel[en.NovelID]; !ok || en.Timestamp > prev.Timestamp {
			byNovel[en.NovelID] = en
		}
	}
	out := make([]domain.HistoryEntry, 0, len(byNovel))
	for _, en := range byNovel {
		out = append(out, en)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp > out[j].Timestamp
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// SyncFollowing replaces the local following list with the remote one.
func (e *Engine) SyncFollowing(ctx context.Context, userID string) error {
	var backup []domain.FollowedAuthor
	e.store.GetJSON(store.KeyFollowing, &backup)

	follows, err := e.gw.Following(ctx, userID)
	if err != nil {
		return fmt.Errorf("following sync failed: %w", err)
	}
	if !e.store.SetJSON(store.KeyFollowing, follows) {
		e.store.SetJSON(store.KeyFollowing, backup)
		return fmt.Errorf("following sync failed: could not persist %d follows", len(follows))
	}
	e.logger.Info("following synced", "authors", len(follows))
	return nil
}

// SyncChapters merges a novel's remote chapters into the local cache using
// last-write-wins with draft preservation (see mergeChapters).
func (e *Engine) SyncChapters(ctx context.Context, novelID string) error {
	cache := map[string][]domain.Chapter{}
	e.store.GetJSON(store.KeyChapters, &cache)
	local := cache[novelID]

	remoteChapters, err := e.gw.Chapters(ctx, novelID)
	if err != nil {
		return fmt.Errorf("chapter sync failed: %w", err)
	}

	merged := mergeChapters(local, remoteChapters)
	cache[novelID] = merged
	if !e.store.SetJSON(store.KeyChapters, cache) {
		return fmt.Errorf("chapter sync failed: could not persist %d chapters", len(merged))
	}
	e.logger.Info("chapters synced", "novel_id", novelID, "chapters", len(merged))
	return nil
}

// SyncAllChapters refreshes chapters for every novel in the local chapter
// cache or the library, so library novels get their chapters on the first
// full sync even before anything is cached. Novels in the deleted set are
// dropped from the cache instead.
func (e *Engine) SyncAllChapters(ctx context.Context, userID string) error {
	cache := map[string][]domain.Chapter{}
	e.store.GetJSON(store.KeyChapters, &cache)

	targets := make(map[string]struct{}, len(cache))
	for novelID := range cache {
		targets[novelID] = struct{}{}
	}
	var items []domain.LibraryItem
	e.store.GetJSON(store.KeyLibrary, &items)
	for _, item := range items {
		targets[item.NovelID] = struct{}{}
	}
	if len(targets) == 0 {
		return nil
	}
	deleted := store.LoadDeleted(e.store)

	dropped := false
	for novelID := range cache {
		if deleted.Has(novelID) {
			delete(cache, novelID)
			dropped = true
		}
	}
	if dropped {
		e.store.SetJSON(store.KeyChapters, cache)
	}

	var firstErr error
	for novelID := range targets {
		if deleted.Has(novelID) || !domain.IsCanonicalID(novelID) {
			continue
		}
		if err := e.SyncChapters(ctx, novelID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Result summarizes a full sync.
type Result struct {
	Failures int
	Errors   []error
}

// FullSync pulls library, history, and cached chapters concurrently, each
// under its own deadline. Partial failure is reported, never fatal: whatever
// succeeded has already been written.
func (e *Engine) FullSync(ctx context.Context, userID string) Result {
	pulls := []struct {
		name string
		fn   func(context.Context, string) error
	}{
		{"library", e.SyncLibrary},
		{"history", e.SyncHistory},
		{"chapters", e.SyncAllChapters},
	}

	var wg gosync.WaitGroup
	errs := make([]error, len(pulls))
	for i, p := range pulls {
		wg.Add(1)
		go func(i int, name string, fn func(context.Context, string) error) {
			defer wg.Done()
			pullCtx, cancel := context.WithTimeout(ctx, e.pullTimeout)
			defer cancel()
			if err := fn(pullCtx, userID); err != nil {
				e.logger.Warn("sync pull failed", "pull", name, "error", err)
				errs[i] = fmt.Errorf("%s: %w", name, err)
			}
		}(i, p.name, p.fn)
	}
	wg.Wait()

	var res Result
	for _, err := range errs {
		if err != nil {
			res.Failures++
			res.Errors = append(res.Errors, err)
		}
	}
	if res.Failures == 0 {
		e.mu.Lock()
		e.lastSync = time.Now()
		e.mu.Unlock()
	}
	e.logger.Info("full sync finished", "failures", res.Failures)
	return res
}
