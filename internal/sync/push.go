package sync

import (
	"context"

	"github.com/novelshare/novelsync/internal/domain"
	"github.com/novelshare/novelsync/internal/queue"
)

// PushStatus reports what happened to an attempted mutation.
type PushStatus string

const (
	// PushSuccess means the remote accepted the mutation.
	PushSuccess PushStatus = "success"
	// PushQueued means the device was offline and the mutation was queued.
	PushQueued PushStatus = "queued"
	// PushQueuedError means the remote rejected the mutation and it was
	// queued for retry.
	PushQueuedError PushStatus = "queued_error"
	// PushSkipped means the mutation can never be pushed (non-canonical id
	// or no signed-in user) and was not queued.
	PushSkipped PushStatus = "skipped"
)

// PushResult is the outcome of a push attempt.
type PushResult struct {
	Status PushStatus
	Err    error
}

func (r PushResult) Synced() bool { return r.Status == PushSuccess }

// pushable guards the common push preconditions: mutations against content
// that only exists locally can never succeed remotely, so they are skipped
// rather than queued forever.
func pushable(userID, contentID string) bool {
	return userID != "" && domain.IsCanonicalID(contentID)
}

// attempt runs the remote call when online, queueing op on failure. When
// offline it queues without a network attempt.
func (e *Engine) attempt(ctx context.Context, op queue.Operation, call func(context.Context) error) PushResult {
	if e.monitor != nil && !e.monitor.Online() {
		e.queue.Enqueue(op)
		return PushResult{Status: PushQueued}
	}
	if err := call(ctx); err != nil {
		e.logger.Warn("push failed, queueing", "type", op.Type, "error", err)
		op.LastError = err.Error()
		e.queue.Enqueue(op)
		return PushResult{Status: PushQueuedError, Err: err}
	}
	return PushResult{Status: PushSuccess}
}

// PushLibraryItem pushes a library add or remove.
func (e *Engine) PushLibraryItem(ctx context.Context, userID, novelID, action string) PushResult {
	if !pushable(userID, novelID) {
		return PushResult{Status: PushSkipped}
	}
	op := queue.Operation{Type: queue.OpLibrary, UserID: userID, NovelID: novelID, Action: action}
	return e.attempt(ctx, op, func(ctx context.Context) error {
		if action == "remove" {
			return e.gw.RemoveFromLibrary(ctx, userID, novelID)
		}
		return e.gw.AddToLibrary(ctx, userID, novelID)
	})
}

// PushRating pushes a novel rating.
func (e *Engine) PushRating(ctx context.Context, userID, novelID string, rating int) PushResult {
	if !pushable(userID, novelID) {
		return PushResult{Status: PushSkipped}
	}
	op := queue.Operation{Type: queue.OpRating, UserID: userID, NovelID: novelID, Rating: rating}
	return e.attempt(ctx, op, func(ctx context.Context) error {
		return e.gw.RateNovel(ctx, userID, novelID, rating)
	})
}

// PushProgress pushes a reading-progress update.
func (e *Engine) PushProgress(ctx context.Context, userID, novelID string, currentChapter int) PushResult {
	if !pushable(userID, novelID) {
		return PushResult{Status: PushSkipped}
	}
	op := queue.Operation{Type: queue.OpProgress, UserID: userID, NovelID: novelID, CurrentChapter: currentChapter}
	return e.attempt(ctx, op, func(ctx context.Context) error {
		return e.gw.UpdateReadingProgress(ctx, userID, novelID, currentChapter)
	})
}

// PushFollow pushes an author follow or unfollow.
func (e *Engine) PushFollow(ctx context.Context, userID, authorID, action string) PushResult {
	if !pushable(userID, authorID) {
		return PushResult{Status: PushSkipped}
	}
	op := queue.Operation{Type: queue.OpFollow, UserID: userID, AuthorID: authorID, Action: action}
	return e.attempt(ctx, op, func(ctx context.Context) error {
		if action == "remove" {
			return e.gw.UnfollowAuthor(ctx, userID, authorID)
		}
		return e.gw.FollowAuthor(ctx, userID, authorID)
	})
}

// PushHistory pushes a history entry. When the novel snapshot is provided it
// is upserted first (best effort) so the remote join resolves even for novels
// the remote has not seen.
func (e *Engine) PushHistory(ctx context.Context, userID string, entry domain.HistoryEntry, novel *domain.Novel) PushResult {
	if !pushable(userID, entry.NovelID) {
		return PushResult{Status: PushSkipped}
	}
	op := queue.Operation{
		Type:         queue.OpHistory,
		UserID:       userID,
		NovelID:      entry.NovelID,
		ChapterID:    entry.ChapterID,
		ChapterTitle: entry.ChapterTitle,
		Novel:        novel,
	}
	return e.attempt(ctx, op, func(ctx context.Context) error {
		if novel != nil {
			if _, err := e.gw.UpsertNovel(ctx, novel); err != nil {
				e.logger.Debug("history novel snapshot upsert failed", "novel_id", novel.ID, "error", err)
			}
		}
		return e.gw.AddToHistory(ctx, userID, entry.NovelID, entry.ChapterID, entry.ChapterTitle)
	})
}

// ClearRemoteHistory deletes the user's remote history rows. Not queued: the
// local clear already took effect, and replaying a stale clear later could
// erase rows written since.
func (e *Engine) ClearRemoteHistory(ctx context.Context, userID string) error {
	return e.gw.ClearHistory(ctx, userID)
}
