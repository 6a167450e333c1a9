package sync

import (
	"context"
	"fmt"

	"github.com/novelshare/novelsync/internal/queue"
)

// ProcessQueue replays pending operations against the remote in FIFO order.
// It processes a snapshot of the queue: operations enqueued during the replay
// wait for the next run. Successful operations are removed; failed ones have
// their retry count bumped and are dropped at the ceiling. Only one replay
// runs at a time.
func (e *Engine) ProcessQueue(ctx context.Context) (replayed, failed int) {
	if !e.replaying.CompareAndSwap(false, true) {
		return 0, 0
	}
	defer e.replaying.Store(false)

	ops := e.queue.List()
	if len(ops) == 0 {
		return 0, 0
	}
	e.logger.Info("replaying queued operations", "pending", len(ops))

	for _, op := range ops {
		if ctx.Err() != nil {
			return replayed, failed
		}
		if err := e.apply(ctx, op); err != nil {
			e.logger.Warn("queued operation failed", "type", op.Type, "retries", op.Retries+1, "error", err)
			e.queue.Bump(op.ID, err)
			failed++
			continue
		}
		e.queue.Remove(op.ID)
		replayed++
	}

	e.logger.Info("queue replay finished", "replayed", replayed, "failed", failed)
	return replayed, failed
}

// apply executes one queued operation against the remote.
func (e *Engine) apply(ctx context.Context, op queue.Operation) error {
	switch op.Type {
	case queue.OpLibrary:
		if op.Action == "remove" {
			return e.gw.RemoveFromLibrary(ctx, op.UserID, op.NovelID)
		}
		return e.gw.AddToLibrary(ctx, op.UserID, op.NovelID)
	case queue.OpRating:
		return e.gw.RateNovel(ctx, op.UserID, op.NovelID, op.Rating)
	case queue.OpProgress:
		return e.gw.UpdateReadingProgress(ctx, op.UserID, op.NovelID, op.CurrentChapter)
	case queue.OpFollow:
		if op.Action == "remove" {
			return e.gw.UnfollowAuthor(ctx, op.UserID, op.AuthorID)
		}
		return e.gw.FollowAuthor(ctx, op.UserID, op.AuthorID)
	case queue.OpHistory:
		if op.Novel != nil {
			if _, err := e.gw.UpsertNovel(ctx, op.Novel); err != nil {
				e.logger.Debug("history novel snapshot upsert failed", "novel_id", op.Novel.ID, "error", err)
			}
		}
		return e.gw.AddToHistory(ctx, op.UserID, op.NovelID, op.ChapterID, op.ChapterTitle)
	default:
		return fmt.Errorf("unknown operation type %q", op.Type)
	}
}
