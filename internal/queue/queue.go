// Package queue persists mutations that could not reach the backend so they
// can be replayed once connectivity returns. The queue survives restarts by
// living in the local store under a single key.
package queue

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/novelshare/novelsync/internal/domain"
	"github.com/novelshare/novelsync/internal/store"
)

// OpType identifies which remote mutation an operation replays.
type OpType string

const (
	OpLibrary  OpType = "library"
	OpRating   OpType = "rating"
	OpProgress OpType = "progress"
	OpFollow   OpType = "follow"
	OpHistory  OpType = "history"
)

// MaxRetries is the replay ceiling. An operation that fails this many times
// is dropped rather than retried forever.
const MaxRetries = 3

// Operation is one queued mutation. Fields beyond Type/UserID are populated
// per type; Novel carries a snapshot for history replays so the remote row
// can be upserted even if the novel was cached only locally.
type Operation struct {
	ID      string `json:"id"`
	Type    OpType `json:"type"`
	UserID  string `json:"userId"`
	NovelID string `json:"novelId,omitempty"`

	// library / follow
	Action   string `json:"action,omitempty"` // "add" or "remove"
	AuthorID string `json:"authorId,omitempty"`

	// rating
	Rating int `json:"rating,omitempty"`

	// progress
	CurrentChapter int `json:"currentChapter,omitempty"`

	// history
	ChapterID    string        `json:"chapterId,omitempty"`
	ChapterTitle string        `json:"chapterTitle,omitempty"`
	Novel        *domain.Novel `json:"novel,omitempty"`

	CreatedAt int64  `json:"createdAt"`
	Retries   int    `json:"retries"`
	LastError string `json:"lastError,omitempty"`
}

// Queue is the persistent operation queue. All mutations read the full queue,
// modify it, and write it back under one key, serialized by the mutex.
type Queue struct {
	store  domain.Store
	logger *slog.Logger

	mu sync.Mutex
}

func New(s domain.Store, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{store: s, logger: logger}
}

func (q *Queue) load() []Operation {
	var ops []Operation
	q.store.GetJSON(store.KeySyncQueue, &ops)
	return ops
}

func (q *Queue) save(ops []Operation) bool {
	if len(ops) == 0 {
		q.store.Remove(store.KeySyncQueue)
		return true
	}
	return q.store.SetJSON(store.KeySyncQueue, ops)
}

// Enqueue appends an operation, assigning its id and timestamp.
func (q *Queue) Enqueue(op Operation) Operation {
	q.mu.Lock()
	defer q.mu.Unlock()

	op.ID = uuid.NewString()
	op.CreatedAt = time.Now().UnixMilli()
	op.Retries = 0

	ops := append(q.load(), op)
	if !q.save(ops) {
		q.logger.Warn("failed to persist queued operation", "type", op.Type)
	}
	q.logger.Debug("operation queued", "type", op.Type, "queue_len", len(ops))
	return op
}

// Remove deletes an operation by id after successful replay.
func (q *Queue) Remove(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	ops := q.load()
	for i, op := range ops {
		if op.ID == id {
			q.save(append(ops[:i], ops[i+1:]...))
			return
		}
	}
}

// Bump records a failed replay attempt. Once the retry ceiling is reached the
// operation is dropped and the lost mutation logged.
func (q *Queue) Bump(id string, lastErr error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	ops := q.load()
	for i := range ops {
		if ops[i].ID != id {
			continue
		}
		ops[i].Retries++
		if lastErr != nil {
			ops[i].LastError = lastErr.Error()
		}
		if ops[i].Retries >= MaxRetries {
			q.logger.Warn("dropping operation after repeated failures",
				"type", ops[i].Type, "novel_id", ops[i].NovelID, "error", ops[i].LastError)
			ops = append(ops[:i], ops[i+1:]...)
		}
		q.save(ops)
		return
	}
}

// List returns a snapshot of the queue in FIFO order.
func (q *Queue) List() []Operation {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.load()
}

// Len returns the number of pending operations.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.load())
}

// Clear discards every pending operation.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.store.Remove(store.KeySyncQueue)
}
