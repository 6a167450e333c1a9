package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/novelshare/novelsync/internal/domain"
	"github.com/novelshare/novelsync/internal/netmon"
	"github.com/novelshare/novelsync/internal/store"
)

// ConflictType classifies a local/remote library divergence.
type ConflictType string

const (
	// ConflictLocalOnly is a library item present locally but not remotely.
	ConflictLocalOnly ConflictType = "local_only"
	// ConflictRemoteOnly is a remote row absent from the local library.
	ConflictRemoteOnly ConflictType = "remote_only"
	// ConflictPending is a queued mutation that has not reached the remote.
	ConflictPending ConflictType = "pending"
)

// Conflict is one detected divergence.
type Conflict struct {
	Type    ConflictType
	NovelID string
	Title   string
}

// DetectConflicts compares the local library, the remote library, and the
// pending queue without modifying any of them.
func (e *Engine) DetectConflicts(ctx context.Context, userID string) ([]Conflict, error) {
	var local []domain.LibraryItem
	e.store.GetJSON(store.KeyLibrary, &local)

	rows, err := e.gw.UserLibrary(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("conflict detection failed: %w", err)
	}
	deleted := store.LoadDeleted(e.store)

	remoteIDs := make(map[string]string, len(rows))
	for _, row := range rows {
		if row.Novel != nil && !deleted.Has(row.NovelID) {
			remoteIDs[row.NovelID] = row.Novel.Title
		}
	}
	localIDs := make(map[string]string, len(local))
	for _, item := range local {
		localIDs[item.NovelID] = item.Title
	}

	var conflicts []Conflict
	for id, title := range localIDs {
		if _, ok := remoteIDs[id]; !ok {
			conflicts = append(conflicts, Conflict{Type: ConflictLocalOnly, NovelID: id, Title: title})
		}
	}
	for id, title := range remoteIDs {
		if _, ok := localIDs[id]; !ok {
			conflicts = append(conflicts, Conflict{Type: ConflictRemoteOnly, NovelID: id, Title: title})
		}
	}
	for _, op := range e.queue.List() {
		conflicts = append(conflicts, Conflict{Type: ConflictPending, NovelID: op.NovelID})
	}
	return conflicts, nil
}

// ResolveConflicts resolves divergences in favor of local intent: local-only
// items are pushed to the remote, then the pending queue is replayed, then a
// library pull brings down anything genuinely remote-only. Returns how many
// conflicts were resolved and how many remain.
func (e *Engine) ResolveConflicts(ctx context.Context, userID string) (resolved, remaining int, err error) {
	conflicts, err := e.DetectConflicts(ctx, userID)
	if err != nil {
		return 0, 0, err
	}

	for _, c := range conflicts {
		if c.Type != ConflictLocalOnly || !domain.IsCanonicalID(c.NovelID) {
			continue
		}
		if pushErr := e.gw.AddToLibrary(ctx, userID, c.NovelID); pushErr != nil {
			e.logger.Warn("conflict push failed", "novel_id", c.NovelID, "error", pushErr)
			remaining++
			continue
		}
		resolved++
	}

	replayed, failed := e.ProcessQueue(ctx)
	resolved += replayed
	remaining += failed

	if syncErr := e.SyncLibrary(ctx, userID); syncErr != nil {
		e.logger.Warn("post-resolution library pull failed", "error", syncErr)
	}
	return resolved, remaining, nil
}

// Status is a point-in-time snapshot of the sync layer.
type Status struct {
	State    netmon.State
	Pending  int
	LastSync time.Time
}

// Status reports connectivity, queue depth, and last successful full sync.
func (e *Engine) Status() Status {
	st := Status{Pending: e.queue.Len(), LastSync: e.LastSync()}
	if e.monitor != nil {
		st.State = e.monitor.State()
	}
	return st
}
