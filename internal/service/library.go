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

// Library manages the user's novel collection.
type Library struct {
	base
}

func NewLibrary(s domain.Store, e *sync.Engine, sess *session.Manager, id domain.Identity, logger *slog.Logger) *Library {
	return &Library{base: newBase(s, e, sess, id, logger)}
}

// Items returns the local library with deleted novels filtered out. When the
// filter removes anything the cleaned list is written back, so a deletion
// recorded after the last sync heals the cache on the next read.
func (l *Library) Items() []domain.LibraryItem {
	var items []domain.LibraryItem
	l.store.GetJSON(store.KeyLibrary, &items)

	deleted := store.LoadDeleted(l.store)
	if deleted.Empty() {
		return items
	}
	kept := items[:0]
	for _, item := range items {
		if !deleted.Has(item.NovelID) {
			kept = append(kept, item)
		}
	}
	if len(kept) != len(items) {
		l.store.SetJSON(store.KeyLibrary, kept)
	}
	return kept
}

// Contains reports whether the novel is in the local library.
func (l *Library) Contains(novelID string) bool {
	for _, item := range l.Items() {
		if item.NovelID == novelID {
			return true
		}
	}
	return false
}

// Item returns the library entry for a novel.
func (l *Library) Item(novelID string) (domain.LibraryItem, bool) {
	for _, item := range l.Items() {
		if item.NovelID == novelID {
			return item, true
		}
	}
	return domain.LibraryItem{}, false
}

// Add puts a novel in the library. Adding an already-present novel is a
// no-op. The mutation is pushed through the engine; in guest mode it stays
// local.
func (l *Library) Add(ctx context.Context, novel *domain.Novel) sync.PushResult {
	items := l.Items()
	for _, item := range items {
		if item.NovelID == novel.ID {
			return sync.PushResult{Status: sync.PushSkipped}
		}
	}

	item := domain.LibraryItem{
		NovelID:       novel.ID,
		Title:         novel.Title,
		Author:        novel.Author,
		Status:        novel.Status,
		Description:   novel.Description,
		CoverImage:    novel.CoverImage,
		Rating:        novel.Rating,
		TotalChapters: novel.TotalChapters,
		AddedAt:       time.Now().UnixMilli(),
	}
	if len(novel.Genres) > 0 {
		item.Genre = novel.Genres[0]
	}
	l.store.SetJSON(store.KeyLibrary, append(items, item))

	return l.engine.PushLibraryItem(ctx, l.userID(ctx), novel.ID, "add")
}

// Remove takes a novel out of the library.
func (l *Library) Remove(ctx context.Context, novelID string) sync.PushResult {
	items := l.Items()
	kept := items[:0]
	found := false
	for _, item := range items {
		if item.NovelID == novelID {
			found = true
			continue
		}
		kept = append(kept, item)
	}
	if !found {
		return sync.PushResult{Status: sync.PushSkipped}
	}
	l.store.SetJSON(store.KeyLibrary, kept)

	return l.engine.PushLibraryItem(ctx, l.userID(ctx), novelID, "remove")
}

// Toggle adds or removes the novel and reports whether it is now present.
func (l *Library) Toggle(ctx context.Context, novel *domain.Novel) (inLibrary bool, res sync.PushResult) {
	if l.Contains(novel.ID) {
		return false, l.Remove(ctx, novel.ID)
	}
	res = l.Add(ctx, novel)
	return true, res
}

// UpdateProgress records the chapter the user is reading and pushes the new
// position. Progress percent is derived from the known chapter total.
func (l *Library) UpdateProgress(ctx context.Context, novelID, chapterID string, chapterNumber int) sync.PushResult {
	items := l.Items()
	updated := false
	for i := range items {
		if items[i].NovelID != novelID {
			continue
		}
		items[i].CurrentChapter = chapterNumber
		items[i].CurrentChapterID = chapterID
		items[i].LastRead = time.Now().UnixMilli()
		if items[i].TotalChapters > 0 {
			items[i].Progress = float64(chapterNumber) / float64(items[i].TotalChapters) * 100
			if items[i].Progress > 100 {
				items[i].Progress = 100
			}
		}
		updated = true
		break
	}
	if !updated {
		return sync.PushResult{Status: sync.PushSkipped}
	}
	l.store.SetJSON(store.KeyLibrary, items)

	return l.engine.PushProgress(ctx, l.userID(ctx), novelID, chapterNumber)
}

// SetChapterCount refreshes a novel's chapter total, recomputing progress.
// Called after a chapter sync or a remote count.
func (l *Library) SetChapterCount(novelID string, total int) {
	items := l.Items()
	for i := range items {
		if items[i].NovelID != novelID {
			continue
		}
		items[i].TotalChapters = total
		if total > 0 {
			items[i].Progress = float64(items[i].CurrentChapter) / float64(total) * 100
			if items[i].Progress > 100 {
				items[i].Progress = 100
			}
		}
		l.store.SetJSON(store.KeyLibrary, items)
		return
	}
}
