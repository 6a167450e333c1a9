package sync

import (
	"sort"

	"github.com/novelshare/novelsync/internal/domain"
)

// mergeChapters reconciles a novel's locally cached chapters with the remote
// set using last-write-wins on UpdatedAt:
//
//   - a local chapter strictly newer than its remote counterpart keeps its
//     title and content
//   - otherwise the remote chapter wins, except that a local draft stays a
//     draft (publishing is an explicit act, never a sync side effect)
//   - local-only chapters (unpushed drafts) are kept
//
// Chapters pair by id when both sides have one, by number otherwise.
func mergeChapters(local, remote []domain.Chapter) []domain.Chapter {
	type key struct {
		id     string
		number int
	}
	keyOf := func(ch domain.Chapter) key {
		if domain.IsCanonicalID(ch.ID) {
			return key{id: ch.ID}
		}
		return key{number: ch.Number}
	}

	localBy := make(map[key]domain.Chapter, len(local))
	for _, ch := range local {
		localBy[keyOf(ch)] = ch
	}

	merged := make([]domain.Chapter, 0, len(remote)+len(local))
	seen := make(map[key]struct{}, len(remote))

	for _, rc := range remote {
		k := keyOf(rc)
		seen[k] = struct{}{}
		lc, ok := localBy[k]
		if !ok {
			merged = append(merged, rc)
			continue
		}
		if lc.UpdatedAt.After(rc.UpdatedAt) {
			kept := rc
			kept.Title = lc.Title
			kept.Content = lc.Content
			kept.Status = lc.Status
			kept.UpdatedAt = lc.UpdatedAt
			merged = append(merged, kept)
			continue
		}
		kept := rc
		if lc.Status == domain.ChapterDraft {
			kept.Status = domain.ChapterDraft
		}
		merged = append(merged, kept)
	}

	for _, lc := range local {
		if _, ok := seen[keyOf(lc)]; !ok {
			merged = append(merged, lc)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Number < merged[j].Number
	})
	return merged
}

// mergeLibraryRow folds a remote library row into a local item, preserving the
// local-only reading bookkeeping the remote does not track.
func mergeLibraryRow(row domain.LibraryRow, prev *domain.LibraryItem) domain.LibraryItem {
	item := domain.LibraryItem{
		NovelID:        row.NovelID,
		CurrentChapter: row.CurrentChapter,
		AddedAt:        row.AddedAt.UnixMilli(),
	}
	if !row.LastReadAt.IsZero() {
		item.LastRead = row.LastReadAt.UnixMilli()
	}
	if n := row.Novel; n != nil {
		item.Title = n.Title
		item.Author = n.Author
		item.Status = n.Status
		item.Description = n.Description
		item.CoverImage = n.CoverImage
		item.Rating = n.Rating
		item.TotalChapters = n.TotalChapters
		if len(n.Genres) > 0 {
			item.Genre = n.Genres[0]
		}
	}
	if prev != nil {
		item.CurrentChapterID = prev.CurrentChapterID
		item.Progress = prev.Progress
		if prev.CurrentChapter > item.CurrentChapter {
			item.CurrentChapter = prev.CurrentChapter
		}
		if prev.LastRead > item.LastRead {
			item.LastRead = prev.LastRead
		}
	}
	if item.TotalChapters > 0 {
		item.Progress = float64(item.CurrentChapter) / float64(item.TotalChapters) * 100
		if item.Progress > 100 {
			item.Progress = 100
		}
	}
	return item
}
