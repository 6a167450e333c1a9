// Package search finds novels: remote substring search when the backend is
// reachable, fuzzy matching over the locally cached library otherwise.
package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/novelshare/novelsync/internal/domain"
	"github.com/novelshare/novelsync/internal/store"
)

// Service searches remotely with a local fallback.
type Service struct {
	store  domain.Store
	novels domain.NovelRepository
	logger *slog.Logger
}

func New(s domain.Store, novels domain.NovelRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: s, novels: novels, logger: logger}
}

// Search queries the remote; when that fails the locally cached library is
// fuzzy-matched by title and author so search keeps working offline.
func (s *Service) Search(ctx context.Context, query string) ([]domain.Novel, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	results, err := s.novels.SearchNovels(ctx, query)
	if err == nil {
		return s.filterDeleted(results), nil
	}
	s.logger.Debug("remote search failed, falling back to local", "error", err)
	return s.searchLocal(query), nil
}

func (s *Service) filterDeleted(novels []domain.Novel) []domain.Novel {
	deleted := store.LoadDeleted(s.store)
	if deleted.Empty() {
		return novels
	}
	kept := novels[:0]
	for _, n := range novels {
		if !deleted.Has(n.ID) {
			kept = append(kept, n)
		}
	}
	return kept
}

// searchLocal fuzzy-ranks the cached library items by title, then by author
// for anything the title pass missed.
func (s *Service) searchLocal(query string) []domain.Novel {
	var items []domain.LibraryItem
	s.store.GetJSON(store.KeyLibrary, &items)
	if len(items) == 0 {
		return nil
	}
	deleted := store.LoadDeleted(s.store)

	titles := make([]string, len(items))
	for i, item := range items {
		titles[i] = item.Title
	}

	matched := make(map[int]int, len(items)) // index -> rank
	for _, r := range fuzzy.RankFindFold(query, titles) {
		matched[r.OriginalIndex] = r.Distance
	}
	for i, item := range items {
		if _, ok := matched[i]; ok {
			continue
		}
		if fuzzy.MatchFold(query, item.Author) {
			matched[i] = len(item.Author)
		}
	}

	type ranked struct {
		idx  int
		rank int
	}
	order := make([]ranked, 0, len(matched))
	for idx, rank := range matched {
		if !deleted.Has(items[idx].NovelID) {
			order = append(order, ranked{idx: idx, rank: rank})
		}
	}
	sort.Slice(order, func(i, j int) bool { return order[i].rank < order[j].rank })

	results := make([]domain.Novel, 0, len(order))
	for _, r := range order {
		item := items[r.idx]
		n := domain.Novel{
			ID:            item.NovelID,
			Title:         item.Title,
			Author:        item.Author,
			Status:        item.Status,
			Description:   item.Description,
			CoverImage:    item.CoverImage,
			Rating:        item.Rating,
			TotalChapters: item.TotalChapters,
		}
		if item.Genre != "" {
			n.Genres = []string{item.Genre}
		}
		results = append(results, n)
	}
	return results
}
