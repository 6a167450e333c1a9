package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novelshare/novelsync/internal/domain"
	nslog "github.com/novelshare/novelsync/internal/log"
	"github.com/novelshare/novelsync/internal/store"
)

type fakeNovels struct {
	domain.NovelRepository
	results []domain.Novel
	err     error
}

func (f *fakeNovels) SearchNovels(ctx context.Context, query string) ([]domain.Novel, error) {
	return f.results, f.err
}

func newSearch(t *testing.T, novels *fakeNovels) (*Service, *store.Store) {
	t.Helper()
	s, err := store.Open(store.Options{Logger: nslog.NullLogger()})
	require.NoError(t, err)
	return New(s, novels, nslog.NullLogger()), s
}

func seedLibrary(t *testing.T, s *store.Store) {
	t.Helper()
	require.True(t, s.SetJSON(store.KeyLibrary, []domain.LibraryItem{
		{NovelID: "n1", Title: "The Dragon King", Author: "Mei Lin"},
		{NovelID: "n2", Title: "Starship Diaries", Author: "J. Vance"},
		{NovelID: "n3", Title: "Dragonfall", Author: "R. Moor"},
	}))
}

func TestSearchRemoteFirst(t *testing.T) {
	novels := &fakeNovels{results: []domain.Novel{{ID: "r1", Title: "Remote Hit"}}}
	svc, _ := newSearch(t, novels)

	got, err := svc.Search(context.Background(), "hit")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Remote Hit", got[0].Title)
}

func TestSearchFallsBackToLocal(t *testing.T) {
	novels := &fakeNovels{err: domain.ErrRemoteOffline}
	svc, s := newSearch(t, novels)
	seedLibrary(t, s)

	got, err := svc.Search(context.Background(), "dragon")
	require.NoError(t, err, "offline search must not error")
	require.Len(t, got, 2)
	titles := []string{got[0].Title, got[1].Title}
	assert.Contains(t, titles, "The Dragon King")
	assert.Contains(t, titles, "Dragonfall")
}

func TestSearchLocalMatchesAuthor(t *testing.T) {
	novels := &fakeNovels{err: domain.ErrRemoteOffline}
	svc, s := newSearch(t, novels)
	seedLibrary(t, s)

	got, err := svc.Search(context.Background(), "vance")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Starship Diaries", got[0].Title)
}

func TestSearchExcludesDeleted(t *testing.T) {
	novels := &fakeNovels{err: domain.ErrRemoteOffline}
	svc, s := newSearch(t, novels)
	seedLibrary(t, s)
	store.AddDeleted(s, "n1")

	got, err := svc.Search(context.Background(), "dragon")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Dragonfall", got[0].Title)
}

func TestSearchEmptyQuery(t *testing.T) {
	svc, _ := newSearch(t, &fakeNovels{})
	got, err := svc.Search(context.Background(), "   ")
	require.NoError(t, err)
	assert.Nil(t, got)
}
