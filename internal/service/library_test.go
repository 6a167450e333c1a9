package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novelshare/novelsync/internal/domain"
	nslog "github.com/novelshare/novelsync/internal/log"
	"github.com/novelshare/novelsync/internal/queue"
	"github.com/novelshare/novelsync/internal/session"
	"github.com/novelshare/novelsync/internal/store"
	"github.com/novelshare/novelsync/internal/sync"
)

const novelID = "11111111-1111-1111-1111-111111111111"

// newFixture builds services in guest mode: mutations stay local and pushes
// come back skipped, which keeps these tests off the network entirely.
func newFixture(t *testing.T) (*store.Store, *sync.Engine, *session.Manager) {
	t.Helper()
	s, err := store.Open(store.Options{Logger: nslog.NullLogger()})
	require.NoError(t, err)
	q := queue.New(s, nslog.NullLogger())
	engine := sync.New(s, nil, q, nil, sync.Options{Logger: nslog.NullLogger()})
	sess := session.New(s, nil, nslog.NullLogger())
	return s, engine, sess
}

func sampleNovel() *domain.Novel {
	return &domain.Novel{
		ID:            novelID,
		Title:         "The Long Road",
		Author:        "A. Writer",
		Genres:        []string{"fantasy", "adventure"},
		TotalChapters: 20,
	}
}

func TestLibraryAddAndContains(t *testing.T) {
	s, engine, sess := newFixture(t)
	lib := NewLibrary(s, engine, sess, nil, nslog.NullLogger())

	res := lib.Add(context.Background(), sampleNovel())
	assert.Equal(t, sync.PushSkipped, res.Status, "guest mutations are local-only")

	assert.True(t, lib.Contains(novelID))
	item, ok := lib.Item(novelID)
	require.True(t, ok)
	assert.Equal(t, "The Long Road", item.Title)
	assert.Equal(t, "fantasy", item.Genre)
	assert.NotZero(t, item.AddedAt)
}

func TestLibraryAddIdempotent(t *testing.T) {
	s, engine, sess := newFixture(t)
	lib := NewLibrary(s, engine, sess, nil, nslog.NullLogger())

	lib.Add(context.Background(), sampleNovel())
	lib.Add(context.Background(), sampleNovel())
	assert.Len(t, lib.Items(), 1)
}

func TestLibraryToggle(t *testing.T) {
	s, engine, sess := newFixture(t)
	lib := NewLibrary(s, engine, sess, nil, nslog.NullLogger())

	in, _ := lib.Toggle(context.Background(), sampleNovel())
	assert.True(t, in)
	in, _ = lib.Toggle(context.Background(), sampleNovel())
	assert.False(t, in)
	assert.Empty(t, lib.Items())
}

func TestLibraryUpdateProgress(t *testing.T) {
	s, engine, sess := newFixture(t)
	lib := NewLibrary(s, engine, sess, nil, nslog.NullLogger())
	lib.Add(context.Background(), sampleNovel())

	lib.UpdateProgress(context.Background(), novelID, "ch-5", 5)

	item, ok := lib.Item(novelID)
	require.True(t, ok)
	assert.Equal(t, 5, item.CurrentChapter)
	assert.Equal(t, "ch-5", item.CurrentChapterID)
	assert.InDelta(t, 25.0, item.Progress, 0.01)
	assert.NotZero(t, item.LastRead)
}

func TestLibraryUpdateProgressUnknownNovel(t *testing.T) {
	s, engine, sess := newFixture(t)
	lib := NewLibrary(s, engine, sess, nil, nslog.NullLogger())

	res := lib.UpdateProgress(context.Background(), novelID, "", 3)
	assert.Equal(t, sync.PushSkipped, res.Status)
}

func TestLibraryFiltersDeletedAndHeals(t *testing.T) {
	s, engine, sess := newFixture(t)
	lib := NewLibrary(s, engine, sess, nil, nslog.NullLogger())
	lib.Add(context.Background(), sampleNovel())

	store.AddDeleted(s, novelID)
	assert.Empty(t, lib.Items())

	// the filtered list was written back
	var raw []domain.LibraryItem
	s.GetJSON(store.KeyLibrary, &raw)
	assert.Empty(t, raw)
}

func TestLibrarySetChapterCount(t *testing.T) {
	s, engine, sess := newFixture(t)
	lib := NewLibrary(s, engine, sess, nil, nslog.NullLogger())
	lib.Add(context.Background(), sampleNovel())
	lib.UpdateProgress(context.Background(), novelID, "", 10)

	lib.SetChapterCount(novelID, 40)

	item, _ := lib.Item(novelID)
	assert.Equal(t, 40, item.TotalChapters)
	assert.InDelta(t, 25.0, item.Progress, 0.01)
}
