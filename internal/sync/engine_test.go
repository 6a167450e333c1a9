package sync

import (
	"context"
	"errors"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novelshare/novelsync/internal/domain"
	nslog "github.com/novelshare/novelsync/internal/log"
	"github.com/novelshare/novelsync/internal/netmon"
	"github.com/novelshare/novelsync/internal/queue"
	"github.com/novelshare/novelsync/internal/remote"
	"github.com/novelshare/novelsync/internal/store"
)

const (
	novelA  = "11111111-1111-1111-1111-111111111111"
	novelB  = "22222222-2222-2222-2222-222222222222"
	novelC  = "33333333-3333-3333-3333-333333333333"
	authorA = "44444444-4444-4444-4444-444444444444"
	userA   = "99999999-9999-9999-9999-999999999999"
)

// fakeGateway records mutations and serves canned pulls. Unused Gateway
// methods panic via the embedded nil interface.
type fakeGateway struct {
	remote.Gateway

	libraryRows []domain.LibraryRow
	libraryErr  error
	historyRows []domain.HistoryRow
	historyErr  error
	following   []domain.FollowedAuthor
	chapters    []domain.Chapter

	pushErr      error
	added        []string
	removed      []string
	removedBatch [][]string
	rated        map[string]int
	progressed   map[string]int
	followed     []string
	unfollowed   []string
	historyAdds  []string
	upserted     []string
	cleared      bool
}

func (g *fakeGateway) UserLibrary(ctx context.Context, userID string) ([]domain.LibraryRow, error) {
	return g.libraryRows, g.libraryErr
}

func (g *fakeGateway) ReadingHistory(ctx context.Context, userID string, limit int) ([]domain.HistoryRow, error) {
	return g.historyRows, g.historyErr
}

func (g *fakeGateway) Following(ctx context.Context, userID string) ([]domain.FollowedAuthor, error) {
	return g.following, nil
}

func (g *fakeGateway) Chapters(ctx context.Context, novelID string) ([]domain.Chapter, error) {
	return g.chapters, nil
}

func (g *fakeGateway) AddToLibrary(ctx context.Context, userID, novelID string) error {
	if g.pushErr != nil {
		return g.pushErr
	}
	g.added = append(g.added, novelID)
	return nil
}

func (g *fakeGateway) RemoveFromLibrary(ctx context.Context, userID, novelID string) error {
	if g.pushErr != nil {
		return g.pushErr
	}
	g.removed = append(g.removed, novelID)
	return nil
}

func (g *fakeGateway) RemoveLibraryRows(ctx context.Context, userID string, novelIDs []string) error {
	g.removedBatch = append(g.removedBatch, novelIDs)
	return nil
}

func (g *fakeGateway) RateNovel(ctx context.Context, userID, novelID string, rating int) error {
	if g.pushErr != nil {
		return g.pushErr
	}
	if g.rated == nil {
		g.rated = map[string]int{}
	}
	g.rated[novelID] = rating
	return nil
}

func (g *fakeGateway) UpdateReadingProgress(ctx context.Context, userID, novelID string, currentChapter int) error {
	if g.pushErr != nil {
		return g.pushErr
	}
	if g.progressed == nil {
		g.progressed = map[string]int{}
	}
	g.progressed[novelID] = currentChapter
	return nil
}

func (g *fakeGateway) FollowAuthor(ctx context.Context, userID, authorID string) error {
	if g.pushErr != nil {
		return g.pushErr
	}
	g.followed = append(g.followed, authorID)
	return nil
}

func (g *fakeGateway) UnfollowAuthor(ctx context.Context, userID, authorID string) error {
	if g.pushErr != nil {
		return g.pushErr
	}
	g.unfollowed = append(g.unfollowed, authorID)
	return nil
}

func (g *fakeGateway) AddToHistory(ctx context.Context, userID, novelID, chapterID, chapterTitle string) error {
	if g.pushErr != nil {
		return g.pushErr
	}
	g.historyAdds = append(g.historyAdds, novelID)
	return nil
}

func (g *fakeGateway) UpsertNovel(ctx context.Context, novel *domain.Novel) (*domain.Novel, error) {
	g.upserted = append(g.upserted, novel.ID)
	return novel, nil
}

func (g *fakeGateway) ClearHistory(ctx context.Context, userID string) error {
	g.cleared = true
	return nil
}

type failProber struct{}

func (failProber) Ping(ctx context.Context) error { return domain.ErrRemoteOffline }

// toggleProber flips between reachable and unreachable under test control.
type toggleProber struct {
	mu gosync.Mutex
	up bool
}

func (p *toggleProber) set(up bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.up = up
}

func (p *toggleProber) Ping(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.up {
		return nil
	}
	return domain.ErrRemoteOffline
}

func newEngine(t *testing.T, gw *fakeGateway) (*Engine, *store.Store) {
	t.Helper()
	s, err := store.Open(store.Options{Logger: nslog.NullLogger()})
	require.NoError(t, err)
	q := queue.New(s, nslog.NullLogger())
	e := New(s, gw, q, nil, Options{Logger: nslog.NullLogger()})
	return e, s
}

func offlineMonitor() *netmon.Monitor {
	m := netmon.New(failProber{}, netmon.Options{Logger: nslog.NullLogger()})
	m.ReportDown()
	return m
}

func libRow(novelID, title string, chapter int) domain.LibraryRow {
	return domain.LibraryRow{
		NovelID:        novelID,
		CurrentChapter: chapter,
		AddedAt:        time.Now().Add(-time.Hour),
		Novel: &domain.Novel{
			ID:            novelID,
			Title:         title,
			Author:        "Someone",
			TotalChapters: 10,
		},
	}
}

func TestSyncLibraryWritesRemoteRows(t *testing.T) {
	gw := &fakeGateway{libraryRows: []domain.LibraryRow{
		libRow(novelA, "First", 3),
		libRow(novelB, "Second", 0),
	}}
	e, s := newEngine(t, gw)

	require.NoError(t, e.SyncLibrary(context.Background(), userA))

	var items []domain.LibraryItem
	require.True(t, s.GetJSON(store.KeyLibrary, &items))
	require.Len(t, items, 2)
	assert.Equal(t, "First", items[0].Title)
	assert.Equal(t, 3, items[0].CurrentChapter)
	assert.InDelta(t, 30.0, items[0].Progress, 0.01)
}

func TestSyncLibraryPreservesLocalBookkeeping(t *testing.T) {
	gw := &fakeGateway{libraryRows: []domain.LibraryRow{libRow(novelA, "First", 2)}}
	e, s := newEngine(t, gw)

	s.SetJSON(store.KeyLibrary, []domain.LibraryItem{{
		NovelID:          novelA,
		Title:            "First",
		CurrentChapter:   5,
		CurrentChapterID: "ch-5",
		LastRead:         12345,
	}})

	require.NoError(t, e.SyncLibrary(context.Background(), userA))

	var items []domain.LibraryItem
	require.True(t, s.GetJSON(store.KeyLibrary, &items))
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].CurrentChapter, "the further local position wins")
	assert.Equal(t, "ch-5", items[0].CurrentChapterID)
	assert.Equal(t, int64(12345), items[0].LastRead)
}

func TestSyncLibraryRepairsStaleRows(t *testing.T) {
	stale := domain.LibraryRow{NovelID: novelC} // no novel join: deleted remotely
	gw := &fakeGateway{libraryRows: []domain.LibraryRow{libRow(novelA, "Kept", 1), stale}}
	e, s := newEngine(t, gw)

	s.SetJSON(store.KeyHistory, []domain.HistoryEntry{
		{NovelID: novelC, NovelTitle: "Gone", Timestamp: 1},
		{NovelID: novelA, NovelTitle: "Kept", Timestamp: 2},
	})

	require.NoError(t, e.SyncLibrary(context.Background(), userA))

	// dangling remote rows cleaned up
	require.Len(t, gw.removedBatch, 1)
	assert.Equal(t, []string{novelC}, gw.removedBatch[0])

	// id recorded as deleted
	assert.True(t, store.LoadDeleted(s).Has(novelC))

	// local history purged
	var history []domain.HistoryEntry
	require.True(t, s.GetJSON(store.KeyHistory, &history))
	require.Len(t, history, 1)
	assert.Equal(t, novelA, history[0].NovelID)

	// stale row never lands in the library
	var items []domain.LibraryItem
	require.True(t, s.GetJSON(store.KeyLibrary, &items))
	require.Len(t, items, 1)
	assert.Equal(t, novelA, items[0].NovelID)
}

func TestSyncLibraryExcludesDeletedIDs(t *testing.T) {
	gw := &fakeGateway{libraryRows: []domain.LibraryRow{
		libRow(novelA, "Kept", 1),
		libRow(novelB, "Deleted locally", 1),
	}}
	e, s := newEngine(t, gw)
	store.AddDeleted(s, novelB)

	require.NoError(t, e.SyncLibrary(context.Background(), userA))

	var items []domain.LibraryItem
	require.True(t, s.GetJSON(store.KeyLibrary, &items))
	require.Len(t, items, 1)
	assert.Equal(t, novelA, items[0].NovelID)
}

func TestSyncLibraryFailureLeavesLocalUntouched(t *testing.T) {
	gw := &fakeGateway{libraryErr: errors.New("boom")}
	e, s := newEngine(t, gw)

	local := []domain.LibraryItem{{NovelID: novelA, Title: "Mine"}}
	s.SetJSON(store.KeyLibrary, local)

	require.Error(t, e.SyncLibrary(context.Background(), userA))

	var items []domain.LibraryItem
	require.True(t, s.GetJSON(store.KeyLibrary, &items))
	assert.Equal(t, local, items)
}

func TestSyncHistoryMergesAndCaps(t *testing.T) {
	now := time.Now()
	gw := &fakeGateway{historyRows: []domain.HistoryRow{{
		NovelID: novelA,
		ReadAt:  now,
		Novel:   &domain.Novel{ID: novelA, Title: "Remote"},
	}}}
	e, s := newEngine(t, gw)

	// older local entry for the same novel plus one local-only entry
	s.SetJSON(store.KeyHistory, []domain.HistoryEntry{
		{NovelID: novelB, NovelTitle: "Local only", Timestamp: now.Add(-time.Minute).UnixMilli()},
		{NovelID: novelA, NovelTitle: "Remote", Timestamp: now.Add(-time.Hour).UnixMilli()},
	})

	require.NoError(t, e.SyncHistory(context.Background(), userA))

	var history []domain.HistoryEntry
	require.True(t, s.GetJSON(store.KeyHistory, &history))
	require.Len(t, history, 2)
	assert.Equal(t, novelA, history[0].NovelID, "newest entry first")
	assert.Equal(t, now.UnixMilli(), history[0].Timestamp, "remote entry wins when newer")
	assert.Equal(t, novelB, history[1].NovelID, "local-only entries survive")
}

func TestFullSyncPartialFailure(t *testing.T) {
	gw := &fakeGateway{
		libraryRows: []domain.LibraryRow{libRow(novelA, "First", 1)},
		historyErr:  errors.New("boom"),
	}
	e, s := newEngine(t, gw)

	res := e.FullSync(context.Background(), userA)
	assert.Equal(t, 1, res.Failures)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0].Error(), "history")

	// the successful pull was still applied
	var items []domain.LibraryItem
	require.True(t, s.GetJSON(store.KeyLibrary, &items))
	assert.Len(t, items, 1)

	// partial failure means no successful full sync timestamp
	assert.True(t, e.LastSync().IsZero())

	gw.historyErr = nil
	res = e.FullSync(context.Background(), userA)
	assert.Equal(t, 0, res.Failures)
	assert.False(t, e.LastSync().IsZero())
}

func TestPushOnlineSuccess(t *testing.T) {
	gw := &fakeGateway{}
	e, _ := newEngine(t, gw)

	res := e.PushLibraryItem(context.Background(), userA, novelA, "add")
	assert.Equal(t, PushSuccess, res.Status)
	assert.Equal(t, []string{novelA}, gw.added)
	assert.Equal(t, 0, e.Queue().Len())
}

func TestPushOfflineQueues(t *testing.T) {
	gw := &fakeGateway{}
	s, err := store.Open(store.Options{Logger: nslog.NullLogger()})
	require.NoError(t, err)
	q := queue.New(s, nslog.NullLogger())
	e := New(s, gw, q, offlineMonitor(), Options{Logger: nslog.NullLogger()})

	res := e.PushRating(context.Background(), userA, novelA, 5)
	assert.Equal(t, PushQueued, res.Status)
	assert.Empty(t, gw.rated, "no network attempt while offline")
	assert.Equal(t, 1, q.Len())
}

func TestPushErrorQueuesWithError(t *testing.T) {
	gw := &fakeGateway{pushErr: errors.New("rejected")}
	e, _ := newEngine(t, gw)

	res := e.PushProgress(context.Background(), userA, novelA, 7)
	assert.Equal(t, PushQueuedError, res.Status)
	require.Error(t, res.Err)

	ops := e.Queue().List()
	require.Len(t, ops, 1)
	assert.Equal(t, "rejected", ops[0].LastError)
}

func TestPushSkippedForNonCanonicalID(t *testing.T) {
	gw := &fakeGateway{}
	e, _ := newEngine(t, gw)

	res := e.PushLibraryItem(context.Background(), userA, "work-123", "add")
	assert.Equal(t, PushSkipped, res.Status)
	res = e.PushLibraryItem(context.Background(), "", novelA, "add")
	assert.Equal(t, PushSkipped, res.Status)
	assert.Equal(t, 0, e.Queue().Len(), "unpushable mutations are never queued")
}

func TestProcessQueueReplays(t *testing.T) {
	gw := &fakeGateway{pushErr: errors.New("down")}
	e, _ := newEngine(t, gw)

	e.PushLibraryItem(context.Background(), userA, novelA, "add")
	e.PushFollow(context.Background(), userA, authorA, "add")
	require.Equal(t, 2, e.Queue().Len())

	gw.pushErr = nil
	replayed, failed := e.ProcessQueue(context.Background())
	assert.Equal(t, 2, replayed)
	assert.Equal(t, 0, failed)
	assert.Equal(t, 0, e.Queue().Len())
	assert.Equal(t, []string{novelA}, gw.added)
	assert.Equal(t, []string{authorA}, gw.followed)
}

func TestProcessQueueBumpsFailures(t *testing.T) {
	gw := &fakeGateway{pushErr: errors.New("down")}
	e, _ := newEngine(t, gw)

	e.PushRating(context.Background(), userA, novelA, 3)
	require.Equal(t, 1, e.Queue().Len())

	// two failed replays bump, the third drops
	for i := 0; i < 2; i++ {
		replayed, failed := e.ProcessQueue(context.Background())
		assert.Equal(t, 0, replayed)
		assert.Equal(t, 1, failed)
	}
	require.Equal(t, 1, e.Queue().Len())
	assert.Equal(t, 2, e.Queue().List()[0].Retries)

	e.ProcessQueue(context.Background())
	assert.Equal(t, 0, e.Queue().Len(), "dropped at the retry ceiling")
}

func TestHistoryReplayUpsertsNovelSnapshot(t *testing.T) {
	gw := &fakeGateway{}
	s, err := store.Open(store.Options{Logger: nslog.NullLogger()})
	require.NoError(t, err)
	q := queue.New(s, nslog.NullLogger())
	e := New(s, gw, q, offlineMonitor(), Options{Logger: nslog.NullLogger()})

	snapshot := &domain.Novel{ID: novelA, Title: "Snap"}
	res := e.PushHistory(context.Background(), userA, domain.HistoryEntry{NovelID: novelA, ChapterID: "c1"}, snapshot)
	assert.Equal(t, PushQueued, res.Status)
	require.Equal(t, 1, q.Len())
	assert.Empty(t, gw.upserted, "no network attempt while offline")

	replayed, _ := e.ProcessQueue(context.Background())
	assert.Equal(t, 1, replayed)
	assert.Equal(t, []string{novelA}, gw.upserted, "snapshot upserted before the history row")
	assert.Equal(t, []string{novelA}, gw.historyAdds)
}

func TestReconnectDrainsQueue(t *testing.T) {
	gw := &fakeGateway{}
	s, err := store.Open(store.Options{Logger: nslog.NullLogger()})
	require.NoError(t, err)
	q := queue.New(s, nslog.NullLogger())

	prober := &toggleProber{}
	m := netmon.New(prober, netmon.Options{Logger: nslog.NullLogger()})
	m.ReportDown()
	e := New(s, gw, q, m, Options{Logger: nslog.NullLogger()})

	res := e.PushLibraryItem(context.Background(), userA, novelA, "add")
	assert.Equal(t, PushQueued, res.Status)
	require.Equal(t, 1, q.Len())

	prober.set(true)
	require.True(t, m.CheckNow(context.Background()))

	// the online transition kicks off a replay that drains the queue
	require.Eventually(t, func() bool { return q.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{novelA}, gw.added)
}

func TestSyncChaptersMergesIntoCache(t *testing.T) {
	gw := &fakeGateway{chapters: []domain.Chapter{
		{ID: novelB, NovelID: novelA, Number: 1, Title: "One", Status: domain.ChapterPublished},
	}}
	e, s := newEngine(t, gw)

	s.SetJSON(store.KeyChapters, map[string][]domain.Chapter{
		novelA: {{ID: "work-2", Number: 2, Title: "Draft Two", Status: domain.ChapterDraft}},
	})

	require.NoError(t, e.SyncChapters(context.Background(), novelA))

	cache := map[string][]domain.Chapter{}
	require.True(t, s.GetJSON(store.KeyChapters, &cache))
	chapters := cache[novelA]
	require.Len(t, chapters, 2)
	assert.Equal(t, "One", chapters[0].Title)
	assert.Equal(t, "Draft Two", chapters[1].Title, "local-only draft survives the pull")
}

func TestSyncAllChaptersSeedsFromLibrary(t *testing.T) {
	gw := &fakeGateway{chapters: []domain.Chapter{
		{ID: novelB, NovelID: novelA, Number: 1, Title: "One", Status: domain.ChapterPublished},
	}}
	e, s := newEngine(t, gw)

	// library novel with nothing cached yet
	s.SetJSON(store.KeyLibrary, []domain.LibraryItem{{NovelID: novelA, Title: "First"}})

	require.NoError(t, e.SyncAllChapters(context.Background(), userA))

	cache := map[string][]domain.Chapter{}
	require.True(t, s.GetJSON(store.KeyChapters, &cache))
	require.Len(t, cache[novelA], 1)
	assert.Equal(t, "One", cache[novelA][0].Title)
}

func TestDetectConflicts(t *testing.T) {
	gw := &fakeGateway{libraryRows: []domain.LibraryRow{libRow(novelB, "Remote only", 1)}}
	e, s := newEngine(t, gw)

	s.SetJSON(store.KeyLibrary, []domain.LibraryItem{{NovelID: novelA, Title: "Local only"}})
	e.Queue().Enqueue(queue.Operation{Type: queue.OpRating, UserID: userA, NovelID: novelC, Rating: 4})

	conflicts, err := e.DetectConflicts(context.Background(), userA)
	require.NoError(t, err)

	var kinds []ConflictType
	for _, c := range conflicts {
		kinds = append(kinds, c.Type)
	}
	assert.Contains(t, kinds, ConflictLocalOnly)
	assert.Contains(t, kinds, ConflictRemoteOnly)
	assert.Contains(t, kinds, ConflictPending)
}
