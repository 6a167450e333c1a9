package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novelshare/novelsync/internal/domain"
	nslog "github.com/novelshare/novelsync/internal/log"
	"github.com/novelshare/novelsync/internal/store"
)

func TestHistoryRecordMostRecentFirst(t *testing.T) {
	s, engine, sess := newFixture(t)
	h := NewHistory(s, engine, sess, nil, nslog.NullLogger())

	h.Record(context.Background(), domain.HistoryEntry{NovelID: "n1", NovelTitle: "One", Timestamp: 100}, nil)
	h.Record(context.Background(), domain.HistoryEntry{NovelID: "n2", NovelTitle: "Two", Timestamp: 200}, nil)

	entries := h.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "n2", entries[0].NovelID)
	assert.Equal(t, "n1", entries[1].NovelID)
}

func TestHistoryDedupPerNovel(t *testing.T) {
	s, engine, sess := newFixture(t)
	h := NewHistory(s, engine, sess, nil, nslog.NullLogger())

	h.Record(context.Background(), domain.HistoryEntry{NovelID: "n1", ChapterID: "c1", Timestamp: 100}, nil)
	h.Record(context.Background(), domain.HistoryEntry{NovelID: "n2", ChapterID: "c9", Timestamp: 150}, nil)
	h.Record(context.Background(), domain.HistoryEntry{NovelID: "n1", ChapterID: "c2", Timestamp: 200}, nil)

	entries := h.Entries()
	require.Len(t, entries, 2, "one entry per novel")
	assert.Equal(t, "n1", entries[0].NovelID)
	assert.Equal(t, "c2", entries[0].ChapterID, "newest chapter replaces the old entry")
}

func TestHistoryCap(t *testing.T) {
	s, engine, sess := newFixture(t)
	h := NewHistory(s, engine, sess, nil, nslog.NullLogger())

	for i := 0; i < DefaultHistoryCap+10; i++ {
		h.Record(context.Background(), domain.HistoryEntry{
			NovelID:   fmt.Sprintf("n%d", i),
			Timestamp: int64(i + 1),
		}, nil)
	}

	entries := h.Entries()
	assert.Len(t, entries, DefaultHistoryCap)
	assert.Equal(t, fmt.Sprintf("n%d", DefaultHistoryCap+9), entries[0].NovelID, "newest entries survive the cap")
}

func TestHistoryLastRead(t *testing.T) {
	s, engine, sess := newFixture(t)
	h := NewHistory(s, engine, sess, nil, nslog.NullLogger())

	_, ok := h.LastRead("n1")
	assert.False(t, ok)

	h.Record(context.Background(), domain.HistoryEntry{NovelID: "n1", ChapterID: "c3", Timestamp: 50}, nil)
	en, ok := h.LastRead("n1")
	require.True(t, ok)
	assert.Equal(t, "c3", en.ChapterID)
}

func TestHistoryFiltersDeleted(t *testing.T) {
	s, engine, sess := newFixture(t)
	h := NewHistory(s, engine, sess, nil, nslog.NullLogger())

	h.Record(context.Background(), domain.HistoryEntry{NovelID: "n1", Timestamp: 100}, nil)
	h.Record(context.Background(), domain.HistoryEntry{NovelID: "n2", Timestamp: 200}, nil)
	store.AddDeleted(s, "n1")

	entries := h.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "n2", entries[0].NovelID)
}

func TestHistoryClearLocalOnlyAsGuest(t *testing.T) {
	s, engine, sess := newFixture(t)
	h := NewHistory(s, engine, sess, nil, nslog.NullLogger())

	h.Record(context.Background(), domain.HistoryEntry{NovelID: "n1", Timestamp: 100}, nil)
	h.Clear(context.Background())
	assert.Empty(t, h.Entries())
}
