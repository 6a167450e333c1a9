package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novelshare/novelsync/internal/domain"
)

func TestMergeChaptersLocalNewerWins(t *testing.T) {
	base := time.Now().Add(-time.Hour)
	local := []domain.Chapter{{
		ID: novelA, Number: 1, Title: "Edited", Content: "local edit",
		Status: domain.ChapterPublished, UpdatedAt: base.Add(time.Minute),
	}}
	remote := []domain.Chapter{{
		ID: novelA, Number: 1, Title: "Original", Content: "remote",
		Status: domain.ChapterPublished, UpdatedAt: base,
	}}

	merged := mergeChapters(local, remote)
	require.Len(t, merged, 1)
	assert.Equal(t, "Edited", merged[0].Title)
	assert.Equal(t, "local edit", merged[0].Content)
}

func TestMergeChaptersRemoteWinsOnTie(t *testing.T) {
	now := time.Now()
	local := []domain.Chapter{{ID: novelA, Number: 1, Content: "local", UpdatedAt: now}}
	remote := []domain.Chapter{{ID: novelA, Number: 1, Content: "remote", UpdatedAt: now}}

	merged := mergeChapters(local, remote)
	require.Len(t, merged, 1)
	assert.Equal(t, "remote", merged[0].Content)
}

func TestMergeChaptersDraftStatusPreserved(t *testing.T) {
	base := time.Now().Add(-time.Hour)
	local := []domain.Chapter{{
		ID: novelA, Number: 1, Content: "old draft",
		Status: domain.ChapterDraft, UpdatedAt: base,
	}}
	remote := []domain.Chapter{{
		ID: novelA, Number: 1, Content: "remote",
		Status: domain.ChapterPublished, UpdatedAt: base.Add(time.Minute),
	}}

	merged := mergeChapters(local, remote)
	require.Len(t, merged, 1)
	assert.Equal(t, "remote", merged[0].Content, "newer remote content wins")
	assert.Equal(t, domain.ChapterDraft, merged[0].Status, "sync must never publish a draft")
}

func TestMergeChaptersKeepsLocalOnly(t *testing.T) {
	local := []domain.Chapter{
		{ID: "work-5", Number: 5, Title: "Unpushed draft", Status: domain.ChapterDraft},
	}
	remote := []domain.Chapter{
		{ID: novelA, Number: 1, Title: "One", Status: domain.ChapterPublished},
		{ID: novelB, Number: 2, Title: "Two", Status: domain.ChapterPublished},
	}

	merged := mergeChapters(local, remote)
	require.Len(t, merged, 3)
	assert.Equal(t, 1, merged[0].Number)
	assert.Equal(t, 2, merged[1].Number)
	assert.Equal(t, "Unpushed draft", merged[2].Title)
}

func TestMergeChaptersPairsByNumberWithoutIDs(t *testing.T) {
	base := time.Now().Add(-time.Hour)
	local := []domain.Chapter{{
		ID: "work-1", Number: 1, Content: "local", UpdatedAt: base.Add(time.Minute),
	}}
	remote := []domain.Chapter{{
		Number: 1, Content: "remote", UpdatedAt: base,
	}}

	merged := mergeChapters(local, remote)
	require.Len(t, merged, 1, "same number must not duplicate")
	assert.Equal(t, "local", merged[0].Content)
}
