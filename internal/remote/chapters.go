package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/novelshare/novelsync/internal/domain"
)

const chapterColumns = "id,novel_id,title,content,status,chapter_number,created_at,updated_at"

// Chapters returns a novel's chapters ordered by chapter number.
func (c *Client) Chapters(ctx context.Context, novelID string) ([]domain.Chapter, error) {
	q := url.Values{}
	q.Set("select", chapterColumns)
	q.Set("novel_id", "eq."+novelID)
	q.Set("order", "chapter_number.asc")
	data, _, err := c.doRest(ctx, http.MethodGet, "chapters", q, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chapters: %w", err)
	}
	var rows []chapterRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode chapters: %w", err)
	}
	out := make([]domain.Chapter, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].toDomain())
	}
	return out, nil
}

// ChapterByNumber returns a single chapter by its number within a novel.
func (c *Client) ChapterByNumber(ctx context.Context, novelID string, number int) (*domain.Chapter, error) {
	q := url.Values{}
	q.Set("select", chapterColumns)
	q.Set("novel_id", "eq."+novelID)
	q.Set("chapter_number", "eq."+strconv.Itoa(number))
	return c.singleChapter(ctx, q)
}

// ChapterByID returns a single chapter by its id.
func (c *Client) ChapterByID(ctx context.Context, novelID, chapterID string) (*domain.Chapter, error) {
	q := url.Values{}
	q.Set("select", chapterColumns)
	q.Set("novel_id", "eq."+novelID)
	q.Set("id", "eq."+chapterID)
	return c.singleChapter(ctx, q)
}

func (c *Client) singleChapter(ctx context.Context, q url.Values) (*domain.Chapter, error) {
	headers := map[string]string{"Accept": "application/vnd.pgrst.object+json"}
	data, _, err := c.doRest(ctx, http.MethodGet, "chapters", q, nil, headers)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chapter: %w", err)
	}
	var row chapterRow
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("failed to decode chapter: %w", err)
	}
	return row.toDomain(), nil
}

// UpsertChapter inserts or updates a chapter keyed by id when present. New
// chapters default to draft status until explicitly published.
func (c *Client) UpsertChapter(ctx context.Context, chapter *domain.Chapter) (*domain.Chapter, error) {
	status := chapter.Status
	if status == "" {
		status = domain.ChapterDraft
	}
	row := chapterRow{
		NovelID:       chapter.NovelID,
		Title:         chapter.Title,
		Content:       chapter.Content,
		Status:        string(status),
		ChapterNumber: chapter.Number,
	}
	headers := map[string]string{"Prefer": "return=representation"}

	var (
		data []byte
		err  error
	)
	if chapter.ID != "" && domain.IsCanonicalID(chapter.ID) {
		q := url.Values{}
		q.Set("id", "eq."+chapter.ID)
		data, _, err = c.doRest(ctx, http.MethodPatch, "chapters", q, row, headers)
	} else {
		data, _, err = c.doRest(ctx, http.MethodPost, "chapters", nil, row, headers)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save chapter: %w", err)
	}

	var rows []chapterRow
	if err := json.Unmarshal(data, &rows); err != nil || len(rows) == 0 {
		return nil, fmt.Errorf("unexpected save response: %s", truncate(string(data), 120))
	}
	return rows[0].toDomain(), nil
}

// DeleteChapter removes a chapter.
func (c *Client) DeleteChapter(ctx context.Context, novelID, chapterID string) error {
	q := url.Values{}
	q.Set("novel_id", "eq."+novelID)
	q.Set("id", "eq."+chapterID)
	if _, _, err := c.doRest(ctx, http.MethodDelete, "chapters", q, nil, nil); err != nil {
		return fmt.Errorf("failed to delete chapter: %w", err)
	}
	return nil
}
