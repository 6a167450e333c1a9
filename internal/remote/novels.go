package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/novelshare/novelsync/internal/domain"
)

const novelColumns = "id,slug,title,description,cover_image,genres,status,total_chapters,author_id,author,rating,created_at,updated_at"

// Novels returns the newest novels, paginated.
func (c *Client) Novels(ctx context.Context, limit, offset int) ([]domain.Novel, error) {
	q := url.Values{}
	q.Set("select", novelColumns)
	q.Set("order", "created_at.desc")
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	data, _, err := c.doRest(ctx, http.MethodGet, "novels", q, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch novels: %w", err)
	}
	var rows []novelRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode novels: %w", err)
	}
	return novelsToDomain(rows), nil
}

// Novel looks a novel up by canonical id, falling back to slug for
// human-readable identifiers. Local-only ids never exist remotely.
func (c *Client) Novel(ctx context.Context, id string) (*domain.Novel, error) {
	if id == "" || domain.IsLocalOnlyID(id) {
		return nil, nil
	}
	if domain.IsCanonicalID(id) {
		return c.novelByColumn(ctx, "id", id)
	}
	return c.novelByColumn(ctx, "slug", id)
}

func (c *Client) novelByColumn(ctx context.Context, column, value string) (*domain.Novel, error) {
	q := url.Values{}
	q.Set("select", novelColumns)
	q.Set(column, "eq."+value)
	headers := map[string]string{"Accept": "application/vnd.pgrst.object+json"}
	data, _, err := c.doRest(ctx, http.MethodGet, "novels", q, nil, headers)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch novel: %w", err)
	}
	var row novelRow
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("failed to decode novel: %w", err)
	}
	return row.toDomain(), nil
}

// NovelsByAuthor returns an author's novels, most recently updated first.
func (c *Client) NovelsByAuthor(ctx context.Context, authorID string, limit, offset int) ([]domain.Novel, error) {
	q := url.Values{}
	q.Set("select", novelColumns)
	q.Set("author_id", "eq."+authorID)
	q.Set("order", "updated_at.desc")
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	data, _, err := c.doRest(ctx, http.MethodGet, "novels", q, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch author novels: %w", err)
	}
	var rows []novelRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode author novels: %w", err)
	}
	return novelsToDomain(rows), nil
}

// SearchNovels matches novels whose title contains the query substring,
// case-insensitively.
func (c *Client) SearchNovels(ctx context.Context, query string) ([]domain.Novel, error) {
	q := url.Values{}
	q.Set("select", novelColumns)
	q.Set("title", "ilike.*"+query+"*")
	q.Set("order", "created_at.desc")
	data, _, err := c.doRest(ctx, http.MethodGet, "novels", q, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	var rows []novelRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode search results: %w", err)
	}
	return novelsToDomain(rows), nil
}

// NovelsByGenre returns novels whose genre array contains the genre.
func (c *Client) NovelsByGenre(ctx context.Context, genre string) ([]domain.Novel, error) {
	q := url.Values{}
	q.Set("select", novelColumns)
	q.Set("genres", `cs.{"`+genre+`"}`)
	q.Set("order", "created_at.desc")
	data, _, err := c.doRest(ctx, http.MethodGet, "novels", q, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch genre novels: %w", err)
	}
	var rows []novelRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode genre novels: %w", err)
	}
	return novelsToDomain(rows), nil
}

// UpsertNovel inserts or updates a novel. An update is keyed by id; inserts
// leave id generation to the remote.
func (c *Client) UpsertNovel(ctx context.Context, novel *domain.Novel) (*domain.Novel, error) {
	row := novelToRow(novel)
	headers := map[string]string{"Prefer": "return=representation"}

	var (
		data []byte
		err  error
	)
	if novel.ID != "" && domain.IsCanonicalID(novel.ID) {
		q := url.Values{}
		q.Set("id", "eq."+novel.ID)
		row.ID = ""
		data, _, err = c.doRest(ctx, http.MethodPatch, "novels", q, row, headers)
	} else {
		row.ID = ""
		data, _, err = c.doRest(ctx, http.MethodPost, "novels", nil, row, headers)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save novel: %w", err)
	}

	var rows []novelRow
	if err := json.Unmarshal(data, &rows); err != nil || len(rows) == 0 {
		return nil, fmt.Errorf("unexpected save response: %s", truncate(string(data), 120))
	}
	return rows[0].toDomain(), nil
}

// DeleteNovels removes novels, optionally scoped to an author, then cleans up
// dependent user_library and reading_history rows so no dangling references
// survive. Cleanup failures are logged, not fatal; stale-row repair during
// sync catches anything missed here.
func (c *Client) DeleteNovels(ctx context.Context, ids []string, authorID string) ([]string, error) {
	canonical := make([]string, 0, len(ids))
	for _, id := range ids {
		if domain.IsCanonicalID(id) {
			canonical = append(canonical, id)
		}
	}
	if len(canonical) == 0 {
		return nil, nil
	}

	q := url.Values{}
	q.Set("id", "in.("+strings.Join(canonical, ",")+")")
	if authorID != "" {
		q.Set("author_id", "eq."+authorID)
	}
	q.Set("select", "id")
	headers := map[string]string{"Prefer": "return=representation"}
	data, _, err := c.doRest(ctx, http.MethodDelete, "novels", q, nil, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to delete novels: %w", err)
	}

	var rows []novelRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode deleted novels: %w", err)
	}
	deleted := make([]string, 0, len(rows))
	for _, r := range rows {
		deleted = append(deleted, r.ID)
	}
	if len(deleted) == 0 {
		return nil, nil
	}

	dq := url.Values{}
	dq.Set("novel_id", "in.("+strings.Join(deleted, ",")+")")
	for _, table := range []string{"user_library", "reading_history"} {
		if _, _, err := c.doRest(ctx, http.MethodDelete, table, dq, nil, nil); err != nil {
			c.logger.Warn("dependent row cleanup failed", "table", table, "error", err)
		}
	}
	return deleted, nil
}

// CountChapters counts a novel's chapters, optionally published only.
func (c *Client) CountChapters(ctx context.Context, novelID string, publishedOnly bool) (int, error) {
	q := url.Values{}
	q.Set("novel_id", "eq."+novelID)
	if publishedOnly {
		q.Set("status", "eq.published")
	}
	return c.count(ctx, "chapters", q)
}
