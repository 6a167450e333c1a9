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
	"time"

	"github.com/novelshare/novelsync/internal/domain"
)

// --- user_library ---

// UserLibrary returns the user's library rows with the nested novel join.
// Rows whose novel no longer exists come back with a nil Novel; reconciliation
// treats those as stale and repairs them.
func (c *Client) UserLibrary(ctx context.Context, userID string) ([]domain.LibraryRow, error) {
	q := url.Values{}
	q.Set("select", "user_id,novel_id,current_chapter,added_at,last_read_at,novels("+novelColumns+")")
	q.Set("user_id", "eq."+userID)
	q.Set("order", "added_at.desc")
	data, _, err := c.doRest(ctx, http.MethodGet, "user_library", q, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch library: %w", err)
	}
	var rows []libraryRowDTO
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode library: %w", err)
	}
	out := make([]domain.LibraryRow, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

// AddToLibrary inserts a library row. A duplicate insert means the novel is
// already in the library and counts as success.
func (c *Client) AddToLibrary(ctx context.Context, userID, novelID string) error {
	body := libraryRowDTO{UserID: userID, NovelID: novelID}
	_, _, err := c.doRest(ctx, http.MethodPost, "user_library", nil, body, nil)
	if isDuplicate(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to add to library: %w", err)
	}
	return nil
}

// RemoveFromLibrary deletes one library row.
func (c *Client) RemoveFromLibrary(ctx context.Context, userID, novelID string) error {
	q := url.Values{}
	q.Set("user_id", "eq."+userID)
	q.Set("novel_id", "eq."+novelID)
	if _, _, err := c.doRest(ctx, http.MethodDelete, "user_library", q, nil, nil); err != nil {
		return fmt.Errorf("failed to remove from library: %w", err)
	}
	return nil
}

// RemoveLibraryRows deletes several library rows in one request. Used by
// stale-row repair during reconciliation.
func (c *Client) RemoveLibraryRows(ctx context.Context, userID string, novelIDs []string) error {
	if len(novelIDs) == 0 {
		return nil
	}
	q := url.Values{}
	q.Set("user_id", "eq."+userID)
	q.Set("novel_id", "in.("+strings.Join(novelIDs, ",")+")")
	if _, _, err := c.doRest(ctx, http.MethodDelete, "user_library", q, nil, nil); err != nil {
		return fmt.Errorf("failed to remove library rows: %w", err)
	}
	return nil
}

// UpdateReadingProgress writes the current chapter and last-read timestamp.
func (c *Client) UpdateReadingProgress(ctx context.Context, userID, novelID string, currentChapter int) error {
	q := url.Values{}
	q.Set("user_id", "eq."+userID)
	q.Set("novel_id", "eq."+novelID)
	now := time.Now().UTC()
	body := map[string]any{
		"current_chapter": currentChapter,
		"last_read_at":    now.Format(time.RFC3339),
	}
	if _, _, err := c.doRest(ctx, http.MethodPatch, "user_library", q, body, nil); err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}
	return nil
}

// IsInLibrary reports whether the novel is in the user's remote library.
func (c *Client) IsInLibrary(ctx context.Context, userID, novelID string) (bool, error) {
	q := url.Values{}
	q.Set("select", "novel_id")
	q.Set("user_id", "eq."+userID)
	q.Set("novel_id", "eq."+novelID)
	headers := map[string]string{"Accept": "application/vnd.pgrst.object+json"}
	_, _, err := c.doRest(ctx, http.MethodGet, "user_library", q, nil, headers)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// --- reading_history ---

// ReadingHistory returns the user's history rows, most recent first.
func (c *Client) ReadingHistory(ctx context.Context, userID string, limit int) ([]domain.HistoryRow, error) {
	q := url.Values{}
	q.Set("select", "user_id,novel_id,chapter_id,chapter_title,read_at,novels("+novelColumns+")")
	q.Set("user_id", "eq."+userID)
	q.Set("order", "read_at.desc")
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	data, _, err := c.doRest(ctx, http.MethodGet, "reading_history", q, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}
	var rows []historyRowDTO
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}
	out := make([]domain.HistoryRow, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

// AddToHistory upserts the user's single history row for a novel, replacing
// any previous chapter position.
func (c *Client) AddToHistory(ctx context.Context, userID, novelID, chapterID, chapterTitle string) error {
	q := url.Values{}
	q.Set("on_conflict", "user_id,novel_id")
	body := historyRowDTO{
		UserID:       userID,
		NovelID:      novelID,
		ChapterID:    chapterID,
		ChapterTitle: chapterTitle,
		ReadAt:       time.Now().UTC(),
	}
	headers := map[string]string{"Prefer": "resolution=merge-duplicates"}
	if _, _, err := c.doRest(ctx, http.MethodPost, "reading_history", q, body, headers); err != nil {
		return fmt.Errorf("failed to record history: %w", err)
	}
	return nil
}

// ClearHistory deletes all of the user's history rows.
func (c *Client) ClearHistory(ctx context.Context, userID string) error {
	q := url.Values{}
	q.Set("user_id", "eq."+userID)
	if _, _, err := c.doRest(ctx, http.MethodDelete, "reading_history", q, nil, nil); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// --- ratings ---

// RateNovel upserts the user's rating for a novel.
func (c *Client) RateNovel(ctx context.Context, userID, novelID string, rating int) error {
	q := url.Values{}
	q.Set("on_conflict", "user_id,novel_id")
	body := ratingRow{
		UserID:    userID,
		NovelID:   novelID,
		Rating:    rating,
		UpdatedAt: time.Now().UTC(),
	}
	headers := map[string]string{"Prefer": "resolution=merge-duplicates"}
	if _, _, err := c.doRest(ctx, http.MethodPost, "ratings", q, body, headers); err != nil {
		return fmt.Errorf("failed to rate novel: %w", err)
	}
	return nil
}

// UserRating returns the user's rating for a novel and whether one exists.
func (c *Client) UserRating(ctx context.Context, userID, novelID string) (int, bool, error) {
	q := url.Values{}
	q.Set("select", "rating")
	q.Set("user_id", "eq."+userID)
	q.Set("novel_id", "eq."+novelID)
	headers := map[string]string{"Accept": "application/vnd.pgrst.object+json"}
	data, _, err := c.doRest(ctx, http.MethodGet, "ratings", q, nil, headers)
	if errors.Is(err, domain.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	var row ratingRow
	if err := json.Unmarshal(data, &row); err != nil {
		return 0, false, fmt.Errorf("failed to decode rating: %w", err)
	}
	return row.Rating, true, nil
}

// AverageRating computes a novel's average rating client-side from all rating
// rows. Returns ok=false when the novel has no ratings.
func (c *Client) AverageRating(ctx context.Context, novelID string) (float64, bool, error) {
	q := url.Values{}
	q.Set("select", "rating")
	q.Set("novel_id", "eq."+novelID)
	data, _, err := c.doRest(ctx, http.MethodGet, "ratings", q, nil, nil)
	if err != nil {
		return 0, false, fmt.Errorf("failed to fetch ratings: %w", err)
	}
	var rows []ratingRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return 0, false, fmt.Errorf("failed to decode ratings: %w", err)
	}
	if len(rows) == 0 {
		return 0, false, nil
	}
	var sum int
	for _, r := range rows {
		sum += r.Rating
	}
	return float64(sum) / float64(len(rows)), true, nil
}

// --- author_follows ---

// FollowAuthor inserts a follow row; a duplicate means already following.
func (c *Client) FollowAuthor(ctx context.Context, userID, authorID string) error {
	body := followRow{FollowerID: userID, FollowingID: authorID}
	_, _, err := c.doRest(ctx, http.MethodPost, "author_follows", nil, body, nil)
	if isDuplicate(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to follow author: %w", err)
	}
	return nil
}

// UnfollowAuthor deletes the follow row.
func (c *Client) UnfollowAuthor(ctx context.Context, userID, authorID string) error {
	q := url.Values{}
	q.Set("follower_id", "eq."+userID)
	q.Set("following_id", "eq."+authorID)
	if _, _, err := c.doRest(ctx, http.MethodDelete, "author_follows", q, nil, nil); err != nil {
		return fmt.Errorf("failed to unfollow author: %w", err)
	}
	return nil
}

// IsFollowing reports whether the user follows the author.
func (c *Client) IsFollowing(ctx context.Context, userID, authorID string) (bool, error) {
	q := url.Values{}
	q.Set("select", "following_id")
	q.Set("follower_id", "eq."+userID)
	q.Set("following_id", "eq."+authorID)
	headers := map[string]string{"Accept": "application/vnd.pgrst.object+json"}
	_, _, err := c.doRest(ctx, http.MethodGet, "author_follows", q, nil, headers)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Following returns the authors the user follows, with profile snapshots.
func (c *Client) Following(ctx context.Context, userID string) ([]domain.FollowedAuthor, error) {
	q := url.Values{}
	q.Set("select", "follower_id,following_id,created_at,profiles(id,username,avatar_url)")
	q.Set("follower_id", "eq."+userID)
	q.Set("order", "created_at.desc")
	data, _, err := c.doRest(ctx, http.MethodGet, "author_follows", q, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch follows: %w", err)
	}
	var rows []followRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode follows: %w", err)
	}
	out := make([]domain.FollowedAuthor, 0, len(rows))
	for _, r := range rows {
		fa := domain.FollowedAuthor{
			AuthorID:   r.FollowingID,
			FollowedAt: r.CreatedAt.UnixMilli(),
		}
		if r.Profiles != nil {
			fa.Name = r.Profiles.Username
			fa.Avatar = r.Profiles.AvatarURL
		}
		out = append(out, fa)
	}
	return out, nil
}

// --- profiles ---

// CreateProfile inserts a profile row after sign-up. A duplicate insert means
// the profile already exists and counts as success.
func (c *Client) CreateProfile(ctx context.Context, userID, username, email string) error {
	body := profileRow{ID: userID, Username: username, Email: email}
	_, _, err := c.doRest(ctx, http.MethodPost, "profiles", nil, body, nil)
	if isDuplicate(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// GetProfile returns a user's profile, or ErrNotFound.
func (c *Client) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	q := url.Values{}
	q.Set("select", "id,username,email,bio,avatar_url,created_at")
	q.Set("id", "eq."+userID)
	headers := map[string]string{"Accept": "application/vnd.pgrst.object+json"}
	data, _, err := c.doRest(ctx, http.MethodGet, "profiles", q, nil, headers)
	if err != nil {
		return nil, err
	}
	var row profileRow
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	return row.toDomain(), nil
}

// UpdateProfile patches profile columns and returns the updated profile.
func (c *Client) UpdateProfile(ctx context.Context, userID string, updates map[string]any) (*domain.Profile, error) {
	q := url.Values{}
	q.Set("id", "eq."+userID)
	headers := map[string]string{"Prefer": "return=representation"}
	data, _, err := c.doRest(ctx, http.MethodPatch, "profiles", q, updates, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	var rows []profileRow
	if err := json.Unmarshal(data, &rows); err != nil || len(rows) == 0 {
		return nil, fmt.Errorf("unexpected update response: %s", truncate(string(data), 120))
	}
	return rows[0].toDomain(), nil
}
