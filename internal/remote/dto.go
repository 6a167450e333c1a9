package remote

import (
	"time"

	"github.com/novelshare/novelsync/internal/domain"
)

// Row shapes mirror the remote tables (snake_case columns). Nested joins come
// back under the joined table's name.

type novelRow struct {
	ID            string    `json:"id,omitempty"`
	Slug          string    `json:"slug,omitempty"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	CoverImage    string    `json:"cover_image,omitempty"`
	Genres        []string  `json:"genres,omitempty"`
	Status        string    `json:"status,omitempty"`
	TotalChapters int       `json:"total_chapters,omitempty"`
	AuthorID      string    `json:"author_id,omitempty"`
	Author        string    `json:"author,omitempty"`
	Rating        float64   `json:"rating,omitempty"`
	CreatedAt     time.Time `json:"created_at,omitzero"`
	UpdatedAt     time.Time `json:"updated_at,omitzero"`
}

type chapterRow struct {
	ID            string    `json:"id,omitempty"`
	NovelID       string    `json:"novel_id"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	Status        string    `json:"status"`
	ChapterNumber int       `json:"chapter_number"`
	CreatedAt     time.Time `json:"created_at,omitzero"`
	UpdatedAt     time.Time `json:"updated_at,omitzero"`
}

type libraryRowDTO struct {
	UserID         string     `json:"user_id"`
	NovelID        string     `json:"novel_id"`
	CurrentChapter int        `json:"current_chapter"`
	AddedAt        time.Time  `json:"added_at,omitzero"`
	LastReadAt     *time.Time `json:"last_read_at,omitempty"`
	Novels         *novelRow  `json:"novels,omitempty"`
}

type historyRowDTO struct {
	UserID       string    `json:"user_id"`
	NovelID      string    `json:"novel_id"`
	ChapterID    string    `json:"chapter_id,omitempty"`
	ChapterTitle string    `json:"chapter_title,omitempty"`
	ReadAt       time.Time `json:"read_at,omitzero"`
	Novels       *novelRow `json:"novels,omitempty"`
}

type ratingRow struct {
	UserID    string    `json:"user_id"`
	NovelID   string    `json:"novel_id"`
	Rating    int       `json:"rating"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

type followRow struct {
	FollowerID  string      `json:"follower_id"`
	FollowingID string      `json:"following_id"`
	CreatedAt   time.Time   `json:"created_at,omitzero"`
	Profiles    *profileRow `json:"profiles,omitempty"`
}

type profileRow struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	Bio       string    `json:"bio,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

// --- mapping ---

func (r *novelRow) toDomain() *domain.Novel {
	if r == nil {
		return nil
	}
	return &domain.Novel{
		ID:            r.ID,
		Slug:          r.Slug,
		Title:         r.Title,
		Author:        r.Author,
		AuthorID:      r.AuthorID,
		Description:   r.Description,
		CoverImage:    r.CoverImage,
		Genres:        r.Genres,
		Status:        r.Status,
		TotalChapters: r.TotalChapters,
		Rating:        r.Rating,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func novelToRow(n *domain.Novel) novelRow {
	status := n.Status
	if status == "" {
		status = "ongoing"
	}
	return novelRow{
		ID:            n.ID,
		Slug:          n.Slug,
		Title:         n.Title,
		Description:   n.Description,
		CoverImage:    n.CoverImage,
		Genres:        n.Genres,
		Status:        status,
		TotalChapters: n.TotalChapters,
		AuthorID:      n.AuthorID,
		Author:        n.Author,
	}
}

func novelsToDomain(rows []novelRow) []domain.Novel {
	out := make([]domain.Novel, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].toDomain())
	}
	return out
}

func (r *chapterRow) toDomain() *domain.Chapter {
	if r == nil {
		return nil
	}
	status := domain.ChapterStatus(r.Status)
	if status == "" {
		status = domain.ChapterPublished
	}
	return &domain.Chapter{
		ID:        r.ID,
		NovelID:   r.NovelID,
		Number:    r.ChapterNumber,
		Title:     r.Title,
		Content:   r.Content,
		Status:    status,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (r *libraryRowDTO) toDomain() domain.LibraryRow {
	row := domain.LibraryRow{
		NovelID:        r.NovelID,
		CurrentChapter: r.CurrentChapter,
		AddedAt:        r.AddedAt,
		Novel:          r.Novels.toDomain(),
	}
	if r.LastReadAt != nil {
		row.LastReadAt = *r.LastReadAt
	}
	return row
}

func (r *historyRowDTO) toDomain() domain.HistoryRow {
	return domain.HistoryRow{
		NovelID:      r.NovelID,
		ChapterID:    r.ChapterID,
		ChapterTitle: r.ChapterTitle,
		ReadAt:       r.ReadAt,
		Novel:        r.Novels.toDomain(),
	}
}

func (r *profileRow) toDomain() *domain.Profile {
	if r == nil {
		return nil
	}
	return &domain.Profile{
		ID:       r.ID,
		Username: r.Username,
		Email:    r.Email,
		Bio:      r.Bio,
		Avatar:   r.AvatarURL,
	}
}
