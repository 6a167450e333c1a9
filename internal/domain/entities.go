package domain

import "time"

// ChapterStatus distinguishes unpublished drafts from published chapters.
type ChapterStatus string

const (
	ChapterDraft     ChapterStatus = "draft"
	ChapterPublished ChapterStatus = "published"
)

// Novel is the remote content object that every user-scoped entity references.
type Novel struct {
	ID            string    `json:"id"`
	Slug          string    `json:"slug,omitempty"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	AuthorID      string    `json:"authorId,omitempty"`
	Description   string    `json:"description,omitempty"`
	CoverImage    string    `json:"coverImage,omitempty"`
	Genres        []string  `json:"genres,omitempty"`
	Status        string    `json:"status,omitempty"` // "ongoing" or "completed"
	TotalChapters int       `json:"totalChapters"`
	Rating        float64   `json:"rating,omitempty"`
	CreatedAt     time.Time `json:"createdAt,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt,omitempty"`
}

// Chapter is authored content cached per novel.
type Chapter struct {
	ID        string        `json:"id"`
	NovelID   string        `json:"novelId"`
	Number    int           `json:"number"`
	Title     string        `json:"title"`
	Content   string        `json:"content"`
	Status    ChapterStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt,omitempty"`
	UpdatedAt time.Time     `json:"updatedAt,omitempty"`
}

// LibraryItem mirrors remote novel fields for fast local rendering plus
// local-only reading bookkeeping. The identity dedup key is NovelID, never a
// record-local id.
type LibraryItem struct {
	NovelID          string  `json:"novelId"`
	Title            string  `json:"title"`
	Author           string  `json:"author"`
	Genre            string  `json:"genre,omitempty"`
	Status           string  `json:"status,omitempty"`
	Description      string  `json:"description,omitempty"`
	CoverImage       string  `json:"coverImage,omitempty"`
	Rating           float64 `json:"rating,omitempty"`
	TotalChapters    int     `json:"totalChapters"`
	CurrentChapter   int     `json:"currentChapter"`
	CurrentChapterID string  `json:"currentChapterId,omitempty"`
	Progress         float64 `json:"progress"`
	AddedAt          int64   `json:"addedAt"`
	LastRead         int64   `json:"lastRead,omitempty"`
}

// HistoryEntry is one row of the local most-recent-first reading history.
type HistoryEntry struct {
	NovelID      string `json:"novelId"`
	ChapterID    string `json:"chapterId"`
	NovelTitle   string `json:"novelTitle"`
	ChapterTitle string `json:"chapterTitle,omitempty"`
	CoverImage   string `json:"coverImage,omitempty"`
	Timestamp    int64  `json:"timestamp"`
}

// Rating is a user's rating of a novel, keyed by novel id in the local map.
type Rating struct {
	Rating    int    `json:"rating"`
	Review    string `json:"review,omitempty"`
	UpdatedAt int64  `json:"updatedAt"`
}

// FollowedAuthor is one entry of the local following list.
type FollowedAuthor struct {
	AuthorID   string `json:"authorId"`
	Name       string `json:"name,omitempty"`
	Avatar     string `json:"avatar,omitempty"`
	FollowedAt int64  `json:"followedAt"`
}

// Profile is the cached display snapshot of the signed-in user. It survives
// logout and is overwritten on the next login.
type Profile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Bio      string `json:"bio,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

// Credentials holds the saved sign-in hint. Never the password.
type Credentials struct {
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
	SavedAt  int64  `json:"savedAt"`
}

// LibraryRow is a remote user_library row with its nested novel join.
// Novel is nil when the referenced novel no longer exists remotely.
type LibraryRow struct {
	NovelID        string
	CurrentChapter int
	AddedAt        time.Time
	LastReadAt     time.Time
	Novel          *Novel
}

// HistoryRow is a remote reading_history row with its nested novel join.
type HistoryRow struct {
	NovelID      string
	ChapterID    string
	ChapterTitle string
	ReadAt       time.Time
	Novel        *Novel
}
