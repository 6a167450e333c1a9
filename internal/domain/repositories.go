package domain

import "context"

// NovelRepository provides access to the remote novels table.
type NovelRepository interface {
	// Novels returns the newest novels, paginated.
	Novels(ctx context.Context, limit, offset int) ([]Novel, error)

	// Novel looks a novel up by canonical id, falling back to slug.
	// Returns (nil, nil) when the novel cannot be resolved.
	Novel(ctx context.Context, id string) (*Novel, error)

	// NovelsByAuthor returns an author's novels, most recently updated first.
	NovelsByAuthor(ctx context.Context, authorID string, limit, offset int) ([]Novel, error)

	// SearchNovels matches novels whose title contains the query substring.
	SearchNovels(ctx context.Context, query string) ([]Novel, error)

	// NovelsByGenre returns novels whose genre array contains the genre.
	NovelsByGenre(ctx context.Context, genre string) ([]Novel, error)

	// UpsertNovel inserts or updates a novel keyed by id when present.
	UpsertNovel(ctx context.Context, novel *Novel) (*Novel, error)

	// DeleteNovels removes novels (optionally scoped to an author) and cleans
	// up dependent user_library and reading_history rows. Returns deleted ids.
	DeleteNovels(ctx context.Context, ids []string, authorID string) ([]string, error)

	// CountChapters counts a novel's chapters, optionally published only.
	CountChapters(ctx context.Context, novelID string, publishedOnly bool) (int, error)
}

// ChapterRepository provides access to the remote chapters table.
type ChapterRepository interface {
	// Chapters returns a novel's chapters ordered by chapter number.
	Chapters(ctx context.Context, novelID string) ([]Chapter, error)

	// ChapterByNumber returns a single chapter by its number.
	ChapterByNumber(ctx context.Context, novelID string, number int) (*Chapter, error)

	// ChapterByID returns a single chapter by its id.
	ChapterByID(ctx context.Context, novelID, chapterID string) (*Chapter, error)

	// UpsertChapter inserts or updates a chapter keyed by id when present.
	UpsertChapter(ctx context.Context, chapter *Chapter) (*Chapter, error)

	// DeleteChapter removes a chapter.
	DeleteChapter(ctx context.Context, novelID, chapterID string) error
}

// LibraryRemote provides access to the remote per-user library.
// Duplicate inserts are treated as success, not error.
type LibraryRemote interface {
	UserLibrary(ctx context.Context, userID string) ([]LibraryRow, error)
	AddToLibrary(ctx context.Context, userID, novelID string) error
	RemoveFromLibrary(ctx context.Context, userID, novelID string) error
	RemoveLibraryRows(ctx context.Context, userID string, novelIDs []string) error
	UpdateReadingProgress(ctx context.Context, userID, novelID string, currentChapter int) error
	IsInLibrary(ctx context.Context, userID, novelID string) (bool, error)
}

// HistoryRemote provides access to remote reading history. The remote keeps at
// most one row per (user, novel), unlike the local 50-entry list.
type HistoryRemote interface {
	ReadingHistory(ctx context.Context, userID string, limit int) ([]HistoryRow, error)
	AddToHistory(ctx context.Context, userID, novelID, chapterID, chapterTitle string) error
	ClearHistory(ctx context.Context, userID string) error
}

// RatingRemote provides access to remote ratings, upserted on (user, novel).
type RatingRemote interface {
	RateNovel(ctx context.Context, userID, novelID string, rating int) error
	UserRating(ctx context.Context, userID, novelID string) (int, bool, error)
	AverageRating(ctx context.Context, novelID string) (float64, bool, error)
}

// FollowRemote provides access to remote author follows, keyed on
// (follower, followee). Duplicate inserts are tolerated.
type FollowRemote interface {
	FollowAuthor(ctx context.Context, userID, authorID string) error
	UnfollowAuthor(ctx context.Context, userID, authorID string) error
	IsFollowing(ctx context.Context, userID, authorID string) (bool, error)
	Following(ctx context.Context, userID string) ([]FollowedAuthor, error)
}

// ProfileRemote provides access to remote user profiles.
type ProfileRemote interface {
	// CreateProfile inserts a profile row; duplicate inserts are tolerated.
	CreateProfile(ctx context.Context, userID, username, email string) error
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	UpdateProfile(ctx context.Context, userID string, updates map[string]any) (*Profile, error)
}

// AuthEvent identifies an identity-provider state change.
type AuthEvent string

const (
	AuthSignedIn       AuthEvent = "SIGNED_IN"
	AuthSignedOut      AuthEvent = "SIGNED_OUT"
	AuthTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
)

// User is the remote identity of the signed-in user.
type User struct {
	ID       string
	Email    string
	Username string
}

// Session is an identity-provider session.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64
	User         User
}

// Identity is the opaque identity provider.
type Identity interface {
	// CurrentUser returns the signed-in user, or (nil, nil) when signed out.
	CurrentUser(ctx context.Context) (*User, error)

	// Session returns the current session, or (nil, nil) when signed out.
	Session(ctx context.Context) (*Session, error)

	SignUp(ctx context.Context, email, password, username string) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context) error

	// OAuthURL returns the redirect URL that starts an OAuth sign-in flow.
	OAuthURL(provider, redirectTo string) string

	ResetPassword(ctx context.Context, email string) error
	UpdatePassword(ctx context.Context, newPassword string) error

	// OnAuthChange registers a listener for auth events and returns a disposer.
	OnAuthChange(fn func(AuthEvent, *Session)) (unsubscribe func())
}
