package domain

import "errors"

// Sentinel errors for domain operations
var (
	// ErrRemoteOffline indicates the remote backend is unreachable
	ErrRemoteOffline = errors.New("remote backend is unreachable")

	// ErrAuthFailed indicates the access token is invalid or expired
	ErrAuthFailed = errors.New("authentication token is invalid")

	// ErrNotSignedIn indicates an operation that requires a signed-in user
	ErrNotSignedIn = errors.New("not signed in")

	// ErrNotFound indicates the requested row does not exist remotely
	ErrNotFound = errors.New("row not found")

	// ErrQuotaExceeded indicates a local write failed even after cleanup
	ErrQuotaExceeded = errors.New("local storage quota exceeded")

	// ErrNonCanonicalID indicates a content id that cannot exist remotely
	// (local-only works, legacy slugs); pushes skip these instead of queueing.
	ErrNonCanonicalID = errors.New("non-canonical content id")
)
