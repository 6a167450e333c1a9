package store

// Persisted local keys. The "novelshare_" prefix is part of the on-disk
// format and survives from earlier client versions.
const (
	KeyLibrary     = "novelshare_library"
	KeyHistory     = "novelshare_history"
	KeyRatings     = "novelshare_ratings"
	KeyFollowing   = "novelshare_following"
	KeyDeletedIDs  = "novelshare_deleted_ids"
	KeySyncQueue   = "novelshare_sync_queue"
	KeyChapters    = "novelshare_chapters"
	KeyCredentials = "novelshare_saved_credentials"
	KeyProfile     = "novelshare_profile"
	KeyGuestMode   = "novelshare_guest_mode"
)

// IsolatedKeys are the keys swapped between the guest and user namespaces.
// Profile and credentials are deliberately excluded: the profile persists
// across logout and is overwritten on the next login.
var IsolatedKeys = []string{KeyLibrary, KeyHistory, KeyRatings, KeyFollowing}

// TrimmableKeys hold list-shaped values that the quota cleanup pass may trim
// to their most recent entries.
var TrimmableKeys = []string{KeyHistory}
