package domain

import (
	"strings"

	"github.com/google/uuid"
)

// localOnlyPrefix marks content created on this device that has never existed
// remotely (author drafts pre-publication).
const localOnlyPrefix = "work-"

// IsCanonicalID reports whether id has the canonical 8-4-4-4-12 UUID shape the
// remote uses as identity. Slugs and local-only ids are not canonical; pushes
// for them can never succeed and must be skipped rather than queued.
func IsCanonicalID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// IsLocalOnlyID reports whether id identifies a device-local work.
func IsLocalOnlyID(id string) bool {
	return strings.HasPrefix(id, localOnlyPrefix)
}
