package store

import (
	"sort"

	"github.com/novelshare/novelsync/internal/domain"
)

// DeletedSet is the authoritative local record of content ids the user has
// removed. It must be consulted before returning or storing any list that can
// reference content entities, and it outlives per-entity purges.
type DeletedSet map[string]struct{}

// LoadDeleted reads the deleted-id set from the store. A missing or malformed
// value yields an empty set.
func LoadDeleted(s domain.Store) DeletedSet {
	var ids []string
	s.GetJSON(KeyDeletedIDs, &ids)
	set := make(DeletedSet, len(ids))
	for _, id := range ids {
		if id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}

// SaveDeleted persists the set.
func SaveDeleted(s domain.Store, set DeletedSet) bool {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return s.SetJSON(KeyDeletedIDs, ids)
}

// AddDeleted records ids as deleted, merging into the persisted set.
func AddDeleted(s domain.Store, ids ...string) {
	if len(ids) == 0 {
		return
	}
	set := LoadDeleted(s)
	for _, id := range ids {
		if id != "" {
			set[id] = struct{}{}
		}
	}
	SaveDeleted(s, set)
}

func (d DeletedSet) Has(id string) bool {
	_, ok := d[id]
	return ok
}

func (d DeletedSet) Empty() bool { return len(d) == 0 }
