package pipeline

import "strings"

// EntityKind distinguishes the two pipeline owners. Jobs carry it so results
// route without probing both tables.
type EntityKind string

const (
	EntityProject EntityKind = "project"
	EntityDraft   EntityKind = "draft"
)

// Valid reports whether k names a known entity kind.
func (k EntityKind) Valid() bool {
	return k == EntityProject || k == EntityDraft
}

// ParseEntityKind accepts singular or plural forms in any case.
func ParseEntityKind(value string) (EntityKind, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "project", "projects":
		return EntityProject, true
	case "draft", "drafts":
		return EntityDraft, true
	default:
		return "", false
	}
}

// LockKey namespaces an entity ID for Locker.
func LockKey(kind EntityKind, id string) string {
	return string(kind) + ":" + id
}
