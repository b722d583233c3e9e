package models

import (
	"strings"
	"time"
)

// Ref is a named pointer to a commit. Branch refs are mutable; pin refs
// (under PinRefPrefix) are never reassigned once created.
type Ref struct {
	Name      string    `json:"name"`
	CommitID  string    `json:"commit_id"`
	CreatedAt time.Time `json:"created_at"`
}

// PinRefPrefix is the namespace for permanent content-keyed refs. A ref
// "commits/<id>" exists solely to keep commit <id> durably reachable and
// survives any later branch mutation or deletion.
const PinRefPrefix = "commits/"

// PinRef returns the permanent ref name for a commit ID.
func PinRef(commitID string) string {
	return PinRefPrefix + commitID
}

// ParsePinRef extracts the commit ID from a pin ref name.
// Returns ("", false) if the name is not in the pin namespace.
func ParsePinRef(name string) (string, bool) {
	if !strings.HasPrefix(name, PinRefPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(name, PinRefPrefix)
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// IsPinRef returns true for names in the pin namespace.
func IsPinRef(name string) bool {
	_, ok := ParsePinRef(name)
	return ok
}
