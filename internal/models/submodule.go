package models

import "time"

// SelfPath is the reserved relative location for a repository embedded as its
// own submodule. It resolves to the enclosing repository's remote itself.
const SelfPath = "."

// Submodule is a registered nested repository of the working tree.
// Path is where it sits in the tree; RelURL is its location relative to the
// enclosing repository's remote (empty means "use Path", SelfPath means the
// enclosing remote itself). The submodule is "open" when a live repository is
// materialized at Path; otherwise it exists only by reference in commits.
type Submodule struct {
	Path    string    `json:"path"`
	RepoID  string    `json:"repo_id,omitempty"`
	RelURL  string    `json:"rel_url,omitempty"`
	AddedAt time.Time `json:"added_at"`
}

// RelLocation returns the relative location used to derive this submodule's
// remote from the enclosing repository's remote.
func (s *Submodule) RelLocation() string {
	if s.RelURL != "" {
		return s.RelURL
	}
	return s.Path
}
