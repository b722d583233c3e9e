package models

// EntryKind discriminates what an index entry records at a path.
type EntryKind string

const (
	// EntryFile is plain file content tracked by the meta-repository.
	EntryFile EntryKind = "file"
	// EntrySubRepo is a reference to a nested repository at a fixed commit.
	EntrySubRepo EntryKind = "subrepo"
)

// IndexEntry is one path in a commit's index: either file content or a
// nested-repository reference.
type IndexEntry struct {
	CommitID string    `json:"commit_id,omitempty"`
	Seq      int       `json:"seq"`
	Path     string    `json:"path"`
	Kind     EntryKind `json:"kind"`

	// File entries
	Content []byte `json:"content,omitempty"`

	// Nested-repository entries
	SubRepoID   string `json:"sub_repo_id,omitempty"`
	SubCommitID string `json:"sub_commit_id,omitempty"`
}

// IsSubRepo returns true for nested-repository references.
func (e *IndexEntry) IsSubRepo() bool {
	return e.Kind == EntrySubRepo
}
