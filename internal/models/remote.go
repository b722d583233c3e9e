package models

import "time"

// Remote represents a configured remote server.
type Remote struct {
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// RemoteRef represents a remote-tracking reference.
type RemoteRef struct {
	RemoteName string    `json:"remote_name"`
	RefName    string    `json:"ref_name"`
	CommitID   string    `json:"commit_id"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// RemoteRefKey returns the bbolt key for a remote-tracking ref: "remote:ref".
func RemoteRefKey(remoteName, refName string) string {
	return remoteName + ":" + refName
}
