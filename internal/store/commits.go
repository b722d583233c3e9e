package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kilupskalvis/metavc/internal/models"
	bolt "go.etcd.io/bbolt"
)

// entryKey returns the index-entries bucket key for one entry of a commit.
func entryKey(commitID string, seq int) []byte {
	return []byte(fmt.Sprintf("%s:%08d", commitID, seq))
}

// CreateCommit atomically stores a commit together with its index entries.
func (s *Store) CreateCommit(commit *models.Commit, entries []*models.IndexEntry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		commitBucket := tx.Bucket(bucketCommits)
		if commitBucket == nil {
			return fmt.Errorf("commits bucket not found")
		}

		if commitBucket.Get([]byte(commit.ID)) != nil {
			return fmt.Errorf("commit %s already exists", commit.ShortID())
		}

		data, err := json.Marshal(commit)
		if err != nil {
			return fmt.Errorf("marshal commit: %w", err)
		}
		if err := commitBucket.Put([]byte(commit.ID), data); err != nil {
			return fmt.Errorf("store commit: %w", err)
		}

		entryBucket := tx.Bucket(bucketEntries)
		for i, e := range entries {
			e.CommitID = commit.ID
			e.Seq = i
			entryData, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("marshal index entry: %w", err)
			}
			if err := entryBucket.Put(entryKey(commit.ID, i), entryData); err != nil {
				return fmt.Errorf("store index entry: %w", err)
			}
		}

		return nil
	})
}

// GetCommit retrieves a commit by ID. Returns (nil, nil) if not found.
func (s *Store) GetCommit(id string) (*models.Commit, error) {
	var commit *models.Commit

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketCommits)
		if bucket == nil {
			return nil
		}

		data := bucket.Get([]byte(id))
		if data == nil {
			return nil
		}

		commit = &models.Commit{}
		return json.Unmarshal(data, commit)
	})

	return commit, err
}

// HasCommit checks whether a commit exists.
func (s *Store) HasCommit(id string) (bool, error) {
	var exists bool
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketCommits)
		if bucket == nil {
			return nil
		}
		exists = bucket.Get([]byte(id)) != nil
		return nil
	})
	return exists, err
}

// GetCommitByShortID retrieves a commit by unique ID prefix.
// Returns (nil, nil) if no commit matches, an error if the prefix is ambiguous.
func (s *Store) GetCommitByShortID(shortID string) (*models.Commit, error) {
	if shortID == "" {
		return nil, fmt.Errorf("empty commit ID prefix")
	}

	var commit *models.Commit

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketCommits)
		if bucket == nil {
			return nil
		}

		c := bucket.Cursor()
		prefix := []byte(shortID)
		var matched []byte
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			if matched != nil {
				return fmt.Errorf("commit ID prefix '%s' is ambiguous", shortID)
			}
			matched = v
		}
		if matched == nil {
			return nil
		}

		commit = &models.Commit{}
		return json.Unmarshal(matched, commit)
	})

	if err != nil {
		return nil, err
	}
	return commit, nil
}

// GetEntriesByCommit returns a commit's index entries in sequence order.
func (s *Store) GetEntriesByCommit(commitID string) ([]*models.IndexEntry, error) {
	var entries []*models.IndexEntry

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketEntries)
		if bucket == nil {
			return nil
		}

		prefix := commitID + ":"
		c := bucket.Cursor()
		for k, v := c.Seek([]byte(prefix)); k != nil && strings.HasPrefix(string(k), prefix); k, v = c.Next() {
			var e models.IndexEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("unmarshal index entry: %w", err)
			}
			entries = append(entries, &e)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return entries, nil
}

// CountCommits returns the total number of commits in the store.
func (s *Store) CountCommits() (int, error) {
	var count int
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketCommits)
		if bucket == nil {
			return nil
		}
		count = bucket.Stats().KeyN
		return nil
	})
	return count, err
}
