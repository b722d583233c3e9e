package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
)

// StagedFile is a file snapshot waiting to be committed.
type StagedFile struct {
	Path     string    `json:"path"`
	Content  []byte    `json:"content"`
	StagedAt time.Time `json:"staged_at"`
}

// StageFile records file content in the staging area, replacing any
// previously staged content for the same path.
func (s *Store) StageFile(path string, content []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketStagedFiles)
		if bucket == nil {
			return fmt.Errorf("staged files bucket not found")
		}

		sf := &StagedFile{
			Path:     path,
			Content:  content,
			StagedAt: time.Now(),
		}

		data, err := json.Marshal(sf)
		if err != nil {
			return fmt.Errorf("marshal staged file: %w", err)
		}

		return bucket.Put([]byte(path), data)
	})
}

// GetStagedFiles returns all staged files sorted by path.
func (s *Store) GetStagedFiles() ([]*StagedFile, error) {
	var files []*StagedFile

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketStagedFiles)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var sf StagedFile
			if err := json.Unmarshal(v, &sf); err != nil {
				return fmt.Errorf("unmarshal staged file: %w", err)
			}
			files = append(files, &sf)
			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})

	return files, nil
}

// UnstageFile removes a single path from the staging area.
func (s *Store) UnstageFile(path string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketStagedFiles)
		if bucket == nil {
			return nil
		}
		return bucket.Delete([]byte(path))
	})
}

// ClearStaging empties the staging area, typically after a commit.
func (s *Store) ClearStaging() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketStagedFiles); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketStagedFiles)
		return err
	})
}
