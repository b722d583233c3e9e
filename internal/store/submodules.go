package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/kilupskalvis/metavc/internal/models"
	bolt "go.etcd.io/bbolt"
)

// AddSubmodule registers a nested repository at the given tree path.
func (s *Store) AddSubmodule(path, repoID, relURL string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketSubmodules)
		if bucket == nil {
			return fmt.Errorf("submodules bucket not found")
		}

		if bucket.Get([]byte(path)) != nil {
			return fmt.Errorf("submodule at '%s' already registered", path)
		}

		sub := &models.Submodule{
			Path:    path,
			RepoID:  repoID,
			RelURL:  relURL,
			AddedAt: time.Now(),
		}

		data, err := json.Marshal(sub)
		if err != nil {
			return fmt.Errorf("marshal submodule: %w", err)
		}

		return bucket.Put([]byte(path), data)
	})
}

// GetSubmodule retrieves a submodule registration by path. Returns (nil, nil) if not found.
func (s *Store) GetSubmodule(path string) (*models.Submodule, error) {
	var sub *models.Submodule

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketSubmodules)
		if bucket == nil {
			return nil
		}

		data := bucket.Get([]byte(path))
		if data == nil {
			return nil
		}

		sub = &models.Submodule{}
		return json.Unmarshal(data, sub)
	})

	return sub, err
}

// ListSubmodules returns all registered submodules sorted by path.
func (s *Store) ListSubmodules() ([]*models.Submodule, error) {
	var subs []*models.Submodule

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketSubmodules)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var sub models.Submodule
			if err := json.Unmarshal(v, &sub); err != nil {
				return fmt.Errorf("unmarshal submodule: %w", err)
			}
			subs = append(subs, &sub)
			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	sort.Slice(subs, func(i, j int) bool {
		return subs[i].Path < subs[j].Path
	})

	return subs, nil
}

// RemoveSubmodule deletes a submodule registration.
func (s *Store) RemoveSubmodule(path string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketSubmodules)
		if bucket == nil {
			return fmt.Errorf("submodules bucket not found")
		}

		if bucket.Get([]byte(path)) == nil {
			return fmt.Errorf("no submodule registered at '%s'", path)
		}

		return bucket.Delete([]byte(path))
	})
}
