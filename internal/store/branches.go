package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/kilupskalvis/metavc/internal/models"
	bolt "go.etcd.io/bbolt"
)

const headBranchKey = "HEAD_BRANCH"

// CreateBranch stores a new branch with the given name and commit ID.
func (s *Store) CreateBranch(name, commitID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketBranches)
		if bucket == nil {
			return fmt.Errorf("branches bucket not found")
		}

		branch := &models.Branch{
			Name:      name,
			CommitID:  commitID,
			CreatedAt: time.Now(),
		}

		data, err := json.Marshal(branch)
		if err != nil {
			return fmt.Errorf("marshal branch: %w", err)
		}

		return bucket.Put([]byte(name), data)
	})
}

// GetBranch retrieves a branch by name. Returns (nil, nil) if not found.
func (s *Store) GetBranch(name string) (*models.Branch, error) {
	var branch *models.Branch

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketBranches)
		if bucket == nil {
			return nil
		}

		data := bucket.Get([]byte(name))
		if data == nil {
			return nil
		}

		branch = &models.Branch{}
		return json.Unmarshal(data, branch)
	})

	if err != nil {
		return nil, err
	}

	return branch, nil
}

// BranchExists checks whether a branch exists.
func (s *Store) BranchExists(name string) (bool, error) {
	branch, err := s.GetBranch(name)
	if err != nil {
		return false, err
	}
	return branch != nil, nil
}

// UpdateBranch moves an existing branch to a new commit.
func (s *Store) UpdateBranch(name, commitID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketBranches)
		if bucket == nil {
			return fmt.Errorf("branches bucket not found")
		}

		data := bucket.Get([]byte(name))
		if data == nil {
			return fmt.Errorf("branch '%s' does not exist", name)
		}

		var branch models.Branch
		if err := json.Unmarshal(data, &branch); err != nil {
			return fmt.Errorf("unmarshal branch: %w", err)
		}

		branch.CommitID = commitID

		newData, err := json.Marshal(&branch)
		if err != nil {
			return fmt.Errorf("marshal branch: %w", err)
		}

		return bucket.Put([]byte(name), newData)
	})
}

// ListBranches returns all branches sorted by name.
func (s *Store) ListBranches() ([]*models.Branch, error) {
	var branches []*models.Branch

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketBranches)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var b models.Branch
			if err := json.Unmarshal(v, &b); err != nil {
				return fmt.Errorf("unmarshal branch: %w", err)
			}
			branches = append(branches, &b)
			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	sort.Slice(branches, func(i, j int) bool {
		return branches[i].Name < branches[j].Name
	})

	return branches, nil
}

// DeleteBranch removes a branch by name.
func (s *Store) DeleteBranch(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketBranches)
		if bucket == nil {
			return fmt.Errorf("branches bucket not found")
		}
		return bucket.Delete([]byte(name))
	})
}

// GetCurrentBranch retrieves the current HEAD branch name from the kv bucket.
// Returns "" if no branch is checked out.
func (s *Store) GetCurrentBranch() (string, error) {
	return s.GetValue(headBranchKey)
}

// SetCurrentBranch records the current HEAD branch name.
func (s *Store) SetCurrentBranch(name string) error {
	return s.SetValue(headBranchKey, name)
}

// GetHEAD returns the commit ID of the current branch, or "" if there is
// no current branch or the branch has no commits.
func (s *Store) GetHEAD() (string, error) {
	name, err := s.GetCurrentBranch()
	if err != nil {
		return "", err
	}
	if name == "" {
		return "", nil
	}

	branch, err := s.GetBranch(name)
	if err != nil {
		return "", err
	}
	if branch == nil {
		return "", nil
	}
	return branch.CommitID, nil
}
