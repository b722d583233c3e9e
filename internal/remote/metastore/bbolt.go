package metastore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kilupskalvis/metavc/internal/models"
	"github.com/kilupskalvis/metavc/internal/remote"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketCommits = []byte("commits")
	bucketEntries = []byte("index_entries")
	bucketRefs    = []byte("refs")
)

// BboltStore implements MetaStore using bbolt.
type BboltStore struct {
	db *bolt.DB
}

// NewBboltStore opens or creates a bbolt database at the given path.
func NewBboltStore(dbPath string) (*BboltStore, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create meta directory: %w", err)
		}
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open meta database: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketCommits, bucketEntries, bucketRefs} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &BboltStore{db: db}, nil
}

// Close releases the bbolt database.
func (s *BboltStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// HasCommit checks if a commit exists.
func (s *BboltStore) HasCommit(_ context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.View(func(tx *bolt.Tx) error {
		exists = tx.Bucket(bucketCommits).Get([]byte(id)) != nil
		return nil
	})
	return exists, err
}

// GetCommit retrieves a commit by ID. Returns ErrNotFound if missing.
func (s *BboltStore) GetCommit(_ context.Context, id string) (*models.Commit, error) {
	var commit *models.Commit
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketCommits).Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		commit = &models.Commit{}
		return json.Unmarshal(data, commit)
	})
	if err != nil {
		return nil, err
	}
	return commit, nil
}

// InsertCommitBundle atomically stores a commit with its index entries.
// Inserting an already-present commit is a no-op: commit objects are
// immutable and content-addressed.
func (s *BboltStore) InsertCommitBundle(_ context.Context, b *remote.CommitBundle) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		commitBucket := tx.Bucket(bucketCommits)

		if commitBucket.Get([]byte(b.Commit.ID)) != nil {
			return nil
		}

		commitData, err := json.Marshal(b.Commit)
		if err != nil {
			return fmt.Errorf("marshal commit: %w", err)
		}
		if err := commitBucket.Put([]byte(b.Commit.ID), commitData); err != nil {
			return fmt.Errorf("store commit: %w", err)
		}

		entryBucket := tx.Bucket(bucketEntries)
		for i, e := range b.Entries {
			e.CommitID = b.Commit.ID
			e.Seq = i
			entryData, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("marshal index entry: %w", err)
			}
			key := fmt.Sprintf("%s:%08d", b.Commit.ID, i)
			if err := entryBucket.Put([]byte(key), entryData); err != nil {
				return fmt.Errorf("store index entry: %w", err)
			}
		}

		return nil
	})
}

// GetCommitBundle retrieves a commit with its index entries.
func (s *BboltStore) GetCommitBundle(_ context.Context, id string) (*remote.CommitBundle, error) {
	bundle := &remote.CommitBundle{}

	err := s.db.View(func(tx *bolt.Tx) error {
		commitData := tx.Bucket(bucketCommits).Get([]byte(id))
		if commitData == nil {
			return ErrNotFound
		}
		bundle.Commit = &models.Commit{}
		if err := json.Unmarshal(commitData, bundle.Commit); err != nil {
			return fmt.Errorf("unmarshal commit: %w", err)
		}

		entryBucket := tx.Bucket(bucketEntries)
		prefix := id + ":"
		c := entryBucket.Cursor()
		for k, v := c.Seek([]byte(prefix)); k != nil && strings.HasPrefix(string(k), prefix); k, v = c.Next() {
			var e models.IndexEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("unmarshal index entry: %w", err)
			}
			bundle.Entries = append(bundle.Entries, &e)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}
	return bundle, nil
}

// GetCommitCount returns the total number of commits.
func (s *BboltStore) GetCommitCount(_ context.Context) (int, error) {
	var count int
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(bucketCommits).Stats().KeyN
		return nil
	})
	return count, err
}

// ListRefs returns all refs, branches and pins alike, sorted by name.
func (s *BboltStore) ListRefs(_ context.Context) ([]*models.Ref, error) {
	var refs []*models.Ref

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRefs).ForEach(func(k, v []byte) error {
			var ref models.Ref
			if err := json.Unmarshal(v, &ref); err != nil {
				return fmt.Errorf("unmarshal ref: %w", err)
			}
			refs = append(refs, &ref)
			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	sort.Slice(refs, func(i, j int) bool {
		return refs[i].Name < refs[j].Name
	})

	return refs, nil
}

// GetRef retrieves a ref by name. Returns ErrNotFound if missing.
func (s *BboltStore) GetRef(_ context.Context, name string) (*models.Ref, error) {
	var ref *models.Ref
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketRefs).Get([]byte(name))
		if data == nil {
			return ErrNotFound
		}
		ref = &models.Ref{}
		return json.Unmarshal(data, ref)
	})
	if err != nil {
		return nil, err
	}
	return ref, nil
}

// UpdateRefCAS updates a branch ref if its current value matches the expected
// one. An empty expected value asserts the ref does not yet exist. Pin refs
// are immutable and rejected with ErrImmutable.
func (s *BboltStore) UpdateRefCAS(_ context.Context, name, newCommitID, expectedCommitID string) error {
	if models.IsPinRef(name) {
		return ErrImmutable
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRefs)

		data := b.Get([]byte(name))

		if data == nil {
			if expectedCommitID != "" {
				return ErrConflict
			}
			ref := &models.Ref{
				Name:      name,
				CommitID:  newCommitID,
				CreatedAt: time.Now(),
			}
			newData, err := json.Marshal(ref)
			if err != nil {
				return fmt.Errorf("marshal ref: %w", err)
			}
			return b.Put([]byte(name), newData)
		}

		// The ref exists; an empty expected value asserted it did not.
		if expectedCommitID == "" {
			return ErrConflict
		}

		var ref models.Ref
		if err := json.Unmarshal(data, &ref); err != nil {
			return fmt.Errorf("unmarshal ref: %w", err)
		}

		if ref.CommitID != expectedCommitID {
			return ErrConflict
		}

		ref.CommitID = newCommitID

		newData, err := json.Marshal(&ref)
		if err != nil {
			return fmt.Errorf("marshal ref: %w", err)
		}

		return b.Put([]byte(name), newData)
	})
}

// DeleteRef removes a branch ref. Pin refs are permanent and rejected.
func (s *BboltStore) DeleteRef(_ context.Context, name string) error {
	if models.IsPinRef(name) {
		return ErrImmutable
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRefs)
		if b.Get([]byte(name)) == nil {
			return ErrNotFound
		}
		return b.Delete([]byte(name))
	})
}

// EnsurePin creates the permanent ref "commits/<id>" if absent. Existing pins
// are never repointed: a pin for the same commit is a no-op, and the pin
// namespace is keyed by commit ID so a different target cannot occur.
func (s *BboltStore) EnsurePin(_ context.Context, commitID string) (bool, error) {
	var created bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketCommits).Get([]byte(commitID)) == nil {
			return fmt.Errorf("pin %s: %w", commitID, ErrNotFound)
		}

		refBucket := tx.Bucket(bucketRefs)
		name := models.PinRef(commitID)

		if data := refBucket.Get([]byte(name)); data != nil {
			var ref models.Ref
			if err := json.Unmarshal(data, &ref); err != nil {
				return fmt.Errorf("unmarshal pin: %w", err)
			}
			if ref.CommitID != commitID {
				return fmt.Errorf("pin %s points at %s: %w", name, ref.CommitID, ErrConflict)
			}
			return nil
		}

		ref := &models.Ref{
			Name:      name,
			CommitID:  commitID,
			CreatedAt: time.Now(),
		}
		data, err := json.Marshal(ref)
		if err != nil {
			return fmt.Errorf("marshal pin: %w", err)
		}
		if err := refBucket.Put([]byte(name), data); err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}

// GetPinCount returns the number of permanent pin refs.
func (s *BboltStore) GetPinCount(_ context.Context) (int, error) {
	var count int
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketRefs).Cursor()
		prefix := []byte(models.PinRefPrefix)
		for k, _ := c.Seek(prefix); k != nil && strings.HasPrefix(string(k), models.PinRefPrefix); k, _ = c.Next() {
			count++
		}
		return nil
	})
	return count, err
}
