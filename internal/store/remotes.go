package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kilupskalvis/metavc/internal/models"
	bolt "go.etcd.io/bbolt"
)

// remoteTokenKeyPrefix is the prefix for storing remote tokens in the kv bucket.
const remoteTokenKeyPrefix = "remote."

// AddRemote stores a new remote. Returns an error if a remote with the same name exists.
func (s *Store) AddRemote(name, url string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketRemotes)
		if bucket == nil {
			return fmt.Errorf("remotes bucket not found")
		}

		if bucket.Get([]byte(name)) != nil {
			return fmt.Errorf("remote '%s' already exists", name)
		}

		remote := &models.Remote{
			Name:      name,
			URL:       url,
			CreatedAt: time.Now(),
		}

		data, err := json.Marshal(remote)
		if err != nil {
			return fmt.Errorf("marshal remote: %w", err)
		}

		return bucket.Put([]byte(name), data)
	})
}

// GetRemote retrieves a remote by name. Returns (nil, nil) if not found.
func (s *Store) GetRemote(name string) (*models.Remote, error) {
	var remote *models.Remote

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketRemotes)
		if bucket == nil {
			return nil
		}

		data := bucket.Get([]byte(name))
		if data == nil {
			return nil
		}

		remote = &models.Remote{}
		return json.Unmarshal(data, remote)
	})

	return remote, err
}

// ListRemotes returns all remotes sorted by name.
func (s *Store) ListRemotes() ([]*models.Remote, error) {
	var remotes []*models.Remote

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketRemotes)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var r models.Remote
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("unmarshal remote: %w", err)
			}
			remotes = append(remotes, &r)
			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	sort.Slice(remotes, func(i, j int) bool {
		return remotes[i].Name < remotes[j].Name
	})

	return remotes, nil
}

// UpdateRemoteURL changes the URL of an existing remote.
func (s *Store) UpdateRemoteURL(name, url string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketRemotes)
		if bucket == nil {
			return fmt.Errorf("remotes bucket not found")
		}

		data := bucket.Get([]byte(name))
		if data == nil {
			return fmt.Errorf("remote '%s' does not exist", name)
		}

		var remote models.Remote
		if err := json.Unmarshal(data, &remote); err != nil {
			return fmt.Errorf("unmarshal remote: %w", err)
		}

		remote.URL = url

		newData, err := json.Marshal(&remote)
		if err != nil {
			return fmt.Errorf("marshal remote: %w", err)
		}

		return bucket.Put([]byte(name), newData)
	})
}

// RemoveRemote removes a remote and its remote-tracking refs.
func (s *Store) RemoveRemote(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketRemotes)
		if bucket == nil {
			return fmt.Errorf("remotes bucket not found")
		}

		if bucket.Get([]byte(name)) == nil {
			return fmt.Errorf("remote '%s' does not exist", name)
		}

		if err := bucket.Delete([]byte(name)); err != nil {
			return err
		}

		// Drop remote-tracking refs for this remote
		refBucket := tx.Bucket(bucketRemoteRefs)
		if refBucket != nil {
			prefix := name + ":"
			c := refBucket.Cursor()
			var stale [][]byte
			for k, _ := c.Seek([]byte(prefix)); k != nil && strings.HasPrefix(string(k), prefix); k, _ = c.Next() {
				stale = append(stale, append([]byte(nil), k...))
			}
			for _, k := range stale {
				if err := refBucket.Delete(k); err != nil {
					return err
				}
			}
		}

		// Drop stored token, if any
		kv := tx.Bucket(bucketKV)
		if kv != nil {
			if err := kv.Delete([]byte(remoteTokenKeyPrefix + name)); err != nil {
				return err
			}
		}

		return nil
	})
}

// SetRemoteToken stores an authentication token for a remote.
func (s *Store) SetRemoteToken(remoteName, token string) error {
	return s.SetValue(remoteTokenKeyPrefix+remoteName, token)
}

// GetRemoteToken retrieves the stored token for a remote, "" if none.
func (s *Store) GetRemoteToken(remoteName string) (string, error) {
	return s.GetValue(remoteTokenKeyPrefix + remoteName)
}

// DeleteRemoteToken removes the stored token for a remote.
func (s *Store) DeleteRemoteToken(remoteName string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketKV)
		if bucket == nil {
			return nil
		}
		return bucket.Delete([]byte(remoteTokenKeyPrefix + remoteName))
	})
}

// SetRemoteRef records the remote-tracking value for a ref after a push.
func (s *Store) SetRemoteRef(remoteName, refName, commitID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketRemoteRefs)
		if bucket == nil {
			return fmt.Errorf("remote refs bucket not found")
		}

		ref := &models.RemoteRef{
			RemoteName: remoteName,
			RefName:    refName,
			CommitID:   commitID,
			UpdatedAt:  time.Now(),
		}

		data, err := json.Marshal(ref)
		if err != nil {
			return fmt.Errorf("marshal remote ref: %w", err)
		}

		return bucket.Put([]byte(models.RemoteRefKey(remoteName, refName)), data)
	})
}

// GetRemoteRef retrieves a remote-tracking ref. Returns (nil, nil) if not found.
func (s *Store) GetRemoteRef(remoteName, refName string) (*models.RemoteRef, error) {
	var ref *models.RemoteRef

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketRemoteRefs)
		if bucket == nil {
			return nil
		}

		data := bucket.Get([]byte(models.RemoteRefKey(remoteName, refName)))
		if data == nil {
			return nil
		}

		ref = &models.RemoteRef{}
		return json.Unmarshal(data, ref)
	})

	return ref, err
}

// DeleteRemoteRef removes a remote-tracking ref.
func (s *Store) DeleteRemoteRef(remoteName, refName string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketRemoteRefs)
		if bucket == nil {
			return nil
		}
		return bucket.Delete([]byte(models.RemoteRefKey(remoteName, refName)))
	})
}
