package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// GenerateCommitID generates a content-addressable commit ID.
// The ID includes a Merkle hash of the index entries so that two commits with
// identical metadata but different indices produce different IDs.
func GenerateCommitID(message string, timestamp time.Time, parentID string, entries []*IndexEntry) string {
	entriesHash := ComputeEntriesHash(entries)
	data := fmt.Sprintf("%s|%s|%s|%s", message, timestamp.Format(time.RFC3339Nano), parentID, entriesHash)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeEntriesHash computes a Merkle hash over a commit's index entries.
// Each entry is hashed individually, the hashes are sorted, and then
// hashed together to produce a deterministic digest.
func ComputeEntriesHash(entries []*IndexEntry) string {
	if len(entries) == 0 {
		return ""
	}

	hashes := make([]string, len(entries))
	for i, e := range entries {
		entryData := fmt.Sprintf("%s|%s|%s|%s|%s",
			e.Path, e.Kind, string(e.Content), e.SubRepoID, e.SubCommitID)
		h := sha256.Sum256([]byte(entryData))
		hashes[i] = hex.EncodeToString(h[:])
	}

	// Sort for deterministic ordering
	sort.Strings(hashes)

	combined := strings.Join(hashes, "")
	final := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(final[:])
}
