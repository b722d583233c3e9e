package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/kilupskalvis/metavc/internal/models"
	_ "modernc.org/sqlite"
)

// LegacyImportResult summarizes a v1 database import.
type LegacyImportResult struct {
	Commits  int
	Branches int
}

// ImportLegacy reads a v1 metavc SQLite database and imports its commits,
// index entries, and branches into the bbolt store. Commits that already
// exist are skipped, so re-running an interrupted import is safe.
func (s *Store) ImportLegacy(dbPath string) (*LegacyImportResult, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open legacy database: %w", err)
	}
	defer db.Close()

	result := &LegacyImportResult{}

	rows, err := db.Query(`
		SELECT id, parent_id, merge_parent_id, message, timestamp, entry_count
		FROM commits ORDER BY timestamp ASC`)
	if err != nil {
		return nil, fmt.Errorf("read legacy commits: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var commit models.Commit
		var parentID, mergeParentID sql.NullString
		var timestamp string

		if err := rows.Scan(&commit.ID, &parentID, &mergeParentID, &commit.Message, &timestamp, &commit.EntryCount); err != nil {
			return nil, fmt.Errorf("scan legacy commit: %w", err)
		}
		commit.Timestamp = parseLegacyTimestamp(timestamp)
		if parentID.Valid {
			commit.ParentID = parentID.String
		}
		if mergeParentID.Valid {
			commit.MergeParentID = mergeParentID.String
		}

		exists, err := s.HasCommit(commit.ID)
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}

		entries, err := readLegacyEntries(db, commit.ID)
		if err != nil {
			return nil, err
		}

		if err := s.CreateCommit(&commit, entries); err != nil {
			return nil, fmt.Errorf("import commit %s: %w", commit.ShortID(), err)
		}
		result.Commits++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate legacy commits: %w", err)
	}

	branchRows, err := db.Query(`SELECT name, commit_id FROM branches`)
	if err != nil {
		return nil, fmt.Errorf("read legacy branches: %w", err)
	}
	defer branchRows.Close()

	for branchRows.Next() {
		var name, commitID string
		if err := branchRows.Scan(&name, &commitID); err != nil {
			return nil, fmt.Errorf("scan legacy branch: %w", err)
		}

		exists, err := s.BranchExists(name)
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}

		if err := s.CreateBranch(name, commitID); err != nil {
			return nil, fmt.Errorf("import branch '%s': %w", name, err)
		}
		result.Branches++
	}
	if err := branchRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate legacy branches: %w", err)
	}

	return result, nil
}

// readLegacyEntries loads the index entries of one legacy commit.
func readLegacyEntries(db *sql.DB, commitID string) ([]*models.IndexEntry, error) {
	rows, err := db.Query(`
		SELECT seq, path, kind, content, sub_repo_id, sub_commit_id
		FROM index_entries WHERE commit_id = ? ORDER BY seq ASC`, commitID)
	if err != nil {
		return nil, fmt.Errorf("read legacy entries for %s: %w", commitID, err)
	}
	defer rows.Close()

	var entries []*models.IndexEntry
	for rows.Next() {
		var e models.IndexEntry
		var content []byte
		var subRepoID, subCommitID sql.NullString

		if err := rows.Scan(&e.Seq, &e.Path, &e.Kind, &content, &subRepoID, &subCommitID); err != nil {
			return nil, fmt.Errorf("scan legacy entry: %w", err)
		}
		e.Content = content
		if subRepoID.Valid {
			e.SubRepoID = subRepoID.String
		}
		if subCommitID.Valid {
			e.SubCommitID = subCommitID.String
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// parseLegacyTimestamp handles the timestamp formats written by v1.
func parseLegacyTimestamp(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
