package history

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"

	pathsync "github.com/illumination-k/pathmirror/pkg/sync"
)

const schema = `
CREATE TABLE IF NOT EXISTS sync_history (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    profile TEXT NOT NULL,
    started_at TEXT NOT NULL, -- RFC3339Nano
    finished_at TEXT NOT NULL, -- RFC3339Nano
    file_count INTEGER NOT NULL,
    success INTEGER NOT NULL,
    status TEXT NOT NULL,
    direction TEXT NOT NULL,
    paths TEXT NOT NULL -- JSON array
);

CREATE INDEX IF NOT EXISTS idx_history_profile ON sync_history(profile, seq);
`

// dbRecord is used for scanning rows where times and paths are stored as TEXT
type dbRecord struct {
	ID         string `db:"id"`
	Profile    string `db:"profile"`
	StartedAt  string `db:"started_at"`
	FinishedAt string `db:"finished_at"`
	FileCount  int    `db:"file_count"`
	Success    bool   `db:"success"`
	Status     string `db:"status"`
	Direction  string `db:"direction"`
	Paths      string `db:"paths"`
}

func toDBRecord(profile string, r pathsync.SyncResult) (dbRecord, error) {
	paths, err := json.Marshal(r.Paths)
	if err != nil {
		return dbRecord{}, fmt.Errorf("failed to encode paths: %w", err)
	}
	return dbRecord{
		ID:         r.ID,
		Profile:    profile,
		StartedAt:  r.StartedAt.Format(time.RFC3339Nano),
		FinishedAt: r.FinishedAt.Format(time.RFC3339Nano),
		FileCount:  r.FileCount,
		Success:    r.Success,
		Status:     r.Status,
		Direction:  string(r.Direction),
		Paths:      string(paths),
	}, nil
}

func (d dbRecord) toResult() (pathsync.SyncResult, error) {
	started, err := time.Parse(time.RFC3339Nano, d.StartedAt)
	if err != nil {
		return pathsync.SyncResult{}, fmt.Errorf("failed to parse started_at for %s: %w", d.ID, err)
	}
	finished, err := time.Parse(time.RFC3339Nano, d.FinishedAt)
	if err != nil {
		return pathsync.SyncResult{}, fmt.Errorf("failed to parse finished_at for %s: %w", d.ID, err)
	}
	var paths []string
	if err := json.Unmarshal([]byte(d.Paths), &paths); err != nil {
		return pathsync.SyncResult{}, fmt.Errorf("failed to decode paths for %s: %w", d.ID, err)
	}

	return pathsync.SyncResult{
		ID:         d.ID,
		StartedAt:  started,
		FinishedAt: finished,
		FileCount:  d.FileCount,
		Success:    d.Success,
		Status:     d.Status,
		Direction:  pathsync.Direction(d.Direction),
		Paths:      paths,
	}, nil
}

// Journal persists the sync history of one profile in SQLite
type Journal struct {
	db      *sqlx.DB
	profile string
	limit   int
	logger  *slog.Logger
}

// OpenJournal opens the history database at path scoped to profile. It keeps at
// most limit records per profile; 0 keeps every record. A nil logger means
// slog.Default().
func OpenJournal(path, profile string, limit int, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := openSqlite(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history journal: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize journal schema: %w", err)
	}

	return &Journal{
		db:      db,
		profile: profile,
		limit:   max(limit, 0),
		logger:  logger.With("profile", profile),
	}, nil
}

// Close closes the underlying database connection
func (j *Journal) Close() error {
	if err := j.db.Close(); err != nil {
		return fmt.Errorf("failed to close history journal: %w", err)
	}
	return nil
}

// Record appends result and prunes the oldest records beyond the limit
func (j *Journal) Record(result pathsync.SyncResult) error {
	rec, err := toDBRecord(j.profile, result)
	if err != nil {
		return err
	}

	tx, err := j.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	query := `INSERT INTO sync_history (id, profile, started_at, finished_at, file_count, success, status, direction, paths)
	          VALUES (:id, :profile, :started_at, :finished_at, :file_count, :success, :status, :direction, :paths)`
	if _, err := tx.NamedExec(query, rec); err != nil {
		return fmt.Errorf("failed to record sync %s: %w", result.ID, err)
	}

	if j.limit > 0 {
		_, err := tx.Exec(`DELETE FROM sync_history WHERE profile = ? AND seq NOT IN (
			SELECT seq FROM sync_history WHERE profile = ? ORDER BY seq DESC LIMIT ?)`,
			j.profile, j.profile, j.limit)
		if err != nil {
			return fmt.Errorf("failed to prune history: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit history: %w", err)
	}
	j.logger.Debug("history recorded", "id", result.ID)
	return nil
}

// Records returns every record of the profile in insertion order.
// Rows that cannot be decoded are skipped.
func (j *Journal) Records() ([]pathsync.SyncResult, error) {
	var rows []dbRecord
	err := j.db.Select(&rows, `SELECT id, profile, started_at, finished_at, file_count, success, status, direction, paths
		FROM sync_history WHERE profile = ? ORDER BY seq`, j.profile)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}

	results := make([]pathsync.SyncResult, 0, len(rows))
	for _, row := range rows {
		r, err := row.toResult()
		if err != nil {
			j.logger.Error("skipping corrupt history row", "error", err)
			continue
		}
		results = append(results, r)
	}
	return results, nil
}

// Count returns the number of records for the profile
func (j *Journal) Count() (int, error) {
	var count int
	if err := j.db.Get(&count, "SELECT COUNT(*) FROM sync_history WHERE profile = ?", j.profile); err != nil {
		return 0, fmt.Errorf("failed to count history: %w", err)
	}
	return count, nil
}

// Clear removes every record of the profile
func (j *Journal) Clear() error {
	if _, err := j.db.Exec("DELETE FROM sync_history WHERE profile = ?", j.profile); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// Export writes every record of the profile to w as CSV
func (j *Journal) Export(w io.Writer) error {
	records, err := j.Records()
	if err != nil {
		return err
	}
	return WriteCSV(w, records)
}
