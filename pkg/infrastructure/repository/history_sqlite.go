package repository

import (
	"log/slog"

	"github.com/illumination-k/pathmirror/pkg/application/port"
	"github.com/illumination-k/pathmirror/pkg/history"
)

// SQLiteHistoryStore implements port.HistoryStore with one SQLite database shared
// by every profile
type SQLiteHistoryStore struct {
	path   string
	logger *slog.Logger
}

// NewSQLiteHistoryStore creates a store for the database at path.
// A nil logger means slog.Default() when a journal is opened.
func NewSQLiteHistoryStore(path string, logger *slog.Logger) port.HistoryStore {
	return &SQLiteHistoryStore{path: path, logger: logger}
}

// Open opens the journal of profile
func (s *SQLiteHistoryStore) Open(profile string, limit int) (port.HistoryJournal, error) {
	journal, err := history.OpenJournal(s.path, profile, limit, s.logger)
	if err != nil {
		return nil, err
	}
	return journal, nil
}
