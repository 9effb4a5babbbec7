package port

import (
	"io"

	pathsync "github.com/illumination-k/pathmirror/pkg/sync"
)

// HistoryStore opens per-profile history journals
type HistoryStore interface {
	// Open returns the journal of profile keeping at most limit records (0 = unbounded)
	Open(profile string, limit int) (HistoryJournal, error)
}

// HistoryJournal is the persisted pass history of one profile
type HistoryJournal interface {
	Record(result pathsync.SyncResult) error
	Records() ([]pathsync.SyncResult, error)
	Clear() error
	Export(w io.Writer) error
	Close() error
}
