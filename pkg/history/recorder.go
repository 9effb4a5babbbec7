package history

import (
	"io"
	"slices"
	"sync"

	pathsync "github.com/illumination-k/pathmirror/pkg/sync"
)

// Recorder is an in-memory, append-only sync history
type Recorder struct {
	mu      sync.RWMutex
	records []pathsync.SyncResult
	limit   int
}

// NewRecorder creates a Recorder that keeps at most limit records.
// A limit of 0 keeps every record.
func NewRecorder(limit int) *Recorder {
	if limit < 0 {
		limit = 0
	}
	return &Recorder{limit: limit}
}

// Record appends result, dropping the oldest record when the limit is reached
func (r *Recorder) Record(result pathsync.SyncResult) error {
	result.Paths = slices.Clone(result.Paths)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = append(r.records, result)
	if r.limit > 0 && len(r.records) > r.limit {
		r.records = slices.Clone(r.records[len(r.records)-r.limit:])
	}
	return nil
}

// Records returns a copy of every record in insertion order
func (r *Recorder) Records() []pathsync.SyncResult {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]pathsync.SyncResult, len(r.records))
	for i, rec := range r.records {
		rec.Paths = slices.Clone(rec.Paths)
		out[i] = rec
	}
	return out
}

// Len returns the number of records
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Clear removes every record
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = nil
}

// Export writes every record to w as CSV
func (r *Recorder) Export(w io.Writer) error {
	return WriteCSV(w, r.Records())
}
