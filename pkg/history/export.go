package history

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	pathsync "github.com/illumination-k/pathmirror/pkg/sync"
)

// TimeFormat is the timestamp layout used in exported history
const TimeFormat = "2006-01-02 15:04:05"

var csvHeader = []string{"start", "end", "pathCount", "fileCount", "status", "paths"}

// WriteCSV writes records to w with a header row. The paths field is joined with
// ";" and quoted when it contains commas.
func WriteCSV(w io.Writer, records []pathsync.SyncResult) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, rec := range records {
		row := []string{
			rec.StartedAt.Format(TimeFormat),
			rec.FinishedAt.Format(TimeFormat),
			strconv.Itoa(len(rec.Paths)),
			strconv.Itoa(rec.FileCount),
			rec.Status,
			strings.Join(rec.Paths, ";"),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write record %s: %w", rec.ID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush history: %w", err)
	}
	return nil
}
