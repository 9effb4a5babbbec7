package sync

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illumination-k/pathmirror/pkg/sync/conflict"
	"github.com/illumination-k/pathmirror/pkg/sync/filter"
)

type memoryHistory struct {
	mu      sync.Mutex
	results []SyncResult
}

func (h *memoryHistory) Record(r SyncResult) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.results = append(h.results, r)
	return nil
}

func (h *memoryHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.results)
}

func writeFile(t *testing.T, fs afero.Fs, path, content string, mtime int64) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	ts := time.Unix(mtime, 0)
	require.NoError(t, fs.Chtimes(path, ts, ts))
}

func readFile(t *testing.T, fs afero.Fs, path string) string {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	return string(data)
}

func modTime(t *testing.T, fs afero.Fs, path string) time.Time {
	t.Helper()
	info, err := fs.Stat(path)
	require.NoError(t, err)
	return info.ModTime()
}

func newTestEngine(t *testing.T, fs afero.Fs, settings Settings, opts ...EngineOption) (*Engine, *memoryHistory) {
	t.Helper()
	if settings.Direction == "" {
		settings.Direction = Bidirectional
	}
	if settings.Policy == "" {
		settings.Policy = conflict.PolicyNewer
	}
	if settings.Interval == 0 {
		settings.Interval = DefaultInterval
	}

	session, err := NewSession(settings, nil)
	require.NoError(t, err)

	history := &memoryHistory{}
	opts = append([]EngineOption{
		WithFs(fs),
		WithHistory(history),
		WithClock(clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0))),
	}, opts...)
	return NewEngine(session, opts...), history
}

func TestEngine_BidirectionalNewerWins(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/dirA/f1.txt", "from A", 100)
	writeFile(t, fs, "/dirB/f1.txt", "from B", 50)

	engine, history := newTestEngine(t, fs, Settings{Paths: []string{"/dirA", "/dirB"}})

	result, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "from A", readFile(t, fs, "/dirB/f1.txt"))
	assert.True(t, modTime(t, fs, "/dirB/f1.txt").Equal(time.Unix(100, 0)))
	assert.Equal(t, 1, result.FileCount)
	assert.True(t, result.Success)
	assert.Contains(t, result.Status, "1")
	assert.Equal(t, StateCompleted, engine.State())
	require.Equal(t, 1, history.Len())
	assert.Equal(t, []string{"/dirA", "/dirB"}, history.results[0].Paths)
}

func TestEngine_BidirectionalSpreadsAcrossAllRoots(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/a/only-a.txt", "a", 100)
	writeFile(t, fs, "/b/nested/only-b.txt", "b", 100)
	require.NoError(t, fs.MkdirAll("/c", 0o755))

	engine, _ := newTestEngine(t, fs, Settings{Paths: []string{"/a", "/b", "/c"}})

	result, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, result.FileCount)
	for _, root := range []string{"/a", "/b", "/c"} {
		assert.Equal(t, "a", readFile(t, fs, root+"/only-a.txt"))
		assert.Equal(t, "b", readFile(t, fs, root+"/nested/only-b.txt"))
	}
}

func TestEngine_BidirectionalIdempotent(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/a/f1.txt", "new", 200)
	writeFile(t, fs, "/a/sub/f2.txt", "two", 100)
	writeFile(t, fs, "/b/f1.txt", "old", 100)
	writeFile(t, fs, "/b/f3.txt", "three", 300)
	writeFile(t, fs, "/x/f1.txt", "standalone", 150)

	engine, history := newTestEngine(t, fs, Settings{Paths: []string{"/a", "/b", "/x/f1.txt"}})

	first, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Positive(t, first.FileCount)

	second, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.FileCount)
	assert.Equal(t, "synced 0 files", second.Status)
	assert.Equal(t, 2, history.Len())
}

func TestEngine_DirectoryRootsBypassPolicy(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/a/f.txt", "new", 200)
	writeFile(t, fs, "/b/f.txt", "older but larger", 100)

	engine, _ := newTestEngine(t, fs, Settings{
		Paths:  []string{"/a", "/b"},
		Policy: conflict.PolicyLarger,
	})

	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.FileCount)
	assert.Equal(t, "new", readFile(t, fs, "/b/f.txt"))
}

func TestEngine_FileRootPolicies(t *testing.T) {
	tests := []struct {
		name      string
		policy    conflict.Policy
		prompt    conflict.Prompt
		wantX     string
		wantY     string
		wantCount int
	}{
		{
			name:      "newer copies newest over older",
			policy:    conflict.PolicyNewer,
			wantX:     "newer",
			wantY:     "newer",
			wantCount: 1,
		},
		{
			name:      "larger copies the larger file back over the newest",
			policy:    conflict.PolicyLarger,
			wantX:     "older but larger",
			wantY:     "older but larger",
			wantCount: 1,
		},
		{
			name:   "ask keeps destination",
			policy: conflict.PolicyAsk,
			prompt: func(ctx context.Context, source, destination conflict.Candidate) (conflict.Decision, error) {
				return conflict.DestinationWins, nil
			},
			wantX:     "older but larger",
			wantY:     "older but larger",
			wantCount: 1,
		},
		{
			name:   "ask skip leaves both alone",
			policy: conflict.PolicyAsk,
			prompt: func(ctx context.Context, source, destination conflict.Candidate) (conflict.Decision, error) {
				return conflict.Skip, nil
			},
			wantX:     "newer",
			wantY:     "older but larger",
			wantCount: 0,
		},
		{
			name:      "ask without prompt skips",
			policy:    conflict.PolicyAsk,
			wantX:     "newer",
			wantY:     "older but larger",
			wantCount: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			writeFile(t, fs, "/x/report.txt", "newer", 200)
			writeFile(t, fs, "/y/report.txt", "older but larger", 100)

			engine, history := newTestEngine(t, fs,
				Settings{Paths: []string{"/x/report.txt", "/y/report.txt"}, Policy: tt.policy},
				WithResolver(conflict.NewResolver(conflict.WithPrompt(tt.prompt))))

			result, err := engine.Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.wantCount, result.FileCount)
			assert.Equal(t, tt.wantX, readFile(t, fs, "/x/report.txt"))
			assert.Equal(t, tt.wantY, readFile(t, fs, "/y/report.txt"))
			assert.Equal(t, 1, history.Len())
		})
	}
}

func TestEngine_FileRootCorrelatesWithDirectoryTopLevel(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/x/notes.txt", "standalone newest", 300)
	writeFile(t, fs, "/dir/notes.txt", "dir copy", 100)
	writeFile(t, fs, "/dir/sub/notes.txt", "nested is a different key", 100)

	engine, _ := newTestEngine(t, fs, Settings{Paths: []string{"/x/notes.txt", "/dir"}})

	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.FileCount)
	assert.Equal(t, "standalone newest", readFile(t, fs, "/dir/notes.txt"))
	assert.Equal(t, "nested is a different key", readFile(t, fs, "/dir/sub/notes.txt"))
}

func TestEngine_FilterMinSizeNeverCopied(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/dirA/small.bin", string(make([]byte, 512)), 100)
	require.NoError(t, fs.MkdirAll("/dirB", 0o755))

	engine, _ := newTestEngine(t, fs, Settings{
		Paths:  []string{"/dirA", "/dirB"},
		Filter: filter.Options{MinSize: 1024},
	})

	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.FileCount)

	exists, err := afero.Exists(fs, "/dirB/small.bin")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestEngine_OneWayFileCopiesUnconditionally(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/src/fileX.txt", "v2", 100)
	writeFile(t, fs, "/dst/fileY.txt", "v1", 500)

	engine, _ := newTestEngine(t, fs, Settings{
		Paths:     []string{"/src/fileX.txt", "/dst/fileY.txt"},
		Direction: SourceToDest,
	})

	for i := 0; i < 2; i++ {
		result, err := engine.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, result.FileCount)
	}
	assert.Equal(t, "v2", readFile(t, fs, "/dst/fileY.txt"))
	assert.True(t, modTime(t, fs, "/dst/fileY.txt").Equal(time.Unix(100, 0)))
}

func TestEngine_OneWayFileFiltered(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/src/.hidden", "v2", 100)
	writeFile(t, fs, "/dst/target", "v1", 100)

	engine, _ := newTestEngine(t, fs, Settings{
		Paths:     []string{"/src/.hidden", "/dst/target"},
		Direction: SourceToDest,
		Filter:    filter.Options{ExcludeHidden: true},
	})

	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.FileCount)
	assert.Equal(t, "v1", readFile(t, fs, "/dst/target"))
}

func TestEngine_DestToSourceReversesEndpoints(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/first.txt", "first", 500)
	writeFile(t, fs, "/second.txt", "second", 100)

	engine, _ := newTestEngine(t, fs, Settings{
		Paths:     []string{"/first.txt", "/second.txt"},
		Direction: DestToSource,
	})

	_, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "second", readFile(t, fs, "/first.txt"))
}

func TestEngine_OneWayDirectoryMirror(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/src/a.txt", "alpha", 100)
	writeFile(t, fs, "/src/deep/nested/b.txt", "bravo", 100)
	writeFile(t, fs, "/src/stale.txt", "source older", 100)
	require.NoError(t, fs.MkdirAll("/src/emptydir", 0o755))
	writeFile(t, fs, "/dst/stale.txt", "destination newer", 200)
	writeFile(t, fs, "/dst/extra.txt", "only in destination", 100)

	engine, _ := newTestEngine(t, fs, Settings{
		Paths:     []string{"/src", "/dst"},
		Direction: SourceToDest,
		Filter:    filter.Options{},
	})

	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.FileCount)

	assert.Equal(t, "alpha", readFile(t, fs, "/dst/a.txt"))
	assert.Equal(t, "bravo", readFile(t, fs, "/dst/deep/nested/b.txt"))
	assert.Equal(t, "destination newer", readFile(t, fs, "/dst/stale.txt"))
	assert.Equal(t, "only in destination", readFile(t, fs, "/dst/extra.txt"))

	isDir, err := afero.IsDir(fs, "/dst/emptydir")
	require.NoError(t, err)
	assert.True(t, isDir)

	exists, err := afero.Exists(fs, "/src/extra.txt")
	require.NoError(t, err)
	assert.False(t, exists, "one-way mirror must not write to the source")
}

func TestEngine_MixedOneWayIsNoop(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/file.txt", "content", 100)
	require.NoError(t, fs.MkdirAll("/dir", 0o755))

	engine, history := newTestEngine(t, fs, Settings{
		Paths:     []string{"/file.txt", "/dir"},
		Direction: SourceToDest,
	})

	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.FileCount)
	assert.True(t, result.Success)
	assert.Equal(t, 1, history.Len())
}

func TestEngine_InsufficientPaths(t *testing.T) {
	fs := afero.NewMemMapFs()
	engine, history := newTestEngine(t, fs, Settings{Paths: []string{"/only"}})

	result, err := engine.Run(context.Background())
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrInsufficientPaths)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Equal(t, StateIdle, engine.State())
	assert.Equal(t, 0, history.Len())
}

func TestEngine_CopyFailureIsRecordedAndEngineRecovers(t *testing.T) {
	base := afero.NewMemMapFs()
	writeFile(t, base, "/a/f1.txt", "one", 100)
	writeFile(t, base, "/a/f2.txt", "two", 100)
	require.NoError(t, base.MkdirAll("/b", 0o755))

	session, err := NewSession(Settings{
		Paths:     []string{"/a", "/b"},
		Direction: Bidirectional,
		Policy:    conflict.PolicyNewer,
		Interval:  DefaultInterval,
	}, nil)
	require.NoError(t, err)

	history := &memoryHistory{}
	readOnly := NewEngine(session, WithFs(afero.NewReadOnlyFs(base)), WithHistory(history))

	result, err := readOnly.Run(context.Background())
	require.Error(t, err)
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Contains(t, result.Status, "sync failed:")
	assert.Equal(t, 0, result.FileCount)
	assert.Equal(t, StateFailed, readOnly.State())
	assert.Equal(t, 1, history.Len())

	writable := NewEngine(session, WithFs(base), WithHistory(history))
	result, err = writable.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.FileCount)
	assert.Equal(t, 2, history.Len())
}

func TestEngine_CancelledContextFailsPass(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/a/f1.txt", "one", 100)
	require.NoError(t, fs.MkdirAll("/b", 0o755))

	engine, history := newTestEngine(t, fs, Settings{Paths: []string{"/a", "/b"}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := engine.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Equal(t, 1, history.Len())
}

func TestEngine_RejectsConcurrentPass(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/x/f.txt", "x", 200)
	writeFile(t, fs, "/y/f.txt", "y", 100)

	entered := make(chan struct{})
	release := make(chan struct{})
	prompt := func(ctx context.Context, source, destination conflict.Candidate) (conflict.Decision, error) {
		close(entered)
		<-release
		return conflict.Skip, nil
	}

	engine, history := newTestEngine(t, fs,
		Settings{Paths: []string{"/x/f.txt", "/y/f.txt"}, Policy: conflict.PolicyAsk},
		WithResolver(conflict.NewResolver(conflict.WithPrompt(prompt))))

	done := make(chan error, 1)
	go func() {
		_, err := engine.Run(context.Background())
		done <- err
	}()

	<-entered
	assert.Equal(t, StateRunning, engine.State())
	_, err := engine.Run(context.Background())
	assert.ErrorIs(t, err, ErrPassInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, history.Len())
}

func TestEngine_SnapshotIsolatesInFlightPass(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/x/f.txt", "x", 200)
	writeFile(t, fs, "/y/f.txt", "y", 100)

	var session *Session
	prompt := func(ctx context.Context, source, destination conflict.Candidate) (conflict.Decision, error) {
		_ = session.AddPath("/late")
		return conflict.Skip, nil
	}

	engine, _ := newTestEngine(t, fs,
		Settings{Paths: []string{"/x/f.txt", "/y/f.txt"}, Policy: conflict.PolicyAsk},
		WithResolver(conflict.NewResolver(conflict.WithPrompt(prompt))))
	session = engine.Session()

	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"/x/f.txt", "/y/f.txt"}, result.Paths)
	assert.Equal(t, []string{"/x/f.txt", "/y/f.txt", "/late"}, session.Paths())
}

func TestEngine_WroteLast(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/a/f.txt", "a", 100)
	require.NoError(t, fs.MkdirAll("/b", 0o755))

	engine, _ := newTestEngine(t, fs, Settings{Paths: []string{"/a", "/b"}})
	_, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, engine.WroteLast("/b/f.txt", time.Unix(100, 0)))
	assert.False(t, engine.WroteLast("/b/f.txt", time.Unix(101, 0)))
	assert.False(t, engine.WroteLast("/a/f.txt", time.Unix(100, 0)))
}

// vanishingStatFs fails Stat for path once it has been stat'ed allow times
type vanishingStatFs struct {
	afero.Fs
	path  string
	allow int

	mu    sync.Mutex
	calls int
}

func (fs *vanishingStatFs) Stat(name string) (os.FileInfo, error) {
	if name == fs.path {
		fs.mu.Lock()
		fs.calls++
		calls := fs.calls
		fs.mu.Unlock()
		if calls > fs.allow {
			return nil, &os.PathError{Op: "stat", Path: name, Err: errors.New("file vanished")}
		}
	}
	return fs.Fs.Stat(name)
}

func TestEngine_StaleFileRootIsSkipped(t *testing.T) {
	base := afero.NewMemMapFs()
	writeFile(t, base, "/x/report.txt", "older standalone", 100)
	writeFile(t, base, "/dirA/report.txt", "newest", 300)
	writeFile(t, base, "/dirA/extra.txt", "extra", 100)
	require.NoError(t, base.MkdirAll("/dirB", 0o755))

	// Path kind detection and catalog build see the file; resolution does not
	fs := &vanishingStatFs{Fs: base, path: "/x/report.txt", allow: 2}

	engine, history := newTestEngine(t, fs, Settings{Paths: []string{"/x/report.txt", "/dirA", "/dirB"}})

	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "synced 2 files", result.Status)
	assert.Equal(t, 2, result.FileCount)
	assert.Equal(t, 1, history.Len())

	assert.Equal(t, "older standalone", readFile(t, base, "/x/report.txt"))
	assert.Equal(t, "newest", readFile(t, base, "/dirB/report.txt"))
	assert.Equal(t, "extra", readFile(t, base, "/dirB/extra.txt"))
}

func TestEngine_RecordsToEveryHistoryAndKeepsLastResult(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/a/f.txt", "a", 100)
	require.NoError(t, fs.MkdirAll("/b", 0o755))

	extra := &memoryHistory{}
	engine, history := newTestEngine(t, fs, Settings{Paths: []string{"/a", "/b"}}, WithHistory(extra))
	assert.Nil(t, engine.LastResult())
	assert.Equal(t, StateIdle, engine.State())

	result, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, history.Len())
	assert.Equal(t, 1, extra.Len())
	assert.Equal(t, StateCompleted, engine.State())

	last := engine.LastResult()
	require.NotNil(t, last)
	assert.Equal(t, result.ID, last.ID)
	assert.Equal(t, "synced 1 files", last.Status)

	last.Paths[0] = "/mutated"
	assert.Equal(t, []string{"/a", "/b"}, engine.LastResult().Paths)
}
