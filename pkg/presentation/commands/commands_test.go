package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illumination-k/pathmirror/pkg/application"
	"github.com/illumination-k/pathmirror/pkg/application/service"
	"github.com/illumination-k/pathmirror/pkg/config"
	pathsync "github.com/illumination-k/pathmirror/pkg/sync"
	"github.com/illumination-k/pathmirror/pkg/sync/conflict"
)

func execute(t *testing.T, app *application.App, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(app)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func newTestApp(t *testing.T) (*application.App, *config.Store) {
	t.Helper()
	store := config.NewStoreWithPath(t.TempDir())
	return application.NewAppWithStore(store, nil), store
}

func TestCommands_ProfileLifecycle(t *testing.T) {
	app, store := newTestApp(t)
	dirA, dirB := t.TempDir(), t.TempDir()

	out, err := execute(t, app, "", "profile", "create", "notes", dirA)
	require.NoError(t, err)
	assert.Contains(t, out, "Profile 'notes' created with 1 path(s)")

	_, err = execute(t, app, "", "path", "add", "notes", dirB)
	require.NoError(t, err)

	out, err = execute(t, app, "", "path", "list", "notes")
	require.NoError(t, err)
	assert.Equal(t, "1\t"+dirA+"\n2\t"+dirB+"\n", out)

	out, err = execute(t, app, "", "profile", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "notes")

	out, err = execute(t, app, "", "profile", "show", "notes", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "notes"`)

	out, err = execute(t, app, "n\n", "profile", "delete", "notes")
	require.NoError(t, err)
	assert.Contains(t, out, "Canceled")
	assert.True(t, store.ProfileExists("notes"))

	_, err = execute(t, app, "", "profile", "delete", "notes", "--force")
	require.NoError(t, err)
	assert.False(t, store.ProfileExists("notes"))
}

func TestCommands_SetSettings(t *testing.T) {
	app, store := newTestApp(t)
	_, err := execute(t, app, "", "profile", "create", "notes")
	require.NoError(t, err)

	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{name: "direction", args: []string{"set", "direction", "notes", "source_to_dest"}},
		{name: "bad direction", args: []string{"set", "direction", "notes", "up"}, wantErr: true},
		{name: "policy", args: []string{"set", "policy", "notes", "ask"}},
		{name: "interval seconds", args: []string{"set", "interval", "notes", "30"}},
		{name: "interval too long", args: []string{"set", "interval", "notes", "2h"}, wantErr: true},
		{name: "filter", args: []string{"set", "filter", "notes", "--ext", "md,.TXT", "--min-size", "1KB", "--exclude", "tmp/"}},
		{name: "filter bad size", args: []string{"set", "filter", "notes", "--max-size", "lots"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, app, "", tt.args...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}

	profile, err := store.LoadProfile("notes")
	require.NoError(t, err)
	assert.Equal(t, "source_to_dest", profile.Direction)
	assert.Equal(t, string(conflict.PolicyAsk), profile.ConflictPolicy)
	assert.Equal(t, 30, profile.IntervalSeconds)
	assert.Equal(t, []string{"md", "txt"}, profile.Filter.Extensions)
	assert.Equal(t, int64(1000), profile.Filter.MinSize)
	assert.Equal(t, []string{"tmp/"}, profile.Filter.Exclude)
	assert.True(t, profile.Filter.ExcludeHidden)
}

func TestCommands_SyncAndHistory(t *testing.T) {
	app, _ := newTestApp(t)
	dirA, dirB := t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dirA, "a.txt"), []byte("alpha"), 0o644))

	_, err := execute(t, app, "", "profile", "create", "notes", dirA, dirB)
	require.NoError(t, err)

	out, err := execute(t, app, "", "sync", "notes", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "synced 1 files")

	data, err := os.ReadFile(filepath.Join(dirB, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(data))

	out, err = execute(t, app, "", "history", "list", "notes")
	require.NoError(t, err)
	assert.Contains(t, out, "STATUS")
	assert.Contains(t, out, "synced 1 files")

	csvPath := filepath.Join(t.TempDir(), "history.csv")
	_, err = execute(t, app, "", "history", "export", "notes", "-o", csvPath)
	require.NoError(t, err)
	csv, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(csv), "start,end,pathCount,fileCount,status,paths\n"))

	_, err = execute(t, app, "", "history", "clear", "notes")
	require.NoError(t, err)
	out, err = execute(t, app, "", "history", "list", "notes")
	require.NoError(t, err)
	assert.Contains(t, out, "No history recorded")
}

func TestCommands_UnknownOutputFormat(t *testing.T) {
	app, _ := newTestApp(t)
	_, err := execute(t, app, "", "profile", "list", "-o", "xml")
	assert.ErrorContains(t, err, "unknown output format")
}

func TestCommands_Version(t *testing.T) {
	app, _ := newTestApp(t)
	out, err := execute(t, app, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "pathmirror version dev\n", out)
}

func TestStdinPrompt(t *testing.T) {
	tests := []struct {
		input    string
		expected conflict.Decision
	}{
		{input: "s\n", expected: conflict.SourceWins},
		{input: "destination\n", expected: conflict.DestinationWins},
		{input: "\n", expected: conflict.Skip},
		{input: "", expected: conflict.Skip},
	}

	candidate := conflict.Candidate{Path: "/a/notes.txt", ModTime: time.Now(), Size: 2048}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var out bytes.Buffer
			prompt := newStdinPrompt(strings.NewReader(tt.input), &out)

			decision, err := prompt(testContext(t), candidate, candidate)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, decision)
			assert.Contains(t, out.String(), "2.0 KiB")
		})
	}
}

func TestParseInterval(t *testing.T) {
	d, err := parseInterval("45")
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, d)

	d, err = parseInterval("2m")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, d)

	_, err = parseInterval("soon")
	assert.Error(t, err)
}

func TestPrintWatchSummary(t *testing.T) {
	finished := time.Date(2024, 5, 1, 12, 30, 0, 0, time.Local)
	last := &pathsync.SyncResult{Status: "synced 2 files", FinishedAt: finished, FileCount: 2, Success: true}

	var out bytes.Buffer
	printWatchSummary(&out, "notes", &service.WatchSummary{
		Passes: []pathsync.SyncResult{{FileCount: 1}, *last},
		Last:   last,
	})
	assert.Equal(t, "Stopped watching 'notes': 2 pass(es), 3 file(s) synced, 1 failed\n"+
		"Last pass: synced 2 files at 2024-05-01 12:30:00\n", out.String())

	out.Reset()
	printWatchSummary(&out, "notes", &service.WatchSummary{})
	assert.Equal(t, "Stopped watching 'notes': 0 pass(es), 0 file(s) synced, 0 failed\n", out.String())
}
