package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter_Passes(t *testing.T) {
	tests := []struct {
		name     string
		opts     Options
		path     string
		size     int64
		expected bool
	}{
		{
			name:     "no constraints",
			opts:     Options{},
			path:     "/data/a.bin",
			size:     10,
			expected: true,
		},
		{
			name:     "extension matches case-insensitively",
			opts:     Options{Extensions: []string{"txt"}},
			path:     "/data/a.TXT",
			expected: true,
		},
		{
			name:     "extension not in list",
			opts:     Options{Extensions: []string{"txt"}},
			path:     "/data/a.md",
			expected: false,
		},
		{
			name:     "no extension never passes a non-empty list",
			opts:     Options{Extensions: []string{"txt"}},
			path:     "/data/Makefile",
			expected: false,
		},
		{
			name:     "dotfile has no extension",
			opts:     Options{Extensions: []string{"bashrc"}},
			path:     "/data/.bashrc",
			expected: false,
		},
		{
			name:     "below minimum size",
			opts:     Options{MinSize: 1024},
			path:     "/data/a.txt",
			size:     512,
			expected: false,
		},
		{
			name:     "exactly minimum size",
			opts:     Options{MinSize: 1024},
			path:     "/data/a.txt",
			size:     1024,
			expected: true,
		},
		{
			name:     "above maximum size",
			opts:     Options{MaxSize: 100},
			path:     "/data/a.txt",
			size:     101,
			expected: false,
		},
		{
			name:     "inside size range",
			opts:     Options{MinSize: 10, MaxSize: 100},
			path:     "/data/a.txt",
			size:     50,
			expected: true,
		},
		{
			name:     "hidden file excluded",
			opts:     Options{ExcludeHidden: true},
			path:     "/data/.env",
			expected: false,
		},
		{
			name:     "hidden file allowed",
			opts:     Options{ExcludeHidden: false},
			path:     "/data/.env",
			expected: true,
		},
		{
			name:     "all constraints combined",
			opts:     Options{Extensions: []string{"log"}, MinSize: 1, MaxSize: 10, ExcludeHidden: true},
			path:     "/data/.app.log",
			size:     5,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(tt.opts)
			assert.Equal(t, tt.expected, f.Passes(tt.path, tt.size, ""))
		})
	}
}

func TestFilter_PassesIsPure(t *testing.T) {
	f := New(Options{Extensions: []string{"txt"}, MinSize: 1})

	first := f.Passes("/data/a.txt", 3, "a.txt")
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, f.Passes("/data/a.txt", 3, "a.txt"))
	}
}

func TestExtension(t *testing.T) {
	tests := map[string]string{
		"a.txt":       "txt",
		"archive.TAR": "tar",
		"a.tar.gz":    "gz",
		".bashrc":     "",
		"README":      "",
		"trailing.":   "",
		"..hidden.md": "md",
	}

	for name, want := range tests {
		assert.Equal(t, want, Extension(name), name)
	}
}

func TestOptions_Validate(t *testing.T) {
	assert.NoError(t, Options{MinSize: 10, MaxSize: 20}.Validate())
	assert.NoError(t, Options{MinSize: 10}.Validate())
	assert.ErrorIs(t, Options{MinSize: 30, MaxSize: 20}.Validate(), ErrInvalidRange)
	assert.ErrorIs(t, Options{Extensions: []string{" "}}.Validate(), ErrEmptyExtension)
	assert.ErrorIs(t, Options{MinSize: -1}.Validate(), ErrInvalidSize)
}

func TestParseSize(t *testing.T) {
	n, err := ParseSize("")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = ParseSize("512")
	require.NoError(t, err)
	assert.Equal(t, int64(512), n)

	n, err = ParseSize("1KiB")
	require.NoError(t, err)
	assert.Equal(t, int64(1024), n)

	_, err = ParseSize("abc")
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestParseExtensions(t *testing.T) {
	exts, err := ParseExtensions(" TXT, .md ,go")
	require.NoError(t, err)
	assert.Equal(t, []string{"txt", "md", "go"}, exts)

	exts, err = ParseExtensions("")
	require.NoError(t, err)
	assert.Empty(t, exts)

	_, err = ParseExtensions("txt,,md")
	assert.ErrorIs(t, err, ErrEmptyExtension)
}

func TestOptions_Describe(t *testing.T) {
	assert.Equal(t, "extensions=unrestricted size=0-∞ excludeHidden=yes", DefaultOptions().Describe())
	assert.Equal(t, "extensions=txt,md size=1.0 KiB-2.0 KiB excludeHidden=no",
		Options{Extensions: []string{"txt", "md"}, MinSize: 1024, MaxSize: 2048}.Describe())
}
