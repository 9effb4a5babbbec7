package sync

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/afero"
)

// Direction selects how a pass moves files between registered paths
type Direction string

const (
	Bidirectional Direction = "bidirectional"
	SourceToDest  Direction = "source_to_dest"
	DestToSource  Direction = "dest_to_source"
)

// ParseDirection converts a configuration string into a Direction
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case Bidirectional, SourceToDest, DestToSource:
		return d, nil
	default:
		return "", configErrorf(ErrInvalidDirection, "%q (expected bidirectional, source_to_dest or dest_to_source)", s)
	}
}

// OneWay reports whether the direction copies from one endpoint to the other only
func (d Direction) OneWay() bool {
	return d == SourceToDest || d == DestToSource
}

// PathKind is the kind of a registered path observed at the start of a pass
type PathKind string

const (
	KindFile      PathKind = "file"
	KindDirectory PathKind = "directory"
	KindMissing   PathKind = "missing"
)

// SyncPath is a registered location together with its observed kind
type SyncPath struct {
	Path string
	Kind PathKind
}

// ResolvePathKind stats path and reports its kind
func ResolvePathKind(fs afero.Fs, path string) PathKind {
	info, err := fs.Stat(path)
	switch {
	case err != nil:
		return KindMissing
	case info.IsDir():
		return KindDirectory
	default:
		return KindFile
	}
}

// SyncResult is the outcome of one pass
type SyncResult struct {
	ID         string    `json:"id" yaml:"id"`
	StartedAt  time.Time `json:"startedAt" yaml:"startedAt"`
	FinishedAt time.Time `json:"finishedAt" yaml:"finishedAt"`
	FileCount  int       `json:"fileCount" yaml:"fileCount"`
	Success    bool      `json:"success" yaml:"success"`
	Status     string    `json:"status" yaml:"status"`
	Direction  Direction `json:"direction" yaml:"direction"`
	Paths      []string  `json:"paths" yaml:"paths"`
}

// Duration returns how long the pass took
func (r SyncResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// State is the engine state for the most recent pass
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var (
	// ErrConfiguration matches every *ConfigError via errors.Is
	ErrConfiguration = errors.New("invalid configuration")

	ErrInsufficientPaths = errors.New("at least two sync paths are required")
	ErrDuplicatePath     = errors.New("path is already registered")
	ErrUnknownPath       = errors.New("path is not registered")
	ErrEmptyPath         = errors.New("path cannot be empty")
	ErrInvalidDirection  = errors.New("invalid sync direction")
	ErrInvalidInterval   = errors.New("sync interval must be between 5s and 1h")

	// ErrPassInProgress is returned when a pass is requested while another is running
	ErrPassInProgress = errors.New("a sync pass is already running")

	// ErrSchedulerRunning is returned when Start is called on a running scheduler
	ErrSchedulerRunning = errors.New("scheduler is already running")
)

// ConfigError is returned by configuration operations. The configuration it was
// applied to is left unchanged.
type ConfigError struct {
	Err    error
	Detail string
}

func (e *ConfigError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Detail)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Is makes every ConfigError match ErrConfiguration
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}

func configError(err error) error {
	return &ConfigError{Err: err}
}

func configErrorf(err error, format string, args ...any) error {
	return &ConfigError{Err: err, Detail: fmt.Sprintf(format, args...)}
}
