package conflict

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
)

// Policy selects how conflicting candidates are resolved
type Policy string

const (
	PolicyNewer  Policy = "newer"
	PolicyLarger Policy = "larger"
	PolicyAsk    Policy = "ask"
)

// Decision is the outcome of resolving one conflicting pair
type Decision string

const (
	SourceWins      Decision = "source-wins"
	DestinationWins Decision = "destination-wins"
	Skip            Decision = "skip"
)

// DefaultPromptTimeout bounds how long an ask prompt may block a pass
const DefaultPromptTimeout = 60 * time.Second

var (
	// ErrPromptTimeout is returned when the ask prompt does not answer in time
	ErrPromptTimeout = errors.New("conflict prompt timed out")

	// ErrUnknownPolicy is returned for a policy outside newer, larger and ask
	ErrUnknownPolicy = errors.New("unknown conflict policy")
)

// ParsePolicy converts a configuration string into a Policy
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyNewer, PolicyLarger, PolicyAsk:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q (expected newer, larger or ask)", ErrUnknownPolicy, s)
	}
}

// Candidate is one observed copy of a logical file
type Candidate struct {
	Path    string
	ModTime time.Time
	Size    int64
}

// Identical reports whether both candidates carry the same metadata
func (c Candidate) Identical(other Candidate) bool {
	return c.ModTime.Equal(other.ModTime) && c.Size == other.Size
}

// StaleEntryError reports that candidate metadata could not be read at resolution time
type StaleEntryError struct {
	Path string
	Err  error
}

func (e *StaleEntryError) Error() string {
	return fmt.Sprintf("stale entry %s: %v", e.Path, e.Err)
}

func (e *StaleEntryError) Unwrap() error {
	return e.Err
}

// Stat re-reads candidate metadata for path
func Stat(fs afero.Fs, path string) (Candidate, error) {
	info, err := fs.Stat(path)
	if err != nil {
		return Candidate{}, &StaleEntryError{Path: path, Err: err}
	}
	if info.IsDir() {
		return Candidate{}, &StaleEntryError{Path: path, Err: errors.New("is a directory")}
	}
	return Candidate{Path: path, ModTime: info.ModTime(), Size: info.Size()}, nil
}

// Prompt asks an external actor to decide a conflict between source and destination.
// It must return one of SourceWins, DestinationWins or Skip.
type Prompt func(ctx context.Context, source, destination Candidate) (Decision, error)

// Resolver decides which of two candidates wins
type Resolver struct {
	prompt  Prompt
	timeout time.Duration
	clock   clockwork.Clock
}

// Option configures a Resolver
type Option func(*Resolver)

// WithPrompt sets the callback used by PolicyAsk
func WithPrompt(p Prompt) Option {
	return func(r *Resolver) {
		r.prompt = p
	}
}

// WithTimeout bounds how long PolicyAsk waits for the prompt
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithClock replaces the clock used for the prompt timeout
func WithClock(c clockwork.Clock) Option {
	return func(r *Resolver) {
		r.clock = c
	}
}

// NewResolver creates a Resolver
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		timeout: DefaultPromptTimeout,
		clock:   clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve decides between source and destination under policy.
// Ties under newer and larger resolve to DestinationWins.
func (r *Resolver) Resolve(ctx context.Context, policy Policy, source, destination Candidate) (Decision, error) {
	switch policy {
	case PolicyNewer:
		if source.ModTime.After(destination.ModTime) {
			return SourceWins, nil
		}
		return DestinationWins, nil

	case PolicyLarger:
		if source.Size > destination.Size {
			return SourceWins, nil
		}
		return DestinationWins, nil

	case PolicyAsk:
		return r.ask(ctx, source, destination)

	default:
		return Skip, fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}
}

type promptResult struct {
	decision Decision
	err      error
}

// ask blocks on the prompt until it answers, the timeout elapses, or ctx is done
func (r *Resolver) ask(ctx context.Context, source, destination Candidate) (Decision, error) {
	if r.prompt == nil {
		return Skip, nil
	}

	promptCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered so an abandoned prompt goroutine can still complete its send
	results := make(chan promptResult, 1)
	go func() {
		decision, err := r.prompt(promptCtx, source, destination)
		results <- promptResult{decision: decision, err: err}
	}()

	select {
	case res := <-results:
		if res.err != nil {
			return Skip, fmt.Errorf("conflict prompt failed: %w", res.err)
		}
		switch res.decision {
		case SourceWins, DestinationWins, Skip:
			return res.decision, nil
		default:
			return Skip, fmt.Errorf("conflict prompt returned unknown decision %q", res.decision)
		}
	case <-r.clock.After(r.timeout):
		return Skip, ErrPromptTimeout
	case <-ctx.Done():
		return Skip, ctx.Err()
	}
}
