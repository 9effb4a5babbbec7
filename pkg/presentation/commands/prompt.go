package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/illumination-k/pathmirror/pkg/sync/conflict"
)

// stdinPrompt answers conflicts from lines read on in. One goroutine owns the
// reader; each line it reads goes to the prompt waiting at that moment, or is
// dropped when that prompt has already given up.
type stdinPrompt struct {
	in  io.Reader
	out io.Writer

	start sync.Once
	want  chan struct{}
	done  chan struct{}
	// err is set before done is closed
	err error

	mu     sync.Mutex
	waiter chan string
}

// newStdinPrompt asks the user to resolve a conflict on in
func newStdinPrompt(in io.Reader, out io.Writer) conflict.Prompt {
	p := &stdinPrompt{
		in:   in,
		out:  out,
		want: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	return p.ask
}

func (p *stdinPrompt) readLines() {
	defer close(p.done)

	reader := bufio.NewReader(p.in)
	for range p.want {
		line, err := reader.ReadString('\n')
		if line != "" {
			p.deliver(line)
		}
		if err != nil {
			if err != io.EOF {
				p.err = err
			}
			return
		}
	}
}

func (p *stdinPrompt) deliver(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.waiter != nil {
		p.waiter <- line
		p.waiter = nil
	}
}

func (p *stdinPrompt) ask(ctx context.Context, source, destination conflict.Candidate) (conflict.Decision, error) {
	answer := make(chan string, 1)
	p.mu.Lock()
	p.waiter = answer
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		if p.waiter == answer {
			p.waiter = nil
		}
		p.mu.Unlock()
	}()

	p.start.Do(func() {
		go p.readLines()
	})
	select {
	case p.want <- struct{}{}:
	default:
	}

	_, _ = fmt.Fprintf(p.out, "\nConflict detected:\n")
	_, _ = fmt.Fprintf(p.out, "  [s] %s (%s, modified %s)\n", source.Path, humanize.IBytes(uint64(source.Size)), humanize.Time(source.ModTime))
	_, _ = fmt.Fprintf(p.out, "  [d] %s (%s, modified %s)\n", destination.Path, humanize.IBytes(uint64(destination.Size)), humanize.Time(destination.ModTime))
	_, _ = fmt.Fprintf(p.out, "Keep which version? [s/d/K(skip)]: ")

	select {
	case line := <-answer:
		return parseAnswer(line), nil
	case <-p.done:
		select {
		case line := <-answer:
			return parseAnswer(line), nil
		default:
		}
		if p.err != nil {
			return conflict.Skip, fmt.Errorf("failed to read answer: %w", p.err)
		}
		return conflict.Skip, nil
	case <-ctx.Done():
		return conflict.Skip, ctx.Err()
	}
}

func parseAnswer(line string) conflict.Decision {
	switch strings.TrimSpace(strings.ToLower(line)) {
	case "s", "source":
		return conflict.SourceWins
	case "d", "dest", "destination":
		return conflict.DestinationWins
	default:
		return conflict.Skip
	}
}
