// Package solver runs the external constraint solver over an encoded
// program and hands back its decision log.
package solver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"pasket/internal/logging"
)

var (
	// ErrTimeout means the solver was killed after its time limit.
	ErrTimeout = errors.New("solver timed out")
	// ErrFailed means the solver exited non-zero.
	ErrFailed = errors.New("solver failed")
)

// Request is one encoded program to solve.
type Request struct {
	RunID string
	// Aux names the auxiliary class whose roles the log must report.
	Aux     string
	Program string
}

// Outcome is what a solver run produced.
type Outcome struct {
	// Log is the raw decision log, see decode.ParseLog.
	Log       []byte
	Duration  time.Duration
	ExitCode  int
	Truncated bool
}

// Solver resolves the holes of an encoded program.
type Solver interface {
	Solve(ctx context.Context, req Request) (*Outcome, error)
}

// Func adapts a function to Solver.
type Func func(ctx context.Context, req Request) (*Outcome, error)

// Solve calls f.
func (f Func) Solve(ctx context.Context, req Request) (*Outcome, error) { return f(ctx, req) }

// ReplaySolver returns a previously recorded decision log instead of
// running anything.
type ReplaySolver struct {
	Path string
}

// Solve reads the recorded log.
func (r *ReplaySolver) Solve(ctx context.Context, req Request) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	data, err := os.ReadFile(r.Path)
	if err != nil {
		return nil, fmt.Errorf("replay decision log: %w", err)
	}
	logging.Solver("replayed %s for %s (%d bytes)", r.Path, req.Aux, len(data))
	return &Outcome{Log: data, Duration: time.Since(start)}, nil
}
