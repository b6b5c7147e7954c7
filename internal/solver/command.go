package solver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"pasket/internal/logging"
)

// ProgramPlaceholder in an argument is replaced by the path of the written
// program. Without one the path is appended as the last argument.
const ProgramPlaceholder = "{program}"

const (
	DefaultTimeout     = 10 * time.Minute
	DefaultMaxLogBytes = 64 << 20
)

// CommandConfig describes how to start the solver process.
type CommandConfig struct {
	Command string
	Args    []string
	Timeout time.Duration
	// WorkDir holds the per-run scratch directories; empty means the
	// system temp directory.
	WorkDir     string
	MaxLogBytes int64
	// KeepFiles leaves the scratch directory behind for inspection.
	KeepFiles bool
}

// CommandSolver writes the program to a scratch file and runs an external
// command on it. Stdout and stderr together form the decision log.
type CommandSolver struct {
	config CommandConfig
}

// NewCommandSolver returns a solver running cfg.Command.
func NewCommandSolver(cfg CommandConfig) (*CommandSolver, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("solver command is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxLogBytes <= 0 {
		cfg.MaxLogBytes = DefaultMaxLogBytes
	}
	logging.SolverDebug("command solver: %s %v (timeout=%s)", cfg.Command, cfg.Args, cfg.Timeout)
	return &CommandSolver{config: cfg}, nil
}

// Solve runs the solver once. A non-zero exit still returns the captured
// log alongside ErrFailed so callers can inspect it.
func (s *CommandSolver) Solve(ctx context.Context, req Request) (*Outcome, error) {
	// Warn once a run has used half its timeout.
	timer := logging.StartTimer(logging.CategorySolver, "solve")
	defer timer.StopWithThreshold(s.config.Timeout / 2)

	dir, err := os.MkdirTemp(s.config.WorkDir, "pasket-"+scratchName(req)+"-")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	if !s.config.KeepFiles {
		defer os.RemoveAll(dir)
	}
	program := filepath.Join(dir, req.Aux+".java")
	if err := os.WriteFile(program, []byte(req.Program), 0644); err != nil {
		return nil, fmt.Errorf("write program: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, s.config.Command, s.args(program)...)
	cmd.Dir = dir
	cmd.WaitDelay = time.Second
	var buf bytes.Buffer
	out := &limitedWriter{w: &buf, max: s.config.MaxLogBytes}
	cmd.Stdout = out
	cmd.Stderr = out

	logging.Solver("solving %s: %s", req.Aux, strings.Join(append([]string{s.config.Command}, s.args(program)...), " "))
	start := time.Now()
	err = cmd.Run()
	res := &Outcome{Log: buf.Bytes(), Duration: time.Since(start), Truncated: out.truncated}
	if out.truncated {
		logging.SolverError("decision log truncated: %d bytes discarded", out.discarded)
	}

	if err != nil {
		res.ExitCode = -1
		switch {
		case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
			return res, fmt.Errorf("%w after %s", ErrTimeout, s.config.Timeout)
		case ctx.Err() != nil:
			return res, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, fmt.Errorf("%w: exit %d: %s", ErrFailed, res.ExitCode, tail(res.Log, 512))
		}
		return res, fmt.Errorf("run solver: %w", err)
	}
	logging.Solver("solver finished in %s, %d log bytes", res.Duration, len(res.Log))
	return res, nil
}

func (s *CommandSolver) args(program string) []string {
	args := make([]string, 0, len(s.config.Args)+1)
	placed := false
	for _, a := range s.config.Args {
		if strings.Contains(a, ProgramPlaceholder) {
			a = strings.ReplaceAll(a, ProgramPlaceholder, program)
			placed = true
		}
		args = append(args, a)
	}
	if !placed {
		args = append(args, program)
	}
	return args
}

func scratchName(req Request) string {
	if req.RunID != "" {
		return req.RunID
	}
	return req.Aux
}

func tail(b []byte, n int) string {
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return strings.TrimSpace(string(b))
}

// limitedWriter keeps the first max bytes and counts the rest.
type limitedWriter struct {
	w         io.Writer
	max       int64
	written   int64
	truncated bool
	discarded int64
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	remaining := lw.max - lw.written
	if remaining <= 0 {
		lw.truncated = true
		lw.discarded += int64(n)
		return n, nil
	}
	if int64(n) > remaining {
		lw.truncated = true
		lw.discarded += int64(n) - remaining
		p = p[:remaining]
	}
	written, err := lw.w.Write(p)
	lw.written += int64(written)
	if err != nil {
		return written, err
	}
	return n, nil
}
