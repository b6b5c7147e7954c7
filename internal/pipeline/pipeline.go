// Package pipeline runs the whole synthesis loop over a set of template
// files: load, encode, solve, parse the decision log, audit, decode,
// clean up and journal.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pasket/internal/accessor"
	"pasket/internal/audit"
	"pasket/internal/cleanup"
	"pasket/internal/decode"
	"pasket/internal/encode"
	"pasket/internal/ir"
	"pasket/internal/javasrc"
	"pasket/internal/journal"
	"pasket/internal/logging"
	"pasket/internal/solver"
)

// Stage names one step of a run.
type Stage string

const (
	StageLoad    Stage = "load"
	StageEncode  Stage = "encode"
	StageSolve   Stage = "solve"
	StageParse   Stage = "parse"
	StageAudit   Stage = "audit"
	StageDecode  Stage = "decode"
	StageCleanup Stage = "cleanup"
	StageJournal Stage = "journal"
)

// StageError tags an error with the stage that produced it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

// StageOf returns the stage err came from, or "" if it carries none.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// Options configures a Runner.
type Options struct {
	// Templates are files or directories of .java files.
	Templates []string
	Encode    encode.Options
	Mode      accessor.Mode
	Solver    solver.Solver

	Audit       bool
	StrictAudit bool

	// Journal, when set, records every run that got past loading.
	Journal *journal.Store
}

// Result collects what each stage produced. Fields of stages that did not
// run are nil.
type Result struct {
	RunID    string
	Template *ir.Template
	Encoding *encode.Encoding
	// Encoded is the program handed to the solver.
	Encoded   string
	Outcome   *solver.Outcome
	Decisions *decode.Decisions
	Audit     *audit.Result
	Report    *decode.Report
	Cleanup   *cleanup.Stats
	// Output is the final program.
	Output string
}

// Runner executes runs with fixed options.
type Runner struct {
	opts Options
}

// New validates opts and returns a Runner.
func New(opts Options) (*Runner, error) {
	if len(opts.Templates) == 0 {
		return nil, fmt.Errorf("pipeline: no templates")
	}
	return &Runner{opts: opts}, nil
}

// Encode loads the templates and encodes them without solving.
func (r *Runner) Encode(ctx context.Context) (*Result, error) {
	res := &Result{RunID: uuid.NewString()}
	if err := r.encode(ctx, res); err != nil {
		return res, err
	}
	return res, nil
}

func (r *Runner) encode(ctx context.Context, res *Result) error {
	gen := ir.NewGenContext()
	t, err := javasrc.LoadPaths(ctx, gen, r.opts.Templates...)
	if err != nil {
		return &StageError{StageLoad, err}
	}
	res.Template = t

	enc, err := encode.Run(ctx, t, gen, r.opts.Encode)
	if err != nil {
		return &StageError{StageEncode, err}
	}
	res.Encoding = enc
	res.Encoded = t.String()
	return nil
}

// Run performs one complete run. The returned Result is non-nil even on
// error and holds whatever the finished stages produced.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if r.opts.Solver == nil {
		return nil, fmt.Errorf("pipeline: no solver")
	}
	timer := logging.StartTimer(logging.CategoryPipeline, "run")
	defer timer.Stop()

	started := time.Now()
	res := &Result{RunID: uuid.NewString()}
	logging.Pipeline("run %s: %d template root(s), mode %s", res.RunID, len(r.opts.Templates), r.opts.Mode)

	err := r.encode(ctx, res)
	if err == nil {
		err = r.resolve(ctx, res)
	}
	if StageOf(err) != StageLoad && r.opts.Journal != nil {
		if jerr := r.record(ctx, res, started, err); jerr != nil {
			err = errors.Join(err, &StageError{StageJournal, jerr})
		}
	}
	if err != nil {
		logging.Pipeline("run %s failed at %s: %v", res.RunID, StageOf(err), err)
		return res, err
	}
	logging.Pipeline("run %s done: %d materialized, %d fields added",
		res.RunID, len(res.Report.Materialized), len(res.Report.Fields))
	return res, nil
}

// resolve runs everything after encoding.
func (r *Runner) resolve(ctx context.Context, res *Result) error {
	aux := res.Encoding.Layout.Aux
	out, err := r.opts.Solver.Solve(ctx, solver.Request{RunID: res.RunID, Aux: aux, Program: res.Encoded})
	res.Outcome = out
	if err != nil {
		return &StageError{StageSolve, err}
	}

	d, err := decode.ParseLog(bytes.NewReader(out.Log), res.Encoding.Layout)
	if err != nil {
		return &StageError{StageParse, err}
	}
	res.Decisions = d
	logging.PipelineDebug("run %s: %d invoked, %d roles", res.RunID, len(d.Invoked), len(d.Roles))

	if r.opts.Audit {
		a, err := audit.Run(ctx, res.Template, res.Encoding.Layout, d.Roles, audit.Options{Strict: r.opts.StrictAudit})
		res.Audit = a
		if err != nil {
			return &StageError{StageAudit, err}
		}
	}

	report, err := decode.Run(res.Template, d, decode.Options{Mode: r.opts.Mode})
	if err != nil {
		return &StageError{StageDecode, err}
	}
	res.Report = report

	stats, err := cleanup.Run(res.Template)
	if err != nil {
		return &StageError{StageCleanup, err}
	}
	res.Cleanup = stats
	res.Output = res.Template.String()
	return nil
}

func (r *Runner) record(ctx context.Context, res *Result, started time.Time, runErr error) error {
	run := &journal.Run{
		ID:       res.RunID,
		Started:  started,
		Finished: time.Now(),
		Mode:     r.opts.Mode.String(),
		Status:   journal.StatusOK,
		Inputs:   r.opts.Templates,
	}
	if res.Encoding != nil {
		run.Aux = res.Encoding.Layout.Aux
	}
	if res.Decisions != nil {
		run.Invoked = len(res.Decisions.Invoked)
		run.Roles = res.Decisions.Roles
	}
	if res.Audit != nil {
		run.Violations = len(res.Audit.Violations)
	}
	if runErr != nil {
		run.Status = journal.StatusFailed
		run.Error = runErr.Error()
	}
	return r.opts.Journal.Record(context.WithoutCancel(ctx), run)
}
