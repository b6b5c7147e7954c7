package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pasket/internal/accessor"
	"pasket/internal/audit"
	"pasket/internal/encode"
	"pasket/internal/journal"
	"pasket/internal/solver"
)

// Foo 1, getX 2, setX 3, reset 4, Bar 5, Bar(int, String) 6, name 7.
const fooSrc = `
class Foo {
  int x;
  int getX() { return x; }
  void setX(int v) { x = v; }
  void reset() { }
}
class Bar {
  Bar(int a, String b) { }
  String name() { return null; }
}
`

var fooConfig = accessor.Config{
	"k":   {Getters: 1, Setters: 1},
	"bar": {ConstructorArity: 2},
}

func templates(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Foo.java"), []byte(fooSrc), 0644))
	return dir
}

// fakeSolver answers with a fixed role assignment for whatever auxiliary
// class it is asked about.
func fakeSolver(getter, setter int) solver.Solver {
	return solver.Func(func(ctx context.Context, req solver.Request) (*solver.Outcome, error) {
		if !strings.Contains(req.Program, "class "+req.Aux) {
			return nil, fmt.Errorf("program lacks %s", req.Aux)
		}
		var b strings.Builder
		fmt.Fprintf(&b, "log::check_log::-2\n")
		fmt.Fprintf(&b, "g,StmtAssign,getter_k_0_%s = %d\n", req.Aux, getter)
		fmt.Fprintf(&b, "s,StmtAssign,setter_k_0_%s = %d\n", req.Aux, setter)
		fmt.Fprintf(&b, "gs,StmtAssign,gs_k_0_%s = 0\n", req.Aux)
		fmt.Fprintf(&b, "c,StmtAssign,constructor_bar_0_%s = 6\n", req.Aux)
		b.WriteString("Total time = 3\n")
		return &solver.Outcome{Log: []byte(b.String())}, nil
	})
}

func newRunner(t *testing.T, s solver.Solver, store *journal.Store, strict bool) *Runner {
	t.Helper()
	r, err := New(Options{
		Templates:   []string{templates(t)},
		Encode:      encode.Options{Accessors: fooConfig},
		Mode:        accessor.AlwaysMaterialize,
		Solver:      s,
		Audit:       true,
		StrictAudit: strict,
		Journal:     store,
	})
	require.NoError(t, err)
	return r
}

func openJournal(t *testing.T) *journal.Store {
	t.Helper()
	s, err := journal.Open(journal.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunEndToEnd(t *testing.T) {
	store := openJournal(t)
	res, err := newRunner(t, fakeSolver(2, 3), store, true).Run(context.Background())
	require.NoError(t, err)

	assert.Contains(t, res.Encoded, "class AuxAccessor1")
	assert.NotContains(t, res.Output, "AuxAccessor")
	assert.NotContains(t, res.Output, "??")
	assert.Contains(t, res.Output, "return _prvt_k_0;")
	assert.Contains(t, res.Output, "_prvt_k_0 = v;")
	assert.Contains(t, res.Output, "_prvt_bar_0 = a;")
	assert.True(t, res.Audit.OK())
	assert.NotNil(t, res.Cleanup)

	run, err := store.Get(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, journal.StatusOK, run.Status)
	assert.Equal(t, "AuxAccessor1", run.Aux)
	assert.Equal(t, "always", run.Mode)
	assert.Equal(t, 1, run.Invoked)
	assert.Equal(t, 2, run.Roles[accessor.RoleKey{Kind: "k", Category: accessor.Getter}])
}

func TestRunSolverFailure(t *testing.T) {
	store := openJournal(t)
	failing := solver.Func(func(context.Context, solver.Request) (*solver.Outcome, error) {
		return &solver.Outcome{ExitCode: 1}, solver.ErrFailed
	})
	res, err := newRunner(t, failing, store, false).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, StageSolve, StageOf(err))
	assert.True(t, errors.Is(err, solver.ErrFailed))
	assert.Nil(t, res.Report)

	run, err := store.Get(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, journal.StatusFailed, run.Status)
	assert.Contains(t, run.Error, "solver failed")
}

func TestRunStrictAudit(t *testing.T) {
	// setX as the getter takes an argument and returns void
	res, err := newRunner(t, fakeSolver(3, 3), nil, true).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, StageAudit, StageOf(err))
	assert.ErrorIs(t, err, audit.ErrViolations)
	assert.False(t, res.Audit.OK())
}

func TestRunLenientAudit(t *testing.T) {
	res, err := newRunner(t, fakeSolver(3, 3), nil, false).Run(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Audit.OK())
	// decode rejects the ill-shaped getter on its own
	assert.NotContains(t, res.Output, "return _prvt_k_0;")
}

func TestRunLoadFailureNotJournaled(t *testing.T) {
	store := openJournal(t)
	r, err := New(Options{
		Templates: []string{filepath.Join(t.TempDir(), "missing")},
		Solver:    fakeSolver(2, 3),
		Journal:   store,
	})
	require.NoError(t, err)

	_, err = r.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, StageLoad, StageOf(err))

	runs, err := store.Runs(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestEncodeOnly(t *testing.T) {
	r := newRunner(t, nil, nil, false)
	res, err := r.Encode(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID)
	assert.Contains(t, res.Encoded, "class AuxAccessor1")
	assert.Contains(t, res.Encoded, "getter_k_0_AuxAccessor1")
	assert.Nil(t, res.Outcome)
}

func TestRunRequiresSolver(t *testing.T) {
	_, err := newRunner(t, nil, nil, false).Run(context.Background())
	assert.Error(t, err)
}

func TestNewRequiresTemplates(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}
