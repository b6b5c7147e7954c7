package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"pasket/cmd/pasket/ui"
	"pasket/internal/decode"
	"pasket/internal/journal"
	"pasket/internal/logging"
	"pasket/internal/pipeline"
	"pasket/internal/solver"
	"pasket/internal/watch"
)

var (
	outPath      string
	logPath      string
	runID        string
	historyLimit int
	watchSolve   bool
)

var encodeCmd = &cobra.Command{
	Use:   "encode [templates...]",
	Short: "Encode templates into a program for the solver",
	Long: `Loads the templates (files or directories of .java files, defaulting to
the config's templates list) and prints the encoded program: the templates
plus the auxiliary dispatch class whose role variables the solver fills.`,
	RunE: runEncode,
}

var decodeCmd = &cobra.Command{
	Use:   "decode [templates...]",
	Short: "Decode a recorded solver log against the templates",
	Long: `Re-encodes the templates, reads role choices from the given decision log
and prints the decoded program. Equivalent to run with solver.replay set.`,
	RunE: runDecode,
}

var runCmd = &cobra.Command{
	Use:   "run [templates...]",
	Short: "Encode, solve and decode in one step",
	RunE:  runRun,
}

var rolesCmd = &cobra.Command{
	Use:   "roles [templates...]",
	Short: "Show the role table of a decision log or a journaled run",
	RunE:  runRoles,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List journaled runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var watchCmd = &cobra.Command{
	Use:   "watch [templates...]",
	Short: "Rebuild whenever a template changes",
	RunE:  runWatch,
}

// templatePaths prefers command line arguments over the config.
func templatePaths(args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	if len(cfg.Templates) > 0 {
		return cfg.Templates, nil
	}
	return nil, fmt.Errorf("no templates given (pass paths or set templates in %s)", configPath)
}

// openJournal returns nil when the journal is disabled.
func openJournal() (*journal.Store, error) {
	if !cfg.Journal.Enabled {
		return nil, nil
	}
	return journal.Open(cfg.Journal.Path)
}

// newRunner builds a pipeline runner from the loaded config. The returned
// close func releases the journal.
func newRunner(templates []string, s solver.Solver) (*pipeline.Runner, func(), error) {
	mode, err := cfg.GetMode()
	if err != nil {
		return nil, nil, err
	}
	store, err := openJournal()
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if store != nil {
			if err := store.Close(); err != nil {
				logging.BootWarn("failed to close journal: %v", err)
			}
		}
	}
	r, err := pipeline.New(pipeline.Options{
		Templates:   templates,
		Encode:      cfg.EncodeOptions(),
		Mode:        mode,
		Solver:      s,
		Audit:       cfg.Audit.Enabled,
		StrictAudit: cfg.Audit.Strict,
		Journal:     store,
	})
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return r, closeFn, nil
}

// writeOutput writes text to path, or to the command's stdout when path
// is empty.
func writeOutput(cmd *cobra.Command, path, text string) error {
	if path == "" {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), text)
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	logging.Boot("wrote %s", path)
	return nil
}

func runEncode(cmd *cobra.Command, args []string) error {
	templates, err := templatePaths(args)
	if err != nil {
		return err
	}
	// Encoding never journals.
	r, err := pipeline.New(pipeline.Options{Templates: templates, Encode: cfg.EncodeOptions()})
	if err != nil {
		return err
	}
	res, err := r.Encode(cmd.Context())
	if err != nil {
		return err
	}
	return writeOutput(cmd, outPath, res.Encoded)
}

func runDecode(cmd *cobra.Command, args []string) error {
	return solveAndWrite(cmd, args, &solver.ReplaySolver{Path: logPath})
}

func runRun(cmd *cobra.Command, args []string) error {
	s, err := cfg.NewSolver()
	if err != nil {
		return err
	}
	return solveAndWrite(cmd, args, s)
}

func solveAndWrite(cmd *cobra.Command, args []string, s solver.Solver) error {
	templates, err := templatePaths(args)
	if err != nil {
		return err
	}
	r, closeFn, err := newRunner(templates, s)
	if err != nil {
		return err
	}
	defer closeFn()

	res, err := r.Run(cmd.Context())
	if res != nil && res.Audit != nil && !res.Audit.OK() {
		fmt.Fprint(cmd.ErrOrStderr(), ui.ViolationTable(res.Audit.Violations).View(ui.DefaultStyles()))
	}
	if err != nil {
		return err
	}
	if outPath == "" && cfg.Output != "" {
		return writeOutput(cmd, cfg.Output, res.Output)
	}
	return writeOutput(cmd, outPath, res.Output)
}

func runRoles(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	styles := ui.DefaultStyles()

	switch {
	case logPath != "" && runID != "":
		return fmt.Errorf("--log and --run are mutually exclusive")

	case runID != "":
		store, err := openJournal()
		if err != nil {
			return err
		}
		if store == nil {
			return fmt.Errorf("journal is disabled")
		}
		defer store.Close()
		run, err := store.Get(ctx, runID)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), ui.RoleTable("Roles of "+run.ID, run.Roles, nil).View(styles))
		return nil

	case logPath != "":
		templates, err := templatePaths(args)
		if err != nil {
			return err
		}
		r, err := pipeline.New(pipeline.Options{Templates: templates, Encode: cfg.EncodeOptions()})
		if err != nil {
			return err
		}
		// Encoding keeps method ids, so the encoded template resolves them.
		res, err := r.Encode(ctx)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(logPath)
		if err != nil {
			return err
		}
		d, err := decode.ParseLog(bytes.NewReader(data), res.Encoding.Layout)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), ui.RoleTable("Roles", d.Roles, res.Template).View(styles))
		fmt.Fprintf(cmd.OutOrStdout(), "%d invoked method(s)\n", len(d.Invoked))
		return nil
	}
	return fmt.Errorf("one of --log or --run is required")
}

func runHistory(cmd *cobra.Command, args []string) error {
	store, err := openJournal()
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("journal is disabled")
	}
	defer store.Close()

	runs, err := store.Runs(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
		return nil
	}
	styles := ui.DefaultStyles()
	fmt.Fprint(cmd.OutOrStdout(), ui.HistoryTable(runs, styles).View(styles))
	return nil
}

// watchDirs maps template paths to the directories to watch.
func watchDirs(templates []string) ([]string, error) {
	seen := make(map[string]bool)
	var dirs []string
	for _, p := range templates {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		dir := p
		if !info.IsDir() {
			dir = filepath.Dir(p)
		}
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	return dirs, nil
}

// rebuilder returns the watch callback for the configured mode.
func rebuilder(cmd *cobra.Command, templates []string) (watch.RebuildFunc, error) {
	if !watchSolve {
		r, err := pipeline.New(pipeline.Options{Templates: templates, Encode: cfg.EncodeOptions()})
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, changed []string) error {
			res, err := r.Encode(ctx)
			if err != nil {
				return err
			}
			logging.Watch("re-encoded after %d change(s): aux %s", len(changed), res.Encoding.Layout.Aux)
			if outPath != "" {
				return writeOutput(cmd, outPath, res.Encoded)
			}
			return nil
		}, nil
	}

	s, err := cfg.NewSolver()
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, changed []string) error {
		r, closeFn, err := newRunner(templates, s)
		if err != nil {
			return err
		}
		defer closeFn()
		res, err := r.Run(ctx)
		if err != nil {
			return err
		}
		logging.Watch("run %s after %d change(s): %d materialized", res.RunID, len(changed), len(res.Report.Materialized))
		if outPath != "" {
			return writeOutput(cmd, outPath, res.Output)
		}
		return nil
	}, nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	templates, err := templatePaths(args)
	if err != nil {
		return err
	}
	dirs, err := watchDirs(templates)
	if err != nil {
		return err
	}
	rebuild, err := rebuilder(cmd, templates)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Build once up front so the first output exists before any edit.
	if err := rebuild(ctx, templates); err != nil {
		logging.WatchError("initial build failed: %v", err)
	}

	w, err := watch.New(watch.Options{Dirs: dirs, Debounce: cfg.GetWatchDebounce(), Rebuild: rebuild})
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Watching %d director(ies). Press Ctrl+C to stop\n", len(dirs))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}

	w.Stop()
	stats := w.Stats()
	fmt.Fprintf(cmd.OutOrStdout(), "%d event(s), %d rebuild(s), %d error(s)\n", stats.Events, stats.Rebuilds, stats.Errors)
	return nil
}
