package app

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/agentstation/librarian"
	"github.com/agentstation/librarian/internal/cmd/output"
	"github.com/agentstation/librarian/pkg/errors"
	"github.com/agentstation/librarian/pkg/report"
)

// runFlags are shared by every command that changes the library.
type runFlags struct {
	apply   bool
	noSave  bool
	noAudit bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.apply, "apply", false, "perform writes (default is a dry-run)")
	cmd.Flags().BoolVar(&f.noSave, "no-save", false, "do not write the JSON report file")
	cmd.Flags().BoolVar(&f.noAudit, "no-history", false, "do not record the run in the history database")
}

func (f *runFlags) mode() report.Mode {
	return report.ModeFor(f.apply)
}

// stageFunc matches method expressions such as (*librarian.Librarian).Organize.
type stageFunc func(lib *librarian.Librarian, ctx context.Context, mode report.Mode) (*librarian.Run, error)

// runStages executes fn, then persists and prints whatever reports it
// produced, even when it failed part way.
func (a *App) runStages(cmd *cobra.Command, flags *runFlags, fn stageFunc, opts ...librarian.Option) error {
	ctx := cmd.Context()
	lib, err := a.Librarian(opts...)
	if err != nil {
		return err
	}
	lib.OnStage(func(rep *report.Report) {
		a.logger.Info().
			Str("run_id", rep.RunID).
			Str("stage", rep.Stage).
			Int("changed", rep.Summary.Changed).
			Int("pending", rep.Summary.Pending).
			Int("failed", rep.Summary.Failed).
			Dur("duration", rep.Duration()).
			Msg("stage finished")
	})

	mode := flags.mode()
	if !mode.Applies() {
		a.logger.Info().Msg("dry-run: no changes will be written (use --apply)")
	}

	run, runErr := fn(lib, ctx, mode)
	if run == nil || len(run.Reports) == 0 {
		return runErr
	}

	// Persist a canceled run's partial reports too.
	persistErr := a.persist(context.WithoutCancel(ctx), run, flags)
	if err := a.print(output.Reports(run.Reports)); err != nil {
		return errors.Join(runErr, persistErr, err)
	}
	return errors.Join(runErr, persistErr)
}

func (a *App) persist(ctx context.Context, run *librarian.Run, flags *runFlags) error {
	var errs []error
	if !flags.noSave && a.config.OutputDir != "" {
		path, err := report.Save(a.config.OutputDir, run.Reports...)
		if err != nil {
			errs = append(errs, err)
		} else {
			a.logger.Info().Str("path", path).Msg("report written")
		}
	}
	if !flags.noAudit {
		store, err := a.Audit()
		switch {
		case err != nil:
			errs = append(errs, err)
		case store != nil:
			if err := store.Record(ctx, run.Reports...); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (a *App) print(data any) error {
	return output.NewFormatter(output.DetectFormat(a.config.Format)).Format(a.stdout, data)
}
