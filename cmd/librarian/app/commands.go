package app

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/agentstation/librarian"
	"github.com/agentstation/librarian/pkg/constants"
	"github.com/agentstation/librarian/pkg/errors"
	"github.com/agentstation/librarian/pkg/plan"
	"github.com/agentstation/librarian/pkg/report"
)

// NewOrganizeCommand runs every stage in order.
func (a *App) NewOrganizeCommand() *cobra.Command {
	var (
		flags    runFlags
		planFile string
		skip     struct{ shelving, pages, chapters, deletes bool }
	)
	cmd := &cobra.Command{
		Use:     "organize",
		GroupID: "organize",
		Short:   "Shelve books, file loose pages, sweep empty chapters, delete junk",
		Long: `Organize runs the full pass over the library:

  1. shelve     put every book that is on no shelf onto one
  2. triage     move pages that sit directly in a book into a chapter,
                or into the book's inbox chapter when nothing matches
  3. sweep      move empty chapters into the holding book
  4. junk       delete empty "New Page" and "Test" placeholder pages

A failing stage does not stop the stages after it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := []librarian.Option{librarian.WithStages(librarian.Stages{
				Shelve: !skip.shelving,
				Triage: !skip.pages,
				Sweep:  !skip.chapters,
				Junk:   !skip.deletes,
			})}
			if planFile != "" {
				p, err := plan.Load(planFile)
				if err != nil {
					return err
				}
				opts = append(opts, librarian.WithShelvingRules(p.Shelving))
			}
			return a.runStages(cmd, &flags, (*librarian.Librarian).Organize, opts...)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&planFile, "plan", "", "plan file with shelving rules")
	cmd.Flags().BoolVar(&skip.shelving, "skip-shelving", false, "skip shelving loose books")
	cmd.Flags().BoolVar(&skip.pages, "skip-pages", false, "skip filing pages that sit directly in a book")
	cmd.Flags().BoolVar(&skip.chapters, "skip-empty-chapters", false, "skip sweeping empty chapters")
	cmd.Flags().BoolVar(&skip.deletes, "skip-deletes", false, "skip deleting junk pages")
	return cmd
}

// NewShelveCommand runs the shelving stage alone.
func (a *App) NewShelveCommand() *cobra.Command {
	var (
		flags    runFlags
		planFile string
	)
	cmd := &cobra.Command{
		Use:     "shelve",
		GroupID: "organize",
		Short:   "Put books that are on no shelf onto one",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var opts []librarian.Option
			if planFile != "" {
				p, err := plan.Load(planFile)
				if err != nil {
					return err
				}
				opts = append(opts, librarian.WithShelvingRules(p.Shelving))
			}
			return a.runStages(cmd, &flags, (*librarian.Librarian).Shelve, opts...)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&planFile, "plan", "", "plan file with shelving rules")
	return cmd
}

// NewTriageCommand runs the triage stage alone.
func (a *App) NewTriageCommand() *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:     "triage",
		GroupID: "organize",
		Short:   "File pages that sit directly in a book into chapters",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runStages(cmd, &flags, (*librarian.Librarian).Triage)
		},
	}
	flags.register(cmd)
	return cmd
}

// NewSweepCommand runs the sweep stage alone.
func (a *App) NewSweepCommand() *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:     "sweep",
		GroupID: "organize",
		Short:   "Move empty chapters into the holding book",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runStages(cmd, &flags, (*librarian.Librarian).Sweep)
		},
	}
	flags.register(cmd)
	return cmd
}

// NewJunkCommand runs the junk stage alone.
func (a *App) NewJunkCommand() *cobra.Command {
	var (
		flags     runFlags
		threshold int
		titles    []string
	)
	cmd := &cobra.Command{
		Use:     "junk",
		GroupID: "organize",
		Short:   "Delete empty placeholder pages",
		Example: `  librarian junk
  librarian junk --title "New Page" --title "Copy of *" --apply`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := []librarian.Option{librarian.WithJunk(threshold, titles...)}
			return a.runStages(cmd, &flags, (*librarian.Librarian).Junk, opts...)
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&threshold, "threshold", constants.EmptyTextThreshold, "pages with less visible text than this are empty")
	cmd.Flags().StringArrayVar(&titles, "title", nil, "placeholder title, glob (\"Copy of *\") or re: expression (repeatable, default \"New Page\" and \"Test\")")
	return cmd
}

// NewReconcileCommand applies a plan file.
func (a *App) NewReconcileCommand() *cobra.Command {
	var (
		flags    runFlags
		planFile string
	)
	cmd := &cobra.Command{
		Use:     "reconcile",
		GroupID: "organize",
		Short:   "Move pages to the chapters a plan file names",
		Long: `Reconcile reads a plan of containers and placements and brings the
library in line with it: missing chapters are created and every listed page
is moved into its chapter. Running it twice changes nothing the second time.`,
		Example: `  librarian reconcile --plan plan.yaml
  librarian reconcile --plan plan.yaml --apply`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := plan.Load(planFile)
			if err != nil {
				return err
			}
			catalog, err := p.Catalog()
			if err != nil {
				return err
			}
			return a.runStages(cmd, &flags, func(lib *librarian.Librarian, ctx context.Context, mode report.Mode) (*librarian.Run, error) {
				return lib.Reconcile(ctx, catalog, mode)
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&planFile, "plan", "", "plan file (required)")
	_ = cmd.MarkFlagRequired("plan")
	return cmd
}

// NewVersionCommand prints build information.
func (a *App) NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "librarian %s\n  commit:   %s\n  built:    %s\n  built by: %s\n",
				a.version, a.commit, a.date, a.builtBy)
			return err
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.NewValidationError("id", s, "must be a positive integer")
	}
	return id, nil
}
