package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/librarian/internal/cmd/output"
	"github.com/agentstation/librarian/pkg/classify"
	"github.com/agentstation/librarian/pkg/differ"
	"github.com/agentstation/librarian/pkg/errors"
	"github.com/agentstation/librarian/pkg/library"
	"github.com/agentstation/librarian/pkg/library/memory"
)

// NewClassifyCommand shows where titles would be filed.
func (a *App) NewClassifyCommand() *cobra.Command {
	var (
		collection string
		candidates []string
	)
	cmd := &cobra.Command{
		Use:     "classify TITLE...",
		GroupID: "inspect",
		Short:   "Show which chapter a page title would be filed into",
		Long: `Classify matches titles against the chapters of a book (--book) or
against an explicit list of chapter names (--candidate). Nothing is written.`,
		Example: `  librarian classify --book 12 "1.4 Node pools" "Lunch menu"
  librarian classify --candidate "1. Kubernetes" --candidate "2. Postgres" "postgres failover"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, titles []string) error {
			vocab, err := a.Vocabulary()
			if err != nil {
				return err
			}
			classifier := classify.New(vocab)

			var children []library.Container
			switch {
			case collection != "" && len(candidates) > 0:
				return errors.NewValidationError("candidate", candidates, "cannot be combined with --book")
			case collection != "":
				id, err := parseID(collection)
				if err != nil {
					return err
				}
				repo, err := a.Repository()
				if err != nil {
					return err
				}
				c, err := repo.Collection(cmd.Context(), library.ID(id))
				if err != nil {
					return err
				}
				children = c.Children
			case len(candidates) > 0:
				for i, name := range candidates {
					children = append(children, library.Container{ID: library.ID(i + 1), Name: name})
				}
			default:
				return errors.NewValidationError("book", "", "one of --book or --candidate is required")
			}

			cands := classify.Candidates(children, vocab)
			names := make(map[library.ID]string, len(children))
			for _, ch := range children {
				names[ch.ID] = ch.Name
			}
			results := make(output.Classifications, 0, len(titles))
			for _, title := range titles {
				res := classifier.Classify(title, cands)
				results = append(results, output.Classification{
					Title:     title,
					Matched:   res.Matched,
					Target:    res.ID,
					Container: names[res.ID],
					Reason:    res.Reason,
				})
			}
			return a.print(results)
		},
	}
	cmd.Flags().StringVar(&collection, "book", "", "book id whose chapters are the candidates")
	cmd.Flags().StringArrayVar(&candidates, "candidate", nil, "candidate chapter name (repeatable)")
	return cmd
}

// NewSnapshotCommand writes the inbox review snapshot.
func (a *App) NewSnapshotCommand() *cobra.Command {
	var (
		dir      string
		toStdout bool
	)
	cmd := &cobra.Command{
		Use:     "snapshot",
		GroupID: "inspect",
		Short:   "Write a review snapshot of every book's inbox chapter",
		Long: `Snapshot lists each book's chapters and summarizes the pages in its
inbox chapter (headings and a text sample) as JSON and Markdown, for manual
review before writing a plan.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lib, err := a.Librarian()
			if err != nil {
				return err
			}
			snap, err := lib.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			if toStdout {
				return snap.WriteMarkdown(a.stdout)
			}
			jsonPath, mdPath, err := snap.Save(dir)
			if err != nil {
				return err
			}
			a.logger.Info().Int("documents", snap.TotalDocuments).Msg("snapshot written")
			_, err = fmt.Fprintf(a.stdout, "%s\n%s\n", jsonPath, mdPath)
			return err
		},
	}
	cmd.Flags().StringVar(&dir, "dir", a.config.OutputDir, "directory for the snapshot files")
	cmd.Flags().BoolVar(&toStdout, "print", false, "print the Markdown to stdout instead of writing files")
	return cmd
}

// NewExportCommand captures the whole library into a YAML file usable
// with --offline.
func (a *App) NewExportCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "export FILE",
		GroupID: "inspect",
		Short:   "Capture the library structure into a snapshot file",
		Long: `Export reads every shelf, book, chapter and page and writes them to a
YAML file. Pass that file to --offline to rehearse commands without
touching the remote library.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := a.Repository()
			if err != nil {
				return err
			}
			snap, err := memory.Capture(cmd.Context(), repo)
			if err != nil {
				return err
			}
			if err := memory.WriteSnapshot(args[0], snap); err != nil {
				return err
			}
			a.logger.Info().Str("path", args[0]).Int("books", len(snap.Collections)).Msg("library exported")
			return nil
		},
	}
}

// NewHistoryCommand lists recorded runs or shows one run's reports.
func (a *App) NewHistoryCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:     "history [RUN_ID]",
		GroupID: "inspect",
		Short:   "Show recorded runs",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.Audit()
			if err != nil {
				return err
			}
			if store == nil {
				return errors.NewConfigError("history", "LIBRARIAN_AUDIT_DB is empty", nil)
			}
			if len(args) == 1 {
				reports, err := store.Reports(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.print(output.Reports(reports))
			}
			runs, err := store.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return a.print(output.Runs(runs))
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")
	return cmd
}

// NewDiffCommand compares two exported snapshots, or one with the live library.
func (a *App) NewDiffCommand() *cobra.Command {
	var content bool
	cmd := &cobra.Command{
		Use:     "diff BEFORE [AFTER]",
		GroupID: "inspect",
		Short:   "Show what changed between two exported snapshots",
		Long: `Diff compares two files written by export. With one file it compares
that file with the current library, which shows what a run changed.`,
		Example: `  librarian export before.yaml
  librarian organize --apply
  librarian diff before.yaml`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			before, err := memory.ReadSnapshot(args[0])
			if err != nil {
				return err
			}
			var after *memory.Snapshot
			if len(args) == 2 {
				after, err = memory.ReadSnapshot(args[1])
			} else {
				var repo library.Repository
				if repo, err = a.Repository(); err == nil {
					after, err = memory.Capture(cmd.Context(), repo)
				}
			}
			if err != nil {
				return err
			}
			return a.print(output.Diff{Changeset: differ.New(differ.WithContent(content)).Snapshots(before, after)})
		},
	}
	cmd.Flags().BoolVar(&content, "content", false, "also compare page bodies")
	return cmd
}
