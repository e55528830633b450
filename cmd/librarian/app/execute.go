package app

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentstation/librarian/internal/cmd/output"
	"github.com/agentstation/librarian/pkg/logging"
)

// Execute runs the CLI with the given arguments.
func (a *App) Execute(ctx context.Context, args []string) error {
	rootCmd := a.createRootCommand()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(a.stdout)
	return rootCmd.ExecuteContext(ctx)
}

func (a *App) createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "librarian",
		Short:   "Reorganize a BookStack library",
		Version: a.version,
		Long: `Librarian tidies a BookStack instance: it shelves loose books, files
pages that sit directly in a book into the best matching chapter, moves
empty chapters into a holding book and deletes empty placeholder pages.

Every command is a dry-run unless --apply is given. Each run writes a JSON
report and is recorded in the local history database.`,
		PersistentPreRunE: a.setupCommand,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	rootCmd.AddGroup(&cobra.Group{ID: "organize", Title: "Organize Commands:"})
	rootCmd.AddGroup(&cobra.Group{ID: "inspect", Title: "Inspect Commands:"})

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.config.ConfigFile, "config", "", "config file (default is $HOME/.librarian.yaml)")
	flags.BoolVarP(&a.config.Verbose, "verbose", "v", false, "verbose output (shortcut for --log-level=debug)")
	flags.BoolVarP(&a.config.Quiet, "quiet", "q", false, "minimal output (shortcut for --log-level=warn)")
	flags.BoolVar(&a.config.NoColor, "no-color", false, "disable colored output")
	flags.StringVarP(&a.config.Format, "format", "o", a.config.Format, "output format: table, json, yaml")
	flags.StringVar(&a.config.LogLevel, "log-level", "", "log level: trace, debug, info, warn, error (overrides -v/-q)")
	flags.StringVar(&a.config.SnapshotFile, "offline", a.config.SnapshotFile, "work on a library snapshot file instead of the remote service")

	rootCmd.SetVersionTemplate("librarian {{.Version}}\n")

	a.registerCommands(rootCmd)
	return rootCmd
}

// setupCommand is called before any command runs.
func (a *App) setupCommand(cmd *cobra.Command, _ []string) error {
	if cmd.Flags().Changed("config") {
		if err := os.Setenv("LIBRARIAN_CONFIG", a.config.ConfigFile); err != nil {
			return err
		}
		reloaded, err := LoadConfig()
		if err != nil {
			return err
		}
		reloaded.SnapshotFile = a.config.SnapshotFile
		a.config = reloaded
	}

	verbose := mustGetBool(cmd, "verbose")
	quiet := mustGetBool(cmd, "quiet")
	noColor := mustGetBool(cmd, "no-color")
	format := mustGetString(cmd, "format")
	logLevel := mustGetString(cmd, "log-level")

	if _, err := output.ParseFormat(format); err != nil {
		return err
	}
	a.config.UpdateFromFlags(verbose, quiet, noColor, format, logLevel)

	if !a.fixedLogger {
		logger := NewLogger(a.config)
		a.logger = &logger
	}
	cmd.SetContext(logging.WithLogger(cmd.Context(), a.logger))
	return nil
}

func (a *App) registerCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(a.NewOrganizeCommand())
	rootCmd.AddCommand(a.NewShelveCommand())
	rootCmd.AddCommand(a.NewTriageCommand())
	rootCmd.AddCommand(a.NewSweepCommand())
	rootCmd.AddCommand(a.NewJunkCommand())
	rootCmd.AddCommand(a.NewReconcileCommand())

	rootCmd.AddCommand(a.NewClassifyCommand())
	rootCmd.AddCommand(a.NewSnapshotCommand())
	rootCmd.AddCommand(a.NewExportCommand())
	rootCmd.AddCommand(a.NewDiffCommand())
	rootCmd.AddCommand(a.NewHistoryCommand())

	rootCmd.AddCommand(a.NewVersionCommand())
}

// ExitOnError prints err and exits with status 1.
func ExitOnError(err error) {
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

// mustGetBool retrieves a flag defined in this package.
func mustGetBool(cmd *cobra.Command, name string) bool {
	val, err := cmd.Flags().GetBool(name)
	if err != nil {
		panic("programming error: failed to get flag " + name + ": " + err.Error())
	}
	return val
}

// mustGetString retrieves a flag defined in this package.
func mustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic("programming error: failed to get flag " + name + ": " + err.Error())
	}
	return val
}
