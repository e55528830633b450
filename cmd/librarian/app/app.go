// Package app wires configuration, logging and the library backend for the
// librarian CLI.
package app

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/librarian"
	"github.com/agentstation/librarian/internal/audit"
	"github.com/agentstation/librarian/internal/transport"
	"github.com/agentstation/librarian/pkg/bookstack"
	"github.com/agentstation/librarian/pkg/classify"
	"github.com/agentstation/librarian/pkg/errors"
	"github.com/agentstation/librarian/pkg/library"
	"github.com/agentstation/librarian/pkg/library/memory"
)

// App holds the CLI's configuration and lazily built dependencies.
type App struct {
	version string
	commit  string
	date    string
	builtBy string

	config      *Config
	logger      *zerolog.Logger
	fixedLogger bool // set by WithLogger; flags do not rebuild it
	stdout      io.Writer

	mu    sync.Mutex
	repo  library.Repository
	store *audit.Store
}

// New creates an App with configuration loaded from the environment.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
		stdout:  os.Stdout,
	}

	config, err := LoadConfig()
	if err != nil {
		return nil, errors.WrapResource("load", "config", "", err)
	}
	app.config = config

	logger := NewLogger(config)
	app.logger = &logger

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}
	return app, nil
}

// Version returns the version information.
func (a *App) Version() string { return a.version }

// Commit returns the git commit hash.
func (a *App) Commit() string { return a.commit }

// Date returns the build date.
func (a *App) Date() string { return a.date }

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string { return a.builtBy }

// Config returns the application configuration.
func (a *App) Config() *Config { return a.config }

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger { return a.logger }

// Repository returns the library backend, building it on first use: the
// offline snapshot when one is configured, the remote service otherwise.
func (a *App) Repository() (library.Repository, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.repo != nil {
		return a.repo, nil
	}

	if a.config.Offline() {
		store, err := memory.LoadSnapshot(a.config.SnapshotFile)
		if err != nil {
			return nil, err
		}
		a.logger.Debug().Str("file", a.config.SnapshotFile).Msg("using offline library snapshot")
		a.repo = store
		return a.repo, nil
	}

	cfg, err := a.config.Transport()
	if err != nil {
		return nil, err
	}
	client, err := transport.New(cfg)
	if err != nil {
		return nil, errors.WrapResource("create", "client", cfg.BaseURL, err)
	}
	a.logger.Debug().Str("base_url", client.BaseURL()).Dur("min_interval", cfg.MinInterval).Msg("remote library client ready")
	a.repo = bookstack.New(client)
	return a.repo, nil
}

// Librarian builds a Librarian over the configured repository.
func (a *App) Librarian(opts ...librarian.Option) (*librarian.Librarian, error) {
	repo, err := a.Repository()
	if err != nil {
		return nil, err
	}
	vocab, err := a.Vocabulary()
	if err != nil {
		return nil, err
	}
	base := []librarian.Option{
		librarian.WithHolding(a.config.Holding()),
		librarian.WithInboxName(a.config.InboxName),
		librarian.WithVocabulary(vocab),
	}
	return librarian.New(repo, append(base, opts...)...)
}

// Vocabulary returns the configured word lists, or the defaults.
func (a *App) Vocabulary() (*classify.Vocabulary, error) {
	if a.config.VocabularyFile == "" {
		return classify.DefaultVocabulary(), nil
	}
	return classify.LoadVocabulary(a.config.VocabularyFile)
}

// Audit opens the run history database on first use. It returns nil when
// history is disabled.
func (a *App) Audit() (*audit.Store, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.config.AuditDB == "" {
		return nil, nil
	}
	if a.store == nil {
		store, err := audit.Open(a.config.AuditDB)
		if err != nil {
			return nil, err
		}
		a.store = store
	}
	return a.store, nil
}

// Shutdown releases resources held by the app.
func (a *App) Shutdown(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger that log flags leave alone.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		a.fixedLogger = true
		return nil
	}
}

// WithRepository sets the library backend (useful for testing).
func WithRepository(repo library.Repository) Option {
	return func(a *App) error {
		a.repo = repo
		return nil
	}
}

// WithOutput redirects command output.
func WithOutput(w io.Writer) Option {
	return func(a *App) error {
		a.stdout = w
		return nil
	}
}
