package app

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/librarian/pkg/errors"
)

func TestLoadConfigDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("LIBRARIAN_CONFIG", "")

	config, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 200*time.Millisecond, config.MinInterval)
	assert.Equal(t, "9. Orphaned", config.HoldingGrouping)
	assert.Equal(t, "Empty Chapters Holding", config.HoldingCollection)
	assert.Equal(t, "00. Inbox (Unsorted)", config.InboxName)
	assert.Equal(t, "data/hierarchy", config.OutputDir)
	assert.NotEmpty(t, config.LogFormat)
	assert.False(t, config.Offline())
}

func TestLoadConfigEnvironment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("LIBRARIAN_CONFIG", "")
	t.Setenv("BOOKSTACK_API_URL", "")
	t.Setenv("BOOKSTACK_URL", "https://docs.example.com/")
	t.Setenv("BOOKSTACK_TOKEN_ID", "id")
	t.Setenv("BOOKSTACK_TOKEN_SECRET", "secret")
	t.Setenv("LIBRARIAN_MIN_INTERVAL", "500ms")
	t.Setenv("LIBRARIAN_INBOX_NAME", "Inbox")

	config, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://docs.example.com", config.URL)
	assert.Equal(t, 500*time.Millisecond, config.MinInterval)
	assert.Equal(t, "Inbox", config.InboxName)

	tc, err := config.Transport()
	require.NoError(t, err)
	assert.Equal(t, "https://docs.example.com/api", tc.BaseURL)
	assert.Equal(t, "id", tc.TokenID)
}

func TestLoadConfigPrefersAPIURL(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("LIBRARIAN_CONFIG", "")
	t.Setenv("BOOKSTACK_API_URL", "https://api.example.com/api")
	t.Setenv("BOOKSTACK_URL", "https://docs.example.com")
	t.Setenv("BOOKSTACK_TOKEN_ID", "id")
	t.Setenv("BOOKSTACK_TOKEN_SECRET", "secret")

	config, err := LoadConfig()
	require.NoError(t, err)
	tc, err := config.Transport()
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/api", tc.BaseURL)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("LIBRARIAN_CONFIG", "")
	writeFile(t, ".librarian.yaml", "librarian_holding_collection: Parking lot\n")

	config, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "Parking lot", config.HoldingCollection)
	assert.Equal(t, "Parking lot", config.Holding().CollectionName)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	t.Setenv("LIBRARIAN_CONFIG", "/does/not/exist.yaml")
	_, err := LoadConfig()
	var ce *errors.ConfigError
	assert.ErrorAs(t, err, &ce)
}

func TestTransportRequiresCredentials(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{"no url", Config{TokenID: "id", TokenSecret: "s"}},
		{"no token id", Config{URL: "https://x", TokenSecret: "s"}},
		{"no secret", Config{URL: "https://x", TokenID: "id"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.config.Transport()
			assert.ErrorIs(t, err, errors.ErrInvalidInput)
		})
	}
}

func TestDetermineLogLevel(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   string
	}{
		{"default", Config{}, "info"},
		{"verbose", Config{Verbose: true}, "debug"},
		{"quiet", Config{Quiet: true}, "warn"},
		{"both", Config{Verbose: true, Quiet: true}, "warn"},
		{"flag wins", Config{LogLevel: "error", Verbose: true}, "error"},
		{"invalid flag", Config{LogLevel: "loud"}, "info"},
		{"env", Config{EnvLogLevel: "trace"}, "trace"},
		{"verbose beats env", Config{EnvLogLevel: "error", Verbose: true}, "debug"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, determineLogLevel(&tt.config))
		})
	}
}

func writeFile(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(name, []byte(content), 0o600))
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Setenv("PWD", dir)
	t.Cleanup(func() { _ = os.Chdir(old) })
}
