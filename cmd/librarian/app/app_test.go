package app

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/librarian/pkg/library"
	"github.com/agentstation/librarian/pkg/library/memory"
	"github.com/agentstation/librarian/pkg/logging"
	"github.com/agentstation/librarian/pkg/report"
)

func fixture() *memory.Store {
	s := memory.New()
	s.AddGrouping(1, "9. Orphaned")
	s.AddGrouping(2, "Engineering", 10)
	s.AddCollection(10, "Platform")
	s.AddSubCollection(100, 10, "1. Kubernetes")
	s.AddSubCollection(101, 10, "Old drafts")
	text := library.Content{Format: library.FormatHTML, Text: "<p>" + strings.Repeat("x", 80) + "</p>"}
	s.AddDocument(library.Document{ID: 1000, Title: "1 Cluster sizing", CollectionID: 10, Content: text})
	s.AddDocument(library.Document{ID: 1001, Title: "Lunch menu", CollectionID: 10, Content: text})
	s.AddDocument(library.Document{ID: 1002, Title: "Nodes", ContainerID: 100, Content: text})
	s.AddCollection(11, "Vendor Documentation")
	return s
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	return &Config{
		Format:            "json",
		HoldingGrouping:   "9. Orphaned",
		HoldingCollection: "Empty Chapters Holding",
		InboxName:         "00. Inbox (Unsorted)",
		OutputDir:         filepath.Join(dir, "reports"),
		AuditDB:           filepath.Join(dir, "librarian.db"),
		LogFormat:         "json",
		LogOutput:         "stderr",
	}
}

func newTestApp(t *testing.T, store *memory.Store) (*App, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	app, err := New("1.0.0", "abc123", "2025-01-01", "test",
		WithConfig(testConfig(t)),
		WithLogger(logging.NewNopLogger()),
		WithRepository(store),
		WithOutput(&out),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Shutdown(context.Background()) })
	return app, &out
}

func decodeReports(t *testing.T, data []byte) []*report.Report {
	t.Helper()
	var raw []json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	out := make([]*report.Report, 0, len(raw))
	for _, r := range raw {
		rep, err := report.Decode(r)
		require.NoError(t, err)
		out = append(out, rep)
	}
	return out
}

func TestApp_New(t *testing.T) {
	app, _ := newTestApp(t, fixture())
	assert.Equal(t, "1.0.0", app.Version())
	assert.Equal(t, "abc123", app.Commit())
	assert.Equal(t, "2025-01-01", app.Date())
	assert.Equal(t, "test", app.BuiltBy())
	assert.NotNil(t, app.Logger())
	assert.NotNil(t, app.Config())
}

func TestOrganizeDryRun(t *testing.T) {
	store := fixture()
	app, out := newTestApp(t, store)

	require.NoError(t, app.Execute(context.Background(), []string{"organize"}))

	reports := decodeReports(t, out.Bytes())
	require.Len(t, reports, 4)
	for _, rep := range reports {
		assert.Equal(t, report.DryRun, rep.Mode)
	}
	assert.Equal(t, 0, store.Calls(memory.OpMoveDocument))
	assert.Equal(t, 0, store.Calls(memory.OpCreateCollection))

	files, err := filepath.Glob(filepath.Join(app.Config().OutputDir, "organize-report-*.json"))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestOrganizeApplyRecordsHistory(t *testing.T) {
	store := fixture()
	app, out := newTestApp(t, store)
	ctx := context.Background()

	require.NoError(t, app.Execute(ctx, []string{"organize", "--apply", "--skip-deletes"}))
	reports := decodeReports(t, out.Bytes())
	require.Len(t, reports, 3)
	runID := reports[0].RunID

	owner, ok := store.DocumentLocation(1000)
	require.True(t, ok)
	assert.Equal(t, library.ID(100), owner)

	out.Reset()
	require.NoError(t, app.Execute(ctx, []string{"history"}))
	assert.Contains(t, out.String(), runID)

	out.Reset()
	require.NoError(t, app.Execute(ctx, []string{"history", runID}))
	assert.Len(t, decodeReports(t, out.Bytes()), 3)
}

func TestRunFlagsDisablePersistence(t *testing.T) {
	app, _ := newTestApp(t, fixture())

	require.NoError(t, app.Execute(context.Background(), []string{"triage", "--no-save", "--no-history"}))

	_, err := os.Stat(app.Config().OutputDir)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(app.Config().AuditDB)
	assert.True(t, os.IsNotExist(err))
}

func TestReconcileCommand(t *testing.T) {
	store := fixture()
	app, out := newTestApp(t, store)

	planFile := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(planFile, []byte(`containers:
  food:
    collection: 10
    name: "3. Food"
placements:
  - documents: [1001]
    container: food
`), 0o600))

	require.NoError(t, app.Execute(context.Background(), []string{"reconcile", "--plan", planFile, "--apply"}))
	reports := decodeReports(t, out.Bytes())
	require.Len(t, reports, 1)
	assert.Equal(t, 0, reports[0].Summary.Failed)

	owner, _ := store.DocumentLocation(1001)
	c, err := store.Collection(context.Background(), 10)
	require.NoError(t, err)
	food, ok := c.ChildByName("3. Food")
	require.True(t, ok)
	assert.Equal(t, food.ID, owner)
}

func TestReconcileRequiresPlan(t *testing.T) {
	app, _ := newTestApp(t, fixture())
	assert.Error(t, app.Execute(context.Background(), []string{"reconcile"}))
}

func TestClassifyCommand(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		reason string
	}{
		{"book children", []string{"classify", "--book", "10", "1 Node pools"}, "prefix"},
		{"candidates", []string{"classify", "--candidate", "Postgres Replication", "postgres replication lag"}, "overlap:2"},
		{"no match", []string{"classify", "--book", "10", "Lunch menu"}, "no-match"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, out := newTestApp(t, fixture())
			require.NoError(t, app.Execute(context.Background(), tt.args))

			var got []map[string]any
			require.NoError(t, json.Unmarshal(out.Bytes(), &got))
			require.Len(t, got, 1)
			assert.Equal(t, tt.reason, got[0]["reason"])
		})
	}
}

func TestClassifyRequiresCandidates(t *testing.T) {
	app, _ := newTestApp(t, fixture())
	assert.Error(t, app.Execute(context.Background(), []string{"classify", "title"}))
	assert.Error(t, app.Execute(context.Background(), []string{"classify", "--book", "x", "title"}))
}

func TestExportThenOffline(t *testing.T) {
	app, _ := newTestApp(t, fixture())
	file := filepath.Join(t.TempDir(), "library.yaml")
	require.NoError(t, app.Execute(context.Background(), []string{"export", file}))

	cfg := testConfig(t)
	cfg.SnapshotFile = file
	var out bytes.Buffer
	offline, err := New("1.0.0", "", "", "", WithConfig(cfg), WithLogger(logging.NewNopLogger()), WithOutput(&out))
	require.NoError(t, err)
	defer offline.Shutdown(context.Background())

	require.NoError(t, offline.Execute(context.Background(), []string{"triage", "--apply", "--no-save", "--no-history"}))
	reports := decodeReports(t, out.Bytes())
	require.Len(t, reports, 1)
	assert.Equal(t, 1, reports[0].Counter("assigned"))
	assert.Equal(t, 1, reports[0].Counter("inboxed"))
}

func TestSnapshotCommand(t *testing.T) {
	app, out := newTestApp(t, fixture())
	dir := t.TempDir()
	require.NoError(t, app.Execute(context.Background(), []string{"snapshot", "--dir", dir}))

	paths := strings.Fields(out.String())
	require.Len(t, paths, 2)
	for _, p := range paths {
		assert.FileExists(t, p)
	}

	out.Reset()
	require.NoError(t, app.Execute(context.Background(), []string{"snapshot", "--print"}))
	assert.Contains(t, out.String(), "# Inbox snapshot")
}

func TestVersionCommand(t *testing.T) {
	app, out := newTestApp(t, fixture())
	require.NoError(t, app.Execute(context.Background(), []string{"version"}))
	assert.Contains(t, out.String(), "librarian 1.0.0")
	assert.Contains(t, out.String(), "abc123")
}

func TestInvalidFormat(t *testing.T) {
	app, _ := newTestApp(t, fixture())
	assert.Error(t, app.Execute(context.Background(), []string{"history", "--format", "xml"}))
}

func TestDiffAfterApply(t *testing.T) {
	app, out := newTestApp(t, fixture())
	ctx := context.Background()
	before := filepath.Join(t.TempDir(), "before.yaml")
	require.NoError(t, app.Execute(ctx, []string{"export", before}))
	require.NoError(t, app.Execute(ctx, []string{"triage", "--apply", "--no-save", "--no-history"}))

	out.Reset()
	require.NoError(t, app.Execute(ctx, []string{"diff", before}))

	var cs struct {
		Summary struct {
			Added int `json:"added"`
			Moved int `json:"moved"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &cs))
	assert.Equal(t, 1, cs.Summary.Added)
	assert.Equal(t, 2, cs.Summary.Moved)
}

func TestStagesLogThroughAppLogger(t *testing.T) {
	tl := logging.NewTestLogger(t)
	var out bytes.Buffer
	app, err := New("1.0.0", "", "", "",
		WithConfig(testConfig(t)),
		WithLogger(tl.Logger),
		WithRepository(fixture()),
		WithOutput(&out),
	)
	require.NoError(t, err)
	defer app.Shutdown(context.Background())

	require.NoError(t, app.Execute(context.Background(), []string{"organize", "--no-history", "--no-save"}))
	assert.True(t, tl.Contains("stage finished"))
	assert.True(t, tl.Contains(`"stage":"triage"`))
	assert.True(t, tl.Contains("dry-run: no changes will be written"))
}
