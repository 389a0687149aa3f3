package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/lumen/internal/audit"
	"github.com/raysh454/lumen/internal/cli"
	"github.com/raysh454/lumen/internal/config"
	"github.com/raysh454/lumen/internal/contrast"
	"github.com/raysh454/lumen/internal/history"
	"github.com/raysh454/lumen/internal/report"
)

func execute(args ...string) (code int, stdout, stderr string) {
	var out, errOut bytes.Buffer
	code = cli.Execute(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := cli.NewRootCommand()
	for _, name := range []string{"run", "check", "history", "serve", "init"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}

	run, _, _ := root.Find([]string{"run"})
	for _, flag := range []string{"config", "out", "headless", "no-progress", "fail-on-issues", "json"} {
		assert.NotNil(t, run.Flags().Lookup(flag), flag)
	}
}

func TestCheck_FailingPair(t *testing.T) {
	code, out, _ := execute("check", "#959595", "#ffffff")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "Contrast: 3.00:1 (needs 4.5:1 for normal text)")
	assert.Contains(t, out, "WCAG AA: FAIL")
}

func TestCheck_LargeTextPasses(t *testing.T) {
	code, out, _ := execute("check", "#767676", "white", "--size", "24px")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "needs 3.0:1 for large text")
	assert.Contains(t, out, "WCAG AA: PASS")
}

func TestCheck_StrictExitCode(t *testing.T) {
	code, _, _ := execute("check", "rgb(6, 37, 28)", "rgb(13, 69, 56)", "--strict")
	assert.Equal(t, 2, code)

	code, _, _ = execute("check", "black", "white", "--strict")
	assert.Equal(t, 0, code)
}

func TestCheck_JSON(t *testing.T) {
	code, out, _ := execute("check", "black", "white", "--json")
	require.Equal(t, 0, code)

	var c contrast.Check
	require.NoError(t, json.Unmarshal([]byte(out), &c))
	assert.InDelta(t, 21.0, c.Ratio, 0.001)
	assert.True(t, c.Passes)
}

func TestCheck_TransparentColorRejected(t *testing.T) {
	code, _, stderr := execute("check", "transparent", "white")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "cannot read colors")
}

func TestInit_WritesLoadableConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.yaml")

	code, out, stderr := execute("init", "-c", path)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Jobs, 2)

	code, _, stderr = execute("init", "-c", path)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "already exists")

	code, _, _ = execute("init", "-c", path, "--force")
	assert.Equal(t, 0, code)
}

func TestRun_MissingConfig(t *testing.T) {
	code, _, stderr := execute("run", "-c", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "failed to read config file")
}

func seedHistory(t *testing.T) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "history.db")
	store, err := history.Open(db, nil)
	require.NoError(t, err)
	defer store.Close()

	t0 := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	for i, passes := range []bool{false, true} {
		check := contrast.Check{Selector: ".guest-name", Foreground: contrast.RGB(6, 37, 28), Background: contrast.RGB(13, 69, 56), Ratio: 1.49, Required: 4.5, Passes: passes}
		rep := report.Aggregate([]string{"run-1", "run-2"}[i], t0.Add(time.Duration(i)*time.Hour), t0.Add(time.Duration(i)*time.Hour+time.Minute), []audit.PageResult{
			{Name: "admin login", URL: "http://app.test/admin/login", Status: audit.PageAudited, Checks: []contrast.Check{check}},
		})
		require.NoError(t, store.SaveReport(context.Background(), rep))
	}
	return db
}

func TestHistory_List(t *testing.T) {
	db := seedHistory(t)

	code, out, stderr := execute("history", "list", "--db", db)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "run-2")
	assert.Less(t, bytes.Index([]byte(out), []byte("run-2")), bytes.Index([]byte(out), []byte("run-1")))

	code, out, _ = execute("history", "list", "--db", db, "--json", "--limit", "1")
	require.Equal(t, 0, code)
	var runs []history.RunSummary
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "run-2", runs[0].ID)
}

func TestHistory_ShowAndDiff(t *testing.T) {
	db := seedHistory(t)

	code, out, _ := execute("history", "show", "latest", "--db", db)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Passing WCAG AA: 1")

	code, out, _ = execute("history", "diff", "run-1", "run-2", "--db", db)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "--- run-1")
	assert.Contains(t, out, "+Passing WCAG AA: 1")

	code, out, _ = execute("history", "diff", "run-2", "latest", "--db", db)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "No differences")

	code, _, stderr := execute("history", "show", "nope", "--db", db)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "not found")
}

func TestHistory_Page(t *testing.T) {
	db := seedHistory(t)

	code, out, _ := execute("history", "page", "admin login", "--db", db)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "0/1")
	assert.Contains(t, out, "1/0")
}

func TestHistory_Delete(t *testing.T) {
	db := seedHistory(t)

	code, out, stderr := execute("history", "delete", "run-1", "--db", db)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "Deleted run run-1")

	code, _, stderr = execute("history", "show", "run-1", "--db", db)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "not found")

	_, out, _ = execute("history", "list", "--db", db)
	assert.NotContains(t, out, "run-1")
	assert.Contains(t, out, "run-2")

	_, out, _ = execute("history", "page", "admin login", "--db", db)
	assert.NotContains(t, out, "run-1")

	code, out, _ = execute("history", "delete", "latest", "--db", db)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Deleted run run-2")

	code, _, stderr = execute("history", "delete", "run-1", "--db", db)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "not found")
}
