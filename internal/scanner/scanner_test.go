package scanner_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/lumen/internal/browser"
	"github.com/raysh454/lumen/internal/scanner"
	"github.com/raysh454/lumen/internal/testutil"
)

func TestContrastViolations_FiltersAndKeepsOrder(t *testing.T) {
	vs := []scanner.Violation{
		{ID: "image-alt"},
		{ID: "color-contrast", NodeCount: 3},
		{ID: "label"},
		{ID: "color-contrast-enhanced"},
	}
	got := scanner.ContrastViolations(vs)
	require.Len(t, got, 2)
	assert.Equal(t, "color-contrast", got[0].ID)
	assert.Equal(t, "color-contrast-enhanced", got[1].ID)
	assert.NotNil(t, scanner.ContrastViolations(nil))
}

// axeDriver answers the two scripts the Axe scanner evaluates.
func axeDriver(t *testing.T, loaded bool, outcome string) (*testutil.FakeDriver, *[]string) {
	t.Helper()
	d := testutil.NewFakeDriver()
	var scripts []string
	d.EvalFunc = func(script string, el *browser.Element, out any) error {
		scripts = append(scripts, script)
		if el != nil {
			t.Fatalf("axe scripts run on the document, got element %v", el)
		}
		if strings.Contains(script, "axe.run") {
			return json.Unmarshal([]byte(outcome), out)
		}
		return json.Unmarshal([]byte(map[bool]string{true: "true", false: "false"}[loaded]), out)
	}
	return d, &scripts
}

func TestAxe_MapsViolations(t *testing.T) {
	d, scripts := axeDriver(t, true, `{"violations":[
		{"id":"color-contrast","impact":"serious","nodeCount":2,"help":"Elements must meet minimum color contrast ratio thresholds",
		 "helpUrl":"https://dequeuniversity.com/rules/axe/4.10/color-contrast",
		 "nodes":[{"target":".dialog p","html":"<p class=\"x\">Guest</p>","failureSummary":"Fix any of the following:\nElement has insufficient color contrast of 1.49"}]},
		{"id":"image-alt","impact":"critical","nodeCount":1,"help":"Images must have alternate text","nodes":[]}
	]}`)

	a, err := scanner.NewAxe(scanner.AxeConfig{}, d, &testutil.DummyLogger{})
	require.NoError(t, err)

	res, err := a.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Violations, 2)
	assert.Equal(t, "axe-core", res.Engine)

	cc := res.Violations[0]
	assert.Equal(t, "color-contrast", cc.ID)
	assert.Equal(t, "serious", cc.Impact)
	assert.Equal(t, 2, cc.NodeCount)
	require.Len(t, cc.Nodes, 1)
	assert.Equal(t, ".dialog p", cc.Nodes[0].Target)
	assert.Contains(t, cc.Nodes[0].FailureSummary, "insufficient color contrast")

	require.Len(t, *scripts, 2)
	assert.Contains(t, (*scripts)[0], scanner.DefaultAxeScriptURL)
}

func TestAxe_ErrorPayloadIsScannerError(t *testing.T) {
	d, _ := axeDriver(t, true, `{"error":"axe.run is not a function"}`)
	a, err := scanner.NewAxe(scanner.DefaultAxeConfig(), d, nil)
	require.NoError(t, err)

	_, err = a.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, scanner.ErrScanner))
	assert.Contains(t, err.Error(), "axe.run is not a function")
}

func TestAxe_NotLoaded(t *testing.T) {
	d, scripts := axeDriver(t, false, `{}`)
	a, err := scanner.NewAxe(scanner.DefaultAxeConfig(), d, nil)
	require.NoError(t, err)

	_, err = a.Run(context.Background())
	assert.ErrorIs(t, err, scanner.ErrScanner)
	assert.Len(t, *scripts, 1, "run must not be attempted when injection failed")
}

func TestAxe_InlineScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "axe.min.js")
	require.NoError(t, os.WriteFile(path, []byte("window.axe = {run: async () => ({violations: []})};"), 0o644))

	d, scripts := axeDriver(t, true, `{"violations":[]}`)
	a, err := scanner.NewAxe(scanner.AxeConfig{ScriptPath: path}, d, nil)
	require.NoError(t, err)

	res, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Violations)
	assert.Contains(t, (*scripts)[0], "eval")
	assert.NotContains(t, (*scripts)[0], scanner.DefaultAxeScriptURL)
}

func TestNewAxe_Validation(t *testing.T) {
	_, err := scanner.NewAxe(scanner.DefaultAxeConfig(), nil, nil)
	assert.Error(t, err)

	_, err = scanner.NewAxe(scanner.AxeConfig{ScriptPath: "/does/not/exist.js"}, testutil.NewFakeDriver(), nil)
	assert.Error(t, err)
}
