package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/lumen/internal/audit"
	"github.com/raysh454/lumen/internal/browser"
	"github.com/raysh454/lumen/internal/config"
)

const sampleYAML = `
base_url: http://localhost:8080
output_dir: out
navigation:
  wait_policy: load
  timeout: 10s
  settle_delay: 250ms
scanner:
  enabled: false
  timeout: 5s
browser:
  viewport_width: 1024
jobs:
  - name: home
    url: /
    selectors:
      - selector: h1
        description: Main heading
  - name: admin-login
    url: http://other.test/admin/login
    selectors:
      - selector: .guest-name
        description: Guest name
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := writeFile(t, dir, "audit.yaml", sampleYAML)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "out", cfg.OutputDir)
	assert.Equal(t, "load", cfg.Navigation.WaitPolicy)
	assert.Equal(t, 10*time.Second, cfg.Navigation.Timeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Navigation.SettleDelay)
	assert.False(t, cfg.Scanner.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Scanner.Timeout)
	assert.NotEmpty(t, cfg.Scanner.ScriptURL, "defaults survive a partial section")
	assert.Equal(t, 1024, cfg.Browser.ViewportWidth)
	assert.Equal(t, 720, cfg.Browser.ViewportHeight)
	assert.True(t, cfg.Browser.Headless)

	jobs, err := cfg.ResolvedJobs()
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "http://localhost:8080/", jobs[0].URL)
	assert.Equal(t, "http://other.test/admin/login", jobs[1].URL)
	assert.Equal(t, []audit.Selector{{Selector: ".guest-name", Description: "Guest name"}}, jobs[1].Selectors)

	opts := cfg.AuditOptions()
	assert.Equal(t, browser.WaitLoad, opts.WaitPolicy)
	assert.Equal(t, "out", opts.ArtifactDir)
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := writeFile(t, dir, "audit.yaml", sampleYAML)
	t.Setenv("LUMEN_OUTPUT_DIR", "from-env")
	t.Setenv("LUMEN_BROWSER_HEADLESS", "false")
	t.Setenv("LUMEN_NAVIGATION_WAIT_POLICY", "networkidle")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.OutputDir)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "networkidle", cfg.Navigation.WaitPolicy)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, dir, ".env", "LUMEN_SERVER_ADDR=0.0.0.0:9999\n")
	t.Cleanup(func() { os.Unsetenv("LUMEN_SERVER_ADDR") })

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9999", cfg.Server.Addr)
}

func TestLoad_JobsFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, dir, "jobs.yaml", "- name: about\n  url: http://app.test/about\n")
	path := writeFile(t, dir, "audit.yaml", "jobs_file: jobs.yaml\n")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Jobs, 1)
	assert.Equal(t, "about", cfg.Jobs[0].Name)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*config.Config)
		want string
	}{
		{"empty name", func(c *config.Config) { c.Jobs = []audit.Job{{URL: "http://a.test"}} }, "name is required"},
		{"empty url", func(c *config.Config) { c.Jobs = []audit.Job{{Name: "a"}} }, "url is required"},
		{"relative without base", func(c *config.Config) { c.Jobs = []audit.Job{{Name: "a", URL: "/a"}} }, "base_url is not set"},
		{"duplicate", func(c *config.Config) {
			c.Jobs = []audit.Job{{Name: "Admin Login", URL: "http://a.test"}, {Name: "admin-login", URL: "http://a.test/x"}}
		}, "duplicate page name"},
		{"reserved", func(c *config.Config) { c.Jobs = []audit.Job{{Name: "Report", URL: "http://a.test"}} }, "reserved"},
		{"wait policy", func(c *config.Config) { c.Navigation.WaitPolicy = "domcontentloaded" }, "wait_policy"},
		{"empty selector", func(c *config.Config) {
			c.Jobs = []audit.Job{{Name: "a", URL: "http://a.test", Selectors: []audit.Selector{{Selector: " "}}}}
		}, "selectors[0] is empty"},
		{"bad base", func(c *config.Config) { c.BaseURL = "localhost" }, "base_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.mod(cfg)
			err := cfg.Validate()
			require.ErrorIs(t, err, config.ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	assert.NoError(t, config.DefaultConfig().Validate())
	assert.NoError(t, config.Template().Validate())
}

func TestWriteTemplateRoundTrip(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "audit.yaml")

	require.NoError(t, config.Write(config.Template(), path, false))
	err := config.Write(config.Template(), path, false)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "already exists"))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.Template().Jobs, cfg.Jobs)
	assert.Equal(t, config.DefaultConfig().Navigation, cfg.Navigation)
	assert.Equal(t, config.DefaultConfig().Scanner, cfg.Scanner)
}

func TestMetricsTextfile(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.Empty(t, cfg.MetricsTextfile())
	cfg.Metrics.Textfile = true
	assert.Equal(t, filepath.Join("audit-results", "a11y_audit.prom"), cfg.MetricsTextfile())
}
