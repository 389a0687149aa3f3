// Package config loads the audit configuration from a YAML or JSON file,
// LUMEN_* environment variables and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/raysh454/lumen/internal/audit"
	"github.com/raysh454/lumen/internal/browser"
	"github.com/raysh454/lumen/internal/fsutil"
	"github.com/raysh454/lumen/internal/logging"
	"github.com/raysh454/lumen/internal/metrics"
	"github.com/raysh454/lumen/internal/report"
	"github.com/raysh454/lumen/internal/scanner"
)

// EnvPrefix is prepended to every environment override, e.g.
// LUMEN_BROWSER_HEADLESS=false.
const EnvPrefix = "LUMEN"

var ErrInvalidConfig = errors.New("invalid configuration")

type NavigationConfig struct {
	WaitPolicy  string        `mapstructure:"wait_policy" yaml:"wait_policy"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	SettleDelay time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	FullPage    bool          `mapstructure:"full_page_screenshot" yaml:"full_page_screenshot"`
	Screenshots bool          `mapstructure:"screenshots" yaml:"screenshots"`
}

type ScannerConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	scanner.AxeConfig `mapstructure:",squash" yaml:",inline"`
}

type MetricsConfig struct {
	// Textfile writes <output_dir>/a11y_audit.prom after each run.
	Textfile bool `mapstructure:"textfile" yaml:"textfile"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// Config is the full run configuration.
type Config struct {
	// BaseURL, when set, resolves job URLs that are plain paths.
	BaseURL   string `mapstructure:"base_url" yaml:"base_url,omitempty"`
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`
	// HistoryDB is the SQLite run archive; empty disables history.
	HistoryDB string `mapstructure:"history_db" yaml:"history_db"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`

	Browser    browser.Config         `mapstructure:"browser" yaml:"browser"`
	Navigation NavigationConfig       `mapstructure:"navigation" yaml:"navigation"`
	Scanner    ScannerConfig          `mapstructure:"scanner" yaml:"scanner"`
	Thumbnails report.ThumbnailConfig `mapstructure:"thumbnails" yaml:"thumbnails"`
	Metrics    MetricsConfig          `mapstructure:"metrics" yaml:"metrics"`
	Server     ServerConfig           `mapstructure:"server" yaml:"server"`

	// JobsFile is a separate YAML list of jobs appended after Jobs.
	JobsFile string      `mapstructure:"jobs_file" yaml:"jobs_file,omitempty"`
	Jobs     []audit.Job `mapstructure:"jobs" yaml:"jobs"`
}

// DefaultConfig returns a Config populated with the defaults the audit
// was tuned with. It has no jobs.
func DefaultConfig() *Config {
	nav := audit.DefaultOptions()
	return &Config{
		OutputDir: "audit-results",
		HistoryDB: filepath.Join(".lumen", "history.db"),
		LogLevel:  "info",
		Browser:   browser.DefaultConfig(),
		Navigation: NavigationConfig{
			WaitPolicy:  string(nav.WaitPolicy),
			Timeout:     nav.NavigationTimeout,
			SettleDelay: nav.SettleDelay,
			FullPage:    nav.FullPageScreenshot,
			Screenshots: true,
		},
		Scanner:    ScannerConfig{Enabled: true, AxeConfig: scanner.DefaultAxeConfig()},
		Thumbnails: report.DefaultThumbnailConfig(),
		Server:     ServerConfig{Addr: "127.0.0.1:8090"},
	}
}

// envKeys are the settings that can be overridden from the environment.
// Viper only applies AutomaticEnv to keys it already knows, so they are
// bound explicitly.
var envKeys = []string{
	"base_url",
	"output_dir",
	"history_db",
	"log_level",
	"browser.headless",
	"browser.exec_path",
	"browser.no_sandbox",
	"browser.user_agent",
	"browser.viewport_width",
	"browser.viewport_height",
	"navigation.wait_policy",
	"navigation.timeout",
	"navigation.settle_delay",
	"navigation.screenshots",
	"scanner.enabled",
	"scanner.script_url",
	"scanner.script_path",
	"scanner.timeout",
	"metrics.textfile",
	"server.addr",
}

// Load reads configPath (if non-empty), applies .env and LUMEN_*
// overrides on top of DefaultConfig, and validates the result.
func Load(configPath string) (*Config, error) {
	// A missing .env is the normal case.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, k := range envKeys {
		if err := v.BindEnv(k); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", k, err)
		}
	}

	cfg := DefaultConfig()
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.JobsFile != "" {
		path := cfg.JobsFile
		if !filepath.IsAbs(path) && configPath != "" {
			path = filepath.Join(filepath.Dir(configPath), path)
		}
		jobs, err := LoadJobs(path)
		if err != nil {
			return nil, err
		}
		cfg.Jobs = append(cfg.Jobs, jobs...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadJobs parses a YAML list of jobs.
func LoadJobs(path string) ([]audit.Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read jobs file: %w", err)
	}
	var jobs []audit.Job
	if err := yaml.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("parse jobs file %s: %w", path, err)
	}
	return jobs, nil
}

// Validate checks the values the run cannot recover from. It does not
// require jobs; commands that need them check that themselves.
func (c *Config) Validate() error {
	var problems []string

	if _, err := browser.ParseWaitPolicy(c.Navigation.WaitPolicy); err != nil {
		problems = append(problems, fmt.Sprintf("navigation.wait_policy %q must be load or networkidle", c.Navigation.WaitPolicy))
	}
	if c.Navigation.Timeout < 0 || c.Navigation.SettleDelay < 0 || c.Scanner.Timeout < 0 {
		problems = append(problems, "timeouts must not be negative")
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		problems = append(problems, "output_dir is required")
	}
	if c.BaseURL != "" {
		if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			problems = append(problems, fmt.Sprintf("base_url %q must be an absolute URL", c.BaseURL))
		}
	}

	seen := map[string]string{}
	for i, j := range c.Jobs {
		name := strings.TrimSpace(j.Name)
		if name == "" {
			problems = append(problems, fmt.Sprintf("jobs[%d]: name is required", i))
			continue
		}
		if strings.TrimSpace(j.URL) == "" {
			problems = append(problems, fmt.Sprintf("jobs[%d] %q: url is required", i, name))
		} else if _, err := c.resolveURL(j.URL); err != nil {
			problems = append(problems, fmt.Sprintf("jobs[%d] %q: %v", i, name, err))
		}

		// Page files are named by slug; two names sharing one would
		// overwrite each other, and "report" would clobber report.json.
		slug := fsutil.Slug(name)
		if prev, ok := seen[slug]; ok {
			problems = append(problems, fmt.Sprintf("jobs[%d] %q: duplicate page name (collides with %q)", i, name, prev))
		}
		seen[slug] = name
		if slug == strings.TrimSuffix(report.ReportFile, ".json") {
			problems = append(problems, fmt.Sprintf("jobs[%d] %q: page name is reserved", i, name))
		}

		for k, s := range j.Selectors {
			if strings.TrimSpace(s.Selector) == "" {
				problems = append(problems, fmt.Sprintf("jobs[%d] %q: selectors[%d] is empty", i, name, k))
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) resolveURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("bad url %q: %w", raw, err)
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	if c.BaseURL == "" {
		return "", fmt.Errorf("url %q is relative and base_url is not set", raw)
	}
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", fmt.Errorf("bad base_url: %w", err)
	}
	return base.ResolveReference(u).String(), nil
}

// ResolvedJobs returns the jobs with absolute URLs, in config order.
func (c *Config) ResolvedJobs() ([]audit.Job, error) {
	out := make([]audit.Job, 0, len(c.Jobs))
	for _, j := range c.Jobs {
		u, err := c.resolveURL(j.URL)
		if err != nil {
			return nil, fmt.Errorf("%w: job %q: %w", ErrInvalidConfig, j.Name, err)
		}
		j.Name = strings.TrimSpace(j.Name)
		j.URL = u
		out = append(out, j)
	}
	return out, nil
}

// AuditOptions maps the navigation settings onto the orchestrator.
func (c *Config) AuditOptions() audit.Options {
	policy, _ := browser.ParseWaitPolicy(c.Navigation.WaitPolicy)
	opts := audit.Options{
		WaitPolicy:         policy,
		NavigationTimeout:  c.Navigation.Timeout,
		SettleDelay:        c.Navigation.SettleDelay,
		FullPageScreenshot: c.Navigation.FullPage,
	}
	if c.Navigation.Screenshots {
		opts.ArtifactDir = c.OutputDir
	}
	return opts
}

func (c *Config) Level() logging.Level { return logging.ParseLevel(c.LogLevel) }

// MetricsTextfile is the textfile path, or "" when disabled.
func (c *Config) MetricsTextfile() string {
	if !c.Metrics.Textfile {
		return ""
	}
	return filepath.Join(c.OutputDir, metrics.TextfileName)
}

// Template is the sample configuration written by `lumen init`.
func Template() *Config {
	cfg := DefaultConfig()
	cfg.BaseURL = "http://localhost:9999"
	cfg.Jobs = []audit.Job{
		{
			Name: "home",
			URL:  "/",
			Selectors: []audit.Selector{
				{Selector: "h1", Description: "Main heading"},
				{Selector: "p", Description: "Body text"},
			},
		},
		{
			Name: "admin-login",
			URL:  "/admin/login",
			Selectors: []audit.Selector{
				{Selector: "button", Description: "Primary button"},
				{Selector: ".guest-name", Description: "Guest name in dialog"},
			},
		},
	}
	return cfg
}

// Write serializes cfg as YAML to path, refusing to overwrite unless force.
func Write(cfg *Config, path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return fsutil.AtomicWriteFile(path, data, 0o644)
}
