package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/raysh454/lumen/internal/browser"
	"github.com/raysh454/lumen/internal/logging"
)

// DefaultAxeScriptURL is the axe-core build injected when no local copy is
// configured.
const DefaultAxeScriptURL = "https://cdnjs.cloudflare.com/ajax/libs/axe-core/4.10.2/axe.min.js"

// AxeConfig controls how axe-core is loaded and run.
type AxeConfig struct {
	// ScriptURL is loaded with a <script> tag when ScriptPath is empty.
	ScriptURL string `mapstructure:"script_url" yaml:"script_url"`
	// ScriptPath points at a local axe.min.js, evaluated inline. Use it
	// for offline runs or pages whose CSP blocks the CDN.
	ScriptPath string        `mapstructure:"script_path" yaml:"script_path,omitempty"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// NodeSample caps how many affected nodes are kept per violation.
	NodeSample int `mapstructure:"node_sample" yaml:"node_sample"`
}

func DefaultAxeConfig() AxeConfig {
	return AxeConfig{
		ScriptURL:  DefaultAxeScriptURL,
		Timeout:    30 * time.Second,
		NodeSample: 5,
	}
}

// Axe runs axe-core inside the page through a browser.Driver.
type Axe struct {
	cfg    AxeConfig
	driver browser.Driver
	logger logging.Logger

	inline string
}

var _ Scanner = (*Axe)(nil)

// NewAxe builds an axe-core scanner. When cfg.ScriptPath is set the file is
// read once here.
func NewAxe(cfg AxeConfig, driver browser.Driver, logger logging.Logger) (*Axe, error) {
	if driver == nil {
		return nil, fmt.Errorf("scanner: nil driver")
	}
	if logger == nil {
		logger = logging.Nop()
	}
	def := DefaultAxeConfig()
	if cfg.ScriptURL == "" {
		cfg.ScriptURL = def.ScriptURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.NodeSample <= 0 {
		cfg.NodeSample = def.NodeSample
	}

	a := &Axe{
		cfg:    cfg,
		driver: driver,
		logger: logger.With(logging.Field{Key: "component", Value: "axe_scanner"}),
	}
	if cfg.ScriptPath != "" {
		src, err := os.ReadFile(cfg.ScriptPath)
		if err != nil {
			return nil, fmt.Errorf("scanner: read axe script: %w", err)
		}
		a.inline = string(src)
	}
	return a, nil
}

type axeOutcome struct {
	Error      string `json:"error"`
	Violations []struct {
		ID        string `json:"id"`
		Impact    string `json:"impact"`
		NodeCount int    `json:"nodeCount"`
		Help      string `json:"help"`
		HelpURL   string `json:"helpUrl"`
		Nodes     []struct {
			Target         string `json:"target"`
			HTML           string `json:"html"`
			FailureSummary string `json:"failureSummary"`
		} `json:"nodes"`
	} `json:"violations"`
}

func (a *Axe) Run(ctx context.Context) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	loaded, err := a.inject(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: inject axe-core: %w", ErrScanner, err)
	}
	if !loaded {
		return nil, fmt.Errorf("%w: axe-core did not load", ErrScanner)
	}

	var out axeOutcome
	if err := a.driver.Evaluate(ctx, a.runScript(), nil, &out); err != nil {
		return nil, fmt.Errorf("%w: run axe-core: %w", ErrScanner, err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrScanner, out.Error)
	}

	res := &Result{Engine: "axe-core", Violations: make([]Violation, 0, len(out.Violations))}
	for _, v := range out.Violations {
		rv := Violation{
			ID:        v.ID,
			Impact:    v.Impact,
			NodeCount: v.NodeCount,
			Help:      v.Help,
			HelpURL:   v.HelpURL,
		}
		for _, n := range v.Nodes {
			rv.Nodes = append(rv.Nodes, Node{Target: n.Target, HTML: n.HTML, FailureSummary: n.FailureSummary})
		}
		res.Violations = append(res.Violations, rv)
	}
	a.logger.Debug("axe-core finished", logging.Field{Key: "violations", Value: len(res.Violations)})
	return res, nil
}

func (a *Axe) inject(ctx context.Context) (bool, error) {
	var script string
	if a.inline != "" {
		src, err := json.Marshal(a.inline)
		if err != nil {
			return false, err
		}
		script = fmt.Sprintf(`(() => {
  if (typeof axe === 'undefined') { (0, eval)(%s); }
  return typeof axe !== 'undefined';
})()`, src)
	} else {
		u, err := json.Marshal(a.cfg.ScriptURL)
		if err != nil {
			return false, err
		}
		script = fmt.Sprintf(`new Promise((resolve) => {
  if (typeof axe !== 'undefined') { resolve(true); return; }
  const s = document.createElement('script');
  s.src = %s;
  s.onload = () => resolve(typeof axe !== 'undefined');
  s.onerror = () => resolve(false);
  (document.head || document.documentElement).appendChild(s);
})`, u)
	}

	var loaded bool
	if err := a.driver.Evaluate(ctx, script, nil, &loaded); err != nil {
		return false, err
	}
	return loaded, nil
}

func (a *Axe) runScript() string {
	return fmt.Sprintf(`(async () => {
  if (typeof axe === 'undefined') return {error: 'axe-core is not loaded'};
  try {
    const r = await axe.run(document, {resultTypes: ['violations']});
    return {violations: r.violations.map((v) => ({
      id: v.id,
      impact: v.impact || 'unknown',
      nodeCount: v.nodes.length,
      help: v.help,
      helpUrl: v.helpUrl,
      nodes: v.nodes.slice(0, %d).map((n) => ({
        target: String((n.target || ['unknown'])[0]),
        html: (n.html || '').slice(0, 80),
        failureSummary: (n.failureSummary || '').split('\n').map((l) => l.trim()).filter(Boolean).slice(0, 3).join('\n'),
      })),
    }))};
  } catch (e) {
    return {error: (e && e.message) ? e.message : String(e)};
  }
})()`, a.cfg.NodeSample)
}
