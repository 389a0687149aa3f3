package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/raysh454/lumen/internal/fsutil"
	"github.com/raysh454/lumen/internal/logging"
)

// Config controls the chromedp browser session.
type Config struct {
	Headless bool   `mapstructure:"headless" yaml:"headless"`
	ExecPath string `mapstructure:"exec_path" yaml:"exec_path,omitempty"`
	// NoSandbox is needed when Chrome runs as root inside containers.
	NoSandbox      bool   `mapstructure:"no_sandbox" yaml:"no_sandbox"`
	UserAgent      string `mapstructure:"user_agent" yaml:"user_agent,omitempty"`
	ViewportWidth  int    `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight int    `mapstructure:"viewport_height" yaml:"viewport_height"`

	// IdleAfter is how long the network must stay quiet for WaitNetworkIdle.
	IdleAfter time.Duration `mapstructure:"idle_after" yaml:"idle_after"`
	// OpTimeout bounds evaluate, locate, parent and screenshot calls.
	OpTimeout time.Duration `mapstructure:"op_timeout" yaml:"op_timeout"`
}

// DefaultConfig mirrors the viewport and waits the audit was tuned with.
func DefaultConfig() Config {
	return Config{
		Headless:       true,
		ViewportWidth:  1280,
		ViewportHeight: 720,
		IdleAfter:      500 * time.Millisecond,
		OpTimeout:      15 * time.Second,
	}
}

// ChromeDriver implements Driver on a single chromedp tab. It is not safe
// for concurrent use; the audit drives it from one goroutine.
type ChromeDriver struct {
	cfg    Config
	logger logging.Logger

	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
}

var _ Driver = (*ChromeDriver)(nil)

// NewChromeDriver launches Chrome and opens one tab. It fails if the
// browser cannot be started.
func NewChromeDriver(cfg Config, logger logging.Logger) (*ChromeDriver, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	def := DefaultConfig()
	if cfg.ViewportWidth <= 0 || cfg.ViewportHeight <= 0 {
		cfg.ViewportWidth, cfg.ViewportHeight = def.ViewportWidth, def.ViewportHeight
	}
	if cfg.IdleAfter <= 0 {
		cfg.IdleAfter = def.IdleAfter
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = def.OpTimeout
	}

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if !cfg.Headless {
		// If headless is explicitly false, add option to show browser
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	opts = append(opts, chromedp.WindowSize(cfg.ViewportWidth, cfg.ViewportHeight))

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	// The first Run starts the browser.
	if err := chromedp.Run(tabCtx,
		chromedp.EmulateViewport(int64(cfg.ViewportWidth), int64(cfg.ViewportHeight)),
	); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("browser: start chrome: %w", err)
	}

	logger = logger.With(logging.Field{Key: "component", Value: "chromedp_driver"})
	logger.Debug("chrome started",
		logging.Field{Key: "headless", Value: cfg.Headless},
		logging.Field{Key: "viewport", Value: fmt.Sprintf("%dx%d", cfg.ViewportWidth, cfg.ViewportHeight)})

	return &ChromeDriver{
		cfg:         cfg,
		logger:      logger,
		allocCancel: allocCancel,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
	}, nil
}

// opContext derives a bounded context from the tab that is also cancelled
// when the caller's ctx is.
func (d *ChromeDriver) opContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	opCtx, cancel := context.WithTimeout(d.tabCtx, timeout)
	stop := context.AfterFunc(ctx, cancel)
	return opCtx, func() {
		stop()
		cancel()
	}
}

func (d *ChromeDriver) Navigate(ctx context.Context, url string, policy WaitPolicy, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	navCtx, cancel := d.opContext(ctx, timeout)
	defer cancel()

	var idle *idleWatcher
	if policy == WaitNetworkIdle {
		idle = watchNetworkIdle(navCtx, d.cfg.IdleAfter)
	}

	if err := chromedp.Run(navCtx, network.Enable(), chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNavigation, url, err)
	}

	if idle != nil {
		idle.arm()
		select {
		case <-idle.done():
		case <-navCtx.Done():
			return fmt.Errorf("%w: %s: waiting for network idle: %w", ErrNavigation, url, navCtx.Err())
		}
	}
	return nil
}

// idleWatcher signals once no request has been in flight for idleAfter.
type idleWatcher struct {
	mu        sync.Mutex
	inflight  map[network.RequestID]struct{}
	timer     *time.Timer
	idleAfter time.Duration
	armed     bool
	once      sync.Once
	idle      chan struct{}
}

func watchNetworkIdle(ctx context.Context, idleAfter time.Duration) *idleWatcher {
	w := &idleWatcher{
		inflight:  make(map[network.RequestID]struct{}),
		idleAfter: idleAfter,
		idle:      make(chan struct{}),
	}
	chromedp.ListenTarget(ctx, func(ev any) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			w.started(e.RequestID)
		case *network.EventLoadingFinished:
			w.finished(e.RequestID)
		case *network.EventLoadingFailed:
			w.finished(e.RequestID)
		}
	})
	return w
}

func (w *idleWatcher) started(id network.RequestID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.inflight[id] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *idleWatcher) finished(id network.RequestID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.inflight, id)
	w.resetLocked()
}

// arm starts idle detection; events before the load event only track
// in-flight requests.
func (w *idleWatcher) arm() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.armed = true
	w.resetLocked()
}

func (w *idleWatcher) resetLocked() {
	if !w.armed || len(w.inflight) > 0 {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.idleAfter, func() {
		w.mu.Lock()
		quiet := len(w.inflight) == 0
		w.mu.Unlock()
		if quiet {
			w.once.Do(func() { close(w.idle) })
		}
	})
}

func (w *idleWatcher) done() <-chan struct{} { return w.idle }

// Elements handed out by the driver live in a page-side array so a handle
// is just an index. A navigation wipes the array, which makes stale
// handles resolve to undefined.
const refRegistry = "window.__lumenRefs"

type refResult struct {
	Ref   int    `json:"ref"`
	Error string `json:"error,omitempty"`
}

const (
	refNone     = -1
	refDetached = -2
)

func (d *ChromeDriver) evalRaw(ctx context.Context, expr string, out any) error {
	opCtx, cancel := d.opContext(ctx, d.cfg.OpTimeout)
	defer cancel()
	return chromedp.Run(opCtx, chromedp.Evaluate(expr, out, awaitPromise))
}

func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}

func (d *ChromeDriver) LocateVisible(ctx context.Context, selector string) (*Element, error) {
	sel, err := json.Marshal(selector)
	if err != nil {
		return nil, fmt.Errorf("browser: encode selector: %w", err)
	}
	expr := fmt.Sprintf(`(() => {
  const reg = (%[1]s = %[1]s || []);
  let nodes;
  try { nodes = document.querySelectorAll(%[2]s); } catch (e) { return {ref: -1, error: String(e)}; }
  for (const el of nodes) {
    const cs = window.getComputedStyle(el);
    const rect = el.getBoundingClientRect();
    if (cs.display !== 'none' && cs.visibility !== 'hidden' && rect.width > 0 && rect.height > 0) {
      reg.push(el);
      return {ref: reg.length - 1};
    }
  }
  return {ref: -1};
})()`, refRegistry, sel)

	var res refResult
	if err := d.evalRaw(ctx, expr, &res); err != nil {
		return nil, fmt.Errorf("browser: locate %q: %w", selector, err)
	}
	if res.Error != "" {
		return nil, fmt.Errorf("browser: invalid selector %q: %s", selector, res.Error)
	}
	if res.Ref < 0 {
		return nil, nil
	}
	return &Element{Ref: res.Ref, Selector: selector}, nil
}

func (d *ChromeDriver) Parent(ctx context.Context, el *Element) (*Element, error) {
	if el == nil {
		return nil, ErrElementUnresolved
	}
	expr := fmt.Sprintf(`(() => {
  const reg = %[1]s || [];
  const el = reg[%[2]d];
  if (!el || !el.isConnected) return {ref: -2};
  const p = el.parentElement;
  if (!p) return {ref: -1};
  reg.push(p);
  return {ref: reg.length - 1};
})()`, refRegistry, el.Ref)

	var res refResult
	if err := d.evalRaw(ctx, expr, &res); err != nil {
		return nil, fmt.Errorf("browser: parent of %s: %w", el, err)
	}
	switch res.Ref {
	case refDetached:
		return nil, fmt.Errorf("%w: %s", ErrElementUnresolved, el)
	case refNone:
		return nil, nil
	}
	return &Element{Ref: res.Ref, Selector: el.Selector + " > parent"}, nil
}

type evalEnvelope struct {
	Unresolved bool            `json:"unresolved"`
	Value      json.RawMessage `json:"value"`
}

func (d *ChromeDriver) Evaluate(ctx context.Context, script string, el *Element, out any) error {
	var expr string
	if el == nil {
		expr = fmt.Sprintf(`(async () => ({value: await (%s)}))()`, script)
	} else {
		expr = fmt.Sprintf(`(async () => {
  const el = (%[1]s || [])[%[2]d];
  if (!el || !el.isConnected) return {unresolved: true};
  return {value: await (%[3]s)(el)};
})()`, refRegistry, el.Ref, script)
	}

	var env evalEnvelope
	if err := d.evalRaw(ctx, expr, &env); err != nil {
		return fmt.Errorf("browser: evaluate: %w", err)
	}
	if env.Unresolved {
		return fmt.Errorf("%w: %s", ErrElementUnresolved, el)
	}
	if out == nil || len(env.Value) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Value, out); err != nil {
		return fmt.Errorf("browser: decode evaluate result: %w", err)
	}
	return nil
}

func (d *ChromeDriver) Screenshot(ctx context.Context, path string, fullPage bool) error {
	opCtx, cancel := d.opContext(ctx, d.cfg.OpTimeout)
	defer cancel()

	var buf []byte
	var action chromedp.Action = chromedp.CaptureScreenshot(&buf)
	if fullPage {
		// Quality 100 makes chromedp encode PNG.
		action = chromedp.FullScreenshot(&buf, 100)
	}
	if err := chromedp.Run(opCtx, action); err != nil {
		return fmt.Errorf("browser: capture screenshot: %w", err)
	}
	if err := fsutil.AtomicWriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("browser: write screenshot %s: %w", path, err)
	}
	return nil
}

// Close shuts the browser down. It is safe to call more than once.
func (d *ChromeDriver) Close() error {
	if d == nil || d.tabCancel == nil {
		return nil
	}
	var err error
	if cerr := chromedp.Cancel(d.tabCtx); cerr != nil && !errors.Is(cerr, context.Canceled) {
		err = fmt.Errorf("browser: close: %w", cerr)
	}
	d.tabCancel()
	d.allocCancel()
	d.tabCancel = nil
	return err
}
