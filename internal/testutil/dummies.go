// Package testutil provides shared test doubles for use across package tests.
// All dummies implement the corresponding interfaces from the production code,
// allowing injection into components under test without a real browser.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/raysh454/lumen/internal/browser"
	"github.com/raysh454/lumen/internal/logging"
	"github.com/raysh454/lumen/internal/scanner"
)

// ─── Logger ────────────────────────────────────────────────────────────

// DummyLogger implements logging.Logger with in-memory recording.
type DummyLogger struct {
	mu     sync.Mutex
	Errors []string
	Infos  []string
	Debugs []string
	Warns  []string
}

func (l *DummyLogger) Debug(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Debugs = append(l.Debugs, msg)
}

func (l *DummyLogger) Info(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Infos = append(l.Infos, msg)
}

func (l *DummyLogger) Warn(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Warns = append(l.Warns, msg)
}

func (l *DummyLogger) Error(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, msg)
}

func (l *DummyLogger) With(_ ...logging.Field) logging.Logger { return l }

// WarnCount returns how many warnings were logged so far.
func (l *DummyLogger) WarnCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Warns)
}

// ─── Browser ───────────────────────────────────────────────────────────

// FakeNode is one element of a FakePage.
type FakeNode struct {
	ID       string
	ParentID string
	Style    browser.ComputedStyle
	Hidden   bool
	// Detached makes every read through a handle fail as unresolved.
	Detached bool
}

// FakePage is a static DOM: nodes plus a selector table listing matching
// node ids in document order.
type FakePage struct {
	Nodes     map[string]*FakeNode
	Selectors map[string][]string
	// InvalidSelectors makes LocateVisible fail for these selectors.
	InvalidSelectors map[string]bool
}

// NewFakePage returns a page whose root ("html") has a transparent
// background, like a real document.
func NewFakePage() *FakePage {
	p := &FakePage{
		Nodes:            map[string]*FakeNode{},
		Selectors:        map[string][]string{},
		InvalidSelectors: map[string]bool{},
	}
	p.Add("html", "", browser.ComputedStyle{BackgroundColor: "rgba(0, 0, 0, 0)"})
	return p
}

// Add inserts a node and returns the page for chaining.
func (p *FakePage) Add(id, parentID string, style browser.ComputedStyle) *FakePage {
	p.Nodes[id] = &FakeNode{ID: id, ParentID: parentID, Style: style}
	return p
}

// Match registers the nodes a selector matches.
func (p *FakePage) Match(selector string, ids ...string) *FakePage {
	p.Selectors[selector] = append(p.Selectors[selector], ids...)
	return p
}

// Text builds a typical text style.
func Text(color, bg, size, weight string) browser.ComputedStyle {
	return browser.ComputedStyle{Color: color, BackgroundColor: bg, FontSize: size, FontWeight: weight, Text: "sample text"}
}

// FakeDriver implements browser.Driver over FakePages keyed by URL.
type FakeDriver struct {
	mu sync.Mutex

	Pages         map[string]*FakePage
	NavigateErr   map[string]error
	NavigateDelay time.Duration
	ScreenshotErr error
	// EvalFunc handles scripts other than browser.ComputedStyleScript.
	EvalFunc func(script string, el *browser.Element, out any) error

	Navigations []string
	Screenshots []string
	Closed      bool

	current *FakePage
	refs    []string
}

var _ browser.Driver = (*FakeDriver)(nil)

func NewFakeDriver() *FakeDriver {
	return &FakeDriver{Pages: map[string]*FakePage{}, NavigateErr: map[string]error{}}
}

func (d *FakeDriver) Navigate(ctx context.Context, url string, _ browser.WaitPolicy, timeout time.Duration) error {
	if d.NavigateDelay > 0 {
		select {
		case <-time.After(d.NavigateDelay):
		case <-ctx.Done():
			return fmt.Errorf("%w: %s: %w", browser.ErrNavigation, url, ctx.Err())
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Navigations = append(d.Navigations, url)
	d.refs = nil
	if err := d.NavigateErr[url]; err != nil {
		d.current = nil
		return fmt.Errorf("%w: %s: %w", browser.ErrNavigation, url, err)
	}
	page, ok := d.Pages[url]
	if !ok {
		d.current = nil
		return fmt.Errorf("%w: %s: net::ERR_CONNECTION_REFUSED", browser.ErrNavigation, url)
	}
	d.current = page
	return nil
}

func (d *FakeDriver) handle(id, selector string) *browser.Element {
	d.refs = append(d.refs, id)
	return &browser.Element{Ref: len(d.refs) - 1, Selector: selector}
}

func (d *FakeDriver) node(el *browser.Element) (*FakeNode, error) {
	if el == nil || d.current == nil || el.Ref < 0 || el.Ref >= len(d.refs) {
		return nil, fmt.Errorf("%w: %s", browser.ErrElementUnresolved, el)
	}
	n, ok := d.current.Nodes[d.refs[el.Ref]]
	if !ok || n.Detached {
		return nil, fmt.Errorf("%w: %s", browser.ErrElementUnresolved, el)
	}
	return n, nil
}

func (d *FakeDriver) Evaluate(_ context.Context, script string, el *browser.Element, out any) error {
	d.mu.Lock()
	if script != browser.ComputedStyleScript {
		fn := d.EvalFunc
		d.mu.Unlock()
		if fn == nil {
			return fmt.Errorf("fake driver: unsupported script")
		}
		return fn(script, el, out)
	}
	defer d.mu.Unlock()

	n, err := d.node(el)
	if err != nil {
		return err
	}
	data, err := json.Marshal(n.Style)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (d *FakeDriver) LocateVisible(_ context.Context, selector string) (*browser.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil {
		return nil, fmt.Errorf("fake driver: no page loaded")
	}
	if d.current.InvalidSelectors[selector] {
		return nil, fmt.Errorf("fake driver: invalid selector %q", selector)
	}
	for _, id := range d.current.Selectors[selector] {
		if n := d.current.Nodes[id]; n != nil && !n.Hidden {
			return d.handle(id, selector), nil
		}
	}
	return nil, nil
}

func (d *FakeDriver) Parent(_ context.Context, el *browser.Element) (*browser.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.node(el)
	if err != nil {
		return nil, err
	}
	if n.ParentID == "" {
		return nil, nil
	}
	return d.handle(n.ParentID, el.Selector+" > parent"), nil
}

// Screenshot writes a tiny valid PNG so downstream image handling works.
func (d *FakeDriver) Screenshot(_ context.Context, path string, _ bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ScreenshotErr != nil {
		return d.ScreenshotErr
	}
	d.Screenshots = append(d.Screenshots, path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, TinyPNG(), 0o644)
}

func (d *FakeDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Closed = true
	return nil
}

// TinyPNG returns a 4x4 solid PNG.
func TinyPNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: 13, G: 69, B: 56, A: 255})
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

// ─── Scanner ───────────────────────────────────────────────────────────

// FakeScanner returns canned results. ByURL takes precedence over Result
// when the paired FakeDriver's last navigation matches.
type FakeScanner struct {
	mu     sync.Mutex
	Driver *FakeDriver
	Result *scanner.Result
	ByURL  map[string]*scanner.Result
	Err    error
	ErrFor map[string]error
	Calls  int
}

var _ scanner.Scanner = (*FakeScanner)(nil)

func (s *FakeScanner) Run(ctx context.Context) (*scanner.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls++
	url := ""
	if s.Driver != nil {
		s.Driver.mu.Lock()
		if n := len(s.Driver.Navigations); n > 0 {
			url = s.Driver.Navigations[n-1]
		}
		s.Driver.mu.Unlock()
	}
	if err := s.ErrFor[url]; err != nil {
		return nil, fmt.Errorf("%w: %w", scanner.ErrScanner, err)
	}
	if s.Err != nil {
		return nil, fmt.Errorf("%w: %w", scanner.ErrScanner, s.Err)
	}
	if r, ok := s.ByURL[url]; ok {
		return r, nil
	}
	if s.Result != nil {
		return s.Result, nil
	}
	return &scanner.Result{Engine: "fake"}, nil
}
