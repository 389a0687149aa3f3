// Package browser defines the capability contract the audit needs from a
// browser automation driver, and a chromedp-backed implementation.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrElementUnresolved is returned when a handle no longer maps to a
	// live element (detached, or the page navigated away).
	ErrElementUnresolved = errors.New("element unresolved")

	// ErrNavigation wraps every navigation failure, including timeouts.
	ErrNavigation = errors.New("navigation failed")
)

// WaitPolicy decides when a navigation counts as finished.
type WaitPolicy string

const (
	// WaitLoad waits for the load event.
	WaitLoad WaitPolicy = "load"
	// WaitNetworkIdle waits for the load event and then for the network to
	// stay quiet for the driver's idle window.
	WaitNetworkIdle WaitPolicy = "networkidle"
)

// ParseWaitPolicy accepts "load" and "networkidle" (case-insensitive).
// An empty string means WaitNetworkIdle.
func ParseWaitPolicy(s string) (WaitPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(WaitNetworkIdle), "network-idle":
		return WaitNetworkIdle, nil
	case string(WaitLoad):
		return WaitLoad, nil
	default:
		return "", fmt.Errorf("browser: unknown wait policy %q", s)
	}
}

// Element is an opaque handle to a DOM element on the current page.
type Element struct {
	Ref      int
	Selector string
}

func (e *Element) String() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("e%d(%s)", e.Ref, e.Selector)
}

// Driver is what the audit consumes from browser automation.
type Driver interface {
	// Navigate loads url and returns once policy is satisfied or timeout
	// elapses. Failures wrap ErrNavigation.
	Navigate(ctx context.Context, url string, policy WaitPolicy, timeout time.Duration) error

	// Evaluate runs script and decodes its JSON result into out. When el
	// is non-nil, script must be a function expression; it is called with
	// the element as its only argument. Promises are awaited.
	Evaluate(ctx context.Context, script string, el *Element, out any) error

	// LocateVisible returns the first element matching selector that is
	// rendered and visible, or nil when there is none.
	LocateVisible(ctx context.Context, selector string) (*Element, error)

	// Parent returns el's parent element, or nil at the document root.
	Parent(ctx context.Context, el *Element) (*Element, error)

	// Screenshot writes a PNG of the current page to path.
	Screenshot(ctx context.Context, path string, fullPage bool) error

	Close() error
}
