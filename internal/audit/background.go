package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/raysh454/lumen/internal/browser"
	"github.com/raysh454/lumen/internal/contrast"
)

// CanvasColor is assumed behind an element when it and all its ancestors
// paint no background.
var CanvasColor = contrast.White

// DefaultMaxAncestorDepth bounds the ancestor walk.
const DefaultMaxAncestorDepth = 256

// BackgroundResolver finds the opaque background that sits behind an
// element's text by walking up its ancestors.
type BackgroundResolver struct {
	driver   browser.Driver
	maxDepth int
}

func NewBackgroundResolver(d browser.Driver) *BackgroundResolver {
	return &BackgroundResolver{driver: d, maxDepth: DefaultMaxAncestorDepth}
}

// Resolve returns the first non-transparent background among el and its
// ancestors, or CanvasColor when there is none. It returns an error
// wrapping browser.ErrElementUnresolved when el itself cannot be read.
func (r *BackgroundResolver) Resolve(ctx context.Context, el *browser.Element) (contrast.Color, error) {
	if el == nil {
		return contrast.Color{}, browser.ErrElementUnresolved
	}
	cs, err := browser.ReadComputedStyle(ctx, r.driver, el)
	if err != nil {
		return contrast.Color{}, asUnresolved(err)
	}
	return r.resolveFrom(ctx, el, contrast.ParseColor(cs.BackgroundColor))
}

// resolveFrom continues the walk when the element's own background
// has already been read.
func (r *BackgroundResolver) resolveFrom(ctx context.Context, el *browser.Element, own contrast.Color) (contrast.Color, error) {
	if !own.Transparent {
		return own, nil
	}

	cur := el
	for depth := 0; depth < r.maxDepth; depth++ {
		parent, err := r.driver.Parent(ctx, cur)
		if err != nil {
			return contrast.Color{}, asUnresolved(err)
		}
		if parent == nil {
			return CanvasColor, nil
		}
		cs, err := browser.ReadComputedStyle(ctx, r.driver, parent)
		if err != nil {
			return contrast.Color{}, asUnresolved(err)
		}
		if bg := contrast.ParseColor(cs.BackgroundColor); !bg.Transparent {
			return bg, nil
		}
		cur = parent
	}
	return CanvasColor, nil
}

func asUnresolved(err error) error {
	if errors.Is(err, browser.ErrElementUnresolved) {
		return err
	}
	return fmt.Errorf("%w: %w", browser.ErrElementUnresolved, err)
}
