package browser

import (
	"context"
	"fmt"
)

// ComputedStyle is the subset of getComputedStyle the contrast audit reads,
// as raw CSS strings.
type ComputedStyle struct {
	Color           string `json:"color"`
	BackgroundColor string `json:"backgroundColor"`
	FontSize        string `json:"fontSize"`
	FontWeight      string `json:"fontWeight"`
	Text            string `json:"text"`
}

// ComputedStyleScript is evaluated against an element to read its style.
const ComputedStyleScript = `(el) => {
  const cs = window.getComputedStyle(el);
  return {
    color: cs.color,
    backgroundColor: cs.backgroundColor,
    fontSize: cs.fontSize,
    fontWeight: cs.fontWeight,
    text: (el.innerText || el.textContent || '').trim().substring(0, 100),
  };
}`

// ReadComputedStyle evaluates ComputedStyleScript on el.
func ReadComputedStyle(ctx context.Context, d Driver, el *Element) (ComputedStyle, error) {
	if el == nil {
		return ComputedStyle{}, ErrElementUnresolved
	}
	var cs ComputedStyle
	if err := d.Evaluate(ctx, ComputedStyleScript, el, &cs); err != nil {
		return ComputedStyle{}, fmt.Errorf("read computed style of %s: %w", el, err)
	}
	return cs, nil
}
