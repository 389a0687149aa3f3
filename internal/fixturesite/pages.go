package fixturesite

import "fmt"

// PageVersion is one rendition of a page.
type PageVersion struct {
	Title string
	Body  string
	Style string
}

// PageDefinition holds all versions of a single page.
type PageDefinition struct {
	Path        string
	Description string
	Versions    map[int]PageVersion
}

// MaxVersion is the highest version defined for the page.
func (p PageDefinition) MaxVersion() int {
	maxV := 1
	for v := range p.Versions {
		if v > maxV {
			maxV = v
		}
	}
	return maxV
}

// render falls back to the closest lower version when v is missing.
func (p PageDefinition) render(v int) string {
	pv, ok := p.Versions[v]
	for ; !ok && v >= 1; v-- {
		pv, ok = p.Versions[v]
	}
	return fmt.Sprintf(pageTemplate, pv.Title, pv.Style, pv.Body)
}

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <title>%s</title>
    <style>
        body { margin: 0; padding: 24px; background: #ffffff; color: #000000; font-family: sans-serif; font-size: 16px; }
%s
    </style>
</head>
<body>
%s
</body>
</html>`

// Pages returns every fixture page definition.
func Pages() []PageDefinition {
	return []PageDefinition{
		homePage(),
		adminLoginPage(),
		largeTextPage(),
		nestedPage(),
	}
}

// homePage: the body paragraph is #959595 on white, 2.99:1.
func homePage() PageDefinition {
	body := `    <h1>Campsite bookings</h1>
    <p class="lead">Reserve a pitch for the coming season.</p>
    <a class="cta" href="/admin/login">Staff login</a>`
	return PageDefinition{
		Path:        "/",
		Description: "Home page with low-contrast body text",
		Versions: map[int]PageVersion{
			1: {
				Title: "Home",
				Style: `        h1 { font-size: 32px; font-weight: 700; }
        .lead { color: #959595; }
        .cta { color: #0645ad; }`,
				Body: body,
			},
			2: {
				Title: "Home",
				Style: `        h1 { font-size: 32px; font-weight: 700; }
        .lead { color: #767676; }
        .cta { color: #0645ad; }`,
				Body: body,
			},
		},
	}
}

// adminLoginPage: dark green text on a dark green dialog, 1.49:1.
func adminLoginPage() PageDefinition {
	body := `    <h1>Admin login</h1>
    <form>
        <label for="user">User</label>
        <input id="user" name="user">
        <button type="submit" class="primary">Sign in</button>
    </form>
    <div class="dialog" role="dialog" aria-label="Current booking">
        <h2 class="dialog-title">Current booking</h2>
        <p class="guest-name">Alex Morgan</p>
        <p class="guest-dates">12 to 19 July</p>
    </div>`
	return PageDefinition{
		Path:        "/admin/login",
		Description: "Login page with a dark-on-dark booking dialog",
		Versions: map[int]PageVersion{
			1: {
				Title: "Admin login",
				Style: `        .primary { color: #ffffff; background: #1a5fb4; border: 0; padding: 8px 16px; }
        .dialog { background: rgb(13, 69, 56); padding: 16px; }
        .dialog-title { color: #ffffff; }
        .guest-name { color: rgb(6, 37, 28); }
        .guest-dates { color: rgb(6, 37, 28); }`,
				Body: body,
			},
			2: {
				Title: "Admin login",
				Style: `        .primary { color: #ffffff; background: #1a5fb4; border: 0; padding: 8px 16px; }
        .dialog { background: rgb(13, 69, 56); padding: 16px; }
        .dialog-title { color: #ffffff; }
        .guest-name { color: #ffffff; }
        .guest-dates { color: #e6f2ee; }`,
				Body: body,
			},
		},
	}
}

// largeTextPage: a 24px heading at 2.99:1 fails even the large-text bar,
// while a 24px heading at 3.4:1 passes it.
func largeTextPage() PageDefinition {
	return PageDefinition{
		Path:        "/large",
		Description: "Large text on either side of the 3:1 threshold",
		Versions: map[int]PageVersion{
			1: {
				Title: "Large text",
				Style: `        .below { font-size: 24px; color: #959595; }
        .above { font-size: 24px; color: #8a8a8a; }
        .bold-small { font-size: 19px; font-weight: 700; color: #8a8a8a; }`,
				Body: `    <h2 class="below">Just below three to one</h2>
    <h2 class="above">Just above three to one</h2>
    <p class="bold-small">Bold at nineteen pixels</p>`,
			},
		},
	}
}

// nestedPage: text with no background of its own over a colored section.
func nestedPage() PageDefinition {
	return PageDefinition{
		Path:        "/nested",
		Description: "Transparent text containers over a colored ancestor",
		Versions: map[int]PageVersion{
			1: {
				Title: "Nested",
				Style: `        .band { background: #1a1a2e; padding: 16px; }
        .band .muted { color: #4a4a6a; }
        .band .bright { color: #f0f0ff; }`,
				Body: `    <section class="band">
        <div><span class="muted">Muted caption</span></div>
        <div><span class="bright">Bright caption</span></div>
    </section>`,
			},
		},
	}
}
