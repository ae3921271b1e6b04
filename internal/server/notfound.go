package server

import (
	"html"

	"github.com/rohanthewiz/element"
)

type notFoundPage struct {
	url  string
	home string
}

func (p notFoundPage) Render(b *element.Builder) any {
	b.Html().R(
		b.Head().R(
			b.Title().T("Not Found"),
			b.Style().T(`
				body { font-family: sans-serif; margin: 0; padding: 40px; color: #222; }
				h1 { font-size: 1.6em; }
				.url { font-family: monospace; background: #f4f4f4; padding: 4px 8px; }
			`),
		),
		b.Body().R(
			b.H1().T("404 Not Found"),
			b.P().T("No route matches URL"),
			b.DivClass("url").T(html.EscapeString(p.url)),
			b.P().R(
				b.A("href", html.EscapeString(p.home)).T("Back to home"),
			),
		),
	)
	return nil
}

func renderNotFound(url, home string) string {
	b := element.NewBuilder()
	element.RenderComponents(b, notFoundPage{url: url, home: home})
	return "<!DOCTYPE html>" + b.String()
}
