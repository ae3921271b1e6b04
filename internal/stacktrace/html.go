package stacktrace

import (
	"fmt"
	"html"
	"strings"

	"github.com/rohanthewiz/element"
)

// errorPage renders a message and its stack trace.
type errorPage struct {
	title   string
	message string
	lines   []string
	opts    Options
}

func (p errorPage) Render(b *element.Builder) any {
	b.Html().R(
		b.Head().R(
			b.Title().T(html.EscapeString(p.title)),
			b.Style().T(p.style()),
		),
		b.Body().R(
			b.H1().T(html.EscapeString(p.title)),
			b.DivClass("message").T(html.EscapeString(p.message)),
			b.DivClass("stack").R(
				p.renderLines(b),
			),
		),
	)
	return nil
}

func (p errorPage) renderLines(b *element.Builder) any {
	for _, line := range p.lines {
		class := "frame"
		if strings.HasPrefix(line, "\t") {
			class = "frame-location"
		}
		b.DivClass(class).T(html.EscapeString(strings.TrimSpace(line)))
	}
	return nil
}

func (p errorPage) style() string {
	return fmt.Sprintf(`
		body { font-family: %s; font-size: %s; margin: 0; padding: 20px; background: #fff; color: #222; }
		h1 { font-size: 1.4em; color: #b00020; }
		.message { white-space: pre-wrap; margin-bottom: 1em; font-weight: bold; }
		.frame { margin-top: 0.6em; }
		.frame-location { color: #777; padding-left: 2em; }
	`, p.opts.FontFamily, p.opts.FontSize)
}

func renderHTML(message, stack string, opts Options) string {
	lines := strings.Split(strings.TrimRight(stack, "\n"), "\n")

	b := element.NewBuilder()
	element.RenderComponents(b, errorPage{
		title:   opts.Title,
		message: message,
		lines:   lines,
		opts:    opts,
	})
	return "<!DOCTYPE html>" + b.String()
}
