// Package preview builds standalone HTML documents for the editor's
// responsive preview iframe. The preview reuses the storefront shell's
// stylesheets and constrains the body to the simulated viewport width, so
// what the merchant sees matches the real device rendering.
package preview

import (
	"fmt"
	"html/template"
	"strings"
	"sync"

	"golang.org/x/net/html"

	"github.com/lumaworks/slotline/slot"
)

// Builder assembles preview documents. Stylesheet collection from the shell
// runs once per Builder.
type Builder struct {
	shell string

	once        sync.Once
	stylesheets []string
	inline      []string
}

// NewBuilder creates a Builder for the given storefront shell HTML. An empty
// shell yields previews without stylesheets.
func NewBuilder(shellHTML string) *Builder {
	return &Builder{shell: shellHTML}
}

// Stylesheets returns the external stylesheet hrefs collected from the
// shell, in document order.
func (b *Builder) Stylesheets() []string {
	b.collect()
	return b.stylesheets
}

// collect walks the shell document once, gathering <link rel="stylesheet">
// hrefs and inline <style> contents. A shell that fails to parse is treated
// as empty; the preview still renders, unstyled.
func (b *Builder) collect() {
	b.once.Do(func() {
		if strings.TrimSpace(b.shell) == "" {
			return
		}
		doc, err := html.Parse(strings.NewReader(b.shell))
		if err != nil {
			return
		}
		var walk func(*html.Node)
		walk = func(n *html.Node) {
			if n.Type == html.ElementNode {
				switch n.Data {
				case "link":
					if isStylesheet(n) {
						if href := attr(n, "href"); href != "" {
							b.stylesheets = append(b.stylesheets, href)
						}
					}
				case "style":
					if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
						b.inline = append(b.inline, n.FirstChild.Data)
					}
				}
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
		}
		walk(doc)
	})
}

var docTmpl = template.Must(template.New("preview").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
{{range .Stylesheets}}<link rel="stylesheet" href="{{.}}">
{{end}}{{range .Inline}}<style>{{.}}</style>
{{end}}{{with .Width}}<style>body{max-width:{{.}}px;margin:0 auto;}</style>
{{end}}</head>
<body class="preview preview-{{.Viewport}}">
{{.Body}}
</body>
</html>
`))

// BuildDocument wraps rendered page HTML in a full document constrained to
// the viewport's width. Desktop previews are unconstrained.
func (b *Builder) BuildDocument(title string, body template.HTML, vp slot.Viewport) (string, error) {
	b.collect()
	var sb strings.Builder
	err := docTmpl.Execute(&sb, struct {
		Title       string
		Stylesheets []string
		Inline      []template.CSS
		Width       int
		Viewport    slot.Viewport
		Body        template.HTML
	}{
		Title:       title,
		Stylesheets: b.stylesheets,
		Inline:      asCSS(b.inline),
		Width:       vp.Width(),
		Viewport:    vp,
		Body:        body,
	})
	if err != nil {
		return "", fmt.Errorf("preview: build document: %w", err)
	}
	return sb.String(), nil
}

func asCSS(in []string) []template.CSS {
	out := make([]template.CSS, len(in))
	for i, s := range in {
		out[i] = template.CSS(s)
	}
	return out
}

func isStylesheet(n *html.Node) bool {
	return strings.EqualFold(attr(n, "rel"), "stylesheet")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
