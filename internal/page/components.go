package page

import (
	"bytes"
	"html/template"

	"github.com/Priya8975/alert-notifications/internal/domain"
)

// LayoutFunc wraps page content in the surrounding document.
type LayoutFunc func(title string, content template.HTML) template.HTML

// BreadcrumbRenderer renders a breadcrumb trail.
type BreadcrumbRenderer func(crumbs []domain.Breadcrumb) template.HTML

// Components are the child renderers a page is composed with.
type Components struct {
	Layout          LayoutFunc
	TitleBreadcrumb BreadcrumbRenderer
}

// DefaultComponents returns the production layout and breadcrumb renderers.
func DefaultComponents() Components {
	return Components{
		Layout:          PageLayout,
		TitleBreadcrumb: TitleBreadcrumb,
	}
}

func (c Components) withDefaults() Components {
	if c.Layout == nil {
		c.Layout = PageLayout
	}
	if c.TitleBreadcrumb == nil {
		c.TitleBreadcrumb = TitleBreadcrumb
	}
	return c
}

var layoutTmpl = template.Must(template.New("layout").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
</head>
<body>
<main class="page-layout" data-testid="page-layout">
{{.Content}}
</main>
</body>
</html>
`))

// PageLayout renders a full HTML document around content.
func PageLayout(title string, content template.HTML) template.HTML {
	var buf bytes.Buffer
	err := layoutTmpl.Execute(&buf, struct {
		Title   string
		Content template.HTML
	}{title, content})
	if err != nil {
		return content
	}
	return template.HTML(buf.String())
}

var breadcrumbTmpl = template.Must(template.New("breadcrumb").Parse(
	`<nav class="title-breadcrumb" data-testid="breadcrumb">` +
		`{{range $i, $c := .}}{{if $i}}<span class="separator">/</span>{{end}}` +
		`{{if $c.URL}}<a href="{{$c.URL}}" data-testid="breadcrumb-link">{{$c.Name}}</a>` +
		`{{else}}<span data-testid="breadcrumb-link">{{$c.Name}}</span>{{end}}{{end}}</nav>`))

// TitleBreadcrumb renders crumbs as a navigation trail.
func TitleBreadcrumb(crumbs []domain.Breadcrumb) template.HTML {
	var buf bytes.Buffer
	if err := breadcrumbTmpl.Execute(&buf, crumbs); err != nil {
		return ""
	}
	return template.HTML(buf.String())
}
