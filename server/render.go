package server

import (
	"bytes"
	"html/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/cockroachdb/errors"
)

// PageTitle is the title of the rendered pages
const PageTitle = "TechBay Customer Support"

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{ .Title }}</title>
</head>
<body>
<h1>{{ .Title }}</h1>
<h2>Your Query:</h2>
<p>{{ .Query }}</p>
{{- with .URL }}
<p><a href="{{ . }}">{{ . }}</a></p>
{{- end }}
<h2>Our Response:</h2>
{{- range splitList "\n" .Response }}
<p>{{ . }}</p>
{{- end }}
</body>
</html>
`

var page = template.Must(template.New("page").Funcs(sprig.FuncMap()).Parse(pageTemplate))

// Page is the data of the rendered page
type Page struct {
	Title    string
	Query    string
	URL      string
	Response string
}

// Render returns the HTML document of the page,
// the values are escaped.
func Render(p Page) ([]byte, error) {
	if p.Title == "" {
		p.Title = PageTitle
	}
	var buf bytes.Buffer
	if err := page.Execute(&buf, p); err != nil {
		return nil, errors.WithMessage(err, "failed to render page")
	}
	return buf.Bytes(), nil
}
