package build

import (
	"bytes"
	"errors"
	"html/template"

	"impractical.co/weave"
)

type errorData struct {
	Page     string
	Message  string
	Fragment *weave.FragmentError
}

var errorTemplate = template.Must(template.New("error").Parse(`<!doctype html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Build error: {{.Page}}</title>
    <style>
        body { font-family: system-ui, sans-serif; max-width: 800px; margin: 50px auto; padding: 0 20px; }
        h1 { color: #e74c3c; }
        pre { background: #f8f9fa; padding: 15px; border-radius: 5px; overflow-x: auto; }
    </style>
</head>
<body>
    <h1>{{.Page}} failed to build</h1>
    {{if .Fragment}}<p>It uses the {{.Fragment.Kind}} <code>{{.Fragment.Name}}</code>, which couldn't be loaded.</p>{{end}}
    <pre>{{.Message}}</pre>
</body>
</html>
`))

// errorPage renders the page written in place of a page that failed to
// build in dev mode.
func errorPage(page string, cause error) ([]byte, error) {
	data := errorData{Page: page, Message: cause.Error()}
	var fragErr *weave.FragmentError
	if errors.As(cause, &fragErr) {
		data.Fragment = fragErr
	}
	var buf bytes.Buffer
	if err := errorTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
