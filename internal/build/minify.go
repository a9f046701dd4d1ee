package build

import (
	"path"
	"regexp"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/json"
	"github.com/tdewolff/minify/v2/svg"
)

const htmlType = "text/html"

var mediaTypes = map[string]string{
	".html": htmlType,
	".htm":  htmlType,
	".css":  "text/css",
	".js":   "application/javascript",
	".mjs":  "application/javascript",
	".json": "application/json",
	".svg":  "image/svg+xml",
}

func newMinifier() *minify.M {
	m := minify.New()
	m.AddFunc(htmlType, html.Minify)
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("image/svg+xml", svg.Minify)
	m.AddFuncRegexp(regexp.MustCompile(`^(application|text)/(x-)?(java|ecma)script$`), js.Minify)
	m.AddFuncRegexp(regexp.MustCompile(`[/+]json$`), json.Minify)
	return m
}

// mediaType returns the media type the minifier knows name by, or "" for
// files that are copied unchanged.
func mediaType(name string) string {
	return mediaTypes[strings.ToLower(path.Ext(name))]
}
