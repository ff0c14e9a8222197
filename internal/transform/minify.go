package transform

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/json"
	"github.com/tdewolff/minify/v2/svg"
	"github.com/tdewolff/minify/v2/xml"

	"github.com/maxkimambo/assetpipe/internal/resource"
)

var mediaTypes = map[string]string{
	"css":  "text/css",
	"js":   "application/javascript",
	"mjs":  "application/javascript",
	"html": "text/html",
	"htm":  "text/html",
	"svg":  "image/svg+xml",
	"json": "application/json",
	"xml":  "text/xml",
}

var (
	minifierOnce sync.Once
	minifier     *minify.M
)

func sharedMinifier() *minify.M {
	minifierOnce.Do(func() {
		m := minify.New()
		m.AddFunc("text/css", css.Minify)
		m.AddFunc("text/html", html.Minify)
		m.AddFunc("image/svg+xml", svg.Minify)
		m.AddFuncRegexp(regexp.MustCompile("^(application|text)/(x-)?(java|ecma)script$"), js.Minify)
		m.AddFuncRegexp(regexp.MustCompile("[/+]json$"), json.Minify)
		m.AddFuncRegexp(regexp.MustCompile("[/+]xml$"), xml.Minify)
		minifier = m
	})
	return minifier
}

// Minify compresses css, js, html, svg, json and xml resources. Other kinds
// pass through untouched; "kinds" narrows the set further.
func Minify(ctx context.Context, in []resource.Resource, cfg Config) ([]resource.Resource, error) {
	kinds, err := cfg.Strings("kinds")
	if err != nil {
		return nil, err
	}
	selected := selectKinds(kinds)
	m := sharedMinifier()

	out := make([]resource.Resource, 0, len(in))
	for _, r := range in {
		mediaType, ok := mediaTypes[r.Kind()]
		if !ok || !selected(r) {
			out = append(out, r)
			continue
		}
		data, err := r.Bytes()
		if err != nil {
			return nil, err
		}
		minified, err := m.Bytes(mediaType, data)
		if err != nil {
			return nil, fmt.Errorf("failed to minify %s: %w", r.Path(), err)
		}
		out = append(out, r.WithBytes(minified))
	}
	return out, nil
}
