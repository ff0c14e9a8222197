package transform

import (
	"context"
	"fmt"
	"html"
	"path"
	"regexp"
	"strings"

	"github.com/maxkimambo/assetpipe/internal/resource"
)

var (
	svgRoot    = regexp.MustCompile(`(?s)<svg\b([^>]*)>(.*)</svg>`)
	svgViewBox = regexp.MustCompile(`\bviewBox\s*=\s*(?:"([^"]*)"|'([^']*)')`)
)

// SVGSprite packs svg inputs into one symbol sprite named by "name"
// (default sprite.svg). Each symbol id is the file stem, optionally prefixed
// by "prefix". Attributes listed in "strip" are removed from the inner
// markup so the sprite can be styled with CSS.
func SVGSprite(ctx context.Context, in []resource.Resource, cfg Config) ([]resource.Resource, error) {
	name, err := cfg.String("name", "sprite.svg")
	if err != nil {
		return nil, err
	}
	prefix, err := cfg.String("prefix", "")
	if err != nil {
		return nil, err
	}
	strip, err := cfg.Strings("strip")
	if err != nil {
		return nil, err
	}

	var attrs *regexp.Regexp
	if len(strip) > 0 {
		quoted := make([]string, len(strip))
		for i, a := range strip {
			quoted[i] = regexp.QuoteMeta(a)
		}
		attrs = regexp.MustCompile(`\s(?:` + strings.Join(quoted, "|") + `)\s*=\s*(?:"[^"]*"|'[^']*')`)
	}

	var symbols []resource.Resource
	var sb strings.Builder
	sb.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" style="display:none">`)
	for _, r := range in {
		if r.Kind() != "svg" {
			continue
		}
		data, err := r.Bytes()
		if err != nil {
			return nil, err
		}
		m := svgRoot.FindSubmatch(data)
		if m == nil {
			return nil, fmt.Errorf("%s has no svg root element", r.Path())
		}

		id := prefix + strings.TrimSuffix(path.Base(r.Path()), path.Ext(r.Path()))
		inner := m[2]
		if attrs != nil {
			inner = attrs.ReplaceAll(inner, nil)
		}

		sb.WriteString(`<symbol id="`)
		sb.WriteString(html.EscapeString(id))
		sb.WriteString(`"`)
		if vb := svgViewBox.FindSubmatch(m[1]); vb != nil {
			box := vb[1]
			if box == nil {
				box = vb[2]
			}
			sb.WriteString(` viewBox="`)
			sb.WriteString(html.EscapeString(string(box)))
			sb.WriteString(`"`)
		}
		sb.WriteString(">")
		sb.Write(inner)
		sb.WriteString("</symbol>")
		symbols = append(symbols, r)
	}
	sb.WriteString("</svg>\n")

	if len(symbols) == 0 {
		return nil, nil
	}
	out := symbols[0].WithPath(name)
	meta := out.Meta()
	meta.Source = ""
	return []resource.Resource{out.WithMeta(meta).WithBytes([]byte(sb.String()))}, nil
}
