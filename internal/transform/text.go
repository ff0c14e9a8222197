package transform

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/maxkimambo/assetpipe/internal/resource"
)

// Replace rewrites content matching the "pattern" regexp with "with", which
// may reference groups as $1. "literal" treats the pattern as plain text and
// "kinds" restricts the step to some extensions.
func Replace(ctx context.Context, in []resource.Resource, cfg Config) ([]resource.Resource, error) {
	pattern, err := cfg.String("pattern", "")
	if err != nil {
		return nil, err
	}
	if pattern == "" {
		return nil, fmt.Errorf("replace requires a pattern")
	}
	with, err := cfg.String("with", "")
	if err != nil {
		return nil, err
	}
	literal, err := cfg.Bool("literal", false)
	if err != nil {
		return nil, err
	}
	kinds, err := cfg.Strings("kinds")
	if err != nil {
		return nil, err
	}

	if literal {
		pattern = regexp.QuoteMeta(pattern)
		with = strings.ReplaceAll(with, "$", "$$")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}

	selected := selectKinds(kinds)
	out := make([]resource.Resource, 0, len(in))
	for _, r := range in {
		if !selected(r) {
			out = append(out, r)
			continue
		}
		data, err := r.Bytes()
		if err != nil {
			return nil, err
		}
		out = append(out, r.WithBytes(re.ReplaceAll(data, []byte(with))))
	}
	return out, nil
}

// Wrap surrounds content with "header" and "footer". Both may use the
// {{name}} and {{path}} placeholders.
func Wrap(ctx context.Context, in []resource.Resource, cfg Config) ([]resource.Resource, error) {
	header, err := cfg.String("header", "")
	if err != nil {
		return nil, err
	}
	footer, err := cfg.String("footer", "")
	if err != nil {
		return nil, err
	}
	kinds, err := cfg.Strings("kinds")
	if err != nil {
		return nil, err
	}

	selected := selectKinds(kinds)
	out := make([]resource.Resource, 0, len(in))
	for _, r := range in {
		if !selected(r) {
			out = append(out, r)
			continue
		}
		data, err := r.Bytes()
		if err != nil {
			return nil, err
		}
		expand := strings.NewReplacer("{{name}}", path.Base(r.Path()), "{{path}}", r.Path())

		var sb strings.Builder
		sb.Grow(len(header) + len(data) + len(footer))
		sb.WriteString(expand.Replace(header))
		sb.Write(data)
		sb.WriteString(expand.Replace(footer))
		out = append(out, r.WithBytes([]byte(sb.String())))
	}
	return out, nil
}
