package weave

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
)

// resolveLayout swaps the page's first @layout for the named layout. Any
// later @layout is dropped with an ExtraLayout warning. The layout text is not
// scanned for further layouts.
func (r *render) resolveLayout(ctx context.Context, text string) (string, error) {
	ctx, span := tracer.Start(ctx, "weave.layout")
	defer span.End()

	resolved := false
	return rewrite(text, func(d Directive) (string, bool, error) {
		if d.Kind != LayoutDirective {
			return "", false, nil
		}
		if resolved {
			r.warn(ctx, Warning{Kind: ExtraLayout, Name: d.Name, Scope: pageScope})
			return "", true, nil
		}
		resolved = true
		span.SetAttributes(attribute.String("weave.layout", d.Name))
		layout, err := r.fragment(ctx, LayoutFragment, d.Name)
		if err != nil {
			return "", false, err
		}
		return layout, true, nil
	}, false)
}
