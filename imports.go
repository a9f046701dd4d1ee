package weave

import (
	"context"
)

// resolveImports inlines every @import. Imported text is inserted as is: its
// own @import and @attach directives are not expanded.
func (r *render) resolveImports(ctx context.Context, text string) (string, error) {
	ctx, span := tracer.Start(ctx, "weave.imports")
	defer span.End()

	return rewrite(text, func(d Directive) (string, bool, error) {
		if d.Kind != ImportDirective {
			return "", false, nil
		}
		imported, err := r.fragment(ctx, ImportFragment, d.Name)
		if err != nil {
			return "", false, err
		}
		return imported, true, nil
	}, true)
}
