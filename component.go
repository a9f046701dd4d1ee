package weave

import (
	"context"
	"fmt"
)

// resolveComponents expands every component invocation in text. Components
// whose output invokes further components are expanded in turn, up to the
// renderer's depth limit.
func (r *render) resolveComponents(ctx context.Context, text string, depth int) (string, error) {
	return rewrite(text, func(d Directive) (string, bool, error) {
		if d.Kind != ComponentDirective {
			return "", false, nil
		}
		if depth >= r.maxDepth {
			return "", false, fmt.Errorf("error expanding component %q in page %q: %w", d.Name, r.page, ErrMaxDepth)
		}
		out, err := r.expandComponent(ctx, d, depth)
		if err != nil {
			return "", false, err
		}
		return out, true, nil
	}, true)
}

// expandComponent renders one invocation: each @attach in the component's
// markup is filled with the @slot of the same name from the invocation body.
// An invocation without any @slot passes its whole body as the content of
// every @attach.
func (r *render) expandComponent(ctx context.Context, invocation Directive, depth int) (string, error) {
	markup, err := r.fragment(ctx, ComponentFragment, invocation.Name)
	if err != nil {
		return "", err
	}

	var slots []Directive
	for _, d := range Scan(invocation.Body) {
		if d.Kind == SlotDirective {
			slots = append(slots, d)
		}
	}

	scope := "component(" + invocation.Name + ")"
	filled, err := rewrite(markup, func(d Directive) (string, bool, error) {
		if d.Kind != AttachDirective {
			return "", false, nil
		}
		if len(slots) == 0 {
			return invocation.Body, true, nil
		}
		for _, slot := range slots {
			if slot.Name == d.Name {
				return slot.Body, true, nil
			}
		}
		r.warn(ctx, Warning{Kind: UnmatchedAttach, Name: d.Name, Scope: scope})
		return "", false, nil
	}, true)
	if err != nil {
		return "", err
	}
	return r.resolveComponents(ctx, filled, depth+1)
}
