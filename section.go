package weave

import (
	"context"
	"slices"
)

// sections are the @section declarations of a page, in document order.
type sections struct {
	simple []Directive
	blocks []Directive
}

// collectSections gathers the section declarations at the top level of a
// page. Declarations nested in component invocations don't count.
func collectSections(page string) sections {
	var s sections
	for _, d := range Scan(page) {
		switch d.Kind {
		case SimpleSectionDirective:
			s.simple = append(s.simple, d)
		case SectionDirective:
			s.blocks = append(s.blocks, d)
		}
	}
	return s
}

// value returns the value of the first simple section called name.
func (s sections) value(name string) (string, bool) {
	for _, d := range s.simple {
		if d.Name == name {
			return d.Value, true
		}
	}
	return "", false
}

// block returns the body of the first block section called name.
func (s sections) block(name string) (string, bool) {
	for _, d := range s.blocks {
		if d.Name == name {
			return d.Body, true
		}
	}
	return "", false
}

// resolveSections removes every section declaration from the composed text,
// including those inside component and slot bodies, then fills its @attach
// placeholders from the page's sections. Simple sections take precedence over
// block sections of the same name.
func (r *render) resolveSections(ctx context.Context, text string, s sections) (string, error) {
	ctx, span := tracer.Start(ctx, "weave.sections")
	defer span.End()

	stripped, err := rewrite(text, func(d Directive) (string, bool, error) {
		if d.Kind == SectionDirective || d.Kind == SimpleSectionDirective {
			return "", true, nil
		}
		return "", false, nil
	}, true)
	if err != nil {
		return "", err
	}
	return r.attachSections(ctx, stripped, s, nil, pageScope)
}

// attachSections replaces each @attach in text with the section of the same
// name. A block section's body has its own @attach placeholders filled the
// same way; visiting holds the sections being expanded, so a section that
// refers back to itself is left unmatched instead of recursing forever.
func (r *render) attachSections(ctx context.Context, text string, s sections, visiting []string, scope string) (string, error) {
	return rewrite(text, func(d Directive) (string, bool, error) {
		if d.Kind != AttachDirective {
			return "", false, nil
		}
		if value, ok := s.value(d.Name); ok {
			return value, true, nil
		}
		body, ok := s.block(d.Name)
		if !ok || slices.Contains(visiting, d.Name) {
			r.warn(ctx, Warning{Kind: UnmatchedAttach, Name: d.Name, Scope: scope})
			return "", false, nil
		}
		filled, err := r.attachSections(ctx, body, s, append(slices.Clone(visiting), d.Name), "section("+d.Name+")")
		if err != nil {
			return "", false, err
		}
		return filled, true, nil
	}, true)
}
