package weave

import (
	"strings"
)

// DirectiveKind identifies which directive a Directive is.
type DirectiveKind int

const (
	// LayoutDirective is @layout(name), selecting the page's base layout.
	LayoutDirective DirectiveKind = iota + 1

	// ImportDirective is @import(name), inlining an import fragment.
	ImportDirective

	// AttachDirective is @attach(name), a placeholder filled by a section
	// or a slot of the same name.
	AttachDirective

	// SectionDirective is the block form @section(name) ... @endsection.
	SectionDirective

	// SimpleSectionDirective is the inline form @section(name, value).
	SimpleSectionDirective

	// ComponentDirective is @component(name) ... @endcomponent.
	ComponentDirective

	// SlotDirective is @slot(name) ... @endslot, only meaningful inside a
	// component invocation.
	SlotDirective
)

func (k DirectiveKind) String() string {
	switch k {
	case LayoutDirective:
		return "layout"
	case ImportDirective:
		return "import"
	case AttachDirective:
		return "attach"
	case SectionDirective:
		return "section"
	case SimpleSectionDirective:
		return "simple section"
	case ComponentDirective:
		return "component"
	case SlotDirective:
		return "slot"
	}
	return "unknown"
}

// Directive is a single directive recognized in a piece of text.
type Directive struct {
	Kind DirectiveKind

	// Name is the directive's argument, with surrounding whitespace
	// removed.
	Name string

	// Value is the inline value of a SimpleSectionDirective: everything
	// after the first comma, trimmed.
	Value string

	// Start and End are the byte offsets of Raw within the scanned text.
	Start, End int

	// Raw is the full matched text, including the body and end marker of
	// block directives.
	Raw string

	// Open, Body and Close split Raw for block directives: Open is the
	// opening @keyword(name), Close is the end marker and Body is what
	// lies between them. They're empty for inline directives.
	Open, Body, Close string
}

type keyword struct {
	word string
	kind DirectiveKind
	end  string
}

var keywords = []keyword{
	{word: "layout", kind: LayoutDirective},
	{word: "import", kind: ImportDirective},
	{word: "attach", kind: AttachDirective},
	{word: "section", kind: SectionDirective, end: "@endsection"},
	{word: "component", kind: ComponentDirective, end: "@endcomponent"},
	{word: "slot", kind: SlotDirective, end: "@endslot"},
}

// Scan returns the directives found at the top level of text, in document
// order. Block directives are returned whole; directives inside their bodies
// are not part of the result and can be found by scanning the Body.
// Unterminated blocks are left out and their contents are scanned as plain
// text.
func Scan(text string) []Directive {
	ds, _ := scan(text)
	return ds
}

// scan is Scan, also reporting the names of blocks that were opened but
// never closed.
func scan(text string) ([]Directive, []Directive) {
	var (
		found        []Directive
		unterminated []Directive
	)
	for i := 0; i < len(text); {
		at := strings.IndexByte(text[i:], '@')
		if at < 0 {
			break
		}
		at += i
		d, next, ok := scanAt(text, at)
		switch {
		case ok:
			found = append(found, d)
		case d.Kind != 0:
			unterminated = append(unterminated, d)
		}
		i = next
	}
	return found, unterminated
}

// scanAt tries to read a directive starting at the '@' at position at. It
// returns where scanning should resume. When the directive opens a block that
// is never closed, ok is false but d carries the kind and name of the opener.
func scanAt(text string, at int) (d Directive, next int, ok bool) {
	rest := text[at+1:]
	var kw keyword
	for _, k := range keywords {
		if strings.HasPrefix(rest, k.word+"(") {
			kw = k
			break
		}
	}
	if kw.kind == 0 {
		return Directive{}, at + 1, false
	}
	argStart := at + 1 + len(kw.word) + 1
	argLen := strings.IndexAny(text[argStart:], "()\n")
	if argLen < 0 || text[argStart+argLen] != ')' {
		return Directive{}, at + 1, false
	}
	args := text[argStart : argStart+argLen]
	openEnd := argStart + argLen + 1

	d = Directive{Kind: kw.kind, Start: at}
	name, value, hasValue := strings.Cut(args, ",")
	d.Name = strings.TrimSpace(name)
	if d.Name == "" {
		return Directive{}, at + 1, false
	}
	if hasValue {
		if kw.kind != SectionDirective {
			return Directive{}, at + 1, false
		}
		d.Kind = SimpleSectionDirective
		d.Value = strings.TrimSpace(value)
		d.End = openEnd
		d.Raw = text[at:openEnd]
		return d, openEnd, true
	}
	if kw.end == "" {
		d.End = openEnd
		d.Raw = text[at:openEnd]
		return d, openEnd, true
	}

	// components and slots nest, so they close at the balancing end
	// marker; sections close at the first one
	var closeAt int
	if kw.kind == SectionDirective {
		closeAt = strings.Index(text[openEnd:], kw.end)
		if closeAt >= 0 {
			closeAt += openEnd
		}
	} else {
		closeAt = matchingEnd(text, openEnd, "@"+kw.word+"(", kw.end)
	}
	if closeAt < 0 {
		return Directive{Kind: kw.kind, Name: d.Name, Start: at}, openEnd, false
	}
	d.End = closeAt + len(kw.end)
	d.Raw = text[at:d.End]
	d.Open = text[at:openEnd]
	d.Body = text[openEnd:closeAt]
	d.Close = kw.end
	return d, d.End, true
}

// matchingEnd finds the end marker balancing an opener whose body starts at
// from, skipping over nested openers. It returns -1 if there is none.
func matchingEnd(text string, from int, open, end string) int {
	depth := 0
	for i := from; i < len(text); {
		nextOpen := strings.Index(text[i:], open)
		nextEnd := strings.Index(text[i:], end)
		if nextEnd < 0 {
			return -1
		}
		if nextOpen >= 0 && nextOpen < nextEnd {
			depth++
			i += nextOpen + len(open)
			continue
		}
		if depth == 0 {
			return i + nextEnd
		}
		depth--
		i += nextEnd + len(end)
	}
	return -1
}

// rewriteFunc decides what replaces a directive. Returning ok == false keeps
// the directive's original text.
type rewriteFunc func(d Directive) (replacement string, ok bool, err error)

// rewrite makes one pass over the top-level directives of text, replacing
// each one fn accepts. With deep set, component and slot blocks fn declines
// are rewritten recursively, keeping their delimiters. Replacement text is
// never rescanned.
func rewrite(text string, fn rewriteFunc, deep bool) (string, error) {
	ds, _ := scan(text)
	if len(ds) == 0 {
		return text, nil
	}
	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, d := range ds {
		b.WriteString(text[last:d.Start])
		last = d.End
		replacement, ok, err := fn(d)
		if err != nil {
			return "", err
		}
		if ok {
			b.WriteString(replacement)
			continue
		}
		if deep && (d.Kind == ComponentDirective || d.Kind == SlotDirective) {
			body, err := rewrite(d.Body, fn, deep)
			if err != nil {
				return "", err
			}
			b.WriteString(d.Open)
			b.WriteString(body)
			b.WriteString(d.Close)
			continue
		}
		b.WriteString(d.Raw)
	}
	b.WriteString(text[last:])
	return b.String(), nil
}
