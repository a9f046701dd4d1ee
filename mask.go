package weave

import (
	"slices"
	"strconv"
	"strings"
)

const (
	literalOpen  = "<code>"
	literalClose = "</code>"

	// placeholders are wrapped in private-use code points so they can't be
	// read as directive syntax.
	placeholderOpen  = "\ue000"
	placeholderClose = "\ue001"
)

// MaskTable maps the placeholders Mask inserted back to the literal spans
// they replaced.
type MaskTable map[string]string

// Mask replaces every literal span in text with a placeholder, so directive
// passes can't see inside it. A literal span is a single-line <code> element
// with no markup inside it.
//
// Passing the result and the returned MaskTable to Unmask restores text
// exactly.
func Mask(text string) (string, MaskTable) {
	g := newGuard()
	return g.mask(text), g.table
}

// Unmask replaces every placeholder from table that appears in text with the
// literal span it stands for. Restored spans are not scanned again.
func Unmask(text string, table MaskTable) string {
	if len(table) == 0 {
		return text
	}
	pairs := make([]string, 0, len(table)*2)
	for placeholder, span := range table {
		pairs = append(pairs, placeholder, span)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// guard holds the mask table for a single render. Every piece of text that
// enters the render, the page and each fragment, is masked through the same
// guard so one Unmask at the end restores all of them.
//
// Placeholder-shaped tokens already present in incoming text are never
// issued. If one outside a literal span matches a placeholder issued for
// earlier text, it's masked as a literal of its own so Unmask leaves it as it
// was.
type guard struct {
	next  int
	table MaskTable

	// reserved holds the tokens seen in masked text.
	reserved map[string]struct{}

	// foreign holds the placeholders that also occur in masked text, and
	// so may legitimately survive Unmask.
	foreign map[string]struct{}
}

func newGuard() *guard {
	return &guard{
		table:    MaskTable{},
		reserved: map[string]struct{}{},
		foreign:  map[string]struct{}{},
	}
}

func (g *guard) mask(text string) string {
	taken := g.reserve(text)
	return g.shelter(g.maskLiterals(text), taken)
}

func (g *guard) maskLiterals(text string) string {
	var b strings.Builder
	last := 0
	for i := 0; i < len(text); {
		start := strings.Index(text[i:], literalOpen)
		if start < 0 {
			break
		}
		start += i
		end := literalEnd(text, start+len(literalOpen))
		if end < 0 {
			i = start + len(literalOpen)
			continue
		}
		placeholder := g.placeholder()
		g.table[placeholder] = text[start:end]
		b.WriteString(text[last:start])
		b.WriteString(placeholder)
		last = end
		i = end
	}
	if last == 0 {
		return text
	}
	b.WriteString(text[last:])
	return b.String()
}

func (g *guard) unmask(text string) string {
	return Unmask(text, g.table)
}

// reserve records every placeholder-shaped token in text so it's never
// issued, and returns the ones this guard has issued already.
func (g *guard) reserve(text string) map[string]struct{} {
	var taken map[string]struct{}
	eachToken(text, func(start, end int) {
		token := text[start:end]
		if _, issued := g.table[token]; issued {
			if taken == nil {
				taken = map[string]struct{}{}
			}
			taken[token] = struct{}{}
			g.foreign[token] = struct{}{}
		}
		g.reserved[token] = struct{}{}
	})
	return taken
}

// shelter masks each occurrence of a taken token in text as a literal of its
// own.
func (g *guard) shelter(text string, taken map[string]struct{}) string {
	if len(taken) == 0 {
		return text
	}
	var b strings.Builder
	last := 0
	eachToken(text, func(start, end int) {
		token := text[start:end]
		if _, ok := taken[token]; !ok {
			return
		}
		placeholder := g.placeholder()
		g.table[placeholder] = token
		b.WriteString(text[last:start])
		b.WriteString(placeholder)
		last = end
	})
	if last == 0 {
		return text
	}
	b.WriteString(text[last:])
	return b.String()
}

// eachToken calls fn with the bounds of every placeholder-shaped token in
// text.
func eachToken(text string, fn func(start, end int)) {
	for i := 0; i < len(text); {
		start := strings.Index(text[i:], placeholderOpen)
		if start < 0 {
			return
		}
		start += i
		end := tokenEnd(text, start+len(placeholderOpen))
		if end < 0 {
			i = start + len(placeholderOpen)
			continue
		}
		fn(start, end)
		i = end
	}
}

// leftover lists the placeholders from this render still present in text.
// Placeholders that also arrived as part of the input are not reported.
func (g *guard) leftover(text string) []string {
	if !strings.Contains(text, placeholderOpen) {
		return nil
	}
	var found []string
	for placeholder := range g.table {
		if _, ok := g.foreign[placeholder]; ok {
			continue
		}
		if strings.Contains(text, placeholder) {
			found = append(found, placeholder)
		}
	}
	slices.Sort(found)
	return found
}

// placeholder returns the next placeholder not yet issued or reserved.
func (g *guard) placeholder() string {
	for {
		g.next++
		p := placeholderOpen + strconv.Itoa(g.next) + placeholderClose
		if _, ok := g.reserved[p]; ok {
			continue
		}
		g.reserved[p] = struct{}{}
		return p
	}
}

// tokenEnd returns the offset just past a placeholder whose number starts at
// from, or -1 if there is none.
func tokenEnd(text string, from int) int {
	i := from
	for i < len(text) && text[i] >= '0' && text[i] <= '9' {
		i++
	}
	if i == from || !strings.HasPrefix(text[i:], placeholderClose) {
		return -1
	}
	return i + len(placeholderClose)
}

// literalEnd returns the offset just past the closing marker of a literal
// span whose content starts at from, or -1 if the span is not well formed.
func literalEnd(text string, from int) int {
	for i := from; i < len(text); i++ {
		switch text[i] {
		case '<':
			if strings.HasPrefix(text[i:], literalClose) {
				return i + len(literalClose)
			}
			return -1
		case '\n':
			return -1
		}
	}
	return -1
}
