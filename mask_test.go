package weave

import (
	"strings"
	"testing"
)

func TestMaskRoundTrip(t *testing.T) {
	t.Parallel()

	texts := []string{
		"",
		"no literals here",
		"<code>@attach(title)</code>",
		"before <code>@import(a)</code> between <code>@layout(b)</code> after",
		"<code></code>",
		"<code>unterminated",
		"<code>spans\nlines</code>",
		"<code>has <b>markup</b></code>",
		"<code><code>nested</code></code>",
		"already has " + placeholderOpen + "1" + placeholderClose + " and <code>x</code> in it",
		placeholderOpen + placeholderClose + placeholderOpen,
	}
	for _, text := range texts {
		masked, table := Mask(text)
		if got := Unmask(masked, table); got != text {
			t.Errorf("Unmask(Mask(%q)) = %q", text, got)
		}
	}
}

func TestMask(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		text   string
		masked int
	}{
		"plain":             {text: "<p>@attach(x)</p>", masked: 0},
		"one literal":       {text: "<p><code>@attach(x)</code></p>", masked: 1},
		"two literals":      {text: "<code>a</code><code>b</code>", masked: 2},
		"empty literal":     {text: "<code></code>", masked: 1},
		"multi-line":        {text: "<code>a\n</code>", masked: 0},
		"markup inside":     {text: "<code><i>a</i></code>", masked: 0},
		"inner literal":     {text: "<code><code>a</code>", masked: 1},
		"missing close tag": {text: "<code>a", masked: 0},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			masked, table := Mask(test.text)
			if len(table) != test.masked {
				t.Errorf("Mask(%q) masked %d spans, want %d", test.text, len(table), test.masked)
			}
			for _, span := range table {
				if strings.Contains(masked, span) {
					t.Errorf("Mask(%q) = %q, literal %q left in place", test.text, masked, span)
				}
			}
			for _, d := range Scan(masked) {
				for _, span := range table {
					if strings.Contains(span, d.Raw) {
						t.Errorf("Mask(%q) = %q, directive %q visible inside literal", test.text, masked, d.Raw)
					}
				}
			}
		})
	}
}

func TestGuardPlaceholdersAreUnique(t *testing.T) {
	t.Parallel()

	g := newGuard()
	taken := placeholderOpen + "1" + placeholderClose + " " + placeholderOpen + "2" + placeholderClose
	page := g.mask(taken + " <code>page</code>")
	fragment := g.mask("<code>fragment</code>")

	if len(g.table) != 2 {
		t.Fatalf("guard recorded %d spans, want 2", len(g.table))
	}
	for placeholder := range g.table {
		if strings.Contains(taken, placeholder) {
			t.Errorf("placeholder %q collides with the page text", placeholder)
		}
	}
	if got := g.unmask(page); got != taken+" <code>page</code>" {
		t.Errorf("unmask(page) = %q", got)
	}
	if got := g.unmask(fragment); got != "<code>fragment</code>" {
		t.Errorf("unmask(fragment) = %q", got)
	}
}

func TestGuardLeftover(t *testing.T) {
	t.Parallel()

	g := newGuard()
	masked := g.mask("<code>a</code> and <code>b</code>")
	if got := g.leftover(masked); len(got) != 2 {
		t.Errorf("leftover(masked) = %q, want both placeholders", got)
	}
	if got := g.leftover(g.unmask(masked)); len(got) != 0 {
		t.Errorf("leftover(unmasked) = %q, want none", got)
	}
	if got := g.leftover("unrelated " + placeholderOpen + "text" + placeholderClose); len(got) != 0 {
		t.Errorf("leftover(unrelated) = %q, want none", got)
	}
}

func TestGuardShieldsIssuedPlaceholders(t *testing.T) {
	t.Parallel()

	g := newGuard()
	page := g.mask("<code>page</code>")
	issued := placeholderOpen + "1" + placeholderClose
	if page != issued {
		t.Fatalf("mask(page) = %q, want %q", page, issued)
	}

	// a later fragment happens to contain the page's placeholder, both as
	// plain text and inside a literal span of its own
	fragmentText := "copy of " + issued + " and <code>" + issued + "</code>"
	fragment := g.mask(fragmentText)
	if strings.Contains(fragment, issued) {
		t.Errorf("mask(fragment) = %q, still holds %q", fragment, issued)
	}

	got := g.unmask(page + "|" + fragment)
	if want := "<code>page</code>|" + fragmentText; got != want {
		t.Errorf("unmask() = %q, want %q", got, want)
	}
	if left := g.leftover(got); len(left) != 0 {
		t.Errorf("leftover() = %q, want none", left)
	}
}
