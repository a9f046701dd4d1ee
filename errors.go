package weave

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFragmentNotFound is returned when a page names a layout, import
	// or component that its FragmentStore doesn't have. It fails the
	// render of that page.
	ErrFragmentNotFound = errors.New("fragment not found")

	// ErrMaxDepth is returned when components keep invoking components
	// past the Renderer's nesting limit. It almost always means a
	// component invokes itself, directly or through another component.
	ErrMaxDepth = errors.New("maximum component nesting depth exceeded")

	// ErrUnrestoredMask indicates a literal placeholder survived to the
	// final output. It's never caused by the input; it means the renderer
	// itself is broken.
	ErrUnrestoredMask = errors.New("literal placeholder left in output")
)

// FragmentError is returned when a page can't be rendered because one of the
// fragments it refers to couldn't be loaded.
type FragmentError struct {
	// Page is the name the page was rendered under.
	Page string

	// Kind and Name identify the fragment that failed to load.
	Kind FragmentKind
	Name string

	// Err is the error returned by the FragmentStore.
	Err error
}

func (e *FragmentError) Error() string {
	return fmt.Sprintf("error rendering page %q: %s %q: %s", e.Page, e.Kind, e.Name, e.Err)
}

func (e *FragmentError) Unwrap() error {
	return e.Err
}

// WarningKind categorizes the problems a render survives.
type WarningKind string

const (
	// UnmatchedAttach means an @attach had no section or slot of the same
	// name. It's left in the output as written.
	UnmatchedAttach WarningKind = "unmatched-attach"

	// ExtraLayout means a page had more than one @layout. Only the first
	// is used, the others are removed.
	ExtraLayout WarningKind = "extra-layout"

	// UnterminatedBlock means a @section, @component or @slot was never
	// closed, so it's treated as plain text.
	UnterminatedBlock WarningKind = "unterminated-block"

	// UnrestoredMask means a literal placeholder survived to the output.
	// See ErrUnrestoredMask.
	UnrestoredMask WarningKind = "unrestored-mask"
)

// Warning describes a problem that didn't stop a page from rendering.
type Warning struct {
	Kind WarningKind

	// Name is the name in the directive that caused the warning, or the
	// placeholder for UnrestoredMask.
	Name string

	// Scope is where the directive was found: "page", "section(name)" or
	// "component(name)".
	Scope string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %q in %s", w.Kind, w.Name, w.Scope)
}

// Result is the outcome of rendering a page.
type Result struct {
	// Output is the fully resolved page.
	Output string

	// Warnings lists, in the order they were found, the problems the
	// render worked around.
	Warnings []Warning
}

// InternalError returns an error wrapping ErrUnrestoredMask if the render
// reported any UnrestoredMask warnings, and nil otherwise. Those are kept
// apart from the others because they point at the renderer, not the page.
func (r Result) InternalError() error {
	var placeholders []string
	for _, w := range r.Warnings {
		if w.Kind == UnrestoredMask {
			placeholders = append(placeholders, fmt.Sprintf("%q", w.Name))
		}
	}
	if len(placeholders) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnrestoredMask, strings.Join(placeholders, ", "))
}
