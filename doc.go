// Package weave composes static HTML pages out of layouts, imports and
// components, driven by directives written in the page markup itself.
//
// A page picks a layout with @layout(name) and fills the layout's
// @attach(name) placeholders with sections, either blocks:
//
//	@section(body)
//	    <p>Hello.</p>
//	@endsection
//
// or inline values:
//
//	@section(title, Home)
//
// Pages, layouts and components can inline an import with @import(name), and
// invoke a component with @component(name) ... @endcomponent. A component's
// own @attach placeholders are filled from @slot(name) ... @endslot blocks in
// the invocation, or, when the invocation has no slots, from its whole body.
//
// Text inside a single-line <code> element is never treated as a directive,
// so pages can show directive syntax as an example.
//
// weave is not a general purpose template language: there are no
// expressions, loops or conditionals, only name-based substitution of text.
// Layouts, imports and components are looked up by name in a FragmentStore;
// FSStore reads them from an fs.FS, MapStore holds them in memory, and
// CachedStore saves repeated reads during a build.
//
// To render a page, pass its text to Render, or to the Render method of a
// Renderer. A logger can be attached to the context with LoggingContext, and
// renders are traced and counted through the global OpenTelemetry providers.
package weave
