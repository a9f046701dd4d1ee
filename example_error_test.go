package weave_test

import (
	"context"
	"errors"
	"fmt"

	"impractical.co/weave"
)

func ExampleFragmentError() {
	// for example purposes, we're just hardcoding values
	var fragments = staticFS{
		"_layouts/base.html": "<main>@attach(body)</main>",
	}

	// the page uses a component nobody wrote yet
	page := `@layout(base)
@section(body)@component(avatar)@endcomponent@endsection`

	_, err := weave.Render(context.Background(), weave.NewFSStore(fragments), "home.html", page)

	var fragErr *weave.FragmentError
	if errors.As(err, &fragErr) {
		fmt.Printf("%s needs the %s %q\n", fragErr.Page, fragErr.Kind, fragErr.Name)
	}
	fmt.Println(errors.Is(err, weave.ErrFragmentNotFound))
	fmt.Println(err)

	//Output:
	// home.html needs the component "avatar"
	// true
	// error rendering page "home.html": component "avatar": error reading component "_components/avatar.html": fragment not found
}

func ExampleResult_warnings() {
	store := weave.MapStore{
		weave.LayoutFragment: {
			"base": "<h1>@attach(title)</h1>@attach(subtitle)",
		},
	}

	// a missing section isn't an error, its @attach is left in place
	res, err := weave.Render(context.Background(), store, "home.html", "@layout(base)\n@section(title, Hello)")
	if err != nil {
		panic(err)
	}
	fmt.Println(res.Output)
	for _, warning := range res.Warnings {
		fmt.Println(warning)
	}

	//Output:
	// <h1>Hello</h1>@attach(subtitle)
	// unmatched-attach: "subtitle" in page
}
