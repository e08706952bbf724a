package templates

import (
	"context"
	"fmt"
	"html"
	"io"

	"github.com/a-h/templ"
)

// layout wraps a body component in the shared document shell.
func layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if _, err := fmt.Fprintf(w,
			`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>%s</title></head><body><header><a href="/">Gearbook</a></header><main>`,
			html.EscapeString(title)); err != nil {
			return err
		}

		if err := body.Render(ctx, w); err != nil {
			return err
		}

		_, err := io.WriteString(w, `</main></body></html>`)
		return err
	})
}

// WikiPage renders a wiki page: title, the sanitized article HTML, and the
// edit link.
func WikiPage(data WikiPageData) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<article class="wiki-page">`); err != nil {
			return err
		}
		if err := RawHTML(data.HTML).Render(ctx, w); err != nil {
			return err
		}
		if _, err := io.WriteString(w, `</article>`); err != nil {
			return err
		}

		_, err := fmt.Fprintf(w, `<nav><a href="/wiki/%s/edit">Edit this page</a></nav>`, html.EscapeString(data.Slug))
		return err
	})

	return layout(data.Title, body)
}

// EditPage renders the page editor form with any marker validation errors
// from a rejected save.
func EditPage(data EditPageData) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if len(data.FieldErrors) > 0 {
			if _, err := io.WriteString(w, `<ul class="field-errors">`); err != nil {
				return err
			}
			for _, message := range data.FieldErrors {
				if _, err := fmt.Fprintf(w, `<li>%s</li>`, html.EscapeString(message)); err != nil {
					return err
				}
			}
			if _, err := io.WriteString(w, `</ul>`); err != nil {
				return err
			}
		}

		_, err := fmt.Fprintf(w,
			`<form method="post" action="/wiki/%s/edit">`+
				`<label>Title <input type="text" name="title" value="%s"></label>`+
				`<label>Content <textarea name="content" rows="24">%s</textarea></label>`+
				`<button type="submit">Save</button></form>`,
			html.EscapeString(data.Slug),
			html.EscapeString(data.PageTitle),
			html.EscapeString(data.Content))
		return err
	})

	return layout(data.Title, body)
}

// HomePage renders the page index.
func HomePage(data HomePageData) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if len(data.Pages) == 0 {
			_, err := io.WriteString(w, `<p>No pages yet.</p>`)
			return err
		}

		if _, err := io.WriteString(w, `<ul class="page-list">`); err != nil {
			return err
		}
		for _, page := range data.Pages {
			if _, err := fmt.Fprintf(w, `<li><a href="%s">%s</a></li>`,
				html.EscapeString(page.URL), html.EscapeString(page.Title)); err != nil {
				return err
			}
		}

		_, err := io.WriteString(w, `</ul>`)
		return err
	})

	return layout(data.Title, body)
}

// ErrorPage holds the shared error view.
func ErrorPage(data ErrorPageData) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<h1>%s</h1><p>%s</p>`,
			html.EscapeString(data.StatusLabel), html.EscapeString(data.Message))
		return err
	})

	return layout(data.Title, body)
}
