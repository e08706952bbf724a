package templates

// WikiPageData contains the dynamic values for a rendered wiki page.
type WikiPageData struct {
	Title string
	Slug  string
	HTML  string
}

// EditPageData bundles template data for the page editor form, including
// author-facing marker validation errors from a rejected save.
type EditPageData struct {
	Title       string
	Slug        string
	PageTitle   string
	Content     string
	FieldErrors []string
}

// PageListItem represents one entry on the page index.
type PageListItem struct {
	Title string
	URL   string
}

// HomePageData contains dynamic values rendered on the landing page.
type HomePageData struct {
	Title string
	Pages []PageListItem
}

// ErrorPageData holds information for rendering an error view.
type ErrorPageData struct {
	Title       string
	StatusLabel string
	Message     string
}
