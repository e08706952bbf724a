package markdown

import "github.com/microcosm-cc/bluemonday"

// Sanitizer strips untrusted markup from rendered page HTML. Trusted markup
// (template buttons) is injected after sanitization, never before.
type Sanitizer struct {
	policy *bluemonday.Policy
}

// NewSanitizer constructs a sanitizer based on bluemonday's UGC policy, with
// the additions goldmark output needs: heading anchors and code block
// language classes.
func NewSanitizer() *Sanitizer {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("id").OnElements("h1", "h2", "h3", "h4", "h5", "h6")
	policy.AllowAttrs("class").OnElements("code", "pre")

	return &Sanitizer{policy: policy}
}

// Sanitize returns the HTML with disallowed elements and attributes removed.
func (s *Sanitizer) Sanitize(html string) string {
	return s.policy.Sanitize(html)
}
