package templates

import (
	"fmt"
	"html"
	"net/url"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"gearbook/app/internal/markdown"
)

// Processor drives marker validation, token substitution, and button
// injection around the external markdown render/sanitize boundary. It is
// stateless; every call receives the full page text and returns fresh
// results.
type Processor struct {
	logger *logrus.Logger
}

// NewProcessor wires the marker processor with its logger.
func NewProcessor(logger *logrus.Logger) (*Processor, error) {
	if logger == nil {
		return nil, eris.New("logger is required")
	}

	return &Processor{logger: logger}, nil
}

// ValidateSyntax is the author-facing, save-time check. It reports every
// independent problem found: unrecognized marker kinds short-circuit
// everything else, structural errors short-circuit attribute errors, and
// orphaned action names are reported once per distinct name. An empty list
// means the save may proceed.
func (p *Processor) ValidateSyntax(text string) []string {
	validation := ValidateMarkers(text)
	if !validation.IsValid() {
		return validation.Errors
	}

	blockNames := make(map[string]bool, len(validation.ContentBlocks))
	for _, block := range validation.ContentBlocks {
		blockNames[block.Name] = true
	}

	var errs []string
	orphans := make(map[string]bool)

	fences := markdown.FencedRanges(text)
	for _, m := range actionMarkers(text, fences) {
		if msg := validateActionAttrs(m.attrs); msg != "" {
			errs = append(errs, actionError(m.name, msg))
			continue
		}

		if !blockNames[m.name] && !orphans[m.name] {
			orphans[m.name] = true
			errs = append(errs, actionError(m.name, "no matching content block"))
		}
	}

	return errs
}

func actionError(name, msg string) string {
	if name == "" {
		return fmt.Sprintf("template:action: %s", msg)
	}

	return fmt.Sprintf("template:action '%s': %s", name, msg)
}

// PrepareForRendering transforms page markdown for the external renderer:
// structural markers are stripped, valid button actions are replaced with
// opaque tokens, and everything else action-shaped is removed. It must run
// before markdown rendering so markers never reach the markdown parser.
//
// Render time is the permissive régime: on any structural defect the text is
// returned unchanged with an empty token map, so a broken page degrades to
// plain markdown instead of leaking partial button artifacts. Invalid action
// markers are logged and dropped silently; save-time validation already
// gated what reaches storage.
func (p *Processor) PrepareForRendering(text string) (string, map[string]ActionBlock) {
	tokens := make(map[string]ActionBlock)

	validation := ValidateMarkers(text)
	if !validation.IsValid() {
		p.logger.WithFields(logrus.Fields{
			"errors": strings.Join(validation.Errors, "; "),
		}).Warn("page has invalid template markers, rendering unprocessed")
		return text, tokens
	}

	blocks := make(map[string]string, len(validation.ContentBlocks))
	for _, block := range validation.ContentBlocks {
		blocks[block.Name] = block.Content
	}

	processed := stripStructuralMarkers(text)

	// Substitutions shift offsets, so fence ranges are recomputed before
	// every replacement instead of reused across passes.
	for {
		fences := markdown.FencedRanges(processed)
		markers := actionMarkers(processed, fences)
		if len(markers) == 0 {
			break
		}

		m := markers[0]
		replacement := ""

		if msg := validateActionAttrs(m.attrs); msg != "" {
			p.logger.WithFields(logrus.Fields{
				"template": m.name,
				"reason":   msg,
			}).Warn("dropping invalid template:action marker")
		} else if content, ok := blocks[m.name]; !ok {
			p.logger.WithField("template", m.name).Warn("dropping template:action marker with no content block")
		} else if block := actionBlockFromAttrs(m.attrs, content); block.HasAction(ActionButton) {
			token := newToken()
			tokens[token] = block
			replacement = token
		}
		// Option-only markers exist for the index, not inline display.

		processed = processed[:m.start] + replacement + processed[m.end:]
	}

	return processed, tokens
}

// stripStructuralMarkers removes start/end markers one at a time, leaving
// the content between them untouched. Fence ranges are recomputed after each
// removal.
func stripStructuralMarkers(text string) string {
	for {
		fences := markdown.FencedRanges(text)
		markers := append(startMarkers(text, fences), endMarkers(text, fences)...)
		if len(markers) == 0 {
			return text
		}

		sort.Slice(markers, func(i, j int) bool { return markers[i].start < markers[j].start })
		m := markers[0]
		text = text[:m.start] + text[m.end:]
	}
}

// InjectButtons replaces each token in sanitized HTML with its button
// markup. It must run after sanitization: the injected markup is trusted and
// would otherwise be mangled by rules meant for user content. A token the
// markdown renderer wrapped in its own paragraph is collapsed to the button
// markup directly.
func (p *Processor) InjectButtons(html string, tokens map[string]ActionBlock, pageID uint) string {
	for token, block := range tokens {
		markup := buttonMarkup(block, pageID)
		if wrapped := "<p>" + token + "</p>"; strings.Contains(html, wrapped) {
			html = strings.Replace(html, wrapped, markup, 1)
		} else {
			html = strings.Replace(html, token, markup, 1)
		}
	}

	return html
}

func buttonMarkup(block ActionBlock, pageID uint) string {
	href := fmt.Sprintf("/wiki/%d/templates/%s", pageID, url.PathEscape(block.Name))
	return fmt.Sprintf(`<div class="template-action"><a class="template-button" href="%s">%s</a></div>`,
		href, html.EscapeString(block.Label))
}

// Extract returns the action block for one named content block, or nil when
// the page is structurally invalid, the name has no content block, or no
// valid action marker references it. Action markers sharing a name are
// expected to carry identical attributes, so the first one in document order
// wins.
func (p *Processor) Extract(text, name string) *ActionBlock {
	validation := ValidateMarkers(text)
	if !validation.IsValid() {
		return nil
	}

	content := ""
	found := false
	for _, block := range validation.ContentBlocks {
		if block.Name == name {
			content = block.Content
			found = true
			break
		}
	}
	if !found {
		return nil
	}

	fences := markdown.FencedRanges(text)
	for _, m := range actionMarkers(text, fences) {
		if m.name != name {
			continue
		}
		if validateActionAttrs(m.attrs) != "" {
			continue
		}

		block := actionBlockFromAttrs(m.attrs, content)
		return &block
	}

	return nil
}

// newToken returns an opaque placeholder safe to pass through the markdown
// renderer and sanitizer: fixed-length random hex never collides with
// sanitizer-permitted markup and is not guessable across concurrent renders.
// Collision probability across calls is treated as negligible.
func newToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
