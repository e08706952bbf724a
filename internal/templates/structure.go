package templates

import (
	"fmt"
	"sort"

	"gearbook/app/internal/markdown"
)

// ContentBlock is the named span of markdown between a matched
// template:start / template:end pair. Blocks are derived per validation pass
// and never persisted.
type ContentBlock struct {
	Name    string
	Content string
}

// Validation is the outcome of a structural pass over page markdown. Errors
// and content blocks are mutually exclusive: a structurally broken page
// yields a full error list and no blocks, a valid page yields the complete
// block set and no errors.
type Validation struct {
	ContentBlocks []ContentBlock
	Errors        []string
}

// IsValid reports whether the structural pass found no errors.
func (v Validation) IsValid() bool {
	return len(v.Errors) == 0
}

// ValidateMarkers runs the structural pass: it pairs start and end markers
// outside code fences into content blocks, collecting every nesting,
// duplicate-name, unmatched-end, and missing-end error in one walk. An
// unrecognized marker kind short-circuits the walk entirely and is reported
// alone.
func ValidateMarkers(text string) Validation {
	fences := markdown.FencedRanges(text)

	if typos := unrecognizedKinds(text, fences); len(typos) > 0 {
		errs := make([]string, 0, len(typos))
		for _, typo := range typos {
			errs = append(errs, fmt.Sprintf("unrecognized marker '%s'", typo))
		}
		return Validation{Errors: errs}
	}

	stream := append(startMarkers(text, fences), endMarkers(text, fences)...)
	sort.Slice(stream, func(i, j int) bool { return stream[i].start < stream[j].start })

	type matched struct {
		open  marker
		close marker
	}

	var errs []string
	var pairs []matched
	seen := make(map[string]bool)
	var open *marker

	for i := range stream {
		m := stream[i]
		switch m.kind {
		case kindStart:
			if open != nil {
				errs = append(errs, fmt.Sprintf("template '%s': nested inside '%s' (nesting not allowed)", m.name, open.name))
			}
			if seen[m.name] {
				errs = append(errs, fmt.Sprintf("template '%s': duplicate name", m.name))
			}
			seen[m.name] = true
			if open == nil {
				open = &stream[i]
			}
		case kindEnd:
			if open == nil || open.name != m.name {
				errs = append(errs, fmt.Sprintf("unmatched template:end '%s' (no matching template:start)", m.name))
				continue
			}
			pairs = append(pairs, matched{open: *open, close: m})
			open = nil
		}
	}

	if open != nil {
		errs = append(errs, fmt.Sprintf("template '%s': missing template:end", open.name))
	}

	if len(errs) > 0 {
		return Validation{Errors: errs}
	}

	blocks := make([]ContentBlock, 0, len(pairs))
	for _, pair := range pairs {
		blocks = append(blocks, ContentBlock{
			Name:    pair.open.name,
			Content: text[pair.open.end:pair.close.start],
		})
	}

	return Validation{ContentBlocks: blocks}
}
