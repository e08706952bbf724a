package templates

import "gearbook/app/internal/markdown"

// OptionBlocks returns the action blocks whose action list contains
// "option": the source rows for the persisted option index. Markers sharing
// a name are deduplicated, first occurrence wins: index derivation is
// tolerant of repetition, unlike the structural validator's strict
// duplicate-name rule for start markers.
//
// A structurally invalid page contributes no option blocks, so a broken edit
// empties the page's slice of the index rather than preserving stale rows.
func (p *Processor) OptionBlocks(text string) []ActionBlock {
	validation := ValidateMarkers(text)
	if !validation.IsValid() {
		return nil
	}

	blocks := make(map[string]string, len(validation.ContentBlocks))
	for _, block := range validation.ContentBlocks {
		blocks[block.Name] = block.Content
	}

	var options []ActionBlock
	seen := make(map[string]bool)

	fences := markdown.FencedRanges(text)
	for _, m := range actionMarkers(text, fences) {
		if validateActionAttrs(m.attrs) != "" {
			continue
		}

		content, ok := blocks[m.name]
		if !ok {
			continue
		}

		block := actionBlockFromAttrs(m.attrs, content)
		if !block.HasAction(ActionOption) {
			continue
		}

		if seen[block.Name] {
			continue
		}
		seen[block.Name] = true

		options = append(options, block)
	}

	return options
}
