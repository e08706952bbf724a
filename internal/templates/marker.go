package templates

import (
	"regexp"
	"sort"

	"gearbook/app/internal/markdown"
)

// Marker kinds recognized inside HTML comments in page markdown.
const (
	kindStart  = "start"
	kindEnd    = "end"
	kindAction = "action"
)

var (
	startPattern  = regexp.MustCompile(`<!--\s*template:start\s+name="([^"]+)"\s*-->`)
	endPattern    = regexp.MustCompile(`<!--\s*template:end\s+name="([^"]+)"\s*-->`)
	actionPattern = regexp.MustCompile(`<!--\s*template:action\s+([^>]*?)\s*-->`)
	kindPattern   = regexp.MustCompile(`<!--\s*template:([A-Za-z0-9_-]+)`)
	attrPattern   = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_-]*)\s*=\s*"([^"]*)"`)
)

// marker is one recognized comment marker tagged with its character span.
// The span covers the whole comment, name/attrs hold the extracted payload.
type marker struct {
	kind  string
	name  string
	attrs map[string]string
	start int
	end   int
}

// startMarkers returns every template:start marker outside the fence ranges,
// in document order.
func startMarkers(text string, fences []markdown.Range) []marker {
	return namedMarkers(text, fences, kindStart, startPattern)
}

// endMarkers returns every template:end marker outside the fence ranges, in
// document order.
func endMarkers(text string, fences []markdown.Range) []marker {
	return namedMarkers(text, fences, kindEnd, endPattern)
}

func namedMarkers(text string, fences []markdown.Range, kind string, pattern *regexp.Regexp) []marker {
	var markers []marker
	for _, match := range pattern.FindAllStringSubmatchIndex(text, -1) {
		if markdown.InFence(match[0], fences) {
			continue
		}

		markers = append(markers, marker{
			kind:  kind,
			name:  text[match[2]:match[3]],
			start: match[0],
			end:   match[1],
		})
	}

	return markers
}

// actionMarkers returns every template:action marker outside the fence
// ranges, in document order, with its attributes parsed. Unknown attribute
// keys are retained so validators can ignore what they do not need.
func actionMarkers(text string, fences []markdown.Range) []marker {
	var markers []marker
	for _, match := range actionPattern.FindAllStringSubmatchIndex(text, -1) {
		if markdown.InFence(match[0], fences) {
			continue
		}

		attrs := parseAttrs(text[match[2]:match[3]])
		markers = append(markers, marker{
			kind:  kindAction,
			name:  attrs["name"],
			attrs: attrs,
			start: match[0],
			end:   match[1],
		})
	}

	return markers
}

// unrecognizedKinds returns the distinct `template:<word>` marker kinds found
// outside fences that are not start, end, or action. These are almost always
// typos, and typos are the usual root cause of downstream structural
// failures, so callers report them alone before any other validation.
func unrecognizedKinds(text string, fences []markdown.Range) []string {
	seen := make(map[string]bool)
	var kinds []string

	for _, match := range kindPattern.FindAllStringSubmatchIndex(text, -1) {
		if markdown.InFence(match[0], fences) {
			continue
		}

		kind := text[match[2]:match[3]]
		if kind == kindStart || kind == kindEnd || kind == kindAction {
			continue
		}

		if !seen[kind] {
			seen[kind] = true
			kinds = append(kinds, "template:"+kind)
		}
	}

	sort.Strings(kinds)
	return kinds
}

// parseAttrs extracts key="value" pairs from a marker's attribute substring.
func parseAttrs(raw string) map[string]string {
	attrs := make(map[string]string)
	for _, match := range attrPattern.FindAllStringSubmatch(raw, -1) {
		attrs[match[1]] = match[2]
	}

	return attrs
}
