package markdown

import (
	"strings"

	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
)

// Range is a half-open [Start, End) span of character offsets into a text.
type Range struct {
	Start int
	End   int
}

// Contains reports whether the position falls inside the range.
func (r Range) Contains(pos int) bool {
	return pos >= r.Start && pos < r.End
}

// fenceEngine shares the renderer's parser configuration, so positions
// excluded by FencedRanges line up with what the renderer emits as code.
var fenceEngine = newEngine()

// FencedRanges returns the span of every fenced code block in the text,
// container-nested fences (list items, blockquotes) included. The ranges are
// sourced from goldmark's own parse: each block's content lines are covered
// in full, extended over the opening delimiter line and, when the block is
// explicitly closed, the closing delimiter line. A fence that runs unclosed
// to the end of its container covers through its last content line.
//
// Offsets are invalidated by any text mutation; callers recompute ranges
// after every substitution pass.
func FencedRanges(text string) []Range {
	if text == "" {
		return nil
	}

	root := fenceEngine.Parser().Parse(gmtext.NewReader([]byte(text)))

	var ranges []Range
	_ = ast.Walk(root, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		fence, ok := node.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}

		lines := fence.Lines()
		if lines.Len() == 0 {
			// A fence without content lines cannot contain a marker.
			return ast.WalkContinue, nil
		}

		contentStart := lineStart(text, lines.At(0).Start)
		start := contentStart
		if contentStart > 0 {
			// The opening delimiter sits on the line before the first
			// content line.
			start = lineStart(text, contentStart-1)
		}

		end := lineEnd(text, lines.At(lines.Len()-1).Stop-1)

		ch, length := fenceDelimiter(text[start:contentStart])
		if closerEnd, closed := closerLineEnd(text, end, ch, length); closed {
			end = closerEnd
		}

		ranges = append(ranges, Range{Start: start, End: end})
		return ast.WalkContinue, nil
	})

	return ranges
}

// InFence reports whether the position falls inside any of the ranges.
func InFence(pos int, ranges []Range) bool {
	for _, r := range ranges {
		if r.Contains(pos) {
			return true
		}
	}

	return false
}

// lineStart returns the offset of the first character of the line containing
// pos.
func lineStart(text string, pos int) int {
	if pos > len(text) {
		pos = len(text)
	}
	for pos > 0 && text[pos-1] != '\n' {
		pos--
	}
	return pos
}

// lineEnd returns the offset one past the newline of the line containing
// pos, or len(text) for the final unterminated line.
func lineEnd(text string, pos int) int {
	if pos < 0 {
		pos = 0
	}
	for pos < len(text) && text[pos] != '\n' {
		pos++
	}
	if pos < len(text) {
		pos++
	}
	return pos
}

// fenceDelimiter picks the fence character and run length out of an opening
// delimiter line, container prefix and indentation ignored.
func fenceDelimiter(line string) (byte, int) {
	for i := 0; i < len(line); i++ {
		if line[i] == '`' || line[i] == '~' {
			return line[i], runLength(line[i:], line[i])
		}
	}
	return 0, 0
}

// closerLineEnd reports the end offset of the line at pos when that line is
// the fence's closing delimiter: at least as many of the fence character as
// the opener with nothing after but spaces, container prefix ignored. The
// parse already placed the end of the content before pos; this only settles
// whether the following line is the block's closer or unrelated text after a
// container-terminated fence.
func closerLineEnd(text string, pos int, ch byte, minLen int) (int, bool) {
	if ch == 0 || minLen == 0 || pos >= len(text) {
		return 0, false
	}

	end := lineEnd(text, pos)
	line := strings.TrimRight(text[pos:end], "\n")
	trimmed := strings.TrimLeft(line, " \t>")

	run := runLength(trimmed, ch)
	if run < minLen {
		return 0, false
	}
	if strings.TrimRight(trimmed[run:], " \t") != "" {
		return 0, false
	}

	return end, true
}

func runLength(s string, ch byte) int {
	length := 0
	for length < len(s) && s[length] == ch {
		length++
	}

	return length
}
