package markdown

import (
	"strings"
	"testing"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	gmtext "github.com/yuin/goldmark/text"
)

func TestFencedRangesEmptyText(t *testing.T) {
	t.Parallel()

	if ranges := FencedRanges(""); len(ranges) != 0 {
		t.Fatalf("expected no ranges for empty text, got %v", ranges)
	}
}

func TestFencedRangesBacktickFence(t *testing.T) {
	t.Parallel()

	text := "before\n```\ncode line\n```\nafter\n"
	ranges := FencedRanges(text)

	if len(ranges) != 1 {
		t.Fatalf("expected one range, got %v", ranges)
	}

	fenced := text[ranges[0].Start:ranges[0].End]
	if fenced != "```\ncode line\n```\n" {
		t.Fatalf("unexpected fenced span %q", fenced)
	}
}

func TestFencedRangesTildeFenceWithInfoString(t *testing.T) {
	t.Parallel()

	text := "~~~python\nprint(1)\n~~~\n"
	ranges := FencedRanges(text)

	if len(ranges) != 1 {
		t.Fatalf("expected one range, got %v", ranges)
	}

	if ranges[0].Start != 0 || ranges[0].End != len(text) {
		t.Fatalf("expected range covering whole text, got %v", ranges[0])
	}
}

func TestFencedRangesUnclosedFenceRunsToEnd(t *testing.T) {
	t.Parallel()

	text := "intro\n```\nstill code"
	ranges := FencedRanges(text)

	if len(ranges) != 1 {
		t.Fatalf("expected one range, got %v", ranges)
	}

	if ranges[0].End != len(text) {
		t.Fatalf("expected unclosed fence to reach end of text, got %v", ranges[0])
	}
}

func TestFencedRangesCloserMustMatchOpener(t *testing.T) {
	t.Parallel()

	// A shorter run and a different character both fail to close the fence.
	text := "````\ncode\n```\n~~~~\nmore\n````\ntail\n"
	ranges := FencedRanges(text)

	if len(ranges) != 1 {
		t.Fatalf("expected one range, got %v", ranges)
	}

	fenced := text[ranges[0].Start:ranges[0].End]
	if fenced != "````\ncode\n```\n~~~~\nmore\n````\n" {
		t.Fatalf("unexpected fenced span %q", fenced)
	}
}

func TestFencedRangesDeepIndentIsNotAFence(t *testing.T) {
	t.Parallel()

	text := "    ```\nnot a fence opener\n"
	if ranges := FencedRanges(text); len(ranges) != 0 {
		t.Fatalf("expected no ranges, got %v", ranges)
	}
}

func TestFencedRangesInsideListItem(t *testing.T) {
	t.Parallel()

	text := "- ```\n  <!-- template:start name=\"x\" -->\n  ```\n\ntail text\n"
	ranges := FencedRanges(text)

	if len(ranges) != 1 {
		t.Fatalf("expected one range, got %v", ranges)
	}

	markerPos := strings.Index(text, "<!--")
	if !InFence(markerPos, ranges) {
		t.Fatalf("expected marker inside list-nested fence to be covered, got %v", ranges)
	}

	tailPos := strings.Index(text, "tail text")
	if InFence(tailPos, ranges) {
		t.Fatalf("expected text after list-nested fence to be outside ranges, got %v", ranges)
	}
}

func TestFencedRangesInsideBlockquote(t *testing.T) {
	t.Parallel()

	text := "> ```\n> quoted code\n> ```\nafter\n"
	ranges := FencedRanges(text)

	if len(ranges) != 1 {
		t.Fatalf("expected one range, got %v", ranges)
	}

	fenced := text[ranges[0].Start:ranges[0].End]
	if fenced != "> ```\n> quoted code\n> ```\n" {
		t.Fatalf("unexpected fenced span %q", fenced)
	}

	if InFence(strings.Index(text, "after"), ranges) {
		t.Fatalf("expected text after blockquote fence to be outside ranges, got %v", ranges)
	}
}

func TestInFence(t *testing.T) {
	t.Parallel()

	ranges := []Range{{Start: 5, End: 10}, {Start: 20, End: 25}}

	cases := []struct {
		pos  int
		want bool
	}{
		{0, false},
		{5, true},
		{9, true},
		{10, false},
		{22, true},
		{25, false},
	}

	for _, tc := range cases {
		if got := InFence(tc.pos, ranges); got != tc.want {
			t.Errorf("InFence(%d) = %v, want %v", tc.pos, got, tc.want)
		}
	}
}

// TestFencedRangesAgreeWithRenderer pins the reported ranges to the
// renderer's own fence detection: every fenced code block goldmark parses,
// container-nested blocks included, must have its content covered, and
// nothing outside fenced blocks may be covered.
func TestFencedRangesAgreeWithRenderer(t *testing.T) {
	t.Parallel()

	samples := []string{
		"plain paragraph\n\n```\ncode\n```\n\ntail\n",
		"~~~\nfirst\n~~~\n\ntext\n\n```go\nsecond\n```\n",
		"```\n<!-- template:start name=\"x\" -->\n```\n",
		"para\n\n````md\nnested ``` fence text\n````\n",
		"unclosed\n\n```\ntrailing code",
		"- ```\n  <!-- template:start name=\"x\" -->\n  ```\n\n<!-- template:end name=\"x\" -->\n",
		"> ```\n> fenced quote\n> ```\n\ntail\n",
		"1. item\n\n   ```\n   ordered item code\n   ```\n\nend\n",
		"> - ```\n>   deep code\n>   ```\n",
		"- ```\n  item code, fence closed by list end\n\nplain paragraph\n",
	}

	engine := goldmark.New(goldmark.WithExtensions(extension.GFM))

	for _, sample := range samples {
		source := []byte(sample)
		ranges := FencedRanges(sample)

		document := engine.Parser().Parse(gmtext.NewReader(source))

		fencedCount := 0
		err := ast.Walk(document, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
			if !entering {
				return ast.WalkContinue, nil
			}

			fenced, ok := node.(*ast.FencedCodeBlock)
			if !ok {
				return ast.WalkContinue, nil
			}

			lines := fenced.Lines()
			if lines.Len() == 0 {
				return ast.WalkContinue, nil
			}

			fencedCount++
			for i := 0; i < lines.Len(); i++ {
				segment := lines.At(i)
				if !InFence(segment.Start, ranges) {
					t.Errorf("sample %q: fenced content at %d not covered by %v", sample, segment.Start, ranges)
				}
			}

			return ast.WalkContinue, nil
		})
		if err != nil {
			t.Fatalf("walking AST: %v", err)
		}

		if fencedCount != len(ranges) {
			t.Errorf("sample %q: goldmark found %d fenced blocks, scanner found %d", sample, fencedCount, len(ranges))
		}
	}
}
