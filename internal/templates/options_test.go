package templates

import "testing"

func TestOptionBlocksIndexesOptionActions(t *testing.T) {
	t.Parallel()

	processor := newTestProcessor(t)

	text := startMarker("pick") + "content" + endMarker("pick") + "\n" +
		actionMarker(`name="pick" action="button,option" type="problem" machine="blackout" label="Pick Me" priority="task"`)

	options := processor.OptionBlocks(text)

	if len(options) != 1 {
		t.Fatalf("expected one option block, got %d", len(options))
	}

	block := options[0]
	if block.Name != "pick" || block.RecordType != "problem" || block.MachineSlug != "blackout" {
		t.Fatalf("unexpected option block %+v", block)
	}
}

func TestOptionBlocksSkipsButtonOnlyActions(t *testing.T) {
	t.Parallel()

	processor := newTestProcessor(t)

	text := startMarker("x") + "content" + endMarker("x") + "\n" +
		actionMarker(`name="x" action="button" type="problem" label="Go"`)

	if options := processor.OptionBlocks(text); len(options) != 0 {
		t.Fatalf("expected no option blocks for button-only marker, got %v", options)
	}
}

func TestOptionBlocksFirstOccurrenceWins(t *testing.T) {
	t.Parallel()

	processor := newTestProcessor(t)

	text := startMarker("dup") + "content" + endMarker("dup") + "\n" +
		actionMarker(`name="dup" action="option" type="log" label="First"`) + "\n" +
		actionMarker(`name="dup" action="option" type="log" label="Second"`)

	options := processor.OptionBlocks(text)

	if len(options) != 1 {
		t.Fatalf("expected duplicates deduplicated, got %d blocks", len(options))
	}

	if options[0].Label != "First" {
		t.Fatalf("expected first occurrence to win, got %q", options[0].Label)
	}
}

func TestOptionBlocksExcludesInvalidMarkers(t *testing.T) {
	t.Parallel()

	processor := newTestProcessor(t)

	text := startMarker("x") + "content" + endMarker("x") + "\n" +
		actionMarker(`name="x" action="option" type="problem" label="Go" priority="not-a-real-priority"`)

	if options := processor.OptionBlocks(text); len(options) != 0 {
		t.Fatalf("expected invalid marker excluded from index, got %v", options)
	}
}

func TestOptionBlocksExcludesOrphans(t *testing.T) {
	t.Parallel()

	processor := newTestProcessor(t)

	text := actionMarker(`name="nowhere" action="option" type="log" label="Lost"`)

	if options := processor.OptionBlocks(text); len(options) != 0 {
		t.Fatalf("expected orphan action excluded, got %v", options)
	}
}

func TestOptionBlocksEmptyOnStructuralFailure(t *testing.T) {
	t.Parallel()

	processor := newTestProcessor(t)

	text := startMarker("broken") + "\n" +
		actionMarker(`name="broken" action="option" type="log" label="Go"`)

	if options := processor.OptionBlocks(text); options != nil {
		t.Fatalf("expected nil on structural failure, got %v", options)
	}
}
