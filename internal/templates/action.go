package templates

import (
	"fmt"
	"sort"
	"strings"
)

// Action values a template:action marker may carry in its comma-separated
// action attribute.
const (
	ActionButton = "button"
	ActionOption = "option"
)

// ActionBlock combines a content block with the attributes of the
// template:action marker referencing it. Blocks are built per render or
// extraction call and never persisted; only the derived option index is.
type ActionBlock struct {
	Name         string
	RecordType   string
	MachineSlug  string
	LocationSlug string
	Label        string
	Content      string
	Actions      []string
	Tags         string
	Title        string
	Priority     string
}

// HasAction reports whether the marker's action list contains the value.
func (b ActionBlock) HasAction(action string) bool {
	for _, a := range b.Actions {
		if a == action {
			return true
		}
	}

	return false
}

// RecordType describes how one kind of maintenance record consumes a
// template prefill: which create route receives the redirect and which form
// field the block content lands in.
type RecordType struct {
	Name          string
	CreatePath    string
	MachineScoped bool
	PrefillField  string
	HasTitle      bool
	HasPriority   bool
}

// CreateURL returns the create-form route for this record type, scoped to
// the machine when the route requires one.
func (rt RecordType) CreateURL(machineSlug string) string {
	if rt.MachineScoped {
		return fmt.Sprintf(rt.CreatePath, machineSlug)
	}

	return rt.CreatePath
}

var recordTypes = map[string]RecordType{
	"problem": {
		Name:          "problem",
		CreatePath:    "/machines/%s/problems/new",
		MachineScoped: true,
		PrefillField:  "description",
		HasPriority:   true,
	},
	"log": {
		Name:          "log",
		CreatePath:    "/machines/%s/logs/new",
		MachineScoped: true,
		PrefillField:  "summary",
	},
	"partrequest": {
		Name:          "partrequest",
		CreatePath:    "/machines/%s/part-requests/new",
		MachineScoped: true,
		PrefillField:  "description",
	},
	"page": {
		Name:         "page",
		CreatePath:   "/wiki/new",
		PrefillField: "content",
		HasTitle:     true,
	},
}

// RecordTypeByName resolves a registered record type.
func RecordTypeByName(name string) (RecordType, bool) {
	rt, ok := recordTypes[name]
	return rt, ok
}

// Priorities a maintainer may set on a new problem report.
var problemPriorities = map[string]bool{
	"task":      true,
	"important": true,
	"urgent":    true,
}

var requiredActionAttrs = []string{"action", "label", "name", "type"}

// validateActionAttrs checks a template:action attribute map and returns an
// error message, or "" when the marker is valid. Checks run in a fixed
// order and the first failure wins; keys the validator does not know are
// ignored.
func validateActionAttrs(attrs map[string]string) string {
	var missing []string
	for _, key := range requiredActionAttrs {
		if _, ok := attrs[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Sprintf("missing required attributes: %s", strings.Join(missing, ", "))
	}

	for _, part := range strings.Split(attrs["action"], ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed != ActionButton && trimmed != ActionOption {
			return fmt.Sprintf("invalid action '%s' (each part must be one of %s, %s)", attrs["action"], ActionButton, ActionOption)
		}
	}

	if _, ok := recordTypes[attrs["type"]]; !ok {
		return fmt.Sprintf("invalid type '%s' (must be one of %s)", attrs["type"], strings.Join(recordTypeNames(), ", "))
	}

	if priority := strings.TrimSpace(attrs["priority"]); priority != "" && !problemPriorities[priority] {
		return fmt.Sprintf("invalid priority '%s' (must be one of %s)", priority, strings.Join(priorityNames(), ", "))
	}

	return ""
}

// actionBlockFromAttrs builds the resolved action block for a validated
// marker and its content block.
func actionBlockFromAttrs(attrs map[string]string, content string) ActionBlock {
	var actions []string
	for _, part := range strings.Split(attrs["action"], ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			actions = append(actions, trimmed)
		}
	}

	return ActionBlock{
		Name:         attrs["name"],
		RecordType:   attrs["type"],
		MachineSlug:  attrs["machine"],
		LocationSlug: attrs["location"],
		Label:        attrs["label"],
		Content:      content,
		Actions:      actions,
		Tags:         attrs["tags"],
		Title:        attrs["title"],
		Priority:     strings.TrimSpace(attrs["priority"]),
	}
}

func recordTypeNames() []string {
	names := make([]string, 0, len(recordTypes))
	for name := range recordTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func priorityNames() []string {
	names := make([]string, 0, len(problemPriorities))
	for name := range problemPriorities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
