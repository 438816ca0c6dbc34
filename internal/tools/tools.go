// Package tools classifies agent tool names into read-only, mutating, and
// unknown classes. Classification is the first input to the gate: read-only
// tools bypass phase gating entirely, while mutating and unclassified tools
// require Ready phase or an override.
//
// The registry fails closed: any name not registered as read-only is
// gateable, so newly introduced tool types are gated until someone
// explicitly classifies them.
package tools

import "sort"

// ToolClass categorizes an agent action by its effect.
type ToolClass int

const (
	// ClassRead marks tools that only observe state. Never gated.
	ClassRead ToolClass = iota
	// ClassWrite marks tools that mutate state. Gated.
	ClassWrite
	// ClassUnknown marks unregistered tools. Gated, same as write.
	ClassUnknown
)

// String returns the string representation of the class.
func (c ToolClass) String() string {
	switch c {
	case ClassRead:
		return "read"
	case ClassWrite:
		return "write"
	default:
		return "unknown"
	}
}

// Registry maps tool names to classes. Extension is a data change: register
// a new name rather than editing classification logic. The zero value is
// unusable; construct with NewRegistry or DefaultRegistry.
type Registry struct {
	classes map[string]ToolClass
}

// NewRegistry creates an empty registry. Every name classifies as Unknown
// until registered.
func NewRegistry() *Registry {
	return &Registry{classes: make(map[string]ToolClass)}
}

// DefaultRegistry returns a registry seeded with the standard Claude Code
// tool names.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	for _, name := range []string{
		"Glob",
		"Grep",
		"Read",
		"LS",
		"WebFetch",
		"WebSearch",
		"TaskOutput",
	} {
		r.Register(name, ClassRead)
	}

	for _, name := range []string{
		"Edit",
		"Write",
		"Bash",
		"Task",
		"NotebookEdit",
		"KillShell",
		"TodoWrite",
	} {
		r.Register(name, ClassWrite)
	}

	return r
}

// Register records a classification for a tool name, replacing any
// previous entry.
func (r *Registry) Register(name string, class ToolClass) {
	r.classes[name] = class
}

// Classify returns the class for a tool name. Total over all strings:
// unregistered names classify as Unknown.
func (r *Registry) Classify(name string) ToolClass {
	if class, ok := r.classes[name]; ok {
		return class
	}
	return ClassUnknown
}

// RequiresGating reports whether a tool must pass the phase gate before
// running. Unknown behaves identically to Write here: only a registered
// read-only tool skips the gate.
func (r *Registry) RequiresGating(name string) bool {
	return r.Classify(name) != ClassRead
}

// ReadTools returns the sorted list of registered read-only tool names.
// Used by context injection to tell the agent which tools stay available
// while the gate is closed.
func (r *Registry) ReadTools() []string {
	var names []string
	for name, class := range r.classes {
		if class == ClassRead {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
