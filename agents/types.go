// Package agents loads agent definitions and selects the set of agents for a
// project idea. Definitions are markdown files with a YAML frontmatter block:
//
//	---
//	name: fullstack-engineer
//	description: Builds complete web applications
//	tools: [Bash, Read, Write, Edit]
//	parallelism: 2
//	patterns: [planner, coder]
//	---
//	# System prompt
//	Instructions markdown here...
package agents

// Definition is one parsed agent definition.
type Definition struct {
	// Name is the unique agent identifier.
	Name string `yaml:"name"`

	// Description briefly describes what the agent does.
	Description string `yaml:"description"`

	// Tools the agent may use inside the session.
	Tools []string `yaml:"tools"`

	// Parallelism bounds the agent's concurrent operations (1-10).
	Parallelism int `yaml:"parallelism"`

	// Patterns are the behavioral roles the agent covers.
	Patterns []string `yaml:"patterns"`

	// Prompt is the markdown body used as the agent's system prompt.
	Prompt string `yaml:"-"`

	// path is the source file (internal).
	path string
}

// Path returns the file the definition was parsed from.
func (d *Definition) Path() string {
	return d.path
}

// knownTools are the tool names a session understands. Unknown names parse
// fine but are worth flagging to the operator.
var knownTools = map[string]bool{
	"Bash": true, "Read": true, "Write": true, "Edit": true, "MultiEdit": true,
	"Glob": true, "Grep": true, "LS": true, "WebFetch": true, "WebSearch": true,
	"TodoWrite": true, "Task": true, "NotebookRead": true, "NotebookEdit": true,
}

// knownPatterns are the recognized behavioral roles.
var knownPatterns = map[string]bool{
	"planner": true, "coder": true, "tester": true, "researcher": true,
}
