package agents

import (
	"sort"

	"github.com/metaclaude/metaclaude/analyze"
)

// DefaultMaxAgents bounds how many agents one run uses.
const DefaultMaxAgents = 4

// FallbackAgent is selected when nothing else matches.
const FallbackAgent = "fullstack-engineer"

// domainAgents maps detected domains to the agents that serve them.
var domainAgents = map[string][]string{
	"web":        {"fullstack-engineer"},
	"mobile":     {"fullstack-engineer"},
	"ml":         {"ml-dl-engineer"},
	"data":       {"ml-dl-engineer", "fullstack-engineer"},
	"devops":     {"devops-engineer"},
	"desktop":    {"fullstack-engineer"},
	"game":       {"fullstack-engineer"},
	"blockchain": {"fullstack-engineer"},
	"testing":    {"qa-engineer"},
}

// techAgents maps detected technologies to agents.
var techAgents = map[string][]string{
	"python":     {"ml-dl-engineer", "fullstack-engineer", "qa-engineer"},
	"javascript": {"fullstack-engineer", "qa-engineer"},
	"typescript": {"fullstack-engineer", "qa-engineer"},
	"react":      {"fullstack-engineer"},
	"node":       {"fullstack-engineer"},
	"docker":     {"devops-engineer", "fullstack-engineer"},
	"kubernetes": {"devops-engineer"},
	"aws":        {"devops-engineer"},
	"terraform":  {"devops-engineer"},
	"pytorch":    {"ml-dl-engineer"},
	"tensorflow": {"ml-dl-engineer"},
}

// Selector picks agents for an idea from the loaded definitions.
type Selector struct {
	available map[string]*Definition
	maxAgents int
}

// NewSelector creates a selector over the available definitions.
func NewSelector(available map[string]*Definition) *Selector {
	return &Selector{available: available, maxAgents: DefaultMaxAgents}
}

// Select resolves the agent list for an idea. Forced agents win when they are
// available; otherwise selection follows the analysis: domain and technology
// matches, extra qa/devops coverage for complex or substantial ideas, and the
// fullstack fallback when nothing matched.
func (s *Selector) Select(idea string, analysis analyze.Result, force []string) []string {
	picked := make(map[string]bool)

	if len(force) > 0 {
		for _, name := range force {
			if s.known(name) {
				picked[name] = true
			}
		}
		if len(picked) > 0 {
			return s.limit(picked)
		}
	}

	for _, domain := range analysis.Domains {
		for _, agent := range domainAgents[domain] {
			picked[agent] = true
		}
	}
	for _, tech := range analysis.Technologies {
		for _, agent := range techAgents[tech] {
			picked[agent] = true
		}
	}

	switch analysis.Complexity {
	case "high":
		picked["devops-engineer"] = true
		picked["qa-engineer"] = true
	case "medium":
		if len(picked) < s.maxAgents {
			picked["qa-engineer"] = true
		}
	}

	// Substantial ideas get QA coverage regardless of domain.
	if analysis.WordCount > 20 {
		picked["qa-engineer"] = true
	}

	if len(picked) == 0 {
		picked[FallbackAgent] = true
	}

	return s.limit(picked)
}

// known reports whether an agent definition exists, or accepts everything
// when no definitions were loaded.
func (s *Selector) known(name string) bool {
	if len(s.available) == 0 {
		return true
	}
	_, ok := s.available[name]
	return ok
}

// limit drops agents without definitions and caps the list at maxAgents,
// in stable sorted order.
func (s *Selector) limit(picked map[string]bool) []string {
	names := make([]string, 0, len(picked))
	for name := range picked {
		if s.known(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if len(names) > s.maxAgents {
		names = names[:s.maxAgents]
	}
	if len(names) == 0 {
		names = []string{FallbackAgent}
	}
	return names
}
