// Package templates renders the session configuration a run container reads:
// the .claude settings files, the project brief, and the startup script that
// launches the generation session.
package templates

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"unicode"

	"github.com/metaclaude/metaclaude"
	"github.com/metaclaude/metaclaude/agents"
)

var settingsTmpl = template.Must(template.New("settings.json").Parse(`{
  "model": "{{.Model}}",
  "project": {
    "name": "{{.ProjectName}}",
    "type": "{{.ProjectType}}",
    "complexity": "{{.Complexity}}"
  },
  "agents": [{{range $i, $a := .Agents}}{{if $i}}, {{end}}"{{$a}}"{{end}}],
  "autoCompact": false
}
`))

var mcpTmpl = template.Must(template.New("mcp.json").Parse(`{
  "mcpServers": {}
}
`))

var briefTmpl = template.Must(template.New("CLAUDE.md").Parse(`# {{.ProjectName}}

{{.Description}}

## Agents

{{range .AgentDetails}}### {{.Name}}

{{.Description}}

{{end}}## Conventions

- Generate the project under /workspace/output.
- Print "Project generation complete" as the final line when done.
`))

var startupTmpl = template.Must(template.New("startup.sh").Parse(`#!/bin/bash
set -e
echo "Starting Claude Code session..."
cd /workspace
if [ -z "$ANTHROPIC_API_KEY" ]; then
    echo "ERROR: ANTHROPIC_API_KEY is not set"
    exit 1
fi
cd /workspace/output
claude --dangerously-skip-permissions --print {{.QuotedPrompt}}
echo "Claude Code session ended"
`))

const promptText = `Please create a complete software project based on this idea: %q

Instructions:
1. Analyze the requirements and create a full project structure
2. Generate all necessary files including source code, configuration, and documentation
3. Follow best practices for the chosen technology stack
4. Create a comprehensive README with setup and usage instructions
5. Make sure the project is ready to run with minimal setup

Create this project in the current directory and print "Project generation complete" when done.`

// Manager renders run configuration from the loaded agent definitions.
type Manager struct {
	defs map[string]*agents.Definition
}

// NewManager creates a renderer over the available agent definitions.
func NewManager(defs map[string]*agents.Definition) *Manager {
	return &Manager{defs: defs}
}

type agentDetail struct {
	Name        string
	Description string
}

type renderData struct {
	Model        string
	ProjectName  string
	ProjectType  string
	Complexity   string
	Description  string
	Agents       []string
	AgentDetails []agentDetail
	QuotedPrompt string
}

// Render writes settings.json and mcp.json into the config directory,
// CLAUDE.md and startup.sh into the workspace root.
func (m *Manager) Render(layout metaclaude.Layout, info metaclaude.RenderInfo) error {
	details := make([]agentDetail, 0, len(info.Agents))
	for _, name := range info.Agents {
		detail := agentDetail{Name: name, Description: "Generated specialist agent."}
		if def, ok := m.defs[name]; ok {
			detail.Description = def.Description
		}
		details = append(details, detail)
	}

	data := renderData{
		Model:        info.Model,
		ProjectName:  ProjectName(info.Idea, info.Domains),
		ProjectType:  info.ProjectType,
		Complexity:   info.Complexity,
		Description:  projectDescription(info),
		Agents:       info.Agents,
		AgentDetails: details,
		QuotedPrompt: shellQuote(fmt.Sprintf(promptText, info.Idea)),
	}

	files := []struct {
		tmpl *template.Template
		path string
		mode os.FileMode
	}{
		{settingsTmpl, filepath.Join(layout.ConfigDir, "settings.json"), 0o644},
		{mcpTmpl, filepath.Join(layout.ConfigDir, "mcp.json"), 0o644},
		{briefTmpl, filepath.Join(layout.ConfigDir, "CLAUDE.md"), 0o644},
		{startupTmpl, filepath.Join(layout.Root, "startup.sh"), 0o755},
	}

	for _, f := range files {
		var b strings.Builder
		if err := f.tmpl.Execute(&b, data); err != nil {
			return fmt.Errorf("render %s: %w", filepath.Base(f.path), err)
		}
		if err := os.WriteFile(f.path, []byte(b.String()), f.mode); err != nil {
			return fmt.Errorf("write %s: %w", f.path, err)
		}
	}

	// Copy agent prompts alongside the settings so the session can load them.
	agentsDir := filepath.Join(layout.ConfigDir, "agents")
	if err := os.MkdirAll(agentsDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", agentsDir, err)
	}
	for _, name := range info.Agents {
		def, ok := m.defs[name]
		if !ok {
			continue
		}
		path := filepath.Join(agentsDir, name+".md")
		if err := os.WriteFile(path, []byte(def.Prompt+"\n"), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return nil
}

// ProjectName derives a CamelCase project name from the idea's leading words
// plus the first detected domain.
func ProjectName(idea string, domains []string) string {
	words := strings.Fields(idea)
	if len(words) > 5 {
		words = words[:5]
	}

	var parts []string
	for _, word := range words {
		clean := keepAlnum(word)
		if len(clean) > 2 {
			parts = append(parts, title(clean))
		}
	}

	name := strings.Join(parts, "")
	if name == "" {
		name = "GeneratedProject"
	}
	if len(domains) > 0 {
		suffix := title(domains[0])
		if !strings.Contains(strings.ToLower(name), strings.ToLower(suffix)) {
			name += suffix
		}
	}
	if len(name) > 50 {
		name = name[:50]
	}
	return name
}

// projectDescription expands the idea with the analysis summary.
func projectDescription(info metaclaude.RenderInfo) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(info.Idea))
	if len(info.Domains) > 0 {
		fmt.Fprintf(&b, "\n\nDomains: %s", strings.Join(info.Domains, ", "))
	}
	if len(info.Technologies) > 0 {
		fmt.Fprintf(&b, "\nTechnologies: %s", strings.Join(info.Technologies, ", "))
	}
	if info.Complexity != "" {
		fmt.Fprintf(&b, "\nComplexity: %s", info.Complexity)
	}
	if info.ProjectType != "" {
		fmt.Fprintf(&b, "\nProject Type: %s", info.ProjectType)
	}
	return b.String()
}

func keepAlnum(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

// shellQuote single-quotes a string for safe interpolation into the startup
// script.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
