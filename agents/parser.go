package agents

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseFile parses a single agent definition file.
func ParseFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return Parse(data, path)
}

// Parse parses agent definition content.
func Parse(data []byte, path string) (*Definition, error) {
	frontmatter, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	def := &Definition{path: path}
	if err := yaml.Unmarshal(frontmatter, def); err != nil {
		return nil, fmt.Errorf("%s: parse frontmatter: %w", path, err)
	}
	def.Prompt = strings.TrimSpace(string(body))

	if def.Name == "" {
		def.Name = deriveNameFromPath(path)
	}
	if def.Parallelism == 0 {
		def.Parallelism = 1
	}
	if err := validate(def); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// splitFrontmatter separates the YAML frontmatter block from the markdown
// body. The frontmatter is required for agent definitions.
func splitFrontmatter(data []byte) (frontmatter, body []byte, err error) {
	delim := []byte("---")
	trimmed := bytes.TrimLeft(data, "\n\r ")
	if !bytes.HasPrefix(trimmed, delim) {
		return nil, nil, fmt.Errorf("missing frontmatter")
	}

	rest := bytes.TrimPrefix(trimmed, delim)
	end := bytes.Index(rest, append([]byte("\n"), delim...))
	if end < 0 {
		return nil, nil, fmt.Errorf("unterminated frontmatter")
	}

	frontmatter = rest[:end]
	body = rest[end+1+len(delim):]
	return frontmatter, body, nil
}

// validate checks the definition's invariants.
func validate(def *Definition) error {
	if len(def.Tools) == 0 {
		return fmt.Errorf("agent %s: at least one tool must be specified", def.Name)
	}
	if def.Parallelism < 1 || def.Parallelism > 10 {
		return fmt.Errorf("agent %s: parallelism must be between 1 and 10", def.Name)
	}
	for _, p := range def.Patterns {
		if !knownPatterns[p] {
			return fmt.Errorf("agent %s: unknown pattern %q", def.Name, p)
		}
	}
	return nil
}

// UnknownTools lists tools in the definition a session will not recognize.
func UnknownTools(def *Definition) []string {
	var unknown []string
	for _, t := range def.Tools {
		if !knownTools[t] {
			unknown = append(unknown, t)
		}
	}
	return unknown
}

// deriveNameFromPath turns "fullstack-engineer.md" into "fullstack-engineer".
func deriveNameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
