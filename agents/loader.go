package agents

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LoadDir parses every *.md agent definition in dir. A missing directory
// yields an empty map, not an error, so a bare installation still runs with
// the fallback agent.
func LoadDir(dir string) (map[string]*Definition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*Definition{}, nil
		}
		return nil, fmt.Errorf("read agents dir: %w", err)
	}

	defs := make(map[string]*Definition)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		def, err := ParseFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		if _, dup := defs[def.Name]; dup {
			return nil, fmt.Errorf("duplicate agent name %q", def.Name)
		}
		defs[def.Name] = def
	}
	return defs, nil
}

// Names returns the sorted agent names in defs.
func Names(defs map[string]*Definition) []string {
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
