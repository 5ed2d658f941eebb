package agents

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

const sampleDef = `---
name: fullstack-engineer
description: Builds complete web applications
tools: [Bash, Read, Write, Edit]
parallelism: 2
patterns: [planner, coder]
---
# Fullstack Engineer

You build complete applications end to end.
`

func TestParse(t *testing.T) {
	def, err := Parse([]byte(sampleDef), "fullstack-engineer.md")
	if err != nil {
		t.Fatalf("Parse() returned error: %v", err)
	}

	if def.Name != "fullstack-engineer" {
		t.Errorf("Name = %q", def.Name)
	}
	if def.Description != "Builds complete web applications" {
		t.Errorf("Description = %q", def.Description)
	}
	if want := []string{"Bash", "Read", "Write", "Edit"}; !reflect.DeepEqual(def.Tools, want) {
		t.Errorf("Tools = %v, want %v", def.Tools, want)
	}
	if def.Parallelism != 2 {
		t.Errorf("Parallelism = %d, want 2", def.Parallelism)
	}
	if want := []string{"planner", "coder"}; !reflect.DeepEqual(def.Patterns, want) {
		t.Errorf("Patterns = %v, want %v", def.Patterns, want)
	}
	if !strings.HasPrefix(def.Prompt, "# Fullstack Engineer") {
		t.Errorf("Prompt should start with the markdown body, got %q", def.Prompt)
	}
}

func TestParseDefaults(t *testing.T) {
	content := "---\ndescription: minimal\ntools: [Bash]\n---\nbody\n"
	def, err := Parse([]byte(content), filepath.Join("defs", "qa-engineer.md"))
	if err != nil {
		t.Fatalf("Parse() returned error: %v", err)
	}
	if def.Name != "qa-engineer" {
		t.Errorf("Name = %q, want name derived from filename", def.Name)
	}
	if def.Parallelism != 1 {
		t.Errorf("Parallelism = %d, want default 1", def.Parallelism)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no frontmatter", "# Just markdown\n"},
		{"unterminated frontmatter", "---\nname: x\ntools: [Bash]\n"},
		{"no tools", "---\nname: x\n---\nbody\n"},
		{"parallelism too high", "---\nname: x\ntools: [Bash]\nparallelism: 11\n---\nbody\n"},
		{"unknown pattern", "---\nname: x\ntools: [Bash]\npatterns: [wizard]\n---\nbody\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.content), "x.md"); err == nil {
				t.Errorf("Parse() should have failed for %s", tt.name)
			}
		})
	}
}

func TestUnknownTools(t *testing.T) {
	def := &Definition{Name: "x", Tools: []string{"Bash", "Teleport", "Read"}}
	got := UnknownTools(def)
	if want := []string{"Teleport"}; !reflect.DeepEqual(got, want) {
		t.Errorf("UnknownTools() = %v, want %v", got, want)
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"fullstack-engineer.md": sampleDef,
		"qa-engineer.md":        "---\nname: qa-engineer\ntools: [Bash, Read]\n---\nTest everything.\n",
		"notes.txt":             "not an agent",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	defs, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir() returned error: %v", err)
	}
	if want := []string{"fullstack-engineer", "qa-engineer"}; !reflect.DeepEqual(Names(defs), want) {
		t.Errorf("Names() = %v, want %v", Names(defs), want)
	}
}

func TestLoadDirMissing(t *testing.T) {
	defs, err := LoadDir(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("LoadDir() on a missing dir should not fail: %v", err)
	}
	if len(defs) != 0 {
		t.Errorf("len(defs) = %d, want 0", len(defs))
	}
}

func TestLoadDirDuplicateName(t *testing.T) {
	dir := t.TempDir()
	dup := "---\nname: same\ntools: [Bash]\n---\nbody\n"
	for _, name := range []string{"a.md", "b.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(dup), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := LoadDir(dir); err == nil {
		t.Error("LoadDir() should reject duplicate agent names")
	}
}
