package metaclaude

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

const (
	outputDirName    = "metaclaude_output"
	configSubdir     = ".claude"
	outputSubdir     = "output"
	maxIdeaNameChars = 30
)

// Layout describes the per-run workspace directory tree. The config
// subdirectory receives rendered agent configuration; the output subdirectory
// is where generated artifacts land.
type Layout struct {
	Root      string
	ConfigDir string
	OutputDir string
}

// WorkspaceManager creates per-run workspace layouts under a base directory.
// Uniqueness comes from a second-resolution timestamp plus an idea-derived
// suffix; a collision is surfaced as an error rather than reused.
type WorkspaceManager struct {
	baseDir string
	now     func() time.Time
}

// NewWorkspaceManager creates a workspace manager rooted at baseDir.
func NewWorkspaceManager(baseDir string) *WorkspaceManager {
	return &WorkspaceManager{baseDir: baseDir, now: time.Now}
}

// Create builds the workspace directory tree for one run and returns its
// layout. The run root must not already exist.
func (m *WorkspaceManager) Create(idea string) (Layout, error) {
	name := fmt.Sprintf("%s_%s", m.now().Format("20060102_150405"), safeName(idea))
	root := filepath.Join(m.baseDir, outputDirName, name)

	if err := os.MkdirAll(filepath.Dir(root), 0o755); err != nil {
		return Layout{}, newRunError(CategoryFilesystem,
			fmt.Sprintf("create output base %s", filepath.Dir(root)), err)
	}

	// Mkdir, not MkdirAll: an existing run root means a collision and the
	// directory must never be reused.
	if err := os.Mkdir(root, 0o755); err != nil {
		if os.IsExist(err) {
			return Layout{}, newRunError(CategoryFilesystem,
				fmt.Sprintf("workspace %s", root), ErrWorkspaceExists)
		}
		return Layout{}, newRunError(CategoryFilesystem,
			fmt.Sprintf("create workspace %s", root), err)
	}

	layout := Layout{
		Root:      root,
		ConfigDir: filepath.Join(root, configSubdir),
		OutputDir: filepath.Join(root, outputSubdir),
	}
	for _, dir := range []string{layout.ConfigDir, layout.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Layout{}, newRunError(CategoryFilesystem,
				fmt.Sprintf("create %s", dir), err)
		}
	}
	return layout, nil
}

// safeName derives a filesystem-safe suffix from the idea text: the first 30
// characters, keeping only alphanumerics, dashes and underscores.
func safeName(idea string) string {
	var b strings.Builder
	for _, r := range idea {
		if b.Len() >= maxIdeaNameChars {
			break
		}
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte('_')
		}
	}
	name := strings.Trim(b.String(), "-_")
	if name == "" {
		return "project"
	}
	return name
}
