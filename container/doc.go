// Package container wraps the Docker engine for MetaClaude runs: it ensures
// the runtime image exists, starts the generation container with the
// workspace mounted, follows its log stream as ordered lines, and tears the
// container down when the run is decided.
package container
