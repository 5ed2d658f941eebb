package metaclaude

import (
	"strings"
)

// Signal is the classification of a single log line.
type Signal int

const (
	// SignalProgress is any line that does not change the run's state.
	SignalProgress Signal = iota
	// SignalDone marks successful completion of the generation session.
	SignalDone
	// SignalFailed marks a fatal error reported by the session.
	SignalFailed
)

// completionMarkers end a run successfully. Matching is case-insensitive
// substring matching, mirroring how the generation session reports progress.
var completionMarkers = []string{
	"project generation complete",
	"all tasks completed",
	"claude code session ended",
	"generation successful",
}

// fatalMarkers abort a run. The text after the marker is the failure detail.
var fatalMarkers = []string{
	"ERROR:",
	"FATAL:",
	"Exception:",
}

// DefaultLogTail is how many trailing log lines are kept for diagnostics.
const DefaultLogTail = 50

// Classifier inspects container log lines in arrival order and decides when
// the stream has reached a terminal state. Once a terminal signal is
// observed, later lines can no longer change it.
type Classifier struct {
	tailLimit int
	tail      []string
	terminal  Signal
	detail    string
	decided   bool
}

// NewClassifier creates a classifier keeping up to tailLimit trailing lines.
func NewClassifier(tailLimit int) *Classifier {
	if tailLimit <= 0 {
		tailLimit = DefaultLogTail
	}
	return &Classifier{tailLimit: tailLimit}
}

// Observe records one line and returns its classification. Lines observed
// after a terminal signal are always progress; the earlier marker wins.
func (c *Classifier) Observe(line string) Signal {
	c.tail = append(c.tail, line)
	if len(c.tail) > c.tailLimit {
		c.tail = c.tail[len(c.tail)-c.tailLimit:]
	}

	if c.decided {
		return SignalProgress
	}

	for _, marker := range completionMarkers {
		if asciiFoldIndex(line, marker) >= 0 {
			c.decided = true
			c.terminal = SignalDone
			return SignalDone
		}
	}

	for _, marker := range fatalMarkers {
		if idx := asciiFoldIndex(line, marker); idx >= 0 {
			c.decided = true
			c.terminal = SignalFailed
			c.detail = strings.TrimSpace(line[idx+len(marker):])
			return SignalFailed
		}
	}

	return SignalProgress
}

// asciiFoldIndex returns the byte index of the first ASCII-case-insensitive
// occurrence of marker in s, or -1. The markers are all ASCII, so matching on
// the original line keeps byte offsets valid for detail extraction; a
// Unicode-aware ToLower can change byte lengths and misalign them.
func asciiFoldIndex(s, marker string) int {
	if len(marker) == 0 || len(s) < len(marker) {
		return -1
	}
	for i := 0; i+len(marker) <= len(s); i++ {
		if asciiFoldEqual(s[i:i+len(marker)], marker) {
			return i
		}
	}
	return -1
}

func asciiFoldEqual(a, b string) bool {
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// Terminal reports whether a terminal signal has been observed, and which.
func (c *Classifier) Terminal() (Signal, bool) {
	return c.terminal, c.decided
}

// Detail returns the text extracted after a fatal marker. Empty when the
// failure carried no structured detail.
func (c *Classifier) Detail() string {
	return c.detail
}

// Tail returns a copy of the captured trailing log lines.
func (c *Classifier) Tail() []string {
	out := make([]string, len(c.tail))
	copy(out, c.tail)
	return out
}
