package metaclaude

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/metaclaude/metaclaude/container"
)

type fakeProvisioner struct {
	err   error
	calls int
}

func (f *fakeProvisioner) Ensure(ctx context.Context, forceRebuild bool) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "metaclaude:latest", nil
}

// fakeRuntime replays a scripted log stream. With holdOpen set the stream
// never ends, which forces the deadline or cancellation path; streamErr is
// delivered on the error channel after the scripted lines.
type fakeRuntime struct {
	lines     []string
	holdOpen  bool
	startErr  error
	streamErr error

	mu          sync.Mutex
	startCalls  int
	stopCalls   int
	removeCalls int
	lastConfig  container.StartConfig
}

func (f *fakeRuntime) Start(ctx context.Context, cfg container.StartConfig) (*container.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	f.lastConfig = cfg
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &container.Handle{ID: "deadbeefcafe", Name: "metaclaude-" + cfg.RunID, StartedAt: time.Now()}, nil
}

func (f *fakeRuntime) Stop(ctx context.Context, h *container.Handle, grace time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	return nil
}

func (f *fakeRuntime) Remove(ctx context.Context, h *container.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeCalls++
	return nil
}

func (f *fakeRuntime) Status(ctx context.Context, h *container.Handle) (container.State, error) {
	return container.StateRunning, nil
}

func (f *fakeRuntime) StreamLines(ctx context.Context, h *container.Handle) (<-chan string, <-chan error, error) {
	lines := make(chan string)
	errs := make(chan error, 1)
	go func() {
		for _, line := range f.lines {
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		if f.streamErr != nil {
			errs <- f.streamErr
		} else if !f.holdOpen {
			close(lines)
		}
		<-ctx.Done()
	}()
	return lines, errs, nil
}

func (f *fakeRuntime) counts() (start, stop, remove int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.startCalls, f.stopCalls, f.removeCalls
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestOrchestrator(t *testing.T, rt *fakeRuntime, prov *fakeProvisioner, opts ...Option) *Orchestrator {
	t.Helper()
	ws := NewWorkspaceManager(t.TempDir())
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	return NewOrchestrator(ws, prov, rt, opts...)
}

// The happy path: the session prints a completion marker, the container is
// stopped and removed, and the result points at the output directory.
func TestExecuteSuccess(t *testing.T) {
	rt := &fakeRuntime{lines: []string{
		"Installing dependencies",
		"Created src/app.py",
		"Project generation complete",
	}}
	prov := &fakeProvisioner{}
	orch := newTestOrchestrator(t, rt, prov, WithAPIKey("sk-test"))

	result, err := orch.Execute(context.Background(), Request{
		Idea:    "a todo app",
		Model:   "opus",
		Timeout: time.Minute,
	})
	if err != nil {
		t.Fatalf("Execute() returned error: %v", err)
	}
	if result.Status != StatusSuccess {
		t.Errorf("Status = %q, want %q", result.Status, StatusSuccess)
	}
	if result.OutputPath == "" {
		t.Error("OutputPath should be set on success")
	}
	if result.Err != nil {
		t.Errorf("Err should be nil on success, got %v", result.Err)
	}

	start, stop, remove := rt.counts()
	if start != 1 || stop != 1 || remove != 1 {
		t.Errorf("start/stop/remove = %d/%d/%d, want 1/1/1", start, stop, remove)
	}
	if orch.State() != StateCleanedUp {
		t.Errorf("State() = %q, want %q", orch.State(), StateCleanedUp)
	}
	if prov.calls != 1 {
		t.Errorf("Ensure called %d times, want 1", prov.calls)
	}
}

// A container that keeps producing output past the deadline is stopped and
// the run reports a timeout.
func TestExecuteTimeout(t *testing.T) {
	rt := &fakeRuntime{holdOpen: true, lines: []string{"still working"}}
	orch := newTestOrchestrator(t, rt, &fakeProvisioner{})

	result, err := orch.Execute(context.Background(), Request{
		Idea:    "an everlasting task",
		Timeout: 50 * time.Millisecond,
	})
	if !errors.Is(err, ErrTimeoutExceeded) {
		t.Fatalf("Execute() error = %v, want ErrTimeoutExceeded", err)
	}
	if result.Status != StatusTimeout {
		t.Errorf("Status = %q, want %q", result.Status, StatusTimeout)
	}
	if result.Err == nil || result.Err.Category != CategoryTimeout {
		t.Errorf("Err = %v, want a timeout RunError", result.Err)
	}

	_, stop, remove := rt.counts()
	if stop != 1 || remove != 1 {
		t.Errorf("stop/remove = %d/%d, want 1/1", stop, remove)
	}
}

// An image build failure fails the run before any container is started.
func TestExecuteBuildFailure(t *testing.T) {
	rt := &fakeRuntime{}
	prov := &fakeProvisioner{err: errors.New("image build failed at \"step 4/9\": apt broke")}
	orch := newTestOrchestrator(t, rt, prov)

	result, err := orch.Execute(context.Background(), Request{Idea: "anything", Timeout: time.Minute})
	if err == nil {
		t.Fatal("Execute() should have failed")
	}
	if result.Status != StatusFailure {
		t.Errorf("Status = %q, want %q", result.Status, StatusFailure)
	}
	if result.Err == nil || result.Err.Category != CategoryBuild {
		t.Errorf("Err = %v, want a build RunError", result.Err)
	}
	if result.Err.Hint == "" {
		t.Error("build failures should carry a recovery hint")
	}

	start, _, _ := rt.counts()
	if start != 0 {
		t.Errorf("Start called %d times, want 0", start)
	}
	if orch.State() != StateCleanedUp {
		t.Errorf("State() = %q, want %q", orch.State(), StateCleanedUp)
	}
}

func TestExecuteFatalMarker(t *testing.T) {
	rt := &fakeRuntime{holdOpen: true, lines: []string{
		"starting",
		"ERROR: ANTHROPIC_API_KEY is not set",
	}}
	orch := newTestOrchestrator(t, rt, &fakeProvisioner{})

	result, err := orch.Execute(context.Background(), Request{Idea: "anything", Timeout: time.Minute})
	if err == nil {
		t.Fatal("Execute() should have failed")
	}
	if result.Status != StatusFailure {
		t.Errorf("Status = %q, want %q", result.Status, StatusFailure)
	}
	if result.Err == nil || result.Err.Category != CategoryUnclassified {
		t.Fatalf("Err = %v, want an unclassified RunError", result.Err)
	}
	wantDetail := "ANTHROPIC_API_KEY is not set"
	if got := result.Err.Err.Error(); got != wantDetail {
		t.Errorf("failure detail = %q, want %q", got, wantDetail)
	}
	if len(result.LogTail) == 0 {
		t.Error("LogTail should capture the failing output")
	}
}

// A transport failure on the log stream fails the run and still cleans up.
func TestExecuteStreamError(t *testing.T) {
	rt := &fakeRuntime{
		lines:     []string{"partial output"},
		streamErr: errors.New("connection reset by daemon"),
	}
	orch := newTestOrchestrator(t, rt, &fakeProvisioner{})

	result, err := orch.Execute(context.Background(), Request{Idea: "anything", Timeout: time.Minute})
	if err == nil {
		t.Fatal("Execute() should have failed")
	}
	if result.Status != StatusFailure {
		t.Errorf("Status = %q, want %q", result.Status, StatusFailure)
	}
	if result.Err == nil || result.Err.Category != CategoryStream {
		t.Fatalf("Err = %v, want a stream RunError", result.Err)
	}
	if !errors.Is(err, rt.streamErr) {
		t.Error("the transport failure should stay in the error chain")
	}

	_, stop, remove := rt.counts()
	if stop != 1 || remove != 1 {
		t.Errorf("stop/remove = %d/%d, want 1/1", stop, remove)
	}
	if orch.State() != StateCleanedUp {
		t.Errorf("State() = %q, want %q", orch.State(), StateCleanedUp)
	}
}

func TestExecuteCancellation(t *testing.T) {
	rt := &fakeRuntime{holdOpen: true, lines: []string{"working"}}
	orch := newTestOrchestrator(t, rt, &fakeProvisioner{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	result, err := orch.Execute(ctx, Request{Idea: "slow thing", Timeout: Unlimited})
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("Execute() error = %v, want ErrCancelled", err)
	}
	if result.Status != StatusCancelled {
		t.Errorf("Status = %q, want %q", result.Status, StatusCancelled)
	}

	// Cleanup must run even though the run context is gone.
	_, stop, remove := rt.counts()
	if stop != 1 || remove != 1 {
		t.Errorf("stop/remove = %d/%d, want 1/1", stop, remove)
	}
}

func TestExecuteKeepContainer(t *testing.T) {
	rt := &fakeRuntime{lines: []string{"Project generation complete"}}
	orch := newTestOrchestrator(t, rt, &fakeProvisioner{})

	_, err := orch.Execute(context.Background(), Request{
		Idea:          "a kept container",
		Timeout:       time.Minute,
		KeepContainer: true,
	})
	if err != nil {
		t.Fatalf("Execute() returned error: %v", err)
	}

	_, stop, remove := rt.counts()
	if stop != 1 {
		t.Errorf("stop = %d, want 1 (keep still stops the container)", stop)
	}
	if remove != 0 {
		t.Errorf("remove = %d, want 0 when keeping the container", remove)
	}
}

func TestExecuteEmptyIdea(t *testing.T) {
	orch := newTestOrchestrator(t, &fakeRuntime{}, &fakeProvisioner{})

	result, err := orch.Execute(context.Background(), Request{Idea: "", Timeout: time.Minute})
	if !errors.Is(err, ErrEmptyIdea) {
		t.Fatalf("Execute() error = %v, want ErrEmptyIdea", err)
	}
	if result.Status != StatusFailure {
		t.Errorf("Status = %q, want %q", result.Status, StatusFailure)
	}
}

func TestExecuteRunsOnce(t *testing.T) {
	rt := &fakeRuntime{lines: []string{"Project generation complete"}}
	orch := newTestOrchestrator(t, rt, &fakeProvisioner{})

	if _, err := orch.Execute(context.Background(), Request{Idea: "first", Timeout: time.Minute}); err != nil {
		t.Fatalf("first Execute() returned error: %v", err)
	}
	_, err := orch.Execute(context.Background(), Request{Idea: "second", Timeout: time.Minute})
	if !errors.Is(err, ErrExecutionAlreadyRun) {
		t.Errorf("second Execute() error = %v, want ErrExecutionAlreadyRun", err)
	}

	// The second call must not have touched the runtime again.
	start, stop, remove := rt.counts()
	if start != 1 || stop != 1 || remove != 1 {
		t.Errorf("start/stop/remove = %d/%d/%d, want 1/1/1", start, stop, remove)
	}
}

func TestExecuteEnvInjection(t *testing.T) {
	rt := &fakeRuntime{lines: []string{"Project generation complete"}}
	orch := newTestOrchestrator(t, rt, &fakeProvisioner{}, WithAPIKey("sk-secret"))

	if _, err := orch.Execute(context.Background(), Request{
		Idea:    "check the env",
		Model:   "opus",
		Timeout: time.Minute,
	}); err != nil {
		t.Fatalf("Execute() returned error: %v", err)
	}

	cfg := rt.lastConfig
	if cfg.Env["ANTHROPIC_API_KEY"] != "sk-secret" {
		t.Error("API key should be injected into the container environment")
	}
	if cfg.Env["CLAUDE_MODEL"] != "opus" {
		t.Errorf("CLAUDE_MODEL = %q, want %q", cfg.Env["CLAUDE_MODEL"], "opus")
	}
	if cfg.Env["CLAUDE_AUTO_COMPACT"] != "false" {
		t.Errorf("CLAUDE_AUTO_COMPACT = %q, want %q", cfg.Env["CLAUDE_AUTO_COMPACT"], "false")
	}
	if len(cfg.Command) == 0 || cfg.Command[len(cfg.Command)-1] != "/workspace/startup.sh" {
		t.Errorf("Command = %v, want the startup script", cfg.Command)
	}
}

// Selected agents and analysis results flow into the renderer.
func TestExecuteRenderFlow(t *testing.T) {
	rt := &fakeRuntime{lines: []string{"Project generation complete"}}

	var rendered RenderInfo
	renderer := renderFunc(func(layout Layout, info RenderInfo) error {
		rendered = info
		return nil
	})
	orch := newTestOrchestrator(t, rt, &fakeProvisioner{}, WithRenderer(renderer))

	if _, err := orch.Execute(context.Background(), Request{
		Idea:        "a web dashboard",
		Model:       "opus",
		Timeout:     time.Minute,
		ForceAgents: []string{"backend-engineer"},
	}); err != nil {
		t.Fatalf("Execute() returned error: %v", err)
	}

	if rendered.Idea != "a web dashboard" {
		t.Errorf("rendered idea = %q", rendered.Idea)
	}
	if len(rendered.Agents) != 1 || rendered.Agents[0] != "backend-engineer" {
		t.Errorf("rendered agents = %v, want forced agents without a picker", rendered.Agents)
	}
}

type renderFunc func(Layout, RenderInfo) error

func (f renderFunc) Render(layout Layout, info RenderInfo) error { return f(layout, info) }
