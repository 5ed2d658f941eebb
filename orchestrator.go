package metaclaude

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/metaclaude/metaclaude/analyze"
	"github.com/metaclaude/metaclaude/container"
)

// Status is the terminal outcome of one execution.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusFailure   Status = "failure"
	StatusTimeout   Status = "timeout"
	StatusCancelled Status = "cancelled"
)

// State is a position in the execution state machine.
type State string

const (
	StateInit             State = "INIT"
	StateWorkspaceReady   State = "WORKSPACE_READY"
	StateImageReady       State = "IMAGE_READY"
	StateContainerRunning State = "CONTAINER_RUNNING"
	StateCompleted        State = "COMPLETED"
	StateFailed           State = "FAILED"
	StateTimedOut         State = "TIMED_OUT"
	StateCancelled        State = "CANCELLED"
	StateCleanedUp        State = "CLEANED_UP"
)

// Request describes one execution. Timeout must already be parsed; an invalid
// specification is rejected by ParseTimeout before an Orchestrator exists.
type Request struct {
	Idea          string
	Model         string
	Timeout       time.Duration // Unlimited disables the deadline
	KeepContainer bool
	ForceRebuild  bool
	ForceAgents   []string
}

// ExecutionContext is the immutable per-run state assembled during the
// forward transitions.
type ExecutionContext struct {
	RunID     string
	Idea      string
	Model     string
	Timeout   time.Duration
	Keep      bool
	Agents    []string
	Workspace Layout
}

// ExecutionResult is returned to the caller after cleanup.
type ExecutionResult struct {
	Status     Status
	OutputPath string
	Elapsed    time.Duration
	LogTail    []string
	Err        *RunError
}

// ImageProvisioner ensures a runnable container image exists.
type ImageProvisioner interface {
	Ensure(ctx context.Context, forceRebuild bool) (string, error)
}

// ContainerRuntime owns the lifecycle of the single run container.
type ContainerRuntime interface {
	Start(ctx context.Context, cfg container.StartConfig) (*container.Handle, error)
	Stop(ctx context.Context, h *container.Handle, grace time.Duration) error
	Remove(ctx context.Context, h *container.Handle) error
	Status(ctx context.Context, h *container.Handle) (container.State, error)
	StreamLines(ctx context.Context, h *container.Handle) (<-chan string, <-chan error, error)
}

// AgentPicker resolves the agent identifiers for an idea.
type AgentPicker interface {
	Select(idea string, analysis analyze.Result, force []string) []string
}

// ConfigRenderer writes the session configuration into the workspace.
type ConfigRenderer interface {
	Render(layout Layout, info RenderInfo) error
}

// RenderInfo is the data handed to the configuration renderer.
type RenderInfo struct {
	Idea         string
	Model        string
	Agents       []string
	Domains      []string
	Technologies []string
	Complexity   string
	ProjectType  string
}

// Orchestrator runs one execution end to end: workspace, image, container,
// monitored log stream, cleanup. One execution per instance; concurrent runs
// on a host each get their own Orchestrator and workspace.
type Orchestrator struct {
	workspaces  *WorkspaceManager
	provisioner ImageProvisioner
	runtime     ContainerRuntime
	analyzer    analyze.Analyzer
	picker      AgentPicker
	renderer    ConfigRenderer

	log       *slog.Logger
	apiKey    string
	stopGrace time.Duration
	tailLimit int

	mu       sync.Mutex
	state    State
	executed bool
	cleaned  bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.log = log
	}
}

// WithAPIKey sets the credential injected into the container environment.
// The key is never logged and never written to disk.
func WithAPIKey(key string) Option {
	return func(o *Orchestrator) {
		o.apiKey = key
	}
}

// WithAnalyzer sets the idea analysis capability.
func WithAnalyzer(a analyze.Analyzer) Option {
	return func(o *Orchestrator) {
		o.analyzer = a
	}
}

// WithAgentPicker sets the agent selection capability.
func WithAgentPicker(p AgentPicker) Option {
	return func(o *Orchestrator) {
		o.picker = p
	}
}

// WithRenderer sets the configuration rendering capability.
func WithRenderer(r ConfigRenderer) Option {
	return func(o *Orchestrator) {
		o.renderer = r
	}
}

// WithStopGrace sets the grace period given to the container on stop.
func WithStopGrace(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.stopGrace = d
	}
}

// WithLogTailLimit sets how many trailing log lines the result captures.
func WithLogTailLimit(n int) Option {
	return func(o *Orchestrator) {
		o.tailLimit = n
	}
}

// NewOrchestrator wires an orchestrator from its components. Dependencies are
// passed explicitly; nothing is process-global.
func NewOrchestrator(ws *WorkspaceManager, prov ImageProvisioner, rt ContainerRuntime, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		workspaces:  ws,
		provisioner: prov,
		runtime:     rt,
		log:         slog.Default(),
		stopGrace:   10 * time.Second,
		tailLimit:   DefaultLogTail,
		state:       StateInit,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the orchestrator's current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
	o.log.Debug("state transition", "state", string(s))
}

// Execute runs the full workflow and returns the result after cleanup. The
// returned error is non-nil for every non-success status; the result is
// always populated. Cancelling ctx while the container runs yields
// StatusCancelled.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (*ExecutionResult, error) {
	o.mu.Lock()
	if o.executed {
		o.mu.Unlock()
		return nil, newRunError(CategoryValidation, "orchestrator instances run once", ErrExecutionAlreadyRun)
	}
	o.executed = true
	o.mu.Unlock()

	start := time.Now()
	if req.Idea == "" {
		runErr := newRunError(CategoryValidation, "validate request", ErrEmptyIdea)
		return failedResult(runErr, nil, time.Since(start)), runErr
	}

	run := ExecutionContext{
		RunID:   uuid.New().String()[:8],
		Idea:    req.Idea,
		Model:   req.Model,
		Timeout: req.Timeout,
		Keep:    req.KeepContainer,
	}
	o.log.Info("execution starting",
		"run_id", run.RunID,
		"model", run.Model,
		"timeout", FormatTimeout(run.Timeout))

	// Workspace.
	layout, err := o.workspaces.Create(run.Idea)
	if err != nil {
		return o.fail(nil, nil, err, start)
	}
	run.Workspace = layout
	o.setState(StateWorkspaceReady)
	o.log.Info("workspace ready", "run_id", run.RunID, "path", layout.Root)

	// Idea analysis, agent selection and configuration rendering. These are
	// opaque collaborators; the orchestrator only needs their outputs.
	var analysis analyze.Result
	if o.analyzer != nil {
		analysis = o.analyzer.Analyze(run.Idea)
	}
	if o.picker != nil {
		run.Agents = o.picker.Select(run.Idea, analysis, req.ForceAgents)
	} else {
		run.Agents = req.ForceAgents
	}
	if o.renderer != nil {
		info := RenderInfo{
			Idea:         run.Idea,
			Model:        run.Model,
			Agents:       run.Agents,
			Domains:      analysis.Domains,
			Technologies: analysis.Technologies,
			Complexity:   analysis.Complexity,
			ProjectType:  analysis.ProjectType,
		}
		if err := o.renderer.Render(layout, info); err != nil {
			return o.fail(nil, nil, newRunError(CategoryFilesystem, "render configuration", err), start)
		}
	}

	// Image.
	imageRef, err := o.provisioner.Ensure(ctx, req.ForceRebuild)
	if err != nil {
		return o.fail(nil, nil, newRunError(CategoryBuild, "provision image", err), start)
	}
	o.setState(StateImageReady)
	o.log.Info("image ready", "run_id", run.RunID, "image", imageRef)

	// Container.
	handle, err := o.runtime.Start(ctx, container.StartConfig{
		Image:         imageRef,
		RunID:         run.RunID,
		WorkspacePath: layout.Root,
		Command:       []string{"bash", "/workspace/startup.sh"},
		Env: map[string]string{
			"ANTHROPIC_API_KEY":          o.apiKey,
			"CLAUDE_MODEL":               run.Model,
			"CLAUDE_AUTO_COMPACT":        "false",
			"CLAUDE_MAX_THINKING_TOKENS": "32000",
		},
	})
	if err != nil {
		return o.fail(nil, nil, newRunError(CategoryRuntime, "start container", err), start)
	}
	o.setState(StateContainerRunning)
	o.log.Info("container running", "run_id", run.RunID, "container", handle.ShortID())

	// Monitor: race the log stream against the deadline and external
	// cancellation. Whichever fires first decides the terminal state and
	// cancels the other two.
	classifier := NewClassifier(o.tailLimit)
	terminal, runErr := o.monitor(ctx, handle, run.Timeout, classifier)
	o.setState(terminal)

	o.cleanup(handle, run.Keep)
	o.setState(StateCleanedUp)

	result := &ExecutionResult{
		OutputPath: layout.OutputDir,
		Elapsed:    time.Since(start),
		LogTail:    classifier.Tail(),
	}
	switch terminal {
	case StateCompleted:
		result.Status = StatusSuccess
		o.log.Info("execution completed", "run_id", run.RunID, "elapsed", result.Elapsed)
		return result, nil
	case StateTimedOut:
		result.Status = StatusTimeout
	case StateCancelled:
		result.Status = StatusCancelled
	default:
		result.Status = StatusFailure
	}
	result.Err = runErr
	o.log.Warn("execution did not complete",
		"run_id", run.RunID,
		"status", string(result.Status),
		"elapsed", result.Elapsed,
		"error", runErr)
	return result, runErr
}

// monitor consumes the log stream until a terminal condition fires and
// returns the terminal state plus the RunError for non-success outcomes.
func (o *Orchestrator) monitor(ctx context.Context, h *container.Handle, timeout time.Duration, classifier *Classifier) (State, *RunError) {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines, errs, err := o.runtime.StreamLines(streamCtx, h)
	if err != nil {
		return StateFailed, newRunError(CategoryStream, "attach log stream", err)
	}

	var deadline <-chan time.Time
	if timeout != Unlimited {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				// Natural completion: the stream closed because the
				// container exited. A fatal marker seen earlier wins.
				if sig, decided := classifier.Terminal(); decided && sig == SignalFailed {
					return StateFailed, failureFromClassifier(classifier)
				}
				return StateCompleted, nil
			}
			switch classifier.Observe(line) {
			case SignalDone:
				return StateCompleted, nil
			case SignalFailed:
				return StateFailed, failureFromClassifier(classifier)
			default:
				o.log.Debug("container output", "line", line)
			}

		case streamErr := <-errs:
			return StateFailed, newRunError(CategoryStream, "log stream", streamErr)

		case <-deadline:
			return StateTimedOut, &RunError{
				Category: CategoryTimeout,
				Message:  fmt.Sprintf("no terminal marker within %s", timeout),
				Hint:     defaultHints[CategoryTimeout],
				Err:      ErrTimeoutExceeded,
			}

		case <-ctx.Done():
			return StateCancelled, &RunError{
				Category: CategoryCancelled,
				Message:  "interrupted while container was running",
				Hint:     defaultHints[CategoryCancelled],
				Err:      ErrCancelled,
			}
		}
	}
}

// failureFromClassifier turns a fatal marker into a RunError, preserving the
// extracted detail when the marker carried one.
func failureFromClassifier(c *Classifier) *RunError {
	if detail := c.Detail(); detail != "" {
		return newRunError(CategoryUnclassified, "fatal marker in log stream", fmt.Errorf("%s", detail))
	}
	return newRunError(CategoryUnclassified, "fatal marker in log stream", ErrUnclassifiedFailure)
}

// cleanup gives the container one stop+remove attempt. Removal is skipped
// when the caller asked to keep the container for inspection. Failures are
// logged, never propagated: the run's outcome is already decided. Runs at
// most once per execution.
func (o *Orchestrator) cleanup(h *container.Handle, keep bool) {
	o.mu.Lock()
	if o.cleaned {
		o.mu.Unlock()
		return
	}
	o.cleaned = true
	o.mu.Unlock()

	if h == nil {
		return
	}

	// Cleanup must proceed even when the run's context is already cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), o.stopGrace+30*time.Second)
	defer cancel()

	if err := o.runtime.Stop(ctx, h, o.stopGrace); err != nil {
		o.log.Warn("container stop failed", "container", h.ShortID(), "error", err)
	}
	if keep {
		o.log.Info("container kept for inspection", "container", h.ShortID())
		return
	}
	if err := o.runtime.Remove(ctx, h); err != nil {
		o.log.Warn("container remove failed", "container", h.ShortID(), "error", err)
	}
}

// fail finalizes a run that never reached CONTAINER_RUNNING.
func (o *Orchestrator) fail(h *container.Handle, classifier *Classifier, err error, start time.Time) (*ExecutionResult, error) {
	runErr := AsRunError(err)
	o.setState(StateFailed)
	o.cleanup(h, false)
	o.setState(StateCleanedUp)
	res := failedResult(runErr, classifier, time.Since(start))
	o.log.Warn("execution failed",
		"status", string(res.Status),
		"category", string(runErr.Category),
		"error", runErr)
	return res, runErr
}

func failedResult(err *RunError, classifier *Classifier, elapsed time.Duration) *ExecutionResult {
	res := &ExecutionResult{
		Status:  StatusFailure,
		Elapsed: elapsed,
		Err:     err,
	}
	if classifier != nil {
		res.LogTail = classifier.Tail()
	}
	return res
}
