package container

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

const (
	// WorkspaceMount is the fixed in-container path of the run workspace.
	WorkspaceMount = "/workspace"
	// OutputMount is where generated artifacts land inside the container.
	OutputMount = "/workspace/output"

	LabelManagedBy = "metaclaude.managed-by"
	LabelRun       = "metaclaude.run"

	defaultStopGrace = 10 * time.Second
)

// State is a point-in-time container lifecycle state.
type State string

const (
	StateCreated State = "created"
	StateRunning State = "running"
	StateExited  State = "exited"
	StateRemoved State = "removed"
	StateUnknown State = "unknown"
)

// Handle references a single container owned by the Runtime. Callers hold it
// opaquely and hand it back for stop/remove/status calls.
type Handle struct {
	ID        string
	Name      string
	StartedAt time.Time
}

// ShortID returns the abbreviated container identifier used in logs.
func (h *Handle) ShortID() string {
	if len(h.ID) > 12 {
		return h.ID[:12]
	}
	return h.ID
}

// StartConfig describes one generation container launch.
type StartConfig struct {
	Image         string
	RunID         string
	WorkspacePath string // host path bind-mounted at WorkspaceMount, read-write
	Command       []string
	Env           map[string]string // includes the credential secret; never logged
	User          string
}

// Runtime starts, stops and removes MetaClaude containers through the Docker
// engine API.
type Runtime struct {
	client client.APIClient
}

// NewRuntime connects to the Docker daemon, trying the environment settings
// first and then the common socket locations, and verifies it with a ping.
func NewRuntime() (*Runtime, error) {
	cli, err := connect()
	if err != nil {
		return nil, err
	}
	return &Runtime{client: cli}, nil
}

// NewRuntimeWithClient wraps an existing engine client. Used by tests.
func NewRuntimeWithClient(cli client.APIClient) *Runtime {
	return &Runtime{client: cli}
}

// connect creates a Docker client. The environment settings are tried first,
// then the socket locations used by Docker Desktop and Colima; each candidate
// must answer a ping before it is accepted.
func connect() (*client.Client, error) {
	home := os.Getenv("HOME")
	candidates := []client.Opt{
		client.FromEnv,
		client.WithHost("unix://" + home + "/.docker/run/docker.sock"),
		client.WithHost("unix:///var/run/docker.sock"),
		client.WithHost("unix://" + home + "/.colima/docker.sock"),
	}

	for _, candidate := range candidates {
		cli, err := client.NewClientWithOpts(candidate, client.WithAPIVersionNegotiation())
		if err != nil {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, err = cli.Ping(ctx)
		cancel()
		if err == nil {
			return cli, nil
		}
		cli.Close()
	}

	return nil, fmt.Errorf("no reachable Docker daemon: tried environment settings and local sockets")
}

// Ping verifies the engine is reachable.
func (r *Runtime) Ping(ctx context.Context) error {
	_, err := r.client.Ping(ctx)
	return err
}

// Start creates and starts a generation container with the workspace mounted
// read-write. It returns a handle that the caller passes back for monitoring
// and cleanup.
func (r *Runtime) Start(ctx context.Context, cfg StartConfig) (*Handle, error) {
	if cfg.WorkspacePath == "" {
		return nil, fmt.Errorf("workspace path is required")
	}

	env := make([]string, 0, len(cfg.Env)+2)
	for k, v := range cfg.Env {
		env = append(env, k+"="+v)
	}
	env = append(env,
		"CLAUDE_CODE_WORKSPACE="+WorkspaceMount,
		"CLAUDE_CODE_OUTPUT="+OutputMount,
	)

	cmd := cfg.Command
	if len(cmd) == 0 {
		// Keep the container alive until a session is started in it.
		cmd = []string{"tail", "-f", "/dev/null"}
	}

	containerCfg := &container.Config{
		Image:      cfg.Image,
		WorkingDir: WorkspaceMount,
		Env:        env,
		Cmd:        cmd,
		User:       cfg.User,
		Labels: map[string]string{
			LabelManagedBy: "metaclaude",
			LabelRun:       cfg.RunID,
		},
	}

	hostCfg := &container.HostConfig{
		Mounts: []mount.Mount{
			{
				Type:   mount.TypeBind,
				Source: cfg.WorkspacePath,
				Target: WorkspaceMount,
			},
		},
		NetworkMode: "bridge",
	}

	name := "metaclaude-" + cfg.RunID
	resp, err := r.client.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, name)
	if err != nil {
		return nil, fmt.Errorf("create container: %w", err)
	}

	if err := r.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		// The created container would otherwise leak.
		_ = r.client.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return nil, fmt.Errorf("start container: %w", err)
	}

	return &Handle{ID: resp.ID, Name: name, StartedAt: time.Now()}, nil
}

// Stop terminates the container, gracefully within the grace period and then
// by force. A zero grace period uses the default of ten seconds.
func (r *Runtime) Stop(ctx context.Context, h *Handle, grace time.Duration) error {
	if grace <= 0 {
		grace = defaultStopGrace
	}
	secs := int(grace.Seconds())
	if err := r.client.ContainerStop(ctx, h.ID, container.StopOptions{Timeout: &secs}); err != nil {
		if killErr := r.client.ContainerKill(ctx, h.ID, "SIGKILL"); killErr != nil {
			return fmt.Errorf("stop container %s: %w", h.ShortID(), err)
		}
	}
	return nil
}

// Remove deletes the container. Best-effort: callers log failures instead of
// failing the run, which has already been decided by the time Remove runs.
func (r *Runtime) Remove(ctx context.Context, h *Handle) error {
	if err := r.client.ContainerRemove(ctx, h.ID, container.RemoveOptions{Force: true}); err != nil {
		return fmt.Errorf("remove container %s: %w", h.ShortID(), err)
	}
	return nil
}

// Status polls the container's current lifecycle state.
func (r *Runtime) Status(ctx context.Context, h *Handle) (State, error) {
	inspect, err := r.client.ContainerInspect(ctx, h.ID)
	if err != nil {
		if client.IsErrNotFound(err) {
			return StateRemoved, nil
		}
		return StateUnknown, err
	}
	switch inspect.State.Status {
	case "created":
		return StateCreated, nil
	case "running", "restarting", "paused":
		return StateRunning, nil
	case "exited", "dead":
		return StateExited, nil
	default:
		return StateUnknown, nil
	}
}

// StreamLines follows the container's combined stdout/stderr and emits each
// line, in emission order, on the returned channel. The channel closes when
// the underlying stream ends, which happens when the container exits. A
// transport failure is delivered on the error channel; cancelling ctx stops
// the stream without reporting an error.
func (r *Runtime) StreamLines(ctx context.Context, h *Handle) (<-chan string, <-chan error, error) {
	rc, err := r.client.ContainerLogs(ctx, h.ID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("follow logs for %s: %w", h.ShortID(), err)
	}

	lines := make(chan string)
	errs := make(chan error, 1)
	done := make(chan struct{})

	// The follow stream is multiplexed; demux stdout and stderr into one
	// ordered pipe.
	pr, pw := io.Pipe()
	go func() {
		_, copyErr := stdcopy.StdCopy(pw, pw, rc)
		pw.CloseWithError(copyErr)
	}()

	// Unblock the blocking read when the caller cancels.
	go func() {
		select {
		case <-ctx.Done():
			rc.Close()
		case <-done:
		}
	}()

	go func() {
		defer close(done)
		defer close(lines)
		defer rc.Close()

		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimRight(scanner.Text(), "\r\n ")
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			errs <- fmt.Errorf("log stream for %s interrupted: %w", h.ShortID(), err)
		}
	}()

	return lines, errs, nil
}

// Close releases the engine client.
func (r *Runtime) Close() error {
	if closer, ok := r.client.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
