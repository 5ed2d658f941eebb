// Package metaclaude turns a one-line project idea into a generated software
// project by running a Claude Code session inside an isolated Docker container.
//
// The package provides:
//
//   - A workspace manager that creates a timestamped run directory with
//     the session configuration and output layout
//   - An image provisioner that builds the runtime image on first use
//   - A container runtime over the Docker SDK with ordered log streaming
//   - A log classifier that detects completion and fatal markers
//   - An orchestrator that drives the whole lifecycle and guarantees
//     exactly-once container cleanup
//
// # Quick Start
//
// Wire the components and run one execution:
//
//	rt, err := container.NewRuntime()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close()
//
//	prov := container.NewProvisioner(rt, container.DefaultImageRef, "docker")
//	ws := metaclaude.NewWorkspaceManager(".")
//
//	orch := metaclaude.NewOrchestrator(ws, prov, rt,
//	    metaclaude.WithAPIKey(os.Getenv("ANTHROPIC_API_KEY")),
//	    metaclaude.WithRenderer(templates.NewManager(nil)),
//	)
//
//	result, err := orch.Execute(ctx, metaclaude.Request{
//	    Idea:    "a todo app with a REST API",
//	    Model:   "opus",
//	    Timeout: 30 * time.Minute,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.OutputPath)
//
// The renderer writes the startup script the container runs, so wire one
// (templates.NewManager) unless the workspace already carries its own
// /workspace/startup.sh.
//
// An Orchestrator runs once; concurrent generations on a host each get their
// own instance and workspace. Cancelling the context while the container runs
// stops and removes it before Execute returns.
//
// # Outcomes
//
// Execute returns a non-nil error for every non-success status. Errors carry
// a Category and a recovery hint, and unwrap to sentinel values such as
// ErrTimeoutExceeded and ErrCancelled for programmatic handling.
package metaclaude
