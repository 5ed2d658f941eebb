package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"

	"github.com/metaclaude/metaclaude"
	"github.com/metaclaude/metaclaude/agents"
	"github.com/metaclaude/metaclaude/analyze"
	"github.com/metaclaude/metaclaude/config"
	"github.com/metaclaude/metaclaude/container"
	"github.com/metaclaude/metaclaude/templates"
)

// generate runs the full idea-to-project workflow.
func generate(ctx context.Context, idea string, flags *rootFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Logging.Level, flags.verbose)

	timeout, err := metaclaude.ParseTimeout(cfg.Execution.Timeout)
	if err != nil {
		return err
	}

	defs, err := agents.LoadDir(cfg.AgentsDir)
	if err != nil {
		return fmt.Errorf("load agent definitions: %w", err)
	}

	runtime, err := container.NewRuntime()
	if err != nil {
		return fmt.Errorf("%w: %v", metaclaude.ErrEngineUnavailable, err)
	}
	defer runtime.Close()

	provisioner := container.NewProvisioner(runtime, cfg.Docker.ImageRef(), cfg.Docker.BuildContext)
	workspaces := metaclaude.NewWorkspaceManager(cfg.Execution.OutputBaseDir)

	orch := metaclaude.NewOrchestrator(workspaces, provisioner, runtime,
		metaclaude.WithLogger(logger),
		metaclaude.WithAPIKey(os.Getenv("ANTHROPIC_API_KEY")),
		metaclaude.WithAnalyzer(analyze.NewKeywordAnalyzer()),
		metaclaude.WithAgentPicker(agents.NewSelector(defs)),
		metaclaude.WithRenderer(templates.NewManager(defs)),
		metaclaude.WithStopGrace(time.Duration(cfg.Execution.StopGraceSecs)*time.Second),
	)

	bold := color.New(color.Bold)
	bold.Printf("MetaClaude\n")
	fmt.Printf("  Idea:    %s\n", idea)
	fmt.Printf("  Model:   %s\n", cfg.Claude.Model)
	fmt.Printf("  Timeout: %s\n", metaclaude.FormatTimeout(timeout))
	fmt.Println()

	result, runErr := orch.Execute(ctx, metaclaude.Request{
		Idea:          idea,
		Model:         cfg.Claude.Model,
		Timeout:       timeout,
		KeepContainer: cfg.Execution.KeepContainer,
		ForceRebuild:  cfg.Docker.NoCache,
		ForceAgents:   flags.agentNames,
	})
	printResult(result)
	return runErr
}

// printResult reports the terminal outcome and, on failure, the log tail.
func printResult(result *metaclaude.ExecutionResult) {
	if result == nil {
		return
	}
	fmt.Println()
	switch result.Status {
	case metaclaude.StatusSuccess:
		color.Green("Project generated in %s", result.Elapsed.Round(time.Second))
		fmt.Printf("Output: %s\n", result.OutputPath)
	case metaclaude.StatusTimeout:
		color.Yellow("Timed out after %s", result.Elapsed.Round(time.Second))
	case metaclaude.StatusCancelled:
		color.Yellow("Cancelled after %s", result.Elapsed.Round(time.Second))
	default:
		color.Red("Generation failed after %s", result.Elapsed.Round(time.Second))
	}
	if result.Status != metaclaude.StatusSuccess {
		if result.Err != nil && result.Err.Hint != "" {
			fmt.Printf("Hint: %s\n", result.Err.Hint)
		}
		if len(result.LogTail) > 0 {
			fmt.Println("\nLast container output:")
			for _, line := range result.LogTail {
				fmt.Printf("  %s\n", line)
			}
		}
	}
}

// loadConfig merges the config file with command-line overrides.
func loadConfig(flags *rootFlags) (config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return cfg, err
	}
	if flags.model != "" {
		cfg.Claude.Model = flags.model
	}
	if flags.timeoutSpec != "" {
		cfg.Execution.Timeout = flags.timeoutSpec
	}
	if flags.outputDir != "" {
		abs, err := filepath.Abs(flags.outputDir)
		if err != nil {
			return cfg, fmt.Errorf("resolve output dir: %w", err)
		}
		cfg.Execution.OutputBaseDir = abs
	}
	if flags.noCache {
		cfg.Docker.NoCache = true
	}
	if flags.keepContainer {
		cfg.Execution.KeepContainer = true
	}
	return cfg, nil
}

// newLogger builds the process logger. --verbose wins over the config level.
func newLogger(level string, verbose bool) *slog.Logger {
	lvl := slog.LevelInfo
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	if verbose {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
