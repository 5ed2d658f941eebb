// Command metaclaude turns a one-line project idea into a generated software
// project by driving a Claude Code session inside a Docker container.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/metaclaude/metaclaude"
)

// Exit codes reported to the shell.
const (
	exitSuccess   = 0
	exitFailure   = 1
	exitTimeout   = 2
	exitCancelled = 3
)

type rootFlags struct {
	configPath    string
	model         string
	agentNames    []string
	timeoutSpec   string
	noCache       bool
	keepContainer bool
	outputDir     string
	verbose       bool
}

func main() {
	os.Exit(run())
}

func run() int {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "metaclaude \"project idea\"",
		Short: "Generate a software project from a one-line idea",
		Long: "MetaClaude provisions an isolated container, configures a Claude Code\n" +
			"session for the given idea, and monitors the session until the project\n" +
			"is generated under ./metaclaude_output/.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return generate(cmd.Context(), args[0], flags)
		},
	}

	root.Flags().StringVarP(&flags.model, "model", "m", "", "Claude model for the session")
	root.Flags().StringSliceVarP(&flags.agentNames, "agents", "a", nil, "force specific agents instead of automatic selection")
	root.Flags().StringVarP(&flags.timeoutSpec, "timeout", "t", "", "execution timeout (e.g. 30m, 2h, unlimited)")
	root.Flags().BoolVar(&flags.noCache, "no-cache", false, "rebuild the runtime image from scratch")
	root.Flags().BoolVar(&flags.keepContainer, "keep-container", false, "keep the container after the run for inspection")
	root.Flags().StringVarP(&flags.outputDir, "output-dir", "o", "", "base directory for generated workspaces")
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to a metaclaude config file")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newAgentsCmd(flags), newDoctorCmd(flags), newVersionCmd())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitSuccess
	}
	switch {
	case errors.Is(err, metaclaude.ErrTimeoutExceeded):
		return exitTimeout
	case errors.Is(err, metaclaude.ErrCancelled):
		return exitCancelled
	default:
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		return exitFailure
	}
}
