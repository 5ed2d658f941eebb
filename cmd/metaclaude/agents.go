package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/metaclaude/metaclaude/agents"
	"github.com/metaclaude/metaclaude/analyze"
	"github.com/metaclaude/metaclaude/config"
)

// newAgentsCmd lists the available agent definitions, or previews which
// agents an idea would select.
func newAgentsCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents [idea]",
		Short: "List available agents, or preview the selection for an idea",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}
			defs, err := agents.LoadDir(cfg.AgentsDir)
			if err != nil {
				return fmt.Errorf("load agent definitions: %w", err)
			}

			if len(args) == 1 {
				return previewSelection(args[0], defs)
			}

			if len(defs) == 0 {
				fmt.Printf("No agent definitions found in %s\n", cfg.AgentsDir)
				return nil
			}
			bold := color.New(color.Bold)
			for _, name := range agents.Names(defs) {
				def := defs[name]
				bold.Printf("%s\n", name)
				fmt.Printf("  %s\n", def.Description)
				fmt.Printf("  tools: %s  parallelism: %d\n", strings.Join(def.Tools, ", "), def.Parallelism)
			}
			return nil
		},
	}
	return cmd
}

func previewSelection(idea string, defs map[string]*agents.Definition) error {
	analysis := analyze.NewKeywordAnalyzer().Analyze(idea)
	selected := agents.NewSelector(defs).Select(idea, analysis, nil)

	fmt.Printf("Idea analysis:\n")
	fmt.Printf("  domains:      %s\n", joinOrNone(analysis.Domains))
	fmt.Printf("  technologies: %s\n", joinOrNone(analysis.Technologies))
	fmt.Printf("  complexity:   %s\n", analysis.Complexity)
	fmt.Printf("  project type: %s\n", analysis.ProjectType)
	fmt.Printf("Selected agents: %s\n", joinOrNone(selected))
	return nil
}

func joinOrNone(values []string) string {
	if len(values) == 0 {
		return "(none)"
	}
	return strings.Join(values, ", ")
}
