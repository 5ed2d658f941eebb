package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/metaclaude/metaclaude/config"
	"github.com/metaclaude/metaclaude/container"
)

// newDoctorCmd checks that the host can run a generation: Docker reachable,
// runtime image present, credential available.
func newDoctorCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that the host is ready to run metaclaude",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}

			ok := true
			check := func(name string, err error, hint string) {
				if err == nil {
					color.Green("  ok    %s", name)
					return
				}
				ok = false
				color.Red("  FAIL  %s: %v", name, err)
				if hint != "" {
					fmt.Printf("        %s\n", hint)
				}
			}

			fmt.Println("Checking environment:")

			runtime, err := container.NewRuntime()
			check("docker daemon", err, "start Docker and ensure the socket is accessible")
			if runtime != nil {
				defer runtime.Close()

				prov := container.NewProvisioner(runtime, cfg.Docker.ImageRef(), cfg.Docker.BuildContext)
				if prov.Exists(cmd.Context()) {
					color.Green("  ok    runtime image %s", cfg.Docker.ImageRef())
				} else {
					color.Yellow("  warn  runtime image %s not built yet (built on first run)", cfg.Docker.ImageRef())
				}
			}

			if os.Getenv("ANTHROPIC_API_KEY") == "" {
				check("ANTHROPIC_API_KEY", fmt.Errorf("not set"), "export ANTHROPIC_API_KEY before running a generation")
			} else {
				color.Green("  ok    ANTHROPIC_API_KEY")
			}

			if !ok {
				return fmt.Errorf("environment is not ready")
			}
			fmt.Println("\nAll checks passed.")
			return nil
		},
	}
}
