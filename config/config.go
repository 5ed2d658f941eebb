// Package config loads MetaClaude configuration from defaults, an optional
// YAML file, and METACLAUDE_* environment overrides, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Docker configures the runtime image.
type Docker struct {
	ImageName    string `yaml:"image_name"`
	ImageTag     string `yaml:"image_tag"`
	BuildContext string `yaml:"build_context"`
	NoCache      bool   `yaml:"no_cache"`
}

// ImageRef returns the full image reference.
func (d Docker) ImageRef() string {
	return d.ImageName + ":" + d.ImageTag
}

// Execution configures run behavior.
type Execution struct {
	Timeout       string `yaml:"timeout"`
	KeepContainer bool   `yaml:"keep_container"`
	OutputBaseDir string `yaml:"output_base_dir"`
	StopGraceSecs int    `yaml:"stop_grace_seconds"`
}

// Claude configures the generation session.
type Claude struct {
	Model string `yaml:"model"`
}

// Logging configures the CLI logger.
type Logging struct {
	Level string `yaml:"level"`
}

// Config is the full MetaClaude configuration.
type Config struct {
	Docker    Docker    `yaml:"docker"`
	Execution Execution `yaml:"execution"`
	Claude    Claude    `yaml:"claude"`
	Logging   Logging   `yaml:"logging"`
	AgentsDir string    `yaml:"agents_dir"`
}

// Default returns the built-in configuration.
func Default() Config {
	cwd, _ := os.Getwd()
	return Config{
		Docker: Docker{
			ImageName:    "metaclaude",
			ImageTag:     "latest",
			BuildContext: "docker",
		},
		Execution: Execution{
			Timeout:       "unlimited",
			OutputBaseDir: cwd,
			StopGraceSecs: 10,
		},
		Claude:    Claude{Model: "opus"},
		Logging:   Logging{Level: "info"},
		AgentsDir: "agents",
	}
}

// Load builds the configuration: defaults, then the YAML file at path (when
// path is empty, ".metaclaude.yaml" is used if present), then environment
// overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	optional := false
	if path == "" {
		path = ".metaclaude.yaml"
		optional = true
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err) && optional:
		// No config file is fine.
	default:
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnv(&cfg)
	return cfg, cfg.validate()
}

// applyEnv overlays METACLAUDE_* environment variables.
func applyEnv(cfg *Config) {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	setBool := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok {
			if parsed, err := strconv.ParseBool(v); err == nil {
				*dst = parsed
			}
		}
	}

	setString("METACLAUDE_IMAGE_NAME", &cfg.Docker.ImageName)
	setString("METACLAUDE_IMAGE_TAG", &cfg.Docker.ImageTag)
	setString("METACLAUDE_BUILD_CONTEXT", &cfg.Docker.BuildContext)
	setBool("METACLAUDE_NO_CACHE", &cfg.Docker.NoCache)
	setString("METACLAUDE_TIMEOUT", &cfg.Execution.Timeout)
	setBool("METACLAUDE_KEEP_CONTAINER", &cfg.Execution.KeepContainer)
	setString("METACLAUDE_OUTPUT_DIR", &cfg.Execution.OutputBaseDir)
	setString("METACLAUDE_MODEL", &cfg.Claude.Model)
	setString("METACLAUDE_LOG_LEVEL", &cfg.Logging.Level)
	setString("METACLAUDE_AGENTS_DIR", &cfg.AgentsDir)
}

// validate rejects configurations that would fail mid-run.
func (c *Config) validate() error {
	if c.Docker.ImageName == "" {
		return fmt.Errorf("docker.image_name must not be empty")
	}
	if c.Docker.ImageTag == "" {
		return fmt.Errorf("docker.image_tag must not be empty")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q: use debug, info, warn or error", c.Logging.Level)
	}
	if c.Execution.StopGraceSecs < 0 {
		return fmt.Errorf("execution.stop_grace_seconds must not be negative")
	}
	return nil
}
