package container

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types"
	archive "github.com/moby/go-archive"
)

// DefaultImageRef is the tag given to the MetaClaude runtime image.
const DefaultImageRef = "metaclaude:latest"

// Provisioner ensures the runtime image exists, building it from a fixed
// build context when it is missing or a rebuild is forced. Concurrent
// check-then-build callers may race and double-build; both builds converge on
// the same tag, so the race is accepted as best-effort.
type Provisioner struct {
	runtime    *Runtime
	ref        string
	contextDir string
}

// NewProvisioner creates a provisioner building contextDir into ref.
func NewProvisioner(rt *Runtime, ref, contextDir string) *Provisioner {
	if ref == "" {
		ref = DefaultImageRef
	}
	return &Provisioner{runtime: rt, ref: ref, contextDir: contextDir}
}

// Ref returns the image reference the provisioner manages.
func (p *Provisioner) Ref() string {
	return p.ref
}

// Exists reports whether the image is already present locally.
func (p *Provisioner) Exists(ctx context.Context) bool {
	_, _, err := p.runtime.client.ImageInspectWithRaw(ctx, p.ref)
	return err == nil
}

// Ensure returns the image reference, building the image first when it is
// absent or forceRebuild is set. The fast path is a local inspect only.
func (p *Provisioner) Ensure(ctx context.Context, forceRebuild bool) (string, error) {
	if !forceRebuild && p.Exists(ctx) {
		return p.ref, nil
	}
	if err := p.build(ctx, forceRebuild); err != nil {
		return "", err
	}
	return p.ref, nil
}

// build tars the build context and runs the daemon-side build, surfacing the
// daemon's diagnostic on failure.
func (p *Provisioner) build(ctx context.Context, noCache bool) error {
	buildCtx, err := archive.TarWithOptions(p.contextDir, &archive.TarOptions{})
	if err != nil {
		return fmt.Errorf("tar build context %s: %w", p.contextDir, err)
	}
	defer buildCtx.Close()

	resp, err := p.runtime.client.ImageBuild(ctx, buildCtx, types.ImageBuildOptions{
		Tags:        []string{p.ref},
		NoCache:     noCache,
		Remove:      true,
		ForceRemove: true,
	})
	if err != nil {
		return fmt.Errorf("build %s: %w", p.ref, err)
	}
	defer resp.Body.Close()

	return drainBuildStream(resp.Body)
}

// buildMessage is one JSONL record of the daemon's build output.
type buildMessage struct {
	Stream string `json:"stream"`
	Error  string `json:"error"`
}

// drainBuildStream consumes the build output until EOF. The build is not
// complete until the stream ends; an error record fails the build with the
// daemon's diagnostic.
func drainBuildStream(body io.Reader) error {
	dec := json.NewDecoder(body)
	var lastStep string
	for {
		var msg buildMessage
		if err := dec.Decode(&msg); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("decode build output: %w", err)
		}
		if msg.Error != "" {
			if lastStep != "" {
				return fmt.Errorf("image build failed at %q: %s", lastStep, msg.Error)
			}
			return fmt.Errorf("image build failed: %s", msg.Error)
		}
		if step := strings.TrimSpace(msg.Stream); step != "" {
			lastStep = step
		}
	}
}
