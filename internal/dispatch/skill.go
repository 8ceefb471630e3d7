package dispatch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/loomgrid/internal/completion"
	"github.com/vk/loomgrid/internal/ctxlog"
	"github.com/vk/loomgrid/internal/result"
	"github.com/vk/loomgrid/internal/workflow"
)

// builtinSkill is one of the specialized two-step behaviors: expand the
// upstream text into a structured artifact description, then persist it.
type builtinSkill struct {
	system      string
	displayName string
}

var builtinSkills = map[string]builtinSkill{
	"image-prompt-set": {
		system: "You generate image prompt sets. Expand the provided material into a numbered " +
			"set of detailed, self-contained image generation prompts in markdown. Each prompt " +
			"must describe subject, style, composition, and lighting.",
		displayName: "Image prompt set",
	},
	"slide-outline": {
		system: "You generate slide outlines. Expand the provided material into a markdown slide " +
			"outline: one second-level heading per slide with three to five bullet points each, " +
			"starting with a title slide and ending with a summary slide.",
		displayName: "Slide outline",
	},
}

// skillStrategy executes skill nodes. Built-in skills persist their
// response as an artifact; everything else is a plain completion exchange.
type skillStrategy struct {
	client completion.Client
}

func (s *skillStrategy) Execute(ctx context.Context, env *RunEnv, node *workflow.Node) result.Entry {
	cfg := node.Skill
	if cfg == nil || cfg.Skill == "" {
		return failed(node, "skill node %s does not name a skill", node.ID)
	}

	upstream := env.Results.Upstream(env.Workflow, node.ID)

	if builtin, ok := builtinSkills[cfg.Skill]; ok {
		return s.executeBuiltin(ctx, env, node, builtin, upstream)
	}
	return s.executeGeneric(ctx, env, node, upstream)
}

// executeBuiltin runs the two-step flow: ask the service for a structured
// description, then write it to the output directory. A write failure does
// not fail the node; the in-memory text is still the result.
func (s *skillStrategy) executeBuiltin(ctx context.Context, env *RunEnv, node *workflow.Node, builtin builtinSkill, upstream string) result.Entry {
	logger := ctxlog.FromContext(ctx)

	message := upstream
	if node.Skill.Instructions != "" {
		message = strings.Join(compact(upstream, node.Skill.Instructions), result.Separator)
	}
	if message == "" {
		return failed(node, "skill node %s has no upstream material to expand", node.ID)
	}

	callCtx, cancel := env.callCtx(ctx)
	defer cancel()

	text, err := s.client.Complete(callCtx, completion.Request{
		System:  builtin.system,
		Message: message,
		Tier:    completion.TierBalanced,
	})
	if err != nil {
		return failed(node, "%s", err.Error())
	}

	path, err := writeArtifact(env.OutDir, fmt.Sprintf("%s-%s.md", node.ID, node.Skill.Skill), text)
	if err != nil {
		logger.Warn("Failed to persist skill artifact, keeping in-memory result.", "nodeID", node.ID, "error", err)
		return succeeded(node, text)
	}
	return succeeded(node, text, result.Artifact{
		Path: path,
		Type: "markdown",
		Name: fmt.Sprintf("%s (%s)", builtin.displayName, node.ID),
	})
}

// executeGeneric sends upstream plus inline instructions to the service
// and uses the response as the result, with no artifact side effect.
func (s *skillStrategy) executeGeneric(ctx context.Context, env *RunEnv, node *workflow.Node, upstream string) result.Entry {
	message := strings.Join(compact(upstream, node.Skill.Instructions), result.Separator)
	if message == "" {
		return failed(node, "skill node %s has neither upstream context nor instructions", node.ID)
	}

	callCtx, cancel := env.callCtx(ctx)
	defer cancel()

	text, err := s.client.Complete(callCtx, completion.Request{
		System:  fmt.Sprintf("You are executing the %q skill as one step of a workflow. Reply with the skill output only.", node.Skill.Skill),
		Message: message,
		Tier:    completion.TierBalanced,
	})
	if err != nil {
		return failed(node, "%s", err.Error())
	}
	return succeeded(node, text)
}

// compact drops empty strings.
func compact(parts ...string) []string {
	out := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// writeArtifact persists content under dir and returns the absolute path.
func writeArtifact(dir, name, content string) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path, nil
	}
	return abs, nil
}
