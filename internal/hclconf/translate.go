package hclconf

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/vk/loomgrid/internal/workflow"
)

// fileRoot decodes every top-level block a workflow file may contain.
type fileRoot struct {
	Workflows []*workflowBlock `hcl:"workflow,block"`
	Nodes     []*nodeBlock     `hcl:"node,block"`
	Edges     []*edgeBlock     `hcl:"edge,block"`
}

type workflowBlock struct {
	Name      string  `hcl:"name,label"`
	OutputDir *string `hcl:"output_dir,optional"`
}

// nodeBlock is the superset of all kind-specific attributes; translate
// picks the ones matching the declared kind and rejects leftovers lazily
// (unknown attributes for a kind are simply ignored, matching the
// free-form payload model).
type nodeBlock struct {
	ID   string  `hcl:"id,label"`
	Kind string  `hcl:"kind"`
	Name *string `hcl:"name,optional"`

	Value *string `hcl:"value,optional"`

	Role   *string  `hcl:"role,optional"`
	System *string  `hcl:"system,optional"`
	Task   *string  `hcl:"task,optional"`
	Tools  []string `hcl:"tools,optional"`
	Tier   *string  `hcl:"tier,optional"`

	Skill        *string `hcl:"skill,optional"`
	Instructions *string `hcl:"instructions,optional"`

	Integration *string   `hcl:"integration,optional"`
	Settings    cty.Value `hcl:"settings,optional"`

	Format *string `hcl:"format,optional"`
}

type edgeBlock struct {
	From string `hcl:"from"`
	To   string `hcl:"to"`
}

// translate turns decoded blocks into the immutable workflow model.
func translate(root *fileRoot, path string) (*Definition, error) {
	if len(root.Workflows) > 1 {
		return nil, fmt.Errorf("expected at most one workflow block, found %d", len(root.Workflows))
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	outDir := ""
	if len(root.Workflows) == 1 {
		name = root.Workflows[0].Name
		if root.Workflows[0].OutputDir != nil {
			outDir = *root.Workflows[0].OutputDir
		}
	}

	w := &workflow.Workflow{ID: name, Name: name}
	for _, nb := range root.Nodes {
		node, err := translateNode(nb)
		if err != nil {
			return nil, err
		}
		w.Nodes = append(w.Nodes, node)
	}
	for _, eb := range root.Edges {
		w.Edges = append(w.Edges, workflow.Edge{From: eb.From, To: eb.To})
	}

	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &Definition{Workflow: w, OutDir: outDir}, nil
}

func translateNode(nb *nodeBlock) (workflow.Node, error) {
	kind := workflow.Kind(nb.Kind)
	node := workflow.Node{ID: nb.ID, Kind: kind, Name: deref(nb.Name)}

	switch kind {
	case workflow.KindInput:
		node.Input = &workflow.InputConfig{Value: deref(nb.Value)}
	case workflow.KindAgent:
		node.Agent = &workflow.AgentConfig{
			Role:   deref(nb.Role),
			System: deref(nb.System),
			Task:   deref(nb.Task),
			Tools:  nb.Tools,
			Tier:   deref(nb.Tier),
		}
	case workflow.KindSkill:
		node.Skill = &workflow.SkillConfig{
			Skill:        deref(nb.Skill),
			Instructions: deref(nb.Instructions),
		}
	case workflow.KindTool:
		settings, err := settingsMap(nb.Settings)
		if err != nil {
			return workflow.Node{}, fmt.Errorf("node %s: %w", nb.ID, err)
		}
		node.Tool = &workflow.ToolConfig{
			Integration: deref(nb.Integration),
			Settings:    settings,
		}
	case workflow.KindOutput:
		node.Output = &workflow.OutputConfig{Format: deref(nb.Format)}
	default:
		return workflow.Node{}, fmt.Errorf("node %s: %w: %q", nb.ID, workflow.ErrBadKind, nb.Kind)
	}
	return node, nil
}

// settingsMap converts the free-form settings object into string pairs.
// Numbers and bools convert through cty so `retries = 3` reads naturally
// in the file.
func settingsMap(v cty.Value) (map[string]string, error) {
	if v.Type() == cty.NilType || v.IsNull() {
		return nil, nil
	}
	if !v.Type().IsObjectType() && !v.Type().IsMapType() {
		return nil, fmt.Errorf("settings must be an object, got %s", v.Type().FriendlyName())
	}

	out := make(map[string]string, v.LengthInt())
	for key, val := range v.AsValueMap() {
		converted, err := convert.Convert(val, cty.String)
		if err != nil {
			return nil, fmt.Errorf("settings.%s: %w", key, err)
		}
		if converted.IsNull() {
			continue
		}
		out[key] = converted.AsString()
	}
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
