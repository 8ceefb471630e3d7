// Package hclconf loads workflow definitions from HCL files.
//
// A definition is one `workflow` block plus any number of `node` and
// `edge` blocks, spread over one file or a directory of .hcl files:
//
//	workflow "research-brief" {
//	  output_dir = "out"
//	}
//
//	node "i1" {
//	  kind  = "input"
//	  value = "A short brief about tidal energy."
//	}
//
//	node "a1" {
//	  kind = "agent"
//	  role = "a technical writer"
//	  task = "Turn the material into a one-page brief."
//	  tier = "balanced"
//	}
//
//	node "o1" {
//	  kind   = "output"
//	  format = "markdown"
//	}
//
//	edge {
//	  from = "i1"
//	  to   = "a1"
//	}
//
//	edge {
//	  from = "a1"
//	  to   = "o1"
//	}
package hclconf

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/loomgrid/internal/ctxlog"
	"github.com/vk/loomgrid/internal/fsutil"
	"github.com/vk/loomgrid/internal/workflow"
)

// Definition is a loaded workflow plus the file-level run settings.
type Definition struct {
	Workflow *workflow.Workflow
	// OutDir is the output directory named in the workflow block; empty
	// when the block does not set one.
	OutDir string
}

// Loader parses HCL workflow files.
type Loader struct{}

// NewLoader creates a new workflow definition loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads the definition at path, which may be a single .hcl file or a
// directory searched recursively. Blocks from all discovered files merge
// into one workflow.
func (l *Loader) Load(ctx context.Context, path string) (*Definition, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := findWorkflowFiles(path)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .hcl workflow files found at %s", path)
	}
	logger.Debug("Discovered workflow files.", "count", len(files))

	parser := hclparse.NewParser()
	var merged fileRoot
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse %s: %w", file, diags)
		}
		var root fileRoot
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode %s: %w", file, diags)
		}
		merged.Workflows = append(merged.Workflows, root.Workflows...)
		merged.Nodes = append(merged.Nodes, root.Nodes...)
		merged.Edges = append(merged.Edges, root.Edges...)
	}

	def, err := translate(&merged, path)
	if err != nil {
		return nil, err
	}
	logger.Debug("Workflow definition loaded.",
		"workflowID", def.Workflow.ID,
		"nodes", len(def.Workflow.Nodes),
		"edges", len(def.Workflow.Edges))
	return def, nil
}

// findWorkflowFiles returns all .hcl files under path, or path itself when
// it is a file.
func findWorkflowFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("accessing %s: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	return fsutil.FindFilesByExtension(path, ".hcl")
}
