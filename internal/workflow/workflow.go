package workflow

// Kind identifies the execution strategy a node is dispatched to.
type Kind string

const (
	KindInput  Kind = "input"
	KindAgent  Kind = "agent"
	KindSkill  Kind = "skill"
	KindTool   Kind = "external-tool"
	KindOutput Kind = "output"
)

// Valid reports whether k names one of the five supported node kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindInput, KindAgent, KindSkill, KindTool, KindOutput:
		return true
	}
	return false
}

// InputConfig is the payload of an input node. Value is the literal default
// used when the run supplies no override for the node.
type InputConfig struct {
	Value string
}

// AgentConfig is the payload of an agent node.
type AgentConfig struct {
	// Role derives the instruction preamble when System is empty.
	Role string
	// System, when set, is used verbatim as the instruction preamble.
	System string
	// Task is the node's own description, appended after the upstream text.
	Task string
	// Tools is the allow-list enumerated in the preamble. Empty means no
	// tool access is mentioned at all.
	Tools []string
	// Tier selects the completion model ("fast", "balanced", "powerful").
	Tier string
}

// SkillConfig is the payload of a skill node.
type SkillConfig struct {
	// Skill names either a built-in specialized behavior or a generic skill.
	Skill string
	// Instructions is optional inline instruction text for generic skills.
	Instructions string
}

// ToolConfig is the payload of an external-tool node. The engine does not
// call the named integration; it asks the completion service to simulate
// the interaction, so Settings only shape that prompt.
type ToolConfig struct {
	Integration string
	Settings    map[string]string
}

// OutputConfig is the payload of an output node.
type OutputConfig struct {
	// Format is the desired rendering mode of the summary, e.g. "markdown".
	Format string
}

// Node is one unit of work in a workflow graph. Exactly one of the config
// pointers matching Kind is set; the rest are nil.
type Node struct {
	ID   string
	Kind Kind
	Name string

	Input  *InputConfig
	Agent  *AgentConfig
	Skill  *SkillConfig
	Tool   *ToolConfig
	Output *OutputConfig
}

// Edge is a directed dependency: To consumes From's result.
type Edge struct {
	From string
	To   string
}

// Workflow is the immutable node/edge set of one run.
type Workflow struct {
	ID    string
	Name  string
	Nodes []Node
	Edges []Edge
}

// Node returns the node with the given id, or nil.
func (w *Workflow) Node(id string) *Node {
	for i := range w.Nodes {
		if w.Nodes[i].ID == id {
			return &w.Nodes[i]
		}
	}
	return nil
}

// Roots returns the ids of all nodes with no incoming edge, in node-list
// order.
func (w *Workflow) Roots() []string {
	hasIncoming := make(map[string]bool, len(w.Nodes))
	for _, e := range w.Edges {
		hasIncoming[e.To] = true
	}
	var roots []string
	for _, n := range w.Nodes {
		if !hasIncoming[n.ID] {
			roots = append(roots, n.ID)
		}
	}
	return roots
}

// Successors returns the ids of all immediate successors of the given node,
// in edge-list order. Duplicate edges yield duplicate entries on purpose:
// edge multiplicity matters for the concatenation rule.
func (w *Workflow) Successors(id string) []string {
	var succ []string
	for _, e := range w.Edges {
		if e.From == id {
			succ = append(succ, e.To)
		}
	}
	return succ
}

// Incoming returns all edges pointing at the given node, in edge-list
// order. This order defines how upstream results are concatenated.
func (w *Workflow) Incoming(id string) []Edge {
	var in []Edge
	for _, e := range w.Edges {
		if e.To == id {
			in = append(in, e)
		}
	}
	return in
}
