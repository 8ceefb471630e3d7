package dispatch

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/loomgrid/internal/completion"
	"github.com/vk/loomgrid/internal/result"
	"github.com/vk/loomgrid/internal/testutil"
	"github.com/vk/loomgrid/internal/workflow"
)

func newEnv(t *testing.T, w *workflow.Workflow) *RunEnv {
	t.Helper()
	return &RunEnv{
		Workflow: w,
		Results:  result.NewStore(),
		OutDir:   t.TempDir(),
	}
}

func TestDispatchUnknownKind(t *testing.T) {
	r := NewRegistry(&testutil.StubClient{})
	node := &workflow.Node{ID: "x", Kind: workflow.Kind("mystery")}
	entry := r.Dispatch(testutil.QuietContext(), newEnv(t, &workflow.Workflow{}), node)
	assert.False(t, entry.OK)
	assert.Contains(t, entry.Err, "mystery")
}

func TestInputStrategy(t *testing.T) {
	r := NewRegistry(&testutil.StubClient{})
	w := &workflow.Workflow{Nodes: []workflow.Node{testutil.InputNode("i1", "literal")}}

	t.Run("override wins", func(t *testing.T) {
		env := newEnv(t, w)
		env.Overrides = map[string]string{"i1": "overridden"}
		entry := r.Dispatch(testutil.QuietContext(), env, w.Node("i1"))
		require.True(t, entry.OK)
		assert.Equal(t, "overridden", entry.Output)
	})

	t.Run("literal default", func(t *testing.T) {
		entry := r.Dispatch(testutil.QuietContext(), newEnv(t, w), w.Node("i1"))
		require.True(t, entry.OK)
		assert.Equal(t, "literal", entry.Output)
	})

	t.Run("empty when nothing configured", func(t *testing.T) {
		bare := &workflow.Node{ID: "i2", Kind: workflow.KindInput}
		entry := r.Dispatch(testutil.QuietContext(), newEnv(t, w), bare)
		require.True(t, entry.OK)
		assert.Equal(t, "", entry.Output)
	})
}

func TestAgentStrategy(t *testing.T) {
	w := testutil.Linear("wf", testutil.InputNode("i1", "hello"), testutil.AgentNode("a1", "Summarize."))
	w.Nodes[1].Agent.Role = "a research assistant"
	w.Nodes[1].Agent.Tools = []string{"web-search", "calculator"}

	t.Run("builds preamble and message", func(t *testing.T) {
		stub := &testutil.StubClient{Response: "WORLD"}
		r := NewRegistry(stub)
		env := newEnv(t, w)
		require.NoError(t, env.Results.Put(result.Entry{NodeID: "i1", OK: true, Output: "hello"}))

		entry := r.Dispatch(testutil.QuietContext(), env, w.Node("a1"))
		require.True(t, entry.OK)
		assert.Equal(t, "WORLD", entry.Output)

		calls := stub.Calls()
		require.Len(t, calls, 1)
		assert.Contains(t, calls[0].System, "a research assistant")
		assert.Contains(t, calls[0].System, "web-search, calculator")
		assert.Contains(t, calls[0].Message, "hello")
		assert.Contains(t, calls[0].Message, "Summarize.")
		assert.Less(t, strings.Index(calls[0].Message, "hello"), strings.Index(calls[0].Message, "Summarize."), "upstream text precedes the task")
	})

	t.Run("explicit system wins over role", func(t *testing.T) {
		stub := &testutil.StubClient{Response: "ok"}
		r := NewRegistry(stub)
		w2 := testutil.Linear("wf", testutil.AgentNode("a1", "task"))
		w2.Nodes[0].Agent.Role = "ignored"
		w2.Nodes[0].Agent.System = "verbatim preamble"

		r.Dispatch(testutil.QuietContext(), newEnv(t, w2), w2.Node("a1"))
		calls := stub.Calls()
		require.Len(t, calls, 1)
		assert.Contains(t, calls[0].System, "verbatim preamble")
		assert.NotContains(t, calls[0].System, "ignored")
	})

	t.Run("service failure becomes node failure verbatim", func(t *testing.T) {
		r := NewRegistry(&testutil.StubClient{Err: errors.New("overloaded_error: try later")})
		env := newEnv(t, w)
		entry := r.Dispatch(testutil.QuietContext(), env, w.Node("a1"))
		assert.False(t, entry.OK)
		assert.Contains(t, entry.Err, "overloaded_error: try later")
	})

	t.Run("missing configuration fails the node", func(t *testing.T) {
		r := NewRegistry(&testutil.StubClient{})
		bare := &workflow.Node{ID: "a9", Kind: workflow.KindAgent}
		entry := r.Dispatch(testutil.QuietContext(), newEnv(t, w), bare)
		assert.False(t, entry.OK)
	})
}

func TestSkillStrategy(t *testing.T) {
	t.Run("builtin persists an artifact", func(t *testing.T) {
		stub := &testutil.StubClient{Response: "1. A lighthouse at dawn..."}
		r := NewRegistry(stub)
		w := testutil.Linear("wf", testutil.InputNode("i1", "sea story"), testutil.SkillNode("s1", "image-prompt-set"))
		env := newEnv(t, w)
		require.NoError(t, env.Results.Put(result.Entry{NodeID: "i1", OK: true, Output: "sea story"}))

		entry := r.Dispatch(testutil.QuietContext(), env, w.Node("s1"))
		require.True(t, entry.OK)
		assert.Equal(t, "1. A lighthouse at dawn...", entry.Output)
		require.Len(t, entry.Artifacts, 1)
		assert.Equal(t, "markdown", entry.Artifacts[0].Type)
		assert.True(t, filepath.IsAbs(entry.Artifacts[0].Path))

		data, err := os.ReadFile(entry.Artifacts[0].Path)
		require.NoError(t, err)
		assert.Equal(t, "1. A lighthouse at dawn...", string(data))

		calls := stub.Calls()
		require.Len(t, calls, 1)
		assert.Contains(t, calls[0].System, "image prompt sets")
		assert.Contains(t, calls[0].Message, "sea story")
	})

	t.Run("write failure falls back to in-memory result", func(t *testing.T) {
		stub := &testutil.StubClient{Response: "outline"}
		r := NewRegistry(stub)
		w := testutil.Linear("wf", testutil.InputNode("i1", "x"), testutil.SkillNode("s1", "slide-outline"))
		env := newEnv(t, w)
		require.NoError(t, env.Results.Put(result.Entry{NodeID: "i1", OK: true, Output: "x"}))

		// A regular file where the output directory should be makes the
		// write fail.
		blocker := filepath.Join(t.TempDir(), "blocked")
		require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
		env.OutDir = blocker

		entry := r.Dispatch(testutil.QuietContext(), env, w.Node("s1"))
		require.True(t, entry.OK)
		assert.Equal(t, "outline", entry.Output)
		assert.Empty(t, entry.Artifacts)
	})

	t.Run("generic skill has no artifact side effect", func(t *testing.T) {
		stub := &testutil.StubClient{Response: "translated"}
		r := NewRegistry(stub)
		w := testutil.Linear("wf", testutil.SkillNode("s1", "translate-to-french"))
		w.Nodes[0].Skill.Instructions = "Translate the input."
		env := newEnv(t, w)

		entry := r.Dispatch(testutil.QuietContext(), env, w.Node("s1"))
		require.True(t, entry.OK)
		assert.Equal(t, "translated", entry.Output)
		assert.Empty(t, entry.Artifacts)

		calls := stub.Calls()
		require.Len(t, calls, 1)
		assert.Contains(t, calls[0].System, "translate-to-french")
		assert.Contains(t, calls[0].Message, "Translate the input.")
	})

	t.Run("unnamed skill fails", func(t *testing.T) {
		r := NewRegistry(&testutil.StubClient{})
		bare := &workflow.Node{ID: "s9", Kind: workflow.KindSkill, Skill: &workflow.SkillConfig{}}
		entry := r.Dispatch(testutil.QuietContext(), newEnv(t, &workflow.Workflow{}), bare)
		assert.False(t, entry.OK)
	})
}

func TestToolStrategy(t *testing.T) {
	t.Run("describes the integration and settings", func(t *testing.T) {
		stub := &testutil.StubClient{Response: "created issue #42"}
		r := NewRegistry(stub)
		w := testutil.Linear("wf", testutil.InputNode("i1", "bug report"), testutil.ToolNode("t1", "github"))
		w.Nodes[1].Tool.Settings = map[string]string{"repo": "acme/site", "action": "create-issue"}
		env := newEnv(t, w)
		require.NoError(t, env.Results.Put(result.Entry{NodeID: "i1", OK: true, Output: "bug report"}))

		entry := r.Dispatch(testutil.QuietContext(), env, w.Node("t1"))
		require.True(t, entry.OK)
		assert.Equal(t, "created issue #42", entry.Output)

		calls := stub.Calls()
		require.Len(t, calls, 1)
		assert.Contains(t, calls[0].Message, `"github"`)
		assert.Contains(t, calls[0].Message, "repo: acme/site")
		assert.Contains(t, calls[0].Message, "bug report")
		// Settings render sorted by key, so output is stable.
		assert.Less(t, strings.Index(calls[0].Message, "action:"), strings.Index(calls[0].Message, "repo:"))
	})

	t.Run("unnamed integration fails", func(t *testing.T) {
		r := NewRegistry(&testutil.StubClient{})
		bare := &workflow.Node{ID: "t9", Kind: workflow.KindTool, Tool: &workflow.ToolConfig{}}
		entry := r.Dispatch(testutil.QuietContext(), newEnv(t, &workflow.Workflow{}), bare)
		assert.False(t, entry.OK)
	})
}

func TestOutputStrategy(t *testing.T) {
	t.Run("concatenates upstream and writes summary with manifest", func(t *testing.T) {
		r := NewRegistry(&testutil.StubClient{})
		w := &workflow.Workflow{
			ID:   "wf",
			Name: "Report",
			Nodes: []workflow.Node{
				testutil.AgentNode("a1", "t"),
				testutil.AgentNode("a2", "t"),
				testutil.OutputNode("o1"),
			},
			Edges: []workflow.Edge{
				{From: "a1", To: "o1"},
				{From: "a2", To: "o1"},
			},
		}
		env := newEnv(t, w)
		require.NoError(t, env.Results.Put(result.Entry{NodeID: "a1", OK: true, Output: "first", Artifacts: []result.Artifact{{Path: "/tmp/x.md", Type: "markdown", Name: "x"}}}))
		require.NoError(t, env.Results.Put(result.Entry{NodeID: "a2", OK: true, Output: "second"}))

		entry := r.Dispatch(testutil.QuietContext(), env, w.Node("o1"))
		require.True(t, entry.OK)
		assert.Equal(t, "first"+result.Separator+"second", entry.Output)
		require.Len(t, entry.Artifacts, 1)

		data, err := os.ReadFile(entry.Artifacts[0].Path)
		require.NoError(t, err)
		summary := string(data)
		assert.Contains(t, summary, "# Report")
		assert.Contains(t, summary, "first")
		assert.Contains(t, summary, "second")
		assert.Contains(t, summary, "/tmp/x.md")
	})

	t.Run("summary write failure still succeeds", func(t *testing.T) {
		r := NewRegistry(&testutil.StubClient{})
		w := testutil.Linear("wf", testutil.InputNode("i1", "hello"), testutil.OutputNode("o1"))
		env := newEnv(t, w)
		require.NoError(t, env.Results.Put(result.Entry{NodeID: "i1", OK: true, Output: "hello"}))

		blocker := filepath.Join(t.TempDir(), "blocked")
		require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
		env.OutDir = blocker

		entry := r.Dispatch(testutil.QuietContext(), env, w.Node("o1"))
		require.True(t, entry.OK)
		assert.Equal(t, "hello", entry.Output)
		assert.Empty(t, entry.Artifacts)
	})

	t.Run("failed upstream appears in failure section", func(t *testing.T) {
		r := NewRegistry(&testutil.StubClient{})
		w := testutil.Linear("wf", testutil.AgentNode("a1", "t"), testutil.OutputNode("o1"))
		env := newEnv(t, w)
		require.NoError(t, env.Results.Put(result.Entry{NodeID: "a1", Err: "service exploded"}))

		entry := r.Dispatch(testutil.QuietContext(), env, w.Node("o1"))
		require.True(t, entry.OK)
		assert.Equal(t, "", entry.Output)

		require.Len(t, entry.Artifacts, 1)
		data, err := os.ReadFile(entry.Artifacts[0].Path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "service exploded")
	})
}

func TestCallTimeoutExpiresCall(t *testing.T) {
	stub := &testutil.StubClient{Script: func(req completion.Request) (string, error) {
		return "too slow", nil
	}}
	r := NewRegistry(stub)
	w := testutil.Linear("wf", testutil.AgentNode("a1", "task"))
	env := newEnv(t, w)
	env.CallTimeout = 1 // nanosecond: already expired by the time the stub checks

	entry := r.Dispatch(testutil.QuietContext(), env, w.Node("a1"))
	assert.False(t, entry.OK)
	assert.Contains(t, entry.Err, "context deadline exceeded")
}
