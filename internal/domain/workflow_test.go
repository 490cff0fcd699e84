package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowValidate(t *testing.T) {
	t.Run("valid diamond", func(t *testing.T) {
		w := &Workflow{
			Nodes: []string{"1", "2", "3", "4"},
			Edges: []Edge{{"1", "2"}, {"1", "3"}, {"2", "4"}, {"3", "4"}},
		}
		require.NoError(t, w.Validate())
	})

	t.Run("single node no edges", func(t *testing.T) {
		w := &Workflow{Nodes: []string{"a"}}
		require.NoError(t, w.Validate())
	})

	t.Run("empty workflow", func(t *testing.T) {
		w := &Workflow{}
		assert.ErrorIs(t, w.Validate(), ErrEmptyWorkflow)
	})

	t.Run("empty node id", func(t *testing.T) {
		w := &Workflow{Nodes: []string{"a", ""}}
		assert.ErrorIs(t, w.Validate(), ErrEmptyNodeID)
	})

	t.Run("duplicate node", func(t *testing.T) {
		w := &Workflow{Nodes: []string{"a", "b", "a"}}
		assert.ErrorIs(t, w.Validate(), ErrDuplicateNode)
	})

	t.Run("self edge", func(t *testing.T) {
		w := &Workflow{
			Nodes: []string{"a", "b"},
			Edges: []Edge{{"a", "a"}},
		}
		assert.ErrorIs(t, w.Validate(), ErrSelfEdge)
	})

	t.Run("unknown edge endpoint", func(t *testing.T) {
		w := &Workflow{
			Nodes: []string{"a", "b"},
			Edges: []Edge{{"a", "c"}},
		}
		assert.ErrorIs(t, w.Validate(), ErrUnknownNode)
	})

	t.Run("two node cycle", func(t *testing.T) {
		w := &Workflow{
			Nodes: []string{"a", "b"},
			Edges: []Edge{{"a", "b"}, {"b", "a"}},
		}
		assert.ErrorIs(t, w.Validate(), ErrCyclicWorkflow)
	})

	t.Run("longer cycle behind a valid prefix", func(t *testing.T) {
		w := &Workflow{
			Nodes: []string{"a", "b", "c", "d"},
			Edges: []Edge{{"a", "b"}, {"b", "c"}, {"c", "d"}, {"d", "b"}},
		}
		assert.ErrorIs(t, w.Validate(), ErrCyclicWorkflow)
	})

	t.Run("duplicate edges tolerated", func(t *testing.T) {
		w := &Workflow{
			Nodes: []string{"a", "b"},
			Edges: []Edge{{"a", "b"}, {"a", "b"}},
		}
		require.NoError(t, w.Validate())
	})
}

func TestAgentFor(t *testing.T) {
	w := &Workflow{
		Nodes:  []string{"plan", "write"},
		Agents: map[string]string{"write": "writer-v2"},
	}
	assert.Equal(t, "plan", w.AgentFor("plan"))
	assert.Equal(t, "writer-v2", w.AgentFor("write"))
}

func TestRunStatusTerminal(t *testing.T) {
	assert.False(t, RunStatusSubmitted.Terminal())
	assert.False(t, RunStatusRunning.Terminal())
	assert.True(t, RunStatusCompleted.Terminal())
	assert.True(t, RunStatusFailed.Terminal())
	assert.True(t, RunStatusTimedOut.Terminal())
	assert.True(t, RunStatusCancelled.Terminal())
}

func TestTaskMessageKey(t *testing.T) {
	task := &TaskMessage{RunID: "run-1", NodeID: "node-a"}
	assert.Equal(t, "run-1|node-a", task.Key())
}
