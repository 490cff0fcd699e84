package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlabs/weft/internal/domain"
)

func edges(pairs ...[2]string) []domain.Edge {
	out := make([]domain.Edge, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, domain.Edge{From: p[0], To: p[1]})
	}
	return out
}

func TestWidthEmptyGraph(t *testing.T) {
	w, err := Width(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, w)
}

func TestWidthNoEdges(t *testing.T) {
	for _, nodes := range [][]string{
		{"a"},
		{"a", "b"},
		{"a", "b", "c", "d", "e"},
	} {
		w, err := Width(nodes, nil)
		require.NoError(t, err)
		assert.Equal(t, len(nodes), w, "edgeless graph width must equal node count")
	}
}

func TestWidthChain(t *testing.T) {
	nodes := []string{"a", "b", "c", "d"}
	w, err := Width(nodes, edges([2]string{"a", "b"}, [2]string{"b", "c"}, [2]string{"c", "d"}))
	require.NoError(t, err)
	assert.Equal(t, 1, w)
}

func TestWidthDiamond(t *testing.T) {
	nodes := []string{"A", "B", "C", "D"}
	w, err := Width(nodes, edges(
		[2]string{"A", "B"},
		[2]string{"A", "C"},
		[2]string{"B", "D"},
		[2]string{"C", "D"},
	))
	require.NoError(t, err)
	assert.Equal(t, 2, w, "B and C form the maximum antichain")
}

func TestWidthFanInChain(t *testing.T) {
	// 1 & 2 feed 3, which feeds 4.
	nodes := []string{"1", "2", "3", "4"}
	w, err := Width(nodes, edges(
		[2]string{"1", "3"},
		[2]string{"2", "3"},
		[2]string{"3", "4"},
	))
	require.NoError(t, err)
	assert.Equal(t, 2, w)
}

func TestWidthDoubleDiamond(t *testing.T) {
	nodes := []string{"1", "2", "3", "4", "5", "6"}
	w, err := Width(nodes, edges(
		[2]string{"1", "3"},
		[2]string{"2", "3"},
		[2]string{"3", "4"},
		[2]string{"3", "5"},
		[2]string{"4", "6"},
		[2]string{"5", "6"},
	))
	require.NoError(t, err)
	assert.Equal(t, 2, w)
}

func TestWidthDisconnectedChains(t *testing.T) {
	nodes := []string{"a1", "a2", "a3", "b1", "b2"}
	w, err := Width(nodes, edges(
		[2]string{"a1", "a2"},
		[2]string{"a2", "a3"},
		[2]string{"b1", "b2"},
	))
	require.NoError(t, err)
	assert.Equal(t, 2, w, "one node per independent chain")
}

func TestWidthLayeredGraph(t *testing.T) {
	// Three sources all feeding one sink: the sources are the antichain.
	nodes := []string{"s1", "s2", "s3", "sink"}
	w, err := Width(nodes, edges(
		[2]string{"s1", "sink"},
		[2]string{"s2", "sink"},
		[2]string{"s3", "sink"},
	))
	require.NoError(t, err)
	assert.Equal(t, 3, w)
}

func TestWidthDuplicateEdgesTolerated(t *testing.T) {
	nodes := []string{"a", "b"}
	w, err := Width(nodes, edges(
		[2]string{"a", "b"},
		[2]string{"a", "b"},
		[2]string{"a", "b"},
	))
	require.NoError(t, err)
	assert.Equal(t, 1, w)
}

func TestWidthNeverExceedsNodeCount(t *testing.T) {
	nodes := []string{"a", "b", "c", "d", "e", "f"}
	es := edges(
		[2]string{"a", "c"},
		[2]string{"b", "c"},
		[2]string{"c", "d"},
		[2]string{"d", "e"},
		[2]string{"d", "f"},
	)
	w, err := Width(nodes, es)
	require.NoError(t, err)
	assert.LessOrEqual(t, w, len(nodes))
	assert.GreaterOrEqual(t, w, 1)
}

func TestWidthRejectsSelfEdge(t *testing.T) {
	_, err := Width([]string{"a", "b"}, edges([2]string{"a", "a"}))
	require.ErrorIs(t, err, domain.ErrSelfEdge)
}

func TestWidthRejectsUnknownNode(t *testing.T) {
	_, err := Width([]string{"a"}, edges([2]string{"a", "ghost"}))
	require.ErrorIs(t, err, domain.ErrUnknownNode)
}

func TestWidthRejectsCycle(t *testing.T) {
	_, err := Width([]string{"a", "b", "c"}, edges(
		[2]string{"a", "b"},
		[2]string{"b", "c"},
		[2]string{"c", "a"},
	))
	require.ErrorIs(t, err, domain.ErrCyclicWorkflow)
}

func TestWidthRejectsDuplicateNode(t *testing.T) {
	_, err := Width([]string{"a", "a"}, nil)
	require.ErrorIs(t, err, domain.ErrDuplicateNode)
}
