package noderegistry

import (
	"errors"
	"testing"

	"github.com/resflow/forward-runner/internal/node"
	"github.com/resflow/forward-runner/internal/nodetest"
	"github.com/resflow/forward-runner/internal/subst"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddGetHasDelete(t *testing.T) {
	r := New()
	n := nodetest.New("PRESSURE", node.DynamicState, node.Field)
	r.Add("PRESSURE", n, nil)

	assert.True(t, r.Has("PRESSURE"))
	got, err := r.Get("PRESSURE")
	require.NoError(t, err)
	assert.Same(t, n, got)

	r.Delete("PRESSURE")
	assert.False(t, r.Has("PRESSURE"))
}

func TestGetMissingReturnsNodeMissing(t *testing.T) {
	r := New()
	_, err := r.Get("NOPE")
	require.Error(t, err)
	var re *Error
	require.True(t, errors.As(err, &re))
	assert.Equal(t, KindNodeMissing, re.Kind)
}

func TestAddReplacesExisting(t *testing.T) {
	r := New()
	first := nodetest.New("K", node.Parameter, node.GenKW)
	second := nodetest.New("K", node.Parameter, node.GenKW)
	r.Add("K", first, nil)
	r.Add("K", second, nil)

	got, err := r.Get("K")
	require.NoError(t, err)
	assert.Same(t, second, got)
	assert.Equal(t, 1, r.Len())
}

func TestSnapshotThenIterateAllowsMutation(t *testing.T) {
	r := New()
	r.Add("A", nodetest.New("A", node.StaticState, node.Static), nil)
	r.Add("B", nodetest.New("B", node.StaticState, node.Static), nil)
	r.Add("C", nodetest.New("C", node.StaticState, node.Static), nil)

	visited := []string{}
	r.Iter(func(key string, n node.Node) {
		visited = append(visited, key)
		if key == "A" {
			r.Delete("B")
			r.Add("D", nodetest.New("D", node.StaticState, node.Static), nil)
		}
	})

	assert.ElementsMatch(t, []string{"A", "B", "C"}, visited)
	assert.True(t, r.Has("D"))
	assert.False(t, r.Has("B"))
}

func TestAddWiresGenKWSubstParent(t *testing.T) {
	r := New()
	n := nodetest.New("MULT", node.Parameter, node.GenKW)
	tbl := subst.NewTable("<", ">")
	r.Add("MULT", n, tbl)
	// WireSubstParent is a no-op fake; the assertion here is that Add did
	// not panic probing the optional interface on a node that implements it.
	assert.True(t, r.Has("MULT"))
}
