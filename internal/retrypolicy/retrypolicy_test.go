package retrypolicy

import (
	"testing"

	"github.com/resflow/forward-runner/internal/node"
	"github.com/resflow/forward-runner/internal/noderegistry"
	"github.com/resflow/forward-runner/internal/nodetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanRetry(t *testing.T) {
	assert.True(t, CanRetry(0, 2))
	assert.True(t, CanRetry(1, 2))
	assert.False(t, CanRetry(2, 2))
}

func TestResampleOnlyTouchesParameterAndDynamicState(t *testing.T) {
	reg := noderegistry.New()
	param := nodetest.New("MULT", node.Parameter, node.GenKW)
	dynState := nodetest.New("PRESSURE", node.DynamicState, node.Field)
	dynResult := nodetest.New("FOPT", node.DynamicResult, node.Summary)
	static := nodetest.New("INTEHEAD", node.StaticState, node.Static)
	reg.Add("MULT", param, nil)
	reg.Add("PRESSURE", dynState, nil)
	reg.Add("FOPT", dynResult, nil)
	reg.Add("INTEHEAD", static, nil)

	require.NoError(t, Resample(reg, 5))

	assert.Equal(t, 1, param.InitializeCalls)
	assert.Equal(t, []int{5}, param.InitializeIens)
	assert.Equal(t, 1, dynState.InitializeCalls)
	assert.Equal(t, 0, dynResult.InitializeCalls)
	assert.Equal(t, 0, static.InitializeCalls)
}

func TestResampleReturnsFirstError(t *testing.T) {
	reg := noderegistry.New()
	ok := nodetest.New("A", node.Parameter, node.GenKW)
	bad := nodetest.New("B", node.Parameter, node.GenKW)
	bad.InitErr = assertErr{}
	reg.Add("A", ok, nil)
	reg.Add("B", bad, nil)

	err := Resample(reg, 1)
	require.Error(t, err)
}

type assertErr struct{}

func (assertErr) Error() string { return "initialize failed" }
