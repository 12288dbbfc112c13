package subst

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandStringCascade(t *testing.T) {
	tbl := NewTable("<", ">")
	tbl.Set("IENS", "3", "realization index")
	tbl.Set("ECLBASE", "CASE_<IENS>", "eclipse base name")

	out, err := tbl.ExpandString("base=<ECLBASE>")
	require.NoError(t, err)
	assert.Equal(t, "base=CASE_3", out)
}

func TestExpandStringNoSentinels(t *testing.T) {
	tbl := NewTable("<", ">")
	out, err := tbl.ExpandString("plain text")
	require.NoError(t, err)
	assert.Equal(t, "plain text", out)
}

func TestExpandStringCycleDetected(t *testing.T) {
	tbl := NewTable("<", ">")
	tbl.Set("A", "<B>X", "")
	tbl.Set("B", "<A>Y", "")

	_, err := tbl.ExpandString("<A>")
	require.Error(t, err)
	var se *Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, KindCycle, se.Kind)
	assert.True(t, errors.Is(err, &Error{Kind: KindCycle}))
}

func TestSetReplacesInPlaceWithoutReordering(t *testing.T) {
	tbl := NewTable("<", ">")
	tbl.Set("A", "1", "")
	tbl.Set("B", "2", "")
	tbl.Set("A", "9", "updated")

	assert.Equal(t, []string{"A", "B"}, tbl.Keys())
	v, ok := tbl.Get("A")
	require.True(t, ok)
	assert.Equal(t, "9", v)
}

func TestHasAndGetMissing(t *testing.T) {
	tbl := NewTable("<", ">")
	assert.False(t, tbl.Has("MISSING"))
	_, ok := tbl.Get("MISSING")
	assert.False(t, ok)
}
