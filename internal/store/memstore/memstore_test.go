package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resflow/forward-runner/internal/rundesc"
	"github.com/resflow/forward-runner/internal/store"
)

func TestPutGetNodeRoundTrips(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.PutNode(ctx, "FOPR", 3, 7, rundesc.Forecast, []byte("payload")))

	got, err := s.GetNode(ctx, "FOPR", 3, 7, rundesc.Forecast)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
}

func TestGetNodeMissesAreDistinguishedByEveryKeyComponent(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.PutNode(ctx, "FOPR", 3, 7, rundesc.Forecast, []byte("payload")))

	_, err := s.GetNode(ctx, "FOPR", 3, 7, rundesc.Analyzed)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.GetNode(ctx, "FOPR", 4, 7, rundesc.Forecast)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.GetNode(ctx, "FOPR", 3, 8, rundesc.Forecast)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPutNodeCopiesSoCallerMutationDoesNotLeak(t *testing.T) {
	ctx := context.Background()
	s := New()
	buf := []byte("original")
	require.NoError(t, s.PutNode(ctx, "K", 0, 0, rundesc.Forecast, buf))
	buf[0] = 'X'

	got, err := s.GetNode(ctx, "K", 0, 0, rundesc.Forecast)
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), got)
}

func TestRestartKeywordsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.GetRestartKeywords(ctx, 1, 2)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.PutRestartKeywords(ctx, 1, 2, []string{"PRESSURE", "SWAT"}))
	got, err := s.GetRestartKeywords(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"PRESSURE", "SWAT"}, got)
}

func TestSimTimesRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.GetSimTimes(ctx, 9)
	assert.ErrorIs(t, err, store.ErrNotFound)

	at := map[int]time.Time{1: time.Unix(1000, 0), 2: time.Unix(2000, 0)}
	require.NoError(t, s.PutSimTimes(ctx, 9, at))

	got, err := s.GetSimTimes(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, at, got)
}
