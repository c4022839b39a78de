package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recorder []float64

func (r *recorder) Observe(v float64) { *r = append(*r, v) }

func TestNewTimer(t *testing.T) {
	var rec recorder
	timer := NewTimer(&rec)
	time.Sleep(5 * time.Millisecond)
	timer.ObserveDuration()

	require.Len(t, rec, 1)
	require.GreaterOrEqual(t, rec[0], 0.005)
}

func TestNopTimer(t *testing.T) {
	require.NotPanics(t, func() { NopTimer().ObserveDuration() })
}
