package motion

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMagnitude(t *testing.T) {
	s := Sample{X: 3, Y: 4, Z: 12}

	tests := []struct {
		name string
		axes Axes
		want float64
	}{
		{"all axes", AllAxes, 13},
		{"zero selection means all", 0, 13},
		{"xy plane", AxisX | AxisY, 5},
		{"single axis takes absolute value", AxisY, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Magnitude(s, tt.axes), 1e-9)
		})
	}

	assert.InDelta(t, 2.0, Magnitude(Sample{Y: -2}, AxisY), 1e-9)
}

func TestParseAxes(t *testing.T) {
	a, err := ParseAxes(" XYZ ")
	require.NoError(t, err)
	assert.Equal(t, AllAxes, a)
	assert.Equal(t, "xyz", a.String())

	a, err = ParseAxes("y")
	require.NoError(t, err)
	assert.Equal(t, AxisY, a)

	for _, bad := range []string{"", "xw", "xx"} {
		_, err := ParseAxes(bad)
		assert.Error(t, err, bad)
	}
}

func TestRetrySourceRecoversWithinBudget(t *testing.T) {
	busErr := errors.New("i2c nack")
	src := NewReplaySource(Sample{Z: 1}, Sample{Z: 1.1}).FailAt(0, busErr)

	var slept []time.Duration
	r := NewRetrySource(src, 3, 40*time.Millisecond, nil)
	r.sleep = func(d time.Duration) { slept = append(slept, d) }

	s, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, Sample{Z: 1.1}, s)
	assert.Equal(t, []time.Duration{40 * time.Millisecond}, slept)
}

func TestRetrySourceReturnsLastGoodOnExhaustion(t *testing.T) {
	busErr := errors.New("i2c nack")
	src := NewReplaySource(Sample{Z: 0.98}, Sample{}, Sample{}, Sample{}).
		FailAt(1, busErr).FailAt(2, busErr).FailAt(3, busErr)

	r := NewRetrySource(src, 3, 0, nil)

	_, err := r.Read()
	require.NoError(t, err)

	s, err := r.Read()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReadExhausted)
	assert.ErrorIs(t, err, busErr)
	assert.Equal(t, Sample{Z: 0.98}, s)
	assert.Equal(t, 4, src.Reads())

	last, ok := r.LastGood()
	assert.True(t, ok)
	assert.Equal(t, Sample{Z: 0.98}, last)
}

func TestReplaySourceLoop(t *testing.T) {
	src := NewReplaySource(Sample{X: 1}, Sample{X: 2})
	src.Loop = true
	for _, want := range []float64{1, 2, 1, 2} {
		s, err := src.Read()
		require.NoError(t, err)
		assert.Equal(t, want, s.X)
	}

	done := NewReplaySource()
	_, err := done.Read()
	assert.ErrorIs(t, err, ErrReplayDone)
}

func TestWalkSourceProducesPeriodicImpacts(t *testing.T) {
	w := NewWalkSource(500*time.Millisecond, 0.8, 0)
	base := w.start

	at := func(d time.Duration) float64 {
		w.now = func() time.Time { return base.Add(d) }
		s, err := w.Read()
		require.NoError(t, err)
		return Magnitude(s, AllAxes)
	}

	peak := at(50 * time.Millisecond)
	rest := at(300 * time.Millisecond)
	nextPeak := at(550 * time.Millisecond)

	assert.Greater(t, peak, 1.7)
	assert.Less(t, math.Abs(rest-1), 0.1)
	assert.InDelta(t, peak, nextPeak, 1e-9)
	assert.InDelta(t, WalkRestingMagnitude(AllAxes), rest, 1e-9)
	assert.Equal(t, 1.0, WalkRestingMagnitude(AxisZ))
}
