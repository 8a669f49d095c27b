package calibrate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/step_counter/internal/motion"
)

var errBus = errors.New("bus timeout")

func TestRunAveragesMagnitudes(t *testing.T) {
	src := motion.NewReplaySource(
		motion.Sample{Z: 0.9},
		motion.Sample{Z: 1.0},
		motion.Sample{Z: 1.1},
		motion.Sample{X: 0.6, Y: 0.8},
	)

	b, err := Run(context.Background(), src, Options{Samples: 4, Axes: motion.AllAxes})
	require.NoError(t, err)

	assert.InDelta(t, 1.0, b.Magnitude, 1e-9)
	assert.Equal(t, 4, b.Samples)
	assert.Zero(t, b.Failures)
	assert.Greater(t, b.StdDev, 0.0)
	assert.Equal(t, 4, src.Reads(), "draws exactly the requested number of samples")
}

func TestRunUsesAxisSubset(t *testing.T) {
	src := motion.NewReplaySource(motion.Sample{X: 3, Y: 4, Z: 12}, motion.Sample{X: 3, Y: 4, Z: 12})

	b, err := Run(context.Background(), src, Options{Samples: 2, Axes: motion.AxisX | motion.AxisY})
	require.NoError(t, err)
	assert.InDelta(t, 5.0, b.Magnitude, 1e-9)
	assert.Zero(t, b.StdDev)
}

func TestRunExcludesFailedReads(t *testing.T) {
	src := motion.NewReplaySource(
		motion.Sample{Z: 1.0},
		motion.Sample{},
		motion.Sample{Z: 1.0},
	).FailAt(1, errBus)

	b, err := Run(context.Background(), src, Options{Samples: 3})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, b.Magnitude, 1e-9, "failed read must not pull the baseline toward zero")
	assert.Equal(t, 2, b.Samples)
	assert.Equal(t, 1, b.Failures)
}

func TestRunSingleSampleHasZeroStdDev(t *testing.T) {
	src := motion.NewReplaySource(motion.Sample{Z: 1.02})
	b, err := Run(context.Background(), src, Options{Samples: 1})
	require.NoError(t, err)
	assert.InDelta(t, 1.02, b.Magnitude, 1e-9)
	assert.Zero(t, b.StdDev)
}

func TestRunFailsAfterConsecutiveFailures(t *testing.T) {
	src := motion.NewReplaySource(make([]motion.Sample, 10)...)
	for i := 2; i < 10; i++ {
		src.FailAt(i, errBus)
	}

	_, err := Run(context.Background(), src, Options{Samples: 10, MaxConsecutiveFailures: 3})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSensorUnavailable)
	assert.ErrorIs(t, err, errBus)
	assert.Equal(t, 5, src.Reads(), "stops as soon as the failure budget is spent")
}

func TestRunFailsWhenNothingSucceeded(t *testing.T) {
	src := motion.NewReplaySource(motion.Sample{}, motion.Sample{}).FailAt(0, errBus).FailAt(1, errBus)

	_, err := Run(context.Background(), src, Options{Samples: 2, MaxConsecutiveFailures: 10})
	assert.ErrorIs(t, err, ErrSensorUnavailable)
}

func TestRunRejectsBadOptions(t *testing.T) {
	src := motion.NewReplaySource()
	_, err := Run(context.Background(), src, Options{Samples: 0})
	assert.Error(t, err)
	_, err = Run(context.Background(), src, Options{Samples: 1, Delay: -time.Millisecond})
	assert.Error(t, err)
}

func TestRunHonoursCancellation(t *testing.T) {
	src := motion.NewReplaySource(motion.Sample{Z: 1}, motion.Sample{Z: 1})
	src.Loop = true

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, src, Options{Samples: 50, Delay: time.Hour})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunSpacesSamples(t *testing.T) {
	src := motion.NewReplaySource(motion.Sample{Z: 1}, motion.Sample{Z: 1}, motion.Sample{Z: 1})

	start := time.Now()
	_, err := Run(context.Background(), src, Options{Samples: 3, Delay: 5 * time.Millisecond})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}
