package sensors

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/devices/v3/mpu9250"

	"github.com/relabs-tech/step_counter/internal/config"
	"github.com/relabs-tech/step_counter/internal/motion"
)

// fakeRegs is an in-memory register file answering single-register writes
// and auto-incrementing reads.
type fakeRegs struct {
	regs     [128]byte
	writes   [][]byte
	failRead error
}

func (f *fakeRegs) Tx(w, r []byte) error {
	if len(r) == 0 {
		f.writes = append(f.writes, append([]byte(nil), w...))
		if len(w) == 2 {
			f.regs[w[0]] = w[1]
		}
		return nil
	}
	if f.failRead != nil {
		return f.failRead
	}
	copy(r, f.regs[w[0]:])
	return nil
}

func TestLSM6DSOConfiguresDevice(t *testing.T) {
	regs := &fakeRegs{}
	regs.regs[lsm6dsoWhoAmI] = lsm6dsoID

	_, err := newLSM6DSO(regs)
	require.NoError(t, err)

	assert.Equal(t, [][]byte{
		{lsm6dsoCtrl3C, lsm6dsoIfIncBDU},
		{lsm6dsoCtrl1XL, 0x40},
	}, regs.writes)
}

func TestLSM6DSORejectsWrongChip(t *testing.T) {
	regs := &fakeRegs{}
	regs.regs[lsm6dsoWhoAmI] = 0x69

	_, err := newLSM6DSO(regs)
	assert.ErrorContains(t, err, "unexpected WHO_AM_I 0x69")
	assert.Empty(t, regs.writes)
}

func TestLSM6DSOReadConvertsToG(t *testing.T) {
	regs := &fakeRegs{}
	regs.regs[lsm6dsoWhoAmI] = lsm6dsoID
	dev, err := newLSM6DSO(regs)
	require.NoError(t, err)

	// X = +16393 (~1 g), Y = -8197 (~-0.5 g), Z = 0
	copy(regs.regs[lsm6dsoOutXLA:], []byte{0x09, 0x40, 0xFB, 0xDF, 0x00, 0x00})

	s, err := dev.Read()
	require.NoError(t, err)
	assert.InDelta(t, 16393*0.000061, s.X, 1e-9)
	assert.InDelta(t, -8197*0.000061, s.Y, 1e-9)
	assert.Equal(t, 0.0, s.Z)
	assert.InDelta(t, 1.0, s.X, 0.001)
}

func TestLSM6DSOReadError(t *testing.T) {
	regs := &fakeRegs{}
	regs.regs[lsm6dsoWhoAmI] = lsm6dsoID
	dev, err := newLSM6DSO(regs)
	require.NoError(t, err)

	busErr := errors.New("i2c nack")
	regs.failRead = busErr
	_, err = dev.Read()
	assert.ErrorIs(t, err, busErr)
	assert.NoError(t, dev.Close())
}

type fakeAccel struct {
	x, y, z int16
	err     error
}

func (f fakeAccel) GetAccelerationX() (int16, error) { return f.x, f.err }
func (f fakeAccel) GetAccelerationY() (int16, error) { return f.y, nil }
func (f fakeAccel) GetAccelerationZ() (int16, error) { return f.z, nil }

func TestMPU9250ScalesByRange(t *testing.T) {
	tests := []struct {
		accelRange byte
		counts     int16
	}{
		{0, 16384},
		{1, 8192},
		{2, 4096},
		{3, 2048},
	}
	for _, tt := range tests {
		dev := newMPU9250("test", fakeAccel{x: 0, y: -tt.counts / 2, z: tt.counts}, tt.accelRange)
		s, err := dev.Read()
		require.NoError(t, err)
		assert.Equal(t, motion.Sample{X: 0, Y: -0.5, Z: 1}, s, "range %d", tt.accelRange)
	}
}

func TestMPU9250DriverProvidesAccelCounts(t *testing.T) {
	var imu accelCounts = (*mpu9250.MPU9250)(nil)
	assert.NotNil(t, imu)

	// NewSpiTransport hands back a pointer while New takes the value.
	open := func(tr *mpu9250.Transport) (*mpu9250.MPU9250, error) {
		return mpu9250.New(*tr)
	}
	assert.NotNil(t, open)
}

func TestMPU9250ReadError(t *testing.T) {
	dev := newMPU9250("test", fakeAccel{err: errors.New("spi")}, 0)
	_, err := dev.Read()
	assert.ErrorContains(t, err, "mpu9250 test accel X")
}

func TestOpenMockSource(t *testing.T) {
	cfg := config.Default()
	cfg.ReadRetries = 2
	cfg.ReadRetryBackoff = time.Millisecond

	src, closer, err := Open(cfg, nil)
	require.NoError(t, err)
	defer closer.Close()

	s, err := src.Read()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, s.Z, 1.0)
	_, ok := src.LastGood()
	assert.True(t, ok)
}

func TestOpenUnknownSensor(t *testing.T) {
	cfg := config.Default()
	cfg.Sensor = "bmi160"

	_, _, err := Open(cfg, nil)
	assert.ErrorContains(t, err, "unknown sensor")
}

func TestBitFieldExtract(t *testing.T) {
	tests := []struct {
		bits string
		v    byte
		want byte
	}{
		{"7:4", 0x40, 4},
		{"3:2", 0x4C, 3},
		{"2", 0x44, 1},
		{"6", 0x04, 0},
		{"7:0", 0xA5, 0xA5},
	}
	for _, tt := range tests {
		got, err := BitField{Bits: tt.bits}.Extract(tt.v)
		require.NoError(t, err, tt.bits)
		assert.Equal(t, tt.want, got, tt.bits)
	}

	for _, bad := range []string{"", "8", "2:5", "x:1"} {
		_, err := BitField{Bits: bad}.Extract(0)
		assert.Error(t, err, bad)
	}
}

func TestLSM6DSODumpRegisters(t *testing.T) {
	regs := &fakeRegs{}
	regs.regs[lsm6dsoWhoAmI] = lsm6dsoID
	dev, err := newLSM6DSO(regs)
	require.NoError(t, err)

	dump, err := dev.DumpRegisters()
	require.NoError(t, err)
	require.Len(t, dump, len(lsm6dsoRegisterMap()))

	byName := map[string]RegisterValue{}
	for _, r := range dump {
		byName[r.Name] = r
	}
	assert.Equal(t, byte(lsm6dsoID), byName["WHO_AM_I"].Value)
	assert.Equal(t, byte(0x40), byName["CTRL1_XL"].Value)
	assert.Equal(t, byte(0x44), byName["CTRL3_C"].Value)

	odr, err := byName["CTRL1_XL"].BitFields[0].Extract(byName["CTRL1_XL"].Value)
	require.NoError(t, err)
	assert.Equal(t, byte(4), odr, "104 Hz")

	regs.failRead = errors.New("nack")
	_, err = dev.DumpRegisters()
	assert.ErrorContains(t, err, "read WHO_AM_I")
}
