package mock

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPinStartsHigh(t *testing.T) {
	_, ctl := NewPin("cs", quiet())
	assert.True(t, ctl.Value())
}

func TestPinSetLevels(t *testing.T) {
	pin, ctl := NewPin("cs", quiet())

	require.NoError(t, pin.SetLow())
	assert.False(t, ctl.Value())
	require.NoError(t, pin.SetHigh())
	assert.True(t, ctl.Value())
}

func TestPinErrorIsDirectionScoped(t *testing.T) {
	pin, ctl := NewPin("cs", quiet())
	ctl.SetError(PinErrSetHigh)

	require.NoError(t, pin.SetLow())
	assert.False(t, ctl.Value())
	_, armed := ctl.ArmedError()
	assert.True(t, armed, "a call in the other direction does not consume the error")

	err := pin.SetHigh()
	require.ErrorIs(t, err, PinErrSetHigh)
	assert.False(t, ctl.Value(), "failed call leaves the level unchanged")
	_, armed = ctl.ArmedError()
	assert.False(t, armed)

	require.NoError(t, pin.SetHigh())
	assert.True(t, ctl.Value())
}

func TestPinSetLowError(t *testing.T) {
	pin, ctl := NewPin("cs", quiet())
	ctl.SetError(PinErrSetLow)

	require.NoError(t, pin.SetHigh())
	require.ErrorIs(t, pin.SetLow(), PinErrSetLow)
	assert.True(t, ctl.Value())
	require.NoError(t, pin.SetLow())
}

func TestPinClearError(t *testing.T) {
	pin, ctl := NewPin("cs", quiet())
	ctl.SetError(PinErrSetLow).ClearError()
	assert.NoError(t, pin.SetLow())
}

func TestPinDelay(t *testing.T) {
	pin, ctl := NewPin("cs", quiet(), WithDelay(5*time.Millisecond))

	start := time.Now()
	require.NoError(t, pin.SetLow())
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)

	ctl.ClearDelay()
	start = time.Now()
	require.NoError(t, pin.SetHigh())
	assert.Less(t, time.Since(start), 5*time.Millisecond)
}

func TestPinLogging(t *testing.T) {
	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&out, nil))
	pin, ctl := NewPin("cs0", WithLogger(logger))

	require.NoError(t, pin.SetLow())
	assert.Contains(t, out.String(), "msg=low")
	assert.Contains(t, out.String(), "device=cs0")

	ctl.SetError(PinErrSetHigh)
	require.Error(t, pin.SetHigh())
	assert.Contains(t, out.String(), `msg="set high failed"`)

	out.Reset()
	ctl.SetLog(false)
	require.NoError(t, pin.SetHigh())
	assert.Empty(t, out.String())
}

func TestPinErrorStrings(t *testing.T) {
	assert.Equal(t, "mock pin: set high error", PinErrSetHigh.Error())
	assert.Equal(t, "mock pin: set low error", PinErrSetLow.Error())
}

func TestGenerators(t *testing.T) {
	tx := []byte{0x00, 0x0F, 0xFF}

	echoed := Echo(tx)
	assert.Equal(t, tx, echoed)
	echoed[0] = 0x42
	assert.Equal(t, byte(0x00), tx[0], "echo must copy")

	assert.Nil(t, Zeros(tx))
	assert.Equal(t, []byte{0xFF, 0xF0, 0x00}, Invert(tx))
	assert.Equal(t, []byte{0x5A, 0x5A, 0x5A}, Constant(0x5A)(tx))
	assert.Equal(t, []byte{1, 2, 1}, Sequence(1, 2)(tx))
	assert.Nil(t, Sequence()(tx))
}
