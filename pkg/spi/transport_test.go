package spi

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBus = errors.New("bus fault")

// callLog is shared by fakeBus and fakePin so tests can assert ordering.
type callLog struct {
	calls []string
}

type fakeBus struct {
	log      *callLog
	err      error
	speedErr error
	speed    uint32
	canSpeed bool
}

func (b *fakeBus) Transfer(buf []byte) ([]byte, error) {
	b.log.calls = append(b.log.calls, "transfer")
	if b.err != nil {
		return nil, b.err
	}
	for i := range buf {
		buf[i] = ^buf[i]
	}
	return buf, nil
}

func (b *fakeBus) SetClockSpeed(hz uint32) error {
	if b.speedErr != nil {
		return b.speedErr
	}
	b.speed = hz
	return nil
}

func (b *fakeBus) IsClockSpeed() bool { return b.canSpeed }

type plainBus struct{}

func (plainBus) Transfer(buf []byte) ([]byte, error) { return buf, nil }

type fakePin struct {
	log     *callLog
	high    bool
	highErr error
	lowErr  error
}

func (p *fakePin) SetHigh() error {
	p.log.calls = append(p.log.calls, "high")
	if p.highErr != nil {
		return p.highErr
	}
	p.high = true
	return nil
}

func (p *fakePin) SetLow() error {
	p.log.calls = append(p.log.calls, "low")
	if p.lowErr != nil {
		return p.lowErr
	}
	p.high = false
	return nil
}

func newRig(polarity Polarity) (*callLog, *fakeBus, *fakePin, *ChipSelectTransport) {
	log := &callLog{}
	bus := &fakeBus{log: log}
	pin := &fakePin{log: log, high: polarity == IdleLow}
	t := NewChipSelectTransport(bus, pin, polarity)
	log.calls = nil
	return log, bus, pin, t
}

func TestChipSelectTransportInitialState(t *testing.T) {
	for _, tc := range []struct {
		polarity Polarity
		wantHigh bool
	}{
		{IdleHigh, true},
		{IdleLow, false},
	} {
		t.Run(tc.polarity.String(), func(t *testing.T) {
			log := &callLog{}
			pin := &fakePin{log: log, high: !tc.wantHigh}
			NewChipSelectTransport(&fakeBus{log: log}, pin, tc.polarity)
			assert.Equal(t, tc.wantHigh, pin.high)
			assert.Len(t, log.calls, 1)
		})
	}
}

func TestChipSelectTransportIgnoresInitialDeselectFailure(t *testing.T) {
	log := &callLog{}
	pin := &fakePin{log: log, highErr: errBus}
	tr := NewChipSelectTransport(&fakeBus{log: log}, pin, IdleHigh)
	require.NotNil(t, tr)

	pin.highErr = nil
	_, err := tr.Transfer([]byte{0x01})
	require.NoError(t, err)
	assert.True(t, pin.high)
}

func TestChipSelectTransportBracketsExchange(t *testing.T) {
	for _, tc := range []struct {
		polarity Polarity
		want     []string
	}{
		{IdleHigh, []string{"low", "transfer", "high"}},
		{IdleLow, []string{"high", "transfer", "low"}},
	} {
		t.Run(tc.polarity.String(), func(t *testing.T) {
			log, _, _, tr := newRig(tc.polarity)
			buf := []byte{0x0F, 0xF0}

			rx, err := tr.Transfer(buf)
			require.NoError(t, err)
			assert.Equal(t, tc.want, log.calls)
			assert.Equal(t, []byte{0xF0, 0x0F}, rx)
			assert.Same(t, &buf[0], &rx[0], "result must alias the input buffer")
		})
	}
}

func TestChipSelectTransportSelectFailure(t *testing.T) {
	log, _, pin, tr := newRig(IdleHigh)
	pin.lowErr = errBus

	_, err := tr.Transfer([]byte{0x01})
	require.ErrorIs(t, err, ErrChipSelect)
	require.ErrorIs(t, err, errBus)
	assert.Equal(t, []string{"low"}, log.calls, "no exchange and no deselect after a failed select")
}

func TestChipSelectTransportTransferFailureDeselects(t *testing.T) {
	log, bus, pin, tr := newRig(IdleHigh)
	bus.err = errBus

	_, err := tr.Transfer([]byte{0x01})
	require.ErrorIs(t, err, ErrTransfer)
	require.ErrorIs(t, err, errBus)
	assert.Equal(t, []string{"low", "transfer", "high"}, log.calls)
	assert.True(t, pin.high)
}

func TestChipSelectTransportDeselectFailureMasksTransferError(t *testing.T) {
	_, bus, pin, tr := newRig(IdleHigh)
	bus.err = errBus
	pinErr := errors.New("pin stuck")
	pin.highErr = pinErr

	_, err := tr.Transfer([]byte{0x01})
	require.ErrorIs(t, err, ErrChipDeselect)
	require.ErrorIs(t, err, pinErr)
	assert.NotErrorIs(t, err, ErrTransfer)
	assert.NotErrorIs(t, err, errBus)
}

func TestChipSelectTransportDeselectFailureAfterExchange(t *testing.T) {
	log, _, pin, tr := newRig(IdleLow)
	pin.lowErr = errBus

	rx, err := tr.Transfer([]byte{0x01})
	require.ErrorIs(t, err, ErrChipDeselect)
	assert.Nil(t, rx)
	assert.Equal(t, []string{"high", "transfer", "low"}, log.calls)
}

func TestChipSelectTransportCapabilities(t *testing.T) {
	_, bus, _, tr := newRig(IdleHigh)
	assert.True(t, tr.IsChipSelect())
	assert.False(t, tr.IsClockSpeed())
	assert.ErrorIs(t, tr.SetClockSpeed(1_000_000), ErrNotImplemented)

	bus.canSpeed = true
	assert.True(t, tr.IsClockSpeed())
	require.NoError(t, tr.SetClockSpeed(1_000_000))
	assert.Equal(t, uint32(1_000_000), bus.speed)

	bus.speedErr = errBus
	err := tr.SetClockSpeed(2_000_000)
	assert.ErrorIs(t, err, ErrClockSpeed)
	assert.ErrorIs(t, err, errBus)
}

func TestAutoTransport(t *testing.T) {
	log := &callLog{}
	bus := &fakeBus{log: log}
	tr := NewTransport(bus)

	rx, err := tr.Transfer([]byte{0x00})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF}, rx)
	assert.Equal(t, []string{"transfer"}, log.calls)

	assert.False(t, tr.IsChipSelect())
	assert.ErrorIs(t, tr.Select(), ErrNotImplemented)
	assert.ErrorIs(t, tr.Deselect(), ErrNotImplemented)

	bus.err = errBus
	_, err = tr.Transfer([]byte{0x00})
	assert.ErrorIs(t, err, ErrTransfer)
	assert.ErrorIs(t, err, errBus)
}

func TestAutoTransportWithoutClockCapability(t *testing.T) {
	tr := NewTransport(plainBus{})
	assert.False(t, tr.IsClockSpeed())
	assert.ErrorIs(t, tr.SetClockSpeed(1), ErrNotImplemented)
}

func TestNestedTransportDoesNotStackKinds(t *testing.T) {
	log := &callLog{}
	inner := NewTransport(&fakeBus{log: log, err: errBus})
	outer := NewChipSelectTransport(inner, &fakePin{log: log}, IdleHigh)

	_, err := outer.Transfer([]byte{0x01})
	require.ErrorIs(t, err, ErrTransfer)
	assert.Equal(t, "spi: transfer failed: bus fault", err.Error())
}

func TestChipSelectTransportPinErrorKeepsKind(t *testing.T) {
	pinErr := fmt.Errorf("%w: pin driver", ErrClockSpeed)

	_, _, pin, tr := newRig(IdleHigh)
	pin.lowErr = pinErr
	_, err := tr.Transfer([]byte{0x01})
	require.ErrorIs(t, err, ErrChipSelect)
	assert.ErrorIs(t, err, pinErr)

	_, _, pin, tr = newRig(IdleHigh)
	pin.highErr = pinErr
	_, err = tr.Transfer([]byte{0x01})
	require.ErrorIs(t, err, ErrChipDeselect)
	assert.ErrorIs(t, err, pinErr)
}

func TestNew(t *testing.T) {
	log := &callLog{}
	_, ok := New(&fakeBus{log: log}, Config{}).(*AutoTransport)
	assert.True(t, ok)

	dev := New(&fakeBus{log: log}, Config{CS: &fakePin{log: log}, Polarity: IdleLow})
	cs, ok := dev.(*ChipSelectTransport)
	require.True(t, ok)
	assert.Equal(t, IdleLow, cs.Polarity())
}

func TestUnsupportedDefaults(t *testing.T) {
	var u Unsupported
	_, err := u.RawTransfer(nil)
	assert.ErrorIs(t, err, ErrNotImplemented)
	assert.ErrorIs(t, u.SetClockSpeed(1), ErrNotImplemented)
	assert.False(t, u.IsChipSelect())
	assert.False(t, u.IsClockSpeed())
}

func TestParsePolarity(t *testing.T) {
	tests := []struct {
		in      string
		want    Polarity
		wantErr bool
	}{
		{"idle-high", IdleHigh, false},
		{"IDLE-LOW", IdleLow, false},
		{"active-high", IdleLow, false},
		{"", IdleHigh, false},
		{"sideways", IdleHigh, true},
	}
	for _, tt := range tests {
		got, err := ParsePolarity(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	var p Polarity
	require.NoError(t, p.UnmarshalText([]byte("idle-low")))
	assert.Equal(t, IdleLow, p)
}

func TestErrorStrings(t *testing.T) {
	assert.Equal(t, "spi: not implemented", ErrNotImplemented.Error())
	assert.Equal(t, "spi: deselect chip failed", ErrChipDeselect.Error())
	assert.Contains(t, Error(99).Error(), "99")
}
