package plc

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/KevinKickass/OpenBatchCore/internal/types"
)

type fakeWire struct {
	readData  []byte
	readErr   error
	reads     int
	lastAddr  uint16
	lastQty   uint16
	writeErr  error
	writes    int
	lastValue []byte
}

func (f *fakeWire) ReadHoldingRegisters(address, quantity uint16) ([]byte, error) {
	f.reads++
	f.lastAddr = address
	f.lastQty = quantity
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.readData, nil
}

func (f *fakeWire) WriteMultipleRegisters(address, quantity uint16, value []byte) ([]byte, error) {
	f.writes++
	f.lastAddr = address
	f.lastQty = quantity
	f.lastValue = value
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	return nil, nil
}

// newWiredClient builds a client with the fake already connected, so no
// TCP dialing happens on the first attempt.
func newWiredClient(wire wireClient, attempts int) *Client {
	c := NewClient(Config{
		Host:     "127.0.0.1",
		Port:     1, // closed port, reconnect attempts fail fast
		Timeout:  50 * time.Millisecond,
		Attempts: attempts,
	}, zap.NewNop())
	c.wire = wire
	c.connected = true
	return c
}

func TestReadWords_DecodesBigEndian(t *testing.T) {
	wire := &fakeWire{readData: []byte{0x04, 0x12, 0x00, 0x2A}}
	c := newWiredClient(wire, 1)

	words, err := c.ReadWords(10, 2)

	require.NoError(t, err)
	assert.Equal(t, []uint16{0x0412, 0x002A}, words)
	assert.Equal(t, uint16(9), wire.lastAddr, "1-based word 10 is protocol address 9")
	assert.Equal(t, uint16(2), wire.lastQty)
}

func TestReadWords_ShortPayloadIsStructural(t *testing.T) {
	wire := &fakeWire{readData: []byte{0x00}}
	c := newWiredClient(wire, 1)

	_, err := c.ReadWords(1, 2)

	require.Error(t, err)
	assert.True(t, types.IsFailureKind(err, types.FailureStructural))
}

func TestReadWords_RejectsOutOfRangeAddresses(t *testing.T) {
	wire := &fakeWire{}
	c := newWiredClient(wire, 1)

	for _, tc := range []struct{ start, count int }{
		{0, 1}, {121, 1}, {120, 2}, {1, 0}, {-3, 5},
	} {
		_, err := c.ReadWords(tc.start, tc.count)
		require.Errorf(t, err, "start=%d count=%d", tc.start, tc.count)
		assert.True(t, types.IsFailureKind(err, types.FailureStructural))
	}
	assert.Zero(t, wire.reads, "range check must run before any bus traffic")
}

func TestReadWords_ExhaustedAttemptsSurfaceConnectionFailure(t *testing.T) {
	wire := &fakeWire{readErr: errors.New("broken pipe")}
	c := newWiredClient(wire, 2)

	_, err := c.ReadWords(1, 1)

	require.Error(t, err)
	assert.True(t, types.IsFailureKind(err, types.FailureConnection))
	assert.Equal(t, 1, wire.reads, "connection is dropped after the failed attempt")
	assert.False(t, c.connected)
}

func TestWriteWords_PacksBigEndian(t *testing.T) {
	wire := &fakeWire{}
	c := newWiredClient(wire, 1)

	err := c.WriteWords(30, []uint16{0x0412, 0x002A})

	require.NoError(t, err)
	assert.Equal(t, uint16(29), wire.lastAddr)
	assert.Equal(t, uint16(2), wire.lastQty)
	assert.Equal(t, []byte{0x04, 0x12, 0x00, 0x2A}, wire.lastValue)
}

func TestWriteWords_FullImage(t *testing.T) {
	wire := &fakeWire{}
	c := newWiredClient(wire, 1)

	err := c.WriteWords(1, make([]uint16, 120))

	require.NoError(t, err)
	assert.Equal(t, uint16(0), wire.lastAddr)
	assert.Equal(t, uint16(120), wire.lastQty)
	assert.Len(t, wire.lastValue, 240)
}

func TestWriteWords_RejectsOverflowingBlock(t *testing.T) {
	wire := &fakeWire{}
	c := newWiredClient(wire, 1)

	err := c.WriteWords(110, make([]uint16, 20))

	require.Error(t, err)
	assert.True(t, types.IsFailureKind(err, types.FailureStructural))
	assert.Zero(t, wire.writes)
}

func TestTestConnection_ReadsFirstWord(t *testing.T) {
	wire := &fakeWire{readData: []byte{0x00, 0x01}}
	c := newWiredClient(wire, 1)

	require.NoError(t, c.TestConnection())
	assert.Equal(t, uint16(0), wire.lastAddr)
	assert.Equal(t, uint16(1), wire.lastQty)
}

func TestClose_Idempotent(t *testing.T) {
	c := NewClient(Config{Host: "127.0.0.1", Port: 1}, zap.NewNop())

	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}
