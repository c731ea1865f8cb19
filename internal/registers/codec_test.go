package registers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/KevinKickass/OpenBatchCore/internal/types"
)

func newTestCodec() (*Codec, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.WarnLevel)
	return NewCodec(zap.New(core)), logs
}

func TestEncodeBatchSlot_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		rec  types.BatchRecord
	}{
		{
			name: "typical record",
			rec: types.BatchRecord{
				Index:          1042,
				Status:         types.StatusQueued,
				PrintCount:     3,
				BatchCode:      "A1042",
				DryerCode:      "D7",
				ProductionDate: "2026-01-15",
				ExpiryDate:     "2027-01-15",
			},
		},
		{
			name: "odd length strings",
			rec: types.BatchRecord{
				Index:     2001,
				Status:    types.StatusNextInQueue,
				BatchCode: "B12",
				DryerCode: "XYZ",
			},
		},
		{
			name: "single character fields",
			rec: types.BatchRecord{
				Index:          60001,
				Status:         types.StatusPrinted,
				PrintCount:     65535,
				BatchCode:      "Q",
				DryerCode:      "1",
				ProductionDate: "X",
				ExpiryDate:     "Y",
			},
		},
		{
			name: "empty strings",
			rec: types.BatchRecord{
				Index:  1,
				Status: types.StatusCurrentPrinting,
			},
		},
		{
			name: "date fills its field exactly",
			rec: types.BatchRecord{
				Index:      3003,
				Status:     types.StatusLastPrinted,
				ExpiryDate: "2026-12-31",
			},
		},
	}

	codec, logs := newTestCodec()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			words := codec.EncodeBatchSlot(tt.rec)
			require.Len(t, words, SlotWords)

			got, present, err := codec.DecodeBatchSlot(words)
			require.NoError(t, err)
			require.True(t, present)
			assert.Equal(t, tt.rec, got)
		})
	}
	assert.Zero(t, logs.Len(), "valid records must encode without warnings")
}

func TestEncodeBatchSlot_ClampsIndex(t *testing.T) {
	codec, logs := newTestCodec()

	words := codec.EncodeBatchSlot(types.BatchRecord{Index: 70000, Status: types.StatusQueued})

	assert.Equal(t, uint16(0xFFFF), words[offIndex])
	require.Equal(t, 1, logs.Len())
	assert.Contains(t, logs.All()[0].Message, "clamping")
}

func TestEncodeBatchSlot_ResetsInvalidStatus(t *testing.T) {
	codec, logs := newTestCodec()

	words := codec.EncodeBatchSlot(types.BatchRecord{Index: 1042, Status: types.BatchStatus(7)})

	assert.Equal(t, uint16(types.StatusQueued), words[offStatus])
	assert.Equal(t, 1, logs.Len())
}

func TestEncodeBatchSlot_TruncatesLongStrings(t *testing.T) {
	codec, logs := newTestCodec()

	rec := types.BatchRecord{Index: 1042, BatchCode: "ABCDEF"}
	words := codec.EncodeBatchSlot(rec)

	got, present, err := codec.DecodeBatchSlot(words)
	require.NoError(t, err)
	require.True(t, present)
	assert.Equal(t, "ABCDE", got.BatchCode)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "batchCode", logs.All()[0].ContextMap()["field"])
}

func TestDecodeBatchSlot_EmptySlot(t *testing.T) {
	codec, _ := newTestCodec()

	rec, present, err := codec.DecodeBatchSlot(make([]uint16, SlotWords))

	require.NoError(t, err)
	assert.False(t, present)
	assert.Equal(t, types.BatchRecord{}, rec)
}

func TestDecodeBatchSlot_WrongLength(t *testing.T) {
	codec, _ := newTestCodec()

	_, _, err := codec.DecodeBatchSlot(make([]uint16, SlotWords-1))

	require.Error(t, err)
	assert.True(t, types.IsFailureKind(err, types.FailureStructural))
}

func TestDecodeBatchSlot_StopsAtZeroLowByte(t *testing.T) {
	codec, _ := newTestCodec()

	words := make([]uint16, SlotWords)
	words[offIndex] = 1042
	// "AB", then a word with high byte 'C' and zero low byte, then garbage
	// that must not be read.
	words[offBatchCode] = uint16('A')<<8 | uint16('B')
	words[offBatchCode+1] = uint16('C') << 8
	words[offBatchCode+2] = uint16('Z')<<8 | uint16('Z')

	got, present, err := codec.DecodeBatchSlot(words)
	require.NoError(t, err)
	require.True(t, present)
	assert.Equal(t, "ABC", got.BatchCode)
}

func TestDecodeBatchSlot_StripsWhitespace(t *testing.T) {
	codec, _ := newTestCodec()

	words := make([]uint16, SlotWords)
	words[offIndex] = 1042
	words[offDryerCode] = uint16(' ')<<8 | uint16('D')
	words[offDryerCode+1] = uint16('7')<<8 | uint16(' ')

	got, _, err := codec.DecodeBatchSlot(words)
	require.NoError(t, err)
	assert.Equal(t, "D7", got.DryerCode)
}

func TestEncodeImage_EmptyAndPartial(t *testing.T) {
	codec, _ := newTestCodec()

	image, err := codec.EncodeImage(nil)
	require.NoError(t, err)
	require.Len(t, image, ImageWords)
	for i, w := range image {
		require.Zerof(t, w, "word %d of an empty image must be zero", i+1)
	}

	image, err = codec.EncodeImage([]types.BatchRecord{
		{Index: 1042, Status: types.StatusNextInQueue, BatchCode: "A1042"},
		{Index: 1041, Status: types.StatusQueued},
	})
	require.NoError(t, err)

	slots, err := codec.DecodeImage(image)
	require.NoError(t, err)
	require.Len(t, slots, SlotCount)
	assert.True(t, slots[0].Present)
	assert.True(t, slots[1].Present)
	assert.False(t, slots[2].Present)
	assert.False(t, slots[3].Present)
	assert.False(t, slots[4].Present)
	assert.Equal(t, uint32(1042), slots[0].Record.Index)
	assert.Equal(t, uint32(1041), slots[1].Record.Index)
}

func TestEncodeImage_TooManyRecords(t *testing.T) {
	codec, _ := newTestCodec()

	_, err := codec.EncodeImage(make([]types.BatchRecord, SlotCount+1))

	require.Error(t, err)
	assert.True(t, types.IsFailureKind(err, types.FailureStructural))
}

func TestEncodeImage_LeavesControlWordsUntouched(t *testing.T) {
	codec, _ := newTestCodec()

	image, err := codec.EncodeImage([]types.BatchRecord{
		{Index: 1042, Status: types.StatusQueued, BatchCode: "FULL5", DryerCode: "ALSO5",
			ProductionDate: "2026-01-15", ExpiryDate: "2027-01-15"},
		{Index: 1041}, {Index: 1040}, {Index: 1039}, {Index: 1038},
	})
	require.NoError(t, err)

	for addr := 1; addr < AddrSlotBase; addr++ {
		assert.Zerof(t, image[addr-1], "control word %d must stay zero", addr)
	}
}

func TestDecodeImage_WrongLength(t *testing.T) {
	codec, _ := newTestCodec()

	_, err := codec.DecodeImage(make([]uint16, ImageWords+1))

	require.Error(t, err)
	assert.True(t, types.IsFailureKind(err, types.FailureStructural))
}

func TestDecodeImage_AllEmpty(t *testing.T) {
	codec, _ := newTestCodec()

	slots, err := codec.DecodeImage(make([]uint16, ImageWords))

	require.NoError(t, err)
	require.Len(t, slots, SlotCount)
	for i, s := range slots {
		assert.Falsef(t, s.Present, "slot %d must be empty", i+1)
	}
}

func TestPackString(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		maxChars  int
		want      []uint16
		truncated bool
	}{
		{
			name:     "even length gets terminator word",
			in:       "AB",
			maxChars: 5,
			want:     []uint16{uint16('A')<<8 | uint16('B'), 0},
		},
		{
			name:     "odd length terminates in final low byte",
			in:       "ABC",
			maxChars: 5,
			want:     []uint16{uint16('A')<<8 | uint16('B'), uint16('C') << 8},
		},
		{
			name:     "empty string is a single zero word",
			in:       "",
			maxChars: 5,
			want:     []uint16{0},
		},
		{
			name:      "overlong input truncated",
			in:        "ABCDEF",
			maxChars:  5,
			want:      []uint16{uint16('A')<<8 | uint16('B'), uint16('C')<<8 | uint16('D'), uint16('E') << 8},
			truncated: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, truncated := packString(tt.in, tt.maxChars)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.truncated, truncated)
		})
	}
}

func TestSlotAddress(t *testing.T) {
	assert.Equal(t, 10, SlotAddress(1))
	assert.Equal(t, 30, SlotAddress(2))
	assert.Equal(t, 90, SlotAddress(5))
}
