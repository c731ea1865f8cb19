package registers

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/KevinKickass/OpenBatchCore/internal/types"
)

// Slot is one decoded 20-word batch region. Present is false for the
// empty-slot sentinel (index word zero); Record is the zero value then.
type Slot struct {
	Record  types.BatchRecord
	Present bool
}

// Codec translates between batch records and the fixed 120-word register
// image. Out-of-range scalar fields are clamped and logged, never
// rejected; only a word block of the wrong length is an error.
type Codec struct {
	logger *zap.Logger
}

func NewCodec(logger *zap.Logger) *Codec {
	return &Codec{logger: logger}
}

// EncodeBatchSlot renders one record into its 20-word slot layout.
func (c *Codec) EncodeBatchSlot(rec types.BatchRecord) []uint16 {
	words := make([]uint16, SlotWords)

	index := rec.Index
	if index > 0xFFFF {
		c.logger.Warn("Batch index exceeds register width, clamping",
			zap.Uint32("batch_index", rec.Index))
		index = 0xFFFF
	}
	status := rec.Status
	if !status.Valid() {
		c.logger.Warn("Batch status out of range, resetting to queued",
			zap.Uint16("status", uint16(rec.Status)),
			zap.Uint32("batch_index", rec.Index))
		status = types.StatusQueued
	}

	words[offIndex] = uint16(index)
	words[offStatus] = uint16(status)
	words[offPrintCount] = rec.PrintCount

	c.packField(words, rec.BatchCode, "batchCode", offBatchCode, wordsBatchCode, MaxCodeChars, rec.Index)
	c.packField(words, rec.DryerCode, "dryerCode", offDryerCode, wordsDryerCode, MaxCodeChars, rec.Index)
	c.packField(words, rec.ProductionDate, "productionDate", offProductionDate, wordsProductionDate, MaxDateChars, rec.Index)
	c.packField(words, rec.ExpiryDate, "expiryDate", offExpiryDate, wordsExpiryDate, MaxDateChars, rec.Index)

	return words
}

// packField writes one packed string into its fixed-width field. The
// terminator word is dropped when the packed form overflows the field,
// which happens exactly when the string fills the field completely.
func (c *Codec) packField(dst []uint16, value, field string, offset, width, maxChars int, index uint32) {
	packed, truncated := packString(value, maxChars)
	if truncated {
		c.logger.Warn("String field truncated for register encoding",
			zap.String("field", field),
			zap.String("value", value),
			zap.Int("max_chars", maxChars),
			zap.Uint32("batch_index", index))
	}
	if len(packed) > width {
		packed = packed[:width]
	}
	copy(dst[offset:offset+width], packed)
}

// DecodeBatchSlot is the inverse of EncodeBatchSlot. The boolean is
// false for an empty slot; callers must not use the record in that case.
func (c *Codec) DecodeBatchSlot(words []uint16) (types.BatchRecord, bool, error) {
	if len(words) != SlotWords {
		return types.BatchRecord{}, false, types.NewStructuralFailure("registers", "decode batch slot",
			fmt.Errorf("expected %d words, got %d", SlotWords, len(words)))
	}

	if words[offIndex] == 0 {
		return types.BatchRecord{}, false, nil
	}

	rec := types.BatchRecord{
		Index:          uint32(words[offIndex]),
		Status:         types.BatchStatus(words[offStatus]),
		PrintCount:     words[offPrintCount],
		BatchCode:      unpackString(words[offBatchCode : offBatchCode+wordsBatchCode]),
		DryerCode:      unpackString(words[offDryerCode : offDryerCode+wordsDryerCode]),
		ProductionDate: unpackString(words[offProductionDate : offProductionDate+wordsProductionDate]),
		ExpiryDate:     unpackString(words[offExpiryDate : offExpiryDate+wordsExpiryDate]),
	}
	return rec, true, nil
}

// EncodeImage builds the full 120-word image from up to five records in
// slot order. Control words 1-9 stay zero; they belong to the status
// tracker and are never written through the image.
func (c *Codec) EncodeImage(records []types.BatchRecord) ([]uint16, error) {
	if len(records) > SlotCount {
		return nil, types.NewStructuralFailure("registers", "encode image",
			fmt.Errorf("expected at most %d records, got %d", SlotCount, len(records)))
	}

	image := make([]uint16, ImageWords)
	for i, rec := range records {
		start := AddrSlotBase - 1 + i*SlotWords
		copy(image[start:start+SlotWords], c.EncodeBatchSlot(rec))
	}
	return image, nil
}

// DecodeImage splits a 120-word image into its five slots.
func (c *Codec) DecodeImage(words []uint16) ([]Slot, error) {
	if len(words) != ImageWords {
		return nil, types.NewStructuralFailure("registers", "decode image",
			fmt.Errorf("expected %d words, got %d", ImageWords, len(words)))
	}

	slots := make([]Slot, SlotCount)
	for i := 0; i < SlotCount; i++ {
		start := AddrSlotBase - 1 + i*SlotWords
		rec, present, err := c.DecodeBatchSlot(words[start : start+SlotWords])
		if err != nil {
			return nil, err
		}
		slots[i] = Slot{Record: rec, Present: present}
	}
	return slots, nil
}
