package batch

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/KevinKickass/OpenBatchCore/internal/registers"
	"github.com/KevinKickass/OpenBatchCore/internal/types"
)

// Parser turns raw feed entries into batch records. It is the trust
// boundary for cloud data: everything behind it works with typed,
// ASCII-clean, length-bounded records.
type Parser struct {
	logger *zap.Logger
}

func NewParser(logger *zap.Logger) *Parser {
	return &Parser{logger: logger}
}

// ParseRecords converts raw feed entries into batch records. Entries that
// cannot be mapped to a usable record are skipped and logged; the caller
// decides whether zero survivors fail the operation.
func (p *Parser) ParseRecords(raw []map[string]any) []types.BatchRecord {
	records := make([]types.BatchRecord, 0, len(raw))
	for i, entry := range raw {
		rec, err := p.parseRecord(entry)
		if err != nil {
			p.logger.Warn("Skipping unusable feed entry",
				zap.Int("position", i),
				zap.Error(err))
			continue
		}
		if problems := Validate(rec); len(problems) > 0 {
			p.logger.Warn("Skipping invalid batch record",
				zap.Uint32("batch_index", rec.Index),
				zap.Strings("problems", problems))
			continue
		}
		records = append(records, rec)
	}
	return records
}

func (p *Parser) parseRecord(entry map[string]any) (types.BatchRecord, error) {
	if entry == nil {
		return types.BatchRecord{}, errors.New("entry is not an object")
	}

	index, ok := asUint(entry["batchIndex"])
	if !ok {
		return types.BatchRecord{}, fmt.Errorf("batchIndex %v is not numeric", entry["batchIndex"])
	}
	if index < MinBatchIndex || index > MaxBatchIndex {
		return types.BatchRecord{}, fmt.Errorf("batchIndex %d outside [%d,%d]", index, MinBatchIndex, MaxBatchIndex)
	}
	rec := types.BatchRecord{Index: uint32(index)}

	if v, present := entry["status"]; present && v != nil {
		if s, ok := asUint(v); ok && types.BatchStatus(s).Valid() {
			rec.Status = types.BatchStatus(s)
		} else {
			p.logger.Warn("Feed status unusable, defaulting to queued",
				zap.Any("status", v),
				zap.Uint32("batch_index", rec.Index))
		}
	}
	if v, present := entry["printCount"]; present && v != nil {
		if n, ok := asUint(v); ok && n <= 65535 {
			rec.PrintCount = uint16(n)
		} else {
			p.logger.Warn("Feed print count unusable, defaulting to zero",
				zap.Any("print_count", v),
				zap.Uint32("batch_index", rec.Index))
		}
	}

	var err error
	if rec.BatchCode, err = p.stringField(entry, "batchCode", registers.MaxCodeChars, rec.Index); err != nil {
		return types.BatchRecord{}, err
	}
	if rec.DryerCode, err = p.stringField(entry, "dryerCode", registers.MaxCodeChars, rec.Index); err != nil {
		return types.BatchRecord{}, err
	}
	if rec.ProductionDate, err = p.stringField(entry, "productionDate", registers.MaxDateChars, rec.Index); err != nil {
		return types.BatchRecord{}, err
	}
	if rec.ExpiryDate, err = p.stringField(entry, "expiryDate", registers.MaxDateChars, rec.Index); err != nil {
		return types.BatchRecord{}, err
	}
	return rec, nil
}

// stringField extracts one text field. Non-ASCII input is rejected, the
// registers only carry single-byte characters. Over-long values are
// truncated here so one oversized field never costs the whole record.
func (p *Parser) stringField(entry map[string]any, key string, maxChars int, index uint32) (string, error) {
	v, present := entry[key]
	if !present || v == nil {
		return "", nil
	}

	var s string
	switch t := v.(type) {
	case string:
		s = t
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(t)
	default:
		return "", fmt.Errorf("%s has unsupported type %T", key, v)
	}

	s = strings.TrimSpace(s)
	if !isASCII(s) {
		return "", fmt.Errorf("%s contains non-ASCII characters", key)
	}
	if len(s) > maxChars {
		p.logger.Warn("Feed string too long, truncating",
			zap.String("field", key),
			zap.String("value", s),
			zap.Int("max_chars", maxChars),
			zap.Uint32("batch_index", index))
		s = s[:maxChars]
	}
	return s, nil
}

// asUint accepts the numeric shapes a decoded JSON feed can produce.
func asUint(v any) (uint64, bool) {
	switch t := v.(type) {
	case float64:
		if t < 0 || t != float64(uint64(t)) {
			return 0, false
		}
		return uint64(t), true
	case string:
		n, err := strconv.ParseUint(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return false
		}
	}
	return true
}
