package batch

import (
	"sort"

	"github.com/KevinKickass/OpenBatchCore/internal/registers"
	"github.com/KevinKickass/OpenBatchCore/internal/types"
)

// Reconcile merges freshly fetched records with the records currently
// resident in the controller slots. The feed is the source of truth for
// content, the controller for print progress: a resident match always
// keeps its print count, and a resident batch in a read-only state also
// keeps its status. The result is exactly five records in descending
// index order, padded with empty-slot records.
//
// Duplicate indices in the fetched set are not deduplicated; each
// occurrence competes for a slot on its own.
func Reconcile(fetched, resident []types.BatchRecord) []types.BatchRecord {
	residentByIndex := make(map[uint32]types.BatchRecord, len(resident))
	for _, r := range resident {
		if r.IsEmpty() {
			continue
		}
		residentByIndex[r.Index] = r
	}

	sorted := make([]types.BatchRecord, len(fetched))
	copy(sorted, fetched)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Index > sorted[j].Index })

	merged := make([]types.BatchRecord, 0, registers.SlotCount)
	for _, f := range sorted {
		if len(merged) == registers.SlotCount {
			break
		}
		out := f
		if m, ok := residentByIndex[f.Index]; ok {
			out.PrintCount = m.PrintCount
			if !m.Status.Modifiable() {
				out.Status = m.Status
			}
		}
		merged = append(merged, out)
	}
	for len(merged) < registers.SlotCount {
		merged = append(merged, types.BatchRecord{})
	}
	return merged
}
