package diff

import (
	"sort"

	"github.com/spaolacci/murmur3"

	"github.com/coachgrid/tabledit/pkg/types"
)

// Fingerprint hashes a row set, including row order, ids and every cell.
// Equal fingerprints let callers skip work when a refetch returns the same rows.
func Fingerprint(rows []types.Row) uint64 {
	h := murmur3.New64()
	sep := []byte{0}
	keys := make([]string, 0, 8)

	for _, r := range rows {
		h.Write([]byte(r.ID))
		h.Write(sep)

		keys = keys[:0]
		for k := range r.Cells {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			h.Write([]byte(k))
			h.Write(sep)
			h.Write([]byte(r.Cells[k]))
			h.Write(sep)
		}
		h.Write([]byte{1})
	}
	return h.Sum64()
}
