package match

import "github.com/rickgao/paco-sync/internal/protocol"

// HistoryDiff returns the suffix of next that follows old, and true, iff old
// is a prefix of next. Equal histories yield an empty, non-nil suffix. Any
// mismatch, including next being shorter than old, yields false.
func HistoryDiff(old, next []protocol.Action) ([]protocol.Action, bool) {
	if len(next) < len(old) {
		return nil, false
	}
	for i := range old {
		if old[i] != next[i] {
			return nil, false
		}
	}
	suffix := make([]protocol.Action, len(next)-len(old))
	copy(suffix, next[len(old):])
	return suffix, true
}
