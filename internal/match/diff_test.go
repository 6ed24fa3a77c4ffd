package match

import (
	"slices"
	"testing"

	"github.com/rickgao/paco-sync/internal/protocol"
)

func TestHistoryDiff(t *testing.T) {
	lift5 := protocol.Lift(5)
	place12 := protocol.Place(12)

	tests := []struct {
		name   string
		old    []protocol.Action
		next   []protocol.Action
		want   []protocol.Action
		wantOK bool
	}{
		{"both empty", nil, nil, []protocol.Action{}, true},
		{"equal", []protocol.Action{lift5}, []protocol.Action{lift5}, []protocol.Action{}, true},
		{"prefix", []protocol.Action{lift5}, []protocol.Action{lift5, place12}, []protocol.Action{place12}, true},
		{"from empty", nil, []protocol.Action{lift5, place12}, []protocol.Action{lift5, place12}, true},
		{"diverged", []protocol.Action{lift5}, []protocol.Action{protocol.Lift(6)}, nil, false},
		{"shorter", []protocol.Action{lift5, protocol.Place(6)}, []protocol.Action{lift5}, nil, false},
		{"same tile other kind", []protocol.Action{lift5}, []protocol.Action{protocol.Place(5)}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := HistoryDiff(tt.old, tt.next)
			if ok != tt.wantOK {
				t.Fatalf("HistoryDiff() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				if got != nil {
					t.Errorf("HistoryDiff() = %v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Errorf("HistoryDiff() = nil, want non-nil")
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("HistoryDiff() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHistoryDiff_DoesNotAlias(t *testing.T) {
	next := []protocol.Action{protocol.Lift(1), protocol.Place(2)}
	got, _ := HistoryDiff(next[:1], next)
	got[0] = protocol.Place(9)
	if next[1] != protocol.Place(2) {
		t.Errorf("suffix aliases input: next[1] = %v", next[1])
	}
}
