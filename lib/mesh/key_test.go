package mesh

import "testing"

// TestEntityKeyRoundTrip tests that rank and id survive packing into a key
func TestEntityKeyRoundTrip(t *testing.T) {
	tests := map[string]struct {
		rank uint8
		id   uint64
	}{
		"small":    {rank: 0, id: 1},
		"node":     {rank: 0, id: 42},
		"element":  {rank: 3, id: 7},
		"max rank": {rank: 255, id: 1},
		"large id": {rank: 2, id: (uint64(1) << 56) - 1},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			k := NewEntityKey(tc.rank, tc.id)
			if k.Rank() != tc.rank {
				t.Errorf("Rank() = %d, want %d", k.Rank(), tc.rank)
			}
			if k.ID() != tc.id {
				t.Errorf("ID() = %d, want %d", k.ID(), tc.id)
			}
		})
	}
}

// TestEntityKeyOrdering tests that keys order rank-major, id-minor
func TestEntityKeyOrdering(t *testing.T) {
	lowRankHighID := NewEntityKey(0, 1<<40)
	highRankLowID := NewEntityKey(1, 1)

	if !(lowRankHighID < highRankLowID) {
		t.Errorf("key %s should sort before %s", lowRankHighID, highRankLowID)
	}

	sameRankLow := NewEntityKey(2, 5)
	sameRankHigh := NewEntityKey(2, 6)
	if !(sameRankLow < sameRankHigh) {
		t.Errorf("key %s should sort before %s", sameRankLow, sameRankHigh)
	}
}

// TestEntityKeyString tests the log representation of keys
func TestEntityKeyString(t *testing.T) {
	k := NewEntityKey(1, 42)
	if got := k.String(); got != "1[42]" {
		t.Errorf("String() = %q, want %q", got, "1[42]")
	}
}

// TestInvalidKey tests that the zero key is the invalid key
func TestInvalidKey(t *testing.T) {
	if InvalidKey != NewEntityKey(0, 0) {
		t.Error("InvalidKey should equal the zero key")
	}
	if k := NewEntityKey(0, 1); k == InvalidKey {
		t.Error("a declared key must not equal InvalidKey")
	}
}
