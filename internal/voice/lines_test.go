package voice

import (
	"math/rand"
	"strings"
	"testing"
)

func TestLineCheckInDrawsFromPool(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	pool := CheckInPool()

	for i := 0; i < 20; i++ {
		line := LineCheckIn(r)
		found := false
		for _, p := range pool {
			if p == line {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("LineCheckIn returned %q, not in the pool", line)
		}
	}
}

func TestLineLowSafetyCheckIn(t *testing.T) {
	withZones := LineLowSafetyCheckIn(80, 2)
	if !strings.Contains(withZones, "2 flagged") {
		t.Errorf("danger-zone variant = %q", withZones)
	}

	scoreOnly := LineLowSafetyCheckIn(45, 0)
	if !strings.Contains(scoreOnly, "45") {
		t.Errorf("score variant = %q", scoreOnly)
	}
}

func TestCannedLinesUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, line := range CannedLines() {
		if line == "" {
			t.Fatal("empty canned line")
		}
		if seen[line] {
			t.Fatalf("duplicate canned line %q", line)
		}
		seen[line] = true
	}
	if len(seen) < len(CheckInPool()) {
		t.Fatal("canned lines missing the check-in pool")
	}
}
