package scheduling

import (
	"testing"
	"time"
)

func TestOverlaps(t *testing.T) {
	base := time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC)
	at := func(min int) time.Time { return base.Add(time.Duration(min) * time.Minute) }

	cases := []struct {
		name                           string
		aStart, aEnd, bStart, bEnd     time.Time
		want                           bool
	}{
		{"identical", at(0), at(30), at(0), at(30), true},
		{"partial overlap", at(0), at(30), at(15), at(45), true},
		{"contained", at(0), at(60), at(15), at(30), true},
		{"touching end to start", at(0), at(30), at(30), at(60), false},
		{"touching start to end", at(30), at(60), at(0), at(30), false},
		{"disjoint", at(0), at(30), at(60), at(90), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Overlaps(tc.aStart, tc.aEnd, tc.bStart, tc.bEnd); got != tc.want {
				t.Errorf("Overlaps = %v, want %v", got, tc.want)
			}
		})
	}
}
