package calls

import (
	"testing"
	"time"
)

func TestFloorSeconds(t *testing.T) {
	start := time.Unix(1700000000, 0)
	cases := []struct {
		end  time.Time
		want int
	}{
		{start, 0},
		{start.Add(999 * time.Millisecond), 0},
		{start.Add(time.Second), 1},
		{start.Add(2*time.Minute + 59*time.Second + 999*time.Millisecond), 179},
		{start.Add(-time.Second), 0},
	}
	for _, tc := range cases {
		if got := FloorSeconds(start, tc.end); got != tc.want {
			t.Fatalf("FloorSeconds(%v)=%d want %d", tc.end.Sub(start), got, tc.want)
		}
	}
}

func TestActionValid(t *testing.T) {
	if !ActionAccept.Valid() || !ActionReject.Valid() || Action("hold").Valid() {
		t.Fatalf("unexpected action validity")
	}
}
