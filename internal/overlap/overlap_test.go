package overlap

import (
	"testing"
	"time"
)

var base = time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)

func window(id string, startHours, endHours int) Window {
	return Window{
		ID:    id,
		Start: base.Add(time.Duration(startHours) * time.Hour),
		End:   base.Add(time.Duration(endHours) * time.Hour),
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name    string
		windows []Window
		want    []Overlap
	}{
		{
			name: "no windows",
		},
		{
			name:    "single window",
			windows: []Window{window("a", 0, 2)},
		},
		{
			name:    "disjoint windows",
			windows: []Window{window("a", 0, 2), window("b", 3, 5)},
		},
		{
			name:    "touching boundaries do not collide",
			windows: []Window{window("a", 0, 2), window("b", 2, 4)},
		},
		{
			name:    "partial overlap",
			windows: []Window{window("a", 0, 3), window("b", 2, 5)},
			want:    []Overlap{{FirstID: "a", SecondID: "b"}},
		},
		{
			name:    "containment",
			windows: []Window{window("a", 0, 6), window("b", 2, 4)},
			want:    []Overlap{{FirstID: "a", SecondID: "b"}},
		},
		{
			name:    "input order does not change pair order",
			windows: []Window{window("b", 2, 5), window("a", 0, 3)},
			want:    []Overlap{{FirstID: "a", SecondID: "b"}},
		},
		{
			name: "three-way pileup",
			windows: []Window{
				window("a", 0, 4),
				window("b", 1, 5),
				window("c", 2, 6),
			},
			want: []Overlap{
				{FirstID: "a", SecondID: "b"},
				{FirstID: "a", SecondID: "c"},
				{FirstID: "b", SecondID: "c"},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Detect(tc.windows)
			if len(got) != len(tc.want) {
				t.Fatalf("Detect = %+v, want %+v", got, tc.want)
			}
			for i := range tc.want {
				if got[i] != tc.want[i] {
					t.Errorf("overlap[%d] = %+v, want %+v", i, got[i], tc.want[i])
				}
			}
		})
	}
}
