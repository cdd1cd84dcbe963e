package anomalies

import (
	"math"
	"math/rand/v2"
	"reflect"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestParseTypes(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []Type
		wantErr bool
	}{
		{name: "empty", input: "", want: nil},
		{name: "single type", input: "derived-images", want: []Type{DerivedImages}},
		{name: "multiple types", input: "duplicate-positions,shuffled-files", want: []Type{DuplicatePositions, ShuffledFiles}},
		{name: "all types", input: "all", want: AllTypes()},
		{name: "with whitespace and repeats", input: " table-shift , table-shift ", want: []Type{TableShift}},
		{name: "invalid type", input: "siemens-csa", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTypes(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTypes() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseTypes() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfig(t *testing.T) {
	if (Config{}).IsEnabled() {
		t.Error("empty config should be disabled")
	}
	c := Config{Types: []Type{ShuffledFiles}}
	if !c.IsEnabled() || !c.HasType(ShuffledFiles) || c.HasType(TableShift) {
		t.Errorf("unexpected config state: %+v", c)
	}
}

func axialPlan(n int) []Slice {
	plan := make([]Slice, n)
	for i := range plan {
		plan[i] = Slice{
			InstanceNumber: i + 1,
			Position:       r3.Vec{X: -100, Y: -100, Z: float64(i) * 2},
			ImageType:      OriginalImageType,
			FileRank:       i,
		}
	}
	return plan
}

func apply(types ...Type) []Slice {
	rng := rand.New(rand.NewPCG(42, 42))
	return NewApplicator(Config{Types: types}, rng).Apply(axialPlan(12), r3.Vec{Z: 1})
}

func TestApply_NoTypesKeepsPlan(t *testing.T) {
	if got := apply(); !reflect.DeepEqual(got, axialPlan(12)) {
		t.Errorf("plan changed without anomalies: %+v", got)
	}
}

func TestApply_DuplicatePositions(t *testing.T) {
	out := apply(DuplicatePositions)
	if len(out) != 15 {
		t.Fatalf("expected 3 duplicates, got %d slices", len(out))
	}
	seen := map[r3.Vec]int{}
	numbers := map[int]bool{}
	for _, s := range out {
		seen[s.Position]++
		if numbers[s.InstanceNumber] {
			t.Errorf("instance number %d reused", s.InstanceNumber)
		}
		numbers[s.InstanceNumber] = true
	}
	dups := 0
	for _, n := range seen {
		if n > 1 {
			dups++
		}
	}
	if dups != 3 {
		t.Errorf("expected 3 shared positions, got %d", dups)
	}
}

func TestApply_DerivedImages(t *testing.T) {
	out := apply(DerivedImages)
	derived := 0
	repeated := 0
	for _, s := range out {
		if reflect.DeepEqual(s.ImageType, DerivedImageType) {
			derived++
			if s.InstanceNumber == derivedBase {
				repeated++
			}
		}
	}
	if derived != 5 {
		t.Errorf("expected 4 reformats plus 1 replacement, got %d", derived)
	}
	if repeated != 2 {
		t.Errorf("expected instance %d twice, got %d", derivedBase, repeated)
	}
}

func TestApply_ShuffledInstancesIsPermutation(t *testing.T) {
	out := apply(ShuffledInstances)
	seen := map[int]bool{}
	moved := false
	for i, s := range out {
		seen[s.InstanceNumber] = true
		if s.InstanceNumber != i+1 {
			moved = true
		}
		if s.Position.Z != float64(i)*2 {
			t.Errorf("position of slice %d changed", i)
		}
	}
	if len(seen) != 12 || !moved {
		t.Errorf("instance numbers are not a shuffled permutation: %+v", out)
	}
}

func TestApply_TableShiftKeepsDepth(t *testing.T) {
	out := apply(TableShift)
	shifted := false
	for i, s := range out {
		if math.Abs(s.Position.Z-float64(i)*2) > 1e-9 {
			t.Errorf("slice %d depth changed to %v", i, s.Position.Z)
		}
		if s.Position.X != -100 || s.Position.Y != -100 {
			shifted = true
		}
	}
	if !shifted {
		t.Error("no slice moved within its plane")
	}
}

func TestApply_MissingPositionAndShuffledFiles(t *testing.T) {
	out := apply(MissingPosition, ShuffledFiles)
	missing := 0
	ranks := map[int]bool{}
	for _, s := range out {
		if s.OmitPosition {
			missing++
		}
		ranks[s.FileRank] = true
	}
	if missing != 1 {
		t.Errorf("expected one slice without position, got %d", missing)
	}
	if len(ranks) != len(out) {
		t.Errorf("file ranks are not distinct: %v", ranks)
	}
}

func TestInPlaneAxes(t *testing.T) {
	for _, n := range []r3.Vec{{X: 1}, {Y: 1}, {Z: 1}, r3.Unit(r3.Vec{Y: 1, Z: 1})} {
		u, v := inPlaneAxes(n)
		if math.Abs(r3.Dot(u, n)) > 1e-12 || math.Abs(r3.Dot(v, n)) > 1e-12 || math.Abs(r3.Dot(u, v)) > 1e-12 {
			t.Errorf("axes for %v are not orthogonal: %v %v", n, u, v)
		}
	}
}
