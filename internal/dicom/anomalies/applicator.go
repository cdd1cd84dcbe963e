package anomalies

import (
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// Slice is the plan for one image of a series.
type Slice struct {
	InstanceNumber int
	Position       r3.Vec
	ImageType      []string
	OmitPosition   bool
	// FileRank orders file names within the series; lower ranks get lower
	// names.
	FileRank int
}

// OriginalImageType is the image type of acquired slices.
var OriginalImageType = []string{"ORIGINAL", "PRIMARY"}

// DerivedImageType is the image type of reformatted slices.
var DerivedImageType = []string{"DERIVED", "SECONDARY", "MPR"}

// derivedBase offsets the instance numbers of derived slices.
const derivedBase = 1000

// Applicator rewrites series plans according to the configured types.
type Applicator struct {
	config Config
	rng    *rand.Rand
}

// NewApplicator creates a new anomaly applicator.
func NewApplicator(config Config, rng *rand.Rand) *Applicator {
	return &Applicator{config: config, rng: rng}
}

// Apply returns a new plan with the enabled anomalies. normal is the unit
// stack direction of the series.
func (a *Applicator) Apply(plan []Slice, normal r3.Vec) []Slice {
	out := make([]Slice, len(plan))
	copy(out, plan)
	if len(out) == 0 {
		return out
	}
	originals := len(out)

	if a.config.HasType(ShuffledInstances) {
		perm := a.rng.Perm(originals)
		numbers := make([]int, originals)
		for i := range numbers {
			numbers[i] = out[perm[i]].InstanceNumber
		}
		for i := range numbers {
			out[i].InstanceNumber = numbers[i]
		}
	}

	// Shift before copying so duplicates and reformats keep sharing the
	// position of their source slice.
	if a.config.HasType(TableShift) {
		u, v := inPlaneAxes(normal)
		for i := range out {
			du := (a.rng.Float64() - 0.5) * 10
			dv := (a.rng.Float64() - 0.5) * 10
			out[i].Position = r3.Add(out[i].Position, r3.Add(r3.Scale(du, u), r3.Scale(dv, v)))
		}
	}

	next := maxInstance(out) + 1
	if a.config.HasType(DuplicatePositions) {
		for _, i := range a.pick(originals, max(1, originals/4)) {
			dup := out[i]
			dup.InstanceNumber = next
			dup.FileRank = len(out)
			next++
			out = append(out, dup)
		}
	}

	if a.config.HasType(DerivedImages) {
		picked := a.pick(originals, max(2, originals/3))
		for n, i := range picked {
			d := out[i]
			d.ImageType = DerivedImageType
			d.InstanceNumber = derivedBase + n
			d.FileRank = len(out)
			out = append(out, d)
		}
		// A second reformat reusing the first number replaces it.
		d := out[picked[0]]
		d.ImageType = DerivedImageType
		d.InstanceNumber = derivedBase
		d.FileRank = len(out)
		out = append(out, d)
	}

	if a.config.HasType(MissingPosition) {
		out[a.rng.IntN(originals)].OmitPosition = true
	}

	if a.config.HasType(ShuffledFiles) {
		for i, rank := range a.rng.Perm(len(out)) {
			out[i].FileRank = rank
		}
	}

	return out
}

// pick returns k distinct indices below n in ascending order.
func (a *Applicator) pick(n, k int) []int {
	if k > n {
		k = n
	}
	perm := a.rng.Perm(n)[:k]
	picked := make([]int, k)
	copy(picked, perm)
	sort.Ints(picked)
	return picked
}

func maxInstance(plan []Slice) int {
	m := 0
	for _, s := range plan {
		if s.InstanceNumber > m {
			m = s.InstanceNumber
		}
	}
	return m
}

// inPlaneAxes returns two unit vectors orthogonal to normal.
func inPlaneAxes(normal r3.Vec) (r3.Vec, r3.Vec) {
	ref := r3.Vec{X: 1}
	if r3.Norm(r3.Cross(normal, ref)) < 1e-6 {
		ref = r3.Vec{Y: 1}
	}
	u := r3.Unit(r3.Cross(normal, ref))
	v := r3.Unit(r3.Cross(normal, u))
	return u, v
}
