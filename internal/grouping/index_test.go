package grouping

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func patient(name, id string, rec SliceRecord) SliceRecord {
	rec.PatientName = name
	rec.PatientID = id
	return rec
}

func TestIndex_PatientsSortedByName(t *testing.T) {
	x := NewIndex(DefaultOptions())
	x.AddRecord(patient("Zed", "1", slice("z", 1, 0)))
	x.AddRecord(patient("Amy", "2", slice("a", 1, 0)))

	var names []string
	for _, p := range x.PatientGroups() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"Amy", "Zed"}, names)
}

func TestIndex_RoutesByNameAndID(t *testing.T) {
	x := NewIndex(DefaultOptions())
	x.AddRecord(patient("DOE^JANE", "B", slice("b", 1, 0)))
	x.AddRecord(patient("DOE^JANE", "A", slice("a", 1, 0)))
	x.AddRecord(patient("DOE^JANE", "B", slice("b2", 2, 5)))

	patients := x.PatientGroups()
	require.Len(t, patients, 2)
	assert.Equal(t, "B", patients[0].Key().ID, "equal names keep encounter order")
	assert.Equal(t, "A", patients[1].Key().ID)
	assert.Equal(t, 2, patients[0].NumSlices())

	p, ok := x.Patient(PatientKey{Name: "DOE^JANE", ID: "A"})
	require.True(t, ok)
	assert.Equal(t, "a", p.Sample().File)
}

func TestIndex_Group(t *testing.T) {
	x := NewIndex(DefaultOptions())
	rec := patient("DOE^JOHN", "1", slice("IM1", 1, 0))
	key := x.AddRecord(rec)

	g, ok := x.Group(PatientKey{Name: "DOE^JOHN", ID: "1"}, key)
	require.True(t, ok)
	assert.Equal(t, []string{"IM1"}, g.FileNames())

	_, ok = x.Group(PatientKey{Name: "NOBODY"}, key)
	assert.False(t, ok)

	g, ok = x.Lookup(key)
	require.True(t, ok)
	assert.Equal(t, []string{"IM1"}, g.FileNames())

	_, ok = x.Lookup(GroupKey{PatientName: "NOBODY"})
	assert.False(t, ok)
}

func TestIndex_SealRejectsWrites(t *testing.T) {
	x := NewIndex(DefaultOptions())
	x.AddRecord(slice("IM1", 1, 0))
	x.Seal()

	assert.True(t, x.Sealed())
	assert.Panics(t, func() { x.AddRecord(slice("IM2", 2, 1)) })
	assert.Equal(t, 1, x.Stats().Records)
}

func TestIndex_Stats(t *testing.T) {
	x := NewIndex(DefaultOptions())
	x.AddRecord(slice("IM1", 1, 0))
	x.AddRecord(slice("IM2", 2, 0))
	x.AddRecord(derived(slice("MPR1", 1, 0)))
	x.AddRecord(derived(slice("MPR1b", 1, 0)))
	x.AddRecord(patient("OTHER", "2", slice("IM1", 1, 0)))

	assert.Equal(t, Stats{
		Records:    5,
		Patients:   2,
		Groups:     3,
		Collisions: 1,
		Overwrites: 1,
	}, x.Stats())
}

// Random ingestion of several interleaved series must never place two
// originals at the same position in one group and must account for every
// frame exactly once.
func TestIndex_RandomIngestionInvariants(t *testing.T) {
	rng := rand.New(rand.NewPCG(2024, 11))
	x := NewIndex(DefaultOptions())

	frames := 0
	for i := 0; i < 600; i++ {
		rec := slice(fmt.Sprintf("IM%04d", i), rng.IntN(40)+1, float64(rng.IntN(30))*1.25)
		rec.PatientName = []string{"ALPHA", "BRAVO", "CHARLIE"}[rng.IntN(3)]
		rec.SeriesNumber = rng.IntN(3) + 1
		rec.Orientation = []Orientation{Axial, Sagittal, Coronal}[rng.IntN(3)]
		rec.FrameCount = rng.IntN(3) + 1
		if rng.IntN(4) == 0 {
			rec = derived(rec)
		}
		frames += rec.FrameCount
		x.AddRecord(rec)
	}
	x.Seal()

	total := 0
	for _, p := range x.PatientGroups() {
		total += p.NumSlices()
		groupTotal := 0
		for _, g := range p.Groups() {
			groupTotal += g.NumSlices()

			seenPos := make(map[Position]bool)
			seenNum := make(map[int]bool)
			for _, s := range g.Slices() {
				if s.IsDerived() {
					assert.False(t, seenNum[s.SliceNumber], "duplicate derived slice number in %s", g.Key())
					seenNum[s.SliceNumber] = true
				} else {
					assert.False(t, seenPos[s.Position], "duplicate position in %s", g.Key())
					seenPos[s.Position] = true
				}
			}
			assert.Len(t, g.OrderedSlices(), g.Len())
		}
		assert.Equal(t, p.NumSlices(), groupTotal)
	}
	assert.Equal(t, frames, total)
}
