package grouping

import (
	"sort"
)

// Index routes records to patients. It is built by one writer and becomes
// read-only once sealed. Every operation is total except AddRecord after
// Seal, which panics: writing to a sealed index is a programming error.
type Index struct {
	opts     Options
	patients map[PatientKey]*PatientGroup
	order    []*PatientGroup
	records  int
	sealed   bool
}

// Stats summarizes an index.
type Stats struct {
	Records    int `json:"records" yaml:"records"`
	Patients   int `json:"patients" yaml:"patients"`
	Groups     int `json:"groups" yaml:"groups"`
	Collisions int `json:"collisions" yaml:"collisions"`
	Overwrites int `json:"overwrites" yaml:"overwrites"`
}

// NewIndex returns an empty index.
func NewIndex(opts Options) *Index {
	return &Index{
		opts:     opts.withDefaults(),
		patients: make(map[PatientKey]*PatientGroup),
	}
}

// AddRecord routes rec to its patient, creating the patient on first sight,
// and returns the key of the group that took it. It panics on a sealed index.
func (x *Index) AddRecord(rec SliceRecord) GroupKey {
	if x.sealed {
		panic("grouping: AddRecord on sealed index")
	}
	key := PatientKey{Name: rec.PatientName, ID: rec.PatientID}
	p, ok := x.patients[key]
	if !ok {
		p = NewPatientGroup(key, x.opts)
		x.patients[key] = p
		x.order = append(x.order, p)
	}
	x.records++
	return p.AddRecord(rec)
}

// Seal ends the build. Readers may share a sealed index across goroutines.
func (x *Index) Seal() { x.sealed = true }

// Sealed reports whether Seal was called.
func (x *Index) Sealed() bool { return x.sealed }

// PatientGroups returns the patients by ascending name. Patients with equal
// names keep their encounter order.
func (x *Index) PatientGroups() []*PatientGroup {
	out := make([]*PatientGroup, len(x.order))
	copy(out, x.order)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].key.Name < out[j].key.Name
	})
	return out
}

// Patient returns the patient with the given key.
func (x *Index) Patient(key PatientKey) (*PatientGroup, bool) {
	p, ok := x.patients[key]
	return p, ok
}

// Group returns a group by patient and group key.
func (x *Index) Group(patient PatientKey, key GroupKey) (*DicomGroup, bool) {
	p, ok := x.patients[patient]
	if !ok {
		return nil, false
	}
	return p.Group(key)
}

// Lookup finds a group by key alone. Keys carry the patient name but not
// the ID, so the first patient in encounter order holding the key wins.
func (x *Index) Lookup(key GroupKey) (*DicomGroup, bool) {
	for _, p := range x.order {
		if p.key.Name != key.PatientName {
			continue
		}
		if g, ok := p.Group(key); ok {
			return g, true
		}
	}
	return nil, false
}

// Stats returns totals over every patient.
func (x *Index) Stats() Stats {
	s := Stats{Records: x.records, Patients: len(x.order)}
	for _, p := range x.order {
		s.Groups += p.NumGroups()
		s.Collisions += p.Collisions()
		s.Overwrites += p.overwrites()
	}
	return s
}
