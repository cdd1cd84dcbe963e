package grouping

import (
	"github.com/rs/zerolog"
)

// PatientGroup holds every group of one patient.
type PatientGroup struct {
	key  PatientKey
	opts Options
	log  zerolog.Logger

	groups map[GroupKey]*DicomGroup
	order  []*DicomGroup // encounter order

	nslices    int
	sample     SliceRecord
	hasSample  bool
	collisions int
	warned     map[GroupKey]bool
}

// NewPatientGroup returns an empty patient. Patients are normally created
// by Index.AddRecord.
func NewPatientGroup(key PatientKey, opts Options) *PatientGroup {
	opts = opts.withDefaults()
	return &PatientGroup{
		key:    key,
		opts:   opts,
		log:    opts.logger(),
		groups: make(map[GroupKey]*DicomGroup),
		warned: make(map[GroupKey]bool),
	}
}

// AddRecord places rec in the first group of its series that accepts it,
// creating a sibling group when every existing one rejects it, and returns
// the key of the group that took it.
//
// Every iteration either finishes or moves past an existing group, so the
// loop runs at most once per sibling plus one.
func (p *PatientGroup) AddRecord(rec SliceRecord) GroupKey {
	if !p.hasSample {
		p.sample = rec
		p.hasSample = true
	}

	key := KeyOf(rec)
	for {
		g, ok := p.groups[key]
		if !ok {
			g = NewGroup(key, rec.SeriesDescription, p.opts)
			g.AddSlice(rec)
			p.groups[key] = g
			p.order = append(p.order, g)
			break
		}
		if g.AddSlice(rec) {
			break
		}
		key.CollisionIndex++
		p.warnCollisions(key)
	}

	p.nslices += rec.Frames()
	if key.CollisionIndex > 0 {
		p.collisions++
	}
	return key
}

func (p *PatientGroup) warnCollisions(key GroupKey) {
	threshold := p.opts.CollisionWarnThreshold
	if threshold <= 0 || key.CollisionIndex < threshold {
		return
	}
	base := key.Base()
	if p.warned[base] {
		return
	}
	p.warned[base] = true
	p.log.Warn().
		Str("patient", p.key.Name).
		Str("study_id", base.StudyID).
		Int("series_number", base.SeriesNumber).
		Str("orientation", string(base.Orientation)).
		Int("collision_index", key.CollisionIndex).
		Msg("series split into many groups by duplicate positions")
}

// Groups returns the groups by descending title. Groups with equal titles
// keep their encounter order.
func (p *PatientGroup) Groups() []*DicomGroup {
	out := make([]*DicomGroup, len(p.order))
	copy(out, p.order)
	sortGroupsByTitle(out)
	return out
}

// Group returns the group with the given key.
func (p *PatientGroup) Group(key GroupKey) (*DicomGroup, bool) {
	g, ok := p.groups[key]
	return g, ok
}

// Key returns the patient identity.
func (p *PatientGroup) Key() PatientKey { return p.key }

// Name returns the patient name.
func (p *PatientGroup) Name() string { return p.key.Name }

// NumSlices returns the sum of frame counts of every record added.
func (p *PatientGroup) NumSlices() int { return p.nslices }

// NumGroups returns the number of groups.
func (p *PatientGroup) NumGroups() int { return len(p.order) }

// Sample returns the first record added to the patient.
func (p *PatientGroup) Sample() SliceRecord { return p.sample }

// Collisions returns how many records landed in a sibling group.
func (p *PatientGroup) Collisions() int { return p.collisions }

func (p *PatientGroup) overwrites() int {
	n := 0
	for _, g := range p.order {
		n += g.Overwrites()
	}
	return n
}
