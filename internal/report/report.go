// Package report turns a sealed grouping index into a snapshot for people
// and tools, rendered as styled text, JSON or YAML.
package report

import (
	"fmt"

	"github.com/mrsinham/dicomgroup/internal/grouping"
	"github.com/mrsinham/dicomgroup/internal/importer"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

// Report is the snapshot of one import.
type Report struct {
	RunID    string             `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Root     string             `json:"root,omitempty" yaml:"root,omitempty"`
	Stats    grouping.Stats     `json:"stats" yaml:"stats"`
	Patients []Patient          `json:"patients" yaml:"patients"`
	Skipped  []importer.Skipped `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// Patient is one patient with its groups in display order.
//
// NumSlices counts frames: a multi-frame record adds its frame count, and
// slices of every collision split are included. NumFiles counts the files
// listed by its groups.
type Patient struct {
	Index     int     `json:"index" yaml:"index"`
	Name      string  `json:"name" yaml:"name"`
	ID        string  `json:"id" yaml:"id"`
	NumSlices int     `json:"num_slices" yaml:"num_slices"`
	NumFiles  int     `json:"num_files" yaml:"num_files"`
	Groups    []Group `json:"groups" yaml:"groups"`
}

// Group is one reconstructable stack. NumSlices counts frames like
// Patient.NumSlices.
type Group struct {
	Index          int      `json:"index" yaml:"index"`
	Key            string   `json:"key" yaml:"key"`
	Title          string   `json:"title" yaml:"title"`
	StudyID        string   `json:"study_id" yaml:"study_id"`
	SeriesNumber   int      `json:"series_number" yaml:"series_number"`
	Orientation    string   `json:"orientation" yaml:"orientation"`
	CollisionIndex int      `json:"collision_index" yaml:"collision_index"`
	Manufacturer   string   `json:"manufacturer,omitempty" yaml:"manufacturer,omitempty"`
	NumSlices      int      `json:"num_slices" yaml:"num_slices"`
	ZSpacing       float64  `json:"z_spacing" yaml:"z_spacing"`
	Spacing        *Spacing `json:"spacing,omitempty" yaml:"spacing,omitempty"`
	Files          []string `json:"files" yaml:"files"`
}

// Spacing summarizes the gaps between consecutive ordered slices along the
// stack normal. Irregular spacing hints at missing or misplaced slices.
type Spacing struct {
	Mean   float64 `json:"mean" yaml:"mean"`
	StdDev float64 `json:"std_dev" yaml:"std_dev"`
	Min    float64 `json:"min" yaml:"min"`
	Max    float64 `json:"max" yaml:"max"`
}

// Build snapshots a sealed index.
func Build(idx *grouping.Index) *Report {
	r := &Report{Stats: idx.Stats(), Patients: []Patient{}}
	for pi, p := range idx.PatientGroups() {
		rp := Patient{
			Index:     pi,
			Name:      p.Key().Name,
			ID:        p.Key().ID,
			NumSlices: p.NumSlices(),
			Groups:    []Group{},
		}
		for gi, g := range p.Groups() {
			rg := buildGroup(gi, g)
			rp.NumFiles += len(rg.Files)
			rp.Groups = append(rp.Groups, rg)
		}
		r.Patients = append(r.Patients, rp)
	}
	return r
}

// FromImport snapshots the index of an import and keeps its skip list.
func FromImport(res *importer.Result) *Report {
	r := Build(res.Index)
	r.RunID = res.RunID
	r.Root = res.Root
	r.Skipped = res.Skipped
	return r
}

func buildGroup(index int, g *grouping.DicomGroup) Group {
	key := g.Key()
	ordered := g.OrderedSlices()
	files := make([]string, len(ordered))
	for i, s := range ordered {
		files[i] = s.File
	}
	return Group{
		Index:          index,
		Key:            key.String(),
		Title:          g.Title(),
		StudyID:        key.StudyID,
		SeriesNumber:   key.SeriesNumber,
		Orientation:    string(key.Orientation),
		CollisionIndex: key.CollisionIndex,
		Manufacturer:   g.RepresentativeSlice().Manufacturer,
		NumSlices:      g.NumSlices(),
		ZSpacing:       g.ZSpacing(),
		Spacing:        spacingOf(ordered),
		Files:          files,
	}
}

// spacingOf returns gap statistics, or nil for fewer than two slices.
func spacingOf(ordered []grouping.SliceRecord) *Spacing {
	if len(ordered) < 2 {
		return nil
	}
	normal := grouping.StackNormal(ordered)
	gaps := make([]float64, len(ordered)-1)
	prev := r3.Dot(ordered[0].Position.Vec(), normal)
	for i := 1; i < len(ordered); i++ {
		d := r3.Dot(ordered[i].Position.Vec(), normal)
		gaps[i-1] = d - prev
		prev = d
	}
	mean, std := stat.MeanStdDev(gaps, nil)
	if len(gaps) == 1 {
		std = 0
	}
	return &Spacing{Mean: mean, StdDev: std, Min: floats.Min(gaps), Max: floats.Max(gaps)}
}

// String is a one-line summary of the stats.
func (r *Report) String() string {
	return fmt.Sprintf("%d files, %d patients, %d groups, %d collisions, %d overwrites",
		r.Stats.Records, r.Stats.Patients, r.Stats.Groups, r.Stats.Collisions, r.Stats.Overwrites)
}
