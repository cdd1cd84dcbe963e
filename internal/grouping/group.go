package grouping

import (
	"math"
	"sort"
)

// DicomGroup is one reconstructable volume: slices from the same patient,
// study, series and orientation with no two originals at the same position.
//
// Original slices are keyed by exact position and a second slice at a taken
// position is rejected. Derived slices are keyed by slice number and a
// repeated number replaces the earlier slice.
type DicomGroup struct {
	key   GroupKey
	title string
	opts  Options

	slices   []SliceRecord // encounter order
	byPos    map[Position]int
	byNumber map[int]int

	nslices    int
	overwrites int
	zspacing   float64
}

// NewGroup returns an empty group. Groups are normally created by
// PatientGroup.AddRecord.
func NewGroup(key GroupKey, title string, opts Options) *DicomGroup {
	return &DicomGroup{
		key:      key,
		title:    title,
		opts:     opts.withDefaults(),
		byPos:    make(map[Position]int),
		byNumber: make(map[int]int),
		zspacing: 1.0,
	}
}

// AddSlice adds rec and reports whether it was accepted. Derived slices are
// always accepted; an original slice is rejected without side effects when
// the group already holds an original at exactly the same position.
func (g *DicomGroup) AddSlice(rec SliceRecord) bool {
	if rec.IsDerived() {
		if i, ok := g.byNumber[rec.SliceNumber]; ok {
			g.slices[i] = rec
			g.overwrites++
		} else {
			g.byNumber[rec.SliceNumber] = len(g.slices)
			g.slices = append(g.slices, rec)
		}
	} else {
		if _, ok := g.byPos[rec.Position]; ok {
			return false
		}
		g.byPos[rec.Position] = len(g.slices)
		g.slices = append(g.slices, rec)
	}
	g.nslices += rec.Frames()
	g.UpdateZSpacing()
	return true
}

// UpdateZSpacing recomputes the spacing from the first two slices in slice
// number order, measured along the orientation axis. Groups with fewer than
// two slices have a spacing of 1.
func (g *DicomGroup) UpdateZSpacing() {
	if len(g.slices) <= 1 {
		g.zspacing = 1.0
		return
	}
	less := func(a, b SliceRecord) bool {
		if a.SliceNumber != b.SliceNumber {
			return a.SliceNumber < b.SliceNumber
		}
		return a.File < b.File
	}
	first, second := 0, 1
	if less(g.slices[second], g.slices[first]) {
		first, second = second, first
	}
	for i := 2; i < len(g.slices); i++ {
		switch {
		case less(g.slices[i], g.slices[first]):
			first, second = i, first
		case less(g.slices[i], g.slices[second]):
			second = i
		}
	}
	axis := g.key.Orientation.Axis()
	g.zspacing = math.Abs(g.slices[second].Position[axis] - g.slices[first].Position[axis])
}

// Slices returns the slices in encounter order.
func (g *DicomGroup) Slices() []SliceRecord {
	out := make([]SliceRecord, len(g.slices))
	copy(out, g.slices)
	return out
}

// HandSortedSlices returns the slices by ascending slice number.
func (g *DicomGroup) HandSortedSlices() []SliceRecord {
	out := g.Slices()
	InstanceOrder(out)
	return out
}

// OrderedSlices returns the slices in physical order. A vendor override
// registered for the manufacturer of the representative slice replaces the
// spatial ordering.
func (g *DicomGroup) OrderedSlices() []SliceRecord {
	out := g.Slices()
	if len(out) == 0 {
		return out
	}
	if order, ok := g.opts.VendorOrders.Lookup(g.RepresentativeSlice().Manufacturer); ok {
		order(out)
		return out
	}
	SpatialOrder(g.opts.PositionTolerance)(out)
	return out
}

// FileNames returns the file identifiers of OrderedSlices.
func (g *DicomGroup) FileNames() []string {
	ordered := g.OrderedSlices()
	names := make([]string, len(ordered))
	for i, s := range ordered {
		names[i] = s.File
	}
	return names
}

// RepresentativeSlice returns the median slice by slice number. It returns
// the zero record for an empty group.
func (g *DicomGroup) RepresentativeSlice() SliceRecord {
	if len(g.slices) == 0 {
		return SliceRecord{}
	}
	sorted := g.HandSortedSlices()
	return sorted[len(sorted)/2]
}

// Key returns the group identity.
func (g *DicomGroup) Key() GroupKey { return g.key }

// Title returns the series description of the first record.
func (g *DicomGroup) Title() string { return g.title }

// NumSlices returns the sum of frame counts of every accepted slice,
// including derived slices that were later replaced.
func (g *DicomGroup) NumSlices() int { return g.nslices }

// Len returns the number of slices currently held.
func (g *DicomGroup) Len() int { return len(g.slices) }

// ZSpacing returns the inter-slice spacing in millimetres.
func (g *DicomGroup) ZSpacing() float64 { return g.zspacing }

// Overwrites returns how many derived slices replaced an earlier one.
func (g *DicomGroup) Overwrites() int { return g.overwrites }

func sortGroupsByTitle(groups []*DicomGroup) {
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].title > groups[j].title
	})
}
