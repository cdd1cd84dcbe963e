package grouping

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// SliceOrder sorts the slices of one group in place.
type SliceOrder func(slices []SliceRecord)

// Strategy names accepted by OrderByName.
const (
	OrderSpatial  = "spatial"
	OrderFile     = "file"
	OrderInstance = "instance"
)

// OrderByName resolves a strategy name. tolerance only matters for the
// spatial strategy.
func OrderByName(name string, tolerance float64) (SliceOrder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case OrderSpatial:
		return SpatialOrder(tolerance), nil
	case OrderFile:
		return FileOrder, nil
	case OrderInstance:
		return InstanceOrder, nil
	default:
		return nil, fmt.Errorf("unknown slice order %q, valid orders: %s, %s, %s", name, OrderSpatial, OrderFile, OrderInstance)
	}
}

// FileOrder sorts by file identifier, then slice number.
func FileOrder(slices []SliceRecord) {
	sort.SliceStable(slices, func(i, j int) bool {
		if slices[i].File != slices[j].File {
			return slices[i].File < slices[j].File
		}
		return slices[i].SliceNumber < slices[j].SliceNumber
	})
}

// InstanceOrder sorts by slice number, then file identifier.
func InstanceOrder(slices []SliceRecord) {
	sort.SliceStable(slices, byInstance(slices))
}

func byInstance(slices []SliceRecord) func(i, j int) bool {
	return func(i, j int) bool {
		if slices[i].SliceNumber != slices[j].SliceNumber {
			return slices[i].SliceNumber < slices[j].SliceNumber
		}
		return slices[i].File < slices[j].File
	}
}

// SpatialOrder sorts slices by their distance along the stack normal.
// Slices closer than tolerance are tied and ordered by slice number, then
// file identifier.
//
// The normal comes from StackNormal, flipped so the stack ascends along its
// dominant patient axis.
func SpatialOrder(tolerance float64) SliceOrder {
	return func(slices []SliceRecord) {
		if len(slices) < 2 {
			return
		}
		normal := StackNormal(slices)

		type projected struct {
			d   float64
			rec SliceRecord
		}
		ps := make([]projected, len(slices))
		for i, s := range slices {
			ps[i] = projected{d: r3.Dot(s.Position.Vec(), normal), rec: s}
		}
		sort.SliceStable(ps, func(i, j int) bool {
			if ps[i].d != ps[j].d {
				return ps[i].d < ps[j].d
			}
			if ps[i].rec.SliceNumber != ps[j].rec.SliceNumber {
				return ps[i].rec.SliceNumber < ps[j].rec.SliceNumber
			}
			return ps[i].rec.File < ps[j].rec.File
		})
		for i := range ps {
			slices[i] = ps[i].rec
		}

		// Runs of slices within tolerance of their predecessor form a tie.
		start := 0
		for i := 1; i <= len(ps); i++ {
			if i < len(ps) && ps[i].d-ps[i-1].d <= tolerance {
				continue
			}
			if i-start > 1 {
				InstanceOrder(slices[start:i])
			}
			start = i
		}
	}
}

// StackNormal returns the ascending stack direction used by SpatialOrder.
// It comes from the representative slice, the median by slice number, so
// it does not depend on the order of slices. When that slice has no usable
// cosines the first slice by slice number that has them is used, then the
// orientation label of the representative slice.
func StackNormal(slices []SliceRecord) r3.Vec {
	if len(slices) == 0 {
		return Unknown.Normal()
	}
	sorted := make([]SliceRecord, len(slices))
	copy(sorted, slices)
	InstanceOrder(sorted)

	rep := sorted[len(sorted)/2]
	if n, ok := rep.Normal(); ok {
		return AscendingNormal(n)
	}
	for _, s := range sorted {
		if n, ok := s.Normal(); ok {
			return AscendingNormal(n)
		}
	}
	return rep.Orientation.Normal()
}

// AscendingNormal flips n when needed so that its largest component is
// positive.
func AscendingNormal(n r3.Vec) r3.Vec {
	if component(n, dominantAxis(n)) < 0 {
		return r3.Scale(-1, n)
	}
	return n
}

func dominantAxis(v r3.Vec) int {
	ax, ay, az := math.Abs(v.X), math.Abs(v.Y), math.Abs(v.Z)
	switch {
	case ax >= ay && ax >= az:
		return 0
	case ay >= az:
		return 1
	default:
		return 2
	}
}

func component(v r3.Vec, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// VendorOrders maps a normalized manufacturer name to the ordering used for
// its series instead of the spatial one.
type VendorOrders map[string]SliceOrder

// DefaultVendorOrders returns the built-in overrides. Koning breast CT
// series are ordered by file name.
func DefaultVendorOrders() VendorOrders {
	return VendorOrders{
		"KONING": FileOrder,
	}
}

// NormalizeManufacturer returns the lookup key for a manufacturer string.
func NormalizeManufacturer(m string) string {
	return strings.ToUpper(strings.TrimSpace(m))
}

// Lookup returns the override for a manufacturer, if any.
func (v VendorOrders) Lookup(manufacturer string) (SliceOrder, bool) {
	if len(v) == 0 {
		return nil, false
	}
	order, ok := v[NormalizeManufacturer(manufacturer)]
	return order, ok && order != nil
}

// Set registers an override, normalizing the manufacturer name.
func (v VendorOrders) Set(manufacturer string, order SliceOrder) {
	v[NormalizeManufacturer(manufacturer)] = order
}
