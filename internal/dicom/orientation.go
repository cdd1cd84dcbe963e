package dicom

import (
	"math"

	"github.com/mrsinham/dicomgroup/internal/grouping"
	"gonum.org/v1/gonum/spatial/r3"
)

// obliquityThreshold is the minimum absolute direction cosine for a row or
// column vector to count as aligned with a patient axis.
const obliquityThreshold = 0.8

// patient axis a direction cosine vector is aligned with
type majorAxis int

const (
	axisNone majorAxis = iota
	axisRL
	axisAP
	axisHF
)

func majorAxisOf(v r3.Vec) majorAxis {
	switch {
	case math.Abs(v.X) > obliquityThreshold:
		return axisRL
	case math.Abs(v.Y) > obliquityThreshold:
		return axisAP
	case math.Abs(v.Z) > obliquityThreshold:
		return axisHF
	default:
		return axisNone
	}
}

// OrientationFromCosines labels the plane spanned by the row and column
// direction cosines of Image Orientation (Patient). An all-zero input is
// Unknown; a plane whose vectors are not both close to a patient axis is
// Oblique.
func OrientationFromCosines(c [6]float64) grouping.Orientation {
	if c == ([6]float64{}) {
		return grouping.Unknown
	}
	row := majorAxisOf(r3.Vec{X: c[0], Y: c[1], Z: c[2]})
	col := majorAxisOf(r3.Vec{X: c[3], Y: c[4], Z: c[5]})
	pair := func(a, b majorAxis) bool {
		return (row == a && col == b) || (row == b && col == a)
	}
	switch {
	case pair(axisRL, axisAP):
		return grouping.Axial
	case pair(axisRL, axisHF):
		return grouping.Coronal
	case pair(axisAP, axisHF):
		return grouping.Sagittal
	default:
		return grouping.Oblique
	}
}

// CosinesFor returns standard direction cosines for an orientation label.
// Oblique planes are tilted 45 degrees from axial about the X axis.
func CosinesFor(o grouping.Orientation) [6]float64 {
	switch o {
	case grouping.Axial:
		return [6]float64{1, 0, 0, 0, 1, 0}
	case grouping.Coronal:
		return [6]float64{1, 0, 0, 0, 0, -1}
	case grouping.Sagittal:
		return [6]float64{0, 1, 0, 0, 0, -1}
	case grouping.Oblique:
		s := math.Sqrt2 / 2
		return [6]float64{1, 0, 0, 0, s, s}
	default:
		return [6]float64{}
	}
}
