// Package grouping organizes per-file DICOM slice metadata into patients,
// reconstructable series groups and physically ordered slice sequences.
//
// The hierarchy is Index -> PatientGroup -> DicomGroup -> SliceRecord. Records
// are folded into an Index by a single writer; once the Index is sealed it is
// read-only and may be shared between goroutines.
package grouping

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// Orientation is the acquisition plane label of a slice.
type Orientation string

const (
	Sagittal Orientation = "SAGITTAL"
	Coronal  Orientation = "CORONAL"
	Axial    Orientation = "AXIAL"
	Oblique  Orientation = "OBLIQUE"
	Unknown  Orientation = "UNKNOWN"
)

// AllOrientations returns every orientation label.
func AllOrientations() []Orientation {
	return []Orientation{Sagittal, Coronal, Axial, Oblique, Unknown}
}

// ParseOrientation accepts full labels case-insensitively and the usual
// short forms (SAG, COR, AX, TRA, OBL). Anything else is Unknown.
func ParseOrientation(s string) Orientation {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SAGITTAL", "SAG":
		return Sagittal
	case "CORONAL", "COR":
		return Coronal
	case "AXIAL", "AX", "TRA", "TRANSVERSE":
		return Axial
	case "OBLIQUE", "OBL":
		return Oblique
	default:
		return Unknown
	}
}

// Axis returns the patient axis a stack with this orientation advances
// along: 0 for X, 1 for Y, 2 for Z. Oblique and unknown stacks use Z.
func (o Orientation) Axis() int {
	switch o {
	case Sagittal:
		return 0
	case Coronal:
		return 1
	default:
		return 2
	}
}

// Normal returns the unit vector of Axis.
func (o Orientation) Normal() r3.Vec {
	switch o.Axis() {
	case 0:
		return r3.Vec{X: 1}
	case 1:
		return r3.Vec{Y: 1}
	default:
		return r3.Vec{Z: 1}
	}
}

// Position is an image position in patient coordinates, in millimetres.
// Positions are compared exactly; two slices share a position only when all
// three coordinates are bit-for-bit equal floats.
type Position [3]float64

// Vec converts p to a gonum vector.
func (p Position) Vec() r3.Vec {
	return r3.Vec{X: p[0], Y: p[1], Z: p[2]}
}

func (p Position) String() string {
	return fmt.Sprintf("(%g, %g, %g)", p[0], p[1], p[2])
}

// SliceRecord is the metadata extracted from one DICOM file.
type SliceRecord struct {
	PatientName       string
	PatientID         string
	StudyID           string
	SeriesNumber      int
	SeriesDescription string
	Orientation       Orientation
	Position          Position
	ImageType         []string
	FrameCount        int
	SliceNumber       int
	Manufacturer      string
	File              string

	// Optional, filled by the extractor when the file carries them.
	ImageOrientation  [6]float64
	Modality          string
	StudyInstanceUID  string
	SeriesInstanceUID string
	SOPInstanceUID    string
	SOPClassUID       string
	TransferSyntaxUID string
}

// IsDerived reports whether the image type marks the slice as derived
// (reformats, projections and other post-processed images).
func (r SliceRecord) IsDerived() bool {
	for _, v := range r.ImageType {
		if strings.EqualFold(strings.TrimSpace(v), "DERIVED") {
			return true
		}
	}
	return false
}

// Frames returns FrameCount, counting values below one as a single frame.
func (r SliceRecord) Frames() int {
	if r.FrameCount < 1 {
		return 1
	}
	return r.FrameCount
}

// Normal returns the unit slice normal computed from the row and column
// direction cosines. ok is false when the cosines are absent or degenerate.
func (r SliceRecord) Normal() (n r3.Vec, ok bool) {
	row := r3.Vec{X: r.ImageOrientation[0], Y: r.ImageOrientation[1], Z: r.ImageOrientation[2]}
	col := r3.Vec{X: r.ImageOrientation[3], Y: r.ImageOrientation[4], Z: r.ImageOrientation[5]}
	n = r3.Cross(row, col)
	norm := r3.Norm(n)
	if norm < 1e-6 {
		return r3.Vec{}, false
	}
	return r3.Scale(1/norm, n), true
}

// PatientKey identifies a patient.
type PatientKey struct {
	Name string
	ID   string
}

func (k PatientKey) String() string {
	if k.ID == "" {
		return k.Name
	}
	return fmt.Sprintf("%s (%s)", k.Name, k.ID)
}

// GroupKey identifies a DicomGroup. Records with the same patient, study,
// series and orientation share a key up to CollisionIndex, which separates
// sibling groups that would otherwise hold two slices at the same position.
type GroupKey struct {
	PatientName    string
	StudyID        string
	SeriesNumber   int
	Orientation    Orientation
	CollisionIndex int
}

// KeyOf returns the base key (collision index 0) of a record.
func KeyOf(rec SliceRecord) GroupKey {
	return GroupKey{
		PatientName:  rec.PatientName,
		StudyID:      rec.StudyID,
		SeriesNumber: rec.SeriesNumber,
		Orientation:  rec.Orientation,
	}
}

// Base returns k with the collision index cleared.
func (k GroupKey) Base() GroupKey {
	k.CollisionIndex = 0
	return k
}

func (k GroupKey) String() string {
	return fmt.Sprintf("%s/%s/%d/%s/%d", k.PatientName, k.StudyID, k.SeriesNumber, k.Orientation, k.CollisionIndex)
}
