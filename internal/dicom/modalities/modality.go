// Package modalities describes the scanners and series layouts used to
// synthesize test series for each imaging modality.
package modalities

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/mrsinham/dicomgroup/internal/grouping"
	"github.com/suyashkumar/dicom"
)

// Modality represents a DICOM imaging modality type.
type Modality string

const (
	MR Modality = "MR" // Magnetic Resonance
	CT Modality = "CT" // Computed Tomography
)

// AllModalities returns all supported modalities.
func AllModalities() []Modality {
	return []Modality{MR, CT}
}

// Parse returns the modality named by s, case-insensitively.
func Parse(s string) (Modality, error) {
	for _, m := range AllModalities() {
		if strings.EqualFold(string(m), strings.TrimSpace(s)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown modality %q, valid modalities: %v", s, AllModalities())
}

// Scanner represents an imaging device configuration.
type Scanner struct {
	Manufacturer string
	Model        string
	// MR-specific
	FieldStrength float64 // Tesla (1.5, 3.0)
	// CT-specific
	DetectorRows int
}

// SeriesParams holds acquisition parameters shared by every image of a series.
type SeriesParams struct {
	Modality Modality
	Scanner  Scanner

	// MR-specific
	EchoTime       float64
	RepetitionTime float64
	FlipAngle      float64

	// CT-specific
	KVP              float64
	RescaleIntercept float64
	RescaleSlope     float64

	PixelSpacing         float64
	SliceThickness       float64
	SpacingBetweenSlices float64
}

// SeriesTemplate is one series of a typical protocol.
type SeriesTemplate struct {
	Description string
	Orientation grouping.Orientation
}

// PixelConfig holds pixel data configuration for a modality.
type PixelConfig struct {
	BitsAllocated       uint16
	BitsStored          uint16
	HighBit             uint16
	PixelRepresentation uint16 // 0 = unsigned, 1 = signed
	MinValue            int
	MaxValue            int
	BaseValue           int
}

// Generator defines the modality-specific parts of a synthetic series.
type Generator interface {
	Modality() Modality

	// SOPClassUID returns the image storage SOP class of the modality.
	SOPClassUID() string

	Scanners() []Scanner

	// SeriesTemplates returns the protocol series in acquisition order.
	SeriesTemplates() []SeriesTemplate

	GenerateSeriesParams(scanner Scanner, rng *rand.Rand) SeriesParams

	PixelConfig() PixelConfig

	// AppendModalityElements appends modality-specific elements to a dataset.
	AppendModalityElements(ds *dicom.Dataset, params SeriesParams) error
}

// GetGenerator returns the generator for the specified modality.
func GetGenerator(m Modality) Generator {
	switch m {
	case CT:
		return &CTGenerator{}
	case MR:
		fallthrough
	default:
		return &MRGenerator{}
	}
}

// PickScanner returns the scanner of gen whose manufacturer matches, or a
// random one when manufacturer is empty. An unknown manufacturer gets a
// generic scanner so any vendor string can be exercised.
func PickScanner(gen Generator, manufacturer string, rng *rand.Rand) Scanner {
	scanners := gen.Scanners()
	if manufacturer == "" {
		return scanners[rng.IntN(len(scanners))]
	}
	for _, s := range scanners {
		if strings.EqualFold(s.Manufacturer, strings.TrimSpace(manufacturer)) {
			return s
		}
	}
	return Scanner{Manufacturer: manufacturer, Model: "GENERIC", FieldStrength: 1.5, DetectorRows: 64}
}
