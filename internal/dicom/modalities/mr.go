package modalities

import (
	"math/rand/v2"

	"github.com/mrsinham/dicomgroup/internal/grouping"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// MRGenerator generates MR specific metadata.
type MRGenerator struct{}

func (g *MRGenerator) Modality() Modality {
	return MR
}

// SOPClassUID returns the MR Image Storage SOP Class UID.
func (g *MRGenerator) SOPClassUID() string {
	return "1.2.840.10008.5.1.4.1.1.4"
}

func (g *MRGenerator) Scanners() []Scanner {
	return []Scanner{
		{Manufacturer: "SIEMENS", Model: "Skyra", FieldStrength: 3.0},
		{Manufacturer: "GE MEDICAL SYSTEMS", Model: "Discovery MR750", FieldStrength: 3.0},
		{Manufacturer: "PHILIPS", Model: "Ingenia", FieldStrength: 1.5},
	}
}

// SeriesTemplates returns a brain protocol: one series per acquisition plane.
func (g *MRGenerator) SeriesTemplates() []SeriesTemplate {
	return []SeriesTemplate{
		{Description: "T1 SAG", Orientation: grouping.Sagittal},
		{Description: "T2 AX", Orientation: grouping.Axial},
		{Description: "FLAIR COR", Orientation: grouping.Coronal},
		{Description: "DWI OBL", Orientation: grouping.Oblique},
	}
}

func (g *MRGenerator) GenerateSeriesParams(scanner Scanner, rng *rand.Rand) SeriesParams {
	params := SeriesParams{
		Modality:       MR,
		Scanner:        scanner,
		PixelSpacing:   0.5 + rng.Float64()*1.5,     // 0.5-2.0 mm
		SliceThickness: 1.0 + rng.Float64()*4.0,     // 1.0-5.0 mm
		EchoTime:       10.0 + rng.Float64()*20.0,   // 10-30 ms
		RepetitionTime: 400.0 + rng.Float64()*400.0, // 400-800 ms
		FlipAngle:      60.0 + rng.Float64()*30.0,   // 60-90 degrees
	}
	// Quarter millimetre steps keep positions exact in decimal strings.
	params.SpacingBetweenSlices = quantize(params.SliceThickness + rng.Float64()*0.5)
	return params
}

func (g *MRGenerator) PixelConfig() PixelConfig {
	return PixelConfig{
		BitsAllocated: 16,
		BitsStored:    12,
		HighBit:       11,
		MinValue:      0,
		MaxValue:      4095,
		BaseValue:     2048,
	}
}

func (g *MRGenerator) AppendModalityElements(ds *dicom.Dataset, params SeriesParams) error {
	ds.Elements = append(ds.Elements,
		mustNewElement(tag.MagneticFieldStrength, []string{floatToDS(params.Scanner.FieldStrength)}),
		mustNewElement(tag.EchoTime, []string{floatToDS(params.EchoTime)}),
		mustNewElement(tag.RepetitionTime, []string{floatToDS(params.RepetitionTime)}),
		mustNewElement(tag.FlipAngle, []string{floatToDS(params.FlipAngle)}),
	)
	return nil
}
