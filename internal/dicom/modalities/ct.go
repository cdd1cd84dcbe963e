package modalities

import (
	"math/rand/v2"

	"github.com/mrsinham/dicomgroup/internal/grouping"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// CTGenerator generates CT specific metadata, including dedicated breast CT.
type CTGenerator struct{}

func (g *CTGenerator) Modality() Modality {
	return CT
}

// SOPClassUID returns the CT Image Storage SOP Class UID.
func (g *CTGenerator) SOPClassUID() string {
	return "1.2.840.10008.5.1.4.1.1.2"
}

func (g *CTGenerator) Scanners() []Scanner {
	return []Scanner{
		{Manufacturer: "SIEMENS", Model: "SOMATOM Force", DetectorRows: 192},
		{Manufacturer: "GE MEDICAL SYSTEMS", Model: "Revolution CT", DetectorRows: 256},
		{Manufacturer: "CANON", Model: "Aquilion ONE", DetectorRows: 320},
		// Cone beam breast CT, whose series are stored in file name order.
		{Manufacturer: "Koning", Model: "KBCT 1000"},
	}
}

// SeriesTemplates returns a chest protocol.
func (g *CTGenerator) SeriesTemplates() []SeriesTemplate {
	return []SeriesTemplate{
		{Description: "AXIAL 1.0 STANDARD", Orientation: grouping.Axial},
		{Description: "CORONAL MPR", Orientation: grouping.Coronal},
		{Description: "SAGITTAL MPR", Orientation: grouping.Sagittal},
	}
}

func (g *CTGenerator) GenerateSeriesParams(scanner Scanner, rng *rand.Rand) SeriesParams {
	kvps := []float64{80, 100, 120, 140}
	params := SeriesParams{
		Modality:         CT,
		Scanner:          scanner,
		KVP:              kvps[rng.IntN(len(kvps))],
		RescaleIntercept: -1024,
		RescaleSlope:     1,
		PixelSpacing:     0.5 + rng.Float64()*0.5,
		SliceThickness:   0.5 + rng.Float64()*2.5,
	}
	params.SpacingBetweenSlices = quantize(params.SliceThickness)
	return params
}

func (g *CTGenerator) PixelConfig() PixelConfig {
	return PixelConfig{
		BitsAllocated: 16,
		BitsStored:    12,
		HighBit:       11,
		MinValue:      0,
		MaxValue:      4095,
		BaseValue:     1024,
	}
}

func (g *CTGenerator) AppendModalityElements(ds *dicom.Dataset, params SeriesParams) error {
	ds.Elements = append(ds.Elements,
		mustNewElement(tag.KVP, []string{floatToDS(params.KVP)}),
		mustNewElement(tag.RescaleIntercept, []string{floatToDS(params.RescaleIntercept)}),
		mustNewElement(tag.RescaleSlope, []string{floatToDS(params.RescaleSlope)}),
	)
	if params.Scanner.DetectorRows > 0 {
		ds.Elements = append(ds.Elements, mustNewElement(tag.ConvolutionKernel, []string{"STANDARD"}))
	}
	return nil
}
