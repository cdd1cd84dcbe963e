package dicom

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mrsinham/dicomgroup/internal/grouping"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// MediaStorageDirectoryUID is the media storage SOP class of DICOMDIR files.
const MediaStorageDirectoryUID = "1.2.840.10008.1.3.10"

var (
	// ErrNotDICOM is returned for files that cannot be parsed as DICOM.
	ErrNotDICOM = errors.New("not a DICOM file")
	// ErrDICOMDIR is returned for media directory files, which hold no image.
	ErrDICOMDIR = errors.New("DICOMDIR file")
)

// DefaultPosition is used for files without Image Position (Patient).
var DefaultPosition = grouping.Position{1, 1, 1}

// ReadSliceRecord parses the metadata of one file, skipping pixel data.
func ReadSliceRecord(path string) (grouping.SliceRecord, error) {
	ds, err := parseMetadata(path)
	if err != nil {
		return grouping.SliceRecord{}, err
	}
	if firstString(ds, tag.MediaStorageSOPClassUID) == MediaStorageDirectoryUID {
		return grouping.SliceRecord{}, fmt.Errorf("%s: %w", path, ErrDICOMDIR)
	}
	if _, err := ds.FindElementByTag(tag.DirectoryRecordSequence); err == nil {
		return grouping.SliceRecord{}, fmt.Errorf("%s: %w", path, ErrDICOMDIR)
	}
	rec := RecordFromDataset(ds)
	rec.File = path
	return rec, nil
}

// RecordFromDataset extracts a slice record from a parsed dataset. Missing
// attributes get defaults: position (1,1,1), one frame, orientation UNKNOWN.
func RecordFromDataset(ds dicom.Dataset) grouping.SliceRecord {
	rec := grouping.SliceRecord{
		PatientName:       firstString(ds, tag.PatientName),
		PatientID:         firstString(ds, tag.PatientID),
		StudyID:           firstString(ds, tag.StudyID),
		SeriesNumber:      firstInt(ds, tag.SeriesNumber, 0),
		SeriesDescription: firstString(ds, tag.SeriesDescription),
		Position:          DefaultPosition,
		ImageType:         stringValues(ds, tag.ImageType),
		FrameCount:        firstInt(ds, tag.NumberOfFrames, 1),
		SliceNumber:       firstInt(ds, tag.InstanceNumber, 0),
		Manufacturer:      firstString(ds, tag.Manufacturer),
		Modality:          firstString(ds, tag.Modality),
		StudyInstanceUID:  firstString(ds, tag.StudyInstanceUID),
		SeriesInstanceUID: firstString(ds, tag.SeriesInstanceUID),
		SOPInstanceUID:    firstString(ds, tag.SOPInstanceUID),
		SOPClassUID:       firstString(ds, tag.SOPClassUID),
		TransferSyntaxUID: firstString(ds, tag.TransferSyntaxUID),
	}
	if rec.FrameCount < 1 {
		rec.FrameCount = 1
	}
	if v, ok := floats(ds, tag.ImagePositionPatient, 3); ok {
		copy(rec.Position[:], v)
	}
	if v, ok := floats(ds, tag.ImageOrientationPatient, 6); ok {
		copy(rec.ImageOrientation[:], v)
	}
	rec.Orientation = OrientationFromCosines(rec.ImageOrientation)
	return rec
}

func parseMetadata(path string) (dicom.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return dicom.Dataset{}, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return dicom.Dataset{}, fmt.Errorf("stat file: %w", err)
	}

	ds, err := dicom.Parse(f, info.Size(), nil, dicom.SkipPixelData())
	if err != nil {
		return dicom.Dataset{}, fmt.Errorf("%s: %w: %v", path, ErrNotDICOM, err)
	}
	return ds, nil
}

// stringValues returns the trimmed string values of an element. Multi-valued
// attributes arrive already split on the backslash delimiter.
func stringValues(ds dicom.Dataset, t tag.Tag) []string {
	elem, err := ds.FindElementByTag(t)
	if err != nil || elem == nil || elem.Value == nil {
		return nil
	}
	raw, ok := elem.Value.GetValue().([]string)
	if !ok {
		return nil
	}
	var out []string
	for _, s := range raw {
		for _, part := range strings.Split(s, `\`) {
			out = append(out, strings.Trim(part, " \x00"))
		}
	}
	return out
}

func firstString(ds dicom.Dataset, t tag.Tag) string {
	vals := stringValues(ds, t)
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

func firstInt(ds dicom.Dataset, t tag.Tag, def int) int {
	s := firstString(ds, t)
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	// Some writers store integer strings as decimals.
	if f, err := parseDecimal(s); err == nil {
		return int(f)
	}
	return def
}

// floats parses exactly n decimal string values.
func floats(ds dicom.Dataset, t tag.Tag, n int) ([]float64, bool) {
	vals := stringValues(ds, t)
	if len(vals) != n {
		return nil, false
	}
	out := make([]float64, n)
	for i, v := range vals {
		f, err := parseDecimal(v)
		if err != nil {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

// parseDecimal accepts a comma as decimal separator, which some writers
// emit under non-English locales.
func parseDecimal(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
}
