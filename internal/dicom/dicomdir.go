package dicom

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/mrsinham/dicomgroup/internal/grouping"
	"github.com/mrsinham/dicomgroup/internal/util"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// Directory record levels.
const (
	levelPatient = iota
	levelStudy
	levelSeries
	levelImage
	numLevels
)

var recordTypes = [numLevels]string{"PATIENT", "STUDY", "SERIES", "IMAGE"}

// OrganizeResult summarizes an organized file-set.
type OrganizeResult struct {
	Patients    int
	Studies     int
	Series      int
	Images      int
	DICOMDIR    string
	RecordCount int
}

// directoryRecord is one entry of the directory record sequence.
type directoryRecord struct {
	level    int
	elements []*dicom.Element
}

func newDirectoryRecord(level int, elements ...*dicom.Element) directoryRecord {
	head := []*dicom.Element{
		mustNewElement(tag.OffsetOfTheNextDirectoryRecord, []int{0}),
		mustNewElement(tag.RecordInUseFlag, []int{0xFFFF}),
		mustNewElement(tag.OffsetOfReferencedLowerLevelDirectoryEntity, []int{0}),
		mustNewElement(tag.DirectoryRecordType, []string{recordTypes[level]}),
	}
	return directoryRecord{level: level, elements: append(head, elements...)}
}

// Organize copies every group of a sealed index into a PT/ST/SE/IM
// hierarchy under outputDir and writes a DICOMDIR describing it. Each group
// becomes its own series directory and its files are numbered in slice
// order, so viewers that follow the directory get a correctly stacked
// volume. Files dropped by the grouping (duplicates, replaced derived
// images) are not copied.
func Organize(idx *grouping.Index, outputDir string, quiet bool) (OrganizeResult, error) {
	var result OrganizeResult
	if idx == nil || !idx.Sealed() {
		return result, fmt.Errorf("organize: index must be sealed")
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return result, fmt.Errorf("create output directory: %w", err)
	}

	var records []directoryRecord
	seenSeriesUIDs := make(map[string]bool)

	for pi, patient := range idx.PatientGroups() {
		ptDir := fmt.Sprintf("PT%06d", pi)
		result.Patients++
		records = append(records, newDirectoryRecord(levelPatient,
			mustNewElement(tag.PatientID, []string{patient.Key().ID}),
			mustNewElement(tag.PatientName, []string{patient.Key().Name}),
		))

		// Groups are split by study in the order their study first appears.
		var studyOrder []string
		byStudy := make(map[string][]*grouping.DicomGroup)
		for _, g := range patient.Groups() {
			sid := g.Key().StudyID
			if _, ok := byStudy[sid]; !ok {
				studyOrder = append(studyOrder, sid)
			}
			byStudy[sid] = append(byStudy[sid], g)
		}

		for si, studyID := range studyOrder {
			groups := byStudy[studyID]
			stDir := filepath.Join(ptDir, fmt.Sprintf("ST%06d", si))
			result.Studies++

			first := groups[0].RepresentativeSlice()
			studyUID := first.StudyInstanceUID
			if studyUID == "" {
				studyUID = util.GenerateDeterministicUID(patient.Key().String() + "_study_" + studyID)
			}
			records = append(records, newDirectoryRecord(levelStudy,
				mustNewElement(tag.StudyInstanceUID, []string{studyUID}),
				mustNewElement(tag.StudyID, []string{studyID}),
			))

			for gi, g := range groups {
				seDir := filepath.Join(stDir, fmt.Sprintf("SE%06d", gi))
				if err := os.MkdirAll(filepath.Join(outputDir, seDir), 0755); err != nil {
					return result, fmt.Errorf("create series directory: %w", err)
				}
				result.Series++

				rep := g.RepresentativeSlice()
				// A series split into several groups needs one UID per group.
				seriesUID := rep.SeriesInstanceUID
				if seriesUID == "" || seenSeriesUIDs[seriesUID] {
					seriesUID = util.GenerateDeterministicUID(seriesUID + "_" + g.Key().String())
				}
				seenSeriesUIDs[seriesUID] = true
				records = append(records, newDirectoryRecord(levelSeries,
					mustNewElement(tag.Modality, []string{rep.Modality}),
					mustNewElement(tag.SeriesInstanceUID, []string{seriesUID}),
					mustNewElement(tag.SeriesNumber, []string{strconv.Itoa(g.Key().SeriesNumber)}),
				))

				for ii, s := range g.OrderedSlices() {
					syntax := s.TransferSyntaxUID
					if syntax == "" {
						syntax = explicitVRLittleEndian
					}
					imName := fmt.Sprintf("IM%06d", ii)
					rel := filepath.Join(seDir, imName)
					if err := copyFile(s.File, filepath.Join(outputDir, rel)); err != nil {
						return result, fmt.Errorf("copy %s: %w", s.File, err)
					}
					result.Images++
					records = append(records, newDirectoryRecord(levelImage,
						mustNewElement(tag.ReferencedFileID, []string{ptDir, filepath.Base(stDir), filepath.Base(seDir), imName}),
						mustNewElement(tag.ReferencedSOPClassUIDInFile, []string{s.SOPClassUID}),
						mustNewElement(tag.ReferencedSOPInstanceUIDInFile, []string{s.SOPInstanceUID}),
						mustNewElement(tag.ReferencedTransferSyntaxUIDInFile, []string{syntax}),
						mustNewElement(tag.InstanceNumber, []string{strconv.Itoa(s.SliceNumber)}),
					))
				}
			}
		}

		if !quiet {
			fmt.Printf("  %s: %s (%d groups)\n", ptDir, patient.Name(), patient.NumGroups())
		}
	}

	path := filepath.Join(outputDir, "DICOMDIR")
	if err := writeDICOMDIR(path, filepath.Base(outputDir), records); err != nil {
		return result, err
	}
	result.DICOMDIR = path
	result.RecordCount = len(records)

	if !quiet {
		fmt.Printf("\n✓ DICOMDIR created: %d patients, %d studies, %d series, %d images\n",
			result.Patients, result.Studies, result.Series, result.Images)
	}
	return result, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// writeDICOMDIR writes the file-set directory, then patches the record
// offsets once their byte positions are known.
func writeDICOMDIR(path, fileSetID string, records []directoryRecord) error {
	if len(fileSetID) > 16 {
		fileSetID = fileSetID[:16]
	}
	items := make([][]*dicom.Element, len(records))
	for i, r := range records {
		items[i] = r.elements
	}

	ds := dicom.Dataset{Elements: []*dicom.Element{
		mustNewElement(tag.TransferSyntaxUID, []string{explicitVRLittleEndian}),
		mustNewElement(tag.MediaStorageSOPClassUID, []string{MediaStorageDirectoryUID}),
		mustNewElement(tag.MediaStorageSOPInstanceUID, []string{util.GenerateDeterministicUID(path)}),
		mustNewElement(tag.ImplementationClassUID, []string{util.UIDRoot}),
		mustNewElement(tag.FileSetID, []string{fileSetID}),
		mustNewElement(tag.OffsetOfTheFirstDirectoryRecordOfTheRootDirectoryEntity, []int{0}),
		mustNewElement(tag.OffsetOfTheLastDirectoryRecordOfTheRootDirectoryEntity, []int{0}),
		mustNewElement(tag.FileSetConsistencyFlag, []int{0}),
	}}
	if len(items) > 0 {
		seq, err := dicom.NewElement(tag.DirectoryRecordSequence, items)
		if err != nil {
			return fmt.Errorf("create directory record sequence: %w", err)
		}
		ds.Elements = append(ds.Elements, seq)
	}

	if err := writeDatasetToFile(path, ds); err != nil {
		return fmt.Errorf("write DICOMDIR: %w", err)
	}
	if len(records) == 0 {
		return nil
	}
	if err := patchDICOMDIROffsets(path, records); err != nil {
		return fmt.Errorf("update DICOMDIR offsets: %w", err)
	}
	return nil
}

// recordLinks holds the offsets of one record's next sibling and first child.
type recordLinks struct {
	next       uint32
	firstChild uint32
}

// linkRecords computes sibling and child offsets from the record levels in
// depth-first order.
func linkRecords(levels []int, positions []int64) []recordLinks {
	links := make([]recordLinks, len(levels))
	var last [numLevels]int
	for i := range last {
		last[i] = -1
	}
	for i, lvl := range levels {
		if i > 0 && levels[i-1] == lvl-1 {
			links[i-1].firstChild = uint32(positions[i])
		}
		if j := last[lvl]; j >= 0 {
			links[j].next = uint32(positions[i])
		}
		last[lvl] = i
		for d := lvl + 1; d < numLevels; d++ {
			last[d] = -1
		}
	}
	return links
}

func patchDICOMDIROffsets(path string, records []directoryRecord) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read DICOMDIR: %w", err)
	}

	// Each record starts with an item tag (FFFE,E000); the header ends at
	// byte 132 (preamble plus magic).
	itemTag := []byte{0xFE, 0xFF, 0x00, 0xE0}
	var positions []int64
	for i := 132; i < len(data)-4; i++ {
		if bytes.Equal(data[i:i+4], itemTag) {
			positions = append(positions, int64(i))
		}
	}
	if len(positions) != len(records) {
		return fmt.Errorf("found %d directory records, expected %d", len(positions), len(records))
	}

	levels := make([]int, len(records))
	lastRoot := positions[0]
	for i, r := range records {
		levels[i] = r.level
		if r.level == levelPatient {
			lastRoot = positions[i]
		}
	}
	links := linkRecords(levels, positions)

	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("open file for update: %w", err)
	}
	defer func() { _ = f.Close() }()

	// Explicit VR UL values start 8 bytes after the tag.
	patch := func(from, limit int, group, element uint16, value uint32) error {
		pos := findTag(data, from, limit, group, element)
		if pos < 0 {
			return fmt.Errorf("tag (%04X,%04X) not found after byte %d", group, element, from)
		}
		if _, err := f.Seek(int64(pos+8), io.SeekStart); err != nil {
			return err
		}
		return binary.Write(f, binary.LittleEndian, value)
	}

	if err := patch(0, len(data), 0x0004, 0x1200, uint32(positions[0])); err != nil {
		return err
	}
	if err := patch(0, len(data), 0x0004, 0x1202, uint32(lastRoot)); err != nil {
		return err
	}
	for i, pos := range positions {
		if err := patch(int(pos), 500, 0x0004, 0x1400, links[i].next); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		if err := patch(int(pos), 500, 0x0004, 0x1420, links[i].firstChild); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return nil
}

// findTag returns the position of a tag within limit bytes after from, or -1.
func findTag(data []byte, from, limit int, group, element uint16) int {
	tagBytes := make([]byte, 4)
	binary.LittleEndian.PutUint16(tagBytes[0:2], group)
	binary.LittleEndian.PutUint16(tagBytes[2:4], element)
	for i := from; i < len(data)-4 && i < from+limit; i++ {
		if bytes.Equal(data[i:i+4], tagBytes) {
			return i
		}
	}
	return -1
}
