package dicom

import (
	"fmt"
	"hash/fnv"
	"math"
	randv2 "math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/mrsinham/dicomgroup/internal/dicom/anomalies"
	"github.com/mrsinham/dicomgroup/internal/dicom/modalities"
	"github.com/mrsinham/dicomgroup/internal/grouping"
	"github.com/mrsinham/dicomgroup/internal/util"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"
	"gonum.org/v1/gonum/spatial/r3"
)

const explicitVRLittleEndian = "1.2.840.10008.1.2.1"

// GeneratorOptions contains all parameters needed to generate synthetic series.
type GeneratorOptions struct {
	OutputDir   string
	NumImages   int   // Images per series before anomalies are applied
	NumSeries   int   // Series per patient (0 = one per modality template)
	NumPatients int   // Patients, one study each (default: 1)
	Seed        int64 // 0 = derived from OutputDir
	Workers     int   // Parallel workers (0 = auto-detect based on CPU cores)

	Modality     modalities.Modality
	Manufacturer string // Empty = random scanner of the modality

	// Orientations overrides the template planes, one series per entry.
	Orientations []grouping.Orientation

	Width  int // Default 64
	Height int // Default 64

	Anomalies anomalies.Config

	// Output control
	Quiet            bool
	ProgressCallback func(current, total int)
}

// GeneratedFile describes one written file.
type GeneratedFile struct {
	Path              string
	PatientName       string
	PatientID         string
	StudyID           string
	SeriesNumber      int
	SeriesDescription string
	Orientation       grouping.Orientation
	InstanceNumber    int
	Position          grouping.Position
	PositionOmitted   bool
	Derived           bool
	Manufacturer      string
	SOPInstanceUID    string
}

// imageTask contains all data needed to write a single image
type imageTask struct {
	index       int
	width       int
	height      int
	filePath    string
	label       string
	pixelSeed   uint64
	metadata    []*dicom.Element
	pixelConfig modalities.PixelConfig
}

// writeDatasetToFile writes a DICOM dataset to a file
func writeDatasetToFile(filename string, ds dicom.Dataset, opts ...dicom.WriteOption) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	return dicom.Write(f, ds, opts...)
}

// mustNewElement creates a new DICOM element, panicking on error.
func mustNewElement(t tag.Tag, value interface{}) *dicom.Element {
	elem, err := dicom.NewElement(t, value)
	if err != nil {
		panic(fmt.Sprintf("failed to create element %v: %v", t, err))
	}
	return elem
}

func formatDS(values ...float64) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = fmt.Sprintf("%.6f", v)
	}
	return out
}

// writeImage renders the pixel data of a task and writes the file.
func writeImage(task imageTask) error {
	width, height := task.width, task.height
	cfg := task.pixelConfig
	rng := randv2.New(randv2.NewPCG(task.pixelSeed, task.pixelSeed))

	nativeFrame := frame.NewNativeFrame[uint16](16, height, width, width*height, 1)
	valueRange := float64(cfg.MaxValue - cfg.MinValue)
	centerX, centerY := float64(width)/2, float64(height)/2
	maxDist := math.Hypot(centerX, centerY)
	maxStored := float64(int(1)<<cfg.BitsStored - 1)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			dist := math.Hypot(float64(x)-centerX, float64(y)-centerY) / maxDist
			intensity := float64(cfg.BaseValue) + (1.0-dist)*valueRange*0.3 + (rng.Float64()-0.5)*valueRange*0.2
			nativeFrame.RawData[y*width+x] = uint16(math.Max(0, math.Min(maxStored, intensity)))
		}
	}
	drawLabel(nativeFrame.RawData, width, height, task.label, 0, uint16(maxStored))

	elements := make([]*dicom.Element, len(task.metadata)+1)
	copy(elements, task.metadata)
	elements[len(task.metadata)] = mustNewElement(tag.PixelData, dicom.PixelDataInfo{
		Frames: []*frame.Frame{{Encapsulated: false, NativeData: nativeFrame}},
	})

	return writeDatasetToFile(task.filePath, dicom.Dataset{Elements: elements})
}

// stackGeometry returns direction cosines and the ascending stack direction.
func stackGeometry(o grouping.Orientation) ([6]float64, r3.Vec) {
	cosines := CosinesFor(o)
	if n, ok := (grouping.SliceRecord{ImageOrientation: cosines}).Normal(); ok {
		return cosines, grouping.AscendingNormal(n)
	}
	return cosines, o.Normal()
}

// GenerateSeries writes synthetic series into OutputDir and returns the
// files in write order. Every patient gets one study holding one series per
// template (or per requested orientation).
func GenerateSeries(opts GeneratorOptions) ([]GeneratedFile, error) {
	if opts.NumImages <= 0 {
		return nil, fmt.Errorf("number of images must be > 0, got %d", opts.NumImages)
	}
	if opts.NumPatients <= 0 {
		opts.NumPatients = 1
	}
	if opts.Width <= 0 {
		opts.Width = 64
	}
	if opts.Height <= 0 {
		opts.Height = 64
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	seed := opts.Seed
	if seed == 0 {
		h := fnv.New64a()
		_, _ = h.Write([]byte(opts.OutputDir))
		seed = int64(h.Sum64())
	}
	if !opts.Quiet {
		fmt.Printf("Using seed: %d\n", seed)
	}
	rng := randv2.New(randv2.NewPCG(uint64(seed), uint64(seed)))

	modalityGen := modalities.GetGenerator(opts.Modality)
	modalityStr := string(modalityGen.Modality())
	pixelConfig := modalityGen.PixelConfig()

	templates := modalityGen.SeriesTemplates()
	if len(opts.Orientations) > 0 {
		templates = make([]modalities.SeriesTemplate, len(opts.Orientations))
		for i, o := range opts.Orientations {
			templates[i] = modalities.SeriesTemplate{
				Description: fmt.Sprintf("%s %s", modalityStr, o),
				Orientation: o,
			}
		}
	} else if opts.NumSeries > 0 && opts.NumSeries < len(templates) {
		templates = templates[:opts.NumSeries]
	}

	var applicator *anomalies.Applicator
	if opts.Anomalies.IsEnabled() {
		applicator = anomalies.NewApplicator(opts.Anomalies, rng)
	}

	var tasks []imageTask
	var files []GeneratedFile

	// Phase 1: plan every image sequentially so output is reproducible.
	for patientNum := 1; patientNum <= opts.NumPatients; patientNum++ {
		sex := []string{"M", "F"}[rng.IntN(2)]
		patientName := util.GeneratePatientName(sex, rng)
		patientID := fmt.Sprintf("PID%06d", rng.IntN(900000)+100000)
		birthDate := fmt.Sprintf("%04d%02d%02d", rng.IntN(51)+1950, rng.IntN(12)+1, rng.IntN(28)+1)
		studyID := fmt.Sprintf("STD%04d", rng.IntN(9000)+1000)
		studyDate := fmt.Sprintf("%04d%02d%02d", rng.IntN(5)+2020, rng.IntN(12)+1, rng.IntN(28)+1)
		studyUID := util.GenerateDeterministicUID(fmt.Sprintf("%s_%d_patient_%d_study", opts.OutputDir, seed, patientNum))
		frameOfReferenceUID := util.GenerateDeterministicUID(fmt.Sprintf("%s_%d_patient_%d_frame", opts.OutputDir, seed, patientNum))

		scanner := modalities.PickScanner(modalityGen, opts.Manufacturer, rng)
		params := modalityGen.GenerateSeriesParams(scanner, rng)

		if !opts.Quiet {
			fmt.Printf("Patient %d/%d: %s (ID: %s), study %s, scanner %s %s\n",
				patientNum, opts.NumPatients, patientName, patientID, studyID, scanner.Manufacturer, scanner.Model)
		}

		for seriesIdx, tmpl := range templates {
			seriesNumber := seriesIdx + 1
			seriesUID := util.GenerateDeterministicUID(fmt.Sprintf("%s_%d_patient_%d_series_%d", opts.OutputDir, seed, patientNum, seriesNumber))
			cosines, normal := stackGeometry(tmpl.Orientation)
			origin := r3.Vec{X: -100, Y: -100, Z: -100}

			plan := make([]anomalies.Slice, opts.NumImages)
			for i := range plan {
				plan[i] = anomalies.Slice{
					InstanceNumber: i + 1,
					Position:       r3.Add(origin, r3.Scale(float64(i)*params.SpacingBetweenSlices, normal)),
					ImageType:      anomalies.OriginalImageType,
					FileRank:       i,
				}
			}
			if applicator != nil {
				plan = applicator.Apply(plan, normal)
			}
			sort.SliceStable(plan, func(i, j int) bool { return plan[i].FileRank < plan[j].FileRank })

			if !opts.Quiet {
				fmt.Printf("  Series %d: %s (%d images, %s)\n", seriesNumber, tmpl.Description, len(plan), tmpl.Orientation)
			}

			for _, s := range plan {
				index := len(tasks) + 1
				sopInstanceUID := util.GenerateDeterministicUID(fmt.Sprintf("%s_%d_image_%d", opts.OutputDir, seed, index))
				position := grouping.Position{s.Position.X, s.Position.Y, s.Position.Z}
				derived := len(s.ImageType) > 0 && s.ImageType[0] == "DERIVED"

				metadata := []*dicom.Element{
					mustNewElement(tag.TransferSyntaxUID, []string{explicitVRLittleEndian}),
					mustNewElement(tag.MediaStorageSOPClassUID, []string{modalityGen.SOPClassUID()}),
					mustNewElement(tag.MediaStorageSOPInstanceUID, []string{sopInstanceUID}),
					mustNewElement(tag.ImageType, s.ImageType),
					mustNewElement(tag.SOPClassUID, []string{modalityGen.SOPClassUID()}),
					mustNewElement(tag.SOPInstanceUID, []string{sopInstanceUID}),
					mustNewElement(tag.StudyDate, []string{studyDate}),
					mustNewElement(tag.Modality, []string{modalityStr}),
					mustNewElement(tag.Manufacturer, []string{scanner.Manufacturer}),
					mustNewElement(tag.StudyDescription, []string{fmt.Sprintf("%s %s", modalityStr, "STUDY")}),
					mustNewElement(tag.SeriesDescription, []string{tmpl.Description}),
					mustNewElement(tag.ManufacturerModelName, []string{scanner.Model}),
					mustNewElement(tag.PatientName, []string{patientName}),
					mustNewElement(tag.PatientID, []string{patientID}),
					mustNewElement(tag.PatientBirthDate, []string{birthDate}),
					mustNewElement(tag.PatientSex, []string{sex}),
					mustNewElement(tag.SliceThickness, formatDS(params.SliceThickness)),
					mustNewElement(tag.SpacingBetweenSlices, formatDS(params.SpacingBetweenSlices)),
					mustNewElement(tag.StudyInstanceUID, []string{studyUID}),
					mustNewElement(tag.SeriesInstanceUID, []string{seriesUID}),
					mustNewElement(tag.StudyID, []string{studyID}),
					mustNewElement(tag.SeriesNumber, []string{fmt.Sprintf("%d", seriesNumber)}),
					mustNewElement(tag.InstanceNumber, []string{fmt.Sprintf("%d", s.InstanceNumber)}),
					mustNewElement(tag.FrameOfReferenceUID, []string{frameOfReferenceUID}),
					mustNewElement(tag.SamplesPerPixel, []int{1}),
					mustNewElement(tag.PhotometricInterpretation, []string{"MONOCHROME2"}),
					mustNewElement(tag.Rows, []int{opts.Height}),
					mustNewElement(tag.Columns, []int{opts.Width}),
					mustNewElement(tag.PixelSpacing, formatDS(params.PixelSpacing, params.PixelSpacing)),
					mustNewElement(tag.BitsAllocated, []int{int(pixelConfig.BitsAllocated)}),
					mustNewElement(tag.BitsStored, []int{int(pixelConfig.BitsStored)}),
					mustNewElement(tag.HighBit, []int{int(pixelConfig.HighBit)}),
					mustNewElement(tag.PixelRepresentation, []int{int(pixelConfig.PixelRepresentation)}),
				}
				if !s.OmitPosition {
					metadata = append(metadata, mustNewElement(tag.ImagePositionPatient, formatDS(position[0], position[1], position[2])))
				}
				if cosines != ([6]float64{}) {
					metadata = append(metadata, mustNewElement(tag.ImageOrientationPatient, formatDS(cosines[:]...)))
				}

				ds := &dicom.Dataset{Elements: metadata}
				if err := modalityGen.AppendModalityElements(ds, params); err != nil {
					return nil, fmt.Errorf("add modality elements for series %d, instance %d: %w", seriesNumber, s.InstanceNumber, err)
				}
				sortElements(ds.Elements)

				pixelSeedHash := fnv.New64a()
				_, _ = fmt.Fprintf(pixelSeedHash, "%d_pixel_%d", seed, index)

				filePath := filepath.Join(opts.OutputDir, fmt.Sprintf("IMG%05d.dcm", index))
				tasks = append(tasks, imageTask{
					index:       index,
					width:       opts.Width,
					height:      opts.Height,
					filePath:    filePath,
					label:       fmt.Sprintf("%d", s.InstanceNumber),
					pixelSeed:   pixelSeedHash.Sum64(),
					metadata:    ds.Elements,
					pixelConfig: pixelConfig,
				})
				if s.OmitPosition {
					position = DefaultPosition
				}
				files = append(files, GeneratedFile{
					Path:              filePath,
					PatientName:       patientName,
					PatientID:         patientID,
					StudyID:           studyID,
					SeriesNumber:      seriesNumber,
					SeriesDescription: tmpl.Description,
					Orientation:       tmpl.Orientation,
					InstanceNumber:    s.InstanceNumber,
					Position:          position,
					PositionOmitted:   s.OmitPosition,
					Derived:           derived,
					Manufacturer:      scanner.Manufacturer,
					SOPInstanceUID:    sopInstanceUID,
				})
			}
		}
	}

	if err := runImageTasks(tasks, opts); err != nil {
		return nil, err
	}

	if !opts.Quiet {
		fmt.Printf("\n✓ %d DICOM files created in: %s/\n", len(files), opts.OutputDir)
	}
	return files, nil
}

// sortElements orders elements by tag, as the file format requires.
func sortElements(elements []*dicom.Element) {
	sort.SliceStable(elements, func(i, j int) bool {
		if elements[i].Tag.Group != elements[j].Tag.Group {
			return elements[i].Tag.Group < elements[j].Tag.Group
		}
		return elements[i].Tag.Element < elements[j].Tag.Element
	})
}

// runImageTasks writes every image with a pool of workers.
func runImageTasks(tasks []imageTask, opts GeneratorOptions) error {
	numWorkers := opts.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if numWorkers > len(tasks) {
		numWorkers = len(tasks)
	}
	if numWorkers == 0 {
		return nil
	}

	if !opts.Quiet {
		fmt.Printf("\nGenerating images with %d parallel workers...\n", numWorkers)
	}

	type result struct {
		index int
		err   error
	}
	taskChan := make(chan imageTask, len(tasks))
	resultChan := make(chan result, len(tasks))

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range taskChan {
				resultChan <- result{task.index, writeImage(task)}
			}
		}()
	}

	for _, task := range tasks {
		taskChan <- task
	}
	close(taskChan)

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	completed := 0
	var firstErr error
	for r := range resultChan {
		if r.err != nil && firstErr == nil {
			firstErr = fmt.Errorf("generate image %d: %w", r.index, r.err)
		}
		completed++
		if opts.ProgressCallback != nil {
			opts.ProgressCallback(completed, len(tasks))
		}
		if !opts.Quiet && (completed%10 == 0 || completed == len(tasks)) {
			fmt.Printf("  Progress: %d/%d (%.0f%%)\n", completed, len(tasks), float64(completed)/float64(len(tasks))*100)
		}
	}
	return firstErr
}
