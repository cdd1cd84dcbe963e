// Package importer runs one import pass: it finds candidate files, extracts
// slice records in parallel and folds them into a sealed grouping index.
package importer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mrsinham/dicomgroup/internal/dicom"
	"github.com/mrsinham/dicomgroup/internal/grouping"
	"github.com/rs/zerolog"
)

// Skip reasons.
const (
	ReasonNotDICOM  = "not a DICOM file"
	ReasonDICOMDIR  = "DICOMDIR"
	ReasonReadError = "read error"
)

// Options configures an import pass.
type Options struct {
	Recursive bool
	Workers   int // 0 = auto-detect based on CPU cores
	Grouping  grouping.Options

	// Logger receives per-file and summary events. Nil discards them.
	Logger           *zerolog.Logger
	ProgressCallback func(current, total int)
}

// Skipped is a file left out of the index.
type Skipped struct {
	Path   string `json:"path" yaml:"path"`
	Reason string `json:"reason" yaml:"reason"`
	Err    string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Result is the outcome of one import pass.
type Result struct {
	RunID    string
	Root     string
	Index    *grouping.Index
	Files    int
	Skipped  []Skipped
	Duration time.Duration
}

// extraction is the outcome for the file at index i of the sorted list.
type extraction struct {
	index int
	rec   grouping.SliceRecord
	err   error
}

// Import scans root and returns a sealed index of every readable slice.
// Records are folded in sorted path order, so the index does not depend on
// worker scheduling. Unreadable files are reported in Result.Skipped. A
// cancelled context aborts the pass and returns the context error.
func Import(ctx context.Context, root string, opts Options) (*Result, error) {
	start := time.Now()
	runID := uuid.NewString()

	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	log = log.With().Str("run_id", runID).Str("root", root).Logger()

	files, err := dicom.FindFiles(root, opts.Recursive)
	if err != nil {
		return nil, fmt.Errorf("find files: %w", err)
	}
	log.Debug().Int("candidates", len(files)).Msg("import started")

	results, err := extract(ctx, files, opts)
	if err != nil {
		return nil, err
	}

	gopts := opts.Grouping
	if gopts.Logger == nil {
		gopts.Logger = &log
	}
	idx := grouping.NewIndex(gopts)
	res := &Result{RunID: runID, Root: root, Index: idx}

	for i, r := range results {
		if r.err != nil {
			skip := Skipped{Path: files[i], Reason: skipReason(r.err), Err: r.err.Error()}
			res.Skipped = append(res.Skipped, skip)
			log.Debug().Str("path", skip.Path).Str("reason", skip.Reason).Msg("file skipped")
			continue
		}
		idx.AddRecord(r.rec)
		res.Files++
	}
	idx.Seal()
	res.Duration = time.Since(start)

	stats := idx.Stats()
	log.Info().
		Int("files", res.Files).
		Int("skipped", len(res.Skipped)).
		Int("patients", stats.Patients).
		Int("groups", stats.Groups).
		Int("collisions", stats.Collisions).
		Dur("duration", res.Duration).
		Msg("import finished")
	return res, nil
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, dicom.ErrDICOMDIR):
		return ReasonDICOMDIR
	case errors.Is(err, dicom.ErrNotDICOM):
		return ReasonNotDICOM
	default:
		return ReasonReadError
	}
}

// extract reads every file with a pool of workers and returns the outcomes
// in input order.
func extract(ctx context.Context, files []string, opts Options) ([]extraction, error) {
	results := make([]extraction, len(files))
	if len(files) == 0 {
		return results, ctx.Err()
	}

	numWorkers := opts.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if numWorkers > len(files) {
		numWorkers = len(files)
	}

	taskChan := make(chan int)
	resultChan := make(chan extraction, numWorkers)

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range taskChan {
				rec, err := dicom.ReadSliceRecord(files[i])
				resultChan <- extraction{index: i, rec: rec, err: err}
			}
		}()
	}

	go func() {
		defer close(taskChan)
		for i := range files {
			select {
			case taskChan <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	completed := 0
	for r := range resultChan {
		results[r.index] = r
		completed++
		if opts.ProgressCallback != nil {
			opts.ProgressCallback(completed, len(files))
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("import cancelled: %w", err)
	}
	return results, nil
}
