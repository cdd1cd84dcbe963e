package importer

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mrsinham/dicomgroup/internal/dicom"
	"github.com/mrsinham/dicomgroup/internal/dicom/anomalies"
	"github.com/mrsinham/dicomgroup/internal/dicom/modalities"
	"github.com/mrsinham/dicomgroup/internal/grouping"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generate(t *testing.T, dir string, anomalyTypes ...anomalies.Type) []dicom.GeneratedFile {
	t.Helper()
	files, err := dicom.GenerateSeries(dicom.GeneratorOptions{
		OutputDir:    dir,
		NumImages:    6,
		Seed:         3,
		Width:        32,
		Height:       32,
		Modality:     modalities.MR,
		Orientations: []grouping.Orientation{grouping.Axial, grouping.Coronal},
		Anomalies:    anomalies.Config{Types: anomalyTypes},
		Quiet:        true,
	})
	require.NoError(t, err)
	return files
}

// orderedFiles flattens an index into per-group ordered file lists.
func orderedFiles(idx *grouping.Index) map[string][]string {
	out := make(map[string][]string)
	for _, p := range idx.PatientGroups() {
		for _, g := range p.Groups() {
			var names []string
			for _, s := range g.OrderedSlices() {
				names = append(names, filepath.Base(s.File))
			}
			out[g.Key().String()] = names
		}
	}
	return out
}

func TestImport(t *testing.T) {
	dir := t.TempDir()
	files := generate(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.dcm"), []byte("garbage"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "LEGACY01"), []byte("acr-nema"), 0644))

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	var progress int
	res, err := Import(context.Background(), dir, Options{
		Workers:          3,
		Grouping:         grouping.DefaultOptions(),
		Logger:           &logger,
		ProgressCallback: func(current, total int) { progress = current },
	})
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.True(t, res.Index.Sealed())
	assert.Equal(t, len(files), res.Files)
	assert.Equal(t, len(files)+2, progress)
	// Files without a DICM preamble are reported, not dropped.
	require.Len(t, res.Skipped, 2)
	assert.Equal(t, filepath.Join(dir, "LEGACY01"), res.Skipped[0].Path)
	assert.Equal(t, filepath.Join(dir, "broken.dcm"), res.Skipped[1].Path)
	for _, skip := range res.Skipped {
		assert.Equal(t, ReasonNotDICOM, skip.Reason)
	}

	stats := res.Index.Stats()
	assert.Equal(t, 1, stats.Patients)
	assert.Equal(t, 2, stats.Groups)
	assert.Contains(t, buf.String(), `"run_id":"`+res.RunID+`"`)
	assert.Contains(t, buf.String(), "import finished")
}

func TestImport_IndependentOfWorkerCount(t *testing.T) {
	dir := t.TempDir()
	generate(t, dir, anomalies.DuplicatePositions, anomalies.DerivedImages, anomalies.ShuffledFiles)

	var want map[string][]string
	for _, workers := range []int{1, 2, 8} {
		res, err := Import(context.Background(), dir, Options{Workers: workers, Grouping: grouping.DefaultOptions()})
		require.NoError(t, err)
		got := orderedFiles(res.Index)
		if want == nil {
			want = got
			continue
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("workers=%d changed the grouping (-want +got):\n%s", workers, diff)
		}
	}
	t.Logf("✓ %d groups identical across worker counts", len(want))
}

func TestImport_SkipsDICOMDIR(t *testing.T) {
	src := t.TempDir()
	generate(t, src)
	res, err := Import(context.Background(), src, Options{})
	require.NoError(t, err)

	out := t.TempDir()
	_, err = dicom.Organize(res.Index, out, true)
	require.NoError(t, err)

	// DICOMDIR is excluded by name, so also try it under another name.
	data, err := os.ReadFile(filepath.Join(out, "DICOMDIR"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(out, "index.dcm"), data, 0644))

	res2, err := Import(context.Background(), out, Options{Recursive: true})
	require.NoError(t, err)
	assert.Equal(t, res.Files, res2.Files)
	require.Len(t, res2.Skipped, 1)
	assert.Equal(t, ReasonDICOMDIR, res2.Skipped[0].Reason)
}

func TestImport_Cancelled(t *testing.T) {
	dir := t.TempDir()
	generate(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := Import(ctx, dir, Options{Workers: 1})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestImport_MissingRoot(t *testing.T) {
	_, err := Import(context.Background(), filepath.Join(t.TempDir(), "missing"), Options{})
	assert.Error(t, err)
}
