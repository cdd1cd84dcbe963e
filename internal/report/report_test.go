package report

import (
	"bytes"
	"encoding/json"
	"math"
	"testing"

	"github.com/mrsinham/dicomgroup/internal/grouping"
	"github.com/mrsinham/dicomgroup/internal/importer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func axial(name, file string, number int, z float64) grouping.SliceRecord {
	return grouping.SliceRecord{
		PatientName:       name,
		PatientID:         "ID-" + name,
		StudyID:           "STD1",
		SeriesNumber:      2,
		SeriesDescription: "T1 AXIAL",
		Orientation:       grouping.Axial,
		Position:          grouping.Position{0, 0, z},
		SliceNumber:       number,
		FrameCount:        1,
		File:              file,
	}
}

func sampleIndex() *grouping.Index {
	idx := grouping.NewIndex(grouping.DefaultOptions())
	idx.AddRecord(axial("ZED", "/data/z3", 3, 10))
	idx.AddRecord(axial("ZED", "/data/z1", 1, 0))
	idx.AddRecord(axial("ZED", "/data/z2", 2, 5))
	idx.AddRecord(axial("ZED", "/data/z1dup", 4, 0))
	idx.AddRecord(axial("AMY", "/data/a1", 1, 0))
	idx.Seal()
	return idx
}

func TestBuild(t *testing.T) {
	r := Build(sampleIndex())

	require.Len(t, r.Patients, 2)
	assert.Equal(t, "AMY", r.Patients[0].Name)
	assert.Equal(t, "ZED", r.Patients[1].Name)
	assert.Equal(t, 4, r.Patients[1].NumSlices)
	assert.Equal(t, 4, r.Patients[1].NumFiles)
	assert.Equal(t, grouping.Stats{Records: 5, Patients: 2, Groups: 3, Collisions: 1}, r.Stats)

	zed := r.Patients[1]
	require.Len(t, zed.Groups, 2)
	primary := zed.Groups[0]
	assert.Equal(t, 0, primary.CollisionIndex)
	assert.Equal(t, []string{"/data/z1", "/data/z2", "/data/z3"}, primary.Files)
	assert.Equal(t, 5.0, primary.ZSpacing)
	require.NotNil(t, primary.Spacing)
	assert.InDelta(t, 5.0, primary.Spacing.Mean, 1e-12)
	assert.InDelta(t, 0.0, primary.Spacing.StdDev, 1e-12)

	split := zed.Groups[1]
	assert.Equal(t, 1, split.CollisionIndex)
	assert.Equal(t, []string{"/data/z1dup"}, split.Files)
	assert.Nil(t, split.Spacing)
}

// Slice counts are frame counts; file counts are one per listed file.
func TestBuild_MultiFrameCounts(t *testing.T) {
	idx := grouping.NewIndex(grouping.DefaultOptions())
	multi := axial("ENH", "/data/enhanced", 1, 0)
	multi.FrameCount = 30
	idx.AddRecord(multi)
	idx.AddRecord(axial("ENH", "/data/single", 2, 5))
	idx.Seal()

	r := Build(idx)
	require.Len(t, r.Patients, 1)
	p := r.Patients[0]
	assert.Equal(t, 31, p.NumSlices)
	assert.Equal(t, 2, p.NumFiles)
	require.Len(t, p.Groups, 1)
	assert.Equal(t, 31, p.Groups[0].NumSlices)
	assert.Len(t, p.Groups[0].Files, 2)
}

func TestSpacingIrregular(t *testing.T) {
	s := spacingOf([]grouping.SliceRecord{
		axial("P", "a", 1, 0),
		axial("P", "b", 2, 1),
		axial("P", "c", 3, 4),
	})
	require.NotNil(t, s)
	assert.InDelta(t, 2.0, s.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt2, s.StdDev, 1e-12)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 3.0, s.Max)

	two := spacingOf([]grouping.SliceRecord{axial("P", "a", 1, 0), axial("P", "b", 2, 2)})
	assert.Equal(t, &Spacing{Mean: 2, Min: 2, Max: 2}, two)
}

func TestRender(t *testing.T) {
	r := FromImport(&importer.Result{
		RunID:   "run-1",
		Root:    "/data",
		Index:   sampleIndex(),
		Skipped: []importer.Skipped{{Path: "/data/readme.dcm", Reason: importer.ReasonNotDICOM}},
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Render(&buf, r, FormatJSON, false))
		var decoded Report
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, "run-1", decoded.RunID)
		assert.Len(t, decoded.Patients, 2)
		assert.Len(t, decoded.Skipped, 1)
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Render(&buf, r, FormatYAML, false))
		var decoded map[string]interface{}
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, "run-1", decoded["run_id"])
		assert.Contains(t, buf.String(), "collision_index: 1")
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Render(&buf, r, FormatText, true))
		out := buf.String()
		assert.Contains(t, out, "AMY")
		assert.Contains(t, out, "T1 AXIAL")
		assert.Contains(t, out, "z1dup")
		assert.Contains(t, out, "Skipped 1 files")
	})

	t.Run("unknown", func(t *testing.T) {
		assert.Error(t, Render(&bytes.Buffer{}, r, "xml", false))
	})
}
