package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/mrsinham/dicomgroup/internal/grouping"
	"github.com/mrsinham/dicomgroup/internal/report"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(name, file string, number int, z float64) grouping.SliceRecord {
	return grouping.SliceRecord{
		PatientName:       name,
		PatientID:         "ID-" + name,
		StudyID:           "STD1",
		SeriesNumber:      1,
		SeriesDescription: "T1 AXIAL",
		Orientation:       grouping.Axial,
		Position:          grouping.Position{0, 0, z},
		SliceNumber:       number,
		File:              file,
	}
}

func newTestServer(t *testing.T) (*Server, *bytes.Buffer) {
	t.Helper()
	idx := grouping.NewIndex(grouping.DefaultOptions())
	idx.AddRecord(record("ZED", "z2", 2, 5))
	idx.AddRecord(record("ZED", "z1", 1, 0))
	idx.AddRecord(record("AMY", "a1", 1, 0))
	idx.Seal()

	var buf bytes.Buffer
	return New(report.Build(idx), zerolog.New(&buf)), &buf
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, logs := newTestServer(t)
	rec := get(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
	assert.Contains(t, logs.String(), `"path":"/healthz"`)
}

func TestListPatients(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s, "/patients")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []PatientSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "AMY", got[0].Name)
	assert.Equal(t, PatientSummary{Index: 1, Name: "ZED", ID: "ID-ZED", NumSlices: 2, NumFiles: 2, NumGroups: 1}, got[1])
}

func TestListGroups(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s, "/patients/1/groups")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []report.Group
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "T1 AXIAL", got[0].Title)
	assert.Equal(t, 5.0, got[0].ZSpacing)
}

func TestGroupFiles(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s, "/groups/1/0/files")
	require.Equal(t, http.StatusOK, rec.Code)

	var got GroupFiles
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []string{"z1", "z2"}, got.Files)
}

func TestErrors(t *testing.T) {
	s, logs := newTestServer(t)
	tests := []struct {
		path string
		code int
	}{
		{"/patients/abc/groups", http.StatusBadRequest},
		{"/patients/7/groups", http.StatusNotFound},
		{"/groups/0/x/files", http.StatusBadRequest},
		{"/groups/0/3/files", http.StatusNotFound},
		{"/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.code, get(t, s, tt.path).Code)
		})
	}
	assert.Contains(t, logs.String(), `"status":404`)
}

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	e.Use(Recovery(zerolog.New(&buf)))
	e.GET("/panic", func(c echo.Context) error { panic("boom") })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, buf.String(), "panic recovered")
}

func TestRequestIDPreserved(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "my-custom-id")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "my-custom-id", rec.Header().Get(RequestIDHeader))
}
