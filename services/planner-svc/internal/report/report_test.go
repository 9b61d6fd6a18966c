package report

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"energia/pkg/apperror"
	"energia/pkg/config"
	"energia/services/planner-svc/internal/repository"
)

func testRun() *repository.Run {
	obj := 125.5
	return &repository.Run{
		ID:             "5f0c2a4e-8d7b-4c1a-9e3f-2b6d8a1c0e47",
		ScenarioName:   "seasonal",
		ScenarioHash:   "abc123",
		Objective:      "cost",
		Status:         "optimal",
		ObjectiveValue: &obj,
		Solver:         "gonum-simplex",
		Nodes:          3,
		Variables:      120,
		Binaries:       4,
		Constraints:    96,
		CompileMs:      2.5,
		SolveMs:        14.2,
		CreatedAt:      time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
		Values: []repository.Value{
			{Category: "Cap_P", Key: "Cap_P[farm,pv]", Value: 25},
			{Category: "P", Key: "P[farm,pv](0,1)", Value: 10},
			{Category: "P", Key: "P[farm,pv](1,1)", Value: 22.5},
			{Category: "P", Key: "P[farm,import](0,0)", Value: 1e-9},
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
		ok   bool
	}{
		{"", FormatXLSX, true},
		{"xlsx", FormatXLSX, true},
		{"Excel", FormatXLSX, true},
		{" PDF ", FormatPDF, true},
		{"csv", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if !tt.ok {
				assert.True(t, apperror.Is(err, apperror.CodeInvalidArgument))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, "application/pdf", FormatPDF.ContentType())
}

func TestGenerate_Excel(t *testing.T) {
	g := NewGenerator(config.ReportConfig{Tolerance: 1e-6, CompanyName: "Grid Co"})

	data, err := g.Generate(testRun(), FormatXLSX)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{sheetSummary, sheetValues, sheetCategories}, f.GetSheetList())

	rows, err := f.GetRows(sheetValues)
	require.NoError(t, err)
	require.Len(t, rows, 4, "header plus values above tolerance")
	assert.Equal(t, []string{"Category", "Variable", "Value"}, rows[0])
	assert.Equal(t, "Cap_P[farm,pv]", rows[1][1])

	cats, err := f.GetRows(sheetCategories)
	require.NoError(t, err)
	require.Len(t, cats, 3)
	assert.Equal(t, "P", cats[2][0])
	assert.Equal(t, "2", cats[2][1])
	assert.Equal(t, "32.5", cats[2][2])

	status, err := f.GetCellValue(sheetSummary, "B8")
	require.NoError(t, err)
	assert.Equal(t, "optimal", status)
}

func TestGenerate_ExcelMaxRows(t *testing.T) {
	run := testRun()
	run.Values = nil
	for i := range 25 {
		run.Values = append(run.Values, repository.Value{Category: "P", Key: fmt.Sprintf("P[a,b](%d)", i), Value: 1})
	}

	g := NewGenerator(config.ReportConfig{MaxRows: 10})
	data, err := g.Generate(run, FormatXLSX)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetValues)
	require.NoError(t, err)
	assert.Len(t, rows, 11)

	summary, err := f.GetRows(sheetSummary)
	require.NoError(t, err)
	var omitted string
	for _, r := range summary {
		if len(r) == 2 && r[0] == "Omitted Values" {
			omitted = r[1]
		}
	}
	assert.Equal(t, "15", omitted)
}

func TestGenerate_PDF(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.PDFConfig
	}{
		{"defaults", config.PDFConfig{}},
		{"landscape letter", config.PDFConfig{PageSize: "Letter", Orientation: "landscape", EnablePageNumbers: true}},
		{"a3 margins", config.PDFConfig{PageSize: "A3", MarginTop: 20, MarginLeft: 10, MarginRight: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGenerator(config.ReportConfig{PDF: tt.cfg})
			data, err := g.Generate(testRun(), FormatPDF)
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
		})
	}
}

func TestGenerate_PDFWithoutValues(t *testing.T) {
	run := testRun()
	run.Status = "infeasible"
	run.ObjectiveValue = nil
	run.Values = nil
	run.Message = "demand exceeds capacity"

	data, err := NewGenerator(config.ReportConfig{}).Generate(run, FormatPDF)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestGenerate_NilRun(t *testing.T) {
	_, err := NewGenerator(config.ReportConfig{}).Generate(nil, FormatPDF)
	assert.True(t, apperror.Is(err, apperror.CodeNilInput))
}

func TestSummarize(t *testing.T) {
	totals := summarize([]repository.Value{
		{Category: "S", Value: -2},
		{Category: "P", Value: 1},
		{Category: "S", Value: -5},
	})

	require.Len(t, totals, 2)
	assert.Equal(t, categoryTotal{Category: "P", Count: 1, Sum: 1, Max: 1}, totals[0])
	assert.Equal(t, categoryTotal{Category: "S", Count: 2, Sum: -7, Max: -2}, totals[1])
}
