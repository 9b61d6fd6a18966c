package report

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"energia/services/planner-svc/internal/repository"
)

const (
	sheetSummary    = "Summary"
	sheetValues     = "Values"
	sheetCategories = "Categories"
)

func (g *Generator) excel(run *repository.Run) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(sheetSummary); err != nil {
		return nil, err
	}
	// Удаляем дефолтный лист
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, err
	}

	values, truncated := g.visibleValues(run)

	g.writeSummary(f, run, headerStyle, truncated)
	if err := writeValues(f, values, headerStyle); err != nil {
		return nil, err
	}
	if err := writeCategories(f, summarize(values), headerStyle); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (g *Generator) writeSummary(f *excelize.File, run *repository.Run, headerStyle, truncated int) {
	row := 1
	f.SetCellValue(sheetSummary, cellAddr("A", row), title(run))
	f.MergeCell(sheetSummary, cellAddr("A", row), cellAddr("B", row))
	row += 2

	f.SetCellValue(sheetSummary, cellAddr("A", row), "Run")
	f.SetCellStyle(sheetSummary, cellAddr("A", row), cellAddr("B", row), headerStyle)
	row++

	items := []summaryItem{
		{"Run ID", run.ID},
		{"Scenario", run.ScenarioName},
		{"Scenario Hash", run.ScenarioHash},
		{"Objective", run.Objective},
		{"Status", run.Status},
		{"Objective Value", objectiveText(run)},
		{"Solver", run.Solver},
		{"Branch Nodes", run.Nodes},
		{"Variables", run.Variables},
		{"Binaries", run.Binaries},
		{"Constraints", run.Constraints},
		{"Compile Time (ms)", run.CompileMs},
		{"Solve Time (ms)", run.SolveMs},
		{"Cached", run.Cached},
		{"Created", run.CreatedAt.Format("2006-01-02 15:04:05")},
	}
	if run.ObjectiveValue != nil {
		items[5].value = *run.ObjectiveValue
	}
	if run.Message != "" {
		items = append(items, summaryItem{"Message", run.Message})
	}
	if truncated > 0 {
		items = append(items, summaryItem{"Omitted Values", truncated})
	}
	if g.cfg.CompanyName != "" {
		items = append(items, summaryItem{"Prepared By", g.cfg.CompanyName})
	}

	for _, it := range items {
		f.SetCellValue(sheetSummary, cellAddr("A", row), it.label)
		f.SetCellValue(sheetSummary, cellAddr("B", row), it.value)
		row++
	}
	f.SetColWidth(sheetSummary, "A", "A", 22)
	f.SetColWidth(sheetSummary, "B", "B", 40)
}

type summaryItem struct {
	label string
	value any
}

func writeValues(f *excelize.File, values []repository.Value, headerStyle int) error {
	if _, err := f.NewSheet(sheetValues); err != nil {
		return err
	}
	headers := []string{"Category", "Variable", "Value"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetValues, cell, h)
	}
	f.SetCellStyle(sheetValues, "A1", "C1", headerStyle)

	for i, v := range values {
		row := i + 2
		f.SetCellValue(sheetValues, cellAddr("A", row), v.Category)
		f.SetCellValue(sheetValues, cellAddr("B", row), v.Key)
		f.SetCellValue(sheetValues, cellAddr("C", row), v.Value)
	}
	f.SetColWidth(sheetValues, "B", "B", 48)
	return f.AutoFilter(sheetValues, fmt.Sprintf("A1:C%d", len(values)+1), nil)
}

func writeCategories(f *excelize.File, totals []categoryTotal, headerStyle int) error {
	if _, err := f.NewSheet(sheetCategories); err != nil {
		return err
	}
	headers := []string{"Category", "Nonzero", "Sum", "Max"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetCategories, cell, h)
	}
	f.SetCellStyle(sheetCategories, "A1", "D1", headerStyle)

	for i, t := range totals {
		row := i + 2
		f.SetCellValue(sheetCategories, cellAddr("A", row), t.Category)
		f.SetCellValue(sheetCategories, cellAddr("B", row), t.Count)
		f.SetCellValue(sheetCategories, cellAddr("C", row), t.Sum)
		f.SetCellValue(sheetCategories, cellAddr("D", row), t.Max)
	}
	return nil
}

func cellAddr(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
