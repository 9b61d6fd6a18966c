package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	mconfig "github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/border"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/orientation"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/core/entity"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"energia/pkg/config"
	"energia/services/planner-svc/internal/repository"
)

// pdfMaxRows в PDF попадает только начало таблицы значений
const pdfMaxRows = 40

var (
	primaryColor   = &props.Color{Red: 52, Green: 152, Blue: 219}  // #3498db
	headerBgColor  = &props.Color{Red: 44, Green: 62, Blue: 80}    // #2c3e50
	successColor   = &props.Color{Red: 39, Green: 174, Blue: 96}   // #27ae60
	dangerColor    = &props.Color{Red: 231, Green: 76, Blue: 60}   // #e74c3c
	lightGrayColor = &props.Color{Red: 236, Green: 240, Blue: 241} // #ecf0f1
	darkGrayColor  = &props.Color{Red: 127, Green: 140, Blue: 141} // #7f8c8d

	titleStyle = props.Text{
		Size:  20,
		Style: fontstyle.Bold,
		Align: align.Center,
		Color: headerBgColor,
	}

	h2Style = props.Text{
		Size:  14,
		Style: fontstyle.Bold,
		Color: headerBgColor,
		Top:   4,
	}

	normalStyle = props.Text{Size: 10}

	boldStyle = props.Text{
		Size:  10,
		Style: fontstyle.Bold,
	}

	smallStyle = props.Text{
		Size:  8,
		Color: darkGrayColor,
	}

	metricLabelStyle = props.Text{
		Size:  9,
		Align: align.Center,
		Color: darkGrayColor,
	}

	tableHeaderStyle = &props.Cell{BackgroundColor: primaryColor}

	tableHeaderTextStyle = props.Text{
		Size:  9,
		Style: fontstyle.Bold,
		Color: &props.Color{Red: 255, Green: 255, Blue: 255},
		Align: align.Center,
	}

	tableCellStyle = &props.Cell{
		BorderType:  border.Bottom,
		BorderColor: lightGrayColor,
	}

	tableCellTextStyle = props.Text{
		Size:  9,
		Align: align.Center,
	}
)

func (g *Generator) pdf(run *repository.Run) ([]byte, error) {
	m := maroto.New(pageConfig(g.cfg.PDF))

	g.addHeader(m, run)
	addMetrics(m, run)

	values, truncated := g.visibleValues(run)
	if totals := summarize(values); len(totals) > 0 {
		addSection(m, "Variables by Category")
		addCategoryTable(m, totals)
	}
	if len(values) > 0 {
		addSection(m, "Variable Values")
		addValueTable(m, values, truncated)
	}

	m.AddRow(10)
	m.AddRow(6, text.NewCol(12,
		fmt.Sprintf("Generated %s", time.Now().UTC().Format("2006-01-02 15:04:05 MST")),
		props.Text{Size: 8, Color: darkGrayColor, Align: align.Right}))

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return doc.GetBytes(), nil
}

func pageConfig(cfg config.PDFConfig) *entity.Config {
	b := mconfig.NewBuilder().
		WithPageSize(pageSize(cfg.PageSize)).
		WithOrientation(pageOrientation(cfg.Orientation)).
		WithLeftMargin(marginOr(cfg.MarginLeft, 15)).
		WithTopMargin(marginOr(cfg.MarginTop, 15)).
		WithRightMargin(marginOr(cfg.MarginRight, 15))
	if cfg.EnablePageNumbers {
		b = b.WithPageNumber()
	}
	return b.Build()
}

func pageSize(s string) pagesize.Type {
	switch strings.ToUpper(s) {
	case "LETTER":
		return pagesize.Letter
	case "LEGAL":
		return pagesize.Legal
	case "A3":
		return pagesize.A3
	default:
		return pagesize.A4
	}
}

func pageOrientation(s string) orientation.Type {
	if strings.EqualFold(s, "landscape") {
		return orientation.Horizontal
	}
	return orientation.Vertical
}

func marginOr(v, def float64) float64 {
	if v > 0 {
		return v
	}
	return def
}

func (g *Generator) addHeader(m core.Maroto, run *repository.Run) {
	m.AddRow(14, text.NewCol(12, title(run), titleStyle))
	m.AddRow(5, line.NewCol(12))

	left := fmt.Sprintf("Run %s", run.ID)
	if g.cfg.CompanyName != "" {
		left = g.cfg.CompanyName + " | " + left
	}
	m.AddRow(6,
		text.NewCol(8, left, smallStyle),
		text.NewCol(4, run.CreatedAt.Format("2006-01-02 15:04:05"),
			props.Text{Size: 8, Color: darkGrayColor, Align: align.Right}),
	)
	m.AddRow(8)
}

func addMetrics(m core.Maroto, run *repository.Run) {
	statusStyle := props.Text{Size: 14, Style: fontstyle.Bold, Align: align.Center, Color: successColor}
	if run.ObjectiveValue == nil {
		statusStyle.Color = dangerColor
	}
	valueStyle := props.Text{Size: 14, Style: fontstyle.Bold, Align: align.Center, Color: primaryColor}

	cards := []struct {
		label, value string
		style        props.Text
	}{
		{"Status", run.Status, statusStyle},
		{"Objective (" + run.Objective + ")", objectiveText(run), valueStyle},
		{"Variables", fmt.Sprintf("%d", run.Variables), valueStyle},
		{"Constraints", fmt.Sprintf("%d", run.Constraints), valueStyle},
	}
	cols := make([]core.Col, 0, len(cards))
	for _, c := range cards {
		cols = append(cols, col.New(3).Add(
			text.New(c.value, c.style),
			text.New(c.label, metricLabelStyle),
		))
	}
	m.AddRow(20, cols...)

	m.AddRow(4)
	details := [][2]string{
		{"Solver", run.Solver},
		{"Branch nodes", fmt.Sprintf("%d", run.Nodes)},
		{"Compile / solve", fmt.Sprintf("%.2f ms / %.2f ms", run.CompileMs, run.SolveMs)},
		{"From cache", fmt.Sprintf("%v", run.Cached)},
	}
	if run.Message != "" {
		details = append(details, [2]string{"Message", run.Message})
	}
	for _, d := range details {
		m.AddRow(6,
			text.NewCol(4, d[0], boldStyle),
			text.NewCol(8, d[1], normalStyle),
		)
	}
}

func addSection(m core.Maroto, name string) {
	m.AddRow(10, text.NewCol(12, name, h2Style))
	m.AddRow(2, line.NewCol(12, props.Line{Color: primaryColor}))
	m.AddRow(4)
}

func addCategoryTable(m core.Maroto, totals []categoryTotal) {
	m.AddRow(8,
		text.NewCol(3, "Category", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(3, "Nonzero", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(3, "Sum", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(3, "Max", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
	)
	for _, t := range totals {
		m.AddRow(6,
			text.NewCol(3, t.Category, tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(3, fmt.Sprintf("%d", t.Count), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(3, formatFloat(t.Sum, 4), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(3, formatFloat(t.Max, 4), tableCellTextStyle).WithStyle(tableCellStyle),
		)
	}
}

func addValueTable(m core.Maroto, values []repository.Value, truncated int) {
	m.AddRow(8,
		text.NewCol(8, "Variable", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(4, "Value", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
	)

	rest := truncated
	if len(values) > pdfMaxRows {
		rest += len(values) - pdfMaxRows
		values = values[:pdfMaxRows]
	}
	for _, v := range values {
		m.AddRow(6,
			text.NewCol(8, v.Key, tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(4, formatFloat(v.Value, 4), tableCellTextStyle).WithStyle(tableCellStyle),
		)
	}
	if rest > 0 {
		m.AddRow(6, text.NewCol(12, fmt.Sprintf("... and %d more values", rest), smallStyle))
	}
}
