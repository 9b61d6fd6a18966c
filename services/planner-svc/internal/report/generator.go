// Package report строит отчёты по сохранённым запускам: книгу Excel со
// всеми значениями переменных и краткую PDF сводку.
package report

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"energia/pkg/apperror"
	"energia/pkg/config"
	"energia/services/planner-svc/internal/repository"
)

// Format формат отчёта
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// DefaultMaxRows предел строк переменных, если он не задан конфигурацией
const DefaultMaxRows = 10000

// ParseFormat разбирает формат; пустая строка означает xlsx
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatXLSX, "excel":
		return FormatXLSX, nil
	case FormatPDF:
		return FormatPDF, nil
	}
	return "", apperror.Newf(apperror.CodeInvalidArgument, "unsupported report format %q", s).WithField("format")
}

// ContentType MIME тип формата
func (f Format) ContentType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
}

// Generator генератор отчётов
type Generator struct {
	cfg config.ReportConfig
}

// NewGenerator создаёт генератор
func NewGenerator(cfg config.ReportConfig) *Generator {
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = DefaultMaxRows
	}
	return &Generator{cfg: cfg}
}

// Generate строит отчёт по запуску
func (g *Generator) Generate(run *repository.Run, format Format) ([]byte, error) {
	if run == nil {
		return nil, apperror.New(apperror.CodeNilInput, "run is nil")
	}
	switch format {
	case FormatXLSX:
		return g.excel(run)
	case FormatPDF:
		return g.pdf(run)
	}
	return nil, apperror.Newf(apperror.CodeInvalidArgument, "unsupported report format %q", format)
}

// visibleValues значения выше порога, не больше MaxRows
func (g *Generator) visibleValues(run *repository.Run) (values []repository.Value, truncated int) {
	for _, v := range run.Values {
		if math.Abs(v.Value) > g.cfg.Tolerance {
			values = append(values, v)
		}
	}
	if len(values) > g.cfg.MaxRows {
		truncated = len(values) - g.cfg.MaxRows
		values = values[:g.cfg.MaxRows]
	}
	return values, truncated
}

// categoryTotal сводка по категории переменных
type categoryTotal struct {
	Category string
	Count    int
	Sum      float64
	Max      float64
}

func summarize(values []repository.Value) []categoryTotal {
	byCat := make(map[string]*categoryTotal)
	for _, v := range values {
		t, ok := byCat[v.Category]
		if !ok {
			t = &categoryTotal{Category: v.Category, Max: v.Value}
			byCat[v.Category] = t
		}
		t.Count++
		t.Sum += v.Value
		t.Max = max(t.Max, v.Value)
	}

	out := make([]categoryTotal, 0, len(byCat))
	for _, t := range byCat {
		out = append(out, *t)
	}
	slices.SortFunc(out, func(a, b categoryTotal) int { return cmp.Compare(a.Category, b.Category) })
	return out
}

func objectiveText(run *repository.Run) string {
	if run.ObjectiveValue == nil {
		return "-"
	}
	return formatFloat(*run.ObjectiveValue, 4)
}

func formatFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

func title(run *repository.Run) string {
	return fmt.Sprintf("Energy Plan: %s", run.ScenarioName)
}
