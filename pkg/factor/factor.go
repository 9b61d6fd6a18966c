// Package factor приводит внешние временные ряды (спрос, цены, доступность
// мощности) к уровню шкалы, на котором их потребляют ограничения.
//
// Нормализация только разворачивает грубые значения на все вложенные тонкие
// индексы. Свёртка тонкого ряда к грубому уровню выполняется отдельной
// функцией Aggregate и требует явно выбранной политики.
package factor

import (
	"maps"
	"slices"

	"energia/pkg/apperror"
	"energia/pkg/scale"
)

// Table значения (сущность, индекс уровня Level) -> число
type Table struct {
	Level  int
	Values map[string]map[scale.Index]float64
}

// NewTable создаёт пустую таблицу уровня level
func NewTable(level int) *Table {
	return &Table{
		Level:  level,
		Values: make(map[string]map[scale.Index]float64),
	}
}

// Set записывает значение
func (t *Table) Set(entity string, idx scale.Index, value float64) {
	row, ok := t.Values[entity]
	if !ok {
		row = make(map[scale.Index]float64)
		t.Values[entity] = row
	}
	row[idx] = value
}

// Has true, если для сущности задан ряд
func (t *Table) Has(entity string) bool {
	if t == nil {
		return false
	}
	_, ok := t.Values[entity]
	return ok
}

// Lookup значение для сущности и индекса
func (t *Table) Lookup(entity string, idx scale.Index) (float64, bool) {
	if t == nil {
		return 0, false
	}
	row, ok := t.Values[entity]
	if !ok {
		return 0, false
	}
	v, ok := row[idx]
	return v, ok
}

// ValueOr значение или def, если сущность не имеет ряда
func (t *Table) ValueOr(entity string, idx scale.Index, def float64) float64 {
	if v, ok := t.Lookup(entity, idx); ok {
		return v
	}
	return def
}

// Entities отсортированный список сущностей
func (t *Table) Entities() []string {
	if t == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(t.Values))
}

// FromSeries строит таблицу из плотных рядов, перечисленных в порядке
// Hierarchy.Indices(level).
func FromSeries(h *scale.Hierarchy, level int, series map[string][]float64) (*Table, error) {
	size, err := h.Size(level)
	if err != nil {
		return nil, err
	}
	set, err := h.IndexSet(level)
	if err != nil {
		return nil, err
	}

	t := NewTable(level)
	for _, entity := range slices.Sorted(maps.Keys(series)) {
		values := series[entity]
		if len(values) != size {
			return nil, apperror.Newf(apperror.CodeMissingFactorEntry,
				"series for %q has %d values, level %d needs %d", entity, len(values), level, size).
				WithField(entity)
		}
		for pos, idx := range set {
			t.Set(entity, idx, values[pos])
		}
	}
	return t, nil
}

// Normalize разворачивает таблицу на уровень target: значение для каждого
// индекса берётся из усечения этого индекса до уровня таблицы. Таблица должна
// быть не тоньше целевого уровня.
func Normalize(h *scale.Hierarchy, t *Table, target int) (*Table, error) {
	if t == nil {
		return nil, nil
	}
	if err := h.CheckLevel(t.Level); err != nil {
		return nil, err
	}
	if err := h.CheckLevel(target); err != nil {
		return nil, err
	}
	if t.Level > target {
		return nil, apperror.Newf(apperror.CodeInvalidAggregationDirection,
			"factor table at level %d is finer than target level %d; use Aggregate with an explicit policy",
			t.Level, target).
			WithDetails("source_level", t.Level).
			WithDetails("target_level", target)
	}

	set, err := h.IndexSet(target)
	if err != nil {
		return nil, err
	}

	out := NewTable(target)
	for _, entity := range t.Entities() {
		row := t.Values[entity]
		for _, idx := range set {
			src, err := idx.Truncate(t.Level)
			if err != nil {
				return nil, err
			}
			v, ok := row[src]
			if !ok {
				return nil, apperror.Newf(apperror.CodeMissingFactorEntry,
					"factor %q has no value at %s", entity, src).
					WithField(entity).
					WithDetails("index", src.String())
			}
			out.Set(entity, idx, v)
		}
	}
	return out, nil
}

// Policy способ свёртки тонкого ряда к грубому уровню
type Policy int

const (
	// PolicyUnset политика не выбрана: свёртка запрещена
	PolicyUnset Policy = iota
	// PolicySum сумма вложенных значений
	PolicySum
	// PolicyMean среднее вложенных значений
	PolicyMean
	// PolicyMax максимум вложенных значений
	PolicyMax
)

// String возвращает строковое представление политики
func (p Policy) String() string {
	switch p {
	case PolicySum:
		return "sum"
	case PolicyMean:
		return "mean"
	case PolicyMax:
		return "max"
	default:
		return "unset"
	}
}

// ParsePolicy разбирает имя политики
func ParsePolicy(s string) Policy {
	switch s {
	case "sum":
		return PolicySum
	case "mean":
		return PolicyMean
	case "max":
		return PolicyMax
	default:
		return PolicyUnset
	}
}

// Aggregate сворачивает таблицу к более грубому уровню по явной политике.
// Если уровень таблицы не тоньше target, работает как Normalize.
func Aggregate(h *scale.Hierarchy, t *Table, target int, policy Policy) (*Table, error) {
	if t == nil {
		return nil, nil
	}
	if t.Level <= target {
		return Normalize(h, t, target)
	}
	if policy == PolicyUnset {
		return nil, apperror.Newf(apperror.CodeInvalidAggregationDirection,
			"aggregating level %d to level %d requires an explicit policy", t.Level, target)
	}

	set, err := h.IndexSet(target)
	if err != nil {
		return nil, err
	}

	out := NewTable(target)
	for _, entity := range t.Entities() {
		row := t.Values[entity]
		for _, parent := range set {
			children, err := h.Children(parent, t.Level)
			if err != nil {
				return nil, err
			}
			var acc float64
			n := 0
			for child := range children {
				v, ok := row[child]
				if !ok {
					return nil, apperror.Newf(apperror.CodeMissingFactorEntry,
						"factor %q has no value at %s", entity, child).WithField(entity)
				}
				switch {
				case policy == PolicyMax && n == 0:
					acc = v
				case policy == PolicyMax:
					acc = max(acc, v)
				default:
					acc += v
				}
				n++
			}
			if policy == PolicyMean && n > 0 {
				acc /= float64(n)
			}
			out.Set(entity, parent, acc)
		}
	}
	return out, nil
}
