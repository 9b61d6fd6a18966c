package scale

import (
	"fmt"
	"strconv"
	"strings"

	"energia/pkg/apperror"
)

// MaxLevels максимальная глубина иерархии шкал
const MaxLevels = 8

// Index точка иерархии шкал: кортеж длины level+1.
// Тип сравнимый, поэтому может быть ключом map.
type Index struct {
	comps [MaxLevels]int32
	n     uint8
}

// NewIndex создаёт индекс из компонент. Паникует, если компонент больше MaxLevels
// или хотя бы один отрицателен: такие индексы не порождает ни одна иерархия.
func NewIndex(comps ...int) Index {
	if len(comps) == 0 || len(comps) > MaxLevels {
		panic(fmt.Sprintf("scale: index must have 1..%d components, got %d", MaxLevels, len(comps)))
	}
	var idx Index
	for i, c := range comps {
		if c < 0 {
			panic(fmt.Sprintf("scale: negative index component %d", c))
		}
		idx.comps[i] = int32(c)
	}
	idx.n = uint8(len(comps))
	return idx
}

// ParseIndex разбирает строковую форму "(0,3,12)" или "0.3.12".
func ParseIndex(s string) (Index, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")
	sep := ","
	if !strings.Contains(s, sep) && strings.Contains(s, ".") {
		sep = "."
	}
	parts := strings.Split(s, sep)
	if len(parts) == 0 || len(parts) > MaxLevels || parts[0] == "" {
		return Index{}, apperror.Newf(apperror.CodeInvalidScaleLevel, "malformed index %q", s)
	}
	comps := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || v < 0 {
			return Index{}, apperror.Newf(apperror.CodeInvalidScaleLevel, "malformed index component %q", p)
		}
		comps[i] = v
	}
	return NewIndex(comps...), nil
}

// Level уровень индекса (0 — самый грубый). Для нулевого значения Index возвращает -1.
func (i Index) Level() int {
	return int(i.n) - 1
}

// Len количество компонент
func (i Index) Len() int {
	return int(i.n)
}

// At компонента на уровне level
func (i Index) At(level int) int {
	if level < 0 || level >= int(i.n) {
		panic(fmt.Sprintf("scale: component %d out of range for %s", level, i))
	}
	return int(i.comps[level])
}

// Components копия компонент
func (i Index) Components() []int {
	out := make([]int, i.n)
	for k := range out {
		out[k] = int(i.comps[k])
	}
	return out
}

// IsZero true для неинициализированного индекса
func (i Index) IsZero() bool {
	return i.n == 0
}

// Truncate отбрасывает хвостовые компоненты, оставляя индекс уровня level.
func (i Index) Truncate(level int) (Index, error) {
	if level < 0 || level > i.Level() {
		return Index{}, apperror.Newf(apperror.CodeInvalidScaleLevel,
			"cannot truncate %s (level %d) to level %d", i, i.Level(), level).
			WithDetails("index", i.String()).
			WithDetails("target_level", level)
	}
	out := i
	for k := level + 1; k < int(i.n); k++ {
		out.comps[k] = 0
	}
	out.n = uint8(level + 1)
	return out, nil
}

// MustTruncate как Truncate, но паникует. Используется там, где уровни
// уже проверены при валидации сценария.
func (i Index) MustTruncate(level int) Index {
	out, err := i.Truncate(level)
	if err != nil {
		panic(err)
	}
	return out
}

// HasPrefix true, если p является усечением i
func (i Index) HasPrefix(p Index) bool {
	if p.n > i.n {
		return false
	}
	for k := 0; k < int(p.n); k++ {
		if i.comps[k] != p.comps[k] {
			return false
		}
	}
	return true
}

// Compare лексикографический порядок; при общем префиксе короче — меньше.
func (i Index) Compare(o Index) int {
	n := min(i.n, o.n)
	for k := 0; k < int(n); k++ {
		switch {
		case i.comps[k] < o.comps[k]:
			return -1
		case i.comps[k] > o.comps[k]:
			return 1
		}
	}
	switch {
	case i.n < o.n:
		return -1
	case i.n > o.n:
		return 1
	}
	return 0
}

// Less true, если i < o
func (i Index) Less(o Index) bool {
	return i.Compare(o) < 0
}

// String форма "(0,3,12)"
func (i Index) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for k := 0; k < int(i.n); k++ {
		if k > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(int(i.comps[k])))
	}
	b.WriteByte(')')
	return b.String()
}

// MarshalText позволяет использовать Index как ключ JSON-объекта.
func (i Index) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText обратная операция к MarshalText
func (i *Index) UnmarshalText(text []byte) error {
	idx, err := ParseIndex(string(text))
	if err != nil {
		return err
	}
	*i = idx
	return nil
}
