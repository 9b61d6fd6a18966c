// Package scale описывает вложенную иерархию временных шкал.
//
// Иерархия задаётся списком коэффициентов ветвления fanout[0..L-1]; уровень 0
// самый грубый. Множество индексов уровня ℓ есть декартово произведение
// range(fanout[0]) × … × range(fanout[ℓ]). Усечение индекса более тонкого
// уровня до первых ℓ+1 компонент всегда даёт корректный индекс уровня ℓ.
//
// Hierarchy неизменяема после создания и безопасна для конкурентного чтения.
package scale

import (
	"fmt"
	"iter"

	"energia/pkg/apperror"
)

// Hierarchy иерархия шкал
type Hierarchy struct {
	fanout []int
	// sizes[ℓ] — число индексов на уровне ℓ
	sizes []int
}

// New создаёт иерархию из коэффициентов ветвления.
func New(fanout ...int) (*Hierarchy, error) {
	if len(fanout) == 0 {
		return nil, apperror.New(apperror.CodeInvalidDiscretization, "discretization must have at least one level")
	}
	if len(fanout) > MaxLevels {
		return nil, apperror.Newf(apperror.CodeInvalidDiscretization,
			"discretization has %d levels, at most %d supported", len(fanout), MaxLevels)
	}

	h := &Hierarchy{
		fanout: make([]int, len(fanout)),
		sizes:  make([]int, len(fanout)),
	}
	size := 1
	for level, f := range fanout {
		if f < 1 {
			return nil, apperror.Newf(apperror.CodeInvalidDiscretization,
				"fan-out at level %d must be >= 1, got %d", level, f).
				WithDetails("level", level).
				WithDetails("fanout", f)
		}
		h.fanout[level] = f
		size *= f
		h.sizes[level] = size
	}
	return h, nil
}

// MustNew как New, но паникует при ошибке
func MustNew(fanout ...int) *Hierarchy {
	h, err := New(fanout...)
	if err != nil {
		panic(err)
	}
	return h
}

// Levels количество уровней
func (h *Hierarchy) Levels() int {
	return len(h.fanout)
}

// Fanout копия коэффициентов ветвления
func (h *Hierarchy) Fanout() []int {
	out := make([]int, len(h.fanout))
	copy(out, h.fanout)
	return out
}

// CheckLevel возвращает InvalidScaleLevel для уровня вне иерархии.
func (h *Hierarchy) CheckLevel(level int) error {
	if level < 0 || level >= len(h.fanout) {
		return apperror.Newf(apperror.CodeInvalidScaleLevel,
			"level %d outside hierarchy with %d levels", level, len(h.fanout)).
			WithDetails("level", level)
	}
	return nil
}

// Size число индексов на уровне
func (h *Hierarchy) Size(level int) (int, error) {
	if err := h.CheckLevel(level); err != nil {
		return 0, err
	}
	return h.sizes[level], nil
}

// Contains проверяет, что индекс принадлежит иерархии
func (h *Hierarchy) Contains(idx Index) bool {
	if idx.IsZero() || idx.Level() >= len(h.fanout) {
		return false
	}
	for k := 0; k < idx.Len(); k++ {
		if idx.At(k) >= h.fanout[k] {
			return false
		}
	}
	return true
}

// Indices ленивая последовательность индексов уровня в лексикографическом
// порядке. Последовательность можно обходить повторно.
func (h *Hierarchy) Indices(level int) (iter.Seq[Index], error) {
	if err := h.CheckLevel(level); err != nil {
		return nil, err
	}
	return h.under(Index{}, level), nil
}

// IndexSet материализует Indices в срез
func (h *Hierarchy) IndexSet(level int) ([]Index, error) {
	seq, err := h.Indices(level)
	if err != nil {
		return nil, err
	}
	out := make([]Index, 0, h.sizes[level])
	for idx := range seq {
		out = append(out, idx)
	}
	return out, nil
}

// Children все индексы уровня level, вложенные в parent (включая сам parent,
// если level равен его уровню).
func (h *Hierarchy) Children(parent Index, level int) (iter.Seq[Index], error) {
	if err := h.CheckLevel(level); err != nil {
		return nil, err
	}
	if !h.Contains(parent) {
		return nil, apperror.Newf(apperror.CodeInvalidScaleLevel, "index %s is not in the hierarchy", parent)
	}
	if parent.Level() > level {
		return nil, apperror.Newf(apperror.CodeInvalidScaleLevel,
			"index %s is finer than level %d", parent, level)
	}
	return h.under(parent, level), nil
}

// under обходит поддерево prefix до уровня level (одометр по хвостовым компонентам)
func (h *Hierarchy) under(prefix Index, level int) iter.Seq[Index] {
	return func(yield func(Index) bool) {
		cur := prefix
		start := prefix.Len()
		cur.n = uint8(level + 1)
		for k := start; k <= level; k++ {
			cur.comps[k] = 0
		}
		for {
			if !yield(cur) {
				return
			}
			k := level
			for ; k >= start; k-- {
				cur.comps[k]++
				if int(cur.comps[k]) < h.fanout[k] {
					break
				}
				cur.comps[k] = 0
			}
			if k < start {
				return
			}
		}
	}
}

// Position порядковый номер индекса в Indices(idx.Level())
func (h *Hierarchy) Position(idx Index) (int, error) {
	if !h.Contains(idx) {
		return 0, apperror.Newf(apperror.CodeInvalidScaleLevel, "index %s is not in the hierarchy", idx)
	}
	pos := 0
	for k := 0; k < idx.Len(); k++ {
		pos = pos*h.fanout[k] + idx.At(k)
	}
	return pos, nil
}

// At индекс уровня level с порядковым номером pos
func (h *Hierarchy) At(level, pos int) (Index, error) {
	if err := h.CheckLevel(level); err != nil {
		return Index{}, err
	}
	if pos < 0 || pos >= h.sizes[level] {
		return Index{}, apperror.Newf(apperror.CodeInvalidScaleLevel,
			"position %d outside level %d of size %d", pos, level, h.sizes[level])
	}
	var idx Index
	idx.n = uint8(level + 1)
	for k := level; k >= 0; k-- {
		idx.comps[k] = int32(pos % h.fanout[k])
		pos /= h.fanout[k]
	}
	return idx, nil
}

// Prev предыдущий индекс того же уровня; ok=false для первого.
func (h *Hierarchy) Prev(idx Index) (Index, bool) {
	pos, err := h.Position(idx)
	if err != nil || pos == 0 {
		return Index{}, false
	}
	prev, err := h.At(idx.Level(), pos-1)
	if err != nil {
		return Index{}, false
	}
	return prev, true
}

// Truncate усекает индекс до уровня. Ошибка InvalidScaleLevel, если уровень
// отрицателен или тоньше самого индекса.
func Truncate(idx Index, level int) (Index, error) {
	return idx.Truncate(level)
}

// String краткое описание иерархии
func (h *Hierarchy) String() string {
	return fmt.Sprintf("scale%v", h.fanout)
}
