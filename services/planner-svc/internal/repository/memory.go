package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRunRepository in-memory реализация RunRepository. Используется,
// когда база не настроена; история живёт до рестарта.
type MemoryRunRepository struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

// NewMemoryRunRepository создаёт новый in-memory репозиторий
func NewMemoryRunRepository() *MemoryRunRepository {
	return &MemoryRunRepository{runs: make(map[string]*Run)}
}

func (r *MemoryRunRepository) Create(_ context.Context, run *Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	stored := *run
	stored.Values = slices.Clone(run.Values)
	r.runs[run.ID] = &stored
	return nil
}

func (r *MemoryRunRepository) GetByID(_ context.Context, id string) (*Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	out := *run
	out.Values = slices.Clone(run.Values)
	return &out, nil
}

func (r *MemoryRunRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runs[id]; !ok {
		return ErrRunNotFound
	}
	delete(r.runs, id)
	return nil
}

func (r *MemoryRunRepository) List(_ context.Context, opts *ListOptions) ([]*Run, int64, error) {
	opts = opts.normalize()

	r.mu.RLock()
	matched := make([]*Run, 0, len(r.runs))
	for _, run := range r.runs {
		if matches(run, opts.Filter) {
			summary := *run
			summary.Values = nil
			matched = append(matched, &summary)
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(matched, func(a, b *Run) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return compareStrings(a.ID, b.ID)
	})

	total := int64(len(matched))
	if opts.Offset >= len(matched) {
		return nil, total, nil
	}
	end := min(opts.Offset+opts.Limit, len(matched))
	return matched[opts.Offset:end], total, nil
}

func (r *MemoryRunRepository) Ping(context.Context) error {
	return nil
}

func matches(run *Run, f *ListFilter) bool {
	if f == nil {
		return true
	}
	switch {
	case f.ScenarioHash != "" && run.ScenarioHash != f.ScenarioHash:
		return false
	case f.ScenarioName != "" && run.ScenarioName != f.ScenarioName:
		return false
	case f.Status != "" && run.Status != f.Status:
		return false
	case f.Objective != "" && run.Objective != f.Objective:
		return false
	case f.Since != nil && run.CreatedAt.Before(*f.Since):
		return false
	}
	return true
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
