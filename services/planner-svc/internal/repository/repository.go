// Package repository хранит историю запусков планировщика: сводку решения
// и ненулевые значения переменных.
package repository

import (
	"context"
	"errors"
	"time"
)

// Стандартные ошибки
var (
	ErrRunNotFound = errors.New("run not found")
)

// Run запуск решения сценария
type Run struct {
	ID             string    `json:"id"`
	ScenarioName   string    `json:"scenario_name"`
	ScenarioHash   string    `json:"scenario_hash"`
	Objective      string    `json:"objective"`
	Status         string    `json:"status"`
	ObjectiveValue *float64  `json:"objective_value,omitempty"`
	Solver         string    `json:"solver"`
	Nodes          int       `json:"nodes"`
	Message        string    `json:"message,omitempty"`
	Variables      int       `json:"variables"`
	Binaries       int       `json:"binaries"`
	Constraints    int       `json:"constraints"`
	CompileMs      float64   `json:"compile_ms"`
	SolveMs        float64   `json:"solve_ms"`
	Cached         bool      `json:"cached"`
	CreatedAt      time.Time `json:"created_at"`

	// Values заполняется только GetByID и Create
	Values []Value `json:"values,omitempty"`
}

// Value значение переменной решения
type Value struct {
	Category string  `json:"category"`
	Key      string  `json:"key"`
	Value    float64 `json:"value"`
}

// ListFilter фильтры для списка
type ListFilter struct {
	ScenarioHash string
	ScenarioName string
	Status       string
	Objective    string
	Since        *time.Time
}

// ListOptions опции для списка
type ListOptions struct {
	Limit  int
	Offset int
	Filter *ListFilter
}

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// normalize приводит лимиты к допустимым значениям
func (o *ListOptions) normalize() *ListOptions {
	if o == nil {
		o = &ListOptions{}
	}
	out := *o
	if out.Limit <= 0 {
		out.Limit = defaultListLimit
	}
	if out.Limit > maxListLimit {
		out.Limit = maxListLimit
	}
	if out.Offset < 0 {
		out.Offset = 0
	}
	return &out
}

// RunRepository интерфейс репозитория запусков
type RunRepository interface {
	// Create сохраняет запуск вместе со значениями. ID и CreatedAt
	// заполняются, если не заданы.
	Create(ctx context.Context, run *Run) error
	GetByID(ctx context.Context, id string) (*Run, error)
	Delete(ctx context.Context, id string) error

	// List возвращает сводки без значений, новые первыми, и общее число
	List(ctx context.Context, opts *ListOptions) ([]*Run, int64, error)

	Ping(ctx context.Context) error
}
