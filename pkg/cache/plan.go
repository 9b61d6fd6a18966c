package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"energia/pkg/metrics"
	"energia/pkg/problem"
)

// DefaultPlanPrefix префикс ключей решённых планов
const DefaultPlanPrefix = "plan:"

// PlanCache специализированный кэш для решённых сценариев
type PlanCache struct {
	cache      Cache
	prefix     string
	defaultTTL time.Duration
}

// CachedPlan кэшированный результат решения
type CachedPlan struct {
	Status     string             `json:"status"`
	Objective  float64            `json:"objective"`
	Solver     string             `json:"solver"`
	Nodes      int                `json:"nodes"`
	Message    string             `json:"message,omitempty"`
	DurationMs float64            `json:"duration_ms"`
	Stats      problem.Stats      `json:"stats"`
	Values     map[string]float64 `json:"values,omitempty"`
	ComputedAt time.Time          `json:"computed_at"`
}

// NewPlanCache создаёт кэш планов поверх произвольного бэкенда
func NewPlanCache(cache Cache, prefix string, defaultTTL time.Duration) *PlanCache {
	if prefix == "" {
		prefix = DefaultPlanPrefix
	}
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}
	return &PlanCache{
		cache:      cache,
		prefix:     prefix,
		defaultTTL: defaultTTL,
	}
}

// Get получает кэшированный план
func (pc *PlanCache) Get(ctx context.Context, scenarioHash, optionsHash string) (*CachedPlan, bool, error) {
	key := BuildPlanKeyWithOptions(pc.prefix, scenarioHash, optionsHash)

	data, err := pc.cache.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			metrics.Get().RecordCacheLookup("plan", false)
			return nil, false, nil
		}
		return nil, false, err
	}

	var plan CachedPlan
	if err := json.Unmarshal(data, &plan); err != nil {
		// Повреждённая запись: удаляем и считаем промахом
		_ = pc.cache.Delete(ctx, key) //nolint:errcheck // best effort cleanup
		metrics.Get().RecordCacheLookup("plan", false)
		return nil, false, nil
	}

	metrics.Get().RecordCacheLookup("plan", true)
	return &plan, true, nil
}

// Set сохраняет план в кэш
func (pc *PlanCache) Set(ctx context.Context, scenarioHash, optionsHash string, plan *CachedPlan, ttl time.Duration) error {
	if plan == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = pc.defaultTTL
	}

	key := BuildPlanKeyWithOptions(pc.prefix, scenarioHash, optionsHash)
	plan.ComputedAt = time.Now()

	data, err := json.Marshal(plan)
	if err != nil {
		return err
	}
	return pc.cache.Set(ctx, key, data, ttl)
}

// SetFromSolution сохраняет план из решения задачи. Значения по модулю
// не больше tol не кэшируются.
func (pc *PlanCache) SetFromSolution(ctx context.Context, scenarioHash, optionsHash string, p *problem.Problem, sol *problem.Solution, tol float64, ttl time.Duration) error {
	if p == nil || sol == nil {
		return nil
	}
	return pc.Set(ctx, scenarioHash, optionsHash, PlanFromSolution(p, sol, tol), ttl)
}

// PlanFromSolution переводит решение в кэшируемый вид
func PlanFromSolution(p *problem.Problem, sol *problem.Solution, tol float64) *CachedPlan {
	plan := &CachedPlan{
		Status:     string(sol.Status),
		Objective:  sol.Objective,
		Solver:     sol.Solver,
		Nodes:      sol.Nodes,
		Message:    sol.Message,
		DurationMs: float64(sol.Duration.Microseconds()) / 1000,
		Stats:      p.Stats(),
	}
	if assignments := sol.Assignments(tol); len(assignments) > 0 {
		plan.Values = make(map[string]float64, len(assignments))
		for _, a := range assignments {
			plan.Values[a.Key.String()] = a.Value
		}
	}
	return plan
}

// Invalidate удаляет все планы сценария, под любыми опциями
func (pc *PlanCache) Invalidate(ctx context.Context, scenarioHash string) error {
	if err := pc.cache.Delete(ctx, BuildPlanKey(pc.prefix, scenarioHash)); err != nil {
		return err
	}
	_, err := pc.cache.DeleteByPattern(ctx, BuildPlanKey(pc.prefix, scenarioHash)+":*")
	return err
}

// InvalidateAll удаляет весь кэш планов
func (pc *PlanCache) InvalidateAll(ctx context.Context) (int64, error) {
	return pc.cache.DeleteByPattern(ctx, pc.prefix+"*")
}
