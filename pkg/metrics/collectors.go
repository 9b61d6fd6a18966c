package metrics

import (
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// runtimeGauge одна метрика рантайма, вычисляемая из снимка MemStats
type runtimeGauge struct {
	desc  *prometheus.Desc
	kind  prometheus.ValueType
	value func(ms *runtime.MemStats) float64
}

// RuntimeCollector отдаёт состояние кучи и сборщика мусора процесса.
// Компиляция больших сценариев держит плотные матрицы в памяти, поэтому
// размер кучи и паузы GC нужны рядом с метриками решателя.
type RuntimeCollector struct {
	gauges []runtimeGauge
	pause  *prometheus.Desc
}

// NewRuntimeCollector создаёт коллектор с метриками под namespace_subsystem_
func NewRuntimeCollector(namespace, subsystem string) *RuntimeCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, nil, nil)
	}
	return &RuntimeCollector{
		gauges: []runtimeGauge{
			{desc("goroutines", "Goroutines alive"), prometheus.GaugeValue,
				func(*runtime.MemStats) float64 { return float64(runtime.NumGoroutine()) }},
			{desc("heap_alloc_bytes", "Heap bytes in use"), prometheus.GaugeValue,
				func(ms *runtime.MemStats) float64 { return float64(ms.HeapAlloc) }},
			{desc("heap_objects", "Live heap objects"), prometheus.GaugeValue,
				func(ms *runtime.MemStats) float64 { return float64(ms.HeapObjects) }},
			{desc("alloc_bytes_total", "Bytes allocated since start"), prometheus.CounterValue,
				func(ms *runtime.MemStats) float64 { return float64(ms.TotalAlloc) }},
			{desc("sys_bytes", "Bytes reserved from the OS"), prometheus.GaugeValue,
				func(ms *runtime.MemStats) float64 { return float64(ms.Sys) }},
			{desc("gc_cycles_total", "Completed GC cycles"), prometheus.CounterValue,
				func(ms *runtime.MemStats) float64 { return float64(ms.NumGC) }},
		},
		pause: desc("gc_last_pause_seconds", "Duration of the last GC pause"),
	}
}

// Describe implements prometheus.Collector
func (c *RuntimeCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, g := range c.gauges {
		ch <- g.desc
	}
	ch <- c.pause
}

// Collect implements prometheus.Collector
func (c *RuntimeCollector) Collect(ch chan<- prometheus.Metric) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	for _, g := range c.gauges {
		ch <- prometheus.MustNewConstMetric(g.desc, g.kind, g.value(&ms))
	}
	// до первой сборки пауз нет
	if ms.NumGC > 0 {
		last := time.Duration(ms.PauseNs[(ms.NumGC+255)%256])
		ch <- prometheus.MustNewConstMetric(c.pause, prometheus.GaugeValue, last.Seconds())
	}
}

// InFlight считает незавершённые запросы по ключу (метод или маршрут) и
// зеркалит их сумму в gauge.
type InFlight struct {
	mu     sync.Mutex
	active map[string]int
	gauge  prometheus.Gauge
}

// NewInFlight создаёт счётчик поверх gauge
func NewInFlight(gauge prometheus.Gauge) *InFlight {
	return &InFlight{active: make(map[string]int), gauge: gauge}
}

// Begin отмечает начало запроса и возвращает функцию завершения.
// Повторный вызов функции завершения ничего не делает.
func (f *InFlight) Begin(key string) (done func()) {
	f.mu.Lock()
	f.active[key]++
	f.mu.Unlock()
	f.gauge.Inc()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			f.active[key]--
			if f.active[key] == 0 {
				delete(f.active, key)
			}
			f.mu.Unlock()
			f.gauge.Dec()
		})
	}
}

// Active число незавершённых запросов по ключу
func (f *InFlight) Active(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active[key]
}

// StartTimer начинает замер и возвращает функцию, которая записывает
// прошедшее время в histogram с метками labels и возвращает его.
func StartTimer(histogram *prometheus.HistogramVec, labels ...string) (stop func() time.Duration) {
	start := time.Now()
	observer := histogram.WithLabelValues(labels...)
	return func() time.Duration {
		d := time.Since(start)
		observer.Observe(d.Seconds())
		return d
	}
}
