// Package loader читает описание сценария из YAML или JSON.
//
// Основная часть документа разбирается по json тегам пакета scenario, так что
// оба формата дают одинаковый результат. Ряды факторов площадок задаются в
// ключе factors плотными массивами в порядке индексов уровня:
//
//	locations:
//	  - name: farm
//	    processes: [pv]
//	    factors:
//	      capacity:
//	        level: 1
//	        series:
//	          pv: [0, 0.4, 0.2, 0, 0.9, 0.6]
//
// Ряд тоньше уровня, на котором его потребляет компилятор, сворачивается при
// загрузке, если указана политика (sum, mean или max):
//
//	      demand:
//	        level: 1
//	        policy: sum
//	        series:
//	          power: [4, 3, 3, 2, 4, 4]
package loader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"energia/pkg/apperror"
	"energia/pkg/factor"
	"energia/pkg/logger"
	"energia/pkg/scale"
	"energia/pkg/scenario"
)

// Виды рядов в ключе factors
const (
	KindCapacity     = "capacity"
	KindPrice        = "price"
	KindDemand       = "demand"
	KindAvailability = "availability"
)

// DefaultMaxBytes предел размера документа для Decode
const DefaultMaxBytes = 8 << 20

type seriesDoc struct {
	Level  int                  `yaml:"level" json:"level"`
	Policy string               `yaml:"policy" json:"policy"`
	Series map[string][]float64 `yaml:"series" json:"series"`
}

type factorsDoc struct {
	Fanout    []int `yaml:"fanout" json:"fanout"`
	Locations []struct {
		Name    string               `yaml:"name" json:"name"`
		Factors map[string]seriesDoc `yaml:"factors" json:"factors"`
	} `yaml:"locations" json:"locations"`
}

// Parse разбирает документ сценария. Проверку ограничений полей выполняет
// scenario.Validate, Parse проверяет только форму документа и ряды.
func Parse(data []byte) (*scenario.Scenario, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, apperror.New(apperror.CodeNilInput, "scenario document is empty")
	}

	var (
		s   *scenario.Scenario
		doc factorsDoc
		err error
	)
	// JSON разбирается напрямую: YAML не допускает табуляцию в отступах
	if json.Valid(data) {
		s, err = parseJSON(data, &doc)
	} else {
		s, err = parseYAML(data, &doc)
	}
	if err != nil {
		return nil, err
	}
	if err := attachFactors(s, &doc); err != nil {
		return nil, err
	}

	logger.Log.Debug("Scenario parsed",
		"name", s.Name,
		"locations", len(s.Locations),
		"processes", len(s.Processes),
		"resources", len(s.Resources),
	)
	return s, nil
}

func parseJSON(data []byte, doc *factorsDoc) (*scenario.Scenario, error) {
	if bytes.TrimSpace(data)[0] != '{' {
		return nil, apperror.New(apperror.CodeInvalidScenario, "scenario document must be an object")
	}
	s := &scenario.Scenario{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInvalidScenario, "scenario document does not match schema")
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInvalidScenario, "malformed factors section")
	}
	return s, nil
}

func parseYAML(data []byte, doc *factorsDoc) (*scenario.Scenario, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInvalidScenario, "malformed scenario document")
	}
	if raw == nil {
		return nil, apperror.New(apperror.CodeInvalidScenario, "scenario document must be a mapping")
	}

	// YAML -> JSON, чтобы действовали json теги и UnmarshalJSON флагов
	asJSON, err := json.Marshal(raw)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInvalidScenario, "scenario document has non-string keys")
	}
	s := &scenario.Scenario{}
	if err := json.Unmarshal(asJSON, s); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInvalidScenario, "scenario document does not match schema")
	}
	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInvalidScenario, "malformed factors section")
	}
	return s, nil
}

// Decode читает не больше maxBytes из r и разбирает документ
func Decode(r io.Reader, maxBytes int64) (*scenario.Scenario, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInvalidArgument, "failed to read scenario")
	}
	if int64(len(data)) > maxBytes {
		return nil, apperror.Newf(apperror.CodeInvalidArgument, "scenario exceeds %d bytes", maxBytes)
	}
	return Parse(data)
}

// LoadFile читает сценарий из файла
func LoadFile(path string) (*scenario.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return Parse(data)
}

func attachFactors(s *scenario.Scenario, doc *factorsDoc) error {
	var h *scale.Hierarchy
	for _, ld := range doc.Locations {
		if len(ld.Factors) == 0 {
			continue
		}
		if h == nil {
			var err error
			if h, err = scale.New(doc.Fanout...); err != nil {
				return err
			}
		}

		loc := findLocation(s, ld.Name)
		if loc == nil {
			return apperror.Newf(apperror.CodeInconsistentTopology,
				"factors given for unknown location %q", ld.Name).WithField(ld.Name)
		}

		for _, kind := range slices.Sorted(maps.Keys(ld.Factors)) {
			sd := ld.Factors[kind]
			table, err := factor.FromSeries(h, sd.Level, sd.Series)
			if err != nil {
				return err
			}
			if table, err = aggregate(h, s.Levels, kind, table, sd.Policy); err != nil {
				return err
			}
			switch kind {
			case KindCapacity:
				loc.CapacityFactor = table
			case KindPrice:
				loc.PriceFactor = table
			case KindDemand:
				loc.DemandFactor = table
			case KindAvailability:
				loc.AvailabilityFactor = table
			default:
				return apperror.Newf(apperror.CodeInvalidScenario,
					"unknown factor kind %q at location %q", kind, ld.Name).WithField(kind)
			}
		}
	}
	return nil
}

// aggregate сворачивает ряд к уровню потребления по политике документа.
// Без политики таблица остаётся как есть, и компилятор отклонит тонкий ряд.
func aggregate(h *scale.Hierarchy, lv scenario.Levels, kind string, t *factor.Table, name string) (*factor.Table, error) {
	if name == "" {
		return t, nil
	}
	policy := factor.ParsePolicy(name)
	if policy == factor.PolicyUnset {
		return nil, apperror.Newf(apperror.CodeInvalidScenario,
			"unknown aggregation policy %q for %s factor", name, kind).WithField(name)
	}
	target := lv.Scheduling
	if kind == KindDemand {
		target = lv.Demand
	}
	if t.Level <= target {
		return t, nil
	}
	out, err := factor.Aggregate(h, t, target, policy)
	if err != nil {
		return nil, err
	}
	logger.Log.Debug("Factor series aggregated",
		"kind", kind,
		"policy", policy.String(),
		"from", t.Level,
		"to", target,
	)
	return out, nil
}

func findLocation(s *scenario.Scenario, name string) *scenario.Location {
	for i := range s.Locations {
		if s.Locations[i].Name == name {
			return &s.Locations[i]
		}
	}
	return nil
}

// Encode сериализует сценарий в YAML вместе с рядами факторов
func Encode(w io.Writer, s *scenario.Scenario) error {
	asJSON, err := json.Marshal(s)
	if err != nil {
		return err
	}
	var doc map[string]any
	if err := json.Unmarshal(asJSON, &doc); err != nil {
		return err
	}

	h, err := scale.New(s.Fanout...)
	if err != nil {
		return err
	}
	if locs, ok := doc["locations"].([]any); ok {
		for i, item := range locs {
			m, ok := item.(map[string]any)
			if !ok || i >= len(s.Locations) {
				continue
			}
			factors, err := locationSeries(h, &s.Locations[i])
			if err != nil {
				return err
			}
			if len(factors) > 0 {
				m["factors"] = factors
			}
		}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

func locationSeries(h *scale.Hierarchy, loc *scenario.Location) (map[string]any, error) {
	out := make(map[string]any)
	for kind, t := range map[string]*factor.Table{
		KindCapacity:     loc.CapacityFactor,
		KindPrice:        loc.PriceFactor,
		KindDemand:       loc.DemandFactor,
		KindAvailability: loc.AvailabilityFactor,
	} {
		if t == nil {
			continue
		}
		set, err := h.IndexSet(t.Level)
		if err != nil {
			return nil, err
		}
		series := make(map[string][]float64, len(t.Values))
		for _, entity := range t.Entities() {
			values := make([]float64, len(set))
			for pos, idx := range set {
				v, ok := t.Lookup(entity, idx)
				if !ok {
					return nil, apperror.Newf(apperror.CodeMissingFactorEntry,
						"%s factor of %q has no value at %s", kind, entity, idx).WithField(entity)
				}
				values[pos] = v
			}
			series[entity] = values
		}
		out[kind] = map[string]any{"level": t.Level, "series": series}
	}
	return out, nil
}
