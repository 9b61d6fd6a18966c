package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"

	"energia/pkg/factor"
	"energia/pkg/scale"
	"energia/pkg/scenario"
)

// ScenarioHash вычисляет хеш сценария для использования как ключ кэша.
// Два сценария с одинаковым содержимым дают одинаковый хеш независимо от
// порядка ключей в map и порядка заполнения рядов.
func ScenarioHash(s *scenario.Scenario) (string, error) {
	if s == nil {
		return "", nil
	}

	data, err := scenarioToCanonical(s)
	if err != nil {
		return "", err
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:16]), nil
}

// scenarioToCanonical создаёт детерминированное представление сценария.
// encoding/json сортирует ключи map; ряды факторов скрыты от json и
// дописываются отдельно в отсортированном виде.
func scenarioToCanonical(s *scenario.Scenario) ([]byte, error) {
	result, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("canonical scenario: %w", err)
	}

	for _, loc := range s.Locations {
		result = appendTable(result, loc.Name, "cf", loc.CapacityFactor)
		result = appendTable(result, loc.Name, "pf", loc.PriceFactor)
		result = appendTable(result, loc.Name, "df", loc.DemandFactor)
		result = appendTable(result, loc.Name, "af", loc.AvailabilityFactor)
	}
	return result, nil
}

func appendTable(buf []byte, location, kind string, t *factor.Table) []byte {
	if t == nil {
		return buf
	}
	buf = fmt.Appendf(buf, ";%s:%s:%d", location, kind, t.Level)

	entities := make([]string, 0, len(t.Values))
	for e := range t.Values {
		entities = append(entities, e)
	}
	slices.Sort(entities)

	for _, e := range entities {
		series := t.Values[e]
		idx := make([]scale.Index, 0, len(series))
		for i := range series {
			idx = append(idx, i)
		}
		slices.SortFunc(idx, scale.Index.Compare)

		buf = fmt.Appendf(buf, "|%s", e)
		for _, i := range idx {
			buf = append(buf, ' ')
			buf = append(buf, i.String()...)
			buf = append(buf, '=')
			buf = strconv.AppendFloat(buf, series[i], 'g', -1, 64)
		}
	}
	return buf
}

// BuildPlanKey строит ключ кэша для результата решения
func BuildPlanKey(prefix, scenarioHash string) string {
	return prefix + scenarioHash
}

// BuildPlanKeyWithOptions строит ключ с учётом опций компилятора и решателя
func BuildPlanKeyWithOptions(prefix, scenarioHash, optionsHash string) string {
	if optionsHash == "" {
		return BuildPlanKey(prefix, scenarioHash)
	}
	return fmt.Sprintf("%s%s:%s", prefix, scenarioHash, optionsHash)
}

// QuickHash быстрый хеш для произвольных данных
func QuickHash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// ShortHash короткий хеш (16 символов)
func ShortHash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:8])
}
