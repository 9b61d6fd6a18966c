package scenario

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ResourceCaps набор возможностей ресурса
type ResourceCaps uint8

const (
	Purchasable ResourceCaps = 1 << iota
	Sellable
	Storeable
	Transportable
	DemandBearing
)

var resourceCapNames = []struct {
	cap  ResourceCaps
	name string
}{
	{Purchasable, "purchasable"},
	{Sellable, "sellable"},
	{Storeable, "storeable"},
	{Transportable, "transportable"},
	{DemandBearing, "demand"},
}

// Has проверяет наличие всех флагов c
func (r ResourceCaps) Has(c ResourceCaps) bool {
	return r&c == c
}

// Names имена установленных флагов
func (r ResourceCaps) Names() []string {
	var out []string
	for _, n := range resourceCapNames {
		if r.Has(n.cap) {
			out = append(out, n.name)
		}
	}
	return out
}

// String возвращает флаги через "|"
func (r ResourceCaps) String() string {
	if r == 0 {
		return "none"
	}
	return strings.Join(r.Names(), "|")
}

// ParseResourceCap разбирает имя флага
func ParseResourceCap(name string) (ResourceCaps, error) {
	for _, n := range resourceCapNames {
		if n.name == name {
			return n.cap, nil
		}
	}
	return 0, fmt.Errorf("unknown resource capability %q", name)
}

// MarshalJSON сериализует флаги списком имён
func (r ResourceCaps) MarshalJSON() ([]byte, error) {
	names := r.Names()
	if names == nil {
		names = []string{}
	}
	return json.Marshal(names)
}

// UnmarshalJSON разбирает список имён
func (r *ResourceCaps) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	var caps ResourceCaps
	for _, name := range names {
		c, err := ParseResourceCap(name)
		if err != nil {
			return err
		}
		caps |= c
	}
	*r = caps
	return nil
}

// ProcessCaps возможности процесса, выводимые из его описания
type ProcessCaps uint8

const (
	VaryingCapacity ProcessCaps = 1 << iota
	CanFail
	MultiMode
	IsStorage
	NeedsMaterials
)

// Has проверяет наличие всех флагов c
func (p ProcessCaps) Has(c ProcessCaps) bool {
	return p&c == c
}

// Capabilities выводит набор возможностей процесса из флагов и формы рецепта
func (p *Process) Capabilities() ProcessCaps {
	var caps ProcessCaps
	if p.VaryingCapacity {
		caps |= VaryingCapacity
	}
	if p.FailureRate > 0 {
		caps |= CanFail
	}
	if len(p.Modes) > 0 {
		caps |= MultiMode
	}
	if p.Storage != "" {
		caps |= IsStorage
	}
	if len(p.Materials) > 0 {
		caps |= NeedsMaterials
	}
	return caps
}

// Recipes рецепты по режимам; для однорежимного процесса — один рецепт с пустым именем.
func (p *Process) Recipes() map[string]map[string]float64 {
	if len(p.Modes) > 0 {
		return p.Modes
	}
	return map[string]map[string]float64{"": p.Conversion}
}
