package compiler

import (
	"energia/pkg/logger"
)

// constraints генерирует все включённые семейства. Семейства независимы
// друг от друга и ссылаются только на объявленные переменные.
func (b *builder) constraints() error {
	groups := []struct {
		name string
		gen  func()
		on   bool
	}{
		{"balance", b.balanceConstraints, true},
		{"resource", b.resourceConstraints, true},
		{"storage", b.storageConstraints, true},
		{"capacity", b.capacityConstraints, true},
		{"mode", b.modeConstraints, len(b.topo.MultiMode) > 0},
		{"transport", b.transportConstraints, b.transport},
		{"cost", b.costConstraints, true},
		{"land", b.landConstraints, b.land},
		{"material", b.materialConstraints, b.material},
		{"gwp", b.gwpConstraints, b.gwp},
		{"demand", b.demandConstraints, len(b.demands) > 0},
	}
	for _, g := range groups {
		if !g.on {
			continue
		}
		before := b.p.NumConstraints()
		g.gen()
		if b.err != nil {
			return b.err
		}
		logger.Log.Debug("Constraint group generated",
			"group", g.name,
			"constraints", b.p.NumConstraints()-before,
		)
	}
	return nil
}
