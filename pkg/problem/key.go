package problem

import (
	"fmt"
	"strings"

	"energia/pkg/scale"
)

// MaxArity is the longest entity tuple a key can carry
// (Trans_exp is indexed by source, sink, resource and transport).
const MaxArity = 4

// Entities is a comparable tuple of entity names.
type Entities struct {
	names [MaxArity]string
	n     uint8
}

// E builds an entity tuple. It panics on more than MaxArity names.
func E(names ...string) Entities {
	if len(names) > MaxArity {
		panic(fmt.Sprintf("problem: entity tuple of %d exceeds %d", len(names), MaxArity))
	}
	var e Entities
	copy(e.names[:], names)
	e.n = uint8(len(names))
	return e
}

// Len returns the tuple arity.
func (e Entities) Len() int { return int(e.n) }

// At returns the i-th name.
func (e Entities) At(i int) string {
	if i < 0 || i >= int(e.n) {
		panic(fmt.Sprintf("problem: entity %d out of range for arity %d", i, e.n))
	}
	return e.names[i]
}

// Slice returns a copy of the names.
func (e Entities) Slice() []string {
	out := make([]string, e.n)
	copy(out, e.names[:e.n])
	return out
}

// String renders the tuple as "a,b,c".
func (e Entities) String() string {
	return strings.Join(e.names[:e.n], ",")
}

// Key identifies a variable (Category is the variable category) or a
// constraint (Category is the constraint family). Keys are comparable and
// stable across compilations of the same scenario.
type Key struct {
	Category string
	Entities Entities
	Index    scale.Index
}

// K is shorthand for Key{category, E(names...), idx}.
func K(category string, idx scale.Index, names ...string) Key {
	return Key{Category: category, Entities: E(names...), Index: idx}
}

// String renders the key as "P[site,plant](0,1)".
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(k.Category)
	b.WriteByte('[')
	b.WriteString(k.Entities.String())
	b.WriteByte(']')
	if !k.Index.IsZero() {
		b.WriteString(k.Index.String())
	}
	return b.String()
}

// Less orders keys by category, entities and then scale index.
func (k Key) Less(o Key) bool {
	if k.Category != o.Category {
		return k.Category < o.Category
	}
	n := min(k.Entities.n, o.Entities.n)
	for i := 0; i < int(n); i++ {
		if k.Entities.names[i] != o.Entities.names[i] {
			return k.Entities.names[i] < o.Entities.names[i]
		}
	}
	if k.Entities.n != o.Entities.n {
		return k.Entities.n < o.Entities.n
	}
	return k.Index.Less(o.Index)
}
