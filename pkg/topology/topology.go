// Package topology выводит из сценария все производные множества сущностей,
// которые нужны генераторам переменных и ограничений: классы ресурсов и
// процессов, отображения площадка -> процессы/ресурсы и доступность
// транспорта между парами площадок.
//
// Topology только читается после Assemble. Все множества отдаются
// отсортированными срезами, поэтому генерация по ним детерминирована.
package topology

import (
	"fmt"
	"maps"
	"slices"

	"energia/pkg/apperror"
	"energia/pkg/scenario"
)

// Pair упорядоченная пара площадок source -> sink
type Pair struct {
	Source string
	Sink   string
}

// Topology производные множества сценария
type Topology struct {
	Locations  []string
	Processes  []string
	Resources  []string
	Transports []string
	Materials  []string

	// Классы ресурсов
	Purchasable   []string
	Sellable      []string
	Storeable     []string
	Transportable []string
	Demand        []string

	// Классы процессов
	VaryingCapacity []string
	Failure         []string
	MultiMode       []string
	Storage         []string
	WithMaterials   []string

	// ProcessModes процесс -> отсортированные режимы (только многорежимные)
	ProcessModes map[string][]string

	// Sources/Sinks участники сети; для одной площадки пусты
	Sources []string
	Sinks   []string

	locationProcesses map[string]map[string]bool
	locationResources map[string]map[string]bool
	demandAt          map[string]map[string]bool
	transports        map[Pair][]string
	distance          map[Pair]float64
	storageFor        map[string]map[string][]string

	resourceCaps map[string]scenario.ResourceCaps
	processCaps  map[string]scenario.ProcessCaps

	resources  map[string]*scenario.Resource
	processes  map[string]*scenario.Process
	transport  map[string]*scenario.Transport
	materials  map[string]*scenario.Material
	locations  map[string]*scenario.Location
	multiSites bool
}

// Assemble строит топологию. Любая несогласованность ссылок сценария
// возвращается как InconsistentTopology.
func Assemble(s *scenario.Scenario) (*Topology, error) {
	if s == nil {
		return nil, apperror.ErrNilScenario
	}
	t := &Topology{
		ProcessModes:      make(map[string][]string),
		locationProcesses: make(map[string]map[string]bool),
		locationResources: make(map[string]map[string]bool),
		demandAt:          make(map[string]map[string]bool),
		transports:        make(map[Pair][]string),
		distance:          make(map[Pair]float64),
		storageFor:        make(map[string]map[string][]string),
		resourceCaps:      make(map[string]scenario.ResourceCaps),
		processCaps:       make(map[string]scenario.ProcessCaps),
		resources:         make(map[string]*scenario.Resource),
		processes:         make(map[string]*scenario.Process),
		transport:         make(map[string]*scenario.Transport),
		materials:         make(map[string]*scenario.Material),
		locations:         make(map[string]*scenario.Location),
		multiSites:        s.IsMultiLocation(),
	}

	errs := apperror.NewValidationErrors()
	inconsistent := func(field, format string, args ...any) {
		errs.AddErrorWithField(apperror.CodeInconsistentTopology, fmt.Sprintf(format, args...), field)
	}

	if len(s.Locations) == 0 {
		inconsistent("locations", "scenario has no locations")
		return nil, errs
	}

	for i := range s.Resources {
		r := &s.Resources[i]
		if _, dup := t.resources[r.Name]; dup {
			inconsistent(fmt.Sprintf("resources[%d]", i), "duplicate resource %q", r.Name)
			continue
		}
		t.resources[r.Name] = r
		t.resourceCaps[r.Name] = r.Capabilities
	}
	for i := range s.Materials {
		m := &s.Materials[i]
		if _, dup := t.materials[m.Name]; dup {
			inconsistent(fmt.Sprintf("materials[%d]", i), "duplicate material %q", m.Name)
			continue
		}
		t.materials[m.Name] = m
	}

	for i := range s.Processes {
		p := &s.Processes[i]
		field := fmt.Sprintf("processes[%d]", i)
		if _, dup := t.processes[p.Name]; dup {
			inconsistent(field, "duplicate process %q", p.Name)
			continue
		}
		t.processes[p.Name] = p
		t.processCaps[p.Name] = p.Capabilities()

		for mode, recipe := range p.Recipes() {
			for res := range recipe {
				if _, ok := t.resources[res]; !ok {
					if mode == "" {
						inconsistent(field+".conversion", "process %q references undeclared resource %q", p.Name, res)
					} else {
						inconsistent(field+".modes."+mode, "process %q mode %q references undeclared resource %q", p.Name, mode, res)
					}
				}
			}
		}
		if len(p.Modes) > 0 {
			t.ProcessModes[p.Name] = slices.Sorted(maps.Keys(p.Modes))
		}
		for mat := range p.Materials {
			if _, ok := t.materials[mat]; !ok {
				inconsistent(field+".materials", "process %q references undeclared material %q", p.Name, mat)
			}
		}
		if p.Storage != "" {
			caps, ok := t.resourceCaps[p.Storage]
			switch {
			case !ok:
				inconsistent(field+".storage", "process %q stores undeclared resource %q", p.Name, p.Storage)
			case !caps.Has(scenario.Storeable):
				inconsistent(field+".storage", "process %q stores non-storeable resource %q", p.Name, p.Storage)
			}
		}
	}

	for i := range s.Transports {
		tr := &s.Transports[i]
		field := fmt.Sprintf("transports[%d]", i)
		if _, dup := t.transport[tr.Name]; dup {
			inconsistent(field, "duplicate transport %q", tr.Name)
			continue
		}
		t.transport[tr.Name] = tr
		for _, res := range tr.Resources {
			caps, ok := t.resourceCaps[res]
			switch {
			case !ok:
				inconsistent(field+".resources", "transport %q moves undeclared resource %q", tr.Name, res)
			case !caps.Has(scenario.Transportable):
				inconsistent(field+".resources", "transport %q moves non-transportable resource %q", tr.Name, res)
			}
		}
	}

	for i := range s.Locations {
		loc := &s.Locations[i]
		field := fmt.Sprintf("locations[%d]", i)
		if _, dup := t.locations[loc.Name]; dup {
			inconsistent(field, "duplicate location %q", loc.Name)
			continue
		}
		t.locations[loc.Name] = loc
		procs := make(map[string]bool)
		res := make(map[string]bool)
		for j, pname := range loc.Processes {
			p, ok := t.processes[pname]
			if !ok {
				inconsistent(fmt.Sprintf("%s.processes[%d]", field, j), "location %q names undeclared process %q", loc.Name, pname)
				continue
			}
			procs[pname] = true
			for _, recipe := range p.Recipes() {
				for r := range recipe {
					res[r] = true
				}
			}
			if p.Storage != "" {
				res[p.Storage] = true
				if t.storageFor[loc.Name] == nil {
					t.storageFor[loc.Name] = make(map[string][]string)
				}
				t.storageFor[loc.Name][p.Storage] = append(t.storageFor[loc.Name][p.Storage], pname)
			}
		}
		for pname := range loc.FixedCapacity {
			if !procs[pname] {
				inconsistent(field+".fixed_capacity", "location %q pins capacity of process %q it does not host", loc.Name, pname)
			}
		}
		t.locationProcesses[loc.Name] = procs
		t.locationResources[loc.Name] = res
	}

	for i, d := range s.Demands {
		field := fmt.Sprintf("demands[%d]", i)
		if _, ok := t.locations[d.Location]; !ok {
			inconsistent(field+".location", "demand at undeclared location %q", d.Location)
			continue
		}
		caps, ok := t.resourceCaps[d.Resource]
		if !ok {
			inconsistent(field+".resource", "demand for undeclared resource %q", d.Resource)
			continue
		}
		if !caps.Has(scenario.DemandBearing) {
			inconsistent(field+".resource", "resource %q has no demand capability", d.Resource)
			continue
		}
		if t.demandAt[d.Location] == nil {
			t.demandAt[d.Location] = make(map[string]bool)
		}
		t.demandAt[d.Location][d.Resource] = true
		t.locationResources[d.Location][d.Resource] = true
	}

	if t.multiSites {
		t.assembleNetwork(s.Network, inconsistent)
	}

	if errs.HasErrors() {
		return nil, errs
	}

	t.Locations = slices.Sorted(maps.Keys(t.locations))
	t.Processes = slices.Sorted(maps.Keys(t.processes))
	t.Resources = slices.Sorted(maps.Keys(t.resources))
	t.Transports = slices.Sorted(maps.Keys(t.transport))
	t.Materials = slices.Sorted(maps.Keys(t.materials))

	for _, name := range t.Resources {
		caps := t.resourceCaps[name]
		if caps.Has(scenario.Purchasable) {
			t.Purchasable = append(t.Purchasable, name)
		}
		if caps.Has(scenario.Sellable) {
			t.Sellable = append(t.Sellable, name)
		}
		if caps.Has(scenario.Storeable) {
			t.Storeable = append(t.Storeable, name)
		}
		if caps.Has(scenario.Transportable) {
			t.Transportable = append(t.Transportable, name)
		}
		if caps.Has(scenario.DemandBearing) {
			t.Demand = append(t.Demand, name)
		}
	}
	for _, name := range t.Processes {
		caps := t.processCaps[name]
		if caps.Has(scenario.VaryingCapacity) {
			t.VaryingCapacity = append(t.VaryingCapacity, name)
		}
		if caps.Has(scenario.CanFail) {
			t.Failure = append(t.Failure, name)
		}
		if caps.Has(scenario.MultiMode) {
			t.MultiMode = append(t.MultiMode, name)
		}
		if caps.Has(scenario.IsStorage) {
			t.Storage = append(t.Storage, name)
		}
		if caps.Has(scenario.NeedsMaterials) {
			t.WithMaterials = append(t.WithMaterials, name)
		}
	}
	for loc := range t.storageFor {
		for res := range t.storageFor[loc] {
			slices.Sort(t.storageFor[loc][res])
		}
	}

	return t, nil
}

func (t *Topology) assembleNetwork(n *scenario.Network, inconsistent func(field, format string, args ...any)) {
	if n == nil {
		inconsistent("network", "multi-location scenario needs a network")
		return
	}

	sources := make(map[string]bool)
	sinks := make(map[string]bool)
	for i, name := range n.Sources {
		if _, ok := t.locations[name]; !ok {
			inconsistent(fmt.Sprintf("network.sources[%d]", i), "source %q is not a location", name)
			continue
		}
		sources[name] = true
	}
	for i, name := range n.Sinks {
		if _, ok := t.locations[name]; !ok {
			inconsistent(fmt.Sprintf("network.sinks[%d]", i), "sink %q is not a location", name)
			continue
		}
		sinks[name] = true
	}

	for i, link := range n.Links {
		field := fmt.Sprintf("network.links[%d]", i)
		if !sources[link.Source] {
			inconsistent(field+".source", "link source %q is not a network source", link.Source)
			continue
		}
		if !sinks[link.Sink] {
			inconsistent(field+".sink", "link sink %q is not a network sink", link.Sink)
			continue
		}
		if link.Source == link.Sink {
			inconsistent(field, "link %q -> %q connects a location to itself", link.Source, link.Sink)
			continue
		}
		pair := Pair{Source: link.Source, Sink: link.Sink}
		if _, dup := t.transports[pair]; dup {
			inconsistent(field, "duplicate link %q -> %q", link.Source, link.Sink)
			continue
		}
		modes := make([]string, 0, len(link.Transports))
		for _, tr := range link.Transports {
			if _, ok := t.transport[tr]; !ok {
				inconsistent(field+".transports", "link uses undeclared transport %q", tr)
				continue
			}
			modes = append(modes, tr)
		}
		slices.Sort(modes)
		t.transports[pair] = slices.Compact(modes)
		t.distance[pair] = link.Distance
	}

	t.Sources = slices.Sorted(maps.Keys(sources))
	t.Sinks = slices.Sorted(maps.Keys(sinks))
}

// MultiLocation true, если сценарий содержит сеть
func (t *Topology) MultiLocation() bool {
	return t.multiSites
}

// HasProcess процесс размещён в площадке
func (t *Topology) HasProcess(location, process string) bool {
	return t.locationProcesses[location][process]
}

// LocationProcesses отсортированные процессы площадки
func (t *Topology) LocationProcesses(location string) []string {
	return slices.Sorted(maps.Keys(t.locationProcesses[location]))
}

// HasResource ресурс доступен в площадке (рецепты процессов и спрос)
func (t *Topology) HasResource(location, resource string) bool {
	return t.locationResources[location][resource]
}

// LocationResources отсортированные ресурсы площадки
func (t *Topology) LocationResources(location string) []string {
	return slices.Sorted(maps.Keys(t.locationResources[location]))
}

// HasDemand в площадке задан спрос на ресурс
func (t *Topology) HasDemand(location, resource string) bool {
	return t.demandAt[location][resource]
}

// DemandLocations площадки, где проверяется спрос: стоки сети или
// единственная площадка.
func (t *Topology) DemandLocations() []string {
	if t.multiSites {
		return t.Sinks
	}
	return t.Locations
}

// TransportModes допустимые виды транспорта для пары (пустой срез, если связи нет)
func (t *Topology) TransportModes(source, sink string) []string {
	return t.transports[Pair{Source: source, Sink: sink}]
}

// TransportAvailable транспорт допустим для пары и перевозит ресурс
func (t *Topology) TransportAvailable(source, sink, transport, resource string) bool {
	if !slices.Contains(t.TransportModes(source, sink), transport) {
		return false
	}
	tr := t.transport[transport]
	return tr != nil && slices.Contains(tr.Resources, resource)
}

// Distance расстояние по связи
func (t *Topology) Distance(source, sink string) float64 {
	return t.distance[Pair{Source: source, Sink: sink}]
}

// StorageProcesses накопители ресурса в площадке
func (t *Topology) StorageProcesses(location, resource string) []string {
	return t.storageFor[location][resource]
}

// ResourceCaps возможности ресурса
func (t *Topology) ResourceCaps(name string) scenario.ResourceCaps {
	return t.resourceCaps[name]
}

// ProcessCaps возможности процесса
func (t *Topology) ProcessCaps(name string) scenario.ProcessCaps {
	return t.processCaps[name]
}

// Resource описание ресурса
func (t *Topology) Resource(name string) *scenario.Resource {
	return t.resources[name]
}

// Process описание процесса
func (t *Topology) Process(name string) *scenario.Process {
	return t.processes[name]
}

// Transport описание транспорта
func (t *Topology) Transport(name string) *scenario.Transport {
	return t.transport[name]
}

// Material описание материала
func (t *Topology) Material(name string) *scenario.Material {
	return t.materials[name]
}

// Location описание площадки
func (t *Topology) Location(name string) *scenario.Location {
	return t.locations[name]
}

// IsSource площадка — источник сети
func (t *Topology) IsSource(location string) bool {
	_, ok := slices.BinarySearch(t.Sources, location)
	return ok
}

// IsSink площадка — сток сети
func (t *Topology) IsSink(location string) bool {
	_, ok := slices.BinarySearch(t.Sinks, location)
	return ok
}
