// Package content holds the read-only registries supplied to the engine at
// process start: block, item, entity-type and related kinds. The engine
// never mutates these tables; they are loaded once from bundled YAML
// fixtures and shared across every worker goroutine.
package content

import (
	"fmt"

	"gopkg.in/yaml.v2"
)

// EntryID is the stable integer identity of a registry entry, equal to its
// position in the registry's ordered entry list.
type EntryID int32

// Entry is one named member of a registry.
type Entry struct {
	Name string  `yaml:"name"`
	ID   EntryID `yaml:"-"`
}

// Registry is an ordered list of entries plus named tag groups, the shared
// shape behind the block/item/entity-type/fluid/biome/... registries.
type Registry struct {
	kind    string
	entries []Entry
	byName  map[string]EntryID
	tags    map[string]map[EntryID]struct{}
}

func newRegistry(kind string, names []string) *Registry {
	r := &Registry{
		kind:   kind,
		byName: make(map[string]EntryID, len(names)),
		tags:   make(map[string]map[EntryID]struct{}),
	}
	for i, n := range names {
		id := EntryID(i)
		r.entries = append(r.entries, Entry{Name: n, ID: id})
		r.byName[n] = id
	}
	return r
}

// ID resolves a resource-location string to its entry ID.
func (r *Registry) ID(name string) (EntryID, bool) {
	id, ok := r.byName[name]
	return id, ok
}

// Name returns the resource-location string for an entry ID.
func (r *Registry) Name(id EntryID) (string, bool) {
	if int(id) < 0 || int(id) >= len(r.entries) {
		return "", false
	}
	return r.entries[id].Name, true
}

// Len returns the number of entries in the registry.
func (r *Registry) Len() int { return len(r.entries) }

// Tag returns the set of entry IDs carrying the named tag.
func (r *Registry) Tag(name string) map[EntryID]struct{} {
	return r.tags[name]
}

// HasTag reports whether id carries the named tag.
func (r *Registry) HasTag(id EntryID, name string) bool {
	set, ok := r.tags[name]
	if !ok {
		return false
	}
	_, ok = set[id]
	return ok
}

func (r *Registry) addTag(name string, ids ...EntryID) {
	set, ok := r.tags[name]
	if !ok {
		set = make(map[EntryID]struct{}, len(ids))
		r.tags[name] = set
	}
	for _, id := range ids {
		set[id] = struct{}{}
	}
}

// blockFixture is the on-disk shape of the bundled block registry YAML.
type blockFixture struct {
	States []struct {
		Name       string         `yaml:"name"`
		Properties map[string]any `yaml:"properties"`
		Light      uint8          `yaml:"light"`
		Opacity    uint8          `yaml:"opacity"`
		FullFaces  uint8          `yaml:"full_faces"`
		PoleFaces  uint8          `yaml:"pole_faces"`
		Behaviors  []string       `yaml:"behaviors"`
		IsWire     bool           `yaml:"is_wire"`
		Conductor  bool           `yaml:"conductor"`
		PowerOut   uint8          `yaml:"power_out"` // emitted redstone power, 0 if not a source
		WireConnect bool          `yaml:"wire_connect"`
		Boxes         [][6]float64 `yaml:"boxes"` // minX,minY,minZ,maxX,maxY,maxZ per collision box
		Friction      float64      `yaml:"friction"`
		CollisionKind string       `yaml:"collision_kind"` // "", "slime_block", "bed", "water", "lava", "bamboo", "moving_piston", "scaffolding", "powder_snow"
	} `yaml:"states"`
	Tags map[string][]string `yaml:"tags"`
}

// BlockState is the cached, resolved shape of a single block-state: its type
// ID, property values, and the geometric/behavioral tables the block-update
// and lighting engines consume. All fields are read-only after load.
type BlockState struct {
	ID         EntryID
	TypeName   string
	Properties map[string]any
	Light      uint8 // emitted light level, 0-15
	Opacity    uint8 // light reduction per block crossed, 0-15 (15 == fully opaque)
	FullFaces  uint8 // bitmask, bit i set => face i is a full occluding face
	PoleFaces  uint8 // bitmask, bit i set => face i has a supporting pole stub
	Behaviors  []string

	IsWire      bool  // true for redstone-wire states
	Conductor   bool  // true for full-cube conductors (blocks diagonal wire propagation)
	PowerOut    uint8 // emitted redstone power for source blocks (lever/button/torch/etc.), 0 otherwise
	WireConnect bool  // true if a wire may connect horizontally into this block

	Boxes         [][6]float64 // collision boxes, local to the block's unit cell; empty means no collision
	Friction      float64      // ground friction multiplier applied to entities standing on this block
	CollisionKind string       // non-empty selects type-specific collision handling in the motion solver
}

// AirState is the reserved block-state index for default air. VoidAir and
// CaveAir resolve to the same default in this design.
const AirState EntryID = 0

// BlockRegistry is the content collaborator's block table: registry entries
// plus per-block-state cached geometry/behavior data, addressed directly by
// EntryID (the block-state index).
type BlockRegistry struct {
	*Registry
	states []BlockState
}

// State returns the cached BlockState for a block-state index. Unknown
// indices resolve to air, matching the "never fails" contract for reads.
func (b *BlockRegistry) State(id EntryID) BlockState {
	if int(id) < 0 || int(id) >= len(b.states) {
		return b.states[AirState]
	}
	return b.states[id]
}

// TotalBlockStateCount returns the number of distinct block-state indices.
func (b *BlockRegistry) TotalBlockStateCount() int { return len(b.states) }

// ResolveState maps a region-file palette entry (a resource location plus
// its declared property values) to the matching block-state index. Each
// fixture row already names a complete, fully-resolved state rather than a
// type-plus-property-stride pair, so resolution is an exact match against
// the type's recorded property values; a declared property value that
// disagrees with every known state of that type falls back to the type's
// first (default) state, mirroring the "fall back to the block's default
// value on unknown value" rule.
func (b *BlockRegistry) ResolveState(typeName string, properties map[string]string) (EntryID, bool) {
	var fallback (EntryID)
	haveFallback := false
	for id, st := range b.states {
		if st.TypeName != typeName {
			continue
		}
		if !haveFallback {
			fallback, haveFallback = EntryID(id), true
		}
		if propertiesMatch(st.Properties, properties) {
			return EntryID(id), true
		}
	}
	if haveFallback {
		return fallback, true
	}
	return AirState, false
}

func propertiesMatch(have map[string]any, want map[string]string) bool {
	for k, v := range want {
		hv, ok := have[k]
		if !ok {
			continue // property not modelled by this fixture; ignore
		}
		if fmt.Sprintf("%v", hv) != v {
			return false
		}
	}
	return true
}

// LoadBlockRegistry parses a bundled YAML fixture into a BlockRegistry. The
// zero-index entry must always be air; callers supply fixtures where
// states[0].name == "air".
func LoadBlockRegistry(data []byte) (*BlockRegistry, error) {
	var fx blockFixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("content: parse block registry: %w", err)
	}
	if len(fx.States) == 0 || fx.States[0].Name != "air" {
		return nil, fmt.Errorf("content: block registry must declare air as state 0")
	}
	names := make([]string, len(fx.States))
	states := make([]BlockState, len(fx.States))
	for i, s := range fx.States {
		names[i] = s.Name
		states[i] = BlockState{
			ID:         EntryID(i),
			TypeName:   s.Name,
			Properties: s.Properties,
			Light:      s.Light,
			Opacity:    s.Opacity,
			FullFaces:  s.FullFaces,
			PoleFaces:  s.PoleFaces,
			Behaviors:  s.Behaviors,
			IsWire:      s.IsWire,
			Conductor:   s.Conductor,
			PowerOut:    s.PowerOut,
			WireConnect: s.WireConnect,
			Boxes:         s.Boxes,
			Friction:      s.Friction,
			CollisionKind: s.CollisionKind,
		}
	}
	reg := newRegistry("block", names)
	byName := make(map[string][]EntryID, len(names))
	for i, n := range names {
		byName[n] = append(byName[n], EntryID(i))
	}
	for tag, members := range fx.Tags {
		var ids []EntryID
		for _, m := range members {
			ids = append(ids, byName[m]...)
		}
		reg.addTag(tag, ids...)
	}
	return &BlockRegistry{Registry: reg, states: states}, nil
}
