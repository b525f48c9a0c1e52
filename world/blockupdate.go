package world

import "github.com/blockworld-dev/server/content"

// neighbourUpdate is one FIFO entry: a target position and the direction it
// was notified from.
type neighbourUpdate struct {
	pos      Pos
	fromDir  Direction
}

// UpdateContext is the bounded FIFO of pending neighbour updates.
// Pushing when full is silently dropped: an acknowledged
// correctness-vs-availability tradeoff that must not corrupt invariants.
type UpdateContext struct {
	fifo    []neighbourUpdate
	maxSize int
	dropped uint64
}

// NewUpdateContext creates a FIFO bounded at maxSize entries (typically 512).
func NewUpdateContext(maxSize int) *UpdateContext {
	if maxSize <= 0 {
		maxSize = 512
	}
	return &UpdateContext{maxSize: maxSize}
}

// Dropped returns the number of updates silently dropped due to FIFO
// overflow, for observability.
func (c *UpdateContext) Dropped() uint64 { return c.dropped }

func (c *UpdateContext) push(pos Pos, from Direction) {
	if len(c.fifo) >= c.maxSize {
		c.dropped++
		return
	}
	c.fifo = append(c.fifo, neighbourUpdate{pos: pos, fromDir: from})
}

// reset clears the FIFO at tick end without dropping the dropped counter.
func (c *UpdateContext) reset() { c.fifo = c.fifo[:0] }

// PushDirectNeighbourUpdates enqueues all 6 axis neighbours with fromDir set
// to the axis from the neighbour back to pos, in a fixed deterministic order.
func PushDirectNeighbourUpdates(ctx *UpdateContext, pos Pos) {
	for _, d := range DirectNeighbourOrder {
		n := pos.Side(d)
		ctx.push(n, d.Opposite())
	}
}

// BehaviorFunc implements one aspect of a block-state's response to a
// neighbour change or scheduled update. It may mutate the block at pos (via idx/tick) and push
// further neighbour updates onto ctx.
type BehaviorFunc func(env *BehaviorEnv)

// BehaviorEnv bundles everything a BehaviorFunc needs, keeping dispatch as
// a table of (behaviorKind -> handler) pairs rather than a switch over an
// enum.
type BehaviorEnv struct {
	Idx         *Index
	Tick        *TickState
	Ctx         *UpdateContext
	Ring        *ScheduledRing
	CurrentTick int64
	Pos         Pos
	FromDir     Direction
	IsDelayed   bool
	CurState    content.EntryID
	FromState   content.EntryID
}

// BehaviorTable maps a behavior tag (declared per-block-state in the content
// registry) to its handler. Registration is compile-time data.
type BehaviorTable map[string]BehaviorFunc

// NewDefaultBehaviorTable returns the built-in behaviors this core ships with.
func NewDefaultBehaviorTable() BehaviorTable {
	return BehaviorTable{
		"support_below":   behaviorSupportBelow,
		"support_pole":    behaviorSupportPole,
		"delayed_break":   behaviorDelayedBreak,
		"shape_connect":   behaviorShapeConnect,
		"paired_half":     behaviorPairedHalf,
		"redstone_wire":   behaviorRedstoneWire,
	}
}

// UpdateBlock dispatches every behavior declared for the block-state at
// pos, in registration order. Behaviors run additively: one matching state
// change does not stop later behaviors from also running.
func UpdateBlock(env *BehaviorEnv, table BehaviorTable) {
	env.CurState = WorldGetBlockState(env.Idx, env.Pos)
	env.FromState = WorldGetBlockState(env.Idx, env.Pos.Side(env.FromDir.Opposite()))
	info := env.Idx.blocks.State(env.CurState)
	for _, tag := range info.Behaviors {
		if fn, ok := table[tag]; ok {
			fn(env)
		}
	}
}

// PropagateBlockUpdates drains the FIFO, calling UpdateBlock for each entry.
// New entries pushed by a behavior during this drain are processed within
// the same call, giving cascading updates same-tick visibility.
func PropagateBlockUpdates(idx *Index, tick *TickState, ctx *UpdateContext, ring *ScheduledRing, currentTick int64, table BehaviorTable) {
	for i := 0; i < len(ctx.fifo); i++ {
		u := ctx.fifo[i]
		env := &BehaviorEnv{Idx: idx, Tick: tick, Ctx: ctx, Ring: ring, CurrentTick: currentTick, Pos: u.pos, FromDir: u.fromDir}
		UpdateBlock(env, table)
	}
	ctx.reset()
}

func breakToAir(env *BehaviorEnv) {
	WorldSetBlockState(env.Idx, env.Tick, env.Pos, content.AirState)
	PushDirectNeighbourUpdates(env.Ctx, env.Pos)
}

// behaviorSupportBelow implements the generic "requires a full supporting
// face below" check.
func behaviorSupportBelow(env *BehaviorEnv) {
	below := env.Idx.blocks.State(WorldGetBlockState(env.Idx, env.Pos.Side(DirNegY)))
	if below.FullFaces&(1<<uint8(DirPosY)) == 0 {
		breakToAir(env)
	}
}

// behaviorSupportPole implements the "pole face" support check used by
// torches and similar.
func behaviorSupportPole(env *BehaviorEnv) {
	below := env.Idx.blocks.State(WorldGetBlockState(env.Idx, env.Pos.Side(DirNegY)))
	if below.PoleFaces&(1<<uint8(DirPosY)) == 0 && below.FullFaces&(1<<uint8(DirPosY)) == 0 {
		breakToAir(env)
	}
}

// behaviorDelayedBreak handles the scheduled/immediate tie-break: if the
// block cannot survive and is_delayed is false, schedule a 1-tick update
// instead of breaking immediately; if is_delayed is true, break now.
func behaviorDelayedBreak(env *BehaviorEnv) {
	below := env.Idx.blocks.State(WorldGetBlockState(env.Idx, env.Pos.Side(DirNegY)))
	survives := below.FullFaces&(1<<uint8(DirPosY)) != 0 || below.WireConnect
	if survives {
		return
	}
	if env.IsDelayed {
		breakToAir(env)
		return
	}
	if env.Ring != nil {
		env.Ring.Schedule(env.CurrentTick, env.Pos, env.FromDir, 1)
	}
}

// shapeConnectDirs lists the 4 horizontal neighbours a shape-connect block
// tracks, paired with the property name each one writes.
var shapeConnectDirs = [4]struct {
	dir  Direction
	prop string
}{
	{DirNegZ, "north"},
	{DirPosZ, "south"},
	{DirPosX, "east"},
	{DirNegX, "west"},
}

// canShapeConnect is the uniform connection predicate: a neighbour is
// connectable if it's a full conductor, another wire-connectable block, or
// another state of the same type (fence-to-fence, pane-to-pane, ...).
func canShapeConnect(self, neighbour content.BlockState) bool {
	return neighbour.Conductor || neighbour.WireConnect || neighbour.TypeName == self.TypeName
}

// behaviorShapeConnect recomputes a connection-shaped block's properties
// (stairs/fences/panes/walls/gates) from its 4 horizontal neighbours using a
// uniform connection predicate, and writes the resolved state if it
// differs from what's stored, pushing further neighbour updates.
func behaviorShapeConnect(env *BehaviorEnv) {
	self := env.Idx.blocks.State(env.CurState)
	props := make(map[string]string, len(shapeConnectDirs))
	for _, sc := range shapeConnectDirs {
		n := env.Idx.blocks.State(WorldGetBlockState(env.Idx, env.Pos.Side(sc.dir)))
		if canShapeConnect(self, n) {
			props[sc.prop] = "true"
		} else {
			props[sc.prop] = "false"
		}
	}
	newState, ok := env.Idx.blocks.ResolveState(self.TypeName, props)
	if !ok || newState == env.CurState {
		return
	}
	WorldSetBlockState(env.Idx, env.Tick, env.Pos, newState)
	PushDirectNeighbourUpdates(env.Ctx, env.Pos)
}

// mateDirByName maps a state's declared "mate_dir" property to the
// direction its paired half sits in -- "up"/"down" for vertically-paired
// blocks (doors), "north"/"south"/"east"/"west" for horizontally-paired
// ones (beds).
var mateDirByName = map[string]Direction{
	"up":    DirPosY,
	"down":  DirNegY,
	"north": DirNegZ,
	"south": DirPosZ,
	"east":  DirPosX,
	"west":  DirNegX,
}

// behaviorPairedHalf enforces the beds/doors paired-block contract: if the
// mate at the declared offset is gone, this half breaks too. Either half
// can declare mate_dir, so either losing its mate breaks regardless of
// which half got the update.
func behaviorPairedHalf(env *BehaviorEnv) {
	self := env.Idx.blocks.State(env.CurState)
	name, _ := self.Properties["mate_dir"].(string)
	mateDir, ok := mateDirByName[name]
	if !ok || env.FromDir != mateDir {
		return
	}
	mateState := WorldGetBlockState(env.Idx, env.Pos.Side(mateDir))
	if mateState == content.AirState {
		breakToAir(env)
	}
}

// behaviorRedstoneWire recomputes the wire's environment, and if the
// resulting power differs from what's stored, writes it and kicks off the
// appropriate propagation direction.
func behaviorRedstoneWire(env *BehaviorEnv) {
	w := &wireAdapter{idx: env.Idx, tick: env.Tick, world: env.Pos.World, ctx: env.Ctx}
	current := w.Power(toWirePos(env.Pos))
	wp := toWirePos(env.Pos)
	wantPower := w.Environment(wp).IncomingPower
	if wantPower > current {
		OnWireSourceChanged(env.Idx, env.Tick, env.Ctx, env.Pos, true)
	} else if wantPower < current {
		OnWireSourceChanged(env.Idx, env.Tick, env.Ctx, env.Pos, false)
	}
}
