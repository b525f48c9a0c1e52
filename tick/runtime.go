package tick

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/blockworld-dev/server/taskqueue"
	"github.com/blockworld-dev/server/view"
	"github.com/blockworld-dev/server/world"
	"github.com/blockworld-dev/server/world/entity"
)

// Input is one queued client action (movement intent, placement,
// interaction) applied at the start of a tick, ahead of entity motion.
type Input func(*Runtime)

// Runtime bundles one world's per-tick state: the chunk index, the
// block-update and scheduling machinery, the entity pool and motion
// solver, and the per-player chunk views that turn world deltas into
// outbound packets. A Scheduler calls RunTick once per tick; Runtime does
// not know or care how it is scheduled.
type Runtime struct {
	Log       *slog.Logger
	Idx       *world.Index
	Ring      *world.ScheduledRing
	Ctx       *world.UpdateContext
	Behaviors world.BehaviorTable
	Entities  *entity.Pool
	Solver    *entity.Solver
	Tasks     *taskqueue.Queue

	// Views holds one chunk-streaming cache per connected player, keyed by
	// an opaque player ID the caller assigns.
	Views map[uint32]*view.View
	// PlayerChunks is refreshed by the caller (from player position) before
	// each RunTick; Runtime only reads it.
	PlayerChunks map[uint32]world.ChunkPos

	State *world.TickState

	tickNum       int64
	input         []Input
	sessions      map[uint32]uuid.UUID
	nextSessionID uint32
}

// NewRuntime builds a Runtime backed by idx. tasks may be nil; Runtime only
// stores it and submits nothing to it itself. Solver is left nil, and
// RunTick skips entity motion until the caller sets one.
func NewRuntime(log *slog.Logger, idx *world.Index, tasks *taskqueue.Queue) *Runtime {
	if log == nil {
		log = slog.Default()
	}
	return &Runtime{
		Log:          log,
		Idx:          idx,
		Ring:         world.NewScheduledRing(log, 4096),
		Ctx:          world.NewUpdateContext(512),
		Behaviors:    world.NewDefaultBehaviorTable(),
		Entities:     entity.NewPool(),
		Tasks:        tasks,
		Views:        make(map[uint32]*view.View),
		PlayerChunks: make(map[uint32]world.ChunkPos),
		State:        world.NewTickState(),
	}
}

// WithScheduledSpill attaches a durable overflow store to the runtime's
// scheduled-update ring, so a sustained scheduling storm spills to disk
// rather than growing heap usage without bound.
func (rt *Runtime) WithScheduledSpill(spill *world.OverflowSpill) *Runtime {
	rt.Ring.WithSpill(spill)
	return rt
}

// QueueInput appends one client action to run at the start of the next
// tick, ahead of entity motion. Safe to call from the network
// collaborator's goroutines only if the caller serializes delivery onto
// the tick thread itself; Runtime applies no locking of its own.
func (rt *Runtime) QueueInput(fn Input) {
	rt.input = append(rt.input, fn)
}

// RunTick performs one tick's control flow:
//  1. drain due scheduled block updates
//  2. apply queued player input
//  3. advance tracked entities through the swept motion solver
//  4. produce each connected player's outbound packets from their view
//  5. reset per-tick change tracking
//  6. drain the chunk index's bounded lifecycle queue
//
// tickStart is the tick's scheduled start time (see Scheduler.Run), used
// only to bound the chunk-lifecycle drain's wall-clock budget.
func (rt *Runtime) RunTick(tickStart time.Time) map[uint32][]view.Packet {
	rt.tickNum++

	rt.Ring.Drain(rt.Idx, rt.State, rt.Ctx, rt.Behaviors, rt.tickNum)

	input := rt.input
	rt.input = nil
	for _, fn := range input {
		fn(rt)
	}
	world.PropagateBlockUpdates(rt.Idx, rt.State, rt.Ctx, rt.Ring, rt.tickNum, rt.Behaviors)

	if rt.Solver != nil {
		rt.Entities.Each(func(e *entity.Entity) { rt.Solver.Tick(e) })
	}

	out := make(map[uint32][]view.Packet, len(rt.Views))
	for id, v := range rt.Views {
		chunk, ok := rt.PlayerChunks[id]
		if !ok {
			continue
		}
		out[id] = v.Tick(rt.State, chunk)
	}

	rt.Entities.ResetChangedData()
	rt.State.Reset(rt.tickNum)

	rt.Idx.TickChunkLoader(tickStart)

	return out
}

// Tick returns the number of the most recently completed tick.
func (rt *Runtime) Tick() int64 { return rt.tickNum }
