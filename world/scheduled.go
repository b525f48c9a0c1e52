package world

import "log/slog"

// scheduledUpdate is one entry of the scheduled-update ring, keyed by
// the tick it is due.
type scheduledUpdate struct {
	pos     Pos
	fromDir Direction
	forTick int64
}

// ScheduledRing is the scheduled-update ring. Where the reference engine
// asserts and crashes on overflow, this ring grows instead, up to a hard
// ceiling; entries scheduled while the ring sits at that ceiling spill to
// an optional OverflowSpill (backed by badger) rather than growing memory
// without bound. Without a spill attached, the ring keeps growing past the
// ceiling. It logs once per growth and once per spill so operators
// can see a chunk of the world generating pathological scheduling
// pressure.
type ScheduledRing struct {
	log     *slog.Logger
	entries []scheduledUpdate
	cap     int // soft capacity; growth beyond this is logged
	hardCap int // ceiling past which new entries spill instead of growing the slice
	grown   int
	spill   *OverflowSpill // optional
}

// NewScheduledRing creates a ring with the given soft capacity.
func NewScheduledRing(log *slog.Logger, softCap int) *ScheduledRing {
	if softCap <= 0 {
		softCap = 4096
	}
	return &ScheduledRing{log: log, cap: softCap, hardCap: softCap * 16, entries: make([]scheduledUpdate, 0, softCap)}
}

// WithSpill attaches an OverflowSpill; entries scheduled once the ring
// reaches its hard ceiling are persisted there instead of growing memory
// further.
func (r *ScheduledRing) WithSpill(s *OverflowSpill) *ScheduledRing {
	r.spill = s
	return r
}

// Schedule implements schedule_block_update: appends to the scheduled
// ring; delay must be >= 1.
func (r *ScheduledRing) Schedule(currentTick int64, pos Pos, fromDir Direction, delay int64) {
	if delay < 1 {
		delay = 1
	}
	e := scheduledUpdate{pos: pos, fromDir: fromDir, forTick: currentTick + delay}

	if r.spill != nil && len(r.entries) >= r.hardCap {
		if err := r.spill.Put(e); err != nil {
			if r.log != nil {
				r.log.Warn("scheduled-update overflow spill failed", "err", err)
			}
		} else if r.log != nil {
			r.log.Warn("scheduled-update ring spilled to overflow store", "for_tick", e.forTick)
		}
		return
	}

	if len(r.entries) >= r.cap {
		newCap := r.cap * 2
		if newCap == 0 {
			newCap = 4096
		}
		r.cap = newCap
		r.grown++
		if r.log != nil {
			r.log.Warn("scheduled-update ring grew", "new_capacity", r.cap, "growth_count", r.grown)
		}
	}
	r.entries = append(r.entries, e)
}

// Drain implements propagate_delayed_block_updates: removes every
// entry with forTick == currentTick (from memory and, if attached, from
// the overflow spill), runs each through UpdateBlock with isDelayed=true,
// then drains the resulting FIFO as a non-delayed cascade.
func (r *ScheduledRing) Drain(idx *Index, tick *TickState, ctx *UpdateContext, table BehaviorTable, currentTick int64) {
	kept := r.entries[:0]
	var due []scheduledUpdate
	for _, e := range r.entries {
		if e.forTick == currentTick {
			due = append(due, e)
		} else {
			kept = append(kept, e)
		}
	}
	r.entries = kept

	if r.spill != nil {
		spilled, err := r.spill.TakeDue(currentTick)
		if err != nil && r.log != nil {
			r.log.Warn("scheduled-update overflow spill read failed", "err", err)
		}
		due = append(due, spilled...)
	}

	for _, e := range due {
		env := &BehaviorEnv{Idx: idx, Tick: tick, Ctx: ctx, Ring: r, CurrentTick: currentTick, Pos: e.pos, FromDir: e.fromDir, IsDelayed: true}
		UpdateBlock(env, table)
	}
	PropagateBlockUpdates(idx, tick, ctx, r, currentTick, table)
}

// Len returns the number of entries currently queued in memory (for
// tests/metrics); entries spilled to disk are not counted.
func (r *ScheduledRing) Len() int { return len(r.entries) }
