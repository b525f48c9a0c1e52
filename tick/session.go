package tick

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/blockworld-dev/server/view"
)

// defaultSendBudget bounds how many chunk packets a single View may emit
// in one tick; matches the cap tick/runtime_test.go exercises directly.
const defaultSendBudget = 64

// JoinRequest is what the (out-of-scope) network collaborator hands
// Runtime once a client has finished its out-of-band handshake and is
// ready to start receiving chunk and entity packets. PlayerUUID is the
// client's persistent identity; Runtime assigns its own internal slot id
// for everything keyed by map[uint32] in the tick loop, since that id only
// needs to be stable for one connection's lifetime.
type JoinRequest struct {
	PlayerUUID uuid.UUID
	Name       string
	Radius     int
}

// Join registers a new player session: it allocates an internal slot id,
// creates that player's chunk view, and records the slot->uuid mapping
// used for logging and Leave. The caller is responsible for populating
// PlayerChunks[id] before the next RunTick.
func (rt *Runtime) Join(req JoinRequest) (uint32, error) {
	if req.Radius <= 0 || req.Radius > view.MaxRadius {
		return 0, fmt.Errorf("tick: join radius %d out of range (1-%d)", req.Radius, view.MaxRadius)
	}
	if rt.sessions == nil {
		rt.sessions = make(map[uint32]uuid.UUID)
	}

	id := rt.nextSessionID
	rt.nextSessionID++

	rt.Views[id] = view.New(rt.Idx, req.Radius, defaultSendBudget)
	rt.sessions[id] = req.PlayerUUID

	rt.Log.Info("player joined", "slot", id, "uuid", req.PlayerUUID, "name", req.Name)
	return id, nil
}

// Leave tears down a player's session: its view, tracked chunk position,
// and uuid mapping.
func (rt *Runtime) Leave(id uint32) {
	playerUUID := rt.sessions[id]
	delete(rt.Views, id)
	delete(rt.PlayerChunks, id)
	delete(rt.sessions, id)
	rt.Log.Info("player left", "slot", id, "uuid", playerUUID)
}

// SessionUUID returns the persistent identity behind an internal slot id,
// for logging and reconnection bookkeeping.
func (rt *Runtime) SessionUUID(id uint32) (uuid.UUID, bool) {
	u, ok := rt.sessions[id]
	return u, ok
}
