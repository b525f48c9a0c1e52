package tick

import (
	"testing"

	"github.com/google/uuid"

	"github.com/blockworld-dev/server/content"
	"github.com/blockworld-dev/server/world"
)

func TestJoinAssignsSlotAndTracksUUID(t *testing.T) {
	reg, err := content.LoadBlockRegistry([]byte(testFixture))
	if err != nil {
		t.Fatalf("load fixture: %v", err)
	}
	idx := world.NewIndex(world.IndexConfig{Blocks: reg})
	rt := NewRuntime(nil, idx, nil)

	want := uuid.New()
	id, err := rt.Join(JoinRequest{PlayerUUID: want, Name: "steve", Radius: 4})
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, ok := rt.Views[id]; !ok {
		t.Fatalf("join did not create a view for slot %d", id)
	}
	got, ok := rt.SessionUUID(id)
	if !ok || got != want {
		t.Fatalf("SessionUUID(%d) = %v, %v, want %v, true", id, got, ok, want)
	}

	rt.Leave(id)
	if _, ok := rt.Views[id]; ok {
		t.Fatalf("leave did not remove view for slot %d", id)
	}
	if _, ok := rt.SessionUUID(id); ok {
		t.Fatalf("leave did not clear uuid mapping for slot %d", id)
	}
}

func TestJoinRejectsOutOfRangeRadius(t *testing.T) {
	reg, err := content.LoadBlockRegistry([]byte(testFixture))
	if err != nil {
		t.Fatalf("load fixture: %v", err)
	}
	idx := world.NewIndex(world.IndexConfig{Blocks: reg})
	rt := NewRuntime(nil, idx, nil)

	if _, err := rt.Join(JoinRequest{PlayerUUID: uuid.New(), Radius: 0}); err == nil {
		t.Fatal("expected an error for radius 0")
	}
	if _, err := rt.Join(JoinRequest{PlayerUUID: uuid.New(), Radius: 999}); err == nil {
		t.Fatal("expected an error for an out-of-range radius")
	}
}
