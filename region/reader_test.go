package region

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/blockworld-dev/server/content"
	"github.com/blockworld-dev/server/world"
)

const testFixture = `
states:
  - name: air
  - name: stone
    full_faces: 63
`

func writeName(buf *bytes.Buffer, s string) {
	var n [2]byte
	binary.BigEndian.PutUint16(n[:], uint16(len(s)))
	buf.Write(n[:])
	buf.WriteString(s)
}

// buildChunkNBT assembles a minimal single-section, single-entry-palette
// chunk compound: DataVersion, Status, and one "stone" section at Y=-4 (the
// lowest section, world Y -64..-49).
func buildChunkNBT(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteByte(byte(compoundTag))
	writeName(&buf, "")

	writeInt(&buf, "DataVersion", ServerWorldVersion)
	writeString(&buf, "Status", "minecraft:full")

	// sections: TAG_List of 1 compound
	buf.WriteByte(byte(listTag))
	writeName(&buf, "sections")
	buf.WriteByte(byte(compoundTag))
	writeCount(&buf, 1)

	// section compound body (no name -- list elements are unnamed)
	writeInt(&buf, "Y", -4)

	buf.WriteByte(byte(compoundTag))
	writeName(&buf, "block_states")

	buf.WriteByte(byte(listTag))
	writeName(&buf, "palette")
	buf.WriteByte(byte(compoundTag))
	writeCount(&buf, 1)
	writeString(&buf, "Name", "stone")
	buf.WriteByte(0) // TAG_End of palette[0] compound

	buf.WriteByte(0) // TAG_End of block_states
	buf.WriteByte(0) // TAG_End of section compound
	buf.WriteByte(0) // TAG_End of root compound
	return buf.Bytes()
}

const (
	endTag      = 0
	intTag      = 3
	stringTag   = 8
	listTag     = 9
	compoundTag = 10
)

func writeInt(buf *bytes.Buffer, name string, v int32) {
	buf.WriteByte(intTag)
	writeName(buf, name)
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(v))
	buf.Write(n[:])
}

func writeString(buf *bytes.Buffer, name, v string) {
	buf.WriteByte(stringTag)
	writeName(buf, name)
	writeName(buf, v)
}

func writeCount(buf *bytes.Buffer, n int32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(n))
	buf.Write(b[:])
}

// writeRegionFile assembles a one-chunk-present .mca file at slot (0,0) with
// the given zlib-compressed payload.
func writeRegionFile(t *testing.T, path string, payload []byte) {
	t.Helper()
	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write(payload); err != nil {
		t.Fatalf("zlib write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zlib close: %v", err)
	}

	var sector bytes.Buffer
	var sizeField [4]byte
	binary.BigEndian.PutUint32(sizeField[:], uint32(compressed.Len()+1))
	sector.Write(sizeField[:])
	sector.WriteByte(compressionZlib)
	sector.Write(compressed.Bytes())
	for sector.Len()%sectorSize != 0 {
		sector.WriteByte(0)
	}
	sectorCount := sector.Len() / sectorSize

	var header [sectorSize]byte
	binary.BigEndian.PutUint32(header[0:4], uint32(2<<8|sectorCount))

	if err := os.WriteFile(path, append(append(header[:], make([]byte, sectorSize)...), sector.Bytes()...), 0o644); err != nil {
		t.Fatalf("write region file: %v", err)
	}
}

func TestReaderLoadsSingleEntryPaletteSection(t *testing.T) {
	reg, err := content.LoadBlockRegistry([]byte(testFixture))
	if err != nil {
		t.Fatalf("load fixture: %v", err)
	}
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "world", "region"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeRegionFile(t, filepath.Join(root, "world", "region", "r.0.0.mca"), buildChunkNBT(t))

	r := NewReader(slog.Default(), root, reg)
	idx := world.NewIndex(world.IndexConfig{Blocks: reg, Loader: r})
	idx.AddChunkInterest(world.ChunkPos{World: 1, CX: 0, CZ: 0}, 1)

	c, ok := idx.GetChunkInternal(world.ChunkPos{World: 1, CX: 0, CZ: 0})
	if !ok {
		t.Fatalf("expected chunk shell to exist")
	}
	stone, _ := reg.ID("stone")
	got := c.Section(world.MinWorldY).At(0, 0, 0)
	if got != stone {
		t.Fatalf("expected bottom section to be stone, got %v", got)
	}
	if h := c.HeightAt(0, 0); h != world.MinWorldY+world.SectionHeight {
		t.Fatalf("expected height %d, got %d", world.MinWorldY+world.SectionHeight, h)
	}
}

func TestReaderTreatsMissingRegionFileAsEmptyAndCachesIt(t *testing.T) {
	reg, err := content.LoadBlockRegistry([]byte(testFixture))
	if err != nil {
		t.Fatalf("load fixture: %v", err)
	}
	root := t.TempDir()
	r := NewReader(slog.Default(), root, reg)
	idx := world.NewIndex(world.IndexConfig{Blocks: reg, Loader: r})
	idx.AddChunkInterest(world.ChunkPos{World: 1, CX: 100, CZ: 100}, 1)

	c, ok := idx.GetChunkInternal(world.ChunkPos{World: 1, CX: 100, CZ: 100})
	if !ok {
		t.Fatalf("expected chunk shell to exist")
	}
	if got := c.Section(world.MinWorldY).At(0, 0, 0); got != content.AirState {
		t.Fatalf("expected an absent region's chunk to load as air, got %v", got)
	}

	key := regionKey(1, 100>>5, 100>>5)
	if !r.knownMissing(key) {
		t.Fatalf("expected the absent region to be remembered in the negative cache")
	}
}
