package region

import (
	"fmt"
	"math/bits"

	"github.com/blockworld-dev/server/content"
	"github.com/blockworld-dev/server/nbt"
)

// paletteEntry is one decoded row of a section's palette: a resource
// location plus its declared property values.
type paletteEntry struct {
	name       string
	properties map[string]string
}

func decodePalette(list []nbt.Value) ([]paletteEntry, error) {
	out := make([]paletteEntry, 0, len(list))
	for i, e := range list {
		name, ok := e.Str("Name")
		if !ok {
			return nil, fmt.Errorf("palette entry %d missing Name", i)
		}
		props := map[string]string{}
		if raw, ok := e.Compound["Properties"]; ok && raw.Tag == nbt.TagCompound {
			for k, v := range raw.Compound {
				if v.Tag == nbt.TagString {
					props[k] = v.String
				}
			}
		}
		out = append(out, paletteEntry{name: name, properties: props})
	}
	return out, nil
}

// bitWidthFor returns the per-entry bit width for a palette of size n:
// max(4, ceil(log2(n))), the floor the format never packs a palette smaller
// than 16 entries' worth of addressing room into.
func bitWidthFor(n int) int {
	if n <= 1 {
		return 4
	}
	w := bits.Len(uint(n - 1))
	if w < 4 {
		w = 4
	}
	return w
}

// unpackIndices decodes a long-array of packed, non-straddling entries: no
// single index is split across a 64-bit word boundary, so entriesPerWord =
// 64/bitWidth and any leftover bits per word are unused padding.
func unpackIndices(words []int64, bitWidth int) ([]int32, error) {
	entriesPerWord := 64 / bitWidth
	wanted := (4096 + entriesPerWord - 1) / entriesPerWord
	if len(words) != wanted {
		return nil, fmt.Errorf("region: expected %d packed words for bitWidth %d, got %d", wanted, bitWidth, len(words))
	}
	mask := uint64(1)<<uint(bitWidth) - 1
	out := make([]int32, 0, 4096)
	for _, w := range words {
		uw := uint64(w)
		for i := 0; i < entriesPerWord && len(out) < 4096; i++ {
			out = append(out, int32(uw&mask))
			uw >>= uint(bitWidth)
		}
	}
	return out, nil
}

// resolveSection decodes one section compound's palette and packed indices
// into a fully-populated 4096-entry block-state array (yzx order, y
// outer), the shape world.NewSection expects.
func resolveSection(sec nbt.Value, blocks *content.BlockRegistry) ([]content.EntryID, error) {
	blockStates, ok := sec.Compound["block_states"]
	if !ok || blockStates.Tag != nbt.TagCompound {
		return nil, fmt.Errorf("section missing block_states")
	}
	paletteList := blockStates.ListField("palette")
	if len(paletteList) == 0 {
		return nil, fmt.Errorf("section palette empty")
	}
	entries, err := decodePalette(paletteList)
	if err != nil {
		return nil, err
	}

	resolved := make([]content.EntryID, len(entries))
	for i, e := range entries {
		id, ok := blocks.ResolveState(e.name, e.properties)
		if !ok {
			return nil, fmt.Errorf("region: unresolvable block type %q", e.name)
		}
		resolved[i] = id
	}

	out := make([]content.EntryID, 4096)
	if len(entries) == 1 {
		// Single-entry palette: uniform fill, no packed array may be present.
		if data, ok := blockStates.Compound["data"]; ok && data.Tag == nbt.TagLongArray && len(data.LongArray) != 0 {
			return nil, fmt.Errorf("region: single-entry palette must not carry a packed array")
		}
		for i := range out {
			out[i] = resolved[0]
		}
		return out, nil
	}

	data, ok := blockStates.Compound["data"]
	if !ok || data.Tag != nbt.TagLongArray {
		return nil, fmt.Errorf("region: multi-entry palette missing packed data")
	}
	width := bitWidthFor(len(entries))
	indices, err := unpackIndices(data.LongArray, width)
	if err != nil {
		return nil, err
	}
	for i, idx := range indices {
		if int(idx) < 0 || int(idx) >= len(resolved) {
			return nil, fmt.Errorf("region: packed index %d out of palette range %d", idx, len(resolved))
		}
		out[i] = resolved[idx]
	}
	return out, nil
}
