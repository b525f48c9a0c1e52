// Package region implements the async chunk reader: given a chunk shell and
// a position, it locates the backing ".mca" region file, validates and
// decompresses the chunk's sectors, and decodes the payload into the
// chunk's block sections and height map. It satisfies world.Loader and is
// meant to run on a worker pulled from the task queue.
package region

import (
	"encoding/binary"
	"fmt"
	"os"
)

const (
	sectorSize     = 4096
	headerSectors  = 2 // the 4KiB location table plus the 4KiB timestamp table
	regionChunks   = 32
	regionChunkLen = regionChunks * regionChunks
)

// location is one decoded header entry: the sector offset and length of one
// chunk's data within the region file.
type location struct {
	sectorOffset uint32
	sectorCount  uint8
}

func (l location) present() bool { return l.sectorOffset != 0 && l.sectorCount != 0 }

// readHeader reads the 4KiB location table from f, returning all 1024
// entries in region-chunk-index order ((x&31) + (z&31)*32).
func readHeader(f *os.File) ([regionChunkLen]location, error) {
	var table [regionChunkLen]location
	var buf [sectorSize]byte
	if _, err := f.ReadAt(buf[:], 0); err != nil {
		return table, fmt.Errorf("region: read header: %w", err)
	}
	for i := 0; i < regionChunkLen; i++ {
		v := binary.BigEndian.Uint32(buf[i*4 : i*4+4])
		table[i] = location{
			sectorOffset: v >> 8,
			sectorCount:  uint8(v & 0xff),
		}
	}
	return table, nil
}

func chunkSlot(cx, cz int32) int {
	return int(cx&(regionChunks-1)) + int(cz&(regionChunks-1))*regionChunks
}

const (
	compressionGzip         = 1
	compressionZlib         = 2
	compressionExternalFlag = 0x80
)

// readSectorPayload validates loc against the file size and reads the
// chunk's raw (still-compressed) sector payload: a 4-byte big-endian size,
// a 1-byte compression tag, then that many bytes of compressed data.
func readSectorPayload(f *os.File, fileSize int64, loc location) (data []byte, method byte, err error) {
	if loc.sectorOffset < headerSectors {
		return nil, 0, fmt.Errorf("region: sector offset %d within header", loc.sectorOffset)
	}
	if loc.sectorCount == 0 {
		return nil, 0, fmt.Errorf("region: zero sector count")
	}
	start := int64(loc.sectorOffset) * sectorSize
	end := start + int64(loc.sectorCount)*sectorSize
	if end > fileSize {
		return nil, 0, fmt.Errorf("region: sectors [%d,%d) exceed file size %d", start, end, fileSize)
	}

	var prefix [5]byte
	if _, err := f.ReadAt(prefix[:], start); err != nil {
		return nil, 0, fmt.Errorf("region: read sector prefix: %w", err)
	}
	size := binary.BigEndian.Uint32(prefix[:4])
	method = prefix[4]
	if method&compressionExternalFlag != 0 {
		return nil, 0, fmt.Errorf("region: externally stored chunk unsupported")
	}
	if method != compressionGzip && method != compressionZlib {
		return nil, 0, fmt.Errorf("region: unknown compression method %d", method)
	}
	if size == 0 {
		return nil, 0, fmt.Errorf("region: zero-length chunk payload")
	}
	// size includes the compression-method byte itself.
	payloadLen := int64(size) - 1
	if start+5+payloadLen > end {
		return nil, 0, fmt.Errorf("region: payload overruns claimed sectors")
	}
	data = make([]byte, payloadLen)
	if _, err := f.ReadAt(data, start+5); err != nil {
		return nil, 0, fmt.Errorf("region: read payload: %w", err)
	}
	return data, method, nil
}
