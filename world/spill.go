package world

import (
	"encoding/binary"
	"fmt"
	"log/slog"

	badger "github.com/dgraph-io/badger/v3"
)

// OverflowSpill durably absorbs scheduled-update entries once a
// ScheduledRing's in-memory backlog passes its hard ceiling, rather than
// growing memory without bound under pathological scheduling pressure
// (a redstone clock feeding thousands of blocks per tick, say). Entries
// are keyed by their due tick so Drain can range-scan for exactly what is
// due without touching entries scheduled further out.
type OverflowSpill struct {
	db  *badger.DB
	log *slog.Logger
	seq uint64
}

// slogBadgerLogger adapts badger's Logger interface onto slog, so opening
// the store doesn't pull in badger's own stdout logger.
type slogBadgerLogger struct{ log *slog.Logger }

func (l slogBadgerLogger) Errorf(f string, args ...interface{})   { l.log.Error(fmt.Sprintf(f, args...)) }
func (l slogBadgerLogger) Warningf(f string, args ...interface{}) { l.log.Warn(fmt.Sprintf(f, args...)) }
func (l slogBadgerLogger) Infof(f string, args ...interface{})    { l.log.Info(fmt.Sprintf(f, args...)) }
func (l slogBadgerLogger) Debugf(f string, args ...interface{})   { l.log.Debug(fmt.Sprintf(f, args...)) }

// OpenOverflowSpill opens (creating if absent) a badger store rooted at
// dir. Pass "" for an in-memory store, useful in tests. A nil log uses
// slog.Default().
func OpenOverflowSpill(log *slog.Logger, dir string) (*OverflowSpill, error) {
	if log == nil {
		log = slog.Default()
	}
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(slogBadgerLogger{log: log})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("world: open overflow spill: %w", err)
	}
	return &OverflowSpill{db: db, log: log}, nil
}

// Close releases the underlying badger store.
func (s *OverflowSpill) Close() error { return s.db.Close() }

func spillKey(forTick int64, seq uint64) []byte {
	key := make([]byte, 16)
	binary.BigEndian.PutUint64(key[0:8], uint64(forTick))
	binary.BigEndian.PutUint64(key[8:16], seq)
	return key
}

// encodeScheduledUpdate omits forTick: the spill key already carries it,
// and TakeDue's caller supplies the due tick directly, so decoding it back
// out of the payload would be redundant.
func encodeScheduledUpdate(e scheduledUpdate) []byte {
	buf := make([]byte, 17)
	binary.BigEndian.PutUint32(buf[0:4], e.pos.World)
	binary.BigEndian.PutUint32(buf[4:8], uint32(e.pos.X))
	binary.BigEndian.PutUint32(buf[8:12], uint32(e.pos.Y))
	binary.BigEndian.PutUint32(buf[12:16], uint32(e.pos.Z))
	buf[16] = byte(e.fromDir)
	return buf
}

func decodeScheduledUpdate(buf []byte, forTick int64) (scheduledUpdate, error) {
	if len(buf) != 17 {
		return scheduledUpdate{}, fmt.Errorf("world: corrupt spilled entry (%d bytes)", len(buf))
	}
	return scheduledUpdate{
		pos: Pos{
			World: binary.BigEndian.Uint32(buf[0:4]),
			X:     int32(binary.BigEndian.Uint32(buf[4:8])),
			Y:     int32(binary.BigEndian.Uint32(buf[8:12])),
			Z:     int32(binary.BigEndian.Uint32(buf[12:16])),
		},
		fromDir: Direction(buf[16]),
		forTick: forTick,
	}, nil
}

// Put persists e, keyed so a later TakeDue scan visits entries in
// due-tick order.
func (s *OverflowSpill) Put(e scheduledUpdate) error {
	s.seq++
	key := spillKey(e.forTick, s.seq)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, encodeScheduledUpdate(e))
	})
}

// TakeDue removes and returns every spilled entry with forTick == tick.
func (s *OverflowSpill) TakeDue(tick int64) ([]scheduledUpdate, error) {
	prefix := make([]byte, 8)
	binary.BigEndian.PutUint64(prefix, uint64(tick))

	var due []scheduledUpdate
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			k := append([]byte(nil), item.Key()...)
			err := item.Value(func(val []byte) error {
				e, err := decodeScheduledUpdate(val, tick)
				if err != nil {
					return err
				}
				due = append(due, e)
				keys = append(keys, k)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("world: scan overflow spill: %w", err)
	}
	if len(keys) == 0 {
		return due, nil
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.log.Warn("overflow spill: failed to delete drained entries", "err", err)
	}
	return due, nil
}
