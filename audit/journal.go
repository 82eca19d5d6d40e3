package audit

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	bolt "go.etcd.io/bbolt"

	"leasehub/core/events"
)

var bucketEvents = []byte("events")

// ErrClosed is returned when the journal is used after Close.
var ErrClosed = errors.New("audit: journal closed")

// Entry is the durable form of one emitted event, in emission order.
type Entry struct {
	Seq        uint64            `json:"seq"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes,omitempty"`
	EmittedAt  time.Time         `json:"emittedAt"`
}

// Journal persists every marketplace event to an append-only bolt bucket so
// the full transition history survives restarts and can be replayed for
// audit.
type Journal struct {
	db    *bolt.DB
	nowFn func() time.Time
}

// Open creates or opens the journal file.
func Open(path string) (*Journal, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEvents)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &Journal{db: db, nowFn: time.Now}, nil
}

// Close releases the underlying database.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Append records the event and returns its sequence number.
func (j *Journal) Append(evt *events.Event) (uint64, error) {
	if j == nil || j.db == nil {
		return 0, ErrClosed
	}
	if evt == nil {
		return 0, errors.New("audit: nil event")
	}
	var seq uint64
	err := j.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketEvents)
		next, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		entry := Entry{
			Seq:        next,
			Type:       evt.Type,
			Attributes: evt.Attributes,
			EmittedAt:  j.nowFn().UTC(),
		}
		payload, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, next)
		if err := bucket.Put(key, payload); err != nil {
			return err
		}
		seq = next
		return nil
	})
	return seq, err
}

// Emit implements the events.Emitter interface. Journal failures are logged
// rather than propagated: the state transition already committed and event
// delivery must not unwind it.
func (j *Journal) Emit(evt *events.Event) {
	if _, err := j.Append(evt); err != nil {
		slog.Error("audit journal append failed", "type", evt.EventType(), "error", err)
	}
}

// Replay streams every journalled entry in sequence order. Iteration stops
// at the first error returned by fn.
func (j *Journal) Replay(fn func(Entry) error) error {
	if j == nil || j.db == nil {
		return ErrClosed
	}
	return j.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEvents).ForEach(func(_, value []byte) error {
			var entry Entry
			if err := json.Unmarshal(value, &entry); err != nil {
				return err
			}
			return fn(entry)
		})
	})
}
