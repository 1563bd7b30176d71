package journal

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

const eventBucket = "events"

// BoltStore provides a BoltDB-backed append-only journal.
type BoltStore struct {
	db *bbolt.DB
}

// OpenBolt opens a BoltDB-backed journal at the provided path.
func OpenBolt(path string) (*BoltStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("journal path is required")
	}

	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "open journal db")
	}

	store := &BoltStore{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying BoltDB database.
func (s *BoltStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record appends an event under the next bucket sequence.
func (s *BoltStore) Record(ctx context.Context, ev Event) (Event, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}
	if s == nil || s.db == nil {
		return Event{}, errors.New("journal is not configured")
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(eventBucket))
		if bucket == nil {
			return errors.New("event bucket is missing")
		}
		seq, err := bucket.NextSequence()
		if err != nil {
			return errors.Wrap(err, "next event sequence")
		}
		ev = prepare(ev, seq)
		payload, err := json.Marshal(ev)
		if err != nil {
			return errors.Wrap(err, "marshal event")
		}
		return bucket.Put(seqKey(seq), payload)
	})
	if err != nil {
		return Event{}, err
	}
	return ev, nil
}

// List returns matching events in sequence order.
func (s *BoltStore) List(ctx context.Context, filter Filter) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, errors.New("journal is not configured")
	}

	out := []Event{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(eventBucket))
		if bucket == nil {
			return errors.New("event bucket is missing")
		}
		c := bucket.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var ev Event
			if err := json.Unmarshal(v, &ev); err != nil {
				return errors.Wrapf(err, "unmarshal event %d", binary.BigEndian.Uint64(k))
			}
			if !filter.match(ev) {
				continue
			}
			out = append(out, ev)
			if filter.Limit > 0 && len(out) == filter.Limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BoltStore) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(eventBucket)); err != nil {
			return errors.Wrap(err, "create event bucket")
		}
		return nil
	})
}

// seqKey encodes big-endian so cursor order is sequence order.
func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
