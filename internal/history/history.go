package history

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"time"

	bolt "go.etcd.io/bbolt"

	"sysqueryd/internal/sampler"
)

var bucketLoad = []byte("load")

var errBucketMissing = errors.New("load bucket missing")

// Store keeps the most recent load measurements in a bbolt file, oldest
// dropped first once maxEntries is reached.
type Store struct {
	db         *bolt.DB
	maxEntries int
}

func Open(path string, maxEntries int) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	s := &Store{db: db, maxEntries: maxEntries}
	err = db.Update(func(tx *bolt.Tx) error {
		_, e := tx.CreateBucketIfNotExists(bucketLoad)
		return e
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Record appends m under the bucket's next sequence number.
func (s *Store) Record(m sampler.Measurement) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLoad)
		if b == nil {
			return errBucketMissing
		}

		// enforce max size: drop oldest
		if s.maxEntries > 0 {
			excess := count(b) - s.maxEntries + 1
			c := b.Cursor()
			for k, _ := c.First(); k != nil && excess > 0; k, _ = c.First() {
				if err := b.Delete(k); err != nil {
					return err
				}
				excess--
			}
		}

		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(itob(seq), data)
	})
}

// Recent returns up to n measurements, newest first.
func (s *Store) Recent(n int) ([]sampler.Measurement, error) {
	var out []sampler.Measurement
	if n <= 0 {
		return out, nil
	}
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLoad)
		if b == nil {
			return errBucketMissing
		}
		out = make([]sampler.Measurement, 0, min(n, count(b)))
		c := b.Cursor()
		for k, v := c.Last(); k != nil && len(out) < n; k, v = c.Prev() {
			var m sampler.Measurement
			if err := json.Unmarshal(v, &m); err != nil {
				return err
			}
			out = append(out, m)
		}
		return nil
	})
	return out, err
}

// Len reports how many measurements are stored.
func (s *Store) Len() (int, error) {
	n := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLoad)
		if b == nil {
			return errBucketMissing
		}
		n = count(b)
		return nil
	})
	return n, err
}

// count derives the entry count from the first and last keys. Keys are
// consecutive sequence numbers and only the oldest are ever deleted.
func count(b *bolt.Bucket) int {
	c := b.Cursor()
	first, _ := c.First()
	if first == nil {
		return 0
	}
	last, _ := c.Last()
	return int(btoi(last) - btoi(first) + 1)
}

func btoi(b []byte) uint64 { return binary.BigEndian.Uint64(b) }

func itob(v uint64) []byte {
	var b [8]byte
	// fixed width big endian keys sort in insertion order
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}
