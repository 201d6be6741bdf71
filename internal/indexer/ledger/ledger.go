// Package ledger remembers which documents already reached a flushed
// partition, so replayed Kafka events are not indexed twice. It is a bbolt
// file mapping document id to token count.
package ledger

import (
	"encoding/binary"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var bucketPages = []byte("pages")

type Ledger struct {
	db *bbolt.DB
}

// Open opens or creates the ledger file at path.
func Open(path string) (*Ledger, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening ledger %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketPages); err != nil {
			return fmt.Errorf("creating bucket %s: %w", bucketPages, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Ledger{db: db}, nil
}

func key(id uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], id)
	return k[:]
}

// Seen reports whether id was recorded.
func (l *Ledger) Seen(id uint64) (bool, error) {
	var seen bool
	err := l.db.View(func(tx *bbolt.Tx) error {
		seen = tx.Bucket(bucketPages).Get(key(id)) != nil
		return nil
	})
	return seen, err
}

// Record stores every document of one flush in a single transaction.
func (l *Ledger) Record(lengths map[uint64]uint32) error {
	if len(lengths) == 0 {
		return nil
	}
	return l.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketPages)
		var v [4]byte
		for id, length := range lengths {
			binary.LittleEndian.PutUint32(v[:], length)
			if err := b.Put(key(id), v[:]); err != nil {
				return fmt.Errorf("recording document %d: %w", id, err)
			}
		}
		return nil
	})
}

// Length returns the recorded token count of id.
func (l *Ledger) Length(id uint64) (uint32, bool, error) {
	var (
		length uint32
		ok     bool
	)
	err := l.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketPages).Get(key(id)); len(v) == 4 {
			length = binary.LittleEndian.Uint32(v)
			ok = true
		}
		return nil
	})
	return length, ok, err
}

// Count returns the number of recorded documents.
func (l *Ledger) Count() (int, error) {
	var n int
	err := l.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketPages).Stats().KeyN
		return nil
	})
	return n, err
}

func (l *Ledger) Close() error {
	return l.db.Close()
}
