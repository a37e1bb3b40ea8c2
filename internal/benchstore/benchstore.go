// Package benchstore keeps the history of benchmark runs in a bbolt file.
package benchstore

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const bucketRuns = "runs"

var ErrNoSuchRun = errors.New("benchstore: no such run")

// Run is one benchmark measurement.
type Run struct {
	Seq      uint64        `json:"-"`
	Started  time.Time     `json:"started"`
	Suite    string        `json:"suite"`
	Name     string        `json:"name"`
	Ops      int           `json:"ops"`
	Duration time.Duration `json:"duration"`
	P50      time.Duration `json:"p50"`
	P99      time.Duration `json:"p99"`
	Digest   uint64        `json:"digest"`
}

// OpsPerSecond is the throughput of the run.
func (r Run) OpsPerSecond() float64 {
	if r.Duration <= 0 {
		return 0
	}
	return float64(r.Ops) / r.Duration.Seconds()
}

type Store struct {
	db *bolt.DB
}

func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("benchstore: opening %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketRuns))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Add stores r and returns its sequence number.
func (s *Store) Add(r Run) (uint64, error) {
	v, err := json.Marshal(r)
	if err != nil {
		return 0, err
	}
	var seq uint64
	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketRuns))
		seq, err = b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(marshalSeq(seq), v)
	})
	return seq, err
}

func (s *Store) Get(seq uint64) (Run, error) {
	var r Run
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketRuns)).Get(marshalSeq(seq))
		if v == nil {
			return ErrNoSuchRun
		}
		return unmarshalRun(seq, v, &r)
	})
	return r, err
}

func (s *Store) Delete(seq uint64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketRuns)).Delete(marshalSeq(seq))
	})
}

// Latest returns up to limit runs, newest first. An empty suite matches
// every run; limit <= 0 means no limit.
func (s *Store) Latest(suite string, limit int) ([]Run, error) {
	var runs []Run
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucketRuns)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var r Run
			if err := unmarshalRun(unmarshalSeq(k), v, &r); err != nil {
				return err
			}
			if suite != "" && r.Suite != suite {
				continue
			}
			runs = append(runs, r)
			if limit > 0 && len(runs) == limit {
				break
			}
		}
		return nil
	})
	return runs, err
}

func unmarshalRun(seq uint64, v []byte, r *Run) error {
	if err := json.Unmarshal(v, r); err != nil {
		return fmt.Errorf("benchstore: run %d: %w", seq, err)
	}
	r.Seq = seq
	return nil
}

func marshalSeq(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}

func unmarshalSeq(key []byte) uint64 {
	return binary.BigEndian.Uint64(key)
}
