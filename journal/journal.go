/* Copyright 2026 The Coxswain Authors
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package journal persists store transitions (BoltDB).
//
// A Journal is an append-only log of (state, action) pairs, one entry
// per dispatch, keyed by an increasing sequence number.  It implements
// core.Journal, so hang one on a Store to get a durable transition
// history that survives the process.
package journal

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"log"
	"time"

	bolt "go.etcd.io/bbolt"
)

// DefaultBucket is the bucket name used when the journal has no
// store name.
const DefaultBucket = "transitions"

// Entry is one recorded transition: the state after the action was
// reduced, and the action itself.
type Entry struct {
	// Seq is the entry's sequence number (assigned by the store;
	// starts at 1).
	Seq uint64 `json:"seq"`

	// T is when the transition was recorded.
	T time.Time `json:"t"`

	State  interface{} `json:"state"`
	Action interface{} `json:"action"`
}

// Journal is a type of persistence.
type Journal struct {
	Debug    bool
	filename string
	bucket   []byte
	db       *bolt.DB
}

// NewJournal takes a filename and a store name (its bucket) and
// returns an unopened Journal.
func NewJournal(filename, name string) (*Journal, error) {
	if name == "" {
		name = DefaultBucket
	}
	return &Journal{
		filename: filename,
		bucket:   []byte(name),
	}, nil
}

// Open opens the underlying database file.
func (j *Journal) Open(ctx context.Context) error {
	opts := &bolt.Options{
		Timeout: time.Second,
	}

	db, err := bolt.Open(j.filename, 0644, opts)
	if err != nil {
		return err
	}
	j.db = db

	return db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(j.bucket)
		return err
	})
}

// Close closes the underlying database file.
func (j *Journal) Close(ctx context.Context) error {
	if j == nil {
		return nil
	}
	return j.db.Close()
}

func (j *Journal) logf(format string, args ...interface{}) {
	if j == nil {
		return
	}
	if j.Debug {
		log.Printf("Journal "+format, args...)
	}
}

// Record appends one transition.  Implements core.Journal.
func (j *Journal) Record(ctx context.Context, state, action interface{}) error {
	if j == nil {
		return nil
	}
	return j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(j.bucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		entry := Entry{
			Seq:    seq,
			T:      time.Now().UTC(),
			State:  state,
			Action: action,
		}
		js, err := json.Marshal(&entry)
		if err != nil {
			return err
		}
		j.logf("Record %d %s", seq, js)
		return b.Put(key(seq), js)
	})
}

// Entries returns up to limit recorded transitions starting after the
// given sequence number.  A limit of 0 means no limit.
func (j *Journal) Entries(ctx context.Context, after uint64, limit int) ([]Entry, error) {
	if j == nil {
		return nil, nil
	}
	entries := make([]Entry, 0, 32)
	err := j.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(j.bucket).Cursor()
		for k, v := c.Seek(key(after + 1)); k != nil; k, v = c.Next() {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			entries = append(entries, entry)
			if 0 < limit && limit <= len(entries) {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Len returns the number of recorded transitions.
func (j *Journal) Len(ctx context.Context) (int, error) {
	if j == nil {
		return 0, nil
	}
	var n int
	err := j.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(j.bucket).Stats().KeyN
		return nil
	})
	return n, err
}

func key(seq uint64) []byte {
	bs := make([]byte, 8)
	binary.BigEndian.PutUint64(bs, seq)
	return bs
}
