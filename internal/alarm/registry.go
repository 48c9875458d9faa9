package alarm

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const defaultBucket = "alarms"

// Registration is one armed reminder, keyed by task id.
type Registration struct {
	ID    int       `json:"id"`
	Title string    `json:"title"`
	At    time.Time `json:"at"`
}

// Registry persists registrations in a bbolt file so they survive restarts.
type Registry struct {
	db     *bolt.DB
	bucket []byte
}

// OpenRegistry initializes the bbolt file and ensures the bucket exists.
func OpenRegistry(path string) (*Registry, error) {
	if path == "" {
		return nil, errors.New("alarm registry path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	bucket := []byte(defaultBucket)
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &Registry{db: db, bucket: bucket}, nil
}

func (r *Registry) Put(reg Registration) error {
	if r == nil || r.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	payload, err := json.Marshal(reg)
	if err != nil {
		return err
	}
	return r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(r.bucket).Put(key(reg.ID), payload)
	})
}

// Delete removes the registration for id. Missing ids are not an error.
func (r *Registry) Delete(id int) error {
	if r == nil || r.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(r.bucket).Delete(key(id))
	})
}

func (r *Registry) Get(id int) (Registration, bool, error) {
	if r == nil || r.db == nil {
		return Registration{}, false, bolt.ErrDatabaseNotOpen
	}
	var (
		reg   Registration
		found bool
	)
	err := r.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(r.bucket).Get(key(id))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &reg)
	})
	return reg, found, err
}

// All returns every registration ordered by task id. Undecodable entries are skipped.
func (r *Registry) All() ([]Registration, error) {
	if r == nil || r.db == nil {
		return nil, bolt.ErrDatabaseNotOpen
	}
	var regs []Registration
	err := r.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(r.bucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var reg Registration
			if err := json.Unmarshal(v, &reg); err != nil {
				continue
			}
			regs = append(regs, reg)
		}
		return nil
	})
	return regs, err
}

func (r *Registry) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// key encodes ids big-endian so cursor order matches numeric order.
func key(id int) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}
