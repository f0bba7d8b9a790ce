package words

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketMeta      = []byte("meta")
	bucketNeighbors = []byte("neighbors")
	keyFingerprint  = []byte("fingerprint")
)

// ThesaurusCache persists NearestNeighbors results across restarts. Entries
// are only valid for the model they were computed from: opening the cache
// with a different fingerprint drops everything.
type ThesaurusCache struct {
	db *bbolt.DB
}

func OpenThesaurusCache(path, fingerprint string) (*ThesaurusCache, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open thesaurus cache: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketMeta, err)
		}
		if string(meta.Get(keyFingerprint)) != fingerprint {
			if tx.Bucket(bucketNeighbors) != nil {
				if err := tx.DeleteBucket(bucketNeighbors); err != nil {
					return fmt.Errorf("failed to drop stale entries: %w", err)
				}
			}
			if err := meta.Put(keyFingerprint, []byte(fingerprint)); err != nil {
				return err
			}
		}
		if _, err := tx.CreateBucketIfNotExists(bucketNeighbors); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketNeighbors, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &ThesaurusCache{db: db}, nil
}

func cacheKey(term string, count int) []byte {
	key := make([]byte, 4, 4+len(term))
	binary.BigEndian.PutUint32(key, uint32(count))
	return append(key, term...)
}

func (c *ThesaurusCache) Get(term string, count int) ([]Neighbor, bool, error) {
	var out []Neighbor
	var found bool
	err := c.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketNeighbors).Get(cacheKey(term, count))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &out)
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to read thesaurus cache: %w", err)
	}
	return out, found, nil
}

func (c *ThesaurusCache) Put(term string, count int, neighbors []Neighbor) error {
	data, err := json.Marshal(neighbors)
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketNeighbors).Put(cacheKey(term, count), data)
	})
}

func (c *ThesaurusCache) Close() error {
	return c.db.Close()
}
