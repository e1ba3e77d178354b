package history

import (
	"fmt"
	"time"

	"github.com/pevans/propfinder/ads"
	bolt "go.etcd.io/bbolt"
)

var seenBucket = []byte("seen")

// BoltStore keeps identifiers as keys of a bbolt bucket. The value is the
// time the id was first recorded.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the bbolt file at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(seenBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Load returns every recorded identifier.
func (b *BoltStore) Load() (ads.Set, error) {
	set := ads.NewSet()

	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(seenBucket).ForEach(func(k, _ []byte) error {
			set.Add(string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	return set, nil
}

// Append records ids in one update transaction.
func (b *BoltStore) Append(ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	now := []byte(time.Now().UTC().Format(time.RFC3339))

	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(seenBucket)
		for _, id := range ids {
			if bucket.Get([]byte(id)) != nil {
				continue
			}
			if err := bucket.Put([]byte(id), now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}

	return nil
}

// Close closes the bolt database.
func (b *BoltStore) Close() error {
	return b.db.Close()
}
