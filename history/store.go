// Package history persists the identifiers of ads that have already been
// notified about. Stores are append-only and assume a single writer.
package history

import (
	"errors"
	"fmt"

	"github.com/pevans/propfinder/ads"
	"github.com/sirupsen/logrus"
)

// Backend types accepted by Open.
const (
	TypeFile   = "file"
	TypeSQLite = "sqlite"
	TypeBolt   = "bolt"
	TypeRedis  = "redis"
)

// DefaultRedisKey is the Redis set used when Options.Key is empty.
const DefaultRedisKey = "propfinder:seen"

// ErrUnknownType is returned by Open for an unsupported backend type.
var ErrUnknownType = errors.New("unknown history type")

// Store is a persisted, append-only set of ad identifiers.
type Store interface {
	// Load returns every recorded identifier. A missing backing store is
	// created empty.
	Load() (ads.Set, error)

	// Append records ids. It does not deduplicate; recording an id twice is
	// harmless.
	Append(ids []string) error

	Close() error
}

// Options selects and configures a Store backend.
type Options struct {
	Type string
	DSN  string // file path, or Redis address for TypeRedis
	Key  string // Redis set name
}

// Open returns the Store described by opts. An empty type means TypeFile.
func Open(opts Options, log logrus.FieldLogger) (Store, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	switch opts.Type {
	case "", TypeFile:
		return NewFileStore(opts.DSN, log), nil
	case TypeSQLite:
		return NewSQLiteStore(opts.DSN)
	case TypeBolt:
		return NewBoltStore(opts.DSN)
	case TypeRedis:
		key := opts.Key
		if key == "" {
			key = DefaultRedisKey
		}
		return NewRedisStore(opts.DSN, key)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, opts.Type)
	}
}
