package kv

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/lihanning0817/low-altitude-traffic-system/pkg/datastructure"
	"go.uber.org/zap"
)

const (
	routePrefix   = "route:"
	creatorPrefix = "idx:creator:"
	taskPrefix    = "idx:task:"
)

// OpenBadger opens a badger database at dir, or an in-memory one when inMemory is set.
func OpenBadger(dir string, inMemory bool) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return db, nil
}

// RouteStore keeps planned routes in badger. Values are kelindar/binary encoded and zstd
// compressed. Creator and flight task lookups go through empty-valued index keys
// "idx:<kind>:<value>:<route id>".
type RouteStore struct {
	db  *badger.DB
	log *zap.Logger
}

func NewRouteStore(db *badger.DB, log *zap.Logger) *RouteStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &RouteStore{db: db, log: log}
}

func routeKey(id string) []byte {
	return []byte(routePrefix + id)
}

// indexPrefix length-prefixes value so that no value is a key prefix of another one.
func indexPrefix(prefix, value string) []byte {
	key := make([]byte, 0, len(prefix)+binary.MaxVarintLen64+len(value))
	key = append(key, prefix...)
	key = binary.AppendUvarint(key, uint64(len(value)))
	return append(key, value...)
}

func indexKey(prefix, value, id string) []byte {
	return append(indexPrefix(prefix, value), id...)
}

func indexKeys(r datastructure.RouteRecord) [][]byte {
	keys := [][]byte{}
	if r.CreatorID != "" {
		keys = append(keys, indexKey(creatorPrefix, r.CreatorID, r.ID))
	}
	if r.FlightTaskID != "" {
		keys = append(keys, indexKey(taskPrefix, r.FlightTaskID, r.ID))
	}
	return keys
}

func getRoute(txn *badger.Txn, id string) (datastructure.RouteRecord, error) {
	item, err := txn.Get(routeKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return datastructure.RouteRecord{}, fmt.Errorf("route %s: %w", id, datastructure.ErrRouteNotFound)
	}
	if err != nil {
		return datastructure.RouteRecord{}, err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return datastructure.RouteRecord{}, err
	}
	return decodeRoute(val)
}

func putRoute(txn *badger.Txn, r datastructure.RouteRecord) error {
	val, err := encodeRoute(r)
	if err != nil {
		return err
	}
	if err := txn.Set(routeKey(r.ID), val); err != nil {
		return err
	}
	for _, k := range indexKeys(r) {
		if err := txn.Set(k, []byte{}); err != nil {
			return err
		}
	}
	return nil
}

func deleteIndexes(txn *badger.Txn, r datastructure.RouteRecord) error {
	for _, k := range indexKeys(r) {
		if err := txn.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// Save inserts or overwrites a route.
func (s *RouteStore) Save(ctx context.Context, r datastructure.RouteRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		old, err := getRoute(txn, r.ID)
		switch {
		case err == nil:
			if err := deleteIndexes(txn, old); err != nil {
				return err
			}
		case !errors.Is(err, datastructure.ErrRouteNotFound):
			return err
		}
		return putRoute(txn, r)
	})
}

func (s *RouteStore) Get(ctx context.Context, id string) (datastructure.RouteRecord, error) {
	if err := ctx.Err(); err != nil {
		return datastructure.RouteRecord{}, err
	}
	var r datastructure.RouteRecord
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		r, err = getRoute(txn, id)
		return err
	})
	return r, err
}

// Update overwrites an existing route. A missing id returns ErrRouteNotFound.
func (s *RouteStore) Update(ctx context.Context, r datastructure.RouteRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		old, err := getRoute(txn, r.ID)
		if err != nil {
			return err
		}
		if err := deleteIndexes(txn, old); err != nil {
			return err
		}
		return putRoute(txn, r)
	})
}

func (s *RouteStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		old, err := getRoute(txn, id)
		if err != nil {
			return err
		}
		if err := deleteIndexes(txn, old); err != nil {
			return err
		}
		return txn.Delete(routeKey(id))
	})
}

// List returns every route, oldest first.
func (s *RouteStore) List(ctx context.Context) ([]datastructure.RouteRecord, error) {
	routes := []datastructure.RouteRecord{}
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(routePrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			r, err := decodeRoute(val)
			if err != nil {
				return err
			}
			routes = append(routes, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortRoutes(routes)
	return routes, nil
}

func (s *RouteStore) ListByCreator(ctx context.Context, creatorID string) ([]datastructure.RouteRecord, error) {
	return s.listByIndex(ctx, indexPrefix(creatorPrefix, creatorID))
}

func (s *RouteStore) ListByFlightTask(ctx context.Context, flightTaskID string) ([]datastructure.RouteRecord, error) {
	return s.listByIndex(ctx, indexPrefix(taskPrefix, flightTaskID))
}

func (s *RouteStore) listByIndex(ctx context.Context, prefix []byte) ([]datastructure.RouteRecord, error) {
	routes := []datastructure.RouteRecord{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			id := string(bytes.TrimPrefix(it.Item().Key(), prefix))
			r, err := getRoute(txn, id)
			if errors.Is(err, datastructure.ErrRouteNotFound) {
				s.log.Warn("dangling route index", zap.ByteString("key", it.Item().Key()))
				continue
			}
			if err != nil {
				return err
			}
			routes = append(routes, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortRoutes(routes)
	return routes, nil
}

func sortRoutes(routes []datastructure.RouteRecord) {
	sort.SliceStable(routes, func(i, j int) bool {
		if routes[i].CreatedAt != routes[j].CreatedAt {
			return routes[i].CreatedAt < routes[j].CreatedAt
		}
		return routes[i].ID < routes[j].ID
	})
}

func (s *RouteStore) Close() error {
	return s.db.Close()
}
