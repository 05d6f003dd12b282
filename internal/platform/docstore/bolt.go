package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bolt stores documents in nested buckets workspace -> org -> collection.
// bbolt serialises writers, so transactions never observe a conflict.
type Bolt struct {
	db *bolt.DB
}

// OpenBolt opens (or creates) the database file at path.
func OpenBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, fmt.Errorf("%w: open %s: %v", ErrUnavailable, path, err)
		}
		return nil, fmt.Errorf("docstore: open %s: %w", path, err)
	}
	return &Bolt{db: db}, nil
}

// Close closes the database.
func (b *Bolt) Close() error {
	return b.db.Close()
}

func collectionBucket(tx *bolt.Tx, scope Scope, collection string) *bolt.Bucket {
	ws := tx.Bucket([]byte(scope.WorkspaceID))
	if ws == nil {
		return nil
	}
	org := ws.Bucket([]byte(scope.OrgID))
	if org == nil {
		return nil
	}
	return org.Bucket([]byte(collection))
}

func createCollectionBucket(tx *bolt.Tx, scope Scope, collection string) (*bolt.Bucket, error) {
	ws, err := tx.CreateBucketIfNotExists([]byte(scope.WorkspaceID))
	if err != nil {
		return nil, err
	}
	org, err := ws.CreateBucketIfNotExists([]byte(scope.OrgID))
	if err != nil {
		return nil, err
	}
	return org.CreateBucketIfNotExists([]byte(collection))
}

func boltGet(tx *bolt.Tx, path Path, dest any) error {
	bucket := collectionBucket(tx, path.Scope, path.Collection)
	if bucket == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	data := bucket.Get([]byte(path.ID))
	if data == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return json.Unmarshal(data, dest)
}

// Get reads a committed document.
func (b *Bolt) Get(_ context.Context, path Path, dest any) error {
	if err := path.Validate(); err != nil {
		return err
	}
	return b.db.View(func(tx *bolt.Tx) error {
		return boltGet(tx, path, dest)
	})
}

// Query scans the collection bucket.
func (b *Bolt) Query(_ context.Context, scope Scope, q Query) ([]Snapshot, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	var candidates []Snapshot
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := collectionBucket(tx, scope, q.Collection)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			// Copy the value since it's only valid during the transaction.
			copied := make([]byte, len(v))
			copy(copied, v)
			candidates = append(candidates, Snapshot{Path: scope.Doc(q.Collection, string(k)), Data: copied})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return applyQuery(candidates, q)
}

// RunTransaction runs fn inside a single bbolt read-write transaction.
func (b *Bolt) RunTransaction(ctx context.Context, fn func(context.Context, Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		btx := &boltTx{tx: tx, writes: newStaged()}
		if err := fn(ctx, btx); err != nil {
			return err
		}
		return btx.writes.each(func(doc stagedDoc) error {
			bucket, err := createCollectionBucket(tx, doc.path.Scope, doc.path.Collection)
			if err != nil {
				return fmt.Errorf("docstore: bucket %s: %w", doc.path, err)
			}
			return bucket.Put([]byte(doc.path.ID), doc.data)
		})
	})
}

type boltTx struct {
	tx     *bolt.Tx
	writes *staged
}

func (t *boltTx) Get(_ context.Context, path Path, dest any) error {
	if err := path.Validate(); err != nil {
		return err
	}
	if data, ok := t.writes.get(path); ok {
		return json.Unmarshal(data, dest)
	}
	return boltGet(t.tx, path, dest)
}

func (t *boltTx) Set(path Path, doc any) error {
	return t.writes.set(path, doc)
}
