package receipt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

// BoltDB implements DocumentStore on top of BoltDB.
//
// Each collection is a bucket. Keys are the 8-byte big-endian CreatedAt
// (sign bit flipped so pre-epoch times still sort) followed by the document
// ID, so cursor order is CreatedAt order.
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB opens (or creates) a BoltDB file and makes sure the receipts bucket exists
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(receiptsCollection))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

func documentKey(createdAt Timestamp, id string) []byte {
	key := make([]byte, 8, 8+len(id))
	binary.BigEndian.PutUint64(key, uint64(createdAt.UnixNano())^(1<<63))
	return append(key, id...)
}

// AddDocument stores doc under a freshly generated UUID
func (b *BoltDB) AddDocument(ctx context.Context, collection string, doc *Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := uuid.NewString()
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshaling document: %w", err)
	}

	err = b.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(collection))
		if err != nil {
			return fmt.Errorf("creating bucket %s: %w", collection, err)
		}
		return bucket.Put(documentKey(doc.CreatedAt, id), data)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// QueryOrdered walks the collection bucket in key order
func (b *BoltDB) QueryOrdered(ctx context.Context, collection string, descending bool) ([]*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	docs := make([]*Document, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(collection))
		if bucket == nil {
			return nil
		}

		c := bucket.Cursor()
		first, next := c.First, c.Next
		if descending {
			first, next = c.Last, c.Prev
		}
		for k, v := first(); k != nil; k, v = next() {
			var doc Document
			if err := json.Unmarshal(v, &doc); err != nil {
				return fmt.Errorf("unmarshaling document: %w", err)
			}
			doc.ID = string(k[8:])
			docs = append(docs, &doc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
