package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Skryldev/voiceclip/domain/model"
	pkgerrors "github.com/Skryldev/voiceclip/pkg/errors"
	"github.com/Skryldev/voiceclip/pkg/logger"
	"github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
)

// ErrClipNotFound is returned when no record exists for an id.
var ErrClipNotFound = errors.New("clip not found")

const keyPrefix = "clip/"

// BadgerCatalog keeps clip metadata in an embedded badger database, one JSON
// value per clip id.
type BadgerCatalog struct {
	db  *badger.DB
	log *logger.Logger
}

// OpenBadger opens (or creates) the catalog under dir. An empty dir keeps the
// database in memory.
func OpenBadger(dir string, log *logger.Logger) (*BadgerCatalog, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create catalog directory: %w", err)
		}
		opts = badger.DefaultOptions(filepath.Join(dir, "badger"))
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return &BadgerCatalog{db: db, log: logger.OrNop(log).Named("catalog")}, nil
}

func (c *BadgerCatalog) Put(_ context.Context, item model.AudioItem) error {
	if err := item.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal clip: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(item.ID), data)
	})
}

func (c *BadgerCatalog) Get(_ context.Context, id string) (model.AudioItem, error) {
	var item model.AudioItem
	err := c.db.View(func(txn *badger.Txn) error {
		it, err := txn.Get(key(id))
		if err != nil {
			return err
		}
		return it.Value(func(val []byte) error {
			return json.Unmarshal(val, &item)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return model.AudioItem{}, pkgerrors.NewNotFoundError("clip", id, ErrClipNotFound)
	}
	if err != nil {
		return model.AudioItem{}, fmt.Errorf("failed to get clip: %w", err)
	}
	return item, nil
}

// Delete removes the record. Deleting a missing id succeeds.
func (c *BadgerCatalog) Delete(_ context.Context, id string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(id))
	})
}

// List returns every record in key order.
func (c *BadgerCatalog) List(_ context.Context) ([]model.AudioItem, error) {
	var items []model.AudioItem
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var item model.AudioItem
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &item)
			})
			if err != nil {
				c.log.Warn("skipping unreadable clip record",
					zap.ByteString("key", it.Item().KeyCopy(nil)),
					zap.Error(err),
				)
				continue
			}
			items = append(items, item)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list clips: %w", err)
	}
	return items, nil
}

func (c *BadgerCatalog) Close() error {
	return c.db.Close()
}

func key(id string) []byte {
	return []byte(keyPrefix + id)
}
