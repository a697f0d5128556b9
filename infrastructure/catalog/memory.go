package catalog

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/Skryldev/voiceclip/domain/model"
	pkgerrors "github.com/Skryldev/voiceclip/pkg/errors"
)

// MemoryCatalog is a process-local catalog for tests and one-shot CLI runs.
type MemoryCatalog struct {
	mu    sync.RWMutex
	items map[string]model.AudioItem
}

func NewMemory() *MemoryCatalog {
	return &MemoryCatalog{items: make(map[string]model.AudioItem)}
}

func (c *MemoryCatalog) Put(_ context.Context, item model.AudioItem) error {
	if err := item.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[item.ID] = item.WithTags(item.Tags...)
	return nil
}

func (c *MemoryCatalog) Get(_ context.Context, id string) (model.AudioItem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[id]
	if !ok {
		return model.AudioItem{}, pkgerrors.NewNotFoundError("clip", id, ErrClipNotFound)
	}
	return item.WithTags(item.Tags...), nil
}

func (c *MemoryCatalog) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, id)
	return nil
}

func (c *MemoryCatalog) List(_ context.Context) ([]model.AudioItem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.AudioItem, 0, len(c.items))
	for _, item := range c.items {
		out = append(out, item.WithTags(item.Tags...))
	}
	slices.SortFunc(out, func(a, b model.AudioItem) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (c *MemoryCatalog) Close() error { return nil }
