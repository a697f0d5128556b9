package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Skryldev/voiceclip/domain/model"
	"github.com/Skryldev/voiceclip/domain/ports"
	pkgerrors "github.com/Skryldev/voiceclip/pkg/errors"
)

type closingCatalog interface {
	ports.Catalog
	Close() error
}

func catalogs(t *testing.T) map[string]closingCatalog {
	t.Helper()
	onDisk, err := OpenBadger(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	inMem, err := OpenBadger("", nil)
	if err != nil {
		t.Fatalf("OpenBadger in-memory: %v", err)
	}
	return map[string]closingCatalog{
		"badger":        onDisk,
		"badger-memory": inMem,
		"memory":        NewMemory(),
	}
}

func TestCatalogRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, c := range catalogs(t) {
		t.Run(name, func(t *testing.T) {
			defer c.Close()

			item := model.NewAudioItem("b", "second", model.ContainerM4A).
				WithDuration(3*time.Second).
				WithTags("t1", "t2")
			if err := c.Put(ctx, item); err != nil {
				t.Fatalf("Put: %v", err)
			}
			if err := c.Put(ctx, model.NewAudioItem("a", "first", model.ContainerM4A)); err != nil {
				t.Fatalf("Put: %v", err)
			}

			got, err := c.Get(ctx, "b")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.Title != "second" || got.Duration != 3*time.Second || len(got.Tags) != 2 {
				t.Errorf("Get = %+v", got)
			}

			list, err := c.List(ctx)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(list) != 2 || list[0].ID != "a" || list[1].ID != "b" {
				t.Errorf("List = %+v", list)
			}

			if err := c.Delete(ctx, "b"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			_, err = c.Get(ctx, "b")
			if !errors.Is(err, ErrClipNotFound) {
				t.Errorf("Get after delete err = %v, want ErrClipNotFound", err)
			}
			if pkgerrors.CodeOf(err) != pkgerrors.ErrCodeNotFound {
				t.Errorf("code = %q", pkgerrors.CodeOf(err))
			}
			if err := c.Delete(ctx, "b"); err != nil {
				t.Errorf("second Delete: %v", err)
			}
		})
	}
}

func TestCatalogRejectsInvalidItems(t *testing.T) {
	ctx := context.Background()
	for name, c := range catalogs(t) {
		t.Run(name, func(t *testing.T) {
			defer c.Close()
			err := c.Put(ctx, model.AudioItem{ID: "x", Path: "../x.m4a"})
			if pkgerrors.CodeOf(err) != pkgerrors.ErrCodeValidation {
				t.Errorf("err = %v, want validation error", err)
			}
		})
	}
}
