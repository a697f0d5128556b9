package edit

import (
	"context"
	"time"

	"github.com/Skryldev/voiceclip/domain/model"
	pkgerrors "github.com/Skryldev/voiceclip/pkg/errors"
)

// Cropper keeps one contiguous range of a clip.
type Cropper struct {
	*Session
}

func NewCropper(item model.AudioItem, deps Deps) *Cropper {
	return &Cropper{Session: NewSession(model.EditCrop, item, deps)}
}

// Crop stages [start,end). Only final handle positions should be passed.
func (c *Cropper) Crop(ctx context.Context, start, end time.Duration) (model.AudioItem, error) {
	if start >= end {
		return model.AudioItem{}, pkgerrors.NewValidationError("end", end, "crop end must be after start")
	}
	return c.Stage(ctx, model.Trim{Range: model.TimeRange{Start: start, End: end}})
}

// Cutter removes ranges from a clip in a single export.
type Cutter struct {
	*Session
}

func NewCutter(item model.AudioItem, deps Deps) *Cutter {
	return &Cutter{Session: NewSession(model.EditCut, item, deps)}
}

func (c *Cutter) Cut(ctx context.Context, ranges ...model.TimeRange) (model.AudioItem, error) {
	return c.Stage(ctx, model.RemoveRanges{Ranges: ranges})
}

// Preview returns what a cut of ranges would keep, without rendering.
func (c *Cutter) Preview(ranges []model.TimeRange, total time.Duration) []model.TimeRange {
	return model.KeepRanges(ranges, total)
}

// Inserter splices another clip into this one.
type Inserter struct {
	*Session
}

func NewInserter(item model.AudioItem, deps Deps) *Inserter {
	return &Inserter{Session: NewSession(model.EditInsert, item, deps)}
}

// Insert stages other's canonical content spliced in at offset at.
func (i *Inserter) Insert(ctx context.Context, at time.Duration, other model.AudioItem) (model.AudioItem, error) {
	if other.ID == "" {
		return model.AudioItem{}, pkgerrors.NewValidationError("other", other.ID, "insert clip id must not be empty")
	}
	source := i.deps.Store.Resolve(other.CanonicalName(i.deps.Container))
	return i.Stage(ctx, model.Splice{At: at, Source: source})
}
