package model

import (
	"fmt"
	"slices"
	"time"

	pkgerrors "github.com/Skryldev/voiceclip/pkg/errors"
)

// TimeRange is a half-open span [Start, End) on a clip's timeline.
type TimeRange struct {
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
}

// Len returns the length of the range, never negative.
func (r TimeRange) Len() time.Duration {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start
}

// Contains reports whether t falls inside the range.
func (r TimeRange) Contains(t time.Duration) bool {
	return t >= r.Start && t < r.End
}

func (r TimeRange) String() string {
	return fmt.Sprintf("[%s,%s]", r.Start, r.End)
}

// Validate checks ordering and, when total is positive, that the range lies
// inside the asset. Zero-length ranges are valid here.
func (r TimeRange) Validate(total time.Duration) error {
	if r.Start < 0 {
		return pkgerrors.NewValidationError("start", r.Start, "start must not be negative")
	}
	if r.End < r.Start {
		return pkgerrors.NewValidationError("end", r.End, "end must not precede start")
	}
	if total > 0 && r.End > total+durationSlack {
		return pkgerrors.NewValidationError("end", r.End, fmt.Sprintf("end is past the clip duration %s", total))
	}
	return nil
}

// durationSlack absorbs encoder rounding of probed durations.
const durationSlack = 50 * time.Millisecond

// NormalizeRanges clamps ranges to [0,total], drops empty ones, sorts them and
// merges overlapping or touching neighbours.
func NormalizeRanges(ranges []TimeRange, total time.Duration) []TimeRange {
	out := make([]TimeRange, 0, len(ranges))
	for _, r := range ranges {
		r.Start = max(r.Start, 0)
		if total > 0 {
			r.End = min(r.End, total)
		}
		if r.Len() > 0 {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b TimeRange) int {
		if a.Start != b.Start {
			return compareDuration(a.Start, b.Start)
		}
		return compareDuration(a.End, b.End)
	})

	merged := out[:0]
	for _, r := range out {
		if n := len(merged); n > 0 && r.Start <= merged[n-1].End {
			merged[n-1].End = max(merged[n-1].End, r.End)
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

// KeepRanges returns the parts of [0,total] left after removing ranges.
func KeepRanges(remove []TimeRange, total time.Duration) []TimeRange {
	var keep []TimeRange
	cursor := time.Duration(0)
	for _, r := range NormalizeRanges(remove, total) {
		if r.Start > cursor {
			keep = append(keep, TimeRange{Start: cursor, End: r.Start})
		}
		cursor = r.End
	}
	if cursor < total {
		keep = append(keep, TimeRange{Start: cursor, End: total})
	}
	return keep
}

// TotalLen sums the lengths of ranges.
func TotalLen(ranges []TimeRange) time.Duration {
	var d time.Duration
	for _, r := range ranges {
		d += r.Len()
	}
	return d
}

func compareDuration(a, b time.Duration) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// EditKind names one of the edit operations.
type EditKind string

const (
	EditCrop   EditKind = "crop"
	EditCut    EditKind = "cut"
	EditInsert EditKind = "insert"
)

// Suffix is appended to the clip id to name the staged output file.
func (k EditKind) Suffix() string {
	switch k {
	case EditCrop:
		return "cropped"
	case EditCut:
		return "cut"
	case EditInsert:
		return "insert"
	}
	return string(k)
}

// Edit is a declarative timeline edit. The set of implementations is closed:
// Trim, RemoveRanges and Splice.
type Edit interface {
	Kind() EditKind
	// Validate checks the edit against the source duration (0 = unknown).
	Validate(source time.Duration) error
	// OutputDuration predicts the rendered length.
	OutputDuration(source, insert time.Duration) time.Duration
	isEdit()
}

// Trim keeps only Range.
type Trim struct {
	Range TimeRange
}

func (Trim) Kind() EditKind { return EditCrop }
func (Trim) isEdit()        {}

func (t Trim) Validate(source time.Duration) error {
	return t.Range.Validate(source)
}

func (t Trim) OutputDuration(source, _ time.Duration) time.Duration {
	r := t.Range
	if source > 0 {
		r.End = min(r.End, source)
	}
	return r.Len()
}

// RemoveRanges drops every listed range and joins what is left.
type RemoveRanges struct {
	Ranges []TimeRange
}

func (RemoveRanges) Kind() EditKind { return EditCut }
func (RemoveRanges) isEdit()        {}

func (r RemoveRanges) Validate(source time.Duration) error {
	if len(r.Ranges) == 0 {
		return pkgerrors.NewValidationError("ranges", r.Ranges, "at least one range is required")
	}
	for _, rg := range r.Ranges {
		if err := rg.Validate(source); err != nil {
			return err
		}
	}
	if source > 0 && len(KeepRanges(r.Ranges, source)) == 0 {
		return pkgerrors.NewValidationError("ranges", r.Ranges, "removing every range would leave an empty clip")
	}
	return nil
}

func (r RemoveRanges) OutputDuration(source, _ time.Duration) time.Duration {
	return TotalLen(KeepRanges(r.Ranges, source))
}

// Splice inserts the asset at Source into the clip at offset At.
type Splice struct {
	At     time.Duration
	Source string
}

func (Splice) Kind() EditKind { return EditInsert }
func (Splice) isEdit()        {}

func (s Splice) Validate(source time.Duration) error {
	if s.Source == "" {
		return pkgerrors.NewValidationError("source", s.Source, "insert source must not be empty")
	}
	if s.At < 0 {
		return pkgerrors.NewValidationError("at", s.At, "insert point must not be negative")
	}
	if source > 0 && s.At > source+durationSlack {
		return pkgerrors.NewValidationError("at", s.At, fmt.Sprintf("insert point is past the clip duration %s", source))
	}
	return nil
}

func (s Splice) OutputDuration(source, insert time.Duration) time.Duration {
	return source + insert
}
