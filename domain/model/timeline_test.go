package model

import (
	"testing"
	"time"

	pkgerrors "github.com/Skryldev/voiceclip/pkg/errors"
)

func sec(n float64) time.Duration { return time.Duration(n * float64(time.Second)) }

func TestKeepRanges(t *testing.T) {
	tests := []struct {
		name   string
		remove []TimeRange
		total  time.Duration
		want   []TimeRange
	}{
		{
			name:   "two holes",
			remove: []TimeRange{{sec(1), sec(2)}, {sec(5), sec(6)}},
			total:  sec(10),
			want:   []TimeRange{{0, sec(1)}, {sec(2), sec(5)}, {sec(6), sec(10)}},
		},
		{
			name:   "unsorted and overlapping",
			remove: []TimeRange{{sec(5), sec(7)}, {sec(1), sec(3)}, {sec(2), sec(4)}},
			total:  sec(10),
			want:   []TimeRange{{0, sec(1)}, {sec(4), sec(5)}, {sec(7), sec(10)}},
		},
		{
			name:   "touching edges",
			remove: []TimeRange{{0, sec(2)}, {sec(8), sec(12)}},
			total:  sec(10),
			want:   []TimeRange{{sec(2), sec(8)}},
		},
		{
			name:   "empty ranges ignored",
			remove: []TimeRange{{sec(3), sec(3)}},
			total:  sec(4),
			want:   []TimeRange{{0, sec(4)}},
		},
		{
			name:   "everything removed",
			remove: []TimeRange{{0, sec(4)}},
			total:  sec(4),
			want:   nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := KeepRanges(tt.remove, tt.total)
			if len(got) != len(tt.want) {
				t.Fatalf("KeepRanges = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("KeepRanges[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestOutputDuration(t *testing.T) {
	total := sec(10)
	tests := []struct {
		name string
		edit Edit
		ins  time.Duration
		want time.Duration
	}{
		{"crop 2..8", Trim{Range: TimeRange{sec(2), sec(8)}}, 0, sec(6)},
		{"crop past end", Trim{Range: TimeRange{sec(8), sec(12)}}, 0, sec(2)},
		{"cut two seconds", RemoveRanges{Ranges: []TimeRange{{sec(1), sec(2)}, {sec(5), sec(6)}}}, 0, sec(8)},
		{"cut overlapping", RemoveRanges{Ranges: []TimeRange{{sec(1), sec(3)}, {sec(2), sec(4)}}}, 0, sec(7)},
		{"splice", Splice{At: sec(4), Source: "b.m4a"}, sec(3), sec(13)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.edit.OutputDuration(total, tt.ins); got != tt.want {
				t.Errorf("OutputDuration = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEditValidate(t *testing.T) {
	total := sec(10)
	tests := []struct {
		name string
		edit Edit
		ok   bool
	}{
		{"trim inside", Trim{Range: TimeRange{sec(1), sec(9)}}, true},
		{"trim within slack", Trim{Range: TimeRange{0, total + 20*time.Millisecond}}, true},
		{"trim negative start", Trim{Range: TimeRange{-sec(1), sec(2)}}, false},
		{"trim reversed", Trim{Range: TimeRange{sec(3), sec(2)}}, false},
		{"trim past end", Trim{Range: TimeRange{sec(2), sec(11)}}, false},
		{"cut none", RemoveRanges{}, false},
		{"cut all", RemoveRanges{Ranges: []TimeRange{{0, total}}}, false},
		{"cut one", RemoveRanges{Ranges: []TimeRange{{sec(1), sec(2)}}}, true},
		{"splice at end", Splice{At: total, Source: "x.m4a"}, true},
		{"splice past end", Splice{At: sec(11), Source: "x.m4a"}, false},
		{"splice no source", Splice{At: 0}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.edit.Validate(total)
			if tt.ok && err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if !tt.ok && pkgerrors.CodeOf(err) != pkgerrors.ErrCodeValidation {
				t.Fatalf("Validate err = %v, want validation error", err)
			}
		})
	}
}

func TestStagedNames(t *testing.T) {
	item := NewAudioItem("abc", "memo", ContainerM4A)
	if item.Path != "abc.m4a" {
		t.Errorf("canonical = %q", item.Path)
	}
	for kind, want := range map[EditKind]string{
		EditCrop:   "abc_cropped.m4a",
		EditCut:    "abc_cut.m4a",
		EditInsert: "abc_insert.m4a",
	} {
		if got := item.StagedName(kind, ContainerM4A); got != want {
			t.Errorf("StagedName(%s) = %q, want %q", kind, got, want)
		}
	}
	if got := item.PendingName(EditCut, ContainerM4A); got != "abc_cut.tmp.m4a" {
		t.Errorf("PendingName = %q", got)
	}
}

func TestWithMethodsDoNotMutate(t *testing.T) {
	item := NewAudioItem("abc", "memo", ContainerM4A).WithTags("a", "b")
	changed := item.WithDuration(sec(3)).WithTitle("other").WithTags("c")
	if item.Duration != 0 || item.Title != "memo" || len(item.Tags) != 2 {
		t.Errorf("receiver mutated: %+v", item)
	}
	if changed.Duration != sec(3) || changed.Title != "other" || changed.Tags[0] != "c" {
		t.Errorf("changed = %+v", changed)
	}
}
