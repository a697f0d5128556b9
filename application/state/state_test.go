package state

import (
	"testing"

	"github.com/Skryldev/voiceclip/domain/model"
	pkgerrors "github.com/Skryldev/voiceclip/pkg/errors"
)

func TestTransitionTable(t *testing.T) {
	item := model.NewAudioItem("c1", "", model.ContainerM4A)
	tests := []struct {
		from Kind
		ev   Event
		to   Kind
		ok   bool
	}{
		{KindIdle, EventPlay, KindPlaying, true},
		{KindPlaying, EventPause, KindPaused, true},
		{KindPlaying, EventStop, KindIdle, true},
		{KindPlaying, EventFinish, KindIdle, true},
		{KindPaused, EventPlay, KindPlaying, true},
		{KindPaused, EventStop, KindIdle, true},
		{KindIdle, EventRecord, KindRecording, true},
		{KindRecording, EventRecordStop, KindIdle, true},
		{KindIdle, EventCropBegin, KindCropping, true},
		{KindCropping, EventCropEnd, KindIdle, true},
		{KindIdle, EventCutBegin, KindCutting, true},
		{KindCutting, EventCutEnd, KindIdle, true},
		{KindIdle, EventInsertBegin, KindInserting, true},
		{KindInserting, EventInsertEnd, KindIdle, true},

		{KindIdle, EventPause, KindIdle, false},
		{KindPlaying, EventRecord, KindPlaying, false},
		{KindRecording, EventPlay, KindRecording, false},
		{KindCropping, EventCutBegin, KindCropping, false},
		{KindCutting, EventCropEnd, KindCutting, false},
		{KindPaused, EventPause, KindPaused, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.ev), func(t *testing.T) {
			from := State{Kind: tt.from}
			if tt.from == KindPlaying || tt.from == KindPaused {
				from.Item = &item
			}
			got, err := Next(from, tt.ev, item)
			if tt.ok != (err == nil) {
				t.Fatalf("err = %v, want ok=%v", err, tt.ok)
			}
			if got.Kind != tt.to {
				t.Errorf("to = %s, want %s", got.Kind, tt.to)
			}
			if !tt.ok {
				if _, isTransition := pkgerrors.As[*pkgerrors.TransitionError](err); !isTransition {
					t.Errorf("err = %T, want *TransitionError", err)
				}
			}
			carries := got.Kind == KindPlaying || got.Kind == KindPaused
			if carries != (got.Item != nil) {
				t.Errorf("state %s item = %v", got, got.Item)
			}
			if carries && got.Item.ID != item.ID {
				t.Errorf("state %s carries clip %s", got, got.Item.ID)
			}
		})
	}
}

func TestCoordinatorKeepsIdentity(t *testing.T) {
	c := NewCoordinator("c1", nil)
	mine := model.NewAudioItem("c1", "", model.ContainerM4A)
	other := model.NewAudioItem("c2", "", model.ContainerM4A)

	if _, err := c.Transition(EventPlay, other); err == nil {
		t.Fatal("foreign item accepted")
	}
	if !c.State().IsIdle() {
		t.Fatalf("state changed to %s", c.State())
	}

	s, err := c.Transition(EventPlay, mine)
	if err != nil {
		t.Fatal(err)
	}
	if s.Item == nil || s.Item.ID != "c1" {
		t.Errorf("playing state carries %v", s.Item)
	}

	if _, err := c.Transition(EventRecord, mine); err == nil {
		t.Fatal("record accepted while playing")
	}
	if c.State().Kind != KindPlaying {
		t.Errorf("state = %s after rejected transition", c.State())
	}
}
