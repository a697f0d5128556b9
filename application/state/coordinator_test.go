package state

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Skryldev/voiceclip/domain/model"
)

type recorder struct {
	mu       sync.Mutex
	playback []PlaybackEvent
	edits    []EditEvent
}

func (r *recorder) OnPlayback(e PlaybackEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.playback = append(r.playback, e)
}

func (r *recorder) OnCropper(e EditEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edits = append(r.edits, e)
}

func TestSubscribeRoutesByCategory(t *testing.T) {
	c := NewCoordinator("c1", nil)
	r := &recorder{}
	sub, err := c.Subscribe(r)
	if err != nil {
		t.Fatal(err)
	}

	item := model.NewAudioItem("c1", "", model.ContainerM4A)
	c.ReportPlayback(PlaybackEvent{Action: PlaybackProgress, Item: item, Position: time.Second})
	c.ReportEdit(EditEvent{Kind: model.EditCrop, Action: EditBegan, Item: item})
	c.ReportEdit(EditEvent{Kind: model.EditCut, Action: EditBegan, Item: item})

	if len(r.playback) != 1 || r.playback[0].Position != time.Second {
		t.Errorf("playback = %+v", r.playback)
	}
	if r.playback[0].State.Kind != KindIdle {
		t.Errorf("event state = %s, want stamped idle", r.playback[0].State)
	}
	if len(r.edits) != 1 || r.edits[0].Kind != model.EditCrop {
		t.Errorf("edits = %+v", r.edits)
	}

	sub.Unsubscribe()
	sub.Unsubscribe()
	c.ReportPlayback(PlaybackEvent{Action: PlaybackProgress, Item: item})
	if len(r.playback) != 1 {
		t.Errorf("delivered after unsubscribe: %d", len(r.playback))
	}
	if c.Observers() != 0 {
		t.Errorf("observers = %d", c.Observers())
	}
}

func TestSubscribeRejectsNonObserver(t *testing.T) {
	c := NewCoordinator("c1", nil)
	if _, err := c.Subscribe(struct{}{}); !errors.Is(err, ErrNoCategory) {
		t.Fatalf("err = %v", err)
	}
}

func TestReentrantReportsAreQueuedInOrder(t *testing.T) {
	c := NewCoordinator("c1", nil)
	item := model.NewAudioItem("c1", "", model.ContainerM4A)

	var order []string
	var inCallback bool
	_, err := c.Subscribe(Funcs{
		Playback: func(e PlaybackEvent) {
			if inCallback {
				t.Error("callbacks overlapped")
			}
			inCallback = true
			defer func() { inCallback = false }()

			order = append(order, "playback:"+string(e.Action))
			if e.Action == PlaybackStarted {
				c.ReportEdit(EditEvent{Kind: model.EditCrop, Action: EditBegan, Item: item})
				c.ReportPlayback(PlaybackEvent{Action: PlaybackProgress, Item: item})
			}
		},
		Cropper: func(e EditEvent) {
			order = append(order, "crop:"+string(e.Action))
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	c.ReportPlayback(PlaybackEvent{Action: PlaybackStarted, Item: item})

	want := []string{"playback:started", "crop:began", "playback:progress"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestObserverPanicDoesNotStopDelivery(t *testing.T) {
	c := NewCoordinator("c1", nil)
	var got int
	_, _ = c.Subscribe(Funcs{Playback: func(PlaybackEvent) { panic("boom") }})
	_, _ = c.Subscribe(Funcs{Playback: func(PlaybackEvent) { got++ }})

	c.ReportPlayback(PlaybackEvent{Action: PlaybackStarted})
	c.ReportPlayback(PlaybackEvent{Action: PlaybackStopped})
	if got != 2 {
		t.Errorf("second observer got %d events, want 2", got)
	}
}
