package state

import (
	"github.com/Skryldev/voiceclip/domain/model"
	pkgerrors "github.com/Skryldev/voiceclip/pkg/errors"
)

// Kind names one mode a clip manager can be in.
type Kind string

const (
	KindIdle      Kind = "idle"
	KindPlaying   Kind = "playing"
	KindPaused    Kind = "paused"
	KindRecording Kind = "recording"
	KindCropping  Kind = "cropping"
	KindCutting   Kind = "cutting"
	KindInserting Kind = "inserting"
)

// State is exactly one Kind. Playing and paused carry the clip they refer to.
type State struct {
	Kind Kind
	Item *model.AudioItem
}

func Idle() State { return State{Kind: KindIdle} }

func (s State) String() string {
	if s.Item != nil {
		return string(s.Kind) + "(" + s.Item.ID + ")"
	}
	return string(s.Kind)
}

func (s State) IsIdle() bool { return s.Kind == KindIdle }

// Event is a component action that moves the state.
type Event string

const (
	EventPlay        Event = "play"
	EventPause       Event = "pause"
	EventStop        Event = "stop"
	EventFinish      Event = "finish"
	EventRecord      Event = "record"
	EventRecordStop  Event = "record_stop"
	EventCropBegin   Event = "crop_begin"
	EventCropEnd     Event = "crop_end"
	EventCutBegin    Event = "cut_begin"
	EventCutEnd      Event = "cut_end"
	EventInsertBegin Event = "insert_begin"
	EventInsertEnd   Event = "insert_end"
)

var transitions = map[Kind]map[Event]Kind{
	KindIdle: {
		EventPlay:        KindPlaying,
		EventRecord:      KindRecording,
		EventCropBegin:   KindCropping,
		EventCutBegin:    KindCutting,
		EventInsertBegin: KindInserting,
	},
	KindPlaying: {
		EventPause:  KindPaused,
		EventStop:   KindIdle,
		EventFinish: KindIdle,
	},
	KindPaused: {
		EventPlay: KindPlaying,
		EventStop: KindIdle,
	},
	KindRecording: {EventRecordStop: KindIdle},
	KindCropping:  {EventCropEnd: KindIdle},
	KindCutting:   {EventCutEnd: KindIdle},
	KindInserting: {EventInsertEnd: KindIdle},
}

// Next returns the state ev leads to from s, or a TransitionError.
func Next(s State, ev Event, item model.AudioItem) (State, error) {
	to, ok := transitions[s.Kind][ev]
	if !ok {
		return s, pkgerrors.NewTransitionError(s.String(), string(ev), "transition not allowed")
	}
	next := State{Kind: to}
	if to == KindPlaying || to == KindPaused {
		it := item
		next.Item = &it
	}
	return next, nil
}

// Allowed reports whether ev is legal from s.
func Allowed(s State, ev Event) bool {
	_, ok := transitions[s.Kind][ev]
	return ok
}
