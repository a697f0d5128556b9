package state

import (
	"time"

	"github.com/Skryldev/voiceclip/domain/model"
)

// PlaybackAction is what a playback notification reports.
type PlaybackAction string

const (
	PlaybackStarted     PlaybackAction = "started"
	PlaybackPaused      PlaybackAction = "paused"
	PlaybackStopped     PlaybackAction = "stopped"
	PlaybackProgress    PlaybackAction = "progress"
	PlaybackRateChanged PlaybackAction = "rate_changed"
)

// PlaybackEvent is delivered to playback observers. SeekActive marks a
// progress report caused by a seek rather than by playback advancing;
// observers must jump to Position instead of animating towards it.
type PlaybackEvent struct {
	Action     PlaybackAction
	Item       model.AudioItem
	State      State
	Position   time.Duration
	Duration   time.Duration
	Rate       float64
	SeekActive bool
}

type RecorderAction string

const (
	RecorderStarted  RecorderAction = "started"
	RecorderProgress RecorderAction = "progress"
	RecorderStopped  RecorderAction = "stopped"
	RecorderFailed   RecorderAction = "failed"
)

type RecorderEvent struct {
	Action  RecorderAction
	Item    model.AudioItem
	State   State
	Elapsed time.Duration
	Err     error
}

// EditAction is the lifecycle step of a crop, cut or insert session.
type EditAction string

const (
	EditBegan     EditAction = "began"
	EditAdjusted  EditAction = "adjusted"
	EditFailed    EditAction = "failed"
	EditFinished  EditAction = "finished"
	EditCancelled EditAction = "cancelled"
)

// EditEvent is delivered to cropper, cutter or inserter observers depending
// on Kind. Staged is set on adjusted events.
type EditEvent struct {
	Kind   model.EditKind
	Action EditAction
	Item   model.AudioItem
	Staged *model.AudioItem
	State  State
	Err    error
}

type JobAction string

const (
	JobStarted  JobAction = "started"
	JobProgress JobAction = "progress"
	JobFinished JobAction = "finished"
	JobFailed   JobAction = "failed"
)

// TranscriptionJobEvent reports a running transcription. Progress is in [0,1].
type TranscriptionJobEvent struct {
	Action   JobAction
	Item     model.AudioItem
	Progress float64
	Err      error
}

type TranscriptEvent struct {
	Item       model.AudioItem
	Transcript model.Transcript
}
