package state

// Observer categories. A value may implement any number of them; Subscribe
// registers it in each.

type PlaybackObserver interface {
	OnPlayback(PlaybackEvent)
}

type RecorderObserver interface {
	OnRecorder(RecorderEvent)
}

type CropperObserver interface {
	OnCropper(EditEvent)
}

type CutterObserver interface {
	OnCutter(EditEvent)
}

type InserterObserver interface {
	OnInserter(EditEvent)
}

type TranscriptionJobObserver interface {
	OnTranscriptionJob(TranscriptionJobEvent)
}

type TranscriptObserver interface {
	OnTranscript(TranscriptEvent)
}

// Funcs adapts plain functions to every observer category. Nil fields are
// skipped at delivery.
type Funcs struct {
	Playback         func(PlaybackEvent)
	Recorder         func(RecorderEvent)
	Cropper          func(EditEvent)
	Cutter           func(EditEvent)
	Inserter         func(EditEvent)
	TranscriptionJob func(TranscriptionJobEvent)
	Transcript       func(TranscriptEvent)
}

func (f Funcs) OnPlayback(e PlaybackEvent) {
	if f.Playback != nil {
		f.Playback(e)
	}
}

func (f Funcs) OnRecorder(e RecorderEvent) {
	if f.Recorder != nil {
		f.Recorder(e)
	}
}

func (f Funcs) OnCropper(e EditEvent) {
	if f.Cropper != nil {
		f.Cropper(e)
	}
}

func (f Funcs) OnCutter(e EditEvent) {
	if f.Cutter != nil {
		f.Cutter(e)
	}
}

func (f Funcs) OnInserter(e EditEvent) {
	if f.Inserter != nil {
		f.Inserter(e)
	}
}

func (f Funcs) OnTranscriptionJob(e TranscriptionJobEvent) {
	if f.TranscriptionJob != nil {
		f.TranscriptionJob(e)
	}
}

func (f Funcs) OnTranscript(e TranscriptEvent) {
	if f.Transcript != nil {
		f.Transcript(e)
	}
}
