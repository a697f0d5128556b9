package model

import "time"

// ExportJob describes one render of Edit applied to Source, written to Target.
// Source and Target are absolute paths.
type ExportJob struct {
	ID     string
	ClipID string
	Source string
	Target string
	Edit   Edit
}

// ExportResult holds the outcome of a successful export
type ExportResult struct {
	Job        ExportJob
	SourceMeta *AudioMetadata
	InsertMeta *AudioMetadata
	OutputMeta *AudioMetadata
	Elapsed    time.Duration
	ExportedAt time.Time
}

// OutputDuration prefers the probed duration of the rendered file and falls
// back to the timeline prediction.
func (r *ExportResult) OutputDuration() time.Duration {
	if r.OutputMeta != nil && r.OutputMeta.Duration > 0 {
		return r.OutputMeta.Duration
	}
	var src, ins time.Duration
	if r.SourceMeta != nil {
		src = r.SourceMeta.Duration
	}
	if r.InsertMeta != nil {
		ins = r.InsertMeta.Duration
	}
	return r.Job.Edit.OutputDuration(src, ins)
}

// BatchJob is a stateless export that is not tied to a clip manager.
type BatchJob struct {
	ID     string
	Source string
	Target string
	Edit   Edit
}

// BatchResult holds results of a batch operation
type BatchResult struct {
	JobID  string
	Result *ExportResult
	Err    error
}
