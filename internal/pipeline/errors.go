package pipeline

import (
	"errors"
	"fmt"
)

// ErrMalformedReply means the language model answered with something that is
// not a list of reply segments
var ErrMalformedReply = errors.New("malformed language model reply")

// Stage names a step of a pipeline run
type Stage string

const (
	StageCompletion Stage = "completion"
	StageDecode     Stage = "decode"
	StageWorkspace  Stage = "workspace"
	StageSynthesis  Stage = "synthesis"
	StageTranscode  Stage = "transcode"
	StageLipSync    Stage = "lipsync"
)

// StageError records where a run failed. Index is -1 for steps that are not
// tied to one segment.
type StageError struct {
	Index int
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("pipeline %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("pipeline segment %d %s: %v", e.Index, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func runError(stage Stage, err error) error {
	return &StageError{Index: -1, Stage: stage, Err: err}
}

func segmentError(index int, stage Stage, err error) error {
	return &StageError{Index: index, Stage: stage, Err: err}
}
