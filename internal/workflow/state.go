// Package workflow owns the digitalization state machine: entity selection,
// metadata, capture, page review and upload, plus the outcome screens.
package workflow

import (
	"errors"

	"github.com/dharsanguruparan/DocDesk/internal/model"
)

// Stage is the screen the workflow is currently on.
type Stage int

const (
	StageSelectEntity Stage = iota
	StageMetadata
	StageCapture
	StagePages
	StageUpload
	StageSucceeded
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageSelectEntity:
		return "select_entity"
	case StageMetadata:
		return "metadata"
	case StageCapture:
		return "capture"
	case StagePages:
		return "pages"
	case StageUpload:
		return "upload"
	case StageSucceeded:
		return "succeeded"
	case StageFailed:
		return "failed"
	}
	return "unknown"
}

// Action is a follow-up the user may pick on a stage.
type Action string

const (
	ActionContinue    Action = "continue"
	ActionRetry       Action = "retry"
	ActionBack        Action = "back"
	ActionDashboard   Action = "dashboard"
	ActionLogin       Action = "login"
	ActionScanAnother Action = "scan_another"
)

// FailureKind names the step of the upload pipeline that failed.
type FailureKind string

const (
	FailureProcessing FailureKind = "processing"
	FailureUpload     FailureKind = "upload"
)

// Alert is what the failed stage shows instead of letting an error escape.
type Alert struct {
	Kind    FailureKind
	Message string
	Actions []Action
}

var (
	ErrInvalidTransition = errors.New("invalid workflow transition")
	ErrNoPages           = errors.New("add at least one page before continuing")
	ErrInvalidMetadata   = errors.New("required fields are missing")
)

// State is a snapshot of the workflow. Metadata and Pages are copies.
type State struct {
	Stage    Stage
	Entity   model.EntityType
	Metadata model.Metadata
	Pages    []*model.CapturedPage
	Result   *model.UploadResult
}
