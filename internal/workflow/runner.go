package workflow

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/DocDesk/internal/apiclient"
	"github.com/dharsanguruparan/DocDesk/internal/capture"
	"github.com/dharsanguruparan/DocDesk/internal/model"
	"github.com/dharsanguruparan/DocDesk/internal/upload"
)

var (
	// ErrBack is returned by UI.FillMetadata when the user leaves the form
	// backwards.
	ErrBack = errors.New("back")
	// ErrLeave is returned by UI.FillMetadata when the user ends the session,
	// for example by closing the input.
	ErrLeave = errors.New("leave")
)

// PageChoice is what the user picked on page review.
type PageChoice int

const (
	ChoiceAdd PageChoice = iota
	ChoiceRemove
	ChoiceProceed
	ChoiceBack
	ChoiceLeave
)

// PageDecision pairs a choice with the page index it applies to.
type PageDecision struct {
	Choice PageChoice
	Index  int
}

// UI is the presentation the Runner drives. Each method blocks until the user
// answers.
type UI interface {
	capture.Prompter
	ChooseEntity() (model.EntityType, bool)
	FillMetadata(ctx context.Context, entity model.EntityType, prefill model.Metadata) (model.Metadata, error)
	ReviewPages(pages []*model.CapturedPage) PageDecision
	Progress(p upload.Progress)
	Outcome(result model.UploadResult, actions []Action) Action
	Failed(alert Alert) Action
}

// Capturer produces one page per call.
type Capturer interface {
	Capture(ctx context.Context) (*model.CapturedPage, error)
}

// Submitter runs the upload pipeline.
type Submitter interface {
	Run(ctx context.Context, meta model.Metadata, pages []*model.CapturedPage, progress upload.ProgressFunc) model.UploadResult
}

// Runner drives a Controller through its stages until the user returns to the
// dashboard.
type Runner struct {
	ctrl     *Controller
	ui       UI
	capturer Capturer
	uploader Submitter
	log      *zap.Logger
}

func NewRunner(ctrl *Controller, ui UI, capturer Capturer, uploader Submitter, log *zap.Logger) *Runner {
	return &Runner{ctrl: ctrl, ui: ui, capturer: capturer, uploader: uploader, log: log.With(zap.String("component", "runner"))}
}

// Run returns nil when the user leaves for the dashboard and an error matching
// apiclient.ErrSessionExpired when they must log in again.
func (r *Runner) Run(ctx context.Context) error {
	defer r.ctrl.Close()
	for {
		if err := ctx.Err(); err != nil {
			r.ctrl.Cancel()
			return err
		}
		if done, err := r.step(ctx); done || err != nil {
			return err
		}
	}
}

func (r *Runner) step(ctx context.Context) (bool, error) {
	state := r.ctrl.State()
	switch state.Stage {
	case StageSelectEntity:
		entity, ok := r.ui.ChooseEntity()
		if !ok {
			return true, nil
		}
		return false, r.ctrl.Start(entity)

	case StageMetadata:
		meta, err := r.ui.FillMetadata(r.ctrl.StageContext(), state.Entity, state.Metadata)
		switch {
		case errors.Is(err, ErrBack):
			return false, r.ctrl.Back()
		case errors.Is(err, ErrLeave):
			return r.leave()
		case err != nil:
			return false, fmt.Errorf("fill metadata: %w", err)
		}
		if err := r.ctrl.SubmitMetadata(meta); err != nil {
			if errors.Is(err, ErrInvalidMetadata) {
				r.ui.Notify(err.Error())
				return false, nil
			}
			return false, err
		}
		return false, nil

	case StageCapture:
		page, err := r.capturer.Capture(r.ctrl.StageContext())
		switch {
		case errors.Is(err, capture.ErrCancelled):
			return false, r.ctrl.CaptureCancelled()
		case err != nil && ctx.Err() != nil:
			return false, nil
		case err != nil:
			r.log.Warn("capture failed", zap.Error(err))
			r.ui.Notify(err.Error())
			return false, r.ctrl.CaptureCancelled()
		}
		return false, r.ctrl.PageCaptured(page)

	case StagePages:
		d := r.ui.ReviewPages(state.Pages)
		switch d.Choice {
		case ChoiceAdd:
			return false, r.ctrl.AddPage()
		case ChoiceRemove:
			_, err := r.ctrl.RemovePage(d.Index, func(i int) bool {
				return r.ui.Confirm(fmt.Sprintf("Remove page %d?", i+1))
			})
			if err != nil {
				r.ui.Notify(err.Error())
			}
			return false, nil
		case ChoiceProceed:
			if err := r.ctrl.Proceed(); errors.Is(err, ErrNoPages) {
				r.ui.Notify(err.Error())
			} else if err != nil {
				return false, err
			}
			return false, nil
		case ChoiceLeave:
			return r.leave()
		}
		return false, r.ctrl.Back()

	case StageUpload:
		result := r.uploader.Run(r.ctrl.StageContext(), state.Metadata, state.Pages, r.ui.Progress)
		return false, r.ctrl.Complete(result)

	case StageSucceeded:
		return r.follow(r.ui.Outcome(*state.Result, r.ctrl.Actions()))

	case StageFailed:
		alert, ok := r.ctrl.Alert()
		if !ok {
			return false, fmt.Errorf("run: %w: failed without a result", ErrInvalidTransition)
		}
		r.log.Debug("outcome", zap.String("kind", string(alert.Kind)), zap.String("message", alert.Message))
		return r.follow(r.ui.Failed(alert))
	}
	return false, fmt.Errorf("run: %w: unknown stage %s", ErrInvalidTransition, state.Stage)
}

// follow applies the action picked on an outcome screen.
func (r *Runner) follow(action Action) (bool, error) {
	switch action {
	case ActionScanAnother:
		_, err := r.ctrl.ScanAnother()
		return false, err
	case ActionRetry:
		return false, r.ctrl.Retry()
	case ActionBack:
		return false, r.ctrl.Back()
	case ActionLogin:
		r.ctrl.Cancel()
		return true, fmt.Errorf("upload: %w", apiclient.ErrSessionExpired)
	}
	return r.leave()
}

func (r *Runner) leave() (bool, error) {
	r.ctrl.Cancel()
	return true, nil
}
