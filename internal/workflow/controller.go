package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/DocDesk/internal/apiclient"
	"github.com/dharsanguruparan/DocDesk/internal/model"
	"github.com/dharsanguruparan/DocDesk/internal/pages"
	"github.com/dharsanguruparan/DocDesk/internal/upload"
)

// Controller is the single owner of the workflow state. Every transition
// cancels the context of the stage being left.
type Controller struct {
	mu sync.Mutex

	stage  Stage
	entity model.EntityType
	meta   model.Metadata
	pages  *pages.Collection
	result *model.UploadResult

	base        context.Context
	stageCtx    context.Context
	stageCancel context.CancelFunc

	now func() time.Time
	log *zap.Logger
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) { c.now = now }
}

func WithLogger(log *zap.Logger) ControllerOption {
	return func(c *Controller) { c.log = log }
}

// NewController starts on entity selection. Stage contexts derive from ctx.
func NewController(ctx context.Context, opts ...ControllerOption) *Controller {
	c := &Controller{
		stage: StageSelectEntity,
		pages: pages.New(),
		base:  ctx,
		now:   time.Now,
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With(zap.String("component", "workflow"))
	c.stageCtx, c.stageCancel = context.WithCancel(ctx)
	return c
}

// State returns a snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := State{Stage: c.stage, Entity: c.entity, Pages: c.pages.Pages()}
	if c.meta != nil {
		s.Metadata = model.Clone(c.meta)
	}
	if c.result != nil {
		r := *c.result
		s.Result = &r
	}
	return s
}

// Stage returns the current stage.
func (c *Controller) Stage() Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stage
}

// StageContext is cancelled as soon as the workflow leaves the current stage.
func (c *Controller) StageContext() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stageCtx
}

// Start picks the entity type. Calling it again from any stage discards the
// current document and starts over.
func (c *Controller) Start(entity model.EntityType) error {
	meta := model.NewMetadata(entity)
	if meta == nil {
		return fmt.Errorf("start: unknown entity type %q", entity)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.discardLocked()
	c.entity = entity
	c.meta = meta
	c.enterLocked(StageMetadata)
	return nil
}

// SubmitMetadata leaves the form. Pages captured earlier are kept, in which
// case the workflow returns to page review instead of capture.
func (c *Controller) SubmitMetadata(meta model.Metadata) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.expectLocked("submit metadata", StageMetadata); err != nil {
		return err
	}
	if meta == nil || meta.Entity() != c.entity {
		return fmt.Errorf("submit metadata: %w: metadata is not for %s", ErrInvalidTransition, c.entity)
	}
	if missing := model.MissingFields(meta, c.now()); len(missing) > 0 {
		return fmt.Errorf("submit metadata: %w: %v", ErrInvalidMetadata, missing)
	}
	c.meta = model.Clone(meta)
	if c.pages.Empty() {
		c.enterLocked(StageCapture)
	} else {
		c.enterLocked(StagePages)
	}
	return nil
}

// PageCaptured appends a normalized page and moves to page review.
func (c *Controller) PageCaptured(p *model.CapturedPage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.expectLocked("page captured", StageCapture); err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("page captured: %w: nil page", ErrInvalidTransition)
	}
	c.pages.Add(p)
	c.enterLocked(StagePages)
	return nil
}

// CaptureCancelled exits capture backwards: to page review when pages exist,
// to the form otherwise.
func (c *Controller) CaptureCancelled() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.expectLocked("cancel capture", StageCapture); err != nil {
		return err
	}
	if c.pages.Empty() {
		c.enterLocked(StageMetadata)
	} else {
		c.enterLocked(StagePages)
	}
	return nil
}

// AddPage goes back to capture with the sequence carried.
func (c *Controller) AddPage() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.expectLocked("add page", StagePages); err != nil {
		return err
	}
	c.enterLocked(StageCapture)
	return nil
}

// RemovePage deletes the page at index once confirm agrees. Removing the last
// page returns to capture. It reports whether a page was removed.
func (c *Controller) RemovePage(index int, confirm func(index int) bool) (bool, error) {
	c.mu.Lock()
	if err := c.expectLocked("remove page", StagePages); err != nil {
		c.mu.Unlock()
		return false, err
	}
	if index < 0 || index >= c.pages.Len() {
		n := c.pages.Len()
		c.mu.Unlock()
		return false, fmt.Errorf("remove page: %w: %d of %d", pages.ErrIndexOutOfRange, index, n)
	}
	c.mu.Unlock()

	if confirm != nil && !confirm(index) {
		return false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.expectLocked("remove page", StagePages); err != nil {
		return false, err
	}
	removed, err := c.pages.Remove(index)
	if err != nil {
		return false, fmt.Errorf("remove page: %w", err)
	}
	if err := pages.New(removed).Cleanup(); err != nil {
		c.log.Warn("could not remove page file", zap.String("path", removed.Path), zap.Error(err))
	}
	if c.pages.Empty() {
		c.enterLocked(StageCapture)
	}
	return true, nil
}

// Proceed moves to upload. It fails with ErrNoPages on an empty sequence.
func (c *Controller) Proceed() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.expectLocked("proceed", StagePages); err != nil {
		return err
	}
	if c.pages.Empty() {
		return ErrNoPages
	}
	c.result = nil
	c.enterLocked(StageUpload)
	return nil
}

// Complete records the outcome of the upload attempt.
func (c *Controller) Complete(result model.UploadResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.expectLocked("complete upload", StageUpload); err != nil {
		return err
	}
	c.result = &result
	if result.Success {
		c.enterLocked(StageSucceeded)
	} else {
		c.enterLocked(StageFailed)
	}
	return nil
}

// Retry re-enters upload after a failure that is not an expired session.
func (c *Controller) Retry() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.expectLocked("retry", StageFailed); err != nil {
		return err
	}
	if sessionExpired(c.result) {
		return fmt.Errorf("retry: %w: session expired, log in again", ErrInvalidTransition)
	}
	c.result = nil
	c.enterLocked(StageUpload)
	return nil
}

// ScanAnother starts a new document of the same category, prefilled from the
// one just uploaded. It returns the prefill.
func (c *Controller) ScanAnother() (model.Metadata, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.expectLocked("scan another", StageSucceeded); err != nil {
		return nil, err
	}
	prefill := model.Prefill(c.meta)
	c.cleanupLocked()
	c.result = nil
	c.meta = prefill
	c.enterLocked(StageMetadata)
	return model.Clone(prefill), nil
}

// Back moves one stage backwards. The first stage and the outcome screens
// have no way back.
func (c *Controller) Back() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.stage {
	case StageMetadata:
		c.discardLocked()
		c.enterLocked(StageSelectEntity)
	case StageCapture:
		if c.pages.Empty() {
			c.enterLocked(StageMetadata)
		} else {
			c.enterLocked(StagePages)
		}
	case StagePages:
		c.enterLocked(StageMetadata)
	case StageUpload, StageFailed:
		c.result = nil
		c.enterLocked(StagePages)
	default:
		return fmt.Errorf("back: %w from %s", ErrInvalidTransition, c.stage)
	}
	return nil
}

// Cancel discards the document and returns to entity selection.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.discardLocked()
	c.enterLocked(StageSelectEntity)
}

// Actions lists what the user may do next on the current stage.
func (c *Controller) Actions() []Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.stage {
	case StageMetadata:
		if c.meta != nil && model.Valid(c.meta, c.now()) {
			return []Action{ActionContinue}
		}
	case StagePages:
		if !c.pages.Empty() {
			return []Action{ActionContinue}
		}
	case StageSucceeded:
		return []Action{ActionScanAnother, ActionDashboard}
	case StageFailed:
		return failureActions(c.result)
	}
	return nil
}

// Alert describes the current failure, if any.
func (c *Controller) Alert() (Alert, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stage != StageFailed || c.result == nil {
		return Alert{}, false
	}
	kind := FailureUpload
	if processingFailed(c.result) {
		kind = FailureProcessing
	}
	return Alert{Kind: kind, Message: c.result.Message, Actions: failureActions(c.result)}, true
}

// failureActions keeps the pages reachable after a processing failure. An
// expired session only allows logging in again.
func failureActions(r *model.UploadResult) []Action {
	switch {
	case sessionExpired(r):
		return []Action{ActionLogin}
	case processingFailed(r):
		return []Action{ActionRetry, ActionBack}
	}
	return []Action{ActionRetry, ActionDashboard}
}

func processingFailed(r *model.UploadResult) bool {
	return r != nil && r.Failure == upload.FailureProcessing
}

// Close cancels the current stage and removes page files.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stageCancel()
	c.cleanupLocked()
}

func (c *Controller) expectLocked(op string, want Stage) error {
	if c.stage != want {
		return fmt.Errorf("%s: %w: on %s, want %s", op, ErrInvalidTransition, c.stage, want)
	}
	return nil
}

func (c *Controller) enterLocked(next Stage) {
	c.stageCancel()
	c.stageCtx, c.stageCancel = context.WithCancel(c.base)
	c.log.Debug("transition", zap.Stringer("from", c.stage), zap.Stringer("to", next), zap.Int("pages", c.pages.Len()))
	c.stage = next
}

func (c *Controller) discardLocked() {
	c.cleanupLocked()
	c.entity = ""
	c.meta = nil
	c.result = nil
}

func (c *Controller) cleanupLocked() {
	if err := c.pages.Cleanup(); err != nil {
		c.log.Warn("could not remove page files", zap.Error(err))
	}
	c.pages = pages.New()
}

func sessionExpired(r *model.UploadResult) bool {
	if r == nil || r.Success {
		return false
	}
	return r.Failure == string(apiclient.KindSessionExpired) || apiclient.IsSessionExpiredMessage(r.Message)
}
