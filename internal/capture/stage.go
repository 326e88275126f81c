package capture

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/DocDesk/internal/model"
)

// Prompter is the small piece of UI the capture stage needs: a blocking
// yes/no question and a notice.
type Prompter interface {
	Confirm(question string) bool
	Notify(message string)
}

// Stage obtains exactly one normalized page per Capture call.
type Stage struct {
	scanner    Scanner
	normalizer *Normalizer
	prompt     Prompter
	log        *zap.Logger
}

// NewStage wires a scanner to a normalizer.
func NewStage(scanner Scanner, normalizer *Normalizer, prompt Prompter, log *zap.Logger) *Stage {
	return &Stage{
		scanner:    scanner,
		normalizer: normalizer,
		prompt:     prompt,
		log:        log.With(zap.String("component", "capture")),
	}
}

// Capture scans and normalizes one page. Scanner and normalization failures
// ask the user to retry; declining, or cancelling the scanner, returns
// ErrCancelled.
func (s *Stage) Capture(ctx context.Context) (*model.CapturedPage, error) {
	for {
		raw, err := s.scanner.Scan(ctx)
		switch {
		case errors.Is(err, ErrCancelled):
			return nil, ErrCancelled
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			s.log.Warn("scanner failed", zap.Error(err))
			if !s.prompt.Confirm(fmt.Sprintf("Scanner error: %v. Try again?", err)) {
				return nil, ErrCancelled
			}
			continue
		}

		page, err := s.normalizer.Normalize(raw)
		if err != nil {
			s.log.Warn("normalize failed", zap.String("source", raw), zap.Error(err))
			if !s.prompt.Confirm(fmt.Sprintf("Could not process the image: %v. Try again?", err)) {
				return nil, ErrCancelled
			}
			continue
		}
		s.log.Debug("page captured",
			zap.String("path", page.Path),
			zap.Int("width", page.Width),
			zap.Int("height", page.Height))
		return page, nil
	}
}
