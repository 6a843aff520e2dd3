package lims

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/penang-gov/surveillance/internal/case/domain"
	"github.com/penang-gov/surveillance/internal/shared/events"
	"github.com/penang-gov/surveillance/internal/shared/metrics"
)

// CaseImporter attaches imported lab results to their cases
type CaseImporter struct {
	repo domain.Repository
	bus  events.EventBus
	log  zerolog.Logger
}

// NewCaseImporter creates a new case importer
func NewCaseImporter(repo domain.Repository, bus events.EventBus, log zerolog.Logger) *CaseImporter {
	return &CaseImporter{
		repo: repo,
		bus:  bus,
		log:  log.With().Str("component", "lims-importer").Logger(),
	}
}

// Import attaches a lab result to the matching case. Results for unknown
// case numbers or finalized cases are reported as errors; the adapter logs
// them and moves on.
func (i *CaseImporter) Import(ctx context.Context, result Result) error {
	c, err := i.repo.FindByCaseNumber(ctx, result.CaseNumber)
	if err != nil {
		return fmt.Errorf("case %s not found: %w", result.CaseNumber, err)
	}

	if err := c.AttachLabResult(result.Test, result.Positive, "lims"); err != nil {
		return err
	}

	if err := i.repo.Update(ctx, c); err != nil {
		return fmt.Errorf("updating case %s: %w", result.CaseNumber, err)
	}

	metrics.RecordLabResultImported(result.Test)
	i.log.Info().
		Str("case_number", result.CaseNumber).
		Str("test", result.Test).
		Bool("positive", result.Positive).
		Msg("lab result attached")

	if i.bus != nil {
		event := events.NewEvent(events.TypeLabResult, "lims", map[string]any{
			"case_id":     c.ID,
			"case_number": c.CaseNumber,
			"test":        result.Test,
			"positive":    result.Positive,
		}).WithActor("lims", "system")
		if err := i.bus.Publish(ctx, event); err != nil {
			i.log.Warn().Err(err).Msg("publishing lab result event failed")
		}
	}

	return nil
}

var _ Importer = (*CaseImporter)(nil)
