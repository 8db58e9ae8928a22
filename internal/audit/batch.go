package audit

import (
	"context"
	"time"

	"github.com/dharter89/GAAP/internal/notifications"
	"github.com/dharter89/GAAP/internal/table"
)

// Input is one document of a batch.
type Input struct {
	DocumentID string
	Raw        table.RawTable
}

// Outcome pairs a batch document with its report or error.
type Outcome struct {
	DocumentID string
	Report     *Report
	Err        error
}

// RunBatch audits each input independently, in order. One document's
// failure does not stop the others; cancellation does.
func (s *Service) RunBatch(ctx context.Context, inputs []Input) []Outcome {
	started := s.now()
	outcomes := make([]Outcome, 0, len(inputs))
	failed := 0
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			outcomes = append(outcomes, Outcome{DocumentID: in.DocumentID, Err: err})
			failed++
			continue
		}
		report, err := s.Run(ctx, in.DocumentID, in.Raw)
		if err != nil {
			failed++
		}
		outcomes = append(outcomes, Outcome{DocumentID: in.DocumentID, Report: report, Err: err})
	}
	if len(inputs) > 1 {
		s.publish(ctx, notifications.EventBatchCompleted, notifications.Payload{
			"processed": len(inputs) - failed,
			"failed":    failed,
			"duration":  s.now().Sub(started),
		})
	}
	return outcomes
}
