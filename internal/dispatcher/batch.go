package dispatcher

import (
	"context"
	"fmt"

	"github.com/goliatone/go-catalog-notifier/pkg/domain"
	"github.com/goliatone/go-catalog-notifier/pkg/interfaces/logger"
)

// Result is the outcome of one entry of a batch.
type Result struct {
	Notification domain.Notification
	Outcome      domain.Outcome
	Err          error
}

// BatchReport lists results in input order.
type BatchReport struct {
	Results []Result
}

// Count returns how many entries ended with outcome.
func (r BatchReport) Count(outcome domain.Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == outcome {
			n++
		}
	}
	return n
}

// Failed returns the postponed entries.
func (r BatchReport) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// SendBatch delivers notifications for one build one at a time, in order.
// A failed entry is postponed and the batch moves on.
func (s *Service) SendBatch(ctx context.Context, notifications []domain.Notification, build *domain.Build, project *domain.Project) BatchReport {
	report := BatchReport{Results: make([]Result, 0, len(notifications))}
	total := len(notifications)
	for i, n := range notifications {
		outcome, err := s.Dispatch(ctx, n, build, project)
		report.Results = append(report.Results, Result{Notification: n, Outcome: outcome, Err: err})

		switch {
		case err != nil:
			s.logger.Warn(progress(i+1, total)+" postponed",
				logger.Field{Key: "notification", Value: n.String()},
				logger.Field{Key: "error", Value: err},
			)
		case outcome == domain.OutcomeDelivered:
			s.logger.Info(progress(i+1, total)+" performed successfully",
				logger.Field{Key: "notification", Value: n.String()},
			)
		}
	}
	return report
}

func progress(i, total int) string {
	return fmt.Sprintf("%d/%d", i, total)
}
