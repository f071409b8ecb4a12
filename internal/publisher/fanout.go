package publisher

import (
	"context"

	"go.uber.org/multierr"

	"github.com/fortuna/spreadline/internal/predict"
)

// ReportPublisher delivers a scored report somewhere.
type ReportPublisher interface {
	PublishReport(ctx context.Context, rep predict.Report) (int, error)
}

// Fanout publishes a report to every target, even after one fails. The count
// returned is the first target's.
type Fanout []ReportPublisher

func (f Fanout) PublishReport(ctx context.Context, rep predict.Report) (int, error) {
	var (
		n    int
		errs error
	)
	for i, p := range f {
		c, err := p.PublishReport(ctx, rep)
		if i == 0 {
			n = c
		}
		errs = multierr.Append(errs, err)
	}
	return n, errs
}
