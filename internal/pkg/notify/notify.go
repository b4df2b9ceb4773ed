package notify

import (
	"context"
	"errors"

	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/notification"
)

// Multi fans a run summary out to every configured channel. A failing channel does not
// stop the others; their errors are joined.
type Multi []notification.Notifier

func (m Multi) NotifyRunCompleted(ctx context.Context, summary notification.RunSummary) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.NotifyRunCompleted(ctx, summary); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
