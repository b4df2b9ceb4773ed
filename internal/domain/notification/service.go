package notification

import "context"

// Notifier is informed once per run, never per employee.
type Notifier interface {
	NotifyRunCompleted(ctx context.Context, summary RunSummary) error
}
