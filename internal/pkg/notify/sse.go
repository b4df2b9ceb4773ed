package notify

import (
	"context"

	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/domain/notification"
	"github.com/DeiversonMedeiros/multiweave-core-sub010/internal/pkg/sse"
)

// EventRunFinished is the SSE event name of a run summary.
const EventRunFinished = "run_finished"

// SSENotifier pushes the summary to the stream of the run.
type SSENotifier struct {
	hub *sse.Hub
}

func NewSSENotifier(hub *sse.Hub) *SSENotifier {
	return &SSENotifier{hub: hub}
}

func (n *SSENotifier) NotifyRunCompleted(_ context.Context, summary notification.RunSummary) error {
	if n.hub == nil {
		return notification.ErrNotifierNotConfigured
	}
	n.hub.Publish(summary.RunID, sse.Event{
		Topic: summary.RunID,
		Event: EventRunFinished,
		Data:  summary,
	})
	return nil
}
