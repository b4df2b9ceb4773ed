package notification

import "errors"

var (
	ErrNotifierNotConfigured = errors.New("notifier not configured")
)
