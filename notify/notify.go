// Package notify delivers plain-text messages about new ads.
package notify

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Notifier sends one text message.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// NotifyError wraps a failed delivery. Callers log it and carry on; a
// missed notification never stops a crawl.
type NotifyError struct {
	Err error
}

func (e *NotifyError) Error() string {
	return fmt.Sprintf("notify: %v", e.Err)
}

func (e *NotifyError) Unwrap() error {
	return e.Err
}

// LogNotifier writes messages to a logger instead of delivering them. Used
// for dry runs.
type LogNotifier struct {
	log logrus.FieldLogger
}

// NewLogNotifier creates a notifier that logs at info level.
func NewLogNotifier(log logrus.FieldLogger) *LogNotifier {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &LogNotifier{log: log}
}

// Notify logs text. It never fails.
func (n *LogNotifier) Notify(ctx context.Context, text string) error {
	n.log.WithField("notifier", "log").Info(text)
	return nil
}
