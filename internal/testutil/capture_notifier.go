package testutil

import (
	"context"
	"sync"

	"github.com/specmint/specmint/internal/notify"
	"github.com/specmint/specmint/internal/types"
)

// CaptureNotifier records notifications instead of delivering them.
type CaptureNotifier struct {
	mu   sync.Mutex
	Sent []*notify.Notification
	Err  error
}

func NewCaptureNotifier() *CaptureNotifier {
	return &CaptureNotifier{}
}

func (n *CaptureNotifier) Send(ctx context.Context, notification *notify.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.Err != nil {
		return n.Err
	}
	n.Sent = append(n.Sent, notification)
	return nil
}

// ByTemplate returns the captured notifications with the given template.
func (n *CaptureNotifier) ByTemplate(template types.NotificationTemplate) []*notify.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	var matched []*notify.Notification
	for _, sent := range n.Sent {
		if sent.Template == template {
			matched = append(matched, sent)
		}
	}
	return matched
}

// Clear drops all captured notifications.
func (n *CaptureNotifier) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Sent = nil
}
