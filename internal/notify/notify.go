package notify

import (
	"context"
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"github.com/specmint/specmint/internal/config"
	"github.com/specmint/specmint/internal/httpclient"
	"github.com/specmint/specmint/internal/logger"
	"github.com/specmint/specmint/internal/types"
)

// Notification is the payload handed to the delivery service. Delivery
// itself (email, in-app, whatever) is the collaborator's concern; we
// only name the template and supply the variables.
type Notification struct {
	UserID   string                     `json:"user_id"`
	Email    string                     `json:"email,omitempty"`
	Template types.NotificationTemplate `json:"template"`
	Data     map[string]interface{}     `json:"data,omitempty"`
}

// Notifier sends lifecycle notifications. Implementations must be safe
// for concurrent use. Failures are the caller's to log and swallow;
// notification delivery never blocks billing state transitions.
type Notifier interface {
	Send(ctx context.Context, n *Notification) error
}

type httpNotifier struct {
	client   httpclient.Client
	endpoint string
	logger   *logger.Logger
}

// NewNotifier returns an HTTP notifier when an endpoint is configured,
// otherwise a noop so call sites never nil-check.
func NewNotifier(cfg *config.Configuration, client httpclient.Client, log *logger.Logger) Notifier {
	if !cfg.Notification.Enabled || cfg.Notification.Endpoint == "" {
		return &noopNotifier{}
	}
	return &httpNotifier{
		client:   client,
		endpoint: cfg.Notification.Endpoint,
		logger:   log,
	}
}

func (n *httpNotifier) Send(ctx context.Context, notification *Notification) error {
	payload, err := jsoniter.Marshal(notification)
	if err != nil {
		return err
	}

	_, err = n.client.Send(ctx, &httpclient.Request{
		Method: http.MethodPost,
		URL:    n.endpoint,
		Body:   payload,
	})
	if err != nil {
		n.logger.Errorw("failed to deliver notification",
			"template", notification.Template,
			"user_id", notification.UserID,
			"error", err,
		)
		return err
	}

	n.logger.Debugw("notification delivered",
		"template", notification.Template,
		"user_id", notification.UserID,
	)
	return nil
}

type noopNotifier struct{}

func (n *noopNotifier) Send(ctx context.Context, notification *Notification) error {
	return nil
}
