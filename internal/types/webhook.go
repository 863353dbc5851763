package types

// WebhookEventType enumerates the processor webhook events this system
// acts on. Anything else is acknowledged and ignored so the processor does
// not retry harmless events indefinitely.
type WebhookEventType string

const (
	WebhookEventCheckoutCompleted    WebhookEventType = "checkout.session.completed"
	WebhookEventSubscriptionUpdated  WebhookEventType = "customer.subscription.updated"
	WebhookEventSubscriptionDeleted  WebhookEventType = "customer.subscription.deleted"
	WebhookEventInvoicePaymentFailed WebhookEventType = "invoice.payment_failed"
)

func (t WebhookEventType) String() string {
	return string(t)
}

// NotificationTemplate identifies an outbound notification template.
// Delivery is an external collaborator; this system only names the
// template and supplies the payload.
type NotificationTemplate string

func (t NotificationTemplate) String() string {
	return string(t)
}

const (
	NotificationSubscriptionStarted   NotificationTemplate = "subscription_started"
	NotificationSubscriptionUpdated   NotificationTemplate = "subscription_updated"
	NotificationSubscriptionCancelled NotificationTemplate = "subscription_cancelled"
	NotificationPaymentFailed         NotificationTemplate = "payment_failed"
)
