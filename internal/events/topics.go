package events

// Topic constants for domain events emitted by the checkout service.
const (
	TopicOrderCreated    = "order.created"
	TopicOrderPaid       = "order.paid"
	TopicSettingsUpdated = "settings.updated"
)

// TaskDeliver is the asynq task type carrying an event to the webhook worker.
const TaskDeliver = "event:deliver"

// DefaultTopics returns the topics delivered to webhooks.
func DefaultTopics() []string {
	return []string{TopicOrderCreated, TopicOrderPaid, TopicSettingsUpdated}
}
