package enum

type EventType string

const (
	EventTypeQuoteRunCompleted EventType = "quote_run.completed"
	EventTypeOrderSubmitted    EventType = "order.submitted"
	EventTypeOrderFailed       EventType = "order.failed"
	EventTypeOrderPaid         EventType = "order.paid"
)
