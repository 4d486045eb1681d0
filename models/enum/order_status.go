package enum

type OrderStatus string

const (
	OrderStatusSubmitted OrderStatus = "SUBMITTED"
	OrderStatusFailed    OrderStatus = "FAILED"
	OrderStatusPaid      OrderStatus = "PAID"
)
