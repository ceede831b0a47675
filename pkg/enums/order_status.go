package enums

import "fmt"

// OrderStatus tracks the overall state of an order across its items.
type OrderStatus string

const (
	OrderStatusPlaced             OrderStatus = "placed"
	OrderStatusPartiallyCancelled OrderStatus = "partially_cancelled"
	OrderStatusCancelled          OrderStatus = "cancelled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPlaced,
	OrderStatusPartiallyCancelled,
	OrderStatusCancelled,
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
