package orders

import (
	"time"

	"github.com/jogardn/safety-storefront/pkg/models"
)

// Start puts a new order in the placed state with a single history entry.
func Start(order *models.Order, at time.Time) {
	order.StatusHistory = nil
	Transition(order, models.StatusPlaced, "", at)
	order.CreatedAt = at
}

// Transition appends one history entry and moves the order to status.
// Predecessor states are not checked; any known status may follow any other.
func Transition(order *models.Order, status models.OrderStatus, note string, at time.Time) {
	order.StatusHistory = append(order.StatusHistory, models.StatusEntry{
		Status: status,
		Note:   note,
		At:     at,
	})
	order.Status = status
	order.UpdatedAt = at
}
