// Package queue carries reservation events over RabbitMQ: the payload
// type, a publisher and a background consumer that keeps an audit log.
package queue

import "time"

// Actions reported in ReservationChangedEvent.Action.
const (
	ActionCreated       = "created"
	ActionUsersAdded    = "users_added"
	ActionUsersReplaced = "users_replaced"
	ActionUsersPatched  = "users_patched"
	ActionUsersRemoved  = "users_removed"
	ActionDeleted       = "deleted"
)

// ReservationChangedEvent is published after an allocator transaction
// commits.  It holds the slot state as of that commit so consumers do not
// have to query the primary database.
type ReservationChangedEvent struct {
	Action        string    `json:"action"`
	ReservationID uint64    `json:"reservation_id"`
	FieldID       uint64    `json:"field_id"`
	Date          string    `json:"date"`
	Slot          int       `json:"slot"`
	Delta         int       `json:"delta"`
	Occupied      int       `json:"occupied"`
	Capacity      int       `json:"capacity"`
	TotalPrice    float64   `json:"total_price"`
	UserIDs       []uint64  `json:"user_ids,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}
