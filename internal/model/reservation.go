package model

import "time"

// Reservation groups the places claimed by one or more users on a field
// for a single date and slot.  StartTime/EndTime are derived from the slot
// window and kept for older readers of the table.
//
// Fields:
//  ID         – primary key identifier.
//  FieldID    – field being reserved.
//  Date       – reservation day (DATE).
//  Slot       – slot number 1..4.
//  TotalPrice – occupied places of this reservation × price per hour.
type Reservation struct {
	ID         uint64    `json:"id"`          // reservations.id
	FieldID    uint64    `json:"field_id"`    // reservations.field_id
	Date       time.Time `json:"-"`           // reservations.date
	Slot       int       `json:"slot"`        // reservations.slot
	StartTime  time.Time `json:"start_time"`  // reservations.start_time
	EndTime    time.Time `json:"end_time"`    // reservations.end_time
	TotalPrice float64   `json:"total_price"` // reservations.total_price
	CreatedAt  time.Time `json:"created_at"`  // reservations.created_at
	UpdatedAt  time.Time `json:"updated_at"`  // reservations.updated_at
}

// ReservationUser is one row of `reservation_users` joined with the
// user's public profile.
type ReservationUser struct {
	ReservationID uint64 `json:"reservation_id"`
	UserID        uint64 `json:"user_id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Quantity      int    `json:"quantity"`
}
