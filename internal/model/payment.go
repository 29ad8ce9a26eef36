package model

import "time"

// Payment is a row of the `payments` table.  Payments are recorded by an
// external process; this service only lists them.
type Payment struct {
	ID            uint64     `json:"id"`             // payments.id
	ReservationID uint64     `json:"reservation_id"` // payments.reservation_id
	Amount        float64    `json:"amount"`         // payments.amount
	PaymentMethod string     `json:"payment_method"` // payments.payment_method
	PaidAt        *time.Time `json:"paid_at"`        // payments.paid_at (nullable)
	CreatedAt     time.Time  `json:"created_at"`     // payments.created_at
}
