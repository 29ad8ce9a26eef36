package repository

import (
	"context"
	"database/sql"

	"github.com/pitchdreamers/pitch-booking/internal/model"
)

// PaymentRepo lists recorded payments.  Payments are written by an
// external process.
type PaymentRepo struct{ DB *sql.DB }

func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{DB: db} }

// List returns a page of payments, newest first, and the total count.
func (r *PaymentRepo) List(ctx context.Context, limit, offset int) ([]model.Payment, int, error) {
	var total int
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM payments").Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, reservation_id, amount, payment_method, paid_at, created_at FROM payments ORDER BY id DESC LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]model.Payment, 0, limit)
	for rows.Next() {
		var (
			p      model.Payment
			paidAt sql.NullTime
		)
		if err := rows.Scan(&p.ID, &p.ReservationID, &p.Amount, &p.PaymentMethod, &paidAt, &p.CreatedAt); err != nil {
			return nil, 0, err
		}
		if paidAt.Valid {
			t := paidAt.Time
			p.PaidAt = &t
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}
