package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pitchdreamers/pitch-booking/internal/booking"
	"github.com/pitchdreamers/pitch-booking/internal/model"
)

// ReservationRepo provides data access to reservations and their
// reservation_users rows.  Every mutating method takes the caller's
// transaction; the caller commits or rolls back.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, field_id, date, slot, start_time, end_time, total_price, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(s rowScanner) (model.Reservation, error) {
	var res model.Reservation
	err := s.Scan(&res.ID, &res.FieldID, &res.Date, &res.Slot, &res.StartTime, &res.EndTime,
		&res.TotalPrice, &res.CreatedAt, &res.UpdatedAt)
	return res, err
}

// GetForUpdateTx reads a reservation and X-locks its row until the
// transaction ends.
func (r *ReservationRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Reservation, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ? FOR UPDATE`, id)
	res, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Reservation{}, ErrNotFound
	}
	return res, err
}

// GetByID returns a reservation outside of any transaction.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (model.Reservation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	res, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Reservation{}, ErrNotFound
	}
	return res, err
}

// List returns a page of reservations ordered by date and slot, together
// with the total number of reservations.
func (r *ReservationRepo) List(ctx context.Context, limit, offset int) ([]model.Reservation, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations ORDER BY date DESC, slot, id LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]model.Reservation, 0, limit)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, res)
	}
	return out, total, rows.Err()
}

// LockSlotTx takes the per-slot lock.  The upsert X-locks the slot_locks
// row for key; concurrent allocator transactions on the same key block
// here until this transaction commits or rolls back.
func (r *ReservationRepo) LockSlotTx(ctx context.Context, tx *sql.Tx, key booking.SlotKey) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO slot_locks (field_id, slot_date, slot) VALUES (?, ?, ?) ON DUPLICATE KEY UPDATE slot = slot`,
		key.FieldID, key.DateString(), key.Slot)
	return err
}

// SlotOccupancyTx sums the places claimed across every reservation that
// shares key.
func (r *ReservationRepo) SlotOccupancyTx(ctx context.Context, tx *sql.Tx, key booking.SlotKey) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(ru.quantity), 0)
		FROM reservation_users ru
		JOIN reservations r ON r.id = ru.reservation_id
		WHERE r.field_id = ? AND r.date = ? AND r.slot = ?`,
		key.FieldID, key.DateString(), key.Slot).Scan(&n)
	return n, err
}

// SlotOccupancy is the unlocked read used by availability queries.
func (r *ReservationRepo) SlotOccupancy(ctx context.Context, key booking.SlotKey) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(ru.quantity), 0)
		FROM reservation_users ru
		JOIN reservations r ON r.id = ru.reservation_id
		WHERE r.field_id = ? AND r.date = ? AND r.slot = ?`,
		key.FieldID, key.DateString(), key.Slot).Scan(&n)
	return n, err
}

// DayOccupancy returns occupied places per slot for one field and day.
// Slots without any claim are absent from the map.
func (r *ReservationRepo) DayOccupancy(ctx context.Context, fieldID uint64, date time.Time) (map[int]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT r.slot, COALESCE(SUM(ru.quantity), 0)
		FROM reservation_users ru
		JOIN reservations r ON r.id = ru.reservation_id
		WHERE r.field_id = ? AND r.date = ?
		GROUP BY r.slot`,
		fieldID, date.Format(booking.DateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int]int, booking.SlotCount)
	for rows.Next() {
		var slot, n int
		if err := rows.Scan(&slot, &n); err != nil {
			return nil, err
		}
		out[slot] = n
	}
	return out, rows.Err()
}

// ReservationOccupancyTx sums the places claimed by one reservation.
func (r *ReservationRepo) ReservationOccupancyTx(ctx context.Context, tx *sql.Tx, id uint64) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(quantity), 0) FROM reservation_users WHERE reservation_id = ?`, id).Scan(&n)
	return n, err
}

// QuantitiesTx returns the current quantity of each listed user that is
// part of the reservation.  Users not in the reservation are absent.
func (r *ReservationRepo) QuantitiesTx(ctx context.Context, tx *sql.Tx, id uint64, userIDs []uint64) (map[uint64]int, error) {
	out := make(map[uint64]int, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	args := append([]any{id}, uint64Args(userIDs)...)
	rows, err := tx.QueryContext(ctx,
		`SELECT user_id, quantity FROM reservation_users WHERE reservation_id = ? AND user_id IN (`+placeholders(len(userIDs))+`)`,
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var uid uint64
		var q int
		if err := rows.Scan(&uid, &q); err != nil {
			return nil, err
		}
		out[uid] = q
	}
	return out, rows.Err()
}

// CreateTx inserts a reservation for key and fills in the generated ID.
// start_time/end_time are derived from the slot window.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, key booking.SlotKey, totalPrice float64) (uint64, error) {
	start, end := key.Bounds()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO reservations (field_id, date, slot, start_time, end_time, total_price) VALUES (?, ?, ?, ?, ?, ?)`,
		key.FieldID, key.DateString(), key.Slot, start, end, totalPrice)
	if err != nil {
		if isMissingReference(err) {
			return 0, ErrReferenceMissing
		}
		return 0, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// AddUsersTx upserts allocations in a single statement.  An existing row
// has its quantity increased, never overwritten.
func (r *ReservationRepo) AddUsersTx(ctx context.Context, tx *sql.Tx, id uint64, allocs []booking.Allocation) error {
	if len(allocs) == 0 {
		return nil
	}
	query := `INSERT INTO reservation_users (reservation_id, user_id, quantity) VALUES `
	args := make([]any, 0, len(allocs)*3)
	for i, a := range allocs {
		if i > 0 {
			query += ", "
		}
		query += "(?, ?, ?)"
		args = append(args, id, a.UserID, a.Quantity)
	}
	query += ` ON DUPLICATE KEY UPDATE quantity = quantity + VALUES(quantity)`
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		if isMissingReference(err) {
			return ErrReferenceMissing
		}
		return err
	}
	return nil
}

// ClearUsersTx removes every user from the reservation.
func (r *ReservationRepo) ClearUsersTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM reservation_users WHERE reservation_id = ?`, id)
	return err
}

// RemoveUsersTx deletes the listed users from the reservation and returns
// how many rows were removed.  Users that are not part of the
// reservation are ignored.
func (r *ReservationRepo) RemoveUsersTx(ctx context.Context, tx *sql.Tx, id uint64, userIDs []uint64) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	args := append([]any{id}, uint64Args(userIDs)...)
	result, err := tx.ExecContext(ctx,
		`DELETE FROM reservation_users WHERE reservation_id = ? AND user_id IN (`+placeholders(len(userIDs))+`)`,
		args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// UpdateTotalPriceTx stores a recomputed total price.
func (r *ReservationRepo) UpdateTotalPriceTx(ctx context.Context, tx *sql.Tx, id uint64, totalPrice float64) error {
	_, err := tx.ExecContext(ctx, `UPDATE reservations SET total_price = ? WHERE id = ?`, totalPrice, id)
	return err
}

// DeleteTx removes the reservation; reservation_users and payments rows
// cascade.
func (r *ReservationRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	result, err := tx.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUsers returns the users of a reservation with their quantities.
func (r *ReservationRepo) ListUsers(ctx context.Context, id uint64) ([]model.ReservationUser, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ru.reservation_id, u.id, u.name, u.email, ru.quantity
		FROM reservation_users ru
		JOIN users u ON u.id = ru.user_id
		WHERE ru.reservation_id = ?
		ORDER BY u.id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.ReservationUser{}
	for rows.Next() {
		var ru model.ReservationUser
		if err := rows.Scan(&ru.ReservationID, &ru.UserID, &ru.Name, &ru.Email, &ru.Quantity); err != nil {
			return nil, err
		}
		out = append(out, ru)
	}
	return out, rows.Err()
}

// ListEmptyBefore returns up to limit reservations dated before day that
// hold no users.
func (r *ReservationRepo) ListEmptyBefore(ctx context.Context, day time.Time, limit int) ([]uint64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT r.id
		FROM reservations r
		LEFT JOIN reservation_users ru ON ru.reservation_id = r.id
		WHERE r.date < ? AND ru.reservation_id IS NULL
		ORDER BY r.id
		LIMIT ?`, day.Format(booking.DateLayout), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
