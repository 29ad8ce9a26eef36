// Package service implements the capacity allocator.  Every mutation of a
// reservation's users runs in one database transaction that holds the
// reservation row and the slot lock, so the occupancy it checks cannot
// change before it commits.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/pitchdreamers/pitch-booking/internal/booking"
	"github.com/pitchdreamers/pitch-booking/internal/database"
	"github.com/pitchdreamers/pitch-booking/internal/metrics"
	"github.com/pitchdreamers/pitch-booking/internal/model"
	"github.com/pitchdreamers/pitch-booking/internal/queue"
	"github.com/pitchdreamers/pitch-booking/internal/repository"
)

// ReservationStore is the reservation data access the allocator needs.
type ReservationStore interface {
	GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Reservation, error)
	LockSlotTx(ctx context.Context, tx *sql.Tx, key booking.SlotKey) error
	SlotOccupancyTx(ctx context.Context, tx *sql.Tx, key booking.SlotKey) (int, error)
	ReservationOccupancyTx(ctx context.Context, tx *sql.Tx, id uint64) (int, error)
	QuantitiesTx(ctx context.Context, tx *sql.Tx, id uint64, userIDs []uint64) (map[uint64]int, error)
	CreateTx(ctx context.Context, tx *sql.Tx, key booking.SlotKey, totalPrice float64) (uint64, error)
	AddUsersTx(ctx context.Context, tx *sql.Tx, id uint64, allocs []booking.Allocation) error
	ClearUsersTx(ctx context.Context, tx *sql.Tx, id uint64) error
	RemoveUsersTx(ctx context.Context, tx *sql.Tx, id uint64, userIDs []uint64) (int64, error)
	UpdateTotalPriceTx(ctx context.Context, tx *sql.Tx, id uint64, totalPrice float64) error
	DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error
	SlotOccupancy(ctx context.Context, key booking.SlotKey) (int, error)
	DayOccupancy(ctx context.Context, fieldID uint64, date time.Time) (map[int]int, error)
	ListEmptyBefore(ctx context.Context, day time.Time, limit int) ([]uint64, error)
}

// FieldStore resolves fields.
type FieldStore interface {
	GetByID(ctx context.Context, id uint64) (model.Field, error)
	GetTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Field, error)
}

// UserStore checks that referenced users exist.
type UserStore interface {
	ExistingIDsTx(ctx context.Context, tx *sql.Tx, ids []uint64) (map[uint64]bool, error)
}

// EventPublisher receives a notification after each committed change.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.ReservationChangedEvent) error
}

// Allocator operation names, used for metrics and logs.
const (
	OpCreate  = "create"
	OpAdd     = "add_users"
	OpReplace = "replace_users"
	OpPatch   = "patch_users"
	OpRemove  = "remove_users"
	OpDelete  = "delete"
)

const publishTimeout = 3 * time.Second

// ReservationServiceOptions configures optional collaborators.
type ReservationServiceOptions struct {
	// AcquireTimeout bounds the wait for a pooled connection.  Zero waits
	// for as long as the request context allows.
	AcquireTimeout time.Duration
	Events         EventPublisher
	Metrics        *metrics.Metrics
	Logger         *zap.Logger
}

// ReservationService is the capacity allocator.  It holds no state of its
// own, so any number of instances may run against the same database.
type ReservationService struct {
	db           *sql.DB
	reservations ReservationStore
	fields       FieldStore
	users        UserStore
	events       EventPublisher
	metrics      *metrics.Metrics
	logger       *zap.Logger
	acquireWait  time.Duration
	now          func() time.Time
}

func NewReservationService(db *sql.DB, reservations ReservationStore, fields FieldStore, users UserStore, opts ReservationServiceOptions) *ReservationService {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReservationService{
		db:           db,
		reservations: reservations,
		fields:       fields,
		users:        users,
		events:       opts.Events,
		metrics:      opts.Metrics,
		logger:       logger,
		acquireWait:  opts.AcquireTimeout,
		now:          time.Now,
	}
}

// CreateInput describes a new reservation.
type CreateInput struct {
	FieldID uint64
	Date    string
	Slot    int
	Users   []booking.Allocation
}

// CreateResult is returned by CreateReservation.
type CreateResult struct {
	ReservationID     uint64            `json:"reservation_id"`
	TotalPrice        float64           `json:"total_price"`
	PlazasDisponibles int               `json:"plazasDisponibles"`
	Occupancy         booking.Occupancy `json:"occupancy"`
}

// SlotAvailability is the occupancy of one slot of a day.
type SlotAvailability struct {
	Slot  int    `json:"slot"`
	Start string `json:"start"`
	End   string `json:"end"`
	booking.Occupancy
}

// slotState is what every mutation learns once it holds the slot lock.
type slotState struct {
	reservation model.Reservation
	field       model.Field
	key         booking.SlotKey
	capacity    int
	occupied    int // across every reservation of the slot
	own         int // of the reservation being changed
}

// CreateReservation validates the slot and users, then inserts the
// reservation and its users if the slot has room for all of them.
func (s *ReservationService) CreateReservation(ctx context.Context, in CreateInput) (res CreateResult, err error) {
	defer func() { s.record(OpCreate, err) }()

	key, err := booking.NewSlotKey(in.FieldID, in.Date, in.Slot)
	if err != nil {
		return CreateResult{}, err
	}
	allocs, err := booking.NormalizeAllocations(in.Users)
	if err != nil {
		return CreateResult{}, err
	}
	if len(allocs) == 0 {
		return CreateResult{}, booking.Validation("a reservation needs at least one user")
	}
	delta := booking.TotalQuantity(allocs)

	var (
		occ   booking.Occupancy
		field model.Field
	)
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		field, err = s.fields.GetTx(ctx, tx, key.FieldID)
		if err != nil {
			return s.notFoundOrInternal(err, fmt.Sprintf("field %d not found", key.FieldID), "load field")
		}
		capacity, err := booking.Capacity(booking.FieldType(field.Type))
		if err != nil {
			return err
		}
		if err := s.ensureUsers(ctx, tx, booking.UserIDs(allocs)); err != nil {
			return err
		}
		if err := s.lockSlot(ctx, tx, key); err != nil {
			return err
		}
		occupied, err := s.reservations.SlotOccupancyTx(ctx, tx, key)
		if err != nil {
			return booking.Internal("read slot occupancy", err)
		}
		if err := booking.Admit(capacity, occupied, delta); err != nil {
			s.logReject(OpCreate, key, 0, err)
			return err
		}

		res.TotalPrice = price(delta, field.PricePerHour)
		res.ReservationID, err = s.reservations.CreateTx(ctx, tx, key, res.TotalPrice)
		if err != nil {
			return s.notFoundOrInternal(err, fmt.Sprintf("field %d not found", key.FieldID), "insert reservation")
		}
		if err := s.reservations.AddUsersTx(ctx, tx, res.ReservationID, allocs); err != nil {
			return s.notFoundOrInternal(err, "a referenced user no longer exists", "insert reservation users")
		}
		occ = booking.NewOccupancy(capacity, occupied+delta)
		return nil
	})
	if err != nil {
		return CreateResult{}, err
	}

	res.Occupancy = occ
	res.PlazasDisponibles = occ.Available
	s.publish(ctx, queue.ActionCreated, res.ReservationID, key, delta, occ, res.TotalPrice, booking.UserIDs(allocs))
	return res, nil
}

// AddUsers adds places to an existing reservation.  A user already in the
// reservation has the new quantity added to the one they hold.
func (s *ReservationService) AddUsers(ctx context.Context, reservationID uint64, users []booking.Allocation) (occ booking.Occupancy, err error) {
	defer func() { s.record(OpAdd, err) }()

	allocs, err := booking.NormalizeAllocations(users)
	if err != nil {
		return booking.Occupancy{}, err
	}
	if len(allocs) == 0 {
		return booking.Occupancy{}, booking.Validation("at least one user is required")
	}
	delta := booking.TotalQuantity(allocs)

	var st slotState
	var total float64
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if st, err = s.lockReservation(ctx, tx, reservationID); err != nil {
			return err
		}
		if err := s.ensureUsers(ctx, tx, booking.UserIDs(allocs)); err != nil {
			return err
		}
		if err := booking.Admit(st.capacity, st.occupied, delta); err != nil {
			s.logReject(OpAdd, st.key, reservationID, err)
			return err
		}
		if err := s.reservations.AddUsersTx(ctx, tx, reservationID, allocs); err != nil {
			return s.notFoundOrInternal(err, "a referenced user no longer exists", "add reservation users")
		}
		total = price(st.own+delta, st.field.PricePerHour)
		return s.updatePrice(ctx, tx, reservationID, total)
	})
	if err != nil {
		return booking.Occupancy{}, err
	}

	occ = booking.NewOccupancy(st.capacity, st.occupied+delta)
	s.publish(ctx, queue.ActionUsersAdded, reservationID, st.key, delta, occ, total, booking.UserIDs(allocs))
	return occ, nil
}

// ReplaceUsers swaps the whole user set of a reservation.  The check only
// counts the net change, so a replacement that keeps or lowers the
// reservation's places is always accepted.  An empty list empties the
// reservation.
func (s *ReservationService) ReplaceUsers(ctx context.Context, reservationID uint64, users []booking.Allocation) (occ booking.Occupancy, err error) {
	defer func() { s.record(OpReplace, err) }()

	allocs, err := booking.NormalizeAllocations(users)
	if err != nil {
		return booking.Occupancy{}, err
	}
	newTotal := booking.TotalQuantity(allocs)

	var (
		st    slotState
		delta int
		total float64
	)
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if st, err = s.lockReservation(ctx, tx, reservationID); err != nil {
			return err
		}
		if err := s.ensureUsers(ctx, tx, booking.UserIDs(allocs)); err != nil {
			return err
		}
		delta = newTotal - st.own
		if err := booking.Admit(st.capacity, st.occupied, delta); err != nil {
			s.logReject(OpReplace, st.key, reservationID, err)
			return err
		}
		if err := s.reservations.ClearUsersTx(ctx, tx, reservationID); err != nil {
			return booking.Internal("clear reservation users", err)
		}
		if err := s.reservations.AddUsersTx(ctx, tx, reservationID, allocs); err != nil {
			return s.notFoundOrInternal(err, "a referenced user no longer exists", "insert reservation users")
		}
		total = price(newTotal, st.field.PricePerHour)
		return s.updatePrice(ctx, tx, reservationID, total)
	})
	if err != nil {
		return booking.Occupancy{}, err
	}

	occ = booking.NewOccupancy(st.capacity, st.occupied+delta)
	s.publish(ctx, queue.ActionUsersReplaced, reservationID, st.key, delta, occ, total, booking.UserIDs(allocs))
	return occ, nil
}

// PatchUsers removes and adds users in one step.  Only the net change is
// checked against capacity, so a swap of equal size always fits.
func (s *ReservationService) PatchUsers(ctx context.Context, reservationID uint64, patch booking.Patch) (occ booking.Occupancy, err error) {
	defer func() { s.record(OpPatch, err) }()

	patch, err = patch.Normalize()
	if err != nil {
		return booking.Occupancy{}, err
	}
	added := booking.TotalQuantity(patch.Add)

	var (
		st    slotState
		delta int
		total float64
	)
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if st, err = s.lockReservation(ctx, tx, reservationID); err != nil {
			return err
		}
		if err := s.ensureUsers(ctx, tx, booking.UserIDs(patch.Add)); err != nil {
			return err
		}
		current, err := s.reservations.QuantitiesTx(ctx, tx, reservationID, patch.Remove)
		if err != nil {
			return booking.Internal("read reservation users", err)
		}
		removed := 0
		for _, q := range current {
			removed += q
		}
		delta = added - removed
		if err := booking.Admit(st.capacity, st.occupied, delta); err != nil {
			s.logReject(OpPatch, st.key, reservationID, err)
			return err
		}
		if _, err := s.reservations.RemoveUsersTx(ctx, tx, reservationID, patch.Remove); err != nil {
			return booking.Internal("remove reservation users", err)
		}
		if err := s.reservations.AddUsersTx(ctx, tx, reservationID, patch.Add); err != nil {
			return s.notFoundOrInternal(err, "a referenced user no longer exists", "add reservation users")
		}
		total = price(st.own+delta, st.field.PricePerHour)
		return s.updatePrice(ctx, tx, reservationID, total)
	})
	if err != nil {
		return booking.Occupancy{}, err
	}

	occ = booking.NewOccupancy(st.capacity, st.occupied+delta)
	s.publish(ctx, queue.ActionUsersPatched, reservationID, st.key, delta, occ, total, append(booking.UserIDs(patch.Add), patch.Remove...))
	return occ, nil
}

// RemoveUsers deletes the listed users from a reservation and reports how
// many were actually removed.  Users that are not in the reservation are
// ignored, so repeating a call is harmless.
func (s *ReservationService) RemoveUsers(ctx context.Context, reservationID uint64, userIDs []uint64) (removed int, err error) {
	defer func() { s.record(OpRemove, err) }()

	ids, err := booking.NormalizeUserIDs(userIDs)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, booking.Validation("at least one user id is required")
	}
	n, _, err := s.remove(ctx, reservationID, ids, false)
	return n, err
}

// RemoveUser deletes a single user from a reservation.  Unlike
// RemoveUsers it reports NotFound when the user holds no places there.
func (s *ReservationService) RemoveUser(ctx context.Context, reservationID, userID uint64) (occ booking.Occupancy, err error) {
	defer func() { s.record(OpRemove, err) }()

	if userID == 0 {
		return booking.Occupancy{}, booking.Validation("user id must be a positive integer")
	}
	_, occ, err = s.remove(ctx, reservationID, []uint64{userID}, true)
	return occ, err
}

func (s *ReservationService) remove(ctx context.Context, reservationID uint64, ids []uint64, mustExist bool) (int, booking.Occupancy, error) {
	var (
		st      slotState
		removed int
		n       int64
		total   float64
	)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		if st, err = s.lockReservation(ctx, tx, reservationID); err != nil {
			return err
		}
		current, err := s.reservations.QuantitiesTx(ctx, tx, reservationID, ids)
		if err != nil {
			return booking.Internal("read reservation users", err)
		}
		if mustExist && len(current) == 0 {
			return booking.NotFound(fmt.Sprintf("user %d is not part of reservation %d", ids[0], reservationID))
		}
		if len(current) == 0 {
			return nil
		}
		for _, q := range current {
			removed += q
		}
		if n, err = s.reservations.RemoveUsersTx(ctx, tx, reservationID, ids); err != nil {
			return booking.Internal("remove reservation users", err)
		}
		total = price(st.own-removed, st.field.PricePerHour)
		return s.updatePrice(ctx, tx, reservationID, total)
	})
	if err != nil {
		return 0, booking.Occupancy{}, err
	}

	occ := booking.NewOccupancy(st.capacity, st.occupied-removed)
	if n > 0 {
		s.publish(ctx, queue.ActionUsersRemoved, reservationID, st.key, -removed, occ, total, ids)
	}
	return int(n), occ, nil
}

// DeleteReservation removes a reservation and all of its users.
func (s *ReservationService) DeleteReservation(ctx context.Context, reservationID uint64) (err error) {
	defer func() { s.record(OpDelete, err) }()

	var st slotState
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if st, err = s.lockReservation(ctx, tx, reservationID); err != nil {
			return err
		}
		if err := s.reservations.DeleteTx(ctx, tx, reservationID); err != nil {
			return s.notFoundOrInternal(err, fmt.Sprintf("reservation %d not found", reservationID), "delete reservation")
		}
		return nil
	})
	if err != nil {
		return err
	}

	occ := booking.NewOccupancy(st.capacity, st.occupied-st.own)
	s.publish(ctx, queue.ActionDeleted, reservationID, st.key, -st.own, occ, 0, nil)
	return nil
}

// GetOccupancy reports the committed occupancy of one slot.  It takes no
// lock; the figure may be stale by the time the caller acts on it.
func (s *ReservationService) GetOccupancy(ctx context.Context, fieldID uint64, date string, slot int) (booking.Occupancy, error) {
	key, err := booking.NewSlotKey(fieldID, date, slot)
	if err != nil {
		return booking.Occupancy{}, err
	}
	capacity, err := s.fieldCapacity(ctx, fieldID)
	if err != nil {
		return booking.Occupancy{}, err
	}
	occupied, err := s.reservations.SlotOccupancy(ctx, key)
	if err != nil {
		return booking.Occupancy{}, booking.Internal("read slot occupancy", err)
	}
	return booking.NewOccupancy(capacity, occupied), nil
}

// FieldAvailability lists the occupancy of all slots of a field on date.
func (s *ReservationService) FieldAvailability(ctx context.Context, fieldID uint64, date string) ([]SlotAvailability, error) {
	day, err := booking.ParseDate(date)
	if err != nil {
		return nil, err
	}
	capacity, err := s.fieldCapacity(ctx, fieldID)
	if err != nil {
		return nil, err
	}
	bySlot, err := s.reservations.DayOccupancy(ctx, fieldID, day)
	if err != nil {
		return nil, booking.Internal("read day occupancy", err)
	}
	out := make([]SlotAvailability, 0, booking.SlotCount)
	for _, w := range booking.Windows() {
		out = append(out, SlotAvailability{
			Slot:      w.Number,
			Start:     w.Label()[:5],
			End:       w.Label()[6:],
			Occupancy: booking.NewOccupancy(capacity, bySlot[w.Number]),
		})
	}
	return out, nil
}

// SweepEmpty deletes up to batch reservations dated before the current
// day that no longer hold any user.  Each candidate is re-checked under
// its row lock, so a reservation that gained users meanwhile survives.
func (s *ReservationService) SweepEmpty(ctx context.Context, batch int) (int, error) {
	today := s.now().UTC().Truncate(24 * time.Hour)
	ids, err := s.reservations.ListEmptyBefore(ctx, today, batch)
	if err != nil {
		return 0, booking.Internal("list empty reservations", err)
	}
	deleted := 0
	for _, id := range ids {
		err := s.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := s.reservations.GetForUpdateTx(ctx, tx, id); err != nil {
				return err
			}
			own, err := s.reservations.ReservationOccupancyTx(ctx, tx, id)
			if err != nil {
				return err
			}
			if own > 0 {
				return errSkip
			}
			return s.reservations.DeleteTx(ctx, tx, id)
		})
		switch {
		case err == nil:
			deleted++
		case errors.Is(err, errSkip), errors.Is(err, repository.ErrNotFound):
		default:
			return deleted, booking.FromError(err)
		}
	}
	return deleted, nil
}

var errSkip = errors.New("skip")

// inTx runs fn in a READ COMMITTED transaction on a connection acquired
// within the configured wait.  Under READ COMMITTED each statement sees
// rows committed before it started, so sums read after the slot lock
// include every change that held the lock earlier.
func (s *ReservationService) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	conn, err := database.Acquire(ctx, s.db, s.acquireWait)
	if err != nil {
		if errors.Is(err, database.ErrPoolExhausted) {
			return booking.ResourceExhausted(err)
		}
		return booking.Internal("acquire connection", err)
	}
	defer func() { _ = conn.Close() }()

	tx, err := conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return booking.Internal("begin transaction", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return booking.Internal("commit", err)
	}
	committed = true
	return nil
}

// lockReservation X-locks the reservation row, then the slot lock, and
// reads both occupancy figures.  Every path that changes an existing
// reservation goes through here, which fixes the lock order.
func (s *ReservationService) lockReservation(ctx context.Context, tx *sql.Tx, id uint64) (slotState, error) {
	var st slotState
	var err error
	st.reservation, err = s.reservations.GetForUpdateTx(ctx, tx, id)
	if err != nil {
		return st, s.notFoundOrInternal(err, fmt.Sprintf("reservation %d not found", id), "load reservation")
	}
	st.field, err = s.fields.GetTx(ctx, tx, st.reservation.FieldID)
	if err != nil {
		return st, s.notFoundOrInternal(err, fmt.Sprintf("field %d not found", st.reservation.FieldID), "load field")
	}
	if st.capacity, err = booking.Capacity(booking.FieldType(st.field.Type)); err != nil {
		return st, err
	}
	st.key = booking.SlotKey{FieldID: st.reservation.FieldID, Date: st.reservation.Date.UTC(), Slot: st.reservation.Slot}
	if err := s.lockSlot(ctx, tx, st.key); err != nil {
		return st, err
	}
	if st.occupied, err = s.reservations.SlotOccupancyTx(ctx, tx, st.key); err != nil {
		return st, booking.Internal("read slot occupancy", err)
	}
	if st.own, err = s.reservations.ReservationOccupancyTx(ctx, tx, id); err != nil {
		return st, booking.Internal("read reservation occupancy", err)
	}
	return st, nil
}

func (s *ReservationService) lockSlot(ctx context.Context, tx *sql.Tx, key booking.SlotKey) error {
	start := time.Now()
	err := s.reservations.LockSlotTx(ctx, tx, key)
	s.metrics.ObserveSlotLockWait(time.Since(start))
	if err != nil {
		return booking.Internal("lock slot", err)
	}
	return nil
}

func (s *ReservationService) ensureUsers(ctx context.Context, tx *sql.Tx, ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := s.users.ExistingIDsTx(ctx, tx, ids)
	if err != nil {
		return booking.Internal("look up users", err)
	}
	var missing []uint64
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return booking.NotFound(fmt.Sprintf("users not found: %v", missing))
	}
	return nil
}

func (s *ReservationService) fieldCapacity(ctx context.Context, fieldID uint64) (int, error) {
	field, err := s.fields.GetByID(ctx, fieldID)
	if err != nil {
		return 0, s.notFoundOrInternal(err, fmt.Sprintf("field %d not found", fieldID), "load field")
	}
	return booking.Capacity(booking.FieldType(field.Type))
}

func (s *ReservationService) updatePrice(ctx context.Context, tx *sql.Tx, id uint64, total float64) error {
	if err := s.reservations.UpdateTotalPriceTx(ctx, tx, id, total); err != nil {
		return booking.Internal("update total price", err)
	}
	return nil
}

func (s *ReservationService) notFoundOrInternal(err error, notFoundMsg, op string) error {
	if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrReferenceMissing) {
		return booking.NotFound(notFoundMsg)
	}
	var be *booking.Error
	if errors.As(err, &be) {
		return be
	}
	return booking.Internal(op, err)
}

func (s *ReservationService) record(op string, err error) {
	outcome := metrics.OutcomeAccepted
	switch booking.KindOf(err) {
	case "":
	case booking.KindCapacityExceeded:
		outcome = metrics.OutcomeRejected
	case booking.KindInternal, booking.KindResourceExhausted:
		outcome = metrics.OutcomeError
		s.logger.Error("allocator failure", zap.String("operation", op), zap.Error(err))
	default:
		outcome = metrics.OutcomeInvalid
	}
	s.metrics.RecordAllocation(op, outcome)
}

func (s *ReservationService) logReject(op string, key booking.SlotKey, reservationID uint64, err error) {
	fields := []zap.Field{zap.String("operation", op), zap.Stringer("slot", key), zap.Uint64("reservation_id", reservationID)}
	var be *booking.Error
	if errors.As(err, &be) && be.Capacity != nil {
		fields = append(fields,
			zap.Int("capacity", be.Capacity.MaxUsers),
			zap.Int("occupied", be.Capacity.PlazasReservadas),
			zap.Int("requested", be.Capacity.PlazasSolicitadas))
	}
	s.logger.Info("capacity exceeded", fields...)
}

// publish emits a change event.  The change is already committed, so a
// broker failure is logged and otherwise ignored.
func (s *ReservationService) publish(ctx context.Context, action string, reservationID uint64, key booking.SlotKey, delta int, occ booking.Occupancy, total float64, users []uint64) {
	if s.events == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	ev := queue.ReservationChangedEvent{
		Action:        action,
		ReservationID: reservationID,
		FieldID:       key.FieldID,
		Date:          key.DateString(),
		Slot:          key.Slot,
		Delta:         delta,
		Occupied:      occ.Occupied,
		Capacity:      occ.Capacity,
		TotalPrice:    total,
		UserIDs:       users,
		OccurredAt:    s.now().UTC(),
	}
	if err := s.events.Publish(pctx, ev); err != nil {
		s.logger.Warn("publish reservation event failed", zap.String("action", action), zap.Uint64("reservation_id", reservationID), zap.Error(err))
	}
}

// price is places × hourly price, rounded to cents.
func price(places int, perHour float64) float64 {
	if places <= 0 {
		return 0
	}
	return math.Round(float64(places)*perHour*100) / 100
}
