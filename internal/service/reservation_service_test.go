package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pitchdreamers/pitch-booking/internal/booking"
	"github.com/pitchdreamers/pitch-booking/internal/metrics"
	"github.com/pitchdreamers/pitch-booking/internal/model"
	"github.com/pitchdreamers/pitch-booking/internal/queue"
	"github.com/pitchdreamers/pitch-booking/internal/repository"
)

const (
	saturday = "2026-10-17"
	monday   = "2026-10-19"

	field7  uint64 = 1
	field11 uint64 = 2
)

// fakeStore keeps reservations in memory.  Writes are applied at once; the
// allocator only writes after its capacity check, so rollbacks in these
// tests never have anything to undo.
//
// When the context carries a txScope, LockSlotTx blocks on a mutex per slot
// that is held until the transaction ends, like the slot_locks row lock.
type fakeStore struct {
	mu            sync.Mutex
	fields        map[uint64]model.Field
	users         map[uint64]bool
	res           map[uint64]model.Reservation
	claims        map[uint64]map[uint64]int
	nextID        uint64
	locked        []booking.SlotKey
	lockErr       error
	slotLocks     map[string]*sync.Mutex
	unlockedReads int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		fields: map[uint64]model.Field{
			field7:  {ID: field7, Name: "Camp Nou 7", Type: "futbol7", PricePerHour: 10},
			field11: {ID: field11, Name: "Camp Nou 11", Type: "futbol11", PricePerHour: 12.5},
		},
		users:  map[uint64]bool{1: true, 2: true, 3: true, 4: true, 5: true},
		res:       map[uint64]model.Reservation{},
		claims:    map[uint64]map[uint64]int{},
		slotLocks: map[string]*sync.Mutex{},
	}
}

func sameSlot(r model.Reservation, key booking.SlotKey) bool {
	return r.FieldID == key.FieldID && r.Date.Equal(key.Date) && r.Slot == key.Slot
}

func (f *fakeStore) sumLocked(id uint64) int {
	n := 0
	for _, q := range f.claims[id] {
		n += q
	}
	return n
}

func (f *fakeStore) slotSum(key booking.SlotKey) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for id, r := range f.res {
		if sameSlot(r, key) {
			n += f.sumLocked(id)
		}
	}
	return n
}

func (f *fakeStore) GetForUpdateTx(_ context.Context, _ *sql.Tx, id uint64) (model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.res[id]
	if !ok {
		return model.Reservation{}, repository.ErrNotFound
	}
	return r, nil
}

func (f *fakeStore) LockSlotTx(ctx context.Context, _ *sql.Tx, key booking.SlotKey) error {
	f.mu.Lock()
	if f.lockErr != nil {
		f.mu.Unlock()
		return f.lockErr
	}
	f.locked = append(f.locked, key)
	slot, ok := f.slotLocks[key.String()]
	if !ok {
		slot = &sync.Mutex{}
		f.slotLocks[key.String()] = slot
	}
	f.mu.Unlock()

	if scope := scopeFrom(ctx); scope != nil {
		scope.hold(key.String(), slot)
	}
	return nil
}

func (f *fakeStore) SlotOccupancyTx(ctx context.Context, _ *sql.Tx, key booking.SlotKey) (int, error) {
	if scope := scopeFrom(ctx); scope != nil && !scope.holds(key.String()) {
		f.mu.Lock()
		f.unlockedReads++
		f.mu.Unlock()
	}
	return f.slotSum(key), nil
}

func (f *fakeStore) SlotOccupancy(_ context.Context, key booking.SlotKey) (int, error) {
	return f.slotSum(key), nil
}

func (f *fakeStore) DayOccupancy(_ context.Context, fieldID uint64, date time.Time) (map[int]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[int]int{}
	for id, r := range f.res {
		if r.FieldID == fieldID && r.Date.Equal(date) {
			out[r.Slot] += f.sumLocked(id)
		}
	}
	return out, nil
}

func (f *fakeStore) ReservationOccupancyTx(_ context.Context, _ *sql.Tx, id uint64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sumLocked(id), nil
}

func (f *fakeStore) QuantitiesTx(_ context.Context, _ *sql.Tx, id uint64, userIDs []uint64) (map[uint64]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[uint64]int{}
	for _, uid := range userIDs {
		if q, ok := f.claims[id][uid]; ok {
			out[uid] = q
		}
	}
	return out, nil
}

func (f *fakeStore) CreateTx(_ context.Context, _ *sql.Tx, key booking.SlotKey, totalPrice float64) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.res[f.nextID] = model.Reservation{ID: f.nextID, FieldID: key.FieldID, Date: key.Date, Slot: key.Slot, TotalPrice: totalPrice}
	f.claims[f.nextID] = map[uint64]int{}
	return f.nextID, nil
}

func (f *fakeStore) AddUsersTx(_ context.Context, _ *sql.Tx, id uint64, allocs []booking.Allocation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range allocs {
		f.claims[id][a.UserID] += a.Quantity
	}
	return nil
}

func (f *fakeStore) ClearUsersTx(_ context.Context, _ *sql.Tx, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.claims[id] = map[uint64]int{}
	return nil
}

func (f *fakeStore) RemoveUsersTx(_ context.Context, _ *sql.Tx, id uint64, userIDs []uint64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, uid := range userIDs {
		if _, ok := f.claims[id][uid]; ok {
			delete(f.claims[id], uid)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) UpdateTotalPriceTx(_ context.Context, _ *sql.Tx, id uint64, totalPrice float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.res[id]
	r.TotalPrice = totalPrice
	f.res[id] = r
	return nil
}

func (f *fakeStore) DeleteTx(_ context.Context, _ *sql.Tx, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.res[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.res, id)
	delete(f.claims, id)
	return nil
}

func (f *fakeStore) ListEmptyBefore(_ context.Context, day time.Time, limit int) ([]uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uint64
	for id, r := range f.res {
		if r.Date.Before(day) && len(f.claims[id]) == 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (f *fakeStore) GetByID(_ context.Context, id uint64) (model.Field, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fl, ok := f.fields[id]
	if !ok {
		return model.Field{}, repository.ErrNotFound
	}
	return fl, nil
}

func (f *fakeStore) GetTx(ctx context.Context, _ *sql.Tx, id uint64) (model.Field, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeStore) ExistingIDsTx(_ context.Context, _ *sql.Tx, ids []uint64) (map[uint64]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[uint64]bool{}
	for _, id := range ids {
		if f.users[id] {
			out[id] = true
		}
	}
	return out, nil
}

type recordingPublisher struct {
	events []queue.ReservationChangedEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.ReservationChangedEvent) error {
	p.events = append(p.events, ev)
	return p.err
}

type harness struct {
	svc    *ReservationService
	store  *fakeStore
	mock   sqlmock.Sqlmock
	events *recordingPublisher
}

func newHarness(t *testing.T, m *metrics.Metrics) *harness {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := newFakeStore()
	events := &recordingPublisher{}
	svc := NewReservationService(db, store, store, store, ReservationServiceOptions{
		AcquireTimeout: time.Second,
		Events:         events,
		Metrics:        m,
	})
	svc.now = func() time.Time { return time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC) }
	return &harness{svc: svc, store: store, mock: mock, events: events}
}

func (h *harness) commit() {
	h.mock.ExpectBegin()
	h.mock.ExpectCommit()
}

func (h *harness) rollback() {
	h.mock.ExpectBegin()
	h.mock.ExpectRollback()
}

func (h *harness) create(t *testing.T, fieldID uint64, users ...booking.Allocation) CreateResult {
	t.Helper()
	h.commit()
	res, err := h.svc.CreateReservation(context.Background(), CreateInput{FieldID: fieldID, Date: saturday, Slot: 1, Users: users})
	require.NoError(t, err)
	return res
}

func alloc(user uint64, q int) booking.Allocation {
	return booking.Allocation{UserID: user, Quantity: q}
}

func capacityDetail(t *testing.T, err error) booking.CapacityDetail {
	t.Helper()
	var be *booking.Error
	require.True(t, errors.As(err, &be), "expected *booking.Error, got %v", err)
	require.Equal(t, booking.KindCapacityExceeded, be.Kind)
	require.NotNil(t, be.Capacity)
	return *be.Capacity
}

func TestCreateFillsSlotExactly(t *testing.T) {
	h := newHarness(t, nil)

	res := h.create(t, field7, alloc(1, 7), alloc(2, 7))

	assert.Equal(t, 0, res.PlazasDisponibles)
	assert.Equal(t, booking.Occupancy{Occupied: 14, Capacity: 14, Available: 0}, res.Occupancy)
	assert.Equal(t, 140.0, res.TotalPrice)
	require.Len(t, h.events.events, 1)
	assert.Equal(t, queue.ActionCreated, h.events.events[0].Action)
	assert.Equal(t, 14, h.events.events[0].Delta)
	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestAddToFullSlotIsRejected(t *testing.T) {
	h := newHarness(t, nil)
	res := h.create(t, field7, alloc(1, 7), alloc(2, 7))

	h.rollback()
	_, err := h.svc.AddUsers(context.Background(), res.ReservationID, []booking.Allocation{alloc(3, 1)})

	assert.Equal(t, booking.CapacityDetail{MaxUsers: 14, PlazasDisponibles: 0, PlazasSolicitadas: 1, PlazasReservadas: 14}, capacityDetail(t, err))
	assert.Equal(t, 14, h.store.sumLocked(res.ReservationID))
	assert.Len(t, h.events.events, 1)
	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestRemoveFreesPlacesForLaterAdd(t *testing.T) {
	h := newHarness(t, nil)
	res := h.create(t, field7, alloc(1, 7), alloc(2, 7))

	h.commit()
	occ, err := h.svc.RemoveUser(context.Background(), res.ReservationID, 2)
	require.NoError(t, err)
	assert.Equal(t, 7, occ.Occupied)

	h.commit()
	occ, err = h.svc.AddUsers(context.Background(), res.ReservationID, []booking.Allocation{alloc(3, 7)})
	require.NoError(t, err)
	assert.Equal(t, booking.Occupancy{Occupied: 14, Capacity: 14, Available: 0}, occ)
	assert.Equal(t, 140.0, h.store.res[res.ReservationID].TotalPrice)
	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestCapacityIsSharedAcrossReservationsOfSlot(t *testing.T) {
	h := newHarness(t, nil)
	h.create(t, field11, alloc(1, 10))
	h.create(t, field11, alloc(2, 12))

	h.rollback()
	_, err := h.svc.CreateReservation(context.Background(), CreateInput{FieldID: field11, Date: saturday, Slot: 1, Users: []booking.Allocation{alloc(3, 1)}})

	assert.Equal(t, booking.CapacityDetail{MaxUsers: 22, PlazasDisponibles: 0, PlazasSolicitadas: 1, PlazasReservadas: 22}, capacityDetail(t, err))
	assert.Len(t, h.store.res, 2)
	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestOtherSlotsAreIndependent(t *testing.T) {
	h := newHarness(t, nil)
	h.create(t, field7, alloc(1, 14))

	h.commit()
	res, err := h.svc.CreateReservation(context.Background(), CreateInput{FieldID: field7, Date: saturday, Slot: 2, Users: []booking.Allocation{alloc(2, 14)}})
	require.NoError(t, err)
	assert.Equal(t, 0, res.PlazasDisponibles)
	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestWeekdayIsRejectedBeforeStorage(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.svc.CreateReservation(context.Background(), CreateInput{FieldID: field7, Date: monday, Slot: 1, Users: []booking.Allocation{alloc(1, 1)}})

	assert.Equal(t, booking.KindInvalidSlot, booking.KindOf(err))
	assert.Empty(t, h.store.locked)
	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestCreateRejectsOutOfRangeSlot(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.svc.CreateReservation(context.Background(), CreateInput{FieldID: field7, Date: saturday, Slot: 5, Users: []booking.Allocation{alloc(1, 1)}})

	assert.Equal(t, booking.KindInvalidSlot, booking.KindOf(err))
	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestCreateRequestingMoreThanCapacity(t *testing.T) {
	h := newHarness(t, nil)

	h.rollback()
	_, err := h.svc.CreateReservation(context.Background(), CreateInput{FieldID: field7, Date: saturday, Slot: 1, Users: []booking.Allocation{alloc(1, 15)}})

	assert.Equal(t, booking.CapacityDetail{MaxUsers: 14, PlazasDisponibles: 14, PlazasSolicitadas: 15, PlazasReservadas: 0}, capacityDetail(t, err))
	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestCreateUnknownFieldOrUser(t *testing.T) {
	h := newHarness(t, nil)

	h.rollback()
	_, err := h.svc.CreateReservation(context.Background(), CreateInput{FieldID: 99, Date: saturday, Slot: 1, Users: []booking.Allocation{alloc(1, 1)}})
	assert.Equal(t, booking.KindNotFound, booking.KindOf(err))

	h.rollback()
	_, err = h.svc.CreateReservation(context.Background(), CreateInput{FieldID: field7, Date: saturday, Slot: 1, Users: []booking.Allocation{alloc(1, 1), alloc(42, 1)}})
	assert.Equal(t, booking.KindNotFound, booking.KindOf(err))
	assert.Contains(t, err.Error(), "42")

	assert.Empty(t, h.store.res)
	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestCreateWithoutUsersIsValidationError(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.svc.CreateReservation(context.Background(), CreateInput{FieldID: field7, Date: saturday, Slot: 1})

	assert.Equal(t, booking.KindValidation, booking.KindOf(err))
	assert.Empty(t, h.store.res)
	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestAddWithOverflowingQuantityIsRejected(t *testing.T) {
	h := newHarness(t, nil)
	res := h.create(t, field7, alloc(1, 14))

	_, err := h.svc.AddUsers(context.Background(), res.ReservationID, []booking.Allocation{alloc(2, math.MaxInt), alloc(3, 2)})
	assert.Equal(t, booking.KindValidation, booking.KindOf(err))

	_, err = h.svc.ReplaceUsers(context.Background(), res.ReservationID, []booking.Allocation{alloc(2, math.MaxInt), alloc(3, 2)})
	assert.Equal(t, booking.KindValidation, booking.KindOf(err))

	assert.Equal(t, map[uint64]int{1: 14}, h.store.claims[res.ReservationID])
	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestAddOfLargestQuantityToFullSlotIsCapacityExceeded(t *testing.T) {
	h := newHarness(t, nil)
	res := h.create(t, field7, alloc(1, 14))

	h.rollback()
	_, err := h.svc.AddUsers(context.Background(), res.ReservationID, []booking.Allocation{alloc(2, booking.MaxQuantity), alloc(3, booking.MaxQuantity)})

	assert.Equal(t, booking.CapacityDetail{MaxUsers: 14, PlazasDisponibles: 0, PlazasSolicitadas: 44, PlazasReservadas: 14}, capacityDetail(t, err))
	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestAddAccumulatesQuantity(t *testing.T) {
	h := newHarness(t, nil)
	res := h.create(t, field7, alloc(1, 2))

	h.commit()
	_, err := h.svc.AddUsers(context.Background(), res.ReservationID, []booking.Allocation{alloc(1, 3)})
	require.NoError(t, err)

	assert.Equal(t, 5, h.store.claims[res.ReservationID][1])
	assert.Equal(t, 50.0, h.store.res[res.ReservationID].TotalPrice)
	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestReplaceCountsOnlyNetChange(t *testing.T) {
	h := newHarness(t, nil)
	res := h.create(t, field7, alloc(1, 10))
	h.create(t, field7, alloc(2, 4))

	// 10 places swapped for 10 different ones fits although the slot is full.
	h.commit()
	occ, err := h.svc.ReplaceUsers(context.Background(), res.ReservationID, []booking.Allocation{alloc(3, 6), alloc(4, 4)})
	require.NoError(t, err)
	assert.Equal(t, 14, occ.Occupied)
	assert.Equal(t, map[uint64]int{3: 6, 4: 4}, h.store.claims[res.ReservationID])

	h.rollback()
	_, err = h.svc.ReplaceUsers(context.Background(), res.ReservationID, []booking.Allocation{alloc(3, 11)})
	assert.Equal(t, booking.CapacityDetail{MaxUsers: 14, PlazasDisponibles: 0, PlazasSolicitadas: 1, PlazasReservadas: 14}, capacityDetail(t, err))
	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestReplaceWithEmptyListEmptiesReservation(t *testing.T) {
	h := newHarness(t, nil)
	res := h.create(t, field7, alloc(1, 3))

	h.commit()
	occ, err := h.svc.ReplaceUsers(context.Background(), res.ReservationID, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, occ.Occupied)
	assert.Contains(t, h.store.res, res.ReservationID)
	assert.Equal(t, 0.0, h.store.res[res.ReservationID].TotalPrice)
	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestPatchSwapsUsers(t *testing.T) {
	h := newHarness(t, nil)
	res := h.create(t, field7, alloc(1, 7), alloc(2, 7))

	h.commit()
	occ, err := h.svc.PatchUsers(context.Background(), res.ReservationID, booking.Patch{
		Add:    []booking.Allocation{alloc(3, 7)},
		Remove: []uint64{2},
	})
	require.NoError(t, err)
	assert.Equal(t, 14, occ.Occupied)
	assert.Equal(t, map[uint64]int{1: 7, 3: 7}, h.store.claims[res.ReservationID])

	h.rollback()
	_, err = h.svc.PatchUsers(context.Background(), res.ReservationID, booking.Patch{
		Add:    []booking.Allocation{alloc(4, 8)},
		Remove: []uint64{3},
	})
	assert.Equal(t, booking.CapacityDetail{MaxUsers: 14, PlazasDisponibles: 0, PlazasSolicitadas: 1, PlazasReservadas: 14}, capacityDetail(t, err))
	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestRemoveUsersIsIdempotent(t *testing.T) {
	h := newHarness(t, nil)
	res := h.create(t, field7, alloc(1, 2), alloc(2, 3))

	h.commit()
	n, err := h.svc.RemoveUsers(context.Background(), res.ReservationID, []uint64{2, 5})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	h.commit()
	n, err = h.svc.RemoveUsers(context.Background(), res.ReservationID, []uint64{2, 5})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	assert.Equal(t, map[uint64]int{1: 2}, h.store.claims[res.ReservationID])
	assert.Equal(t, 20.0, h.store.res[res.ReservationID].TotalPrice)
	require.Len(t, h.events.events, 2)
	assert.Equal(t, -3, h.events.events[1].Delta)
	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestRemoveUserNotInReservation(t *testing.T) {
	h := newHarness(t, nil)
	res := h.create(t, field7, alloc(1, 2))

	h.rollback()
	_, err := h.svc.RemoveUser(context.Background(), res.ReservationID, 3)

	assert.Equal(t, booking.KindNotFound, booking.KindOf(err))
	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestMutationsOnMissingReservation(t *testing.T) {
	h := newHarness(t, nil)

	h.rollback()
	_, err := h.svc.AddUsers(context.Background(), 77, []booking.Allocation{alloc(1, 1)})
	assert.Equal(t, booking.KindNotFound, booking.KindOf(err))

	h.rollback()
	err = h.svc.DeleteReservation(context.Background(), 77)
	assert.Equal(t, booking.KindNotFound, booking.KindOf(err))
	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestDeleteReservationFreesSlot(t *testing.T) {
	h := newHarness(t, nil)
	res := h.create(t, field7, alloc(1, 14))

	h.commit()
	require.NoError(t, h.svc.DeleteReservation(context.Background(), res.ReservationID))

	occ, err := h.svc.GetOccupancy(context.Background(), field7, saturday, 1)
	require.NoError(t, err)
	assert.Equal(t, booking.Occupancy{Occupied: 0, Capacity: 14, Available: 14}, occ)
	assert.Equal(t, queue.ActionDeleted, h.events.events[len(h.events.events)-1].Action)
	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestMutationsTakeSlotLock(t *testing.T) {
	h := newHarness(t, nil)
	res := h.create(t, field7, alloc(1, 1))

	h.commit()
	_, err := h.svc.AddUsers(context.Background(), res.ReservationID, []booking.Allocation{alloc(2, 1)})
	require.NoError(t, err)

	require.Len(t, h.store.locked, 2)
	for _, key := range h.store.locked {
		assert.Equal(t, "field=1 date=2026-10-17 slot=1", key.String())
	}
}

func TestSlotLockFailureIsInternal(t *testing.T) {
	h := newHarness(t, nil)
	h.store.lockErr = errors.New("lock wait timeout exceeded")

	h.rollback()
	_, err := h.svc.CreateReservation(context.Background(), CreateInput{FieldID: field7, Date: saturday, Slot: 1, Users: []booking.Allocation{alloc(1, 1)}})

	assert.Equal(t, booking.KindInternal, booking.KindOf(err))
	assert.Empty(t, h.store.res)
	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestPoolExhaustionIsResourceExhausted(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)

	held, err := db.Conn(context.Background())
	require.NoError(t, err)
	defer held.Close()

	store := newFakeStore()
	svc := NewReservationService(db, store, store, store, ReservationServiceOptions{AcquireTimeout: 20 * time.Millisecond})

	_, err = svc.CreateReservation(context.Background(), CreateInput{FieldID: field7, Date: saturday, Slot: 1, Users: []booking.Allocation{alloc(1, 1)}})

	assert.Equal(t, booking.KindResourceExhausted, booking.KindOf(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPublishFailureDoesNotFailCommittedChange(t *testing.T) {
	h := newHarness(t, nil)
	h.events.err = errors.New("broker down")
	core, logs := observer.New(zap.WarnLevel)
	h.svc.logger = zap.New(core)

	res := h.create(t, field7, alloc(1, 1))

	assert.NotZero(t, res.ReservationID)
	assert.Len(t, h.store.res, 1)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "publish reservation event failed", logs.All()[0].Message)
}

func TestFieldAvailabilityListsAllSlots(t *testing.T) {
	h := newHarness(t, nil)
	h.create(t, field7, alloc(1, 5))

	slots, err := h.svc.FieldAvailability(context.Background(), field7, saturday)
	require.NoError(t, err)
	require.Len(t, slots, booking.SlotCount)
	assert.Equal(t, SlotAvailability{Slot: 1, Start: "09:00", End: "10:30", Occupancy: booking.NewOccupancy(14, 5)}, slots[0])
	assert.Equal(t, SlotAvailability{Slot: 4, Start: "13:30", End: "15:00", Occupancy: booking.NewOccupancy(14, 0)}, slots[3])

	_, err = h.svc.FieldAvailability(context.Background(), field7, monday)
	assert.Equal(t, booking.KindInvalidSlot, booking.KindOf(err))

	_, err = h.svc.FieldAvailability(context.Background(), 99, saturday)
	assert.Equal(t, booking.KindNotFound, booking.KindOf(err))
}

func TestSweepEmptyDeletesOnlyPastEmptyReservations(t *testing.T) {
	h := newHarness(t, nil)
	past := time.Date(2026, 10, 10, 0, 0, 0, 0, time.UTC)
	h.store.res[10] = model.Reservation{ID: 10, FieldID: field7, Date: past, Slot: 1}
	h.store.claims[10] = map[uint64]int{}
	h.store.res[11] = model.Reservation{ID: 11, FieldID: field7, Date: past, Slot: 2}
	h.store.claims[11] = map[uint64]int{1: 2}
	h.store.nextID = 11
	future := h.create(t, field7, alloc(1, 1))
	h.commit()
	_, err := h.svc.RemoveUsers(context.Background(), future.ReservationID, []uint64{1})
	require.NoError(t, err)

	h.commit()
	n, err := h.svc.SweepEmpty(context.Background(), 100)
	require.NoError(t, err)

	assert.Equal(t, 1, n)
	assert.NotContains(t, h.store.res, uint64(10))
	assert.Contains(t, h.store.res, uint64(11))
	assert.Contains(t, h.store.res, future.ReservationID)
	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestAllocationMetrics(t *testing.T) {
	m := metrics.New()
	h := newHarness(t, m)
	res := h.create(t, field7, alloc(1, 14))

	h.rollback()
	_, err := h.svc.AddUsers(context.Background(), res.ReservationID, []booking.Allocation{alloc(2, 1)})
	require.Error(t, err)

	_, err = h.svc.AddUsers(context.Background(), res.ReservationID, nil)
	require.Error(t, err)

	expected := `
# HELP booking_allocations_total Allocator decisions by operation and outcome
# TYPE booking_allocations_total counter
booking_allocations_total{operation="add_users",outcome="invalid"} 1
booking_allocations_total{operation="add_users",outcome="rejected"} 1
booking_allocations_total{operation="create",outcome="accepted"} 1
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "booking_allocations_total"))
}
