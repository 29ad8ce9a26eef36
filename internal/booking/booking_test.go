package booking

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSlotKeyAcceptsWeekendSlots(t *testing.T) {
	for _, date := range []string{"2026-10-17", "2026-10-18"} {
		for slot := 1; slot <= SlotCount; slot++ {
			key, err := NewSlotKey(3, date, slot)
			require.NoError(t, err)
			assert.Equal(t, date, key.DateString())
			assert.Equal(t, slot, key.Slot)
		}
	}
}

func TestNewSlotKeyRejectsWeekdayWhateverTheSlot(t *testing.T) {
	for _, slot := range []int{0, 1, 4, 5} {
		_, err := NewSlotKey(1, "2026-10-19", slot)
		require.Error(t, err)
		assert.Equal(t, KindInvalidSlot, KindOf(err))
		assert.Contains(t, err.Error(), "Monday")
	}
}

func TestNewSlotKeyRejectsOutOfRangeSlot(t *testing.T) {
	for _, slot := range []int{-1, 0, 5} {
		_, err := NewSlotKey(1, "2026-10-17", slot)
		require.Error(t, err)
		assert.Equal(t, KindInvalidSlot, KindOf(err))
	}
}

func TestNewSlotKeyRejectsMalformedDate(t *testing.T) {
	_, err := NewSlotKey(1, "17/10/2026", 1)
	require.Error(t, err)
	assert.Equal(t, KindInvalidSlot, KindOf(err))
}

func TestSlotKeyBounds(t *testing.T) {
	key, err := NewSlotKey(1, "2026-10-17", 2)
	require.NoError(t, err)
	start, end := key.Bounds()
	assert.Equal(t, "2026-10-17 10:30:00", start)
	assert.Equal(t, "2026-10-17 12:00:00", end)
}

func TestWindowLabels(t *testing.T) {
	labels := make([]string, 0, SlotCount)
	for _, w := range Windows() {
		labels = append(labels, w.Label())
	}
	assert.Equal(t, []string{"09:00-10:30", "10:30-12:00", "12:00-13:30", "13:30-15:00"}, labels)
}

func TestCapacityByFieldType(t *testing.T) {
	c, err := Capacity(Futbol7)
	require.NoError(t, err)
	assert.Equal(t, 14, c)

	c, err = Capacity(Futbol11)
	require.NoError(t, err)
	assert.Equal(t, 22, c)

	_, err = Capacity("padel")
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestAdmitBoundary(t *testing.T) {
	require.NoError(t, Admit(14, 0, 14))
	require.NoError(t, Admit(22, 21, 1))

	err := Admit(14, 14, 1)
	require.Error(t, err)
	var be *Error
	require.True(t, errors.As(err, &be))
	assert.Equal(t, KindCapacityExceeded, be.Kind)
	assert.Equal(t, CapacityDetail{MaxUsers: 14, PlazasDisponibles: 0, PlazasSolicitadas: 1, PlazasReservadas: 14}, *be.Capacity)
}

func TestAdmitNeverRejectsShrinkingChanges(t *testing.T) {
	// A slot may be over capacity after an out-of-band edit; removals must
	// still go through.
	require.NoError(t, Admit(14, 20, 0))
	require.NoError(t, Admit(14, 20, -3))
}

func TestCapacityExceededClampsAvailable(t *testing.T) {
	err := CapacityExceeded(14, 16, 2)
	assert.Equal(t, 0, err.Capacity.PlazasDisponibles)
	assert.Equal(t, 16, err.Capacity.PlazasReservadas)
}

func TestNewOccupancy(t *testing.T) {
	assert.Equal(t, Occupancy{Occupied: 10, Capacity: 14, Available: 4}, NewOccupancy(14, 10))
	assert.Equal(t, 0, NewOccupancy(14, 15).Available)
}

func TestNormalizeAllocationsMergesDuplicates(t *testing.T) {
	out, err := NormalizeAllocations([]Allocation{{UserID: 9, Quantity: 2}, {UserID: 3, Quantity: 1}, {UserID: 9, Quantity: 3}})
	require.NoError(t, err)
	assert.Equal(t, []Allocation{{UserID: 3, Quantity: 1}, {UserID: 9, Quantity: 5}}, out)
	assert.Equal(t, 6, TotalQuantity(out))
	assert.Equal(t, []uint64{3, 9}, UserIDs(out))
}

func TestNormalizeAllocationsRejectsBadEntries(t *testing.T) {
	_, err := NormalizeAllocations([]Allocation{{UserID: 0, Quantity: 1}})
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = NormalizeAllocations([]Allocation{{UserID: 1, Quantity: 0}})
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestNormalizeAllocationsBoundsQuantities(t *testing.T) {
	_, err := NormalizeAllocations([]Allocation{{UserID: 2, Quantity: math.MaxInt}, {UserID: 3, Quantity: 2}})
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = NormalizeAllocations([]Allocation{{UserID: 2, Quantity: 20}, {UserID: 2, Quantity: 3}})
	assert.Equal(t, KindValidation, KindOf(err))

	out, err := NormalizeAllocations([]Allocation{{UserID: 2, Quantity: 20}, {UserID: 2, Quantity: 2}})
	require.NoError(t, err)
	assert.Equal(t, []Allocation{{UserID: 2, Quantity: MaxQuantity}}, out)
}

func TestMaxQuantityIsLargestCapacity(t *testing.T) {
	c, err := Capacity(Futbol11)
	require.NoError(t, err)
	assert.Equal(t, c, MaxQuantity)
}

func TestAdmitDoesNotOverflow(t *testing.T) {
	err := Admit(14, 14, math.MaxInt)
	require.Error(t, err)
	assert.Equal(t, KindCapacityExceeded, KindOf(err))
}

func TestNormalizeUserIDs(t *testing.T) {
	out, err := NormalizeUserIDs([]uint64{5, 2, 5})
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 5}, out)

	_, err = NormalizeUserIDs([]uint64{0})
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestPatchNormalize(t *testing.T) {
	p, err := Patch{Add: []Allocation{{UserID: 2, Quantity: 1}}, Remove: []uint64{4, 4}}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, []uint64{4}, p.Remove)

	_, err = Patch{Add: []Allocation{{UserID: 2, Quantity: 1}}, Remove: []uint64{2}}.Normalize()
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = Patch{}.Normalize()
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestKindOfForeignError(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, KindInternal, FromError(errors.New("boom")).Kind)
}
