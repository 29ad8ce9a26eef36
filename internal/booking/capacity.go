package booking

import "fmt"

// FieldType is the kind of pitch.  It determines capacity.
type FieldType string

const (
	Futbol7  FieldType = "futbol7"
	Futbol11 FieldType = "futbol11"
)

var capacities = map[FieldType]int{
	Futbol7:  14,
	Futbol11: 22,
}

// Capacity returns the number of places a slot on a field of type t
// offers.  Unknown types have no capacity.
func Capacity(t FieldType) (int, error) {
	c, ok := capacities[t]
	if !ok {
		return 0, Validation(fmt.Sprintf("unknown field type %q", t))
	}
	return c, nil
}

// ValidFieldType reports whether t is one of the supported pitch types.
func ValidFieldType(t string) bool {
	_, ok := capacities[FieldType(t)]
	return ok
}

// Occupancy is the state of one slot.
type Occupancy struct {
	Occupied  int `json:"occupied"`
	Capacity  int `json:"capacity"`
	Available int `json:"available"`
}

// NewOccupancy derives Available, clamped at zero.
func NewOccupancy(capacity, occupied int) Occupancy {
	avail := capacity - occupied
	if avail < 0 {
		avail = 0
	}
	return Occupancy{Occupied: occupied, Capacity: capacity, Available: avail}
}

// Admit decides whether a change of delta places fits in a slot of the
// given capacity that currently holds occupied places.  A change that does
// not add places is always admitted, so shrinking an over-full slot is
// possible.
func Admit(capacity, occupied, delta int) error {
	if delta <= 0 {
		return nil
	}
	if delta > capacity-occupied {
		return CapacityExceeded(capacity, occupied, delta)
	}
	return nil
}
