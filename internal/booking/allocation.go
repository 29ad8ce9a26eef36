package booking

import (
	"fmt"
	"sort"
)

// Allocation is a claim of Quantity places by one user within a
// reservation.
type Allocation struct {
	UserID   uint64 `json:"user_id" validate:"required,gt=0"`
	Quantity int    `json:"quantity" validate:"required,gte=1,lte=22"`
}

// MaxQuantity is the most places one user can hold in a reservation: the
// capacity of the largest field type.
const MaxQuantity = 22

// NormalizeAllocations validates every entry and merges repeated users by
// summing their quantities.  Neither an entry nor a merged total may
// exceed MaxQuantity, which keeps every sum over the result far from int
// overflow.  The result is ordered by user id so rows are always written,
// and therefore locked, in the same order.
func NormalizeAllocations(in []Allocation) ([]Allocation, error) {
	merged := make(map[uint64]int, len(in))
	for i, a := range in {
		if a.UserID == 0 {
			return nil, Validation(fmt.Sprintf("users[%d]: user_id must be a positive integer", i))
		}
		if a.Quantity < 1 {
			return nil, Validation(fmt.Sprintf("users[%d]: quantity must be at least 1", i))
		}
		if a.Quantity > MaxQuantity-merged[a.UserID] {
			return nil, Validation(fmt.Sprintf("users[%d]: user %d cannot hold more than %d places", i, a.UserID, MaxQuantity))
		}
		merged[a.UserID] += a.Quantity
	}
	out := make([]Allocation, 0, len(merged))
	for id, q := range merged {
		out = append(out, Allocation{UserID: id, Quantity: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// NormalizeUserIDs drops duplicates and rejects zero ids.
func NormalizeUserIDs(in []uint64) ([]uint64, error) {
	seen := make(map[uint64]struct{}, len(in))
	out := make([]uint64, 0, len(in))
	for i, id := range in {
		if id == 0 {
			return nil, Validation(fmt.Sprintf("user_ids[%d]: must be a positive integer", i))
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// TotalQuantity sums the places claimed by allocs.
func TotalQuantity(allocs []Allocation) int {
	n := 0
	for _, a := range allocs {
		n += a.Quantity
	}
	return n
}

// UserIDs lists the users of allocs in order.
func UserIDs(allocs []Allocation) []uint64 {
	ids := make([]uint64, len(allocs))
	for i, a := range allocs {
		ids[i] = a.UserID
	}
	return ids
}

// Patch is a combined add/remove change to a reservation's users.
type Patch struct {
	Add    []Allocation
	Remove []uint64
}

// Normalize validates both halves and rejects a user named on both sides.
func (p Patch) Normalize() (Patch, error) {
	add, err := NormalizeAllocations(p.Add)
	if err != nil {
		return Patch{}, err
	}
	remove, err := NormalizeUserIDs(p.Remove)
	if err != nil {
		return Patch{}, err
	}
	if len(add) == 0 && len(remove) == 0 {
		return Patch{}, Validation("patch must add or remove at least one user")
	}
	removing := make(map[uint64]struct{}, len(remove))
	for _, id := range remove {
		removing[id] = struct{}{}
	}
	for _, a := range add {
		if _, both := removing[a.UserID]; both {
			return Patch{}, Validation(fmt.Sprintf("user %d cannot be added and removed in the same request", a.UserID))
		}
	}
	return Patch{Add: add, Remove: remove}, nil
}
