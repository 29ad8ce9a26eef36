// Package booking holds the reservation rules that do not depend on
// storage: the fixed weekend slot grid, the capacity of each field type,
// allocation normalisation and the capacity check itself.  Everything in
// this package is pure so it can be evaluated before any database round
// trip.
package booking

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and storage format of a reservation date.
const DateLayout = "2006-01-02"

// dbTimeLayout matches the DATETIME text the MySQL driver accepts.
const dbTimeLayout = "2006-01-02 15:04:05"

// Window is the time range covered by a slot, expressed as minutes after
// midnight so it can be projected onto any date.
type Window struct {
	Number   int
	StartMin int
	EndMin   int
}

// Label renders the window as "09:00-10:30".
func (w Window) Label() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", w.StartMin/60, w.StartMin%60, w.EndMin/60, w.EndMin%60)
}

// The four windows are global and identical for every field.
var windows = [...]Window{
	{Number: 1, StartMin: 9 * 60, EndMin: 10*60 + 30},
	{Number: 2, StartMin: 10*60 + 30, EndMin: 12 * 60},
	{Number: 3, StartMin: 12 * 60, EndMin: 13*60 + 30},
	{Number: 4, StartMin: 13*60 + 30, EndMin: 15 * 60},
}

// SlotCount is the number of bookable windows per weekend day.
const SlotCount = len(windows)

// Windows returns a copy of the slot grid ordered by slot number.
func Windows() []Window {
	out := make([]Window, len(windows))
	copy(out, windows[:])
	return out
}

// WindowFor returns the window for a slot number in 1..SlotCount.
func WindowFor(slot int) (Window, bool) {
	if slot < 1 || slot > SlotCount {
		return Window{}, false
	}
	return windows[slot-1], true
}

// SlotKey identifies the shared resource that capacity is counted
// against.  Two reservations with equal keys compete for the same places.
type SlotKey struct {
	FieldID uint64
	Date    time.Time // midnight UTC of the reservation day
	Slot    int
}

// DateString formats the key's date with DateLayout.
func (k SlotKey) DateString() string { return k.Date.Format(DateLayout) }

func (k SlotKey) String() string {
	return fmt.Sprintf("field=%d date=%s slot=%d", k.FieldID, k.DateString(), k.Slot)
}

// Bounds returns the legacy start/end timestamps of the slot in the
// DATETIME text format stored in reservations.start_time/end_time.
func (k SlotKey) Bounds() (start, end string) {
	w, _ := WindowFor(k.Slot)
	s := k.Date.Add(time.Duration(w.StartMin) * time.Minute)
	e := k.Date.Add(time.Duration(w.EndMin) * time.Minute)
	return s.Format(dbTimeLayout), e.Format(dbTimeLayout)
}

// ParseDate parses an ISO date and enforces the weekend rule.  Only
// Saturdays and Sundays can be booked.
func ParseDate(raw string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, InvalidSlot(fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", raw))
	}
	if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
		return time.Time{}, InvalidSlot(fmt.Sprintf("%s is a %s; reservations are only allowed on Saturdays and Sundays", d.Format(DateLayout), wd))
	}
	return d, nil
}

// NewSlotKey validates the date and slot number and builds the key.  The
// weekday rule is checked first so a weekday date is rejected whatever
// slot value accompanies it.
func NewSlotKey(fieldID uint64, date string, slot int) (SlotKey, error) {
	d, err := ParseDate(date)
	if err != nil {
		return SlotKey{}, err
	}
	if _, ok := WindowFor(slot); !ok {
		return SlotKey{}, InvalidSlot(fmt.Sprintf("invalid slot %d, expected 1-%d", slot, SlotCount))
	}
	return SlotKey{FieldID: fieldID, Date: d, Slot: slot}, nil
}
