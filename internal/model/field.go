package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Field is a bookable pitch as stored in the `fields` table.  Type decides
// the per-slot capacity and never changes after the row is created.
//
// Fields:
//  ID           – primary key identifier.
//  Name         – display name.
//  Type         – futbol7 or futbol11.
//  Description  – optional free text.
//  Address      – optional street address.
//  Location     – optional town/area.
//  PricePerHour – price charged per occupied place.
//  Images       – JSON array of image paths.
type Field struct {
	ID           uint64     `json:"id"`             // fields.id
	Name         string     `json:"name"`           // fields.name
	Type         string     `json:"type"`           // fields.type
	Description  *string    `json:"description"`    // fields.description (nullable)
	Address      *string    `json:"address"`        // fields.address (nullable)
	Location     *string    `json:"location"`       // fields.location (nullable)
	PricePerHour float64    `json:"price_per_hour"` // fields.price_per_hour
	Images       StringList `json:"images"`         // fields.images (JSON)
	CreatedAt    time.Time  `json:"created_at"`     // fields.created_at
	UpdatedAt    time.Time  `json:"updated_at"`     // fields.updated_at
}

// StringList maps a JSON array column onto a Go slice.
type StringList []string

// Scan implements sql.Scanner.  NULL and empty values scan to an empty
// list so responses always carry an array.
func (l *StringList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = StringList{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("StringList: unsupported source %T", src)
	}
	if len(raw) == 0 {
		*l = StringList{}
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	if out == nil {
		out = []string{}
	}
	*l = out
	return nil
}

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// FieldPatch carries the optional columns of a partial field update.  The
// type column is deliberately absent.
type FieldPatch struct {
	Name         Optional[string]     `json:"name"`
	Description  Optional[*string]    `json:"description"`
	Address      Optional[*string]    `json:"address"`
	Location     Optional[*string]    `json:"location"`
	PricePerHour Optional[float64]    `json:"price_per_hour"`
	Images       Optional[StringList] `json:"images"`
}

// Empty reports whether the patch sets nothing.
func (p FieldPatch) Empty() bool {
	return !p.Name.Set && !p.Description.Set && !p.Address.Set && !p.Location.Set &&
		!p.PricePerHour.Set && !p.Images.Set
}
