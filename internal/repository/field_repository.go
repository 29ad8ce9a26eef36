package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/pitchdreamers/pitch-booking/internal/model"
)

// FieldRepo provides data access to the fields catalogue.
type FieldRepo struct {
	db *sql.DB
}

// NewFieldRepo returns a new FieldRepo bound to the given database.
func NewFieldRepo(db *sql.DB) *FieldRepo { return &FieldRepo{db: db} }

const fieldColumns = `id, name, type, description, address, location, price_per_hour, images, created_at, updated_at`

func scanField(s rowScanner) (model.Field, error) {
	var (
		f                              model.Field
		description, address, location sql.NullString
	)
	err := s.Scan(&f.ID, &f.Name, &f.Type, &description, &address, &location,
		&f.PricePerHour, &f.Images, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return model.Field{}, err
	}
	f.Description = nullString(description)
	f.Address = nullString(address)
	f.Location = nullString(location)
	return f, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// GetByID returns a field or ErrNotFound.
func (r *FieldRepo) GetByID(ctx context.Context, id uint64) (model.Field, error) {
	f, err := scanField(r.db.QueryRowContext(ctx, `SELECT `+fieldColumns+` FROM fields WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Field{}, ErrNotFound
	}
	return f, err
}

// GetTx reads a field inside the allocator transaction.  A shared lock
// keeps the field from being deleted before the reservation row
// referencing it is written.
func (r *FieldRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Field, error) {
	f, err := scanField(tx.QueryRowContext(ctx, `SELECT `+fieldColumns+` FROM fields WHERE id = ? LOCK IN SHARE MODE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Field{}, ErrNotFound
	}
	return f, err
}

// List returns a page of fields ordered by id, and the total count.
func (r *FieldRepo) List(ctx context.Context, limit, offset int) ([]model.Field, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM fields`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+fieldColumns+` FROM fields ORDER BY id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]model.Field, 0, limit)
	for rows.Next() {
		f, err := scanField(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, f)
	}
	return out, total, rows.Err()
}

// Update applies the set members of patch.  Column names come from a fixed
// list, only values are bound from the request.
func (r *FieldRepo) Update(ctx context.Context, id uint64, patch model.FieldPatch) error {
	var (
		sets []string
		args []any
	)
	if patch.Name.Set {
		sets, args = append(sets, "name = ?"), append(args, patch.Name.Value)
	}
	if patch.Description.Set {
		sets, args = append(sets, "description = ?"), append(args, patch.Description.Value)
	}
	if patch.Address.Set {
		sets, args = append(sets, "address = ?"), append(args, patch.Address.Value)
	}
	if patch.Location.Set {
		sets, args = append(sets, "location = ?"), append(args, patch.Location.Value)
	}
	if patch.PricePerHour.Set {
		sets, args = append(sets, "price_per_hour = ?"), append(args, patch.PricePerHour.Value)
	}
	if patch.Images.Set {
		sets, args = append(sets, "images = ?"), append(args, patch.Images.Value)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	result, err := r.db.ExecContext(ctx, `UPDATE fields SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return err
	}
	return requireRow(result, func() (bool, error) { return r.exists(ctx, id) })
}

func (r *FieldRepo) exists(ctx context.Context, id uint64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM fields WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// requireRow maps an UPDATE that matched nothing to ErrNotFound.  MySQL
// reports zero affected rows for an unchanged row too, so the existence
// check disambiguates.
func requireRow(result sql.Result, exists func() (bool, error)) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	ok, err := exists()
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}
