package property

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/evcraddock/johap/internal/db"
	"github.com/evcraddock/johap/internal/parcel"
)

// Repository provides CRUD operations for units.
type Repository struct {
	q db.Querier
}

// NewRepository creates a unit repository.
func NewRepository(q db.Querier) *Repository {
	return &Repository{q: q}
}

const insertSQL = `INSERT INTO property_units
	(union_id, pnu, dong, ho, address, land_area, building_area, latitude, longitude, raw_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectColumns = `id, union_id, pnu, dong, ho, address, land_area, building_area, latitude, longitude, raw_json, created_at`

// Insert adds a unit. Dong, ho and address are stored normalized.
func (r *Repository) Insert(u *Unit) (*Unit, error) {
	if !parcel.ValidPNU(u.PNU) {
		return nil, fmt.Errorf("%w: %q", parcel.ErrInvalidPNU, u.PNU)
	}
	address := NormalizeAddress(u.Address)
	if address == "" {
		return nil, fmt.Errorf("address is required")
	}
	raw := string(u.RawJSON)
	if raw == "" {
		raw = "{}"
	}

	result, err := r.q.Exec(insertSQL,
		u.UnionID, u.PNU, NormalizeDong(u.Dong), NormalizeHo(u.Ho), address,
		u.LandArea, u.BuildingArea, u.Latitude, u.Longitude, raw,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, u.Label())
		}
		return nil, fmt.Errorf("inserting unit: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting insert id: %w", err)
	}

	slog.Info("unit added", "union_id", u.UnionID, "unit_id", id, "pnu", u.PNU)
	return r.GetByID(id)
}

// GetByID returns a unit by its ID.
func (r *Repository) GetByID(id int64) (*Unit, error) {
	return r.getOne(fmt.Sprintf("SELECT %s FROM property_units WHERE id = ?", selectColumns), id)
}

// FindByKey returns the union's unit with the given parcel number, dong and ho.
func (r *Repository) FindByKey(unionID int64, pnu, dong, ho string) (*Unit, error) {
	return r.getOne(
		fmt.Sprintf("SELECT %s FROM property_units WHERE union_id = ? AND pnu = ? AND dong = ? AND ho = ?", selectColumns),
		unionID, strings.TrimSpace(pnu), NormalizeDong(dong), NormalizeHo(ho),
	)
}

// FindByAddress returns the union's unit at the given address, dong and ho.
func (r *Repository) FindByAddress(unionID int64, address, dong, ho string) (*Unit, error) {
	return r.getOne(
		fmt.Sprintf(`SELECT %s FROM property_units
			WHERE union_id = ? AND address = ? AND dong = ? AND ho = ?
			ORDER BY id LIMIT 1`, selectColumns),
		unionID, NormalizeAddress(address), NormalizeDong(dong), NormalizeHo(ho),
	)
}

func (r *Repository) getOne(query string, args ...interface{}) (*Unit, error) {
	u, err := scanUnit(r.q.QueryRow(query, args...))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying unit: %w", err)
	}
	return u, nil
}

// List returns a union's units ordered by address, dong and ho.
func (r *Repository) List(unionID int64) ([]*Unit, error) {
	rows, err := r.q.Query(
		fmt.Sprintf("SELECT %s FROM property_units WHERE union_id = ? ORDER BY address, dong, ho", selectColumns),
		unionID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing units: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			slog.Warn("closing rows", "err", cerr)
		}
	}()

	var units []*Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning unit: %w", err)
		}
		units = append(units, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating units: %w", err)
	}
	return units, nil
}

// Delete removes a union's unit. Ownerships and conflicts on it cascade.
func (r *Repository) Delete(unionID, id int64) error {
	result, err := r.q.Exec("DELETE FROM property_units WHERE id = ? AND union_id = ?", id, unionID)
	if err != nil {
		return fmt.Errorf("deleting unit: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	slog.Info("unit deleted", "union_id", unionID, "unit_id", id)
	return nil
}
