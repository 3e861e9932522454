package union

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
)

// Repository provides CRUD operations for unions.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a union repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const selectColumns = `id, slug, name, status, created_at, updated_at`

func scanUnion(row interface{ Scan(...interface{}) error }) (*Union, error) {
	var u Union
	var status string
	if err := row.Scan(&u.ID, &u.Slug, &u.Name, &status, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Status = Status(status)
	return &u, nil
}

// Create adds a new active union.
func (r *Repository) Create(slug, name string) (*Union, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	name = strings.TrimSpace(name)

	if !ValidSlug(slug) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSlug, slug)
	}
	if name == "" {
		return nil, fmt.Errorf("union name is required")
	}

	result, err := r.db.Exec("INSERT INTO unions (slug, name) VALUES (?, ?)", slug, name)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, slug)
		}
		return nil, fmt.Errorf("inserting union: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting insert id: %w", err)
	}

	slog.Info("union created", "slug", slug, "id", id)
	return r.GetByID(id)
}

// GetByID returns a union by ID.
func (r *Repository) GetByID(id int64) (*Union, error) {
	row := r.db.QueryRow(fmt.Sprintf("SELECT %s FROM unions WHERE id = ?", selectColumns), id)
	u, err := scanUnion(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying union %d: %w", id, err)
	}
	return u, nil
}

// GetBySlug returns a union by slug.
func (r *Repository) GetBySlug(slug string) (*Union, error) {
	row := r.db.QueryRow(
		fmt.Sprintf("SELECT %s FROM unions WHERE slug = ?", selectColumns),
		strings.ToLower(slug),
	)
	u, err := scanUnion(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, slug)
	}
	if err != nil {
		return nil, fmt.Errorf("querying union %s: %w", slug, err)
	}
	return u, nil
}

// List returns all unions ordered by slug.
func (r *Repository) List() ([]*Union, error) {
	rows, err := r.db.Query(fmt.Sprintf("SELECT %s FROM unions ORDER BY slug", selectColumns))
	if err != nil {
		return nil, fmt.Errorf("listing unions: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			slog.Warn("closing rows", "err", cerr)
		}
	}()

	var unions []*Union
	for rows.Next() {
		u, err := scanUnion(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning union: %w", err)
		}
		unions = append(unions, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating unions: %w", err)
	}
	return unions, nil
}

// SetStatus activates or deactivates a union.
func (r *Repository) SetStatus(id int64, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("invalid union status: %s", status)
	}

	result, err := r.db.Exec(
		"UPDATE unions SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		string(status), id,
	)
	if err != nil {
		return fmt.Errorf("updating union status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}

	slog.Info("union status changed", "id", id, "status", status)
	return nil
}
