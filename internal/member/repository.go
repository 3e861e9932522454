package member

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/evcraddock/johap/internal/db"
)

// Repository stores member profiles and their auth links.
type Repository struct {
	q db.Querier
}

// NewRepository creates a member repository over a database or transaction.
func NewRepository(q db.Querier) *Repository {
	return &Repository{q: q}
}

const selectColumns = `u.id, u.union_id, u.name, u.phone, u.birth_date, u.role, u.user_status,
	u.claimed_pnu, u.claimed_dong, u.claimed_ho, u.claimed_address, u.rejected_reason,
	u.approved_at, u.created_at, u.updated_at`

func scanProfile(row interface{ Scan(...interface{}) error }) (*Profile, error) {
	var p Profile
	var unionID sql.NullInt64
	var role, status string
	var approvedAt sql.NullTime

	err := row.Scan(
		&p.ID, &unionID, &p.Name, &p.Phone, &p.BirthDate, &role, &status,
		&p.Claim.PNU, &p.Claim.Dong, &p.Claim.Ho, &p.Claim.Address, &p.RejectedReason,
		&approvedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if unionID.Valid {
		p.UnionID = &unionID.Int64
	}
	if approvedAt.Valid {
		p.ApprovedAt = &approvedAt.Time
	}
	p.Role = Role(role)
	p.Status = Status(status)
	return &p, nil
}

// Register creates a profile in a union for an auth user and links the two.
// A complete form goes straight to PENDING_APPROVAL.
func (r *Repository) Register(ctx context.Context, authUserID string, unionID int64, in Input) (*Profile, error) {
	in = in.trimmed()

	status := StatusPendingProfile
	if in.Complete() {
		status = StatusPendingApproval
	}
	id := uuid.NewString()

	err := db.Run(ctx, r.q, func(q db.Querier) error {
		tx := &Repository{q: q}
		if _, err := tx.ProfileForAuthUser(authUserID, unionID); err == nil {
			return ErrAlreadyRegistered
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}

		if _, err := q.Exec(`INSERT INTO users
			(id, union_id, name, phone, birth_date, role, user_status,
			 claimed_pnu, claimed_dong, claimed_ho, claimed_address)
			VALUES (?, ?, ?, ?, ?, 'USER', ?, ?, ?, ?, ?)`,
			id, unionID, in.Name, in.Phone, in.BirthDate, string(status),
			in.Claim.PNU, in.Claim.Dong, in.Claim.Ho, in.Claim.Address,
		); err != nil {
			return fmt.Errorf("inserting profile: %w", err)
		}

		if _, err := q.Exec(
			"INSERT INTO user_auth_links (auth_user_id, user_id) VALUES (?, ?)", authUserID, id,
		); err != nil {
			return fmt.Errorf("linking profile: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("member registered", "user_id", id, "union_id", unionID, "status", status)
	return r.GetByID(id)
}

// Resubmit replaces a profile's registration data. A complete form moves the
// profile to PENDING_APPROVAL; an incomplete one is only stored while the
// profile is still PENDING_PROFILE.
func (r *Repository) Resubmit(userID string, in Input) (*Profile, error) {
	in = in.trimmed()

	p, err := r.GetByID(userID)
	if err != nil {
		return nil, err
	}

	next := StatusPendingApproval
	if !in.Complete() {
		if p.Status != StatusPendingProfile {
			return nil, ErrIncompleteProfile
		}
		next = StatusPendingProfile
	} else if !CanTransition(p.Status, next) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, p.Status, next)
	}

	result, err := r.q.Exec(`UPDATE users SET
		name = ?, phone = ?, birth_date = ?,
		claimed_pnu = ?, claimed_dong = ?, claimed_ho = ?, claimed_address = ?,
		user_status = ?, rejected_reason = '', updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND user_status = ?`,
		in.Name, in.Phone, in.BirthDate,
		in.Claim.PNU, in.Claim.Dong, in.Claim.Ho, in.Claim.Address,
		string(next), userID, string(p.Status),
	)
	if err != nil {
		return nil, fmt.Errorf("updating profile: %w", err)
	}
	if err := expectOne(result, ErrInvalidTransition); err != nil {
		return nil, err
	}

	slog.Info("member resubmitted", "user_id", userID, "status", next)
	return r.GetByID(userID)
}

// GetByID returns a profile by ID.
func (r *Repository) GetByID(id string) (*Profile, error) {
	row := r.q.QueryRow(fmt.Sprintf("SELECT %s FROM users u WHERE u.id = ?", selectColumns), id)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying profile %s: %w", id, err)
	}
	return p, nil
}

// ListByUnion returns a union's profiles, oldest first. An empty status
// returns every profile.
func (r *Repository) ListByUnion(unionID int64, status Status) ([]*Profile, error) {
	query := fmt.Sprintf("SELECT %s FROM users u WHERE u.union_id = ?", selectColumns)
	args := []interface{}{unionID}
	if status != "" {
		query += " AND u.user_status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY u.created_at, u.id"

	return r.list(query, args...)
}

// ProfileForAuthUser returns the auth user's profile in a union.
func (r *Repository) ProfileForAuthUser(authUserID string, unionID int64) (*Profile, error) {
	row := r.q.QueryRow(fmt.Sprintf(`SELECT %s FROM users u
		JOIN user_auth_links l ON l.user_id = u.id
		WHERE l.auth_user_id = ? AND u.union_id = ?`, selectColumns),
		authUserID, unionID,
	)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying profile for auth user: %w", err)
	}
	return p, nil
}

// SystemAdminForAuthUser returns the auth user's system admin profile.
func (r *Repository) SystemAdminForAuthUser(authUserID string) (*Profile, error) {
	row := r.q.QueryRow(fmt.Sprintf(`SELECT %s FROM users u
		JOIN user_auth_links l ON l.user_id = u.id
		WHERE l.auth_user_id = ? AND u.role = 'SYSTEM_ADMIN'`, selectColumns),
		authUserID,
	)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying system admin: %w", err)
	}
	return p, nil
}

// EnsureSystemAdmin returns the auth user's system admin profile, creating
// an approved one when missing.
func (r *Repository) EnsureSystemAdmin(ctx context.Context, authUserID, name string) (*Profile, error) {
	if p, err := r.SystemAdminForAuthUser(authUserID); err == nil {
		return p, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	id := uuid.NewString()
	err := db.Run(ctx, r.q, func(q db.Querier) error {
		if _, err := q.Exec(`INSERT INTO users (id, union_id, name, role, user_status, approved_at)
			VALUES (?, NULL, ?, 'SYSTEM_ADMIN', 'APPROVED', CURRENT_TIMESTAMP)`, id, name,
		); err != nil {
			return fmt.Errorf("inserting system admin: %w", err)
		}
		if _, err := q.Exec(
			"INSERT INTO user_auth_links (auth_user_id, user_id) VALUES (?, ?)", authUserID, id,
		); err != nil {
			return fmt.Errorf("linking system admin: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("system admin created", "user_id", id, "auth_user_id", authUserID)
	return r.GetByID(id)
}

// SetRole changes a union profile between ADMIN and USER.
func (r *Repository) SetRole(userID string, role Role) error {
	if role != RoleAdmin && role != RoleUser {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	p, err := r.GetByID(userID)
	if err != nil {
		return err
	}
	if p.Role == RoleSystemAdmin {
		return fmt.Errorf("%w: system admin profiles have no union role", ErrInvalidRole)
	}

	if _, err := r.q.Exec(
		"UPDATE users SET role = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?", string(role), userID,
	); err != nil {
		return fmt.Errorf("updating role: %w", err)
	}

	slog.Info("member role changed", "user_id", userID, "role", role)
	return nil
}

// Approve moves a profile to APPROVED.
func (r *Repository) Approve(userID string) error {
	return r.setStatus(userID, StatusApproved, "")
}

// Reject moves a profile to REJECTED with a reason.
func (r *Repository) Reject(userID, reason string) error {
	if reason == "" {
		return ErrReasonRequired
	}
	return r.setStatus(userID, StatusRejected, reason)
}

func (r *Repository) setStatus(userID string, to Status, reason string) error {
	p, err := r.GetByID(userID)
	if err != nil {
		return err
	}
	if !CanTransition(p.Status, to) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, p.Status, to)
	}

	query := `UPDATE users SET user_status = ?, rejected_reason = ?, updated_at = CURRENT_TIMESTAMP`
	if to == StatusApproved {
		query += ", approved_at = CURRENT_TIMESTAMP"
	}
	query += " WHERE id = ? AND user_status = ?"

	result, err := r.q.Exec(query, string(to), reason, userID, string(p.Status))
	if err != nil {
		return fmt.Errorf("updating status: %w", err)
	}
	if err := expectOne(result, ErrInvalidTransition); err != nil {
		return err
	}

	slog.Info("member status changed", "user_id", userID, "from", p.Status, "to", to)
	return nil
}

// AuthUserIDs returns the auth users linked to a profile.
func (r *Repository) AuthUserIDs(userID string) ([]string, error) {
	rows, err := r.q.Query(
		"SELECT auth_user_id FROM user_auth_links WHERE user_id = ? ORDER BY created_at, auth_user_id", userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing auth links: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			slog.Warn("closing rows", "err", cerr)
		}
	}()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning auth link: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MoveLinks relinks every auth user of one profile to another. Links the
// target already has are kept once. It returns how many links were added.
func (r *Repository) MoveLinks(fromUserID, toUserID string) (int64, error) {
	result, err := r.q.Exec(`INSERT OR IGNORE INTO user_auth_links (auth_user_id, user_id)
		SELECT auth_user_id, ? FROM user_auth_links WHERE user_id = ?`, toUserID, fromUserID,
	)
	if err != nil {
		return 0, fmt.Errorf("copying auth links: %w", err)
	}
	moved, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking affected rows: %w", err)
	}

	if _, err := r.q.Exec("DELETE FROM user_auth_links WHERE user_id = ?", fromUserID); err != nil {
		return 0, fmt.Errorf("removing old auth links: %w", err)
	}
	return moved, nil
}

// Delete removes a profile.
func (r *Repository) Delete(userID string) error {
	result, err := r.q.Exec("DELETE FROM users WHERE id = ?", userID)
	if err != nil {
		return fmt.Errorf("deleting profile: %w", err)
	}
	return expectOne(result, ErrNotFound)
}

func (r *Repository) list(query string, args ...interface{}) ([]*Profile, error) {
	rows, err := r.q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			slog.Warn("closing rows", "err", cerr)
		}
	}()

	var profiles []*Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func expectOne(result sql.Result, ifNone error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return ifNone
	}
	return nil
}
