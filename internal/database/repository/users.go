package repository

import (
	"context"
	"database/sql"
)

// UserRepo handles target users.
type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

func (r *UserRepo) Insert(ctx context.Context, u User) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO users(
	 id, email, username, name, password_hash, role, phone, whatsapp,
	 email_verified, is_active, external_ref, created_at, updated_at)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP);
	`,
		u.ID, u.Email, u.Username, u.Name, u.PasswordHash, u.Role, u.Phone, u.Whatsapp,
		u.EmailVerified, u.IsActive, u.ExternalRef, u.CreatedAt)
	return err
}

// Refresh updates the mutable profile fields carried over from the legacy
// record without touching credentials or role.
func (r *UserRepo) Refresh(ctx context.Context, id, name string, phone *string) error {
	_, err := r.db.ExecContext(ctx, `
	UPDATE users SET name = ?, phone = COALESCE(?, phone), whatsapp = COALESCE(?, whatsapp),
	 updated_at = CURRENT_TIMESTAMP WHERE id = ?`, name, phone, phone, id)
	return err
}

func (r *UserRepo) UpdateRole(ctx context.Context, id, role string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET role = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, role, id)
	return err
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := r.db.QueryRowContext(ctx, selectUser+` WHERE email = ? COLLATE NOCASE`, email)
	return scanUserRow(row)
}

func (r *UserRepo) FindByUsername(ctx context.Context, username string) (*User, error) {
	row := r.db.QueryRowContext(ctx, selectUser+` WHERE username = ?`, username)
	return scanUserRow(row)
}

func (r *UserRepo) FindByExternalRef(ctx context.Context, ref string) (*User, error) {
	row := r.db.QueryRowContext(ctx, selectUser+` WHERE external_ref = ?`, ref)
	return scanUserRow(row)
}

func (r *UserRepo) Get(ctx context.Context, id string) (*User, error) {
	row := r.db.QueryRowContext(ctx, selectUser+` WHERE id = ?`, id)
	return scanUserRow(row)
}

func (r *UserRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

const selectUser = `SELECT id, email, username, name, password_hash, role, phone, whatsapp,
 email_verified, is_active, external_ref, created_at, updated_at FROM users`

func scanUserRow(row *sql.Row) (*User, error) {
	var u User
	var phone, whatsapp, ref sql.NullString
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.Name, &u.PasswordHash, &u.Role,
		&phone, &whatsapp, &u.EmailVerified, &u.IsActive, &ref, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if phone.Valid {
		u.Phone = &phone.String
	}
	if whatsapp.Valid {
		u.Whatsapp = &whatsapp.String
	}
	if ref.Valid {
		u.ExternalRef = &ref.String
	}
	return &u, nil
}
