package users

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platinummonkey/folio/pkg/apperr"
	"github.com/platinummonkey/folio/pkg/auth"
	"github.com/platinummonkey/folio/pkg/database"
)

const userColumns = `id, username, fullname, password_hash, role, is_active, must_change_password, created_at, updated_at`

// Store persists user accounts
type Store struct {
	db database.Querier
}

// NewStore creates a new user store
func NewStore(db database.Querier) *Store {
	return &Store{db: db}
}

// WithTx returns a store bound to tx
func (s *Store) WithTx(tx *sql.Tx) *Store {
	return &Store{db: tx}
}

// CreateInput holds the fields of a new account
type CreateInput struct {
	Username           string
	FullName           string
	PasswordHash       string
	Role               auth.Role
	MustChangePassword bool
}

// Create inserts a user. A taken username is USER_ALREADY_EXISTS.
func (s *Store) Create(ctx context.Context, in CreateInput) (*auth.User, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, fullname, password_hash, role, is_active, must_change_password)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, in.Username, in.FullName, in.PasswordHash, string(in.Role), true, in.MustChangePassword).Scan(&id)
	if database.IsUniqueViolation(err) {
		return nil, apperr.Conflict(apperr.CodeUserExists, "User already exists").WithDetail("username %s", in.Username)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return s.Get(ctx, id)
}

// Get returns the user with id, or USER_NOT_FOUND
func (s *Store) Get(ctx context.Context, id int64) (*auth.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound(apperr.CodeUserNotFound, "User not found").WithDetail("user id %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByUsername returns the user with username, or USER_NOT_FOUND
func (s *Store) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound(apperr.CodeUserNotFound, "User not found").WithDetail("username %s", username)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// Exists reports whether a user with id exists
func (s *Store) Exists(ctx context.Context, id int64) (bool, error) {
	ok, err := database.Exists(ctx, s.db, `SELECT 1 FROM users WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to check user: %w", err)
	}
	return ok, nil
}

// List returns every user ordered by username
func (s *Store) List(ctx context.Context) ([]*auth.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY username, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []*auth.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// Update changes a user's full name and role
func (s *Store) Update(ctx context.Context, id int64, fullName string, role auth.Role) error {
	return s.exec(ctx, id, "update user",
		`UPDATE users SET fullname = $1, role = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $3`,
		fullName, string(role), id)
}

// SetActive enables or disables an account
func (s *Store) SetActive(ctx context.Context, id int64, active bool) error {
	return s.exec(ctx, id, "set user active",
		`UPDATE users SET is_active = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`,
		active, id)
}

// SetPassword replaces the password hash
func (s *Store) SetPassword(ctx context.Context, id int64, hash string, mustChange bool) error {
	return s.exec(ctx, id, "set password",
		`UPDATE users SET password_hash = $1, must_change_password = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $3`,
		hash, mustChange, id)
}

// Delete removes a user. Memberships cascade.
func (s *Store) Delete(ctx context.Context, id int64) error {
	return s.exec(ctx, id, "delete user", `DELETE FROM users WHERE id = $1`, id)
}

func (s *Store) exec(ctx context.Context, id int64, action, query string, args ...interface{}) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", action, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to %s: %w", action, err)
	}
	if n == 0 {
		return apperr.NotFound(apperr.CodeUserNotFound, "User not found").WithDetail("%s: user id %d", action, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*auth.User, error) {
	var user auth.User
	var role string
	err := row.Scan(&user.ID, &user.Username, &user.FullName, &user.PasswordHash, &role,
		&user.IsActive, &user.MustChangePassword, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	user.Role = auth.Role(role)
	return &user, nil
}
