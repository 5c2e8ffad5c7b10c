package groups

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/platinummonkey/folio/pkg/apperr"
	"github.com/platinummonkey/folio/pkg/database"
)

const (
	minNameLength = 3
	maxNameLength = 50
)

// Store persists groups and memberships
type Store struct {
	db database.Querier
}

// NewStore creates a new group store
func NewStore(db database.Querier) *Store {
	return &Store{db: db}
}

// WithTx returns a store bound to tx
func (s *Store) WithTx(tx *sql.Tx) *Store {
	return &Store{db: tx}
}

// ValidateName trims name and checks its length
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	n := utf8.RuneCountInString(name)
	if n < minNameLength || n > maxNameLength {
		return "", apperr.BadRequest(apperr.CodeInvalidInput, "Group name must be between 3 and 50 characters")
	}
	return name, nil
}

// Create inserts a group. A taken name is GROUP_ALREADY_EXISTS.
func (s *Store) Create(ctx context.Context, name string) (*Group, error) {
	name, err := ValidateName(name)
	if err != nil {
		return nil, err
	}

	var id int64
	err = s.db.QueryRowContext(ctx, `INSERT INTO access_groups (name) VALUES ($1) RETURNING id`, name).Scan(&id)
	if database.IsUniqueViolation(err) {
		return nil, duplicateName(name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}
	return s.Get(ctx, id)
}

// Get returns the group with id, or GROUP_NOT_FOUND
func (s *Store) Get(ctx context.Context, id int64) (*Group, error) {
	g := &Group{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at, updated_at FROM access_groups WHERE id = $1`, id,
	).Scan(&g.ID, &g.Name, &g.CreatedAt, &g.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return g, nil
}

// Exists reports whether a group with id exists
func (s *Store) Exists(ctx context.Context, id int64) (bool, error) {
	ok, err := database.Exists(ctx, s.db, `SELECT 1 FROM access_groups WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to check group: %w", err)
	}
	return ok, nil
}

// List returns every group ordered by name
func (s *Store) List(ctx context.Context) ([]*Group, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at, updated_at FROM access_groups ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	groups := []*Group{}
	for rows.Next() {
		g := &Group{}
		if err := rows.Scan(&g.ID, &g.Name, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate groups: %w", err)
	}
	return groups, nil
}

// Update renames a group
func (s *Store) Update(ctx context.Context, id int64, name string) error {
	name, err := ValidateName(name)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE access_groups SET name = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`, name, id)
	if database.IsUniqueViolation(err) {
		return duplicateName(name)
	}
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}
	return requireRow(res, id)
}

// Delete removes a group. Memberships and grants cascade.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM access_groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	return requireRow(res, id)
}

func requireRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return notFound(id)
	}
	return nil
}

func notFound(id int64) *apperr.Error {
	return apperr.NotFound(apperr.CodeGroupNotFound, "Group not found").WithDetail("group id %d", id)
}

func duplicateName(name string) *apperr.Error {
	return apperr.Conflict(apperr.CodeGroupExists, fmt.Sprintf("A group named %q already exists", name)).WithDetail("group name %s", name)
}
