package groups

import (
	"context"
	"fmt"

	"github.com/platinummonkey/folio/pkg/apperr"
	"github.com/platinummonkey/folio/pkg/database"
)

// AddMember adds a user to a group. Both must exist; an existing membership
// is USER_ALREADY_IN_GROUP.
func (s *Store) AddMember(ctx context.Context, userID, groupID int64) error {
	ok, err := database.Exists(ctx, s.db, `SELECT 1 FROM users WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to check user: %w", err)
	}
	if !ok {
		return apperr.NotFound(apperr.CodeUserNotFound, "User not found").WithDetail("user id %d", userID)
	}

	ok, err = s.Exists(ctx, groupID)
	if err != nil {
		return err
	}
	if !ok {
		return notFound(groupID)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO user_groups (user_id, group_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, userID, groupID)
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperr.Conflict(apperr.CodeUserAlreadyInGrp, "User is already a member of this group").
			WithDetail("user %d group %d", userID, groupID)
	}
	return nil
}

// RemoveMember removes a user from a group. A missing membership is
// USER_NOT_IN_GROUP.
func (s *Store) RemoveMember(ctx context.Context, userID, groupID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM user_groups WHERE user_id = $1 AND group_id = $2`, userID, groupID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperr.BadRequest(apperr.CodeUserNotInGroup, "User is not a member of this group").
			WithDetail("user %d group %d", userID, groupID)
	}
	return nil
}

// ListMembers returns the members of a group ordered by username
func (s *Store) ListMembers(ctx context.Context, groupID int64) ([]*Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ug.user_id, ug.group_id, u.username, u.fullname, ug.added_at
		FROM user_groups ug
		JOIN users u ON u.id = ug.user_id
		WHERE ug.group_id = $1
		ORDER BY u.username
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	members := []*Member{}
	for rows.Next() {
		m := &Member{}
		if err := rows.Scan(&m.UserID, &m.GroupID, &m.Username, &m.FullName, &m.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}
	return members, nil
}

// GroupIDsForUser returns the ids of every group userID belongs to
func (s *Store) GroupIDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT group_id FROM user_groups WHERE user_id = $1 ORDER BY group_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user groups: %w", err)
	}
	return database.ScanIDs(rows)
}
