package grants

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platinummonkey/folio/pkg/apperr"
	"github.com/platinummonkey/folio/pkg/database"
)

// relation is one of the two grant tables
type relation struct {
	name   string
	table  string
	column string
}

var (
	folderRelation = relation{name: "folder", table: "folder_group_permissions", column: "folder_id"}
	fileRelation   = relation{name: "file", table: "file_group_permissions", column: "file_id"}
)

// Store persists folder and file grants
type Store struct {
	db database.Querier
}

// NewStore creates a new grant store
func NewStore(db database.Querier) *Store {
	return &Store{db: db}
}

// WithTx returns a store bound to tx
func (s *Store) WithTx(tx *sql.Tx) *Store {
	return &Store{db: tx}
}

// insert adds a grant and reports whether a row was created
func (s *Store) insert(ctx context.Context, rel relation, resourceID, groupID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO `+rel.table+` (`+rel.column+`, group_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		resourceID, groupID)
	if err != nil {
		return false, fmt.Errorf("failed to grant %s %d to group %d: %w", rel.name, resourceID, groupID, err)
	}
	return changed(res)
}

// delete removes a grant and reports whether a row was removed
func (s *Store) delete(ctx context.Context, rel relation, resourceID, groupID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM `+rel.table+` WHERE `+rel.column+` = $1 AND group_id = $2`,
		resourceID, groupID)
	if err != nil {
		return false, fmt.Errorf("failed to revoke %s %d from group %d: %w", rel.name, resourceID, groupID, err)
	}
	return changed(res)
}

func changed(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// EnsureFolderGranted grants groupID access to folderID. An existing grant is
// left alone; the result reports whether one was added.
func (s *Store) EnsureFolderGranted(ctx context.Context, groupID, folderID int64) (bool, error) {
	return s.insert(ctx, folderRelation, folderID, groupID)
}

// EnsureFolderRevoked removes groupID's grant on folderID if present
func (s *Store) EnsureFolderRevoked(ctx context.Context, groupID, folderID int64) (bool, error) {
	return s.delete(ctx, folderRelation, folderID, groupID)
}

// EnsureFileGranted grants groupID access to fileID if not already granted
func (s *Store) EnsureFileGranted(ctx context.Context, groupID, fileID int64) (bool, error) {
	return s.insert(ctx, fileRelation, fileID, groupID)
}

// EnsureFileRevoked removes groupID's grant on fileID if present
func (s *Store) EnsureFileRevoked(ctx context.Context, groupID, fileID int64) (bool, error) {
	return s.delete(ctx, fileRelation, fileID, groupID)
}

// GrantFolderStrict grants groupID access to folderID. The folder and group
// must exist and the grant must not.
func (s *Store) GrantFolderStrict(ctx context.Context, groupID, folderID int64) error {
	if err := s.RequireFolder(ctx, folderID); err != nil {
		return err
	}
	if err := s.requireGroup(ctx, groupID); err != nil {
		return err
	}

	added, err := s.insert(ctx, folderRelation, folderID, groupID)
	if err != nil {
		return err
	}
	if !added {
		return apperr.Conflict(apperr.CodeGroupHasFolderPermission, "The group already has permission on this folder").
			WithDetail("group %d folder %d", groupID, folderID)
	}
	return nil
}

// GrantFileStrict grants groupID access to fileID. The file and group must
// exist and the grant must not.
func (s *Store) GrantFileStrict(ctx context.Context, groupID, fileID int64) error {
	if err := s.RequireFile(ctx, fileID); err != nil {
		return err
	}
	if err := s.requireGroup(ctx, groupID); err != nil {
		return err
	}

	added, err := s.insert(ctx, fileRelation, fileID, groupID)
	if err != nil {
		return err
	}
	if !added {
		return apperr.Conflict(apperr.CodeGroupHasFilePermission, "The group already has permission on this file").
			WithDetail("group %d file %d", groupID, fileID)
	}
	return nil
}

// RevokeFolderStrict removes groupID's grant on folderID, which must exist
func (s *Store) RevokeFolderStrict(ctx context.Context, groupID, folderID int64) error {
	removed, err := s.delete(ctx, folderRelation, folderID, groupID)
	if err != nil {
		return err
	}
	if !removed {
		return apperr.NotFound(apperr.CodeGroupFolderPermissionNotFound, "The group has no permission on this folder").
			WithDetail("group %d folder %d", groupID, folderID)
	}
	return nil
}

// RevokeFileStrict removes groupID's grant on fileID, which must exist
func (s *Store) RevokeFileStrict(ctx context.Context, groupID, fileID int64) error {
	removed, err := s.delete(ctx, fileRelation, fileID, groupID)
	if err != nil {
		return err
	}
	if !removed {
		return apperr.NotFound(apperr.CodeGroupFilePermissionNotFound, "The group has no permission on this file").
			WithDetail("group %d file %d", groupID, fileID)
	}
	return nil
}

// ListFolderGrants returns the grants on a folder ordered by group name
func (s *Store) ListFolderGrants(ctx context.Context, folderID int64) ([]*FolderGrant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.folder_id, p.group_id, g.name, p.created_at
		FROM folder_group_permissions p
		JOIN access_groups g ON g.id = p.group_id
		WHERE p.folder_id = $1
		ORDER BY g.name
	`, folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list folder grants: %w", err)
	}
	defer rows.Close()

	result := []*FolderGrant{}
	for rows.Next() {
		g := &FolderGrant{}
		if err := rows.Scan(&g.FolderID, &g.GroupID, &g.GroupName, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan folder grant: %w", err)
		}
		result = append(result, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate folder grants: %w", err)
	}
	return result, nil
}

// ListFileGrants returns the grants on a file ordered by group name
func (s *Store) ListFileGrants(ctx context.Context, fileID int64) ([]*FileGrant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.file_id, p.group_id, g.name, p.created_at
		FROM file_group_permissions p
		JOIN access_groups g ON g.id = p.group_id
		WHERE p.file_id = $1
		ORDER BY g.name
	`, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to list file grants: %w", err)
	}
	defer rows.Close()

	result := []*FileGrant{}
	for rows.Next() {
		g := &FileGrant{}
		if err := rows.Scan(&g.FileID, &g.GroupID, &g.GroupName, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan file grant: %w", err)
		}
		result = append(result, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate file grants: %w", err)
	}
	return result, nil
}

// ListGrantsForGroups returns the distinct folder and file ids granted to any
// of groupIDs
func (s *Store) ListGrantsForGroups(ctx context.Context, groupIDs []int64) (folderIDs, fileIDs []int64, err error) {
	folderIDs, err = s.resourcesForGroups(ctx, folderRelation, groupIDs)
	if err != nil {
		return nil, nil, err
	}
	fileIDs, err = s.resourcesForGroups(ctx, fileRelation, groupIDs)
	if err != nil {
		return nil, nil, err
	}
	return folderIDs, fileIDs, nil
}

func (s *Store) resourcesForGroups(ctx context.Context, rel relation, groupIDs []int64) ([]int64, error) {
	seen := make(map[int64]bool)
	ids := []int64{}
	for _, chunk := range database.Chunk(groupIDs, database.MaxInClause) {
		rows, err := s.db.QueryContext(ctx,
			`SELECT DISTINCT `+rel.column+` FROM `+rel.table+` WHERE group_id IN (`+database.Placeholders(1, len(chunk))+`)`,
			database.Int64Args(chunk)...)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s grants for groups: %w", rel.name, err)
		}
		chunkIDs, err := database.ScanIDs(rows)
		if err != nil {
			return nil, err
		}
		for _, id := range chunkIDs {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

// RequireFolder returns FOLDER_NOT_FOUND unless folderID exists
func (s *Store) RequireFolder(ctx context.Context, folderID int64) error {
	return s.requireExists(ctx, `SELECT 1 FROM folders WHERE id = $1`, folderID,
		apperr.CodeFolderNotFound, "Folder not found")
}

// RequireFile returns FILE_NOT_FOUND unless fileID exists
func (s *Store) RequireFile(ctx context.Context, fileID int64) error {
	return s.requireExists(ctx, `SELECT 1 FROM files WHERE id = $1`, fileID,
		apperr.CodeFileNotFound, "File not found")
}

func (s *Store) requireGroup(ctx context.Context, groupID int64) error {
	return s.requireExists(ctx, `SELECT 1 FROM access_groups WHERE id = $1`, groupID,
		apperr.CodeGroupNotFound, "Group not found")
}

func (s *Store) requireExists(ctx context.Context, query string, id int64, code, message string) error {
	ok, err := database.Exists(ctx, s.db, query, id)
	if err != nil {
		return fmt.Errorf("failed to check existence: %w", err)
	}
	if !ok {
		return apperr.NotFound(code, message).WithDetail("id %d", id)
	}
	return nil
}
