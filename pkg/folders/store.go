package folders

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/platinummonkey/folio/pkg/apperr"
	"github.com/platinummonkey/folio/pkg/database"
)

const folderColumns = `id, folder_name, parent_id, created_at, updated_at`

// Store persists folders
type Store struct {
	db database.Querier
}

// NewStore creates a new folder store
func NewStore(db database.Querier) *Store {
	return &Store{db: db}
}

// WithTx returns a store bound to tx
func (s *Store) WithTx(tx *sql.Tx) *Store {
	return &Store{db: tx}
}

// Create inserts a folder under parentID, or at the root when parentID is nil
func (s *Store) Create(ctx context.Context, name string, parentID *int64) (*Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.BadRequest(apperr.CodeInvalidInput, "folderName is required")
	}

	if parentID != nil {
		ok, err := s.Exists(ctx, *parentID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperr.BadRequest(apperr.CodeParentNotFound, "Parent folder does not exist").
				WithDetail("parent folder id %d", *parentID)
		}
	}

	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO folders (folder_name, parent_id) VALUES ($1, $2) RETURNING id`,
		name, parentArg(parentID),
	).Scan(&id)
	if database.IsUniqueViolation(err) {
		return nil, duplicateName(name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create folder: %w", err)
	}
	return s.Get(ctx, id)
}

// Get returns the folder with id, or FOLDER_NOT_FOUND
func (s *Store) Get(ctx context.Context, id int64) (*Folder, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+folderColumns+` FROM folders WHERE id = $1`, id)
	f, err := scanFolder(row)
	if err == sql.ErrNoRows {
		return nil, NotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get folder: %w", err)
	}
	return f, nil
}

// Exists reports whether a folder with id exists
func (s *Store) Exists(ctx context.Context, id int64) (bool, error) {
	ok, err := database.Exists(ctx, s.db, `SELECT 1 FROM folders WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to check folder: %w", err)
	}
	return ok, nil
}

// List returns folders ordered by name. A nil ids lists every folder;
// otherwise only the given ids are returned.
func (s *Store) List(ctx context.Context, ids []int64) ([]*Folder, error) {
	folders := []*Folder{}

	if ids == nil {
		rows, err := s.db.QueryContext(ctx, `SELECT `+folderColumns+` FROM folders ORDER BY folder_name, id`)
		if err != nil {
			return nil, fmt.Errorf("failed to list folders: %w", err)
		}
		return appendFolders(folders, rows)
	}

	for _, chunk := range database.Chunk(ids, database.MaxInClause) {
		rows, err := s.db.QueryContext(ctx,
			`SELECT `+folderColumns+` FROM folders WHERE id IN (`+database.Placeholders(1, len(chunk))+`)`,
			database.Int64Args(chunk)...)
		if err != nil {
			return nil, fmt.Errorf("failed to list folders: %w", err)
		}
		if folders, err = appendFolders(folders, rows); err != nil {
			return nil, err
		}
	}

	sort.SliceStable(folders, func(i, j int) bool {
		if folders[i].FolderName != folders[j].FolderName {
			return folders[i].FolderName < folders[j].FolderName
		}
		return folders[i].ID < folders[j].ID
	})
	return folders, nil
}

// Rename changes a folder's name. The new name must be unique among siblings.
func (s *Store) Rename(ctx context.Context, id int64, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return apperr.BadRequest(apperr.CodeInvalidInput, "folderName is required")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE folders SET folder_name = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`, name, id)
	if database.IsUniqueViolation(err) {
		return duplicateName(name)
	}
	if err != nil {
		return fmt.Errorf("failed to rename folder: %w", err)
	}
	return requireRow(res, id)
}

// Delete removes a folder. Subfolders, their files and every grant on them
// cascade.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM folders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete folder: %w", err)
	}
	return requireRow(res, id)
}

// Descendants returns folderID and the ids of every folder below it, in
// breadth-first order. Each id appears once.
func (s *Store) Descendants(ctx context.Context, folderID int64) ([]int64, error) {
	seen := map[int64]bool{folderID: true}
	result := []int64{folderID}
	queue := []int64{folderID}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		rows, err := s.db.QueryContext(ctx, `SELECT id FROM folders WHERE parent_id = $1 ORDER BY id`, current)
		if err != nil {
			return nil, fmt.Errorf("failed to list child folders of %d: %w", current, err)
		}
		children, err := database.ScanIDs(rows)
		if err != nil {
			return nil, err
		}

		for _, child := range children {
			if seen[child] {
				continue
			}
			seen[child] = true
			result = append(result, child)
			queue = append(queue, child)
		}
	}
	return result, nil
}

// DescendantFiles returns the ids of every file stored in one of folderIDs
func (s *Store) DescendantFiles(ctx context.Context, folderIDs []int64) ([]int64, error) {
	fileIDs := []int64{}
	for _, chunk := range database.Chunk(folderIDs, database.MaxInClause) {
		rows, err := s.db.QueryContext(ctx,
			`SELECT id FROM files WHERE folder_id IN (`+database.Placeholders(1, len(chunk))+`) ORDER BY id`,
			database.Int64Args(chunk)...)
		if err != nil {
			return nil, fmt.Errorf("failed to list folder files: %w", err)
		}
		ids, err := database.ScanIDs(rows)
		if err != nil {
			return nil, err
		}
		fileIDs = append(fileIDs, ids...)
	}
	return fileIDs, nil
}

// NotFound is the error for a missing folder
func NotFound(id int64) *apperr.Error {
	return apperr.NotFound(apperr.CodeFolderNotFound, "Folder not found").WithDetail("folder id %d", id)
}

func duplicateName(name string) *apperr.Error {
	return apperr.Conflict(apperr.CodeFolderExists, fmt.Sprintf("A folder named %q already exists in this location", name)).
		WithDetail("folder name %s", name)
}

func requireRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return NotFound(id)
	}
	return nil
}

func parentArg(parentID *int64) interface{} {
	if parentID == nil {
		return nil
	}
	return *parentID
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFolder(row rowScanner) (*Folder, error) {
	f := &Folder{}
	var parent sql.NullInt64
	if err := row.Scan(&f.ID, &f.FolderName, &parent, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	if parent.Valid {
		p := parent.Int64
		f.ParentID = &p
	}
	return f, nil
}

func appendFolders(folders []*Folder, rows *sql.Rows) ([]*Folder, error) {
	defer rows.Close()
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan folder: %w", err)
		}
		folders = append(folders, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate folders: %w", err)
	}
	return folders, nil
}
