package files

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/platinummonkey/folio/pkg/apperr"
	"github.com/platinummonkey/folio/pkg/database"
)

const fileColumns = `id, document_name, file_name, preview_file_name, type, mime_type, size, folder_id, ticket_number, version, created_at, updated_at`

// Store persists file metadata
type Store struct {
	db database.Querier
}

// NewStore creates a new file store
func NewStore(db database.Querier) *Store {
	return &Store{db: db}
}

// WithTx returns a store bound to tx
func (s *Store) WithTx(tx *sql.Tx) *Store {
	return &Store{db: tx}
}

// Create records an uploaded file. The folder must exist and the document
// name must be unique within it.
func (s *Store) Create(ctx context.Context, f *File) (*File, error) {
	ok, err := database.Exists(ctx, s.db, `SELECT 1 FROM folders WHERE id = $1`, f.FolderID)
	if err != nil {
		return nil, fmt.Errorf("failed to check folder: %w", err)
	}
	if !ok {
		return nil, apperr.BadRequest(apperr.CodeFolderNotFound, "The specified folder does not exist").
			WithDetail("folder id %d", f.FolderID)
	}

	var id int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO files (document_name, file_name, preview_file_name, type, mime_type, size, folder_id, ticket_number, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, f.DocumentName, f.FileName, nullString(f.PreviewFileName), string(f.Type), f.MimeType, f.Size,
		f.FolderID, f.TicketNumber, f.Version,
	).Scan(&id)
	if database.IsUniqueViolation(err) {
		return nil, duplicateName(f.DocumentName)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	return s.Get(ctx, id)
}

// Get returns the file with id, or FILE_NOT_FOUND
func (s *Store) Get(ctx context.Context, id int64) (*File, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE id = $1`, id)
	f, err := scanFile(row)
	if err == sql.ErrNoRows {
		return nil, NotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return f, nil
}

// List returns the files matching filter ordered by document name
func (s *Store) List(ctx context.Context, filter Filter) ([]*File, error) {
	var conds []string
	var args []interface{}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		conds = append(conds, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.FolderID != 0 {
		args = append(args, filter.FolderID)
		conds = append(conds, fmt.Sprintf("folder_id = $%d", len(args)))
	}

	files := []*File{}
	if filter.IDs == nil {
		rows, err := s.db.QueryContext(ctx,
			`SELECT `+fileColumns+` FROM files`+where(conds)+` ORDER BY document_name, id`, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to list files: %w", err)
		}
		return appendFiles(files, rows)
	}

	for _, chunk := range database.Chunk(filter.IDs, database.MaxInClause) {
		chunkConds := append(append([]string{}, conds...),
			`id IN (`+database.Placeholders(len(args)+1, len(chunk))+`)`)
		chunkArgs := append(append([]interface{}{}, args...), database.Int64Args(chunk)...)

		rows, err := s.db.QueryContext(ctx, `SELECT `+fileColumns+` FROM files`+where(chunkConds), chunkArgs...)
		if err != nil {
			return nil, fmt.Errorf("failed to list files: %w", err)
		}
		if files, err = appendFiles(files, rows); err != nil {
			return nil, err
		}
	}

	sort.SliceStable(files, func(i, j int) bool {
		if files[i].DocumentName != files[j].DocumentName {
			return files[i].DocumentName < files[j].DocumentName
		}
		return files[i].ID < files[j].ID
	})
	return files, nil
}

// Update changes the editable metadata of a file
func (s *Store) Update(ctx context.Context, id int64, documentName, ticketNumber, version string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE files
		SET document_name = $1, ticket_number = $2, version = $3, updated_at = CURRENT_TIMESTAMP
		WHERE id = $4
	`, documentName, ticketNumber, version, id)
	if database.IsUniqueViolation(err) {
		return duplicateName(documentName)
	}
	if err != nil {
		return fmt.Errorf("failed to update file: %w", err)
	}
	return requireRow(res, id)
}

// Delete removes a file row. Grants on it go with it.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return requireRow(res, id)
}

// BlobKeys returns the payload and preview keys of the given files
func (s *Store) BlobKeys(ctx context.Context, fileIDs []int64) ([]string, error) {
	keys := []string{}
	for _, chunk := range database.Chunk(fileIDs, database.MaxInClause) {
		rows, err := s.db.QueryContext(ctx,
			`SELECT file_name, preview_file_name FROM files WHERE id IN (`+database.Placeholders(1, len(chunk))+`) ORDER BY id`,
			database.Int64Args(chunk)...)
		if err != nil {
			return nil, fmt.Errorf("failed to list blob keys: %w", err)
		}
		if keys, err = appendKeys(keys, rows); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// NotFound is the error for a missing file
func NotFound(id int64) *apperr.Error {
	return apperr.NotFound(apperr.CodeFileNotFound, "File not found").WithDetail("file id %d", id)
}

func duplicateName(name string) *apperr.Error {
	return apperr.Conflict(apperr.CodeFileExists, fmt.Sprintf("A file named %q already exists in this folder", name)).
		WithDetail("document name %s", name)
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

func where(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func nullString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFile(row rowScanner) (*File, error) {
	f := &File{}
	var preview sql.NullString
	var fileType string
	if err := row.Scan(&f.ID, &f.DocumentName, &f.FileName, &preview, &fileType, &f.MimeType, &f.Size,
		&f.FolderID, &f.TicketNumber, &f.Version, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	f.Type = Type(fileType)
	if preview.Valid {
		p := preview.String
		f.PreviewFileName = &p
	}
	return f, nil
}

func appendFiles(files []*File, rows *sql.Rows) ([]*File, error) {
	defer rows.Close()
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate files: %w", err)
	}
	return files, nil
}

func appendKeys(keys []string, rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	for rows.Next() {
		var key string
		var preview sql.NullString
		if err := rows.Scan(&key, &preview); err != nil {
			return nil, fmt.Errorf("failed to scan blob key: %w", err)
		}
		keys = append(keys, key)
		if preview.Valid && preview.String != "" {
			keys = append(keys, preview.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate blob keys: %w", err)
	}
	return keys, nil
}
