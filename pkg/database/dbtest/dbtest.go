// Package dbtest provides migrated in-memory SQLite databases for tests.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/folio/pkg/database"
)

// New returns an in-memory database with the full schema applied.
//
// Each pooled connection to ":memory:" is a distinct database, so the pool
// is pinned to a single connection.
func New(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	t.Cleanup(func() { db.Close() })

	_, err = database.Migrate(context.Background(), db, database.SQLite)
	require.NoError(t, err)

	return db
}

// MustExec runs a statement and fails the test on error.
func MustExec(t *testing.T, db *sql.DB, query string, args ...interface{}) sql.Result {
	t.Helper()
	res, err := db.Exec(query, args...)
	require.NoError(t, err, query)
	return res
}

// InsertUser inserts a user row and returns its id.
func InsertUser(t *testing.T, db *sql.DB, username, role string, active bool) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(
		`INSERT INTO users (username, fullname, password_hash, role, is_active) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		username, "Test "+username, "x", role, active,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

// InsertGroup inserts a group row and returns its id.
func InsertGroup(t *testing.T, db *sql.DB, name string) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(`INSERT INTO access_groups (name) VALUES ($1) RETURNING id`, name).Scan(&id)
	require.NoError(t, err)
	return id
}

// AddMember links a user to a group.
func AddMember(t *testing.T, db *sql.DB, userID, groupID int64) {
	t.Helper()
	MustExec(t, db, `INSERT INTO user_groups (user_id, group_id) VALUES ($1, $2)`, userID, groupID)
}

// InsertFolder inserts a folder row and returns its id. parentID 0 means root.
func InsertFolder(t *testing.T, db *sql.DB, name string, parentID int64) int64 {
	t.Helper()
	var parent interface{}
	if parentID != 0 {
		parent = parentID
	}
	var id int64
	err := db.QueryRow(
		`INSERT INTO folders (folder_name, parent_id) VALUES ($1, $2) RETURNING id`,
		name, parent,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

// InsertFile inserts a file row in folderID and returns its id.
func InsertFile(t *testing.T, db *sql.DB, documentName string, folderID int64) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(
		`INSERT INTO files (document_name, file_name, type, mime_type, size, folder_id)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		documentName, fmt.Sprintf("%d-%s.pdf", folderID, documentName), "pdf", "application/pdf", 10, folderID,
	).Scan(&id)
	require.NoError(t, err)
	return id
}
