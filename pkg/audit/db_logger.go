package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/lib/pq"
)

// Store is the read and maintenance side of a persistent audit trail
type Store interface {
	Search(ctx context.Context, filter SearchFilter) ([]*AuditEvent, error)
	Cleanup(ctx context.Context, before time.Time) (int64, error)
}

// DBLogger implements audit logging to PostgreSQL database
type DBLogger struct {
	recorder
	db *sql.DB
}

// NewDBLogger creates a new database-based audit logger
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	logger := &DBLogger{db: db}
	logger.recorder = recorder{log: logger.Log}

	if err := logger.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure audit_logs table: %w", err)
	}

	return logger, nil
}

func (l *DBLogger) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_logs (
		id BIGSERIAL PRIMARY KEY,
		timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
		event_type VARCHAR(100) NOT NULL,
		status VARCHAR(20) NOT NULL,
		user_id BIGINT,
		username VARCHAR(255),
		resource_type VARCHAR(50),
		resource_id VARCHAR(255),
		ip_address VARCHAR(45),
		user_agent TEXT,
		request_id VARCHAR(100),
		method VARCHAR(10),
		path TEXT,
		message TEXT,
		error_message TEXT,
		metadata JSONB,
		changes JSONB,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_audit_logs_timestamp ON audit_logs(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_event_type ON audit_logs(event_type);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_user_id ON audit_logs(user_id);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_resource ON audit_logs(resource_type, resource_id);
	`

	_, err := l.db.Exec(query)
	return err
}

// Log logs an audit event to the database
func (l *DBLogger) Log(ctx context.Context, event *AuditEvent) error {
	var metadataJSON, changesJSON []byte
	var err error

	if len(event.Metadata) > 0 {
		metadataJSON, err = json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	if event.Changes != nil {
		changesJSON, err = json.Marshal(event.Changes)
		if err != nil {
			return fmt.Errorf("failed to marshal changes: %w", err)
		}
	}

	query := `
		INSERT INTO audit_logs (
			timestamp, event_type, status,
			user_id, username,
			resource_type, resource_id,
			ip_address, user_agent, request_id,
			method, path,
			message, error_message, metadata, changes
		) VALUES (
			$1, $2, $3,
			$4, $5,
			$6, $7,
			$8, $9, $10,
			$11, $12,
			$13, $14, $15, $16
		) RETURNING id
	`

	err = l.db.QueryRowContext(ctx, query,
		event.Timestamp, string(event.EventType), string(event.Status),
		event.UserID, event.Username,
		string(event.ResourceType), event.ResourceID,
		event.IPAddress, event.UserAgent, event.RequestID,
		event.Method, event.Path,
		event.Message, event.ErrorMessage, metadataJSON, changesJSON,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	return nil
}

// Search returns events matching filter, newest first
func (l *DBLogger) Search(ctx context.Context, filter SearchFilter) ([]*AuditEvent, error) {
	query := `
		SELECT
			id, timestamp, event_type, status,
			user_id, username,
			resource_type, resource_id,
			ip_address, user_agent, request_id,
			method, path,
			message, error_message, metadata, changes
		FROM audit_logs
		WHERE 1=1
	`

	args := []interface{}{}
	argCount := 1

	if filter.StartTime != nil {
		query += fmt.Sprintf(" AND timestamp >= $%d", argCount)
		args = append(args, *filter.StartTime)
		argCount++
	}

	if filter.EndTime != nil {
		query += fmt.Sprintf(" AND timestamp <= $%d", argCount)
		args = append(args, *filter.EndTime)
		argCount++
	}

	if filter.UserID != nil {
		query += fmt.Sprintf(" AND user_id = $%d", argCount)
		args = append(args, *filter.UserID)
		argCount++
	}

	if len(filter.EventTypes) > 0 {
		query += fmt.Sprintf(" AND event_type = ANY($%d)", argCount)
		eventTypeStrs := make([]string, len(filter.EventTypes))
		for i, et := range filter.EventTypes {
			eventTypeStrs[i] = string(et)
		}
		args = append(args, pq.Array(eventTypeStrs))
		argCount++
	}

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, string(*filter.Status))
		argCount++
	}

	if filter.ResourceType != "" {
		query += fmt.Sprintf(" AND resource_type = $%d", argCount)
		args = append(args, string(filter.ResourceType))
		argCount++
	}

	if filter.ResourceID != "" {
		query += fmt.Sprintf(" AND resource_id = $%d", argCount)
		args = append(args, filter.ResourceID)
		argCount++
	}

	query += " ORDER BY timestamp DESC, id DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, filter.Limit)
		argCount++
	}

	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argCount)
		args = append(args, filter.Offset)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search audit logs: %w", err)
	}
	defer rows.Close()

	events := make([]*AuditEvent, 0)
	for rows.Next() {
		event := &AuditEvent{}

		var (
			userID                                     sql.NullInt64
			username, resourceType, resourceID         sql.NullString
			ipAddress, userAgent, requestID            sql.NullString
			method, path, message, errorMessage        sql.NullString
			metadataJSON, changesJSON                  []byte
		)

		err := rows.Scan(
			&event.ID, &event.Timestamp, &event.EventType, &event.Status,
			&userID, &username,
			&resourceType, &resourceID,
			&ipAddress, &userAgent, &requestID,
			&method, &path,
			&message, &errorMessage, &metadataJSON, &changesJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}

		if userID.Valid {
			id := userID.Int64
			event.UserID = &id
		}
		event.Username = username.String
		event.ResourceType = ResourceType(resourceType.String)
		event.ResourceID = resourceID.String
		event.IPAddress = ipAddress.String
		event.UserAgent = userAgent.String
		event.RequestID = requestID.String
		event.Method = method.String
		event.Path = path.String
		event.Message = message.String
		event.ErrorMessage = errorMessage.String

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &event.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}

		if len(changesJSON) > 0 {
			event.Changes = &ChangeDetails{}
			if err := json.Unmarshal(changesJSON, event.Changes); err != nil {
				return nil, fmt.Errorf("failed to unmarshal changes: %w", err)
			}
		}

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit logs: %w", err)
	}

	return events, nil
}

// Cleanup deletes events older than before and reports how many were removed
func (l *DBLogger) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	result, err := l.db.ExecContext(ctx, "DELETE FROM audit_logs WHERE timestamp < $1", before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete audit logs: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted audit logs: %w", err)
	}
	return n, nil
}

// Close is a no-op; the connection pool is owned by the caller
func (l *DBLogger) Close() error {
	return nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
