package inheritance

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/folio/pkg/apperr"
	"github.com/platinummonkey/folio/pkg/audit"
	"github.com/platinummonkey/folio/pkg/auth"
	"github.com/platinummonkey/folio/pkg/database"
	"github.com/platinummonkey/folio/pkg/folders"
	"github.com/platinummonkey/folio/pkg/grants"
	"github.com/platinummonkey/folio/pkg/groups"
	"github.com/platinummonkey/folio/pkg/observability"
)

const tracerName = "github.com/platinummonkey/folio/pkg/inheritance"

type grantStep func(s *grants.Store, ctx context.Context, groupID, resourceID int64) (bool, error)

// operation binds a propagation direction to its grant mutations
type operation struct {
	name      string
	verb      string
	eventType audit.EventType
	folder    grantStep
	file      grantStep
}

var (
	applyOp = operation{
		name:      "apply",
		verb:      "applied",
		eventType: audit.EventTypeAuthzInheritanceApply,
		folder:    (*grants.Store).EnsureFolderGranted,
		file:      (*grants.Store).EnsureFileGranted,
	}
	removeOp = operation{
		name:      "remove",
		verb:      "removed",
		eventType: audit.EventTypeAuthzInheritanceRemove,
		folder:    (*grants.Store).EnsureFolderRevoked,
		file:      (*grants.Store).EnsureFileRevoked,
	}
)

// Engine propagates group grants over folder subtrees
type Engine struct {
	db      *sql.DB
	metrics *observability.Metrics
	tracer  trace.Tracer
}

// NewEngine creates a propagation engine. metrics may be nil.
func NewEngine(db *sql.DB, metrics *observability.Metrics) *Engine {
	return &Engine{
		db:      db,
		metrics: metrics,
		tracer:  otel.Tracer(tracerName),
	}
}

// Apply grants groupID every folder in the subtree rooted at folderID and
// every file stored in it. Existing grants are kept as they are.
func (e *Engine) Apply(ctx context.Context, actor *auth.User, folderID, groupID int64) (*Result, error) {
	return e.run(ctx, applyOp, actor, folderID, groupID)
}

// Remove revokes groupID from every folder in the subtree rooted at folderID
// and every file stored in it. Missing grants are skipped.
func (e *Engine) Remove(ctx context.Context, actor *auth.User, folderID, groupID int64) (*Result, error) {
	return e.run(ctx, removeOp, actor, folderID, groupID)
}

func (e *Engine) run(ctx context.Context, op operation, actor *auth.User, folderID, groupID int64) (*Result, error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "inheritance."+op.name, trace.WithAttributes(
		attribute.Int64("folio.folder_id", folderID),
		attribute.Int64("folio.group_id", groupID),
	))
	defer span.End()

	result := &Result{RootFolderID: folderID, GroupID: groupID}
	err := database.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		return propagate(ctx, tx, op, result)
	})
	e.observe(op, time.Since(start), result, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.FromContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"operation": op.name,
			"folder_id": folderID,
			"group_id":  groupID,
		}).Warn("inheritance propagation failed")
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("folio.folders", len(result.FolderIDs)),
		attribute.Int("folio.files", len(result.FileIDs)),
		attribute.Int("folio.folders_changed", result.FoldersChanged),
		attribute.Int("folio.files_changed", result.FilesChanged),
	)
	e.audit(ctx, op, actor, result)
	return result, nil
}

// propagate runs the existence checks, the subtree walk and the grant writes
// inside tx
func propagate(ctx context.Context, tx *sql.Tx, op operation, result *Result) error {
	folderStore := folders.NewStore(tx)
	groupStore := groups.NewStore(tx)
	grantStore := grants.NewStore(tx)

	ok, err := folderStore.Exists(ctx, result.RootFolderID)
	if err != nil {
		return err
	}
	if !ok {
		return folders.NotFound(result.RootFolderID)
	}

	ok, err = groupStore.Exists(ctx, result.GroupID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound(apperr.CodeGroupNotFound, "Group not found").WithDetail("group id %d", result.GroupID)
	}

	if result.FolderIDs, err = folderStore.Descendants(ctx, result.RootFolderID); err != nil {
		return err
	}
	if result.FileIDs, err = folderStore.DescendantFiles(ctx, result.FolderIDs); err != nil {
		return err
	}

	for _, id := range result.FolderIDs {
		changed, err := op.folder(grantStore, ctx, result.GroupID, id)
		if err != nil {
			return fmt.Errorf("failed to %s folder %d: %w", op.name, id, err)
		}
		if changed {
			result.FoldersChanged++
		}
	}
	for _, id := range result.FileIDs {
		changed, err := op.file(grantStore, ctx, result.GroupID, id)
		if err != nil {
			return fmt.Errorf("failed to %s file %d: %w", op.name, id, err)
		}
		if changed {
			result.FilesChanged++
		}
	}
	return nil
}

func (e *Engine) observe(op operation, elapsed time.Duration, result *Result, err error) {
	if e.metrics == nil {
		return
	}
	e.metrics.InheritanceOperationsTotal.WithLabelValues(op.name, observability.StatusLabel(err)).Inc()
	e.metrics.InheritanceDuration.WithLabelValues(op.name).Observe(elapsed.Seconds())
	if err == nil {
		e.metrics.InheritanceNodesChanged.WithLabelValues(op.name, "folder").Add(float64(result.FoldersChanged))
		e.metrics.InheritanceNodesChanged.WithLabelValues(op.name, "file").Add(float64(result.FilesChanged))
	}
}

func (e *Engine) audit(ctx context.Context, op operation, actor *auth.User, result *Result) {
	var actorID *int64
	username := ""
	if actor != nil {
		id := actor.ID
		actorID = &id
		username = actor.Username
	}

	message := fmt.Sprintf("user %q %s inheritance for group %d on folder %d and its subfolders and files",
		username, op.verb, result.GroupID, result.RootFolderID)

	observability.FromContext(ctx).WithFields(map[string]interface{}{
		"operation":       op.name,
		"actor":           username,
		"group_id":        result.GroupID,
		"folder_id":       result.RootFolderID,
		"folders":         len(result.FolderIDs),
		"files":           len(result.FileIDs),
		"folders_changed": result.FoldersChanged,
		"files_changed":   result.FilesChanged,
	}).Info(message)

	changes := &audit.ChangeDetails{After: map[string]interface{}{
		"groupId":        result.GroupID,
		"folders":        len(result.FolderIDs),
		"files":          len(result.FileIDs),
		"foldersChanged": result.FoldersChanged,
		"filesChanged":   result.FilesChanged,
	}}
	if err := audit.FromContext(ctx).LogDataMutation(ctx, op.eventType, actorID, audit.ResourceTypeFolder,
		strconv.FormatInt(result.RootFolderID, 10), changes, message); err != nil {
		observability.FromContext(ctx).WithError(err).Warn("failed to write audit event")
	}
}
