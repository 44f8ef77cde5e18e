// Package commit applies batches of object creations, changes and deletions
// in one transaction. A commit is validated against the state it would
// produce, checked for concurrent edits and only then written; any failure
// leaves the store untouched.
package commit

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/serveradmin/errors"
	"github.com/teranos/serveradmin/logger"
	"github.com/teranos/serveradmin/serverdb/object"
	"github.com/teranos/serveradmin/serverdb/schema"
	"github.com/teranos/serveradmin/serverdb/storage"
)

// Commit is one batch of edits.
type Commit struct {
	Created []*object.Server
	Changed []object.Change
	Deleted []int64
}

// Empty reports whether the batch carries no edits.
func (c Commit) Empty() bool {
	return len(c.Created) == 0 && len(c.Changed) == 0 && len(c.Deleted) == 0
}

// Result is the outcome of an applied commit.
type Result struct {
	CommitID string
	// Created holds the new objects as stored, with their ids.
	Created []*object.Server
	Changed []int64
	Deleted []int64
}

// Options configures a Committer.
type Options struct {
	// AccessControl is consulted before anything is read. Nil allows all.
	AccessControl AccessControl
	Logger        *zap.SugaredLogger
}

// Committer applies commits to one store.
type Committer struct {
	db     *sql.DB
	schema *schema.Schema
	access AccessControl
	log    *zap.SugaredLogger
	now    func() time.Time
}

// NewCommitter creates a Committer.
func NewCommitter(db *sql.DB, sch *schema.Schema, opts Options) *Committer {
	return &Committer{
		db:     db,
		schema: sch,
		access: opts.AccessControl,
		log:    opts.Logger,
		now:    time.Now,
	}
}

// Commit validates and applies batch on behalf of user. Rejections unwrap
// to errors.ErrConstraintViolation, errors.ErrCommitConflict,
// errors.ErrPermissionDenied or one of the schema errors.
func (c *Committer) Commit(ctx context.Context, user string, batch Commit) (*Result, error) {
	start := time.Now()
	if user == "" {
		return nil, errors.NewInvalidRequestError("commit without user")
	}
	if c.access != nil {
		if err := c.access.Authorize(ctx, user, batch); err != nil {
			return nil, err
		}
	}
	if batch.Empty() {
		return &Result{}, nil
	}
	log := logger.FromContext(logger.WithUser(ctx, user), c.log)

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin commit transaction")
	}
	defer tx.Rollback() // Rollback if not committed

	rec := storage.CommitRecord{ID: uuid.NewString(), User: user, At: c.now()}
	if err := storage.InsertCommit(ctx, tx, rec); err != nil {
		return nil, err
	}

	p, err := prepare(ctx, tx, c.schema, batch)
	if err != nil {
		return nil, c.rejected(log, rec, err)
	}
	if err := p.validate(ctx, tx); err != nil {
		return nil, c.rejected(log, rec, err)
	}
	if err := p.checkConflicts(); err != nil {
		return nil, c.rejected(log, rec, err)
	}
	if err := p.apply(ctx, tx, rec.ID); err != nil {
		return nil, c.rejected(log, rec, err)
	}
	if err := p.record(ctx, tx, rec.ID); err != nil {
		return nil, err
	}

	res := &Result{CommitID: rec.ID, Changed: p.changedIDs(), Deleted: p.deletedIDs}
	rec.Created, rec.Changed, rec.Deleted = len(p.created), len(res.Changed), len(res.Deleted)
	if err := storage.FinishCommit(ctx, tx, rec); err != nil {
		return nil, err
	}
	if res.Created, err = storage.LoadServers(ctx, tx, c.schema, p.createdIDs(), nil); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, c.rejected(log, rec, storeError(errors.Wrap(err, "failed to commit transaction"), nil, ""))
	}

	if log != nil {
		log.Infow("commit applied",
			logger.FieldCommitID, rec.ID,
			logger.FieldCreated, rec.Created,
			logger.FieldChanged, rec.Changed,
			logger.FieldDeleted, rec.Deleted,
			logger.FieldDurationMS, time.Since(start).Milliseconds(),
		)
	}
	return res, nil
}

func (c *Committer) rejected(log *zap.SugaredLogger, rec storage.CommitRecord, err error) error {
	if log == nil || !errors.IsRejection(err) {
		return err
	}
	fields := []any{logger.FieldCommitID, rec.ID, logger.FieldError, err.Error()}
	var cv *ConstraintViolation
	if errors.As(err, &cv) {
		fields = append(fields, logger.FieldConstraint, cv.Constraint)
	}
	log.Infow("commit rejected", fields...)
	return err
}
