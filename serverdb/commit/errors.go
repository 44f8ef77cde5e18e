package commit

import (
	"fmt"

	"github.com/teranos/serveradmin/db"
	"github.com/teranos/serveradmin/errors"
	"github.com/teranos/serveradmin/serverdb/schema"
)

// Constraint names reported by ConstraintViolation.
const (
	ConstraintRequired  = "required"
	ConstraintReadonly  = "readonly"
	ConstraintRelation  = "relation"
	ConstraintUnique    = "unique"
	ConstraintOverlap   = "overlap"
	ConstraintReference = "reference"
)

// ConstraintViolation rejects a commit because a rule does not hold on the
// state the commit would produce.
type ConstraintViolation struct {
	// ObjectID is zero for objects the commit would create.
	ObjectID   int64
	Hostname   string
	Attribute  string
	Constraint string
	Message    string
}

func (e *ConstraintViolation) Error() string {
	obj := e.Hostname
	if obj == "" {
		obj = fmt.Sprintf("object %d", e.ObjectID)
	}
	if e.Attribute == "" {
		return fmt.Sprintf("%s: %s (%s)", obj, e.Message, e.Constraint)
	}
	return fmt.Sprintf("%s: %s: %s (%s)", obj, e.Attribute, e.Message, e.Constraint)
}

func (e *ConstraintViolation) Unwrap() error { return errors.ErrConstraintViolation }

// Conflict rejects a change whose expected value no longer matches the
// store.
type Conflict struct {
	ObjectID  int64
	Hostname  string
	Attribute string
	Expected  schema.Value
	Actual    schema.Value
}

func (e *Conflict) Error() string {
	return fmt.Sprintf("%s (object %d): %s was changed concurrently: expected %s, found %s",
		e.Hostname, e.ObjectID, e.Attribute, show(e.Expected), show(e.Actual))
}

func (e *Conflict) Unwrap() error { return errors.ErrCommitConflict }

func show(v schema.Value) string {
	if schema.IsEmpty(v) {
		return "nothing"
	}
	return fmt.Sprintf("%q", v.String())
}

// storeError re-surfaces constraint failures raised by the store as
// violations of s, naming attr when the failing statement wrote one.
// Anything else stays a generic failure.
func storeError(err error, s *state, attr string) error {
	if err == nil || !db.IsConstraintError(err) {
		return err
	}
	v := &ConstraintViolation{
		Attribute:  attr,
		Constraint: db.ConstraintName(err),
		Message:    "rejected by the store: " + errors.UnwrapAll(err).Error(),
	}
	if s != nil {
		v.ObjectID = s.id
		v.Hostname = s.hostname()
	}
	return v
}
