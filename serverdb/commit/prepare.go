package commit

import (
	"context"
	"sort"

	"github.com/teranos/serveradmin/errors"
	"github.com/teranos/serveradmin/serverdb/object"
	"github.com/teranos/serveradmin/serverdb/schema"
	"github.com/teranos/serveradmin/serverdb/storage"
)

// plan is a commit resolved against the store: every touched object with
// its coerced post-commit values.
type plan struct {
	sch        *schema.Schema
	created    []*state
	changed    []*state
	changedBy  map[int64]*state
	deleted    map[int64]*object.Server
	deletedIDs []int64
	// names maps every post-commit hostname the commit relies on to its
	// object. Filled by validate.
	names map[string]owner
}

// state is one created or changed object after the commit.
type state struct {
	id      int64 // zero until a created object is inserted
	st      *schema.Servertype
	created bool
	// current is the object as stored; nil for created objects.
	current *object.Server
	final   map[string]schema.Value
	// touched lists the attributes whose stored value the commit replaces.
	touched []string
	// change is the coerced edit of a changed object.
	change object.Change
}

func (s *state) hostname() string {
	if v := s.final[schema.AttrHostname]; v != nil {
		return v.String()
	}
	return ""
}

func (s *state) violation(attr, constraint, msg string) *ConstraintViolation {
	return &ConstraintViolation{
		ObjectID:   s.id,
		Hostname:   s.hostname(),
		Attribute:  attr,
		Constraint: constraint,
		Message:    msg,
	}
}

func (s *state) isTouched(attr string) bool {
	for _, id := range s.touched {
		if id == attr {
			return true
		}
	}
	return false
}

// written returns the stored attributes apply writes: all of them for
// created objects, the touched ones otherwise.
func (s *state) written() []string {
	if !s.created {
		return s.touched
	}
	var out []string
	for _, b := range s.st.Attributes() {
		if b.Stored() {
			out = append(out, b.Attribute.ID)
		}
	}
	return out
}

func prepare(ctx context.Context, q storage.Queryer, sch *schema.Schema, batch Commit) (*plan, error) {
	p := &plan{
		sch:       sch,
		changedBy: make(map[int64]*state, len(batch.Changed)),
		deleted:   make(map[int64]*object.Server, len(batch.Deleted)),
	}
	if err := p.prepareDeleted(ctx, q, batch.Deleted); err != nil {
		return nil, err
	}
	if err := p.prepareChanged(ctx, q, batch.Changed); err != nil {
		return nil, err
	}
	for i, obj := range batch.Created {
		s, err := p.prepareCreated(obj)
		if err != nil {
			return nil, errors.Wrapf(err, "created object %d", i+1)
		}
		p.created = append(p.created, s)
	}
	return p, nil
}

func (p *plan) prepareDeleted(ctx context.Context, q storage.Queryer, ids []int64) error {
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			p.deletedIDs = append(p.deletedIDs, id)
		}
	}
	if len(p.deletedIDs) == 0 {
		return nil
	}
	servers, err := storage.LoadServers(ctx, q, p.sch, p.deletedIDs, nil)
	if err != nil {
		return err
	}
	for _, s := range servers {
		p.deleted[s.ObjectID()] = s
	}
	for _, id := range p.deletedIDs {
		if _, ok := p.deleted[id]; !ok {
			return errors.NewNotFoundError("object %d does not exist", id)
		}
	}
	return nil
}

func (p *plan) prepareChanged(ctx context.Context, q storage.Queryer, changes []object.Change) error {
	ids := make([]int64, 0, len(changes))
	seen := make(map[int64]bool, len(changes))
	for _, ch := range changes {
		if err := ch.Validate(); err != nil {
			return err
		}
		if seen[ch.ObjectID] {
			return errors.NewInvalidRequestError("object %d is changed twice", ch.ObjectID)
		}
		if _, gone := p.deleted[ch.ObjectID]; gone {
			return errors.NewInvalidRequestError("object %d is both changed and deleted", ch.ObjectID)
		}
		seen[ch.ObjectID] = true
		ids = append(ids, ch.ObjectID)
	}
	if len(ids) == 0 {
		return nil
	}

	servers, err := storage.LoadServers(ctx, q, p.sch, ids, nil)
	if err != nil {
		return err
	}
	current := make(map[int64]*object.Server, len(servers))
	for _, s := range servers {
		current[s.ObjectID()] = s
	}
	for _, ch := range changes {
		cur, ok := current[ch.ObjectID]
		if !ok {
			return errors.NewNotFoundError("object %d does not exist", ch.ObjectID)
		}
		s, err := p.applyChange(cur, ch)
		if err != nil {
			return err
		}
		p.changed = append(p.changed, s)
		p.changedBy[s.id] = s
	}
	return nil
}

// applyChange coerces ch and computes the post-commit values of cur.
func (p *plan) applyChange(cur *object.Server, ch object.Change) (*state, error) {
	st, err := p.sch.Servertype(cur.Servertype())
	if err != nil {
		return nil, err
	}
	s := &state{
		id:      cur.ObjectID(),
		st:      st,
		current: cur,
		final:   cur.Values(),
		change:  object.Change{ObjectID: ch.ObjectID, Attributes: make(map[string]object.AttributeChange, len(ch.Attributes))},
	}
	editable := make(map[string]bool)
	for _, id := range p.sch.Editable(st) {
		editable[id] = true
	}

	for _, id := range ch.AttributeIDs() {
		a, err := p.sch.Resolve(id, []*schema.Servertype{st})
		if err != nil {
			return nil, err
		}
		if !editable[id] {
			return nil, s.violation(id, ConstraintReadonly, "attribute is read-only")
		}
		ac, err := p.coerceChange(st, a, ch.Attributes[id])
		if err != nil {
			return nil, errors.Wrapf(err, "change of %s", cur.Hostname())
		}
		s.change.Attributes[id] = ac

		old := s.final[id]
		next := nextValue(a, old, ac)
		s.final[id] = next
		if !schema.Equal(old, next) {
			s.touched = append(s.touched, id)
		}
	}
	return s, nil
}

func (p *plan) coerceChange(st *schema.Servertype, a *schema.Attribute, ac object.AttributeChange) (object.AttributeChange, error) {
	out := object.AttributeChange{Action: ac.Action}
	var err error
	if ac.Action == object.ActionMulti {
		if !a.Multi {
			return out, &schema.InvalidValueError{AttributeID: a.ID, Reason: "add/remove on a single-valued attribute"}
		}
		if out.Add, err = p.coerceSet(st, a.ID, ac.Add); err != nil {
			return out, err
		}
		out.Remove, err = p.coerceSet(st, a.ID, ac.Remove)
		return out, err
	}
	if out.Old, err = p.sch.Coerce(st, a.ID, ac.Old); err != nil {
		return out, err
	}
	out.New, err = p.sch.Coerce(st, a.ID, ac.New)
	return out, err
}

func (p *plan) coerceSet(st *schema.Servertype, id string, set schema.Set) (schema.Set, error) {
	v, err := p.sch.Coerce(st, id, set)
	if err != nil {
		return nil, err
	}
	out, _ := v.(schema.Set)
	return out, nil
}

func nextValue(a *schema.Attribute, old schema.Value, ac object.AttributeChange) schema.Value {
	switch ac.Action {
	case object.ActionDelete:
		return a.Zero()
	case object.ActionMulti:
		var elems []schema.Value
		for _, e := range schema.Elements(old) {
			if !ac.Remove.Contains(e) {
				elems = append(elems, e)
			}
		}
		return schema.NewSet(append(elems, ac.Add...)...)
	}
	if ac.New == nil {
		return a.Zero()
	}
	return ac.New
}

// initial is the value a created object gets for a binding it omits.
func initial(b *schema.ServertypeAttribute) schema.Value {
	if b.Default != nil {
		return b.Default
	}
	return b.Attribute.Zero()
}

func (p *plan) prepareCreated(obj *object.Server) (*state, error) {
	if obj == nil {
		return nil, errors.NewInvalidRequestError("nil object")
	}
	if !obj.IsNew() {
		return nil, errors.NewInvalidRequestError("object %d already exists", obj.ObjectID())
	}
	values := obj.Values()
	stID := obj.Servertype()
	if stID == "" {
		return nil, &ConstraintViolation{Hostname: obj.Hostname(), Attribute: schema.AttrServertype,
			Constraint: ConstraintRequired, Message: "servertype is required"}
	}
	st, err := p.sch.Servertype(stID)
	if err != nil {
		return nil, err
	}

	s := &state{st: st, created: true, final: map[string]schema.Value{schema.AttrServertype: schema.String(st.ID)}}
	ids := make([]string, 0, len(values))
	for id := range values {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		v := values[id]
		switch id {
		case schema.AttrServertype:
			continue
		case schema.AttrObjectID:
			if !schema.IsEmpty(v) {
				return nil, errors.NewInvalidRequestError("object_id of a new object is assigned by the commit")
			}
			continue
		}
		if _, err := p.sch.Resolve(id, []*schema.Servertype{st}); err != nil {
			return nil, err
		}
		cv, err := p.sch.Coerce(st, id, v)
		if err != nil {
			return nil, err
		}
		if b, ok := st.Binding(id); ok && b.ReadOnly() {
			if !schema.Equal(cv, initial(b)) {
				return nil, s.violation(id, ConstraintReadonly, "read-only attribute differs from its default")
			}
			if !b.Stored() {
				continue
			}
		}
		s.final[id] = cv
	}
	for _, b := range st.Attributes() {
		if _, given := s.final[b.Attribute.ID]; !given && b.Stored() {
			s.final[b.Attribute.ID] = initial(b)
		}
	}
	return s, nil
}

func (p *plan) changedIDs() []int64 {
	out := make([]int64, len(p.changed))
	for i, s := range p.changed {
		out[i] = s.id
	}
	return out
}

func (p *plan) createdIDs() []int64 {
	out := make([]int64, len(p.created))
	for i, s := range p.created {
		out[i] = s.id
	}
	return out
}

// touched returns the created and changed objects.
func (p *plan) touched() []*state {
	return append(append([]*state{}, p.created...), p.changed...)
}
