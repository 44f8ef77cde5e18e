package commit

import (
	"context"
	"fmt"

	"github.com/teranos/serveradmin/serverdb/object"
	"github.com/teranos/serveradmin/serverdb/schema"
	"github.com/teranos/serveradmin/serverdb/storage"
)

// owner is the object a hostname names after the commit.
type owner struct {
	id         int64  // object already in the store
	state      *state // created or changed object of the commit
	servertype string
}

func (o owner) objectID() int64 {
	if o.state != nil {
		return o.state.id
	}
	return o.id
}

// validate checks the rules that must hold on the post-commit state.
// Value types and regular expressions were checked while coercing.
func (p *plan) validate(ctx context.Context, q storage.Queryer) error {
	for _, s := range p.touched() {
		if err := checkRequired(s); err != nil {
			return err
		}
	}
	if err := p.resolveNames(ctx, q); err != nil {
		return err
	}
	for _, s := range p.touched() {
		if err := p.checkRelations(s); err != nil {
			return err
		}
	}
	if err := p.checkAddresses(ctx, q); err != nil {
		return err
	}
	return p.checkReferences(ctx, q)
}

func checkRequired(s *state) error {
	if s.hostname() == "" {
		return s.violation(schema.AttrHostname, ConstraintRequired, "hostname is required")
	}
	if s.st.IPAddrType.HasAddress() && schema.IsEmpty(s.final[schema.AttrInternIP]) {
		return s.violation(schema.AttrInternIP, ConstraintRequired,
			fmt.Sprintf("servertype %s requires an intern_ip", s.st.ID))
	}
	for _, b := range s.st.Attributes() {
		if b.Required && b.Stored() && schema.IsEmpty(s.final[b.Attribute.ID]) {
			return s.violation(b.Attribute.ID, ConstraintRequired, "attribute is required")
		}
	}
	return nil
}

// relations returns the relation attributes of s the commit writes.
func relations(s *state) []*schema.Attribute {
	var out []*schema.Attribute
	for _, id := range s.written() {
		if b, ok := s.st.Binding(id); ok && b.Attribute.Type.IsRelation() {
			out = append(out, b.Attribute)
		}
	}
	return out
}

// resolveNames builds the post-commit hostname index for the hostnames of
// touched objects and the relation values they write, and rejects
// duplicate hostnames.
func (p *plan) resolveNames(ctx context.Context, q storage.Queryer) error {
	p.names = make(map[string]owner)
	var lookup []string
	for _, s := range p.touched() {
		name := s.hostname()
		if prev, dup := p.names[name]; dup {
			return s.violation(schema.AttrHostname, ConstraintUnique,
				fmt.Sprintf("hostname is also used by %s in the same commit", describe(prev)))
		}
		p.names[name] = owner{state: s, servertype: s.st.ID}
		lookup = append(lookup, name)
		for _, a := range relations(s) {
			for _, e := range schema.Elements(s.final[a.ID]) {
				lookup = append(lookup, e.String())
			}
		}
	}

	stored, err := storage.ResolveHostnames(ctx, q, lookup)
	if err != nil {
		return err
	}
	for _, name := range lookup {
		t, ok := stored[name]
		if !ok {
			continue
		}
		if _, gone := p.deleted[t.ID]; gone {
			continue
		}
		if s, ok := p.changedBy[t.ID]; ok && s.hostname() != name {
			continue // renamed by this commit
		}
		prev, claimed := p.names[name]
		if !claimed {
			p.names[name] = owner{id: t.ID, servertype: t.Servertype}
			continue
		}
		if prev.objectID() == t.ID {
			continue
		}
		return prev.state.violation(schema.AttrHostname, ConstraintUnique,
			fmt.Sprintf("hostname is already used by object %d", t.ID))
	}
	return nil
}

func describe(o owner) string {
	if o.state != nil && o.state.id == 0 {
		return "a new object"
	}
	return fmt.Sprintf("object %d", o.objectID())
}

// checkRelations requires every written relation value to name an object
// of the attribute's target servertype.
func (p *plan) checkRelations(s *state) error {
	for _, a := range relations(s) {
		for _, e := range schema.Elements(s.final[a.ID]) {
			o, ok := p.names[e.String()]
			if !ok {
				return s.violation(a.ID, ConstraintRelation, fmt.Sprintf("%s does not exist", e))
			}
			if o.servertype != a.TargetServertypeID {
				return s.violation(a.ID, ConstraintRelation,
					fmt.Sprintf("%s is a %s, not a %s", e, o.servertype, a.TargetServertypeID))
			}
		}
	}
	return nil
}

// checkAddresses rejects intern_ip ranges overlapping another object of the
// same servertype, in the store or in the same commit.
func (p *plan) checkAddresses(ctx context.Context, q storage.Queryer) error {
	var moved []*state
	for _, s := range p.touched() {
		if s.st.IPAddrType.ExemptFromOverlap() || schema.IsEmpty(s.final[schema.AttrInternIP]) {
			continue
		}
		if s.created || s.isTouched(schema.AttrInternIP) {
			moved = append(moved, s)
		}
	}

	for i, s := range moved {
		r, _ := schema.Range(s.final[schema.AttrInternIP])
		for _, o := range moved[:i] {
			or, _ := schema.Range(o.final[schema.AttrInternIP])
			if o.st == s.st && r.Overlaps(or) {
				return s.violation(schema.AttrInternIP, ConstraintOverlap,
					fmt.Sprintf("%s overlaps %s of %s in the same commit", r, or, o.hostname()))
			}
		}
	}

	for _, s := range moved {
		hits, err := storage.OverlappingAddresses(ctx, q, s.st.ID, s.final[schema.AttrInternIP])
		if err != nil {
			return err
		}
		for _, h := range hits {
			if h.ID == s.id {
				continue
			}
			if _, gone := p.deleted[h.ID]; gone {
				continue
			}
			if o, ok := p.changedBy[h.ID]; ok && o.isTouched(schema.AttrInternIP) {
				continue // checked above with its new address
			}
			return s.violation(schema.AttrInternIP, ConstraintOverlap,
				fmt.Sprintf("%s overlaps the intern_ip of %s", s.final[schema.AttrInternIP], h.Hostname))
		}
	}
	return nil
}

// checkReferences rejects deleting an object that a remaining object still
// points at. A changed object rewriting the pointing attribute drops its
// reference.
func (p *plan) checkReferences(ctx context.Context, q storage.Queryer) error {
	if len(p.deletedIDs) == 0 {
		return nil
	}
	refs, err := storage.ReferencesTo(ctx, q, p.deletedIDs)
	if err != nil {
		return err
	}
	for _, r := range refs {
		if s, ok := p.changedBy[r.ObjectID]; ok && s.isTouched(r.AttributeID) {
			continue
		}
		return &ConstraintViolation{
			ObjectID:   r.ObjectID,
			Attribute:  r.AttributeID,
			Constraint: ConstraintReference,
			Message:    fmt.Sprintf("still points at deleted object %s", p.deleted[r.TargetID].Hostname()),
		}
	}
	return nil
}

// checkConflicts rejects edits based on a value that is no longer stored,
// unless the store already holds the edit's result.
func (p *plan) checkConflicts() error {
	for _, s := range p.changed {
		for _, id := range s.change.AttributeIDs() {
			ac := s.change.Attributes[id]
			if ac.Action == object.ActionMulti {
				continue
			}
			stored, _ := s.current.Get(id)
			if schema.Equal(ac.Old, stored) || schema.Equal(ac.New, stored) {
				continue
			}
			return &Conflict{
				ObjectID:  s.id,
				Hostname:  s.current.Hostname(),
				Attribute: id,
				Expected:  ac.Old,
				Actual:    stored,
			}
		}
	}
	return nil
}
