package commit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/teranos/serveradmin/errors"
	"github.com/teranos/serveradmin/serverdb/schema"
	"github.com/teranos/serveradmin/serverdb/storage"
)

// apply writes the plan: deletions first so their hostnames and addresses
// are free, then changes and creations, and finally relation rows, which
// may name objects created by the same commit. Changed hostnames and
// intern_ips are parked before any final value is written, so objects of
// one batch may swap them.
func (p *plan) apply(ctx context.Context, q storage.Queryer, commitID string) error {
	if err := storage.DeleteServers(ctx, q, p.deletedIDs); err != nil {
		return storeError(err, nil, "")
	}
	for _, s := range p.changed {
		if err := p.park(ctx, q, s, commitID); err != nil {
			return err
		}
	}
	for _, s := range p.changed {
		if err := p.applyChanged(ctx, q, s); err != nil {
			return err
		}
	}
	for _, s := range p.created {
		if err := p.insert(ctx, q, s); err != nil {
			return err
		}
	}
	for _, s := range p.touched() {
		if err := p.writeRelations(ctx, q, s); err != nil {
			return storeError(err, s, "")
		}
	}
	return nil
}

// park moves a changed object's hostname to a name no other object can hold
// and clears its intern_ip.
func (p *plan) park(ctx context.Context, q storage.Queryer, s *state, commitID string) error {
	if s.isTouched(schema.AttrHostname) {
		if err := storage.UpdateHostname(ctx, q, s.id, parkedHostname(commitID, s.id)); err != nil {
			return storeError(err, s, schema.AttrHostname)
		}
	}
	if s.isTouched(schema.AttrInternIP) {
		if err := storage.UpdateInternIP(ctx, q, s.id, nil); err != nil {
			return storeError(err, s, schema.AttrInternIP)
		}
	}
	return nil
}

func parkedHostname(commitID string, id int64) string {
	return fmt.Sprintf("parked-%s-%d", commitID, id)
}

func (p *plan) applyChanged(ctx context.Context, q storage.Queryer, s *state) error {
	for _, id := range s.touched {
		var err error
		switch id {
		case schema.AttrHostname:
			err = storage.UpdateHostname(ctx, q, s.id, s.hostname())
		case schema.AttrInternIP:
			err = storage.UpdateInternIP(ctx, q, s.id, s.final[id])
		default:
			err = p.replaceValues(ctx, q, s, id)
		}
		if err != nil {
			return storeError(err, s, id)
		}
	}
	return nil
}

// replaceValues rewrites the rows of a stored, non-relation attribute.
// Multi values only touch the elements that differ.
func (p *plan) replaceValues(ctx context.Context, q storage.Queryer, s *state, id string) error {
	b, ok := s.st.Binding(id)
	if !ok {
		return errors.AssertionFailedf("attribute %s is not bound to %s", id, s.st.ID)
	}
	a := b.Attribute
	if a.Type.IsRelation() {
		return nil
	}

	old, _ := s.current.Get(id)
	if !a.Multi {
		if err := storage.DeleteAttribute(ctx, q, s.id, id); err != nil {
			return err
		}
		if schema.IsEmpty(s.final[id]) {
			return nil
		}
		return storage.InsertAttribute(ctx, q, s.id, id, storage.EncodeValue(s.final[id]))
	}

	oldSet := schema.NewSet(schema.Elements(old)...)
	newSet := schema.NewSet(schema.Elements(s.final[id])...)
	for _, e := range oldSet {
		if !newSet.Contains(e) {
			if err := storage.DeleteAttributeValue(ctx, q, s.id, id, storage.EncodeValue(e)); err != nil {
				return err
			}
		}
	}
	for _, e := range newSet {
		if !oldSet.Contains(e) {
			if err := storage.InsertAttribute(ctx, q, s.id, id, storage.EncodeValue(e)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *plan) insert(ctx context.Context, q storage.Queryer, s *state) error {
	id, err := storage.InsertServer(ctx, q, s.hostname(), s.st.ID, s.final[schema.AttrInternIP])
	if err != nil {
		return storeError(err, s, "")
	}
	s.id = id
	for _, attr := range s.written() {
		b, _ := s.st.Binding(attr)
		if b.Attribute.Type.IsRelation() {
			continue
		}
		for _, e := range schema.Elements(s.final[attr]) {
			if err := storage.InsertAttribute(ctx, q, id, attr, storage.EncodeValue(e)); err != nil {
				return storeError(err, s, attr)
			}
		}
	}
	return nil
}

// writeRelations stores relation values by the id of the object they name
// after the commit.
func (p *plan) writeRelations(ctx context.Context, q storage.Queryer, s *state) error {
	for _, a := range relations(s) {
		if !s.created {
			if err := storage.DeleteAttribute(ctx, q, s.id, a.ID); err != nil {
				return err
			}
		}
		for _, e := range schema.Elements(s.final[a.ID]) {
			target := p.names[e.String()].objectID()
			if err := storage.InsertAttribute(ctx, q, s.id, a.ID, storage.EncodeRelation(target)); err != nil {
				return err
			}
		}
	}
	return nil
}

// record writes the change log of the commit.
func (p *plan) record(ctx context.Context, q storage.Queryer, commitID string) error {
	for _, id := range p.deletedIDs {
		if err := logEntry(ctx, q, commitID, id, storage.LogDelete, p.deleted[id]); err != nil {
			return err
		}
	}
	for _, s := range p.changed {
		if err := logEntry(ctx, q, commitID, s.id, storage.LogChange, s.change); err != nil {
			return err
		}
	}
	for _, s := range p.created {
		values := make(map[string]any, len(s.final)+1)
		for k, v := range s.final {
			values[k] = schema.JSONValue(v)
		}
		values[schema.AttrObjectID] = s.id
		if err := logEntry(ctx, q, commitID, s.id, storage.LogCreate, values); err != nil {
			return err
		}
	}
	return nil
}

func logEntry(ctx context.Context, q storage.Queryer, commitID string, objectID int64, action string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s of object %d", action, objectID)
	}
	return storage.InsertChangeLog(ctx, q, commitID, objectID, action, data)
}
