// Package object is the in-memory working copy of a server object: the
// snapshot as read from the store plus an overlay of pending edits.
package object

import (
	"encoding/json"
	"sort"

	"github.com/teranos/serveradmin/errors"
	"github.com/teranos/serveradmin/serverdb/schema"
)

// Server is one object. The snapshot is never modified; edits go to the
// overlay and Diff reports the difference.
type Server struct {
	objectID int64
	snapshot map[string]schema.Value
	overlay  map[string]schema.Value
	keys     []string
}

// Load wraps values read from the store. keys fixes the attribute order
// reported by Keys.
func Load(objectID int64, values map[string]schema.Value, keys []string) *Server {
	snapshot := make(map[string]schema.Value, len(values)+1)
	for k, v := range values {
		snapshot[k] = v
	}
	snapshot[schema.AttrObjectID] = schema.Integer(objectID)
	return &Server{
		objectID: objectID,
		snapshot: snapshot,
		overlay:  make(map[string]schema.Value),
		keys:     withKeys(keys, values),
	}
}

// New returns an object that does not exist in the store yet. All values
// are pending.
func New(values map[string]schema.Value, keys []string) *Server {
	overlay := make(map[string]schema.Value, len(values))
	for k, v := range values {
		overlay[k] = v
	}
	return &Server{
		snapshot: make(map[string]schema.Value),
		overlay:  overlay,
		keys:     withKeys(keys, values),
	}
}

// withKeys returns keys followed by any value keys it misses.
func withKeys(keys []string, values map[string]schema.Value) []string {
	out := append([]string{}, keys...)
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		seen[k] = true
	}
	var extra []string
	for k := range values {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

// ObjectID is zero for objects not yet created.
func (s *Server) ObjectID() int64 { return s.objectID }

// IsNew reports whether the object has not been created yet.
func (s *Server) IsNew() bool { return s.objectID == 0 }

// Hostname returns the current hostname.
func (s *Server) Hostname() string { return s.text(schema.AttrHostname) }

// Servertype returns the current servertype id.
func (s *Server) Servertype() string { return s.text(schema.AttrServertype) }

func (s *Server) text(attr string) string {
	if v, ok := s.Get(attr); ok && v != nil {
		return v.String()
	}
	return ""
}

// Keys returns the attribute ids in display order.
func (s *Server) Keys() []string {
	return append([]string{}, s.keys...)
}

// Get returns the current value: the pending edit if any, else the value as
// read.
func (s *Server) Get(attr string) (schema.Value, bool) {
	if v, ok := s.overlay[attr]; ok {
		return v, true
	}
	v, ok := s.snapshot[attr]
	return v, ok
}

// Original returns the value as read from the store.
func (s *Server) Original(attr string) (schema.Value, bool) {
	v, ok := s.snapshot[attr]
	return v, ok
}

// Values returns all current values.
func (s *Server) Values() map[string]schema.Value {
	out := make(map[string]schema.Value, len(s.keys))
	for _, k := range s.keys {
		if v, ok := s.Get(k); ok {
			out[k] = v
		}
	}
	return out
}

// Set records a pending value. Setting nil clears the attribute.
func (s *Server) Set(attr string, v schema.Value) error {
	if attr == schema.AttrObjectID {
		return errors.Wrap(errors.ErrInvalidRequest, "object_id cannot be set")
	}
	s.overlay[attr] = v
	s.addKey(attr)
	return nil
}

// Add inserts elements into a multi value.
func (s *Server) Add(attr string, elems ...schema.Value) error {
	cur, err := s.set(attr)
	if err != nil {
		return err
	}
	s.overlay[attr] = schema.NewSet(append(append(schema.Set{}, cur...), elems...)...)
	s.addKey(attr)
	return nil
}

// Remove deletes elements from a multi value.
func (s *Server) Remove(attr string, elems ...schema.Value) error {
	cur, err := s.set(attr)
	if err != nil {
		return err
	}
	drop := schema.NewSet(elems...)
	out := schema.Set{}
	for _, e := range cur {
		if !drop.Contains(e) {
			out = append(out, e)
		}
	}
	s.overlay[attr] = out
	s.addKey(attr)
	return nil
}

func (s *Server) set(attr string) (schema.Set, error) {
	v, _ := s.Get(attr)
	if v == nil {
		return schema.Set{}, nil
	}
	set, ok := v.(schema.Set)
	if !ok {
		return nil, errors.Wrapf(errors.ErrInvalidRequest, "attribute %q is not multi", attr)
	}
	return set, nil
}

func (s *Server) addKey(attr string) {
	for _, k := range s.keys {
		if k == attr {
			return
		}
	}
	s.keys = append(s.keys, attr)
}

// Reset drops all pending edits.
func (s *Server) Reset() {
	s.overlay = make(map[string]schema.Value)
}

// Diff returns the pending changes of a loaded object. ok is false when
// nothing differs from the snapshot.
func (s *Server) Diff() (Change, bool) {
	change := Change{ObjectID: s.objectID, Attributes: make(map[string]AttributeChange)}
	for attr, cur := range s.overlay {
		old := s.snapshot[attr]
		if schema.Equal(old, cur) {
			continue
		}
		change.Attributes[attr] = diffValue(old, cur)
	}
	return change, len(change.Attributes) > 0
}

func diffValue(old, cur schema.Value) AttributeChange {
	oldSet, oldMulti := old.(schema.Set)
	curSet, curMulti := cur.(schema.Set)
	if oldMulti || curMulti {
		return AttributeChange{
			Action: ActionMulti,
			Add:    minus(curSet, oldSet),
			Remove: minus(oldSet, curSet),
		}
	}
	if cur == nil {
		return AttributeChange{Action: ActionDelete, Old: old}
	}
	return AttributeChange{Action: ActionUpdate, Old: old, New: cur}
}

func minus(a, b schema.Set) schema.Set {
	out := schema.Set{}
	for _, e := range a {
		if !b.Contains(e) {
			out = append(out, e)
		}
	}
	return out
}

// Clone returns a new object of the same servertype carrying the special
// and clone-flagged attribute values of src. The caller changes the
// hostname before committing it.
func Clone(src *Server, s *schema.Schema) (*Server, error) {
	st, err := s.Servertype(src.Servertype())
	if err != nil {
		return nil, err
	}
	values := make(map[string]schema.Value)
	var keys []string
	for _, a := range schema.Specials() {
		if a.Clone {
			v, _ := src.Get(a.ID)
			values[a.ID] = v
			keys = append(keys, a.ID)
		}
	}
	if st.IPAddrType.HasAddress() {
		values[schema.AttrInternIP] = nil
		keys = append(keys, schema.AttrInternIP)
	}
	for _, b := range st.Attributes() {
		if !b.Stored() {
			continue
		}
		keys = append(keys, b.Attribute.ID)
		if b.Attribute.Clone {
			v, _ := src.Get(b.Attribute.ID)
			values[b.Attribute.ID] = v
		} else {
			values[b.Attribute.ID] = b.Attribute.Zero()
		}
	}
	return New(values, keys), nil
}

// MarshalJSON encodes the current values keyed by attribute id.
func (s *Server) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.keys))
	for k, v := range s.Values() {
		out[k] = schema.JSONValue(v)
	}
	return json.Marshal(out)
}
