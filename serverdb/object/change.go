package object

import (
	"encoding/json"
	"sort"

	"github.com/teranos/serveradmin/errors"
	"github.com/teranos/serveradmin/serverdb/schema"
)

// Action is the kind of an attribute change.
type Action string

const (
	// ActionUpdate replaces a single value. Old is the value the editor saw.
	ActionUpdate Action = "update"
	// ActionMulti adds and removes elements of a multi value.
	ActionMulti Action = "multi"
	// ActionDelete clears a single value. Old is the value the editor saw.
	ActionDelete Action = "delete"
)

// AttributeChange is one edit of one attribute.
type AttributeChange struct {
	Action Action
	Old    schema.Value
	New    schema.Value
	Add    schema.Set
	Remove schema.Set
}

// Change is the set of edits of one existing object.
type Change struct {
	ObjectID   int64
	Attributes map[string]AttributeChange
}

// AttributeIDs returns the changed attribute ids in sorted order.
func (c Change) AttributeIDs() []string {
	ids := make([]string, 0, len(c.Attributes))
	for id := range c.Attributes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Validate checks the shape of each attribute change.
func (c Change) Validate() error {
	if c.ObjectID <= 0 {
		return errors.Wrapf(errors.ErrInvalidRequest, "change without object_id")
	}
	for _, id := range c.AttributeIDs() {
		ac := c.Attributes[id]
		switch ac.Action {
		case ActionUpdate, ActionDelete:
			if len(ac.Add) > 0 || len(ac.Remove) > 0 {
				return errors.Wrapf(errors.ErrInvalidRequest, "object %d: %s change of %q carries add/remove", c.ObjectID, ac.Action, id)
			}
			if ac.Action == ActionDelete && ac.New != nil {
				return errors.Wrapf(errors.ErrInvalidRequest, "object %d: delete change of %q carries a new value", c.ObjectID, id)
			}
		case ActionMulti:
			if ac.Old != nil || ac.New != nil {
				return errors.Wrapf(errors.ErrInvalidRequest, "object %d: multi change of %q carries old/new", c.ObjectID, id)
			}
		default:
			return errors.Wrapf(errors.ErrInvalidRequest, "object %d: unknown action %q for %q", c.ObjectID, ac.Action, id)
		}
	}
	return nil
}

// MarshalJSON encodes the change as {"object_id": ..., "<attr>": {"action": ...}}.
func (c Change) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(c.Attributes)+1)
	out["object_id"] = c.ObjectID
	for id, ac := range c.Attributes {
		out[id] = ac
	}
	return json.Marshal(out)
}

func (ac AttributeChange) MarshalJSON() ([]byte, error) {
	out := map[string]any{"action": ac.Action}
	switch ac.Action {
	case ActionMulti:
		out["add"] = schema.JSONValue(nonNil(ac.Add))
		out["remove"] = schema.JSONValue(nonNil(ac.Remove))
	case ActionDelete:
		out["old"] = schema.JSONValue(ac.Old)
	default:
		out["old"] = schema.JSONValue(ac.Old)
		out["new"] = schema.JSONValue(ac.New)
	}
	return json.Marshal(out)
}

func nonNil(s schema.Set) schema.Set {
	if s == nil {
		return schema.Set{}
	}
	return s
}
