package commit

import (
	"bytes"
	"io"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/teranos/serveradmin/errors"
	"github.com/teranos/serveradmin/serverdb/object"
	"github.com/teranos/serveradmin/serverdb/schema"
)

// batchFile is the document DecodeBatch reads:
//
//	created:
//	  - hostname: web3
//	    servertype: vm
//	    intern_ip: 10.0.1.23
//	    tags: [web]
//	changed:
//	  - object_id: 42
//	    os: {action: update, old: bullseye, new: bookworm}
//	    tags: {action: multi, add: [db], remove: [web]}
//	deleted: [17, 18]
//
// JSON documents of the same shape decode as well.
type batchFile struct {
	Created []map[string]any `yaml:"created"`
	Changed []map[string]any `yaml:"changed"`
	Deleted []int64          `yaml:"deleted"`
}

// DecodeBatch decodes a YAML or JSON batch. Values stay uncoerced Raw text
// until the commit coerces them against the schema.
func DecodeBatch(data []byte) (Commit, error) {
	var f batchFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return Commit{}, errors.Wrap(errors.ErrInvalidRequest, "malformed batch: "+err.Error())
	}

	c := Commit{Deleted: f.Deleted}
	for i, m := range f.Created {
		obj, err := decodeCreated(m)
		if err != nil {
			return Commit{}, errors.Wrapf(err, "created entry %d", i+1)
		}
		c.Created = append(c.Created, obj)
	}
	for i, m := range f.Changed {
		ch, err := decodeChange(m)
		if err != nil {
			return Commit{}, errors.Wrapf(err, "changed entry %d", i+1)
		}
		c.Changed = append(c.Changed, ch)
	}
	return c, nil
}

func decodeCreated(m map[string]any) (*object.Server, error) {
	values := make(map[string]schema.Value, len(m))
	for k, x := range m {
		v, err := schema.FromAny(x)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrInvalidRequest, "%s: %s", k, err)
		}
		values[k] = v
	}
	var keys []string
	for _, id := range schema.SpecialIDs() {
		if _, ok := values[id]; ok {
			keys = append(keys, id)
		}
	}
	return object.New(values, keys), nil
}

func decodeChange(m map[string]any) (object.Change, error) {
	ch := object.Change{Attributes: make(map[string]object.AttributeChange, len(m))}
	raw, ok := m[schema.AttrObjectID]
	if !ok {
		return ch, errors.NewInvalidRequestError("missing object_id")
	}
	idText, err := schema.FromAny(raw)
	if err != nil || idText == nil {
		return ch, errors.NewInvalidRequestError("invalid object_id %v", raw)
	}
	if ch.ObjectID, err = strconv.ParseInt(idText.String(), 10, 64); err != nil {
		return ch, errors.NewInvalidRequestError("invalid object_id %q", idText)
	}

	ids := make([]string, 0, len(m))
	for k := range m {
		if k != schema.AttrObjectID {
			ids = append(ids, k)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		fields, ok := m[id].(map[string]any)
		if !ok {
			return ch, errors.NewInvalidRequestError("%s: expected {action, old, new, add, remove}", id)
		}
		ac, err := decodeAttributeChange(fields)
		if err != nil {
			return ch, errors.Wrapf(err, "%s", id)
		}
		ch.Attributes[id] = ac
	}
	return ch, nil
}

func decodeAttributeChange(fields map[string]any) (object.AttributeChange, error) {
	var ac object.AttributeChange
	for k, x := range fields {
		v, err := schema.FromAny(x)
		if err != nil {
			return ac, errors.Wrapf(errors.ErrInvalidRequest, "%s: %s", k, err)
		}
		switch k {
		case "action":
			if v == nil {
				return ac, errors.NewInvalidRequestError("missing action")
			}
			ac.Action = object.Action(v.String())
		case "old":
			ac.Old = v
		case "new":
			ac.New = v
		case "add", "remove":
			set, ok := v.(schema.Set)
			if v != nil && !ok {
				return ac, errors.NewInvalidRequestError("%s requires a list", k)
			}
			if k == "add" {
				ac.Add = set
			} else {
				ac.Remove = set
			}
		default:
			return ac, errors.NewInvalidRequestError("unknown field %q", k)
		}
	}
	if ac.Action == "" {
		return ac, errors.NewInvalidRequestError("missing action")
	}
	return ac, nil
}
