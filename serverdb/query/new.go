package query

import (
	"github.com/teranos/serveradmin/serverdb/object"
	"github.com/teranos/serveradmin/serverdb/schema"
)

// NewObject returns an uncommitted object of servertype with every stored
// attribute set to its binding default, or unset when there is none.
func (e *Executor) NewObject(servertype string) (*object.Server, error) {
	st, err := e.schema.Servertype(servertype)
	if err != nil {
		return nil, err
	}
	values := map[string]schema.Value{
		schema.AttrHostname:   nil,
		schema.AttrServertype: schema.String(st.ID),
	}
	keys := []string{schema.AttrHostname, schema.AttrServertype}
	if st.IPAddrType.HasAddress() {
		values[schema.AttrInternIP] = nil
		keys = append(keys, schema.AttrInternIP)
	}
	for _, b := range st.Attributes() {
		if !b.Stored() {
			continue
		}
		v := b.Default
		if v == nil {
			v = b.Attribute.Zero()
		}
		values[b.Attribute.ID] = v
		keys = append(keys, b.Attribute.ID)
	}
	return object.New(values, keys), nil
}
