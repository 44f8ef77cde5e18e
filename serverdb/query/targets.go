package query

import (
	"fmt"

	"github.com/teranos/serveradmin/serverdb/filter"
	"github.com/teranos/serveradmin/serverdb/schema"
	"github.com/teranos/serveradmin/serverdb/storage"
)

// target is a filter.Target that can also produce a sort key.
type target interface {
	filter.Target
	// order returns a scalar expression sorting objects by this attribute.
	order() (string, []any)
}

// aliases hands out table aliases unique within one statement.
type aliases struct{ n int }

func (a *aliases) next(prefix string) string {
	a.n++
	return fmt.Sprintf("%s%d", prefix, a.n)
}

// specialTarget reads a column of the server row.
type specialTarget struct {
	a   *schema.Attribute
	obj string
}

func (t specialTarget) Attribute() *schema.Attribute { return t.a }

func (t specialTarget) Column(c filter.Column) string {
	switch t.a.ID {
	case schema.AttrObjectID:
		if c == filter.ColText {
			return "CAST(" + t.obj + ".server_id AS TEXT)"
		}
		return t.obj + ".server_id"
	case schema.AttrHostname:
		return t.obj + ".hostname"
	case schema.AttrServertype:
		return t.obj + ".servertype_id"
	}
	switch c {
	case filter.ColAddrLo:
		return t.obj + ".intern_ip_lo"
	case filter.ColAddrHi:
		return t.obj + ".intern_ip_hi"
	case filter.ColNumber:
		return "NULL"
	}
	return t.obj + ".intern_ip"
}

func (t specialTarget) Exists(cond string, args []any) (string, []any) {
	return "COALESCE((" + cond + "), 0)", args
}

func (t specialTarget) Empty() (string, []any) {
	return t.Column(filter.ColText) + " IS NULL", nil
}

func (t specialTarget) order() (string, []any) {
	switch t.a.ID {
	case schema.AttrObjectID:
		return t.obj + ".server_id", nil
	case schema.AttrInternIP:
		return t.obj + ".intern_ip_lo", nil
	}
	return t.Column(filter.ColText), nil
}

// storedTarget reads the server_attribute rows of the object. Relation
// rows are compared by the target's hostname.
type storedTarget struct {
	a   *schema.Attribute
	obj string
	row string // alias of the attribute row inside Exists
	rel string // alias of the joined relation target
}

func newStoredTarget(a *schema.Attribute, obj string, al *aliases) storedTarget {
	return storedTarget{a: a, obj: obj, row: al.next("sa"), rel: al.next("rt")}
}

func (t storedTarget) Attribute() *schema.Attribute { return t.a }

func (t storedTarget) Column(c filter.Column) string {
	switch c {
	case filter.ColNumber:
		return t.row + ".value_number"
	case filter.ColAddrLo:
		return t.row + ".value_ip_lo"
	case filter.ColAddrHi:
		return t.row + ".value_ip_hi"
	}
	if t.a.Type.IsRelation() {
		return t.rel + ".hostname"
	}
	return t.row + ".value"
}

func (t storedTarget) from() string {
	from := "server_attribute " + t.row
	if t.a.Type.IsRelation() {
		from += " LEFT JOIN server " + t.rel + " ON " + t.rel + ".server_id = " + t.row + ".value_server_id"
	}
	return from
}

func (t storedTarget) Exists(cond string, args []any) (string, []any) {
	return "EXISTS (SELECT 1 FROM " + t.from() +
			" WHERE " + t.row + ".server_id = " + t.obj + ".server_id AND " + t.row + ".attribute_id = ?" +
			" AND (" + cond + "))",
		append([]any{t.a.ID}, args...)
}

func (t storedTarget) Empty() (string, []any) {
	return "NOT EXISTS (SELECT 1 FROM server_attribute " + t.row +
			" WHERE " + t.row + ".server_id = " + t.obj + ".server_id AND " + t.row + ".attribute_id = ?)",
		[]any{t.a.ID}
}

func (t storedTarget) order() (string, []any) {
	col := t.Column(filter.ColText)
	switch {
	case t.a.Type.IsAddress():
		col = t.Column(filter.ColAddrLo)
	case t.a.Type == schema.TypeInteger || t.a.Type == schema.TypeDate || t.a.Type == schema.TypeDateTime:
		col = t.Column(filter.ColNumber)
	}
	return "(SELECT MIN(" + col + ") FROM " + t.from() +
			" WHERE " + t.row + ".server_id = " + t.obj + ".server_id AND " + t.row + ".attribute_id = ?)",
		[]any{t.a.ID}
}

// reverseTarget reads the hostnames of the objects whose forward relation
// points at the object.
type reverseTarget struct {
	a   *schema.Attribute
	obj string
	row string
	src string
}

func newReverseTarget(a *schema.Attribute, obj string, al *aliases) reverseTarget {
	return reverseTarget{a: a, obj: obj, row: al.next("rv"), src: al.next("rs")}
}

func (t reverseTarget) Attribute() *schema.Attribute { return t.a }

func (t reverseTarget) Column(c filter.Column) string {
	switch c {
	case filter.ColNumber, filter.ColAddrLo, filter.ColAddrHi:
		return "NULL"
	}
	return t.src + ".hostname"
}

func (t reverseTarget) from() string {
	return "server_attribute " + t.row + " JOIN server " + t.src + " ON " + t.src + ".server_id = " + t.row + ".server_id" +
		" WHERE " + t.row + ".value_server_id = " + t.obj + ".server_id AND " + t.row + ".attribute_id = ?"
}

func (t reverseTarget) Exists(cond string, args []any) (string, []any) {
	return "EXISTS (SELECT 1 FROM " + t.from() + " AND (" + cond + "))",
		append([]any{t.a.ReversedAttributeID}, args...)
}

func (t reverseTarget) Empty() (string, []any) {
	return "NOT EXISTS (SELECT 1 FROM " + t.from() + ")", []any{t.a.ReversedAttributeID}
}

func (t reverseTarget) order() (string, []any) {
	return "(SELECT MIN(" + t.src + ".hostname) FROM " + t.from() + ")", []any{t.a.ReversedAttributeID}
}

// supernetTarget reads the narrowest network object of the target
// servertype containing the object's intern_ip.
type supernetTarget struct {
	a   *schema.Attribute
	obj string
	net string
}

func newSupernetTarget(a *schema.Attribute, obj string, al *aliases) supernetTarget {
	return supernetTarget{a: a, obj: obj, net: al.next("sn")}
}

func (t supernetTarget) Attribute() *schema.Attribute { return t.a }

func (t supernetTarget) Column(c filter.Column) string {
	switch c {
	case filter.ColNumber:
		return "NULL"
	case filter.ColAddrLo:
		return t.net + ".intern_ip_lo"
	case filter.ColAddrHi:
		return t.net + ".intern_ip_hi"
	}
	return t.net + ".hostname"
}

func (t supernetTarget) Exists(cond string, args []any) (string, []any) {
	return "EXISTS (SELECT 1 FROM server " + t.net + " WHERE " + t.net + ".server_id = " +
			storage.NarrowestNetworkSQL(t.obj, "server_id") + " AND (" + cond + "))",
		append([]any{t.a.TargetServertypeID}, args...)
}

func (t supernetTarget) Empty() (string, []any) {
	return storage.NarrowestNetworkSQL(t.obj, "server_id") + " IS NULL", []any{t.a.TargetServertypeID}
}

func (t supernetTarget) order() (string, []any) {
	return storage.NarrowestNetworkSQL(t.obj, "hostname"), []any{t.a.TargetServertypeID}
}

// relatedTarget reads the values of an attribute on the objects reached
// through a relation of the object.
type relatedTarget struct {
	a     *schema.Attribute
	via   *schema.Attribute
	obj   string
	rel   string
	inner target
}

func newRelatedTarget(a, via *schema.Attribute, obj string, al *aliases) relatedTarget {
	rel := al.next("rl")
	var inner target
	if a.Special {
		inner = specialTarget{a: a, obj: rel}
	} else {
		inner = newStoredTarget(a, rel, al)
	}
	return relatedTarget{a: a, via: via, obj: obj, rel: rel, inner: inner}
}

func (t relatedTarget) Attribute() *schema.Attribute { return t.a }

func (t relatedTarget) Column(c filter.Column) string { return t.inner.Column(c) }

// related selects the ids of the objects reached through via.
func (t relatedTarget) related() (string, []any) {
	switch t.via.Type {
	case schema.TypeSupernet:
		return "SELECT " + storage.NarrowestNetworkSQL(t.obj, "server_id"), []any{t.via.TargetServertypeID}
	case schema.TypeReverseHostname:
		return "SELECT r.server_id FROM server_attribute r WHERE r.value_server_id = " + t.obj +
			".server_id AND r.attribute_id = ?", []any{t.via.ReversedAttributeID}
	}
	return "SELECT r.value_server_id FROM server_attribute r WHERE r.server_id = " + t.obj +
		".server_id AND r.attribute_id = ?", []any{t.via.ID}
}

func (t relatedTarget) over(pred string, args []any) (string, []any) {
	set, setArgs := t.related()
	return "SELECT 1 FROM server " + t.rel + " WHERE " + t.rel + ".server_id IN (" + set + ") AND " + pred,
		append(setArgs, args...)
}

func (t relatedTarget) Exists(cond string, args []any) (string, []any) {
	sql, out := t.over(t.inner.Exists(cond, args))
	return "EXISTS (" + sql + ")", out
}

func (t relatedTarget) Empty() (string, []any) {
	empty, args := t.inner.Empty()
	sql, out := t.over("NOT ("+empty+")", args)
	return "NOT EXISTS (" + sql + ")", out
}

func (t relatedTarget) order() (string, []any) {
	key, keyArgs := t.inner.order()
	set, setArgs := t.related()
	return "(SELECT MIN(" + key + ") FROM server " + t.rel + " WHERE " + t.rel + ".server_id IN (" + set + "))",
		append(keyArgs, setArgs...)
}

// nullTarget stands for objects whose servertype does not carry the
// attribute: they have no values.
type nullTarget struct {
	a *schema.Attribute
}

func (t nullTarget) Attribute() *schema.Attribute { return t.a }

func (t nullTarget) Column(filter.Column) string { return "NULL" }

func (t nullTarget) Exists(string, []any) (string, []any) { return "0", nil }

func (t nullTarget) Empty() (string, []any) { return "1", nil }

func (t nullTarget) order() (string, []any) { return "NULL", nil }
