package filter

import (
	"strings"

	"github.com/teranos/serveradmin/errors"
	"github.com/teranos/serveradmin/serverdb/schema"
)

// Column selects one representation of a stored value.
type Column int

const (
	// ColText is the canonical text of the value.
	ColText Column = iota
	// ColNumber is the integer value, or unix seconds for dates and datetimes.
	ColNumber
	// ColAddrLo and ColAddrHi bound the address range as AddrKey text.
	ColAddrLo
	ColAddrHi
)

// Target is where the values of one attribute live in the store: a column
// of the server row, attribute rows, or a derived subquery.
type Target interface {
	Attribute() *schema.Attribute
	// Column returns the SQL expression of c inside an Exists condition.
	Column(c Column) string
	// Exists wraps a condition over one value into a predicate that holds
	// when some value of the object satisfies it. It never yields NULL.
	Exists(cond string, args []any) (string, []any)
	// Empty returns a predicate holding when the object has no value.
	Empty() (string, []any)
}

func exists(t Target, cond string, args ...any) (string, []any, error) {
	sql, out := t.Exists(cond, args)
	return sql, out, nil
}

func combine(t Target, op, empty string, filters []Filter) (string, []any, error) {
	if len(filters) == 0 {
		return empty, nil, nil
	}
	parts := make([]string, len(filters))
	var args []any
	for i, f := range filters {
		sql, a, err := f.SQL(t)
		if err != nil {
			return "", nil, err
		}
		parts[i] = "(" + sql + ")"
		args = append(args, a...)
	}
	return strings.Join(parts, " "+op+" "), args, nil
}

// number returns the ColNumber representation of an ordered operand.
func number(v schema.Value) (int64, bool) {
	switch x := v.(type) {
	case schema.Integer:
		return int64(x), true
	case schema.Date:
		return x.Time.Unix(), true
	case schema.DateTime:
		return x.Time.Unix(), true
	}
	return 0, false
}

func rangeKeys(f Filter, v schema.Value) (string, string, error) {
	lo, hi, ok := schema.RangeKeys(v)
	if !ok {
		return "", "", errors.Wrapf(errors.ErrInvalidValue, "%s: operand is not an address or network", f)
	}
	return lo, hi, nil
}

func (f *Equals) SQL(t Target) (string, []any, error) {
	if f.Value == nil {
		return "", nil, errors.Wrap(errors.ErrInvalidValue, "equality against an unset value, use Empty()")
	}
	return exists(t, t.Column(ColText)+" = ?", f.Value.String())
}

func (f *Any) SQL(t Target) (string, []any, error) { return combine(t, "OR", "0", f.Filters) }

func (f *All) SQL(t Target) (string, []any, error) { return combine(t, "AND", "1", f.Filters) }

func (f *Not) SQL(t Target) (string, []any, error) {
	sql, args, err := f.Filter.SQL(t)
	if err != nil {
		return "", nil, err
	}
	return "NOT (" + sql + ")", args, nil
}

func (f *Contains) SQL(t Target) (string, []any, error) {
	if lo, hi, ok := schema.RangeKeys(f.Value); ok {
		return exists(t, t.Column(ColAddrLo)+" <= ? AND "+t.Column(ColAddrHi)+" >= ?", lo, hi)
	}
	return exists(t, "instr("+t.Column(ColText)+", ?) > 0", f.Value.String())
}

func (f *ContainedBy) SQL(t Target) (string, []any, error) {
	lo, hi, err := rangeKeys(f, f.Network)
	if err != nil {
		return "", nil, err
	}
	return exists(t, t.Column(ColAddrLo)+" >= ? AND "+t.Column(ColAddrHi)+" <= ?", lo, hi)
}

// ContainedOnlyBy excludes values inside a network object that lies
// strictly between the value and the given network.
func (f *ContainedOnlyBy) SQL(t Target) (string, []any, error) {
	lo, hi, err := rangeKeys(f, f.Network)
	if err != nil {
		return "", nil, err
	}
	vlo, vhi := t.Column(ColAddrLo), t.Column(ColAddrHi)
	cond := vlo + " >= ? AND " + vhi + " <= ? AND NOT EXISTS (" +
		"SELECT 1 FROM server mid JOIN servertype midt ON midt.servertype_id = mid.servertype_id" +
		" WHERE midt.ip_addr_type = 'network'" +
		" AND mid.intern_ip_lo <= " + vlo + " AND mid.intern_ip_hi >= " + vhi +
		" AND mid.intern_ip_lo >= ? AND mid.intern_ip_hi <= ?" +
		" AND NOT (mid.intern_ip_lo = ? AND mid.intern_ip_hi = ?)" +
		" AND NOT (mid.intern_ip_lo = " + vlo + " AND mid.intern_ip_hi = " + vhi + "))"
	return exists(t, cond, lo, hi, lo, hi, lo, hi)
}

func (f *Overlaps) SQL(t Target) (string, []any, error) {
	lo, hi, err := rangeKeys(f, f.Network)
	if err != nil {
		return "", nil, err
	}
	return exists(t, t.Column(ColAddrLo)+" <= ? AND "+t.Column(ColAddrHi)+" >= ?", hi, lo)
}

func (f *Comparison) SQL(t Target) (string, []any, error) {
	op, ok := operatorSQL[f.Op]
	if !ok {
		return "", nil, errors.Wrapf(errors.ErrInvalidValue, "unknown comparison operator %q", f.Op)
	}
	if n, ok := number(f.Value); ok {
		return exists(t, t.Column(ColNumber)+" "+op+" ?", n)
	}
	if lo, _, ok := schema.RangeKeys(f.Value); ok {
		return exists(t, t.Column(ColAddrLo)+" "+op+" ?", lo)
	}
	if f.Value == nil {
		return "", nil, errors.Wrap(errors.ErrInvalidValue, "comparison against an unset value")
	}
	return exists(t, t.Column(ColText)+" "+op+" ?", f.Value.String())
}

func (f *Regexp) SQL(t Target) (string, []any, error) {
	col := t.Column(ColText)
	return exists(t, col+" IS NOT NULL AND "+col+" REGEXP ?", f.Pattern)
}

func (f *StartsWith) SQL(t Target) (string, []any, error) {
	return exists(t, "instr("+t.Column(ColText)+", ?) = 1", f.Prefix)
}

func (f *Empty) SQL(t Target) (string, []any, error) {
	sql, args := t.Empty()
	return sql, args, nil
}
