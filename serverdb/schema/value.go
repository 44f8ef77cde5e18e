package schema

import (
	"encoding/hex"
	"net/netip"
	"sort"
	"strconv"
	"strings"
	"time"

	"go4.org/netipx"
)

// Kind tags the closed set of value variants.
type Kind int

const (
	KindString Kind = iota + 1
	KindInteger
	KindBoolean
	KindIP
	KindNetwork
	KindDate
	KindDateTime
	KindHostname
	KindSet
	KindRaw
)

var kindNames = map[Kind]string{
	KindString:   "string",
	KindInteger:  "integer",
	KindBoolean:  "boolean",
	KindIP:       "ip",
	KindNetwork:  "network",
	KindDate:     "date",
	KindDateTime: "datetime",
	KindHostname: "hostname",
	KindSet:      "set",
	KindRaw:      "raw",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Value is an attribute value. A nil Value means "not set".
//
// String returns the canonical text form; for every value v accepted by an
// attribute type t, Parse(t, v.String()) yields a value equal to v.
type Value interface {
	Kind() Kind
	String() string
	isValue()
}

type (
	// String is a free text value (types string and set).
	String string
	// Integer is a signed 64-bit value.
	Integer int64
	// Boolean is true or false.
	Boolean bool
	// IP is a single address (types ip and ipv6, and intern_ip of hosts).
	IP struct{ Addr netip.Addr }
	// Network is a CIDR prefix (type inet, and intern_ip of networks).
	Network struct{ Prefix netip.Prefix }
	// Date is a calendar day in UTC.
	Date struct{ Time time.Time }
	// DateTime is an instant in UTC with second precision.
	DateTime struct{ Time time.Time }
	// Hostname is a relation value naming the target object's hostname.
	Hostname string
	// Set holds the values of a multi attribute, sorted and de-duplicated.
	// Build sets with NewSet.
	Set []Value
	// Raw is text that has not been coerced to an attribute type yet, as
	// produced by the query parser and by batch files.
	Raw string
)

func (String) Kind() Kind   { return KindString }
func (Integer) Kind() Kind  { return KindInteger }
func (Boolean) Kind() Kind  { return KindBoolean }
func (IP) Kind() Kind       { return KindIP }
func (Network) Kind() Kind  { return KindNetwork }
func (Date) Kind() Kind     { return KindDate }
func (DateTime) Kind() Kind { return KindDateTime }
func (Hostname) Kind() Kind { return KindHostname }
func (Set) Kind() Kind      { return KindSet }
func (Raw) Kind() Kind      { return KindRaw }

func (String) isValue()   {}
func (Integer) isValue()  {}
func (Boolean) isValue()  {}
func (IP) isValue()       {}
func (Network) isValue()  {}
func (Date) isValue()     {}
func (DateTime) isValue() {}
func (Hostname) isValue() {}
func (Set) isValue()      {}
func (Raw) isValue()      {}

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = time.RFC3339
)

func (v String) String() string   { return string(v) }
func (v Integer) String() string  { return strconv.FormatInt(int64(v), 10) }
func (v Boolean) String() string  { return strconv.FormatBool(bool(v)) }
func (v IP) String() string       { return v.Addr.String() }
func (v Network) String() string  { return v.Prefix.String() }
func (v Date) String() string     { return v.Time.Format(dateLayout) }
func (v DateTime) String() string { return v.Time.Format(dateTimeLayout) }
func (v Hostname) String() string { return string(v) }
func (v Raw) String() string      { return string(v) }

// String joins the elements with spaces.
func (v Set) String() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.String()
	}
	return strings.Join(parts, " ")
}

// NewSet sorts and de-duplicates values. Nil elements are dropped.
func NewSet(values ...Value) Set {
	out := make(Set, 0, len(values))
	for _, v := range values {
		if v != nil {
			out = append(out, v)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })

	deduped := out[:0]
	for i, v := range out {
		if i > 0 && Equal(v, deduped[len(deduped)-1]) {
			continue
		}
		deduped = append(deduped, v)
	}
	return deduped
}

func less(a, b Value) bool {
	if c, ok := Compare(a, b); ok {
		return c < 0
	}
	if a.Kind() != b.Kind() {
		return a.Kind() < b.Kind()
	}
	return a.String() < b.String()
}

// Contains reports whether the set holds v.
func (v Set) Contains(e Value) bool {
	for _, x := range v {
		if Equal(x, e) {
			return true
		}
	}
	return false
}

// IsEmpty reports whether v is unset: nil or an empty set.
func IsEmpty(v Value) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(Set); ok {
		return len(s) == 0
	}
	return false
}

// Equal compares two values by variant and canonical form. Unset values
// (nil and empty sets) are equal to each other.
func Equal(a, b Value) bool {
	if IsEmpty(a) || IsEmpty(b) {
		return IsEmpty(a) && IsEmpty(b)
	}
	if a.Kind() != b.Kind() {
		return false
	}
	if as, ok := a.(Set); ok {
		bs := b.(Set)
		if len(as) != len(bs) {
			return false
		}
		for i := range as {
			if !Equal(as[i], bs[i]) {
				return false
			}
		}
		return true
	}
	if c, ok := Compare(a, b); ok {
		return c == 0
	}
	return a.String() == b.String()
}

// Compare orders two values of the same ordered variant. ok is false when
// the values are not comparable (different variants, booleans, sets).
func Compare(a, b Value) (c int, ok bool) {
	if a == nil || b == nil || a.Kind() != b.Kind() {
		return 0, false
	}
	switch x := a.(type) {
	case Integer:
		y := b.(Integer)
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	case IP:
		return x.Addr.Compare(b.(IP).Addr), true
	case Network:
		y := b.(Network)
		if c := x.Prefix.Addr().Compare(y.Prefix.Addr()); c != 0 {
			return c, true
		}
		return x.Prefix.Bits() - y.Prefix.Bits(), true
	case Date:
		return x.Time.Compare(b.(Date).Time), true
	case DateTime:
		return x.Time.Compare(b.(DateTime).Time), true
	case String, Hostname, Raw:
		return strings.Compare(a.String(), b.String()), true
	}
	return 0, false
}

// Range returns the address range covered by an IP or Network value.
func Range(v Value) (netipx.IPRange, bool) {
	switch x := v.(type) {
	case IP:
		return netipx.IPRangeFrom(x.Addr, x.Addr), true
	case Network:
		return netipx.RangeOfPrefix(x.Prefix), true
	}
	return netipx.IPRange{}, false
}

// AddrKey encodes an address as 32 lowercase hex digits of its 16-byte
// form, so that text order equals numeric order. IPv4 addresses use the
// IPv4-mapped form.
func AddrKey(addr netip.Addr) string {
	b := addr.As16()
	return hex.EncodeToString(b[:])
}

// RangeKeys returns the AddrKey bounds of an IP or Network value.
func RangeKeys(v Value) (lo, hi string, ok bool) {
	r, ok := Range(v)
	if !ok {
		return "", "", false
	}
	return AddrKey(r.From()), AddrKey(r.To()), true
}

// Elements returns the elements of a set, a single value as a one-element
// slice, and nil for unset values.
func Elements(v Value) []Value {
	if v == nil {
		return nil
	}
	if s, ok := v.(Set); ok {
		return s
	}
	return []Value{v}
}
