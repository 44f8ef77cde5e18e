package schema

import (
	"regexp"
)

// Attribute is a globally unique attribute definition.
type Attribute struct {
	ID       string
	Type     AttributeType
	Multi    bool
	Readonly bool
	// Clone marks values copied when an object is cloned.
	Clone bool
	// Regexp validates the canonical text of every value, if set.
	Regexp *regexp.Regexp
	// TargetServertypeID is set for hostname and supernet relations.
	TargetServertypeID string
	// ReversedAttributeID names the forward relation a reverse_hostname mirrors.
	ReversedAttributeID string
	Hovertext           string
	Group               string
	// Special attributes live on the object itself rather than in the
	// attribute table.
	Special bool
}

// Derived reports whether values are computed from other objects.
func (a *Attribute) Derived() bool {
	return a.Type.IsDerived()
}

// Zero is the unset value: an empty Set for multi attributes, nil otherwise.
func (a *Attribute) Zero() Value {
	if a.Multi {
		return Set{}
	}
	return nil
}

// Parse coerces one element of text to the attribute's type and applies
// its regular expression.
func (a *Attribute) Parse(raw string) (Value, error) {
	v, err := Parse(a.Type, raw)
	if err != nil {
		return nil, withAttribute(err, a.ID)
	}
	if err := a.checkRegexp(v); err != nil {
		return nil, err
	}
	return v, nil
}

// Coerce turns v into a well-typed value for this attribute: Raw text is
// parsed, typed values are checked against the attribute type, and multi
// attributes require a Set even for a single element. Unset values pass.
func (a *Attribute) Coerce(v Value) (Value, error) {
	if IsEmpty(v) {
		return a.Zero(), nil
	}

	set, isSet := v.(Set)
	if a.Multi {
		if !isSet {
			return nil, &InvalidValueError{AttributeID: a.ID, Value: v.String(), Reason: "multi attribute requires a collection"}
		}
		out := make([]Value, 0, len(set))
		for _, e := range set {
			ce, err := a.coerceElement(e)
			if err != nil {
				return nil, err
			}
			out = append(out, ce)
		}
		return NewSet(out...), nil
	}
	if isSet {
		return nil, &InvalidValueError{AttributeID: a.ID, Value: v.String(), Reason: "attribute is not multi"}
	}
	return a.coerceElement(v)
}

func (a *Attribute) coerceElement(v Value) (Value, error) {
	if v == nil {
		return nil, &InvalidValueError{AttributeID: a.ID, Reason: "null element"}
	}
	if raw, ok := v.(Raw); ok {
		return a.Parse(string(raw))
	}
	if _, ok := v.(Set); ok {
		return nil, &InvalidValueError{AttributeID: a.ID, Value: v.String(), Reason: "nested collection"}
	}
	if v.Kind() != a.Type.ValueKind() {
		return nil, &InvalidValueError{AttributeID: a.ID, Value: v.String(), Reason: "expected " + string(a.Type) + ", got " + v.Kind().String()}
	}
	// Re-parse the canonical text so type-specific rules (IPv4 vs IPv6,
	// token syntax, hostname syntax) hold for typed values too.
	return a.Parse(v.String())
}

func (a *Attribute) checkRegexp(v Value) error {
	if a.Regexp == nil || v == nil {
		return nil
	}
	if !a.Regexp.MatchString(v.String()) {
		return &InvalidValueError{AttributeID: a.ID, Value: v.String(), Reason: "does not match regexp " + a.Regexp.String()}
	}
	return nil
}

// Servertype is a named object kind with ordered attribute bindings.
type Servertype struct {
	ID          string
	Description string
	IPAddrType  IPAddrType

	bindings []*ServertypeAttribute
	byID     map[string]*ServertypeAttribute
}

// Attributes returns the bindings in position order.
func (st *Servertype) Attributes() []*ServertypeAttribute {
	return st.bindings
}

// Binding returns the binding of attributeID, if any.
func (st *Servertype) Binding(attributeID string) (*ServertypeAttribute, bool) {
	b, ok := st.byID[attributeID]
	return b, ok
}

// ServertypeAttribute binds an Attribute to a Servertype.
type ServertypeAttribute struct {
	Attribute      *Attribute
	Required       bool
	Default        Value
	DefaultVisible bool
	// RelatedVia is set when the value is read through this relation
	// attribute of the same object instead of being stored.
	RelatedVia *Attribute
	Position   int
}

// ReadOnly reports whether the binding rejects direct edits.
func (b *ServertypeAttribute) ReadOnly() bool {
	return b.Attribute.Readonly || b.Attribute.Derived() || b.RelatedVia != nil
}

// Stored reports whether values live in the attribute rows of the object
// itself.
func (b *ServertypeAttribute) Stored() bool {
	return !b.Attribute.Derived() && b.RelatedVia == nil
}
