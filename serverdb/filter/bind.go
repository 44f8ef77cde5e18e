package filter

import (
	"fmt"

	"github.com/teranos/serveradmin/errors"
	"github.com/teranos/serveradmin/serverdb/schema"
)

// Binder supplies the attribute a filter is bound to and coerces scalar
// operands to its element type.
type Binder interface {
	Attribute() *schema.Attribute
	Operand(v schema.Value) (schema.Value, error)
}

// For returns the Binder of attribute a. Operands of intern_ip accept both
// addresses and networks since the servertype is not known while binding.
func For(a *schema.Attribute) Binder {
	return attributeBinder{a}
}

type attributeBinder struct {
	a *schema.Attribute
}

func (b attributeBinder) Attribute() *schema.Attribute { return b.a }

func (b attributeBinder) Operand(v schema.Value) (schema.Value, error) {
	if v == nil {
		return nil, &schema.InvalidValueError{AttributeID: b.a.ID, Reason: "missing operand"}
	}
	if _, ok := v.(schema.Set); ok {
		return nil, &schema.InvalidValueError{AttributeID: b.a.ID, Value: v.String(), Reason: "operand cannot be a collection"}
	}
	if b.a.ID == schema.AttrInternIP {
		return address(b.a, v)
	}
	out, err := schema.Parse(b.a.Type, v.String())
	if err != nil {
		return nil, stamp(err, b.a.ID)
	}
	return out, nil
}

func address(a *schema.Attribute, v schema.Value) (schema.Value, error) {
	if v == nil {
		return nil, &schema.InvalidValueError{AttributeID: a.ID, Reason: "missing operand"}
	}
	out, err := schema.ParseAddressOrNetwork(v.String())
	if err != nil {
		return nil, stamp(err, a.ID)
	}
	return out, nil
}

func stamp(err error, attributeID string) error {
	var ive *schema.InvalidValueError
	if errors.As(err, &ive) && ive.AttributeID == "" {
		ive.AttributeID = attributeID
	}
	return err
}

func invalidOperand(raw, format string, args ...any) error {
	return &schema.InvalidValueError{Value: raw, Reason: fmt.Sprintf(format, args...)}
}

func notApplicable(f Filter, a *schema.Attribute) error {
	return &schema.InvalidValueError{
		AttributeID: a.ID,
		Value:       f.String(),
		Reason:      fmt.Sprintf("filter does not apply to %s attributes", a.Type),
	}
}

func isAddress(a *schema.Attribute) bool {
	return a.Type.IsAddress() || a.ID == schema.AttrInternIP
}

func isText(a *schema.Attribute) bool {
	return a.Type.ValueKind() == schema.KindString || a.Type.ValueKind() == schema.KindHostname
}

func bindAll(b Binder, filters []Filter) ([]Filter, error) {
	out := make([]Filter, len(filters))
	for i, f := range filters {
		bound, err := f.Bind(b)
		if err != nil {
			return nil, err
		}
		out[i] = bound
	}
	return out, nil
}

func (f *Equals) Bind(b Binder) (Filter, error) {
	v, err := b.Operand(f.Value)
	if err != nil {
		return nil, err
	}
	return &Equals{Value: v}, nil
}

func (f *Any) Bind(b Binder) (Filter, error) {
	filters, err := bindAll(b, f.Filters)
	if err != nil {
		return nil, err
	}
	return &Any{Filters: filters}, nil
}

func (f *All) Bind(b Binder) (Filter, error) {
	filters, err := bindAll(b, f.Filters)
	if err != nil {
		return nil, err
	}
	return &All{Filters: filters}, nil
}

func (f *Not) Bind(b Binder) (Filter, error) {
	inner, err := f.Filter.Bind(b)
	if err != nil {
		return nil, err
	}
	return &Not{Filter: inner}, nil
}

func (f *Contains) Bind(b Binder) (Filter, error) {
	a := b.Attribute()
	switch {
	case isAddress(a):
		v, err := address(a, f.Value)
		if err != nil {
			return nil, err
		}
		return &Contains{Value: v}, nil
	case isText(a):
		if f.Value == nil {
			return nil, &schema.InvalidValueError{AttributeID: a.ID, Reason: "missing operand"}
		}
		return &Contains{Value: schema.String(f.Value.String())}, nil
	}
	return nil, notApplicable(f, a)
}

func bindNetwork(f Filter, b Binder, network schema.Value) (schema.Value, error) {
	a := b.Attribute()
	if !isAddress(a) {
		return nil, notApplicable(f, a)
	}
	return address(a, network)
}

func (f *ContainedBy) Bind(b Binder) (Filter, error) {
	v, err := bindNetwork(f, b, f.Network)
	if err != nil {
		return nil, err
	}
	return &ContainedBy{Network: v}, nil
}

func (f *ContainedOnlyBy) Bind(b Binder) (Filter, error) {
	v, err := bindNetwork(f, b, f.Network)
	if err != nil {
		return nil, err
	}
	return &ContainedOnlyBy{Network: v}, nil
}

func (f *Overlaps) Bind(b Binder) (Filter, error) {
	v, err := bindNetwork(f, b, f.Network)
	if err != nil {
		return nil, err
	}
	return &Overlaps{Network: v}, nil
}

func (f *Comparison) Bind(b Binder) (Filter, error) {
	if _, ok := operatorSQL[f.Op]; !ok {
		return nil, invalidOperand(string(f.Op), "unknown comparison operator")
	}
	if !b.Attribute().Type.Ordered() {
		return nil, notApplicable(f, b.Attribute())
	}
	v, err := b.Operand(f.Value)
	if err != nil {
		return nil, err
	}
	return &Comparison{Op: f.Op, Value: v}, nil
}

func (f *Regexp) Bind(b Binder) (Filter, error) {
	out, err := NewRegexp(f.Pattern)
	if err != nil {
		return nil, stamp(err, b.Attribute().ID)
	}
	return out, nil
}

func (f *StartsWith) Bind(Binder) (Filter, error) { return f, nil }

func (f *Empty) Bind(Binder) (Filter, error) { return f, nil }
