// Package schema is the attribute type system: attribute definitions,
// servertypes and their bindings, the closed set of value variants and the
// coercion of text into typed values.
package schema

import (
	"regexp"
	"sort"
	"strings"

	"github.com/teranos/serveradmin/errors"
)

// AttributeDef is an attribute row as stored.
type AttributeDef struct {
	ID                  string `yaml:"id"`
	Type                string `yaml:"type"`
	Multi               bool   `yaml:"multi,omitempty"`
	Readonly            bool   `yaml:"readonly,omitempty"`
	Clone               bool   `yaml:"clone,omitempty"`
	Regexp              string `yaml:"regexp,omitempty"`
	TargetServertypeID  string `yaml:"target_servertype,omitempty"`
	ReversedAttributeID string `yaml:"reversed_attribute,omitempty"`
	Hovertext           string `yaml:"hovertext,omitempty"`
	Group               string `yaml:"group,omitempty"`
}

// ServertypeDef is a servertype row as stored.
type ServertypeDef struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description,omitempty"`
	IPAddrType  string `yaml:"ip_addr_type,omitempty"`
}

// BindingDef is a servertype_attribute row as stored. Defaults of multi
// attributes are comma separated.
type BindingDef struct {
	ServertypeID          string  `yaml:"servertype"`
	AttributeID           string  `yaml:"attribute"`
	Required              bool    `yaml:"required,omitempty"`
	Default               *string `yaml:"default,omitempty"`
	DefaultVisible        bool    `yaml:"default_visible,omitempty"`
	RelatedViaAttributeID string  `yaml:"related_via,omitempty"`
	Position              int     `yaml:"position,omitempty"`
}

var identifierPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Schema is an immutable, validated set of attributes and servertypes.
type Schema struct {
	attributes  map[string]*Attribute
	servertypes map[string]*Servertype
}

// New validates the definitions and links them into a Schema.
func New(attrs []AttributeDef, servertypes []ServertypeDef, bindings []BindingDef) (*Schema, error) {
	s := &Schema{
		attributes:  make(map[string]*Attribute, len(attrs)),
		servertypes: make(map[string]*Servertype, len(servertypes)),
	}

	for _, def := range servertypes {
		if !identifierPattern.MatchString(def.ID) {
			return nil, errors.Newf("invalid servertype id %q", def.ID)
		}
		if _, dup := s.servertypes[def.ID]; dup {
			return nil, errors.Newf("duplicate servertype %q", def.ID)
		}
		ipType, err := ParseIPAddrType(def.IPAddrType)
		if err != nil {
			return nil, errors.Wrapf(err, "servertype %q", def.ID)
		}
		s.servertypes[def.ID] = &Servertype{
			ID:          def.ID,
			Description: def.Description,
			IPAddrType:  ipType,
			byID:        make(map[string]*ServertypeAttribute),
		}
	}

	for _, def := range attrs {
		a, err := s.newAttribute(def)
		if err != nil {
			return nil, errors.Wrapf(err, "attribute %q", def.ID)
		}
		s.attributes[a.ID] = a
	}
	for _, a := range s.attributes {
		if err := s.checkAttribute(a); err != nil {
			return nil, errors.Wrapf(err, "attribute %q", a.ID)
		}
	}

	for _, def := range bindings {
		if err := s.bind(def); err != nil {
			return nil, errors.Wrapf(err, "binding %s.%s", def.ServertypeID, def.AttributeID)
		}
	}
	for _, st := range s.servertypes {
		sort.SliceStable(st.bindings, func(i, j int) bool {
			if st.bindings[i].Position != st.bindings[j].Position {
				return st.bindings[i].Position < st.bindings[j].Position
			}
			return st.bindings[i].Attribute.ID < st.bindings[j].Attribute.ID
		})
	}
	for _, st := range s.servertypes {
		for _, b := range st.bindings {
			if b.RelatedVia == nil {
				continue
			}
			if _, ok := st.byID[b.RelatedVia.ID]; !ok {
				return nil, errors.Newf("binding %s.%s: related via %q which is not bound to %s",
					st.ID, b.Attribute.ID, b.RelatedVia.ID, st.ID)
			}
		}
	}

	return s, nil
}

func (s *Schema) newAttribute(def AttributeDef) (*Attribute, error) {
	if !identifierPattern.MatchString(def.ID) {
		return nil, errors.New("invalid attribute id")
	}
	if IsSpecial(def.ID) {
		return nil, errors.New("id is reserved for a special attribute")
	}
	if _, dup := s.attributes[def.ID]; dup {
		return nil, errors.New("duplicate attribute")
	}
	t, err := ParseAttributeType(def.Type)
	if err != nil {
		return nil, err
	}

	a := &Attribute{
		ID:                  def.ID,
		Type:                t,
		Multi:               def.Multi,
		Readonly:            def.Readonly,
		Clone:               def.Clone,
		TargetServertypeID:  def.TargetServertypeID,
		ReversedAttributeID: def.ReversedAttributeID,
		Hovertext:           def.Hovertext,
		Group:               def.Group,
	}
	if def.Regexp != "" {
		re, err := compileRegexp(def.Regexp)
		if err != nil {
			return nil, errors.Wrap(err, "compile regexp")
		}
		a.Regexp = re
	}
	return a, nil
}

// checkAttribute enforces the attribute invariants once every attribute
// is known.
func (s *Schema) checkAttribute(a *Attribute) error {
	switch {
	case a.Multi && (a.Type == TypeBoolean || a.Type == TypeSupernet):
		return errors.Newf("%s attributes cannot be multi", a.Type)
	case a.Derived() && !a.Readonly:
		return errors.Newf("%s attributes must be readonly", a.Type)
	}

	needsTarget := a.Type == TypeHostname || a.Type == TypeSupernet
	if needsTarget != (a.TargetServertypeID != "") {
		if needsTarget {
			return errors.Newf("%s attributes need a target servertype", a.Type)
		}
		return errors.New("only relation attributes have a target servertype")
	}
	if needsTarget {
		target, ok := s.servertypes[a.TargetServertypeID]
		if !ok {
			return &UnknownServertypeError{ServertypeID: a.TargetServertypeID}
		}
		if a.Type == TypeSupernet && target.IPAddrType != IPAddrNetwork {
			return errors.Newf("supernet target %q is not a network servertype", target.ID)
		}
	}

	isReverse := a.Type == TypeReverseHostname
	if isReverse != (a.ReversedAttributeID != "") {
		if isReverse {
			return errors.New("reverse_hostname attributes need a reversed attribute")
		}
		return errors.New("only reverse_hostname attributes have a reversed attribute")
	}
	if isReverse {
		forward, ok := s.attributes[a.ReversedAttributeID]
		if !ok {
			return &UnknownAttributeError{AttributeID: a.ReversedAttributeID}
		}
		if forward.Type != TypeHostname {
			return errors.Newf("reversed attribute %q is not a hostname relation", forward.ID)
		}
	}
	return nil
}

func (s *Schema) bind(def BindingDef) error {
	st, ok := s.servertypes[def.ServertypeID]
	if !ok {
		return &UnknownServertypeError{ServertypeID: def.ServertypeID}
	}
	a, ok := s.attributes[def.AttributeID]
	if !ok {
		return &UnknownAttributeError{AttributeID: def.AttributeID}
	}
	if _, dup := st.byID[a.ID]; dup {
		return errors.New("duplicate binding")
	}

	b := &ServertypeAttribute{
		Attribute:      a,
		Required:       def.Required,
		DefaultVisible: def.DefaultVisible,
		Position:       def.Position,
	}

	if def.RelatedViaAttributeID != "" {
		via, ok := s.attributes[def.RelatedViaAttributeID]
		if !ok {
			return &UnknownAttributeError{AttributeID: def.RelatedViaAttributeID}
		}
		if !via.Type.IsRelation() {
			return errors.Newf("related via %q which is not a relation", via.ID)
		}
		if via.Multi && !a.Multi {
			return errors.Newf("related via multi attribute %q requires %q to be multi", via.ID, a.ID)
		}
		b.RelatedVia = via
	}

	if def.Default != nil && *def.Default != "" {
		var raw Value = Raw(*def.Default)
		if a.Multi {
			var elems []Value
			for _, part := range strings.Split(*def.Default, ",") {
				if part = strings.TrimSpace(part); part != "" {
					elems = append(elems, Raw(part))
				}
			}
			raw = Set(elems)
		}
		v, err := a.Coerce(raw)
		if err != nil {
			return errors.Wrap(err, "default")
		}
		b.Default = v
	}

	st.bindings = append(st.bindings, b)
	st.byID[a.ID] = b
	return nil
}

// Attribute resolves an attribute id, special attributes included.
func (s *Schema) Attribute(id string) (*Attribute, error) {
	if a, ok := specialByID[id]; ok {
		return a, nil
	}
	if a, ok := s.attributes[id]; ok {
		return a, nil
	}
	return nil, &UnknownAttributeError{AttributeID: id}
}

// Servertype resolves a servertype id.
func (s *Schema) Servertype(id string) (*Servertype, error) {
	if st, ok := s.servertypes[id]; ok {
		return st, nil
	}
	return nil, &UnknownServertypeError{ServertypeID: id}
}

// Attributes returns the non-special attributes sorted by id.
func (s *Schema) Attributes() []*Attribute {
	out := make([]*Attribute, 0, len(s.attributes))
	for _, a := range s.attributes {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Servertypes returns all servertypes sorted by id.
func (s *Schema) Servertypes() []*Servertype {
	out := make([]*Servertype, 0, len(s.servertypes))
	for _, st := range s.servertypes {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Resolve looks up attributeID and, when servertypes is non-empty, checks
// that at least one of them binds it. Special attributes always resolve.
func (s *Schema) Resolve(attributeID string, servertypes []*Servertype) (*Attribute, error) {
	a, err := s.Attribute(attributeID)
	if err != nil || a.Special || len(servertypes) == 0 {
		return a, err
	}
	ids := make([]string, 0, len(servertypes))
	for _, st := range servertypes {
		if _, ok := st.byID[attributeID]; ok {
			return a, nil
		}
		ids = append(ids, st.ID)
	}
	sort.Strings(ids)
	return nil, &UnknownAttributeError{AttributeID: attributeID, Servertypes: ids}
}

// Coerce coerces v for attributeID on an object of servertype st.
func (s *Schema) Coerce(st *Servertype, attributeID string, v Value) (Value, error) {
	switch attributeID {
	case AttrInternIP:
		return CoerceInternIP(st.IPAddrType, v)
	case AttrObjectID, AttrHostname, AttrServertype:
		return specialByID[attributeID].Coerce(v)
	}
	b, ok := st.byID[attributeID]
	if !ok {
		if _, err := s.Attribute(attributeID); err != nil {
			return nil, err
		}
		return nil, &UnknownAttributeError{AttributeID: attributeID, Servertypes: []string{st.ID}}
	}
	return b.Attribute.Coerce(v)
}

// Visible returns the attribute ids an object of st exposes: the specials
// followed by the bindings in position order.
func (s *Schema) Visible(st *Servertype) []string {
	ids := SpecialIDs()
	for _, b := range st.bindings {
		ids = append(ids, b.Attribute.ID)
	}
	return ids
}

// Editable returns the attribute ids a user may change on an object of st.
func (s *Schema) Editable(st *Servertype) []string {
	ids := []string{AttrHostname}
	if st.IPAddrType.HasAddress() {
		ids = append(ids, AttrInternIP)
	}
	for _, b := range st.bindings {
		if !b.ReadOnly() {
			ids = append(ids, b.Attribute.ID)
		}
	}
	return ids
}
