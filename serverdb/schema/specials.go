package schema

// Special attribute ids. They exist on every object regardless of servertype.
const (
	AttrObjectID   = "object_id"
	AttrHostname   = "hostname"
	AttrServertype = "servertype"
	AttrInternIP   = "intern_ip"
)

var specialAttributes = []*Attribute{
	{ID: AttrObjectID, Type: TypeInteger, Readonly: true, Special: true, Group: "base"},
	{ID: AttrHostname, Type: TypeString, Regexp: hostnamePattern, Clone: true, Special: true, Group: "base"},
	{ID: AttrServertype, Type: TypeString, Clone: true, Special: true, Group: "base"},
	// intern_ip is an address or a network depending on the servertype's
	// ip_addr_type; Type is the widest of the two.
	{ID: AttrInternIP, Type: TypeInet, Special: true, Group: "base"},
}

var specialByID = func() map[string]*Attribute {
	m := make(map[string]*Attribute, len(specialAttributes))
	for _, a := range specialAttributes {
		m[a.ID] = a
	}
	return m
}()

// IsSpecial reports whether id is one of the special attributes.
func IsSpecial(id string) bool {
	_, ok := specialByID[id]
	return ok
}

// Specials returns the special attributes in display order.
func Specials() []*Attribute {
	return specialAttributes
}

// SpecialIDs returns the special attribute ids in display order.
func SpecialIDs() []string {
	ids := make([]string, len(specialAttributes))
	for i, a := range specialAttributes {
		ids[i] = a.ID
	}
	return ids
}

// CoerceInternIP coerces an intern_ip value for a servertype: objects of
// ip_addr_type null carry none, hosts and loadbalancers carry one address,
// networks carry a CIDR.
func CoerceInternIP(t IPAddrType, v Value) (Value, error) {
	if IsEmpty(v) {
		return nil, nil
	}
	if !t.HasAddress() {
		return nil, &InvalidValueError{AttributeID: AttrInternIP, Value: v.String(), Reason: "servertype has no intern_ip"}
	}

	var raw string
	switch x := v.(type) {
	case Raw:
		raw = string(x)
	case IP, Network:
		raw = x.String()
	default:
		return nil, &InvalidValueError{AttributeID: AttrInternIP, Value: v.String(), Reason: "expected an address or network"}
	}

	if t == IPAddrNetwork {
		prefix, err := parseNetwork(raw)
		if err != nil {
			return nil, withAttribute(err, AttrInternIP)
		}
		return Network{Prefix: prefix}, nil
	}
	addr, err := parseAddress(raw)
	if err != nil {
		return nil, withAttribute(err, AttrInternIP)
	}
	return IP{Addr: addr}, nil
}
