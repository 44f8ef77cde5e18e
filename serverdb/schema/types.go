package schema

import (
	"github.com/teranos/serveradmin/errors"
)

// AttributeType is the closed enumeration of attribute types.
type AttributeType string

const (
	TypeString          AttributeType = "string"
	TypeInteger         AttributeType = "integer"
	TypeBoolean         AttributeType = "boolean"
	TypeIP              AttributeType = "ip"   // IPv4 address
	TypeIPv6            AttributeType = "ipv6" // IPv6 address
	TypeInet            AttributeType = "inet" // network/CIDR
	TypeDate            AttributeType = "date"
	TypeDateTime        AttributeType = "datetime"
	TypeHostname        AttributeType = "hostname"         // relation to an object
	TypeSupernet        AttributeType = "supernet"         // narrowest containing network object
	TypeReverseHostname AttributeType = "reverse_hostname" // objects pointing here via a relation
	TypeSet             AttributeType = "set"              // free-form token
)

var attributeTypes = []AttributeType{
	TypeString, TypeInteger, TypeBoolean, TypeIP, TypeIPv6, TypeInet,
	TypeDate, TypeDateTime, TypeHostname, TypeSupernet, TypeReverseHostname, TypeSet,
}

// ParseAttributeType validates a stored type name.
func ParseAttributeType(s string) (AttributeType, error) {
	for _, t := range attributeTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", errors.Newf("unknown attribute type %q", s)
}

// ValueKind is the variant values of this type carry.
func (t AttributeType) ValueKind() Kind {
	switch t {
	case TypeInteger:
		return KindInteger
	case TypeBoolean:
		return KindBoolean
	case TypeIP, TypeIPv6:
		return KindIP
	case TypeInet:
		return KindNetwork
	case TypeDate:
		return KindDate
	case TypeDateTime:
		return KindDateTime
	case TypeHostname, TypeSupernet, TypeReverseHostname:
		return KindHostname
	default:
		return KindString
	}
}

// IsRelation reports whether values name other objects by hostname.
func (t AttributeType) IsRelation() bool {
	return t == TypeHostname || t == TypeSupernet || t == TypeReverseHostname
}

// IsDerived reports whether values are computed rather than stored.
func (t AttributeType) IsDerived() bool {
	return t == TypeSupernet || t == TypeReverseHostname
}

// IsAddress reports whether values are addresses or networks.
func (t AttributeType) IsAddress() bool {
	return t == TypeIP || t == TypeIPv6 || t == TypeInet
}

// Ordered reports whether comparison filters apply.
func (t AttributeType) Ordered() bool {
	return t != TypeBoolean
}

// IPAddrType says what a servertype's intern_ip holds.
type IPAddrType string

const (
	IPAddrNull         IPAddrType = "null"         // no intern_ip
	IPAddrHost         IPAddrType = "host"         // single address, unique per servertype
	IPAddrLoadbalancer IPAddrType = "loadbalancer" // single address, may be shared
	IPAddrNetwork      IPAddrType = "network"      // CIDR, must not overlap per servertype
)

// ParseIPAddrType validates a stored ip_addr_type.
func ParseIPAddrType(s string) (IPAddrType, error) {
	switch t := IPAddrType(s); t {
	case IPAddrNull, IPAddrHost, IPAddrLoadbalancer, IPAddrNetwork:
		return t, nil
	case "":
		return IPAddrNull, nil
	}
	return "", errors.Newf("unknown ip_addr_type %q", s)
}

// HasAddress reports whether objects of this kind carry an intern_ip.
func (t IPAddrType) HasAddress() bool {
	return t != IPAddrNull && t != ""
}

// ExemptFromOverlap reports whether intern_ip ranges may overlap.
func (t IPAddrType) ExemptFromOverlap() bool {
	return t == IPAddrLoadbalancer
}
