package schema

import (
	"net/netip"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

var hostnamePattern = regexp.MustCompile(`^[a-z][a-z0-9.\-]*$`)

// ValidHostname reports whether s is lowercase alphanumerics, dots and
// hyphens, starting with a letter.
func ValidHostname(s string) bool {
	return hostnamePattern.MatchString(s)
}

// Parse coerces text to a value of type t. It does not apply attribute
// regular expressions; see Attribute.Parse.
func Parse(t AttributeType, raw string) (Value, error) {
	switch t {
	case TypeString:
		if raw == "" {
			return nil, invalid(raw, "empty string")
		}
		return String(raw), nil

	case TypeSet:
		if raw == "" {
			return nil, invalid(raw, "empty token")
		}
		if strings.IndexFunc(raw, unicode.IsSpace) >= 0 {
			return nil, invalid(raw, "tokens cannot contain whitespace")
		}
		return String(raw), nil

	case TypeInteger:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, invalid(raw, "not an integer")
		}
		return Integer(n), nil

	case TypeBoolean:
		switch raw {
		case "true":
			return Boolean(true), nil
		case "false":
			return Boolean(false), nil
		}
		return nil, invalid(raw, "not a member of enumeration [true false]")

	case TypeIP:
		addr, err := netip.ParseAddr(raw)
		if err != nil || !addr.Is4() {
			return nil, invalid(raw, "not an IPv4 address")
		}
		return IP{Addr: addr}, nil

	case TypeIPv6:
		addr, err := netip.ParseAddr(raw)
		if err != nil || !addr.Is6() || addr.Is4In6() || addr.Zone() != "" {
			return nil, invalid(raw, "not an IPv6 address")
		}
		return IP{Addr: addr}, nil

	case TypeInet:
		prefix, err := parseNetwork(raw)
		if err != nil {
			return nil, err
		}
		return Network{Prefix: prefix}, nil

	case TypeDate:
		d, err := time.Parse(dateLayout, raw)
		if err != nil {
			return nil, invalid(raw, "not a date (YYYY-MM-DD)")
		}
		return Date{Time: d}, nil

	case TypeDateTime:
		dt, err := time.Parse(dateTimeLayout, raw)
		if err != nil {
			dt, err = time.Parse(time.DateTime, raw)
		}
		if err != nil {
			return nil, invalid(raw, "not a datetime (RFC 3339)")
		}
		return DateTime{Time: dt.UTC().Truncate(time.Second)}, nil

	case TypeHostname, TypeSupernet, TypeReverseHostname:
		if !ValidHostname(raw) {
			return nil, invalid(raw, "not a valid hostname")
		}
		return Hostname(raw), nil
	}
	return nil, invalid(raw, "unknown attribute type %q", t)
}

// parseNetwork accepts CIDR notation or a bare address as a host route.
// Host bits must be zero.
func parseNetwork(raw string) (netip.Prefix, error) {
	if !strings.Contains(raw, "/") {
		addr, err := netip.ParseAddr(raw)
		if err != nil || addr.Zone() != "" {
			return netip.Prefix{}, invalid(raw, "not a network")
		}
		addr = addr.Unmap()
		return netip.PrefixFrom(addr, addr.BitLen()), nil
	}
	prefix, err := netip.ParsePrefix(raw)
	if err != nil {
		return netip.Prefix{}, invalid(raw, "not a network")
	}
	if prefix.Addr().Is4In6() {
		return netip.Prefix{}, invalid(raw, "IPv4-mapped networks are not supported")
	}
	if prefix != prefix.Masked() {
		return netip.Prefix{}, invalid(raw, "host bits set, did you mean %s", prefix.Masked())
	}
	return prefix, nil
}

// parseAddress accepts any IPv4 or IPv6 address.
func parseAddress(raw string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(raw)
	if err != nil || addr.Zone() != "" {
		return netip.Addr{}, invalid(raw, "not an IP address")
	}
	return addr.Unmap(), nil
}

// ParseAddressOrNetwork returns an IP for bare addresses and a Network for
// CIDR notation. It is the coercion for intern_ip when the servertype is
// not known.
func ParseAddressOrNetwork(raw string) (Value, error) {
	if strings.Contains(raw, "/") {
		prefix, err := parseNetwork(raw)
		if err != nil {
			return nil, err
		}
		return Network{Prefix: prefix}, nil
	}
	addr, err := parseAddress(raw)
	if err != nil {
		return nil, err
	}
	return IP{Addr: addr}, nil
}

// compileRegexp compiles a stored pattern. Stored patterns may use \Z for
// end of text, which Go spells \z.
func compileRegexp(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile(strings.ReplaceAll(pattern, `\Z`, `\z`))
}
