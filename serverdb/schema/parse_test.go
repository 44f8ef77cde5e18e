package schema

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/serveradmin/errors"
)

func TestParse_RoundTrip(t *testing.T) {
	tests := []struct {
		typ AttributeType
		raw string
	}{
		{TypeString, "Debian GNU/Linux 12"},
		{TypeSet, "puppet-managed"},
		{TypeInteger, "-42"},
		{TypeInteger, "9223372036854775807"},
		{TypeBoolean, "true"},
		{TypeBoolean, "false"},
		{TypeIP, "10.0.0.1"},
		{TypeIPv6, "2001:db8::1"},
		{TypeInet, "10.0.0.0/24"},
		{TypeInet, "2001:db8::/48"},
		{TypeInet, "10.0.0.7/32"},
		{TypeDate, "2024-02-29"},
		{TypeDateTime, "2024-02-29T13:04:05Z"},
		{TypeHostname, "hv01.example"},
		{TypeSupernet, "net-10-0-0-0"},
		{TypeReverseHostname, "vm01.example"},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ)+"/"+tt.raw, func(t *testing.T) {
			v, err := Parse(tt.typ, tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.typ.ValueKind(), v.Kind())
			assert.Equal(t, tt.raw, v.String())

			again, err := Parse(tt.typ, v.String())
			require.NoError(t, err)
			assert.True(t, Equal(v, again))
		})
	}
}

func TestParse_Canonicalizes(t *testing.T) {
	tests := []struct {
		typ  AttributeType
		raw  string
		want string
	}{
		{TypeInteger, "+7", "7"},
		{TypeIPv6, "2001:0db8:0000::0001", "2001:db8::1"},
		{TypeInet, "10.0.0.1", "10.0.0.1/32"},
		{TypeDateTime, "2024-01-02T03:04:05.999+02:00", "2024-01-02T01:04:05Z"},
		{TypeDateTime, "2024-01-02 03:04:05", "2024-01-02T03:04:05Z"},
	}
	for _, tt := range tests {
		v, err := Parse(tt.typ, tt.raw)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, v.String())

		again, err := Parse(tt.typ, v.String())
		require.NoError(t, err)
		assert.True(t, Equal(v, again), "canonical form of %q must round trip", tt.raw)
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		typ    AttributeType
		raw    string
		reason string
	}{
		{TypeString, "", "empty string"},
		{TypeSet, "two words", "whitespace"},
		{TypeInteger, "4.2", "not an integer"},
		{TypeBoolean, "yes", "not a member of enumeration"},
		{TypeIP, "2001:db8::1", "not an IPv4 address"},
		{TypeIP, "10.0.0.256", "not an IPv4 address"},
		{TypeIPv6, "10.0.0.1", "not an IPv6 address"},
		{TypeInet, "10.0.0.1/24", "host bits set"},
		{TypeInet, "10.0.0.0/33", "not a network"},
		{TypeDate, "29.02.2024", "not a date"},
		{TypeDateTime, "yesterday", "not a datetime"},
		{TypeHostname, "Web01", "not a valid hostname"},
		{TypeHostname, "1web", "not a valid hostname"},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ)+"/"+tt.raw, func(t *testing.T) {
			_, err := Parse(tt.typ, tt.raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrInvalidValue))

			var ive *InvalidValueError
			require.True(t, errors.As(err, &ive))
			assert.Equal(t, tt.raw, ive.Value)
			assert.Contains(t, ive.Reason, tt.reason)
		})
	}
}

func TestAttribute_Coerce(t *testing.T) {
	re, err := compileRegexp(`^[a-z]+\Z`)
	require.NoError(t, err)

	single := &Attribute{ID: "os", Type: TypeString, Regexp: re}
	multi := &Attribute{ID: "tags", Type: TypeSet, Multi: true}

	t.Run("raw is parsed and regexp applied", func(t *testing.T) {
		v, err := single.Coerce(Raw("bookworm"))
		require.NoError(t, err)
		assert.Equal(t, String("bookworm"), v)

		_, err = single.Coerce(Raw("Bookworm"))
		var ive *InvalidValueError
		require.True(t, errors.As(err, &ive))
		assert.Equal(t, "os", ive.AttributeID)
		assert.Contains(t, ive.Reason, "regexp")
	})

	t.Run("multi requires a collection", func(t *testing.T) {
		_, err := multi.Coerce(Raw("a"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "requires a collection")

		v, err := multi.Coerce(Set{Raw("b"), Raw("a"), Raw("b")})
		require.NoError(t, err)
		assert.Equal(t, Set{String("a"), String("b")}, v)
	})

	t.Run("single rejects a collection", func(t *testing.T) {
		_, err := single.Coerce(Set{Raw("a")})
		assert.Error(t, err)
	})

	t.Run("typed values are checked", func(t *testing.T) {
		ip := &Attribute{ID: "ilo", Type: TypeIP}
		_, err := ip.Coerce(IP{Addr: netip.MustParseAddr("::1")})
		assert.Error(t, err, "IPv6 value for an IPv4 attribute")
		_, err = ip.Coerce(Integer(3))
		assert.Error(t, err)
	})

	t.Run("unset values", func(t *testing.T) {
		v, err := multi.Coerce(nil)
		require.NoError(t, err)
		assert.Equal(t, Set{}, v)
		v, err = single.Coerce(nil)
		require.NoError(t, err)
		assert.Nil(t, v)
	})
}

func TestCoerceInternIP(t *testing.T) {
	v, err := CoerceInternIP(IPAddrHost, Raw("10.0.0.1"))
	require.NoError(t, err)
	assert.Equal(t, IP{Addr: netip.MustParseAddr("10.0.0.1")}, v)

	v, err = CoerceInternIP(IPAddrNetwork, Raw("10.0.0.0/30"))
	require.NoError(t, err)
	assert.Equal(t, Network{Prefix: netip.MustParsePrefix("10.0.0.0/30")}, v)

	_, err = CoerceInternIP(IPAddrNull, Raw("10.0.0.1"))
	assert.Error(t, err)

	_, err = CoerceInternIP(IPAddrHost, Raw("10.0.0.0/24"))
	assert.Error(t, err)

	v, err = CoerceInternIP(IPAddrNull, nil)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestFromAny(t *testing.T) {
	v, err := FromAny([]any{"a", 3, true, nil})
	require.NoError(t, err)
	assert.Equal(t, Set{Raw("a"), Raw("3"), Raw("true")}, v)

	v, err = FromAny(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, Raw("2024-05-01"), v)

	_, err = FromAny([]any{[]any{"x"}})
	assert.Error(t, err)

	_, err = FromAny(map[string]any{})
	assert.Error(t, err)
}
