package schema

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewSet_SortsAndDedupes(t *testing.T) {
	s := NewSet(Integer(10), Integer(2), nil, Integer(10))
	assert.Equal(t, Set{Integer(2), Integer(10)}, s, "integers sort numerically")
	assert.Equal(t, "2 10", s.String())
	assert.True(t, s.Contains(Integer(10)))
	assert.False(t, s.Contains(String("10")))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(nil, Set{}))
	assert.True(t, Equal(Set{}, nil))
	assert.False(t, Equal(nil, String("x")))
	assert.False(t, Equal(String("x"), Hostname("x")), "variants differ")
	assert.True(t, Equal(NewSet(String("b"), String("a")), NewSet(String("a"), String("b"))))
	assert.True(t, Equal(
		DateTime{Time: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)},
		DateTime{Time: time.Date(2024, 1, 1, 13, 0, 0, 0, time.FixedZone("CET", 3600))},
	))
}

func TestCompare(t *testing.T) {
	c, ok := Compare(IP{Addr: netip.MustParseAddr("10.0.0.9")}, IP{Addr: netip.MustParseAddr("10.0.0.10")})
	assert.True(t, ok)
	assert.Negative(t, c)

	c, ok = Compare(Network{Prefix: netip.MustParsePrefix("10.0.0.0/16")}, Network{Prefix: netip.MustParsePrefix("10.0.0.0/24")})
	assert.True(t, ok)
	assert.Negative(t, c, "wider network first")

	_, ok = Compare(Boolean(true), Boolean(false))
	assert.False(t, ok)
	_, ok = Compare(Integer(1), String("1"))
	assert.False(t, ok)
}

func TestRangeKeys(t *testing.T) {
	lo, hi, ok := RangeKeys(Network{Prefix: netip.MustParsePrefix("10.0.0.0/30")})
	assert.True(t, ok)
	assert.Equal(t, "00000000000000000000ffff0a000000", lo)
	assert.Equal(t, "00000000000000000000ffff0a000003", hi)

	lo, hi, ok = RangeKeys(IP{Addr: netip.MustParseAddr("10.0.0.1")})
	assert.True(t, ok)
	assert.Equal(t, lo, hi)

	_, _, ok = RangeKeys(String("10.0.0.1"))
	assert.False(t, ok)

	// text order matches numeric order across byte boundaries
	assert.Less(t, AddrKey(netip.MustParseAddr("10.0.0.9")), AddrKey(netip.MustParseAddr("10.0.0.10")))
	assert.Less(t, AddrKey(netip.MustParseAddr("9.255.255.255")), AddrKey(netip.MustParseAddr("10.0.0.0")))
}

func TestJSONValue(t *testing.T) {
	assert.Equal(t, []string{"10.0.0.0", "10.0.0.255"}, JSONValue(Network{Prefix: netip.MustParsePrefix("10.0.0.0/24")}))
	assert.Equal(t, int64(86400), JSONValue(Date{Time: time.Date(1970, 1, 2, 0, 0, 0, 0, time.UTC)}))
	assert.Equal(t, []any{"a", "b"}, JSONValue(NewSet(String("b"), String("a"))))
	assert.Nil(t, JSONValue(nil))
	assert.Equal(t, "10.0.0.1", JSONValue(IP{Addr: netip.MustParseAddr("10.0.0.1")}))
}
