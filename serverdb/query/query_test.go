package query_test

import (
	"context"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/serveradmin/errors"
	"github.com/teranos/serveradmin/serverdb/filter"
	"github.com/teranos/serveradmin/serverdb/object"
	"github.com/teranos/serveradmin/serverdb/query"
	"github.com/teranos/serveradmin/serverdb/schema"
	"github.com/teranos/serveradmin/serverdb/storage/testutil"
)

func setup(t *testing.T) (*query.Executor, map[string]int64) {
	t.Helper()
	db, sch := testutil.SetupTestDB(t)
	ids := testutil.Populate(t, db, sch)
	return query.NewExecutor(db, sch, query.DefaultConfig(), nil), ids
}

func hostnames(t *testing.T, servers []*object.Server) []string {
	t.Helper()
	out := []string{}
	for _, s := range servers {
		out = append(out, s.Hostname())
	}
	return out
}

func run(t *testing.T, e *query.Executor, text string, opts ...query.Option) []string {
	t.Helper()
	q, err := e.ParseQuery(text, opts...)
	require.NoError(t, err, text)
	servers, err := q.List(context.Background())
	require.NoError(t, err, text)
	return hostnames(t, servers)
}

func value(s *object.Server, attr string) schema.Value {
	v, _ := s.Get(attr)
	return v
}

func TestQuery_ProjectionOrderLimit(t *testing.T) {
	e, _ := setup(t)

	q, err := e.ParseQuery("servertype=vm",
		query.Restrict("hostname", "intern_ip"),
		query.OrderBy("hostname"),
		query.Slice(0, 2))
	require.NoError(t, err)

	servers, err := q.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"db1", "web1"}, hostnames(t, servers))
	assert.Equal(t, []string{"object_id", "hostname", "intern_ip"}, servers[0].Keys())
	assert.Equal(t, "10.0.2.5", value(servers[0], "intern_ip").String())
	_, loaded := servers[0].Get("num_cpu")
	assert.False(t, loaded)
}

func TestQuery_Filters(t *testing.T) {
	e, _ := setup(t)

	tests := []struct {
		query string
		want  []string
	}{
		{"servertype=vm", []string{"db1", "web1", "web2"}},
		{"servertype=Any(hypervisor project)", []string{"hv1", "proj-x"}},
		{"servertype=vm num_cpu=GreaterThan(4)", []string{"db1", "web2"}},
		{"num_cpu=LessThanOrEquals(8)", []string{"web1", "web2"}},
		{"num_cpu=Any(4 16)", []string{"db1", "web1"}},
		{"tags=web", []string{"web1", "web2"}},
		{"tags=Contains(front)", []string{"web1"}},
		{"servertype=vm tags=Empty()", []string{"db1"}},
		{"servertype=vm memory=Empty()", []string{"db1", "web1", "web2"}},
		{"servertype=vm environment=Not(production)", []string{"db1"}},
		{"monitored=false", []string{"db1"}},
		{"os=StartsWith(bull)", []string{"web2"}},
		{"hostname=Regexp(^web)", []string{"web1", "web2"}},
		{"intern_ip=Regexp(^$)", []string{}},
		{"intern_ip=Regexp(^)", []string{"db1", "hv1", "net-a", "net-a-sub", "net-b", "web1", "web2"}},
		{"web[0-9]", []string{"web1", "web2"}},
		{"hv1", []string{"hv1"}},
		{"hypervisor=hv1", []string{"web1", "web2"}},
		{"hypervisor=Not(hv1) servertype=vm", []string{"db1"}},
		{"vms=web1", []string{"hv1"}},
		{"vms=Empty() servertype=hypervisor", []string{}},
		{"route_network=net-a-sub", []string{"hv1", "web1", "web2"}},
		{"route_network=net-b", []string{"db1"}},
		{"owner=alice", []string{"proj-x", "web1", "web2"}},
		{"owner=alice servertype=vm", []string{"web1", "web2"}},
		{"intern_ip=10.0.1.21", []string{"web1"}},
		{"intern_ip=ContainedBy(10.0.1.0/24)", []string{"hv1", "net-a-sub", "web1", "web2"}},
		{"intern_ip=ContainedOnlyBy(10.0.0.0/16) servertype=route_network", []string{"net-a-sub", "net-b"}},
		{"intern_ip=ContainedOnlyBy(10.0.1.0/24) servertype=vm", []string{"web1", "web2"}},
		{"intern_ip=ContainedOnlyBy(10.0.0.0/16) servertype=vm", []string{}},
		{"intern_ip=Overlaps(10.0.2.0/25)", []string{"db1", "net-a", "net-b"}},
		{"intern_ip=Empty()", []string{"proj-x"}},
		{"vlan=GreaterThanOrEquals(101)", []string{"net-a-sub", "net-b"}},
		{"num_cpu=All(GreaterThan(2) LessThan(10))", []string{"web1", "web2"}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, run(t, e, tt.query, query.OrderBy("hostname")))
		})
	}
}

func TestQuery_FilterMap(t *testing.T) {
	e, ids := setup(t)

	q, err := e.Query(map[string]filter.Filter{
		"object_id": &filter.Any{Filters: []filter.Filter{
			filter.Eq(schema.Integer(ids["web2"]).String()),
			filter.Eq(schema.Integer(ids["hv1"]).String()),
		}},
	})
	require.NoError(t, err)
	servers, err := q.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"hv1", "web2"}, hostnames(t, servers), "object_id order")
}

func TestQuery_OrderBy(t *testing.T) {
	e, _ := setup(t)

	assert.Equal(t, []string{"web1", "web2", "db1"}, run(t, e, "servertype=vm", query.OrderBy("num_cpu")))
	assert.Equal(t, []string{"web1", "web2", "db1"}, run(t, e, "servertype=vm", query.OrderBy("environment", "os")))
	assert.Equal(t, []string{"web1", "web2", "db1"}, run(t, e, "servertype=vm", query.OrderBy("route_network", "hostname")),
		"net-a-sub before net-b")
	assert.Equal(t, []string{"web1", "web2", "db1"}, run(t, e, "servertype=vm", query.OrderBy("intern_ip")))
}

func TestQuery_Slice(t *testing.T) {
	e, _ := setup(t)

	assert.Equal(t, []string{"web1", "web2"}, run(t, e, "servertype=vm", query.OrderBy("hostname"), query.Slice(1, 0)))
	assert.Equal(t, []string{"web2"}, run(t, e, "servertype=vm", query.OrderBy("hostname"), query.Slice(2, 5)))

	db, sch := testutil.SetupTestDB(t)
	testutil.Populate(t, db, sch)
	capped := query.NewExecutor(db, sch, query.Config{PageSize: 1, MaxLimit: 2}, nil)
	assert.Equal(t, []string{"db1", "web1"}, run(t, capped, "servertype=vm", query.OrderBy("hostname"), query.Slice(0, 100)))
	assert.Len(t, run(t, capped, ""), 8, "no slice, no cap")
}

func TestQuery_FailsBeforeStoreAccess(t *testing.T) {
	_, sch := testutil.SetupTestDB(t)
	// a nil database panics on any access
	e := query.NewExecutor(nil, sch, query.DefaultConfig(), nil)

	tests := []struct {
		name  string
		query string
		opts  []query.Option
		want  error
	}{
		{"undefined attribute", "nonexistent=1", nil, errors.ErrUnknownAttribute},
		{"not bound to servertype", "servertype=project num_cpu=4", nil, errors.ErrUnknownAttribute},
		{"restrict", "servertype=vm", []query.Option{query.Restrict("vlan")}, errors.ErrUnknownAttribute},
		{"order", "", []query.Option{query.OrderBy("bogus")}, errors.ErrUnknownAttribute},
		{"bad integer", "num_cpu=many", nil, errors.ErrInvalidValue},
		{"bad address", "intern_ip=ContainedBy(10.0.0.300/24)", nil, errors.ErrInvalidValue},
		{"comparison on boolean", "monitored=GreaterThan(true)", nil, errors.ErrInvalidValue},
		{"syntax", "num_cpu=GreaterThan(", nil, errors.ErrQuerySyntax},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.ParseQuery(tt.query, tt.opts...)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestQuery_UnknownAttributeNamesServertypes(t *testing.T) {
	e, _ := setup(t)
	_, err := e.ParseQuery("servertype=project num_cpu=4")
	var uae *schema.UnknownAttributeError
	require.ErrorAs(t, err, &uae)
	assert.Equal(t, "num_cpu", uae.AttributeID)
	assert.Equal(t, []string{"project"}, uae.Servertypes)
}

func TestQuery_Restartable(t *testing.T) {
	db, sch := testutil.SetupTestDB(t)
	testutil.Populate(t, db, sch)
	e := query.NewExecutor(db, sch, query.DefaultConfig(), nil)
	ctx := context.Background()

	q, err := e.ParseQuery("servertype=vm", query.OrderBy("hostname"))
	require.NoError(t, err)

	first, err := q.List(ctx)
	require.NoError(t, err)
	assert.Len(t, first, 3)

	testutil.CreateServer(t, db, sch, "vm", "app1", "10.0.2.6", map[string][]string{"environment": {"production"}})

	second, err := q.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"app1", "db1", "web1", "web2"}, hostnames(t, second))
}

func TestQuery_AllStopsEarly(t *testing.T) {
	e, _ := setup(t)
	q, err := e.ParseQuery("", query.OrderBy("hostname"))
	require.NoError(t, err)

	var seen []string
	for s, err := range q.All(context.Background()) {
		require.NoError(t, err)
		seen = append(seen, s.Hostname())
		if len(seen) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"db1", "hv1"}, seen)
}

func TestQuery_Get(t *testing.T) {
	e, ids := setup(t)
	ctx := context.Background()

	q, err := e.ParseQuery("hostname=web1")
	require.NoError(t, err)
	s, err := q.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, ids["web1"], s.ObjectID())

	q, err = e.ParseQuery("hostname=nothere")
	require.NoError(t, err)
	_, err = q.Get(ctx)
	assert.ErrorIs(t, err, errors.ErrNotFound)

	q, err = e.ParseQuery("servertype=vm", query.Slice(0, 1))
	require.NoError(t, err)
	_, err = q.Get(ctx)
	assert.ErrorIs(t, err, errors.ErrInvalidRequest, "slice does not hide ambiguity")
}

func TestQuery_Count(t *testing.T) {
	e, _ := setup(t)
	q, err := e.ParseQuery("servertype=vm", query.Slice(0, 1))
	require.NoError(t, err)
	n, err := q.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestQuery_String(t *testing.T) {
	e, _ := setup(t)
	q, err := e.ParseQuery("num_cpu=GreaterThan(04) web1 intern_ip=ContainedBy(10.0.1.0/24)")
	require.NoError(t, err)
	assert.Equal(t, "hostname=web1 intern_ip=ContainedBy(10.0.1.0/24) num_cpu=GreaterThan(4)", q.String())
}

func TestFreeIPAddrs(t *testing.T) {
	db, sch := testutil.SetupTestDB(t)
	testutil.Populate(t, db, sch)
	testutil.CreateServer(t, db, sch, "route_network", "net-c", "10.0.9.0/30", nil)
	testutil.CreateServer(t, db, sch, "vm", "taken1", "10.0.9.1", map[string][]string{"environment": {"production"}})
	testutil.CreateServer(t, db, sch, "hypervisor", "hv2", "10.0.1.11", map[string][]string{
		"environment":    {"production"},
		"additional_ips": {"10.0.9.2"},
	})
	e := query.NewExecutor(db, sch, query.DefaultConfig(), nil)
	ctx := context.Background()

	q, err := e.ParseQuery("intern_ip=10.0.9.0/30")
	require.NoError(t, err)

	collect := func() []netip.Addr {
		var out []netip.Addr
		for addr, err := range q.FreeIPAddrs(ctx) {
			require.NoError(t, err)
			out = append(out, addr)
		}
		return out
	}
	want := []netip.Addr{netip.MustParseAddr("10.0.9.0"), netip.MustParseAddr("10.0.9.3")}
	assert.Equal(t, want, collect())
	assert.Equal(t, want, collect(), "restartable")
}

func TestFreeIPAddrs_NarrowestNetwork(t *testing.T) {
	e, _ := setup(t)
	q, err := e.ParseQuery("intern_ip=Any(10.0.0.0/16 10.0.1.0/24)")
	require.NoError(t, err)

	var got []netip.Addr
	for addr, err := range q.FreeIPAddrs(context.Background()) {
		require.NoError(t, err)
		got = append(got, addr)
		if len(got) == 12 {
			break
		}
	}
	require.Len(t, got, 12)
	assert.Equal(t, netip.MustParseAddr("10.0.1.0"), got[0])
	assert.Equal(t, netip.MustParseAddr("10.0.1.9"), got[9])
	assert.Equal(t, netip.MustParseAddr("10.0.1.11"), got[10], "10.0.1.10 is used by hv1")
}

func TestFreeIPAddrs_NoNetwork(t *testing.T) {
	e, _ := setup(t)
	q, err := e.ParseQuery("servertype=vm")
	require.NoError(t, err)
	for _, err := range q.FreeIPAddrs(context.Background()) {
		assert.ErrorIs(t, err, errors.ErrNotFound)
	}
}

func TestNewObject(t *testing.T) {
	e, _ := setup(t)

	s, err := e.NewObject("vm")
	require.NoError(t, err)
	assert.True(t, s.IsNew())
	assert.Equal(t, "vm", s.Servertype())
	assert.Equal(t, schema.String("production"), value(s, "environment"))
	assert.Equal(t, schema.Integer(2), value(s, "num_cpu"))
	assert.Equal(t, schema.Boolean(true), value(s, "monitored"))
	assert.Equal(t, schema.NewSet(schema.String("base"), schema.String("web")), value(s, "tags"))
	assert.Equal(t, schema.Set{}, value(s, "additional_ips"))
	assert.Nil(t, value(s, "memory"))
	_, ok := s.Get("intern_ip")
	assert.True(t, ok)
	_, ok = s.Get("vms")
	assert.False(t, ok, "derived attributes are not part of new objects")
	_, ok = s.Get("owner")
	assert.False(t, ok, "related attributes are not part of new objects")

	_, err = e.NewObject("mainframe")
	assert.ErrorIs(t, err, errors.ErrUnknownServertype)
}
