package storage_test

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/serveradmin/errors"
	"github.com/teranos/serveradmin/serverdb/object"
	"github.com/teranos/serveradmin/serverdb/schema"
	"github.com/teranos/serveradmin/serverdb/storage"
	"github.com/teranos/serveradmin/serverdb/storage/testutil"
)

func TestLoadSchema(t *testing.T) {
	_, sch := testutil.SetupTestDB(t)

	var ids []string
	for _, st := range sch.Servertypes() {
		ids = append(ids, st.ID)
	}
	assert.Equal(t, []string{"hypervisor", "loadbalancer", "project", "provider_network", "route_network", "vm"}, ids)

	vm, err := sch.Servertype("vm")
	require.NoError(t, err)
	assert.Equal(t, schema.IPAddrHost, vm.IPAddrType)
	bindings := vm.Attributes()
	require.NotEmpty(t, bindings)
	assert.Equal(t, "environment", bindings[0].Attribute.ID)
	assert.True(t, bindings[0].Required)
	assert.Equal(t, schema.String("production"), bindings[0].Default)

	tags, ok := vm.Binding("tags")
	require.True(t, ok)
	assert.Equal(t, schema.NewSet(schema.String("base"), schema.String("web")), tags.Default)

	owner, ok := vm.Binding("owner")
	require.True(t, ok)
	require.NotNil(t, owner.RelatedVia)
	assert.Equal(t, "project", owner.RelatedVia.ID)
	assert.False(t, owner.Stored())

	env, err := sch.Attribute("environment")
	require.NoError(t, err)
	_, err = env.Parse("staging")
	assert.ErrorIs(t, err, errors.ErrInvalidValue)
}

func TestInsertSchema_Invalid(t *testing.T) {
	db := testutil.SetupEmptyDB(t)
	defs := storage.Definitions{
		Attributes: []schema.AttributeDef{{ID: "flag", Type: "boolean", Multi: true}},
	}
	err := storage.InsertSchema(context.Background(), db, defs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be multi")

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM attribute`).Scan(&n))
	assert.Zero(t, n)
}

func TestEncodeValue(t *testing.T) {
	row := storage.EncodeValue(schema.Integer(42))
	assert.Equal(t, "42", row.Value)
	assert.Equal(t, int64(42), row.Number.Int64)
	assert.False(t, row.IPLo.Valid)

	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	row = storage.EncodeValue(schema.Date{Time: day})
	assert.Equal(t, "2024-03-01", row.Value)
	assert.Equal(t, day.Unix(), row.Number.Int64)

	row = storage.EncodeValue(schema.Network{Prefix: netip.MustParsePrefix("10.0.0.0/30")})
	assert.Equal(t, "10.0.0.0/30", row.Value)
	assert.Equal(t, schema.AddrKey(netip.MustParseAddr("10.0.0.0")), row.IPLo.String)
	assert.Equal(t, schema.AddrKey(netip.MustParseAddr("10.0.0.3")), row.IPHi.String)

	row = storage.EncodeRelation(7)
	assert.Equal(t, "7", row.Value)
	assert.Equal(t, int64(7), row.ServerID.Int64)
}

func TestLoadServers(t *testing.T) {
	db, sch := testutil.SetupTestDB(t)
	ids := testutil.Populate(t, db, sch)
	ctx := context.Background()

	servers, err := storage.LoadServers(ctx, db, sch, []int64{ids["web1"], ids["hv1"], 9999}, nil)
	require.NoError(t, err)
	require.Len(t, servers, 2, "missing ids are skipped")

	web1, hv1 := servers[0], servers[1]
	assert.Equal(t, ids["web1"], web1.ObjectID())
	assert.Equal(t, "web1", web1.Hostname())
	assert.Equal(t, "vm", web1.Servertype())
	assert.Equal(t, "10.0.1.21", value(web1, "intern_ip").String())
	assert.Equal(t, schema.Integer(4), value(web1, "num_cpu"))
	assert.Equal(t, schema.NewSet(schema.String("frontend"), schema.String("web")), value(web1, "tags"))
	assert.Equal(t, schema.Hostname("hv1"), value(web1, "hypervisor"))
	assert.Equal(t, schema.Hostname("net-a-sub"), value(web1, "route_network"), "narrowest network")
	assert.Equal(t, schema.String("alice"), value(web1, "owner"), "related via project")
	assert.Nil(t, value(web1, "memory"))
	assert.Equal(t, schema.Set{}, value(web1, "additional_ips"))
	assert.Equal(t, sch.Visible(mustServertype(t, sch, "vm")), web1.Keys())

	assert.Equal(t, schema.NewSet(schema.Hostname("web1"), schema.Hostname("web2")), value(hv1, "vms"))
	assert.Equal(t, schema.Hostname("net-a-sub"), value(hv1, "route_network"))
}

func TestLoadServers_Restricted(t *testing.T) {
	db, sch := testutil.SetupTestDB(t)
	ids := testutil.Populate(t, db, sch)

	servers, err := storage.LoadServers(context.Background(), db, sch,
		[]int64{ids["db1"], ids["net-a"]}, []string{"hostname", "num_cpu", "vlan"})
	require.NoError(t, err)
	require.Len(t, servers, 2)

	assert.Equal(t, []string{"object_id", "hostname", "num_cpu"}, servers[0].Keys())
	assert.Equal(t, schema.Integer(16), value(servers[0], "num_cpu"))
	assert.Equal(t, []string{"object_id", "hostname", "vlan"}, servers[1].Keys())
	assert.Equal(t, schema.Integer(100), value(servers[1], "vlan"))
	assert.Nil(t, value(servers[1], "route_network"), "not projected")
}

func TestResolveHostnames(t *testing.T) {
	db, sch := testutil.SetupTestDB(t)
	ids := testutil.Populate(t, db, sch)

	got, err := storage.ResolveHostnames(context.Background(), db, []string{"hv1", "nope", "web2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]storage.Target{
		"hv1":  {ID: ids["hv1"], Servertype: "hypervisor"},
		"web2": {ID: ids["web2"], Servertype: "vm"},
	}, got)
}

func TestReferencesTo(t *testing.T) {
	db, sch := testutil.SetupTestDB(t)
	ids := testutil.Populate(t, db, sch)
	ctx := context.Background()

	refs, err := storage.ReferencesTo(ctx, db, []int64{ids["hv1"]})
	require.NoError(t, err)
	assert.Equal(t, []storage.Reference{
		{ObjectID: ids["web1"], AttributeID: "hypervisor", TargetID: ids["hv1"]},
		{ObjectID: ids["web2"], AttributeID: "hypervisor", TargetID: ids["hv1"]},
	}, refs)

	refs, err = storage.ReferencesTo(ctx, db, []int64{ids["hv1"], ids["web1"], ids["web2"]})
	require.NoError(t, err)
	assert.Empty(t, refs, "references from deleted objects do not count")
}

func TestOverlappingAddresses(t *testing.T) {
	db, sch := testutil.SetupTestDB(t)
	ids := testutil.Populate(t, db, sch)
	ctx := context.Background()

	ip := schema.IP{Addr: netip.MustParseAddr("10.0.1.21")}
	hits, err := storage.OverlappingAddresses(ctx, db, "vm", ip)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, ids["web1"], hits[0].ID)
	assert.Equal(t, "web1", hits[0].Hostname)

	hits, err = storage.OverlappingAddresses(ctx, db, "hypervisor", ip)
	require.NoError(t, err)
	assert.Empty(t, hits, "other servertypes do not count")

	net := schema.Network{Prefix: netip.MustParsePrefix("10.0.0.0/8")}
	hits, err = storage.OverlappingAddresses(ctx, db, "route_network", net)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, []string{"net-a-sub", "net-b"}, []string{hits[0].Hostname, hits[1].Hostname})

	hits, err = storage.OverlappingAddresses(ctx, db, "vm", nil)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestInternIPExclusionTrigger(t *testing.T) {
	db, sch := testutil.SetupTestDB(t)
	testutil.Populate(t, db, sch)

	ip := schema.IP{Addr: netip.MustParseAddr("10.0.1.21")}
	_, err := storage.InsertServer(context.Background(), db, "web3", "vm", ip)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server_intern_ip_exclude")

	_, err = storage.InsertServer(context.Background(), db, "lb1", "loadbalancer", ip)
	require.NoError(t, err)
	_, err = storage.InsertServer(context.Background(), db, "lb2", "loadbalancer", ip)
	require.NoError(t, err, "loadbalancers share addresses")
}

func TestStats(t *testing.T) {
	db, sch := testutil.SetupTestDB(t)
	testutil.Populate(t, db, sch)
	ctx := context.Background()

	require.NoError(t, storage.InsertCommit(ctx, db, storage.CommitRecord{ID: "c1", User: "alice", At: time.Now()}))
	counts, commits, err := storage.Stats(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, 1, commits)
	assert.Equal(t, []storage.ServertypeCount{
		{Servertype: "hypervisor", Objects: 1},
		{Servertype: "loadbalancer", Objects: 0},
		{Servertype: "project", Objects: 1},
		{Servertype: "provider_network", Objects: 1},
		{Servertype: "route_network", Objects: 2},
		{Servertype: "vm", Objects: 3},
	}, counts)
}

func mustServertype(t *testing.T, sch *schema.Schema, id string) *schema.Servertype {
	t.Helper()
	st, err := sch.Servertype(id)
	require.NoError(t, err)
	return st
}

func value(s *object.Server, attr string) schema.Value {
	v, _ := s.Get(attr)
	return v
}
