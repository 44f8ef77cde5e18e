// Package testutil sets up migrated databases carrying the inventory
// fixture schema for store-backed tests.
package testutil

import (
	"context"
	"database/sql"
	_ "embed"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	inttest "github.com/teranos/serveradmin/internal/testing"
	"github.com/teranos/serveradmin/serverdb/schema"
	"github.com/teranos/serveradmin/serverdb/storage"
)

//go:embed inventory.yaml
var inventoryYAML []byte

// Inventory returns the fixture schema definitions: provider and route
// networks, hypervisors, vms, loadbalancers and projects.
func Inventory(t testing.TB) storage.Definitions {
	t.Helper()
	var defs storage.Definitions
	require.NoError(t, yaml.Unmarshal(inventoryYAML, &defs))
	return defs
}

// SetupTestDB creates a migrated database holding the inventory schema.
// Uses real migrations to ensure test schema matches production schema.
func SetupTestDB(t *testing.T) (*sql.DB, *schema.Schema) {
	t.Helper()
	db := inttest.CreateTestDB(t)
	ctx := context.Background()
	require.NoError(t, storage.InsertSchema(ctx, db, Inventory(t)))
	sch, err := storage.LoadSchema(ctx, db)
	require.NoError(t, err)
	return db, sch
}

// SetupEmptyDB creates a migrated database without any schema rows.
func SetupEmptyDB(t *testing.T) *sql.DB {
	t.Helper()
	return inttest.CreateTestDB(t)
}

// CreateServer inserts an object directly, bypassing commit validation.
// Values are text; multi attributes take several. Relation values name the
// target by hostname, which must already exist.
func CreateServer(t *testing.T, db *sql.DB, sch *schema.Schema, servertype, hostname, internIP string, attrs map[string][]string) int64 {
	t.Helper()
	ctx := context.Background()
	st, err := sch.Servertype(servertype)
	require.NoError(t, err)

	var ip schema.Value
	if internIP != "" {
		ip, err = schema.CoerceInternIP(st.IPAddrType, schema.Raw(internIP))
		require.NoError(t, err)
	}
	id, err := storage.InsertServer(ctx, db, hostname, servertype, ip)
	require.NoError(t, err, "insert %s", hostname)

	for attrID, raws := range attrs {
		a, err := sch.Attribute(attrID)
		require.NoError(t, err)
		for _, raw := range raws {
			var row storage.AttributeRow
			if a.Type == schema.TypeHostname {
				targets, err := storage.ResolveHostnames(ctx, db, []string{raw})
				require.NoError(t, err)
				target, ok := targets[raw]
				require.True(t, ok, "no object %s", raw)
				row = storage.EncodeRelation(target.ID)
			} else {
				v, err := a.Parse(raw)
				require.NoError(t, err)
				row = storage.EncodeValue(v)
			}
			require.NoError(t, storage.InsertAttribute(ctx, db, id, attrID, row))
		}
	}
	return id
}

// Populate creates a small inventory:
//
//	net-a       provider_network 10.0.0.0/16
//	net-a-sub   route_network    10.0.1.0/24
//	net-b       route_network    10.0.2.0/24
//	hv1         hypervisor       10.0.1.10
//	proj-x      project          owner=alice
//	web1, web2  vm               10.0.1.21-22 on hv1, in proj-x
//	db1         vm               10.0.2.5, testing
//
// and returns the object ids by hostname.
func Populate(t *testing.T, db *sql.DB, sch *schema.Schema) map[string]int64 {
	t.Helper()
	ids := make(map[string]int64)
	ids["net-a"] = CreateServer(t, db, sch, "provider_network", "net-a", "10.0.0.0/16", map[string][]string{"vlan": {"100"}})
	ids["net-a-sub"] = CreateServer(t, db, sch, "route_network", "net-a-sub", "10.0.1.0/24", map[string][]string{"vlan": {"101"}})
	ids["net-b"] = CreateServer(t, db, sch, "route_network", "net-b", "10.0.2.0/24", map[string][]string{"vlan": {"102"}})
	ids["hv1"] = CreateServer(t, db, sch, "hypervisor", "hv1", "10.0.1.10", map[string][]string{
		"environment": {"production"},
		"num_cpu":     {"64"},
	})
	ids["proj-x"] = CreateServer(t, db, sch, "project", "proj-x", "", map[string][]string{"owner": {"alice"}})
	ids["web1"] = CreateServer(t, db, sch, "vm", "web1", "10.0.1.21", map[string][]string{
		"environment": {"production"},
		"os":          {"bookworm"},
		"num_cpu":     {"4"},
		"tags":        {"web", "frontend"},
		"hypervisor":  {"hv1"},
		"project":     {"proj-x"},
	})
	ids["web2"] = CreateServer(t, db, sch, "vm", "web2", "10.0.1.22", map[string][]string{
		"environment": {"production"},
		"os":          {"bullseye"},
		"num_cpu":     {"8"},
		"tags":        {"web"},
		"hypervisor":  {"hv1"},
		"project":     {"proj-x"},
	})
	ids["db1"] = CreateServer(t, db, sch, "vm", "db1", "10.0.2.5", map[string][]string{
		"environment": {"testing"},
		"num_cpu":     {"16"},
		"monitored":   {"false"},
	})
	return ids
}
