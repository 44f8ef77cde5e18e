package commit_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/serveradmin/errors"
	"github.com/teranos/serveradmin/serverdb/commit"
	"github.com/teranos/serveradmin/serverdb/object"
	"github.com/teranos/serveradmin/serverdb/schema"
)

func TestDecodeBatch_YAML(t *testing.T) {
	c, err := commit.DecodeBatch([]byte(`
created:
  - hostname: web3
    servertype: vm
    intern_ip: 10.0.1.23
    num_cpu: 2
    tags: [web, canary]
changed:
  - object_id: 42
    os: {action: update, old: bullseye, new: bookworm}
    tags: {action: multi, add: [db], remove: [web]}
    memory: {action: delete, old: 4096}
deleted: [17, 18]
`))
	require.NoError(t, err)

	require.Len(t, c.Created, 1)
	obj := c.Created[0]
	assert.True(t, obj.IsNew())
	assert.Equal(t, []string{"hostname", "servertype", "intern_ip", "num_cpu", "tags"}, obj.Keys())
	num, _ := obj.Get("num_cpu")
	assert.Equal(t, schema.Raw("2"), num)
	tags, _ := obj.Get("tags")
	assert.Equal(t, schema.Set{schema.Raw("web"), schema.Raw("canary")}, tags)

	require.Len(t, c.Changed, 1)
	ch := c.Changed[0]
	assert.Equal(t, int64(42), ch.ObjectID)
	assert.Equal(t, []string{"memory", "os", "tags"}, ch.AttributeIDs())
	assert.Equal(t, object.AttributeChange{Action: object.ActionUpdate, Old: schema.Raw("bullseye"), New: schema.Raw("bookworm")}, ch.Attributes["os"])
	assert.Equal(t, schema.Set{schema.Raw("db")}, ch.Attributes["tags"].Add)
	assert.Equal(t, object.ActionDelete, ch.Attributes["memory"].Action)
	require.NoError(t, ch.Validate())

	assert.Equal(t, []int64{17, 18}, c.Deleted)
}

func TestDecodeBatch_JSON(t *testing.T) {
	c, err := commit.DecodeBatch([]byte(`{
		"changed": [{"object_id": 7, "hypervisor": {"action": "update", "old": null, "new": "hv1"}}],
		"deleted": []
	}`))
	require.NoError(t, err)
	require.Len(t, c.Changed, 1)
	ac := c.Changed[0].Attributes["hypervisor"]
	assert.Nil(t, ac.Old)
	assert.Equal(t, schema.Raw("hv1"), ac.New)
	assert.Empty(t, c.Created)
}

func TestDecodeBatch_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown section", "renamed: []"},
		{"not a document", "created: 5"},
		{"missing object_id", "changed: [{os: {action: update, new: x}}]"},
		{"bad object_id", "changed: [{object_id: web1}]"},
		{"bare value change", "changed: [{object_id: 1, os: bookworm}]"},
		{"missing action", "changed: [{object_id: 1, os: {new: bookworm}}]"},
		{"unknown field", "changed: [{object_id: 1, os: {action: update, value: x}}]"},
		{"scalar add", "changed: [{object_id: 1, tags: {action: multi, add: web}}]"},
		{"nested list", "created: [{hostname: a, tags: [[x]]}]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := commit.DecodeBatch([]byte(tt.doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrInvalidRequest)
		})
	}
}

func TestDecodeBatch_Commit(t *testing.T) {
	f := setup(t)

	c, err := commit.DecodeBatch([]byte(`
created:
  - hostname: web3
    servertype: vm
    intern_ip: 10.0.1.23
    hypervisor: hv1
    tags: [web]
changed:
  - object_id: ` + schema.Integer(f.ids["web2"]).String() + `
    num_cpu: {action: update, old: 8, new: 12}
`))
	require.NoError(t, err)

	res, err := f.committer.Commit(context.Background(), "alice", c)
	require.NoError(t, err)
	require.Len(t, res.Created, 1)
	web3 := res.Created[0]
	assert.Equal(t, "hv1", value(web3, "hypervisor"))
	assert.Equal(t, "production", value(web3, "environment"))
	assert.Equal(t, "net-a-sub", value(web3, "route_network"))
	assert.Equal(t, "12", value(f.get(t, "web2"), "num_cpu"))
}
