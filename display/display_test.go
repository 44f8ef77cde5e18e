package display

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/serveradmin/errors"
	"github.com/teranos/serveradmin/serverdb/object"
	"github.com/teranos/serveradmin/serverdb/parser"
	"github.com/teranos/serveradmin/serverdb/schema"
)

func TestWriteObjects(t *testing.T) {
	obj := object.Load(7, map[string]schema.Value{
		"hostname": schema.String("web1"),
		"tags":     schema.NewSet(schema.String("web"), schema.String("db")),
		"memory":   nil,
	}, []string{"object_id", "hostname", "tags", "memory"})

	var out bytes.Buffer
	require.NoError(t, WriteObjects(&out, FormatJSON, nil, []*object.Server{obj}))
	assert.JSONEq(t, `[{"object_id": 7, "hostname": "web1", "tags": ["db", "web"], "memory": null}]`, out.String())

	out.Reset()
	require.NoError(t, WriteObjects(&out, FormatJSON, nil, nil))
	assert.Equal(t, "[]\n", out.String())

	out.Reset()
	require.NoError(t, WriteObjects(&out, FormatTable, []string{"hostname", "tags", "memory"}, []*object.Server{obj}))
	assert.Contains(t, out.String(), "db web")

	err := WriteObjects(&out, "xml", nil, nil)
	assert.ErrorIs(t, err, errors.ErrInvalidRequest)
}

func TestPrintError(t *testing.T) {
	_, err := parser.ParseQuery("os=bookworm )")
	require.Error(t, err)

	var out bytes.Buffer
	PrintError(&out, err)
	assert.Contains(t, out.String(), "os=bookworm )")
	assert.Contains(t, out.String(), "^")

	out.Reset()
	PrintError(&out, errors.WithHint(errors.Wrap(errors.ErrPermissionDenied, "user may not commit"), "ask an admin"))
	assert.Contains(t, out.String(), "permission denied")
	assert.Contains(t, out.String(), "ask an admin")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 2, ExitCode(errors.Wrap(errors.ErrCommitConflict, "object 4")))
	assert.Equal(t, 1, ExitCode(errors.New("disk full")))
}
