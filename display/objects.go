// Package display renders objects, tables and errors for the terminal.
package display

import (
	"fmt"
	"io"

	"github.com/pterm/pterm"
	"gopkg.in/yaml.v3"

	"github.com/teranos/serveradmin/errors"
	"github.com/teranos/serveradmin/serverdb/object"
	"github.com/teranos/serveradmin/serverdb/schema"
)

// Output formats of object listings.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// WriteObjects renders objs in format. Table output shows the columns
// given; json and yaml carry every loaded attribute.
func WriteObjects(w io.Writer, format string, columns []string, objs []*object.Server) error {
	switch format {
	case FormatJSON:
		if objs == nil {
			objs = []*object.Server{}
		}
		return WriteJSON(w, objs)

	case FormatYAML:
		docs := make([]map[string]any, len(objs))
		for i, obj := range objs {
			docs[i] = plainValues(obj)
		}
		data, err := yaml.Marshal(docs)
		if err != nil {
			return errors.Wrap(err, "failed to marshal objects to YAML")
		}
		_, err = w.Write(data)
		return err

	case FormatTable:
		data := pterm.TableData{columns}
		for _, obj := range objs {
			row := make([]string, len(columns))
			for i, c := range columns {
				if v, ok := obj.Get(c); ok && v != nil {
					row[i] = v.String()
				}
			}
			data = append(data, row)
		}
		return WriteTable(w, data)
	}
	return errors.NewInvalidRequestError("unsupported format: %s (supported: table, json, yaml)", format)
}

// WriteTable renders data with its first row as header.
func WriteTable(w io.Writer, data pterm.TableData) error {
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return errors.Wrap(err, "failed to render table")
	}
	_, err = fmt.Fprintln(w, table)
	return err
}

func plainValues(obj *object.Server) map[string]any {
	out := make(map[string]any)
	for k, v := range obj.Values() {
		out[k] = schema.JSONValue(v)
	}
	return out
}
