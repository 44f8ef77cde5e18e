package storage

import (
	"database/sql"
	"strconv"

	"github.com/teranos/serveradmin/errors"
	"github.com/teranos/serveradmin/serverdb/schema"
)

// AttributeRow is one server_attribute row without its keys.
type AttributeRow struct {
	Value    string
	Number   sql.NullInt64
	IPLo     sql.NullString
	IPHi     sql.NullString
	ServerID sql.NullInt64
}

// EncodeValue turns one element of a stored, non-relation attribute into a
// row. value holds the canonical text; the typed columns carry integers,
// unix seconds of dates and the address range.
func EncodeValue(v schema.Value) AttributeRow {
	row := AttributeRow{Value: v.String()}
	switch x := v.(type) {
	case schema.Integer:
		row.Number = sql.NullInt64{Int64: int64(x), Valid: true}
	case schema.Date:
		row.Number = sql.NullInt64{Int64: x.Time.Unix(), Valid: true}
	case schema.DateTime:
		row.Number = sql.NullInt64{Int64: x.Time.Unix(), Valid: true}
	}
	if lo, hi, ok := schema.RangeKeys(v); ok {
		row.IPLo = sql.NullString{String: lo, Valid: true}
		row.IPHi = sql.NullString{String: hi, Valid: true}
	}
	return row
}

// EncodeRelation is the row of a hostname relation to targetID. value holds
// the target id so renaming the target never touches the row.
func EncodeRelation(targetID int64) AttributeRow {
	return AttributeRow{
		Value:    strconv.FormatInt(targetID, 10),
		ServerID: sql.NullInt64{Int64: targetID, Valid: true},
	}
}

// DecodeValue parses the canonical text of a stored value. Relation rows
// are decoded from the joined target hostname instead.
func DecodeValue(a *schema.Attribute, text string) (schema.Value, error) {
	if a.Type.IsRelation() {
		return schema.Hostname(text), nil
	}
	v, err := schema.Parse(a.Type, text)
	if err != nil {
		return nil, errors.Wrapf(err, "corrupt stored value of %s", a.ID)
	}
	return v, nil
}

// internIPColumns returns the server columns of an intern_ip value.
func internIPColumns(v schema.Value) (text, lo, hi any) {
	l, h, ok := schema.RangeKeys(v)
	if !ok {
		return nil, nil, nil
	}
	return v.String(), l, h
}
