package storage

import (
	"context"
	"database/sql"

	"github.com/teranos/serveradmin/errors"
	"github.com/teranos/serveradmin/serverdb/schema"
)

// LoadSchema reads the attribute, servertype and binding tables and
// validates them into a Schema.
func LoadSchema(ctx context.Context, q Queryer) (*schema.Schema, error) {
	attrs, err := loadAttributes(ctx, q)
	if err != nil {
		return nil, err
	}
	servertypes, err := loadServertypes(ctx, q)
	if err != nil {
		return nil, err
	}
	bindings, err := loadBindings(ctx, q)
	if err != nil {
		return nil, err
	}
	s, err := schema.New(attrs, servertypes, bindings)
	if err != nil {
		return nil, errors.Wrap(err, "stored schema is invalid")
	}
	return s, nil
}

func loadAttributes(ctx context.Context, q Queryer) ([]schema.AttributeDef, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT attribute_id, type, multi, readonly, clone, regexp,
			target_servertype_id, reversed_attribute_id, hovertext, attribute_group
		FROM attribute ORDER BY attribute_id`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query attributes")
	}
	defer rows.Close()

	var out []schema.AttributeDef
	for rows.Next() {
		var d schema.AttributeDef
		var re, target, reversed sql.NullString
		if err := rows.Scan(&d.ID, &d.Type, &d.Multi, &d.Readonly, &d.Clone, &re,
			&target, &reversed, &d.Hovertext, &d.Group); err != nil {
			return nil, errors.Wrap(err, "failed to scan attribute")
		}
		d.Regexp, d.TargetServertypeID, d.ReversedAttributeID = re.String, target.String, reversed.String
		out = append(out, d)
	}
	return out, errors.Wrap(rows.Err(), "failed to read attributes")
}

func loadServertypes(ctx context.Context, q Queryer) ([]schema.ServertypeDef, error) {
	rows, err := q.QueryContext(ctx, `SELECT servertype_id, description, ip_addr_type FROM servertype ORDER BY servertype_id`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query servertypes")
	}
	defer rows.Close()

	var out []schema.ServertypeDef
	for rows.Next() {
		var d schema.ServertypeDef
		if err := rows.Scan(&d.ID, &d.Description, &d.IPAddrType); err != nil {
			return nil, errors.Wrap(err, "failed to scan servertype")
		}
		out = append(out, d)
	}
	return out, errors.Wrap(rows.Err(), "failed to read servertypes")
}

func loadBindings(ctx context.Context, q Queryer) ([]schema.BindingDef, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT servertype_id, attribute_id, required, default_value, default_visible,
			related_via_attribute_id, position
		FROM servertype_attribute ORDER BY servertype_id, position, attribute_id`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query servertype attributes")
	}
	defer rows.Close()

	var out []schema.BindingDef
	for rows.Next() {
		var d schema.BindingDef
		var def, via sql.NullString
		if err := rows.Scan(&d.ServertypeID, &d.AttributeID, &d.Required, &def, &d.DefaultVisible, &via, &d.Position); err != nil {
			return nil, errors.Wrap(err, "failed to scan servertype attribute")
		}
		if def.Valid {
			d.Default = &def.String
		}
		d.RelatedViaAttributeID = via.String
		out = append(out, d)
	}
	return out, errors.Wrap(rows.Err(), "failed to read servertype attributes")
}

// Definitions is a schema in its stored form, as written by InsertSchema
// and read from schema files.
type Definitions struct {
	Attributes  []schema.AttributeDef  `yaml:"attributes"`
	Servertypes []schema.ServertypeDef `yaml:"servertypes"`
	Bindings    []schema.BindingDef    `yaml:"bindings"`
}

// InsertSchema validates defs and inserts them. Attributes referencing
// other attributes are inserted after their targets.
func InsertSchema(ctx context.Context, q Queryer, defs Definitions) error {
	if _, err := schema.New(defs.Attributes, defs.Servertypes, defs.Bindings); err != nil {
		return err
	}

	for _, st := range defs.Servertypes {
		ipType := st.IPAddrType
		if ipType == "" {
			ipType = string(schema.IPAddrNull)
		}
		if _, err := q.ExecContext(ctx,
			`INSERT INTO servertype (servertype_id, description, ip_addr_type) VALUES (?, ?, ?)`,
			st.ID, st.Description, ipType); err != nil {
			return errors.Wrapf(err, "failed to insert servertype %s", st.ID)
		}
	}

	// reverse attributes point at their forward relation
	ordered := make([]schema.AttributeDef, 0, len(defs.Attributes))
	for _, a := range defs.Attributes {
		if a.ReversedAttributeID == "" {
			ordered = append(ordered, a)
		}
	}
	for _, a := range defs.Attributes {
		if a.ReversedAttributeID != "" {
			ordered = append(ordered, a)
		}
	}
	for _, a := range ordered {
		group := a.Group
		if group == "" {
			group = "other"
		}
		if _, err := q.ExecContext(ctx, `
			INSERT INTO attribute (attribute_id, type, multi, readonly, clone, regexp,
				target_servertype_id, reversed_attribute_id, hovertext, attribute_group)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.Type, a.Multi, a.Readonly, a.Clone, nullString(a.Regexp),
			nullString(a.TargetServertypeID), nullString(a.ReversedAttributeID), a.Hovertext, group); err != nil {
			return errors.Wrapf(err, "failed to insert attribute %s", a.ID)
		}
	}

	for _, b := range defs.Bindings {
		var def any
		if b.Default != nil {
			def = *b.Default
		}
		if _, err := q.ExecContext(ctx, `
			INSERT INTO servertype_attribute (servertype_id, attribute_id, required, default_value,
				default_visible, related_via_attribute_id, position)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			b.ServertypeID, b.AttributeID, b.Required, def, b.DefaultVisible,
			nullString(b.RelatedViaAttributeID), b.Position); err != nil {
			return errors.Wrapf(err, "failed to bind %s to %s", b.AttributeID, b.ServertypeID)
		}
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
