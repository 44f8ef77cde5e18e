package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/teranos/serveradmin/errors"
	"github.com/teranos/serveradmin/serverdb/object"
	"github.com/teranos/serveradmin/serverdb/schema"
)

// ServerRow is the server table row of an object.
type ServerRow struct {
	ID         int64
	Hostname   string
	Servertype string
	InternIP   schema.Value
}

// NarrowestNetworkSQL is a scalar subquery selecting column of the
// narrowest object of one servertype (bound as its single parameter) whose
// intern_ip contains the intern_ip of the server aliased outer.
func NarrowestNetworkSQL(outer, column string) string {
	return fmt.Sprintf(`(SELECT sn.%[2]s FROM server sn
		WHERE sn.servertype_id = ? AND sn.server_id != %[1]s.server_id
			AND sn.intern_ip_lo <= %[1]s.intern_ip_lo AND sn.intern_ip_hi >= %[1]s.intern_ip_hi
		ORDER BY sn.intern_ip_lo DESC, sn.intern_ip_hi ASC LIMIT 1)`, outer, column)
}

// LoadServerRows reads the server rows of ids.
func LoadServerRows(ctx context.Context, q Queryer, sch *schema.Schema, ids []int64) (map[int64]*ServerRow, error) {
	out := make(map[int64]*ServerRow, len(ids))
	for _, chunk := range chunks(ids) {
		rows, err := q.QueryContext(ctx,
			`SELECT server_id, hostname, servertype_id, intern_ip FROM server WHERE server_id IN (`+placeholders(len(chunk))+`)`,
			int64Args(chunk)...)
		if err != nil {
			return nil, errors.Wrap(err, "failed to query servers")
		}
		for rows.Next() {
			var r ServerRow
			var ip sql.NullString
			if err := rows.Scan(&r.ID, &r.Hostname, &r.Servertype, &ip); err != nil {
				rows.Close()
				return nil, errors.Wrap(err, "failed to scan server")
			}
			if ip.Valid {
				st, err := sch.Servertype(r.Servertype)
				if err != nil {
					rows.Close()
					return nil, err
				}
				if r.InternIP, err = schema.CoerceInternIP(st.IPAddrType, schema.Raw(ip.String)); err != nil {
					rows.Close()
					return nil, errors.Wrapf(err, "corrupt intern_ip of object %d", r.ID)
				}
			}
			out[r.ID] = &r
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, errors.Wrap(err, "failed to read servers")
		}
	}
	return out, nil
}

// LoadServers materialises the objects ids in the given order, skipping
// ids that do not exist. attrs restricts the attributes loaded; nil loads
// every attribute visible for each object's servertype. Derived values
// (reverse relations, supernets and related-via bindings) are computed.
func LoadServers(ctx context.Context, q Queryer, sch *schema.Schema, ids []int64, attrs []string) ([]*object.Server, error) {
	rows, err := LoadServerRows(ctx, q, sch, ids)
	if err != nil {
		return nil, err
	}

	l := &loader{
		q:      q,
		sch:    sch,
		rows:   rows,
		keys:   make(map[int64][]string, len(rows)),
		values: make(map[int64]map[string][]schema.Value, len(rows)),
		want:   make(map[*schema.ServertypeAttribute][]int64),
	}
	for id, row := range rows {
		st, err := sch.Servertype(row.Servertype)
		if err != nil {
			return nil, err
		}
		l.keys[id] = projection(sch, st, attrs)
		l.values[id] = make(map[string][]schema.Value)
		for _, k := range l.keys[id] {
			if b, ok := st.Binding(k); ok {
				l.want[b] = append(l.want[b], id)
			}
		}
	}

	if err := l.load(ctx); err != nil {
		return nil, err
	}

	out := make([]*object.Server, 0, len(rows))
	for _, id := range ids {
		row, ok := rows[id]
		if !ok {
			continue
		}
		out = append(out, l.server(row))
	}
	return out, nil
}

// projection returns the attribute ids an object of st shows.
func projection(sch *schema.Schema, st *schema.Servertype, attrs []string) []string {
	visible := sch.Visible(st)
	if attrs == nil {
		return visible
	}
	shown := make(map[string]bool, len(visible))
	for _, id := range visible {
		shown[id] = true
	}
	keys := []string{schema.AttrObjectID}
	for _, id := range attrs {
		if shown[id] && id != schema.AttrObjectID {
			keys = append(keys, id)
		}
	}
	return keys
}

type loader struct {
	q      Queryer
	sch    *schema.Schema
	rows   map[int64]*ServerRow
	keys   map[int64][]string
	values map[int64]map[string][]schema.Value
	// want lists the objects needing each binding
	want map[*schema.ServertypeAttribute][]int64
}

func (l *loader) load(ctx context.Context) error {
	stored := make(map[string][]int64)
	for b, ids := range l.want {
		a := b.Attribute
		switch {
		case b.RelatedVia != nil:
			if err := l.loadRelated(ctx, b, ids); err != nil {
				return err
			}
		case a.Type == schema.TypeReverseHostname:
			if err := l.loadReverse(ctx, a, ids); err != nil {
				return err
			}
		case a.Type == schema.TypeSupernet:
			if err := l.loadSupernet(ctx, a, ids); err != nil {
				return err
			}
		default:
			stored[a.ID] = append(stored[a.ID], ids...)
		}
	}
	for attrID, ids := range stored {
		a, err := l.sch.Attribute(attrID)
		if err != nil {
			return err
		}
		vals, err := storedValues(ctx, l.q, a, ids)
		if err != nil {
			return err
		}
		for id, vs := range vals {
			l.values[id][attrID] = vs
		}
	}
	return nil
}

// storedValues reads the attribute rows of a for ids.
func storedValues(ctx context.Context, q Queryer, a *schema.Attribute, ids []int64) (map[int64][]schema.Value, error) {
	out := make(map[int64][]schema.Value)
	for _, chunk := range chunks(ids) {
		rows, err := q.QueryContext(ctx, `
			SELECT sa.server_id, COALESCE(t.hostname, sa.value)
			FROM server_attribute sa
			LEFT JOIN server t ON t.server_id = sa.value_server_id
			WHERE sa.attribute_id = ? AND sa.server_id IN (`+placeholders(len(chunk))+`)`,
			append([]any{a.ID}, int64Args(chunk)...)...)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to query values of %s", a.ID)
		}
		err = scanValues(rows, a, out)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// scanValues reads (server_id, text) pairs and closes rows.
func scanValues(rows *sql.Rows, a *schema.Attribute, out map[int64][]schema.Value) error {
	defer rows.Close()
	for rows.Next() {
		var id int64
		var text string
		if err := rows.Scan(&id, &text); err != nil {
			return errors.Wrapf(err, "failed to scan value of %s", a.ID)
		}
		v, err := DecodeValue(a, text)
		if err != nil {
			return err
		}
		out[id] = append(out[id], v)
	}
	return errors.Wrapf(rows.Err(), "failed to read values of %s", a.ID)
}

func (l *loader) loadReverse(ctx context.Context, a *schema.Attribute, ids []int64) error {
	for _, chunk := range chunks(ids) {
		rows, err := l.q.QueryContext(ctx, `
			SELECT sa.value_server_id, src.hostname
			FROM server_attribute sa
			JOIN server src ON src.server_id = sa.server_id
			WHERE sa.attribute_id = ? AND sa.value_server_id IN (`+placeholders(len(chunk))+`)`,
			append([]any{a.ReversedAttributeID}, int64Args(chunk)...)...)
		if err != nil {
			return errors.Wrapf(err, "failed to query reverse values of %s", a.ID)
		}
		vals := make(map[int64][]schema.Value)
		if err := scanValues(rows, a, vals); err != nil {
			return err
		}
		for id, vs := range vals {
			l.values[id][a.ID] = vs
		}
	}
	return nil
}

func (l *loader) loadSupernet(ctx context.Context, a *schema.Attribute, ids []int64) error {
	for _, chunk := range chunks(ids) {
		rows, err := l.q.QueryContext(ctx, `
			SELECT s.server_id, `+NarrowestNetworkSQL("s", "hostname")+`
			FROM server s
			WHERE s.intern_ip_lo IS NOT NULL AND s.server_id IN (`+placeholders(len(chunk))+`)`,
			append([]any{a.TargetServertypeID}, int64Args(chunk)...)...)
		if err != nil {
			return errors.Wrapf(err, "failed to query supernet %s", a.ID)
		}
		err = func() error {
			defer rows.Close()
			for rows.Next() {
				var id int64
				var hostname sql.NullString
				if err := rows.Scan(&id, &hostname); err != nil {
					return errors.Wrapf(err, "failed to scan supernet %s", a.ID)
				}
				if hostname.Valid {
					l.values[id][a.ID] = []schema.Value{schema.Hostname(hostname.String)}
				}
			}
			return rows.Err()
		}()
		if err != nil {
			return err
		}
	}
	return nil
}

// RelatedIDs returns, per object, the objects its relation attribute rel
// points at.
func RelatedIDs(ctx context.Context, q Queryer, rel *schema.Attribute, ids []int64) (map[int64][]int64, error) {
	var query string
	var lead any
	switch rel.Type {
	case schema.TypeHostname:
		query = `SELECT sa.server_id, sa.value_server_id FROM server_attribute sa
			WHERE sa.attribute_id = ? AND sa.server_id IN (%s)`
		lead = rel.ID
	case schema.TypeSupernet:
		query = `SELECT s.server_id, ` + NarrowestNetworkSQL("s", "server_id") + ` FROM server s
			WHERE s.intern_ip_lo IS NOT NULL AND s.server_id IN (%s)`
		lead = rel.TargetServertypeID
	case schema.TypeReverseHostname:
		query = `SELECT sa.value_server_id, sa.server_id FROM server_attribute sa
			WHERE sa.attribute_id = ? AND sa.value_server_id IN (%s)`
		lead = rel.ReversedAttributeID
	default:
		return nil, errors.Newf("attribute %s is not a relation", rel.ID)
	}

	out := make(map[int64][]int64)
	for _, chunk := range chunks(ids) {
		rows, err := q.QueryContext(ctx, fmt.Sprintf(query, placeholders(len(chunk))),
			append([]any{lead}, int64Args(chunk)...)...)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to query relation %s", rel.ID)
		}
		err = func() error {
			defer rows.Close()
			for rows.Next() {
				var id int64
				var target sql.NullInt64
				if err := rows.Scan(&id, &target); err != nil {
					return errors.Wrapf(err, "failed to scan relation %s", rel.ID)
				}
				if target.Valid {
					out[id] = append(out[id], target.Int64)
				}
			}
			return rows.Err()
		}()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// loadRelated reads the value of b's attribute from the objects reached
// through b.RelatedVia. Only stored and special attributes are followed.
func (l *loader) loadRelated(ctx context.Context, b *schema.ServertypeAttribute, ids []int64) error {
	related, err := RelatedIDs(ctx, l.q, b.RelatedVia, ids)
	if err != nil {
		return err
	}
	var targets []int64
	seen := make(map[int64]bool)
	for _, ts := range related {
		for _, t := range ts {
			if !seen[t] {
				seen[t] = true
				targets = append(targets, t)
			}
		}
	}
	if len(targets) == 0 {
		return nil
	}

	a := b.Attribute
	var vals map[int64][]schema.Value
	if a.Special {
		rows, err := LoadServerRows(ctx, l.q, l.sch, targets)
		if err != nil {
			return err
		}
		vals = make(map[int64][]schema.Value, len(rows))
		for id, r := range rows {
			if v := specialValue(r, a.ID); v != nil {
				vals[id] = []schema.Value{v}
			}
		}
	} else if vals, err = storedValues(ctx, l.q, a, targets); err != nil {
		return err
	}

	for id, ts := range related {
		for _, t := range ts {
			l.values[id][a.ID] = append(l.values[id][a.ID], vals[t]...)
		}
	}
	return nil
}

func specialValue(r *ServerRow, attrID string) schema.Value {
	switch attrID {
	case schema.AttrObjectID:
		return schema.Integer(r.ID)
	case schema.AttrHostname:
		return schema.String(r.Hostname)
	case schema.AttrServertype:
		return schema.String(r.Servertype)
	case schema.AttrInternIP:
		return r.InternIP
	}
	return nil
}

func (l *loader) server(row *ServerRow) *object.Server {
	keys := l.keys[row.ID]
	values := make(map[string]schema.Value, len(keys))
	for _, k := range keys {
		a, err := l.sch.Attribute(k)
		if err != nil {
			continue
		}
		if a.Special {
			if k != schema.AttrObjectID {
				values[k] = specialValue(row, k)
			}
			continue
		}
		values[k] = collect(a, l.values[row.ID][k])
	}
	return object.Load(row.ID, values, keys)
}

// collect folds loaded elements into the attribute's value shape.
func collect(a *schema.Attribute, vs []schema.Value) schema.Value {
	if a.Multi {
		return schema.NewSet(vs...)
	}
	if len(vs) == 0 {
		return nil
	}
	return vs[0]
}
