package storage

import (
	"context"
	"time"

	"github.com/teranos/serveradmin/errors"
	"github.com/teranos/serveradmin/serverdb/schema"
)

// InsertServer inserts a server row and returns its new object id.
func InsertServer(ctx context.Context, q Queryer, hostname, servertype string, internIP schema.Value) (int64, error) {
	text, lo, hi := internIPColumns(internIP)
	res, err := q.ExecContext(ctx, `
		INSERT INTO server (hostname, servertype_id, intern_ip, intern_ip_lo, intern_ip_hi)
		VALUES (?, ?, ?, ?, ?)`, hostname, servertype, text, lo, hi)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to insert server %s", hostname)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "failed to read new object id")
	}
	return id, nil
}

// UpdateHostname renames an object.
func UpdateHostname(ctx context.Context, q Queryer, id int64, hostname string) error {
	_, err := q.ExecContext(ctx, `UPDATE server SET hostname = ? WHERE server_id = ?`, hostname, id)
	return errors.Wrapf(err, "failed to rename object %d", id)
}

// UpdateInternIP sets or clears an object's intern_ip.
func UpdateInternIP(ctx context.Context, q Queryer, id int64, v schema.Value) error {
	text, lo, hi := internIPColumns(v)
	_, err := q.ExecContext(ctx,
		`UPDATE server SET intern_ip = ?, intern_ip_lo = ?, intern_ip_hi = ? WHERE server_id = ?`,
		text, lo, hi, id)
	return errors.Wrapf(err, "failed to set intern_ip of object %d", id)
}

// DeleteServers removes objects; their attribute rows cascade.
func DeleteServers(ctx context.Context, q Queryer, ids []int64) error {
	for _, chunk := range chunks(ids) {
		if _, err := q.ExecContext(ctx,
			`DELETE FROM server WHERE server_id IN (`+placeholders(len(chunk))+`)`,
			int64Args(chunk)...); err != nil {
			return errors.Wrap(err, "failed to delete servers")
		}
	}
	return nil
}

// InsertAttribute adds one attribute row.
func InsertAttribute(ctx context.Context, q Queryer, id int64, attrID string, row AttributeRow) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO server_attribute (server_id, attribute_id, value, value_number, value_ip_lo, value_ip_hi, value_server_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, attrID, row.Value, row.Number, row.IPLo, row.IPHi, row.ServerID)
	return errors.Wrapf(err, "failed to insert %s of object %d", attrID, id)
}

// DeleteAttribute removes all rows of an attribute of one object.
func DeleteAttribute(ctx context.Context, q Queryer, id int64, attrID string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM server_attribute WHERE server_id = ? AND attribute_id = ?`, id, attrID)
	return errors.Wrapf(err, "failed to delete %s of object %d", attrID, id)
}

// DeleteAttributeValue removes one row of a multi attribute.
func DeleteAttributeValue(ctx context.Context, q Queryer, id int64, attrID string, row AttributeRow) error {
	_, err := q.ExecContext(ctx,
		`DELETE FROM server_attribute WHERE server_id = ? AND attribute_id = ? AND value = ?`,
		id, attrID, row.Value)
	return errors.Wrapf(err, "failed to delete %s of object %d", attrID, id)
}

// Target is an object referenced by hostname.
type Target struct {
	ID         int64
	Servertype string
}

// ResolveHostnames looks up the objects named by hostnames. Missing names
// are absent from the result.
func ResolveHostnames(ctx context.Context, q Queryer, hostnames []string) (map[string]Target, error) {
	out := make(map[string]Target, len(hostnames))
	for start := 0; start < len(hostnames); start += ChunkSize {
		end := min(start+ChunkSize, len(hostnames))
		chunk := hostnames[start:end]
		rows, err := q.QueryContext(ctx,
			`SELECT hostname, server_id, servertype_id FROM server WHERE hostname IN (`+placeholders(len(chunk))+`)`,
			stringArgs(chunk)...)
		if err != nil {
			return nil, errors.Wrap(err, "failed to resolve hostnames")
		}
		err = func() error {
			defer rows.Close()
			for rows.Next() {
				var name string
				var t Target
				if err := rows.Scan(&name, &t.ID, &t.Servertype); err != nil {
					return errors.Wrap(err, "failed to scan hostname")
				}
				out[name] = t
			}
			return rows.Err()
		}()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Reference is an attribute row pointing at another object.
type Reference struct {
	ObjectID    int64
	AttributeID string
	TargetID    int64
}

// ReferencesTo returns relation rows pointing at any of ids from objects
// outside ids.
func ReferencesTo(ctx context.Context, q Queryer, ids []int64) ([]Reference, error) {
	var out []Reference
	exclude := make(map[int64]bool, len(ids))
	for _, id := range ids {
		exclude[id] = true
	}
	for _, chunk := range chunks(ids) {
		rows, err := q.QueryContext(ctx, `
			SELECT server_id, attribute_id, value_server_id FROM server_attribute
			WHERE value_server_id IN (`+placeholders(len(chunk))+`)
			ORDER BY server_id, attribute_id`,
			int64Args(chunk)...)
		if err != nil {
			return nil, errors.Wrap(err, "failed to query references")
		}
		err = func() error {
			defer rows.Close()
			for rows.Next() {
				var r Reference
				if err := rows.Scan(&r.ObjectID, &r.AttributeID, &r.TargetID); err != nil {
					return errors.Wrap(err, "failed to scan reference")
				}
				if !exclude[r.ObjectID] {
					out = append(out, r)
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

// OverlappingAddresses returns the objects of servertype whose intern_ip
// range overlaps v, ordered by object id.
func OverlappingAddresses(ctx context.Context, q Queryer, servertype string, v schema.Value) ([]ServerRow, error) {
	lo, hi, ok := schema.RangeKeys(v)
	if !ok {
		return nil, nil
	}
	rows, err := q.QueryContext(ctx, `
		SELECT server_id, hostname, servertype_id FROM server
		WHERE servertype_id = ? AND intern_ip_lo <= ? AND intern_ip_hi >= ?
		ORDER BY server_id`, servertype, hi, lo)
	if err != nil {
		return nil, errors.Wrap(err, "failed to check intern_ip overlap")
	}
	defer rows.Close()
	var out []ServerRow
	for rows.Next() {
		var r ServerRow
		if err := rows.Scan(&r.ID, &r.Hostname, &r.Servertype); err != nil {
			return nil, errors.Wrap(err, "failed to scan overlapping server")
		}
		out = append(out, r)
	}
	return out, errors.Wrap(rows.Err(), "failed to read overlapping servers")
}

// CommitRecord is a change_commit row.
type CommitRecord struct {
	ID      string
	User    string
	At      time.Time
	Created int
	Changed int
	Deleted int
}

// InsertCommit writes the change_commit row. Being the first write of a
// commit it also takes the database write lock.
func InsertCommit(ctx context.Context, q Queryer, c CommitRecord) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO change_commit (commit_id, app_user, change_on) VALUES (?, ?, ?)`,
		c.ID, c.User, c.At.UTC())
	return errors.Wrap(err, "failed to record commit")
}

// FinishCommit stores the object counts of a commit.
func FinishCommit(ctx context.Context, q Queryer, c CommitRecord) error {
	_, err := q.ExecContext(ctx,
		`UPDATE change_commit SET created = ?, changed = ?, deleted = ? WHERE commit_id = ?`,
		c.Created, c.Changed, c.Deleted, c.ID)
	return errors.Wrap(err, "failed to update commit")
}

// Change log actions.
const (
	LogCreate = "create"
	LogChange = "change"
	LogDelete = "delete"
)

// InsertChangeLog records the JSON payload of one object of a commit.
func InsertChangeLog(ctx context.Context, q Queryer, commitID string, objectID int64, action string, payload []byte) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO change_log (commit_id, object_id, action, payload) VALUES (?, ?, ?, ?)`,
		commitID, objectID, action, string(payload))
	return errors.Wrapf(err, "failed to log %s of object %d", action, objectID)
}

// ServertypeCount is one line of Stats.
type ServertypeCount struct {
	Servertype string
	Objects    int
}

// Stats counts objects per servertype and the recorded commits.
func Stats(ctx context.Context, q Queryer) ([]ServertypeCount, int, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT st.servertype_id, COUNT(s.server_id)
		FROM servertype st LEFT JOIN server s ON s.servertype_id = st.servertype_id
		GROUP BY st.servertype_id ORDER BY st.servertype_id`)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to count objects")
	}
	defer rows.Close()
	var out []ServertypeCount
	for rows.Next() {
		var c ServertypeCount
		if err := rows.Scan(&c.Servertype, &c.Objects); err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan count")
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, "failed to read counts")
	}
	var commits int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM change_commit`).Scan(&commits); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count commits")
	}
	return out, commits, nil
}
