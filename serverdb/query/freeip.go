package query

import (
	"context"
	"database/sql"
	"iter"
	"net/netip"

	"go4.org/netipx"

	"github.com/teranos/serveradmin/errors"
	"github.com/teranos/serveradmin/logger"
	"github.com/teranos/serveradmin/serverdb/schema"
	"github.com/teranos/serveradmin/serverdb/storage"
)

// FreeIPAddrs yields the addresses of the narrowest network matched by the
// query that no object uses, in ascending order and ending with the
// network's last address. An address is used when it is the intern_ip of
// a host or loadbalancer, or a value of an ip or ipv6 attribute.
//
// Every range reads the store afresh; within one range no address repeats.
func (q *Query) FreeIPAddrs(ctx context.Context) iter.Seq2[netip.Addr, error] {
	e := q.executor
	return func(yield func(netip.Addr, error) bool) {
		tx, err := e.db.BeginTx(ctx, nil)
		if err != nil {
			yield(netip.Addr{}, errors.Wrap(err, "failed to begin read transaction"))
			return
		}
		defer tx.Rollback()

		network, err := q.narrowestNetwork(ctx, tx)
		if err != nil {
			yield(netip.Addr{}, err)
			return
		}
		used, err := usedAddrs(ctx, tx, e.schema, network)
		if err != nil {
			yield(netip.Addr{}, err)
			return
		}
		if e.log != nil {
			e.log.Debugw("allocating addresses",
				logger.FieldNetwork, network.String(),
				logger.FieldCount, len(used.Prefixes()),
			)
		}

		r := netipx.RangeOfPrefix(network)
		for addr := r.From(); addr.IsValid() && addr.Compare(r.To()) <= 0; addr = addr.Next() {
			if used.Contains(addr) {
				continue
			}
			if !yield(addr, nil) {
				return
			}
		}
	}
}

// narrowestNetwork returns the longest prefix among the intern_ip networks
// of the matched objects.
func (q *Query) narrowestNetwork(ctx context.Context, tx storage.Queryer) (netip.Prefix, error) {
	ids, err := q.ids(ctx, tx)
	if err != nil {
		return netip.Prefix{}, err
	}
	rows, err := storage.LoadServerRows(ctx, tx, q.executor.schema, ids)
	if err != nil {
		return netip.Prefix{}, err
	}
	var best netip.Prefix
	for _, id := range ids {
		n, ok := rows[id].InternIP.(schema.Network)
		if !ok {
			continue
		}
		if !best.IsValid() || n.Prefix.Bits() > best.Bits() {
			best = n.Prefix
		}
	}
	if !best.IsValid() {
		return netip.Prefix{}, errors.NewNotFoundError("%s matches no network", q)
	}
	return best, nil
}

// usedAddrs collects the addresses in network that objects already use.
func usedAddrs(ctx context.Context, tx storage.Queryer, sch *schema.Schema, network netip.Prefix) (*netipx.IPSet, error) {
	lo, hi, _ := schema.RangeKeys(schema.Network{Prefix: network})

	var b netipx.IPSetBuilder
	add := func(rows *sql.Rows, err error) error {
		if err != nil {
			return errors.Wrap(err, "failed to query used addresses")
		}
		defer rows.Close()
		for rows.Next() {
			var text string
			if err := rows.Scan(&text); err != nil {
				return errors.Wrap(err, "failed to scan used address")
			}
			addr, err := netip.ParseAddr(text)
			if err != nil {
				return errors.Wrapf(err, "corrupt address %q", text)
			}
			b.Add(addr.Unmap())
		}
		return errors.Wrap(rows.Err(), "failed to read used addresses")
	}

	err := add(tx.QueryContext(ctx, `
		SELECT s.intern_ip FROM server s
		JOIN servertype st ON st.servertype_id = s.servertype_id
		WHERE st.ip_addr_type IN ('host', 'loadbalancer')
			AND s.intern_ip_lo >= ? AND s.intern_ip_hi <= ?`, lo, hi))
	if err != nil {
		return nil, err
	}

	var addrAttrs []any
	for _, a := range sch.Attributes() {
		if a.Type == schema.TypeIP || a.Type == schema.TypeIPv6 {
			addrAttrs = append(addrAttrs, a.ID)
		}
	}
	if len(addrAttrs) > 0 {
		err = add(tx.QueryContext(ctx, `
			SELECT sa.value FROM server_attribute sa
			JOIN server s ON s.server_id = sa.server_id
			JOIN servertype st ON st.servertype_id = s.servertype_id
			WHERE st.ip_addr_type != 'null'
				AND sa.attribute_id IN (`+placeholders(len(addrAttrs))+`)
				AND sa.value_ip_lo >= ? AND sa.value_ip_hi <= ?`,
			append(addrAttrs, lo, hi)...))
		if err != nil {
			return nil, err
		}
	}

	set, err := b.IPSet()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build address set")
	}
	return set, nil
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	out := "?"
	for i := 1; i < n; i++ {
		out += ", ?"
	}
	return out
}
