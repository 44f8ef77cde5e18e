package query

import (
	"sort"
	"strings"

	"github.com/teranos/serveradmin/serverdb/filter"
	"github.com/teranos/serveradmin/serverdb/schema"
)

// objectAlias is the alias of the server row in compiled statements.
const objectAlias = "s"

// queryBuilder accumulates WHERE clauses and parameters.
type queryBuilder struct {
	whereClauses []string
	args         []any
}

func (qb *queryBuilder) addClause(clause string, args ...any) {
	qb.whereClauses = append(qb.whereClauses, clause)
	qb.args = append(qb.args, args...)
}

func (qb *queryBuilder) build() string {
	if len(qb.whereClauses) == 0 {
		return "1"
	}
	return "(" + strings.Join(qb.whereClauses, ") AND (") + ")"
}

// compiled is a query resolved against the schema.
type compiled struct {
	filters     map[string]filter.Filter // bound filters by attribute id
	servertypes []*schema.Servertype     // servertypes objects can have
	where       string
	whereArgs   []any
	order       []string
	orderArgs   []any
}

// compile resolves every attribute and binds every filter before anything
// touches the store.
func compile(sch *schema.Schema, filters map[string]filter.Filter, o *options) (*compiled, error) {
	c := &compiled{filters: make(map[string]filter.Filter, len(filters))}

	involved := sch.Servertypes()
	if f, ok := filters[schema.AttrServertype]; ok {
		a, _ := sch.Attribute(schema.AttrServertype)
		bound, err := f.Bind(filter.For(a))
		if err != nil {
			return nil, err
		}
		var narrowed []*schema.Servertype
		for _, st := range involved {
			if bound.Matches(schema.String(st.ID)) {
				narrowed = append(narrowed, st)
			}
		}
		involved = narrowed
	}
	c.servertypes = involved

	ids := make([]string, 0, len(filters))
	for id := range filters {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	al := &aliases{}
	qb := &queryBuilder{}
	if len(involved) == 0 {
		qb.addClause("0")
	}
	for _, id := range ids {
		a, err := sch.Resolve(id, involved)
		if err != nil {
			return nil, err
		}
		bound, err := filters[id].Bind(filter.For(a))
		if err != nil {
			return nil, err
		}
		c.filters[id] = bound

		clause, args, err := predicate(bound, groups(a, involved, objectAlias, al))
		if err != nil {
			return nil, err
		}
		qb.addClause(clause, args...)
	}
	c.where, c.whereArgs = qb.build(), qb.args

	for _, id := range o.restrict {
		if _, err := sch.Resolve(id, involved); err != nil {
			return nil, err
		}
	}
	for _, id := range o.orderBy {
		a, err := sch.Resolve(id, involved)
		if err != nil {
			return nil, err
		}
		expr, args := orderKey(groups(a, involved, objectAlias, al))
		c.order = append(c.order, expr)
		c.orderArgs = append(c.orderArgs, args...)
	}
	c.order = append(c.order, objectAlias+".server_id")
	return c, nil
}

// group is a target valid for the objects of some servertypes. A nil
// servertype list means every servertype not claimed by another group.
// At most one group has a nil list and it comes last.
type group struct {
	servertypes []string
	target      target
}

// groups returns where the values of a live. Stored values need no
// servertype condition since only objects binding a carry rows. Derived
// values are computed for the servertypes binding a directly, and bindings
// reading a through a relation get a group per relation.
func groups(a *schema.Attribute, involved []*schema.Servertype, obj string, al *aliases) []group {
	if a.Special {
		return []group{{target: specialTarget{a: a, obj: obj}}}
	}

	var out []group
	direct := []string{}
	byVia := make(map[string]int)
	for _, st := range involved {
		b, ok := st.Binding(a.ID)
		if !ok {
			continue
		}
		if b.RelatedVia == nil {
			direct = append(direct, st.ID)
			continue
		}
		i, seen := byVia[b.RelatedVia.ID]
		if !seen {
			i = len(out)
			byVia[b.RelatedVia.ID] = i
			out = append(out, group{servertypes: []string{}, target: newRelatedTarget(a, b.RelatedVia, obj, al)})
		}
		out[i].servertypes = append(out[i].servertypes, st.ID)
	}

	switch a.Type {
	case schema.TypeReverseHostname:
		out = append(out, group{servertypes: direct, target: newReverseTarget(a, obj, al)})
	case schema.TypeSupernet:
		out = append(out, group{servertypes: direct, target: newSupernetTarget(a, obj, al)})
	default:
		return append(out, group{target: newStoredTarget(a, obj, al)})
	}
	return append(out, group{target: nullTarget{a: a}})
}

// claimed lists the servertypes of all groups with an explicit list.
func claimed(gs []group) []string {
	var out []string
	for _, g := range gs {
		out = append(out, g.servertypes...)
	}
	return out
}

func servertypeCondition(gs []group, g group) (string, []any) {
	list := g.servertypes
	op := "IN"
	if list == nil {
		list = claimed(gs)
		op = "NOT IN"
	}
	if len(list) == 0 {
		if op == "IN" {
			return "0", nil
		}
		return "1", nil
	}
	args := make([]any, len(list))
	for i, id := range list {
		args[i] = id
	}
	return objectAlias + ".servertype_id " + op + " (" + placeholders(len(list)) + ")", args
}

func predicate(f filter.Filter, gs []group) (string, []any, error) {
	if len(gs) == 1 && gs[0].servertypes == nil {
		return f.SQL(gs[0].target)
	}
	var parts []string
	var args []any
	for _, g := range gs {
		cond, condArgs := servertypeCondition(gs, g)
		sql, sqlArgs, err := f.SQL(g.target)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, "("+cond+" AND ("+sql+"))")
		args = append(append(args, condArgs...), sqlArgs...)
	}
	return strings.Join(parts, " OR "), args, nil
}

func orderKey(gs []group) (string, []any) {
	if len(gs) == 1 && gs[0].servertypes == nil {
		return gs[0].target.order()
	}
	var b strings.Builder
	var args []any
	b.WriteString("CASE")
	for _, g := range gs {
		cond, condArgs := servertypeCondition(gs, g)
		expr, exprArgs := g.target.order()
		b.WriteString(" WHEN " + cond + " THEN " + expr)
		args = append(append(args, condArgs...), exprArgs...)
	}
	b.WriteString(" END")
	return b.String(), args
}
