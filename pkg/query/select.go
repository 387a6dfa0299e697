package query

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/polyglot/pkg/core"
	"github.com/leapstack-labs/polyglot/pkg/dialect"
	"github.com/leapstack-labs/polyglot/pkg/schema"
)

// Statement is a rendered SQL statement with its bound arguments.
type Statement struct {
	SQL  string
	Args []any
}

// Query describes a read over one entity.
type Query struct {
	Entity   *schema.Entity
	Language string
	Mode     Mode
	Where    Expr
	Order    []Order
	Limit    int
	Offset   int
}

// NodeLayout locates the columns of one entity in a selected row. The
// columns are the id, the shared fields and, when Translated is set, the
// language code followed by the translated fields.
type NodeLayout struct {
	// Path is empty for the root entity.
	Path       string
	Entity     *schema.Entity
	Translated bool
	Offset     int
}

// Width is the number of columns of the node.
func (n NodeLayout) Width() int {
	w := 1 + len(n.Entity.SharedFields())
	if n.Translated {
		w += 1 + len(n.Entity.TranslatedFields())
	}
	return w
}

// Layout lists the nodes of a selected row, root first.
type Layout []NodeLayout

// Columns is the total number of columns of a row.
func (l Layout) Columns() int {
	n := 0
	for _, node := range l {
		n += node.Width()
	}
	return n
}

// Projection names one column of a values query.
type Projection struct {
	Key string
	// Field is nil for the id and language_code pseudo fields.
	Field *schema.Field
	// Root is set for fields declared on the queried entity itself.
	Root bool
}

func (q Query) compiler(d *dialect.Dialect) (*compiler, error) {
	if q.Entity == nil {
		return nil, fmt.Errorf("query has no entity")
	}
	return newCompiler(q.Entity, d, q.Language, q.Mode, "")
}

// ordering returns the explicit order, else the entity default, else id.
func (q Query) ordering() []Order {
	if len(q.Order) > 0 {
		return q.Order
	}
	out := make([]Order, 0, len(q.Entity.Ordering)+1)
	for _, s := range q.Entity.Ordering {
		out = append(out, ParseOrder(s))
	}
	if len(out) == 0 {
		out = append(out, Order{Path: []string{FieldID}})
	}
	return out
}

func (c *compiler) whereClause(e Expr) (fragment, error) {
	w, err := c.where(e, false)
	if err != nil || w.empty() {
		return w, err
	}
	w.text = "WHERE " + w.text
	return w, nil
}

func (q Query) limitClause(d *dialect.Dialect) fragment {
	return fragment{text: d.LimitOffset(q.Limit, q.Offset)}
}

// nodeColumns lists the selected columns of n.
func (c *compiler) nodeColumns(n *node, translated bool) []string {
	cols := []string{c.quote(n.shared, schema.ColumnID)}
	for _, f := range n.entity.SharedFields() {
		cols = append(cols, c.quote(n.shared, f.ColumnName()))
	}
	if translated {
		t := c.translation(n)
		cols = append(cols, c.quote(t, schema.ColumnLanguage))
		for _, f := range n.entity.TranslatedFields() {
			cols = append(cols, c.quote(t, f.ColumnName()))
		}
	}
	return cols
}

// related joins the foreign key chain named by path and returns one node per
// segment.
func (c *compiler) related(path []string) ([]*node, error) {
	n := c.root
	out := make([]*node, 0, len(path))
	for _, seg := range path {
		f, ok := n.entity.Field(seg)
		if !ok || !f.IsRelation() {
			return nil, core.Definitionf(n.entity.Name, seg, "cannot load related %q: not a foreign key", strings.Join(path, Separator))
		}
		next, err := c.forward(n, f)
		if err != nil {
			return nil, err
		}
		n = next
		out = append(out, n)
	}
	return out, nil
}

// Select renders the row query of a queryset. related names foreign key
// paths whose targets are loaded in the same row, each in the query language.
func (q Query) Select(d *dialect.Dialect, related ...string) (Statement, Layout, error) {
	c, err := q.compiler(d)
	if err != nil {
		return Statement{}, nil, err
	}
	where, err := c.whereClause(q.Where)
	if err != nil {
		return Statement{}, nil, err
	}
	order, err := c.orderBy(q.ordering())
	if err != nil {
		return Statement{}, nil, err
	}

	rootTrans := q.Mode == Translated && c.root.entity.Translatable()
	cols := c.nodeColumns(c.root, rootTrans)
	layout := Layout{{Entity: c.root.entity, Translated: rootTrans}}
	seen := map[string]bool{}
	for _, p := range related {
		nodes, err := c.related(SplitPath(p))
		if err != nil {
			return Statement{}, nil, err
		}
		for _, n := range nodes {
			key := strings.TrimPrefix(n.key, Separator)
			if seen[key] {
				continue
			}
			seen[key] = true
			trans := n.entity.Translatable()
			layout = append(layout, NodeLayout{Path: key, Entity: n.entity, Translated: trans, Offset: len(cols)})
			cols = append(cols, c.nodeColumns(n, trans)...)
		}
	}

	sel := fragment{text: "SELECT " + strings.Join(cols, ", ") + " FROM"}
	return c.assemble(sel, c.from(), where, order, q.limitClause(d)), layout, nil
}

// IDs renders a query returning the ids of the matched rows in order.
func (q Query) IDs(d *dialect.Dialect) (Statement, error) {
	c, err := q.compiler(d)
	if err != nil {
		return Statement{}, err
	}
	where, err := c.whereClause(q.Where)
	if err != nil {
		return Statement{}, err
	}
	order, err := c.orderBy(q.ordering())
	if err != nil {
		return Statement{}, err
	}
	sel := fragment{text: "SELECT " + c.quote(c.root.shared, schema.ColumnID) + " FROM"}
	return c.assemble(sel, c.from(), where, order, q.limitClause(d)), nil
}

// Values renders a projection of paths. Without paths every field of the
// entity is projected, preceded by its id.
func (q Query) Values(d *dialect.Dialect, paths ...string) (Statement, []Projection, error) {
	c, err := q.compiler(d)
	if err != nil {
		return Statement{}, nil, err
	}
	where, err := c.whereClause(q.Where)
	if err != nil {
		return Statement{}, nil, err
	}
	order, err := c.orderBy(q.ordering())
	if err != nil {
		return Statement{}, nil, err
	}

	if len(paths) == 0 {
		paths = append(paths, FieldID)
		for _, f := range c.root.entity.Fields() {
			paths = append(paths, f.Name)
		}
	}
	cols := make([]string, 0, len(paths))
	proj := make([]Projection, 0, len(paths))
	for _, p := range paths {
		segs := SplitPath(p)
		ref, err := c.singleValued(segs, "project")
		if err != nil {
			return Statement{}, nil, err
		}
		cols = append(cols, c.sql(ref))
		proj = append(proj, Projection{Key: p, Field: ref.field, Root: len(segs) == 1})
	}

	sel := fragment{text: "SELECT " + strings.Join(cols, ", ") + " FROM"}
	return c.assemble(sel, c.from(), where, order, q.limitClause(d)), proj, nil
}

// Count renders a row count. A limited query is counted through a subquery.
func (q Query) Count(d *dialect.Dialect) (Statement, error) {
	if q.Limit > 0 || q.Offset > 0 {
		inner, err := q.IDs(d)
		if err != nil {
			return Statement{}, err
		}
		inner.SQL = "SELECT COUNT(*) FROM (" + inner.SQL + ") AS " + d.QuoteIdentifier("sub")
		return inner, nil
	}
	c, err := q.compiler(d)
	if err != nil {
		return Statement{}, err
	}
	where, err := c.whereClause(q.Where)
	if err != nil {
		return Statement{}, err
	}
	return c.assemble(fragment{text: "SELECT COUNT(*) FROM"}, c.from(), where), nil
}

// Exists renders a query returning at most one row when any row matches.
func (q Query) Exists(d *dialect.Dialect) (Statement, error) {
	c, err := q.compiler(d)
	if err != nil {
		return Statement{}, err
	}
	where, err := c.whereClause(q.Where)
	if err != nil {
		return Statement{}, err
	}
	limit := fragment{text: d.LimitOffset(1, q.Offset)}
	return c.assemble(fragment{text: "SELECT 1 FROM"}, c.from(), where, limit), nil
}

// Aggregate renders one row holding every aggregate, in order. Limit and
// Offset do not apply.
func (q Query) Aggregate(d *dialect.Dialect, aggs ...Aggregate) (Statement, error) {
	if len(aggs) == 0 {
		return Statement{}, fmt.Errorf("no aggregates requested")
	}
	c, err := q.compiler(d)
	if err != nil {
		return Statement{}, err
	}
	where, err := c.whereClause(q.Where)
	if err != nil {
		return Statement{}, err
	}
	names := map[string]bool{}
	terms := make([]string, 0, len(aggs))
	for _, a := range aggs {
		switch a.Func {
		case AggCount, AggSum, AggAvg, AggMin, AggMax:
		default:
			return Statement{}, fmt.Errorf("unsupported aggregate %q", a.Func)
		}
		name := a.Name()
		if names[name] {
			return Statement{}, fmt.Errorf("duplicate aggregate %q", name)
		}
		names[name] = true
		ref, err := c.singleValued(a.Path, "aggregate")
		if err != nil {
			return Statement{}, err
		}
		terms = append(terms, fmt.Sprintf("%s(%s) AS %s", a.Func, c.sql(ref), d.QuoteIdentifier(name)))
	}
	sel := fragment{text: "SELECT " + strings.Join(terms, ", ") + " FROM"}
	return c.assemble(sel, c.from(), where), nil
}
