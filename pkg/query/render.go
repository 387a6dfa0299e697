package query

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/leapstack-labs/polyglot/pkg/core"
	"github.com/leapstack-labs/polyglot/pkg/schema"
)

// Identifier is implemented by values that stand for a stored row, such as
// instances passed as foreign key values.
type Identifier interface {
	PrimaryKey() int64
}

// where renders an expression tree. negated tracks whether the node sits
// under an odd number of NOTs.
func (c *compiler) where(e Expr, negated bool) (fragment, error) {
	switch x := e.(type) {
	case nil:
		return fragment{}, nil
	case Cond:
		return c.cond(x, negated)
	case AndExpr:
		return c.group(x.Exprs, " AND ", negated)
	case OrExpr:
		return c.group(x.Exprs, " OR ", negated)
	case NotExpr:
		inner, err := c.where(x.Expr, !negated)
		if err != nil {
			return fragment{}, err
		}
		return fragment{text: "NOT (" + inner.text + ")", args: inner.args}, nil
	default:
		return fragment{}, fmt.Errorf("unsupported expression %T", e)
	}
}

func (c *compiler) group(exprs []Expr, op string, negated bool) (fragment, error) {
	parts := make([]string, 0, len(exprs))
	var args []any
	for _, e := range exprs {
		f, err := c.where(e, negated)
		if err != nil {
			return fragment{}, err
		}
		parts = append(parts, f.text)
		args = append(args, f.args...)
	}
	return fragment{text: "(" + strings.Join(parts, op) + ")", args: args}, nil
}

// cond renders one leaf. Leaves crossing a reverse relation become a
// semi-join on the root id so they never multiply root rows.
func (c *compiler) cond(x Cond, negated bool) (fragment, error) {
	if c.prefix == "" && multiValued(c.root.entity, x.Path) {
		return c.semiJoin(x)
	}
	ref, l, err := c.resolve(x.Path, true)
	if err != nil {
		return fragment{}, err
	}
	return c.leaf(ref, l, x.Value, negated)
}

func (c *compiler) semiJoin(x Cond) (fragment, error) {
	c.subs++
	sub, err := newCompiler(c.root.entity, c.d, c.lang, Untranslated, fmt.Sprintf("q%d_", c.subs))
	if err != nil {
		return fragment{}, err
	}
	ref, l, err := sub.resolve(x.Path, true)
	if err != nil {
		return fragment{}, err
	}
	inner, err := sub.leaf(ref, l, x.Value, false)
	if err != nil {
		return fragment{}, err
	}
	from := sub.from()
	args := append(append([]any{}, from.args...), inner.args...)
	return fragment{
		text: fmt.Sprintf("%s IN (SELECT %s FROM %s WHERE %s)",
			c.quote(c.root.shared, schema.ColumnID),
			sub.quote(sub.root.shared, schema.ColumnID),
			from.text, inner.text),
		args: args,
	}, nil
}

// leaf renders a single lookup against a column.
func (c *compiler) leaf(ref colRef, l Lookup, value any, negated bool) (fragment, error) {
	col := c.sql(ref)
	value = normalize(value)

	if l == Exact && value == nil {
		l, value = IsNull, true
	}

	var f fragment
	switch l {
	case Exact:
		f = fragment{text: col + " = " + marker, args: []any{value}}
	case IExact:
		f = fragment{text: "LOWER(" + col + ") = LOWER(" + marker + ")", args: []any{value}}
	case Gt, Gte, Lt, Lte:
		f = fragment{text: col + " " + comparison[l] + " " + marker, args: []any{value}}
	case Contains, IContains, StartsWith, IStartsWith, EndsWith, IEndsWith:
		style := c.d.MatchStyle(!strings.HasPrefix(string(l), "i"))
		leading := l == Contains || l == IContains || l == EndsWith || l == IEndsWith
		trailing := l == Contains || l == IContains || l == StartsWith || l == IStartsWith
		pattern := style.Pattern(fmt.Sprint(value), leading, trailing)
		f = fragment{text: col + " " + style.Operator + " " + marker + style.Clause, args: []any{pattern}}
	case In:
		values, ok := sliceValues(value)
		if !ok {
			return fragment{}, lookupValueError(ref, l, "expects a slice")
		}
		if len(values) == 0 {
			return fragment{text: "1 = 0"}, nil
		}
		f = fragment{text: col + " IN (" + strings.TrimSuffix(strings.Repeat(marker+", ", len(values)), ", ") + ")", args: values}
	case Range:
		values, ok := sliceValues(value)
		if !ok || len(values) != 2 {
			return fragment{}, lookupValueError(ref, l, "expects two bounds")
		}
		f = fragment{text: col + " BETWEEN " + marker + " AND " + marker, args: values}
	case IsNull:
		isNull, ok := value.(bool)
		if !ok {
			return fragment{}, lookupValueError(ref, l, "expects a bool")
		}
		if isNull {
			return fragment{text: col + " IS NULL"}, nil
		}
		return fragment{text: col + " IS NOT NULL"}, nil
	default:
		return fragment{}, lookupValueError(ref, l, "is not supported")
	}

	if negated {
		f.text = "(" + f.text + " AND " + col + " IS NOT NULL)"
	}
	return f, nil
}

var comparison = map[Lookup]string{Gt: ">", Gte: ">=", Lt: "<", Lte: "<="}

func lookupValueError(ref colRef, l Lookup, reason string) error {
	name := ref.column
	if ref.field != nil {
		name = ref.field.Name
	}
	return core.Definitionf("", name, "lookup %s %s", l, reason)
}

// normalize replaces row identifiers with their keys.
func normalize(v any) any {
	if id, ok := v.(Identifier); ok {
		return id.PrimaryKey()
	}
	return v
}

// sliceValues flattens any slice or array into normalized values.
func sliceValues(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = normalize(rv.Index(i).Interface())
	}
	return out, true
}

// orderBy renders ORDER BY terms.
func (c *compiler) orderBy(orders []Order) (fragment, error) {
	if len(orders) == 0 {
		return fragment{}, nil
	}
	terms := make([]string, 0, len(orders))
	for _, o := range orders {
		ref, err := c.singleValued(o.Path, "order by")
		if err != nil {
			return fragment{}, err
		}
		dir := " ASC"
		if o.Desc {
			dir = " DESC"
		}
		terms = append(terms, c.sql(ref)+dir)
	}
	return fragment{text: "ORDER BY " + strings.Join(terms, ", ")}, nil
}

// singleValued resolves a path that must not cross reverse relations nor
// carry a lookup.
func (c *compiler) singleValued(path []string, use string) (colRef, error) {
	if multiValued(c.root.entity, path) {
		return colRef{}, core.Definitionf(c.root.entity.Name, strings.Join(path, Separator), "cannot %s a multi-valued relation", use)
	}
	ref, _, err := c.resolve(path, false)
	return ref, err
}
