package query

import (
	"maps"
	"slices"
	"strings"
)

// Separator joins the segments of a field path.
const Separator = "__"

// Lookup is the comparison applied to the value at the end of a path.
type Lookup string

// Supported lookups.
const (
	Exact       Lookup = "exact"
	IExact      Lookup = "iexact"
	Contains    Lookup = "contains"
	IContains   Lookup = "icontains"
	StartsWith  Lookup = "startswith"
	IStartsWith Lookup = "istartswith"
	EndsWith    Lookup = "endswith"
	IEndsWith   Lookup = "iendswith"
	In          Lookup = "in"
	Gt          Lookup = "gt"
	Gte         Lookup = "gte"
	Lt          Lookup = "lt"
	Lte         Lookup = "lte"
	IsNull      Lookup = "isnull"
	Range       Lookup = "range"
)

var lookups = map[string]Lookup{
	string(Exact): Exact, string(IExact): IExact,
	string(Contains): Contains, string(IContains): IContains,
	string(StartsWith): StartsWith, string(IStartsWith): IStartsWith,
	string(EndsWith): EndsWith, string(IEndsWith): IEndsWith,
	string(In): In, string(Gt): Gt, string(Gte): Gte,
	string(Lt): Lt, string(Lte): Lte,
	string(IsNull): IsNull, string(Range): Range,
}

// ParseLookup returns the lookup named s.
func ParseLookup(s string) (Lookup, bool) {
	l, ok := lookups[s]
	return l, ok
}

// Expr is a node of a boolean filter expression.
type Expr interface {
	exprNode()
}

// Cond compares the value reached by Path with Value. Path holds the raw
// segments; a trailing lookup segment is resolved at compile time.
type Cond struct {
	Path  []string
	Value any
}

// AndExpr is satisfied when every child is.
type AndExpr struct {
	Exprs []Expr
}

// OrExpr is satisfied when any child is.
type OrExpr struct {
	Exprs []Expr
}

// NotExpr negates its child. Rows whose compared column is NULL satisfy the
// negation.
type NotExpr struct {
	Expr Expr
}

func (Cond) exprNode()    {}
func (AndExpr) exprNode() {}
func (OrExpr) exprNode()  {}
func (NotExpr) exprNode() {}

// Q builds a condition from a path such as "translated_field__startswith".
func Q(path string, value any) Expr {
	return Cond{Path: SplitPath(path), Value: value}
}

// And combines expressions; nil children are dropped.
func And(exprs ...Expr) Expr {
	return combine(exprs, func(e []Expr) Expr { return AndExpr{Exprs: e} })
}

// Or combines expressions; nil children are dropped.
func Or(exprs ...Expr) Expr {
	return combine(exprs, func(e []Expr) Expr { return OrExpr{Exprs: e} })
}

// Not negates e.
func Not(e Expr) Expr {
	if e == nil {
		return nil
	}
	return NotExpr{Expr: e}
}

// Where builds the conjunction of conditions from a map of paths, sorted by
// path for a stable statement.
func Where(conds map[string]any) Expr {
	keys := slices.Sorted(maps.Keys(conds))
	exprs := make([]Expr, 0, len(keys))
	for _, k := range keys {
		exprs = append(exprs, Q(k, conds[k]))
	}
	return And(exprs...)
}

func combine(exprs []Expr, wrap func([]Expr) Expr) Expr {
	kept := make([]Expr, 0, len(exprs))
	for _, e := range exprs {
		if e != nil {
			kept = append(kept, e)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return wrap(kept)
	}
}

// SplitPath splits a field path into segments.
func SplitPath(path string) []string {
	return strings.Split(path, Separator)
}

// Order is one ORDER BY term.
type Order struct {
	Path []string
	Desc bool
}

// ParseOrder parses "field__path" or "-field__path".
func ParseOrder(s string) Order {
	if rest, ok := strings.CutPrefix(s, "-"); ok {
		return Order{Path: SplitPath(rest), Desc: true}
	}
	return Order{Path: SplitPath(strings.TrimPrefix(s, "+"))}
}

// String renders the order back to its textual form.
func (o Order) String() string {
	s := strings.Join(o.Path, Separator)
	if o.Desc {
		return "-" + s
	}
	return s
}

// AggFunc is an SQL aggregate function.
type AggFunc string

// Supported aggregate functions.
const (
	AggCount AggFunc = "COUNT"
	AggSum   AggFunc = "SUM"
	AggAvg   AggFunc = "AVG"
	AggMin   AggFunc = "MIN"
	AggMax   AggFunc = "MAX"
)

// Aggregate computes Func over the values reached by Path. Alias names the
// result; it defaults to "<path>__<func>".
type Aggregate struct {
	Func  AggFunc
	Path  []string
	Alias string
}

// Name returns the result key of the aggregate.
func (a Aggregate) Name() string {
	if a.Alias != "" {
		return a.Alias
	}
	return strings.Join(a.Path, Separator) + Separator + strings.ToLower(string(a.Func))
}

// Count counts the non-null values at path ("id" counts rows).
func Count(path string) Aggregate { return Aggregate{Func: AggCount, Path: SplitPath(path)} }

// Sum adds the values at path.
func Sum(path string) Aggregate { return Aggregate{Func: AggSum, Path: SplitPath(path)} }

// Avg averages the values at path.
func Avg(path string) Aggregate { return Aggregate{Func: AggAvg, Path: SplitPath(path)} }

// Min returns the smallest value at path.
func Min(path string) Aggregate { return Aggregate{Func: AggMin, Path: SplitPath(path)} }

// Max returns the largest value at path.
func Max(path string) Aggregate { return Aggregate{Func: AggMax, Path: SplitPath(path)} }

// As returns a copy of a with the given result name.
func (a Aggregate) As(alias string) Aggregate {
	a.Alias = alias
	return a
}
