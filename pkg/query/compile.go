package query

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/polyglot/pkg/core"
	"github.com/leapstack-labs/polyglot/pkg/dialect"
	"github.com/leapstack-labs/polyglot/pkg/schema"
)

// Mode selects how the root entity's translation table is joined.
type Mode int

const (
	// Translated keeps only rows translated in the query language
	// (INNER JOIN on the language).
	Translated Mode = iota
	// Untranslated keeps every shared row. Translated fields referenced by
	// the query are read from the query language through a LEFT JOIN.
	Untranslated
)

// Pseudo fields available on every entity.
const (
	FieldID = "id"
	FieldPK = "pk"
)

// ErrLanguageRequired is returned when a translatable entity is queried
// without a language.
var ErrLanguageRequired = errors.New("query language is required")

// marker stands for a bound parameter until the statement is assembled.
const marker = "\x00"

const (
	innerJoin = "INNER"
	leftJoin  = "LEFT"
)

// fragment is SQL text with its arguments in textual order.
type fragment struct {
	text string
	args []any
}

func (f fragment) empty() bool { return f.text == "" }

type join struct {
	kind  string
	table string
	alias string
	on    fragment
}

// node is one entity instance reachable from the root along a path.
type node struct {
	entity *schema.Entity
	key    string
	shared string
	trans  string
	multi  bool
}

// colRef points at one column of one node.
type colRef struct {
	alias  string
	column string
	field  *schema.Field
	multi  bool
}

// compiler accumulates the joins needed by the paths it resolves.
type compiler struct {
	d      *dialect.Dialect
	lang   string
	mode   Mode
	prefix string
	seq    int
	subs   int
	root   *node
	nodes  map[string]*node
	joins  []join
}

func newCompiler(e *schema.Entity, d *dialect.Dialect, lang string, mode Mode, prefix string) (*compiler, error) {
	if d == nil {
		return nil, dialect.ErrDialectRequired
	}
	if e.IsAbstract() {
		return nil, core.Definitionf(e.Name, "", "abstract entities cannot be queried")
	}
	storage := e.Storage()
	if storage.Translatable() && lang == "" {
		return nil, ErrLanguageRequired
	}

	c := &compiler{d: d, lang: lang, mode: mode, prefix: prefix, nodes: make(map[string]*node)}
	c.root = &node{entity: storage, shared: c.alias("s")}
	c.nodes[""] = c.root

	if mode == Translated && storage.Translatable() {
		c.root.trans = c.alias("t")
		c.joins = append(c.joins, join{
			kind:  innerJoin,
			table: storage.TranslationTable,
			alias: c.root.trans,
			on:    c.translationOn(c.root.trans, c.root.shared),
		})
	}
	return c, nil
}

func (c *compiler) alias(kind string) string {
	a := c.prefix + kind + strconv.Itoa(c.seq)
	c.seq++
	return a
}

func (c *compiler) quote(alias, column string) string {
	return c.d.QuoteIdentifier(alias) + "." + c.d.QuoteIdentifier(column)
}

func (c *compiler) sql(r colRef) string {
	return c.quote(r.alias, r.column)
}

// translationOn links a translation alias to its shared alias in the query language.
func (c *compiler) translationOn(trans, shared string) fragment {
	return fragment{
		text: fmt.Sprintf("%s = %s AND %s = %s",
			c.quote(trans, schema.ColumnMaster), c.quote(shared, schema.ColumnID),
			c.quote(trans, schema.ColumnLanguage), marker),
		args: []any{c.lang},
	}
}

// translation returns the translation alias of n, joining it on first use.
func (c *compiler) translation(n *node) string {
	if n.trans == "" {
		n.trans = c.alias("t")
		c.joins = append(c.joins, join{
			kind:  leftJoin,
			table: n.entity.TranslationTable,
			alias: n.trans,
			on:    c.translationOn(n.trans, n.shared),
		})
	}
	return n.trans
}

// column resolves field f of node n.
func (c *compiler) column(n *node, f *schema.Field) colRef {
	alias := n.shared
	if f.IsTranslated() {
		alias = c.translation(n)
	}
	return colRef{alias: alias, column: f.ColumnName(), field: f, multi: n.multi}
}

// forward joins the target of foreign key f declared on n.
func (c *compiler) forward(n *node, f *schema.Field) (*node, error) {
	key := n.key + Separator + f.Name
	if existing, ok := c.nodes[key]; ok {
		return existing, nil
	}
	target := f.TargetEntity()
	if target == nil {
		return nil, core.Definitionf(n.entity.Name, f.Name, "foreign key target %q is not resolved", f.Target)
	}
	src := c.column(n, f)
	next := &node{entity: target.Storage(), key: key, shared: c.alias("s"), multi: n.multi}
	c.joins = append(c.joins, join{
		kind:  leftJoin,
		table: next.entity.SharedTable,
		alias: next.shared,
		on:    fragment{text: c.quote(next.shared, schema.ColumnID) + " = " + c.sql(src)},
	})
	c.nodes[key] = next
	return next, nil
}

// reverse joins the source rows of reverse relation rel installed on n.
// A translated foreign key is matched in the query language.
func (c *compiler) reverse(n *node, rel *schema.Relation) *node {
	key := n.key + Separator + rel.Name
	if existing, ok := c.nodes[key]; ok {
		return existing
	}
	source := rel.Source.Storage()
	next := &node{entity: source, key: key, shared: c.alias("s"), multi: true}
	fk := c.d.QuoteIdentifier(rel.Field.ColumnName())
	if rel.Field.IsTranslated() {
		next.trans = c.alias("t")
		c.joins = append(c.joins, join{
			kind:  leftJoin,
			table: source.TranslationTable,
			alias: next.trans,
			on: fragment{
				text: fmt.Sprintf("%s.%s = %s AND %s = %s",
					c.d.QuoteIdentifier(next.trans), fk, c.quote(n.shared, schema.ColumnID),
					c.quote(next.trans, schema.ColumnLanguage), marker),
				args: []any{c.lang},
			},
		}, join{
			kind:  leftJoin,
			table: source.SharedTable,
			alias: next.shared,
			on:    fragment{text: c.quote(next.shared, schema.ColumnID) + " = " + c.quote(next.trans, schema.ColumnMaster)},
		})
	} else {
		c.joins = append(c.joins, join{
			kind:  leftJoin,
			table: source.SharedTable,
			alias: next.shared,
			on:    fragment{text: fmt.Sprintf("%s.%s = %s", c.d.QuoteIdentifier(next.shared), fk, c.quote(n.shared, schema.ColumnID))},
		})
	}
	c.nodes[key] = next
	return next
}

// resolve walks path from the root. It returns the terminal column and the
// trailing lookup (Exact when absent). allowLookup=false rejects a lookup
// segment.
func (c *compiler) resolve(path []string, allowLookup bool) (colRef, Lookup, error) {
	joined := strings.Join(path, Separator)
	fail := func(entity, segment, reason string) error {
		return core.Definitionf(entity, segment, "cannot resolve path %q: %s", joined, reason)
	}

	if len(path) == 0 || (len(path) == 1 && path[0] == "") {
		return colRef{}, "", fail(c.root.entity.Name, "", "empty path")
	}

	n := c.root
	for i := 0; i < len(path); i++ {
		seg := path[i]
		rest := path[i+1:]

		var ref colRef
		switch {
		case seg == FieldID || seg == FieldPK:
			ref = colRef{alias: n.shared, column: schema.ColumnID, multi: n.multi}
		case seg == schema.ColumnLanguage && n.entity.Translatable():
			ref = colRef{alias: c.translation(n), column: schema.ColumnLanguage, multi: n.multi}
		default:
			if f, ok := n.entity.Field(seg); ok {
				if f.IsRelation() && len(rest) > 0 && !c.isLookupTail(f, rest) {
					next, err := c.forward(n, f)
					if err != nil {
						return colRef{}, "", err
					}
					n = next
					continue
				}
				ref = c.column(n, f)
				break
			}
			if rel, ok := n.entity.Reverse(seg); ok {
				n = c.reverse(n, rel)
				if len(rest) == 0 || c.isReverseLookupTail(rest) {
					ref = colRef{alias: n.shared, column: schema.ColumnID, multi: true}
					break
				}
				continue
			}
			return colRef{}, "", fail(n.entity.Name, seg, "no such field or relation")
		}

		switch len(rest) {
		case 0:
			return ref, Exact, nil
		case 1:
			l, ok := ParseLookup(rest[0])
			if !ok {
				return colRef{}, "", fail(n.entity.Name, rest[0], "unknown lookup")
			}
			if !allowLookup {
				return colRef{}, "", fail(n.entity.Name, rest[0], "lookups are not allowed here")
			}
			return ref, l, nil
		default:
			return colRef{}, "", fail(n.entity.Name, rest[0], "not a relation")
		}
	}
	return colRef{}, "", fail(n.entity.Name, path[len(path)-1], "path ends at a relation")
}

// isLookupTail reports whether rest (following foreign key f) is a lone
// lookup rather than a field of the target.
func (c *compiler) isLookupTail(f *schema.Field, rest []string) bool {
	if len(rest) != 1 {
		return false
	}
	if _, ok := ParseLookup(rest[0]); !ok {
		return false
	}
	if t := f.TargetEntity(); t != nil {
		if _, isField := t.Field(rest[0]); isField {
			return false
		}
	}
	return true
}

func (c *compiler) isReverseLookupTail(rest []string) bool {
	if len(rest) != 1 {
		return false
	}
	_, ok := ParseLookup(rest[0])
	return ok
}

// multiValued reports whether path crosses a reverse relation, without
// registering joins.
func multiValued(e *schema.Entity, path []string) bool {
	cur := e
	for _, seg := range path {
		if f, ok := cur.Field(seg); ok {
			if !f.IsRelation() || f.TargetEntity() == nil {
				return false
			}
			cur = f.TargetEntity()
			continue
		}
		if _, ok := cur.Reverse(seg); ok {
			return true
		}
		return false
	}
	return false
}

// from renders the FROM clause with all joins.
func (c *compiler) from() fragment {
	var b strings.Builder
	var args []any
	b.WriteString(c.d.QuoteIdentifier(c.root.entity.SharedTable))
	b.WriteString(" AS ")
	b.WriteString(c.d.QuoteIdentifier(c.root.shared))
	for _, j := range c.joins {
		fmt.Fprintf(&b, " %s JOIN %s AS %s ON %s", j.kind, c.d.QuoteIdentifier(j.table), c.d.QuoteIdentifier(j.alias), j.on.text)
		args = append(args, j.on.args...)
	}
	return fragment{text: b.String(), args: args}
}

// assemble joins fragments with spaces and numbers the parameters.
func (c *compiler) assemble(parts ...fragment) Statement {
	var texts []string
	var args []any
	for _, p := range parts {
		if p.empty() {
			continue
		}
		texts = append(texts, p.text)
		args = append(args, p.args...)
	}
	return Statement{SQL: numberParams(strings.Join(texts, " "), c.d), Args: args}
}

func numberParams(s string, d *dialect.Dialect) string {
	var b strings.Builder
	n := 0
	for {
		i := strings.Index(s, marker)
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		n++
		b.WriteString(s[:i])
		b.WriteString(d.FormatPlaceholder(n))
		s = s[i+len(marker):]
	}
}
